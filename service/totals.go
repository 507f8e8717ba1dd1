package service

import (
	"github.com/shopspring/decimal"

	"storefront/model"
)

type ShippingOption struct {
	Method      model.ShippingMethod
	Name        string
	Description string
	Cost        decimal.Decimal
}

func (o ShippingOption) Free() bool { return o.Cost.IsZero() }

type PaymentOption struct {
	Method model.PaymentMethod
	Name   string
}

var shippingOptions = []ShippingOption{
	{Method: model.ShippingStandard, Name: "Standard Shipping", Description: "5-7 business days", Cost: decimal.Zero},
	{Method: model.ShippingExpress, Name: "Express Shipping", Description: "2-3 business days", Cost: decimal.NewFromInt(10)},
	{Method: model.ShippingOvernight, Name: "Overnight Shipping", Description: "1 business day", Cost: decimal.NewFromInt(25)},
}

var paymentOptions = []PaymentOption{
	{Method: model.PaymentCreditCard, Name: "Credit Card"},
	{Method: model.PaymentPaypal, Name: "PayPal"},
	{Method: model.PaymentBankTransfer, Name: "Bank Transfer"},
}

func ShippingOptions() []ShippingOption {
	return append([]ShippingOption(nil), shippingOptions...)
}

func PaymentOptions() []PaymentOption {
	return append([]PaymentOption(nil), paymentOptions...)
}

// ShippingCost is zero for unknown methods.
func ShippingCost(method model.ShippingMethod) decimal.Decimal {
	for _, o := range shippingOptions {
		if o.Method == method {
			return o.Cost
		}
	}
	return decimal.Zero
}

type OrderSummary struct {
	ItemCount int
	Subtotal  decimal.Decimal
	Shipping  decimal.Decimal
	Tax       decimal.Decimal
	Total     decimal.Decimal
}

// Summarize prices a cart for checkout. The subtotal is the cart total as
// reported by the backend; no tax is charged.
func Summarize(cart *model.Cart, method model.ShippingMethod) OrderSummary {
	s := OrderSummary{
		Subtotal: decimal.Zero,
		Shipping: ShippingCost(method),
		Tax:      decimal.Zero,
	}
	if cart != nil {
		s.ItemCount = cart.TotalItems
		s.Subtotal = cart.TotalPrice
	}
	s.Total = s.Subtotal.Add(s.Shipping).Add(s.Tax)
	return s
}
