package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

type ShippingMethod string

const (
	ShippingStandard  ShippingMethod = "standard"
	ShippingExpress   ShippingMethod = "express"
	ShippingOvernight ShippingMethod = "overnight"
)

type PaymentMethod string

const (
	PaymentCreditCard   PaymentMethod = "credit_card"
	PaymentPaypal       PaymentMethod = "paypal"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
)

type ShippingInfo struct {
	FullName   string `json:"full_name" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	Phone      string `json:"phone" validate:"required"`
	Address    string `json:"address" validate:"required"`
	City       string `json:"city" validate:"required"`
	PostalCode string `json:"postal_code" validate:"required"`
	Country    string `json:"country" validate:"required"`
}

// CreateOrderRequest is the body of POST /api/v1/orders/checkout.
type CreateOrderRequest struct {
	ShippingInfo   ShippingInfo   `json:"shipping_info"`
	ShippingMethod ShippingMethod `json:"shipping_method" validate:"oneof=standard express overnight"`
	PaymentMethod  PaymentMethod  `json:"payment_method" validate:"oneof=credit_card paypal bank_transfer"`
	CartID         string         `json:"cart_id"`
}

type OrderItem struct {
	ID               int64           `json:"id"`
	ProductVariantID int64           `json:"product_variant_id"`
	SKU              string          `json:"sku"`
	ProductName      *string         `json:"product_name,omitempty"`
	Quantity         int             `json:"quantity"`
	Price            decimal.Decimal `json:"price"`
}

func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order is an order as returned by GET /api/v1/orders/{id}. The backend
// serialises Decimal columns as strings, decimal.Decimal accepts both.
type Order struct {
	ID           int64           `json:"id"`
	UserID       int64           `json:"user_id"`
	Username     *string         `json:"username,omitempty"`
	UserEmail    *string         `json:"user_email,omitempty"`
	OrderDate    string          `json:"order_date"`
	Status       string          `json:"status"`
	Total        decimal.Decimal `json:"total"`
	DeliveryInfo map[string]any  `json:"delivery_info,omitempty"`
	Items        []OrderItem     `json:"items"`
}

// OrderConfirmation is the data returned by a successful checkout.
type OrderConfirmation struct {
	OrderID      string          `json:"order_id"`
	OrderNumber  string          `json:"order_number"`
	Status       string          `json:"status"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	ShippingCost decimal.Decimal `json:"shipping_cost"`
	CreatedAt    string          `json:"created_at"`
}

// NumericID strips the "order_" prefix the backend puts on order ids.
func (c OrderConfirmation) NumericID() string {
	return strings.Replace(c.OrderID, "order_", "", 1)
}
