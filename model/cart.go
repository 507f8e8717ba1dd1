package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

type CartItem struct {
	ItemID   string          `json:"itemId"`
	SKU      string          `json:"sku"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Name     string          `json:"name,omitempty"`
	Image    string          `json:"image,omitempty"`
}

func (i CartItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart is the cart as tracked by the backend, keyed by cart id or by the
// guest session id.
type Cart struct {
	CartID     string          `json:"cart_id"`
	TotalItems int             `json:"total_items"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Items      []CartItem      `json:"items"`
}

func EmptyCart() *Cart {
	return &Cart{Items: []CartItem{}}
}

func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Items) == 0
}

// SimpleCart is what POST /cart/items answers with: totals without items.
type SimpleCart struct {
	CartID     string          `json:"cart_id"`
	TotalItems int             `json:"total_items"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

func (s SimpleCart) Cart() *Cart {
	return &Cart{CartID: s.CartID, TotalItems: s.TotalItems, TotalPrice: s.TotalPrice, Items: []CartItem{}}
}

type AddToCartRequest struct {
	SKU      string `json:"sku" validate:"required"`
	Quantity int    `json:"quantity" validate:"min=1"`
}

type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" validate:"min=1"`
}

// NormalizeItemID turns the "item_<id>" form used in cart payloads into the
// numeric id the item endpoints expect.
func NormalizeItemID(itemID string) string {
	if strings.HasPrefix(itemID, "item_") {
		return strings.Replace(itemID, "item_", "", 1)
	}
	return itemID
}
