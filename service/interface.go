package service

import (
	"context"

	"storefront/apiclient"
	"storefront/backend"
	"storefront/model"
)

// ServiceInterface is what the HTTP layer needs from the storefront.
type ServiceInterface interface {
	Home(ctx context.Context, sess Session) (*HomePage, error)
	ListProducts(ctx context.Context, offset, limit int) ([]model.ProductListItem, error)
	Search(ctx context.Context, sess Session, query string) (*SearchResult, error)
	Product(ctx context.Context, slug string, sel Selection) (*ProductPage, error)

	Cart(ctx context.Context, sess Session) *model.Cart
	CartCount(ctx context.Context, sess Session) int
	AddToCart(ctx context.Context, sess Session, slug string, req model.AddToCartRequest) (*AddToCartResult, error)
	UpdateCartItem(ctx context.Context, sess Session, itemID string, quantity int) (*model.Cart, error)
	RemoveCartItem(ctx context.Context, sess Session, itemID string) (*model.Cart, error)

	CheckoutSummary(ctx context.Context, sess Session, method model.ShippingMethod) (*CheckoutPage, error)
	PlaceOrder(ctx context.Context, sess Session, req model.CreateOrderRequest) (*OrderResult, error)
	Order(ctx context.Context, sess Session, orderID string) (*model.Order, error)

	Login(ctx context.Context, sess Session, form model.LoginForm, referer string) (*LoginResult, error)
	CurrentUser(ctx context.Context, sess Session) (*model.User, error)
	Logout(ctx context.Context, sess Session, allDevices bool)

	SearchHistory(ctx context.Context, sess Session) []string
	ClearSearchHistory(ctx context.Context, sess Session) error
	Suggestions(ctx context.Context, sess Session, query string) Suggestions
}

// Backend is the subset of backend.API the service calls.
type Backend interface {
	ListProducts(ctx context.Context, q backend.ProductQuery) ([]model.ProductListItem, error)
	ProductBySlug(ctx context.Context, slug string) (*model.ProductDetail, error)

	Cart(ctx context.Context, c backend.Caller) (*model.Cart, error)
	AddCartItem(ctx context.Context, c backend.Caller, req model.AddToCartRequest) (*model.SimpleCart, string, error)
	UpdateCartItem(ctx context.Context, c backend.Caller, itemID string, req model.UpdateCartItemRequest) (*model.Cart, error)
	RemoveCartItem(ctx context.Context, c backend.Caller, itemID string) (*model.Cart, error)

	Checkout(ctx context.Context, c backend.Caller, req model.CreateOrderRequest) (*model.OrderConfirmation, error)
	Order(ctx context.Context, c backend.Caller, orderID string) (*model.Order, error)

	Login(ctx context.Context, form model.LoginForm) (*model.LoginResult, error)
	Me(ctx context.Context, c backend.Caller, bearer string) (*model.User, error)
	Logout(ctx context.Context, c backend.Caller, allDevices bool) error
}

// Session is one visitor's request-scoped state: the session id and the
// auth tokens, which the handler keeps in cookies.
type Session interface {
	apiclient.TokenStore
	ID() string
	ClearTokens()
}

// --- page shapes ---

type HomePage struct {
	Products  []model.ProductListItem
	CartCount int
}

type SearchResult struct {
	Query    string
	Products []model.ProductListItem
}

type ProductPage struct {
	Product   *model.ProductDetail
	Selection VariantSelection
}

type AddToCartResult struct {
	Cart    *model.Cart
	Message string
}

type CheckoutPage struct {
	Cart     *model.Cart
	User     *model.User
	Method   model.ShippingMethod
	Summary  OrderSummary
	Shipping []ShippingOption
	Payment  []PaymentOption
}

type OrderResult struct {
	Confirmation *model.OrderConfirmation
	OrderID      string
}

type LoginResult struct {
	User        *model.User
	RedirectURL string
}
