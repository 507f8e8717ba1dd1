// Package backend wraps every backend endpoint the storefront uses in a
// typed call over apiclient.
package backend

import (
	"context"
	"fmt"
	"net/url"

	"storefront/apiclient"
	"storefront/model"
)

const (
	productsBase = "/api/v1/products"
	cartBase     = "/api/v1/cart"
	ordersBase   = "/api/v1/orders"
	authBase     = "/api/v1/auth"

	sessionHeader = "X-Session-ID"
)

// Caller identifies the visitor a call is made for. Both fields are
// optional: an empty SessionID sends no session header and nil Tokens
// makes the call anonymous.
type Caller struct {
	SessionID string
	Tokens    apiclient.TokenStore
}

func (c Caller) options() []apiclient.RequestOption {
	var opts []apiclient.RequestOption
	if c.SessionID != "" {
		opts = append(opts, apiclient.WithHeader(sessionHeader, c.SessionID))
	}
	if c.Tokens != nil {
		opts = append(opts, apiclient.WithTokens(c.Tokens))
	}
	return opts
}

type ProductQuery struct {
	Offset int
	Limit  int
	Search string
}

func (q ProductQuery) params() map[string]any {
	p := map[string]any{"offset": q.Offset}
	if q.Limit > 0 {
		p["limit"] = q.Limit
	}
	if q.Search != "" {
		p["search"] = q.Search
	}
	return p
}

// API is the typed backend.
type API struct {
	client *apiclient.Client
}

func New(client *apiclient.Client) *API {
	return &API{client: client}
}

// Client exposes the underlying HTTP client.
func (a *API) Client() *apiclient.Client { return a.client }

// --- Products ---

func (a *API) ListProducts(ctx context.Context, q ProductQuery) ([]model.ProductListItem, error) {
	resp, err := a.client.Get(ctx, productsBase, apiclient.WithParams(q.params()))
	if err != nil {
		return nil, err
	}
	items, err := apiclient.Decode[[]model.ProductListItem](resp)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return items, nil
}

func (a *API) ProductBySlug(ctx context.Context, slug string) (*model.ProductDetail, error) {
	resp, err := a.client.Get(ctx, productsBase+"/"+url.PathEscape(slug))
	if err != nil {
		return nil, err
	}
	p, err := apiclient.Decode[model.ProductDetail](resp)
	if err != nil {
		return nil, fmt.Errorf("product %q: %w", slug, err)
	}
	return &p, nil
}

// --- Cart ---

func (a *API) Cart(ctx context.Context, c Caller) (*model.Cart, error) {
	resp, err := a.client.Get(ctx, cartBase, c.options()...)
	if err != nil {
		return nil, err
	}
	return decodeCart(resp)
}

// AddCartItem answers with cart totals only; callers that need the items
// fetch the cart again.
func (a *API) AddCartItem(ctx context.Context, c Caller, req model.AddToCartRequest) (*model.SimpleCart, string, error) {
	resp, err := a.client.Post(ctx, cartBase+"/items", req, c.options()...)
	if err != nil {
		return nil, "", err
	}
	sc, err := apiclient.Decode[model.SimpleCart](resp)
	if err != nil {
		return nil, "", fmt.Errorf("add cart item: %w", err)
	}
	return &sc, resp.Message, nil
}

func (a *API) UpdateCartItem(ctx context.Context, c Caller, itemID string, req model.UpdateCartItemRequest) (*model.Cart, error) {
	resp, err := a.client.Patch(ctx, itemPath(itemID), req, c.options()...)
	if err != nil {
		return nil, err
	}
	return decodeCart(resp)
}

func (a *API) RemoveCartItem(ctx context.Context, c Caller, itemID string) (*model.Cart, error) {
	resp, err := a.client.Delete(ctx, itemPath(itemID), c.options()...)
	if err != nil {
		return nil, err
	}
	return decodeCart(resp)
}

func itemPath(itemID string) string {
	return cartBase + "/items/" + url.PathEscape(model.NormalizeItemID(itemID))
}

func decodeCart(resp *apiclient.Response) (*model.Cart, error) {
	cart, err := apiclient.Decode[model.Cart](resp)
	if err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	if cart.Items == nil {
		cart.Items = []model.CartItem{}
	}
	return &cart, nil
}

// --- Orders ---

func (a *API) Checkout(ctx context.Context, c Caller, req model.CreateOrderRequest) (*model.OrderConfirmation, error) {
	resp, err := a.client.Post(ctx, ordersBase+"/checkout", req, c.options()...)
	if err != nil {
		return nil, err
	}
	conf, err := apiclient.Decode[model.OrderConfirmation](resp)
	if err != nil {
		return nil, fmt.Errorf("checkout: %w", err)
	}
	return &conf, nil
}

func (a *API) Order(ctx context.Context, c Caller, orderID string) (*model.Order, error) {
	resp, err := a.client.Get(ctx, ordersBase+"/"+url.PathEscape(orderID), c.options()...)
	if err != nil {
		return nil, err
	}
	o, err := apiclient.Decode[model.Order](resp)
	if err != nil {
		return nil, fmt.Errorf("order %s: %w", orderID, err)
	}
	return &o, nil
}

// --- Auth ---

func (a *API) Login(ctx context.Context, form model.LoginForm) (*model.LoginResult, error) {
	resp, err := a.client.Post(ctx, authBase+"/login", form)
	if err != nil {
		return nil, err
	}
	res, err := apiclient.Decode[model.LoginResult](resp)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return &res, nil
}

// Me fetches the profile of the caller. A non-empty bearer is sent as is
// and takes precedence over the caller's token store.
func (a *API) Me(ctx context.Context, c Caller, bearer string) (*model.User, error) {
	opts := c.options()
	if bearer != "" {
		opts = append(opts, apiclient.WithHeader("Authorization", "Bearer "+bearer))
	}
	resp, err := a.client.Get(ctx, authBase+"/me", opts...)
	if err != nil {
		return nil, err
	}
	u, err := apiclient.Decode[model.User](resp)
	if err != nil {
		return nil, fmt.Errorf("me: %w", err)
	}
	return &u, nil
}

func (a *API) Logout(ctx context.Context, c Caller, allDevices bool) error {
	endpoint := authBase + "/logout"
	if allDevices {
		endpoint += "/all"
	}
	opts := c.options()
	if c.Tokens != nil {
		if rt := c.Tokens.RefreshToken(); rt != "" {
			opts = append(opts, apiclient.WithHeader("Cookie", "refresh_token="+rt))
		}
	}
	_, err := a.client.Post(ctx, endpoint, map[string]any{}, opts...)
	return err
}
