package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/sync/errgroup"

	"storefront/apiclient"
	"storefront/backend"
	"storefront/logging"
	"storefront/model"
	"storefront/store"
)

const (
	homeProductLimit   = 20
	searchProductLimit = 50
)

type Service struct {
	backend Backend
	store   store.Store
}

func NewService(b Backend, s store.Store) *Service {
	return &Service{backend: b, store: s}
}

func caller(sess Session) backend.Caller {
	return backend.Caller{SessionID: sess.ID(), Tokens: sess}
}

// --- Catalog ---

// Home loads the landing page products and the cart badge concurrently.
func (s *Service) Home(ctx context.Context, sess Session) (*HomePage, error) {
	page := &HomePage{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		products, err := s.backend.ListProducts(gctx, backend.ProductQuery{Limit: homeProductLimit})
		if err != nil {
			return fmt.Errorf("home products: %w", err)
		}
		page.Products = products
		return nil
	})
	g.Go(func() error {
		page.CartCount = s.CartCount(ctx, sess)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return page, nil
}

func (s *Service) ListProducts(ctx context.Context, offset, limit int) ([]model.ProductListItem, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = searchProductLimit
	}
	return s.backend.ListProducts(ctx, backend.ProductQuery{Offset: offset, Limit: limit})
}

// Search trims the query; an empty query returns no products without
// calling the backend. Non-empty queries are added to the search history.
func (s *Service) Search(ctx context.Context, sess Session, query string) (*SearchResult, error) {
	q := strings.TrimSpace(query)
	res := &SearchResult{Query: q, Products: []model.ProductListItem{}}
	if q == "" {
		return res, nil
	}
	products, err := s.backend.ListProducts(ctx, backend.ProductQuery{Limit: searchProductLimit, Search: q})
	if err != nil {
		return nil, err
	}
	res.Products = products
	s.recordSearch(ctx, sess, q)
	return res, nil
}

func (s *Service) Product(ctx context.Context, slug string, sel Selection) (*ProductPage, error) {
	p, err := s.backend.ProductBySlug(ctx, slug)
	if err != nil {
		if apiclient.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, slug)
		}
		return nil, err
	}
	return &ProductPage{Product: p, Selection: SelectVariant(p.Price, p.Variants, sel)}, nil
}

// --- Cart ---

// Cart never fails: when the backend cannot be reached the visitor sees an
// empty cart.
func (s *Service) Cart(ctx context.Context, sess Session) *model.Cart {
	cart, err := s.backend.Cart(ctx, caller(sess))
	if err != nil {
		logging.FromContext(ctx).WithError(err).Warn("Error fetching cart")
		return model.EmptyCart()
	}
	s.cacheCart(ctx, sess, cart)
	return cart
}

// CartCount is the header badge. It reads the cached snapshot and only asks
// the backend when there is none.
func (s *Service) CartCount(ctx context.Context, sess Session) int {
	if cached, err := s.store.GetCart(ctx, sess.ID()); err == nil {
		return cached.TotalItems
	}
	return s.Cart(ctx, sess).TotalItems
}

func (s *Service) AddToCart(ctx context.Context, sess Session, slug string, req model.AddToCartRequest) (*AddToCartResult, error) {
	if strings.TrimSpace(req.SKU) == "" {
		return nil, ErrVariantRequired
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	if slug != "" {
		p, err := s.backend.ProductBySlug(ctx, slug)
		if err != nil {
			if apiclient.IsNotFound(err) {
				return nil, fmt.Errorf("%w: %s", ErrProductNotFound, slug)
			}
			return nil, err
		}
		v := p.Variant(req.SKU)
		if v == nil {
			return nil, ErrVariantRequired
		}
		if v.Stock < req.Quantity {
			return nil, ErrInsufficientStock
		}
	}

	simple, msg, err := s.backend.AddCartItem(ctx, caller(sess), req)
	if err != nil {
		return nil, err
	}
	if msg == "" {
		msg = "Item added to cart"
	}

	// The add endpoint answers without items, fetch the full cart.
	cart, err := s.backend.Cart(ctx, caller(sess))
	if err != nil {
		logging.FromContext(ctx).WithError(err).Warn("Error fetching cart after add")
		cart = simple.Cart()
	}
	s.cacheCart(ctx, sess, cart)
	return &AddToCartResult{Cart: cart, Message: msg}, nil
}

func (s *Service) UpdateCartItem(ctx context.Context, sess Session, itemID string, quantity int) (*model.Cart, error) {
	req := model.UpdateCartItemRequest{Quantity: quantity}
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	cart, err := s.backend.UpdateCartItem(ctx, caller(sess), itemID, req)
	if err != nil {
		return nil, err
	}
	s.cacheCart(ctx, sess, cart)
	return cart, nil
}

func (s *Service) RemoveCartItem(ctx context.Context, sess Session, itemID string) (*model.Cart, error) {
	cart, err := s.backend.RemoveCartItem(ctx, caller(sess), itemID)
	if err != nil {
		return nil, err
	}
	s.cacheCart(ctx, sess, cart)
	return cart, nil
}

func (s *Service) cacheCart(ctx context.Context, sess Session, cart *model.Cart) {
	if err := s.store.SaveCart(ctx, sess.ID(), cart); err != nil {
		logging.FromContext(ctx).WithError(err).Warn("Error caching cart")
	}
}

// --- Checkout ---

func (s *Service) CheckoutSummary(ctx context.Context, sess Session, method model.ShippingMethod) (*CheckoutPage, error) {
	if sess.AccessToken() == "" {
		return nil, ErrNotAuthenticated
	}
	if method == "" {
		method = model.ShippingStandard
	}
	cart := s.Cart(ctx, sess)
	page := &CheckoutPage{
		Cart:     cart,
		Method:   method,
		Summary:  Summarize(cart, method),
		Shipping: ShippingOptions(),
		Payment:  PaymentOptions(),
	}
	if u, err := s.CurrentUser(ctx, sess); err == nil {
		page.User = u
	}
	return page, nil
}

// PlaceOrder validates the order, checks out the visitor's cart and drops
// the cached cart snapshot.
func (s *Service) PlaceOrder(ctx context.Context, sess Session, req model.CreateOrderRequest) (*OrderResult, error) {
	if sess.AccessToken() == "" {
		return nil, ErrNotAuthenticated
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if req.CartID == "" {
		cart := s.Cart(ctx, sess)
		if cart.IsEmpty() {
			return nil, ErrEmptyCart
		}
		req.CartID = cart.CartID
	}

	conf, err := s.backend.Checkout(ctx, caller(sess), req)
	if err != nil {
		return nil, err
	}
	if err := s.store.DeleteCart(ctx, sess.ID()); err != nil {
		logging.FromContext(ctx).WithError(err).Warn("Error clearing cached cart")
	}
	return &OrderResult{Confirmation: conf, OrderID: conf.NumericID()}, nil
}

func (s *Service) Order(ctx context.Context, sess Session, orderID string) (*model.Order, error) {
	if sess.AccessToken() == "" {
		return nil, ErrNotAuthenticated
	}
	o, err := s.backend.Order(ctx, caller(sess), orderID)
	if err != nil {
		if apiclient.IsStatus(err, http.StatusUnauthorized) {
			return nil, ErrNotAuthenticated
		}
		return nil, err
	}
	return o, nil
}

// --- Search history ---

func (s *Service) SearchHistory(ctx context.Context, sess Session) []string {
	h, err := s.store.GetSearchHistory(ctx, sess.ID())
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logging.FromContext(ctx).WithError(err).Warn("Error loading search history")
		}
		return []string{}
	}
	return h
}

func (s *Service) ClearSearchHistory(ctx context.Context, sess Session) error {
	return s.store.DeleteSearchHistory(ctx, sess.ID())
}

func (s *Service) Suggestions(ctx context.Context, sess Session, query string) Suggestions {
	return buildSuggestions(s.SearchHistory(ctx, sess), query)
}

func (s *Service) recordSearch(ctx context.Context, sess Session, q string) {
	h := pushHistory(s.SearchHistory(ctx, sess), q)
	if err := s.store.SaveSearchHistory(ctx, sess.ID(), h); err != nil {
		logging.FromContext(ctx).WithError(err).Warn("Error saving search history")
	}
}
