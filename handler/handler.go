package handler

import (
	"errors"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/sessions"
	"github.com/sirupsen/logrus"

	"storefront/logging"
	"storefront/metrics"
	"storefront/model"
	"storefront/service"
)

const shopPageSize = 20

// Options configure the HTTP layer.
type Options struct {
	// Production turns on Secure cookies.
	Production  bool
	SessionTTL  time.Duration
	FlashSecret string
	LoginRPS    float64
	LoginBurst  int
	// TrustedProxies may set X-Forwarded-For for the login rate limit.
	TrustedProxies []netip.Prefix
	Metrics        *metrics.Metrics
	Logger         logrus.FieldLogger
}

// Handler is the HTTP layer that talks to service.ServiceInterface
type Handler struct {
	svc     service.ServiceInterface
	tpl     *renderer
	flash   sessions.Store
	limiter *RateLimiter
	metrics *metrics.Metrics
	log     logrus.FieldLogger
	secure  bool
	ttl     time.Duration
}

// NewHandler returns a Handler instance
func NewHandler(s service.ServiceInterface, opts Options) (*Handler, error) {
	tpl, err := newRenderer()
	if err != nil {
		return nil, err
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 30 * 24 * time.Hour
	}
	if opts.LoginRPS <= 0 {
		opts.LoginRPS = 1
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	h := &Handler{
		svc:     s,
		tpl:     tpl,
		flash:   newFlashStore(opts.FlashSecret, opts.Production),
		limiter: NewRateLimiter(opts.LoginRPS, opts.LoginBurst, opts.TrustedProxies...),
		metrics: opts.Metrics,
		log:     opts.Logger,
		secure:  opts.Production,
		ttl:     opts.SessionTTL,
	}
	h.limiter.onLimit = h.loginThrottled
	return h, nil
}

// Limiter exposes the login rate limiter so the caller can schedule cleanup.
func (h *Handler) Limiter() *RateLimiter { return h.limiter }

// RegisterRoutes registers all routes on the provided router
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.Use(requestLogger(h.log), recoverer)
	if h.metrics != nil {
		r.Use(h.metrics.InstrumentHandler)
		r.Handle("/metrics", h.metrics.Handler()).Methods("GET")
	}
	r.NotFoundHandler = requestLogger(h.log)(http.HandlerFunc(h.NotFound))

	// Catalog
	r.HandleFunc("/", h.Home).Methods("GET")
	r.HandleFunc("/shop", h.Shop).Methods("GET")
	r.HandleFunc("/search", h.Search).Methods("GET")
	r.HandleFunc("/search/history/clear", h.ClearSearchHistory).Methods("POST")
	r.HandleFunc("/products/{slug}", h.Product).Methods("GET")

	// Cart
	r.HandleFunc("/cart", h.Cart).Methods("GET")
	r.HandleFunc("/cart/items", h.AddToCart).Methods("POST")
	r.HandleFunc("/cart/items/{id}", h.UpdateCartItem).Methods("POST")
	r.HandleFunc("/cart/items/{id}/delete", h.RemoveCartItem).Methods("POST")

	// Checkout
	r.HandleFunc("/checkout", requireAuth(h.Checkout)).Methods("GET")
	r.HandleFunc("/checkout", requireAuth(h.PlaceOrder)).Methods("POST")
	r.HandleFunc("/orders/{id}/confirmation", requireAuth(h.Confirmation)).Methods("GET")

	// Auth
	r.HandleFunc("/login", h.LoginPage).Methods("GET")
	r.Handle("/login", h.limiter.Handler(http.HandlerFunc(h.Login))).Methods("POST")
	r.HandleFunc("/logout", h.Logout).Methods("POST")

	// Static pages
	r.HandleFunc("/about", h.static("about.html", "About")).Methods("GET")
	r.HandleFunc("/contact", h.static("contact.html", "Contact")).Methods("GET")
	r.PathPrefix("/static/").Handler(assets()).Methods("GET")

	// JSON
	r.HandleFunc("/api/search/suggestions", h.Suggestions).Methods("GET")
	r.HandleFunc("/api/me", h.Me).Methods("GET")
	r.HandleFunc("/healthz", h.Health).Methods("GET")
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) *cookieSession {
	return newSession(w, r, h.secure, h.ttl)
}

// --- view models ---

type shopView struct {
	Products   []model.ProductListItem
	Limit      int
	HasPrev    bool
	PrevOffset int
	HasNext    bool
	NextOffset int
}

type searchView struct {
	Query       string
	Products    []model.ProductListItem
	History     []string
	Suggestions service.Suggestions
}

type cartView struct {
	Cart *model.Cart
}

type formField struct {
	Name  string
	Label string
	Type  string
	Value string
}

type checkoutView struct {
	Page    *service.CheckoutPage
	Fields  []formField
	Payment model.PaymentMethod
}

type loginView struct {
	Message  string
	Next     string
	Username string
}

type errorView struct {
	Heading string
	Message string
}

// --- Catalog ---

// Home handles GET /
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	page, err := h.svc.Home(r.Context(), sess)
	if err != nil {
		h.fail(w, r, sess, err)
		return
	}
	h.render(w, r, sess, http.StatusOK, "home.html", pageData{Data: page})
}

// Shop handles GET /shop?offset=&limit=
func (h *Handler) Shop(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", shopPageSize)
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > 100 {
		limit = shopPageSize
	}

	products, err := h.svc.ListProducts(r.Context(), offset, limit)
	if err != nil {
		h.fail(w, r, sess, err)
		return
	}
	view := shopView{
		Products:   products,
		Limit:      limit,
		HasPrev:    offset > 0,
		PrevOffset: max(offset-limit, 0),
		HasNext:    len(products) == limit,
		NextOffset: offset + limit,
	}
	h.render(w, r, sess, http.StatusOK, "shop.html", pageData{Title: "Shop", Data: view})
}

// Search handles GET /search?q=
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	ctx := r.Context()
	q := strings.TrimSpace(r.URL.Query().Get("q"))

	res, err := h.svc.Search(ctx, sess, q)
	if err != nil {
		h.fail(w, r, sess, err)
		return
	}
	view := searchView{
		Query:       res.Query,
		Products:    res.Products,
		History:     h.svc.SearchHistory(ctx, sess),
		Suggestions: h.svc.Suggestions(ctx, sess, ""),
	}
	h.render(w, r, sess, http.StatusOK, "search.html", pageData{Title: "Search", Data: view})
}

// ClearSearchHistory handles POST /search/history/clear
func (h *Handler) ClearSearchHistory(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	if err := h.svc.ClearSearchHistory(r.Context(), sess); err != nil {
		logging.FromContext(r.Context()).WithError(err).Warn("Error clearing search history")
		h.addFlash(w, r, FlashError, msgSomethingWrong)
	}
	http.Redirect(w, r, "/search", http.StatusSeeOther)
}

// Product handles GET /products/{slug}?color=&size=&changed=
func (h *Handler) Product(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	q := r.URL.Query()
	sel := service.Selection{
		Color:    q.Get("color"),
		Size:     q.Get("size"),
		Changed:  q.Get("changed"),
		Quantity: queryInt(r, "quantity", 1),
	}

	page, err := h.svc.Product(r.Context(), mux.Vars(r)["slug"], sel)
	if err != nil {
		h.fail(w, r, sess, err)
		return
	}
	h.render(w, r, sess, http.StatusOK, "product.html", pageData{Title: page.Product.Name, Data: page})
}

// --- Cart ---

// Cart handles GET /cart
func (h *Handler) Cart(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	cart := h.svc.Cart(r.Context(), sess)
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, cart)
		return
	}
	h.render(w, r, sess, http.StatusOK, "cart.html", pageData{Title: "Cart", Data: cartView{Cart: cart}})
}

// AddToCart handles POST /cart/items
// form: slug, sku, quantity
func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	if err := r.ParseForm(); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid form")
		return
	}
	slug := r.PostForm.Get("slug")
	req := model.AddToCartRequest{
		SKU:      r.PostForm.Get("sku"),
		Quantity: formInt(r, "quantity", 1),
	}
	back := "/cart"
	if slug != "" {
		back = "/products/" + slug
	}

	res, err := h.svc.AddToCart(r.Context(), sess, slug, req)
	if err != nil {
		status, msg := errorStatus(err)
		if wantsJSON(r) {
			writeErr(w, status, msg)
			return
		}
		h.addFlash(w, r, FlashError, msg)
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"cart": res.Cart, "message": res.Message})
		return
	}
	h.addFlash(w, r, FlashSuccess, res.Message)
	http.Redirect(w, r, back, http.StatusSeeOther)
}

// UpdateCartItem handles POST /cart/items/{id}
// form: quantity
func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	qty := formInt(r, "quantity", 0)
	cart, err := h.svc.UpdateCartItem(r.Context(), sess, mux.Vars(r)["id"], qty)
	h.cartChanged(w, r, cart, err, "Cart updated")
}

// RemoveCartItem handles POST /cart/items/{id}/delete
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	cart, err := h.svc.RemoveCartItem(r.Context(), sess, mux.Vars(r)["id"])
	h.cartChanged(w, r, cart, err, "Item removed from cart")
}

func (h *Handler) cartChanged(w http.ResponseWriter, r *http.Request, cart *model.Cart, err error, okMsg string) {
	if err != nil {
		status, msg := errorStatus(err)
		if wantsJSON(r) {
			writeErr(w, status, msg)
			return
		}
		h.addFlash(w, r, FlashError, msg)
		http.Redirect(w, r, "/cart", http.StatusSeeOther)
		return
	}
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, cart)
		return
	}
	h.addFlash(w, r, FlashSuccess, okMsg)
	http.Redirect(w, r, "/cart", http.StatusSeeOther)
}

// --- Checkout ---

// Checkout handles GET /checkout?shipping=
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	method := model.ShippingMethod(r.URL.Query().Get("shipping"))
	page, err := h.svc.CheckoutSummary(r.Context(), sess, method)
	if err != nil {
		h.fail(w, r, sess, err)
		return
	}
	if page.Cart.IsEmpty() {
		h.addFlash(w, r, FlashError, "Your cart is empty")
		http.Redirect(w, r, "/cart", http.StatusSeeOther)
		return
	}
	view := checkoutView{Page: page, Fields: shippingFields(prefill(page.User)), Payment: model.PaymentCreditCard}
	h.render(w, r, sess, http.StatusOK, "checkout.html", pageData{Title: "Checkout", Data: view})
}

// PlaceOrder handles POST /checkout
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid form")
		return
	}
	f := r.PostForm
	req := model.CreateOrderRequest{
		ShippingInfo: model.ShippingInfo{
			FullName:   strings.TrimSpace(f.Get("full_name")),
			Email:      strings.TrimSpace(f.Get("email")),
			Phone:      strings.TrimSpace(f.Get("phone")),
			Address:    strings.TrimSpace(f.Get("address")),
			City:       strings.TrimSpace(f.Get("city")),
			PostalCode: strings.TrimSpace(f.Get("postal_code")),
			Country:    strings.TrimSpace(f.Get("country")),
		},
		ShippingMethod: model.ShippingMethod(f.Get("shipping_method")),
		PaymentMethod:  model.PaymentMethod(f.Get("payment_method")),
		CartID:         f.Get("cart_id"),
	}

	res, err := h.svc.PlaceOrder(ctx, sess, req)
	if err == nil {
		http.Redirect(w, r, "/orders/"+res.OrderID+"/confirmation", http.StatusSeeOther)
		return
	}
	switch {
	case errors.Is(err, service.ErrNotAuthenticated):
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	case errors.Is(err, service.ErrEmptyCart):
		h.addFlash(w, r, FlashError, "Your cart is empty")
		http.Redirect(w, r, "/cart", http.StatusSeeOther)
		return
	}

	// show the form again with what the visitor typed
	page, perr := h.svc.CheckoutSummary(ctx, sess, req.ShippingMethod)
	if perr != nil {
		h.fail(w, r, sess, perr)
		return
	}
	status, msg := errorStatus(err)
	pd := pageData{Title: "Checkout"}
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		pd.Errors = verr.Fields
	} else {
		logging.FromContext(ctx).WithError(err).Warn("Checkout failed")
		pd.Flashes = []Flash{{Kind: FlashError, Message: msg}}
	}
	pd.Data = checkoutView{Page: page, Fields: shippingFields(req.ShippingInfo), Payment: req.PaymentMethod}
	h.render(w, r, sess, status, "checkout.html", pd)
}

// Confirmation handles GET /orders/{id}/confirmation
func (h *Handler) Confirmation(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	order, err := h.svc.Order(r.Context(), sess, mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, service.ErrNotAuthenticated) {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		h.fail(w, r, sess, err)
		return
	}
	h.render(w, r, sess, http.StatusOK, "confirmation.html", pageData{Title: "Order confirmed", Data: struct{ Order *model.Order }{order}})
}

func prefill(u *model.User) model.ShippingInfo {
	if u == nil {
		return model.ShippingInfo{}
	}
	var info model.ShippingInfo
	if u.FullName != nil {
		info.FullName = *u.FullName
	}
	if u.Email != nil {
		info.Email = *u.Email
	}
	if u.Phone != nil {
		info.Phone = *u.Phone
	}
	if u.Address != nil {
		info.Address = *u.Address
	}
	return info
}

func shippingFields(info model.ShippingInfo) []formField {
	return []formField{
		{Name: "full_name", Label: "Full name", Type: "text", Value: info.FullName},
		{Name: "email", Label: "Email", Type: "email", Value: info.Email},
		{Name: "phone", Label: "Phone", Type: "tel", Value: info.Phone},
		{Name: "address", Label: "Address", Type: "text", Value: info.Address},
		{Name: "city", Label: "City", Type: "text", Value: info.City},
		{Name: "postal_code", Label: "Postal code", Type: "text", Value: info.PostalCode},
		{Name: "country", Label: "Country", Type: "text", Value: info.Country},
	}
}

// --- Auth ---

// LoginPage handles GET /login
func (h *Handler) LoginPage(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	if sess.AccessToken() != "" {
		if _, err := h.svc.CurrentUser(r.Context(), sess); err == nil {
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}
	}
	next := r.URL.Query().Get("next")
	if next == "" {
		next = r.Referer()
	}
	h.render(w, r, sess, http.StatusOK, "login.html", pageData{Title: "Log in", Data: loginView{Next: next}})
}

// Login handles POST /login
// form: username, password, next
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	if err := r.ParseForm(); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid form")
		return
	}
	form := model.LoginForm{
		Username: strings.TrimSpace(r.PostForm.Get("username")),
		Password: r.PostForm.Get("password"),
	}
	next := r.PostForm.Get("next")
	if next == "" {
		next = r.Referer()
	}

	res, err := h.svc.Login(r.Context(), sess, form, next)
	if err != nil {
		view := loginView{Next: next, Username: form.Username}
		pd := pageData{Title: "Log in", Data: view}
		status := http.StatusBadRequest

		var verr *service.ValidationError
		var lerr *service.LoginError
		switch {
		case errors.As(err, &verr):
			status = http.StatusUnprocessableEntity
			pd.Errors = verr.Fields
		case errors.As(err, &lerr):
			view.Message = lerr.Message
			if lerr.Status == http.StatusUnauthorized || lerr.Status == http.StatusForbidden {
				status = lerr.Status
			} else {
				status = http.StatusBadGateway
			}
		default:
			view.Message = msgSomethingWrong
		}
		pd.Data = view
		h.render(w, r, sess, status, "login.html", pd)
		return
	}

	name := form.Username
	if res.User != nil {
		name = res.User.DisplayName()
	}
	h.addFlash(w, r, FlashSuccess, "Welcome back, "+name)
	http.Redirect(w, r, res.RedirectURL, http.StatusSeeOther)
}

func (h *Handler) loginThrottled(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	view := loginView{
		Message:  "Too many login attempts, please try again later",
		Next:     r.PostFormValue("next"),
		Username: r.PostFormValue("username"),
	}
	h.render(w, r, sess, http.StatusTooManyRequests, "login.html", pageData{Title: "Log in", Data: view})
}

// Logout handles POST /logout
// form: all=true signs out every device
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	h.svc.Logout(r.Context(), sess, r.PostFormValue("all") == "true")
	h.addFlash(w, r, FlashSuccess, "You have been logged out")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// --- JSON ---

// Suggestions handles GET /api/search/suggestions?q=
func (h *Handler) Suggestions(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	writeJSON(w, http.StatusOK, h.svc.Suggestions(r.Context(), sess, r.URL.Query().Get("q")))
}

// Me handles GET /api/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	u, err := h.svc.CurrentUser(r.Context(), sess)
	if err != nil {
		status, msg := errorStatus(err)
		writeErr(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- pages ---

// assets serves the embedded static directory. The embed root holds
// "static/", so request paths map onto it unchanged.
func assets() http.Handler {
	files := http.FileServer(http.FS(staticFS))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=86400")
		files.ServeHTTP(w, r)
	})
}

func (h *Handler) static(page, title string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.render(w, r, h.session(w, r), http.StatusOK, page, pageData{Title: title})
	}
}

func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	h.render(w, r, sess, http.StatusNotFound, "error.html", pageData{
		Title: "Not found",
		Data:  errorView{Heading: "Page not found", Message: "The page you are looking for does not exist."},
	})
}

// fail renders the error page for err.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, sess *cookieSession, err error) {
	status, msg := errorStatus(err)
	if status >= http.StatusInternalServerError {
		logging.FromContext(r.Context()).WithError(err).Error("Request failed")
	}
	heading := "Something went wrong"
	if status == http.StatusNotFound {
		heading = "Not found"
	}
	h.render(w, r, sess, status, "error.html", pageData{Title: heading, Data: errorView{Heading: heading, Message: msg}})
}

func queryInt(r *http.Request, key string, def int) int {
	if v, err := strconv.Atoi(r.URL.Query().Get(key)); err == nil {
		return v
	}
	return def
}

func formInt(r *http.Request, key string, def int) int {
	if v, err := strconv.Atoi(strings.TrimSpace(r.FormValue(key))); err == nil {
		return v
	}
	return def
}
