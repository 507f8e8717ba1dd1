package handler

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/shopspring/decimal"

	"storefront/logging"
	"storefront/model"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

var funcs = template.FuncMap{
	"money": func(d decimal.Decimal) string { return "$" + d.StringFixed(2) },
	"deref": func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	},
	// seq returns 1..n for quantity pickers.
	"seq": func(n int) []int {
		out := make([]int, 0, n)
		for i := 1; i <= n; i++ {
			out = append(out, i)
		}
		return out
	},
}

var pages = []string{
	"home.html", "shop.html", "search.html", "product.html", "cart.html",
	"checkout.html", "confirmation.html", "login.html", "about.html",
	"contact.html", "error.html",
}

type renderer struct {
	templates map[string]*template.Template
}

func newRenderer() (*renderer, error) {
	r := &renderer{templates: make(map[string]*template.Template, len(pages))}
	for _, page := range pages {
		t, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+page)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", page, err)
		}
		r.templates[page] = t
	}
	return r, nil
}

// pageData is what every template receives. Data holds the page's own
// model.
type pageData struct {
	Title     string
	User      *model.User
	CartCount int
	Flashes   []Flash
	Errors    map[string]string
	Data      any
}

// render writes page with the shared header state. The template is executed
// into a buffer first so a failing template still yields a clean 500.
func (h *Handler) render(w http.ResponseWriter, r *http.Request, sess *cookieSession, status int, page string, pd pageData) {
	ctx := r.Context()
	if sess.AccessToken() != "" {
		if u, err := h.svc.CurrentUser(ctx, sess); err == nil {
			pd.User = u
		}
	}
	pd.CartCount = h.svc.CartCount(ctx, sess)
	pd.Flashes = append(h.popFlashes(w, r), pd.Flashes...)

	t, ok := h.tpl.templates[page]
	if !ok {
		logging.FromContext(ctx).WithField("page", page).Error("Unknown template")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", pd); err != nil {
		logging.FromContext(ctx).WithError(err).WithField("page", page).Error("Error rendering template")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
