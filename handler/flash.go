package handler

import (
	"crypto/rand"
	"encoding/gob"
	"net/http"

	"github.com/gorilla/sessions"

	"storefront/logging"
)

const flashSessionName = "storefront_flash"

// Flash kinds.
const (
	FlashSuccess = "success"
	FlashError   = "error"
)

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Kind    string
	Message string
}

func init() {
	gob.Register(Flash{})
}

// newFlashStore signs flash cookies with secret. An empty secret gets a
// random key, which does not survive restarts.
func newFlashStore(secret string, secure bool) *sessions.CookieStore {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		_, _ = rand.Read(key)
	}
	st := sessions.NewCookieStore(key)
	st.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   300,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return st
}

func (h *Handler) addFlash(w http.ResponseWriter, r *http.Request, kind, msg string) {
	sess, err := h.flash.Get(r, flashSessionName)
	if err != nil {
		// a cookie signed with an old key; start over
		sess, _ = h.flash.New(r, flashSessionName)
	}
	sess.AddFlash(Flash{Kind: kind, Message: msg})
	if err := sess.Save(r, w); err != nil {
		logging.FromContext(r.Context()).WithError(err).Warn("Error saving flash")
	}
}

// popFlashes returns and clears the pending messages.
func (h *Handler) popFlashes(w http.ResponseWriter, r *http.Request) []Flash {
	sess, err := h.flash.Get(r, flashSessionName)
	if err != nil {
		return nil
	}
	raw := sess.Flashes()
	if len(raw) == 0 {
		return nil
	}
	if err := sess.Save(r, w); err != nil {
		logging.FromContext(r.Context()).WithError(err).Warn("Error clearing flashes")
	}
	out := make([]Flash, 0, len(raw))
	for _, f := range raw {
		if fl, ok := f.(Flash); ok {
			out = append(out, fl)
		}
	}
	return out
}
