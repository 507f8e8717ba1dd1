package handler

import (
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"storefront/model"
)

const (
	sessionCookie = "session_id"
	accessCookie  = "access_token"
	refreshCookie = "refresh_token"
	sessionHeader = "X-Session-ID"

	defaultAccessTTL  = 900 * time.Second
	defaultRefreshTTL = 7 * 24 * time.Hour
)

// cookieSession is one request's view of the visitor. Token updates are
// written straight to the response as cookies, so they must happen before
// the body is written.
type cookieSession struct {
	w      http.ResponseWriter
	id     string
	secure bool
	now    func() time.Time

	mu      sync.Mutex
	access  string
	refresh string
}

// newSession reads the session id from the cookie or the X-Session-ID
// header, minting a new one when neither carries a valid uuid.
func newSession(w http.ResponseWriter, r *http.Request, secure bool, ttl time.Duration) *cookieSession {
	s := &cookieSession{w: w, secure: secure, now: time.Now}

	if c, err := r.Cookie(sessionCookie); err == nil && validSessionID(c.Value) {
		s.id = c.Value
	} else if h := r.Header.Get(sessionHeader); validSessionID(h) {
		s.id = h
	} else {
		s.id = uuid.NewString()
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    s.id,
			Path:     "/",
			MaxAge:   int(ttl.Seconds()),
			HttpOnly: true,
			Secure:   secure,
			SameSite: http.SameSiteLaxMode,
		})
	}

	if c, err := r.Cookie(accessCookie); err == nil {
		s.access = c.Value
	}
	if c, err := r.Cookie(refreshCookie); err == nil {
		s.refresh = c.Value
	}
	return s
}

func validSessionID(v string) bool {
	if v == "" {
		return false
	}
	_, err := uuid.Parse(v)
	return err == nil
}

func (s *cookieSession) ID() string { return s.id }

func (s *cookieSession) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.access
}

func (s *cookieSession) RefreshToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refresh
}

// SetTokens stores a freshly issued pair. A response without a refresh
// token keeps the current one.
func (s *cookieSession) SetTokens(t model.AuthTokens) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.access = t.AccessToken
	s.setAuthCookie(accessCookie, t.AccessToken, s.accessTTL(t))

	if t.RefreshToken != "" {
		s.refresh = t.RefreshToken
		ttl := defaultRefreshTTL
		if t.RefreshExpiresIn > 0 {
			ttl = time.Duration(t.RefreshExpiresIn) * time.Second
		}
		s.setAuthCookie(refreshCookie, t.RefreshToken, ttl)
	}
}

func (s *cookieSession) ClearTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.access, s.refresh = "", ""
	s.setAuthCookie(accessCookie, "", -1)
	s.setAuthCookie(refreshCookie, "", -1)
}

// accessTTL is expires_in when the backend sent it, then the token's own
// exp claim, then the default.
func (s *cookieSession) accessTTL(t model.AuthTokens) time.Duration {
	if t.ExpiresIn > 0 {
		return time.Duration(t.ExpiresIn) * time.Second
	}
	if exp, ok := tokenExpiry(t.AccessToken); ok {
		if ttl := exp.Sub(s.now()); ttl > 0 {
			return ttl
		}
	}
	return defaultAccessTTL
}

// tokenExpiry reads exp without verifying the signature. The value only
// sizes the cookie.
func tokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// setAuthCookie writes a token cookie; ttl < 0 deletes it.
func (s *cookieSession) setAuthCookie(name, value string, ttl time.Duration) {
	maxAge := int(ttl.Seconds())
	if ttl < 0 {
		maxAge = -1
	}
	http.SetCookie(s.w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteStrictMode,
	})
}
