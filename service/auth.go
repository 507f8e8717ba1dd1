package service

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"storefront/apiclient"
	"storefront/backend"
	"storefront/logging"
	"storefront/model"
	"storefront/store"
)

const (
	msgInvalidCredentials = "Invalid username or password"
	msgAccountDisabled    = "Account is disabled"
	msgLoginFailed        = "Something went wrong, please try again"
)

// LoginError is a failed login, carrying the message shown on the form.
type LoginError struct {
	Status  int
	Message string
	Err     error
}

func (e *LoginError) Error() string { return e.Message }
func (e *LoginError) Unwrap() error { return e.Err }

// Login authenticates the visitor, stores the tokens in the session and
// caches the profile. The profile fetch may fail; the login still succeeds.
func (s *Service) Login(ctx context.Context, sess Session, form model.LoginForm, referer string) (*LoginResult, error) {
	if err := validateStruct(form); err != nil {
		return nil, err
	}
	log := logging.FromContext(ctx).WithField("username", form.Username)

	res, err := s.backend.Login(ctx, form)
	if err != nil {
		log.WithError(err).Info("Login rejected")
		return nil, loginError(err)
	}
	if res.AccessToken == "" {
		return nil, &LoginError{Status: http.StatusUnauthorized, Message: msgInvalidCredentials}
	}
	sess.SetTokens(res.AuthTokens)
	// the backend may merge the guest cart into the user's
	if err := s.store.DeleteCart(ctx, sess.ID()); err != nil {
		log.WithError(err).Warn("Error clearing cached cart")
	}

	out := &LoginResult{RedirectURL: redirectTarget(referer)}
	user, err := s.backend.Me(ctx, backend.Caller{SessionID: sess.ID()}, res.AccessToken)
	if err != nil {
		log.WithError(err).Warn("Failed to fetch user after login")
		return out, nil
	}
	if err := s.store.SaveUser(ctx, sess.ID(), user); err != nil {
		log.WithError(err).Warn("Error caching user")
	}
	out.User = user
	return out, nil
}

func loginError(err error) *LoginError {
	var apiErr *apiclient.APIError
	if !errors.As(err, &apiErr) {
		return &LoginError{Message: msgLoginFailed, Err: err}
	}
	switch apiErr.Status {
	case http.StatusUnauthorized:
		msg := msgInvalidCredentials
		if apiErr.Detail != nil && apiErr.Detail.Message != "" {
			msg = apiErr.Detail.Message
		}
		return &LoginError{Status: apiErr.Status, Message: msg, Err: err}
	case http.StatusForbidden:
		return &LoginError{Status: apiErr.Status, Message: msgAccountDisabled, Err: err}
	}
	return &LoginError{Status: apiErr.Status, Message: msgLoginFailed, Err: err}
}

// redirectTarget is the path of referer, or "/" when there is none or it
// points back at the login page. Only a local absolute path is returned:
// anything a browser could read as another host ("//h", "/\h") is dropped.
func redirectTarget(referer string) string {
	if referer == "" || strings.Contains(referer, "/login") || strings.Contains(referer, "\\") {
		return "/"
	}
	u, err := url.Parse(referer)
	if err != nil || u.Path == "" || !strings.HasPrefix(u.Path, "/") {
		return "/"
	}
	if strings.HasPrefix(u.Path, "//") || strings.Contains(u.Path, "\\") {
		return "/"
	}
	return u.Path
}

// CurrentUser returns the cached profile of a logged in visitor, fetching it
// when nothing is cached. A rejected token logs the visitor out.
func (s *Service) CurrentUser(ctx context.Context, sess Session) (*model.User, error) {
	if sess.AccessToken() == "" {
		return nil, ErrNotAuthenticated
	}
	if u, err := s.store.GetUser(ctx, sess.ID()); err == nil {
		return u, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		logging.FromContext(ctx).WithError(err).Warn("Error loading cached user")
	}

	u, err := s.backend.Me(ctx, caller(sess), "")
	if err != nil {
		if apiclient.IsStatus(err, http.StatusUnauthorized) {
			sess.ClearTokens()
			s.forgetUser(ctx, sess)
			return nil, ErrNotAuthenticated
		}
		return nil, err
	}
	if err := s.store.SaveUser(ctx, sess.ID(), u); err != nil {
		logging.FromContext(ctx).WithError(err).Warn("Error caching user")
	}
	return u, nil
}

// Logout revokes the tokens at the backend when it can. Local state is
// cleared either way.
func (s *Service) Logout(ctx context.Context, sess Session, allDevices bool) {
	if err := s.backend.Logout(ctx, caller(sess), allDevices); err != nil {
		logging.FromContext(ctx).WithError(err).Warn("Error calling logout API")
	}
	sess.ClearTokens()
	s.forgetUser(ctx, sess)
	if err := s.store.DeleteCart(ctx, sess.ID()); err != nil {
		logging.FromContext(ctx).WithError(err).Warn("Error clearing cached cart")
	}
}

func (s *Service) forgetUser(ctx context.Context, sess Session) {
	if err := s.store.DeleteUser(ctx, sess.ID()); err != nil {
		logging.FromContext(ctx).WithError(err).Warn("Error clearing cached user")
	}
}
