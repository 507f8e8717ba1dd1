// Package apiclient is the HTTP client the storefront uses to talk to the
// backend API. It unwraps the backend's response envelope and transparently
// refreshes an expired access token once per request.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"storefront/model"
)

const (
	defaultTimeout = 30 * time.Second
	maxBodyBytes   = 8 << 20

	refreshEndpoint = "/api/v1/auth/refresh"
)

// authEndpoints never trigger a token refresh on 401.
var authEndpoints = []string{"/auth/login", "/auth/refresh", "/auth/register"}

// TokenStore is where a request's credentials live. The handler layer
// backs it with the visitor's cookies.
type TokenStore interface {
	AccessToken() string
	RefreshToken() string
	SetTokens(tokens model.AuthTokens)
}

// Observer receives per-call measurements.
type Observer interface {
	ObserveRequest(method string, status int, elapsed time.Duration)
	ObserveRefresh(ok bool)
}

type nopObserver struct{}

func (nopObserver) ObserveRequest(string, int, time.Duration) {}
func (nopObserver) ObserveRefresh(bool)                       {}

type Config struct {
	BaseURL        string
	Timeout        time.Duration
	DefaultHeaders map[string]string
	HTTPClient     *http.Client
	Logger         logrus.FieldLogger
	Observer       Observer
}

// Response is the backend envelope {status_code, message, data, meta}.
type Response struct {
	Success    bool
	StatusCode int
	Message    string
	Data       json.RawMessage
	Meta       json.RawMessage
}

type envelope struct {
	StatusCode int             `json:"status_code"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	Meta       json.RawMessage `json:"meta"`
}

type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	log        logrus.FieldLogger
	observer   Observer

	mu      sync.RWMutex
	headers map[string]string

	refreshes singleflight.Group
}

func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	observer := cfg.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	headers := make(map[string]string, len(cfg.DefaultHeaders))
	for k, v := range cfg.DefaultHeaders {
		headers[k] = v
	}
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		timeout:    timeout,
		httpClient: httpClient,
		log:        log.WithField("component", "apiclient"),
		observer:   observer,
		headers:    headers,
	}
}

type request struct {
	method  string
	path    string
	params  map[string]any
	headers map[string]string
	tokens  TokenStore
}

type RequestOption func(*request)

// WithParams appends params to the query string. Nil values are skipped.
func WithParams(params map[string]any) RequestOption {
	return func(r *request) { r.params = params }
}

func WithHeader(key, value string) RequestOption {
	return func(r *request) {
		if r.headers == nil {
			r.headers = map[string]string{}
		}
		r.headers[key] = value
	}
}

// WithTokens authorizes the request with the store's access token and lets
// the client refresh through it.
func WithTokens(tokens TokenStore) RequestOption {
	return func(r *request) { r.tokens = tokens }
}

func (c *Client) Get(ctx context.Context, path string, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, http.MethodGet, path, nil, opts...)
}

func (c *Client) Post(ctx context.Context, path string, body any, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, http.MethodPost, path, body, opts...)
}

func (c *Client) Patch(ctx context.Context, path string, body any, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, http.MethodPatch, path, body, opts...)
}

func (c *Client) Delete(ctx context.Context, path string, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, http.MethodDelete, path, nil, opts...)
}

// Do sends one request to the backend. A 401 from a non-auth endpoint is
// answered with a single token refresh and, if that worked, a single retry
// carrying the new bearer token. Every other failure is an *APIError.
func (c *Client) Do(ctx context.Context, method, path string, body any, opts ...RequestOption) (*Response, error) {
	req := &request{method: method, path: path}
	for _, opt := range opts {
		opt(req)
	}

	payload, err := encodeBody(body)
	if err != nil {
		return nil, err
	}

	status, raw, err := c.send(ctx, req, payload, "")
	if err != nil {
		return nil, err
	}

	if status == http.StatusUnauthorized && !isAuthEndpoint(path) {
		c.log.Info("Access token expired, attempting to refresh...")
		tokens, rerr := c.Refresh(ctx, req.tokens)
		if rerr == nil {
			c.log.Info("Token refreshed successfully, retrying request...")
			status, raw, err = c.send(ctx, req, payload, tokens.AccessToken)
			if err != nil {
				return nil, err
			}
		} else {
			c.log.WithError(rerr).Error("Failed to refresh token")
		}
	}

	if status < 200 || status >= 300 {
		return nil, newAPIError(status, raw)
	}

	var env envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			c.log.WithError(err).Error("Response parsing error")
		}
	}
	return &Response{
		Success:    true,
		StatusCode: status,
		Message:    env.Message,
		Data:       env.Data,
		Meta:       env.Meta,
	}, nil
}

// send performs a single HTTP round trip and returns the status and body.
// A non-empty bearer overrides any other Authorization source.
func (c *Client) send(ctx context.Context, req *request, payload []byte, bearer string) (int, []byte, error) {
	target, err := c.buildURL(req.path, req.params)
	if err != nil {
		return 0, nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, bodyReader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	c.mu.RLock()
	for k, v := range c.headers {
		httpReq.Header.Set(k, v)
	}
	c.mu.RUnlock()
	for k, v := range req.headers {
		httpReq.Header.Set(k, v)
	}
	switch {
	case bearer != "":
		httpReq.Header.Set("Authorization", "Bearer "+bearer)
	case httpReq.Header.Get("Authorization") == "" && req.tokens != nil:
		if access := req.tokens.AccessToken(); access != "" {
			httpReq.Header.Set("Authorization", "Bearer "+access)
		}
	}

	c.log.Infof("Request: %s %s", req.method, target)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.observer.ObserveRequest(req.method, 0, time.Since(start))
		return 0, nil, transportError(ctx, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if ctx.Err() != nil {
			c.observer.ObserveRequest(req.method, 0, time.Since(start))
			return 0, nil, transportError(ctx, err)
		}
		c.log.WithError(err).Error("Response parsing error")
		raw = nil
	}
	c.observer.ObserveRequest(req.method, resp.StatusCode, time.Since(start))
	return resp.StatusCode, raw, nil
}

// Refresh exchanges the store's refresh token for a new access token and
// writes the result back into the store. Concurrent refreshes of the same
// token share one backend call.
func (c *Client) Refresh(ctx context.Context, tokens TokenStore) (model.AuthTokens, error) {
	if tokens == nil {
		return model.AuthTokens{}, ErrNoRefreshToken
	}
	refreshToken := tokens.RefreshToken()
	if refreshToken == "" {
		return model.AuthTokens{}, ErrNoRefreshToken
	}

	// The shared call outlives any single caller; c.timeout still bounds it.
	shared := context.WithoutCancel(ctx)
	ch := c.refreshes.DoChan(refreshToken, func() (any, error) {
		fresh, err := c.refresh(shared, refreshToken)
		c.observer.ObserveRefresh(err == nil)
		return fresh, err
	})
	select {
	case <-ctx.Done():
		return model.AuthTokens{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return model.AuthTokens{}, res.Err
		}
		fresh := res.Val.(model.AuthTokens)
		tokens.SetTokens(fresh)
		return fresh, nil
	}
}

func (c *Client) refresh(ctx context.Context, refreshToken string) (model.AuthTokens, error) {
	target, err := c.buildURL(refreshEndpoint, nil)
	if err != nil {
		return model.AuthTokens{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target, nil)
	if err != nil {
		return model.AuthTokens{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.AddCookie(&http.Cookie{Name: "refresh_token", Value: refreshToken})

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.observer.ObserveRequest(http.MethodPost, 0, time.Since(start))
		return model.AuthTokens{}, transportError(ctx, err)
	}
	defer resp.Body.Close()
	c.observer.ObserveRequest(http.MethodPost, resp.StatusCode, time.Since(start))

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := newAPIError(resp.StatusCode, raw)
		if apiErr.Detail != nil && apiErr.Detail.Message != "" {
			apiErr.Message = apiErr.Detail.Message
		}
		return model.AuthTokens{}, apiErr
	}

	var env struct {
		StatusCode int              `json:"status_code"`
		Data       model.AuthTokens `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return model.AuthTokens{}, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	if env.StatusCode != http.StatusOK || env.Data.AccessToken == "" {
		return model.AuthTokens{}, ErrRefreshFailed
	}

	// The backend may rotate the refresh token through Set-Cookie only.
	if env.Data.RefreshToken == "" {
		for _, ck := range resp.Cookies() {
			if ck.Name == "refresh_token" && ck.Value != "" {
				env.Data.RefreshToken = ck.Value
			}
		}
	}
	return env.Data, nil
}

// SetDefaultHeader adds a header sent with every request.
func (c *Client) SetDefaultHeader(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.headers[key] = value
}

func (c *Client) buildURL(path string, params map[string]any) (string, error) {
	target := c.baseURL + path
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		target = path
	}
	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("invalid request url %q: %w", target, err)
	}
	if len(params) > 0 {
		q := u.Query()
		for k, v := range params {
			if v == nil {
				continue
			}
			q.Set(k, fmt.Sprint(v))
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Decode unmarshals the envelope data into T.
func Decode[T any](resp *Response) (T, error) {
	var out T
	if resp == nil || len(resp.Data) == 0 || string(resp.Data) == "null" {
		return out, ErrNoData
	}
	if err := json.Unmarshal(resp.Data, &out); err != nil {
		return out, fmt.Errorf("failed to decode response data: %w", err)
	}
	return out, nil
}

func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case string:
		return []byte(b), nil
	default:
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		return payload, nil
	}
}

func isAuthEndpoint(path string) bool {
	for _, p := range authEndpoints {
		if strings.Contains(path, p) {
			return true
		}
	}
	return false
}

func transportError(ctx context.Context, err error) *APIError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &APIError{Status: http.StatusRequestTimeout, Message: "Request timeout", Err: err}
	}
	return &APIError{Status: 0, Message: "Network error", Err: err}
}
