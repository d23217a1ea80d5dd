package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/optionsauth/internal/client/models"
	"github.com/dmitrijs2005/optionsauth/internal/client/repositories/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
)

const (
	apiPrefix = "auth/v1"

	// sessions this close to expiry are refreshed before being handed out
	expiryMargin = 10 * time.Second

	maxResponseBody = 1 << 20

	tracerName = "github.com/dmitrijs2005/optionsauth/internal/client/authapi"
)

type HTTPClient struct {
	baseURL    *url.URL
	apiKey     string
	http       *http.Client
	store      storage.Store
	storageKey string
	navigator  Navigator
	location   string
	now        func() time.Time
	tracer     trace.Tracer

	// mu serialises read-refresh-write cycles on the stored session
	mu         sync.Mutex
	urlChecked bool
}

type Option func(*HTTPClient)

func WithHTTPClient(c *http.Client) Option {
	return func(h *HTTPClient) { h.http = c }
}

func WithNavigator(n Navigator) Option {
	return func(h *HTTPClient) { h.navigator = n }
}

// WithLocation sets the current page location. GetSession inspects it once
// for an OAuth redirect result (?code= or #access_token=).
func WithLocation(loc string) Option {
	return func(h *HTTPClient) { h.location = loc }
}

func WithClock(now func() time.Time) Option {
	return func(h *HTTPClient) { h.now = now }
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(h *HTTPClient) { h.tracer = tp.Tracer(tracerName) }
}

func WithStorageKey(key string) Option {
	return func(h *HTTPClient) { h.storageKey = key }
}

// NewHTTPClient builds a client for the service at endpointURL
// (e.g. https://<ref>.supabase.co) authenticating with the public apiKey.
// Sessions are kept in store.
func NewHTTPClient(endpointURL, apiKey string, store storage.Store, opts ...Option) (*HTTPClient, error) {
	u, err := url.Parse(strings.TrimSpace(endpointURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEndpoint, endpointURL)
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingAPIKey
	}

	c := &HTTPClient{
		baseURL:    u,
		apiKey:     apiKey,
		http:       &http.Client{Timeout: 10 * time.Second},
		store:      store,
		storageKey: DefaultStorageKey(u),
		now:        time.Now,
		tracer:     otel.Tracer(tracerName),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// DefaultStorageKey derives the session key from the project reference,
// the first label of the endpoint host.
func DefaultStorageKey(u *url.URL) string {
	ref, _, _ := strings.Cut(u.Hostname(), ".")
	return fmt.Sprintf("sb-%s-auth-token", ref)
}

func (c *HTTPClient) StorageKey() string { return c.storageKey }

func (c *HTTPClient) verifierKey() string { return c.storageKey + "-code-verifier" }

func (c *HTTPClient) startSpan(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, "auth."+op, trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (c *HTTPClient) GetSession(ctx context.Context) (s *models.Session, err error) {
	ctx, span := c.startSpan(ctx, "get_session")
	defer func() { endSpan(span, err) }()

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.detectSessionInURL(ctx); err != nil {
		return nil, err
	}

	s, err = c.loadSession(ctx)
	if err != nil || s == nil {
		return nil, err
	}
	if !s.Expired(c.now(), expiryMargin) {
		return s, nil
	}

	if s.RefreshToken == "" {
		return nil, c.removeSession(ctx)
	}
	span.AddEvent("refresh")
	refreshed, err := c.refresh(ctx, s.RefreshToken)
	if err != nil {
		if _, ok := IsAuthError(err); ok {
			// the service rejected the refresh token; the stored session is dead
			_ = c.removeSession(ctx)
		}
		return nil, err
	}
	return refreshed, nil
}

func (c *HTTPClient) SignInWithPassword(ctx context.Context, email, password string) (resp *AuthResponse, err error) {
	ctx, span := c.startSpan(ctx, "sign_in_with_password")
	defer func() { endSpan(span, err) }()

	var s models.Session
	q := url.Values{"grant_type": {"password"}}
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "token", q, body, "", &s); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.saveSession(ctx, &s); err != nil {
		return nil, err
	}
	return &AuthResponse{User: s.User, Session: &s}, nil
}

// signUpResponse is either a session (autoconfirm) or a bare user record
// (confirmation pending).
type signUpResponse struct {
	models.Session
	ID    string `json:"id"`
	Email string `json:"email"`
}

func (c *HTTPClient) SignUp(ctx context.Context, email, password string) (resp *AuthResponse, err error) {
	ctx, span := c.startSpan(ctx, "sign_up")
	defer func() { endSpan(span, err) }()

	var r signUpResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "signup", nil, body, "", &r); err != nil {
		return nil, err
	}

	if r.AccessToken == "" {
		span.SetAttributes(attribute.Bool("auth.confirmation_pending", true))
		return &AuthResponse{}, nil
	}

	s := r.Session
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.saveSession(ctx, &s); err != nil {
		return nil, err
	}
	return &AuthResponse{User: s.User, Session: &s}, nil
}

func (c *HTTPClient) SignInWithOAuth(ctx context.Context, provider Provider, opts OAuthOptions) (resp *OAuthResponse, err error) {
	ctx, span := c.startSpan(ctx, "sign_in_with_oauth", attribute.String("auth.provider", string(provider)))
	defer func() { endSpan(span, err) }()

	if !provider.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, provider)
	}
	scopes := opts.Scopes
	if scopes == "" {
		scopes = DefaultScopes
	}

	verifier := oauth2.GenerateVerifier()
	if err := c.store.Set(ctx, c.verifierKey(), []byte(verifier)); err != nil {
		return nil, fmt.Errorf("store code verifier: %w", err)
	}

	q := url.Values{
		"provider":              {string(provider)},
		"scopes":                {scopes},
		"code_challenge":        {oauth2.S256ChallengeFromVerifier(verifier)},
		"code_challenge_method": {"s256"},
	}
	if opts.RedirectTo != "" {
		q.Set("redirect_to", opts.RedirectTo)
	}
	u := c.endpoint("authorize", q)

	if c.navigator != nil {
		if err := c.navigator.Navigate(ctx, u); err != nil {
			return nil, fmt.Errorf("navigate: %w", err)
		}
	}
	return &OAuthResponse{Provider: provider, URL: u}, nil
}

// SignOut revokes the session remotely and always drops it locally. A
// session the service no longer knows about is not an error.
func (c *HTTPClient) SignOut(ctx context.Context) (err error) {
	ctx, span := c.startSpan(ctx, "sign_out")
	defer func() { endSpan(span, err) }()

	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.loadSession(ctx)
	if err != nil {
		return err
	}
	if s == nil {
		return nil
	}

	var remoteErr error
	if s.AccessToken != "" {
		remoteErr = c.do(ctx, http.MethodPost, "logout", url.Values{"scope": {"local"}}, nil, s.AccessToken, nil)
		if ae, ok := IsAuthError(remoteErr); ok {
			switch ae.Status {
			case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
				remoteErr = nil
			}
		}
	}

	if err := c.removeSession(ctx); err != nil {
		return err
	}
	return remoteErr
}

// detectSessionInURL completes an OAuth round-trip whose result is encoded
// in the current location. It only looks once per client.
func (c *HTTPClient) detectSessionInURL(ctx context.Context) error {
	if c.urlChecked || c.location == "" {
		return nil
	}
	c.urlChecked = true

	loc, err := url.Parse(c.location)
	if err != nil {
		return nil
	}
	params := loc.Query()
	if frag, err := url.ParseQuery(loc.Fragment); err == nil {
		for k, v := range frag {
			if _, ok := params[k]; !ok {
				params[k] = v
			}
		}
	}

	if desc := params.Get("error_description"); desc != "" {
		return &AuthError{Status: http.StatusBadRequest, Code: params.Get("error"), Message: desc}
	}

	if code := params.Get("code"); code != "" {
		_, err := c.exchangeCode(ctx, code)
		return err
	}

	if token := params.Get("access_token"); token != "" {
		return c.sessionFromImplicitGrant(ctx, params)
	}
	return nil
}

func (c *HTTPClient) exchangeCode(ctx context.Context, code string) (*models.Session, error) {
	verifier, err := c.store.Get(ctx, c.verifierKey())
	if err != nil {
		return nil, err
	}
	if verifier == nil {
		return nil, ErrMissingCodeVerifier
	}

	var s models.Session
	body := map[string]string{"auth_code": code, "code_verifier": string(verifier)}
	if err := c.do(ctx, http.MethodPost, "token", url.Values{"grant_type": {"pkce"}}, body, "", &s); err != nil {
		return nil, err
	}
	return &s, c.completeCodeExchange(ctx, &s)
}

func (c *HTTPClient) sessionFromImplicitGrant(ctx context.Context, params url.Values) error {
	s := &models.Session{
		AccessToken:  params.Get("access_token"),
		RefreshToken: params.Get("refresh_token"),
		TokenType:    params.Get("token_type"),
	}
	s.ExpiresIn = parseInt64(params.Get("expires_in"))
	s.ExpiresAt = parseInt64(params.Get("expires_at"))

	var u models.User
	if err := c.do(ctx, http.MethodGet, "user", nil, nil, s.AccessToken, &u); err != nil {
		return err
	}
	s.User = &u
	return c.saveSession(ctx, s)
}

func (c *HTTPClient) refresh(ctx context.Context, refreshToken string) (*models.Session, error) {
	var s models.Session
	q := url.Values{"grant_type": {"refresh_token"}}
	if err := c.do(ctx, http.MethodPost, "token", q, map[string]string{"refresh_token": refreshToken}, "", &s); err != nil {
		return nil, err
	}
	return &s, c.saveSession(ctx, &s)
}

func (c *HTTPClient) endpoint(path string, q url.Values) string {
	u := c.baseURL.JoinPath(apiPrefix, path)
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// do performs one API call. token overrides the bearer token (the api key
// is used otherwise); out, when non-nil, receives the decoded JSON body.
func (c *HTTPClient) do(ctx context.Context, method, path string, q url.Values, body any, token string, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, q), rdr)
	if err != nil {
		return err
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token == "" {
		token = c.apiKey
	}
	(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}).SetAuthHeader(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return mapHTTPError(resp.StatusCode, data)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func parseInt64(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}
