package authapi

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/optionsauth/internal/client/authapi/authtest"
	"github.com/dmitrijs2005/optionsauth/internal/client/models"
	"github.com/dmitrijs2005/optionsauth/internal/client/repositories/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

const testKey = "anon-key"

const redirectURL = "chrome-extension://abcdefghijklmnopabcdefghijklmnop/options.html"

func newStore(t *testing.T) storage.Store {
	t.Helper()
	db, err := storage.OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return storage.NewSQLiteStore(db, storage.AreaLocal)
}

func newServer(t *testing.T, opts ...authtest.Option) *authtest.Server {
	t.Helper()
	srv := authtest.NewServer(testKey, opts...)
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, srv *authtest.Server, store storage.Store, opts ...Option) *HTTPClient {
	t.Helper()
	c, err := NewHTTPClient(srv.URL, testKey, store, opts...)
	require.NoError(t, err)
	return c
}

// followAuthorize plays the browser: it opens the authorize URL and returns
// the location the service redirects back to.
func followAuthorize(t *testing.T, authorizeURL string) string {
	t.Helper()
	hc := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
	resp, err := hc.Get(authorizeURL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)
	return resp.Header.Get("Location")
}

func TestNewHTTPClient_Validation(t *testing.T) {
	store := newStore(t)

	_, err := NewHTTPClient("", testKey, store)
	require.ErrorIs(t, err, ErrInvalidEndpoint)

	_, err = NewHTTPClient("project.supabase.co", testKey, store)
	require.ErrorIs(t, err, ErrInvalidEndpoint)

	_, err = NewHTTPClient("https://project.supabase.co", "  ", store)
	require.ErrorIs(t, err, ErrMissingAPIKey)

	c, err := NewHTTPClient("https://abcd.supabase.co", testKey, store)
	require.NoError(t, err)
	assert.Equal(t, "sb-abcd-auth-token", c.StorageKey())
}

func TestSignInWithPassword_SuccessPersistsSession(t *testing.T) {
	srv := newServer(t)
	id := srv.AddUser("a@b.com", "secret1")
	store := newStore(t)
	c := newClient(t, srv, store)
	ctx := context.Background()

	resp, err := c.SignInWithPassword(ctx, "a@b.com", "secret1")
	require.NoError(t, err)
	require.NotNil(t, resp.User)
	assert.Equal(t, id, resp.User.ID)
	assert.Equal(t, "a@b.com", resp.User.Email)
	assert.NotEmpty(t, resp.Session.AccessToken)

	var stored models.Session
	ok, err := storage.GetJSON(ctx, store, c.StorageKey(), &stored)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, resp.Session.AccessToken, stored.AccessToken)

	s, err := c.GetSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, id, s.User.ID)
}

func TestSignInWithPassword_InvalidCredentials(t *testing.T) {
	srv := newServer(t)
	srv.AddUser("a@b.com", "secret1")
	c := newClient(t, srv, newStore(t))

	resp, err := c.SignInWithPassword(context.Background(), "a@b.com", "wrong")
	require.Nil(t, resp)

	ae, ok := IsAuthError(err)
	require.True(t, ok, "want *AuthError, got %v", err)
	assert.Equal(t, http.StatusBadRequest, ae.Status)
	assert.Equal(t, "invalid_credentials", ae.Code)
	assert.Equal(t, "Invalid login credentials", ae.Error())
}

func TestSignUp_ConfirmationPendingReturnsNoUser(t *testing.T) {
	srv := newServer(t)
	store := newStore(t)
	c := newClient(t, srv, store)
	ctx := context.Background()

	resp, err := c.SignUp(ctx, "new@b.com", "pw1234")
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Nil(t, resp.User)
	assert.Nil(t, resp.Session)

	s, err := c.GetSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, s)

	_, err = c.SignInWithPassword(ctx, "new@b.com", "pw1234")
	require.EqualError(t, err, "Email not confirmed")

	require.True(t, srv.Confirm("new@b.com"))
	_, err = c.SignInWithPassword(ctx, "new@b.com", "pw1234")
	require.NoError(t, err)
}

func TestSignUp_AutoConfirmOpensSession(t *testing.T) {
	srv := newServer(t, authtest.WithAutoConfirm(true))
	c := newClient(t, srv, newStore(t))

	resp, err := c.SignUp(context.Background(), "new@b.com", "pw1234")
	require.NoError(t, err)
	require.NotNil(t, resp.User)
	assert.Equal(t, "new@b.com", resp.User.Email)

	s, err := c.GetSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, s)
}

func TestSignUp_DuplicateUser(t *testing.T) {
	srv := newServer(t)
	srv.AddUser("a@b.com", "secret1")
	c := newClient(t, srv, newStore(t))

	_, err := c.SignUp(context.Background(), "a@b.com", "secret1")
	ae, ok := IsAuthError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnprocessableEntity, ae.Status)
	assert.Equal(t, "User already registered", ae.Message)
}

func TestGetSession_NoSession(t *testing.T) {
	srv := newServer(t)
	c := newClient(t, srv, newStore(t))

	s, err := c.GetSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestGetSession_RefreshesExpiredSession(t *testing.T) {
	srv := newServer(t)
	srv.AddUser("a@b.com", "secret1")
	store := newStore(t)
	now := time.Now()
	c := newClient(t, srv, store, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	first, err := c.SignInWithPassword(ctx, "a@b.com", "secret1")
	require.NoError(t, err)
	tokenCalls := srv.Calls("POST /auth/v1/token")

	now = now.Add(2 * time.Hour)
	s, err := c.GetSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.NotEqual(t, first.Session.RefreshToken, s.RefreshToken)
	assert.Equal(t, tokenCalls+1, srv.Calls("POST /auth/v1/token"))

	// the refreshed session is what gets persisted
	var stored models.Session
	_, err = storage.GetJSON(ctx, store, c.StorageKey(), &stored)
	require.NoError(t, err)
	assert.Equal(t, s.RefreshToken, stored.RefreshToken)
}

func TestGetSession_RejectedRefreshDropsSession(t *testing.T) {
	srv := newServer(t)
	srv.AddUser("a@b.com", "secret1")
	store := newStore(t)
	now := time.Now()
	c := newClient(t, srv, store, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	_, err := c.SignInWithPassword(ctx, "a@b.com", "secret1")
	require.NoError(t, err)

	srv.RevokeAll()
	now = now.Add(2 * time.Hour)

	s, err := c.GetSession(ctx)
	require.Nil(t, s)
	_, ok := IsAuthError(err)
	require.True(t, ok)

	raw, err := store.Get(ctx, c.StorageKey())
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestGetSession_ExpiredWithoutRefreshTokenIsDropped(t *testing.T) {
	srv := newServer(t)
	store := newStore(t)
	c := newClient(t, srv, store)
	ctx := context.Background()

	require.NoError(t, storage.SetJSON(ctx, store, c.StorageKey(), models.Session{
		AccessToken: "x",
		ExpiresAt:   time.Now().Add(-time.Minute).Unix(),
	}))

	s, err := c.GetSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, s)

	raw, err := store.Get(ctx, c.StorageKey())
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestOAuth_PKCERoundTrip(t *testing.T) {
	srv := newServer(t)
	store := newStore(t)
	ctx := context.Background()

	var navigated string
	c := newClient(t, srv, store, WithNavigator(NavigatorFunc(func(_ context.Context, u string) error {
		navigated = u
		return nil
	})))

	resp, err := c.SignInWithOAuth(ctx, ProviderGitHub, OAuthOptions{RedirectTo: redirectURL})
	require.NoError(t, err)
	require.Equal(t, resp.URL, navigated)

	u, err := url.Parse(resp.URL)
	require.NoError(t, err)
	assert.Equal(t, "/auth/v1/authorize", u.Path)
	assert.Equal(t, "github", u.Query().Get("provider"))
	assert.Equal(t, "email", u.Query().Get("scopes"))
	assert.Equal(t, redirectURL, u.Query().Get("redirect_to"))
	assert.Equal(t, "s256", u.Query().Get("code_challenge_method"))
	assert.NotEmpty(t, u.Query().Get("code_challenge"))

	// the OAuth call itself never produces a session
	s, err := c.GetSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, s)

	location := followAuthorize(t, resp.URL)
	require.True(t, strings.HasPrefix(location, redirectURL+"?code="), location)

	// next page load, same storage
	reloaded := newClient(t, srv, store, WithLocation(location))
	s, err = reloaded.GetSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "github-user@example.com", s.User.Email)
	assert.Equal(t, "github", s.User.AppMetadata.Provider)

	verifier, err := store.Get(ctx, reloaded.verifierKey())
	require.NoError(t, err)
	assert.Nil(t, verifier)

	// the location is only looked at once
	s, err = reloaded.GetSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, 1, srv.Calls("POST /auth/v1/token"))
}

// batchStore records Apply calls and can fail them.
type batchStore struct {
	storage.Store
	batches  []storage.Batch
	applyErr error
}

func (s *batchStore) Apply(ctx context.Context, b storage.Batch) error {
	s.batches = append(s.batches, b)
	if s.applyErr != nil {
		return s.applyErr
	}
	return s.Store.Apply(ctx, b)
}

func TestOAuth_CodeExchangeWritesOnce(t *testing.T) {
	tests := []struct {
		name        string
		applyErr    error
		wantSession bool
	}{
		{name: "committed", wantSession: true},
		{name: "write fails", applyErr: errors.New("disk full")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t)
			store := &batchStore{Store: newStore(t), applyErr: tt.applyErr}
			ctx := context.Background()

			c := newClient(t, srv, store, WithNavigator(NavigatorFunc(func(context.Context, string) error { return nil })))
			resp, err := c.SignInWithOAuth(ctx, ProviderGitHub, OAuthOptions{RedirectTo: redirectURL})
			require.NoError(t, err)
			location := followAuthorize(t, resp.URL)

			reloaded := newClient(t, srv, store, WithLocation(location))
			s, err := reloaded.GetSession(ctx)

			require.Len(t, store.batches, 1)
			b := store.batches[0]
			assert.Len(t, b, 2)
			assert.Nil(t, b[reloaded.verifierKey()])
			assert.NotEmpty(t, b[reloaded.StorageKey()])

			verifier, gerr := store.Get(ctx, reloaded.verifierKey())
			require.NoError(t, gerr)
			saved, gerr := store.Get(ctx, reloaded.StorageKey())
			require.NoError(t, gerr)

			if tt.wantSession {
				require.NoError(t, err)
				require.NotNil(t, s)
				assert.Nil(t, verifier)
				assert.NotNil(t, saved)
				return
			}
			require.ErrorIs(t, err, tt.applyErr)
			assert.NotNil(t, verifier, "verifier kept when the write fails")
			assert.Nil(t, saved)
		})
	}
}

func TestOAuth_CustomScopes(t *testing.T) {
	srv := newServer(t)
	c := newClient(t, srv, newStore(t))

	resp, err := c.SignInWithOAuth(context.Background(), ProviderGoogle, OAuthOptions{Scopes: "email profile"})
	require.NoError(t, err)
	u, err := url.Parse(resp.URL)
	require.NoError(t, err)
	assert.Equal(t, "email profile", u.Query().Get("scopes"))
	assert.Empty(t, u.Query().Get("redirect_to"))
}

func TestOAuth_UnsupportedProvider(t *testing.T) {
	srv := newServer(t)
	c := newClient(t, srv, newStore(t))

	_, err := c.SignInWithOAuth(context.Background(), Provider("myspace"), OAuthOptions{})
	require.ErrorIs(t, err, ErrUnsupportedProvider)
}

func TestOAuth_NavigatorError(t *testing.T) {
	srv := newServer(t)
	boom := errors.New("no browser")
	c := newClient(t, srv, newStore(t), WithNavigator(NavigatorFunc(func(context.Context, string) error { return boom })))

	_, err := c.SignInWithOAuth(context.Background(), ProviderGitHub, OAuthOptions{})
	require.ErrorIs(t, err, boom)
}

func TestGetSession_LocationWithoutVerifier(t *testing.T) {
	srv := newServer(t)
	c := newClient(t, srv, newStore(t), WithLocation(redirectURL+"?code=abc"))

	_, err := c.GetSession(context.Background())
	require.ErrorIs(t, err, ErrMissingCodeVerifier)
}

func TestGetSession_LocationCarriesProviderError(t *testing.T) {
	srv := newServer(t)
	loc := redirectURL + "#error=access_denied&error_description=User+denied+access"
	c := newClient(t, srv, newStore(t), WithLocation(loc))

	_, err := c.GetSession(context.Background())
	ae, ok := IsAuthError(err)
	require.True(t, ok)
	assert.Equal(t, "access_denied", ae.Code)
	assert.Equal(t, "User denied access", ae.Message)
}

func TestGetSession_ImplicitGrantFragment(t *testing.T) {
	srv := newServer(t)
	srv.AddUser("a@b.com", "secret1")
	ctx := context.Background()

	issued, err := newClient(t, srv, newStore(t)).SignInWithPassword(ctx, "a@b.com", "secret1")
	require.NoError(t, err)

	frag := url.Values{
		"access_token":  {issued.Session.AccessToken},
		"refresh_token": {issued.Session.RefreshToken},
		"expires_in":    {"3600"},
		"token_type":    {"bearer"},
	}
	c := newClient(t, srv, newStore(t), WithLocation(redirectURL+"#"+frag.Encode()))

	s, err := c.GetSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "a@b.com", s.User.Email)
	assert.Equal(t, int64(3600), s.ExpiresIn)
	assert.NotZero(t, s.ExpiresAt)
}

func TestSignOut_RevokesAndClears(t *testing.T) {
	srv := newServer(t)
	srv.AddUser("a@b.com", "secret1")
	store := newStore(t)
	c := newClient(t, srv, store)
	ctx := context.Background()

	first, err := c.SignInWithPassword(ctx, "a@b.com", "secret1")
	require.NoError(t, err)

	require.NoError(t, c.SignOut(ctx))
	assert.Equal(t, 1, srv.Calls("POST /auth/v1/logout"))

	s, err := c.GetSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, s)

	// refresh token was revoked server-side
	other := newClient(t, srv, newStore(t))
	_, err = other.refresh(ctx, first.Session.RefreshToken)
	_, ok := IsAuthError(err)
	assert.True(t, ok)
}

func TestSignOut_WithoutSessionIsNoop(t *testing.T) {
	srv := newServer(t)
	c := newClient(t, srv, newStore(t))

	require.NoError(t, c.SignOut(context.Background()))
	require.NoError(t, c.SignOut(context.Background()))
	assert.Equal(t, 0, srv.Calls("POST /auth/v1/logout"))
}

func TestSignOut_StaleTokenStillClearsLocally(t *testing.T) {
	srv := newServer(t)
	store := newStore(t)
	c := newClient(t, srv, store)
	ctx := context.Background()

	require.NoError(t, storage.SetJSON(ctx, store, c.StorageKey(), models.Session{AccessToken: "not-a-jwt"}))

	require.NoError(t, c.SignOut(ctx))
	raw, err := store.Get(ctx, c.StorageKey())
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestServerDown_IsUnavailable(t *testing.T) {
	srv := newServer(t)
	c := newClient(t, srv, newStore(t))
	srv.Close()

	_, err := c.SignInWithPassword(context.Background(), "a@b.com", "x")
	require.ErrorIs(t, err, ErrUnavailable)
	_, ok := IsAuthError(err)
	assert.False(t, ok)
}

func TestWrongAPIKey(t *testing.T) {
	srv := newServer(t)
	c, err := NewHTTPClient(srv.URL, "other-key", newStore(t))
	require.NoError(t, err)

	_, err = c.SignInWithPassword(context.Background(), "a@b.com", "x")
	ae, ok := IsAuthError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, ae.Status)
	assert.Equal(t, "Invalid API key", ae.Message)
}

func TestSpansRecorded(t *testing.T) {
	srv := newServer(t)
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	c := newClient(t, srv, newStore(t), WithTracerProvider(tp))

	_, err := c.SignInWithPassword(context.Background(), "nobody@b.com", "x")
	require.Error(t, err)

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "auth.sign_in_with_password", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}
