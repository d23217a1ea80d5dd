// Package authtest runs an in-process fake of the GoTrue auth API.
//
// It is good enough to drive authapi.HTTPClient end to end: password and
// signup flows (with or without email confirmation), refresh tokens, the
// PKCE authorize/exchange round-trip and logout. Passwords are bcrypt
// hashed and access tokens are real HS256 JWTs.
package authtest

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type Server struct {
	*httptest.Server

	APIKey string

	mu          sync.Mutex
	autoConfirm bool
	tokenTTL    time.Duration
	secret      []byte
	now         func() time.Time
	users       map[string]*account // by email
	refresh     map[string]string   // refresh token -> user id
	codes       map[string]pendingCode
	calls       map[string]int
}

type account struct {
	ID        string
	Email     string
	Hash      []byte
	Confirmed bool
	Provider  string
	CreatedAt time.Time
}

type pendingCode struct {
	UserID    string
	Challenge string
}

type Option func(*Server)

// WithAutoConfirm makes signup open a session immediately instead of
// waiting for email confirmation.
func WithAutoConfirm(v bool) Option {
	return func(s *Server) { s.autoConfirm = v }
}

func WithTokenTTL(d time.Duration) Option {
	return func(s *Server) { s.tokenTTL = d }
}

func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// NewServer starts a fake service accepting apiKey. Close it when done.
func NewServer(apiKey string, opts ...Option) *Server {
	s := &Server{
		APIKey:   apiKey,
		tokenTTL: time.Hour,
		secret:   []byte(uuid.NewString()),
		now:      time.Now,
		users:    make(map[string]*account),
		refresh:  make(map[string]string),
		codes:    make(map[string]pendingCode),
		calls:    make(map[string]int),
	}
	for _, o := range opts {
		o(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/v1/signup", s.handleSignup)
	mux.HandleFunc("POST /auth/v1/token", s.handleToken)
	mux.HandleFunc("GET /auth/v1/user", s.handleUser)
	mux.HandleFunc("POST /auth/v1/logout", s.handleLogout)
	mux.HandleFunc("GET /auth/v1/authorize", s.handleAuthorize)

	s.Server = httptest.NewServer(s.withAPIKey(mux))
	return s
}

// AddUser registers a confirmed account and returns its id.
func (s *Server) AddUser(email, password string) string {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a := &account{ID: uuid.NewString(), Email: email, Hash: hash, Confirmed: true, Provider: "email", CreatedAt: s.now()}
	s.users[email] = a
	return a.ID
}

// Confirm marks email as confirmed, as clicking the confirmation link would.
func (s *Server) Confirm(email string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.users[email]
	if ok {
		a.Confirmed = true
	}
	return ok
}

// Calls reports how many requests hit "METHOD /path".
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// RevokeAll forgets every refresh token.
func (s *Server) RevokeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh = make(map[string]string)
}

func (s *Server) withAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[r.Method+" "+r.URL.Path]++
		s.mu.Unlock()

		key := r.Header.Get("apikey")
		if key == "" {
			key = r.URL.Query().Get("apikey")
		}
		// browsers hit /authorize without headers
		if key != s.APIKey && r.URL.Path != "/auth/v1/authorize" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Invalid API key"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]any{"code": status, "error_code": code, "msg": msg})
}

type credentials struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	RefreshToken string `json:"refresh_token"`
	AuthCode     string `json:"auth_code"`
	CodeVerifier string `json:"code_verifier"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "Could not parse request body as JSON")
		return
	}
	if c.Email == "" || c.Password == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "Signup requires a valid password")
		return
	}
	if len(c.Password) < 6 {
		writeError(w, http.StatusUnprocessableEntity, "weak_password", "Password should be at least 6 characters.")
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(c.Password), bcrypt.MinCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "unexpected_failure", err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[c.Email]; exists {
		writeError(w, http.StatusUnprocessableEntity, "user_already_exists", "User already registered")
		return
	}
	a := &account{ID: uuid.NewString(), Email: c.Email, Hash: hash, Confirmed: s.autoConfirm, Provider: "email", CreatedAt: s.now()}
	s.users[c.Email] = a

	if !s.autoConfirm {
		writeJSON(w, http.StatusOK, s.userJSON(a))
		return
	}
	s.writeSession(w, a)
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "Could not parse request body as JSON")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch grant := r.URL.Query().Get("grant_type"); grant {
	case "password":
		a, ok := s.users[c.Email]
		if !ok || bcrypt.CompareHashAndPassword(a.Hash, []byte(c.Password)) != nil {
			writeError(w, http.StatusBadRequest, "invalid_credentials", "Invalid login credentials")
			return
		}
		if !a.Confirmed {
			writeError(w, http.StatusBadRequest, "email_not_confirmed", "Email not confirmed")
			return
		}
		s.writeSession(w, a)

	case "refresh_token":
		id, ok := s.refresh[c.RefreshToken]
		if !ok {
			writeError(w, http.StatusBadRequest, "refresh_token_not_found", "Invalid Refresh Token: Refresh Token Not Found")
			return
		}
		delete(s.refresh, c.RefreshToken)
		s.writeSession(w, s.byID(id))

	case "pkce":
		pc, ok := s.codes[c.AuthCode]
		if !ok {
			writeError(w, http.StatusNotFound, "flow_state_not_found", "invalid flow state, no valid flow state found")
			return
		}
		delete(s.codes, c.AuthCode)
		sum := sha256.Sum256([]byte(c.CodeVerifier))
		if base64.RawURLEncoding.EncodeToString(sum[:]) != pc.Challenge {
			writeError(w, http.StatusForbidden, "bad_code_verifier", "code challenge does not match previously saved code verifier")
			return
		}
		s.writeSession(w, s.byID(pc.UserID))

	default:
		writeError(w, http.StatusBadRequest, "unsupported_grant_type", fmt.Sprintf("unsupported_grant_type: %q", grant))
	}
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	a, ok := s.authenticate(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "bad_jwt", "invalid JWT: unable to parse or verify signature")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.userJSON(a))
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	a, ok := s.authenticate(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "bad_jwt", "invalid JWT: unable to parse or verify signature")
		return
	}
	s.mu.Lock()
	for tok, id := range s.refresh {
		if id == a.ID {
			delete(s.refresh, tok)
		}
	}
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

// handleAuthorize stands in for the provider consent screen: it signs the
// provider's user in straight away and redirects back with a PKCE code.
func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	provider := q.Get("provider")
	redirectTo := q.Get("redirect_to")
	if provider == "" || redirectTo == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "Missing provider or redirect_to")
		return
	}

	s.mu.Lock()
	email := provider + "-user@example.com"
	a, ok := s.users[email]
	if !ok {
		a = &account{ID: uuid.NewString(), Email: email, Confirmed: true, Provider: provider, CreatedAt: s.now()}
		s.users[email] = a
	}
	code := uuid.NewString()
	s.codes[code] = pendingCode{UserID: a.ID, Challenge: q.Get("code_challenge")}
	s.mu.Unlock()

	u, err := url.Parse(redirectTo)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "Invalid redirect_to")
		return
	}
	rq := u.Query()
	rq.Set("code", code)
	u.RawQuery = rq.Encode()
	http.Redirect(w, r, u.String(), http.StatusFound)
}

type claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (s *Server) authenticate(r *http.Request) (*account, bool) {
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return nil, false
	}
	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.byID(c.Subject)
	return a, a != nil
}

// byID must be called with mu held.
func (s *Server) byID(id string) *account {
	for _, a := range s.users {
		if a.ID == id {
			return a
		}
	}
	return nil
}

// userJSON must be called with mu held.
func (s *Server) userJSON(a *account) map[string]any {
	u := map[string]any{
		"id":         a.ID,
		"aud":        "authenticated",
		"role":       "authenticated",
		"email":      a.Email,
		"created_at": a.CreatedAt.UTC().Format(time.RFC3339),
		"app_metadata": map[string]any{
			"provider":  a.Provider,
			"providers": []string{a.Provider},
		},
	}
	if a.Confirmed {
		u["confirmed_at"] = a.CreatedAt.UTC().Format(time.RFC3339)
	}
	return u
}

// writeSession must be called with mu held.
func (s *Server) writeSession(w http.ResponseWriter, a *account) {
	if a == nil {
		writeError(w, http.StatusNotFound, "user_not_found", "User not found")
		return
	}
	now := s.now()
	exp := now.Add(s.tokenTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   a.ID,
			Audience:  jwt.ClaimStrings{"authenticated"},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Email: a.Email,
		Role:  "authenticated",
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "unexpected_failure", err.Error())
		return
	}

	refresh := uuid.NewString()
	s.refresh[refresh] = a.ID

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  signed,
		"token_type":    "bearer",
		"expires_in":    int64(s.tokenTTL / time.Second),
		"expires_at":    exp.Unix(),
		"refresh_token": refresh,
		"user":          s.userJSON(a),
	})
}
