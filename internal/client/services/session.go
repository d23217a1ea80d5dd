// Package services contains application services for the options client.
// This file defines the session controller: the signed-in / signed-out
// state of the options page and the handlers that move between them.
package services

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/dmitrijs2005/optionsauth/internal/client/authapi"
	"github.com/dmitrijs2005/optionsauth/internal/client/models"
	"github.com/dmitrijs2005/optionsauth/internal/client/repositories/storage"
	"github.com/dmitrijs2005/optionsauth/internal/logging"
)

// UserKey is the storage key holding the cached signed-in user.
const UserKey = "user"

const (
	MsgSignupPending   = "Signup successful, confirmation mail should be sent soon!"
	MsgMissingFields   = "Email and password are required"
	authErrorPrefix    = "Error with auth: "
	defaultLogFieldKey = "component"
)

var ErrUnknownMode = errors.New("unknown submit mode")

type Mode string

const (
	ModeLogin  Mode = "login"
	ModeSignup Mode = "signup"
)

type State int

const (
	StateResolving State = iota
	StateUnauthenticated
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateResolving:
		return "resolving"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// View is the state the options page renders from.
type View struct {
	State    State
	User     *models.User
	Username string
	Password string
}

// Notifier shows a blocking message to the user.
type Notifier interface {
	Alert(ctx context.Context, msg string)
}

type NotifierFunc func(ctx context.Context, msg string)

func (f NotifierFunc) Alert(ctx context.Context, msg string) { f(ctx, msg) }

// SessionController drives the options page.
//
// Contract:
//   - Initialize: resolve the existing session in the background; the
//     returned channel is closed once the view left StateResolving.
//   - SetUsername / SetPassword: input changes.
//   - Submit: sign in or sign up with the current inputs.
//   - OAuthLogin: start a provider sign-in; the session is picked up by a
//     later Initialize.
//   - Logout: sign out in the background and clear the user immediately.
//   - View: snapshot of the current state.
//   - Wait: block until background work has finished.
//
// No handler returns an error: failures end in a log line and, outside of
// Initialize, an alert.
type SessionController interface {
	Initialize(ctx context.Context) <-chan struct{}
	SetUsername(v string)
	SetPassword(v string)
	Submit(ctx context.Context, mode Mode)
	OAuthLogin(ctx context.Context, provider authapi.Provider, scopes string)
	Logout(ctx context.Context)
	View() View
	CachedUser(ctx context.Context) (*models.User, error)
	Wait()
}

type sessionController struct {
	auth     authapi.Client
	store    storage.Store
	notifier Notifier
	log      logging.Logger
	location func() string
	onChange func(View)

	mu   sync.Mutex
	view View

	wg sync.WaitGroup
}

type ControllerOption func(*sessionController)

// WithLocation supplies the current page location used as the OAuth
// return target.
func WithLocation(fn func() string) ControllerOption {
	return func(c *sessionController) { c.location = fn }
}

// WithOnChange registers a listener called after every view mutation.
func WithOnChange(fn func(View)) ControllerOption {
	return func(c *sessionController) { c.onChange = fn }
}

// NewSessionController wires a controller to the auth client, the local
// storage area and the alert surface.
func NewSessionController(auth authapi.Client, store storage.Store, notifier Notifier, log logging.Logger, opts ...ControllerOption) SessionController {
	c := &sessionController{
		auth:     auth,
		store:    store,
		notifier: notifier,
		log:      log.With(defaultLogFieldKey, "session"),
		location: func() string { return "" },
		onChange: func(View) {},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *sessionController) Initialize(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				c.log.Error(ctx, "session resolution panicked", "panic", r, "stack", string(debug.Stack()))
				c.resolveSignedOut()
			}
		}()

		s, err := c.auth.GetSession(ctx)
		switch {
		case err != nil:
			c.log.Error(ctx, "failed to resolve session", "error", err)
			c.resolveSignedOut()
		case s == nil || s.User == nil:
			c.log.Debug(ctx, "no active session")
			c.resolveSignedOut()
		default:
			c.log.Info(ctx, "session resolved", "user_id", s.User.ID)
			c.setUser(ctx, s.User)
		}
	}()

	return done
}

func (c *sessionController) SetUsername(v string) {
	c.update(func(view *View) { view.Username = v })
}

func (c *sessionController) SetPassword(v string) {
	c.update(func(view *View) { view.Password = v })
}

func (c *sessionController) Submit(ctx context.Context, mode Mode) {
	defer c.recoverAlert(ctx, "submit")

	c.mu.Lock()
	username, password := c.view.Username, c.view.Password
	c.mu.Unlock()

	if username == "" || password == "" {
		c.notifier.Alert(ctx, MsgMissingFields)
		return
	}

	var (
		resp *authapi.AuthResponse
		err  error
	)
	switch mode {
	case ModeLogin:
		resp, err = c.auth.SignInWithPassword(ctx, username, password)
	case ModeSignup:
		resp, err = c.auth.SignUp(ctx, username, password)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}

	if err != nil {
		c.reportError(ctx, string(mode), err)
		return
	}
	if resp == nil || resp.User == nil {
		c.log.Info(ctx, "no user returned, confirmation pending", "mode", mode)
		c.notifier.Alert(ctx, MsgSignupPending)
		return
	}

	c.log.Info(ctx, "signed in", "mode", mode, "user_id", resp.User.ID)
	c.setUser(ctx, resp.User)
}

func (c *sessionController) OAuthLogin(ctx context.Context, provider authapi.Provider, scopes string) {
	defer c.recoverAlert(ctx, "oauth")

	if !provider.Valid() {
		c.reportError(ctx, "oauth", fmt.Errorf("%w: %q", authapi.ErrUnsupportedProvider, provider))
		return
	}
	if scopes == "" {
		scopes = authapi.DefaultScopes
	}

	opts := authapi.OAuthOptions{Scopes: scopes, RedirectTo: c.location()}
	if _, err := c.auth.SignInWithOAuth(ctx, provider, opts); err != nil {
		c.reportError(ctx, "oauth", err)
		return
	}
	c.log.Info(ctx, "oauth sign-in started", "provider", provider, "redirect_to", opts.RedirectTo)
}

func (c *sessionController) Logout(ctx context.Context) {
	bg := context.WithoutCancel(ctx)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				c.log.Error(bg, "sign out panicked", "panic", r)
			}
		}()
		if err := c.auth.SignOut(bg); err != nil {
			c.log.Warn(bg, "sign out failed", "error", err)
		}
	}()

	c.update(func(view *View) {
		view.User = nil
		view.State = StateUnauthenticated
	})
	if err := c.store.Remove(ctx, UserKey); err != nil {
		c.log.Error(ctx, "failed to clear cached user", "error", err)
	}
}

func (c *sessionController) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// CachedUser reads the user cached in storage. It may lag behind the
// session; use View for the authoritative state.
func (c *sessionController) CachedUser(ctx context.Context) (*models.User, error) {
	var u models.User
	ok, err := storage.GetJSON(ctx, c.store, UserKey, &u)
	if err != nil || !ok {
		return nil, err
	}
	return &u, nil
}

func (c *sessionController) Wait() {
	c.wg.Wait()
}

func (c *sessionController) update(fn func(view *View)) {
	c.mu.Lock()
	fn(&c.view)
	snapshot := c.view
	c.mu.Unlock()

	c.onChange(snapshot)
}

func (c *sessionController) setUser(ctx context.Context, u *models.User) {
	c.update(func(view *View) {
		view.User = u
		view.State = StateAuthenticated
		// the password is not needed once signed in
		view.Password = ""
	})
	if err := storage.SetJSON(ctx, c.store, UserKey, u); err != nil {
		c.log.Error(ctx, "failed to cache user", "error", err)
	}
}

// resolveSignedOut leaves StateResolving for StateUnauthenticated. A view
// that already moved on (e.g. a login finished first) is left alone.
func (c *sessionController) resolveSignedOut() {
	c.update(func(view *View) {
		if view.State == StateResolving {
			view.State = StateUnauthenticated
		}
	})
}

func (c *sessionController) reportError(ctx context.Context, op string, err error) {
	c.log.Warn(ctx, "auth request failed", "op", op, "error", err)

	msg := err.Error()
	if ae, ok := authapi.IsAuthError(err); ok {
		msg = ae.Message
	}
	c.notifier.Alert(ctx, authErrorPrefix+msg)
}

// recoverAlert is the handler boundary for unexpected failures: the panic is
// logged in full and the user sees its message, or the raw value when it
// carries none.
func (c *sessionController) recoverAlert(ctx context.Context, op string) {
	r := recover()
	if r == nil {
		return
	}
	c.log.Error(ctx, "unexpected failure", "op", op, "panic", r, "stack", string(debug.Stack()))

	msg := fmt.Sprint(r)
	if err, ok := r.(error); ok {
		msg = err.Error()
	}
	c.notifier.Alert(ctx, msg)
}
