package authapi

import (
	"context"

	"github.com/dmitrijs2005/optionsauth/internal/client/models"
)

// DefaultScopes is requested when an OAuth sign-in names no scope.
const DefaultScopes = "email"

type Client interface {
	// GetSession returns the current session, or nil when signed out.
	GetSession(ctx context.Context) (*models.Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*AuthResponse, error)
	// SignUp creates an account. AuthResponse.User is nil when the service
	// did not open a session, i.e. the address still has to be confirmed.
	SignUp(ctx context.Context, email, password string) (*AuthResponse, error)
	// SignInWithOAuth starts a redirect-based sign-in. It never yields a
	// user; the session shows up on a later GetSession once the browser
	// returns to opts.RedirectTo.
	SignInWithOAuth(ctx context.Context, provider Provider, opts OAuthOptions) (*OAuthResponse, error)
	SignOut(ctx context.Context) error
}

type AuthResponse struct {
	User    *models.User
	Session *models.Session
}

type OAuthOptions struct {
	// Scopes is a space separated scope list passed to the provider.
	Scopes string
	// RedirectTo is where the provider sends the browser afterwards.
	RedirectTo string
}

type OAuthResponse struct {
	Provider Provider
	URL      string
}
