package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/optionsauth/internal/client/authapi"
	"github.com/dmitrijs2005/optionsauth/internal/client/services"
	"github.com/dmitrijs2005/optionsauth/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Login prompts for credentials and submits them as a sign-in.
func (a *App) Login(ctx context.Context) error {
	return a.submit(ctx, services.ModeLogin)
}

// Signup prompts for credentials and submits them as an account creation.
func (a *App) Signup(ctx context.Context) error {
	return a.submit(ctx, services.ModeSignup)
}

// submit feeds the form inputs to the controller. Auth failures are shown
// through the notifier, so only input errors are returned.
func (a *App) submit(ctx context.Context, mode services.Mode) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	a.session.SetUsername(email)
	a.session.SetPassword(string(password))
	a.session.Submit(ctx, mode)

	fmt.Fprintln(a.out, Render(a.session.View()))
	return nil
}

// OAuth starts a provider sign-in. args are the provider name and an
// optional scope list.
func (a *App) OAuth(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(a.out, "Usage: oauth <"+providerList()+"> [scopes]")
		return nil
	}

	provider, err := authapi.ParseProvider(args[0])
	if err != nil {
		fmt.Fprintln(a.out, err.Error())
		return err
	}

	a.session.OAuthLogin(ctx, provider, strings.Join(args[1:], " "))
	fmt.Fprintln(a.out, "Restart the client after authorizing to pick up the session.")
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	a.session.Logout(ctx)
	fmt.Fprintln(a.out, Render(a.session.View()))
	return nil
}

func (a *App) Status(_ context.Context) error {
	fmt.Fprintln(a.out, Render(a.session.View()))
	return nil
}

// WhoAmI prints the user cached in local storage, which may lag behind the
// live session.
func (a *App) WhoAmI(ctx context.Context) error {
	u, err := a.session.CachedUser(ctx)
	if err != nil {
		a.log.Error(ctx, "failed to read cached user", "error", err)
		return err
	}
	if u == nil {
		fmt.Fprintln(a.out, "No cached user")
		return nil
	}
	fmt.Fprintln(a.out, u.String())
	return nil
}

// Redirect prints the URL that has to be registered as an allowed redirect
// with the auth service.
func (a *App) Redirect(_ context.Context) error {
	fmt.Fprintln(a.out, a.redirectURL)
	return nil
}
