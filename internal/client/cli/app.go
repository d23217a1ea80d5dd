package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/dmitrijs2005/optionsauth/internal/client/repositories/storage"
	"github.com/dmitrijs2005/optionsauth/internal/client/services"
	"github.com/dmitrijs2005/optionsauth/internal/logging"
)

type App struct {
	session     services.SessionController
	storage     *storage.Storage
	redirectURL string
	log         logging.Logger
	reader      *bufio.Reader
	out         io.Writer
}

// NewApp builds the terminal options page on top of a session controller.
// st exposes the storage areas to the storage command; redirectURL is the
// page location handed to OAuth sign-ins.
func NewApp(session services.SessionController, st *storage.Storage, redirectURL string, in io.Reader, out io.Writer, log logging.Logger) *App {
	return &App{
		session:     session,
		storage:     st,
		redirectURL: redirectURL,
		log:         log,
		reader:      bufio.NewReader(in),
		out:         out,
	}
}

// Run resolves the existing session and starts the REPL. Background sign
// outs are awaited before it returns.
func (a *App) Run(ctx context.Context) {
	defer a.session.Wait()

	fmt.Fprintln(a.out, "Options (type 'help' for commands)")
	fmt.Fprintln(a.out, Render(a.session.View()))

	select {
	case <-a.session.Initialize(ctx):
	case <-ctx.Done():
		return
	}
	fmt.Fprintln(a.out, Render(a.session.View()))

	runREPL(ctx, a, a.status, a.reader)
}

func (a *App) isLoggedIn() bool {
	return a.session.View().State == services.StateAuthenticated
}

func (a *App) status() string {
	v := a.session.View()
	if v.State == services.StateAuthenticated && v.User != nil {
		return v.User.Email
	}
	return v.State.String()
}
