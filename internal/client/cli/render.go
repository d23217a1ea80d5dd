package cli

import (
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/optionsauth/internal/client/authapi"
	"github.com/dmitrijs2005/optionsauth/internal/client/services"
)

const loadingText = "Loading…"

// Render draws the view: a loading line while the session resolves, the
// signed-in user with the logout command, or the credential form.
func Render(v services.View) string {
	switch v.State {
	case services.StateResolving:
		return loadingText
	case services.StateAuthenticated:
		if v.User != nil {
			return v.User.String() + "\nCommands: logout"
		}
	}

	var b strings.Builder
	b.WriteString("Email:    " + v.Username + "\n")
	b.WriteString("Password: " + strings.Repeat("*", utf8.RuneCountInString(v.Password)) + "\n")
	b.WriteString("Commands: login, signup, oauth <" + providerList() + ">")
	return b.String()
}

func providerList() string {
	ps := authapi.Providers()
	names := make([]string, len(ps))
	for i, p := range ps {
		names[i] = string(p)
	}
	return strings.Join(names, "|")
}
