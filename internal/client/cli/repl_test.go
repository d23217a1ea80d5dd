package cli

import (
	"bufio"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeExec struct {
	loggedIn bool

	calls []string
	args  [][]string
}

func (f *fakeExec) isLoggedIn() bool { return f.loggedIn }
func (f *fakeExec) Login(ctx context.Context) error {
	f.calls = append(f.calls, "login")
	f.loggedIn = true
	return nil
}
func (f *fakeExec) Signup(ctx context.Context) error {
	f.calls = append(f.calls, "signup")
	return nil
}
func (f *fakeExec) OAuth(ctx context.Context, args []string) error {
	f.calls = append(f.calls, "oauth")
	f.args = append(f.args, args)
	return nil
}
func (f *fakeExec) Logout(ctx context.Context) error {
	f.calls = append(f.calls, "logout")
	f.loggedIn = false
	return nil
}
func (f *fakeExec) Status(ctx context.Context) error {
	f.calls = append(f.calls, "status")
	return nil
}
func (f *fakeExec) WhoAmI(ctx context.Context) error {
	f.calls = append(f.calls, "whoami")
	return nil
}
func (f *fakeExec) Redirect(ctx context.Context) error {
	f.calls = append(f.calls, "redirect")
	return nil
}
func (f *fakeExec) Storage(ctx context.Context, args []string) error {
	f.calls = append(f.calls, "storage")
	f.args = append(f.args, args)
	return nil
}

func capturePrintln(t *testing.T) *[]string {
	t.Helper()
	var lines []string
	origPrint := printlnFn
	printlnFn = func(a ...any) (int, error) {
		parts := make([]string, len(a))
		for i, v := range a {
			parts[i] = v.(string)
		}
		lines = append(lines, strings.Join(parts, " "))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = origPrint })
	return &lines
}

func TestRunREPL_Commands(t *testing.T) {
	lines := capturePrintln(t)

	input := strings.NewReader(strings.Join([]string{
		"help",
		"",
		"signup",
		"register",
		"oauth github email profile",
		"login",
		"help",
		"status",
		"whoami",
		"redirect",
		"storage sync get user",
		"logout",
		"foobar",
		"exit",
		"login",
	}, "\n"))

	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "status" }, bufio.NewReader(input))

	require.Equal(t, []string{
		"signup", "signup", "oauth", "login", "status", "whoami", "redirect", "storage", "logout",
	}, exec.calls)
	require.Equal(t, [][]string{{"github", "email", "profile"}, {"sync", "get", "user"}}, exec.args)

	require.Contains(t, *lines, "Available commands: login, signup, oauth <provider> [scopes], status, whoami, redirect, storage, exit")
	require.Contains(t, *lines, "Available commands: logout, status, whoami, redirect, storage, exit")
	require.Contains(t, *lines, "Unknown command: foobar")
	require.Contains(t, *lines, "options (status) > ")
	require.Equal(t, "Bye!", (*lines)[len(*lines)-1])
}

func TestRunREPL_EOFAndCancel(t *testing.T) {
	capturePrintln(t)

	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "s" }, bufio.NewReader(strings.NewReader("status")))
	require.Equal(t, []string{"status"}, exec.calls)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	exec = &fakeExec{}
	runREPL(ctx, exec, func() string { return "s" }, bufio.NewReader(strings.NewReader("login\n")))
	require.Empty(t, exec.calls)
}
