// Package cli provides the interactive options page of the extension as a
// terminal client.
//
// It renders the session controller's view (a loading line, the signed-in
// user, or the credential form) and maps REPL commands onto the
// controller's handlers:
//   - login / signup: prompt for email and password, then submit
//   - oauth <provider> [scopes]: start a provider sign-in
//   - logout
//   - status / whoami / redirect
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
