// Package authapi is the client side of the hosted authentication service.
//
// # Overview
//
// Client is the transport-agnostic contract the session controller depends
// on: GetSession, SignInWithPassword, SignUp, SignInWithOAuth and SignOut.
// HTTPClient implements it against a GoTrue-compatible REST API (the one
// Supabase exposes under /auth/v1):
//
//   - sessions are persisted in a storage.Store under
//     "sb-<project-ref>-auth-token" and refreshed when they are about to
//     expire;
//   - OAuth uses the PKCE flow: the verifier is stored next to the session,
//     the browser is sent to /authorize through a Navigator, and the code
//     that comes back on the redirect location is exchanged by the next
//     GetSession call;
//   - every call runs inside an OpenTelemetry span.
//
// # Error Handling
//
// Errors reported by the service are *AuthError values carrying the
// human-readable message. Transport failures wrap ErrUnavailable. Other
// sentinels: ErrUnsupportedProvider, ErrMissingCodeVerifier.
//
// The authtest subpackage runs an in-process fake of the service.
package authapi
