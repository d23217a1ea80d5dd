package authapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUnavailable         = errors.New("auth service unavailable")
	ErrUnsupportedProvider = errors.New("unsupported oauth provider")
	ErrMissingCodeVerifier = errors.New("pkce code verifier not found in storage")
	ErrInvalidEndpoint     = errors.New("invalid auth endpoint url")
	ErrMissingAPIKey       = errors.New("auth api key is empty")
)

// AuthError is an error reported by the auth service itself.
type AuthError struct {
	Status  int
	Code    string
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}

// IsAuthError reports whether err carries an *AuthError and returns it.
func IsAuthError(err error) (*AuthError, bool) {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// errorBody covers the error shapes the service has used over time:
// {"msg", "error_code"}, {"message"} and the OAuth {"error", "error_description"}.
type errorBody struct {
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	ErrorCode        string `json:"error_code"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func mapHTTPError(status int, body []byte) error {
	switch status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return fmt.Errorf("%w: %s", ErrUnavailable, http.StatusText(status))
	}

	var b errorBody
	_ = json.Unmarshal(body, &b)

	ae := &AuthError{Status: status, Code: b.ErrorCode}
	for _, m := range []string{b.Msg, b.Message, b.ErrorDescription, b.Error} {
		if m != "" {
			ae.Message = m
			break
		}
	}
	if ae.Code == "" {
		ae.Code = b.Error
	}
	if ae.Message == "" {
		ae.Message = http.StatusText(status)
	}
	return ae
}
