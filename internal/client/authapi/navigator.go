package authapi

import (
	"context"
	"fmt"
	"io"
)

// Navigator sends the user agent to an authorization URL.
type Navigator interface {
	Navigate(ctx context.Context, rawURL string) error
}

type NavigatorFunc func(ctx context.Context, rawURL string) error

func (f NavigatorFunc) Navigate(ctx context.Context, rawURL string) error {
	return f(ctx, rawURL)
}

// WriterNavigator prints the URL for the user to open.
type WriterNavigator struct {
	W io.Writer
}

func (n WriterNavigator) Navigate(_ context.Context, rawURL string) error {
	_, err := fmt.Fprintf(n.W, "Open this URL in your browser to continue:\n  %s\n", rawURL)
	return err
}
