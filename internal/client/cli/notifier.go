package cli

import (
	"context"
	"fmt"
	"io"
)

// WriterNotifier prints alerts to a terminal.
type WriterNotifier struct {
	W io.Writer
}

func (n WriterNotifier) Alert(_ context.Context, msg string) {
	fmt.Fprintf(n.W, "[!] %s\n", msg)
}
