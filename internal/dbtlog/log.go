// Package dbtlog provides the two prefixed loggers used across the
// translator: Debug for guest-PC/translation tracing and Warn for
// poison/unsupported-instruction notices. Both are silent by default,
// built as a prefixed *log.Logger per concern rather than reaching for
// a structured logging library this module has no other use for.
package dbtlog

import (
	"io"
	"log"
	"os"
	"sync"
)

var (
	mu    sync.Mutex
	out   io.Writer = io.Discard
	Debug           = log.New(io.Discard, "dbt: ", 0)
	Warn            = log.New(io.Discard, "dbt: warn: ", 0)
)

// SetOutput redirects both loggers to w. Passing nil restores the
// default silence.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	if w == nil {
		w = io.Discard
	}
	out = w
	Debug.SetOutput(out)
	Warn.SetOutput(out)
}

// SetStderr is a convenience for the common case of wanting both
// loggers on stderr, e.g. from cmd/txlat behind a future -v flag.
func SetStderr() { SetOutput(os.Stderr) }
