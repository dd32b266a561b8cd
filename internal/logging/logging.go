// Package logging builds the tagged *log.Logger instances used across the
// core. landkeeper.New and transport.NewAdapter each build their own tagged
// logger here at construction; callers do not pass one in, and there is no
// process-wide logger singleton.
package logging

import (
	"io"
	"log"
	"os"
)

// New returns a logger prefixed with a bracketed component tag, e.g.
// "[Keeper:<land>]" or "[Transport:<land>]".
func New(tag string) *log.Logger {
	return log.New(os.Stdout, "["+tag+"] ", log.LstdFlags)
}

// NewTo is New but writing to an arbitrary sink, used by tests that want to
// capture log output instead of printing it.
func NewTo(w io.Writer, tag string) *log.Logger {
	return log.New(w, "["+tag+"] ", log.LstdFlags)
}

// Discard returns a logger that drops everything, for tests that don't care
// about log output but still need a non-nil logger injected.
func Discard(tag string) *log.Logger {
	return log.New(io.Discard, "["+tag+"] ", 0)
}
