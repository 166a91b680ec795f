// Package bufmgrlog wires the buffer manager's ambient logging. The
// teacher carries no logger at all; this follows aethne0-bongodb's
// page-cache convention instead — structured log/slog, with
// github.com/lmittmann/tint supplying a colored handler for local/CLI use.
package bufmgrlog

import (
	"io"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
)

// New returns a colored slog.Logger writing to w (os.Stderr if nil).
func New(w io.Writer, level slog.Level) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	return slog.New(tint.NewHandler(w, &tint.Options{Level: level}))
}
