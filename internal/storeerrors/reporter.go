package storeerrors

import (
	"context"
	"log/slog"

	"github.com/specialistvlad/burststate/internal/ctxlog"
)

// Reporter is the observability seam runtime failures are handed to.
// Implementations must be safe for concurrent use.
type Reporter interface {
	Report(ctx context.Context, err error, attrs ...any)
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(ctx context.Context, err error, attrs ...any)

// Report implements Reporter.
func (f ReporterFunc) Report(ctx context.Context, err error, attrs ...any) {
	f(ctx, err, attrs...)
}

// LogReporter reports through slog. A nil Logger uses the context logger.
type LogReporter struct {
	Logger *slog.Logger
}

// Report implements Reporter.
func (r LogReporter) Report(ctx context.Context, err error, attrs ...any) {
	if err == nil {
		return
	}
	logger := r.Logger
	if logger == nil {
		logger = ctxlog.FromContext(ctx)
	}
	env := Envelope(err)
	args := append([]any{"error", err, "text_code", env.TextCode}, attrs...)
	logger.Error("Store operation failed.", args...)
}

// Multi fans a report out to several reporters, skipping nil ones.
func Multi(reporters ...Reporter) Reporter {
	return ReporterFunc(func(ctx context.Context, err error, attrs ...any) {
		for _, r := range reporters {
			if r != nil {
				r.Report(ctx, err, attrs...)
			}
		}
	})
}
