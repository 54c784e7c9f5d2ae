// Package middleware holds the dispatch middlewares shipped with the store.
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"github.com/specialistvlad/burststate/internal/codec"
	"github.com/specialistvlad/burststate/internal/dispatch"
	"github.com/specialistvlad/burststate/internal/storeerrors"
)

func actionName(action any) string {
	if action == nil {
		return "nil"
	}
	return codec.TypeName(reflect.TypeOf(action))
}

// Logging logs every dispatch when it is accepted and again when it
// settles. A nil logger uses slog.Default.
func Logging(logger *slog.Logger) dispatch.Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next dispatch.Next) dispatch.Next {
		return func(ctx context.Context, env *dispatch.Envelope) error {
			log := logger.With("dispatchID", env.ID, "action", actionName(env.Action))
			start := time.Now()
			env.OnSettled(func(r dispatch.Result) {
				switch {
				case r.Err != nil:
					log.Warn("Action failed.", "module", r.Module, "error", r.Err)
				case r.Dropped:
					log.Debug("Action dropped.")
				default:
					log.Debug("Action reduced.", "module", r.Module, "version", r.Version, "elapsed", time.Since(start))
				}
			})
			if err := next(ctx, env); err != nil {
				log.Warn("Action rejected.", "error", err)
				return err
			}
			return nil
		}
	}
}

// Filter drops every action for which keep returns false.
func Filter(keep func(action any) bool) dispatch.Middleware {
	return func(next dispatch.Next) dispatch.Next {
		return func(ctx context.Context, env *dispatch.Envelope) error {
			if !keep(env.Action) {
				return nil
			}
			return next(ctx, env)
		}
	}
}

// Map rewrites actions before they are routed.
func Map(fn func(action any) any) dispatch.Middleware {
	return func(next dispatch.Next) dispatch.Next {
		return func(ctx context.Context, env *dispatch.Envelope) error {
			env.Action = fn(env.Action)
			return next(ctx, env)
		}
	}
}

// Recover turns a panic in the middlewares after it into an error returned
// to the dispatcher.
func Recover() dispatch.Middleware {
	return func(next dispatch.Next) dispatch.Next {
		return func(ctx context.Context, env *dispatch.Envelope) (err error) {
			defer func() {
				if rec := recover(); rec != nil {
					err = fmt.Errorf("middleware: %w", &storeerrors.PanicError{Value: rec})
				}
			}()
			return next(ctx, env)
		}
	}
}
