package module

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
)

const maskedValue = "***"

type traceAccessor struct {
	Accessor
	logger *slog.Logger
	masked []string
}

// TraceAccessor wraps acc so every Dispatch is logged at debug level with
// the action's exported fields. Fields named in masked are replaced with a
// placeholder.
func TraceAccessor(acc Accessor, logger *slog.Logger, masked ...string) Accessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &traceAccessor{Accessor: acc, logger: logger, masked: masked}
}

func (t *traceAccessor) Dispatch(ctx context.Context, action any) (Completion, error) {
	t.logger.Debug("Dispatching from logic.", "action", fmt.Sprintf("%T", action), "fields", traceFields(action, t.masked))
	c, err := t.Accessor.Dispatch(ctx, action)
	if err != nil {
		t.logger.Debug("Dispatch from logic rejected.", "action", fmt.Sprintf("%T", action), "error", err)
	}
	return c, err
}

func traceFields(action any, masked []string) map[string]any {
	rv := reflect.ValueOf(action)
	for rv.IsValid() && rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() || rv.Kind() != reflect.Struct {
		return nil
	}
	out := make(map[string]any, rv.NumField())
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Type().Field(i)
		if !f.IsExported() {
			continue
		}
		if slices.Contains(masked, f.Name) {
			out[f.Name] = maskedValue
			continue
		}
		out[f.Name] = rv.Field(i).Interface()
	}
	return out
}
