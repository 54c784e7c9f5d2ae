package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/specialistvlad/burststate/internal/ctxlog"
)

// Validate checks every definition and reports duplicate registrations.
// All problems are joined into one error.
func (r *Registry) Validate(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	errs := append([]error(nil), r.errs...)

	for _, def := range r.definitions {
		if err := def.Validate(); err != nil {
			errs = append(errs, err)
		}
		if def.Logic == nil {
			logger.Debug("Module has no logic handler.", "module", def.ID)
		}
	}

	if len(r.definitions) == 0 {
		errs = append(errs, errors.New("no modules registered"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("registry validation failed: %w", errors.Join(errs...))
	}
	return nil
}
