package persist

import "context"

// Backend stores one opaque text blob. Implementations must be safe for
// concurrent use.
type Backend interface {
	Save(ctx context.Context, text string) error
	// Load returns ok=false when nothing has been saved yet.
	Load(ctx context.Context) (text string, ok bool, err error)
	Has(ctx context.Context) (bool, error)
}
