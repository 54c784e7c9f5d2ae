package app

import (
	"fmt"

	"github.com/specialistvlad/burststate/internal/config"
	"github.com/specialistvlad/burststate/internal/filebackend"
	"github.com/specialistvlad/burststate/internal/inmemorybackend"
	"github.com/specialistvlad/burststate/internal/persist"
	"github.com/specialistvlad/burststate/internal/sqlitebackend"
)

// openBackend returns the configured backend, or nil for "none", and a
// function releasing it.
func openBackend(p config.Persistence, storeName string) (persist.Backend, func() error, error) {
	noop := func() error { return nil }
	switch p.Backend {
	case config.BackendNone, "":
		return nil, noop, nil
	case config.BackendMemory:
		return inmemorybackend.New().Named(storeName), noop, nil
	case config.BackendFile:
		return filebackend.New(p.Path), noop, nil
	case config.BackendSQLite:
		b, err := sqlitebackend.Open(p.Path, storeName)
		if err != nil {
			return nil, noop, err
		}
		return b, b.Close, nil
	}
	return nil, noop, fmt.Errorf("unknown persistence backend '%s'", p.Backend)
}
