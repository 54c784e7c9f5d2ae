package app

import (
	"github.com/specialistvlad/burststate/internal/config"
	"github.com/specialistvlad/burststate/internal/registry"
	"github.com/specialistvlad/burststate/modules/counter"
	"github.com/specialistvlad/burststate/modules/envvars"
	"github.com/specialistvlad/burststate/modules/flag"
	"github.com/specialistvlad/burststate/modules/httpfetch"
	"github.com/specialistvlad/burststate/modules/notes"
)

// coreModules is the definitive list of modules compiled into the binary,
// configured from their settings blocks.
func coreModules(cfg *config.Model) ([]registry.Module, error) {
	env := &envvars.Module{}
	if err := cfg.DecodeModule(envvars.ID, &env.Settings); err != nil {
		return nil, err
	}
	fetch := &httpfetch.Module{}
	if err := cfg.DecodeModule(httpfetch.ID, &fetch.Settings); err != nil {
		return nil, err
	}
	return []registry.Module{
		&counter.Module{},
		&flag.Module{},
		&notes.Module{},
		fetch,
		env,
	}, nil
}
