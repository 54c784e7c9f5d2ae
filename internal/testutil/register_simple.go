package testutil

import (
	"github.com/specialistvlad/burststate/internal/module"
	"github.com/specialistvlad/burststate/internal/registry"
)

// SimpleModule registers a prepared definition.
type SimpleModule struct {
	Def *module.Definition
}

// Register implements the registry.Module interface.
func (m *SimpleModule) Register(r *registry.Registry) {
	r.RegisterModule(m.Def)
}
