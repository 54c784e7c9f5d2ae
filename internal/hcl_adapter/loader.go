package hcl_adapter

import (
	"context"
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/burststate/internal/config"
	"github.com/specialistvlad/burststate/internal/ctxlog"
	"github.com/specialistvlad/burststate/internal/fsutil"
	"github.com/zclconf/go-cty/cty"
)

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct{}

// NewLoader creates a new HCL configuration loader.
func NewLoader() *Loader {
	return &Loader{}
}

var _ config.Loader = (*Loader)(nil)

// Load parses every .hcl file found under paths, in order, and merges them
// over config.Default().
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	model := config.Default()
	files, err := fsutil.CollectFiles(".hcl", paths...)
	if err != nil {
		return nil, err
	}
	logger.Debug("Discovered HCL files.", "count", len(files))

	parser := hclparse.NewParser()
	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}
		if err := l.merge(ctx, model, hclFile.Body); err != nil {
			return nil, fmt.Errorf("failed to decode HCL file %s: %w", file, err)
		}
	}

	logger.Debug("HCL loading complete.", "files", len(files), "modules", len(model.Modules))
	return model, nil
}

// LoadBytes parses a single in-memory document. filename is only used in
// diagnostics.
func (l *Loader) LoadBytes(ctx context.Context, src []byte, filename string) (*config.Model, error) {
	model := config.Default()
	hclFile, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL %s: %w", filename, diags)
	}
	if err := l.merge(ctx, model, hclFile.Body); err != nil {
		return nil, fmt.Errorf("failed to decode HCL %s: %w", filename, err)
	}
	return model, nil
}

func (l *Loader) merge(ctx context.Context, model *config.Model, body hcl.Body) error {
	var root fileRoot
	if diags := gohcl.DecodeBody(body, nil, &root); diags.HasErrors() {
		return diags
	}

	if b := root.Store; b != nil {
		set(&model.Store.Name, b.Name)
		set(&model.Store.Workers, b.Workers)
		set(&model.Store.RestartLimit, b.RestartLimit)
	}
	if b := root.Logging; b != nil {
		set(&model.Logging.Level, b.Level)
		set(&model.Logging.Format, b.Format)
	}
	if b := root.Persistence; b != nil {
		set(&model.Persistence.Backend, b.Backend)
		set(&model.Persistence.Path, b.Path)
		set(&model.Persistence.RestoreOnStart, b.RestoreOnStart)
		set(&model.Persistence.SaveOnShutdown, b.SaveOnShutdown)
	}
	if b := root.Devtools; b != nil {
		set(&model.Devtools.URL, b.URL)
		set(&model.Devtools.Namespace, b.Namespace)
		set(&model.Devtools.InsecureSkipVerify, b.InsecureSkipVerify)
	}
	if b := root.Healthcheck; b != nil {
		set(&model.Healthcheck.Port, b.Port)
	}

	for _, mb := range root.Modules {
		settings, err := moduleSettings(ctx, mb)
		if err != nil {
			return err
		}
		model.SetModule(mb.Name, settings)
	}
	return nil
}

// moduleSettings evaluates a module block's attributes. Expressions are
// evaluated without variables or functions, so only literals are allowed.
func moduleSettings(ctx context.Context, mb *moduleBlock) (map[string]cty.Value, error) {
	attrs, diags := mb.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("module '%s': %w", mb.Name, diags)
	}
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)

	settings := make(map[string]cty.Value, len(attrs))
	for _, name := range names {
		val, diags := attrs[name].Expr.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("module '%s' setting '%s': %w", mb.Name, name, diags)
		}
		settings[name] = val
	}
	ctxlog.FromContext(ctx).Debug("Module settings loaded.", "module", mb.Name, "settings", names)
	return settings, nil
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
