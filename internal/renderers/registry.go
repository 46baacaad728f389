// Package renderers drives the external tools that turn formulas, images,
// plots, graphs and diagrams into deployable artifacts.
package renderers

import (
	"sort"

	"slidepress/internal/cache"
	"slidepress/internal/errs"
	"slidepress/internal/svg"
)

// DefaultDPI is the resolution formulas are rasterized at.
const DefaultDPI = 600

// Registry maps renderer names to renderers.
type Registry struct {
	renderers map[string]cache.Renderer
}

// NewRegistry creates a registry holding every built-in renderer. validator
// checks SVG fonts before rasterizing and may be nil.
func NewRegistry(runner Runner, validator *svg.Validator) *Registry {
	r := &Registry{renderers: make(map[string]cache.Renderer)}
	r.Register(NewLaTeX(runner, DefaultDPI))
	r.Register(NewImage(runner, validator))
	r.Register(NewPlot(runner))
	r.Register(NewGraphviz(runner))
	r.Register(TimingDiagram{})
	r.Register(NewExec(runner))
	r.Register(NewQRCode(runner))
	return r
}

// Register adds or replaces a renderer.
func (r *Registry) Register(renderer cache.Renderer) {
	r.renderers[renderer.Name()] = renderer
}

// Get returns the renderer registered under name.
func (r *Registry) Get(name string) (cache.Renderer, error) {
	renderer, ok := r.renderers[name]
	if !ok {
		return nil, errs.Newf(errs.KindUnknownParameter, "no renderer named %q", name)
	}
	return renderer, nil
}

// Names returns the registered renderer names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.renderers))
	for name := range r.renderers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
