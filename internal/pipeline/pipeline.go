// Package pipeline renders a parsed presentation to HTML. Rendering runs
// three passes over the directives: the first collects the table of
// contents, markers and dependencies, the second sees the frozen TOC of the
// first and collects the time specifications, the third produces the slides
// that are written out.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log"
	"path/filepath"
	"sort"

	"slidepress/internal/agenda"
	"slidepress/internal/cache"
	"slidepress/internal/controllers"
	"slidepress/internal/errs"
	"slidepress/internal/filelookup"
	"slidepress/internal/models"
	"slidepress/internal/presentation"
	"slidepress/internal/rendered"
	"slidepress/internal/renderers"
	"slidepress/internal/schedule"
	"slidepress/internal/templates"
	"slidepress/internal/xmlhooks"
)

// Options configures a Renderer. Only Params is required.
type Options struct {
	Params      *models.RenderingParameters
	Cache       cache.Provider
	Renderers   *renderers.Registry
	Templates   []templates.Layer
	Hooks       *xmlhooks.Registry
	Controllers *controllers.Registry
	Runner      renderers.Runner
	Version     string
	Warnf       func(format string, args ...any)
}

// Result describes a finished render.
type Result struct {
	Presentation *rendered.Presentation
	Slides       []*rendered.Slide
	Schedule     []schedule.TimeSlice
	IndexPath    string
}

// Renderer renders presentations with one template style.
type Renderer struct {
	opts Options
	set  *templates.Set
}

// New resolves the template style of opts.Params.
func New(opts Options) (*Renderer, error) {
	if opts.Params == nil {
		opts.Params = models.DefaultRenderingParameters()
	}
	if err := opts.Params.Validate(); err != nil {
		return nil, errs.Wrap(errs.KindUnknownParameter, err, "invalid rendering parameters")
	}
	if opts.Hooks == nil {
		opts.Hooks = xmlhooks.Default()
	}
	if opts.Controllers == nil {
		opts.Controllers = controllers.NewRegistry()
	}
	if opts.Warnf == nil {
		opts.Warnf = log.Printf
	}
	if opts.Templates == nil {
		layers, err := templates.DefaultLayers(opts.Params.ExtraTemplateDirs)
		if err != nil {
			return nil, err
		}
		opts.Templates = layers
	}

	set, err := templates.Open(opts.Params.TemplateStyle, opts.Params.TemplateStyleOpts, opts.Templates...)
	if err != nil {
		return nil, err
	}
	return &Renderer{opts: opts, set: set}, nil
}

// Templates returns the resolved template style.
func (r *Renderer) Templates() *templates.Set {
	return r.set
}

// run holds the state of a single Render call.
type run struct {
	*Renderer
	pres        *presentation.Presentation
	p           *rendered.Presentation
	emitter     *controllers.Emitter
	controllers map[string]controllers.Controller
}

// Render renders pres into the resource and deploy directories.
func (r *Renderer) Render(ctx context.Context, pres *presentation.Presentation) (*Result, error) {
	params := r.opts.Params

	var ag *agenda.Agenda
	if pres.Metadata.Agenda != "" {
		granularity := pres.Metadata.AgendaGranularity
		if granularity <= 0 {
			granularity = agenda.DefaultGranularity
		}
		var err error
		if ag, err = agenda.Parse(pres.Metadata.Agenda, granularity); err != nil {
			return nil, fmt.Errorf("failed to parse agenda: %w", err)
		}
	}

	p, err := rendered.New(rendered.Options{
		Params:    params,
		Meta:      pres.Meta,
		Agenda:    ag,
		Cache:     r.opts.Cache,
		Renderers: r.opts.Renderers,
		Includes:  filelookup.New(filepath.Dir(pres.Filename)).Append(params.IncludeDirs...),
		Warnf:     r.opts.Warnf,
	})
	if err != nil {
		return nil, err
	}
	for _, f := range params.PresentationFeatures {
		p.AddFeature(f)
	}
	if params.PresentationMode == models.ModeInteractive {
		p.AddFeature(rendered.FeatureInteractive)
	}
	if params.InjectReload {
		p.AddFeature(rendered.FeatureReload)
	}

	rn := &run{
		Renderer:    r,
		pres:        pres,
		p:           p,
		emitter:     &controllers.Emitter{Presentation: p, Hooks: r.opts.Hooks, Version: r.opts.Version},
		controllers: make(map[string]controllers.Controller),
	}
	slideTypes, err := rn.prepare(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := rn.pass(ctx); err != nil {
		return nil, err
	}
	page := r.page(p)
	if err := r.set.InstallAll(p, slideTypes, page); err != nil {
		return nil, err
	}

	p.FinalizeTOC()
	p.ResetSchedule()
	if _, err := rn.pass(ctx); err != nil {
		return nil, err
	}
	p.FinalizeTOC()
	slices, err := p.ComputeSchedule()
	if err != nil {
		return nil, err
	}

	slides, err := rn.pass(ctx)
	if err != nil {
		return nil, err
	}
	html, err := rn.renderSlides(slides, page)
	if err != nil {
		return nil, err
	}

	index, err := r.set.Execute("base/index.html", &templates.IndexData{Page: *page, Slides: html})
	if err != nil {
		return nil, err
	}
	if err := p.AddDeployFile(params.IndexFilename, []byte(index)); err != nil {
		return nil, err
	}

	return &Result{
		Presentation: p,
		Slides:       slides,
		Schedule:     slices,
		IndexPath:    filepath.Join(params.DeployDir, params.IndexFilename),
	}, nil
}

func (r *Renderer) page(p *rendered.Presentation) *templates.Page {
	return &templates.Page{P: p, Style: r.set.Style, Version: r.opts.Version}
}

// prepare resolves the template and controller of every slide type before
// anything is rendered and returns the slide types in use.
func (rn *run) prepare(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)
	feedback := false
	for _, slide := range rn.pres.Slides() {
		if seen[slide.Type] {
			continue
		}
		seen[slide.Type] = true
		if _, err := rn.set.SlideTemplate(slide.Type); err != nil {
			return nil, withSource(err, slide.Source)
		}
		c, err := rn.controller(slide.Type)
		if err != nil {
			return nil, withSource(err, slide.Source)
		}
		if _, ok := c.(controllers.Feedback); ok {
			feedback = true
		}
	}

	if feedback {
		sources, err := rn.pres.VersionInfo(ctx, rn.opts.Runner)
		if err != nil {
			return nil, err
		}
		rn.emitter.Sources = sources
	}

	types := make([]string, 0, len(seen))
	for t := range seen {
		types = append(types, t)
	}
	sort.Strings(types)
	return types, nil
}

func (rn *run) controller(slideType string) (controllers.Controller, error) {
	if c, ok := rn.controllers[slideType]; ok {
		return c, nil
	}
	var c controllers.Controller = controllers.Content{}
	if def, ok := rn.set.Controller(slideType); ok {
		var err error
		if c, err = rn.opts.Controllers.New(def.Controller, def.Options); err != nil {
			return nil, fmt.Errorf("failed to create controller of slide type %s: %w", slideType, err)
		}
	}
	rn.controllers[slideType] = c
	return c, nil
}

// pass emits every directive once and returns the slides produced.
func (rn *run) pass(ctx context.Context) ([]*rendered.Slide, error) {
	p := rn.p
	if frozen := p.FrozenTOC(); frozen != nil {
		frozen.ResetIndex()
	}

	var out []*rendered.Slide
	for _, d := range rn.pres.Directives {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		switch d := d.(type) {
		case *presentation.Slide:
			c, err := rn.controller(d.Type)
			if err != nil {
				return nil, withSource(err, d.Source)
			}
			slides, err := c.Render(ctx, rn.emitter, d)
			if err != nil {
				return nil, withSource(err, d.Source)
			}
			out = append(out, slides...)
		case *presentation.Heading:
			p.TOC().NewHeading(d.Level, d.Text)
			if frozen := p.FrozenTOC(); frozen != nil {
				frozen.Advance()
			}
		case *presentation.AcronymRef:
			if err := p.Acronyms().Load(d.Path); err != nil {
				return nil, err
			}
		case *presentation.Marker:
			if err := p.AddMarker(d.Name); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func (rn *run) renderSlides(slides []*rendered.Slide, page *templates.Page) ([]template.HTML, error) {
	out := make([]template.HTML, 0, len(slides))
	for _, s := range slides {
		t, err := rn.set.SlideTemplate(s.Type)
		if err != nil {
			return nil, err
		}
		var b bytes.Buffer
		if err := t.Execute(&b, &templates.SlideData{Page: *page, Slide: s}); err != nil {
			return nil, errs.Wrap(errs.KindIllegalStyle, err, "failed to render slide of type %s", s.Type).WithSlide(s.Number())
		}
		out = append(out, template.HTML(b.String()))
	}
	return out, nil
}

// withSource attaches the file a slide was authored in to err.
func withSource(err error, source string) error {
	if e, ok := errs.As(err); ok && e.File == "" {
		return e.WithFile(source)
	}
	return err
}
