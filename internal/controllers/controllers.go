package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/mitchellh/mapstructure"

	"slidepress/internal/acronyms"
	"slidepress/internal/errs"
	"slidepress/internal/presentation"
	"slidepress/internal/rendered"
	"slidepress/internal/toc"
)

// Controller renders one authored slide into renderable slides.
type Controller interface {
	Render(ctx context.Context, e *Emitter, slide *presentation.Slide) ([]*rendered.Slide, error)
}

// Factory creates a controller from the options given in the template
// configuration.
type Factory func(options map[string]any) (Controller, error)

// Registry maps controller names to factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates a registry holding the built-in controllers.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register("content", func(map[string]any) (Controller, error) { return Content{}, nil })
	r.Register("toc", NewTOC)
	r.Register("acronym", NewAcronym)
	r.Register("animation", NewAnimation)
	r.Register("feedback", func(map[string]any) (Controller, error) { return Feedback{}, nil })
	return r
}

// Register adds or replaces a factory.
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// New instantiates the controller called name.
func (r *Registry) New(name string, options map[string]any) (Controller, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, errs.Newf(errs.KindIllegalStyle, "unknown controller %q", name)
	}
	c, err := f(options)
	if err != nil {
		return nil, errs.Wrap(errs.KindIllegalStyle, err, "invalid options for controller %q", name)
	}
	return c, nil
}

// Names returns the registered controller names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func decodeOptions(options map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(options)
}

// Content emits the reveal states of the slide. It is used for every slide
// type without a dedicated controller.
type Content struct{}

func (Content) Render(ctx context.Context, e *Emitter, slide *presentation.Slide) ([]*rendered.Slide, error) {
	return e.EmitContent(ctx, slide, nil)
}

// TOC paginates the table of contents of the previous pass. The slide
// variables start_at and end_before restrict it to a range of full
// numbers; each page gets its nesting stream as partial_toc.
type TOC struct {
	ItemsPerSlide int `mapstructure:"toc_items_per_slide"`
}

// NewTOC creates a TOC controller.
func NewTOC(options map[string]any) (Controller, error) {
	c := &TOC{ItemsPerSlide: 10}
	if err := decodeOptions(options, c); err != nil {
		return nil, err
	}
	if c.ItemsPerSlide <= 0 {
		return nil, fmt.Errorf("toc_items_per_slide must be positive, got %d", c.ItemsPerSlide)
	}
	return c, nil
}

func (c *TOC) Render(ctx context.Context, e *Emitter, slide *presentation.Slide) ([]*rendered.Slide, error) {
	frozen := e.Presentation.FrozenTOC()
	if frozen == nil {
		return nil, nil
	}

	startAt := 0
	if s := slide.Var("start_at", ""); s != "" {
		i, ok := frozen.Lookup(s)
		if !ok {
			return nil, errs.Newf(errs.KindUnknownParameter, "start_at refers to unknown TOC entry %q", s)
		}
		startAt = i
	}
	endBefore := slide.Var("end_before", "")

	var pages []map[string]any
	for {
		subset := frozen.Subset(startAt, endBefore, c.ItemsPerSlide)
		if len(subset) == 0 {
			break
		}
		pages = append(pages, map[string]any{"partial_toc": toc.EmitCommands(subset)})
		startAt = subset[len(subset)-1].Index + 1
	}
	return e.EmitNoContent(ctx, slide, pages)
}

// Acronym paginates the acronyms used throughout the presentation. Each
// page gets its entries as acronyms.
type Acronym struct {
	LinesPerSlide int `mapstructure:"acronyms_per_slide"`
	CharsPerLine  int `mapstructure:"chars_per_line"`
}

// NewAcronym creates an acronym controller.
func NewAcronym(options map[string]any) (Controller, error) {
	c := &Acronym{LinesPerSlide: 10, CharsPerLine: 45}
	if err := decodeOptions(options, c); err != nil {
		return nil, err
	}
	if c.LinesPerSlide <= 0 || c.CharsPerLine <= 0 {
		return nil, fmt.Errorf("acronyms_per_slide and chars_per_line must be positive")
	}
	return c, nil
}

func (c *Acronym) Render(ctx context.Context, e *Emitter, slide *presentation.Slide) ([]*rendered.Slide, error) {
	used := e.Presentation.Acronyms().Used()
	var pages []map[string]any
	for _, page := range acronyms.Paginate(used, c.LinesPerSlide, c.CharsPerLine) {
		pages = append(pages, map[string]any{"acronyms": page})
	}
	return e.EmitNoContent(ctx, slide, pages)
}

// SlideInfo is attached to feedback slides as json_slide_info.
type SlideInfo struct {
	SlideNo   int               `json:"slide_no"`
	TOCEntry  []string          `json:"toc_entry"`
	Variables map[string]string `json:"variables"`
	Source    any               `json:"source"`
	Renderer  string            `json:"renderer"`
}

// Feedback emits a single slide carrying information that identifies the
// rendered version of the presentation.
type Feedback struct{}

func (Feedback) Render(ctx context.Context, e *Emitter, slide *presentation.Slide) ([]*rendered.Slide, error) {
	slides, err := e.EmitNoContent(ctx, slide, []map[string]any{{}})
	if err != nil {
		return nil, err
	}

	info := SlideInfo{
		SlideNo:   e.Presentation.CurrentSlideNumber(),
		TOCEntry:  []string{},
		Variables: slide.Vars,
		Source:    e.Sources,
		Renderer:  e.Version,
	}
	if frozen := e.Presentation.FrozenTOC(); frozen != nil {
		if entry := frozen.CurrentItem(); entry != nil {
			info.TOCEntry = entry.FullText
		}
	}
	data, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("failed to encode slide info: %w", err)
	}
	e.Presentation.AddFeature(rendered.FeatureFeedback)
	for _, s := range slides {
		s.Vars["json_slide_info"] = string(data)
	}
	return slides, nil
}
