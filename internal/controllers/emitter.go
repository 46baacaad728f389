// Package controllers turns authored slides into renderable slides. The
// default controller expands pauses; the others generate their slides from
// presentation state such as the table of contents or the used acronyms.
package controllers

import (
	"context"

	"slidepress/internal/models"
	"slidepress/internal/pause"
	"slidepress/internal/presentation"
	"slidepress/internal/rendered"
	"slidepress/internal/xmlhooks"
)

// Emitter produces the renderable slides of one pass.
type Emitter struct {
	Presentation *rendered.Presentation
	Hooks        *xmlhooks.Registry

	// Sources and Version are reported by feedback slides.
	Sources []models.SourceVersion
	Version string
}

// NewEmitter creates an emitter using the built-in hooks.
func NewEmitter(p *rendered.Presentation) *Emitter {
	return &Emitter{Presentation: p, Hooks: xmlhooks.Default()}
}

func (e *Emitter) mangle(ctx context.Context, containers pause.Containers) error {
	for _, name := range containers.Names() {
		if err := e.Hooks.Mangle(ctx, containers[name], e.Presentation); err != nil {
			return err
		}
	}
	return nil
}

// SlideVars computes the variables of one renderable slide. XML slide
// variables come first and are overridden by the generated ones.
func (e *Emitter) SlideVars(slide *presentation.Slide, subSlideIndex int) map[string]any {
	p := e.Presentation
	vars := make(map[string]any, len(slide.Vars)+6)
	for k, v := range slide.Vars {
		vars[k] = v
	}
	vars["current_slide_number"] = p.CurrentSlideNumber()
	vars["total_slide_count"] = p.TotalSlideCount()
	vars["sub_slide_index"] = subSlideIndex
	vars["generate_uid"] = p.NextUID
	if frozen := p.FrozenTOC(); frozen != nil {
		vars["toc"] = frozen
		vars["toc_entry"] = frozen.CurrentItem()
	} else {
		vars["toc"] = nil
		vars["toc_entry"] = nil
	}
	return vars
}

// EmitContent emits one slide per reveal state of slide. Every state is
// mangled separately and gets its own slide number.
func (e *Emitter) EmitContent(ctx context.Context, slide *presentation.Slide, extra map[string]any) ([]*rendered.Slide, error) {
	p := e.Presentation
	states, err := pause.Expand(slide.Containers, p.Params().HonorPauses)
	if err != nil {
		return nil, err
	}

	out := make([]*rendered.Slide, 0, len(states))
	for i, state := range states {
		p.AdvanceSlide()
		if err := e.mangle(ctx, state); err != nil {
			return nil, err
		}
		vars := e.SlideVars(slide, i)
		for k, v := range extra {
			vars[k] = v
		}
		out = append(out, &rendered.Slide{Type: slide.Type, Containers: state, Vars: vars})
	}
	return out, nil
}

// EmitNoContent emits one slide per entry of varSets. The containers are
// mangled once so that hooks such as s:time still take effect, but pauses
// are not expanded. An empty varSets emits nothing.
func (e *Emitter) EmitNoContent(ctx context.Context, slide *presentation.Slide, varSets []map[string]any) ([]*rendered.Slide, error) {
	p := e.Presentation
	containers := slide.Containers.Clone()

	out := make([]*rendered.Slide, 0, len(varSets))
	for i, extra := range varSets {
		p.AdvanceSlide()
		if i == 0 {
			if err := e.mangle(ctx, containers); err != nil {
				return nil, err
			}
		}
		vars := e.SlideVars(slide, i)
		for k, v := range extra {
			vars[k] = v
		}
		out = append(out, &rendered.Slide{Type: slide.Type, Containers: containers, Vars: vars})
	}
	return out, nil
}
