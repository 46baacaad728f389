package controllers

import (
	"context"
	"fmt"
	"strings"

	"slidepress/internal/errs"
	"slidepress/internal/presentation"
	"slidepress/internal/rendered"
	"slidepress/internal/svg"
)

// Animation steps through the layers of an SVG drawing, one slide per
// frame. The slide variable filename names the drawing; animation_mode and
// frames select the layers and frames that are shown.
type Animation struct {
	Dir string `mapstructure:"dir"`
}

// NewAnimation creates an animation controller.
func NewAnimation(options map[string]any) (Controller, error) {
	c := &Animation{Dir: "anim"}
	if err := decodeOptions(options, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Animation) Render(ctx context.Context, e *Emitter, slide *presentation.Slide) ([]*rendered.Slide, error) {
	p := e.Presentation
	filename := slide.Var("filename", "")
	if filename == "" {
		return nil, errs.New(errs.KindMissingParameter, "animation slides require a variable called 'filename'")
	}
	if !strings.HasSuffix(strings.ToLower(filename), ".svg") {
		return nil, errs.Newf(errs.KindUnknownParameter, "animation slides require an SVG input filename, but found: %s", filename)
	}
	path, err := p.LookupInclude(filename)
	if err != nil {
		return nil, err
	}

	mode, err := svg.ParseMode(slide.Var("animation_mode", ""))
	if err != nil {
		return nil, errs.Wrap(errs.KindUnknownParameter, err, "invalid animation mode")
	}
	filter, err := svg.ParseFrameFilter(slide.Var("frames", ""))
	if err != nil {
		return nil, errs.Wrap(errs.KindUnknownParameter, err, "invalid frame selection")
	}

	doc, err := svg.LoadDocument(path)
	if err != nil {
		return nil, err
	}
	frames, err := svg.Compile(doc, mode)
	if err != nil {
		return nil, errs.Wrap(errs.KindImageRendering, err, "failed to compile animation").WithFile(path)
	}
	frames = filter.Apply(frames)
	if len(frames) == 0 {
		p.Warnf("Warning: Animation %s has no frames.", filename)
	}
	if p.Params().CollapseAnimation && len(frames) > 1 {
		frames = frames[len(frames)-1:]
	}

	pages := make([]map[string]any, 0, len(frames))
	for _, frame := range frames {
		image, err := c.renderFrame(ctx, p, doc, frame)
		if err != nil {
			return nil, fmt.Errorf("failed to render frame %d of %s: %w", frame.Number, filename, err)
		}
		pages = append(pages, map[string]any{
			"image": image,
			"frame": frame.Number,
		})
	}
	return e.EmitNoContent(ctx, slide, pages)
}

func (c *Animation) renderFrame(ctx context.Context, p *rendered.Presentation, doc *svg.Document, frame svg.Frame) (string, error) {
	data, err := svg.RenderFrame(doc, frame)
	if err != nil {
		return "", err
	}
	res, err := p.Render(ctx, "img", map[string]any{
		"value":         data,
		"filetype":      "svg",
		"max_dimension": p.Params().ImageMaxDimension,
	})
	if err != nil {
		return "", err
	}
	img, err := res.Data.Bytes("img_data")
	if err != nil {
		return "", err
	}
	local := fmt.Sprintf("imgs/%s/%s.%s", c.Dir, res.KeyHash, res.Data.String("extension"))
	if err := p.AddFile(local, img); err != nil {
		return "", err
	}
	return p.ResourceURI(local), nil
}
