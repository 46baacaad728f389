package renderers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"slidepress/internal/errs"
	"slidepress/internal/imaging"
	"slidepress/internal/svg"
)

// Image rasterizes SVG with inkscape and bounds raster images to a maximum
// dimension.
type Image struct {
	runner    Runner
	validator *svg.Validator
}

// NewImage creates an image renderer. validator may be nil.
func NewImage(runner Runner, validator *svg.Validator) *Image {
	return &Image{runner: runner, validator: validator}
}

func (r *Image) Name() string {
	return "img"
}

func (r *Image) Properties() map[string]any {
	return version(1)
}

// RenderingKey hashes the source file so that edits invalidate the cache.
func (r *Image) RenderingKey(inputs map[string]any) (map[string]any, error) {
	return srcHashKey(inputs)
}

// source returns the image bytes and lowercase file type.
func source(inputs map[string]any) ([]byte, string, string, error) {
	if src, ok := inputs["src"].(string); ok && src != "" {
		data, err := os.ReadFile(src)
		if err != nil {
			return nil, "", "", errs.Wrap(errs.KindFileLookup, err, "failed to read image")
		}
		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(src)), ".")
		return data, ext, src, nil
	}

	if _, ok := inputs["value"]; !ok {
		return nil, "", "", errs.New(errs.KindMissingParameter, "img renderer requires either \"src\" or \"value\"")
	}
	filetype, _ := inputs["filetype"].(string)
	if filetype == "" {
		return nil, "", "", errs.New(errs.KindMissingParameter, "img renderer requires \"filetype\" with \"value\"")
	}
	var data []byte
	switch v := inputs["value"].(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return nil, "", "", fmt.Errorf("image value has unsupported type %T", v)
	}
	return data, strings.ToLower(filetype), "inline " + filetype, nil
}

// Render produces {extension, img_data}.
func (r *Image) Render(ctx context.Context, inputs map[string]any) (map[string]any, error) {
	data, ext, name, err := source(inputs)
	if err != nil {
		return nil, err
	}
	maxDim, err := optionalFloat(inputs, "max_dimension", 0)
	if err != nil {
		return nil, err
	}

	var out []byte
	if ext == "svg" {
		transforms, err := svg.ParseTransformations(inputs["svg_transform"])
		if err != nil {
			return nil, errs.Wrap(errs.KindUnknownParameter, err, "invalid SVG transformation for %s", name)
		}
		out, err = r.renderSVG(ctx, name, data, int(maxDim), transforms)
		if err != nil {
			return nil, err
		}
		ext = "png"
	} else {
		if inputs["svg_transform"] != nil {
			return nil, errs.Newf(errs.KindUnknownParameter, "SVG transformation requested, but %s is not an SVG file", name)
		}
		out, ext, err = r.renderRaster(name, data, ext, int(maxDim))
		if err != nil {
			return nil, err
		}
	}

	return map[string]any{
		"extension": ext,
		"img_data":  out,
	}, nil
}

func (r *Image) renderSVG(ctx context.Context, name string, data []byte, maxDim int, transforms []svg.Transformation) ([]byte, error) {
	doc, err := svg.ParseDocument(data)
	if err != nil {
		return nil, errs.Wrap(errs.KindImageRendering, err, "failed to read %s", name)
	}
	if err := svg.ApplyTransformations(doc, transforms); err != nil {
		return nil, err
	}
	if r.validator != nil {
		if err := r.validator.Validate(ctx, name, doc); err != nil {
			return nil, err
		}
	}

	dir, err := os.MkdirTemp("", "slidepress_img_")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	transformed, err := doc.Bytes()
	if err != nil {
		return nil, err
	}
	in := filepath.Join(dir, "in.svg")
	out := filepath.Join(dir, "out.png")
	if err := os.WriteFile(in, transformed, 0644); err != nil {
		return nil, fmt.Errorf("failed to write SVG: %w", err)
	}

	args := []string{"-o", out}
	if maxDim > 0 {
		scale := "-h"
		if w, h, ok := doc.Size(); ok && w > h {
			scale = "-w"
		}
		args = append(args, scale, strconv.Itoa(maxDim))
	}
	args = append(args, in)

	if _, err := run(ctx, r.runner, Command{Name: "inkscape", Args: args, Dir: dir}); err != nil {
		return nil, errs.Wrap(errs.KindImageRendering, err, "failed to rasterize %s", name)
	}
	png, err := os.ReadFile(out)
	if err != nil {
		return nil, errs.Wrap(errs.KindImageRendering, err, "inkscape produced no output for %s", name)
	}
	return png, nil
}

func (r *Image) renderRaster(name string, data []byte, ext string, maxDim int) ([]byte, string, error) {
	if ext == "gif" {
		return data, "gif", nil
	}

	cfg, format, err := imaging.DecodeConfig(data)
	if err != nil {
		return nil, "", errs.Wrap(errs.KindImageRendering, err, "failed to read %s", name)
	}

	outFormat := "png"
	if format == "jpeg" {
		outFormat = "jpg"
	}

	fits := maxDim <= 0 || (cfg.Width <= maxDim && cfg.Height <= maxDim)
	if fits && (format == "png" || format == "jpeg") {
		return data, outFormat, nil
	}

	img, _, err := imaging.Decode(data)
	if err != nil {
		return nil, "", errs.Wrap(errs.KindImageRendering, err, "failed to decode %s", name)
	}
	img, _ = imaging.Fit(img, maxDim)
	out, err := imaging.Encode(img, outFormat)
	if err != nil {
		return nil, "", errs.Wrap(errs.KindImageRendering, err, "failed to encode %s", name)
	}
	return out, outFormat, nil
}
