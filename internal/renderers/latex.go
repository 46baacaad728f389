package renderers

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"slidepress/internal/errs"
	"slidepress/internal/imaging"
)

const texTemplate = `\documentclass[preview,border=1mm,varwidth=true]{standalone}
\usepackage[utf8]{inputenc}
\usepackage[T1]{fontenc}
\usepackage{lmodern}
\usepackage{amsmath}
\usepackage{amssymb}
\begin{document}
%s
\end{document}
`

// baselineRule is drawn in front of every formula so that the baseline can be
// located in the raster. It is cropped off afterwards.
const baselineRule = `\rule{1mm}{1pt} \hspace{2mm}`

// LaTeX renders formulas to PNG with pdflatex and pdftoppm.
type LaTeX struct {
	runner Runner
	dpi    int
}

// NewLaTeX creates a formula renderer rasterizing at dpi
func NewLaTeX(runner Runner, dpi int) *LaTeX {
	return &LaTeX{runner: runner, dpi: dpi}
}

func (r *LaTeX) Name() string {
	return "latex"
}

func (r *LaTeX) Properties() map[string]any {
	return map[string]any{
		"version":       1,
		"rendering_dpi": r.dpi,
	}
}

func (r *LaTeX) mmToPixels(mm float64) int {
	return int(math.Round(mm / 25.4 * float64(r.dpi)))
}

// Document returns the TeX source used to render formula.
func Document(formula string, long bool) string {
	var content string
	if long {
		content = `\[` + baselineRule + formula + ` \]`
	} else {
		content = `$` + baselineRule + formula + `$`
	}
	return fmt.Sprintf(texTemplate, content)
}

// Render produces {png_data, width, height, baseline}. The baseline is
// measured in pixels from the bottom edge.
func (r *LaTeX) Render(ctx context.Context, inputs map[string]any) (map[string]any, error) {
	formula, err := requireString(inputs, r.Name(), "formula")
	if err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp("", "slidepress_formula_")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	tex := Document(formula, optionalBool(inputs, "long"))
	if err := os.WriteFile(filepath.Join(dir, "formula.tex"), []byte(tex), 0644); err != nil {
		return nil, fmt.Errorf("failed to write TeX source: %w", err)
	}

	_, _, err = r.runner.Run(ctx, Command{
		Name: "pdflatex",
		Args: []string{"-interaction=nonstopmode", "-halt-on-error", "-output-directory=" + dir, "formula.tex"},
		Dir:  dir,
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindInvalidTeX, err, "failed to typeset formula %q", formula)
	}

	_, err = run(ctx, r.runner, Command{
		Name: "pdftoppm",
		Args: []string{"-r", strconv.Itoa(r.dpi), "-singlefile", "formula.pdf", "formula"},
		Dir:  dir,
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindImageRendering, err, "failed to rasterize formula %q", formula)
	}

	ppm, err := os.ReadFile(filepath.Join(dir, "formula.ppm"))
	if err != nil {
		return nil, errs.Wrap(errs.KindImageRendering, err, "pdftoppm produced no output")
	}
	img, err := imaging.DecodePNM(bytes.NewReader(ppm))
	if err != nil {
		return nil, errs.Wrap(errs.KindImageRendering, err, "failed to read rasterized formula")
	}

	measured, err := imaging.MeasureFormula(img, r.mmToPixels(0.5), r.mmToPixels(2))
	if err != nil {
		return nil, errs.Wrap(errs.KindInvalidTeX, err, "failed to measure formula %q", formula)
	}
	png, err := imaging.Encode(measured.Image, "png")
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"png_data": png,
		"width":    measured.Width,
		"height":   measured.Height,
		"baseline": measured.Baseline,
	}, nil
}
