package renderers

import (
	"context"
	"fmt"
	"math"
	"os"
	"regexp"

	"slidepress/internal/dtg"
	"slidepress/internal/errs"
)

// Plot renders gnuplot sources to PNG.
type Plot struct {
	runner Runner
}

// NewPlot creates a gnuplot renderer
func NewPlot(runner Runner) *Plot {
	return &Plot{runner: runner}
}

func (r *Plot) Name() string { return "plot" }
func (r *Plot) Properties() map[string]any { return version(1) }
func (r *Plot) RenderingKey(inputs map[string]any) (map[string]any, error) {
	return srcHashKey(inputs)
}

var setTerminalRe = regexp.MustCompile(`(?m)^\s*set\s+(terminal|output)\b.*$`)

// PlotSize derives the terminal size. Explicit width and height win;
// otherwise the larger side is maxDim and the other follows the aspect ratio.
func PlotSize(inputs map[string]any) (int, int, error) {
	width, err := optionalFloat(inputs, "width", 0)
	if err != nil {
		return 0, 0, err
	}
	height, err := optionalFloat(inputs, "height", 0)
	if err != nil {
		return 0, 0, err
	}
	if width > 0 && height > 0 {
		return int(math.Round(width)), int(math.Round(height)), nil
	}

	aspect, err := optionalFloat(inputs, "aspect", 16.0/9.0)
	if err != nil {
		return 0, 0, err
	}
	if aspect <= 0 {
		return 0, 0, errs.Newf(errs.KindUnknownParameter, "plot aspect must be positive, got %g", aspect)
	}
	maxDim, err := optionalFloat(inputs, "max_dimension", 1920)
	if err != nil {
		return 0, 0, err
	}
	if aspect >= 1 {
		width, height = maxDim, maxDim/aspect
	} else {
		width, height = maxDim*aspect, maxDim
	}
	return int(math.Round(width)), int(math.Round(height)), nil
}

// PlotSource rewrites a gnuplot script to emit a PNG of the given size on
// stdout.
func PlotSource(source string, width, height int) string {
	source = setTerminalRe.ReplaceAllString(source, "")
	return fmt.Sprintf("set terminal pngcairo size %d,%d enhanced font 'Latin Modern Sans,24'\n", width, height) + source
}

// Render produces {extension, img_data}.
func (r *Plot) Render(ctx context.Context, inputs map[string]any) (map[string]any, error) {
	src, err := requireString(inputs, r.Name(), "src")
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return nil, errs.Wrap(errs.KindFileLookup, err, "failed to read plot source")
	}
	width, height, err := PlotSize(inputs)
	if err != nil {
		return nil, err
	}

	png, err := run(ctx, r.runner, Command{Name: "gnuplot", Stdin: []byte(PlotSource(string(data), width, height))})
	if err != nil {
		return nil, errs.Wrap(errs.KindImageRendering, err, "failed to plot %s", src)
	}
	return map[string]any{"extension": "png", "img_data": png}, nil
}

// Graphviz renders dot sources to PNG.
type Graphviz struct {
	runner Runner
}

// NewGraphviz creates a graphviz renderer
func NewGraphviz(runner Runner) *Graphviz {
	return &Graphviz{runner: runner}
}

func (r *Graphviz) Name() string { return "graphviz" }
func (r *Graphviz) Properties() map[string]any { return version(1) }
func (r *Graphviz) RenderingKey(inputs map[string]any) (map[string]any, error) {
	return srcHashKey(inputs)
}

// Render produces {extension, img_data}.
func (r *Graphviz) Render(ctx context.Context, inputs map[string]any) (map[string]any, error) {
	src, err := requireString(inputs, r.Name(), "src")
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return nil, errs.Wrap(errs.KindFileLookup, err, "failed to read graphviz source")
	}
	scale, err := optionalFloat(inputs, "scale", 1)
	if err != nil {
		return nil, err
	}

	dpi := int(math.Round(250 * scale))
	png, err := run(ctx, r.runner, Command{
		Name:  "dot",
		Args:  []string{"-Tpng", fmt.Sprintf("-Gdpi=%d", dpi)},
		Stdin: data,
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindImageRendering, err, "failed to lay out %s", src)
	}
	return map[string]any{"extension": "png", "img_data": png}, nil
}

// TimingDiagram renders the digital timing diagram notation to SVG.
type TimingDiagram struct{}

func (TimingDiagram) Name() string { return "dtg" }
func (TimingDiagram) Properties() map[string]any { return version(1) }

// Render produces {svg}. Geometry options given as inputs are overridden by
// "@key=value" lines in the source.
func (r TimingDiagram) Render(_ context.Context, inputs map[string]any) (map[string]any, error) {
	src, err := requireString(inputs, r.Name(), "src")
	if err != nil {
		return nil, err
	}

	opts := dtg.DefaultOptions()
	for _, key := range []string{"xdiv", "height", "vertical_distance", "marker_extend", "clock_ticks", "guides"} {
		if v, ok := inputs[key]; ok {
			if err := opts.Set(key, fmt.Sprint(v)); err != nil {
				return nil, err
			}
		}
	}

	out, err := dtg.Render(src, opts)
	if err != nil {
		return nil, err
	}
	return map[string]any{"svg": out}, nil
}

// Exec runs an executable and captures its output. The executable's contents
// are part of the key.
type Exec struct {
	runner Runner
}

// NewExec creates an exec renderer
func NewExec(runner Runner) *Exec {
	return &Exec{runner: runner}
}

func (r *Exec) Name() string { return "exec" }
func (r *Exec) Properties() map[string]any { return version(1) }

func commandLine(inputs map[string]any) ([]string, error) {
	var cmd []string
	switch v := inputs["cmd"].(type) {
	case []string:
		cmd = v
	case []any:
		for _, arg := range v {
			cmd = append(cmd, fmt.Sprint(arg))
		}
	}
	if len(cmd) == 0 {
		return nil, errs.New(errs.KindMissingParameter, "exec renderer requires a non-empty \"cmd\"")
	}
	return cmd, nil
}

func (r *Exec) RenderingKey(inputs map[string]any) (map[string]any, error) {
	cmd, err := commandLine(inputs)
	if err != nil {
		return nil, err
	}
	hash, err := hashFile(cmd[0])
	if err != nil {
		return nil, err
	}
	return map[string]any{"exec_hash": hash}, nil
}

// Render produces {cmd, stdout, stderr}.
func (r *Exec) Render(ctx context.Context, inputs map[string]any) (map[string]any, error) {
	cmd, err := commandLine(inputs)
	if err != nil {
		return nil, err
	}
	stdout, stderr, err := r.runner.Run(ctx, Command{Name: cmd[0], Args: cmd[1:]})
	if err != nil {
		return nil, errs.Wrap(errs.KindSubprocessFailed, err, "could not execute %v: %s", cmd, firstLine(string(stderr)))
	}
	return map[string]any{
		"cmd":    cmd,
		"stdout": stdout,
		"stderr": stderr,
	}, nil
}

// QRCode renders text as an SVG QR code with qrencode.
type QRCode struct {
	runner Runner
}

// NewQRCode creates a QR code renderer
func NewQRCode(runner Runner) *QRCode {
	return &QRCode{runner: runner}
}

func (r *QRCode) Name() string { return "qrcode" }
func (r *QRCode) Properties() map[string]any { return version(1) }

// Render produces {svg}.
func (r *QRCode) Render(ctx context.Context, inputs map[string]any) (map[string]any, error) {
	data, err := requireString(inputs, r.Name(), "data")
	if err != nil {
		return nil, err
	}
	out, err := run(ctx, r.runner, Command{Name: "qrencode", Args: []string{"-tsvg", "-m0", "-o", "-", data}})
	if err != nil {
		return nil, errs.Wrap(errs.KindImageRendering, err, "failed to encode QR code")
	}
	return map[string]any{"svg": string(out)}, nil
}
