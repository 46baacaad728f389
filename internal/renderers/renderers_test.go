package renderers

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"slidepress/internal/cache"
	"slidepress/internal/errs"
	"slidepress/internal/imaging"
)

type fakeRunner struct {
	calls   []Command
	handler func(cmd Command) ([]byte, []byte, error)
}

func (f *fakeRunner) Run(_ context.Context, cmd Command) ([]byte, []byte, error) {
	f.calls = append(f.calls, cmd)
	if f.handler == nil {
		return nil, nil, nil
	}
	return f.handler(cmd)
}

func solid(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.White)
		}
	}
	return img
}

func fill(img *image.RGBA, r image.Rectangle) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.Set(x, y, color.Black)
		}
	}
}

func ppm(img *image.RGBA) []byte {
	b := img.Bounds()
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "P6\n%d %d\n255\n", b.Dx(), b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := img.RGBAAt(x, y)
			buf.Write([]byte{c.R, c.G, c.B})
		}
	}
	return buf.Bytes()
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, solid(w, h)); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestLaTeXMeasuresBaseline(t *testing.T) {
	// At 600 dpi the probe sits at x=12 and the crop at x=47.
	raster := solid(100, 60)
	fill(raster, image.Rect(0, 40, 24, 42))
	fill(raster, image.Rect(60, 20, 100, 50))

	runner := &fakeRunner{handler: func(cmd Command) ([]byte, []byte, error) {
		switch cmd.Name {
		case "pdflatex":
			tex, err := os.ReadFile(filepath.Join(cmd.Dir, "formula.tex"))
			if err != nil {
				return nil, nil, err
			}
			if !strings.Contains(string(tex), `$\rule{1mm}{1pt} \hspace{2mm}x^2$`) {
				return nil, nil, fmt.Errorf("unexpected document:\n%s", tex)
			}
		case "pdftoppm":
			return nil, nil, os.WriteFile(filepath.Join(cmd.Dir, "formula.ppm"), ppm(raster), 0644)
		}
		return nil, nil, nil
	}}

	out, err := NewLaTeX(runner, DefaultDPI).Render(context.Background(), map[string]any{"formula": "x^2"})
	if err != nil {
		t.Fatal(err)
	}
	if out["width"] != 40 || out["height"] != 30 || out["baseline"] != 8 {
		t.Fatalf("got width=%v height=%v baseline=%v, want 40 30 8", out["width"], out["height"], out["baseline"])
	}
	img, _, err := imaging.Decode(out["png_data"].([]byte))
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 40 || b.Dy() != 30 {
		t.Fatalf("png is %v", b)
	}
	if len(runner.calls) != 2 || runner.calls[1].Args[1] != "600" {
		t.Fatalf("unexpected calls %+v", runner.calls)
	}
}

func TestLaTeXLongDocument(t *testing.T) {
	doc := Document("a+b", true)
	if !strings.Contains(doc, `\[\rule{1mm}{1pt} \hspace{2mm}a+b \]`) {
		t.Fatalf("long formula not displayed:\n%s", doc)
	}
	if !strings.Contains(doc, `\documentclass[preview,border=1mm,varwidth=true]{standalone}`) {
		t.Fatal("document class missing")
	}
}

func TestLaTeXFailureIsInvalidTeX(t *testing.T) {
	runner := &fakeRunner{handler: func(cmd Command) ([]byte, []byte, error) {
		return nil, []byte("! Undefined control sequence."), errs.New(errs.KindSubprocessFailed, "pdflatex exited with status 1")
	}}
	_, err := NewLaTeX(runner, DefaultDPI).Render(context.Background(), map[string]any{"formula": `\foo`})
	if !errs.IsKind(err, errs.KindInvalidTeX) {
		t.Fatalf("expected invalid TeX, got %v", err)
	}
}

func TestImageRaster(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "pic.png")
	original := pngBytes(t, 40, 20)
	if err := os.WriteFile(src, original, 0644); err != nil {
		t.Fatal(err)
	}

	r := NewImage(&fakeRunner{}, nil)

	t.Run("exactly at max dimension", func(t *testing.T) {
		out, err := r.Render(context.Background(), map[string]any{"src": src, "max_dimension": 40})
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(out["img_data"].([]byte), original) || out["extension"] != "png" {
			t.Fatal("image within bounds was modified")
		}
	})

	t.Run("downscaled", func(t *testing.T) {
		out, err := r.Render(context.Background(), map[string]any{"src": src, "max_dimension": 10})
		if err != nil {
			t.Fatal(err)
		}
		cfg, _, err := imaging.DecodeConfig(out["img_data"].([]byte))
		if err != nil {
			t.Fatal(err)
		}
		if cfg.Width != 10 || cfg.Height != 5 {
			t.Fatalf("scaled to %dx%d, want 10x5", cfg.Width, cfg.Height)
		}
	})

	t.Run("transform on raster", func(t *testing.T) {
		_, err := r.Render(context.Background(), map[string]any{
			"src":           src,
			"svg_transform": []any{map[string]any{"cmd": "format_text"}},
		})
		if !errs.IsKind(err, errs.KindUnknownParameter) {
			t.Fatalf("expected unknown parameter, got %v", err)
		}
	})
}

func TestImageGIFPassesThrough(t *testing.T) {
	var buf bytes.Buffer
	if err := gif.Encode(&buf, solid(300, 300), nil); err != nil {
		t.Fatal(err)
	}
	out, err := NewImage(&fakeRunner{}, nil).Render(context.Background(), map[string]any{
		"value":         buf.Bytes(),
		"filetype":      "gif",
		"max_dimension": 10,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out["img_data"].([]byte), buf.Bytes()) || out["extension"] != "gif" {
		t.Fatal("gif was re-encoded")
	}
}

func TestImageSVG(t *testing.T) {
	svgData := `<svg xmlns="http://www.w3.org/2000/svg" width="200" height="100"><text>{name}</text></svg>`
	runner := &fakeRunner{handler: func(cmd Command) ([]byte, []byte, error) {
		in, err := os.ReadFile(cmd.Args[len(cmd.Args)-1])
		if err != nil {
			return nil, nil, err
		}
		if !strings.Contains(string(in), "<text>Bob</text>") {
			return nil, nil, fmt.Errorf("transform not applied: %s", in)
		}
		return nil, nil, os.WriteFile(cmd.Args[1], []byte("PNGDATA"), 0644)
	}}

	out, err := NewImage(runner, nil).Render(context.Background(), map[string]any{
		"value":         svgData,
		"filetype":      "svg",
		"max_dimension": 1920,
		"svg_transform": []any{
			map[string]any{"cmd": "format_text", "variables": map[string]any{"name": "Bob"}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if out["extension"] != "png" || string(out["img_data"].([]byte)) != "PNGDATA" {
		t.Fatalf("unexpected output %v", out)
	}
	args := runner.calls[0].Args
	if args[2] != "-w" || args[3] != "1920" {
		t.Fatalf("wide SVG should be bounded by width, got %v", args)
	}
}

func TestPlotSize(t *testing.T) {
	tests := []struct {
		name          string
		inputs        map[string]any
		width, height int
	}{
		{"default aspect", map[string]any{"max_dimension": 1920}, 1920, 1080},
		{"portrait", map[string]any{"max_dimension": 1000, "aspect": 0.5}, 500, 1000},
		{"explicit", map[string]any{"width": 640, "height": 480, "max_dimension": 1920}, 640, 480},
		{"string aspect", map[string]any{"max_dimension": 800, "aspect": "2"}, 800, 400},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h, err := PlotSize(tt.inputs)
			if err != nil {
				t.Fatal(err)
			}
			if w != tt.width || h != tt.height {
				t.Fatalf("got %dx%d, want %dx%d", w, h, tt.width, tt.height)
			}
		})
	}
}

func TestPlotSourceReplacesTerminal(t *testing.T) {
	out := PlotSource("set terminal svg\nset output 'x.svg'\nplot sin(x)\n", 640, 360)
	if strings.Contains(out, "set terminal svg") || strings.Contains(out, "x.svg") {
		t.Fatalf("terminal not stripped:\n%s", out)
	}
	if !strings.HasPrefix(out, "set terminal pngcairo size 640,360 enhanced font 'Latin Modern Sans,24'\n") {
		t.Fatalf("terminal prefix missing:\n%s", out)
	}
}

func TestGraphvizDPI(t *testing.T) {
	src := filepath.Join(t.TempDir(), "g.dot")
	if err := os.WriteFile(src, []byte("digraph { a -> b }"), 0644); err != nil {
		t.Fatal(err)
	}
	runner := &fakeRunner{handler: func(cmd Command) ([]byte, []byte, error) {
		return []byte("PNG"), nil, nil
	}}
	if _, err := NewGraphviz(runner).Render(context.Background(), map[string]any{"src": src, "scale": 1.5}); err != nil {
		t.Fatal(err)
	}
	cmd := runner.calls[0]
	if want := []string{"-Tpng", "-Gdpi=375"}; !reflect.DeepEqual(cmd.Args, want) {
		t.Fatalf("args = %v, want %v", cmd.Args, want)
	}
	if string(cmd.Stdin) != "digraph { a -> b }" {
		t.Fatalf("stdin = %q", cmd.Stdin)
	}
}

func TestExec(t *testing.T) {
	script := filepath.Join(t.TempDir(), "gen.sh")
	if err := os.WriteFile(script, []byte("#!/bin/sh\necho '<b>hi</b>'\n"), 0755); err != nil {
		t.Fatal(err)
	}

	runner := &fakeRunner{handler: func(cmd Command) ([]byte, []byte, error) {
		return []byte("<b>hi</b>\n"), nil, nil
	}}
	r := NewExec(runner)
	inputs := map[string]any{"cmd": []string{script, "arg"}}

	key, err := r.RenderingKey(inputs)
	if err != nil {
		t.Fatal(err)
	}
	if len(key["exec_hash"].(string)) != 32 {
		t.Fatalf("unexpected key %v", key)
	}

	out, err := r.Render(context.Background(), inputs)
	if err != nil {
		t.Fatal(err)
	}
	if string(out["stdout"].([]byte)) != "<b>hi</b>\n" {
		t.Fatalf("stdout = %q", out["stdout"])
	}

	runner.handler = func(cmd Command) ([]byte, []byte, error) {
		return nil, []byte("boom"), errs.New(errs.KindSubprocessFailed, "exit status 2")
	}
	if _, err := r.Render(context.Background(), inputs); !errs.IsKind(err, errs.KindSubprocessFailed) {
		t.Fatalf("expected subprocess failure, got %v", err)
	}
}

func TestQRCode(t *testing.T) {
	runner := &fakeRunner{handler: func(cmd Command) ([]byte, []byte, error) {
		return []byte("<svg/>"), nil, nil
	}}
	out, err := NewQRCode(runner).Render(context.Background(), map[string]any{"data": "https://example.com"})
	if err != nil {
		t.Fatal(err)
	}
	if out["svg"] != "<svg/>" {
		t.Fatalf("svg = %v", out["svg"])
	}
	if want := []string{"-tsvg", "-m0", "-o", "-", "https://example.com"}; !reflect.DeepEqual(runner.calls[0].Args, want) {
		t.Fatalf("args = %v", runner.calls[0].Args)
	}
}

func TestTimingDiagramOptions(t *testing.T) {
	out, err := TimingDiagram{}.Render(context.Background(), map[string]any{
		"src":         "a = 01",
		"clock_ticks": false,
	})
	if err != nil {
		t.Fatal(err)
	}
	if s := out["svg"].(string); strings.Contains(s, "clock_ticks") {
		t.Fatalf("clock ticks drawn although disabled:\n%s", s)
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry(&fakeRunner{}, nil)
	want := []string{"dtg", "exec", "graphviz", "img", "latex", "plot", "qrcode"}
	if got := reg.Names(); !reflect.DeepEqual(got, want) {
		t.Fatalf("names = %v", got)
	}
	if _, err := reg.Get("povray"); !errs.IsKind(err, errs.KindUnknownParameter) {
		t.Fatalf("expected unknown renderer error, got %v", err)
	}
}

func TestEditedSourceInvalidatesCache(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "pic.png")
	if err := os.WriteFile(src, pngBytes(t, 4, 4), 0644); err != nil {
		t.Fatal(err)
	}

	c := cache.New(cache.NewFileStore(filepath.Join(dir, "cache")), time.Minute)
	r := NewImage(&fakeRunner{}, nil)
	inputs := map[string]any{"src": src, "max_dimension": 100}

	first, err := c.Render(context.Background(), r, inputs)
	if err != nil {
		t.Fatal(err)
	}
	again, err := c.Render(context.Background(), r, inputs)
	if err != nil {
		t.Fatal(err)
	}
	if !again.FromCache || again.KeyHash != first.KeyHash {
		t.Fatal("second render should hit the cache")
	}

	if err := os.WriteFile(src, pngBytes(t, 8, 8), 0644); err != nil {
		t.Fatal(err)
	}
	edited, err := c.Render(context.Background(), r, inputs)
	if err != nil {
		t.Fatal(err)
	}
	if edited.FromCache || edited.KeyHash == first.KeyHash {
		t.Fatal("edited source must not be served from cache")
	}
}
