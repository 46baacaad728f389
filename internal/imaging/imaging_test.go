package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func whiteCanvas(w, h int) *image.RGBA {
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

func TestContentBounds(t *testing.T) {
	img := whiteCanvas(50, 40)
	fill(img, image.Rect(10, 5, 20, 30))

	got, ok := ContentBounds(img, img.Bounds())
	if !ok {
		t.Fatal("expected content")
	}
	if want := image.Rect(10, 5, 20, 30); got != want {
		t.Fatalf("ContentBounds = %v, want %v", got, want)
	}

	if _, ok := ContentBounds(whiteCanvas(5, 5), image.Rect(0, 0, 5, 5)); ok {
		t.Fatal("blank image must report no content")
	}
}

func TestMeasureFormula(t *testing.T) {
	// Border, a rule at x=[10,20) y=[60,62), a gap, then a glyph at
	// x=[40,80) y=[30,70) reaching below the rule.
	img := whiteCanvas(100, 100)
	fill(img, image.Rect(10, 60, 20, 62))
	fill(img, image.Rect(40, 30, 80, 70))

	f, err := MeasureFormula(img, 3, 20)
	if err != nil {
		t.Fatal(err)
	}
	if f.Width != 40 || f.Height != 40 {
		t.Fatalf("size = %dx%d, want 40x40", f.Width, f.Height)
	}
	// upper=60, lower=62, skewed midpoint round((60+7*62)/8)=62; bottom is 70.
	if f.Baseline != 8 {
		t.Fatalf("baseline = %d, want 8", f.Baseline)
	}
	if b := f.Image.Bounds(); b.Dx() != 40 || b.Dy() != 40 {
		t.Fatalf("cropped image is %v", b)
	}
}

func TestMeasureFormulaBaselineAtBottom(t *testing.T) {
	img := whiteCanvas(100, 100)
	fill(img, image.Rect(10, 68, 20, 70))
	fill(img, image.Rect(40, 30, 80, 70))

	f, err := MeasureFormula(img, 3, 20)
	if err != nil {
		t.Fatal(err)
	}
	if f.Baseline != 0 {
		t.Fatalf("baseline = %d, want 0", f.Baseline)
	}
}

func TestMeasureFormulaErrors(t *testing.T) {
	img := whiteCanvas(100, 100)
	fill(img, image.Rect(10, 60, 20, 62))
	fill(img, image.Rect(60, 30, 80, 70))

	// Probe between rule and glyph hits only whitespace.
	if _, err := MeasureFormula(img, 25, 20); err == nil {
		t.Fatal("expected error when probe misses the rule")
	}
	if _, err := MeasureFormula(whiteCanvas(10, 10), 0, 0); err == nil {
		t.Fatal("expected error for blank image")
	}
}

func TestFit(t *testing.T) {
	tests := []struct {
		name       string
		w, h, max  int
		wantScaled bool
		wantW      int
		wantH      int
	}{
		{"smaller", 100, 50, 200, false, 100, 50},
		{"exactly at max", 200, 100, 200, false, 200, 100},
		{"wide", 400, 100, 200, true, 200, 50},
		{"tall", 100, 400, 200, true, 50, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, scaled := Fit(whiteCanvas(tt.w, tt.h), tt.max)
			if scaled != tt.wantScaled {
				t.Fatalf("scaled = %v, want %v", scaled, tt.wantScaled)
			}
			b := out.Bounds()
			if b.Dx() != tt.wantW || b.Dy() != tt.wantH {
				t.Fatalf("size = %dx%d, want %dx%d", b.Dx(), b.Dy(), tt.wantW, tt.wantH)
			}
		})
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	data, err := Encode(whiteCanvas(3, 2), "png")
	if err != nil {
		t.Fatal(err)
	}
	cfg, format, err := DecodeConfig(data)
	if err != nil {
		t.Fatal(err)
	}
	if format != "png" || cfg.Width != 3 || cfg.Height != 2 {
		t.Fatalf("got %s %dx%d", format, cfg.Width, cfg.Height)
	}
	if _, err := png.Decode(bytes.NewReader(data)); err != nil {
		t.Fatal(err)
	}
}

func TestDecodePNM(t *testing.T) {
	// 2x1 binary PPM: one black and one white pixel.
	ppm := append([]byte("P6\n2 1\n255\n"), 0, 0, 0, 255, 255, 255)
	img, err := DecodePNM(bytes.NewReader(ppm))
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 2 {
		t.Fatalf("width = %d", img.Bounds().Dx())
	}
	if IsBlank(img.At(0, 0)) || !IsBlank(img.At(1, 0)) {
		t.Fatal("pixel classification wrong")
	}
}
