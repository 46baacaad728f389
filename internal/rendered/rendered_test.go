package rendered

import (
	"os"
	"path/filepath"
	"testing"

	"slidepress/internal/models"
	"slidepress/internal/schedule"
)

func newPresentation(t *testing.T, meta map[string]any) *Presentation {
	t.Helper()
	params := models.DefaultRenderingParameters()
	params.ResourceDir = t.TempDir()
	params.DeployDir = t.TempDir()
	p, err := New(Options{Params: params, Meta: meta})
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestUIDAndCounters(t *testing.T) {
	p := newPresentation(t, nil)
	if got := p.NextUID(); got != "uid_1" {
		t.Fatalf("first uid = %s", got)
	}
	for i := 0; i < 10; i++ {
		p.NextUID()
	}
	if got := p.NextUID(); got != "uid_c" {
		t.Fatalf("twelfth uid = %s", got)
	}

	p.AdvanceSlide()
	p.AdvanceSlide()
	p.FinalizeTOC()
	if p.CurrentSlideNumber() != 0 || p.TotalSlideCount() != 2 {
		t.Fatalf("current = %d, total = %d", p.CurrentSlideNumber(), p.TotalSlideCount())
	}
	p.AdvanceSlide()
	if p.TotalSlideCount() != 2 {
		t.Fatalf("total must not shrink, got %d", p.TotalSlideCount())
	}
	if got := p.NextUID(); got != "uid_1" {
		t.Fatalf("uid not reset per pass: %s", got)
	}
}

func TestTOCPages(t *testing.T) {
	p := newPresentation(t, nil)
	p.TOC().NewHeading(1, "Intro")
	p.AdvanceSlide()
	p.TOC().NewHeading(2, "Background")
	p.AdvanceSlide()
	p.FinalizeTOC()

	frozen := p.FrozenTOC()
	if frozen == nil || frozen.Len() != 2 {
		t.Fatalf("frozen TOC = %v", frozen)
	}
	if e := frozen.Entries()[0]; len(e.Pages) != 2 {
		t.Fatalf("Intro pages = %v", e.Pages)
	}
}

func TestAddFileOnce(t *testing.T) {
	p := newPresentation(t, nil)
	if err := p.AddFile("imgs/x.png", []byte("first")); err != nil {
		t.Fatal(err)
	}
	if err := p.AddFile("imgs/./x.png", []byte("second")); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(p.Params().ResourceDir, "imgs", "x.png"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "first" {
		t.Fatalf("file content = %q", data)
	}
	if err := p.AddFile("../escape", nil); err == nil {
		t.Fatal("expected error for path outside output directory")
	}
	if err := p.AddDeployFile("index.html", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(p.Params().DeployDir, "index.html")); err != nil {
		t.Fatal(err)
	}
}

func TestCSSOrder(t *testing.T) {
	p := newPresentation(t, nil)
	late := 100
	early := -1
	p.AddCSS("template/b.css", nil)
	p.AddCSS("template/z.css", &late)
	p.AddCSS("template/a.css", &early)
	p.AddCSS("template/b.css", &late)

	got := p.CSS()
	want := []string{"template/a.css", "template/b.css", "template/z.css"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("CSS = %v, want %v", got, want)
		}
	}
}

func TestMarkers(t *testing.T) {
	p := newPresentation(t, nil)
	if err := p.AddMarker("bad name"); err == nil {
		t.Fatal("expected error for invalid marker")
	}
	p.AdvanceSlide()
	p.AdvanceSlide()
	if err := p.AddMarker("end_1"); err != nil {
		t.Fatal(err)
	}
	p.FinalizeTOC()
	if no, ok := p.Marker("end_1"); !ok || no != 2 {
		t.Fatalf("marker = %d, %v", no, ok)
	}
}

func TestSetTimeSpecCurrentSlide(t *testing.T) {
	p := newPresentation(t, map[string]any{"presentation-time": "30min"})
	spec, err := schedule.ParseAbsolute("5min", "")
	if err != nil {
		t.Fatal(err)
	}

	// Before the first slide there is nothing to assign to.
	p.SetTimeSpec(spec)

	p.AdvanceSlide()
	p.SetTimeSpec(spec)
	p.AdvanceSlide()
	p.SetTimeSpec(spec)
	p.AdvanceSlide()

	slices, err := p.ComputeSchedule()
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{300, 300, 1200}
	if len(slices) != len(want) {
		t.Fatalf("got %d slices", len(slices))
	}
	for i, sl := range slices {
		if sl.Seconds != want[i] {
			t.Fatalf("seconds = %v, want %v", slices, want)
		}
	}

	// Once computed, later passes do not change the schedule.
	p.FinalizeTOC()
	p.AdvanceSlide()
	p.SetTimeSpec(schedule.TimeSpec{Kind: schedule.Absolute, Value: 600})
	if got := p.Schedule().Slice(1).Seconds; got != 300 {
		t.Fatalf("schedule changed after lock: %v", got)
	}
}

func TestInvalidPresentationTime(t *testing.T) {
	_, err := New(Options{Meta: map[string]any{"presentation-time": "soon"}})
	if err == nil {
		t.Fatal("expected error")
	}
}
