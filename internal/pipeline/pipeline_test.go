package pipeline

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"slidepress/internal/errs"
	"slidepress/internal/models"
	"slidepress/internal/presentation"
	"slidepress/internal/templates"
	"slidepress/internal/xmlutil"
)

func load(t *testing.T, body string) *presentation.Presentation {
	t.Helper()
	path := filepath.Join(t.TempDir(), "talk.xml")
	doc := `<?xml version="1.0" encoding="UTF-8"?>` + "\n" +
		`<presentation xmlns:s="` + xmlutil.Namespace + `">` + body + `</presentation>`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}
	l := presentation.NewLoader()
	l.Warnf = t.Logf
	p, err := l.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func newRenderer(t *testing.T) *Renderer {
	t.Helper()
	params := models.DefaultRenderingParameters()
	params.ResourceDir = t.TempDir()
	params.DeployDir = t.TempDir()
	r, err := New(Options{Params: params, Templates: []templates.Layer{templates.Builtin()}, Warnf: t.Logf})
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func render(t *testing.T, body string) (*Result, string) {
	t.Helper()
	res, err := newRenderer(t).Render(context.Background(), load(t, body))
	if err != nil {
		t.Fatal(err)
	}
	index, err := os.ReadFile(res.IndexPath)
	if err != nil {
		t.Fatal(err)
	}
	return res, string(index)
}

func TestSingleSlide(t *testing.T) {
	res, index := render(t, `<slide type="default">Hello</slide>`)

	if len(res.Slides) != 1 {
		t.Fatalf("got %d slides", len(res.Slides))
	}
	s := res.Slides[0]
	if s.Number() != 1 || s.Var("total_slide_count") != 1 {
		t.Fatalf("slide vars = %v", s.Vars)
	}
	if !strings.Contains(index, `id="slide_1"`) || !strings.Contains(index, "Hello") {
		t.Fatalf("index lacks the slide:\n%s", index)
	}
	if _, err := os.Stat(filepath.Join(res.Presentation.Params().ResourceDir, "imgs")); !os.IsNotExist(err) {
		t.Fatalf("unexpected image directory: %v", err)
	}
}

func TestPauseReveal(t *testing.T) {
	res, _ := render(t, `<slide>A<s:pause/>B<s:pause/>C</slide>`)

	want := []string{"A", "AB", "ABC"}
	if len(res.Slides) != len(want) {
		t.Fatalf("got %d slides, want %d", len(res.Slides), len(want))
	}
	for i, s := range res.Slides {
		if got := strings.TrimSpace(s.Text("")); got != want[i] {
			t.Errorf("slide %d text = %q, want %q", i+1, got, want[i])
		}
		if s.Number() != i+1 || s.Var("sub_slide_index") != i || s.Var("total_slide_count") != 3 {
			t.Errorf("slide %d vars = %v", i+1, s.Vars)
		}
	}
}

func TestTOCNumbering(t *testing.T) {
	res, index := render(t, `
	<chapter>Intro</chapter><slide>one</slide>
	<section>Detail</section><slide>two</slide>
	<chapter>End</chapter><slide>three</slide>`)

	entries := res.Presentation.FrozenTOC().Entries()
	want := []struct {
		number string
		page   int
	}{{"1", 1}, {"1.1", 2}, {"2", 3}}
	if len(entries) != len(want) {
		t.Fatalf("got %d entries", len(entries))
	}
	for i, w := range want {
		e := entries[i]
		if e.FullNumber != w.number || len(e.Pages) != 1 || e.Pages[0] != w.page {
			t.Errorf("entry %d = %s %v, want %s [%d]", i, e.FullNumber, e.Pages, w.number, w.page)
		}
	}
	for i, s := range res.Slides {
		e := (&templates.SlideData{Slide: s}).TOCEntry()
		if e == nil || e.FullNumber != want[i].number {
			t.Errorf("slide %d has TOC entry %v", i+1, e)
		}
	}
	if !strings.Contains(index, `<span class="chapter">Intro / Detail</span>`) {
		t.Fatalf("footer lacks chapter:\n%s", index)
	}
}

func TestTOCSlide(t *testing.T) {
	res, index := render(t, `
	<slide type="toc"/>
	<chapter>Intro</chapter><slide>one</slide>
	<chapter>End</chapter><slide>two</slide>`)

	if len(res.Slides) != 3 || res.Slides[0].Type != "toc" {
		t.Fatalf("slides = %d, first %s", len(res.Slides), res.Slides[0].Type)
	}
	if e := res.Presentation.FrozenTOC().Entries(); e[0].Pages[0] != 2 || e[1].Pages[0] != 3 {
		t.Fatalf("entries = %+v", e)
	}
	if !strings.Contains(index, `<span class="tocnumber">2</span> End`) {
		t.Fatalf("TOC slide incomplete:\n%s", index)
	}
}

func TestSchedule(t *testing.T) {
	res, _ := render(t, `<meta><presentation-time>0:10</presentation-time></meta>
	<slide>one<s:time abs="2:00"/></slide>
	<slide>two</slide>`)

	if len(res.Schedule) != 2 {
		t.Fatalf("got %d time slices", len(res.Schedule))
	}
	for i, want := range []float64{120, 480} {
		if got := res.Schedule[i].Seconds; math.Abs(got-want) > 1e-6 {
			t.Errorf("slide %d: %v seconds, want %v", i+1, got, want)
		}
	}
}

func TestScheduleAcrossPauses(t *testing.T) {
	res, _ := render(t, `<meta><presentation-time>30min</presentation-time></meta>
	<slide>A<s:time abs="5min"/><s:pause/>B</slide>
	<slide>rest</slide>`)

	want := []float64{300, 300, 1200}
	if len(res.Schedule) != len(want) {
		t.Fatalf("got %d time slices", len(res.Schedule))
	}
	for i, w := range want {
		if got := res.Schedule[i].Seconds; math.Abs(got-w) > 1e-6 {
			t.Errorf("slide %d: %v seconds, want %v", i+1, got, w)
		}
	}
}

func TestUnknownSlideType(t *testing.T) {
	_, err := newRenderer(t).Render(context.Background(), load(t, `<slide type="nope">x</slide>`))
	e, ok := errs.As(err)
	if !ok || e.Kind != errs.KindUnknownSlideType {
		t.Fatalf("expected unknown slide type error, got %v", err)
	}
	if !strings.HasSuffix(e.File, "talk.xml") {
		t.Fatalf("error not attributed to source: %v", err)
	}
}

func TestRenderIsIdempotent(t *testing.T) {
	pres := load(t, `<meta><title>Talk</title></meta>
	<chapter>A</chapter>
	<slide type="toc"/>
	<slide>x<s:pause/>y <s:ac>TLS</s:ac> -- <s:enq>z</s:enq></slide>
	<marker name="end"/>
	<slide>last<s:marker name="last"/></slide>`)

	r := newRenderer(t)
	var outputs [][]byte
	for i := 0; i < 2; i++ {
		res, err := r.Render(context.Background(), pres)
		if err != nil {
			t.Fatal(err)
		}
		data, err := os.ReadFile(res.IndexPath)
		if err != nil {
			t.Fatal(err)
		}
		if err := os.Remove(res.IndexPath); err != nil {
			t.Fatal(err)
		}
		outputs = append(outputs, data)
	}
	if !bytes.Equal(outputs[0], outputs[1]) {
		t.Fatalf("renders differ:\n%s\n---\n%s", outputs[0], outputs[1])
	}
}
