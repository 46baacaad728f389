package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"slidepress/internal/acronyms"
	"slidepress/internal/errs"
	"slidepress/internal/filelookup"
	"slidepress/internal/models"
	"slidepress/internal/presentation"
	"slidepress/internal/rendered"
	"slidepress/internal/renderers"
	"slidepress/internal/toc"
	"slidepress/internal/xmlutil"
)

type fakeImage struct{}

func (fakeImage) Name() string               { return "img" }
func (fakeImage) Properties() map[string]any { return map[string]any{"version": 1} }

func (fakeImage) Render(_ context.Context, inputs map[string]any) (map[string]any, error) {
	return map[string]any{
		"extension": "png",
		"img_data":  inputs["value"],
	}, nil
}

type fixture struct {
	p        *rendered.Presentation
	e        *Emitter
	params   *models.RenderingParameters
	includes string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{includes: t.TempDir()}
	f.params = models.DefaultRenderingParameters()
	f.params.ResourceDir = t.TempDir()
	f.params.DeployDir = t.TempDir()

	registry := renderers.NewRegistry(renderers.ExecRunner{}, nil)
	registry.Register(fakeImage{})

	p, err := rendered.New(rendered.Options{
		Params:    f.params,
		Renderers: registry,
		Includes:  filelookup.New(f.includes),
		Warnf:     func(string, ...any) {},
	})
	if err != nil {
		t.Fatal(err)
	}
	f.p = p
	f.e = NewEmitter(p)
	f.e.Version = "1.2.3"
	return f
}

func parseSlide(t *testing.T, xml string) *presentation.Slide {
	t.Helper()
	doc := xmlutil.NewDocument()
	if err := doc.ReadFromString(`<presentation xmlns:s="` + xmlutil.Namespace + `">` + xml + `</presentation>`); err != nil {
		t.Fatal(err)
	}
	return presentation.NewSlide(doc.Root().SelectElement("slide"), "test.xml")
}

func controller(t *testing.T, name string, options map[string]any) Controller {
	t.Helper()
	c, err := NewRegistry().New(name, options)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestEmitContentExpandsPauses(t *testing.T) {
	f := newFixture(t)
	slide := parseSlide(t, `<slide><s:var name="heading" value="Hi"/>A <s:pause/> B -- C</slide>`)

	slides, err := controller(t, "content", nil).Render(context.Background(), f.e, slide)
	if err != nil {
		t.Fatal(err)
	}
	if len(slides) != 2 {
		t.Fatalf("got %d slides, want 2", len(slides))
	}

	wantContent := []string{"A ", "A  B – C"}
	for i, s := range slides {
		if s.Number() != i+1 {
			t.Errorf("slide %d has number %d", i, s.Number())
		}
		if s.Var("sub_slide_index") != i {
			t.Errorf("slide %d has sub slide index %v", i, s.Var("sub_slide_index"))
		}
		if s.Var("heading") != "Hi" {
			t.Errorf("slide %d lost its XML variable: %v", i, s.Vars)
		}
		if got := s.Content(""); got != wantContent[i] {
			t.Errorf("slide %d content = %q, want %q", i, got, wantContent[i])
		}
	}
	if f.p.TotalSlideCount() != 2 {
		t.Fatalf("total slide count = %d", f.p.TotalSlideCount())
	}

	// The authored slide is left untouched for the next pass.
	if got := xmlutil.InnerText(slide.Containers["default"]); !strings.Contains(got, "--") {
		t.Fatalf("source containers were mangled: %q", got)
	}
}

func TestHonorPausesDisabled(t *testing.T) {
	f := newFixture(t)
	f.params.HonorPauses = false
	slide := parseSlide(t, `<slide>A <s:pause/> B</slide>`)

	slides, err := f.e.EmitContent(context.Background(), slide, map[string]any{"extra": 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(slides) != 1 || slides[0].Var("extra") != 1 {
		t.Fatalf("unexpected slides %+v", slides)
	}
}

func freezeTOC(p *rendered.Presentation, headings int) {
	for i := 0; i < headings; i++ {
		p.AdvanceSlide()
		p.TOC().NewHeading(presentation.LevelChapter, fmt.Sprintf("Chapter %d", i+1))
	}
	p.FinalizeTOC()
}

func tocPages(t *testing.T, slides []*rendered.Slide) [][]string {
	t.Helper()
	var out [][]string
	for _, s := range slides {
		var page []string
		for _, cmd := range s.Var("partial_toc").([]toc.Command) {
			if cmd.Type == toc.ItemCommand {
				page = append(page, cmd.Entry.FullNumber)
			}
		}
		out = append(out, page)
	}
	return out
}

func TestTOCPagination(t *testing.T) {
	tests := []struct {
		name  string
		vars  string
		pages string
	}{
		{"all", "", "1,2|3,4|5"},
		{"start at", `<s:var name="start_at" value="2"/>`, "2,3|4,5"},
		{"end before", `<s:var name="end_before" value="4"/>`, "1,2|3"},
		{"range", `<s:var name="start_at" value="3"/><s:var name="end_before" value="4"/>`, "3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			freezeTOC(f.p, 5)

			slide := parseSlide(t, `<slide type="toc">`+tt.vars+`</slide>`)
			c := controller(t, "toc", map[string]any{"toc_items_per_slide": "2"})
			slides, err := c.Render(context.Background(), f.e, slide)
			if err != nil {
				t.Fatal(err)
			}

			var got []string
			for _, page := range tocPages(t, slides) {
				got = append(got, strings.Join(page, ","))
			}
			if strings.Join(got, "|") != tt.pages {
				t.Fatalf("pages = %q, want %q", strings.Join(got, "|"), tt.pages)
			}
			for i, s := range slides {
				if s.Type != "toc" || s.Number() != i+1 {
					t.Errorf("slide %d: type %q number %d", i, s.Type, s.Number())
				}
			}
		})
	}
}

func TestTOCBeforeFreezeEmitsNothing(t *testing.T) {
	f := newFixture(t)
	slides, err := controller(t, "toc", nil).Render(context.Background(), f.e, parseSlide(t, `<slide type="toc"/>`))
	if err != nil {
		t.Fatal(err)
	}
	if len(slides) != 0 || f.p.CurrentSlideNumber() != 0 {
		t.Fatalf("got %d slides at slide number %d", len(slides), f.p.CurrentSlideNumber())
	}
}

func TestTOCUnknownStart(t *testing.T) {
	f := newFixture(t)
	freezeTOC(f.p, 1)
	slide := parseSlide(t, `<slide type="toc"><s:var name="start_at" value="9"/></slide>`)
	_, err := controller(t, "toc", nil).Render(context.Background(), f.e, slide)
	if !errs.IsKind(err, errs.KindUnknownParameter) {
		t.Fatalf("expected unknown parameter error, got %v", err)
	}
}

func TestAcronymPages(t *testing.T) {
	f := newFixture(t)
	db := filepath.Join(f.includes, "acronyms.json")
	data := `{"TLS": {"text": "Transport Layer Security"}, "AES": {"text": "Advanced Encryption Standard"}, "RSA": {"text": "Rivest Shamir Adleman"}}`
	if err := os.WriteFile(db, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	if err := f.p.Acronyms().Load(db); err != nil {
		t.Fatal(err)
	}
	f.p.Acronyms().Resolve("TLS")
	f.p.Acronyms().Resolve("AES")

	c := controller(t, "acronym", map[string]any{"acronyms_per_slide": 1})
	slides, err := c.Render(context.Background(), f.e, parseSlide(t, `<slide type="acronyms"/>`))
	if err != nil {
		t.Fatal(err)
	}
	if len(slides) != 2 {
		t.Fatalf("got %d slides, want 2", len(slides))
	}
	for i, want := range []string{"AES", "TLS"} {
		page := slides[i].Var("acronyms").([]acronyms.Entry)
		if len(page) != 1 || page[0].ID != want {
			t.Errorf("page %d = %+v, want %s", i, page, want)
		}
	}
}

const layeredSVG = `<?xml version="1.0"?>
<svg xmlns="http://www.w3.org/2000/svg" xmlns:inkscape="http://www.inkscape.org/namespaces/inkscape" width="100" height="50">
  <g id="a" inkscape:groupmode="layer" inkscape:label="A"><rect/></g>
  <g id="b" inkscape:groupmode="layer" inkscape:label="B"><rect/></g>
  <g id="c" inkscape:groupmode="layer" inkscape:label="C"><rect/></g>
</svg>`

func TestAnimation(t *testing.T) {
	tests := []struct {
		name     string
		vars     string
		collapse bool
		frames   []int
	}{
		{"all frames", "", false, []int{1, 2, 3}},
		{"collapsed", "", true, []int{3}},
		{"filtered", `<s:var name="frames" value="2-"/>`, false, []int{2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.params.CollapseAnimation = tt.collapse
			if err := os.WriteFile(filepath.Join(f.includes, "anim.svg"), []byte(layeredSVG), 0644); err != nil {
				t.Fatal(err)
			}

			slide := parseSlide(t, `<slide type="animation"><s:var name="filename" value="anim.svg"/>`+tt.vars+`</slide>`)
			slides, err := controller(t, "animation", nil).Render(context.Background(), f.e, slide)
			if err != nil {
				t.Fatal(err)
			}
			if len(slides) != len(tt.frames) {
				t.Fatalf("got %d slides, want %d", len(slides), len(tt.frames))
			}
			seen := make(map[string]bool)
			for i, s := range slides {
				if s.Var("frame") != tt.frames[i] {
					t.Errorf("slide %d shows frame %v, want %d", i, s.Var("frame"), tt.frames[i])
				}
				image := s.Var("image").(string)
				if !strings.HasPrefix(image, "imgs/anim/") || !strings.HasSuffix(image, ".png") {
					t.Errorf("unexpected image path %q", image)
				}
				if seen[image] {
					t.Errorf("frame image %q emitted twice", image)
				}
				seen[image] = true
				if _, err := os.Stat(filepath.Join(f.params.ResourceDir, filepath.FromSlash(image))); err != nil {
					t.Errorf("frame image not written: %v", err)
				}
			}
		})
	}
}

func TestAnimationFilename(t *testing.T) {
	tests := []struct {
		name string
		vars string
		kind errs.Kind
	}{
		{"missing", "", errs.KindMissingParameter},
		{"not svg", `<s:var name="filename" value="x.png"/>`, errs.KindUnknownParameter},
		{"not found", `<s:var name="filename" value="x.svg"/>`, errs.KindFileLookup},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			slide := parseSlide(t, `<slide type="animation">`+tt.vars+`</slide>`)
			_, err := controller(t, "animation", nil).Render(context.Background(), f.e, slide)
			if !errs.IsKind(err, tt.kind) {
				t.Fatalf("expected %s error, got %v", tt.kind, err)
			}
		})
	}
}

func TestFeedback(t *testing.T) {
	f := newFixture(t)
	f.e.Sources = []models.SourceVersion{{Filename: "talk.xml", SHA256: "abc"}}
	freezeTOC(f.p, 1)
	f.p.FrozenTOC().Advance()

	slide := parseSlide(t, `<slide type="feedback"><s:var name="topic" value="x"/></slide>`)
	slides, err := controller(t, "feedback", nil).Render(context.Background(), f.e, slide)
	if err != nil {
		t.Fatal(err)
	}
	if len(slides) != 1 {
		t.Fatalf("got %d slides, want 1", len(slides))
	}

	var info SlideInfo
	if err := json.Unmarshal([]byte(slides[0].Var("json_slide_info").(string)), &info); err != nil {
		t.Fatal(err)
	}
	if info.SlideNo != 1 || info.Renderer != "1.2.3" || info.Variables["topic"] != "x" {
		t.Fatalf("unexpected slide info %+v", info)
	}
	if len(info.TOCEntry) != 1 || info.TOCEntry[0] != "Chapter 1" {
		t.Fatalf("toc entry = %v", info.TOCEntry)
	}
	if !f.p.HasFeature(rendered.FeatureFeedback) {
		t.Fatal("feedback feature not enabled")
	}
}

func TestRegistryOptions(t *testing.T) {
	r := NewRegistry()
	if _, err := r.New("nope", nil); !errs.IsKind(err, errs.KindIllegalStyle) {
		t.Fatalf("expected illegal style error, got %v", err)
	}
	if _, err := r.New("toc", map[string]any{"bogus": 1}); !errs.IsKind(err, errs.KindIllegalStyle) {
		t.Fatalf("unknown option accepted: %v", err)
	}
	if _, err := r.New("toc", map[string]any{"toc_items_per_slide": 0}); err == nil {
		t.Fatal("zero items per slide accepted")
	}
	c, err := r.New("acronym", map[string]any{"chars_per_line": "30"})
	if err != nil {
		t.Fatal(err)
	}
	if a := c.(*Acronym); a.CharsPerLine != 30 || a.LinesPerSlide != 10 {
		t.Fatalf("options not applied: %+v", a)
	}
}
