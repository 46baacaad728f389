package svg

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"slidepress/internal/errs"
)

const layeredSVG = `<?xml version="1.0"?>
<svg xmlns="http://www.w3.org/2000/svg" xmlns:inkscape="http://www.inkscape.org/namespaces/inkscape" width="100" height="50">
  <g id="bg" inkscape:groupmode="layer" inkscape:label="protect:Background"><rect/></g>
  <g id="a" inkscape:groupmode="layer" inkscape:label="A"><text>{who} says hi</text></g>
  <g id="b" inkscape:groupmode="layer" inkscape:label="nostop:B"/>
  <g id="c" inkscape:groupmode="layer" inkscape:label="reset:C"/>
  <g id="hidden" inkscape:groupmode="layer" inkscape:label="Hidden" style="display:none"/>
</svg>`

func mustParse(t *testing.T, data string) *Document {
	t.Helper()
	doc, err := ParseDocument([]byte(data))
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

func frameStrings(frames []Frame) [][]string {
	var out [][]string
	for _, f := range frames {
		var cmds []string
		for _, c := range f.Commands {
			cmds = append(cmds, c.String())
		}
		out = append(out, cmds)
	}
	return out
}

func TestLayerTags(t *testing.T) {
	doc := mustParse(t, layeredSVG)
	layers := doc.Layers()
	if len(layers) != 5 {
		t.Fatalf("found %d layers, want 5", len(layers))
	}
	if !layers[0].Tags()[TagProtect] {
		t.Fatal("background should be protected")
	}
	if len(layers[1].Tags()) != 0 {
		t.Fatalf("layer A has tags %v", layers[1].Tags())
	}
	if layers[4].Visible() {
		t.Fatal("hidden layer reported visible")
	}
}

func TestCompileCompose(t *testing.T) {
	frames, err := Compile(mustParse(t, layeredSVG), ModeCompose)
	if err != nil {
		t.Fatal(err)
	}

	hideAll := []string{"hide(bg)", "hide(a)", "hide(b)", "hide(c)"}
	want := [][]string{
		append(append([]string{}, hideAll...), "show(bg)"),
		append(append([]string{}, hideAll...), "show(bg)", "show(a)"),
		// b is nostop; c resets the unprotected layers a and b.
		append(append([]string{}, hideAll...), "show(bg)", "show(a)", "show(b)", "hide(a)", "hide(b)", "show(c)"),
	}
	if got := frameStrings(frames); !reflect.DeepEqual(got, want) {
		t.Fatalf("frames =\n%v\nwant\n%v", got, want)
	}
}

func TestCompileReplaceConsidersAllLayers(t *testing.T) {
	frames, err := Compile(mustParse(t, layeredSVG), ModeReplace)
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != 4 {
		t.Fatalf("got %d frames, want 4", len(frames))
	}
	last := frames[len(frames)-1].Commands
	if got := last[len(last)-1].String(); got != "hide(c)" {
		t.Fatalf("last command = %s, want hide(c)", got)
	}
}

func TestRenderFrameLeavesSourceUntouched(t *testing.T) {
	doc := mustParse(t, layeredSVG)
	frames, err := Compile(doc, ModeComposeAll)
	if err != nil {
		t.Fatal(err)
	}
	out, err := RenderFrame(doc, frames[0])
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), `id="a" inkscape:groupmode="layer" inkscape:label="A" style="display:none"`) {
		t.Fatalf("frame 1 should hide layer a:\n%s", out)
	}
	if l, _ := doc.Layer("a"); !l.Visible() {
		t.Fatal("source document was modified")
	}
}

func TestFrameFilter(t *testing.T) {
	f, err := ParseFrameFilter("1, 3-4, 7-")
	if err != nil {
		t.Fatal(err)
	}
	var got []int
	for n := 1; n <= 9; n++ {
		if f.Match(n) {
			got = append(got, n)
		}
	}
	if want := []int{1, 3, 4, 7, 8, 9}; !reflect.DeepEqual(got, want) {
		t.Fatalf("matched %v, want %v", got, want)
	}

	for _, bad := range []string{"0", "x", "4-2"} {
		if _, err := ParseFrameFilter(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestFormatText(t *testing.T) {
	doc := mustParse(t, layeredSVG)
	if err := FormatText(doc, map[string]string{"who": "Alice"}); err != nil {
		t.Fatal(err)
	}
	out, _ := doc.Bytes()
	if !strings.Contains(string(out), "Alice says hi") {
		t.Fatalf("placeholder not substituted:\n%s", out)
	}

	err := FormatText(mustParse(t, layeredSVG), map[string]string{})
	if !errs.IsKind(err, errs.KindMissingVariable) {
		t.Fatalf("expected missing variable error, got %v", err)
	}
}

func TestWriterSizesCanvas(t *testing.T) {
	w := NewWriter()
	w.Margin = 0
	p := w.NewPath(0, 10, "signal")
	p.HorizRel(20).VertRel(-10)
	p.Style().Set("stroke-width", "0.5")

	out, err := w.String()
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		`d="M 0.0,10.0 h 20.0 v -10.0"`,
		`viewBox="0.0 0.0 20.0 10.0"`,
		`inkscape:label="signal"`,
		`stroke-width:0.5`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output lacks %s:\n%s", want, out)
		}
	}
}

func TestPathReturnTo(t *testing.T) {
	w := NewWriter()
	p := w.NewPath(5, 5, "x")
	p.ReturnTo(func() {
		p.MoveRel(0, -10).HorizRel(10)
	})
	if pos := p.Pos(); pos != (Point{5, 5}) {
		t.Fatalf("pos = %v, want (5,5)", pos)
	}
}

func TestValidator(t *testing.T) {
	doc := mustParse(t, `<svg><text style="font-family:'Missing Sans'">x</text><tspan style="font-family:Present">y</tspan></svg>`)
	lookup := func(_ context.Context, family string) (bool, error) {
		return family == "Present", nil
	}

	var warnings []string
	v := &Validator{Severity: SeverityWarn, Lookup: lookup, known: map[string]bool{}, Warnf: func(f string, a ...any) {
		warnings = append(warnings, f)
	}}
	if err := v.Validate(context.Background(), "x.svg", doc); err != nil {
		t.Fatal(err)
	}
	if len(warnings) != 1 {
		t.Fatalf("got %d warnings, want 1", len(warnings))
	}

	v.Severity = SeverityError
	if err := v.Validate(context.Background(), "x.svg", doc); !errs.IsKind(err, errs.KindUndefinedFont) {
		t.Fatalf("expected undefined font error, got %v", err)
	}
}
