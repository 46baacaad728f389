package xmlutil

import (
	"strings"
	"testing"

	"github.com/beevik/etree"
)

func TestNormalizeNamespace(t *testing.T) {
	doc := NewDocument()
	err := doc.ReadFromString(`<presentation xmlns:py="` + Namespace + `"><slide><py:tex long="1">x</py:tex><b>y</b></slide></presentation>`)
	if err != nil {
		t.Fatal(err)
	}
	NormalizeNamespace(doc.Root(), Namespace, Prefix)

	out := ToString(doc.Root())
	if !strings.Contains(out, `<s:tex long="1">x</s:tex>`) {
		t.Fatalf("prefix not normalized: %s", out)
	}
	if strings.Contains(out, "xmlns:py") || !strings.Contains(out, `xmlns:s="`+Namespace+`"`) {
		t.Fatalf("declarations not rewritten: %s", out)
	}
}

func TestParseFragment(t *testing.T) {
	tokens, err := ParseFragment(`text <b>bold</b><s:tt>x</s:tt>`)
	if err != nil {
		t.Fatal(err)
	}
	if len(tokens) != 3 {
		t.Fatalf("got %d tokens, want 3", len(tokens))
	}
	el, ok := tokens[2].(*etree.Element)
	if !ok || !IsHook(el) || el.Parent() != nil {
		t.Fatalf("third token should be a detached hook element, got %#v", tokens[2])
	}

	if _, err := ParseFragment("<b>unclosed"); err == nil {
		t.Fatal("expected error for malformed fragment")
	}
}

func TestSerialize(t *testing.T) {
	doc := NewDocument()
	if err := doc.ReadFromString(`<p>a &amp; b<i x="1&lt;2">c</i><br/></p>`); err != nil {
		t.Fatal(err)
	}
	root := doc.Root()

	if got, want := InnerXML(root), `a &amp; b<i x="1&lt;2">c</i><br/>`; got != want {
		t.Errorf("InnerXML() = %s, want %s", got, want)
	}
	if got, want := ToString(root), `<p>a &amp; b<i x="1&lt;2">c</i><br/></p>`; got != want {
		t.Errorf("ToString() = %s, want %s", got, want)
	}
}

func TestReplaceAndRemoveFollowing(t *testing.T) {
	doc := NewDocument()
	if err := doc.ReadFromString(`<p>a<x/>b<y/>c</p>`); err != nil {
		t.Fatal(err)
	}
	root := doc.Root()
	x := root.SelectElement("x")
	if err := Replace(x, []etree.Token{etree.NewText("1"), etree.NewElement("z")}); err != nil {
		t.Fatal(err)
	}
	if got := ToString(root); got != `<p>a1<z/>b<y/>c</p>` {
		t.Fatalf("after replace: %s", got)
	}

	RemoveWithFollowing(root.SelectElement("y"))
	if got := ToString(root); got != `<p>a1<z/>b</p>` {
		t.Fatalf("after cut: %s", got)
	}
}

func TestDedent(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"common indent", "\n\t\tif x:\n\t\t\ty()\n\n\t\tz()\n", "if x:\n    y()\n\nz()"},
		{"mixed", "  a\n    b\n", "a\n  b"},
		{"none", "a\nb", "a\nb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Dedent(tt.in); got != tt.want {
				t.Fatalf("Dedent(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestBoolAttr(t *testing.T) {
	el := etree.NewElement("x")
	el.CreateAttr("a", "Yes")
	el.CreateAttr("b", "maybe")

	if v, err := BoolAttr(el, "a", false); err != nil || !v {
		t.Fatalf("a = %v, %v", v, err)
	}
	if v, err := BoolAttr(el, "missing", true); err != nil || !v {
		t.Fatalf("default not used: %v, %v", v, err)
	}
	if _, err := BoolAttr(el, "b", false); err == nil {
		t.Fatal("expected error for invalid value")
	}
}

func TestToMap(t *testing.T) {
	doc := NewDocument()
	if err := doc.ReadFromString(`<variables><hours>2</hours><nested><x>1</x></nested></variables>`); err != nil {
		t.Fatal(err)
	}
	m := ToMap(doc.Root()).(map[string]any)
	if m["hours"] != "2" || m["nested"].(map[string]any)["x"] != "1" {
		t.Fatalf("unexpected map %v", m)
	}
}
