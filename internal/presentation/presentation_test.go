package presentation

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"slidepress/internal/errs"
	"slidepress/internal/xmlutil"
)

const header = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"

func write(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

type recorder struct {
	lines []string
}

func (r *recorder) Warnf(format string, args ...any) {
	r.lines = append(r.lines, fmt.Sprintf(format, args...))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "acronyms.json", `{}`)
	write(t, dir, "parts/intro.xml", header+`<presentation><slide>intro</slide></presentation>`)
	main := write(t, dir, "main.xml", header+`<presentation xmlns:p="`+xmlutil.Namespace+`">
	<meta>
		<title>Talk</title>
		<presentation-time>30 min</presentation-time>
		<agenda-granularity>10</agenda-granularity>
		<venue>Hall</venue>
		<variables><speaker>Ann</speaker></variables>
	</meta>
	<acronyms src="acronyms.json"/>
	<chapter>Start</chapter>
	<include src="parts/intro.xml"/>
	<slide type="two">
		<p:var name="heading" value="H"/>
		<p:content name="left">L</p:content>
		<p:content name="right">R</p:content>
	</slide>
	<slide hide="yes">hidden</slide>
	<marker name="end"/>
	<bogus/>
</presentation>`)

	rec := &recorder{}
	l := NewLoader()
	l.Warnf = rec.Warnf
	p, err := l.Load(main)
	if err != nil {
		t.Fatal(err)
	}

	if len(p.Directives) != 5 {
		t.Fatalf("got %d directives: %#v", len(p.Directives), p.Directives)
	}
	if ref, ok := p.Directives[0].(*AcronymRef); !ok || ref.Path != filepath.Join(dir, "acronyms.json") {
		t.Fatalf("directive 0 = %#v", p.Directives[0])
	}
	if h, ok := p.Directives[1].(*Heading); !ok || h.Level != LevelChapter || h.Text != "Start" {
		t.Fatalf("directive 1 = %#v", p.Directives[1])
	}
	if s, ok := p.Directives[2].(*Slide); !ok || s.Type != "default" || xmlutil.InnerText(s.Containers["default"]) != "intro" {
		t.Fatalf("directive 2 = %#v", p.Directives[2])
	}

	s := p.Directives[3].(*Slide)
	if s.Type != "two" || s.Var("heading", "") != "H" {
		t.Fatalf("slide = %#v", s)
	}
	if names := s.Containers.Names(); strings.Join(names, ",") != "left,right" {
		t.Fatalf("containers = %v", names)
	}
	if strings.Contains(xmlutil.ToString(s.Element), ":var") {
		t.Fatal("s:var not removed")
	}
	if m, ok := p.Directives[4].(*Marker); !ok || m.Name != "end" {
		t.Fatalf("directive 4 = %#v", p.Directives[4])
	}

	if len(p.Sources) != 2 {
		t.Fatalf("sources = %v", p.Sources)
	}
	if p.Metadata.Title != "Talk" || p.Metadata.PresentationTime != "30 min" || p.Metadata.AgendaGranularity != 10 {
		t.Fatalf("metadata = %#v", p.Metadata)
	}
	if p.Metadata.Extra["venue"] != "Hall" || p.Metadata.Variables["speaker"] != "Ann" {
		t.Fatalf("metadata = %#v", p.Metadata)
	}
	if len(rec.lines) != 1 || !strings.Contains(rec.lines[0], "bogus") {
		t.Fatalf("warnings = %q", rec.lines)
	}
}

func TestInjectedMetadata(t *testing.T) {
	dir := t.TempDir()
	main := write(t, dir, "main.xml", header+`<presentation><meta><title>Old</title></meta></presentation>`)

	l := NewLoader()
	l.Injected = map[string]any{"title": "New"}
	p, err := l.Load(main)
	if err != nil {
		t.Fatal(err)
	}
	if p.Metadata.Title != "New" {
		t.Fatalf("title = %q", p.Metadata.Title)
	}
}

func TestCyclicInclude(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "b.xml", header+`<presentation><include src="a.xml"/></presentation>`)
	a := write(t, dir, "a.xml", header+`<presentation><include src="b.xml"/></presentation>`)

	_, err := NewLoader().Load(a)
	if !errs.IsKind(err, errs.KindCyclicInclude) {
		t.Fatalf("expected cyclic include error, got %v", err)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
		kind    errs.Kind
	}{
		{"wrong root", `<slides/>`, errs.KindMalformedXML},
		{"malformed", `<presentation x=></presentation>`, errs.KindMalformedXML},
		{"missing include", `<presentation><include src="nope.xml"/></presentation>`, errs.KindFileLookup},
		{"include without src", `<presentation><include/></presentation>`, errs.KindMalformedXML},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := write(t, dir, strings.ReplaceAll(tt.name, " ", "_")+".xml", tt.content)
			if _, err := NewLoader().Load(path); !errs.IsKind(err, tt.kind) {
				t.Fatalf("expected %s, got %v", tt.kind, err)
			}
		})
	}

	if _, err := NewLoader().Load(filepath.Join(dir, "absent.xml")); !errs.IsKind(err, errs.KindXMLNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestHash(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "code.py", "print(1)\n")
	main := write(t, dir, "main.xml", header+`<presentation xmlns:s="`+xmlutil.Namespace+`"><slide><s:code src="code.py" lang="python"/></slide></presentation>`)

	l := NewLoader()
	p, err := l.Load(main)
	if err != nil {
		t.Fatal(err)
	}
	deps, err := p.Dependencies(l)
	if err != nil {
		t.Fatal(err)
	}
	if len(deps) != 2 || deps[0] != filepath.Join(dir, "code.py") {
		t.Fatalf("deps = %v", deps)
	}

	before, err := p.Hash(l)
	if err != nil {
		t.Fatal(err)
	}
	write(t, dir, "code.py", "print(2)\n")
	after, err := p.Hash(l)
	if err != nil {
		t.Fatal(err)
	}
	if before == after || len(before) != 32 {
		t.Fatalf("hash did not track dependency: %s, %s", before, after)
	}
}

func TestDecodeMetadataRejectsTextVariables(t *testing.T) {
	if _, err := DecodeMetadata(map[string]any{"variables": "x"}); err == nil {
		t.Fatal("expected error")
	}
	md, err := DecodeMetadata(map[string]any{"variables": "  "})
	if err != nil || md.Variables != nil {
		t.Fatalf("blank variables: %#v, %v", md, err)
	}
}
