package xmlhooks

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"golang.org/x/text/language"

	"slidepress/internal/boolexpr"
	"slidepress/internal/errs"
	"slidepress/internal/highlight"
	"slidepress/internal/rendered"
	"slidepress/internal/schedule"
	"slidepress/internal/varsub"
	"slidepress/internal/xmlutil"
)

func builtin() []Hook {
	return []Hook{
		NewHook("tex", handleTex),
		NewHook("img", handleImg),
		NewHook("plot", handlePlot),
		NewHook("graphviz", handleGraphviz),
		NewHook("dtg", handleDTG),
		NewHook("qrcode", handleQRCode),
		NewHook("code", handleCode),
		NewHook("term", handleTerm),
		NewHook("verb", handleVerb),
		NewHook("tt", handleTT),
		NewHook("nth", handleNth),
		NewHook("enq", handleEnq),
		NewHook("ac", handleAcronym),
		NewHook("bool", handleBool),
		NewHook("time", handleTime),
		NewHook("exec", handleExec),
		NewHook("sub", handleSub),
		NewHook("agenda", handleAgenda),
		NewHook("file", handleFile),
		NewHook("circuit", handleCircuit),
		NewHook("marker", handleMarker),
	}
}

// sourceText returns the dedented text of el, read from the include file
// named by its src attribute if present.
func sourceText(p *rendered.Presentation, el *etree.Element) (string, error) {
	text := xmlutil.InnerText(el)
	if src := el.SelectAttrValue("src", ""); src != "" {
		data, _, err := p.Includes().ReadFile(src)
		if err != nil {
			return "", err
		}
		text = string(data)
	}
	return xmlutil.Dedent(text), nil
}

func requireAttr(el *etree.Element, name string) (string, error) {
	attr := el.SelectAttr(name)
	if attr == nil {
		return "", errs.Newf(errs.KindMalformedXML, "<%s> needs a '%s' attribute", el.FullTag(), name)
	}
	return attr.Value, nil
}

func handleCode(_ context.Context, p *rendered.Presentation, el *etree.Element) (Result, error) {
	text, err := sourceText(p, el)
	if err != nil {
		return Result{}, err
	}
	out, err := highlight.Code(text, el.SelectAttrValue("lang", ""))
	if err != nil {
		return Result{}, err
	}
	nodes, err := xmlutil.ParseFragment(out)
	if err != nil {
		return Result{}, fmt.Errorf("failed to parse highlighted code: %w", err)
	}
	p.AddFeature(rendered.FeatureHighlight)
	return Replace(false, nodes...), nil
}

// splitTerminal separates prompted command lines from their output. Commands
// continued with a trailing backslash span several lines. Trailing newlines
// stay outside the command span.
func splitTerminal(text string, prompt *regexp.Regexp) []etree.Token {
	lines := strings.SplitAfter(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	var out []etree.Token
	for len(lines) > 0 {
		line := lines[0]
		lines = lines[1:]

		loc := prompt.FindStringIndex(line)
		if loc == nil || loc[0] != 0 {
			out = append(out, etree.NewText(line))
			continue
		}
		out = append(out, etree.NewText(line[:loc[1]]))
		command := line[loc[1]:]
		for strings.HasSuffix(strings.TrimSpace(line), `\`) && len(lines) > 0 {
			line = lines[0]
			lines = lines[1:]
			command += line
		}

		trailing := strings.HasSuffix(command, "\n")
		span := etree.NewElement("span")
		span.CreateAttr("class", "command")
		span.SetText(strings.TrimRight(command, "\n"))
		out = append(out, span)
		if trailing {
			out = append(out, etree.NewText("\n"))
		}
	}
	return out
}

func handleTerm(_ context.Context, p *rendered.Presentation, el *etree.Element) (Result, error) {
	text, err := sourceText(p, el)
	if err != nil {
		return Result{}, err
	}

	pre := etree.NewElement("pre")
	pre.CreateAttr("class", "terminal")
	if prompt := el.SelectAttr("prompt"); prompt != nil {
		re, err := regexp.Compile(prompt.Value)
		if err != nil {
			return Result{}, errs.Wrap(errs.KindMalformedXML, err, "invalid terminal prompt %q", prompt.Value)
		}
		for _, tok := range splitTerminal(text, re) {
			pre.AddChild(tok)
		}
	} else {
		pre.SetText(text)
	}
	if height := el.SelectAttr("height"); height != nil {
		pre.CreateAttr("style", "height: "+height.Value)
	}
	return Replace(false, pre), nil
}

func wrapChildren(el *etree.Element, tag, class string) *etree.Element {
	span := etree.NewElement(tag)
	span.CreateAttr("class", class)
	xmlutil.MoveChildren(span, el)
	return span
}

func handleVerb(_ context.Context, _ *rendered.Presentation, el *etree.Element) (Result, error) {
	return Replace(false, wrapChildren(el, "span", "verb")), nil
}

func handleTT(_ context.Context, _ *rendered.Presentation, el *etree.Element) (Result, error) {
	return Replace(true, wrapChildren(el, "span", "tt")), nil
}

// Ordinal returns the English ordinal suffix of n.
func Ordinal(n int) string {
	if n < 0 {
		n = -n
	}
	switch n % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	}
	return "th"
}

func handleNth(_ context.Context, _ *rendered.Presentation, el *etree.Element) (Result, error) {
	text := strings.TrimSpace(xmlutil.InnerText(el))
	n, err := strconv.Atoi(text)
	if err != nil {
		return Result{}, errs.Wrap(errs.KindMalformedXML, err, "<s:nth> needs an integer, got %q", text)
	}
	sup := etree.NewElement("sup")
	sup.SetText(Ordinal(n))
	return Replace(false, etree.NewText(strconv.Itoa(n)), sup), nil
}

var quotes = map[string][2]string{
	"fr":  {"«", "»"},
	"de":  {"„", "“"},
	"sgl": {"‘", "’"},
}

// QuotePair returns the opening and closing quotes for a quote type. Types
// that are language tags use the quotes of their base language.
func QuotePair(kind string) (string, string) {
	if q, ok := quotes[kind]; ok {
		return q[0], q[1]
	}
	if kind != "" {
		if tag, err := language.Parse(kind); err == nil {
			base, _ := tag.Base()
			if q, ok := quotes[base.String()]; ok {
				return q[0], q[1]
			}
		}
	}
	return "“", "”"
}

func handleEnq(_ context.Context, _ *rendered.Presentation, el *etree.Element) (Result, error) {
	opening, closing := QuotePair(el.SelectAttrValue("type", ""))
	text := strings.TrimSpace(xmlutil.InnerText(el))
	return Replace(true, etree.NewText(opening+text+closing)), nil
}

func handleAcronym(_ context.Context, p *rendered.Presentation, el *etree.Element) (Result, error) {
	id := strings.TrimSpace(xmlutil.InnerText(el))
	entry, ok := p.Acronyms().Resolve(id)
	if !ok {
		return Replace(false, etree.NewText(id)), nil
	}
	p.AddFeature(rendered.FeatureAcronyms)

	span := etree.NewElement("span")
	span.CreateAttr("class", "tooltip")
	span.SetText(entry.Acronym)
	inner := span.CreateElement("span")
	inner.CreateAttr("class", "text")
	inner.SetText(entry.Text)
	if entry.URI == "" {
		return Replace(false, span), nil
	}

	a := etree.NewElement("a")
	a.CreateAttr("href", entry.URI)
	a.AddChild(span)
	return Replace(false, a), nil
}

func handleBool(_ context.Context, _ *rendered.Presentation, el *etree.Element) (Result, error) {
	overline, err := xmlutil.BoolAttr(el, "invert_overline", true)
	if err != nil {
		return Result{}, err
	}
	tree, err := boolexpr.Parse(xmlutil.InnerText(el))
	if err != nil {
		return Result{}, err
	}

	tex := etree.NewElement(xmlutil.Prefix + ":tex")
	tex.SetText(boolexpr.Printer{InvertByOverline: overline}.Print(tree))
	for _, name := range []string{"long", "indent"} {
		if attr := el.SelectAttr(name); attr != nil {
			tex.CreateAttr(name, attr.Value)
		}
	}
	return Replace(true, tex), nil
}

func handleTime(_ context.Context, p *rendered.Presentation, el *etree.Element) (Result, error) {
	abs := el.SelectAttr("abs")
	rel := el.SelectAttr("rel")

	var spec schedule.TimeSpec
	var err error
	switch {
	case abs == nil && rel == nil:
		err = errs.New(errs.KindTimeSpecification, "either absolute or relative timing must be supplied")
	case abs != nil && rel != nil:
		err = errs.New(errs.KindTimeSpecification, "either absolute or relative timing must be supplied, not both")
	case abs != nil:
		spec, err = schedule.ParseAbsolute(abs.Value, "m:s")
	default:
		spec, err = schedule.ParseRelative(rel.Value)
	}
	if err != nil {
		return Result{}, err
	}
	p.SetTimeSpec(spec)
	return Remove(), nil
}

func handleSub(_ context.Context, p *rendered.Presentation, el *etree.Element) (Result, error) {
	var value any
	var err error
	if name := el.SelectAttr("name"); name != nil {
		path := make([]any, 0)
		for _, part := range strings.Split(name.Value, ".") {
			path = append(path, part)
		}
		value, err = p.Variables().Get(path...)
		if err != nil {
			return Result{}, errs.Wrap(errs.KindMissingVariable, err, "no such variable to substitute: %s", name.Value)
		}
	} else {
		value, err = p.Variables().Eval(strings.TrimSpace(xmlutil.InnerText(el)))
		if err != nil {
			return Result{}, err
		}
	}
	return Replace(false, etree.NewText(varsub.Stringify(value))), nil
}

func handleAgenda(_ context.Context, p *rendered.Presentation, el *etree.Element) (Result, error) {
	agenda := p.Agenda()
	if agenda == nil {
		return Result{}, errs.New(errs.KindNoAgenda, "s:agenda requested but no agenda defined in metadata")
	}

	ul := etree.NewElement("ul")
	ul.CreateAttr("class", "agenda")
	for _, item := range agenda.Items() {
		li := ul.CreateElement("li")
		li.CreateElement("b").SetText(item.Start + " - " + item.End)
		li.CreateText(": " + item.Text)
	}
	return Replace(true, ul), nil
}

func handleMarker(_ context.Context, p *rendered.Presentation, el *etree.Element) (Result, error) {
	name, err := requireAttr(el, "name")
	if err != nil {
		return Result{}, err
	}
	if err := p.AddMarker(name); err != nil {
		return Result{}, err
	}
	return Remove(), nil
}
