package svg

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"slidepress/internal/errs"
)

// Transformation is one edit applied to an SVG before rasterizing it.
type Transformation struct {
	Cmd       string
	Variables map[string]string
}

// ParseTransformations converts the generic form stored in renderer inputs.
func ParseTransformations(v any) ([]Transformation, error) {
	list, ok := v.([]any)
	if !ok {
		if v == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("svg_transform must be a list, got %T", v)
	}

	var out []Transformation
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("svg_transform entry must be an object, got %T", item)
		}
		t := Transformation{Variables: make(map[string]string)}
		t.Cmd, _ = m["cmd"].(string)
		if vars, ok := m["variables"].(map[string]any); ok {
			for k, val := range vars {
				t.Variables[k] = fmt.Sprint(val)
			}
		}
		out = append(out, t)
	}
	return out, nil
}

// ToInput converts the transformation to the generic renderer input form.
func (t Transformation) ToInput() map[string]any {
	vars := make(map[string]any, len(t.Variables))
	for k, v := range t.Variables {
		vars[k] = v
	}
	return map[string]any{"cmd": t.Cmd, "variables": vars}
}

// ApplyTransformations applies every transformation in order.
func ApplyTransformations(doc *Document, ts []Transformation) error {
	for _, t := range ts {
		switch t.Cmd {
		case "format_text":
			if err := FormatText(doc, t.Variables); err != nil {
				return err
			}
		default:
			return errs.Newf(errs.KindUnknownParameter, "unknown SVG transformation %q", t.Cmd)
		}
	}
	return nil
}

// FormatText substitutes {name} placeholders in every text node. "{{" and
// "}}" produce literal braces.
func FormatText(doc *Document, vars map[string]string) error {
	var walk func(el *etree.Element) error
	walk = func(el *etree.Element) error {
		for _, tok := range el.Child {
			switch t := tok.(type) {
			case *etree.CharData:
				if !strings.ContainsAny(t.Data, "{}") {
					continue
				}
				formatted, err := formatPlaceholders(t.Data, vars)
				if err != nil {
					return err
				}
				t.Data = formatted
			case *etree.Element:
				if err := walk(t); err != nil {
					return err
				}
			}
		}
		return nil
	}
	return walk(doc.Root())
}

func formatPlaceholders(s string, vars map[string]string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '{' && i+1 < len(s) && s[i+1] == '{':
			b.WriteByte('{')
			i++
		case c == '}' && i+1 < len(s) && s[i+1] == '}':
			b.WriteByte('}')
			i++
		case c == '{':
			end := strings.IndexByte(s[i:], '}')
			if end < 0 {
				return "", errs.Newf(errs.KindMissingVariable, "unterminated placeholder in SVG text %q", s)
			}
			name := s[i+1 : i+end]
			value, ok := vars[name]
			if !ok {
				return "", errs.Newf(errs.KindMissingVariable, "SVG text references undefined variable %q", name)
			}
			b.WriteString(value)
			i += end
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}
