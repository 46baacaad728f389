package varsub

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"slidepress/internal/errs"
)

// segment is a literal run or a placeholder of a template string.
type segment struct {
	literal string
	expr    string
	format  string
	isExpr  bool
}

// parseTemplate splits s into literal text and {expr} / {expr:format}
// placeholders. "{{" and "}}" stand for literal braces.
func parseTemplate(s string) ([]segment, error) {
	var segs []segment
	var lit strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '{' && i+1 < len(s) && s[i+1] == '{':
			lit.WriteByte('{')
			i++
		case c == '}' && i+1 < len(s) && s[i+1] == '}':
			lit.WriteByte('}')
			i++
		case c == '}':
			return nil, errs.Newf(errs.KindInvalidExpression, "single '}' in %q", s)
		case c == '{':
			end, colon, err := scanPlaceholder(s, i+1)
			if err != nil {
				return nil, err
			}
			if lit.Len() > 0 {
				segs = append(segs, segment{literal: lit.String()})
				lit.Reset()
			}
			seg := segment{isExpr: true, expr: s[i+1 : end]}
			if colon >= 0 {
				seg.expr, seg.format = s[i+1:colon], s[colon+1:end]
			}
			if strings.TrimSpace(seg.expr) == "" {
				return nil, errs.Newf(errs.KindInvalidExpression, "empty expression in %q", s)
			}
			segs = append(segs, seg)
			i = end
		default:
			lit.WriteByte(c)
		}
	}
	if lit.Len() > 0 {
		segs = append(segs, segment{literal: lit.String()})
	}
	return segs, nil
}

// scanPlaceholder finds the closing brace of a placeholder starting at
// start, skipping quoted strings and nested brackets. It also returns the
// position of the last top-level colon, or -1.
func scanPlaceholder(s string, start int) (end, colon int, err error) {
	depth := 0
	colon = -1
	var quote byte
	for i := start; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'', '`':
			quote = c
		case '(', '[', '{':
			depth++
		case ')', ']':
			depth--
		case '}':
			if depth == 0 {
				return i, colon, nil
			}
			depth--
		case ':':
			if depth == 0 {
				colon = i
			}
		}
	}
	return 0, 0, errs.Newf(errs.KindInvalidExpression, "unterminated placeholder in %q", s)
}

var formatRegex = regexp.MustCompile(`^(?:(.)?([<>^]))?(0)?(\d+)?(?:\.(\d+))?([dfsxX%])?$`)

// formatValue applies a Python-style format spec ([[fill]align][0][width]
// [.precision][type]) to v.
func formatValue(v any, spec string) (string, error) {
	if spec == "" {
		return stringify(v), nil
	}
	m := formatRegex.FindStringSubmatch(spec)
	if m == nil {
		return "", errs.Newf(errs.KindInvalidExpression, "invalid format spec %q", spec)
	}
	fill, align, zero, width, prec, typ := m[1], m[2], m[3] != "", m[4], m[5], m[6]

	var body string
	numeric := true
	switch typ {
	case "d", "x", "X":
		n, ok := toInt(v)
		if !ok {
			return "", errs.Newf(errs.KindInvalidExpression, "format %q needs an integer, got %v", spec, v)
		}
		switch typ {
		case "d":
			body = strconv.FormatInt(n, 10)
		case "x":
			body = strconv.FormatInt(n, 16)
		default:
			body = strings.ToUpper(strconv.FormatInt(n, 16))
		}
	case "f", "%":
		f, ok := toFloat(v)
		if !ok {
			return "", errs.Newf(errs.KindInvalidExpression, "format %q needs a number, got %v", spec, v)
		}
		p := 6
		if prec != "" {
			p, _ = strconv.Atoi(prec)
		}
		if typ == "%" {
			body = strconv.FormatFloat(f*100, 'f', p, 64) + "%"
		} else {
			body = strconv.FormatFloat(f, 'f', p, 64)
		}
	default:
		body = stringify(v)
		_, isString := v.(string)
		numeric = !isString && typ == ""
		if typ == "s" {
			numeric = false
		}
		if prec != "" && !numeric {
			p, _ := strconv.Atoi(prec)
			if r := []rune(body); len(r) > p {
				body = string(r[:p])
			}
		}
	}

	w := 0
	if width != "" {
		w, _ = strconv.Atoi(width)
	}
	pad := w - len([]rune(body))
	if pad <= 0 {
		return body, nil
	}

	if zero && align == "" && numeric {
		sign := ""
		if strings.HasPrefix(body, "-") {
			sign, body = "-", body[1:]
		}
		return sign + strings.Repeat("0", pad) + body, nil
	}
	if fill == "" {
		fill = " "
		if zero {
			fill = "0"
		}
	}
	if align == "" {
		align = "<"
		if numeric {
			align = ">"
		}
	}
	switch align {
	case ">":
		return strings.Repeat(fill, pad) + body, nil
	case "^":
		left := pad / 2
		return strings.Repeat(fill, left) + body + strings.Repeat(fill, pad-left), nil
	}
	return body + strings.Repeat(fill, pad), nil
}

// Stringify converts an evaluated value to the text substituted into
// templates and documents.
func Stringify(v any) string {
	return stringify(v)
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1e15 {
			return strconv.FormatFloat(x, 'f', 1, 64)
		}
		return strconv.FormatFloat(x, 'g', -1, 64)
	case map[string]any:
		if iso, ok := x["iso"].(string); ok {
			return iso
		}
	}
	return fmt.Sprint(v)
}

func toInt(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int64:
		return x, true
	case int32:
		return int64(x), true
	case float64:
		if x == math.Trunc(x) {
			return int64(x), true
		}
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		return n, err == nil
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	if n, ok := toInt(v); ok {
		return float64(n), true
	}
	return 0, false
}
