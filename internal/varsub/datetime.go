package varsub

import (
	"fmt"
	"strings"
	"time"

	"github.com/lestrrat-go/strftime"

	"slidepress/internal/errs"
)

var defaultDateLayouts = []string{"%Y-%m-%d", "%m/%d/%Y", "%d.%m.%Y"}

var strptimeVerbs = map[byte]string{
	'Y': "2006",
	'y': "06",
	'm': "01",
	'd': "02",
	'H': "15",
	'M': "04",
	'S': "05",
	'b': "Jan",
	'B': "January",
	'a': "Mon",
	'A': "Monday",
	'p': "PM",
	'%': "%",
}

// goLayout converts a strptime pattern to a time.Parse layout.
func goLayout(pattern string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		if c != '%' {
			b.WriteByte(c)
			continue
		}
		i++
		if i == len(pattern) {
			return "", fmt.Errorf("dangling %% in date pattern %q", pattern)
		}
		verb, ok := strptimeVerbs[pattern[i]]
		if !ok {
			return "", fmt.Errorf("unsupported directive %%%c in date pattern %q", pattern[i], pattern)
		}
		b.WriteString(verb)
	}
	return b.String(), nil
}

// DateTime is the value returned by datetm.parse. Expressions call its
// methods through the map returned by members.
type DateTime struct {
	t time.Time
}

// ParseDate parses s with the given strptime patterns, or the default
// ISO, US and German forms when none are given.
func ParseDate(s string, patterns ...string) (DateTime, error) {
	if len(patterns) == 0 {
		patterns = defaultDateLayouts
	}
	for _, p := range patterns {
		layout, err := goLayout(p)
		if err != nil {
			return DateTime{}, errs.Wrap(errs.KindInvalidExpression, err, "invalid date pattern")
		}
		if t, err := time.Parse(layout, s); err == nil {
			return DateTime{t: t}, nil
		}
	}
	return DateTime{}, errs.Newf(errs.KindInvalidExpression, "unable to parse date %q", s)
}

// AddDays returns the date shifted by n days.
func (d DateTime) AddDays(n int) DateTime {
	return DateTime{t: d.t.AddDate(0, 0, n)}
}

// Strftime formats the date with a strftime pattern.
func (d DateTime) Strftime(pattern string) (string, error) {
	out, err := strftime.Format(pattern, d.t)
	if err != nil {
		return "", errs.Wrap(errs.KindInvalidExpression, err, "invalid strftime pattern %q", pattern)
	}
	return out, nil
}

// String formats the date as ISO 8601.
func (d DateTime) String() string {
	return d.t.Format("2006-01-02")
}

func (d DateTime) members() map[string]any {
	return map[string]any{
		"add_days": func(n int) map[string]any {
			return d.AddDays(n).members()
		},
		"strftime": d.Strftime,
		"iso":      d.String(),
	}
}

// datetmModule is bound to "datetm" in expressions.
func datetmModule() map[string]any {
	return map[string]any{
		"parse": func(args ...string) (map[string]any, error) {
			if len(args) == 0 {
				return nil, errs.New(errs.KindInvalidExpression, "datetm.parse needs a date")
			}
			d, err := ParseDate(args[0], args[1:]...)
			if err != nil {
				return nil, err
			}
			return d.members(), nil
		},
	}
}
