// Package schedule parses slide time specifications and distributes the
// presentation time across slides.
package schedule

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"slidepress/internal/errs"
)

// SpecKind tells absolute durations from relative weights.
type SpecKind int

const (
	Relative SpecKind = iota
	Absolute
)

func (k SpecKind) String() string {
	if k == Absolute {
		return "absolute"
	}
	return "relative"
}

// TimeSpec is the time budget of one slide: seconds when Absolute, a weight
// when Relative.
type TimeSpec struct {
	Kind  SpecKind
	Value float64
}

func (t TimeSpec) String() string {
	return fmt.Sprintf("%s(%g)", t.Kind, t.Value)
}

var (
	unitRegex = regexp.MustCompile(`^(\d*\.?\d+)\s*(hrs|hr|h|mins|min|m|secs|sec|s)$`)
	hmsRegex  = regexp.MustCompile(`^(\d+):(\d+):(\d+)$`)
	pairRegex = regexp.MustCompile(`^(\d+):(\d+)\s*(h:m|hm|m:s|ms)?$`)
	relRegex  = regexp.MustCompile(`^\d*\.?\d+$`)
)

var unitSeconds = map[string]float64{
	"hrs": 3600, "hr": 3600, "h": 3600,
	"mins": 60, "min": 60, "m": 60,
	"secs": 1, "sec": 1, "s": 1,
}

func specError(format string, args ...any) error {
	return errs.Newf(errs.KindTimeSpecification, format, args...)
}

// ParseAbsolute parses a duration. Accepted forms are "N<unit>", "H:M:S" and
// "X:Y" followed by a hint of h:m, hm, m:s or ms. defaultHint is used for
// "X:Y" without a hint; an empty defaultHint makes the hint mandatory.
func ParseAbsolute(s, defaultHint string) (TimeSpec, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return TimeSpec{}, specError("empty absolute time specification")
	}

	if m := unitRegex.FindStringSubmatch(s); m != nil {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return TimeSpec{}, specError("invalid time value %q", s)
		}
		return TimeSpec{Kind: Absolute, Value: v * unitSeconds[m[2]]}, nil
	}

	if m := hmsRegex.FindStringSubmatch(s); m != nil {
		h, _ := strconv.Atoi(m[1])
		min, _ := strconv.Atoi(m[2])
		sec, _ := strconv.Atoi(m[3])
		return TimeSpec{Kind: Absolute, Value: float64(3600*h + 60*min + sec)}, nil
	}

	if m := pairRegex.FindStringSubmatch(s); m != nil {
		x, _ := strconv.Atoi(m[1])
		y, _ := strconv.Atoi(m[2])
		hint := m[3]
		if hint == "" {
			hint = defaultHint
		}
		switch hint {
		case "h:m", "hm":
			return TimeSpec{Kind: Absolute, Value: float64(3600*x + 60*y)}, nil
		case "m:s", "ms":
			return TimeSpec{Kind: Absolute, Value: float64(60*x + y)}, nil
		case "":
			return TimeSpec{}, specError("time %q is ambiguous, append h:m or m:s", s)
		default:
			return TimeSpec{}, specError("unknown time interpretation %q", hint)
		}
	}

	return TimeSpec{}, specError("invalid absolute time specification %q", s)
}

// ParseRelative parses a relative weight.
func ParseRelative(s string) (TimeSpec, error) {
	s = strings.TrimSpace(s)
	if !relRegex.MatchString(s) {
		return TimeSpec{}, specError("invalid relative time specification %q", s)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return TimeSpec{}, specError("invalid relative time specification %q", s)
	}
	return TimeSpec{Kind: Relative, Value: v}, nil
}
