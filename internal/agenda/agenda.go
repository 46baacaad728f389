// Package agenda resolves the agenda notation found in presentation
// metadata into timed items.
//
// Each line is either a time or a weight, optionally followed by the text of
// the item that ends at that point:
//
//	13:00
//	+0:30/2   Introduction
//	*         Exercises
//	*2        Discussion
//	1+9:00    Wrap up
//
// "H:M" is an absolute time of day, "D+H:M" adds D days. "+H:M" is a
// duration relative to the previous or, when there is none, the next
// absolute time; "/div" divides the duration. "*w" splits the time between
// the enclosing absolute times according to weight w.
package agenda

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"slidepress/internal/errs"
)

// DefaultGranularity is the rounding applied to resolved times, in minutes.
const DefaultGranularity = 5

var lineRegex = regexp.MustCompile(`^(?:(?:(?P<day>\d+)\+)?(?P<rel>\+)?(?P<hour>\d{1,2}):(?P<minute>\d{1,2})(?:/(?P<div>\d+(?:\.\d+)?))?|(?P<star>\*)(?P<weight>\d+(?:\.\d+)?)?)(?:\s+(?P<text>.*))?$`)

// Item is a resolved agenda entry. Times are formatted H:MM modulo 24h.
type Item struct {
	Start    string `json:"start" yaml:"start"`
	End      string `json:"end" yaml:"end"`
	Duration string `json:"duration" yaml:"duration"`
	Text     string `json:"text" yaml:"text"`
}

type specType int

const (
	absolute specType = iota
	relative
	weighted
)

type entry struct {
	kind    specType
	value   float64
	text    string
	hasText bool
}

// Agenda is an ordered list of resolved items.
type Agenda struct {
	Name  string
	items []Item
}

// Items returns the resolved items.
func (a *Agenda) Items() []Item {
	return a.items
}

// Len returns the number of items.
func (a *Agenda) Len() int {
	return len(a.items)
}

// Parse parses and resolves an agenda with the given rounding granularity
// in minutes.
func Parse(text string, granularity int) (*Agenda, error) {
	if granularity <= 0 {
		granularity = DefaultGranularity
	}

	var entries []entry
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		e, err := parseLine(line)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	entries = resolveForward(entries)
	entries = resolveBackward(entries)
	entries, err := resolveWeights(entries)
	if err != nil {
		return nil, err
	}
	items, err := finish(entries, granularity)
	if err != nil {
		return nil, err
	}
	return &Agenda{items: items}, nil
}

func parseLine(line string) (entry, error) {
	m := lineRegex.FindStringSubmatch(line)
	if m == nil {
		return entry{}, errs.Newf(errs.KindInvalidAgenda, "do not understand agenda element %q", line)
	}
	group := func(name string) string {
		return m[lineRegex.SubexpIndex(name)]
	}

	e := entry{text: group("text")}
	e.hasText = e.text != ""

	if group("star") != "" {
		e.kind = weighted
		e.value = 1
		if w := group("weight"); w != "" {
			e.value, _ = strconv.ParseFloat(w, 64)
		}
		return e, nil
	}

	hour, _ := strconv.Atoi(group("hour"))
	minute, _ := strconv.Atoi(group("minute"))
	e.value = float64(60*hour + minute)
	e.kind = absolute
	if group("rel") != "" {
		e.kind = relative
		if group("day") != "" {
			return entry{}, errs.Newf(errs.KindInvalidAgenda, "a day offset makes no sense on a relative time: %q", line)
		}
	}
	if d := group("day"); d != "" {
		days, _ := strconv.Atoi(d)
		e.value += float64(days * 24 * 60)
	}
	if div := group("div"); div != "" {
		if e.kind != relative {
			return entry{}, errs.Newf(errs.KindInvalidAgenda, "a divider on an absolute time makes no sense: %q", line)
		}
		d, _ := strconv.ParseFloat(div, 64)
		if d == 0 {
			return entry{}, errs.Newf(errs.KindInvalidAgenda, "divider must not be zero: %q", line)
		}
		e.value /= d
	}
	return e, nil
}

// resolveForward turns durations following an absolute time into absolute
// end times.
func resolveForward(entries []entry) []entry {
	out := make([]entry, 0, len(entries))
	var now float64
	anchored := false
	for _, e := range entries {
		switch {
		case e.kind == absolute:
			now, anchored = e.value, true
		case e.kind == relative && anchored:
			now += e.value
			e.kind, e.value = absolute, now
		default:
			anchored = false
		}
		out = append(out, e)
	}
	return out
}

// resolveBackward anchors durations that precede an absolute time. The
// computed start of the first such chain is inserted as a textless entry.
func resolveBackward(entries []entry) []entry {
	out := make([]entry, len(entries))
	var now float64
	anchored := false
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		switch {
		case e.kind == absolute:
			now, anchored = e.value, true
		case e.kind == relative && anchored:
			e.kind, e.value = absolute, now
			now -= entries[i].value
		default:
			anchored = false
		}
		out[i] = e
	}
	if anchored && len(entries) > 0 && entries[0].kind == relative {
		out = append([]entry{{kind: absolute, value: now}}, out...)
	}
	return out
}

// resolveWeights distributes the time between two absolute entries across
// the weighted entries they enclose.
func resolveWeights(entries []entry) ([]entry, error) {
	var out []entry
	for i := 0; i < len(entries); i++ {
		if entries[i].kind != weighted {
			out = append(out, entries[i])
			continue
		}
		if i == 0 || entries[i-1].kind != absolute {
			return nil, errs.New(errs.KindUnresolvableAgenda, "a weighted agenda item needs an absolute time before it")
		}

		end := i
		for end < len(entries) && entries[end].kind != absolute {
			end++
		}
		if end == len(entries) {
			return nil, errs.New(errs.KindUnresolvableAgenda, "a weighted agenda item needs an absolute time after it")
		}

		resolved, err := resolveEnclosed(entries[i-1 : end+1])
		if err != nil {
			return nil, err
		}
		out = append(out, resolved...)
		i = end - 1
	}
	return out, nil
}

func resolveEnclosed(enclosed []entry) ([]entry, error) {
	first, last := enclosed[0], enclosed[len(enclosed)-1]
	total := last.value - first.value

	var fixed, weights float64
	for _, e := range enclosed[1 : len(enclosed)-1] {
		switch e.kind {
		case relative:
			fixed += e.value
		case weighted:
			weights += e.value
		}
	}
	if weights == 0 {
		return nil, errs.New(errs.KindUnresolvableAgenda, "sum of agenda weights is zero")
	}
	if fixed > total {
		return nil, errs.Newf(errs.KindUnresolvableAgenda, "relative agenda items take %s, but only %s are available", formatMinutes(fixed), formatMinutes(total))
	}

	spare := total - fixed
	now := first.value
	out := make([]entry, 0, len(enclosed)-2)
	for _, e := range enclosed[1 : len(enclosed)-1] {
		switch e.kind {
		case relative:
			now += e.value
		case weighted:
			now += e.value / weights * spare
		}
		e.kind, e.value = absolute, now
		out = append(out, e)
	}
	return out, nil
}

func finish(entries []entry, granularity int) ([]Item, error) {
	var items []Item
	var prev *entry
	for i := range entries {
		e := &entries[i]
		if e.hasText {
			if prev == nil || prev.kind != absolute || e.kind != absolute {
				return nil, errs.Newf(errs.KindUnresolvableAgenda, "unable to determine the time of agenda item %q", e.text)
			}
			start := roundTo(prev.value, granularity)
			end := roundTo(e.value, granularity)
			items = append(items, Item{
				Start:    formatMinutes(start),
				End:      formatMinutes(end),
				Duration: formatMinutes(end - start),
				Text:     e.text,
			})
		}
		prev = e
	}
	return items, nil
}

func roundTo(minutes float64, granularity int) float64 {
	g := float64(granularity)
	return math.RoundToEven(minutes/g) * g
}

func formatMinutes(minutes float64) string {
	m := int(math.RoundToEven(minutes)) % (24 * 60)
	if m < 0 {
		m += 24 * 60
	}
	return fmt.Sprintf("%d:%02d", m/60, m%60)
}
