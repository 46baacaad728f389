package dtg

import (
	"strconv"
	"strings"

	"slidepress/internal/errs"
)

// State is one step of a signal sequence.
type State byte

const (
	Low        State = '0'
	High       State = '1'
	LowHigh    State = ':'
	Transition State = '!'
	HighZ      State = 'Z'
	Marker     State = '|'
	Empty      State = '_'
)

func (s State) String() string {
	return string(rune(s))
}

// Cmd is a parsed sequence element. Label is only used by markers.
type Cmd struct {
	State    State
	Label    string
	HasLabel bool
}

// ParseSequence parses a signal sequence such as "00111|'ack'Z:_0".
// Spaces are ignored.
func ParseSequence(text string) ([]Cmd, error) {
	var seq []Cmd
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch State(c) {
		case Low, High, LowHigh, Transition, HighZ, Empty:
			seq = append(seq, Cmd{State: State(c)})
		case Marker:
			cmd := Cmd{State: Marker}
			if i+1 < len(text) && text[i+1] == '\'' {
				end := strings.IndexByte(text[i+2:], '\'')
				if end < 0 {
					cmd.Label = text[i+2:]
					i = len(text)
				} else {
					cmd.Label = text[i+2 : i+2+end]
					i += end + 2
				}
				cmd.HasLabel = true
			}
			seq = append(seq, cmd)
		case ' ', '\t':
		default:
			return nil, errs.Newf(errs.KindMalformedXML, "unknown character %q in timing diagram sequence %q", c, text)
		}
	}
	return seq, nil
}

// Signal is one named row of the diagram.
type Signal struct {
	Name     string
	Sequence []Cmd
}

// Inverted reports whether the name is written with a leading "!", which is
// rendered as an overline.
func (s Signal) Inverted() bool {
	return strings.HasPrefix(s.Name, "!")
}

// DisplayName returns the name without inversion prefix.
func (s Signal) DisplayName() string {
	return strings.TrimLeft(s.Name, "!")
}

// Options controls the diagram geometry.
type Options struct {
	XDiv             float64
	Height           float64
	VerticalDistance float64
	MarkerExtend     float64
	ClockTicks       bool
	Guides           bool
}

// DefaultOptions returns the standard geometry.
func DefaultOptions() Options {
	return Options{
		XDiv:             10,
		Height:           30,
		VerticalDistance: 10,
		MarkerExtend:     20,
		ClockTicks:       true,
	}
}

// Set assigns an option by name from its textual value.
func (o *Options) Set(key, value string) error {
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)

	var dst *float64
	switch key {
	case "xdiv":
		dst = &o.XDiv
	case "height":
		dst = &o.Height
	case "vertical_distance":
		dst = &o.VerticalDistance
	case "marker_extend":
		dst = &o.MarkerExtend
	case "clock_ticks", "guides":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return errs.Wrap(errs.KindUnknownParameter, err, "timing diagram option %s must be a boolean", key)
		}
		if key == "clock_ticks" {
			o.ClockTicks = b
		} else {
			o.Guides = b
		}
		return nil
	default:
		return errs.Newf(errs.KindUnknownParameter, "unknown timing diagram option %q", key)
	}

	f, err := strconv.ParseFloat(value, 64)
	if err != nil || f <= 0 {
		return errs.Newf(errs.KindUnknownParameter, "timing diagram option %s must be a positive number, got %q", key, value)
	}
	*dst = f
	return nil
}

// Parse reads a diagram description. Each non-empty line is either
// "name = sequence" or an option line "@key=value"; options apply to
// base and the result is returned with the signals.
func Parse(text string, base Options) ([]Signal, Options, error) {
	opts := base
	var signals []Signal
	for n, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "@") {
			key, value, ok := strings.Cut(line[1:], "=")
			if !ok {
				return nil, opts, errs.Newf(errs.KindMalformedXML, "timing diagram line %d: option without value: %q", n+1, line)
			}
			if err := opts.Set(key, value); err != nil {
				return nil, opts, err
			}
			continue
		}

		name, seq, ok := strings.Cut(line, "=")
		if !ok {
			return nil, opts, errs.Newf(errs.KindMalformedXML, "timing diagram line %d: expected \"name = sequence\", got %q", n+1, line)
		}
		cmds, err := ParseSequence(strings.TrimSpace(seq))
		if err != nil {
			return nil, opts, err
		}
		signals = append(signals, Signal{Name: strings.TrimSpace(name), Sequence: cmds})
	}
	return signals, opts, nil
}
