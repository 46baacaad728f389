package svg

import (
	"fmt"
	"strconv"
	"strings"
)

// Mode selects which layers take part in an animation and how they stack.
type Mode string

const (
	// ModeCompose animates the initially visible layers, each adding to the previous.
	ModeCompose Mode = "compose"
	// ModeComposeAll animates all layers, each adding to the previous.
	ModeComposeAll Mode = "compose-all"
	// ModeReplace animates all layers, each replacing the previous.
	ModeReplace Mode = "replace"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeCompose, ModeComposeAll, ModeReplace:
		return Mode(s), nil
	case "":
		return ModeCompose, nil
	}
	return "", fmt.Errorf("unknown animation mode %q", s)
}

// Layer tags recognized in labels.
const (
	TagNoStop  = "nostop"
	TagProtect = "protect"
	TagReset   = "reset"
)

// Action is a layer visibility change.
type Action int

const (
	Hide Action = iota
	Show
)

func (a Action) String() string {
	if a == Show {
		return "show"
	}
	return "hide"
}

// Command changes the visibility of one layer.
type Command struct {
	Action  Action
	LayerID string
}

func (c Command) String() string {
	return c.Action.String() + "(" + c.LayerID + ")"
}

// Frame is the full list of commands that, applied to the source SVG,
// produce one animation step.
type Frame struct {
	Number   int
	Commands []Command
}

// Compile computes the animation frames of doc.
func Compile(doc *Document, mode Mode) ([]Frame, error) {
	var considered []*Layer
	for _, layer := range doc.Layers() {
		if layer.ID() == "" {
			return nil, fmt.Errorf("layer %q has no id", layer.Label())
		}
		if mode == ModeCompose && !layer.Visible() {
			continue
		}
		considered = append(considered, layer)
	}

	var cmds []Command
	for _, layer := range considered {
		cmds = append(cmds, Command{Hide, layer.ID()})
	}

	var frames []Frame
	var shownUnprotected []string
	var prev *Layer
	for _, layer := range considered {
		tags := layer.Tags()

		if tags[TagReset] {
			for _, id := range shownUnprotected {
				cmds = append(cmds, Command{Hide, id})
			}
			shownUnprotected = nil
		}

		cmds = append(cmds, Command{Show, layer.ID()})
		if !tags[TagProtect] {
			shownUnprotected = append(shownUnprotected, layer.ID())
		}

		if mode == ModeReplace && prev != nil {
			cmds = append(cmds, Command{Hide, prev.ID()})
			shownUnprotected = remove(shownUnprotected, prev.ID())
		}

		if !tags[TagNoStop] {
			frames = append(frames, Frame{
				Number:   len(frames) + 1,
				Commands: append([]Command(nil), cmds...),
			})
		}
		prev = layer
	}

	return frames, nil
}

func remove(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// Apply executes the commands against the document in order.
func (d *Document) Apply(cmds []Command) error {
	layers := make(map[string]*Layer)
	for _, l := range d.Layers() {
		layers[l.ID()] = l
	}
	for _, c := range cmds {
		l, ok := layers[c.LayerID]
		if !ok {
			return fmt.Errorf("no layer with id %q", c.LayerID)
		}
		if c.Action == Show {
			l.Show()
		} else {
			l.Hide()
		}
	}
	return nil
}

// RenderFrame returns the serialized SVG for one frame, leaving doc untouched.
func RenderFrame(doc *Document, frame Frame) ([]byte, error) {
	clone := doc.Copy()
	if err := clone.Apply(frame.Commands); err != nil {
		return nil, err
	}
	return clone.Bytes()
}

type frameRange struct {
	from, to int // to == 0 means open ended
}

// FrameFilter selects frames by 1-based number.
type FrameFilter struct {
	ranges []frameRange
}

// ParseFrameFilter parses "n", "a-b", "a-" and comma-separated lists. An
// empty string selects every frame.
func ParseFrameFilter(s string) (*FrameFilter, error) {
	f := &FrameFilter{}
	s = strings.TrimSpace(s)
	if s == "" {
		return f, nil
	}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		from, to, isRange := strings.Cut(part, "-")
		a, err := strconv.Atoi(strings.TrimSpace(from))
		if err != nil || a < 1 {
			return nil, fmt.Errorf("invalid frame range %q", part)
		}
		r := frameRange{from: a, to: a}
		if isRange {
			to = strings.TrimSpace(to)
			if to == "" {
				r.to = 0
			} else {
				b, err := strconv.Atoi(to)
				if err != nil || b < a {
					return nil, fmt.Errorf("invalid frame range %q", part)
				}
				r.to = b
			}
		}
		f.ranges = append(f.ranges, r)
	}
	return f, nil
}

// Match reports whether frame number n is selected.
func (f *FrameFilter) Match(n int) bool {
	if f == nil || len(f.ranges) == 0 {
		return true
	}
	for _, r := range f.ranges {
		if n >= r.from && (r.to == 0 || n <= r.to) {
			return true
		}
	}
	return false
}

// Apply keeps only the selected frames.
func (f *FrameFilter) Apply(frames []Frame) []Frame {
	var out []Frame
	for _, fr := range frames {
		if f.Match(fr.Number) {
			out = append(out, fr)
		}
	}
	return out
}
