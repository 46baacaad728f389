// Package dtg draws digital timing diagrams as SVG.
package dtg

import (
	"fmt"
	"math"

	"slidepress/internal/errs"
	"slidepress/internal/svg"
)

type marker struct {
	x        float64
	label    string
	hasLabel bool
}

// Diagram accumulates signals into an SVG drawing.
type Diagram struct {
	opts     Options
	risefall float64
	w        *svg.Writer
	path     *svg.Path
	count    int
	ticks    int
	markers  []marker
}

// New creates an empty diagram
func New(opts Options) *Diagram {
	d := &Diagram{
		opts:     opts,
		risefall: opts.Height / 8,
		w:        svg.NewWriter(),
	}
	if opts.ClockTicks {
		d.w.Group("clock_ticks")
	}
	if opts.Guides {
		d.w.Group("guides")
	}
	return d
}

// Render parses text and returns the finished SVG document.
func Render(text string, base Options) (string, error) {
	signals, opts, err := Parse(text, base)
	if err != nil {
		return "", err
	}
	d := New(opts)
	for _, s := range signals {
		if err := d.AddSignal(s); err != nil {
			return "", err
		}
	}
	return d.String()
}

func (d *Diagram) baseHeight() float64 {
	return (d.opts.Height+d.opts.VerticalDistance)*float64(d.count) - d.opts.VerticalDistance
}

// transitionMiddle draws a level change of dy centered in one division.
func (d *Diagram) transitionMiddle(dy, scale float64) {
	width := scale * d.risefall * math.Abs(dy) / d.opts.Height
	lead := (d.opts.XDiv - width) / 2
	d.path.HorizRel(lead)
	d.path.LineRel(width, dy)
	d.path.HorizRel(lead)
}

// AddSignal draws the next signal row.
func (d *Diagram) AddSignal(s Signal) error {
	h := d.opts.Height
	y := (h + d.opts.VerticalDistance) * float64(d.count)
	mid := y + h/2
	d.count++

	const textWidth = 50
	text := d.w.NewTextSpan(-textWidth, mid-6, textWidth, 30, s.DisplayName(), "signal")
	text.Style().Set("text-align", "right")
	if s.Inverted() {
		text.Style().Set("text-decoration", "overline")
	}
	text.Style().Set("font-family", "'Latin Modern Roman'")

	d.path = d.w.NewPath(0, mid, "signal")

	var prev State
	for _, cur := range s.Sequence {
		switch cur.State {
		case Empty:
			d.path.MoveTo(d.path.Pos().X, mid)
			prev = 0
			continue
		case Marker:
			d.markers = append(d.markers, marker{
				x:        d.path.Pos().X + d.opts.XDiv/2,
				label:    cur.Label,
				hasLabel: cur.HasLabel && cur.Label != "",
			})
			continue
		}

		if prev == 0 {
			prev = cur.State
			switch prev {
			case Low, LowHigh, Transition:
				d.path.MoveRel(0, h/2)
			case High:
				d.path.MoveRel(0, -h/2)
			}
		}

		if err := d.step(prev, cur.State); err != nil {
			return errs.Wrap(errs.KindMalformedXML, err, "signal %s", s.Name)
		}
		prev = cur.State
	}

	if t := int(math.Round(d.path.Pos().X / d.opts.XDiv)); t > d.ticks {
		d.ticks = t
	}

	if d.opts.Guides {
		end := d.path.Pos().X
		for _, level := range []float64{mid - h/2, mid + h/2} {
			g := d.w.NewPath(0, level, "guides")
			g.HorizRel(end)
			g.Style().Update(
				[2]string{"stroke-width", "0.25"},
				[2]string{"stroke", "#bdc3c7"},
				[2]string{"stroke-dasharray", "1,1"},
			)
		}
	}
	return nil
}

// step draws one division for the transition prev -> cur. The pen rests on
// the low level for ":" and "!".
func (d *Diagram) step(prev, cur State) error {
	h := d.opts.Height
	p := d.path
	xdiv := d.opts.XDiv

	// "!" leaving behaves like ":" leaving, entering "!" from a single
	// level behaves like entering ":".
	if prev == Transition && cur != Transition && cur != LowHigh {
		prev = LowHigh
	}
	if cur == Transition && prev != LowHigh && prev != Transition {
		cur = LowHigh
	}

	switch {
	case prev == cur && (cur == Low || cur == High || cur == HighZ):
		p.HorizRel(xdiv)

	case prev == Low && cur == High:
		d.transitionMiddle(-h, 1)
	case prev == High && cur == Low:
		d.transitionMiddle(h, 1)

	case prev == Low && cur == HighZ, prev == HighZ && cur == High:
		d.transitionMiddle(-h/2, 1)
	case prev == High && cur == HighZ, prev == HighZ && cur == Low:
		d.transitionMiddle(h/2, 1)

	case (prev == LowHigh || prev == Transition) && cur == LowHigh:
		p.ReturnTo(func() {
			p.MoveRel(0, -h)
			p.HorizRel(xdiv)
		})
		p.HorizRel(xdiv)

	case prev == High && cur == LowHigh:
		p.ReturnTo(func() {
			p.HorizRel(xdiv)
		})
		d.transitionMiddle(h, 1)

	case prev == Low && cur == LowHigh:
		p.ReturnTo(func() {
			d.transitionMiddle(-h, 1)
		})
		p.HorizRel(xdiv)

	case prev == LowHigh && cur == High:
		p.ReturnTo(func() {
			p.MoveRel(0, -h)
			p.HorizRel(xdiv)
		})
		d.transitionMiddle(-h, 1)

	case prev == LowHigh && cur == Low:
		p.ReturnTo(func() {
			p.MoveRel(0, -h)
			d.transitionMiddle(h, 1)
		})
		p.HorizRel(xdiv)

	case prev == HighZ && cur == LowHigh:
		p.ReturnTo(func() {
			d.transitionMiddle(-h/2, 1)
		})
		d.transitionMiddle(h/2, 1)

	case prev == LowHigh && cur == HighZ:
		p.ReturnTo(func() {
			d.transitionMiddle(-h/2, 1)
		})
		p.MoveRel(0, -h)
		d.transitionMiddle(h/2, 1)

	case (prev == LowHigh || prev == Transition) && cur == Transition:
		p.ReturnTo(func() {
			d.transitionMiddle(-h, 2)
		})
		p.MoveRel(0, -h)
		d.transitionMiddle(h, 2)

	default:
		return fmt.Errorf("unsupported transition %s -> %s", prev, cur)
	}
	return nil
}

func (d *Diagram) drawMarkers() {
	base := d.baseHeight()
	for _, m := range d.markers {
		length := base
		if m.hasLabel {
			length += d.opts.MarkerExtend
		}
		p := d.w.NewPath(m.x, 0, "marker")
		p.VertRel(length)
		p.Style().Set("stroke-width", "0.5")

		if m.hasLabel {
			const textWidth, textHeight = 100, 50
			t := d.w.NewTextSpan(m.x-textWidth/2, length, textWidth, textHeight, m.label, "marker")
			t.Style().Set("text-align", "center")
		}
	}
}

func (d *Diagram) drawClockTicks() {
	base := d.baseHeight()
	for tick := 0; tick < d.ticks; tick++ {
		x := float64(tick)*d.opts.XDiv + d.opts.XDiv/2
		p := d.w.NewPath(x, 0, "clock_ticks")
		p.VertRel(base)
		p.Style().Update(
			[2]string{"stroke-width", "0.25"},
			[2]string{"stroke", "#95a5a6"},
			[2]string{"stroke-miterlimit", "4"},
			[2]string{"stroke-dasharray", "0.75,0.25"},
			[2]string{"stroke-dashoffset", "0"},
		)
	}
}

// String draws markers and clock ticks and serializes the diagram. It must
// be called once, after all signals were added.
func (d *Diagram) String() (string, error) {
	d.drawMarkers()
	if d.opts.ClockTicks {
		d.drawClockTicks()
	}
	return d.w.String()
}
