// Package toc builds the table of contents of a presentation.
//
// A TOC is an append-only log of instructions recorded while slides are
// emitted. Heading levels are arbitrary integers; Freeze maps the levels in
// use onto consecutive depths starting at 1 and replays the log into
// numbered entries.
package toc

import "sort"

// Transcription selects how a counter is printed.
type Transcription int

const (
	Arabic Transcription = iota
	LowerAlpha
	UpperAlpha
)

// ParseTranscription accepts "arabic", "lower" and "upper".
func ParseTranscription(s string) (Transcription, bool) {
	switch s {
	case "arabic", "integer", "1":
		return Arabic, true
	case "lower", "lower-alpha", "a":
		return LowerAlpha, true
	case "upper", "upper-alpha", "A":
		return UpperAlpha, true
	}
	return Arabic, false
}

type opcode int

const (
	opItem opcode = iota
	opCounterSet
	opCounterAdd
	opTranscription
	opSeparator
)

type heading struct {
	level int
	text  string
	pages map[int]bool
}

type instruction struct {
	op            opcode
	level         int
	item          *heading
	value         int
	transcription Transcription
	separator     string
}

// TOC is the live table of contents of one rendering pass.
type TOC struct {
	instructions []instruction
	open         map[int]*heading
}

// New creates an empty TOC.
func New() *TOC {
	return &TOC{open: make(map[int]*heading)}
}

// NewHeading appends a heading at level. Headings at deeper levels are no
// longer considered open.
func (t *TOC) NewHeading(level int, text string) {
	h := &heading{level: level, text: text, pages: make(map[int]bool)}
	t.instructions = append(t.instructions, instruction{op: opItem, level: level, item: h})
	for l := range t.open {
		if l > level {
			delete(t.open, l)
		}
	}
	t.open[level] = h
}

// SetCounter sets the counter of level to value.
func (t *TOC) SetCounter(level, value int) {
	t.instructions = append(t.instructions, instruction{op: opCounterSet, level: level, value: value})
}

// AddCounter adds value to the counter of level.
func (t *TOC) AddCounter(level, value int) {
	t.instructions = append(t.instructions, instruction{op: opCounterAdd, level: level, value: value})
}

// SetTranscription changes how the counter of level is printed from here on.
func (t *TOC) SetTranscription(level int, tr Transcription) {
	t.instructions = append(t.instructions, instruction{op: opTranscription, level: level, transcription: tr})
}

// SetSeparator changes the string printed after the counter of level.
func (t *TOC) SetSeparator(level int, sep string) {
	t.instructions = append(t.instructions, instruction{op: opSeparator, level: level, separator: sep})
}

// AtPage records page on every open heading.
func (t *TOC) AtPage(page int) {
	for _, h := range t.open {
		h.pages[page] = true
	}
}

// Len returns the number of headings recorded.
func (t *TOC) Len() int {
	n := 0
	for _, in := range t.instructions {
		if in.op == opItem {
			n++
		}
	}
	return n
}

func (t *TOC) levels() []int {
	seen := make(map[int]bool)
	var levels []int
	for _, in := range t.instructions {
		if in.op == opItem && !seen[in.level] {
			seen[in.level] = true
			levels = append(levels, in.level)
		}
	}
	sort.Ints(levels)
	return levels
}

// Freeze materializes the numbered entries.
func (t *TOC) Freeze() *Frozen {
	depthOf := make(map[int]int)
	levels := t.levels()
	for i, l := range levels {
		depthOf[l] = i + 1
	}

	f := &Frozen{
		maxDepth:     len(levels),
		byFullNumber: make(map[string]int),
		current:      -1,
	}
	u := unroller{
		frozen:         f,
		counter:        make(map[int]int),
		text:           make(map[int]string),
		transcriptions: make(map[int]Transcription),
		separators:     make(map[int]string),
	}
	for _, in := range t.instructions {
		depth, ok := depthOf[in.level]
		if !ok {
			continue
		}
		u.apply(in, depth)
	}
	return f
}
