package toc

import (
	"sort"
	"strconv"
	"strings"
)

// Entry is one numbered heading of a frozen TOC.
type Entry struct {
	Order       []int
	Index       int
	Depth       int
	LocalNumber string
	FullNumber  string
	Text        string
	FullText    []string
	Pages       []int
}

// CommandType identifies an element of the nesting stream.
type CommandType int

const (
	NestingIncrease CommandType = iota
	NestingDecrease
	ItemCommand
)

// Command is an element of the nesting stream. Entry is set for
// ItemCommand only.
type Command struct {
	Type  CommandType
	Entry *Entry
}

// Frozen is an immutable, numbered TOC.
type Frozen struct {
	entries      []Entry
	byFullNumber map[string]int
	maxDepth     int
	current      int
}

// Entries returns all entries in document order.
func (f *Frozen) Entries() []Entry {
	return f.entries
}

// Len returns the number of entries.
func (f *Frozen) Len() int {
	return len(f.entries)
}

// MaxDepth returns the number of distinct levels.
func (f *Frozen) MaxDepth() int {
	return f.maxDepth
}

// Lookup returns the index of the first entry with the given full number.
func (f *Frozen) Lookup(fullNumber string) (int, bool) {
	i, ok := f.byFullNumber[fullNumber]
	return i, ok
}

// Advance moves the current item to the next heading. It is called once per
// heading directive while re-emitting the presentation.
func (f *Frozen) Advance() {
	f.current++
}

// ResetIndex rewinds the current item before the first heading.
func (f *Frozen) ResetIndex() {
	f.current = -1
}

// CurrentItem returns the heading the presentation is currently in.
func (f *Frozen) CurrentItem() *Entry {
	if f.current < 0 || f.current >= len(f.entries) {
		return nil
	}
	return &f.entries[f.current]
}

// Commands returns the nesting stream of all entries.
func (f *Frozen) Commands() []Command {
	return EmitCommands(f.entries)
}

// EmitCommands wraps entries in NestingIncrease and NestingDecrease commands
// that follow their depth.
func EmitCommands(entries []Entry) []Command {
	var out []Command
	depth := 0
	for i := range entries {
		e := &entries[i]
		for ; depth < e.Depth; depth++ {
			out = append(out, Command{Type: NestingIncrease})
		}
		for ; depth > e.Depth; depth-- {
			out = append(out, Command{Type: NestingDecrease})
		}
		out = append(out, Command{Type: ItemCommand, Entry: e})
	}
	for ; depth > 0; depth-- {
		out = append(out, Command{Type: NestingDecrease})
	}
	return out
}

// Subset returns at most maxItems entries starting at index startAt and
// ending before the first entry whose full number is endBefore. An empty
// endBefore or a maxItems of zero means no limit.
func (f *Frozen) Subset(startAt int, endBefore string, maxItems int) []Entry {
	var out []Entry
	if startAt < 0 {
		startAt = 0
	}
	for i := startAt; i < len(f.entries); i++ {
		e := f.entries[i]
		if endBefore != "" && e.FullNumber == endBefore {
			break
		}
		if maxItems > 0 && len(out) == maxItems {
			break
		}
		out = append(out, e)
	}
	return out
}

type unroller struct {
	frozen         *Frozen
	counter        map[int]int
	text           map[int]string
	transcriptions map[int]Transcription
	separators     map[int]string
	currentDepth   int
}

func (u *unroller) apply(in instruction, depth int) {
	switch in.op {
	case opTranscription:
		u.transcriptions[depth] = in.transcription
	case opSeparator:
		u.separators[depth] = in.separator
	case opCounterSet:
		u.counter[depth] = in.value
	case opCounterAdd:
		u.counter[depth] += in.value
	case opItem:
		if depth != u.currentDepth {
			for d := depth + 1; d <= u.frozen.maxDepth; d++ {
				u.counter[d] = 0
				u.text[d] = ""
			}
		}
		u.counter[depth]++
		u.text[depth] = in.item.text
		u.frozen.add(u.entry(depth, in.item.pages))
		u.currentDepth = depth
	}
}

func (u *unroller) separator(depth int) string {
	if sep, ok := u.separators[depth]; ok {
		return sep
	}
	return "."
}

func (u *unroller) transcribe(depth, value int) string {
	switch u.transcriptions[depth] {
	case LowerAlpha:
		return alpha(value-1, 'a')
	case UpperAlpha:
		return alpha(value-1, 'A')
	}
	return strconv.Itoa(value)
}

func (u *unroller) entry(depth int, pages map[int]bool) Entry {
	order := make([]int, u.frozen.maxDepth)
	for d := 1; d <= u.frozen.maxDepth; d++ {
		order[d-1] = u.counter[d]
	}

	var full strings.Builder
	fullText := make([]string, 0, depth)
	for d := 1; d <= depth; d++ {
		full.WriteString(u.transcribe(d, u.counter[d]))
		if d != depth {
			full.WriteString(u.separator(d))
		}
		fullText = append(fullText, u.text[d])
	}

	pageList := make([]int, 0, len(pages))
	for p := range pages {
		pageList = append(pageList, p)
	}
	sort.Ints(pageList)

	return Entry{
		Order:       order,
		Index:       len(u.frozen.entries),
		Depth:       depth,
		LocalNumber: u.transcribe(depth, u.counter[depth]) + u.separator(depth),
		FullNumber:  full.String(),
		Text:        u.text[depth],
		FullText:    fullText,
		Pages:       pageList,
	}
}

func (f *Frozen) add(e Entry) {
	if _, ok := f.byFullNumber[e.FullNumber]; !ok {
		f.byFullNumber[e.FullNumber] = len(f.entries)
	}
	f.entries = append(f.entries, e)
}

// alpha numbers spreadsheet-style: 0 is a, 25 is z, 26 is aa.
func alpha(index int, first rune) string {
	if index < 0 {
		return string(first)
	}
	var letters []rune
	for {
		letters = append([]rune{first + rune(index%26)}, letters...)
		index = index/26 - 1
		if index < 0 {
			break
		}
	}
	return string(letters)
}
