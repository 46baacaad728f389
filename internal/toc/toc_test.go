package toc

import (
	"fmt"
	"reflect"
	"testing"
)

func fullNumbers(f *Frozen) []string {
	var out []string
	for _, e := range f.Entries() {
		out = append(out, e.FullNumber)
	}
	return out
}

func TestSectionsAndPages(t *testing.T) {
	toc := New()
	toc.NewHeading(1, "Intro")
	toc.AtPage(1)
	toc.NewHeading(2, "Background")
	toc.AtPage(2)
	toc.NewHeading(1, "Main")
	toc.AtPage(3)

	f := toc.Freeze()
	if got := fullNumbers(f); !reflect.DeepEqual(got, []string{"1", "1.1", "2"}) {
		t.Fatalf("full numbers = %v", got)
	}
	wantPages := [][]int{{1, 2}, {2}, {3}}
	for i, e := range f.Entries() {
		if !reflect.DeepEqual(e.Pages, wantPages[i]) {
			t.Errorf("%s pages = %v, want %v", e.Text, e.Pages, wantPages[i])
		}
	}
	if got := f.Entries()[1].FullText; !reflect.DeepEqual(got, []string{"Intro", "Background"}) {
		t.Errorf("full text = %v", got)
	}
}

func TestLevelsMapToDepths(t *testing.T) {
	toc := New()
	toc.SetTranscription(6, LowerAlpha)
	toc.NewHeading(0, "Intro")
	toc.NewHeading(1, "Background")
	toc.NewHeading(1, "Related Work")
	toc.NewHeading(0, "Main")
	toc.NewHeading(1, "Apparatus")
	toc.NewHeading(5, "Design")
	for i := 0; i < 3; i++ {
		toc.NewHeading(6, fmt.Sprintf("Part %d", i))
	}
	toc.NewHeading(0, "Results")
	toc.SetCounter(0, 0)
	toc.SetTranscription(0, UpperAlpha)
	toc.NewHeading(0, "Data Set")
	toc.NewHeading(1, "Foobar")

	f := toc.Freeze()
	want := []string{
		"1", "1.1", "1.2",
		"2", "2.1", "2.1.1", "2.1.1.a", "2.1.1.b", "2.1.1.c",
		"3",
		"A", "A.1",
	}
	if got := fullNumbers(f); !reflect.DeepEqual(got, want) {
		t.Fatalf("full numbers = %v\nwant %v", got, want)
	}
	if f.MaxDepth() != 4 {
		t.Fatalf("max depth = %d", f.MaxDepth())
	}
	if e := f.Entries()[6]; e.LocalNumber != "a." || e.Depth != 4 {
		t.Fatalf("entry = %+v", e)
	}
}

func TestOrderIsMonotonic(t *testing.T) {
	toc := New()
	for _, h := range []struct {
		level int
		text  string
	}{{0, "a"}, {1, "b"}, {1, "c"}, {2, "d"}, {0, "e"}, {2, "f"}, {1, "g"}} {
		toc.NewHeading(h.level, h.text)
	}
	entries := toc.Freeze().Entries()
	for i := 1; i < len(entries); i++ {
		if !lessOrEqual(entries[i-1].Order, entries[i].Order) {
			t.Fatalf("order %v after %v", entries[i].Order, entries[i-1].Order)
		}
	}
}

func lessOrEqual(a, b []int) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return true
}

func TestEmptyTOC(t *testing.T) {
	f := New().Freeze()
	if f.Len() != 0 || len(f.Commands()) != 0 || f.CurrentItem() != nil {
		t.Fatal("empty TOC should have no entries")
	}
}

func TestCommandsAndSubset(t *testing.T) {
	toc := New()
	toc.NewHeading(1, "A")
	toc.NewHeading(2, "A1")
	toc.NewHeading(2, "A2")
	toc.NewHeading(1, "B")
	toc.NewHeading(1, "C")
	f := toc.Freeze()

	var types []CommandType
	for _, c := range f.Commands() {
		types = append(types, c.Type)
	}
	want := []CommandType{
		NestingIncrease, ItemCommand,
		NestingIncrease, ItemCommand, ItemCommand,
		NestingDecrease, ItemCommand, ItemCommand,
		NestingDecrease,
	}
	if !reflect.DeepEqual(types, want) {
		t.Fatalf("commands = %v", types)
	}

	start, ok := f.Lookup("1.2")
	if !ok {
		t.Fatal("1.2 not found")
	}
	sub := f.Subset(start, "3", 0)
	if len(sub) != 2 || sub[0].FullNumber != "1.2" || sub[1].FullNumber != "2" {
		t.Fatalf("subset = %+v", sub)
	}
	if got := f.Subset(0, "", 2); len(got) != 2 {
		t.Fatalf("limited subset has %d entries", len(got))
	}
}

func TestCurrentItem(t *testing.T) {
	toc := New()
	toc.NewHeading(1, "A")
	toc.NewHeading(1, "B")
	f := toc.Freeze()
	f.Advance()
	f.Advance()
	if e := f.CurrentItem(); e == nil || e.Text != "B" {
		t.Fatalf("current = %+v", e)
	}
	f.ResetIndex()
	if f.CurrentItem() != nil {
		t.Fatal("reset should clear current item")
	}
}

func TestAlpha(t *testing.T) {
	for in, want := range map[int]string{0: "a", 25: "z", 26: "aa", 27: "ab", 701: "zz", 702: "aaa"} {
		if got := alpha(in, 'a'); got != want {
			t.Errorf("alpha(%d) = %q, want %q", in, got, want)
		}
	}
}
