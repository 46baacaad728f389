package filelookup

import (
	"os"
	"path/filepath"
	"testing"

	"slidepress/internal/errs"
)

func TestFind(t *testing.T) {
	first, second := t.TempDir(), t.TempDir()
	if err := os.WriteFile(filepath.Join(second, "a.txt"), []byte("second"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(first, "b.txt"), []byte("first"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(second, "b.txt"), []byte("second"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(first, "a.txt"), 0755); err != nil {
		t.Fatal(err)
	}

	l := New(first, "", second)
	tests := []struct {
		name string
		want string
	}{
		{"a.txt", "second"},
		{"b.txt", "first"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, _, err := l.ReadFile(tt.name)
			if err != nil {
				t.Fatal(err)
			}
			if string(data) != tt.want {
				t.Fatalf("got %q, want %q", data, tt.want)
			}
		})
	}
}

func TestFindMissing(t *testing.T) {
	for _, l := range []*Lookup{New(), New(t.TempDir())} {
		if _, err := l.Find("nope"); !errs.IsKind(err, errs.KindFileLookup) {
			t.Fatalf("expected lookup error, got %v", err)
		}
	}
}

func TestPrependAppend(t *testing.T) {
	l := New("b").Prepend("a").Append("c")
	got := l.Dirs()
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("Dirs = %v", got)
	}
}
