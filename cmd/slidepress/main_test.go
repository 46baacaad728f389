package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"slidepress/internal/cache"
	"slidepress/internal/db"
	"slidepress/internal/errs"
	"slidepress/internal/schedule"
	"slidepress/internal/services"
	"slidepress/internal/xmlutil"
)

// execute runs the command line with the cache and database in temporary
// directories and returns what was written to stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("SLIDEPRESS_CACHE_DIR", filepath.Join(t.TempDir(), "cache"))
	t.Setenv("SLIDEPRESS_DB_PATH", filepath.Join(t.TempDir(), "slidepress.db"))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return out.String(), err
}

func writePresentation(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "talk.xml")
	doc := `<?xml version="1.0" encoding="UTF-8"?>` + "\n" +
		`<presentation xmlns:s="` + xmlutil.Namespace + `">` + body + `</presentation>`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFormatSeconds(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "0:00"},
		{59.6, "1:00"},
		{125, "2:05"},
		{3600, "1:00:00"},
		{3725, "1:02:05"},
	}
	for _, tt := range tests {
		if got := formatSeconds(tt.seconds); got != tt.want {
			t.Errorf("formatSeconds(%v) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1536, "1.5 KiB"},
		{3 << 20, "3.0 MiB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.n); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestPrintTableOfSchedule(t *testing.T) {
	var b bytes.Buffer
	PrintTableOfSchedule(&b, []schedule.TimeSlice{
		{SlideNo: 1, Ratio: 0.25, BeginRatio: 0, EndRatio: 0.25, Seconds: 120},
		{SlideNo: 2, Ratio: 0.75, BeginRatio: 0.25, EndRatio: 1, Seconds: 360},
	}, 480)

	out := b.String()
	for _, want := range []string{"SLIDE", "2:00", "6:00", "25.0%", "8:00"} {
		if !strings.Contains(out, want) {
			t.Errorf("table lacks %q:\n%s", want, out)
		}
	}
}

func TestCheckOutdir(t *testing.T) {
	empty := t.TempDir()
	full := t.TempDir()
	if err := os.WriteFile(filepath.Join(full, "index.html"), nil, 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		dir     string
		force   bool
		wantErr bool
	}{
		{"missing", filepath.Join(empty, "out"), false, false},
		{"empty", empty, false, false},
		{"not empty", full, false, true},
		{"forced", full, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkOutdir(tt.dir, tt.force)
			if (err != nil) != tt.wantErr {
				t.Fatalf("checkOutdir() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errs.IsKind(err, errs.KindConfigConflict) {
				t.Fatalf("unexpected error kind: %v", err)
			}
		})
	}
}

func TestPruneCache(t *testing.T) {
	dir := t.TempDir()
	store := cache.NewFileStore(filepath.Join(dir, "cache"))
	database, err := db.Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer database.Close()
	registry := services.NewBuildRegistry(database)

	for _, hash := range []string{"aa", "bb", "cc"} {
		if err := store.Put("latex", hash, []byte(`{}`)); err != nil {
			t.Fatal(err)
		}
	}
	for _, hash := range []string{"aa", "bb"} {
		if err := registry.RecordCacheEntry("latex", hash, 2); err != nil {
			t.Fatal(err)
		}
	}
	// cc is on disk only and old enough to go
	old := time.Now().Add(-72 * time.Hour)
	if err := os.Chtimes(filepath.Join(dir, "cache", "latex", "cc.json"), old, old); err != nil {
		t.Fatal(err)
	}

	cutoff := time.Now().Add(-24 * time.Hour)
	n, err := pruneCache(store, registry, cutoff, true)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("dry run counted %d entries, want 1", n)
	}
	if entries, _ := store.List(); len(entries) != 3 {
		t.Fatalf("dry run removed entries: %+v", entries)
	}

	if n, err = pruneCache(store, registry, cutoff, false); err != nil || n != 1 {
		t.Fatalf("pruneCache() = %d, %v", n, err)
	}
	if _, err := store.Get("latex", "cc"); err == nil {
		t.Fatal("cc survived the prune")
	}

	if n, err = pruneCache(store, registry, time.Now().Add(time.Hour), false); err != nil || n != 2 {
		t.Fatalf("pruneCache() = %d, %v", n, err)
	}
	if entries, _ := registry.CacheEntries(); len(entries) != 0 {
		t.Fatalf("index still holds %+v", entries)
	}
}

func TestAcronymsSort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "acronyms.json")
	in := `{"TLS": {"text": "Transport Layer Security"}, "AES": {"text": "Advanced Encryption Standard", "acronym": "AES"}}`
	if err := os.WriteFile(path, []byte(in), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := execute(t, "acronyms", "sort", path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	got := string(data)
	if strings.Index(got, `"AES"`) > strings.Index(got, `"TLS"`) {
		t.Fatalf("acronyms not sorted:\n%s", got)
	}
	if strings.Contains(got, `"acronym"`) {
		t.Fatalf("redundant acronym kept:\n%s", got)
	}

	out, err := execute(t, "acronyms", "list", path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Transport Layer Security") {
		t.Fatalf("list output:\n%s", out)
	}
}

func TestAcronymsSortRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "acronyms.json")
	in := `{"TLS": {"text": "Transport Layer Security", "plural": "TLSes"}}`
	if err := os.WriteFile(path, []byte(in), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := execute(t, "acronyms", "sort", path)
	if err == nil || !strings.Contains(err.Error(), "plural") {
		t.Fatalf("expected an error naming the illegal key, got %v", err)
	}
	if data, _ := os.ReadFile(path); string(data) != in {
		t.Fatal("rejected database was rewritten")
	}
}

func TestRenderCommand(t *testing.T) {
	src := writePresentation(t, `<meta><presentation-time>0:10</presentation-time></meta>`+
		`<slide type="default">Hello</slide><slide type="default">World</slide>`)
	outdir := filepath.Join(t.TempDir(), "out")

	if _, err := execute(t, "render", src, outdir); err != nil {
		t.Fatal(err)
	}
	index, err := os.ReadFile(filepath.Join(outdir, "index.html"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(index), "World") {
		t.Fatalf("index lacks the slides:\n%s", index)
	}

	_, err = execute(t, "render", src, outdir)
	if !errs.IsKind(err, errs.KindConfigConflict) {
		t.Fatalf("second render into %s: %v", outdir, err)
	}
}

func TestHashCommand(t *testing.T) {
	src := writePresentation(t, `<slide type="default">Hello</slide>`)

	first, err := execute(t, "hash", src)
	if err != nil {
		t.Fatal(err)
	}
	if len(strings.TrimSpace(first)) != 32 {
		t.Fatalf("hash = %q", first)
	}

	if err := os.WriteFile(src, []byte(strings.Replace(mustRead(t, src), "Hello", "Bye", 1)), 0644); err != nil {
		t.Fatal(err)
	}
	second, err := execute(t, "hash", src)
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Fatal("hash did not change with the source")
	}
}

func TestScheduleCommand(t *testing.T) {
	src := writePresentation(t, `<meta><presentation-time>0:10</presentation-time></meta>`+
		`<slide type="default">A</slide><slide type="default">B</slide>`)

	out, err := execute(t, "schedule", src)
	if err != nil {
		t.Fatal(err)
	}
	// Two slides share ten minutes equally
	if strings.Count(out, "5:00") < 2 || !strings.Contains(out, "10:00") {
		t.Fatalf("schedule output:\n%s", out)
	}
}

func mustRead(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}
