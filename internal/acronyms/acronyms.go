// Package acronyms loads acronym databases and tracks which acronyms a
// presentation uses.
package acronyms

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"

	"slidepress/internal/errs"
)

// Entry is one acronym definition. Acronym is the displayed short form and
// defaults to the ID.
type Entry struct {
	ID      string `json:"-"`
	Acronym string `json:"acronym,omitempty"`
	Text    string `json:"text"`
	URI     string `json:"uri,omitempty"`
}

// Database maps acronym IDs to their definitions.
type Database struct {
	entries      map[string]Entry
	origin       map[string]string
	loaded       map[string]bool
	used         map[string]bool
	unresolvable map[string]bool

	// Warnf reports unresolvable acronyms, once per ID.
	Warnf func(format string, args ...any)
}

// New creates an empty database.
func New() *Database {
	return &Database{
		entries:      make(map[string]Entry),
		origin:       make(map[string]string),
		loaded:       make(map[string]bool),
		used:         make(map[string]bool),
		unresolvable: make(map[string]bool),
		Warnf:        log.Printf,
	}
}

// Load reads a JSON acronym file. Loading the same file twice has no
// effect. An ID already defined by another file is a DuplicateAcronym
// error and leaves the database unchanged.
func (d *Database) Load(path string) error {
	if d.loaded[path] {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return errs.Wrap(errs.KindFileLookup, err, "failed to read acronym database").WithFile(path)
	}
	entries, err := Decode(data)
	if err != nil {
		if e, ok := errs.As(err); ok {
			return e.WithFile(path)
		}
		return err
	}
	for id := range entries {
		if prev, ok := d.origin[id]; ok {
			return errs.Newf(errs.KindDuplicateAcronym, "acronym %q is already defined in %s", id, prev).WithFile(path)
		}
	}
	for id, e := range entries {
		d.entries[id] = e
		d.origin[id] = path
	}
	d.loaded[path] = true
	return nil
}

// Decode parses the JSON form of a database. Duplicate IDs are rejected.
func Decode(data []byte) (map[string]Entry, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, errs.Wrap(errs.KindMalformedJSON, err, "malformed acronym database")
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errs.New(errs.KindMalformedJSON, "acronym database must be a JSON object")
	}

	entries := make(map[string]Entry)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, errs.Wrap(errs.KindMalformedJSON, err, "malformed acronym database")
		}
		id := tok.(string)
		var e Entry
		if err := dec.Decode(&e); err != nil {
			return nil, errs.Wrap(errs.KindMalformedJSON, err, "malformed entry for acronym %q", id)
		}
		if _, dup := entries[id]; dup {
			return nil, errs.Newf(errs.KindDuplicateAcronym, "acronym %q is defined twice", id)
		}
		e.ID = id
		if e.Acronym == "" {
			e.Acronym = id
		}
		entries[id] = e
	}
	if _, err := dec.Token(); err != nil {
		return nil, errs.Wrap(errs.KindMalformedJSON, err, "malformed acronym database")
	}
	return entries, nil
}

// Resolve looks up id and marks it as used. Unknown IDs are reported once.
func (d *Database) Resolve(id string) (Entry, bool) {
	e, ok := d.entries[id]
	if ok {
		d.used[id] = true
		return e, true
	}
	if !d.unresolvable[id] {
		d.unresolvable[id] = true
		d.Warnf("Warning: acronym %q not in acronym database", id)
	}
	return Entry{}, false
}

// Used returns every resolved acronym, sorted by ID.
func (d *Database) Used() []Entry {
	out := make([]Entry, 0, len(d.used))
	for id := range d.used {
		out = append(out, d.entries[id])
	}
	sortEntries(out)
	return out
}

// All returns every known acronym, sorted by ID.
func (d *Database) All() []Entry {
	out := make([]Entry, 0, len(d.entries))
	for _, e := range d.entries {
		out = append(out, e)
	}
	sortEntries(out)
	return out
}

// Len returns the number of known acronyms.
func (d *Database) Len() int {
	return len(d.entries)
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ID < entries[j].ID
	})
}

// Encode writes entries as a JSON object with sorted keys, the canonical
// on-disk form.
func Encode(entries map[string]Entry) ([]byte, error) {
	out := make(map[string]Entry, len(entries))
	for id, e := range entries {
		if e.Acronym == id {
			e.Acronym = ""
		}
		out[id] = e
	}
	data, err := json.MarshalIndent(out, "", "\t")
	if err != nil {
		return nil, fmt.Errorf("failed to encode acronym database: %w", err)
	}
	return append(data, '\n'), nil
}

// Paginate splits entries into pages of at most linesPerPage lines, where an
// entry takes as many lines of charsPerLine as its "ACRONYM: text" form
// needs. Every page holds at least one entry.
func Paginate(entries []Entry, linesPerPage, charsPerLine int) [][]Entry {
	var pages [][]Entry
	var page []Entry
	used := 0
	for _, e := range entries {
		length := len([]rune(e.Acronym)) + 2 + len([]rune(e.Text))
		lines := (length + charsPerLine - 1) / charsPerLine
		if used > 0 && used+lines > linesPerPage {
			pages = append(pages, page)
			page, used = nil, 0
		}
		used += lines
		page = append(page, e)
	}
	if len(page) > 0 {
		pages = append(pages, page)
	}
	return pages
}
