package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"slidepress/internal/acronyms"
	"slidepress/internal/errs"
)

func newAcronymsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "acronyms",
		Aliases: []string{"acro"},
		Short:   "Acronym database management",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newAcronymsListCmd())
	cmd.AddCommand(newAcronymsSortCmd())

	return cmd
}

func newAcronymsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <db.json>",
		Short: "Table of the acronyms in a database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db := acronyms.New()
			if err := db.Load(args[0]); err != nil {
				return err
			}

			PrintTableOfAcronyms(cmd.OutOrStdout(), db.All())
			return nil
		},
	}

	return cmd
}

func newAcronymsSortCmd() *cobra.Command {
	desc := `Sort an acronym database

  Rewrites <db.json> in its canonical form with the acronyms sorted by ID.
  Databases with keys other than text, acronym and uri are left untouched.`

	cmd := &cobra.Command{
		Use:   "sort <db.json>",
		Short: "Sort an acronym database",
		Long:  desc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filename := args[0]

			data, err := os.ReadFile(filename)
			if err != nil {
				return errors.Wrapf(err, "reading %s", filename)
			}
			if err := checkAcronymKeys(data); err != nil {
				return err
			}
			entries, err := acronyms.Decode(data)
			if err != nil {
				if e, ok := errs.As(err); ok {
					return e.WithFile(filename)
				}
				return err
			}
			sorted, err := acronyms.Encode(entries)
			if err != nil {
				return err
			}

			if err := writeFileAtomic(filename, sorted); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sorted %d acronyms in %s\n", len(entries), filename)
			return nil
		},
	}

	return cmd
}

var acronymKeys = map[string]bool{"text": true, "acronym": true, "uri": true}

// checkAcronymKeys rejects entries carrying keys the canonical form would
// drop.
func checkAcronymKeys(data []byte) error {
	var raw map[string]map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return errs.Wrap(errs.KindMalformedJSON, err, "malformed acronym database")
	}

	illegal := make(map[string]bool)
	for _, entry := range raw {
		for key := range entry {
			if !acronymKeys[key] {
				illegal[key] = true
			}
		}
	}
	if len(illegal) == 0 {
		return nil
	}

	keys := make([]string, 0, len(illegal))
	for key := range illegal {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return errs.Newf(errs.KindMalformedJSON, "refusing to sort because of illegal key(s): %s", strings.Join(keys, ", "))
}

// writeFileAtomic replaces filename through a temporary file in the same
// directory.
func writeFileAtomic(filename string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(filename), "."+filepath.Base(filename)+".tmp*")
	if err != nil {
		return errors.Wrap(err, "creating temp file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "writing temp file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "syncing temp file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "closing temp file")
	}
	if err := os.Rename(tmpName, filename); err != nil {
		return errors.Wrapf(err, "replacing %s", filename)
	}
	return nil
}
