package main

import (
	"fmt"
	"log"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"slidepress/internal/cache"
	"slidepress/internal/db"
	"slidepress/internal/services"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Renderer cache management",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newCacheStatsCmd())
	cmd.AddCommand(newCachePruneCmd())
	cmd.AddCommand(newCacheClearCmd())

	return cmd
}

// openCacheIndex opens the configured cache store and the database holding
// its index.
func openCacheIndex(cmd *cobra.Command) (cache.Inventory, *services.BuildRegistry, func(), error) {
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return nil, nil, nil, err
	}
	store, release, err := cfg.OpenStore()
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "opening renderer cache")
	}
	database, err := db.Open(cfg.DB.Path)
	if err != nil {
		release()
		return nil, nil, nil, errors.Wrap(err, "opening cache index")
	}
	closeAll := func() {
		database.Close()
		if err := release(); err != nil {
			log.Printf("Warning: %v", err)
		}
	}
	return store, services.NewBuildRegistry(database), closeAll, nil
}

func newCacheStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Table of cached renderer output per renderer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, registry, closeAll, err := openCacheIndex(cmd)
			if err != nil {
				return err
			}
			defer closeAll()

			stats, err := registry.CacheStats()
			if err != nil {
				return err
			}
			PrintTableOfCacheStats(cmd.OutOrStdout(), stats)

			entries, err := store.List()
			if err != nil {
				return err
			}
			var size int64
			for _, e := range entries {
				size += e.Size
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d entries (%s) in the store\n", len(entries), formatBytes(size))
			return nil
		},
	}

	return cmd
}

func newCachePruneCmd() *cobra.Command {
	desc := `Remove old cache entries

  Removes every entry that was stored more than --days days ago, both from
  the store and from the index. Entries in a file store that are missing
  from the index are judged by their modification time.`

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove old cache entries",
		Long:  desc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			days := MustGetInt(cmd.Flags(), "days")
			if days < 0 {
				return errors.Errorf("--days must not be negative, got %d", days)
			}
			dryRun := MustGetBool(cmd.Flags(), "dry-run")

			store, registry, closeAll, err := openCacheIndex(cmd)
			if err != nil {
				return err
			}
			defer closeAll()

			cutoff := time.Now().Add(-time.Duration(days) * 24 * time.Hour)
			removed, err := pruneCache(store, registry, cutoff, dryRun)
			if err != nil {
				return err
			}

			verb := "Removed"
			if dryRun {
				verb = "Would remove"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d cache entries older than %d days\n", verb, removed, days)
			return nil
		},
	}

	cmd.Flags().IntP("days", "d", 30, "remove entries older than this many days")
	cmd.Flags().BoolP("dry-run", "n", false, "only count the entries that would be removed")

	return cmd
}

// pruneCache removes entries stored before cutoff and returns how many
// were (or, with dryRun, would be) removed.
func pruneCache(store cache.Inventory, registry *services.BuildRegistry, cutoff time.Time, dryRun bool) (int, error) {
	type key struct{ renderer, hash string }
	victims := make(map[key]bool)

	expired, err := registry.ExpiredCacheEntries(cutoff)
	if err != nil {
		return 0, err
	}
	for _, e := range expired {
		victims[key{e.Renderer, e.KeyHash}] = true
	}

	indexed, err := registry.CacheEntries()
	if err != nil {
		return 0, err
	}
	known := make(map[key]bool, len(indexed))
	for _, e := range indexed {
		known[key{e.Renderer, e.KeyHash}] = true
	}

	entries, err := store.List()
	if err != nil {
		return 0, err
	}
	for _, e := range entries {
		k := key{e.Renderer, e.KeyHash}
		if !known[k] && !e.Modified.IsZero() && e.Modified.Before(cutoff) {
			victims[k] = true
		}
	}

	if dryRun {
		return len(victims), nil
	}
	for k := range victims {
		if err := store.Delete(k.renderer, k.hash); err != nil {
			return 0, err
		}
		if err := registry.DeleteCacheEntry(k.renderer, k.hash); err != nil {
			return 0, err
		}
	}
	return len(victims), nil
}

// clearCache removes every entry from the store and the index.
func clearCache(store cache.Inventory, registry *services.BuildRegistry) (int, error) {
	entries, err := store.List()
	if err != nil {
		return 0, err
	}
	for _, e := range entries {
		if err := store.Delete(e.Renderer, e.KeyHash); err != nil {
			return 0, err
		}
	}

	indexed, err := registry.CacheEntries()
	if err != nil {
		return 0, err
	}
	for _, e := range indexed {
		if err := registry.DeleteCacheEntry(e.Renderer, e.KeyHash); err != nil {
			return 0, err
		}
	}
	return len(entries), nil
}

func newCacheClearCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every cache entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, registry, closeAll, err := openCacheIndex(cmd)
			if err != nil {
				return err
			}
			defer closeAll()

			removed, err := clearCache(store, registry)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cache entries\n", removed)
			return nil
		},
	}

	return cmd
}

func newBuildsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "builds [in.xml]",
		Short: "Table of recent builds",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, registry, closeAll, err := openCacheIndex(cmd)
			if err != nil {
				return err
			}
			defer closeAll()

			source := ""
			if len(args) == 1 {
				source = absAll(args)[0]
			}
			builds, err := registry.ListBuilds(source, MustGetInt(cmd.Flags(), "limit"))
			if err != nil {
				return err
			}
			PrintTableOfBuilds(cmd.OutOrStdout(), builds)
			return nil
		},
	}

	cmd.Flags().IntP("limit", "n", 20, "show at most this many builds")

	return cmd
}
