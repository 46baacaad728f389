package services

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/gofrs/uuid"

	"slidepress/internal/models"
)

// BuildRegistry records renders and the renderer cache index in SQLite
type BuildRegistry struct {
	database *sql.DB
	now      func() time.Time
}

// NewBuildRegistry creates a new build registry
func NewBuildRegistry(database *sql.DB) *BuildRegistry {
	return &BuildRegistry{
		database: database,
		now:      time.Now,
	}
}

// StartBuild records a running build of source
func (br *BuildRegistry) StartBuild(source, outputDir, sourceHash string) (*models.BuildRecord, error) {
	if source == "" {
		return nil, fmt.Errorf("source is required")
	}

	build := &models.BuildRecord{
		ID:         uuid.Must(uuid.NewV4()).String(),
		Source:     source,
		OutputDir:  outputDir,
		SourceHash: sourceHash,
		Status:     models.BuildRunning,
		StartedAt:  br.now().UTC(),
	}

	query := `INSERT INTO builds
		(id, source, output_dir, source_hash, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	_, err := br.database.Exec(query, build.ID, build.Source, build.OutputDir, build.SourceHash, build.Status, build.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert build: %w", err)
	}
	return build, nil
}

// FinishBuild marks a build as done. A non-nil buildErr marks it failed
func (br *BuildRegistry) FinishBuild(id string, slideCount int, buildErr error) error {
	status := models.BuildSucceeded
	message := ""
	if buildErr != nil {
		status = models.BuildFailed
		message = buildErr.Error()
	}

	query := `UPDATE builds
		SET status = ?, slide_count = ?, error = ?, finished_at = ?
		WHERE id = ?`

	result, err := br.database.Exec(query, status, slideCount, message, br.now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update build: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("build not found: %s", id)
	}

	log.Printf("Build %s %s (%d slides)", id, status, slideCount)
	return nil
}

const buildColumns = `id, source, output_dir, source_hash, status, slide_count, error, started_at, finished_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanBuild(row scanner) (*models.BuildRecord, error) {
	var build models.BuildRecord
	var finishedAt sql.NullTime

	err := row.Scan(
		&build.ID,
		&build.Source,
		&build.OutputDir,
		&build.SourceHash,
		&build.Status,
		&build.SlideCount,
		&build.Error,
		&build.StartedAt,
		&finishedAt,
	)
	if err != nil {
		return nil, err
	}

	if finishedAt.Valid {
		t := finishedAt.Time
		build.FinishedAt = &t
	}
	return &build, nil
}

// GetBuild returns a build by its ID
func (br *BuildRegistry) GetBuild(id string) (*models.BuildRecord, error) {
	query := `SELECT ` + buildColumns + ` FROM builds WHERE id = ?`

	build, err := scanBuild(br.database.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("build not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query build: %w", err)
	}
	return build, nil
}

// ListBuilds returns the most recent builds, newest first. An empty source
// lists the builds of every presentation
func (br *BuildRegistry) ListBuilds(source string, limit int) ([]*models.BuildRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + buildColumns + ` FROM builds
		WHERE ? = '' OR source = ?
		ORDER BY started_at DESC, rowid DESC LIMIT ?`

	rows, err := br.database.Query(query, source, source, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query builds: %w", err)
	}
	defer rows.Close()

	var builds []*models.BuildRecord
	for rows.Next() {
		build, err := scanBuild(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan build: %w", err)
		}
		builds = append(builds, build)
	}
	return builds, rows.Err()
}

// ListPresentations summarizes the builds per source file
func (br *BuildRegistry) ListPresentations() ([]*models.PresentationRecord, error) {
	query := `SELECT b.source, counts.n, b.id, b.status, b.started_at
		FROM builds b
		JOIN (SELECT source, COUNT(*) AS n, MAX(started_at) AS last FROM builds GROUP BY source) counts
			ON b.source = counts.source AND b.started_at = counts.last
		GROUP BY b.source
		ORDER BY b.source`

	rows, err := br.database.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query presentations: %w", err)
	}
	defer rows.Close()

	var records []*models.PresentationRecord
	for rows.Next() {
		var r models.PresentationRecord
		if err := rows.Scan(&r.Source, &r.Builds, &r.LastBuildID, &r.LastStatus, &r.LastBuildAt); err != nil {
			return nil, fmt.Errorf("failed to scan presentation: %w", err)
		}
		records = append(records, &r)
	}
	return records, rows.Err()
}

// RecordCacheEntry indexes an entry written to the renderer cache
func (br *BuildRegistry) RecordCacheEntry(renderer, keyHash string, size int) error {
	query := `INSERT INTO cache_entries (renderer, key_hash, size, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(renderer, key_hash) DO UPDATE SET size = excluded.size, created_at = excluded.created_at`

	if _, err := br.database.Exec(query, renderer, keyHash, size, br.now().UTC()); err != nil {
		return fmt.Errorf("failed to record cache entry: %w", err)
	}
	return nil
}

// CacheEntries returns the indexed cache entries, oldest first
func (br *BuildRegistry) CacheEntries() ([]*models.CacheEntryRecord, error) {
	return br.queryCacheEntries(`SELECT renderer, key_hash, size, created_at FROM cache_entries
		ORDER BY created_at, renderer, key_hash`)
}

func (br *BuildRegistry) queryCacheEntries(query string, args ...any) ([]*models.CacheEntryRecord, error) {
	rows, err := br.database.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cache entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.CacheEntryRecord
	for rows.Next() {
		var e models.CacheEntryRecord
		if err := rows.Scan(&e.Renderer, &e.KeyHash, &e.Size, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cache entry: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// CacheStats sums the indexed cache entries per renderer
func (br *BuildRegistry) CacheStats() ([]*models.CacheStats, error) {
	query := `SELECT renderer, COUNT(*), COALESCE(SUM(size), 0), MIN(created_at), MAX(created_at)
		FROM cache_entries GROUP BY renderer ORDER BY renderer`

	rows, err := br.database.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query cache stats: %w", err)
	}
	defer rows.Close()

	var stats []*models.CacheStats
	for rows.Next() {
		var s models.CacheStats
		var oldest, newest string
		if err := rows.Scan(&s.Renderer, &s.Entries, &s.Size, &oldest, &newest); err != nil {
			return nil, fmt.Errorf("failed to scan cache stats: %w", err)
		}
		s.Oldest = parseTimestamp(oldest)
		s.Newest = parseTimestamp(newest)
		stats = append(stats, &s)
	}
	return stats, rows.Err()
}

// parseTimestamp parses an aggregated DATETIME, which go-sqlite3 returns as
// text
func parseTimestamp(s string) time.Time {
	for _, layout := range []string{"2006-01-02 15:04:05.999999999-07:00", time.RFC3339Nano, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// ExpiredCacheEntries returns the entries created before cutoff
func (br *BuildRegistry) ExpiredCacheEntries(cutoff time.Time) ([]*models.CacheEntryRecord, error) {
	return br.queryCacheEntries(`SELECT renderer, key_hash, size, created_at FROM cache_entries
		WHERE created_at < ? ORDER BY created_at`, cutoff.UTC())
}

// DeleteCacheEntry removes an entry from the index
func (br *BuildRegistry) DeleteCacheEntry(renderer, keyHash string) error {
	query := `DELETE FROM cache_entries WHERE renderer = ? AND key_hash = ?`
	if _, err := br.database.Exec(query, renderer, keyHash); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}
