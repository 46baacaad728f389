package models

import "time"

// SourceVersion identifies one source file of a presentation
type SourceVersion struct {
	Filename string `json:"filename" yaml:"filename"`
	SHA256   string `json:"sha256" yaml:"sha256"`
	Git      string `json:"git,omitempty" yaml:"git,omitempty"`
}

// BuildStatus is the outcome of a render
type BuildStatus string

const (
	BuildRunning   BuildStatus = "running"
	BuildSucceeded BuildStatus = "succeeded"
	BuildFailed    BuildStatus = "failed"
)

// BuildRecord represents one render of a presentation
type BuildRecord struct {
	ID         string      `json:"id"`
	Source     string      `json:"source"`
	OutputDir  string      `json:"outputDir"`
	SourceHash string      `json:"sourceHash"`
	Status     BuildStatus `json:"status"`
	SlideCount int         `json:"slideCount"`
	Error      string      `json:"error,omitempty"`
	StartedAt  time.Time   `json:"startedAt"`
	FinishedAt *time.Time  `json:"finishedAt,omitempty"`
}

// Duration returns how long the build took, or zero while it is running
func (b *BuildRecord) Duration() time.Duration {
	if b.FinishedAt == nil {
		return 0
	}
	return b.FinishedAt.Sub(b.StartedAt)
}

// CacheEntryRecord represents an entry of the renderer cache index
type CacheEntryRecord struct {
	Renderer  string    `json:"renderer"`
	KeyHash   string    `json:"keyHash"`
	Size      int       `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
}

// PresentationRecord summarizes the builds of one source file
type PresentationRecord struct {
	Source      string      `json:"source"`
	Builds      int         `json:"builds"`
	LastBuildID string      `json:"lastBuildId"`
	LastStatus  BuildStatus `json:"lastStatus"`
	LastBuildAt time.Time   `json:"lastBuildAt"`
}

// CacheStats summarizes the cache index of one renderer
type CacheStats struct {
	Renderer string    `json:"renderer"`
	Entries  int       `json:"entries"`
	Size     int64     `json:"size"`
	Oldest   time.Time `json:"oldest"`
	Newest   time.Time `json:"newest"`
}
