package services

import (
	"sync"
	"time"

	"slidepress/internal/schedule"
)

// RenderSummary describes the last finished render
type RenderSummary struct {
	BuildID    string               `json:"buildId"`
	Source     string               `json:"source"`
	SlideCount int                  `json:"slideCount"`
	TotalTime  float64              `json:"presentationTime"`
	Schedule   []schedule.TimeSlice `json:"schedule"`
	Error      string               `json:"error,omitempty"`
	FinishedAt time.Time            `json:"finishedAt"`
	Successful bool                 `json:"successful"`
}

// RenderState holds the summary of the most recent render for the API
type RenderState struct {
	mu      sync.RWMutex
	summary *RenderSummary
}

// NewRenderState creates an empty render state
func NewRenderState() *RenderState {
	return &RenderState{}
}

// Set replaces the summary. A failed render keeps the previous schedule
func (s *RenderState) Set(summary RenderSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !summary.Successful && s.summary != nil && summary.Schedule == nil {
		summary.Schedule = s.summary.Schedule
		summary.TotalTime = s.summary.TotalTime
	}
	s.summary = &summary
}

// Get returns a copy of the summary, or false before the first render
func (s *RenderState) Get() (RenderSummary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.summary == nil {
		return RenderSummary{}, false
	}
	return *s.summary, true
}
