// Package runlog defines the history of optimization runs served by the
// /api/runs endpoint.
package runlog

import (
	"context"
	"time"

	"github.com/kilianp07/battopt/core/model"
)

// Record captures one optimization request and its outcome.
type Record struct {
	RunID             string               `json:"run_id"`
	Timestamp         time.Time            `json:"timestamp"`
	Source            string               `json:"source"`
	Status            string               `json:"status"`
	Optimal           bool                 `json:"optimal"`
	InitialSOCPercent float64              `json:"initial_soc_percent"`
	CurrentIndex      int                  `json:"current_index"`
	Battery           model.BatteryParams  `json:"battery"`
	HorizonStart      int                  `json:"horizon_start"`
	HorizonEnd        int                  `json:"horizon_end"`
	ActionNow         float64              `json:"action_now"`
	TotalSavings      float64              `json:"total_savings"`
	SolveMS           float64              `json:"solve_ms"`
	PublishStatus     string               `json:"publish_status,omitempty"`
	Error             string               `json:"error,omitempty"`
	Schedule          []model.ScheduleStep `json:"schedule,omitempty"`
}

// Query defines filters for retrieving records. Zero fields match everything.
type Query struct {
	Start  time.Time
	End    time.Time
	Status string
	// Limit keeps the most recent records when positive.
	Limit int
}

// Match reports whether r passes the time and status filters.
func (q Query) Match(r Record) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	return q.Status == "" || r.Status == q.Status
}

// Trim applies Limit to records sorted oldest first.
func (q Query) Trim(recs []Record) []Record {
	if q.Limit > 0 && len(recs) > q.Limit {
		return recs[len(recs)-q.Limit:]
	}
	return recs
}

// Store persists Records and supports querying. Query returns records oldest
// first.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

// NopStore discards records.
type NopStore struct{}

func (NopStore) Append(context.Context, Record) error          { return nil }
func (NopStore) Query(context.Context, Query) ([]Record, error) { return nil, nil }
func (NopStore) Close() error                                   { return nil }
