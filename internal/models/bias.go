package models

import "time"

// BiasSnapshot is an externally produced directional estimate for a
// symbol. The pipeline reads it, never writes it; a separate slow
// analyst process owns the cache.
type BiasSnapshot struct {
	Score      float64                `json:"score"`
	Direction  string                 `json:"direction"`
	Conviction float64                `json:"conviction"`
	Reason     string                 `json:"reason"`
	Model      string                 `json:"model"`
	Sources    []string               `json:"sources"`
	CreatedAt  time.Time              `json:"created_at"`
	ExpiresAt  time.Time              `json:"expires_at"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// BiasLookup is what the bias tool hands back to a stage: the cached
// snapshot plus the freshness verdict computed at lookup time.
type BiasLookup struct {
	Symbol     string       `json:"symbol"`
	Found      bool         `json:"found"`
	Snapshot   BiasSnapshot `json:"snapshot,omitempty"`
	AgeMinutes float64      `json:"age_minutes"`
	Fresh      bool         `json:"fresh"`
	Note       string       `json:"note,omitempty"`
}
