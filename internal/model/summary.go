package model

import "time"

// Summary is the cumulative result of one batch research run. Counts are
// reported even when the run aborts early or is interrupted.
type Summary struct {
	RunID      string        `json:"run_id"`
	Started    time.Time     `json:"started"`
	Elapsed    time.Duration `json:"elapsed"`
	Total      int           `json:"total"`
	Researched int           `json:"researched"`
	Cached     int           `json:"cached"`
	Errors     int           `json:"errors"`
	Skipped    int           `json:"skipped"`
	Aborted    bool          `json:"aborted"`

	// TotalCost is a fixed per-call estimate accumulated only on genuine
	// fresh successes; cache hits and fallbacks cost nothing.
	TotalCost float64 `json:"total_cost_usd"`
}
