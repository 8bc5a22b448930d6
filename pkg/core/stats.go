// pkg/core/stats.go
package core

import "time"

// PassStats summarizes one time-filter pass.
type PassStats struct {
	Selection string
	Threshold int64
	Total     int
	Visible   int
	// PerCategory holds visible counts for every category, zero included.
	PerCategory map[string]int
	At          time.Time
}
