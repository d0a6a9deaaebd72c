package domain

import "time"

// Record is one timestamped sensor reading as it appears on a line of the
// data file.
type Record struct {
	Timestamp time.Time `json:"ts"`
	Value     float64   `json:"value"`
}

// WindowAverage is the mean of the readings that fell inside a trailing
// window. OK is false when the window held no readings.
type WindowAverage struct {
	Hours int     `json:"hours"`
	Mean  float64 `json:"mean"`
	Count int     `json:"count"`
	OK    bool    `json:"ok"`
}

// Snapshot is the periodic 1h/6h/12h report emitted by the analyzer.
type Snapshot struct {
	Source string        `json:"source"`
	AsOf   time.Time     `json:"as_of"`
	H1     WindowAverage `json:"h1"`
	H6     WindowAverage `json:"h6"`
	H12    WindowAverage `json:"h12"`
}

// Averages returns the three windows in ascending order.
func (s Snapshot) Averages() []WindowAverage {
	return []WindowAverage{s.H1, s.H6, s.H12}
}
