package pipeline

import (
	"fmt"
	"sync/atomic"
)

// Counters accumulates progress across service restarts. The zero value is
// ready to use and safe for concurrent use.
type Counters struct {
	Written  atomic.Int64
	Skipped  atomic.Int64
	Tailed   atomic.Int64
	Accepted atomic.Int64
	Rejected atomic.Int64
	Emitted  atomic.Int64
	Dropped  atomic.Int64
}

// Summary is a point-in-time copy of Counters.
type Summary struct {
	Written  int64 `json:"written"`
	Skipped  int64 `json:"skipped"`
	Tailed   int64 `json:"tailed"`
	Accepted int64 `json:"accepted"`
	Rejected int64 `json:"rejected"`
	Emitted  int64 `json:"emitted"`
	Dropped  int64 `json:"dropped"`
}

func (c *Counters) Summary() Summary {
	return Summary{
		Written:  c.Written.Load(),
		Skipped:  c.Skipped.Load(),
		Tailed:   c.Tailed.Load(),
		Accepted: c.Accepted.Load(),
		Rejected: c.Rejected.Load(),
		Emitted:  c.Emitted.Load(),
		Dropped:  c.Dropped.Load(),
	}
}

func (s Summary) String() string {
	return fmt.Sprintf("written=%d skipped=%d tailed=%d accepted=%d rejected=%d snapshots=%d dropped=%d",
		s.Written, s.Skipped, s.Tailed, s.Accepted, s.Rejected, s.Emitted, s.Dropped)
}
