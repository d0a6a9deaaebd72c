package sink

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/ghalamif/TailFlow/internal/domain"
	"github.com/ghalamif/TailFlow/internal/ports"
)

const consoleTimeLayout = "2006-01-02 15:04:05"

// ConsoleSink prints each snapshot as a small human-readable block.
type ConsoleSink struct {
	mu   sync.Mutex
	out  io.Writer
	unit string
}

// NewConsoleSink writes to out, labelling values with unit (e.g. "°C").
func NewConsoleSink(out io.Writer, unit string) *ConsoleSink {
	return &ConsoleSink{out: out, unit: strings.TrimSpace(unit)}
}

func (c *ConsoleSink) Name() string { return "console" }

func (c *ConsoleSink) WriteBatch(snapshots []domain.Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range snapshots {
		if _, err := io.WriteString(c.out, c.Render(s)); err != nil {
			return fmt.Errorf("console sink: %w", err)
		}
	}
	return nil
}

// Render formats one snapshot.
func (c *ConsoleSink) Render(s domain.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n[analyzer %s] Rolling averages from '%s':\n", s.AsOf.Format(consoleTimeLayout), s.Source)
	fmt.Fprintf(&b, "  • Last 1 hour : %s\n", c.formatAverage(s.H1))
	fmt.Fprintf(&b, "  • Last 6 hours: %s\n", c.formatAverage(s.H6))
	fmt.Fprintf(&b, "  • Last 12 hrs : %s\n", c.formatAverage(s.H12))
	return b.String()
}

func (c *ConsoleSink) formatAverage(avg domain.WindowAverage) string {
	if !avg.OK {
		return "n/a"
	}
	if c.unit == "" {
		return fmt.Sprintf("%.2f (n=%d)", avg.Mean, avg.Count)
	}
	return fmt.Sprintf("%.2f %s (n=%d)", avg.Mean, c.unit, avg.Count)
}

var _ ports.SnapshotSink = (*ConsoleSink)(nil)
