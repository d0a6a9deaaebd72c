package source

import (
	"context"
	"time"

	"github.com/ghalamif/TailFlow/internal/domain"
	"github.com/ghalamif/TailFlow/internal/ports"
)

// Sequence replays a fixed list of values. The i-th value is stamped
// Start + i*Step; Delay paces emissions in wall-clock time.
type Sequence struct {
	Values []float64
	Start  time.Time
	Step   time.Duration
	Delay  time.Duration
}

func (s *Sequence) Name() string { return "sequence" }

func (s *Sequence) Run(ctx context.Context, emit func(domain.Record) error) error {
	for i, v := range s.Values {
		if err := ctx.Err(); err != nil {
			return err
		}
		if i > 0 && s.Delay > 0 {
			t := time.NewTimer(s.Delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}
		rec := domain.Record{Timestamp: s.Start.Add(time.Duration(i) * s.Step), Value: v}
		if err := emit(rec); err != nil {
			return err
		}
	}
	return nil
}

var _ ports.Source = (*Sequence)(nil)
