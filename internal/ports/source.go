package ports

import (
	"context"

	"github.com/ghalamif/TailFlow/internal/domain"
)

// Source produces readings for the writer. Run blocks until ctx is
// cancelled or the source is exhausted (nil error in the latter case) and
// calls emit synchronously for every reading, so a reading is never half
// handed over when cancellation arrives.
type Source interface {
	Run(ctx context.Context, emit func(domain.Record) error) error
	Name() string
}
