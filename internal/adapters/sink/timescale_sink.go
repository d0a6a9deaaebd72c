package sink

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/ghalamif/TailFlow/internal/domain"
	"github.com/ghalamif/TailFlow/internal/ports"
)

const timescaleColumns = 9

// TimescaleSink persists snapshots, one row per emission. Re-delivered
// snapshots are ignored through the (source, as_of) unique key.
type TimescaleSink struct {
	db        *sql.DB
	tableName string
}

func NewTimescaleSink(db *sql.DB, table string) *TimescaleSink {
	return &TimescaleSink{db: db, tableName: table}
}

func (t *TimescaleSink) Name() string { return "timescaledb" }

func (t *TimescaleSink) WriteBatch(snapshots []domain.Snapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(t.tableName)
	b.WriteString(" (source, as_of, avg_1h, n_1h, avg_6h, n_6h, avg_12h, n_12h, payload) VALUES ")

	args := make([]any, 0, len(snapshots)*timescaleColumns)
	for i, s := range snapshots {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("(")
		for c := 1; c <= timescaleColumns; c++ {
			if c > 1 {
				b.WriteString(",")
			}
			fmt.Fprintf(&b, "$%d", len(args)+c)
		}
		b.WriteString(")")

		payload, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("marshal snapshot: %w", err)
		}
		args = append(args,
			s.Source,
			s.AsOf,
			nullMean(s.H1), s.H1.Count,
			nullMean(s.H6), s.H6.Count,
			nullMean(s.H12), s.H12.Count,
			payload,
		)
	}

	b.WriteString(" ON CONFLICT (source, as_of) DO NOTHING")

	if _, err := t.db.Exec(b.String(), args...); err != nil {
		return fmt.Errorf("insert snapshots: %w", err)
	}
	return nil
}

func nullMean(avg domain.WindowAverage) sql.NullFloat64 {
	return sql.NullFloat64{Float64: avg.Mean, Valid: avg.OK}
}

var _ ports.SnapshotSink = (*TimescaleSink)(nil)
