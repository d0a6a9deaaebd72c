package sink

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/ghalamif/TailFlow/internal/domain"
)

func TestTimescaleSinkWriteBatch(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	sink := NewTimescaleSink(db, "rolling_averages")
	ts := time.Now()

	snapshots := []domain.Snapshot{
		{
			Source: "temp.dat",
			AsOf:   ts,
			H1:     domain.WindowAverage{Hours: 1, Mean: 21.5, Count: 3, OK: true},
			H6:     domain.WindowAverage{Hours: 6, Mean: 22, Count: 10, OK: true},
			H12:    domain.WindowAverage{Hours: 12},
		},
	}

	expectedQuery := regexp.QuoteMeta("INSERT INTO rolling_averages (source, as_of, avg_1h, n_1h, avg_6h, n_6h, avg_12h, n_12h, payload) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) ON CONFLICT (source, as_of) DO NOTHING")
	mock.ExpectExec(expectedQuery).
		WithArgs("temp.dat", ts, 21.5, 3, 22.0, 10, nil, 0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := sink.WriteBatch(snapshots); err != nil {
		t.Fatalf("write batch: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTimescaleSinkWriteBatchMultipleRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	sink := NewTimescaleSink(db, "rolling_averages")
	mock.ExpectExec(regexp.QuoteMeta("VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9),($10,$11,$12,$13,$14,$15,$16,$17,$18) ON CONFLICT")).
		WillReturnResult(sqlmock.NewResult(2, 2))

	batch := []domain.Snapshot{{Source: "a", AsOf: time.Now()}, {Source: "a", AsOf: time.Now().Add(time.Second)}}
	if err := sink.WriteBatch(batch); err != nil {
		t.Fatalf("write batch: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTimescaleSinkWriteBatchError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	boom := errors.New("connection reset")
	mock.ExpectExec("INSERT INTO rolling_averages").WillReturnError(boom)

	sink := NewTimescaleSink(db, "rolling_averages")
	err = sink.WriteBatch([]domain.Snapshot{{Source: "a", AsOf: time.Now()}})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped driver error, got %v", err)
	}
}

func TestTimescaleSinkWriteBatchNoSnapshots(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	sink := NewTimescaleSink(db, "rolling_averages")
	if err := sink.WriteBatch(nil); err != nil {
		t.Fatalf("expected nil error for empty batch, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTimescaleSinkName(t *testing.T) {
	db, _, _ := sqlmock.New()
	defer db.Close()

	sink := NewTimescaleSink(db, "rolling_averages")
	if sink.Name() != "timescaledb" {
		t.Fatalf("expected sink name timescaledb, got %s", sink.Name())
	}
}
