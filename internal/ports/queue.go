package ports

import "github.com/ghalamif/TailFlow/internal/domain"

type SnapshotQueue interface {
	Enqueue(s domain.Snapshot) bool
	DequeueBatch(max int) []domain.Snapshot
	Len() int
}
