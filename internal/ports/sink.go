package ports

import "github.com/ghalamif/TailFlow/internal/domain"

type SnapshotSink interface {
	WriteBatch(snapshots []domain.Snapshot) error
	Name() string
}
