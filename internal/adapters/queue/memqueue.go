package queue

import (
	"sync"

	"github.com/ghalamif/TailFlow/internal/domain"
	"github.com/ghalamif/TailFlow/internal/ports"
)

// MemQueue is a bounded in-memory queue of snapshots that preserves FIFO
// ordering.
type MemQueue struct {
	mu   sync.Mutex
	data []domain.Snapshot
	cap  int
}

func NewMemQueue(capacity int) *MemQueue {
	if capacity <= 0 {
		capacity = 1
	}
	return &MemQueue{
		data: make([]domain.Snapshot, 0, capacity),
		cap:  capacity,
	}
}

func (q *MemQueue) Enqueue(s domain.Snapshot) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.data) >= q.cap {
		return false
	}
	q.data = append(q.data, s)
	return true
}

func (q *MemQueue) DequeueBatch(max int) []domain.Snapshot {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.data) == 0 {
		return nil
	}
	if max <= 0 || max > len(q.data) {
		max = len(q.data)
	}
	out := make([]domain.Snapshot, max)
	copy(out, q.data[:max])
	q.data = append(q.data[:0], q.data[max:]...)
	return out
}

func (q *MemQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.data)
}

var _ ports.SnapshotQueue = (*MemQueue)(nil)
