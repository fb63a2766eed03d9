// Package sse pushes live updates to browsers. Every committed mutation is
// published on a change bus as a Change; the server fans changes out to
// connected Server-Sent Event clients through a Hub.
package sse

import (
	"context"
	"sync"
	"time"
)

// 集合名
const (
	CollectionUsers       = "users"
	CollectionProjects    = "projects"
	CollectionSWOs        = "site_work_orders"
	CollectionReports     = "daily_reports"
	CollectionSupervisors = "project_supervisors"
	CollectionEquipments  = "project_equipments"
	CollectionTeams       = "project_worker_teams"
	CollectionLogs        = "activity_logs"
)

// 变更动作
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Change describes one committed mutation.
type Change struct {
	Collection string    `json:"collection"`
	ID         string    `json:"id"`
	Action     string    `json:"action"`
	ProjectID  string    `json:"project_id,omitempty"`
	At         time.Time `json:"at"`
}

// Bus carries changes from writers to subscribers.
type Bus interface {
	Publish(ctx context.Context, c Change) error
	// Subscribe returns a change stream and a cancel func closing it.
	Subscribe() (<-chan Change, func())
}

// LocalBus is an in-process Bus. Slow subscribers drop changes rather than
// block publishers.
type LocalBus struct {
	mu     sync.RWMutex
	subs   map[int]chan Change
	nextID int
	buffer int
}

// NewLocalBus creates a bus whose subscriber channels hold buffer changes.
func NewLocalBus(buffer int) *LocalBus {
	if buffer <= 0 {
		buffer = 64
	}
	return &LocalBus{subs: make(map[int]chan Change), buffer: buffer}
}

func (b *LocalBus) Publish(ctx context.Context, c Change) error {
	if c.At.IsZero() {
		c.At = time.Now()
	}
	b.dispatch(c)
	return nil
}

func (b *LocalBus) dispatch(c Change) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- c:
		default:
		}
	}
}

func (b *LocalBus) Subscribe() (<-chan Change, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	ch := make(chan Change, b.buffer)
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			close(ch)
			b.mu.Unlock()
		})
	}
}
