package presence

import (
	"sync"
	"time"

	"github.com/Parth8155/SkillSwap/internal/model"
)

// Record is a user's ephemeral connection state. It exists only while a
// channel connection is open and is never persisted.
type Record struct {
	UserID       string
	ConnectionID string
	Status       string
	ConnectedAt  time.Time
}

// Registry tracks which users currently hold an open channel connection.
// One record per user: a newer connection replaces the older one. The
// registry is process-local and rebuilt empty on restart.
type Registry struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewRegistry() *Registry {
	return &Registry{records: make(map[string]Record)}
}

// Register records userID as connected via connectionID with status online.
// It returns the connection id of the record it replaced, if any, so the
// caller can retire the superseded connection.
func (r *Registry) Register(userID, connectionID string) (replaced string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, existed := r.records[userID]
	r.records[userID] = Record{
		UserID:       userID,
		ConnectionID: connectionID,
		Status:       model.StatusOnline,
		ConnectedAt:  time.Now(),
	}
	if existed {
		return prev.ConnectionID, true
	}
	return "", false
}

// Unregister removes the record for userID, but only if connectionID still
// owns it; a stale disconnect (superseded connection, or a connection that
// never registered) is a no-op. Returns whether a record was removed.
func (r *Registry) Unregister(userID, connectionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[userID]
	if !ok || rec.ConnectionID != connectionID {
		return false
	}
	delete(r.records, userID)
	return true
}

// SetStatus updates the status of userID's record. Returns false when the
// user has no active connection.
func (r *Registry) SetStatus(userID, status string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[userID]
	if !ok {
		return false
	}
	rec.Status = status
	r.records[userID] = rec
	return true
}

// Get returns the record for userID.
func (r *Registry) Get(userID string) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[userID]
	return rec, ok
}

// Snapshot returns a copy of all current records.
func (r *Registry) Snapshot() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	return out
}

// Len returns the number of connected users.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}
