package session

import (
	"sync"

	"github.com/google/uuid"

	"support-bot/internal/domain"
)

// Registry owns the user to Record mapping. Map operations are mutually
// exclusive; record content is guarded by the record itself.
type Registry struct {
	mu      sync.Mutex
	records map[int64]*Record
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{records: make(map[int64]*Record)}
}

// GetOrCreate returns the user's record, creating one bound to chat if none
// exists. The second result is true when a record was created.
func (r *Registry) GetOrCreate(user domain.User, chat domain.ChatRef) (*Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.records[user.ID]; ok {
		return rec, false
	}
	rec := newRecord(user, chat, newSessionID())
	r.records[user.ID] = rec
	return rec, true
}

// Get returns the user's record without creating one.
func (r *Registry) Get(userID int64) (*Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[userID]
	return rec, ok
}

// Release removes the user's record and returns the messages the caller must
// delete. Releasing an absent user returns nil.
func (r *Registry) Release(userID int64) []domain.MessageRef {
	r.mu.Lock()
	rec, ok := r.records[userID]
	if ok {
		delete(r.records, userID)
	}
	r.mu.Unlock()
	if !ok {
		return nil
	}
	return rec.release()
}

// ReleaseRecord releases rec only if it is still the user's current record.
// It protects callers holding a record that a newer session replaced.
func (r *Registry) ReleaseRecord(rec *Record) []domain.MessageRef {
	if rec == nil {
		return nil
	}
	r.mu.Lock()
	cur, ok := r.records[rec.user.ID]
	if ok && cur == rec {
		delete(r.records, rec.user.ID)
	}
	r.mu.Unlock()
	if !ok || cur != rec {
		return nil
	}
	return rec.release()
}

// Len returns the number of live records.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

var newSessionID = func() string {
	return uuid.NewString()
}
