package record

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"ledger/internal/attendance/models"
	"ledger/pkg/platform/sentinel"
)

// InMemory is a mutex-guarded record store. The key index enforces the
// one-record-per-triple invariant the same way the postgres unique index does.
type InMemory struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]*models.Record
	byKey  map[models.Key]int64
}

func NewInMemory() *InMemory {
	return &InMemory{
		byID:  make(map[int64]*models.Record),
		byKey: make(map[models.Key]int64),
	}
}

func (s *InMemory) FindByID(_ context.Context, id int64) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return r.Clone(), nil
}

func (s *InMemory) FindByKey(_ context.Context, key models.Key) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byKey[key]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.byID[id].Clone(), nil
}

// Insert stores a new record and assigns its ID. Returns sentinel.ErrConflict
// when the key is taken.
func (s *InMemory) Insert(_ context.Context, r *models.Record) (*models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := r.Key()
	if _, taken := s.byKey[key]; taken {
		return nil, sentinel.ErrConflict
	}
	s.nextID++
	stored := r.Clone()
	stored.ID = s.nextID
	s.byID[stored.ID] = stored
	s.byKey[key] = stored.ID
	return stored.Clone(), nil
}

// UpsertByKey inserts a record for reg.Key or overwrites status and note of
// the existing one.
func (s *InMemory) UpsertByKey(_ context.Context, reg models.Registration, now time.Time) (*models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byKey[reg.Key]; ok {
		existing := s.byID[id]
		existing.Status = reg.Status
		existing.Note = reg.Note
		existing.UpdatedAt = now
		return existing.Clone(), nil
	}
	s.nextID++
	stored := &models.Record{
		ID:         s.nextID,
		SubjectID:  reg.Key.SubjectID,
		ActivityID: reg.Key.ActivityID,
		Status:     reg.Status,
		RecordDate: reg.Key.Date,
		Note:       reg.Note,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.byID[stored.ID] = stored
	s.byKey[reg.Key] = stored.ID
	return stored.Clone(), nil
}

// Update replaces the mutable fields of an existing record, re-indexing it
// when its date moved.
func (s *InMemory) Update(_ context.Context, r *models.Record) (*models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.byID[r.ID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	oldKey, newKey := current.Key(), r.Key()
	if oldKey != newKey {
		if owner, taken := s.byKey[newKey]; taken && owner != r.ID {
			return nil, sentinel.ErrConflict
		}
		delete(s.byKey, oldKey)
		s.byKey[newKey] = r.ID
	}
	current.Status = r.Status
	current.RecordDate = r.RecordDate
	current.Note = r.Note
	current.UpdatedAt = r.UpdatedAt
	return current.Clone(), nil
}

func (s *InMemory) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byID[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(s.byKey, r.Key())
	delete(s.byID, id)
	return nil
}

// List returns records matching f, newest date first, ties by ID.
func (s *InMemory) List(_ context.Context, f models.Filter) ([]*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Record, 0)
	for _, r := range s.byID {
		if f.Matches(r) {
			out = append(out, r.Clone())
		}
	}
	SortNewestFirst(out)
	return out, nil
}

// Snapshot captures the current contents and returns a function restoring
// them. Used by the in-memory transaction to discard a failed callback.
func (s *InMemory) Snapshot() (restore func()) {
	s.mu.RLock()
	nextID := s.nextID
	byID := make(map[int64]*models.Record, len(s.byID))
	for id, r := range s.byID {
		byID[id] = r.Clone()
	}
	byKey := maps.Clone(s.byKey)
	s.mu.RUnlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.nextID = nextID
		s.byID = byID
		s.byKey = byKey
	}
}

// SortNewestFirst orders records by date descending, then ID ascending.
func SortNewestFirst(records []*models.Record) {
	slices.SortFunc(records, func(a, b *models.Record) int {
		if c := b.RecordDate.Compare(a.RecordDate); c != 0 {
			return c
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
}
