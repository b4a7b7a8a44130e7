// Package directory reads the subjects and activities attendance refers to.
// Their lifecycle belongs to other modules; the ledger only resolves them.
package directory

import (
	"context"
	"sync"

	"ledger/internal/attendance/models"
	"ledger/pkg/platform/sentinel"
)

type InMemory struct {
	mu         sync.RWMutex
	subjects   map[int64]models.Subject
	activities map[int64]models.Activity
}

func NewInMemory() *InMemory {
	return &InMemory{
		subjects:   make(map[int64]models.Subject),
		activities: make(map[int64]models.Activity),
	}
}

// PutSubject adds or replaces a subject.
func (s *InMemory) PutSubject(subject models.Subject) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subjects[subject.ID] = subject
}

// PutActivity adds or replaces an activity.
func (s *InMemory) PutActivity(activity models.Activity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activities[activity.ID] = activity
}

func (s *InMemory) FindSubject(_ context.Context, id int64) (*models.Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	subject, ok := s.subjects[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &subject, nil
}

func (s *InMemory) FindActivity(_ context.Context, id int64) (*models.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	activity, ok := s.activities[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &activity, nil
}

// SubjectNames returns display names keyed by id. Unknown ids are omitted.
func (s *InMemory) SubjectNames(_ context.Context, ids []int64) (map[int64]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make(map[int64]string, len(ids))
	for _, id := range ids {
		if subject, ok := s.subjects[id]; ok {
			names[id] = subject.DisplayName
		}
	}
	return names, nil
}
