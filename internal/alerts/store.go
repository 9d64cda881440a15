package alerts

import (
	"sync"
	"time"

	"wardwatch/internal/model"
)

// Store is a bounded in-memory buffer of recent alerts. Acknowledge and
// Resolve mutate entries in place; external actors may flip these at any
// time relative to the producers.
type Store struct {
	mu    sync.RWMutex
	buf   []*model.Alert
	limit int
}

func NewStore(limit int) *Store {
	if limit <= 0 {
		limit = 1000
	}
	return &Store{limit: limit}
}

func (s *Store) Add(alert model.Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := alert
	if len(s.buf) < s.limit {
		s.buf = append(s.buf, &a)
		return
	}
	copy(s.buf, s.buf[1:])
	s.buf[len(s.buf)-1] = &a
}

func (s *Store) List(limit int) []model.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.buf) {
		limit = len(s.buf)
	}
	out := make([]model.Alert, 0, limit)
	for i := len(s.buf) - limit; i < len(s.buf); i++ {
		out = append(out, *s.buf[i])
	}
	return out
}

func (s *Store) Since(ts time.Time) []model.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Alert, 0)
	for _, a := range s.buf {
		if !a.CreatedAt.Before(ts) {
			out = append(out, *a)
		}
	}
	return out
}

// ActiveCount reports alerts not yet resolved.
func (s *Store) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, a := range s.buf {
		if !a.Resolved {
			n++
		}
	}
	return n
}

func (s *Store) Get(id string) (model.Alert, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.buf {
		if a.ID == id {
			return *a, true
		}
	}
	return model.Alert{}, false
}

func (s *Store) Acknowledge(id, actor string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.buf {
		if a.ID == id {
			if !a.Acknowledged {
				now := time.Now().UTC()
				a.Acknowledged = true
				a.AcknowledgedBy = actor
				a.AcknowledgedAt = &now
			}
			return true
		}
	}
	return false
}

func (s *Store) Resolve(id, actor string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.buf {
		if a.ID == id {
			if !a.Resolved {
				now := time.Now().UTC()
				a.Resolved = true
				a.ResolvedBy = actor
				a.ResolvedAt = &now
			}
			return true
		}
	}
	return false
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = nil
}
