// Package patients keeps the in-memory patient roster and their event
// history used by the summarizer.
package patients

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"wardwatch/internal/model"
)

var ErrUnknownPatient = errors.New("patients: unknown id")

// maxEventsPerPatient bounds the per-patient event history.
const maxEventsPerPatient = 200

// Store is the in-memory patient roster. Safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	patients map[string]*model.Patient
	events   map[string][]model.PatientEvent
}

func NewStore() *Store {
	return &Store{
		patients: make(map[string]*model.Patient),
		events:   make(map[string][]model.PatientEvent),
	}
}

// Upsert inserts or replaces a patient record. A missing ID gets generated,
// a missing status defaults to stable.
func (s *Store) Upsert(p model.Patient) model.Patient {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = model.PatientStable
	}
	if p.AdmissionDate.IsZero() {
		p.AdmissionDate = time.Now().UTC()
	}
	p.LastUpdated = time.Now().UTC()

	s.mu.Lock()
	s.patients[p.ID] = &p
	s.mu.Unlock()
	return p
}

func (s *Store) Get(id string) (model.Patient, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.patients[id]
	if !ok {
		return model.Patient{}, false
	}
	return *p, true
}

// List returns all patients ordered by room.
func (s *Store) List() []model.Patient {
	s.mu.RLock()
	out := make([]model.Patient, 0, len(s.patients))
	for _, p := range s.patients {
		out = append(out, *p)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Room < out[j].Room })
	return out
}

// ByRoom returns the first patient assigned to the given room.
func (s *Store) ByRoom(room string) (model.Patient, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.patients {
		if p.Room == room {
			return *p, true
		}
	}
	return model.Patient{}, false
}

// SetVitals records the latest vitals snapshot for a patient.
func (s *Store) SetVitals(id string, vitals model.VitalSigns) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.patients[id]
	if !ok {
		return false
	}
	v := vitals
	p.Vitals = &v
	p.LastUpdated = time.Now().UTC()
	return true
}

// SetStatus updates the care status of a patient.
func (s *Store) SetStatus(id string, status model.PatientStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.patients[id]
	if !ok {
		return false
	}
	p.Status = status
	p.LastUpdated = time.Now().UTC()
	return true
}

// SetSummary stores the generated care summary.
func (s *Store) SetSummary(id, summary string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.patients[id]
	if !ok {
		return false
	}
	p.AISummary = summary
	p.LastUpdated = time.Now().UTC()
	return true
}

// AddEvent appends a care event to the patient's history, trimming the
// oldest entries past the cap. Unknown patients are ignored.
func (s *Store) AddEvent(ev model.PatientEvent) bool {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.patients[ev.PatientID]; !ok {
		return false
	}
	evs := append(s.events[ev.PatientID], ev)
	if len(evs) > maxEventsPerPatient {
		evs = evs[len(evs)-maxEventsPerPatient:]
	}
	s.events[ev.PatientID] = evs
	return true
}

// Events returns up to limit most recent events for a patient, oldest
// first. limit <= 0 returns all.
func (s *Store) Events(id string, limit int) []model.PatientEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	evs := s.events[id]
	if limit > 0 && len(evs) > limit {
		evs = evs[len(evs)-limit:]
	}
	out := make([]model.PatientEvent, len(evs))
	copy(out, evs)
	return out
}

func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.patients)
}
