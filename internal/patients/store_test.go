package patients

import (
	"fmt"
	"testing"

	"wardwatch/internal/model"
)

func TestUpsertDefaults(t *testing.T) {
	s := NewStore()
	p := s.Upsert(model.Patient{Name: "Ada", Room: "203"})
	if p.ID == "" {
		t.Fatal("id not generated")
	}
	if p.Status != model.PatientStable {
		t.Fatalf("status = %s", p.Status)
	}
	if p.AdmissionDate.IsZero() || p.LastUpdated.IsZero() {
		t.Fatalf("timestamps not set: %+v", p)
	}

	got, ok := s.Get(p.ID)
	if !ok || got.Name != "Ada" {
		t.Fatalf("get = (%+v, %v)", got, ok)
	}
	if _, ok := s.ByRoom("203"); !ok {
		t.Fatal("room lookup failed")
	}
	if _, ok := s.ByRoom("999"); ok {
		t.Fatal("phantom room match")
	}
}

func TestVitalsAndSummaryUpdates(t *testing.T) {
	s := NewStore()
	p := s.Upsert(model.Patient{Name: "Ada", Room: "203"})

	hr := 72
	if !s.SetVitals(p.ID, model.VitalSigns{HeartRate: &hr}) {
		t.Fatal("set vitals failed")
	}
	if !s.SetSummary(p.ID, "resting comfortably") {
		t.Fatal("set summary failed")
	}
	got, _ := s.Get(p.ID)
	if got.Vitals == nil || *got.Vitals.HeartRate != 72 {
		t.Fatalf("vitals = %+v", got.Vitals)
	}
	if got.AISummary != "resting comfortably" {
		t.Fatalf("summary = %q", got.AISummary)
	}

	if s.SetVitals("ghost", model.VitalSigns{}) {
		t.Fatal("set vitals on unknown patient succeeded")
	}
}

func TestEventHistoryTrimming(t *testing.T) {
	s := NewStore()
	p := s.Upsert(model.Patient{Name: "Ada", Room: "203"})

	for i := 0; i < maxEventsPerPatient+10; i++ {
		ok := s.AddEvent(model.PatientEvent{
			PatientID:   p.ID,
			EventType:   "vitals_alert",
			Description: fmt.Sprintf("event %d", i),
		})
		if !ok {
			t.Fatalf("add event %d failed", i)
		}
	}
	all := s.Events(p.ID, 0)
	if len(all) != maxEventsPerPatient {
		t.Fatalf("history = %d, want %d", len(all), maxEventsPerPatient)
	}
	// Oldest entries were dropped.
	if all[0].Description != "event 10" {
		t.Fatalf("oldest = %q", all[0].Description)
	}
	recent := s.Events(p.ID, 5)
	if len(recent) != 5 || recent[4].Description != fmt.Sprintf("event %d", maxEventsPerPatient+9) {
		t.Fatalf("recent = %+v", recent)
	}

	if s.AddEvent(model.PatientEvent{PatientID: "ghost"}) {
		t.Fatal("event for unknown patient accepted")
	}
}
