package alerts

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"wardwatch/internal/model"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func TestVitalsInRangeNoAlert(t *testing.T) {
	e := NewEvaluator(nil)
	vitals := model.VitalSigns{
		HeartRate:        intPtr(72),
		Temperature:      floatPtr(98.6),
		OxygenSaturation: intPtr(97),
	}
	if alert := e.FromVitals(vitals, "p1", "101"); alert != nil {
		t.Fatalf("unexpected alert: %+v", alert)
	}
}

func TestVitalsBoundariesAreNotBreaches(t *testing.T) {
	e := NewEvaluator(nil)
	cases := []model.VitalSigns{
		{HeartRate: intPtr(50)},
		{HeartRate: intPtr(120)},
		{Temperature: floatPtr(96.0)},
		{Temperature: floatPtr(102.0)},
		{OxygenSaturation: intPtr(90)},
	}
	for i, vitals := range cases {
		if alert := e.FromVitals(vitals, "p1", "101"); alert != nil {
			t.Fatalf("case %d: reading on the bound raised alert %q", i, alert.Message)
		}
	}
}

func TestVitalsSingleBreachIsWarning(t *testing.T) {
	e := NewEvaluator(nil)
	cases := []model.VitalSigns{
		{HeartRate: intPtr(49)},
		{HeartRate: intPtr(121)},
		{Temperature: floatPtr(95.9)},
		{Temperature: floatPtr(102.1)},
		{OxygenSaturation: intPtr(89)},
	}
	for i, vitals := range cases {
		alert := e.FromVitals(vitals, "p1", "101")
		if alert == nil {
			t.Fatalf("case %d: expected alert", i)
		}
		if alert.Kind != model.AlertWarning {
			t.Fatalf("case %d: kind = %s, want warning", i, alert.Kind)
		}
		if alert.Priority != 2 {
			t.Fatalf("case %d: priority = %d, want 2", i, alert.Priority)
		}
	}
}

func TestVitalsMultipleBreachesAreCritical(t *testing.T) {
	e := NewEvaluator(nil)
	vitals := model.VitalSigns{
		HeartRate:        intPtr(135),
		OxygenSaturation: intPtr(85),
	}
	alert := e.FromVitals(vitals, "p1", "203")
	if alert == nil {
		t.Fatal("expected alert")
	}
	if alert.Kind != model.AlertCritical {
		t.Fatalf("kind = %s, want critical", alert.Kind)
	}
	if alert.Priority != 1 {
		t.Fatalf("priority = %d, want 1", alert.Priority)
	}
	if !strings.Contains(alert.Message, "; ") {
		t.Fatalf("message should join reasons: %q", alert.Message)
	}
	if alert.PatientID != "p1" || alert.Room != "203" {
		t.Fatalf("alert context wrong: %+v", alert)
	}
}

func TestRuleJudgeFlagsFalls(t *testing.T) {
	detections := []model.Detection{
		{ID: "d1", Kind: model.KindPerson, Label: "person", Confidence: 0.9},
		{ID: "d2", Kind: model.KindFall, Label: "fall_detected", Confidence: 0.72},
	}
	verdict, err := RuleJudge{}.Judge(context.Background(), detections, "101")
	if err != nil {
		t.Fatalf("judge: %v", err)
	}
	if !verdict.AlertNeeded || verdict.Kind != model.AlertCritical {
		t.Fatalf("verdict = %+v, want critical alert", verdict)
	}
}

func TestRuleJudgeIgnoresRoutineDetections(t *testing.T) {
	detections := []model.Detection{
		{Kind: model.KindPerson, Label: "person", Confidence: 0.95},
		{Kind: model.KindFurniture, Label: "bed", Confidence: 0.8},
	}
	verdict, err := RuleJudge{}.Judge(context.Background(), detections, "101")
	if err != nil {
		t.Fatalf("judge: %v", err)
	}
	if verdict.AlertNeeded {
		t.Fatalf("unexpected alert: %+v", verdict)
	}
}

type stubJudge struct {
	verdict Verdict
	err     error
}

func (s stubJudge) Judge(context.Context, []model.Detection, string) (Verdict, error) {
	return s.verdict, s.err
}

func TestFromDetectionsBuildsAlert(t *testing.T) {
	e := NewEvaluator(stubJudge{verdict: Verdict{
		AlertNeeded:     true,
		Kind:            model.AlertWarning,
		Reason:          "patient near the door",
		Recommendations: []string{"check on patient"},
	}})
	detections := []model.Detection{
		{ID: "d1", Kind: model.KindPerson, Label: "person", Confidence: 0.9, Timestamp: time.Now()},
	}
	alert, err := e.FromDetections(context.Background(), detections, "104")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if alert == nil {
		t.Fatal("expected alert")
	}
	if alert.Message != "patient near the door" {
		t.Fatalf("message = %q", alert.Message)
	}
	if alert.Room != "104" || alert.Priority != 2 {
		t.Fatalf("alert = %+v", alert)
	}
	if alert.Metadata["detection_id"] != "d1" {
		t.Fatalf("metadata = %+v", alert.Metadata)
	}
}

func TestFromDetectionsJudgeErrorMeansNoAlert(t *testing.T) {
	e := NewEvaluator(stubJudge{err: errors.New("model unavailable")})
	detections := []model.Detection{{Kind: model.KindFall, Confidence: 0.8}}
	alert, err := e.FromDetections(context.Background(), detections, "104")
	if err == nil {
		t.Fatal("expected error")
	}
	if alert != nil {
		t.Fatalf("unexpected alert: %+v", alert)
	}
}

func TestFromDetectionsEmptyBatch(t *testing.T) {
	e := NewEvaluator(nil)
	alert, err := e.FromDetections(context.Background(), nil, "104")
	if err != nil || alert != nil {
		t.Fatalf("got (%v, %v), want (nil, nil)", alert, err)
	}
}
