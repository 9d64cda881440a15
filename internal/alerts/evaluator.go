package alerts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"wardwatch/internal/model"
)

// Verdict is a Judge's decision about a batch of detections.
type Verdict struct {
	AlertNeeded     bool            `json:"alert_needed"`
	Kind            model.AlertKind `json:"alert_type"`
	Reason          string          `json:"reason"`
	Recommendations []string        `json:"recommendations,omitempty"`
}

// Judge decides whether a batch of detections warrants an alert. The
// rule-based judge below is the default; a model-backed judge can be swapped
// in behind the same interface.
type Judge interface {
	Judge(ctx context.Context, detections []model.Detection, room string) (Verdict, error)
}

// Evaluator turns detections or vitals snapshots into at most one Alert per
// call. It performs no I/O.
type Evaluator struct {
	judge Judge
}

func NewEvaluator(judge Judge) *Evaluator {
	if judge == nil {
		judge = RuleJudge{}
	}
	return &Evaluator{judge: judge}
}

// FromDetections delegates the severity judgment and, if warranted, builds
// the alert. Judge failures mean no alert; the caller logs them.
func (e *Evaluator) FromDetections(ctx context.Context, detections []model.Detection, room string) (*model.Alert, error) {
	if len(detections) == 0 {
		return nil, nil
	}
	verdict, err := e.judge.Judge(ctx, detections, room)
	if err != nil {
		return nil, err
	}
	if !verdict.AlertNeeded {
		return nil, nil
	}
	kind := verdict.Kind
	if kind == "" {
		kind = model.AlertWarning
	}
	message := verdict.Reason
	if message == "" {
		message = "concerning activity detected"
	}
	top := detections[0]
	alert := &model.Alert{
		ID:       uuid.NewString(),
		Kind:     kind,
		Priority: model.PriorityFor(kind),
		Title:    "Detection Alert",
		Message:  message,
		Room:     room,
		Metadata: map[string]any{
			"detection_id":    top.ID,
			"detection_kind":  string(top.Kind),
			"confidence":      top.Confidence,
			"detection_count": len(detections),
			"recommendations": verdict.Recommendations,
		},
		CreatedAt: time.Now().UTC(),
	}
	return alert, nil
}

// Vitals thresholds. All bounds are exclusive: a reading exactly on a bound
// is not a breach.
const (
	heartRateLow  = 50
	heartRateHigh = 120
	tempLowF      = 96.0
	tempHighF     = 102.0
	oxygenSatLow  = 90
)

// FromVitals checks a vitals snapshot against fixed thresholds. One breach
// yields a warning, two or more a critical alert, none yields nil.
func (e *Evaluator) FromVitals(vitals model.VitalSigns, patientID, room string) *model.Alert {
	var reasons []string
	if vitals.HeartRate != nil {
		hr := *vitals.HeartRate
		if hr < heartRateLow || hr > heartRateHigh {
			reasons = append(reasons, fmt.Sprintf("Heart rate abnormal: %d bpm", hr))
		}
	}
	if vitals.Temperature != nil {
		t := *vitals.Temperature
		if t < tempLowF || t > tempHighF {
			reasons = append(reasons, fmt.Sprintf("Temperature abnormal: %.1f°F", t))
		}
	}
	if vitals.OxygenSaturation != nil {
		o2 := *vitals.OxygenSaturation
		if o2 < oxygenSatLow {
			reasons = append(reasons, fmt.Sprintf("Low oxygen saturation: %d%%", o2))
		}
	}
	if len(reasons) == 0 {
		return nil
	}
	kind := model.AlertWarning
	if len(reasons) > 1 {
		kind = model.AlertCritical
	}
	return &model.Alert{
		ID:        uuid.NewString(),
		Kind:      kind,
		Priority:  model.PriorityFor(kind),
		Title:     "Vital Signs Alert",
		Message:   strings.Join(reasons, "; "),
		Room:      room,
		PatientID: patientID,
		Metadata: map[string]any{
			"vitals":         vitals,
			"alert_triggers": reasons,
		},
		CreatedAt: time.Now().UTC(),
	}
}

// RuleJudge is the default detection judge: any fall detection is critical,
// anything else is not alert-worthy on its own.
type RuleJudge struct{}

func (RuleJudge) Judge(_ context.Context, detections []model.Detection, _ string) (Verdict, error) {
	for _, d := range detections {
		if d.Kind == model.KindFall {
			return Verdict{
				AlertNeeded: true,
				Kind:        model.AlertCritical,
				Reason:      fmt.Sprintf("possible fall detected (confidence %.2f)", d.Confidence),
			}, nil
		}
	}
	return Verdict{}, nil
}
