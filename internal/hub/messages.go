package hub

import (
	"encoding/json"
	"time"

	"wardwatch/internal/model"
)

// Message types carried on the live channel.
const (
	TypeConnectionEstablished = "connection_established"
	TypeSystemHeartbeat       = "system_heartbeat"
	TypeNewAlert              = "new_alert"
	TypeVitalsAlert           = "vitals_alert"
	TypePatientSummaryUpdated = "patient_summary_updated"
	TypeLiveFeed              = "live_feed"
	TypePong                  = "pong"
)

func envelope(typ string, fields map[string]any) []byte {
	msg := map[string]any{
		"type":      typ,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	}
	for k, v := range fields {
		msg[k] = v
	}
	data, _ := json.Marshal(msg)
	return data
}

func ConnectionEstablished(clientID string) []byte {
	return envelope(TypeConnectionEstablished, map[string]any{
		"client_id": clientID,
		"message":   "Connected to WardWatch monitor",
	})
}

func SystemHeartbeat(status model.StatusSnapshot) []byte {
	return envelope(TypeSystemHeartbeat, map[string]any{
		"status": status,
	})
}

func NewAlert(alert *model.Alert) []byte {
	return envelope(TypeNewAlert, map[string]any{
		"alert": alert,
	})
}

func VitalsAlert(alert *model.Alert, patientID string, vitals model.VitalSigns) []byte {
	return envelope(TypeVitalsAlert, map[string]any{
		"alert":      alert,
		"patient_id": patientID,
		"vitals":     vitals,
	})
}

func PatientSummaryUpdated(patientID, summary string) []byte {
	return envelope(TypePatientSummaryUpdated, map[string]any{
		"patient_id": patientID,
		"summary":    summary,
	})
}

// LiveFeed carries one tick's detections; frameB64 is the base64 JPEG and
// may be empty when the source had no frame (injected detections).
func LiveFeed(cameraID, room, frameB64 string, detections []model.Detection) []byte {
	if detections == nil {
		detections = []model.Detection{}
	}
	fields := map[string]any{
		"camera_id":  cameraID,
		"room":       room,
		"detections": detections,
	}
	if frameB64 != "" {
		fields["frame"] = frameB64
	}
	return envelope(TypeLiveFeed, fields)
}

func Pong() []byte {
	return envelope(TypePong, nil)
}
