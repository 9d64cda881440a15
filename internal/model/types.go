package model

import "time"

type CameraStatus string

const (
	CameraRegistered CameraStatus = "registered"
	CameraActive     CameraStatus = "active"
	CameraOffline    CameraStatus = "offline"
	CameraFailed     CameraStatus = "failed"
)

type WorkerState string

const (
	WorkerStarting WorkerState = "starting"
	WorkerRunning  WorkerState = "running"
	WorkerDegraded WorkerState = "degraded"
	WorkerStopped  WorkerState = "stopped"
)

// CameraResource describes one registered video source. Exactly one of
// DeviceIndex and StreamURL is set. The registry owns all mutation.
type CameraResource struct {
	ID               string       `json:"id"`
	Name             string       `json:"name"`
	Room             string       `json:"room"`
	DeviceIndex      *int         `json:"device_index,omitempty"`
	StreamURL        string       `json:"stream_url,omitempty"`
	Status           CameraStatus `json:"status"`
	WorkerState      WorkerState  `json:"worker_state"`
	DetectionEnabled bool         `json:"detection_enabled"`
	RecordingEnabled bool         `json:"recording_enabled"`
	LastFrameAt      time.Time    `json:"last_frame_at,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
}

type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Detection is one classified, localized finding within a single frame.
// Immutable once created.
type Detection struct {
	ID         string         `json:"id"`
	CameraID   string         `json:"camera_id"`
	Kind       DetectionKind  `json:"kind"`
	Label      string         `json:"label"`
	Confidence float64        `json:"confidence"`
	Box        BoundingBox    `json:"bounding_box"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

type AlertKind string

const (
	AlertCritical AlertKind = "critical"
	AlertWarning  AlertKind = "warning"
	AlertInfo     AlertKind = "info"
)

// PriorityFor derives the default priority for a kind: 1 for critical,
// 3 for info, 2 otherwise.
func PriorityFor(kind AlertKind) int {
	switch kind {
	case AlertCritical:
		return 1
	case AlertInfo:
		return 3
	default:
		return 2
	}
}

type Alert struct {
	ID             string         `json:"id"`
	Kind           AlertKind      `json:"alert_type"`
	Priority       int            `json:"priority"`
	Title          string         `json:"title"`
	Message        string         `json:"message"`
	Room           string         `json:"room"`
	PatientID      string         `json:"patient_id,omitempty"`
	Acknowledged   bool           `json:"acknowledged"`
	AcknowledgedBy string         `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time     `json:"acknowledged_at,omitempty"`
	Resolved       bool           `json:"resolved"`
	ResolvedBy     string         `json:"resolved_by,omitempty"`
	ResolvedAt     *time.Time     `json:"resolved_at,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

type PatientStatus string

const (
	PatientStable     PatientStatus = "stable"
	PatientCritical   PatientStatus = "critical"
	PatientMonitoring PatientStatus = "monitoring"
)

// VitalSigns is a point-in-time vitals snapshot. Pointer fields distinguish
// "not measured" from a literal zero.
type VitalSigns struct {
	HeartRate        *int     `json:"heart_rate,omitempty"`
	BloodPressure    string   `json:"blood_pressure,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"`
	OxygenSaturation *int     `json:"oxygen_saturation,omitempty"`
	RespiratoryRate  *int     `json:"respiratory_rate,omitempty"`
}

type Patient struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Age           int           `json:"age,omitempty"`
	Room          string        `json:"room"`
	Status        PatientStatus `json:"status"`
	Conditions    []string      `json:"conditions,omitempty"`
	Vitals        *VitalSigns   `json:"vitals,omitempty"`
	AISummary     string        `json:"ai_summary,omitempty"`
	AdmissionDate time.Time     `json:"admission_date"`
	LastUpdated   time.Time     `json:"last_updated"`
}

// PatientEvent is a structured care event handed to the summarizer.
type PatientEvent struct {
	ID          string         `json:"id"`
	PatientID   string         `json:"patient_id"`
	EventType   string         `json:"event_type"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

// StatusSnapshot is the heartbeat payload.
type StatusSnapshot struct {
	Timestamp      time.Time  `json:"timestamp"`
	IsRunning      bool       `json:"is_running"`
	DetectionCount int64      `json:"detection_count"`
	ActiveAlerts   int        `json:"active_alerts"`
	ActiveCameras  int        `json:"active_cameras"`
	Subscribers    int        `json:"subscribers"`
	LastAnalysis   *time.Time `json:"last_analysis,omitempty"`
}
