package model

import "strings"

// DetectionKind is the closed set of detection categories the pipeline
// branches on. Classifier labels outside the set map to KindOther with the
// raw label preserved on the Detection.
type DetectionKind string

const (
	KindPerson      DetectionKind = "person"
	KindFall        DetectionKind = "fall"
	KindFurniture   DetectionKind = "furniture"
	KindMedicalItem DetectionKind = "medical_item"
	KindOther       DetectionKind = "other"
)

var furnitureLabels = map[string]bool{
	"chair": true,
	"bed":   true,
	"couch": true,
}

var medicalItemLabels = map[string]bool{
	"bottle": true,
	"cup":    true,
	"bowl":   true,
}

// KindForLabel maps a raw classifier label to its detection kind.
func KindForLabel(label string) DetectionKind {
	l := strings.ToLower(strings.TrimSpace(label))
	switch {
	case l == "person":
		return KindPerson
	case strings.Contains(l, "fall"):
		return KindFall
	case furnitureLabels[l]:
		return KindFurniture
	case medicalItemLabels[l]:
		return KindMedicalItem
	default:
		return KindOther
	}
}
