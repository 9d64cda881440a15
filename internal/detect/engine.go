// Package detect provides the object-detection engine used by camera
// workers: an HTTP client for a YOLO-style inference sidecar plus the
// placeholder fall heuristic derived from person boxes.
package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"wardwatch/internal/camera"
	"wardwatch/internal/model"
)

// HTTPEngine posts JPEG frames to an inference endpoint and converts its
// response into detections. One instance is shared by all workers.
type HTTPEngine struct {
	endpoint    string
	client      *http.Client
	deriveFalls bool
}

type engineResponse struct {
	Detections []struct {
		Label      string  `json:"label"`
		Confidence float64 `json:"confidence"`
		Box        struct {
			X      float64 `json:"x"`
			Y      float64 `json:"y"`
			Width  float64 `json:"width"`
			Height float64 `json:"height"`
		} `json:"bounding_box"`
	} `json:"detections"`
}

func NewHTTPEngine(endpoint string, timeout time.Duration, deriveFalls bool) *HTTPEngine {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPEngine{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: timeout},
		deriveFalls: deriveFalls,
	}
}

func (e *HTTPEngine) Detect(ctx context.Context, frame camera.Frame) ([]model.Detection, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(frame.Data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "image/jpeg")
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("inference request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inference returned status %d", resp.StatusCode)
	}
	var parsed engineResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode inference response: %w", err)
	}

	now := time.Now().UTC()
	out := make([]model.Detection, 0, len(parsed.Detections))
	for _, d := range parsed.Detections {
		out = append(out, model.Detection{
			ID:         uuid.NewString(),
			Kind:       model.KindForLabel(d.Label),
			Label:      d.Label,
			Confidence: d.Confidence,
			Box: model.BoundingBox{
				X:      d.Box.X,
				Y:      d.Box.Y,
				Width:  d.Box.Width,
				Height: d.Box.Height,
			},
			Timestamp: now,
		})
	}
	if e.deriveFalls {
		out = append(out, DeriveFallEvents(out)...)
	}
	return out, nil
}

// fallAspectRatio is the width/height ratio above which a person box is
// treated as horizontal. Placeholder policy with no temporal confirmation.
const fallAspectRatio = 1.5

// DeriveFallEvents produces fall detections from person detections whose
// bounding box is wider than tall. Confidence is reduced because the event is
// derived, not observed.
func DeriveFallEvents(detections []model.Detection) []model.Detection {
	var out []model.Detection
	for _, d := range detections {
		if d.Kind != model.KindPerson || d.Box.Height <= 0 {
			continue
		}
		ratio := d.Box.Width / d.Box.Height
		if ratio <= fallAspectRatio {
			continue
		}
		out = append(out, model.Detection{
			ID:         uuid.NewString(),
			CameraID:   d.CameraID,
			Kind:       model.KindFall,
			Label:      "fall_detected",
			Confidence: d.Confidence * 0.8,
			Box:        d.Box,
			Metadata: map[string]any{
				"event_type":   "potential_fall",
				"aspect_ratio": ratio,
				"base_label":   d.Label,
			},
			Timestamp: d.Timestamp,
		})
	}
	return out
}
