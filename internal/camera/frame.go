package camera

import (
	"context"
	"time"

	"wardwatch/internal/model"
)

// Frame is one captured image, JPEG-encoded.
type Frame struct {
	Data      []byte
	Width     int
	Height    int
	Number    uint64
	Timestamp time.Time
}

// FrameSource yields successive frames from one camera. Implementations own
// the underlying capture handle; Close releases it and must be safe to call
// after a failed Read.
type FrameSource interface {
	Read(ctx context.Context) (Frame, error)
	Close() error
}

// Engine runs object detection on a single frame. Implementations are
// expected to be safe for concurrent use across workers.
type Engine interface {
	Detect(ctx context.Context, frame Frame) ([]model.Detection, error)
}

// EmitFunc receives the retained detections of one tick, in frame order.
// Implementations must not block on the capture cadence; slow side effects
// belong behind their own queues.
type EmitFunc func(camID, room string, frame Frame, detections []model.Detection)

// OpenFunc opens the FrameSource for a camera resource.
type OpenFunc func(ctx context.Context, cam model.CameraResource, cfg Settings) (FrameSource, error)

// Settings are the capture-side knobs shared by all workers.
type Settings struct {
	FrameWidth          int
	FrameHeight         int
	FrameRate           float64
	ConfidenceThreshold float64
	ReadBackoff         time.Duration
	RemoveTimeout       time.Duration
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
