package camera

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"wardwatch/internal/model"
)

// worker drives the capture/detect/emit loop for one camera. It is created by
// the registry and discarded on stop, never reused.
type worker struct {
	id   string
	room string

	src    FrameSource
	engine Engine
	emit   EmitFunc

	detectionEnabled atomic.Bool
	threshold        float64
	period           time.Duration
	backoff          time.Duration

	onState func(id string, state model.WorkerState)
	onFrame func(id string, at time.Time)

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
	logger    *slog.Logger
}

func newWorker(cam model.CameraResource, src FrameSource, engine Engine, emit EmitFunc, set Settings, logger *slog.Logger) *worker {
	w := &worker{
		id:        cam.ID,
		room:      cam.Room,
		src:       src,
		engine:    engine,
		emit:      emit,
		threshold: set.ConfidenceThreshold,
		period:    time.Duration(float64(time.Second) / set.FrameRate),
		backoff:   set.ReadBackoff,
		done:      make(chan struct{}),
		logger:    logger,
	}
	w.detectionEnabled.Store(cam.DetectionEnabled)
	return w
}

func (w *worker) start(state func(string, model.WorkerState), frame func(string, time.Time)) {
	w.onState = state
	w.onFrame = frame
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	go w.run(ctx)
}

// stop cancels the loop and closes the frame source. The close is what
// unblocks a read parked inside the source; cancellation alone cannot
// interrupt a stalled stream or device read.
func (w *worker) stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.closeSource()
}

// closeSource releases the capture handle exactly once, whichever exit path
// gets there first.
func (w *worker) closeSource() {
	w.closeOnce.Do(func() {
		if err := w.src.Close(); err != nil && w.logger != nil {
			w.logger.Warn("frame source close failed", "camera_id", w.id, "err", err)
		}
	})
}

func (w *worker) setState(state model.WorkerState) {
	if w.onState != nil {
		w.onState(w.id, state)
	}
}

func (w *worker) run(ctx context.Context) {
	defer close(w.done)
	defer w.setState(model.WorkerStopped)
	defer w.closeSource()

	if w.logger != nil {
		w.logger.Info("camera worker started", "camera_id", w.id, "room", w.room)
	}
	w.setState(model.WorkerRunning)

	degraded := false
	for {
		if ctx.Err() != nil {
			return
		}
		start := time.Now()

		frame, err := w.src.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if !degraded {
				degraded = true
				w.setState(model.WorkerDegraded)
				if w.logger != nil {
					w.logger.Warn("frame read failed, degraded", "camera_id", w.id, "err", err)
				}
			}
			if !sleep(ctx, w.backoff) {
				return
			}
			continue
		}
		if degraded {
			degraded = false
			w.setState(model.WorkerRunning)
			if w.logger != nil {
				w.logger.Info("frame read recovered", "camera_id", w.id)
			}
		}
		if w.onFrame != nil {
			w.onFrame(w.id, frame.Timestamp)
		}

		if w.detectionEnabled.Load() && w.engine != nil {
			w.detect(ctx, frame)
		}

		if d := w.period - time.Since(start); d > 0 {
			if !sleep(ctx, d) {
				return
			}
		}
	}
}

// detect runs one inference pass. Engine failures count as an empty result
// for this tick and never end the loop.
func (w *worker) detect(ctx context.Context, frame Frame) {
	detections, err := w.engine.Detect(ctx, frame)
	if err != nil {
		if ctx.Err() == nil && w.logger != nil {
			w.logger.Warn("detection failed", "camera_id", w.id, "err", err)
		}
		return
	}
	kept := make([]model.Detection, 0, len(detections))
	for _, d := range detections {
		if d.Confidence >= w.threshold {
			kept = append(kept, d)
		}
	}
	if len(kept) == 0 {
		return
	}
	if ctx.Err() != nil {
		return
	}
	if w.emit != nil {
		w.emit(w.id, w.room, frame, kept)
	}
}
