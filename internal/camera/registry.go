package camera

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"wardwatch/internal/model"
)

var (
	ErrNoSource          = errors.New("camera: exactly one of device_index and stream_url must be set")
	ErrAlreadyRegistered = errors.New("camera: id already registered")
	ErrUnknownCamera     = errors.New("camera: unknown id")
)

// Registry owns the set of camera resources and their workers. The resource
// map and the worker map are guarded by one mutex so a resource is observed
// as active exactly when its worker entry exists.
type Registry struct {
	mu        sync.Mutex
	resources map[string]*model.CameraResource
	workers   map[string]*worker

	open     OpenFunc
	engine   Engine
	emit     EmitFunc
	settings Settings
	logger   *slog.Logger
}

func NewRegistry(open OpenFunc, engine Engine, emit EmitFunc, settings Settings, logger *slog.Logger) *Registry {
	if settings.FrameRate <= 0 {
		settings.FrameRate = 30
	}
	if settings.ReadBackoff <= 0 {
		settings.ReadBackoff = time.Second
	}
	if settings.RemoveTimeout <= 0 {
		settings.RemoveTimeout = 5 * time.Second
	}
	return &Registry{
		resources: make(map[string]*model.CameraResource),
		workers:   make(map[string]*worker),
		open:      open,
		engine:    engine,
		emit:      emit,
		settings:  settings,
		logger:    logger,
	}
}

// Add validates the resource, opens its frame source and starts its worker.
// On any failure no state is retained.
func (r *Registry) Add(ctx context.Context, cam model.CameraResource) error {
	if cam.ID == "" {
		return errors.New("camera: id required")
	}
	hasDevice := cam.DeviceIndex != nil
	hasStream := cam.StreamURL != ""
	if hasDevice == hasStream {
		return ErrNoSource
	}

	cam.Status = model.CameraRegistered
	cam.WorkerState = model.WorkerStarting
	if cam.CreatedAt.IsZero() {
		cam.CreatedAt = time.Now().UTC()
	}

	// Reserve the id before the (possibly slow) open so a second Add for the
	// same camera fails fast instead of racing the open.
	r.mu.Lock()
	if _, exists := r.resources[cam.ID]; exists {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, cam.ID)
	}
	reserved := cam
	r.resources[cam.ID] = &reserved
	r.mu.Unlock()

	src, err := r.open(ctx, cam, r.settings)
	if err != nil {
		r.mu.Lock()
		if res, ok := r.resources[cam.ID]; ok && res.Status == model.CameraRegistered {
			delete(r.resources, cam.ID)
		}
		r.mu.Unlock()
		return fmt.Errorf("open camera %s: %w", cam.ID, err)
	}

	w := newWorker(cam, src, r.engine, r.emit, r.settings, r.logger)

	r.mu.Lock()
	res, ok := r.resources[cam.ID]
	if !ok {
		// Removed while the open was in flight.
		r.mu.Unlock()
		w.closeSource()
		return fmt.Errorf("camera %s removed during add", cam.ID)
	}
	res.Status = model.CameraActive
	res.WorkerState = model.WorkerRunning
	r.workers[cam.ID] = w
	r.mu.Unlock()

	w.start(r.workerState, r.frameSeen)
	if r.logger != nil {
		r.logger.Info("camera added", "camera_id", cam.ID, "room", cam.Room)
	}
	return nil
}

// Remove cancels the camera's worker, waits (bounded) for its frame source to
// be released, then drops the resource. Removing an unknown id is a no-op.
func (r *Registry) Remove(ctx context.Context, id string) error {
	r.mu.Lock()
	w, running := r.workers[id]
	delete(r.workers, id)
	delete(r.resources, id)
	r.mu.Unlock()

	if !running {
		return nil
	}

	w.stop()
	timeout := time.NewTimer(r.settings.RemoveTimeout)
	defer timeout.Stop()
	select {
	case <-w.done:
	case <-ctx.Done():
		return ctx.Err()
	case <-timeout.C:
		if r.logger != nil {
			r.logger.Warn("worker did not stop in time", "camera_id", id)
		}
	}
	if r.logger != nil {
		r.logger.Info("camera removed", "camera_id", id)
	}
	return nil
}

// SetDetectionEnabled toggles the detect/alert stages without touching the
// capture loop.
func (r *Registry) SetDetectionEnabled(id string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.resources[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCamera, id)
	}
	res.DetectionEnabled = enabled
	if w, ok := r.workers[id]; ok {
		w.detectionEnabled.Store(enabled)
	}
	return nil
}

// Snapshot is a consistent point-in-time copy of all resources.
func (r *Registry) Snapshot() []model.CameraResource {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.CameraResource, 0, len(r.resources))
	for _, res := range r.resources {
		out = append(out, *res)
	}
	return out
}

func (r *Registry) Get(id string) (model.CameraResource, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.resources[id]
	if !ok {
		return model.CameraResource{}, false
	}
	return *res, true
}

func (r *Registry) ByRoom(room string) []model.CameraResource {
	var out []model.CameraResource
	for _, res := range r.Snapshot() {
		if res.Room == room {
			out = append(out, res)
		}
	}
	return out
}

func (r *Registry) ByStatus(status model.CameraStatus) []model.CameraResource {
	var out []model.CameraResource
	for _, res := range r.Snapshot() {
		if res.Status == status {
			out = append(out, res)
		}
	}
	return out
}

// ActiveCount reports how many cameras currently have a live worker.
func (r *Registry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.workers)
}

// Close stops every worker. Used on orchestrator shutdown.
func (r *Registry) Close(ctx context.Context) {
	r.mu.Lock()
	ids := make([]string, 0, len(r.resources))
	for id := range r.resources {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	for _, id := range ids {
		_ = r.Remove(ctx, id)
	}
}

func (r *Registry) workerState(id string, state model.WorkerState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.resources[id]
	if !ok {
		return
	}
	res.WorkerState = state
	if state == model.WorkerStopped {
		// A worker that stops on its own (not via Remove) leaves the camera
		// offline but registered.
		if _, live := r.workers[id]; live {
			delete(r.workers, id)
			res.Status = model.CameraOffline
		}
	}
}

func (r *Registry) frameSeen(id string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if res, ok := r.resources[id]; ok {
		res.LastFrameAt = at
	}
}
