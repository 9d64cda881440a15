// Package monitor composes the camera registry, alert evaluation, live hub
// and downstream sinks into one running service.
package monitor

import (
	"context"
	"encoding/base64"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"wardwatch/internal/alerts"
	"wardwatch/internal/camera"
	"wardwatch/internal/config"
	"wardwatch/internal/detect"
	"wardwatch/internal/export"
	"wardwatch/internal/hub"
	"wardwatch/internal/model"
	"wardwatch/internal/patients"
	"wardwatch/internal/storage"
	"wardwatch/internal/summary"
)

// persistTimeout bounds fire-and-forget database writes so a slow store
// never wedges the shutdown path.
const persistTimeout = 5 * time.Second

// judgeTimeout bounds the per-batch detection judgement. Evaluation runs on
// the worker's emit path, so a wedged model call must not stall that
// camera's capture loop.
const judgeTimeout = 5 * time.Second

// Options carries the service dependencies. Zero-value fields get sensible
// defaults; Store, Exporter and Summarizer may stay nil.
type Options struct {
	Config     *config.Manager
	Logger     *slog.Logger
	Engine     camera.Engine
	Open       camera.OpenFunc
	Judge      alerts.Judge
	Store      storage.Store
	Exporter   *export.Publisher
	Summarizer *summary.Client
}

// Service is the orchestrator. All cross-component flow runs through it:
// camera workers emit into HandleDetections, vitals arrive via CheckVitals,
// and everything fans out to the hub, the store and the exporter.
type Service struct {
	cfg    *config.Manager
	logger *slog.Logger

	Cameras  *camera.Registry
	Alerts   *alerts.Store
	Patients *patients.Store
	Hub      *hub.Hub

	evaluator  *alerts.Evaluator
	cooldown   *alerts.Cooldown
	store      storage.Store
	exporter   *export.Publisher
	summarizer *summary.Client

	running        atomic.Bool
	detectionCount atomic.Int64
	lastAnalysis   atomic.Value // time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(opts Options) *Service {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.NewStaticManager(config.DefaultConfig())
	}
	current := cfg.Get()

	s := &Service{
		cfg:        cfg,
		logger:     opts.Logger,
		Alerts:     alerts.NewStore(current.Alerts.StoreLimit),
		Patients:   patients.NewStore(),
		Hub:        hub.New(opts.Logger),
		evaluator:  alerts.NewEvaluator(opts.Judge),
		cooldown:   alerts.NewCooldown(),
		store:      opts.Store,
		exporter:   opts.Exporter,
		summarizer: opts.Summarizer,
	}

	engine := opts.Engine
	if engine == nil {
		engine = detect.NewHTTPEngine(current.Detect.Endpoint, current.Detect.Timeout, true)
	}
	open := opts.Open
	if open == nil {
		open = camera.OpenSource
	}
	settings := camera.Settings{
		FrameWidth:          current.Camera.FrameWidth,
		FrameHeight:         current.Camera.FrameHeight,
		FrameRate:           current.Camera.FrameRate,
		ConfidenceThreshold: current.Detect.ConfidenceThreshold,
		ReadBackoff:         current.Camera.ReadBackoff,
		RemoveTimeout:       current.Camera.RemoveTimeout,
	}
	s.Cameras = camera.NewRegistry(open, engine, s.handleFrame, settings, opts.Logger)
	return s
}

// Start launches the heartbeat and summary loops. Idempotent.
func (s *Service) Start(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(2)
	go s.heartbeatLoop(ctx)
	go s.summaryLoop(ctx)
	if s.logger != nil {
		s.logger.Info("monitor started")
	}
}

// Stop cancels the loops, shuts down all camera workers and disconnects the
// hub subscribers. Safe to call more than once.
func (s *Service) Stop(ctx context.Context) {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.Cameras.Close(ctx)
	s.wg.Wait()
	s.Hub.CloseAll()
	if s.logger != nil {
		s.logger.Info("monitor stopped")
	}
}

// AddCamera registers a camera, starts its worker and records it downstream.
func (s *Service) AddCamera(ctx context.Context, cam model.CameraResource) (model.CameraResource, error) {
	if err := s.Cameras.Add(ctx, cam); err != nil {
		return model.CameraResource{}, err
	}
	added, _ := s.Cameras.Get(cam.ID)
	if s.store != nil {
		s.persist(func(ctx context.Context) error {
			return s.store.SaveCamera(ctx, added)
		})
	}
	return added, nil
}

// RemoveCamera stops the worker and marks the camera offline downstream.
func (s *Service) RemoveCamera(ctx context.Context, id string) error {
	if err := s.Cameras.Remove(ctx, id); err != nil {
		return err
	}
	if s.store != nil {
		s.persist(func(ctx context.Context) error {
			return s.store.UpdateCameraStatus(ctx, id, model.CameraOffline)
		})
	}
	return nil
}

// handleFrame is the registry emit callback, invoked on each worker tick
// that produced detections.
func (s *Service) handleFrame(camID, room string, frame camera.Frame, detections []model.Detection) {
	s.lastAnalysis.Store(time.Now().UTC())
	if len(detections) == 0 {
		return
	}
	frameB64 := ""
	if cam, ok := s.Cameras.Get(camID); ok && cam.RecordingEnabled {
		frameB64 = base64.StdEncoding.EncodeToString(frame.Data)
	}
	s.processDetections(context.Background(), camID, room, frameB64, detections)
}

// InjectDetections feeds externally produced detections for a registered
// camera through the same pipeline as live frames. Fall events are derived
// here because no engine saw these records.
func (s *Service) InjectDetections(ctx context.Context, cameraID string, detections []model.Detection) error {
	cam, ok := s.Cameras.Get(cameraID)
	if !ok {
		return camera.ErrUnknownCamera
	}
	now := time.Now().UTC()
	for i := range detections {
		detections[i].CameraID = cameraID
		if detections[i].Timestamp.IsZero() {
			detections[i].Timestamp = now
		}
		if detections[i].Kind == "" {
			detections[i].Kind = model.KindForLabel(detections[i].Label)
		}
	}
	detections = append(detections, detect.DeriveFallEvents(detections)...)
	s.lastAnalysis.Store(now)
	s.processDetections(ctx, cameraID, cam.Room, "", detections)
	return nil
}

func (s *Service) processDetections(ctx context.Context, camID, room, frameB64 string, detections []model.Detection) {
	s.detectionCount.Add(int64(len(detections)))

	if s.store != nil {
		s.persist(func(ctx context.Context) error {
			return s.store.SaveDetections(ctx, detections)
		})
	}
	s.exporter.PublishDetections(camID, detections)
	s.Hub.Broadcast(hub.LiveFeed(camID, room, frameB64, detections))

	judgeCtx, cancel := context.WithTimeout(ctx, judgeTimeout)
	alert, err := s.evaluator.FromDetections(judgeCtx, detections, room)
	cancel()
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("detection evaluation failed", "camera_id", camID, "err", err)
		}
		return
	}
	if alert == nil {
		return
	}
	if !s.cooldown.Allow(room+"|"+string(alert.Kind), s.cfg.Get().Alerts.Cooldown) {
		return
	}
	if p, ok := s.Patients.ByRoom(room); ok {
		alert.PatientID = p.ID
	}
	s.raise(alert)
	s.Hub.Broadcast(hub.NewAlert(alert))
}

// CheckVitals records a vitals snapshot for a patient and raises an alert if
// any thresholds are breached. Returns the alert, or nil when vitals are
// within range.
func (s *Service) CheckVitals(ctx context.Context, patientID string, vitals model.VitalSigns) (*model.Alert, error) {
	p, ok := s.Patients.Get(patientID)
	if !ok {
		return nil, patients.ErrUnknownPatient
	}
	s.Patients.SetVitals(patientID, vitals)
	if s.store != nil {
		s.persist(func(ctx context.Context) error {
			return s.store.SaveVitals(ctx, patientID, vitals)
		})
	}

	alert := s.evaluator.FromVitals(vitals, patientID, p.Room)
	if alert == nil {
		return nil, nil
	}
	if alert.Kind == model.AlertCritical {
		s.Patients.SetStatus(patientID, model.PatientCritical)
	}
	s.Patients.AddEvent(model.PatientEvent{
		PatientID:   patientID,
		EventType:   "vitals_alert",
		Description: alert.Message,
	})
	s.raise(alert)
	s.Hub.Broadcast(hub.VitalsAlert(alert, patientID, vitals))
	return alert, nil
}

// raise records an alert in the ring store and pushes it downstream.
func (s *Service) raise(alert *model.Alert) {
	s.Alerts.Add(*alert)
	if s.store != nil {
		a := *alert
		s.persist(func(ctx context.Context) error {
			return s.store.SaveAlert(ctx, a)
		})
	}
	s.exporter.PublishAlert(alert)
	if s.logger != nil {
		s.logger.Info("alert raised", "alert_id", alert.ID, "alert_type", alert.Kind,
			"priority", alert.Priority, "room", alert.Room)
	}
}

// Status reports a point-in-time snapshot of the pipeline.
func (s *Service) Status() model.StatusSnapshot {
	snap := model.StatusSnapshot{
		Timestamp:      time.Now().UTC(),
		IsRunning:      s.running.Load(),
		DetectionCount: s.detectionCount.Load(),
		ActiveAlerts:   s.Alerts.ActiveCount(),
		ActiveCameras:  s.Cameras.ActiveCount(),
		Subscribers:    s.Hub.Count(),
	}
	if v, ok := s.lastAnalysis.Load().(time.Time); ok && !v.IsZero() {
		snap.LastAnalysis = &v
	}
	return snap
}

func (s *Service) heartbeatLoop(ctx context.Context) {
	defer s.wg.Done()
	interval := s.cfg.Get().Monitor.HeartbeatInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Hub.Broadcast(hub.SystemHeartbeat(s.Status()))
		}
	}
}

func (s *Service) summaryLoop(ctx context.Context) {
	defer s.wg.Done()
	if !s.summarizer.Available() {
		return
	}
	interval := s.cfg.Get().Monitor.SummaryInterval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refreshSummaries(ctx)
		}
	}
}

func (s *Service) refreshSummaries(ctx context.Context) {
	for _, p := range s.Patients.List() {
		events := s.Patients.Events(p.ID, 20)
		text, err := s.summarizer.SummarizePatient(ctx, p, events)
		if err != nil {
			if s.logger != nil {
				s.logger.Warn("summary generation failed", "patient_id", p.ID, "err", err)
			}
			continue
		}
		s.Patients.SetSummary(p.ID, text)
		s.Hub.Broadcast(hub.PatientSummaryUpdated(p.ID, text))
	}
}

// persist runs a store write off the hot path with its own deadline.
func (s *Service) persist(fn func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := fn(ctx); err != nil && s.logger != nil {
			s.logger.Warn("storage write failed", "err", err)
		}
	}()
}
