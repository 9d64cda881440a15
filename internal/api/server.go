package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"wardwatch/internal/camera"
	"wardwatch/internal/config"
	"wardwatch/internal/model"
	"wardwatch/internal/monitor"
	"wardwatch/internal/patients"
)

type Server struct {
	cfg     *config.Manager
	svc     *monitor.Service
	logger  *slog.Logger
	version string
}

func Start(ctx context.Context, cfg *config.Manager, svc *monitor.Service, logger *slog.Logger, version string) *http.Server {
	if cfg == nil {
		return nil
	}
	current := cfg.Get().API
	if !current.Enabled {
		if logger != nil {
			logger.Info("api disabled")
		}
		return nil
	}
	if logger != nil {
		logger.Info("api enabled", "addr", current.Addr)
	}
	server := &Server{
		cfg:     cfg,
		svc:     svc,
		logger:  logger,
		version: version,
	}
	httpServer := &http.Server{Addr: current.Addr, Handler: server.routes()}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(ctxShutdown)
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if logger != nil {
				logger.Error("api server error", "err", err)
			}
		}
	}()
	return httpServer
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/cameras", s.handleCameras)
	mux.HandleFunc("/cameras/", s.handleCamera)
	mux.HandleFunc("/alerts", s.handleAlerts)
	mux.HandleFunc("/alerts/", s.handleAlertAction)
	mux.HandleFunc("/patients", s.handlePatients)
	mux.HandleFunc("/patients/", s.handlePatient)
	mux.HandleFunc("/ws/", s.handleWS)
	return mux
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"system":  s.svc.Status(),
		"cameras": s.svc.Cameras.Snapshot(),
	})
}

func (s *Server) handleCameras(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		list := s.svc.Cameras.Snapshot()
		writeJSON(w, http.StatusOK, map[string]any{
			"cameras": list,
			"count":   len(list),
		})
	case http.MethodPost:
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var cam model.CameraResource
		if err := json.Unmarshal(body, &cam); err != nil {
			writeError(w, http.StatusBadRequest, "invalid camera payload")
			return
		}
		added, err := s.svc.AddCamera(r.Context(), cam)
		if err != nil {
			switch {
			case errors.Is(err, camera.ErrNoSource), errors.Is(err, camera.ErrAlreadyRegistered):
				writeError(w, http.StatusBadRequest, err.Error())
			default:
				writeError(w, http.StatusBadGateway, err.Error())
			}
			return
		}
		writeJSON(w, http.StatusCreated, added)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleCamera covers /cameras/{id} and its subresources.
func (s *Server) handleCamera(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/cameras/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	switch action {
	case "":
		switch r.Method {
		case http.MethodGet:
			cam, ok := s.svc.Cameras.Get(id)
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			writeJSON(w, http.StatusOK, cam)
		case http.MethodDelete:
			if err := s.svc.RemoveCamera(r.Context(), id); err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"status": "removed", "id": id})
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case "detection":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var req struct {
			Detections []model.Detection `json:"detections"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid detection payload")
			return
		}
		if err := s.svc.InjectDetections(r.Context(), id, req.Detections); err != nil {
			if errors.Is(err, camera.ErrUnknownCamera) {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "accepted", "count": len(req.Detections)})
	case "detection_enabled":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			Enabled bool `json:"enabled"`
		}
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid payload")
			return
		}
		if err := s.svc.Cameras.SetDetectionEnabled(id, req.Enabled); err != nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "enabled": req.Enabled})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	sinceStr := r.URL.Query().Get("since")
	var list []model.Alert
	if sinceStr != "" {
		ts, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid since timestamp")
			return
		}
		list = s.svc.Alerts.Since(ts)
	} else {
		list = s.svc.Alerts.List(limit)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"alerts": list,
		"count":  len(list),
	})
}

// handleAlertAction covers POST /alerts/{id}/acknowledge and /resolve.
func (s *Server) handleAlertAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/alerts/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	var req struct {
		Actor string `json:"actor"`
	}
	_ = json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req)
	if req.Actor == "" {
		req.Actor = "system"
	}
	var ok bool
	switch action {
	case "ack", "acknowledge":
		ok = s.svc.Alerts.Acknowledge(id, req.Actor)
	case "resolve":
		ok = s.svc.Alerts.Resolve(id, req.Actor)
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	alert, _ := s.svc.Alerts.Get(id)
	writeJSON(w, http.StatusOK, alert)
}

func (s *Server) handlePatients(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		list := s.svc.Patients.List()
		writeJSON(w, http.StatusOK, map[string]any{
			"patients": list,
			"count":    len(list),
		})
	case http.MethodPost:
		var p model.Patient
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&p); err != nil {
			writeError(w, http.StatusBadRequest, "invalid patient payload")
			return
		}
		writeJSON(w, http.StatusCreated, s.svc.Patients.Upsert(p))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handlePatient covers /patients/{id} and /patients/{id}/vitals.
func (s *Server) handlePatient(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/patients/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	switch action {
	case "":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		p, ok := s.svc.Patients.Get(id)
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, p)
	case "vitals":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var vitals model.VitalSigns
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&vitals); err != nil {
			writeError(w, http.StatusBadRequest, "invalid vitals payload")
			return
		}
		alert, err := s.svc.CheckVitals(r.Context(), id, vitals)
		if err != nil {
			if errors.Is(err, patients.ErrUnknownPatient) {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "recorded",
			"alert":  alert,
		})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}
