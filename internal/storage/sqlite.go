package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"wardwatch/internal/model"
)

type sqliteStore struct {
	baseStore
}

func NewSQLite(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "file:wardwatch.db?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return &sqliteStore{baseStore{db: db}}, nil
}

func (s *sqliteStore) Init(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS cameras (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			room TEXT NOT NULL,
			device_index INTEGER,
			stream_url TEXT,
			status TEXT NOT NULL,
			detection_enabled INTEGER NOT NULL,
			recording_enabled INTEGER NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS detections (
			id TEXT PRIMARY KEY,
			ts TEXT NOT NULL,
			camera_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			label TEXT NOT NULL,
			confidence REAL NOT NULL,
			box_json TEXT NOT NULL,
			metadata_json TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_detections_camera_ts ON detections(camera_id, ts)`,
		`CREATE TABLE IF NOT EXISTS alerts (
			id TEXT PRIMARY KEY,
			ts TEXT NOT NULL,
			alert_type TEXT NOT NULL,
			priority INTEGER NOT NULL,
			title TEXT NOT NULL,
			message TEXT NOT NULL,
			room TEXT NOT NULL,
			patient_id TEXT,
			metadata_json TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_ts ON alerts(ts)`,
		`CREATE TABLE IF NOT EXISTS vitals (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts TEXT NOT NULL,
			patient_id TEXT NOT NULL,
			vitals_json TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_vitals_patient_ts ON vitals(patient_id, ts)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *sqliteStore) SaveCamera(ctx context.Context, cam model.CameraResource) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cameras (id, name, room, device_index, stream_url, status, detection_enabled, recording_enabled, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			room = excluded.room,
			device_index = excluded.device_index,
			stream_url = excluded.stream_url,
			status = excluded.status,
			detection_enabled = excluded.detection_enabled,
			recording_enabled = excluded.recording_enabled`,
		cam.ID,
		cam.Name,
		cam.Room,
		cam.DeviceIndex,
		cam.StreamURL,
		cam.Status,
		cam.DetectionEnabled,
		cam.RecordingEnabled,
		cam.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

func (s *sqliteStore) UpdateCameraStatus(ctx context.Context, cameraID string, status model.CameraStatus) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE cameras SET status = ? WHERE id = ?`, status, cameraID)
	return err
}

func (s *sqliteStore) ListActiveCameras(ctx context.Context) ([]model.CameraResource, error) {
	if s.db == nil {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, room, device_index, stream_url, status, detection_enabled, recording_enabled, created_at
		FROM cameras WHERE status IN (?, ?) ORDER BY created_at`,
		model.CameraActive, model.CameraRegistered)
	if err != nil {
		return nil, err
	}
	return scanCameras(rows)
}

func (s *sqliteStore) SaveDetections(ctx context.Context, detections []model.Detection) error {
	if s.db == nil || len(detections) == 0 {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO detections (id, ts, camera_id, kind, label, confidence, box_json, metadata_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, d := range detections {
		if _, err := stmt.ExecContext(ctx,
			d.ID,
			d.Timestamp.UTC(),
			d.CameraID,
			d.Kind,
			d.Label,
			d.Confidence,
			encodeJSON(d.Box),
			encodeJSON(d.Metadata),
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) SaveAlert(ctx context.Context, alert model.Alert) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO alerts (id, ts, alert_type, priority, title, message, room, patient_id, metadata_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		alert.ID,
		alert.CreatedAt.UTC(),
		alert.Kind,
		alert.Priority,
		alert.Title,
		alert.Message,
		alert.Room,
		alert.PatientID,
		encodeJSON(alert.Metadata),
	)
	return err
}

func (s *sqliteStore) SaveVitals(ctx context.Context, patientID string, vitals model.VitalSigns) error {
	if s.db == nil || patientID == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO vitals (ts, patient_id, vitals_json) VALUES (?, ?, ?)`,
		nowUTC(),
		patientID,
		encodeJSON(vitals),
	)
	return err
}
