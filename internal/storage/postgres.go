package storage

import (
	"context"
	"database/sql"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	"wardwatch/internal/model"
)

type postgresStore struct {
	baseStore
}

func NewPostgres(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "postgres://localhost:5432/wardwatch?sslmode=disable"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &postgresStore{baseStore{db: db}}, nil
}

func (s *postgresStore) Init(ctx context.Context) error {
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
			detection_enabled BOOLEAN NOT NULL,
			recording_enabled BOOLEAN NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS detections (
			id TEXT PRIMARY KEY,
			ts TIMESTAMPTZ NOT NULL,
			camera_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			label TEXT NOT NULL,
			confidence DOUBLE PRECISION NOT NULL,
			box_json JSONB NOT NULL,
			metadata_json JSONB
		)`,
		`CREATE INDEX IF NOT EXISTS idx_detections_camera_ts ON detections(camera_id, ts)`,
		`CREATE TABLE IF NOT EXISTS alerts (
			id TEXT PRIMARY KEY,
			ts TIMESTAMPTZ NOT NULL,
			alert_type TEXT NOT NULL,
			priority INTEGER NOT NULL,
			title TEXT NOT NULL,
			message TEXT NOT NULL,
			room TEXT NOT NULL,
			patient_id TEXT,
			metadata_json JSONB
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_ts ON alerts(ts)`,
		`CREATE TABLE IF NOT EXISTS vitals (
			id BIGSERIAL PRIMARY KEY,
			ts TIMESTAMPTZ NOT NULL,
			patient_id TEXT NOT NULL,
			vitals_json JSONB NOT NULL
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

func (s *postgresStore) SaveCamera(ctx context.Context, cam model.CameraResource) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cameras (id, name, room, device_index, stream_url, status, detection_enabled, recording_enabled, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			room = EXCLUDED.room,
			device_index = EXCLUDED.device_index,
			stream_url = EXCLUDED.stream_url,
			status = EXCLUDED.status,
			detection_enabled = EXCLUDED.detection_enabled,
			recording_enabled = EXCLUDED.recording_enabled`,
		cam.ID,
		cam.Name,
		cam.Room,
		cam.DeviceIndex,
		cam.StreamURL,
		cam.Status,
		cam.DetectionEnabled,
		cam.RecordingEnabled,
		cam.CreatedAt.UTC(),
	)
	return err
}

func (s *postgresStore) UpdateCameraStatus(ctx context.Context, cameraID string, status model.CameraStatus) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE cameras SET status = $1 WHERE id = $2`, status, cameraID)
	return err
}

func (s *postgresStore) ListActiveCameras(ctx context.Context) ([]model.CameraResource, error) {
	if s.db == nil {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, room, device_index, stream_url, status, detection_enabled, recording_enabled, created_at
		FROM cameras WHERE status IN ($1, $2) ORDER BY created_at`,
		model.CameraActive, model.CameraRegistered)
	if err != nil {
		return nil, err
	}
	return scanCameras(rows)
}

func (s *postgresStore) SaveDetections(ctx context.Context, detections []model.Detection) error {
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
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`)
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

func (s *postgresStore) SaveAlert(ctx context.Context, alert model.Alert) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO alerts (id, ts, alert_type, priority, title, message, room, patient_id, metadata_json)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
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

func (s *postgresStore) SaveVitals(ctx context.Context, patientID string, vitals model.VitalSigns) error {
	if s.db == nil || patientID == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO vitals (ts, patient_id, vitals_json) VALUES ($1, $2, $3)`,
		nowUTC(),
		patientID,
		encodeJSON(vitals),
	)
	return err
}
