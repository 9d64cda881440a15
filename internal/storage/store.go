package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"wardwatch/internal/config"
	"wardwatch/internal/model"
)

type Store interface {
	Init(ctx context.Context) error
	Close() error
	SaveCamera(ctx context.Context, cam model.CameraResource) error
	UpdateCameraStatus(ctx context.Context, cameraID string, status model.CameraStatus) error
	ListActiveCameras(ctx context.Context) ([]model.CameraResource, error)
	SaveDetections(ctx context.Context, detections []model.Detection) error
	SaveAlert(ctx context.Context, alert model.Alert) error
	SaveVitals(ctx context.Context, patientID string, vitals model.VitalSigns) error
}

func NewStore(cfg config.StorageConfig) (Store, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch strings.ToLower(cfg.Driver) {
	case "sqlite":
		return NewSQLite(cfg.DSN)
	case "postgres", "postgresql":
		return NewPostgres(cfg.DSN)
	default:
		return nil, errors.New("unsupported storage driver")
	}
}

type baseStore struct {
	db *sql.DB
}

func (b *baseStore) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

func scanCameras(rows *sql.Rows) ([]model.CameraResource, error) {
	defer rows.Close()
	var cams []model.CameraResource
	for rows.Next() {
		var cam model.CameraResource
		var deviceIndex sql.NullInt64
		var created any
		if err := rows.Scan(
			&cam.ID,
			&cam.Name,
			&cam.Room,
			&deviceIndex,
			&cam.StreamURL,
			&cam.Status,
			&cam.DetectionEnabled,
			&cam.RecordingEnabled,
			&created,
		); err != nil {
			return nil, err
		}
		if deviceIndex.Valid {
			idx := int(deviceIndex.Int64)
			cam.DeviceIndex = &idx
		}
		cam.CreatedAt = decodeTime(created)
		cams = append(cams, cam)
	}
	return cams, rows.Err()
}

// decodeTime accepts the timestamp representations the two drivers
// produce: native time.Time from pgx, RFC 3339 text from sqlite.
func decodeTime(value any) time.Time {
	switch v := value.(type) {
	case time.Time:
		return v
	case string:
		t, _ := time.Parse(time.RFC3339Nano, v)
		return t
	case []byte:
		t, _ := time.Parse(time.RFC3339Nano, string(v))
		return t
	}
	return time.Time{}
}

func encodeJSON(value any) string {
	data, _ := json.Marshal(value)
	return string(data)
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
