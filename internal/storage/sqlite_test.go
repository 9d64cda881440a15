package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"wardwatch/internal/config"
	"wardwatch/internal/model"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLite(dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	return s
}

func TestSQLiteRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	cam := model.CameraResource{
		ID: "cam1", Name: "bed cam", Room: "101",
		StreamURL: "http://example.invalid/s",
		Status:    model.CameraActive, CreatedAt: time.Now().UTC(),
	}
	if err := s.SaveCamera(ctx, cam); err != nil {
		t.Fatalf("save camera: %v", err)
	}
	// Upsert with the same id must not error.
	cam.Name = "renamed"
	if err := s.SaveCamera(ctx, cam); err != nil {
		t.Fatalf("upsert camera: %v", err)
	}
	if err := s.UpdateCameraStatus(ctx, "cam1", model.CameraOffline); err != nil {
		t.Fatalf("update status: %v", err)
	}

	detections := []model.Detection{
		{ID: "d1", CameraID: "cam1", Kind: model.KindPerson, Label: "person",
			Confidence: 0.9, Box: model.BoundingBox{Width: 100, Height: 200},
			Timestamp: time.Now().UTC()},
		{ID: "d2", CameraID: "cam1", Kind: model.KindFall, Label: "fall_detected",
			Confidence: 0.72, Timestamp: time.Now().UTC()},
	}
	if err := s.SaveDetections(ctx, detections); err != nil {
		t.Fatalf("save detections: %v", err)
	}
	if err := s.SaveDetections(ctx, nil); err != nil {
		t.Fatalf("empty batch: %v", err)
	}

	alert := model.Alert{
		ID: "a1", Kind: model.AlertCritical, Priority: 1,
		Title: "Detection Alert", Message: "possible fall", Room: "101",
		CreatedAt: time.Now().UTC(),
	}
	if err := s.SaveAlert(ctx, alert); err != nil {
		t.Fatalf("save alert: %v", err)
	}

	hr := 140
	if err := s.SaveVitals(ctx, "p1", model.VitalSigns{HeartRate: &hr}); err != nil {
		t.Fatalf("save vitals: %v", err)
	}
}

func TestSQLiteListActiveCameras(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	idx := 0
	base := time.Now().UTC()
	cams := []model.CameraResource{
		{ID: "cam1", Name: "bed cam", Room: "101", DeviceIndex: &idx,
			Status: model.CameraActive, DetectionEnabled: true, CreatedAt: base},
		{ID: "cam2", Name: "hall cam", Room: "102",
			StreamURL: "http://example.invalid/s",
			Status:    model.CameraRegistered, CreatedAt: base.Add(time.Second)},
		{ID: "cam3", Name: "dead cam", Room: "103",
			StreamURL: "http://example.invalid/d",
			Status:    model.CameraOffline, CreatedAt: base.Add(2 * time.Second)},
	}
	for _, cam := range cams {
		if err := s.SaveCamera(ctx, cam); err != nil {
			t.Fatalf("save %s: %v", cam.ID, err)
		}
	}

	active, err := s.ListActiveCameras(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("got %d cameras, want 2", len(active))
	}
	if active[0].ID != "cam1" || active[1].ID != "cam2" {
		t.Fatalf("wrong order: %s, %s", active[0].ID, active[1].ID)
	}
	if active[0].DeviceIndex == nil || *active[0].DeviceIndex != 0 {
		t.Fatalf("device index not restored: %v", active[0].DeviceIndex)
	}
	if active[1].DeviceIndex != nil {
		t.Fatal("stream camera has device index")
	}
	if active[1].StreamURL != "http://example.invalid/s" {
		t.Fatalf("stream url: %q", active[1].StreamURL)
	}
}

func TestNewStoreDriverSelection(t *testing.T) {
	s, err := NewStore(config.StorageConfig{Enabled: false})
	if err != nil || s != nil {
		t.Fatalf("disabled storage: (%v, %v)", s, err)
	}
	if _, err := NewStore(config.StorageConfig{Enabled: true, Driver: "oracle"}); err == nil {
		t.Fatal("unsupported driver accepted")
	}
}
