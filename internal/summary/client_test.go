package summary

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"wardwatch/internal/config"
	"wardwatch/internal/model"
)

func chatServer(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("auth header = %q", r.Header.Get("Authorization"))
		}
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Messages) != 2 {
			t.Errorf("messages = %d", len(req.Messages))
		}
		w.Header().Set("Content-Type", "application/json")
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": reply}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testClient(t *testing.T, endpoint string) *Client {
	t.Helper()
	c := NewClient(config.SummarizerConfig{
		Enabled:  true,
		Endpoint: endpoint,
		APIKey:   "test-key",
		Model:    "gpt-4",
	}, nil)
	if c == nil {
		t.Fatal("client not constructed")
	}
	return c
}

func TestClientDisabled(t *testing.T) {
	c := NewClient(config.SummarizerConfig{Enabled: false}, nil)
	if c.Available() {
		t.Fatal("disabled client reports available")
	}
	if j := NewDetectionJudge(c); j != nil {
		t.Fatal("judge built from nil client")
	}
}

func TestSummarizePatient(t *testing.T) {
	srv := chatServer(t, "Patient is resting comfortably with stable vitals.")
	c := testClient(t, srv.URL)

	hr := 72
	patient := model.Patient{
		Name: "Ada", Age: 67, Room: "203", Status: model.PatientStable,
		Conditions: []string{"hypertension"},
		Vitals:     &model.VitalSigns{HeartRate: &hr},
	}
	got, err := c.SummarizePatient(context.Background(), patient, []model.PatientEvent{
		{EventType: "vitals_alert", Description: "Heart rate abnormal: 130 bpm"},
	})
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if got != "Patient is resting comfortably with stable vitals." {
		t.Fatalf("summary = %q", got)
	}
}

func TestDetectionJudgeParsesVerdict(t *testing.T) {
	srv := chatServer(t, "```json\n{\"alert_needed\": true, \"alert_type\": \"critical\", \"reason\": \"patient on floor\", \"recommendations\": [\"send staff\"]}\n```")
	j := NewDetectionJudge(testClient(t, srv.URL))

	verdict, err := j.Judge(context.Background(), []model.Detection{
		{Kind: model.KindFall, Label: "fall_detected", Confidence: 0.8},
	}, "203")
	if err != nil {
		t.Fatalf("judge: %v", err)
	}
	if !verdict.AlertNeeded || verdict.Kind != model.AlertCritical {
		t.Fatalf("verdict = %+v", verdict)
	}
	if verdict.Reason != "patient on floor" || len(verdict.Recommendations) != 1 {
		t.Fatalf("verdict = %+v", verdict)
	}
}

func TestDetectionJudgeUnparseableMeansNoAlert(t *testing.T) {
	srv := chatServer(t, "I cannot evaluate this scene.")
	j := NewDetectionJudge(testClient(t, srv.URL))

	verdict, err := j.Judge(context.Background(), []model.Detection{
		{Kind: model.KindPerson, Label: "person", Confidence: 0.9},
	}, "203")
	if err != nil {
		t.Fatalf("judge: %v", err)
	}
	if verdict.AlertNeeded {
		t.Fatalf("verdict = %+v", verdict)
	}
}

func TestCompleteErrorStatuses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()
	c := testClient(t, srv.URL)
	if _, err := c.SummarizePatient(context.Background(), model.Patient{}, nil); err == nil {
		t.Fatal("expected error on 429")
	}
}
