// Package summary talks to an OpenAI-compatible chat completion endpoint to
// generate patient care summaries and to judge detection batches.
package summary

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"wardwatch/internal/alerts"
	"wardwatch/internal/config"
	"wardwatch/internal/model"
)

const defaultTimeout = 30 * time.Second

// Client is a thin chat-completions client. A nil *Client is valid and
// reports Available() == false.
type Client struct {
	endpoint string
	apiKey   string
	model    string
	http     *http.Client
	logger   *slog.Logger
}

func NewClient(cfg config.SummarizerConfig, logger *slog.Logger) *Client {
	if !cfg.Enabled || cfg.Endpoint == "" || cfg.APIKey == "" {
		if logger != nil {
			logger.Info("summarizer disabled")
		}
		return nil
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		http:     &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

func (c *Client) Available() bool {
	return c != nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *Client) complete(ctx context.Context, system, user string, maxTokens int) (string, error) {
	if c == nil {
		return "", errors.New("summarizer not configured")
	}
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens:   maxTokens,
		Temperature: 0.3,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.endpoint+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("completion endpoint returned %d", resp.StatusCode)
	}
	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", err
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("completion response has no choices")
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

// SummarizePatient produces a short care summary from the patient record and
// recent events.
func (c *Client) SummarizePatient(ctx context.Context, patient model.Patient, events []model.PatientEvent) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Patient: %s, age %d, room %s, status %s.\n",
		patient.Name, patient.Age, patient.Room, patient.Status)
	if len(patient.Conditions) > 0 {
		fmt.Fprintf(&b, "Conditions: %s.\n", strings.Join(patient.Conditions, ", "))
	}
	if v := patient.Vitals; v != nil {
		b.WriteString("Latest vitals:")
		if v.HeartRate != nil {
			fmt.Fprintf(&b, " HR %d bpm;", *v.HeartRate)
		}
		if v.Temperature != nil {
			fmt.Fprintf(&b, " temp %.1f F;", *v.Temperature)
		}
		if v.OxygenSaturation != nil {
			fmt.Fprintf(&b, " SpO2 %d%%;", *v.OxygenSaturation)
		}
		if v.BloodPressure != "" {
			fmt.Fprintf(&b, " BP %s;", v.BloodPressure)
		}
		b.WriteString("\n")
	}
	if len(events) > 0 {
		b.WriteString("Recent events:\n")
		for _, ev := range events {
			fmt.Fprintf(&b, "- [%s] %s: %s\n",
				ev.Timestamp.UTC().Format(time.RFC3339), ev.EventType, ev.Description)
		}
	}
	return c.complete(ctx,
		"You are a clinical assistant. Write a concise care summary (3-4 sentences) for the nursing staff based on the patient data provided. Be factual and do not invent findings.",
		b.String(), 300)
}

// DetectionJudge asks the model whether a detection batch warrants an alert.
// Responses that fail to parse count as no-alert; the rule-based fallback in
// the alerts package still covers falls.
type DetectionJudge struct {
	client *Client
}

func NewDetectionJudge(client *Client) *DetectionJudge {
	if client == nil {
		return nil
	}
	return &DetectionJudge{client: client}
}

func (j *DetectionJudge) Judge(ctx context.Context, detections []model.Detection, room string) (alerts.Verdict, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Room %s. Current detections:\n", room)
	for _, d := range detections {
		fmt.Fprintf(&b, "- %s (%s) confidence %.2f\n", d.Label, d.Kind, d.Confidence)
	}
	b.WriteString(`Respond with JSON only: {"alert_needed": bool, "alert_type": "critical"|"warning"|"info", "reason": string, "recommendations": [string]}`)

	raw, err := j.client.complete(ctx,
		"You monitor hospital room camera detections and decide whether staff should be alerted.",
		b.String(), 200)
	if err != nil {
		return alerts.Verdict{}, err
	}
	var verdict alerts.Verdict
	if err := json.Unmarshal([]byte(extractJSON(raw)), &verdict); err != nil {
		if j.client.logger != nil {
			j.client.logger.Warn("unparseable judge response", "response", raw)
		}
		return alerts.Verdict{}, nil
	}
	return verdict, nil
}

// extractJSON strips markdown fences and surrounding prose the model may
// wrap around the JSON object.
func extractJSON(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return raw
	}
	return raw[start : end+1]
}
