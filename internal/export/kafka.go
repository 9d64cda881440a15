// Package export publishes detections and alerts to Kafka for downstream
// consumers. Publishing never blocks the detection path: records are
// enqueued onto a buffered channel and written by a single goroutine.
package export

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/segmentio/kafka-go"

	"wardwatch/internal/config"
	"wardwatch/internal/model"
)

const queueSize = 256

type record struct {
	topic string
	key   string
	value []byte
}

// Publisher writes detection and alert records to Kafka. A nil *Publisher
// is valid and publishes nothing.
type Publisher struct {
	writer          *kafka.Writer
	detectionsTopic string
	alertsTopic     string
	queue           chan record
	done            chan struct{}
	closeOnce       sync.Once
	logger          *slog.Logger
}

// NewPublisher returns nil when export is disabled.
func NewPublisher(cfg config.KafkaConfig, logger *slog.Logger) *Publisher {
	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		if logger != nil {
			logger.Info("kafka export disabled")
		}
		return nil
	}
	if logger != nil {
		logger.Info("kafka export enabled", "brokers", cfg.Brokers,
			"detections_topic", cfg.DetectionsTopic, "alerts_topic", cfg.AlertsTopic)
	}
	p := &Publisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(cfg.Brokers...),
			Balancer: &kafka.Hash{},
		},
		detectionsTopic: cfg.DetectionsTopic,
		alertsTopic:     cfg.AlertsTopic,
		queue:           make(chan record, queueSize),
		done:            make(chan struct{}),
		logger:          logger,
	}
	go p.run()
	return p
}

func (p *Publisher) run() {
	defer close(p.done)
	for rec := range p.queue {
		err := p.writer.WriteMessages(context.Background(), kafka.Message{
			Topic: rec.topic,
			Key:   []byte(rec.key),
			Value: rec.value,
		})
		if err != nil && p.logger != nil {
			p.logger.Warn("kafka write error", "topic", rec.topic, "err", err)
		}
	}
}

func (p *Publisher) enqueue(topic, key string, value any) {
	if p == nil || topic == "" {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	select {
	case p.queue <- record{topic: topic, key: key, value: data}:
	default:
		if p.logger != nil {
			p.logger.Warn("export queue full, dropping record", "topic", topic, "key", key)
		}
	}
}

// PublishDetections exports one tick's detections, keyed by camera so a
// camera's records land in order on one partition.
func (p *Publisher) PublishDetections(cameraID string, detections []model.Detection) {
	if p == nil || len(detections) == 0 {
		return
	}
	p.enqueue(p.detectionsTopic, cameraID, map[string]any{
		"camera_id":  cameraID,
		"detections": detections,
	})
}

func (p *Publisher) PublishAlert(alert *model.Alert) {
	if p == nil || alert == nil {
		return
	}
	p.enqueue(p.alertsTopic, alert.Room, alert)
}

// Close drains the queue and shuts the writer down.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	p.closeOnce.Do(func() {
		close(p.queue)
	})
	<-p.done
	return p.writer.Close()
}
