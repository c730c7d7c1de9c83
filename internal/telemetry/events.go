package telemetry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"commerce-api/pkg/config"
	"commerce-api/prometheus"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// accessKeyHeader carries the topic access key on publish requests.
const accessKeyHeader = "X-Event-Access-Key"

// ChangeEvent is the envelope posted to the event topic after a
// successful mutation.
type ChangeEvent struct {
	ID        string      `json:"id"`
	Subject   string      `json:"subject"`
	EventType string      `json:"eventType"`
	EventTime time.Time   `json:"eventTime"`
	Data      interface{} `json:"data"`
}

// Publisher posts change events to a configured HTTP topic endpoint.
// Publishing is fire-and-forget: a failed publish is logged and counted
// but never affects the request that triggered it.
type Publisher struct {
	endpoint  string
	accessKey string
	client    *http.Client
	logger    *zap.Logger
}

// NewPublisher creates a publisher from configuration. When no topic
// endpoint is configured the publisher is disabled and Publish is a
// no-op.
func NewPublisher(cfg *config.Config, logger *zap.Logger) *Publisher {
	return &Publisher{
		endpoint:  cfg.Event.Endpoint,
		accessKey: cfg.Event.AccessKey,
		client:    &http.Client{Timeout: cfg.Event.Timeout},
		logger:    logger,
	}
}

// Enabled reports whether a topic endpoint is configured.
func (p *Publisher) Enabled() bool {
	return p != nil && p.endpoint != ""
}

// Publish posts a change event for an entity mutation. The post runs on
// its own goroutine so callers never wait on the topic.
func (p *Publisher) Publish(entity, operation string, key uint, payload interface{}) {
	if !p.Enabled() {
		return
	}
	event := ChangeEvent{
		ID:        uuid.New().String(),
		Subject:   fmt.Sprintf("%s/%d", entity, key),
		EventType: fmt.Sprintf("commerce.%s.%s", entity, operation),
		EventTime: time.Now().UTC(),
		Data:      payload,
	}
	go p.post(event)
}

func (p *Publisher) post(event ChangeEvent) {
	body, err := json.Marshal([]ChangeEvent{event})
	if err != nil {
		p.fail(event, err)
		return
	}

	req, err := http.NewRequest(http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		p.fail(event, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if p.accessKey != "" {
		req.Header.Set(accessKeyHeader, p.accessKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.fail(event, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		p.fail(event, fmt.Errorf("topic responded with status %d", resp.StatusCode))
		return
	}

	prometheus.RecordEventPublished("success")
	if p.logger != nil {
		p.logger.Debug("Change event published",
			zap.String("event_id", event.ID),
			zap.String("event_type", event.EventType))
	}
}

func (p *Publisher) fail(event ChangeEvent, err error) {
	prometheus.RecordEventPublished("failure")
	if p.logger != nil {
		p.logger.Warn("Change event publish failed",
			zap.String("event_id", event.ID),
			zap.String("event_type", event.EventType),
			zap.Error(err))
	}
}
