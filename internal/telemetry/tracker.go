package telemetry

import (
	"commerce-api/prometheus"

	"go.uber.org/zap"
)

// Tracker records unexpected failures so that operators can alert on
// them. Every tracked exception is logged and counted by operation.
type Tracker struct {
	logger *zap.Logger
}

// NewTracker creates a tracker backed by the given logger.
func NewTracker(logger *zap.Logger) *Tracker {
	return &Tracker{logger: logger}
}

// TrackException logs an exception and increments its counter.
func (t *Tracker) TrackException(operation string, err error) {
	if t == nil || err == nil {
		return
	}
	if t.logger != nil {
		t.logger.Error("Unhandled exception",
			zap.String("operation", operation),
			zap.Error(err))
	}
	prometheus.RecordException(operation)
}

// TrackTrace logs an informational trace message with fields.
func (t *Tracker) TrackTrace(message string, fields ...zap.Field) {
	if t == nil || t.logger == nil {
		return
	}
	t.logger.Info(message, fields...)
}
