package guard

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/chefenplace/internal/database/models"
	"gorm.io/gorm"
)

type EventType string

const (
	EventFailedLogin        EventType = "FAILED_LOGIN"
	EventSuccessfulLogin    EventType = "SUCCESSFUL_LOGIN"
	EventSuspiciousActivity EventType = "SUSPICIOUS_ACTIVITY"
	EventRateLimitExceeded  EventType = "RATE_LIMIT_EXCEEDED"
	EventIPBlocked          EventType = "IP_BLOCKED"
)

type Severity string

const (
	SeverityInfo  Severity = "INFO"
	SeverityWarn  Severity = "WARN"
	SeverityError Severity = "ERROR"
	SeverityAlert Severity = "ALERT"
)

// Event is one audit record.
type Event struct {
	Timestamp    time.Time         `json:"timestamp"`
	Type         EventType         `json:"type"`
	Severity     Severity          `json:"severity"`
	IP           string            `json:"ip"`
	Strategy     string            `json:"strategy,omitempty"`
	Organization string            `json:"organization,omitempty"`
	Target       string            `json:"target,omitempty"`
	UserID       *uuid.UUID        `json:"userId,omitempty"`
	Success      bool              `json:"success"`
	Reason       string            `json:"reason,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Sink receives audit events. Emit must not block the login path on
// failure; sinks log their own errors.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// LogSink writes events as structured log records.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger.With("component", "security")}
}

func (s *LogSink) Emit(ctx context.Context, e Event) {
	level := slog.LevelInfo
	switch e.Severity {
	case SeverityWarn:
		level = slog.LevelWarn
	case SeverityError, SeverityAlert:
		level = slog.LevelError
	}

	attrs := []any{
		"event", e.Type,
		"severity", e.Severity,
		"ip", e.IP,
		"success", e.Success,
	}
	if e.Strategy != "" {
		attrs = append(attrs, "strategy", e.Strategy)
	}
	if e.Organization != "" {
		attrs = append(attrs, "organization", e.Organization)
	}
	if e.Target != "" {
		attrs = append(attrs, "target", e.Target)
	}
	if e.UserID != nil {
		attrs = append(attrs, "user_id", e.UserID.String())
	}
	if e.Reason != "" {
		attrs = append(attrs, "reason", e.Reason)
	}
	for k, v := range e.Metadata {
		attrs = append(attrs, k, v)
	}

	s.logger.Log(ctx, level, "security event", attrs...)
}

// DBSink appends events to the security_events table.
type DBSink struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewDBSink(db *gorm.DB, logger *slog.Logger) *DBSink {
	return &DBSink{db: db, logger: logger}
}

func (s *DBSink) Emit(ctx context.Context, e Event) {
	row := models.SecurityEvent{
		Type:         string(e.Type),
		Severity:     string(e.Severity),
		IP:           e.IP,
		Strategy:     e.Strategy,
		Organization: e.Organization,
		Target:       e.Target,
		UserID:       e.UserID,
		Success:      e.Success,
		Reason:       e.Reason,
	}
	row.CreatedAt = e.Timestamp
	if len(e.Metadata) > 0 {
		if data, err := json.Marshal(e.Metadata); err == nil {
			row.Metadata = string(data)
		}
	}

	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil && s.logger != nil {
		s.logger.Error("failed to persist security event", "event", e.Type, "error", err)
	}
}

// MultiSink fans an event out to every sink in order.
type MultiSink []Sink

func (m MultiSink) Emit(ctx context.Context, e Event) {
	for _, s := range m {
		s.Emit(ctx, e)
	}
}
