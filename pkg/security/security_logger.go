package security

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EventType represents the type of security event
type EventType string

const (
	EventRateLimitTriggered EventType = "rate_limit_triggered"
	EventValidationFailed   EventType = "validation_failed"
	EventBodyTooLarge       EventType = "body_too_large"
	EventOriginRejected     EventType = "origin_rejected"
)

// SecurityEvent represents an abuse-related event on the public endpoints
type SecurityEvent struct {
	Timestamp    time.Time
	Event        EventType
	SubjectType  string // "email", "ip", "origin"
	SubjectValue string // Masked or hashed for PII
	IP           string
	UserAgent    string
	RequestID    string
	Details      map[string]interface{}
}

// SecurityLogger writes security events as structured zap entries, separate
// from the application log so they can be shipped and retained on their own.
// A nil *SecurityLogger discards everything.
type SecurityLogger struct {
	zapLogger   *zap.Logger
	serviceName string
	environment string
}

// InitSecurityLogger builds a JSON logger on stdout
func InitSecurityLogger(serviceName, environment string) (*SecurityLogger, error) {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.MessageKey = "message"
	config.OutputPaths = []string{"stdout"}
	config.ErrorOutputPaths = []string{"stderr"}
	// Every rejected request is an event; sampling would hide bursts.
	config.Sampling = nil

	logger, err := config.Build()
	if err != nil {
		return nil, err
	}
	return NewSecurityLogger(logger, serviceName, environment), nil
}

// NewSecurityLogger wraps an existing zap logger
func NewSecurityLogger(logger *zap.Logger, serviceName, environment string) *SecurityLogger {
	return &SecurityLogger{
		zapLogger:   logger,
		serviceName: serviceName,
		environment: environment,
	}
}

func levelFor(event EventType) zapcore.Level {
	switch event {
	case EventValidationFailed:
		return zapcore.InfoLevel
	default:
		return zapcore.WarnLevel
	}
}

// Log logs a security event
func (sl *SecurityLogger) Log(_ context.Context, event SecurityEvent) {
	if sl == nil || sl.zapLogger == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	fields := []zap.Field{
		zap.String("service", sl.serviceName),
		zap.String("env", sl.environment),
		zap.String("event", string(event.Event)),
		zap.Time("occurred_at", event.Timestamp),
	}
	if event.SubjectType != "" {
		fields = append(fields, zap.String("subject_type", event.SubjectType))
	}
	if event.SubjectValue != "" {
		fields = append(fields, zap.String("subject_value", event.SubjectValue))
	}
	if event.IP != "" {
		fields = append(fields, zap.String("ip", event.IP))
	}
	if event.UserAgent != "" {
		fields = append(fields, zap.String("user_agent", truncate(event.UserAgent, 256)))
	}
	if event.RequestID != "" {
		fields = append(fields, zap.String("request_id", event.RequestID))
	}
	if len(event.Details) > 0 {
		fields = append(fields, zap.Any("details", event.Details))
	}

	sl.zapLogger.Log(levelFor(event.Event), string(event.Event), fields...)
}

// LogRateLimitTriggered logs a request rejected by the rate limiter
func (sl *SecurityLogger) LogRateLimitTriggered(ctx context.Context, ip, userAgent, requestID, endpoint, store string) {
	sl.Log(ctx, SecurityEvent{
		Event:        EventRateLimitTriggered,
		SubjectType:  "ip",
		SubjectValue: ip,
		IP:           ip,
		UserAgent:    userAgent,
		RequestID:    requestID,
		Details:      map[string]interface{}{"endpoint": endpoint, "store": store},
	})
}

// LogValidationFailed logs a rejected submission by field name only; values never leave the request.
func (sl *SecurityLogger) LogValidationFailed(ctx context.Context, email, ip, requestID string, fields []string) {
	event := SecurityEvent{
		Event:     EventValidationFailed,
		IP:        ip,
		RequestID: requestID,
		Details:   map[string]interface{}{"fields": fields},
	}
	if email != "" {
		event.SubjectType = "email"
		event.SubjectValue = MaskEmail(email)
	}
	sl.Log(ctx, event)
}

// LogBodyTooLarge logs a request body over the limit. declared is -1 when unknown.
func (sl *SecurityLogger) LogBodyTooLarge(ctx context.Context, ip, userAgent, requestID string, declared, limit int64) {
	sl.Log(ctx, SecurityEvent{
		Event:        EventBodyTooLarge,
		SubjectType:  "ip",
		SubjectValue: ip,
		IP:           ip,
		UserAgent:    userAgent,
		RequestID:    requestID,
		Details:      map[string]interface{}{"declared_bytes": declared, "limit_bytes": limit},
	})
}

// LogOriginRejected logs a browser request from an origin outside the allow list
func (sl *SecurityLogger) LogOriginRejected(ctx context.Context, origin, method, ip, requestID string) {
	sl.Log(ctx, SecurityEvent{
		Event:        EventOriginRejected,
		SubjectType:  "origin",
		SubjectValue: truncate(origin, 256),
		IP:           ip,
		RequestID:    requestID,
		Details:      map[string]interface{}{"method": method},
	})
}

// Sync flushes any buffered log entries
func (sl *SecurityLogger) Sync() error {
	if sl == nil || sl.zapLogger == nil {
		return nil
	}
	return sl.zapLogger.Sync()
}

// --- Helper Functions ---

// MaskEmail masks an email for logging (e.g., "j***@example.com")
func MaskEmail(email string) string {
	if len(email) < 3 {
		return "***"
	}
	atIndex := strings.IndexByte(email, '@')
	if atIndex < 0 {
		return HashValue(email)
	}
	if atIndex <= 1 {
		return "***" + email[atIndex:]
	}
	return email[:1] + "***" + email[atIndex:]
}

// HashValue creates a SHA256 hash of a value (for logging without PII)
func HashValue(value string) string {
	hash := sha256.Sum256([]byte(value))
	return hex.EncodeToString(hash[:8])
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
