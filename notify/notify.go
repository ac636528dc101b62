// Package notify carries user-facing session notifications (login required, session expired)
// from the authorization layer to whatever surface shows them.
package notify

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Kind classifies a notification.
type Kind string

const (
	KindMustLogIn      Kind = "must_log_in"
	KindSessionExpired Kind = "session_expired"
	KindCallFailed     Kind = "call_failed"
	KindLoggedOut      Kind = "logged_out"
)

// Texts shown by the back-office UI.
const (
	MessageMustLogIn      = "You must be logged in to perform that action"
	MessageSessionExpired = "Session expired. Please login again."
	MessageCallFailed     = "Request failed. Please try again."
	MessageLoggedOut      = "You have been logged out"
)

type Notification struct {
	ID        uuid.UUID         `json:"id"`
	Kind      Kind              `json:"kind"`
	Message   string            `json:"message"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// New builds a notification with a fresh ID and the current time.
func New(kind Kind, message string) Notification {
	return Notification{
		ID:        uuid.New(),
		Kind:      kind,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}

// With returns a copy of n carrying key=value in its metadata.
func (n Notification) With(key, value string) Notification {
	md := make(map[string]string, len(n.Metadata)+1)
	for k, v := range n.Metadata {
		md[k] = v
	}
	md[key] = value
	n.Metadata = md
	return n
}

// Notifier receives notifications. Implementations must not block for long; callers sit on
// the request path.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// NotifierFunc adapts a function to [Notifier].
type NotifierFunc func(ctx context.Context, n Notification)

func (f NotifierFunc) Notify(ctx context.Context, n Notification) { f(ctx, n) }

type Discard struct{}

func (Discard) Notify(context.Context, Notification) {}

// ChannelSink delivers notifications on a buffered channel.
type ChannelSink struct {
	ch chan Notification
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{ch: make(chan Notification, buffer)}
}

func (s *ChannelSink) Notify(ctx context.Context, n Notification) {
	select {
	case s.ch <- n:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Notifications() <-chan Notification {
	return s.ch
}

// JSONWriterSink writes one JSON document per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{writer: w}
}

func (s *JSONWriterSink) Notify(_ context.Context, n Notification) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(n)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}

// LogSink writes notifications to a zap logger at info.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger.Named("notify")}
}

func (s *LogSink) Notify(_ context.Context, n Notification) {
	fields := []zap.Field{
		zap.String("id", n.ID.String()),
		zap.String("kind", string(n.Kind)),
	}
	for k, v := range n.Metadata {
		fields = append(fields, zap.String("md."+k, v))
	}
	s.logger.Info(n.Message, fields...)
}

// Fanout delivers to every notifier in order.
type Fanout []Notifier

func (f Fanout) Notify(ctx context.Context, n Notification) {
	for _, target := range f {
		if target != nil {
			target.Notify(ctx, n)
		}
	}
}
