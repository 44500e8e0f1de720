package chatlog

import (
	"context"
	"sync"
	"time"

	"github.com/Machforo/illora-ai-chieftain/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Entry is one logged conversational turn
type Entry struct {
	ID        string    `json:"id"`
	Time      time.Time `json:"time"`
	Source    string    `json:"source"`
	SessionID string    `json:"session_id"`
	Input     string    `json:"input"`
	Response  string    `json:"response"`
	Intent    string    `json:"intent,omitempty"`
	UserType  string    `json:"user_type,omitempty"`
}

// Source names a channel the way the chat log dashboard expects
func Source(channel models.Channel) string {
	switch channel {
	case models.ChannelWeb:
		return "Web"
	case models.ChannelWhatsApp:
		return "WhatsApp"
	case models.ChannelNATS:
		return "NATS"
	}
	return string(channel)
}

// Recorder accepts entries without blocking the caller
type Recorder interface {
	Record(entry Entry)
}

// Sink persists or forwards entries
type Sink interface {
	Write(ctx context.Context, entry Entry) error
}

// DropObserver is told about entries dropped on a full buffer
type DropObserver interface {
	ObserveChatlogDrop()
}

// AsyncRecorder fans entries out to its sinks on a background goroutine.
// Record never blocks: a full buffer drops the entry.
type AsyncRecorder struct {
	entries  chan Entry
	sinks    []Sink
	timeout  time.Duration
	observer DropObserver
	logger   *zap.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewAsyncRecorder(buffer int, timeout time.Duration, observer DropObserver, logger *zap.Logger, sinks ...Sink) *AsyncRecorder {
	if buffer < 1 {
		buffer = 1
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	r := &AsyncRecorder{
		entries:  make(chan Entry, buffer),
		sinks:    sinks,
		timeout:  timeout,
		observer: observer,
		logger:   logger,
		done:     make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *AsyncRecorder) Record(entry Entry) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Time.IsZero() {
		entry.Time = time.Now().UTC()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.entries <- entry:
	default:
		r.logger.Warn("chat log buffer full, dropping entry", zap.String("session_id", entry.SessionID))
		if r.observer != nil {
			r.observer.ObserveChatlogDrop()
		}
	}
}

func (r *AsyncRecorder) run() {
	defer close(r.done)
	for entry := range r.entries {
		for _, sink := range r.sinks {
			ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
			if err := sink.Write(ctx, entry); err != nil {
				r.logger.Warn("chat log sink failed", zap.String("session_id", entry.SessionID), zap.Error(err))
			}
			cancel()
		}
	}
}

// Close stops accepting entries and waits for the buffer to drain
func (r *AsyncRecorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.entries)
	}
	r.mu.Unlock()

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
