package chatlog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// FileSink appends one JSON line per entry through a dedicated zap logger
type FileSink struct {
	logger *zap.Logger
}

func NewFileSink(path string) (*FileSink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create chat log directory: %w", err)
		}
	}

	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.Sampling = nil
	cfg.DisableCaller = true
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to open chat log %s: %w", path, err)
	}
	return &FileSink{logger: logger}, nil
}

func NewFileSinkFromLogger(logger *zap.Logger) *FileSink {
	return &FileSink{logger: logger}
}

func (s *FileSink) Write(ctx context.Context, e Entry) error {
	s.logger.Info("chat",
		zap.String("id", e.ID),
		zap.String("source", e.Source),
		zap.String("session_id", e.SessionID),
		zap.String("input", e.Input),
		zap.String("response", e.Response),
		zap.String("intent", e.Intent),
		zap.String("user_type", e.UserType))
	return nil
}

func (s *FileSink) Close() error {
	return s.logger.Sync()
}

// Publisher is satisfied by *nats.Conn
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSSink publishes entries as JSON on a subject
type NATSSink struct {
	pub     Publisher
	subject string
}

func NewNATSSink(pub Publisher, subject string) *NATSSink {
	return &NATSSink{pub: pub, subject: subject}
}

func (s *NATSSink) Write(ctx context.Context, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal chat log entry: %w", err)
	}
	if err := s.pub.Publish(s.subject, data); err != nil {
		return fmt.Errorf("failed to publish chat log entry: %w", err)
	}
	return nil
}
