package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Machforo/illora-ai-chieftain/internal/config"
	"github.com/Machforo/illora-ai-chieftain/internal/models"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

type NATSTransport struct {
	conn      *nats.Conn
	sub       *nats.Subscription
	config    *config.Config
	processor MessageProcessor
	logger    *zap.Logger
}

// ConnectNATS dials the server. The connection is shared by the request
// transport and the chat log publisher.
func ConnectNATS(cfg *config.Config, logger *zap.Logger) (*nats.Conn, error) {
	conn, err := nats.Connect(cfg.NatsURL,
		nats.Name(cfg.ServiceName),
		nats.Timeout(cfg.NatsTimeout),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1), // Infinite reconnects
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	logger.Info("connected to NATS server", zap.String("url", cfg.NatsURL))
	return conn, nil
}

func NewNATSTransport(conn *nats.Conn, cfg *config.Config, processor MessageProcessor, logger *zap.Logger) *NATSTransport {
	return &NATSTransport{
		conn:      conn,
		config:    cfg,
		processor: processor,
		logger:    logger,
	}
}

func (nt *NATSTransport) Start() error {
	sub, err := nt.conn.Subscribe(nt.config.NatsRequestSubject, nt.handleMessageRequest)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", nt.config.NatsRequestSubject, err)
	}
	nt.sub = sub

	nt.logger.Info("subscribed to subject", zap.String("subject", nt.config.NatsRequestSubject))
	return nil
}

func (nt *NATSTransport) handleMessageRequest(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), nt.config.NatsTimeout)
	defer cancel()

	if err := msg.Respond(nt.process(ctx, msg.Data)); err != nil {
		nt.logger.Error("failed to send response", zap.String("subject", msg.Subject), zap.Error(err))
	}
}

// process decodes one request and encodes the reply. Malformed requests get
// an INVALID_REQUEST reply rather than silence.
func (nt *NATSTransport) process(ctx context.Context, data []byte) []byte {
	var request models.MessageRequest
	if err := json.Unmarshal(data, &request); err != nil {
		nt.logger.Warn("error parsing request", zap.Error(err))
		return nt.encode(errorReply(&request, models.ErrorInvalidRequest, "Invalid request format"))
	}
	if request.Channel == "" {
		request.Channel = models.ChannelNATS
	}

	response, err := nt.processor.ProcessMessage(ctx, &request)
	if err != nil {
		nt.logger.Error("error processing message", zap.String("identity", request.Identity), zap.Error(err))
		return nt.encode(errorReply(&request, models.ErrorSessionUnavailable, ""))
	}

	nt.logger.Debug("response ready",
		zap.String("identity", response.Identity),
		zap.String("stage", string(response.Stage)))
	return nt.encode(response)
}

func (nt *NATSTransport) encode(response *models.MessageResponse) []byte {
	data, err := json.Marshal(response)
	if err != nil {
		nt.logger.Error("failed to marshal response", zap.Error(err))
		return []byte(`{"reply":"I'm sorry, I encountered an error processing your request. Please try again."}`)
	}
	return data
}

func errorReply(request *models.MessageRequest, errorCode, reply string) *models.MessageResponse {
	if reply == "" {
		reply = "I'm sorry, I encountered an error processing your request. Please try again."
	}
	return &models.MessageResponse{
		Identity:  request.Identity,
		Reply:     reply,
		ErrorCode: &errorCode,
	}
}

// Close stops taking requests. The shared connection is closed by its owner.
func (nt *NATSTransport) Close() error {
	if nt.sub == nil {
		return nil
	}
	if err := nt.sub.Drain(); err != nil {
		return fmt.Errorf("failed to drain subscription: %w", err)
	}
	nt.logger.Info("NATS subscription drained", zap.String("subject", nt.config.NatsRequestSubject))
	return nil
}
