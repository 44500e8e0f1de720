package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/Machforo/illora-ai-chieftain/internal/booking"
	"github.com/Machforo/illora-ai-chieftain/internal/chatlog"
	"github.com/Machforo/illora-ai-chieftain/internal/memory"
	"github.com/Machforo/illora-ai-chieftain/internal/models"
	"github.com/Machforo/illora-ai-chieftain/internal/prompts"
	"go.uber.org/zap"
)

const maxMessageLength = 4000

// ConciergeHandler runs one conversational turn: session lookup, dialogue
// step, chat log.
type ConciergeHandler struct {
	store   memory.Store
	engine  *booking.Engine
	chatlog chatlog.Recorder
	logger  *zap.Logger
}

func NewConciergeHandler(store memory.Store, engine *booking.Engine, recorder chatlog.Recorder, logger *zap.Logger) *ConciergeHandler {
	return &ConciergeHandler{
		store:   store,
		engine:  engine,
		chatlog: recorder,
		logger:  logger,
	}
}

// ProcessMessage never returns a raw failure to the transport; errors come
// back as a reply with an error code.
func (h *ConciergeHandler) ProcessMessage(ctx context.Context, request *models.MessageRequest) (*models.MessageResponse, error) {
	if err := h.validateRequest(request); err != nil {
		return h.createErrorResponse(request, models.ErrorInvalidRequest, err.Error()), nil
	}
	request.Text = strings.TrimSpace(request.Text)

	var outcome booking.Outcome
	create := func() *models.Session {
		return h.engine.NewSession(request.Identity, request.Channel)
	}
	key := models.SessionKey(request.Channel, request.Identity)
	sess, err := h.store.Update(ctx, key, create, func(sess *models.Session) error {
		outcome = h.engine.Step(ctx, sess, request.Text)
		return nil
	})
	if err != nil {
		h.logger.Error("session unavailable",
			zap.String("identity", request.Identity),
			zap.String("channel", string(request.Channel)),
			zap.Error(err))
		response := h.createErrorResponse(request, models.ErrorSessionUnavailable, "")
		h.record(request, response)
		return response, nil
	}

	response := &models.MessageResponse{
		Identity:   request.Identity,
		Reply:      outcome.Reply,
		Stage:      sess.Stage,
		UserType:   sess.UserType,
		Intent:     outcome.Intent,
		PaymentURL: outcome.PaymentURL,
	}
	if outcome.ErrorCode != "" {
		code := outcome.ErrorCode
		response.ErrorCode = &code
	}

	h.logger.Info("turn processed",
		zap.String("identity", request.Identity),
		zap.String("channel", string(request.Channel)),
		zap.String("stage", string(sess.Stage)),
		zap.String("intent", outcome.Intent))

	h.record(request, response)
	return response, nil
}

// ActiveSessions reports the number of live sessions
func (h *ConciergeHandler) ActiveSessions(ctx context.Context) (int, error) {
	return h.store.Count(ctx)
}

func (h *ConciergeHandler) validateRequest(request *models.MessageRequest) error {
	if request.Identity == "" {
		return fmt.Errorf("identity is required")
	}
	if strings.TrimSpace(request.Text) == "" {
		return fmt.Errorf("text is required")
	}
	if len(request.Text) > maxMessageLength {
		return fmt.Errorf("text exceeds %d bytes", maxMessageLength)
	}
	switch request.Channel {
	case models.ChannelWeb, models.ChannelWhatsApp, models.ChannelNATS:
	default:
		return fmt.Errorf("unknown channel %q", request.Channel)
	}
	return nil
}

func (h *ConciergeHandler) record(request *models.MessageRequest, response *models.MessageResponse) {
	if h.chatlog == nil {
		return
	}
	h.chatlog.Record(chatlog.Entry{
		Source:    chatlog.Source(request.Channel),
		SessionID: request.Identity,
		Input:     request.Text,
		Response:  response.Reply,
		Intent:    response.Intent,
		UserType:  string(response.UserType),
	})
}

func (h *ConciergeHandler) createErrorResponse(request *models.MessageRequest, errorCode, errorMessage string) *models.MessageResponse {
	reply := prompts.FallbackMessage
	if errorCode == models.ErrorInvalidRequest && errorMessage != "" {
		reply = "Sorry, I couldn't read that message: " + errorMessage
	}
	return &models.MessageResponse{
		Identity:  request.Identity,
		Reply:     reply,
		ErrorCode: &errorCode,
	}
}
