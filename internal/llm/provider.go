package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/Machforo/illora-ai-chieftain/internal/models"
)

var ErrResponderUnavailable = errors.New("qa responder unavailable")

// Intent labels produced by the classifiers
const (
	IntentPaymentRequest = "payment_request"
	IntentRoomService    = "room_service"
	IntentAmenities      = "amenities"
	IntentDining         = "dining"
	IntentGeneralQuery   = "general_query"
)

// Labels lists every intent a classifier may return
var Labels = []string{
	IntentPaymentRequest,
	IntentRoomService,
	IntentAmenities,
	IntentDining,
	IntentGeneralQuery,
}

// Responder answers free-form guest questions
type Responder interface {
	Answer(ctx context.Context, identity, query string, userType models.UserType) (string, error)
}

// Classifier assigns an intent label to a message
type Classifier interface {
	Classify(ctx context.Context, text string) (string, error)
}

// Completer sends a single prompt to a chat model and returns its text
type Completer func(ctx context.Context, prompt string) (string, error)

// Unconfigured stands in for the responder when no model key is set, so
// every question gets the apology instead of a startup failure.
type Unconfigured struct{}

func (Unconfigured) Answer(ctx context.Context, identity, query string, userType models.UserType) (string, error) {
	return "", fmt.Errorf("%w: no model configured", ErrResponderUnavailable)
}
