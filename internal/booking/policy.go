package booking

import (
	"fmt"
	"strings"

	"github.com/Machforo/illora-ai-chieftain/internal/models"
)

// InvalidInput selects what a stage does with input it did not ask for
type InvalidInput string

const (
	InvalidInputReprompt  InvalidInput = "reprompt"
	InvalidInputResponder InvalidInput = "responder"
)

// ParseInvalidInput accepts "reprompt" or "responder", case-insensitively
func ParseInvalidInput(s string) (InvalidInput, error) {
	switch v := InvalidInput(strings.ToLower(strings.TrimSpace(s))); v {
	case InvalidInputReprompt, InvalidInputResponder:
		return v, nil
	}
	return "", fmt.Errorf("unknown invalid-input policy %q (want reprompt or responder)", s)
}

// Policy is the per-channel dialogue behaviour
type Policy struct {
	InvalidInput  InvalidInput
	IdentifyFirst bool
}

// DefaultPolicies mirrors the two deployed front ends: the web chat falls
// back to the responder, WhatsApp re-prompts and asks who is writing first.
func DefaultPolicies() map[models.Channel]Policy {
	return map[models.Channel]Policy{
		models.ChannelWeb:      {InvalidInput: InvalidInputResponder},
		models.ChannelWhatsApp: {InvalidInput: InvalidInputReprompt, IdentifyFirst: true},
		models.ChannelNATS:     {InvalidInput: InvalidInputReprompt},
	}
}

// InitialStage is where a fresh session on this channel starts
func (p Policy) InitialStage() models.Stage {
	if p.IdentifyFirst {
		return models.StageIdentify
	}
	return models.StageIdle
}

// InitialUserType is unknown until identified, or guest when the channel
// never asks.
func (p Policy) InitialUserType() models.UserType {
	if p.IdentifyFirst {
		return models.UserUnknown
	}
	return models.UserGuest
}
