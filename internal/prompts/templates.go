package prompts

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Machforo/illora-ai-chieftain/internal/models"
)

const ConciergePrompt = `You are a knowledgeable, polite, and concise concierge assistant at *%s*, a premium hotel known for elegant accommodations, gourmet dining, rejuvenating spa treatments, a fully-equipped gym, pool access, 24x7 room service, meeting spaces, and personalized hospitality.

RULES:
1. Keep answers short, informative, and relevant to the %s experience
2. Tailor replies to the hotel's luxury and exclusivity, never generic
3. Only elaborate when the guest explicitly asks for more details
4. %s

Recent conversation:
%s
Guest Query: %s`

const IntentPrompt = `Classify the hotel guest message into exactly one intent.

Available intents:
%s
Respond with a valid JSON object in this exact format:
{"intent": "intent_name"}

Message: %s`

// FallbackMessage is sent whenever the QA responder cannot answer
const FallbackMessage = "We're sorry, there was an issue while assisting you. Please feel free to ask again or contact the front desk for immediate help."

// BuildConciergePrompt renders the QA prompt for one question
func BuildConciergePrompt(hotel string, userType models.UserType, history, query string) string {
	audience := "The person asking is a staying guest."
	if userType == models.UserNonGuest {
		audience = "The person asking is a visitor, not a staying guest; do not offer guest-only services such as room service, spa, gym, pool, wake-up calls or room bookings."
	}
	if strings.TrimSpace(history) == "" {
		history = "No previous conversation.\n"
	}
	return fmt.Sprintf(ConciergePrompt, hotel, hotel, audience, history, query)
}

// BuildIntentPrompt renders the classification prompt
func BuildIntentPrompt(labels []string, text string) string {
	var builder strings.Builder
	for _, label := range labels {
		builder.WriteString(fmt.Sprintf("- %s\n", label))
	}
	return fmt.Sprintf(IntentPrompt, builder.String(), text)
}

type intentReply struct {
	Intent string `json:"intent"`
}

// ParseIntentLabel extracts the intent from an LLM reply and checks it
// against the allowed labels.
func ParseIntentLabel(content string, labels []string) (string, error) {
	jsonContent := extractJSON(content)
	if jsonContent == "" {
		return "", fmt.Errorf("no valid JSON found in response")
	}

	var reply intentReply
	if err := json.Unmarshal([]byte(jsonContent), &reply); err != nil {
		return "", fmt.Errorf("failed to parse JSON: %w", err)
	}

	label := strings.ToLower(strings.TrimSpace(reply.Intent))
	for _, l := range labels {
		if l == label {
			return l, nil
		}
	}
	return "", fmt.Errorf("unknown intent %q", reply.Intent)
}

func extractJSON(content string) string {
	// Look for JSON object in the content
	start := strings.Index(content, "{")
	if start == -1 {
		return ""
	}

	end := strings.LastIndex(content, "}")
	if end == -1 || end <= start {
		return ""
	}

	return content[start : end+1]
}
