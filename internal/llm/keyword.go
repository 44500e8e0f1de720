package llm

import (
	"context"
	"strings"
)

type keywordRule struct {
	label    string
	keywords []string
}

// KeywordClassifier matches lowercase keywords, first rule wins
type KeywordClassifier struct {
	rules []keywordRule
}

func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{
		rules: []keywordRule{
			{IntentPaymentRequest, []string{"book", "reserve", "reservation", "payment", "pay ", "checkout", "room for", "stay for"}},
			{IntentRoomService, []string{"room service", "towel", "housekeeping", "wake-up", "wake up"}},
			{IntentAmenities, []string{"spa", "gym", "pool", "massage", "wifi", "wi-fi"}},
			{IntentDining, []string{"breakfast", "lunch", "dinner", "restaurant", "menu", "food", "drink"}},
		},
	}
}

func (k *KeywordClassifier) Classify(ctx context.Context, text string) (string, error) {
	lower := " " + strings.ToLower(text) + " "
	for _, rule := range k.rules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.label, nil
			}
		}
	}
	return IntentGeneralQuery, nil
}
