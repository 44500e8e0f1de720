package prompts

import (
	"strings"
	"testing"

	"github.com/Machforo/illora-ai-chieftain/internal/models"
)

func TestParseIntentLabel(t *testing.T) {
	labels := []string{"payment_request", "general_query"}

	tests := []struct {
		name    string
		content string
		want    string
		wantErr bool
	}{
		{"plain json", `{"intent": "payment_request"}`, "payment_request", false},
		{"wrapped in prose", "Sure! {\"intent\": \"General_Query\"} hope that helps", "general_query", false},
		{"unknown label", `{"intent": "weather"}`, "", true},
		{"no json", "payment_request", "", true},
		{"broken json", `{"intent": }`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseIntentLabel(tt.content, labels)
			if (err != nil) != tt.wantErr {
				t.Fatalf("unexpected error state: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestBuildConciergePromptForVisitors(t *testing.T) {
	p := BuildConciergePrompt("ILLORA RETREATS", models.UserNonGuest, "", "Is the spa open?")
	if !strings.Contains(p, "not a staying guest") {
		t.Fatalf("visitor prompt should restrict guest-only services: %q", p)
	}
	if !strings.Contains(p, "No previous conversation.") {
		t.Fatalf("empty history should be stated: %q", p)
	}
	if !strings.HasSuffix(p, "Guest Query: Is the spa open?") {
		t.Fatalf("query should close the prompt: %q", p)
	}
}
