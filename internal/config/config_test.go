package config

import (
	"strings"
	"testing"
	"time"

	"github.com/Machforo/illora-ai-chieftain/internal/booking"
	"github.com/Machforo/illora-ai-chieftain/internal/models"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_123")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AppPort != "8080" || cfg.SessionBackend != "memory" || cfg.BookingIntentLabel != "payment_request" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.PaymentTimeout != 15*time.Second || cfg.CashDepositMinor() != 2000_00 {
		t.Fatalf("unexpected payment defaults: %v %d", cfg.PaymentTimeout, cfg.CashDepositMinor())
	}

	policies := cfg.Policies()
	if policies[models.ChannelWeb].InvalidInput != booking.InvalidInputResponder || policies[models.ChannelWeb].IdentifyFirst {
		t.Fatalf("unexpected web policy %+v", policies[models.ChannelWeb])
	}
	if p := policies[models.ChannelWhatsApp]; p.InvalidInput != booking.InvalidInputReprompt || !p.IdentifyFirst {
		t.Fatalf("unexpected whatsapp policy %+v", p)
	}
	if p := policies[models.ChannelNATS]; p.InvalidInput != booking.InvalidInputReprompt || p.IdentifyFirst {
		t.Fatalf("unexpected nats policy %+v", p)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_123")
	t.Setenv("APP_PORT", "9090")
	t.Setenv("SESSION_BACKEND", "redis")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("PAYMENT_ATTEMPTS", "2")
	t.Setenv("WHATSAPP_IDENTIFY", "false")
	t.Setenv("WEB_INVALID_INPUT", "Reprompt")
	t.Setenv("NATS_INVALID_INPUT", "responder")
	t.Setenv("CASH_DEPOSIT", "500")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AppPort != "9090" || cfg.SessionBackend != "redis" || cfg.PaymentAttempts != 2 {
		t.Fatalf("environment not applied: %+v", cfg)
	}
	policies := cfg.Policies()
	if policies[models.ChannelWhatsApp].IdentifyFirst {
		t.Fatal("WHATSAPP_IDENTIFY=false should disable identification")
	}
	if policies[models.ChannelWeb].InvalidInput != booking.InvalidInputReprompt {
		t.Fatal("policy parsing should be case-insensitive")
	}
	if policies[models.ChannelNATS].InvalidInput != booking.InvalidInputResponder {
		t.Fatal("NATS_INVALID_INPUT not applied")
	}
	if cfg.CashDepositMinor() != 500_00 {
		t.Fatalf("CASH_DEPOSIT not applied: %d", cfg.CashDepositMinor())
	}
}

func TestLoadFailsFast(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"missing stripe key", map[string]string{}, "STRIPE_SECRET_KEY"},
		{"relative base url", map[string]string{"STRIPE_SECRET_KEY": "sk", "BASE_URL": "localhost:8501"}, "BASE_URL"},
		{"redis without url", map[string]string{"STRIPE_SECRET_KEY": "sk", "SESSION_BACKEND": "redis"}, "REDIS_URL"},
		{"unknown backend", map[string]string{"STRIPE_SECRET_KEY": "sk", "SESSION_BACKEND": "mongo"}, "SESSION_BACKEND"},
		{"unknown policy", map[string]string{"STRIPE_SECRET_KEY": "sk", "WEB_INVALID_INPUT": "ignore"}, "WEB_INVALID_INPUT"},
		{"unknown nats policy", map[string]string{"STRIPE_SECRET_KEY": "sk", "NATS_INVALID_INPUT": "drop"}, "NATS_INVALID_INPUT"},
		{"zero cash deposit", map[string]string{"STRIPE_SECRET_KEY": "sk", "CASH_DEPOSIT": "0"}, "CASH_DEPOSIT"},
		{"llm without key", map[string]string{"STRIPE_SECRET_KEY": "sk", "INTENT_CLASSIFIER": "llm"}, "LLM_API_KEY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("STRIPE_SECRET_KEY", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected an error mentioning %s, got %v", tt.want, err)
			}
		})
	}
}
