package config

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/Machforo/illora-ai-chieftain/internal/booking"
	"github.com/Machforo/illora-ai-chieftain/internal/models"
	"github.com/spf13/viper"
)

type Config struct {
	// Service configuration
	AppPort     string `mapstructure:"APP_PORT"`
	Env         string `mapstructure:"ENV"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	ServiceName string `mapstructure:"SERVICE_NAME"`
	HotelName   string `mapstructure:"HOTEL_NAME"`
	BaseURL     string `mapstructure:"BASE_URL"`

	// Payment configuration
	StripeSecretKey string        `mapstructure:"STRIPE_SECRET_KEY"`
	Currency        string        `mapstructure:"CURRENCY"`
	CashDeposit     int64         `mapstructure:"CASH_DEPOSIT"` // major units
	PaymentTimeout  time.Duration `mapstructure:"PAYMENT_TIMEOUT"`
	PaymentAttempts int           `mapstructure:"PAYMENT_ATTEMPTS"`

	// Session configuration
	SessionBackend     string        `mapstructure:"SESSION_BACKEND"`
	RedisURL           string        `mapstructure:"REDIS_URL"`
	SessionTTL         time.Duration `mapstructure:"SESSION_TTL"`
	SessionLockTimeout time.Duration `mapstructure:"SESSION_LOCK_TIMEOUT"`
	HistoryTurns       int           `mapstructure:"HISTORY_TURNS"`

	// LLM configuration
	LLMAPIKey          string        `mapstructure:"LLM_API_KEY"`
	LLMModel           string        `mapstructure:"LLM_MODEL"`
	LLMBaseURL         string        `mapstructure:"LLM_BASE_URL"`
	LLMTimeout         time.Duration `mapstructure:"LLM_TIMEOUT"`
	IntentClassifier   string        `mapstructure:"INTENT_CLASSIFIER"`
	BookingIntentLabel string        `mapstructure:"BOOKING_INTENT_LABEL"`

	// NATS configuration
	NatsURL            string        `mapstructure:"NATS_URL"`
	NatsRequestSubject string        `mapstructure:"NATS_REQUEST_SUBJECT"`
	NatsChatlogSubject string        `mapstructure:"NATS_CHATLOG_SUBJECT"`
	NatsTimeout        time.Duration `mapstructure:"NATS_TIMEOUT"`

	// Chat log configuration
	ChatLogPath   string `mapstructure:"CHAT_LOG_PATH"`
	ChatLogBuffer int    `mapstructure:"CHAT_LOG_BUFFER"`

	// Channel policies
	WebInvalidInput      string `mapstructure:"WEB_INVALID_INPUT"`
	WhatsAppInvalidInput string `mapstructure:"WHATSAPP_INVALID_INPUT"`
	WhatsAppIdentify     bool   `mapstructure:"WHATSAPP_IDENTIFY"`
	NatsInvalidInput     string `mapstructure:"NATS_INVALID_INPUT"`

	RateLimitPerMin int `mapstructure:"RATE_LIMIT_PER_MIN"`
}

var defaults = map[string]any{
	"APP_PORT":               "8080",
	"ENV":                    "development",
	"LOG_LEVEL":              "info",
	"SERVICE_NAME":           "illora-concierge",
	"HOTEL_NAME":             "ILLORA RETREATS",
	"BASE_URL":               "http://localhost:8080",
	"STRIPE_SECRET_KEY":      "",
	"CURRENCY":               "inr",
	"CASH_DEPOSIT":           2000,
	"PAYMENT_TIMEOUT":        "15s",
	"PAYMENT_ATTEMPTS":       1,
	"SESSION_BACKEND":        "memory",
	"REDIS_URL":              "",
	"SESSION_TTL":            "0s",
	"SESSION_LOCK_TIMEOUT":   "30s",
	"HISTORY_TURNS":          5,
	"LLM_API_KEY":            "",
	"LLM_MODEL":              "llama-3.1-8b-instant",
	"LLM_BASE_URL":           "https://api.groq.com/openai/v1",
	"LLM_TIMEOUT":            "30s",
	"INTENT_CLASSIFIER":      "keyword",
	"BOOKING_INTENT_LABEL":   "payment_request",
	"NATS_URL":               "",
	"NATS_REQUEST_SUBJECT":   "concierge.message",
	"NATS_CHATLOG_SUBJECT":   "concierge.chatlog",
	"NATS_TIMEOUT":           "30s",
	"CHAT_LOG_PATH":          "logs/bot.log",
	"CHAT_LOG_BUFFER":        256,
	"WEB_INVALID_INPUT":      "responder",
	"WHATSAPP_INVALID_INPUT": "reprompt",
	"WHATSAPP_IDENTIFY":      true,
	"NATS_INVALID_INPUT":     "reprompt",
	"RATE_LIMIT_PER_MIN":     120,
}

// Load reads config.yaml (when present) and the environment, then validates.
// Any error here must stop the process before it serves traffic.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		log.Println("No config file found, using environment variables only")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every missing or malformed setting at once
func (c *Config) Validate() error {
	var errs []error

	if c.StripeSecretKey == "" {
		errs = append(errs, errors.New("STRIPE_SECRET_KEY is required"))
	}
	if u, err := url.Parse(c.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("BASE_URL must be an absolute http(s) URL, got %q", c.BaseURL))
	}
	if c.CashDeposit <= 0 {
		errs = append(errs, fmt.Errorf("CASH_DEPOSIT must be positive, got %d", c.CashDeposit))
	}
	if c.PaymentAttempts < 1 {
		errs = append(errs, errors.New("PAYMENT_ATTEMPTS must be at least 1"))
	}

	switch c.SessionBackend {
	case "memory":
	case "redis":
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required when SESSION_BACKEND=redis"))
		}
		if c.SessionLockTimeout <= c.PaymentTimeout*time.Duration(c.PaymentAttempts) {
			errs = append(errs, errors.New("SESSION_LOCK_TIMEOUT must exceed PAYMENT_TIMEOUT x PAYMENT_ATTEMPTS"))
		}
	default:
		errs = append(errs, fmt.Errorf("SESSION_BACKEND must be memory or redis, got %q", c.SessionBackend))
	}

	switch c.IntentClassifier {
	case "keyword":
	case "llm":
		if c.LLMAPIKey == "" {
			errs = append(errs, errors.New("LLM_API_KEY is required when INTENT_CLASSIFIER=llm"))
		}
	default:
		errs = append(errs, fmt.Errorf("INTENT_CLASSIFIER must be keyword or llm, got %q", c.IntentClassifier))
	}
	if strings.TrimSpace(c.BookingIntentLabel) == "" {
		errs = append(errs, errors.New("BOOKING_INTENT_LABEL must not be empty"))
	}

	if _, err := booking.ParseInvalidInput(c.WebInvalidInput); err != nil {
		errs = append(errs, fmt.Errorf("WEB_INVALID_INPUT: %w", err))
	}
	if _, err := booking.ParseInvalidInput(c.WhatsAppInvalidInput); err != nil {
		errs = append(errs, fmt.Errorf("WHATSAPP_INVALID_INPUT: %w", err))
	}
	if _, err := booking.ParseInvalidInput(c.NatsInvalidInput); err != nil {
		errs = append(errs, fmt.Errorf("NATS_INVALID_INPUT: %w", err))
	}

	return errors.Join(errs...)
}

// Policies maps the channel settings onto dialogue policies. Call after
// Validate.
func (c *Config) Policies() map[models.Channel]booking.Policy {
	web, _ := booking.ParseInvalidInput(c.WebInvalidInput)
	whatsapp, _ := booking.ParseInvalidInput(c.WhatsAppInvalidInput)
	nats, _ := booking.ParseInvalidInput(c.NatsInvalidInput)

	return map[models.Channel]booking.Policy{
		models.ChannelWeb:      {InvalidInput: web},
		models.ChannelWhatsApp: {InvalidInput: whatsapp, IdentifyFirst: c.WhatsAppIdentify},
		models.ChannelNATS:     {InvalidInput: nats},
	}
}

// CashDepositMinor is the deposit in minor currency units
func (c *Config) CashDepositMinor() int64 {
	return c.CashDeposit * 100
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
