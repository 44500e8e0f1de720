package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Machforo/illora-ai-chieftain/internal/memory"
	"github.com/Machforo/illora-ai-chieftain/internal/models"
	"github.com/Machforo/illora-ai-chieftain/internal/prompts"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
)

// NewOpenAICompleter talks to any OpenAI-compatible endpoint (Groq by default)
func NewOpenAICompleter(apiKey, model, baseURL string, temperature float64) (Completer, error) {
	opts := []openai.Option{
		openai.WithToken(apiKey),
		openai.WithModel(model),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	return func(ctx context.Context, prompt string) (string, error) {
		return llms.GenerateFromSinglePrompt(ctx, client, prompt, llms.WithTemperature(temperature))
	}, nil
}

// Concierge is the QA responder
type Concierge struct {
	complete Completer
	history  *memory.History
	hotel    string
	timeout  time.Duration
	logger   *zap.Logger
}

func NewConcierge(complete Completer, history *memory.History, hotel string, timeout time.Duration, logger *zap.Logger) *Concierge {
	return &Concierge{
		complete: complete,
		history:  history,
		hotel:    hotel,
		timeout:  timeout,
		logger:   logger,
	}
}

// Answer asks the model, giving it the identity's recent turns as context
func (c *Concierge) Answer(ctx context.Context, identity, query string, userType models.UserType) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var history string
	if c.history != nil {
		h, err := c.history.Formatted(ctx, identity)
		if err != nil {
			c.logger.Warn("history unavailable", zap.String("identity", identity), zap.Error(err))
		}
		history = h
	}

	answer, err := c.complete(ctx, prompts.BuildConciergePrompt(c.hotel, userType, history, query))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrResponderUnavailable, err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", fmt.Errorf("%w: empty answer", ErrResponderUnavailable)
	}

	if c.history != nil {
		if err := c.history.AddExchange(ctx, identity, query, answer); err != nil {
			c.logger.Warn("failed to record history", zap.String("identity", identity), zap.Error(err))
		}
	}

	c.logger.Debug("processed query", zap.String("identity", identity), zap.String("query", query))
	return answer, nil
}

// LLMClassifier asks the model for a label and falls back to another
// classifier when the reply cannot be used.
type LLMClassifier struct {
	complete Completer
	fallback Classifier
	timeout  time.Duration
	logger   *zap.Logger
}

func NewLLMClassifier(complete Completer, fallback Classifier, timeout time.Duration, logger *zap.Logger) *LLMClassifier {
	return &LLMClassifier{
		complete: complete,
		fallback: fallback,
		timeout:  timeout,
		logger:   logger,
	}
}

func (c *LLMClassifier) Classify(ctx context.Context, text string) (string, error) {
	cctx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	content, err := c.complete(cctx, prompts.BuildIntentPrompt(Labels, text))
	if err == nil {
		var label string
		label, err = prompts.ParseIntentLabel(content, Labels)
		if err == nil {
			return label, nil
		}
	}

	c.logger.Warn("intent model failed, using fallback classifier", zap.Error(err))
	return c.fallback.Classify(ctx, text)
}
