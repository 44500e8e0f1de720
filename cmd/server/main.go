package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Machforo/illora-ai-chieftain/internal/booking"
	"github.com/Machforo/illora-ai-chieftain/internal/chatlog"
	"github.com/Machforo/illora-ai-chieftain/internal/config"
	"github.com/Machforo/illora-ai-chieftain/internal/handlers"
	"github.com/Machforo/illora-ai-chieftain/internal/llm"
	"github.com/Machforo/illora-ai-chieftain/internal/logging"
	"github.com/Machforo/illora-ai-chieftain/internal/memory"
	"github.com/Machforo/illora-ai-chieftain/internal/metrics"
	"github.com/Machforo/illora-ai-chieftain/internal/payment"
	"github.com/Machforo/illora-ai-chieftain/internal/pricing"
	"github.com/Machforo/illora-ai-chieftain/internal/transport"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func main() {
	// Load .env file if it exists (for development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("❌ Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("🚀 Starting concierge service...",
		zap.String("service", cfg.ServiceName),
		zap.String("hotel", cfg.HotelName),
		zap.String("env", cfg.Env))

	collectors := metrics.New(prometheus.DefaultRegisterer, prometheus.DefaultGatherer, cfg.ServiceName)
	catalog := pricing.Default(cfg.CashDepositMinor(), cfg.Currency)

	// Session store
	store, closeStore := newStore(cfg, logger)
	defer closeStore()

	// QA responder and intent classifier
	history := memory.NewHistory(cfg.HistoryTurns)
	responder, classifier := newLanguageModels(cfg, history, logger)

	// Payment sessions
	stripeRequester, err := payment.NewStripeRequester(cfg.StripeSecretKey, cfg.BaseURL, catalog, logger.Named("stripe"))
	if err != nil {
		logger.Fatal("❌ Failed to initialize payment requester", zap.Error(err))
	}
	payments := payment.NewGuarded(stripeRequester, catalog, cfg.PaymentAttempts, cfg.PaymentTimeout, collectors, logger.Named("payment"))
	logger.Info("✅ Payment requester initialized", zap.String("currency", catalog.Currency()))

	// Optional NATS connection, shared by the request transport and chat log
	var natsConn *nats.Conn
	if cfg.NatsURL != "" {
		logger.Info("📡 Connecting to NATS...", zap.String("url", cfg.NatsURL))
		natsConn, err = transport.ConnectNATS(cfg, logger.Named("nats"))
		if err != nil {
			logger.Fatal("❌ Failed to connect to NATS", zap.Error(err))
		}
		defer natsConn.Close()
	}

	// Chat log
	recorder, closeSinks := newChatlog(cfg, natsConn, collectors, logger)

	engine, err := booking.NewEngine(booking.Options{
		Hotel:      cfg.HotelName,
		Catalog:    catalog,
		Classifier: classifier,
		Responder:  responder,
		Payments:   payments,
		Gate:       booking.NewGate(cfg.BookingIntentLabel, nil),
		Policies:   cfg.Policies(),
		Recorder:   collectors,
		Logger:     logger.Named("booking"),
	})
	if err != nil {
		logger.Fatal("❌ Failed to initialize booking engine", zap.Error(err))
	}

	conciergeHandler := handlers.NewConciergeHandler(store, engine, recorder, logger.Named("handler"))
	logger.Info("✅ Concierge handler initialized")

	// Transports
	httpServer := transport.NewHTTPServer(cfg, conciergeHandler, collectors, logger.Named("http"))
	go func() {
		logger.Info("👂 HTTP server listening", zap.String("port", cfg.AppPort))
		if err := httpServer.Start(); err != nil {
			logger.Fatal("❌ HTTP server failed", zap.Error(err))
		}
	}()

	var natsTransport *transport.NATSTransport
	if natsConn != nil {
		natsTransport = transport.NewNATSTransport(natsConn, cfg, conciergeHandler, logger.Named("nats"))
		if err := natsTransport.Start(); err != nil {
			logger.Fatal("❌ Failed to start NATS transport", zap.Error(err))
		}
	}

	logger.Info("✅ Concierge service is running!")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	logger.Info("🛑 Received signal", zap.String("signal", sig.String()))
	logger.Info("🔄 Shutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Warn("⚠️ Error shutting down HTTP server", zap.Error(err))
	}
	if natsTransport != nil {
		if err := natsTransport.Close(); err != nil {
			logger.Warn("⚠️ Error closing NATS transport", zap.Error(err))
		}
	}

	if count, err := conciergeHandler.ActiveSessions(ctx); err == nil {
		logger.Info("📊 Final session count", zap.Int("sessions", count))
	}

	if err := recorder.Close(ctx); err != nil {
		logger.Warn("⚠️ Error flushing chat log", zap.Error(err))
	}
	closeSinks()

	logger.Info("👋 Concierge service stopped")
}

func newStore(cfg *config.Config, logger *zap.Logger) (memory.Store, func()) {
	if cfg.SessionBackend != "redis" {
		logger.Info("💾 Using in-memory session store", zap.Duration("ttl", cfg.SessionTTL))
		return memory.NewLocalStore(cfg.SessionTTL), func() {}
	}

	logger.Info("🔌 Connecting to Redis...")
	redisStore, err := memory.NewRedisStore(cfg.RedisURL, cfg.SessionTTL, cfg.SessionLockTimeout)
	if err != nil {
		logger.Fatal("❌ Failed to connect to Redis", zap.Error(err))
	}
	logger.Info("✅ Redis connected")

	return redisStore, func() {
		if err := redisStore.Close(); err != nil {
			logger.Warn("⚠️ Error closing Redis store", zap.Error(err))
		}
	}
}

func newLanguageModels(cfg *config.Config, history *memory.History, logger *zap.Logger) (llm.Responder, llm.Classifier) {
	keyword := llm.NewKeywordClassifier()
	if cfg.LLMAPIKey == "" {
		logger.Warn("⚠️ LLM_API_KEY not set, questions will get the fallback reply")
		return llm.Unconfigured{}, keyword
	}

	logger.Info("🤖 Initializing language model...", zap.String("model", cfg.LLMModel))
	qa, err := llm.NewOpenAICompleter(cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMBaseURL, 0.3)
	if err != nil {
		logger.Fatal("❌ Failed to initialize language model", zap.Error(err))
	}
	responder := llm.NewConcierge(qa, history, cfg.HotelName, cfg.LLMTimeout, logger.Named("qa"))

	if cfg.IntentClassifier != "llm" {
		return responder, keyword
	}
	labeler, err := llm.NewOpenAICompleter(cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMBaseURL, 0)
	if err != nil {
		logger.Fatal("❌ Failed to initialize intent model", zap.Error(err))
	}
	logger.Info("✅ Language model initialized")
	return responder, llm.NewLLMClassifier(labeler, keyword, cfg.LLMTimeout, logger.Named("intent"))
}

func newChatlog(cfg *config.Config, natsConn *nats.Conn, collectors *metrics.Collectors, logger *zap.Logger) (*chatlog.AsyncRecorder, func()) {
	var (
		sinks     []chatlog.Sink
		closeFile = func() {}
	)
	if cfg.ChatLogPath != "" {
		fileSink, err := chatlog.NewFileSink(cfg.ChatLogPath)
		if err != nil {
			logger.Fatal("❌ Failed to open chat log", zap.Error(err))
		}
		sinks = append(sinks, fileSink)
		closeFile = func() { _ = fileSink.Close() }
	}
	if natsConn != nil && cfg.NatsChatlogSubject != "" {
		sinks = append(sinks, chatlog.NewNATSSink(natsConn, cfg.NatsChatlogSubject))
	}

	logger.Info("📝 Chat log ready", zap.Int("sinks", len(sinks)), zap.String("path", cfg.ChatLogPath))
	return chatlog.NewAsyncRecorder(cfg.ChatLogBuffer, 5*time.Second, collectors, logger.Named("chatlog"), sinks...), closeFile
}
