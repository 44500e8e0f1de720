package transport

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Machforo/illora-ai-chieftain/internal/config"
	"github.com/Machforo/illora-ai-chieftain/internal/metrics"
	"github.com/Machforo/illora-ai-chieftain/internal/models"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MessageProcessor is the conversational core behind every transport
type MessageProcessor interface {
	ProcessMessage(ctx context.Context, request *models.MessageRequest) (*models.MessageResponse, error)
	ActiveSessions(ctx context.Context) (int, error)
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message" binding:"required"`
}

type chatResponse struct {
	SessionID  string          `json:"session_id"`
	Reply      string          `json:"reply"`
	Stage      models.Stage    `json:"stage,omitempty"`
	UserType   models.UserType `json:"user_type,omitempty"`
	Intent     string          `json:"intent,omitempty"`
	PaymentURL string          `json:"payment_url,omitempty"`
	ErrorCode  *string         `json:"error_code,omitempty"`
}

// twimlResponse is the TwiML body Twilio expects from a messaging webhook
type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message"`
}

type errorResponse struct {
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// HTTPServer serves the web chat API and the WhatsApp webhook
type HTTPServer struct {
	srv       *http.Server
	router    *gin.Engine
	processor MessageProcessor
	config    *config.Config
	logger    *zap.Logger
}

func NewHTTPServer(cfg *config.Config, processor MessageProcessor, collectors *metrics.Collectors, logger *zap.Logger) *HTTPServer {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &HTTPServer{
		router:    gin.New(),
		processor: processor,
		config:    cfg,
		logger:    logger,
	}

	s.router.Use(recovery(logger))
	if collectors != nil {
		s.router.Use(collectors.Instrument())
	}
	s.router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type"},
		ExposeHeaders:   []string{"Content-Length"},
		MaxAge:          12 * time.Hour,
	}))

	limiter := newLimiterStore(cfg.RateLimitPerMin)
	s.router.POST("/api/chat", rateLimit(limiter, logger, clientIP), s.handleChat)
	s.router.POST("/whatsapp", rateLimit(limiter, logger, whatsAppSender), s.handleWhatsApp)
	s.router.GET("/healthz", s.handleHealth)
	if collectors != nil {
		s.router.GET("/metrics", gin.WrapH(collectors.Handler()))
	}

	s.srv = &http.Server{
		Addr:              "0.0.0.0:" + cfg.AppPort,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the router for tests and embedding
func (s *HTTPServer) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown. It returns nil on a clean shutdown.
func (s *HTTPServer) Start() error {
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *HTTPServer) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Message: "Invalid request", Details: err.Error()})
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	resp, err := s.processor.ProcessMessage(c.Request.Context(), &models.MessageRequest{
		Channel:  models.ChannelWeb,
		Identity: req.SessionID,
		Text:     req.Message,
	})
	if err != nil {
		s.logger.Error("chat request failed", zap.String("session_id", req.SessionID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorResponse{Message: "Internal Server Error"})
		return
	}

	status := http.StatusOK
	if resp.ErrorCode != nil && *resp.ErrorCode == models.ErrorInvalidRequest {
		status = http.StatusBadRequest
	}
	c.JSON(status, chatResponse{
		SessionID:  req.SessionID,
		Reply:      resp.Reply,
		Stage:      resp.Stage,
		UserType:   resp.UserType,
		Intent:     resp.Intent,
		PaymentURL: resp.PaymentURL,
		ErrorCode:  resp.ErrorCode,
	})
}

func (s *HTTPServer) handleWhatsApp(c *gin.Context) {
	from := c.PostForm("From")
	body := c.PostForm("Body")
	if from == "" {
		c.XML(http.StatusBadRequest, twimlResponse{Message: "Missing sender."})
		return
	}

	resp, err := s.processor.ProcessMessage(c.Request.Context(), &models.MessageRequest{
		Channel:  models.ChannelWhatsApp,
		Identity: from,
		Text:     body,
	})
	if err != nil {
		s.logger.Error("whatsapp request failed", zap.String("from", from), zap.Error(err))
		c.XML(http.StatusInternalServerError, twimlResponse{Message: "Something went wrong, please try again."})
		return
	}

	// Twilio retries on non-2xx, so even invalid messages get a 200 reply
	c.XML(http.StatusOK, twimlResponse{Message: resp.Reply})
}

func (s *HTTPServer) handleHealth(c *gin.Context) {
	count, err := s.processor.ActiveSessions(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":          "degraded",
			"service":         s.config.ServiceName,
			"session_backend": s.config.SessionBackend,
			"error":           err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":          "ok",
		"service":         s.config.ServiceName,
		"session_backend": s.config.SessionBackend,
		"active_sessions": count,
	})
}

// recovery turns panics into a JSON 500 and logs them
func recovery(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("unhandled panic",
					zap.Any("error", err),
					zap.String("path", c.Request.URL.Path))
				c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{
					Message: "Internal Server Error",
					Details: "An unexpected error occurred. Please try again later.",
				})
			}
		}()
		c.Next()
	}
}
