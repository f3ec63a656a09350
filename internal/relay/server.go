package relay

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mlpierce22/triplechat/internal/chat"
	"github.com/mlpierce22/triplechat/internal/config"
	"github.com/mlpierce22/triplechat/internal/llm"
	"github.com/mlpierce22/triplechat/internal/sse"
)

// ChatRequest is the JSON body accepted by every relay endpoint. Everything
// beyond messages is optional; defaults come from configuration.
type ChatRequest struct {
	Messages     []chat.Message `json:"messages"`
	Model        string         `json:"model,omitempty"`
	SystemPrompt string         `json:"systemPrompt,omitempty"`
	Temperature  float64        `json:"temperature,omitempty"`
	MaxTokens    int            `json:"maxTokens,omitempty"`
}

// Server exposes one streaming endpoint per upstream provider. Each endpoint
// accepts a message history and answers with a data/[DONE] event stream.
type Server struct {
	cfg       *config.Config
	providers map[string]llm.Provider
	router    *gin.Engine
}

// New builds a Server with real providers constructed from the configuration.
func New(cfg *config.Config) *Server {
	providers := map[string]llm.Provider{
		cfg.OpenAIFetch.Name:  llm.NewOpenAIFetchProvider(cfg.OpenAIAPIKey, cfg.OpenAIFetch.Model),
		cfg.OpenAISDK.Name:    llm.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAISDK.Model),
		cfg.AnthropicSDK.Name: llm.NewAnthropicProvider(cfg.AnthropicAPIKey, cfg.AnthropicSDK.Model),
		cfg.GeminiSDK.Name:    llm.NewGeminiProvider(cfg.GeminiAPIKey, cfg.GeminiSDK.Model),
	}
	return NewWithProviders(cfg, providers)
}

// NewWithProviders builds a Server with the supplied providers, keyed by
// endpoint name. Tests use it to swap in scripted providers.
func NewWithProviders(cfg *config.Config, providers map[string]llm.Provider) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		cfg:       cfg,
		providers: providers,
		router:    gin.New(),
	}

	s.router.Use(gin.Recovery(), s.cors())
	s.router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "triplechat relay"})
	})
	for name := range providers {
		s.router.POST("/"+name, s.handleStream(name))
	}
	return s
}

// Handler returns the relay as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves the relay on the configured port until the listener fails.
func (s *Server) Run() error {
	addr := fmt.Sprintf(":%d", s.cfg.Serve.Port)
	log.WithField("addr", addr).Info("relay: listening")
	return s.router.Run(addr)
}

func (s *Server) cors() gin.HandlerFunc {
	origin := s.cfg.Serve.CORSOrigin
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}

func (s *Server) handleStream(name string) gin.HandlerFunc {
	provider := s.providers[name]
	return func(c *gin.Context) {
		entry := log.WithField("endpoint", name).WithField("request_id", uuid.NewString())
		started := time.Now()

		var req ChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			entry.WithError(err).Warn("relay: bad request body")
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		// The same budget the client applies; kept here too so a direct
		// caller cannot push an unbounded history upstream.
		messages := chat.TrimHistory(req.Messages, s.charLimit())
		entry.WithField("messages", len(messages)).Info("relay: stream start")

		stream, err := provider.Stream(c.Request.Context(), llm.Request{
			Messages:     messages,
			Model:        req.Model,
			SystemPrompt: req.SystemPrompt,
			MaxTokens:    maxTokens(req.MaxTokens, s.cfg.MaxTokens),
			Temperature:  req.Temperature,
		})

		w := sse.NewWriter(c.Writer)
		if err != nil {
			entry.WithError(err).Error("relay: provider refused stream")
			w.WriteChunk(sse.Chunk{Error: err.Error()})
			w.WriteDone()
			return
		}
		defer stream.Close()

		for {
			event, err := stream.Recv()
			if err == io.EOF {
				break
			}
			if err != nil {
				entry.WithError(err).Error("relay: stream receive failed")
				w.WriteChunk(sse.Chunk{Error: err.Error()})
				break
			}
			if event.Type == llm.EventDone {
				break
			}
			switch event.Type {
			case llm.EventTextDelta:
				if err := w.WriteChunk(sse.Chunk{Text: event.Text}); err != nil {
					entry.WithError(err).Warn("relay: client went away")
					return
				}
			case llm.EventError:
				msg := "unknown provider error"
				if event.Err != nil {
					msg = event.Err.Error()
				}
				entry.WithField("error", msg).Error("relay: provider error")
				w.WriteChunk(sse.Chunk{Error: msg})
			}
		}

		w.WriteDone()
		entry.WithField("duration", time.Since(started).Round(time.Millisecond).String()).Info("relay: stream done")
	}
}

func (s *Server) charLimit() int {
	if s.cfg.CharLimit > 0 {
		return s.cfg.CharLimit
	}
	return chat.DefaultCharLimit
}

func maxTokens(requested, configured int) int {
	if requested > 0 {
		return requested
	}
	return configured
}
