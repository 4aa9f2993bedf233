package server

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/r9s-ai/gin-llmconfig/pkg/llmconfig"
)

// state holds the live llmconfig handler. Handlers are immutable; a reload
// builds a new one and swaps it in, so in-flight requests finish on the old one.
type state struct {
	mu        sync.RWMutex
	handler   *llmconfig.Handler
	startedAt int64
}

func (s *state) Handler() *llmconfig.Handler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handler
}

func (s *state) SetHandler(h *llmconfig.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

func (s *state) StartedAtUnix() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.startedAt
}

func (s *state) SetStartedAtUnix(ts int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startedAt = ts
}

// llmConfigMiddleware dispatches to whichever handler is current.
func (s *state) llmConfigMiddleware(routes llmconfig.RouteTable) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path != llmconfig.ConfigPath {
			c.Next()
			return
		}
		h := s.Handler()
		if h == nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "llm config handler not ready"})
			return
		}
		h.Gin(routes)(c)
	}
}
