package server

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/r9s-ai/gin-llmconfig/internal/config"
	"github.com/r9s-ai/gin-llmconfig/internal/metrics"
	"github.com/r9s-ai/gin-llmconfig/internal/requestid"
	"github.com/r9s-ai/gin-llmconfig/internal/version"
	"github.com/r9s-ai/gin-llmconfig/pkg/llmconfig"
)

// NewRouter builds the demo host application. m may be nil when metrics are
// disabled; accessLogger may be nil to disable access logs.
func NewRouter(cfg *config.Config, st *state, m *metrics.Metrics, accessLogger *log.Logger, accessColor bool) *gin.Engine {
	r := gin.New()
	r.Use(requestid.Middleware())
	if accessLogger != nil {
		r.Use(requestLogger(accessLogger, accessColor))
	}
	r.Use(gin.Recovery())
	if m != nil {
		r.Use(m.Middleware(llmconfig.ConfigPath))
	}
	r.Use(st.llmConfigMiddleware(llmconfig.GinRoutes(r)))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "started_at": st.StartedAtUnix()})
	})
	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, version.Get())
	})
	if m != nil && cfg != nil && cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(m.Handler()))
	}

	registerDemoRoutes(r, newDemoStore())
	return r
}

// DemoRoutes returns the route table the demo server shows to the model,
// without starting anything.
func DemoRoutes(cfg *config.Config) llmconfig.RouteTable {
	var m *metrics.Metrics
	if cfg != nil && cfg.Metrics.Enabled {
		m = metrics.New()
	}
	return llmconfig.GinRoutes(NewRouter(cfg, &state{}, m, nil, false))
}
