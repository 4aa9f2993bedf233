package server

import (
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/r9s-ai/gin-llmconfig/internal/logx"
	"github.com/r9s-ai/gin-llmconfig/internal/requestid"
	"github.com/r9s-ai/gin-llmconfig/pkg/llmconfig"
)

func requestLogger(l *log.Logger, color bool) gin.HandlerFunc {
	if l == nil {
		l = log.New(os.Stdout, "", 0)
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		latency := time.Since(start)

		l.Println(logx.FormatRequestLine(time.Now(), status, latency, c.ClientIP(), c.Request.Method, c.Request.URL.Path, color,
			logx.Field{Key: "request_id", Value: c.GetString(requestid.HeaderKey)},
			logx.Field{Key: "outcome", Value: c.GetString(llmconfig.ContextKeyOutcome)},
			logx.Field{Key: "model", Value: c.GetString(llmconfig.ContextKeyModel)},
		))
	}
}
