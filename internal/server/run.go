package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/r9s-ai/gin-llmconfig/internal/config"
	"github.com/r9s-ai/gin-llmconfig/internal/logx"
	"github.com/r9s-ai/gin-llmconfig/internal/metrics"
	"github.com/r9s-ai/gin-llmconfig/pkg/llmconfig"
)

func Run(cfgPath string) error {
	startedAt := time.Now().Unix()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	accessLogger, accessClose, accessColor, err := openAccessLogger(cfg)
	if err != nil {
		return fmt.Errorf("init access log: %w", err)
	}
	if accessClose != nil {
		defer func() { _ = accessClose.Close() }()
	}

	pidCleanup, err := writePIDFile(cfg)
	if err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	if pidCleanup != nil {
		defer func() { _ = pidCleanup.Close() }()
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	h, err := BuildHandler(cfg, m)
	if err != nil {
		return fmt.Errorf("build llm config handler: %w", err)
	}
	st := &state{}
	st.SetHandler(h)
	st.SetStartedAtUnix(startedAt)

	reload := newReloader(cfg, st, m)
	installReloadSignalHandler(reload)
	if path := strings.TrimSpace(cfg.LLM.PromptTemplateFile); path != "" {
		w, err := watchPromptTemplate(path, reload)
		if err != nil {
			return fmt.Errorf("watch prompt template: %w", err)
		}
		defer func() { _ = w.Close() }()
	}

	gin.SetMode(gin.ReleaseMode)
	engine := NewRouter(cfg, st, m, accessLogger, accessColor)

	srv := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           engine,
		ReadHeaderTimeout: time.Duration(cfg.Server.ReadTimeoutMs) * time.Millisecond,
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeoutMs) * time.Millisecond,
		WriteTimeout:      time.Duration(cfg.Server.WriteTimeoutMs) * time.Millisecond,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Printf("llmconfig listening on %s (provider=%s model=%s)", cfg.Server.Listen, cfg.LLM.Provider, cfg.LLM.Model)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("run: %w", err)
	case <-ctx.Done():
	}

	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// BuildHandler creates an llmconfig handler from cfg. rec may be nil.
func BuildHandler(cfg *config.Config, rec *metrics.Metrics) (*llmconfig.Handler, error) {
	tmpl, err := cfg.PromptTemplate()
	if err != nil {
		return nil, err
	}
	opts := []llmconfig.Option{
		llmconfig.WithOptions(llmconfig.Options{
			APIKeyEnvVar:   cfg.LLM.APIKeyEnv,
			Model:          cfg.LLM.Model,
			PromptTemplate: tmpl,
			Provider:       cfg.LLM.Provider,
			BaseURL:        cfg.LLM.BaseURL,
			MaxTokens:      cfg.LLM.MaxTokens,
		}),
	}
	if rec != nil {
		opts = append(opts, llmconfig.WithMetrics(rec))
	}
	return llmconfig.New(opts...)
}

// newReloader returns a function that rebuilds the handler from cfg. Failed
// reloads keep the current handler.
func newReloader(cfg *config.Config, st *state, m *metrics.Metrics) func() error {
	var mu sync.Mutex
	return func() error {
		mu.Lock()
		defer mu.Unlock()
		h, err := BuildHandler(cfg, m)
		if err != nil {
			return fmt.Errorf("reload: %w", err)
		}
		st.SetHandler(h)
		return nil
	}
}

func installReloadSignalHandler(reload func() error) {
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGHUP)
	go func() {
		for range ch {
			if err := reload(); err != nil {
				log.Printf("reload failed: %v", err)
				continue
			}
			log.Printf("reload ok")
		}
	}()
}

func openAccessLogger(cfg *config.Config) (*log.Logger, io.Closer, bool, error) {
	if cfg == nil || !cfg.Logging.AccessLog {
		return nil, nil, false, nil
	}

	path := strings.TrimSpace(cfg.Logging.AccessLogPath)
	if path == "" {
		return log.New(os.Stdout, "", 0), nil, logx.ColorEnabled(), nil
	}

	dir := filepath.Dir(path)
	if strings.TrimSpace(dir) != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, nil, false, err
		}
	}
	// #nosec G304 -- access_log_path comes from trusted config/env.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, false, err
	}
	return log.New(f, "", 0), f, false, nil
}

type closerFunc func() error

func (c closerFunc) Close() error { return c() }

func writePIDFile(cfg *config.Config) (io.Closer, error) {
	if cfg == nil {
		return nil, nil
	}
	path := strings.TrimSpace(cfg.Server.PidFile)
	if path == "" {
		return nil, nil
	}
	dir := filepath.Dir(path)
	if strings.TrimSpace(dir) != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, err
		}
	}

	tmp := path + ".tmp"
	pid := strconv.Itoa(os.Getpid()) + "\n"
	// #nosec G304 -- pid_file comes from trusted config/env.
	if err := os.WriteFile(tmp, []byte(pid), 0o600); err != nil {
		return nil, err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return nil, err
	}
	return closerFunc(func() error { return os.Remove(path) }), nil
}
