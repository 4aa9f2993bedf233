package llmconfig

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	maxInputBodyBytes = 1 << 20
	jsonContentType   = "application/json; charset=utf-8"
)

// Outcome labels, one per response shape.
const (
	OutcomeOK              = "ok"
	OutcomeBadInput        = "bad_input"
	OutcomeInvalidResponse = "invalid_response"
	OutcomeProviderError   = "provider_error"
)

// Context keys set on the gin.Context of every /_llm/config request.
const (
	ContextKeyOutcome = "llmconfig.outcome"
	ContextKeyModel   = "llmconfig.model"
)

const (
	msgMissingInput    = "Missing input in request body"
	msgInvalidResponse = "Invalid response from LLM"
	msgGenerateFailed  = "Failed to generate configuration"
)

// Recorder observes handled /_llm/config requests.
type Recorder interface {
	ObserveGeneration(outcome string, elapsed time.Duration)
}

// Handler answers /_llm/config. It holds only immutable configuration and the
// provider client, so one Handler serves overlapping requests.
type Handler struct {
	opts      Options
	completer Completer
	routes    RouteTable
	metrics   Recorder
}

// New creates a Handler. Without WithCompleter, the client for Options.Provider
// is built with the key found in Options.APIKeyEnvVar.
func New(opts ...Option) (*Handler, error) {
	h := &Handler{}
	for _, opt := range opts {
		opt(h)
	}
	applyDefaults(&h.opts)

	h.completer = h.opts.Completer
	if h.completer == nil {
		c, err := NewCompleter(h.opts.Provider, os.Getenv(h.opts.APIKeyEnvVar), h.opts.BaseURL)
		if err != nil {
			return nil, err
		}
		h.completer = c
	}
	return h, nil
}

// Options returns the effective configuration.
func (h *Handler) Options() Options { return h.opts }

// Result is a response ready to be written.
type Result struct {
	Status  int
	Body    any
	Outcome string
}

func errorResult(status int, outcome, msg string) Result {
	return Result{Status: status, Body: gin.H{"error": msg}, Outcome: outcome}
}

// JSON returns the response body. A generated config is written exactly as it
// was validated; it is never decoded and encoded again.
func (r Result) JSON() ([]byte, error) {
	if cfg, ok := r.Body.(*GeneratedConfig); ok && cfg.raw != nil {
		return cfg.raw, nil
	}
	return json.Marshal(r.Body)
}

func (h *Handler) encode(res Result) (int, []byte) {
	b, err := res.JSON()
	if err != nil {
		h.opts.Logger.Printf("LLM Config Handler Error: encode response: %v", err)
		b, _ = json.Marshal(gin.H{"error": msgGenerateFailed})
		return http.StatusInternalServerError, b
	}
	return res.Status, b
}

// Generate runs one request through prompt building, the completion call and
// reply validation. It never panics and never returns an error: every failure
// maps to a Result.
func (h *Handler) Generate(ctx context.Context, input string, routes RouteTable) (res Result) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			h.opts.Logger.Printf("LLM Config Handler Error: panic: %v", p)
			res = errorResult(http.StatusInternalServerError, OutcomeProviderError, msgGenerateFailed)
		}
		if h.metrics != nil {
			h.metrics.ObserveGeneration(res.Outcome, time.Since(start))
		}
	}()

	if input == "" {
		return errorResult(http.StatusBadRequest, OutcomeBadInput, msgMissingInput)
	}

	var table []RouteDescriptor
	if routes != nil {
		table = routes.ListRoutes()
	}
	prompt := BuildPrompt(h.opts.PromptTemplate, table, input)

	completion, err := h.completer.Complete(ctx, CompletionRequest{
		Model:     h.opts.Model,
		MaxTokens: h.opts.MaxTokens,
		Prompt:    prompt,
	})
	if err != nil {
		h.opts.Logger.Printf("LLM Config Handler Error: %v", err)
		return errorResult(http.StatusInternalServerError, OutcomeProviderError, msgGenerateFailed)
	}

	cfg, err := parseCompletion(completion)
	if err != nil {
		h.opts.Logger.Printf("Failed to parse LLM response: %v", err)
		return errorResult(http.StatusInternalServerError, OutcomeInvalidResponse, msgInvalidResponse)
	}
	return Result{Status: http.StatusOK, Body: cfg, Outcome: OutcomeOK}
}

func parseCompletion(c *Completion) (*GeneratedConfig, error) {
	text, err := firstText(c)
	if err != nil {
		return nil, err
	}
	return ParseGeneratedConfig(text)
}

// Mount installs the handler on engine, using the engine's own route table
// unless WithRouteTable was given. Global middleware also runs for unmatched
// paths, so /_llm/config needs no route of its own.
func (h *Handler) Mount(engine *gin.Engine) {
	engine.Use(h.Gin(GinRoutes(engine)))
}

// Gin returns the per-request gin middleware. routes is used when the Handler
// has no route table of its own.
func (h *Handler) Gin(routes RouteTable) gin.HandlerFunc {
	if h.routes != nil {
		routes = h.routes
	}
	return func(c *gin.Context) {
		if c.Request.URL.Path != ConfigPath {
			c.Next()
			return
		}
		res := h.Generate(c.Request.Context(), readInput(c.Request), routes)
		c.Set(ContextKeyOutcome, res.Outcome)
		c.Set(ContextKeyModel, h.opts.Model)
		status, body := h.encode(res)
		c.Abort()
		c.Data(status, jsonContentType, body)
	}
}

// Middleware is the net/http form of Gin. The route table must be supplied
// with WithRouteTable.
func (h *Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != ConfigPath {
			next.ServeHTTP(w, r)
			return
		}
		res := h.Generate(r.Context(), readInput(r), h.routes)
		status, body := h.encode(res)
		w.Header().Set("Content-Type", jsonContentType)
		w.WriteHeader(status)
		if _, err := w.Write(body); err != nil {
			h.opts.Logger.Printf("LLM Config Handler Error: write response: %v", err)
		}
	})
}

// readInput returns the "input" member of a JSON body as text, or "" when the
// body is missing or unparseable or the input is absent or falsy (null, false,
// 0, ""). Other numbers and true keep their JSON spelling; objects and arrays
// are inserted as compact JSON.
func readInput(r *http.Request) string {
	if r == nil || r.Body == nil {
		return ""
	}
	b, err := ioReadAllLimit(r.Body, maxInputBodyBytes)
	if err != nil || len(bytes.TrimSpace(b)) == 0 {
		return ""
	}
	var body map[string]json.RawMessage
	if err := json.Unmarshal(b, &body); err != nil {
		return ""
	}
	return inputText(body["input"])
}

func inputText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return ""
	}
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return ""
	case json.Number:
		if f, err := t.Float64(); err == nil && f == 0 {
			return ""
		}
		return t.String()
	default:
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return ""
		}
		return buf.String()
	}
}

func ioReadAllLimit(rc io.ReadCloser, limit int64) ([]byte, error) {
	defer func() { _ = rc.Close() }()
	var buf bytes.Buffer
	if _, err := io.CopyN(&buf, rc, limit+1); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if int64(buf.Len()) > limit {
		return nil, fmt.Errorf("request body larger than %d bytes", limit)
	}
	return buf.Bytes(), nil
}
