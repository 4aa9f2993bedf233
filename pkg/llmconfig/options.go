package llmconfig

import (
	"log"
	"strings"
)

const (
	// ConfigPath is the only path the middleware answers on.
	ConfigPath = "/_llm/config"

	DefaultAPIKeyEnvVar       = "ANTHROPIC_API_KEY"
	DefaultModel              = "claude-3-5-sonnet-20241022"
	DefaultProvider           = ProviderAnthropic
	DefaultMaxTokens    int64 = 1024
)

// DefaultPromptTemplate is used when Options.PromptTemplate is empty.
// {{routes}} and {{userInput}} are substituted once each.
const DefaultPromptTemplate = `
You are an API configuration assistant. Based on the available routes and user request, generate an appropriate HTTP configuration.

Available API Routes:
{{routes}}

User Request:
{{userInput}}

Generate an HTTP configuration object that matches the user's request using the available routes.
The response must be valid JSON with this exact structure:
{
  "config": {
    "url": string,
    "method": string,
    "params": object (optional),
    "query": object (optional),
    "body": any (optional)
  }
}

Only respond with the JSON object, no additional text.
`

// Options configures a Handler. It is copied on New and never changes afterwards.
type Options struct {
	// APIKeyEnvVar names the environment variable holding the provider credential.
	APIKeyEnvVar string
	// Model is the completion model identifier.
	Model string
	// PromptTemplate must contain the {{routes}} and {{userInput}} placeholders.
	PromptTemplate string
	// Provider selects the built-in Completer: "anthropic", "openai" or "gemini".
	// Ignored when Completer is set.
	Provider string
	// BaseURL overrides the provider endpoint (useful for gateways).
	BaseURL string
	// MaxTokens caps the completion size.
	MaxTokens int64
	// Logger receives failure details. Defaults to log.Default().
	Logger *log.Logger
	// Completer replaces the built-in provider client.
	Completer Completer
}

// Option is a functional option for configuring a Handler.
type Option func(*Handler)

// WithOptions applies a full Options struct.
func WithOptions(o Options) Option {
	return func(h *Handler) {
		h.opts = o
	}
}

func WithModel(model string) Option {
	return func(h *Handler) {
		h.opts.Model = model
	}
}

func WithPromptTemplate(tmpl string) Option {
	return func(h *Handler) {
		h.opts.PromptTemplate = tmpl
	}
}

func WithAPIKeyEnvVar(name string) Option {
	return func(h *Handler) {
		h.opts.APIKeyEnvVar = name
	}
}

// WithProvider selects a built-in Completer and an optional endpoint override.
func WithProvider(provider, baseURL string) Option {
	return func(h *Handler) {
		h.opts.Provider = provider
		h.opts.BaseURL = baseURL
	}
}

func WithMaxTokens(n int64) Option {
	return func(h *Handler) {
		h.opts.MaxTokens = n
	}
}

func WithLogger(l *log.Logger) Option {
	return func(h *Handler) {
		h.opts.Logger = l
	}
}

// WithCompleter sets a custom Completer implementation.
func WithCompleter(c Completer) Option {
	return func(h *Handler) {
		h.opts.Completer = c
	}
}

// WithRouteTable fixes the route source used for prompts. Mount supplies the
// engine's own table when none is set.
func WithRouteTable(rt RouteTable) Option {
	return func(h *Handler) {
		h.routes = rt
	}
}

// WithMetrics records one observation per handled /_llm/config request.
func WithMetrics(r Recorder) Option {
	return func(h *Handler) {
		h.metrics = r
	}
}

func applyDefaults(o *Options) {
	if strings.TrimSpace(o.APIKeyEnvVar) == "" {
		o.APIKeyEnvVar = DefaultAPIKeyEnvVar
	}
	if strings.TrimSpace(o.Model) == "" {
		o.Model = DefaultModel
	}
	if o.PromptTemplate == "" {
		o.PromptTemplate = DefaultPromptTemplate
	}
	if strings.TrimSpace(o.Provider) == "" {
		o.Provider = DefaultProvider
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = DefaultMaxTokens
	}
	if o.Logger == nil {
		o.Logger = log.Default()
	}
}
