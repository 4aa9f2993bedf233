package llmconfig

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/openai/openai-go/v3"
	openaioption "github.com/openai/openai-go/v3/option"
	"google.golang.org/genai"
)

const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
)

// Completer sends one prompt to a completion provider.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
}

// CompletionRequest is a single user-role prompt.
type CompletionRequest struct {
	Model     string
	MaxTokens int64
	Prompt    string
}

// Completion holds the provider's content blocks in order.
type Completion struct {
	Content []ContentBlock
}

// ContentBlock is one typed piece of model output. Only "text" blocks carry Text.
type ContentBlock struct {
	Type string
	Text string
}

// NewCompleter builds the client for a provider name. Clients never retry.
func NewCompleter(provider, apiKey, baseURL string) (Completer, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "", ProviderAnthropic:
		return NewAnthropicCompleter(apiKey, baseURL), nil
	case ProviderOpenAI:
		return NewOpenAICompleter(apiKey, baseURL), nil
	case ProviderGemini:
		return NewGeminiCompleter(apiKey, baseURL), nil
	default:
		return nil, fmt.Errorf("unsupported provider %q (supported: anthropic, openai, gemini)", provider)
	}
}

type AnthropicCompleter struct {
	client anthropic.Client
}

func NewAnthropicCompleter(apiKey, baseURL string) *AnthropicCompleter {
	opts := []anthropicoption.RequestOption{
		anthropicoption.WithAPIKey(apiKey),
		anthropicoption.WithMaxRetries(0),
	}
	if v := strings.TrimSpace(baseURL); v != "" {
		opts = append(opts, anthropicoption.WithBaseURL(v))
	}
	return &AnthropicCompleter{client: anthropic.NewClient(opts...)}
}

func (a *AnthropicCompleter) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: req.MaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic messages: %w", err)
	}
	out := &Completion{Content: make([]ContentBlock, 0, len(msg.Content))}
	for _, block := range msg.Content {
		out.Content = append(out.Content, ContentBlock{Type: string(block.Type), Text: block.Text})
	}
	return out, nil
}

type OpenAICompleter struct {
	client openai.Client
}

func NewOpenAICompleter(apiKey, baseURL string) *OpenAICompleter {
	opts := []openaioption.RequestOption{
		openaioption.WithAPIKey(apiKey),
		openaioption.WithMaxRetries(0),
	}
	if v := strings.TrimSpace(baseURL); v != "" {
		opts = append(opts, openaioption.WithBaseURL(v))
	}
	return &OpenAICompleter{client: openai.NewClient(opts...)}
}

// Complete maps each returned choice to one text block.
func (o *OpenAICompleter) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(req.Model),
		MaxCompletionTokens: openai.Int(req.MaxTokens),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(req.Prompt),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai chat completions: %w", err)
	}
	out := &Completion{Content: make([]ContentBlock, 0, len(resp.Choices))}
	for _, choice := range resp.Choices {
		out.Content = append(out.Content, ContentBlock{Type: "text", Text: choice.Message.Content})
	}
	return out, nil
}

// GeminiCompleter creates its client on first use; genai rejects an empty key
// at construction time and that must surface as a call failure.
type GeminiCompleter struct {
	client func() (*genai.Client, error)
}

func NewGeminiCompleter(apiKey, baseURL string) *GeminiCompleter {
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if v := strings.TrimSpace(baseURL); v != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: v}
	}
	return &GeminiCompleter{
		client: sync.OnceValues(func() (*genai.Client, error) {
			return genai.NewClient(context.Background(), cfg)
		}),
	}
}

func (g *GeminiCompleter) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	client, err := g.client()
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	resp, err := client.Models.GenerateContent(ctx, req.Model, genai.Text(req.Prompt), &genai.GenerateContentConfig{
		MaxOutputTokens: clampInt32(req.MaxTokens),
	})
	if err != nil {
		return nil, fmt.Errorf("gemini generate content: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return &Completion{}, nil
	}
	return &Completion{Content: []ContentBlock{{Type: "text", Text: resp.Text()}}}, nil
}

// clampInt32 narrows n for providers that take an int32 token limit.
func clampInt32(n int64) int32 {
	switch {
	case n > math.MaxInt32:
		return math.MaxInt32
	case n < math.MinInt32:
		return math.MinInt32
	}
	return int32(n)
}

// errNoTextBlock marks a completion whose first block is missing or not text.
var errNoTextBlock = errors.New("bad llm completion: first content block is not text")

func firstText(c *Completion) (string, error) {
	if c == nil || len(c.Content) == 0 || c.Content[0].Type != "text" {
		return "", errNoTextBlock
	}
	return c.Content[0].Text, nil
}
