package llmconfig

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type stubCompleter struct {
	mu       sync.Mutex
	text     string
	blocks   []ContentBlock
	err      error
	panicMsg string
	requests []CompletionRequest
}

func (s *stubCompleter) Complete(_ context.Context, req CompletionRequest) (*Completion, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	if s.err != nil {
		return nil, s.err
	}
	if s.blocks != nil {
		return &Completion{Content: s.blocks}, nil
	}
	return &Completion{Content: []ContentBlock{{Type: "text", Text: s.text}}}, nil
}

func (s *stubCompleter) lastRequest(t *testing.T) CompletionRequest {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.requests)
	return s.requests[len(s.requests)-1]
}

type recordedOutcome struct {
	outcome string
	elapsed time.Duration
}

type stubRecorder struct {
	got []recordedOutcome
}

func (r *stubRecorder) ObserveGeneration(outcome string, elapsed time.Duration) {
	r.got = append(r.got, recordedOutcome{outcome: outcome, elapsed: elapsed})
}

func newTestEngine(t *testing.T, stub *stubCompleter, opts ...Option) (*gin.Engine, *bytes.Buffer) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var logs bytes.Buffer
	r := gin.New()
	r.GET("/users", func(c *gin.Context) { c.JSON(http.StatusOK, []any{}) })
	r.POST("/users", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{}) })
	r.GET("/users/:id", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{}) })

	all := append([]Option{WithCompleter(stub), WithLogger(log.New(&logs, "", 0))}, opts...)
	h, err := New(all...)
	require.NoError(t, err)
	h.Mount(r)
	return r, &logs
}

func postConfig(r http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, ConfigPath, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGin_PassesThroughOtherPaths(t *testing.T) {
	stub := &stubCompleter{text: `{"config":{"url":"/users","method":"GET"}}`}
	r, _ := newTestEngine(t, stub)
	r.POST("/other", func(c *gin.Context) { c.String(http.StatusTeapot, "next") })

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		req := httptest.NewRequest(method, "/other", strings.NewReader(`{"input":"Get all users"}`))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if method == http.MethodPost {
			require.Equal(t, http.StatusTeapot, w.Code)
			require.Equal(t, "next", w.Body.String())
		} else {
			require.Equal(t, http.StatusNotFound, w.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "[]", w.Body.String())

	require.Empty(t, stub.requests)
}

func TestGin_MissingInput(t *testing.T) {
	stub := &stubCompleter{}
	r, _ := newTestEngine(t, stub)

	for _, body := range []string{`{}`, ``, `not json`, `{"input":""}`, `{"input":null}`, `{"input":false}`, `{"input":0}`, `[1,2]`} {
		w := postConfig(r, body)
		require.Equal(t, http.StatusBadRequest, w.Code, "body %q", body)
		require.JSONEq(t, `{"error":"Missing input in request body"}`, w.Body.String())
	}
	require.Empty(t, stub.requests)
}

func TestGin_NonStringInputIsRenderedAsText(t *testing.T) {
	stub := &stubCompleter{text: `{"config":{"url":"/users","method":"GET"}}`}
	r, _ := newTestEngine(t, stub)

	cases := map[string]string{
		`{"input":42}`:               "42",
		`{"input":-1.5}`:             "-1.5",
		`{"input":true}`:             "true",
		`{"input":{"user": "Ada"}}`:  `{"user":"Ada"}`,
		`{"input":["list","users"]}`: `["list","users"]`,
		`{"input":"Get all users"}`:  "Get all users",
	}
	for body, want := range cases {
		w := postConfig(r, body)
		require.Equal(t, http.StatusOK, w.Code, "body %s", body)
		require.Contains(t, stub.lastRequest(t).Prompt, "User Request:\n"+want+"\n", "body %s", body)
	}
}

func TestGin_Success(t *testing.T) {
	stub := &stubCompleter{text: `{"config":{"url":"/users","method":"GET"}}`}
	r, _ := newTestEngine(t, stub)

	w := postConfig(r, `{"input":"Get all users"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, `{"config":{"url":"/users","method":"GET"}}`, w.Body.String())
	require.Contains(t, w.Header().Get("Content-Type"), "application/json")
}

func TestGin_SuccessRelaysOptionalMembers(t *testing.T) {
	stub := &stubCompleter{text: `{"config":{"url":"/users/123","method":"PUT","params":{"id":"123"},"query":{"notify":true},"body":{"name":"Ada","tags":["a",1,null]}}}`}
	r, _ := newTestEngine(t, stub)

	w := postConfig(r, `{"input":"Rename user 123 to Ada"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, stub.text, w.Body.String())
}

func TestGin_SuccessRelaysReplyVerbatim(t *testing.T) {
	reply := `{"config":{"url":"/search?a=1&b=<x>","method":"GET","headers":{"X-Trace":"1"}},"explanation":"lists users"}`
	stub := &stubCompleter{text: reply}
	r, _ := newTestEngine(t, stub)

	w := postConfig(r, `{"input":"Search for x"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, reply, w.Body.String())
	require.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
}

func TestGin_SuccessCompactsReply(t *testing.T) {
	stub := &stubCompleter{text: "\n{\n  \"config\": {\"url\": \"/posts\", \"method\": \"POST\", \"body\": {\"title\": \"a b\", \"n\": 1.50}}\n}\n"}
	r, _ := newTestEngine(t, stub)

	w := postConfig(r, `{"input":"Create a post"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, `{"config":{"url":"/posts","method":"POST","body":{"title":"a b","n":1.50}}}`, w.Body.String())
}

func TestGin_PromptAndRequestShape(t *testing.T) {
	stub := &stubCompleter{text: `{"config":{"url":"/users/7","method":"GET"}}`}
	r, _ := newTestEngine(t, stub, WithModel("test-model"))

	w := postConfig(r, `{"input":"Get user with ID 7"}`)
	require.Equal(t, http.StatusOK, w.Code)

	req := stub.lastRequest(t)
	require.Equal(t, "test-model", req.Model)
	require.Equal(t, int64(1024), req.MaxTokens)
	require.Contains(t, req.Prompt, "GET /users/:id (params: id)")
	require.Contains(t, req.Prompt, "POST /users\n")
	require.Contains(t, req.Prompt, "User Request:\nGet user with ID 7\n")
	require.NotContains(t, req.Prompt, "{{routes}}")
	require.NotContains(t, req.Prompt, "{{userInput}}")
}

func TestGin_InvalidReplies(t *testing.T) {
	cases := map[string]*stubCompleter{
		"not json":        {text: "not json"},
		"missing method":  {text: `{"config":{"url":"/users"}}`},
		"missing url":     {text: `{"config":{"method":"GET"}}`},
		"empty url":       {text: `{"config":{"url":"","method":"GET"}}`},
		"null config":     {text: `{"config":null}`},
		"no config":       {text: `{"url":"/users","method":"GET"}`},
		"json null":       {text: `null`},
		"no blocks":       {blocks: []ContentBlock{}},
		"non-text block":  {blocks: []ContentBlock{{Type: "tool_use"}}},
		"fenced json":     {text: "```json\n{\"config\":{\"url\":\"/users\",\"method\":\"GET\"}}\n```"},
		"numeric method":  {text: `{"config":{"url":"/users","method":1}}`},
		"trailing tokens": {text: `{"config":{"url":"/users","method":"GET"}} extra`},
	}
	for name, stub := range cases {
		t.Run(name, func(t *testing.T) {
			r, logs := newTestEngine(t, stub)
			w := postConfig(r, `{"input":"Get all users"}`)
			require.Equal(t, http.StatusInternalServerError, w.Code)
			require.JSONEq(t, `{"error":"Invalid response from LLM"}`, w.Body.String())
			require.Contains(t, logs.String(), "Failed to parse LLM response")
		})
	}
}

func TestGin_ProviderFailure(t *testing.T) {
	stub := &stubCompleter{err: errors.New("dial tcp: connection refused")}
	r, logs := newTestEngine(t, stub)

	w := postConfig(r, `{"input":"Get all users"}`)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.JSONEq(t, `{"error":"Failed to generate configuration"}`, w.Body.String())
	require.Contains(t, logs.String(), "connection refused")
}

func TestGin_PanicIsContained(t *testing.T) {
	stub := &stubCompleter{panicMsg: "boom"}
	r, logs := newTestEngine(t, stub)

	w := postConfig(r, `{"input":"Get all users"}`)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.JSONEq(t, `{"error":"Failed to generate configuration"}`, w.Body.String())
	require.Contains(t, logs.String(), "boom")
}

func TestGin_Idempotent(t *testing.T) {
	stub := &stubCompleter{text: `{"config":{"url":"/posts","method":"POST","body":{"title":"x"}}}`}
	r, _ := newTestEngine(t, stub)

	first := postConfig(r, `{"input":"Create a post"}`)
	second := postConfig(r, `{"input":"Create a post"}`)
	require.Equal(t, first.Code, second.Code)
	require.Equal(t, first.Body.String(), second.Body.String())
	require.Len(t, stub.requests, 2)
	require.Equal(t, stub.requests[0], stub.requests[1])
}

func TestGin_ConcurrentRequests(t *testing.T) {
	stub := &stubCompleter{text: `{"config":{"url":"/users","method":"GET"}}`}
	r, _ := newTestEngine(t, stub)

	var wg sync.WaitGroup
	codes := make([]int, 8)
	for i := range codes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i] = postConfig(r, `{"input":"Get all users"}`).Code
		}(i)
	}
	wg.Wait()
	for _, code := range codes {
		require.Equal(t, http.StatusOK, code)
	}
}

func TestGin_RecordsOutcomes(t *testing.T) {
	stub := &stubCompleter{text: `{"config":{"url":"/users","method":"GET"}}`}
	rec := &stubRecorder{}
	r, _ := newTestEngine(t, stub, WithMetrics(rec))

	postConfig(r, `{"input":"Get all users"}`)
	postConfig(r, `{}`)
	stub.text = "not json"
	postConfig(r, `{"input":"Get all users"}`)
	stub.err = errors.New("unauthorized")
	postConfig(r, `{"input":"Get all users"}`)

	got := make([]string, 0, len(rec.got))
	for _, o := range rec.got {
		got = append(got, o.outcome)
	}
	require.Equal(t, []string{OutcomeOK, OutcomeBadInput, OutcomeInvalidResponse, OutcomeProviderError}, got)
}

func TestMiddleware_NetHTTP(t *testing.T) {
	stub := &stubCompleter{text: `{"config":{"url":"/users","method":"GET"}}`}
	h, err := New(
		WithCompleter(stub),
		WithLogger(log.New(io.Discard, "", 0)),
		WithRouteTable(Stack{
			Route(RouteDescriptor{Method: "get", Path: "/users"}),
			Route(RouteDescriptor{Method: "get", Path: "/users/:id"}),
		}),
	)
	require.NoError(t, err)

	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		nextCalled = true
		w.WriteHeader(http.StatusNoContent)
	})
	srv := h.Middleware(next)

	w := postConfig(srv, `{"input":"Get all users"}`)
	require.False(t, nextCalled)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, `{"config":{"url":"/users","method":"GET"}}`, w.Body.String())
	require.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	require.Contains(t, stub.lastRequest(t).Prompt, "GET /users/:id (params: id)")

	stub.text = `{"config":{"url":"/users?role=a&b","method":"GET","headers":{"Accept":"<json>"}},"note":"x"}`
	w = postConfig(srv, `{"input":"Get admins"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, stub.text, w.Body.String())

	w = postConfig(srv, `{}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.JSONEq(t, `{"error":"Missing input in request body"}`, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	w = httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	require.True(t, nextCalled)
	require.Equal(t, http.StatusNoContent, w.Code)
}

func TestNew_Defaults(t *testing.T) {
	h, err := New(WithCompleter(&stubCompleter{}))
	require.NoError(t, err)
	o := h.Options()
	require.Equal(t, DefaultAPIKeyEnvVar, o.APIKeyEnvVar)
	require.Equal(t, DefaultModel, o.Model)
	require.Equal(t, DefaultPromptTemplate, o.PromptTemplate)
	require.Equal(t, ProviderAnthropic, o.Provider)
	require.Equal(t, int64(1024), o.MaxTokens)
	require.NotNil(t, o.Logger)
}

func TestNew_ReadsKeyFromConfiguredEnvVar(t *testing.T) {
	t.Setenv("MY_LLM_KEY", "sk-test")
	h, err := New(WithAPIKeyEnvVar("MY_LLM_KEY"), WithProvider(ProviderOpenAI, "http://127.0.0.1:1"))
	require.NoError(t, err)
	require.IsType(t, &OpenAICompleter{}, h.completer)
	require.Equal(t, "MY_LLM_KEY", h.Options().APIKeyEnvVar)
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := New(WithProvider("mistral", ""))
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported provider")
}
