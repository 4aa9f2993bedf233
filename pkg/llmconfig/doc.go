/*
Package llmconfig provides a gin middleware that turns a natural-language
instruction into an HTTP call descriptor for the host application.

The middleware intercepts POST /_llm/config. It renders the host's route table
into a prompt, asks a completion provider (Anthropic by default) for a JSON
reply and relays the validated reply to the caller:

	{"config": {"url": "/users/42", "method": "GET", "query": {"expand": "posts"}}}

The descriptor is never executed; the caller issues the request itself. Every
other path passes straight through to the rest of the chain.

# Basic Usage

	r := gin.New()
	r.GET("/users", listUsers)
	r.GET("/users/:id", getUser)

	h, err := llmconfig.New(llmconfig.WithModel("claude-3-5-sonnet-20241022"))
	if err != nil {
		log.Fatal(err)
	}
	h.Mount(r)

The API key is read from the environment variable named by Options.APIKeyEnvVar
(ANTHROPIC_API_KEY unless overridden). Provide a Completer with WithCompleter to
use a different backend or a stub in tests.

# Reply contract

The model must answer with an object holding a "config" object whose "url" and
"method" are non-empty strings. Once validated, the reply is relayed as the
model produced it, minus insignificant whitespace: members other than "url" and
"method" are passed on untouched and their shape is left untyped.
*/
package llmconfig
