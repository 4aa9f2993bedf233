package llmconfig

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema/generated_config.json
var generatedConfigSchema []byte

var loadSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewBytesLoader(generatedConfigSchema))
})

// GeneratedConfig is a validated model reply. Config is a typed view of the
// reply; the caller receives the reply itself, including members the view
// does not name.
type GeneratedConfig struct {
	Config Descriptor `json:"config"`

	raw json.RawMessage
}

// Raw returns the reply as the model wrote it, with insignificant whitespace
// removed.
func (g *GeneratedConfig) Raw() json.RawMessage { return g.raw }

func (g *GeneratedConfig) MarshalJSON() ([]byte, error) {
	if g.raw == nil {
		type view GeneratedConfig
		return json.Marshal((*view)(g))
	}
	return g.raw, nil
}

// Descriptor describes an HTTP call the caller is expected to issue.
// Params, Query and Body are never inspected.
type Descriptor struct {
	URL    string          `json:"url"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
	Query  json.RawMessage `json:"query,omitempty"`
	Body   json.RawMessage `json:"body,omitempty"`
}

// ParseGeneratedConfig decodes a model reply. It fails when text is not JSON or
// lacks a config object with non-empty url and method strings.
func ParseGeneratedConfig(text string) (*GeneratedConfig, error) {
	schema, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("load reply schema: %w", err)
	}
	res, err := schema.Validate(gojsonschema.NewStringLoader(text))
	if err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}
	if !res.Valid() {
		if len(res.Errors()) == 0 {
			return nil, errors.New("invalid reply structure")
		}
		return nil, fmt.Errorf("invalid reply structure: %s", res.Errors()[0].String())
	}
	var out GeneratedConfig
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(text)); err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}
	out.raw = buf.Bytes()
	return &out, nil
}
