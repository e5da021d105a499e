package fetch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// PluginFetchPath is the decoded path of the host's HTTP plugin entry point.
const PluginFetchPath = "/plugin:http|fetch"

const clientConfigSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "additionalProperties": false,
  "required": ["clientConfig"],
  "properties": {
    "clientConfig": {
      "type": "object",
      "required": ["url", "headers", "method"],
      "properties": {
        "url": {"type": "string"},
        "method": {"type": "string"},
        "headers": {
          "type": "array",
          "items": {
            "type": "array",
            "prefixItems": [{"type": "string"}, {"type": "string"}],
            "minItems": 2,
            "maxItems": 2
          }
        }
      }
    }
  }
}`

var pluginBodySchema = mustCompile(clientConfigSchema)

func mustCompile(src string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource("clientconfig.json", strings.NewReader(src)); err != nil {
		panic(fmt.Sprintf("add clientConfig schema: %v", err))
	}
	return compiler.MustCompile("clientconfig.json")
}

// ClientConfig is the request description the HTTP plugin accepts. Keys
// outside this set are dropped on re-serialization.
type ClientConfig struct {
	URL             string          `json:"url"`
	Method          string          `json:"method"`
	Headers         []HeaderTuple   `json:"headers"`
	Data            json.RawMessage `json:"data"`
	MaxRedirections json.RawMessage `json:"maxRedirections"`
	ConnectTimeout  json.RawMessage `json:"connectTimeout"`
	Proxy           json.RawMessage `json:"proxy"`
}

// PluginFetchBody wraps a ClientConfig.
type PluginFetchBody struct {
	ClientConfig ClientConfig `json:"clientConfig"`
}

// ParsePluginFetchBody decodes and strictly validates a plugin fetch body.
func ParsePluginFetchBody(raw []byte) (*PluginFetchBody, error) {
	var generic any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	if err := pluginBodySchema.Validate(generic); err != nil {
		return nil, fmt.Errorf("validate body: %w", err)
	}

	var body PluginFetchBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("decode clientConfig: %w", err)
	}
	return &body, nil
}

// Bytes marshals as a JSON array of numbers, the way the HTTP plugin
// carries request and response bodies.
type Bytes []byte

// MarshalJSON implements json.Marshaler.
func (b Bytes) MarshalJSON() ([]byte, error) {
	if b == nil {
		return []byte("null"), nil
	}
	var sb strings.Builder
	sb.Grow(len(b)*4 + 2)
	sb.WriteByte('[')
	for i, c := range b {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "%d", c)
	}
	sb.WriteByte(']')
	return []byte(sb.String()), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *Bytes) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if string(trimmed) == "null" {
		*b = nil
		return nil
	}
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return fmt.Errorf("body must be an array of bytes")
	}
	var nums []uint8
	if err := json.Unmarshal(trimmed, &nums); err != nil {
		return fmt.Errorf("body must be an array of bytes: %w", err)
	}
	*b = nums
	return nil
}
