package proposal

import (
	"bytes"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/clood-dev/clood/internal/clood/session"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const changeSetSchema = `{
  "type": "object",
  "required": ["answered"],
  "properties": {
    "answered": {"type": "boolean"},
    "changedFiles": {"$ref": "#/$defs/files"},
    "newFiles": {"$ref": "#/$defs/files"}
  },
  "$defs": {
    "files": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "required": ["filename", "content"],
        "properties": {
          "filename": {"type": "string", "minLength": 1},
          "content": {"type": "string"}
        }
      }
    }
  }
}`

const promptImprovementSchema = `{
  "type": "object",
  "required": ["answered"],
  "properties": {
    "answered": {"type": "boolean"},
    "improvedPrompt": {"type": "string"}
  }
}`

var (
	changeSetValidator         = jsonschema.MustCompileString("inline://changeset", changeSetSchema)
	promptImprovementValidator = jsonschema.MustCompileString("inline://promptimprovement", promptImprovementSchema)
)

// PromptImprovement is the model's rewrite of a user prompt.
type PromptImprovement struct {
	ImprovedPrompt string `json:"improvedPrompt"`
	Answered       bool   `json:"answered"`
}

// ParseChangeSet extracts the change set from a markdown model response.
// A response with answered set to false is returned normalized, with both
// lists empty.
func ParseChangeSet(response string) (*session.ChangeSet, error) {
	raw, err := extractJSON(response)
	if err != nil {
		return nil, err
	}
	if err := validate(changeSetValidator, raw); err != nil {
		return nil, err
	}
	cs := &session.ChangeSet{}
	if err := json.Unmarshal(raw, cs); err != nil {
		return nil, parseFailure(fmt.Sprintf("invalid change set: %v", err))
	}
	cs.Normalize()
	return cs, nil
}

// ParsePromptImprovement extracts a PromptImprovement from a markdown model
// response.
func ParsePromptImprovement(response string) (*PromptImprovement, error) {
	raw, err := extractJSON(response)
	if err != nil {
		return nil, err
	}
	if err := validate(promptImprovementValidator, raw); err != nil {
		return nil, err
	}
	pi := &PromptImprovement{}
	if err := json.Unmarshal(raw, pi); err != nil {
		return nil, parseFailure(fmt.Sprintf("invalid prompt improvement: %v", err))
	}
	if !pi.Answered {
		pi.ImprovedPrompt = ""
	}
	return pi, nil
}

func validate(schema *jsonschema.Schema, raw []byte) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return parseFailure(fmt.Sprintf("invalid JSON: %v", err))
	}
	if err := schema.Validate(v); err != nil {
		return parseFailure(fmt.Sprintf("response does not match the expected format: %v", err))
	}
	return nil
}

// extractJSON returns the body of the first fenced code block tagged json.
// If there is none, the first fenced block holding a JSON object is used,
// and finally the whole response if it is itself a JSON object.
func extractJSON(response string) ([]byte, error) {
	if strings.TrimSpace(response) == "" {
		return nil, parseFailure("empty response")
	}
	source := []byte(response)
	doc := goldmark.New().Parser().Parse(text.NewReader(source))

	var tagged, untagged []byte
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		block, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}
		body := bytes.TrimSpace(block.Lines().Value(source))
		if strings.EqualFold(string(block.Language(source)), "json") {
			tagged = body
			return ast.WalkStop, nil
		}
		if untagged == nil && isJSONObject(body) {
			untagged = body
		}
		return ast.WalkSkipChildren, nil
	})

	switch {
	case tagged != nil:
		if !gjson.ValidBytes(tagged) {
			return nil, parseFailure("json block is not valid JSON")
		}
		return tagged, nil
	case untagged != nil:
		return untagged, nil
	}
	if trimmed := bytes.TrimSpace(source); isJSONObject(trimmed) {
		return trimmed, nil
	}
	return nil, parseFailure("no json code block found in response")
}

func isJSONObject(b []byte) bool {
	return gjson.ValidBytes(b) && gjson.ParseBytes(b).IsObject()
}
