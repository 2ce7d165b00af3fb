package proposal

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/tidwall/gjson"

	"github.com/clood-dev/clood/internal/clood/config"
)

const statusOverloaded = 529

type anthropicBackend struct {
	client  anthropic.Client
	model   string
	options config.ModelOptions
}

// NewAnthropicBackend creates a backend for the Anthropic Messages API.
// Retries are handled by Client, so the SDK's own retries are disabled.
func NewAnthropicBackend(m config.ModelConfig, opts config.ModelOptions, extra ...option.RequestOption) Backend {
	reqOpts := []option.RequestOption{
		option.WithAPIKey(m.APIKey),
		option.WithMaxRetries(0),
	}
	if m.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(m.BaseURL))
	}
	reqOpts = append(reqOpts, extra...)
	return &anthropicBackend{
		client:  anthropic.NewClient(reqOpts...),
		model:   m.Model,
		options: opts,
	}
}

func (b *anthropicBackend) Name() string {
	return config.ProviderAnthropic
}

func (b *anthropicBackend) Complete(ctx context.Context, req *Request) (*Completion, error) {
	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for i, msg := range req.Messages {
		switch msg.Role {
		case RoleAssistant:
			text := msg.Text
			if i == len(req.Messages)-1 {
				// a final assistant turn may not end in whitespace
				text = strings.TrimRightFunc(text, unicode.IsSpace)
			}
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(text)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Text)))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(b.model),
		MaxTokens: req.MaxTokens,
		Messages:  messages,
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if b.options.Temperature != nil {
		params.Temperature = anthropic.Float(*b.options.Temperature)
	}
	if b.options.TopP != nil {
		params.TopP = anthropic.Float(*b.options.TopP)
	}
	if b.options.TopK != nil {
		params.TopK = anthropic.Int(*b.options.TopK)
	}
	if len(b.options.Stop) > 0 {
		params.StopSequences = b.options.Stop
	}

	message, err := b.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) && anthropicOverloaded(apiErr.StatusCode, apiErr.RawJSON()) {
			return nil, &OverloadError{Backend: b.Name(), StatusCode: apiErr.StatusCode, Err: err}
		}
		return nil, err
	}

	var sb strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return &Completion{
		Text:      sb.String(),
		Truncated: message.StopReason == anthropic.StopReasonMaxTokens,
	}, nil
}

func anthropicOverloaded(status int, body string) bool {
	if status == statusOverloaded {
		return true
	}
	return gjson.Get(body, "error.type").String() == "overloaded_error"
}
