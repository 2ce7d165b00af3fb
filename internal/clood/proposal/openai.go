package proposal

import (
	"context"
	"errors"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/clood-dev/clood/internal/clood/config"
)

type openaiBackend struct {
	client  openai.Client
	model   string
	options config.ModelOptions
}

// NewOpenAIBackend creates a backend for the OpenAI Chat Completions API.
func NewOpenAIBackend(m config.ModelConfig, opts config.ModelOptions, extra ...option.RequestOption) Backend {
	reqOpts := []option.RequestOption{
		option.WithAPIKey(m.APIKey),
		option.WithMaxRetries(0),
	}
	if m.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(m.BaseURL))
	}
	reqOpts = append(reqOpts, extra...)
	return &openaiBackend{
		client:  openai.NewClient(reqOpts...),
		model:   m.Model,
		options: opts,
	}
}

func (b *openaiBackend) Name() string {
	return config.ProviderOpenAI
}

func (b *openaiBackend) Complete(ctx context.Context, req *Request) (*Completion, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleAssistant:
			messages = append(messages, openai.AssistantMessage(msg.Text))
		default:
			messages = append(messages, openai.UserMessage(msg.Text))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(b.model),
		Messages:            messages,
		MaxCompletionTokens: openai.Int(req.MaxTokens),
	}
	if b.options.Temperature != nil {
		params.Temperature = openai.Float(*b.options.Temperature)
	}
	if b.options.TopP != nil {
		params.TopP = openai.Float(*b.options.TopP)
	}
	if len(b.options.Stop) > 0 {
		params.Stop = openai.ChatCompletionNewParamsStopUnion{OfStringArray: b.options.Stop}
	}

	completion, err := b.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusServiceUnavailable || apiErr.StatusCode == statusOverloaded) {
			return nil, &OverloadError{Backend: b.Name(), StatusCode: apiErr.StatusCode, Err: err}
		}
		return nil, err
	}
	if len(completion.Choices) == 0 {
		return &Completion{}, nil
	}
	choice := completion.Choices[0]
	return &Completion{
		Text:      choice.Message.Content,
		Truncated: choice.FinishReason == "length",
	}, nil
}
