package proposal

import (
	"context"
	"strings"

	"github.com/clood-dev/clood/internal/clood/config"
)

// Role of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation with the model.
type Message struct {
	Role Role
	Text string
}

// Request is a single completion call.
type Request struct {
	System    string
	Messages  []Message
	MaxTokens int64
}

// Completion is the text returned by one call. Truncated is set when the
// model stopped because it ran out of output tokens.
type Completion struct {
	Text      string
	Truncated bool
}

// Backend is a language model provider.
type Backend interface {
	Name() string
	Complete(ctx context.Context, req *Request) (*Completion, error)
}

// NewBackend builds the backend selected by m.Provider.
func NewBackend(m config.ModelConfig) (Backend, error) {
	opts, err := m.Options()
	if err != nil {
		return nil, ErrBackendConfig.MsgErr("invalid model options", err)
	}
	switch strings.ToLower(m.Provider) {
	case config.ProviderAnthropic, "":
		return NewAnthropicBackend(m, opts), nil
	case config.ProviderOpenAI:
		return NewOpenAIBackend(m, opts), nil
	default:
		return nil, ErrBackendConfig.Msg("unsupported model provider " + m.Provider)
	}
}
