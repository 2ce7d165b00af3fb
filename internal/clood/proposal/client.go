// Package proposal asks a language model for a change set. It builds the
// prompt from the selected files and the project layout, retries overloaded
// calls with exponential backoff, stitches together responses that were cut
// off at the output token limit and parses the fenced JSON answer.
package proposal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog/log"

	"github.com/clood-dev/clood/internal/clood/session"
)

const (
	DefaultMaxTokens        int64 = 8192
	DefaultMaxAttempts      uint  = 5
	DefaultBaseDelay              = time.Second
	DefaultMaxContinuations       = 8
)

// Client produces change proposals using a Backend.
type Client struct {
	backend          Backend
	systemPrompt     string
	maxTokens        int64
	maxAttempts      uint
	baseDelay        time.Duration
	maxContinuations int
	timer            retry.Timer
}

// Option configures a Client.
type Option func(*Client)

// WithSystemPrompt sets the system prompt sent with every call.
func WithSystemPrompt(prompt string) Option {
	return func(c *Client) {
		c.systemPrompt = prompt
	}
}

// WithMaxTokens sets the output token limit of each call.
func WithMaxTokens(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// WithRetry sets the number of attempts for an overloaded call and the delay
// before the first retry. The delay doubles after every retry.
func WithRetry(attempts uint, baseDelay time.Duration) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.maxAttempts = attempts
		}
		if baseDelay > 0 {
			c.baseDelay = baseDelay
		}
	}
}

// WithMaxContinuations caps how many times a truncated response is continued.
func WithMaxContinuations(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxContinuations = n
		}
	}
}

// WithTimer replaces the timer used to wait between retries.
func WithTimer(t retry.Timer) Option {
	return func(c *Client) {
		c.timer = t
	}
}

// NewClient returns a Client that calls backend.
func NewClient(backend Backend, opts ...Option) *Client {
	c := &Client{
		backend:          backend,
		maxTokens:        DefaultMaxTokens,
		maxAttempts:      DefaultMaxAttempts,
		baseDelay:        DefaultBaseDelay,
		maxContinuations: DefaultMaxContinuations,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Propose sends the prompt together with the given files, absolute paths
// under root, and returns the parsed change set. Parse problems are reported
// as *ParseFailure.
func (c *Client) Propose(ctx context.Context, prompt string, files []string, root string) (*session.ChangeSet, error) {
	sources, skipped, err := loadSourceFiles(root, files)
	if err != nil {
		return nil, err
	}
	if len(skipped) > 0 {
		log.Ctx(ctx).Info().Strs("files", skipped).Msg("binary files not sent to model")
	}
	dict, err := filesDictionary(sources)
	if err != nil {
		return nil, ErrReadFile.Err(err)
	}
	layout, err := c.layout(root)
	if err != nil {
		return nil, err
	}

	response, err := c.complete(ctx, formatCodeHelperPrompt(dict, prompt, root, layout))
	if err != nil {
		return nil, err
	}
	cs, err := ParseChangeSet(response)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Int("response_len", len(response)).Msg("unable to parse change set")
		return nil, err
	}
	return cs, nil
}

// ImprovePrompt asks the model to rewrite prompt for the project at root.
func (c *Client) ImprovePrompt(ctx context.Context, prompt string, root string) (*PromptImprovement, error) {
	layout, err := c.layout(root)
	if err != nil {
		return nil, err
	}
	response, err := c.complete(ctx, formatPromptHelperPrompt(prompt, layout))
	if err != nil {
		return nil, err
	}
	return ParsePromptImprovement(response)
}

func (c *Client) layout(root string) (string, error) {
	manifest, err := BuildManifest(root)
	if err != nil {
		return "", err
	}
	layout, err := manifest.YAML()
	if err != nil {
		return "", ErrManifest.Err(err)
	}
	return layout, nil
}

// complete sends a single user message and follows up while the model
// reports that it ran out of output tokens, resending the accumulated text
// as an assistant turn so the model picks up where it stopped. The resent
// text has trailing whitespace removed, which providers reject in a final
// assistant turn.
func (c *Client) complete(ctx context.Context, userText string) (string, error) {
	user := Message{Role: RoleUser, Text: userText}
	req := &Request{
		System:    c.systemPrompt,
		Messages:  []Message{user},
		MaxTokens: c.maxTokens,
	}

	var text string
	for continuation := 0; ; continuation++ {
		completion, err := c.call(ctx, req)
		if err != nil {
			return "", err
		}
		text = appendContinuation(text, completion.Text)
		if !completion.Truncated {
			break
		}
		if continuation >= c.maxContinuations {
			return "", ErrContinuationLimit.Msg(fmt.Sprintf("model response still truncated after %d continuations", c.maxContinuations))
		}
		log.Ctx(ctx).Debug().Int("continuation", continuation+1).Int("length", len(text)).Msg("response truncated, continuing")
		req.Messages = []Message{user, {Role: RoleAssistant, Text: strings.TrimRightFunc(text, unicode.IsSpace)}}
	}

	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// appendContinuation joins a continuation onto the text received so far.
// The model continues from the text with trailing whitespace removed, so
// whitespace it starts with replaces the whitespace that was trimmed.
func appendContinuation(text, next string) string {
	if text == "" {
		return next
	}
	if r, _ := utf8.DecodeRuneInString(next); next != "" && unicode.IsSpace(r) {
		return strings.TrimRightFunc(text, unicode.IsSpace) + next
	}
	return text + next
}

// call performs one backend call, retrying while the backend is overloaded.
// The n-th retry waits baseDelay * 2^(n-1).
func (c *Client) call(ctx context.Context, req *Request) (*Completion, error) {
	opts := []retry.Option{
		retry.Context(ctx),
		retry.Attempts(c.maxAttempts),
		retry.Delay(c.baseDelay),
		retry.DelayType(func(n uint, err error, config *retry.Config) time.Duration {
			return retry.BackOffDelay(n-1, err, config)
		}),
		retry.RetryIf(isOverloaded),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Ctx(ctx).Warn().Err(err).Uint("attempt", n+1).Str("backend", c.backend.Name()).Msg("model overloaded")
		}),
	}
	if c.timer != nil {
		opts = append(opts, retry.WithTimer(c.timer))
	}

	completion, err := retry.DoWithData(func() (*Completion, error) {
		return c.backend.Complete(ctx, req)
	}, opts...)
	if err != nil {
		if isOverloaded(err) {
			return nil, ErrModelOverloaded.Err(err)
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrModelRequest.MsgErr("model request cancelled", err)
		}
		return nil, ErrModelRequest.Err(err)
	}
	if completion == nil {
		return nil, ErrEmptyResponse
	}
	return completion, nil
}

func isOverloaded(err error) bool {
	var overload *OverloadError
	return errors.As(err, &overload)
}
