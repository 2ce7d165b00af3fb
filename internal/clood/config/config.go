// Package config loads the clood server configuration from a TOML file,
// fills defaults and resolves the model API key from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
)

// ConfigFormatVersion is the current version of the configuration file format
const ConfigFormatVersion = "0.1.0"

const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// ModelConfig selects and tunes the language model backend.
type ModelConfig struct {
	Provider         string         `toml:"provider"`           // anthropic or openai
	Model            string         `toml:"model"`              // provider model name
	MaxTokens        int64          `toml:"max_tokens"`         // output token limit per call
	APIKeyEnv        string         `toml:"api_key_env"`        // environment variable holding the key
	BaseURL          string         `toml:"base_url"`           // optional API endpoint override
	SystemPromptFile string         `toml:"system_prompt_file"` // optional file prepended as system prompt
	Extra            map[string]any `toml:"extra"`              // provider sampling options

	APIKey string `toml:"-"`
}

// ModelOptions are the sampling options decoded from [model.extra].
type ModelOptions struct {
	Temperature *float64 `mapstructure:"temperature"`
	TopP        *float64 `mapstructure:"top_p"`
	TopK        *int64   `mapstructure:"top_k"`
	Stop        []string `mapstructure:"stop"`
}

// Options decodes the Extra table into ModelOptions. Unknown keys are
// rejected.
func (m *ModelConfig) Options() (ModelOptions, error) {
	var opts ModelOptions
	if len(m.Extra) == 0 {
		return opts, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &opts,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return opts, err
	}
	if err := dec.Decode(m.Extra); err != nil {
		return opts, fmt.Errorf("invalid model.extra: %v", err)
	}
	return opts, nil
}

// SystemPrompt returns the contents of SystemPromptFile, or "" when unset.
func (m *ModelConfig) SystemPrompt() (string, error) {
	if m.SystemPromptFile == "" {
		return "", nil
	}
	b, err := os.ReadFile(m.SystemPromptFile)
	if err != nil {
		return "", fmt.Errorf("error reading system prompt file: %v", err)
	}
	return string(b), nil
}

// RetryConfig controls retries of overloaded model calls.
type RetryConfig struct {
	MaxAttempts uint   `toml:"max_attempts"` // total attempts including the first
	BaseDelay   string `toml:"base_delay"`   // delay before the first retry, doubled each time
}

// GetBaseDelay returns BaseDelay as a time.Duration.
func (r *RetryConfig) GetBaseDelay() time.Duration {
	d, _ := ParseDuration(r.BaseDelay)
	return d
}

// SessionConfig holds session orchestration settings.
type SessionConfig struct {
	ProposalTimeout  string `toml:"proposal_timeout"`  // limit for one proposal, continuations included
	MaxContinuations int    `toml:"max_continuations"` // cap on max_tokens continuations
	BranchPrefix     string `toml:"branch_prefix"`     // prefix of session branch names
}

// GetProposalTimeout returns ProposalTimeout as a time.Duration.
func (s *SessionConfig) GetProposalTimeout() time.Duration {
	d, _ := ParseDuration(s.ProposalTimeout)
	return d
}

// ConfigParam holds all configuration parameters for the clood server
type ConfigParam struct {
	// Configuration version
	FormatVersion string `toml:"format_version"` // Version of this configuration file format

	// Server configuration
	ServerHostName string `toml:"server_hostname"` // Interface the server listens on
	ServerPort     string `toml:"server_port"`     // Port for the server
	HandleCORS     bool   `toml:"handle_cors"`     // Whether to handle CORS
	RequestTimeout string `toml:"request_timeout"` // Upper bound for one API request

	// Repository configuration
	GitRoot string `toml:"git_root"` // Repository the server operates on
	GitPath string `toml:"git_path"` // git executable

	// Logging
	LogLevel  string `toml:"log_level"`  // zerolog level name
	LogFormat string `toml:"log_format"` // json or console

	Model   ModelConfig   `toml:"model"`
	Retry   RetryConfig   `toml:"retry"`
	Session SessionConfig `toml:"session"`
}

var cfg *ConfigParam

// GetRequestTimeout returns RequestTimeout as a time.Duration.
func (c *ConfigParam) GetRequestTimeout() time.Duration {
	d, _ := ParseDuration(c.RequestTimeout)
	return d
}

// Config returns the current configuration
func Config() *ConfigParam {
	return cfg
}

// SetConfig replaces the current configuration.
func SetConfig(c *ConfigParam) {
	cfg = c
}

// Address returns the listen address in host:port form.
func (c *ConfigParam) Address() string {
	return c.ServerHostName + ":" + c.ServerPort
}

// URL returns the base URL clients use to reach the server.
func (c *ConfigParam) URL() string {
	host := c.ServerHostName
	if host == "" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}
	return "http://" + host + ":" + c.ServerPort
}

// ParseDuration parses a duration string in the format "<number><unit>" where unit can be:
// - y: years
// - d: days
// - h: hours
// - m: minutes
//
// Any other input is handed to time.ParseDuration, so "30s" and "1500ms" work too.
func ParseDuration(input string) (time.Duration, error) {
	if len(input) < 2 {
		return 0, fmt.Errorf("invalid input format")
	}

	unit := input[len(input)-1:]
	valueStr := input[:len(input)-1]
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		d, perr := time.ParseDuration(input)
		if perr != nil {
			return 0, fmt.Errorf("invalid duration: %s", input)
		}
		return d, nil
	}

	var duration time.Duration
	switch unit {
	case "d":
		duration = time.Duration(value) * 24 * time.Hour
	case "h":
		duration = time.Duration(value) * time.Hour
	case "m":
		duration = time.Duration(value) * time.Minute
	case "y":
		duration = time.Duration(value) * 365 * 24 * time.Hour
	case "s":
		duration = time.Duration(value) * time.Second
	default:
		return 0, fmt.Errorf("unknown time unit: %s", unit)
	}

	return duration, nil
}

// Default returns a configuration with every default filled in.
func Default() *ConfigParam {
	c := &ConfigParam{FormatVersion: ConfigFormatVersion}
	if err := ValidateConfig(c); err != nil {
		panic(err)
	}
	return c
}

// ValidateConfig checks configuration values and fills defaults for the
// ones that are absent.
func ValidateConfig(cfg *ConfigParam) error {
	if cfg.FormatVersion != ConfigFormatVersion {
		return fmt.Errorf("unsupported config file format version: %s", cfg.FormatVersion)
	}

	if cfg.ServerHostName == "" {
		cfg.ServerHostName = "127.0.0.1"
	}
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8686"
	}
	if _, err := strconv.ParseUint(cfg.ServerPort, 10, 16); err != nil {
		return fmt.Errorf("invalid server_port: %s", cfg.ServerPort)
	}

	if cfg.RequestTimeout == "" {
		cfg.RequestTimeout = "15m"
	}
	if _, err := ParseDuration(cfg.RequestTimeout); err != nil {
		return fmt.Errorf("invalid request_timeout: %v", err)
	}

	if cfg.GitPath == "" {
		cfg.GitPath = "git"
	}
	if cfg.GitRoot != "" {
		abs, err := filepath.Abs(cfg.GitRoot)
		if err != nil {
			return fmt.Errorf("invalid git_root: %v", err)
		}
		cfg.GitRoot = abs
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	switch strings.ToLower(cfg.LogFormat) {
	case "":
		cfg.LogFormat = "json"
	case "json", "console":
	default:
		return fmt.Errorf("invalid log_format: %s", cfg.LogFormat)
	}

	// Model
	switch strings.ToLower(cfg.Model.Provider) {
	case "":
		cfg.Model.Provider = ProviderAnthropic
	case ProviderAnthropic, ProviderOpenAI:
		cfg.Model.Provider = strings.ToLower(cfg.Model.Provider)
	default:
		return fmt.Errorf("unsupported model.provider: %s", cfg.Model.Provider)
	}
	if cfg.Model.Model == "" {
		if cfg.Model.Provider == ProviderOpenAI {
			cfg.Model.Model = "gpt-4o"
		} else {
			cfg.Model.Model = "claude-3-5-sonnet-latest"
		}
	}
	if cfg.Model.MaxTokens == 0 {
		cfg.Model.MaxTokens = 8192
	}
	if cfg.Model.MaxTokens < 0 {
		return fmt.Errorf("model.max_tokens must be positive")
	}
	if cfg.Model.APIKeyEnv == "" {
		cfg.Model.APIKeyEnv = "CLOOD_KEY"
	}
	if _, err := cfg.Model.Options(); err != nil {
		return err
	}

	// Retry
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = 5
	}
	if cfg.Retry.BaseDelay == "" {
		cfg.Retry.BaseDelay = "1s"
	}
	if _, err := ParseDuration(cfg.Retry.BaseDelay); err != nil {
		return fmt.Errorf("invalid retry.base_delay: %v", err)
	}

	// Session
	if cfg.Session.ProposalTimeout == "" {
		cfg.Session.ProposalTimeout = "10m"
	}
	if _, err := ParseDuration(cfg.Session.ProposalTimeout); err != nil {
		return fmt.Errorf("invalid session.proposal_timeout: %v", err)
	}
	if cfg.Session.MaxContinuations == 0 {
		cfg.Session.MaxContinuations = 8
	}
	if cfg.Session.MaxContinuations < 0 {
		return fmt.Errorf("session.max_continuations must be positive")
	}
	if cfg.Session.BranchPrefix == "" {
		cfg.Session.BranchPrefix = "clood"
	}

	return nil
}

// Parse decodes TOML content and validates it.
func Parse(content string) (*ConfigParam, error) {
	c := &ConfigParam{}
	if _, err := toml.Decode(content, c); err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}
	if err := ValidateConfig(c); err != nil {
		return nil, fmt.Errorf("invalid configuration: %v", err)
	}
	return c, nil
}

// LoadConfig loads configuration from a file and makes it current.
func LoadConfig(filename string) error {
	if filename == "" {
		return fmt.Errorf("config filename is required")
	}

	content, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	c, err := Parse(string(content))
	if err != nil {
		return err
	}
	cfg = c
	return nil
}

// LoadEnv loads a .env file from dir if one exists and resolves the model
// API key from the variable named by model.api_key_env.
func (c *ConfigParam) LoadEnv(dir string) {
	_ = godotenv.Load(filepath.Join(dir, ".env")) // no error if .env doesn't exist
	c.Model.APIKey = os.Getenv(c.Model.APIKeyEnv)
}

// RequireAPIKey reports an error when no API key was resolved.
func (c *ConfigParam) RequireAPIKey() error {
	if c.Model.APIKey == "" {
		return fmt.Errorf("API key not found, set the %s environment variable", c.Model.APIKeyEnv)
	}
	return nil
}
