package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{"1d", 24 * time.Hour, false},
		{"2h", 2 * time.Hour, false},
		{"10m", 10 * time.Minute, false},
		{"1y", 365 * 24 * time.Hour, false},
		{"30s", 30 * time.Second, false},
		{"1500ms", 1500 * time.Millisecond, false},
		{"1m30s", 90 * time.Second, false},
		{"5x", 0, true},
		{"m", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			d, err := ParseDuration(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, d)
		})
	}
}

func TestDefaults(t *testing.T) {
	c := Default()
	assert.Equal(t, "127.0.0.1", c.ServerHostName)
	assert.Equal(t, "8686", c.ServerPort)
	assert.Equal(t, "git", c.GitPath)
	assert.Equal(t, ProviderAnthropic, c.Model.Provider)
	assert.Equal(t, "CLOOD_KEY", c.Model.APIKeyEnv)
	assert.EqualValues(t, 5, c.Retry.MaxAttempts)
	assert.Equal(t, time.Second, c.Retry.GetBaseDelay())
	assert.Equal(t, 10*time.Minute, c.Session.GetProposalTimeout())
	assert.Equal(t, 8, c.Session.MaxContinuations)
	assert.Equal(t, "clood", c.Session.BranchPrefix)
	assert.Equal(t, 15*time.Minute, c.GetRequestTimeout())
	assert.Equal(t, "127.0.0.1:8686", c.Address())
	assert.Equal(t, "http://127.0.0.1:8686", c.URL())
}

func TestParse(t *testing.T) {
	content := `
format_version = "0.1.0"
server_hostname = "0.0.0.0"
server_port = "9000"
git_root = "."
log_format = "console"

[model]
provider = "OpenAI"
max_tokens = 4096
api_key_env = "MY_KEY"

[model.extra]
temperature = 0
stop = ["END"]

[retry]
max_attempts = 3
base_delay = "250ms"

[session]
proposal_timeout = "2m"
max_continuations = 2
`
	c, err := Parse(content)
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:9000", c.URL())
	assert.True(t, filepath.IsAbs(c.GitRoot))
	assert.Equal(t, ProviderOpenAI, c.Model.Provider)
	assert.Equal(t, "gpt-4o", c.Model.Model)
	assert.EqualValues(t, 4096, c.Model.MaxTokens)
	assert.Equal(t, 250*time.Millisecond, c.Retry.GetBaseDelay())
	assert.Equal(t, 2*time.Minute, c.Session.GetProposalTimeout())
	assert.Equal(t, 2, c.Session.MaxContinuations)

	opts, err := c.Model.Options()
	require.NoError(t, err)
	require.NotNil(t, opts.Temperature)
	assert.Equal(t, 0.0, *opts.Temperature)
	assert.Equal(t, []string{"END"}, opts.Stop)
	assert.Nil(t, opts.TopP)
}

func TestParseInvalid(t *testing.T) {
	tests := map[string]string{
		"bad version":    `format_version = "9.9"`,
		"bad port":       "format_version = \"0.1.0\"\nserver_port = \"http\"",
		"bad provider":   "format_version = \"0.1.0\"\n[model]\nprovider = \"llama\"",
		"bad delay":      "format_version = \"0.1.0\"\n[retry]\nbase_delay = \"soon\"",
		"bad format":     "format_version = \"0.1.0\"\nlog_format = \"xml\"",
		"unknown extra":  "format_version = \"0.1.0\"\n[model.extra]\ntemprature = 1",
		"malformed toml": "format_version = ",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(content)
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigAndEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "clood.conf")
	require.NoError(t, os.WriteFile(file, []byte("format_version = \"0.1.0\"\n[model]\napi_key_env = \"CLOOD_TEST_KEY\"\nsystem_prompt_file = \""+filepath.ToSlash(filepath.Join(dir, "sys.md"))+"\"\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sys.md"), []byte("be brief"), 0o600))

	require.NoError(t, LoadConfig(file))
	c := Config()
	require.NotNil(t, c)

	t.Setenv("CLOOD_TEST_KEY", "")
	c.LoadEnv(dir)
	assert.Error(t, c.RequireAPIKey())

	t.Setenv("CLOOD_TEST_KEY", "sk-test")
	c.LoadEnv(dir)
	assert.NoError(t, c.RequireAPIKey())
	assert.Equal(t, "sk-test", c.Model.APIKey)

	sys, err := c.Model.SystemPrompt()
	require.NoError(t, err)
	assert.Equal(t, "be brief", sys)

	assert.Error(t, LoadConfig(""))
	assert.Error(t, LoadConfig(filepath.Join(dir, "missing.conf")))
}

func TestLoadEnvFromDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("CLOOD_DOTENV_KEY=from-file\n"), 0o600))
	t.Setenv("CLOOD_DOTENV_KEY", "")
	os.Unsetenv("CLOOD_DOTENV_KEY")

	c := Default()
	c.Model.APIKeyEnv = "CLOOD_DOTENV_KEY"
	c.LoadEnv(dir)
	assert.Equal(t, "from-file", c.Model.APIKey)
}
