// Package cli implements the clood command line: the serve command that runs
// the HTTP server, and client commands that drive sessions on a running
// server.
package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/clood-dev/clood/internal/clood/config"
	"github.com/clood-dev/clood/internal/common/httpclient"
)

// ServerEnv names the environment variable consulted for the server URL when
// --server is not given.
const ServerEnv = "CLOOD_SERVER"

// DefaultConfigFile is read from the working directory when --config is not
// given.
const DefaultConfigFile = "clood.conf"

var ErrAlreadyHandled = errors.New("already handled")

var okLabel = color.New(color.FgGreen)
var warnLabel = color.New(color.FgYellow)
var errorLabel = color.New(color.FgRed)

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	configFile string
	serverURL  string
	output     string
	timeout    time.Duration
}

// NewRootCmd builds the clood command tree.
func NewRootCmd() *cobra.Command {
	o := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:   "clood [command] [flags]",
		Short: "clood - AI-assisted code changes on git branches",
		Long: `clood asks a language model to modify files in a git repository.
Each session applies the proposed changes on a fresh branch which can then be
merged, discarded or reverted.

Examples:
  # Run the server against the current repository
  clood serve

  # Start a session on two files
  clood session start -p "add input validation" handlers.go models.go

  # Merge the session's branch
  clood session merge 5b7c0f1e-...`,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVar(&o.configFile, "config", "", "Path to configuration file (default ./"+DefaultConfigFile+" when present)")
	rootCmd.PersistentFlags().StringVar(&o.serverURL, "server", "", "URL of the clood server (default $"+ServerEnv+" or the configured address)")
	rootCmd.PersistentFlags().StringVarP(&o.output, "output", "o", "", "Output format: json or yaml")
	rootCmd.PersistentFlags().DurationVar(&o.timeout, "timeout", 0, "Client side request timeout, 0 for none")

	rootCmd.AddCommand(newServeCmd(o))
	rootCmd.AddCommand(newSessionCmd(o))
	rootCmd.AddCommand(newPromptCmd(o))
	rootCmd.AddCommand(newVersionCmd(o))
	return rootCmd
}

// Execute runs the command line. This is called by main.main().
func Execute() {
	rootCmd := NewRootCmd()
	rootCmd.SilenceErrors = true // Prevent Cobra from printing the error
	rootCmd.SilenceUsage = true  // Prevent Cobra from printing usage on error

	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, ErrAlreadyHandled) {
			errorLabel.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// loadConfig reads the configuration file named by --config, or the default
// file when it exists. Without either the built-in defaults are returned.
func (o *rootOptions) loadConfig() (*config.ConfigParam, error) {
	file := o.configFile
	if file == "" {
		if _, err := os.Stat(DefaultConfigFile); err != nil {
			return config.Default(), nil
		}
		file = DefaultConfigFile
	}
	content, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %v", err)
	}
	return config.Parse(string(content))
}

// server returns the URL of the clood server the client commands talk to.
func (o *rootOptions) server() (string, error) {
	if o.serverURL != "" {
		return o.serverURL, nil
	}
	if url := os.Getenv(ServerEnv); url != "" {
		return url, nil
	}
	cfg, err := o.loadConfig()
	if err != nil {
		return "", err
	}
	return cfg.URL(), nil
}

func (o *rootOptions) client() (*httpclient.HTTPClient, error) {
	url, err := o.server()
	if err != nil {
		return nil, err
	}
	return httpclient.NewClient(url, o.timeout), nil
}

// getCLIVersion returns the current CLI version
func getCLIVersion() string {
	return "v0.1.0"
}
