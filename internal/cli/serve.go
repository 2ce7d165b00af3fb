package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/clood-dev/clood/internal/clood/config"
	"github.com/clood-dev/clood/internal/clood/git"
	"github.com/clood-dev/clood/internal/clood/orchestrator"
	"github.com/clood-dev/clood/internal/clood/proposal"
	"github.com/clood-dev/clood/internal/clood/server"
	"github.com/clood-dev/clood/internal/clood/session"
	"github.com/clood-dev/clood/internal/common/logtrace"
)

type serveOptions struct {
	gitRoot    string
	gitPath    string
	port       string
	listRoutes bool
}

func newServeCmd(o *rootOptions) *cobra.Command {
	so := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the clood server against a git repository",
		Long: `Run the clood HTTP server. The server operates on one git repository,
by default the current working directory. The model API key is read from the
environment variable named by api_key_env in the [model] section (CLOOD_KEY
unless configured); a .env file in the working directory is loaded first.

Examples:
  clood serve --git-root ~/src/project --port 9090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.loadConfig()
			if err != nil {
				return err
			}
			if err := so.apply(cfg); err != nil {
				return err
			}
			wd, _ := os.Getwd()
			cfg.LoadEnv(wd)
			config.SetConfig(cfg)
			logtrace.Configure(os.Stderr, cfg.LogLevel, cfg.LogFormat)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := newCloodServer(ctx, cfg, server.WithRouteListing(so.listRoutes))
			if err != nil {
				return err
			}
			return run(ctx, cfg, s)
		},
	}
	cmd.Flags().StringVar(&so.gitRoot, "git-root", "", "Repository to operate on (default: current directory)")
	cmd.Flags().StringVar(&so.gitPath, "git-path", "", "git executable to use")
	cmd.Flags().StringVar(&so.port, "port", "", "Port to listen on")
	cmd.Flags().BoolVar(&so.listRoutes, "list-routes", false, "Print the mounted routes at startup")
	return cmd
}

// apply overrides configuration values with the flags that were set and
// revalidates the result.
func (so *serveOptions) apply(cfg *config.ConfigParam) error {
	if so.gitRoot != "" {
		cfg.GitRoot = so.gitRoot
	}
	if cfg.GitRoot == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("unable to determine working directory: %v", err)
		}
		cfg.GitRoot = wd
	}
	if so.gitPath != "" {
		cfg.GitPath = so.gitPath
	}
	if so.port != "" {
		cfg.ServerPort = so.port
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %v", err)
	}
	return nil
}

// newCloodServer wires the repository, model client and orchestrator
// described by cfg into a server with its routes mounted.
func newCloodServer(ctx context.Context, cfg *config.ConfigParam, opts ...server.Option) (*server.CloodServer, error) {
	root, err := filepath.EvalSymlinks(cfg.GitRoot)
	if err != nil {
		return nil, fmt.Errorf("invalid git root: %v", err)
	}
	repo := git.New(root, git.WithGitPath(cfg.GitPath), git.WithBranchPrefix(cfg.Session.BranchPrefix))
	if err := repo.IsRepository(ctx); err != nil {
		return nil, err
	}
	if err := cfg.RequireAPIKey(); err != nil {
		return nil, err
	}

	backend, err := proposal.NewBackend(cfg.Model)
	if err != nil {
		return nil, err
	}
	systemPrompt, err := cfg.Model.SystemPrompt()
	if err != nil {
		return nil, err
	}
	client := proposal.NewClient(backend,
		proposal.WithSystemPrompt(systemPrompt),
		proposal.WithMaxTokens(cfg.Model.MaxTokens),
		proposal.WithRetry(cfg.Retry.MaxAttempts, cfg.Retry.GetBaseDelay()),
		proposal.WithMaxContinuations(cfg.Session.MaxContinuations),
	)
	orch := orchestrator.New(repo, session.NewStore(), client,
		orchestrator.WithProposalTimeout(cfg.Session.GetProposalTimeout()))

	opts = append([]server.Option{
		server.WithCORS(cfg.HandleCORS),
		server.WithRequestTimeout(cfg.GetRequestTimeout()),
	}, opts...)
	s, err := server.CreateNewServer(orch, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating server: %w", err)
	}
	s.MountHandlers()

	log.Info().
		Str("git_root", root).
		Str("provider", backend.Name()).
		Str("model", cfg.Model.Model).
		Msg("clood server configured")
	return s, nil
}

// run serves s until ctx is cancelled, then shuts down gracefully.
func run(ctx context.Context, cfg *config.ConfigParam, s *server.CloodServer) error {
	slog := log.With().Str("state", "init").Logger()
	srv := &http.Server{
		Addr:              cfg.Address(),
		Handler:           s.Router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		slog.Info().Str("address", srv.Addr).Msg("server started")
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info().Msg("shutdown signal received")
	}

	// Give outstanding requests 5 seconds to complete and initiate the shutdown.
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error().Err(err).Msg("could not stop server gracefully")
		if err := srv.Close(); err != nil {
			slog.Error().Err(err).Msg("could not stop server")
		}
	}
	slog.Info().Msg("server stopped")
	return nil
}
