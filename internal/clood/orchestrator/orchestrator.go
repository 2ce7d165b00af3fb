// Package orchestrator runs the clood session lifecycle: a session starts by
// branching off the current branch, asking the model for changes and writing
// them to the working tree, and ends with exactly one of merge, discard or
// revert. Every failure after the branch exists is compensated so the
// repository returns to the branch and working tree it started from.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/clood-dev/clood/internal/clood/git"
	"github.com/clood-dev/clood/internal/clood/proposal"
	"github.com/clood-dev/clood/internal/clood/session"
)

// Repository is the version control surface used by the orchestrator.
// *git.Repo implements it.
type Repository interface {
	Root() string
	CurrentBranch(ctx context.Context) (string, error)
	CreateBranch(ctx context.Context, files []string) (string, error)
	CommitSpecificFiles(ctx context.Context, paths []string, message string) (git.CommitOutcome, error)
	SwitchToBranch(ctx context.Context, branch string) error
	DeleteBranch(ctx context.Context, branch string) error
	Merge(ctx context.Context, branch string) error
	UncommittedChanges(ctx context.Context) ([]string, error)
	RecheckoutBranchRevert(ctx context.Context)
}

// Proposer produces change sets. *proposal.Client implements it.
type Proposer interface {
	Propose(ctx context.Context, prompt string, files []string, root string) (*session.ChangeSet, error)
	ImprovePrompt(ctx context.Context, prompt string, root string) (*proposal.PromptImprovement, error)
}

var (
	_ Repository = (*git.Repo)(nil)
	_ Proposer   = (*proposal.Client)(nil)
)

// StartRequest asks for a new session.
type StartRequest struct {
	Prompt            string
	Files             []string
	UseVersionControl bool
}

// StartResult describes a published session.
type StartResult struct {
	ID              string            `json:"id"`
	NewBranch       string            `json:"newBranch"`
	ProposedChanges session.ChangeSet `json:"proposedChanges"`
}

// Orchestrator coordinates the repository, the proposer and the session
// store. It is safe for concurrent use.
type Orchestrator struct {
	repo            Repository
	store           *session.Store
	proposer        Proposer
	proposalTimeout time.Duration
	locks           keyedMutex
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithProposalTimeout bounds each model interaction. Zero means no limit.
func WithProposalTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.proposalTimeout = d
	}
}

// New returns an Orchestrator.
func New(repo Repository, store *session.Store, proposer Proposer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		repo:     repo,
		store:    store,
		proposer: proposer,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start creates a session: it validates the files, branches off the current
// branch, obtains a proposal and writes it to the working tree. On any
// failure after the branch was created the branch is removed and the
// original branch checked out again before the error is returned.
func (o *Orchestrator) Start(ctx context.Context, req StartRequest) (*StartResult, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, ErrInvalidRequest.Msg("prompt is required")
	}
	if len(req.Files) == 0 {
		return nil, ErrInvalidRequest.Msg("at least one file is required")
	}

	root := o.repo.Root()
	absFiles, relFiles, err := resolveFiles(root, req.Files)
	if err != nil {
		return nil, err
	}

	s := o.store.Create(req.UseVersionControl, root, relFiles)
	logger := log.Ctx(ctx).With().Str("session_id", s.ID).Logger()
	ctx = logger.WithContext(ctx)

	if !req.UseVersionControl {
		cs, err := o.propose(ctx, req.Prompt, absFiles, root)
		if err != nil {
			return nil, err
		}
		s.ProposedChanges = *cs
		if !o.store.TryAdd(s.ID, s) {
			return nil, ErrSessionCollision
		}
		logger.Info().Int("changed_files", len(cs.ChangedFiles)).Int("new_files", len(cs.NewFiles)).Msg("advisory session started")
		return &StartResult{ID: s.ID, ProposedChanges: *cs}, nil
	}

	unlock := o.locks.Lock(root)
	defer unlock()

	dirty, err := o.repo.UncommittedChanges(ctx)
	if err != nil {
		return nil, err
	}
	if len(dirty) > 0 {
		return nil, ErrUncommittedChanges.Msg("uncommitted changes found: " + strings.Join(dirty, ", "))
	}

	s.OriginalBranch, err = o.repo.CurrentBranch(ctx)
	if err != nil {
		return nil, err
	}
	s.NewBranch, err = o.repo.CreateBranch(ctx, relFiles)
	if err != nil {
		return nil, err
	}

	cs, err := o.propose(ctx, req.Prompt, absFiles, root)
	if err != nil {
		o.rollback(ctx, s)
		return nil, err
	}

	applied, created, err := applyChanges(ctx, root, cs)
	s.AppliedFiles = applied
	s.CreatedFiles = created
	if err != nil {
		o.rollback(ctx, s)
		return nil, err
	}
	s.ProposedChanges = *cs

	if !o.store.TryAdd(s.ID, s) {
		o.rollback(ctx, s)
		return nil, ErrSessionCollision
	}
	logger.Info().
		Str("original_branch", s.OriginalBranch).
		Str("new_branch", s.NewBranch).
		Int("changed_files", len(cs.ChangedFiles)).
		Int("new_files", len(cs.NewFiles)).
		Int("applied_files", len(applied)).
		Msg("session started")

	return &StartResult{ID: s.ID, NewBranch: s.NewBranch, ProposedChanges: *cs}, nil
}

// propose calls the proposer under the proposal timeout and rejects
// change sets the model did not answer.
func (o *Orchestrator) propose(ctx context.Context, prompt string, absFiles []string, root string) (*session.ChangeSet, error) {
	pctx, cancel := o.withProposalTimeout(ctx)
	defer cancel()

	cs, err := o.proposer.Propose(pctx, prompt, absFiles, root)
	if err != nil {
		return nil, err
	}
	cs.Normalize()
	if !cs.Answered {
		return nil, ErrCouldNotAnswer
	}
	return cs, nil
}

func (o *Orchestrator) withProposalTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.proposalTimeout > 0 {
		return context.WithTimeout(ctx, o.proposalTimeout)
	}
	return context.WithCancel(ctx)
}

// rollback restores the working tree, checks out the original branch and
// deletes the session branch. Failures are logged.
func (o *Orchestrator) rollback(ctx context.Context, s *session.Session) {
	ctx = context.WithoutCancel(ctx)
	logger := log.Ctx(ctx)

	o.repo.RecheckoutBranchRevert(ctx)
	removeCreated(ctx, s.GitRoot, s.CreatedFiles)
	if err := o.repo.SwitchToBranch(ctx, s.OriginalBranch); err != nil {
		logger.Warn().Err(err).Str("branch", s.OriginalBranch).Msg("unable to switch back to original branch")
	}
	if err := o.repo.DeleteBranch(ctx, s.NewBranch); err != nil {
		logger.Warn().Err(err).Str("branch", s.NewBranch).Msg("unable to delete session branch")
	}
	logger.Info().Str("branch", s.NewBranch).Msg("session start rolled back")
}

// Merge commits the files written by the session on its branch and merges
// the branch into the original branch. The session branch is kept. If the
// commit or a branch switch fails the session is put back so it can still
// be discarded.
func (o *Orchestrator) Merge(ctx context.Context, id string) (*Result, error) {
	s, ctx, err := o.take(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.UseVersionControl {
		return resultOf(OutcomeClosed), nil
	}

	unlock := o.locks.Lock(s.GitRoot)
	defer unlock()
	logger := log.Ctx(ctx)

	current, err := o.repo.CurrentBranch(ctx)
	if err != nil {
		o.restore(ctx, s)
		return nil, err
	}
	if current != s.NewBranch {
		if err := o.repo.SwitchToBranch(ctx, s.NewBranch); err != nil {
			o.restore(ctx, s)
			return nil, err
		}
	}

	outcome, err := o.repo.CommitSpecificFiles(ctx, s.AppliedFiles, fmt.Sprintf("Changes made by clood on branch %s", s.NewBranch))
	if err != nil {
		o.restore(ctx, s)
		return nil, err
	}
	if outcome == git.NothingToCommit {
		if err := o.repo.SwitchToBranch(ctx, s.OriginalBranch); err != nil {
			o.restore(ctx, s)
			return nil, err
		}
		if err := o.repo.DeleteBranch(context.WithoutCancel(ctx), s.NewBranch); err != nil {
			logger.Warn().Err(err).Str("branch", s.NewBranch).Msg("unable to delete empty session branch")
		}
		logger.Info().Msg("no changes to merge")
		return resultOf(OutcomeNoChanges), nil
	}

	if err := o.repo.SwitchToBranch(ctx, s.OriginalBranch); err != nil {
		o.restore(ctx, s)
		return nil, err
	}
	if err := o.repo.Merge(ctx, s.NewBranch); err != nil {
		return nil, err
	}
	logger.Info().Str("branch", s.NewBranch).Str("into", s.OriginalBranch).Msg("session merged")
	return resultOf(OutcomeMerged), nil
}

// Discard abandons the session: the original branch is checked out, the
// session branch deleted and the working tree cleaned.
func (o *Orchestrator) Discard(ctx context.Context, id string) (*Result, error) {
	return o.abandon(ctx, id, OutcomeDiscarded)
}

// Revert undoes the session the same way Discard does.
func (o *Orchestrator) Revert(ctx context.Context, id string) (*Result, error) {
	return o.abandon(ctx, id, OutcomeReverted)
}

func (o *Orchestrator) abandon(ctx context.Context, id string, outcome Outcome) (*Result, error) {
	s, ctx, err := o.take(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.UseVersionControl {
		return resultOf(OutcomeClosed), nil
	}

	unlock := o.locks.Lock(s.GitRoot)
	defer unlock()

	if err := o.repo.SwitchToBranch(ctx, s.OriginalBranch); err != nil {
		o.restore(ctx, s)
		return nil, err
	}
	if err := o.repo.DeleteBranch(ctx, s.NewBranch); err != nil {
		return nil, err
	}
	o.repo.RecheckoutBranchRevert(context.WithoutCancel(ctx))
	removeCreated(ctx, s.GitRoot, s.CreatedFiles)
	log.Ctx(ctx).Info().Str("branch", s.NewBranch).Str("outcome", outcome.String()).Msg("session abandoned")
	return resultOf(outcome), nil
}

// restore republishes a session whose terminal operation failed before the
// session branch was merged or deleted.
func (o *Orchestrator) restore(ctx context.Context, s *session.Session) {
	if !o.store.TryAdd(s.ID, s) {
		log.Ctx(ctx).Warn().Msg("unable to restore session")
	}
}

// take removes the session from the store and returns a context carrying a
// session-scoped logger.
func (o *Orchestrator) take(ctx context.Context, id string) (*session.Session, context.Context, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ctx, ErrInvalidRequest.Msg("session id is required")
	}
	s, ok := o.store.TryRemove(id)
	if !ok {
		log.Ctx(ctx).Info().Str("session_id", id).Msg("session not found")
		return nil, ctx, ErrSessionNotFound
	}
	logger := log.Ctx(ctx).With().Str("session_id", id).Logger()
	return s, logger.WithContext(ctx), nil
}

// ImprovePrompt asks the model to sharpen prompt for the repository.
func (o *Orchestrator) ImprovePrompt(ctx context.Context, prompt string) (*proposal.PromptImprovement, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrInvalidRequest.Msg("prompt is required")
	}
	pctx, cancel := o.withProposalTimeout(ctx)
	defer cancel()
	return o.proposer.ImprovePrompt(pctx, prompt, o.repo.Root())
}

// List returns the live sessions, oldest first.
func (o *Orchestrator) List() []session.Summary {
	return o.store.List()
}

// resolveFiles checks that every requested file is a regular file inside
// root and returns absolute and root-relative paths, without duplicates.
func resolveFiles(root string, files []string) ([]string, []string, error) {
	var abs, rel, missing []string
	seen := make(map[string]bool)
	for _, f := range files {
		a, r, err := resolveInRoot(root, f)
		if err != nil {
			missing = append(missing, f)
			continue
		}
		info, err := os.Stat(a)
		if err != nil || !info.Mode().IsRegular() {
			missing = append(missing, f)
			continue
		}
		if seen[r] {
			continue
		}
		seen[r] = true
		abs = append(abs, a)
		rel = append(rel, r)
	}
	if len(missing) > 0 {
		return nil, nil, ErrMissingFiles.Msg("files not found: " + strings.Join(missing, ", "))
	}
	return abs, rel, nil
}

// applyChanges writes the change set under root and returns the
// root-relative paths written along with those that did not exist before.
// Paths that resolve outside root are skipped with a warning. A new file
// that already exists is an error. On error the files written so far are
// still returned.
func applyChanges(ctx context.Context, root string, cs *session.ChangeSet) ([]string, []string, error) {
	logger := log.Ctx(ctx)
	applied, created := []string{}, []string{}
	write := func(f session.FileChange, mustNotExist bool) error {
		abs, rel, err := resolveInRoot(root, f.Filename)
		if err != nil {
			logger.Warn().Str("file", f.Filename).Msg("skipping file outside git root")
			return nil
		}
		_, statErr := os.Lstat(abs)
		if mustNotExist && statErr == nil {
			return ErrNewFileExists.Msg("new file already exists: " + rel)
		}
		if err := writeFile(abs, f.Content); err != nil {
			return ErrApplyChanges.MsgErr("unable to write "+rel, err)
		}
		applied = append(applied, rel)
		if errors.Is(statErr, fs.ErrNotExist) {
			created = append(created, rel)
		}
		return nil
	}

	for _, f := range cs.ChangedFiles {
		if err := write(f, false); err != nil {
			return applied, created, err
		}
	}
	for _, f := range cs.NewFiles {
		if err := write(f, true); err != nil {
			return applied, created, err
		}
	}
	logger.Debug().Strs("files", applied).Strs("created", created).Msg("changes applied")
	return applied, created, nil
}

// removeCreated deletes files the session created, which survive a branch
// switch and git clean when they are ignored, along with any parent
// directories left empty. Failures are logged.
func removeCreated(ctx context.Context, root string, created []string) {
	logger := log.Ctx(ctx)
	root = filepath.Clean(root)
	for _, rel := range created {
		abs := filepath.Join(root, filepath.FromSlash(rel))
		info, err := os.Lstat(abs)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		if err := os.Remove(abs); err != nil {
			logger.Warn().Err(err).Str("file", rel).Msg("unable to remove created file")
			continue
		}
		for dir := filepath.Dir(abs); dir != root && strings.HasPrefix(dir, root); dir = filepath.Dir(dir) {
			if os.Remove(dir) != nil {
				break
			}
		}
	}
}
