// Package git drives a git executable against a single repository root.
// Every operation shells out with the caller's context; nothing is cached
// between calls.
package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/clood-dev/clood/internal/common/apperrors"
	"github.com/rs/zerolog/log"
)

const (
	maxBranchNameLen = 40
	branchNameFiles  = 4
)

var branchNameStrip = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// Result is the outcome of one git invocation.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Output returns stdout and stderr joined, trimmed of surrounding space.
func (r *Result) Output() string {
	return strings.TrimSpace(strings.TrimSpace(r.Stdout) + "\n" + strings.TrimSpace(r.Stderr))
}

// CommandError reports a git command that exited non-zero.
type CommandError struct {
	Args   []string
	Result *Result
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("git %s exited with %d: %s", strings.Join(e.Args, " "), e.Result.ExitCode, e.Result.Output())
}

// CommitOutcome distinguishes a commit from a no-op.
type CommitOutcome int

const (
	Committed CommitOutcome = iota
	NothingToCommit
)

func (o CommitOutcome) String() string {
	switch o {
	case Committed:
		return "committed"
	case NothingToCommit:
		return "nothing_to_commit"
	default:
		return "unknown"
	}
}

// Repo runs git commands in a repository root.
type Repo struct {
	root         string
	gitPath      string
	branchPrefix string
}

// Option configures a Repo.
type Option func(*Repo)

// WithGitPath sets the git executable. Empty means "git" from PATH.
func WithGitPath(path string) Option {
	return func(r *Repo) {
		if path != "" {
			r.gitPath = path
		}
	}
}

// WithBranchPrefix sets the prefix of generated branch names.
func WithBranchPrefix(prefix string) Option {
	return func(r *Repo) {
		if prefix != "" {
			r.branchPrefix = prefix
		}
	}
}

// New returns a Repo rooted at root.
func New(root string, opts ...Option) *Repo {
	r := &Repo{
		root:         root,
		gitPath:      "git",
		branchPrefix: "clood",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Root returns the repository root.
func (r *Repo) Root() string {
	return r.root
}

// Run executes git with args in the repository root. A non-zero exit is not
// an error; the returned error is set only when git could not be run.
func (r *Repo) Run(ctx context.Context, args ...string) (*Result, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.gitPath, args...)
	cmd.Dir = r.root
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0", "LC_ALL=C")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := &Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) || ctx.Err() != nil {
			log.Ctx(ctx).Error().Err(err).Strs("args", args).Msg("git failed to run")
			return res, ErrGitCommand.MsgErr(fmt.Sprintf("unable to run git %s", args[0]), err)
		}
		res.ExitCode = exitErr.ExitCode()
	}
	log.Ctx(ctx).Debug().Strs("args", args).Int("exit_code", res.ExitCode).Msg("git")
	return res, nil
}

// run executes git and converts a non-zero exit into sentinel.
func (r *Repo) run(ctx context.Context, sentinel apperrors.Error, args ...string) (*Result, error) {
	res, err := r.Run(ctx, args...)
	if err != nil {
		return res, err
	}
	if res.ExitCode != 0 {
		return res, sentinel.Err(&CommandError{Args: args, Result: res})
	}
	return res, nil
}

// IsRepository verifies that the root is inside a git work tree.
func (r *Repo) IsRepository(ctx context.Context) error {
	res, err := r.Run(ctx, "rev-parse", "--show-toplevel")
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return ErrNotRepository.MsgErr(fmt.Sprintf("%s is not a git repository", r.root), &CommandError{Args: []string{"rev-parse", "--show-toplevel"}, Result: res})
	}
	return nil
}

// CurrentBranch returns the checked out branch.
func (r *Repo) CurrentBranch(ctx context.Context) (string, error) {
	res, err := r.run(ctx, ErrCurrentBranch, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	branch := strings.TrimSpace(res.Stdout)
	if branch == "HEAD" {
		return "", ErrDetachedHead
	}
	return branch, nil
}

// BranchExists reports whether a local branch called name exists.
func (r *Repo) BranchExists(ctx context.Context, name string) bool {
	res, err := r.Run(ctx, "rev-parse", "--verify", "--quiet", "refs/heads/"+name)
	return err == nil && res.ExitCode == 0
}

// BranchBaseName derives a branch name from the basenames of the first few
// files, restricted to [A-Za-z0-9_-].
func BranchBaseName(prefix string, files []string) string {
	names := make([]string, 0, branchNameFiles)
	for _, f := range files {
		if len(names) == branchNameFiles {
			break
		}
		names = append(names, filepath.Base(filepath.FromSlash(f)))
	}
	suffix := branchNameStrip.ReplaceAllString(strings.Join(names, "-"), "")
	if strings.Trim(suffix, "-") == "" {
		suffix = "empty"
	}
	name := branchNameStrip.ReplaceAllString(prefix, "") + "-" + suffix
	if len(name) > maxBranchNameLen {
		name = name[:maxBranchNameLen]
	}
	return strings.Trim(name, "-")
}

// CreateBranch creates and checks out a new branch named after files. A
// numeric suffix is appended until the name is unused.
func (r *Repo) CreateBranch(ctx context.Context, files []string) (string, error) {
	base := BranchBaseName(r.branchPrefix, files)
	if base == "" {
		return "", ErrInvalidRefName
	}
	name := base
	for i := 1; r.BranchExists(ctx, name); i++ {
		name = fmt.Sprintf("%s-%d", base, i)
	}
	if _, err := r.run(ctx, ErrBranchCreate, "checkout", "-b", name); err != nil {
		return "", err
	}
	log.Ctx(ctx).Info().Str("branch", name).Msg("created branch")
	return name, nil
}

// CommitSpecificFiles stages exactly paths and commits them. Paths are
// force-added so files matched by .gitignore are still committed. When staging
// produces no difference NothingToCommit is returned and no commit is made.
func (r *Repo) CommitSpecificFiles(ctx context.Context, paths []string, message string) (CommitOutcome, error) {
	if len(paths) == 0 {
		return NothingToCommit, nil
	}
	for _, p := range paths {
		if _, err := r.run(ctx, ErrCommit, "add", "-f", "--", p); err != nil {
			return NothingToCommit, err
		}
	}
	args := append([]string{"diff", "--cached", "--name-only", "--"}, paths...)
	res, err := r.run(ctx, ErrCommit, args...)
	if err != nil {
		return NothingToCommit, err
	}
	if strings.TrimSpace(res.Stdout) == "" {
		return NothingToCommit, nil
	}
	args = append([]string{"commit", "-m", message, "--"}, paths...)
	if _, err := r.run(ctx, ErrCommit, args...); err != nil {
		return NothingToCommit, err
	}
	return Committed, nil
}

// SwitchToBranch checks out branch.
func (r *Repo) SwitchToBranch(ctx context.Context, branch string) error {
	_, err := r.run(ctx, ErrSwitchBranch, "checkout", branch)
	return err
}

// DeleteBranch force-deletes a local branch.
func (r *Repo) DeleteBranch(ctx context.Context, branch string) error {
	_, err := r.run(ctx, ErrDeleteBranch, "branch", "-D", branch)
	return err
}

// Merge merges branch into the current branch. Conflicts are reported, not
// resolved; the repository is left in whatever state git leaves it.
func (r *Repo) Merge(ctx context.Context, branch string) error {
	_, err := r.run(ctx, ErrMergeFailed, "merge", "--no-edit", branch)
	return err
}

// UncommittedChanges lists the paths reported by git status, tracked and
// untracked.
func (r *Repo) UncommittedChanges(ctx context.Context) ([]string, error) {
	res, err := r.run(ctx, ErrRepoStatus, "status", "--porcelain")
	if err != nil {
		return nil, err
	}
	return parsePorcelain(res.Stdout), nil
}

func parsePorcelain(out string) []string {
	var paths []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if len(line) < 4 {
			continue
		}
		p := line[3:]
		if i := strings.Index(p, " -> "); i >= 0 {
			p = p[i+4:]
		}
		paths = append(paths, strings.Trim(strings.TrimSpace(p), `"`))
	}
	return paths
}

// RecheckoutBranchRevert discards working tree modifications and removes
// untracked files. Failures are logged and otherwise ignored.
func (r *Repo) RecheckoutBranchRevert(ctx context.Context) {
	for _, args := range [][]string{{"checkout", "--", "."}, {"clean", "-fd"}} {
		res, err := r.Run(ctx, args...)
		if err != nil {
			log.Ctx(ctx).Warn().Err(err).Strs("args", args).Msg("working tree cleanup failed")
			continue
		}
		if res.ExitCode != 0 {
			log.Ctx(ctx).Warn().Strs("args", args).Str("output", res.Output()).Msg("working tree cleanup failed")
		}
	}
}
