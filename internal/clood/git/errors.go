package git

import (
	"net/http"

	"github.com/clood-dev/clood/internal/common/apperrors"
)

var (
	ErrGitBase        apperrors.Error = apperrors.New("git operation failed").SetStatusCode(http.StatusInternalServerError)
	ErrGitCommand     apperrors.Error = ErrGitBase.New("unable to run git")
	ErrNotRepository  apperrors.Error = ErrGitBase.New("not a git repository").SetStatusCode(http.StatusBadRequest)
	ErrDetachedHead   apperrors.Error = ErrGitBase.New("repository is in detached HEAD state").SetStatusCode(http.StatusConflict).SetExpected(true)
	ErrCurrentBranch  apperrors.Error = ErrGitBase.New("unable to determine current branch")
	ErrBranchCreate   apperrors.Error = ErrGitBase.New("unable to create branch")
	ErrSwitchBranch   apperrors.Error = ErrGitBase.New("unable to switch branch")
	ErrDeleteBranch   apperrors.Error = ErrGitBase.New("unable to delete branch")
	ErrCommit         apperrors.Error = ErrGitBase.New("unable to commit changes")
	ErrMergeFailed    apperrors.Error = ErrGitBase.New("merge failed").SetStatusCode(http.StatusConflict)
	ErrRepoStatus     apperrors.Error = ErrGitBase.New("unable to read repository status")
	ErrInvalidRefName apperrors.Error = ErrGitBase.New("invalid branch name").SetStatusCode(http.StatusBadRequest)
)
