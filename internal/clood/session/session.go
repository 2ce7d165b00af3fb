// Package session holds the in-memory registry of live clood sessions. A
// session is published once its proposal has been applied and is removed by
// exactly one terminal operation.
package session

import (
	"sort"
	"sync"
	"time"

	"github.com/clood-dev/clood/internal/common/uuid"
)

// FileChange is a proposed full replacement or creation of one file.
type FileChange struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// ChangeSet is the model's proposal. When Answered is false both lists are
// empty.
type ChangeSet struct {
	Answered     bool         `json:"answered"`
	ChangedFiles []FileChange `json:"changedFiles"`
	NewFiles     []FileChange `json:"newFiles"`
}

// Normalize enforces the answered invariant and replaces nil lists with
// empty ones.
func (c *ChangeSet) Normalize() {
	if !c.Answered || c.ChangedFiles == nil {
		c.ChangedFiles = []FileChange{}
	}
	if !c.Answered || c.NewFiles == nil {
		c.NewFiles = []FileChange{}
	}
}

// Empty reports whether the change set proposes nothing.
func (c *ChangeSet) Empty() bool {
	return len(c.ChangedFiles) == 0 && len(c.NewFiles) == 0
}

// Session is one proposal-and-decide cycle against a repository.
type Session struct {
	ID                string
	UseVersionControl bool
	GitRoot           string
	OriginalBranch    string
	NewBranch         string
	Files             []string
	ProposedChanges   ChangeSet
	// AppliedFiles are the root-relative paths actually written to disk.
	AppliedFiles []string
	// CreatedFiles is the subset of AppliedFiles that did not exist before
	// the session wrote them.
	CreatedFiles []string
	CreatedAt    time.Time
}

// Summary is a read-only view of a live session.
type Summary struct {
	ID                string    `json:"id"`
	UseVersionControl bool      `json:"useVersionControl"`
	OriginalBranch    string    `json:"originalBranch,omitempty"`
	NewBranch         string    `json:"newBranch,omitempty"`
	Files             []string  `json:"files"`
	ChangedFiles      int       `json:"changedFiles"`
	NewFiles          int       `json:"newFiles"`
	CreatedAt         time.Time `json:"createdAt"`
}

// Summary returns a snapshot of s.
func (s *Session) Summary() Summary {
	return Summary{
		ID:                s.ID,
		UseVersionControl: s.UseVersionControl,
		OriginalBranch:    s.OriginalBranch,
		NewBranch:         s.NewBranch,
		Files:             append([]string(nil), s.Files...),
		ChangedFiles:      len(s.ProposedChanges.ChangedFiles),
		NewFiles:          len(s.ProposedChanges.NewFiles),
		CreatedAt:         s.CreatedAt,
	}
}

// Store is a concurrency-safe map of session id to session.
type Store struct {
	sessions sync.Map
	newID    func() string
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithIDFunc replaces the UUIDv7 generator used by Create.
func WithIDFunc(f func() string) StoreOption {
	return func(st *Store) {
		st.newID = f
	}
}

// NewStore returns an empty store.
func NewStore(opts ...StoreOption) *Store {
	st := &Store{newID: uuid.NewString}
	for _, opt := range opts {
		opt(st)
	}
	return st
}

// Create builds a session with a fresh id. The session is not published.
func (st *Store) Create(useVersionControl bool, gitRoot string, files []string) *Session {
	id := st.newID()
	createdAt := uuid.TimestampOf(id)
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	return &Session{
		ID:                id,
		UseVersionControl: useVersionControl,
		GitRoot:           gitRoot,
		Files:             append([]string(nil), files...),
		ProposedChanges:   ChangeSet{ChangedFiles: []FileChange{}, NewFiles: []FileChange{}},
		CreatedAt:         createdAt,
	}
}

// TryAdd publishes s under id unless the id is already taken.
func (st *Store) TryAdd(id string, s *Session) bool {
	_, loaded := st.sessions.LoadOrStore(id, s)
	return !loaded
}

// TryRemove atomically removes and returns the session stored under id.
// Of any number of concurrent callers exactly one receives the session.
func (st *Store) TryRemove(id string) (*Session, bool) {
	v, ok := st.sessions.LoadAndDelete(id)
	if !ok {
		return nil, false
	}
	return v.(*Session), true
}

// Get returns a summary of the session stored under id.
func (st *Store) Get(id string) (Summary, bool) {
	v, ok := st.sessions.Load(id)
	if !ok {
		return Summary{}, false
	}
	return v.(*Session).Summary(), true
}

// List returns summaries of all live sessions, oldest first.
func (st *Store) List() []Summary {
	out := []Summary{}
	st.sessions.Range(func(_, v any) bool {
		out = append(out, v.(*Session).Summary())
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	n := 0
	st.sessions.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
