package session

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateDoesNotPublish(t *testing.T) {
	st := NewStore()
	s := st.Create(true, "/repo", []string{"a.go"})
	require.NotEmpty(t, s.ID)
	assert.Equal(t, "/repo", s.GitRoot)
	assert.True(t, s.UseVersionControl)
	assert.Empty(t, s.NewBranch)
	assert.NotNil(t, s.ProposedChanges.ChangedFiles)
	assert.WithinDuration(t, time.Now(), s.CreatedAt, 5*time.Second)
	assert.Equal(t, 0, st.Len())

	_, ok := st.Get(s.ID)
	assert.False(t, ok)
}

func TestIdsAreUnique(t *testing.T) {
	st := NewStore()
	seen := map[string]bool{}
	for i := 0; i < 500; i++ {
		s := st.Create(false, "/repo", nil)
		require.False(t, seen[s.ID])
		seen[s.ID] = true
	}
}

func TestWithIDFunc(t *testing.T) {
	n := 0
	st := NewStore(WithIDFunc(func() string {
		n++
		return "fixed"
	}))
	first := st.Create(false, "/repo", nil)
	second := st.Create(true, "/repo", nil)
	assert.Equal(t, "fixed", first.ID)
	assert.Equal(t, "fixed", second.ID)
	assert.Equal(t, 2, n)
	assert.WithinDuration(t, time.Now(), first.CreatedAt, 5*time.Second)

	require.True(t, st.TryAdd(first.ID, first))
	assert.False(t, st.TryAdd(second.ID, second))
	assert.Equal(t, 1, st.Len())
}

func TestTryAddTryRemove(t *testing.T) {
	st := NewStore()
	s := st.Create(true, "/repo", []string{"a.go"})

	assert.True(t, st.TryAdd(s.ID, s))
	assert.False(t, st.TryAdd(s.ID, st.Create(true, "/repo", nil)))
	assert.Equal(t, 1, st.Len())

	sum, ok := st.Get(s.ID)
	require.True(t, ok)
	assert.Equal(t, s.ID, sum.ID)

	got, ok := st.TryRemove(s.ID)
	require.True(t, ok)
	assert.Same(t, s, got)

	_, ok = st.TryRemove(s.ID)
	assert.False(t, ok)
	assert.Equal(t, 0, st.Len())
}

func TestConcurrentTryRemoveHasOneWinner(t *testing.T) {
	st := NewStore()
	s := st.Create(true, "/repo", nil)
	require.True(t, st.TryAdd(s.ID, s))

	var wins atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, ok := st.TryRemove(s.ID); ok {
				wins.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()
	assert.EqualValues(t, 1, wins.Load())
}

func TestListOrdersByCreation(t *testing.T) {
	st := NewStore()
	assert.Empty(t, st.List())

	var ids []string
	for i := 0; i < 3; i++ {
		s := st.Create(true, "/repo", []string{"a.go"})
		s.ProposedChanges.ChangedFiles = []FileChange{{Filename: "a.go"}}
		require.True(t, st.TryAdd(s.ID, s))
		ids = append(ids, s.ID)
		time.Sleep(2 * time.Millisecond)
	}
	list := st.List()
	require.Len(t, list, 3)
	for i, sum := range list {
		assert.Equal(t, ids[i], sum.ID)
		assert.Equal(t, 1, sum.ChangedFiles)
	}
}

func TestChangeSetNormalize(t *testing.T) {
	cs := ChangeSet{Answered: false, ChangedFiles: []FileChange{{Filename: "a"}}}
	cs.Normalize()
	assert.Empty(t, cs.ChangedFiles)
	assert.NotNil(t, cs.NewFiles)
	assert.True(t, cs.Empty())

	cs = ChangeSet{Answered: true, NewFiles: []FileChange{{Filename: "b"}}}
	cs.Normalize()
	assert.NotNil(t, cs.ChangedFiles)
	assert.Len(t, cs.NewFiles, 1)
	assert.False(t, cs.Empty())
}
