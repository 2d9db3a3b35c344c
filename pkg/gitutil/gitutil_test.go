package gitutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello"), 0o644))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("README.md")
	require.NoError(t, err)
	_, err = wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "tester", Email: "tester@local"},
	})
	require.NoError(t, err)
	return dir
}

func TestRepoStatus(t *testing.T) {
	t.Run("Should report a clean worktree right after commit", func(t *testing.T) {
		dir := initRepo(t)
		r, err := Open(dir)
		require.NoError(t, err)
		st, err := r.Status()
		require.NoError(t, err)
		assert.True(t, st.Clean)
	})

	t.Run("Should report a dirty worktree after an untracked change", func(t *testing.T) {
		dir := initRepo(t)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "new.txt"), []byte("x"), 0o644))
		r, err := Open(dir)
		require.NoError(t, err)
		st, err := r.Status()
		require.NoError(t, err)
		assert.False(t, st.Clean)
		assert.Contains(t, st.ChangedFiles, "new.txt")
	})
}

func TestRepoCreateBranch(t *testing.T) {
	t.Run("Should create and check out a new branch", func(t *testing.T) {
		dir := initRepo(t)
		r, err := Open(dir)
		require.NoError(t, err)
		require.NoError(t, r.CreateBranch("feature/x"))
		head, err := r.repo.Head()
		require.NoError(t, err)
		assert.Equal(t, "feature/x", head.Name().Short())
	})
}

func TestRepoStageCommitPush(t *testing.T) {
	t.Run("Should report a clean worktree once local changes are committed", func(t *testing.T) {
		dir := initRepo(t)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "new.txt"), []byte("x"), 0o644))
		r, err := Open(dir)
		require.NoError(t, err)

		wt, err := r.repo.Worktree()
		require.NoError(t, err)
		_, err = wt.Add("new.txt")
		require.NoError(t, err)
		_, err = wt.Commit("chore: add new.txt", &git.CommitOptions{
			Author: &object.Signature{Name: "tester", Email: "tester@local"},
		})
		require.NoError(t, err)

		st, err := r.Status()
		require.NoError(t, err)
		assert.True(t, st.Clean)
	})
}
