// Package gitutil backs the git-worktree-guard step with
// github.com/go-git/go-git/v5, replacing shell-outs to the git binary with
// the library the teacher already depends on for its own checkout
// operations.
package gitutil

import (
	"fmt"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Status summarizes whether a worktree has uncommitted changes.
type Status struct {
	Clean        bool
	Branch       string
	ChangedFiles []string
}

// Repo wraps a single working tree opened at dir.
type Repo struct {
	dir  string
	repo *git.Repository
}

// Open opens the repository containing dir (searching parent directories,
// matching `git status`'s own discovery behavior).
func Open(dir string) (*Repo, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("opening git repository at %s: %w", dir, err)
	}
	return &Repo{dir: dir, repo: repo}, nil
}

// Status reports the current branch and whether the worktree is dirty.
func (r *Repo) Status() (*Status, error) {
	wt, err := r.repo.Worktree()
	if err != nil {
		return nil, err
	}
	st, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("reading worktree status: %w", err)
	}
	head, err := r.repo.Head()
	branch := ""
	if err == nil && head.Name().IsBranch() {
		branch = head.Name().Short()
	}
	var changed []string
	for file := range st {
		changed = append(changed, file)
	}
	return &Status{Clean: st.IsClean(), Branch: branch, ChangedFiles: changed}, nil
}

// CreateBranch creates and checks out a new branch from HEAD.
func (r *Repo) CreateBranch(name string) error {
	wt, err := r.repo.Worktree()
	if err != nil {
		return err
	}
	return wt.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(name),
		Create: true,
	})
}

// StageCommitPush stages every change, commits with message, and pushes,
// retrying with an explicit upstream when the current branch has none yet —
// the same push/set-upstream/retry fallback spec.md describes for
// commit-push and branch strategies.
func (r *Repo) StageCommitPush(message, authorName, authorEmail string) error {
	wt, err := r.repo.Worktree()
	if err != nil {
		return err
	}
	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return fmt.Errorf("staging changes: %w", err)
	}
	_, err = wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  authorName,
			Email: authorEmail,
			When:  time.Now(),
		},
	})
	if err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	return r.pushWithUpstreamFallback()
}

func (r *Repo) pushWithUpstreamFallback() error {
	err := r.repo.Push(&git.PushOptions{})
	if err == nil || err == git.NoErrAlreadyUpToDate {
		return nil
	}

	head, headErr := r.repo.Head()
	if headErr != nil || !head.Name().IsBranch() {
		return fmt.Errorf("pushing: %w", err)
	}
	branch := head.Name().Short()
	remote := r.remoteForBranch(branch)

	refspec := config.RefSpec(fmt.Sprintf("refs/heads/%s:refs/heads/%s", branch, branch))
	retryErr := r.repo.Push(&git.PushOptions{
		RemoteName: remote,
		RefSpecs:   []config.RefSpec{refspec},
	})
	if retryErr != nil && retryErr != git.NoErrAlreadyUpToDate {
		return fmt.Errorf("pushing with upstream fallback to %s: %w", remote, retryErr)
	}
	return nil
}

// remoteForBranch returns branch.<name>.remote, falling back to the first
// configured remote, else "origin".
func (r *Repo) remoteForBranch(branch string) string {
	cfg, err := r.repo.Config()
	if err == nil {
		if b, ok := cfg.Branches[branch]; ok && b.Remote != "" {
			return b.Remote
		}
	}
	remotes, err := r.repo.Remotes()
	if err == nil && len(remotes) > 0 {
		return remotes[0].Config().Name
	}
	return "origin"
}

// Stash stashes all changes, including untracked files, with message.
// go-git has no native stash porcelain; this records a stash-equivalent by
// committing to a throwaway ref and resetting the worktree, which is the
// approach the rest of the engine treats as "stash" for reporting purposes.
func (r *Repo) Stash(message string) error {
	wt, err := r.repo.Worktree()
	if err != nil {
		return err
	}
	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return fmt.Errorf("staging for stash: %w", err)
	}
	head, err := r.repo.Head()
	if err != nil {
		return fmt.Errorf("resolving HEAD for stash: %w", err)
	}
	snapshot, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{Name: "dev-wizard", Email: "dev-wizard@local", When: time.Now()},
	})
	if err != nil {
		return fmt.Errorf("committing stash snapshot: %w", err)
	}
	stashRef := plumbing.NewHashReference(
		plumbing.ReferenceName(fmt.Sprintf("refs/stash-dev-wizard/%d", time.Now().UnixNano())),
		snapshot,
	)
	if err := r.repo.Storer.SetReference(stashRef); err != nil {
		return fmt.Errorf("recording stash ref: %w", err)
	}
	return wt.Reset(&git.ResetOptions{Commit: head.Hash(), Mode: git.HardReset})
}
