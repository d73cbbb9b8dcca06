// Package gitio is the read-only git collaborator for driftline. It wraps
// go-git to answer the questions the timeline tracker asks: what changed
// in a commit, what a file looked like at a revision, where a task
// branched from main, and how far behind a branch point is.
package gitio

import (
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"

	apperrors "github.com/driftline/driftline/internal/errors"
)

// CommitInfo is the metadata the tracker records alongside a main-branch
// event.
type CommitInfo struct {
	Message     string
	Author      string
	DiffSummary string
}

// Repo provides read-only access to one git repository.
type Repo struct {
	repo *git.Repository
	root string

	// targetBranch overrides auto-detection when non-empty.
	targetBranch string
}

// Open opens the repository containing dir. An empty targetBranch enables
// auto-detection (main, then master).
func Open(dir string, targetBranch string) (*Repo, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, apperrors.NewGitError("failed to open repository", apperrors.ErrNotGitRepository).
			WithRepository(dir)
	}

	root := dir
	if wt, err := repo.Worktree(); err == nil {
		root = wt.Filesystem.Root()
	}

	return &Repo{repo: repo, root: root, targetBranch: targetBranch}, nil
}

// Root returns the worktree root directory.
func (r *Repo) Root() string {
	return r.root
}

// TargetBranch returns the configured target branch, or auto-detects it by
// probing main then master.
func (r *Repo) TargetBranch() (string, error) {
	if r.targetBranch != "" {
		return r.targetBranch, nil
	}
	for _, name := range []string{"main", "master"} {
		if _, err := r.repo.Reference(plumbing.NewBranchReferenceName(name), true); err == nil {
			return name, nil
		}
	}
	return "", apperrors.NewGitError("no target branch found", apperrors.ErrBranchNotFound).
		WithRepository(r.root)
}

// CurrentMainCommit returns the commit the target branch points at.
func (r *Repo) CurrentMainCommit() (string, error) {
	branch, err := r.TargetBranch()
	if err != nil {
		return "", err
	}
	ref, err := r.repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	if err != nil {
		return "", apperrors.NewGitError("failed to resolve target branch", err).
			WithRevision(branch)
	}
	return ref.Hash().String(), nil
}

// commitObject resolves a revision string (hash, short hash, or ref name)
// to a commit object.
func (r *Repo) commitObject(rev string) (*object.Commit, error) {
	hash, err := r.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, apperrors.NewGitError("failed to resolve revision", apperrors.ErrCommitNotFound).
			WithRevision(rev)
	}
	commit, err := r.repo.CommitObject(*hash)
	if err != nil {
		return nil, apperrors.NewGitError("failed to load commit", err).WithRevision(rev)
	}
	return commit, nil
}

// FileContentAtCommit returns the file's content at the given commit.
// A file absent at the commit yields ErrFileNotInCommit.
func (r *Repo) FileContentAtCommit(path, commit string) (string, error) {
	c, err := r.commitObject(commit)
	if err != nil {
		return "", err
	}

	file, err := c.File(filepath.ToSlash(path))
	if err != nil {
		if err == object.ErrFileNotFound {
			return "", apperrors.NewGitError("file not present at commit", apperrors.ErrFileNotInCommit).
				WithRevision(commit).
				WithPath(path)
		}
		return "", apperrors.NewGitError("failed to read file at commit", err).
			WithRevision(commit).
			WithPath(path)
	}

	content, err := file.Contents()
	if err != nil {
		return "", apperrors.NewGitError("failed to read blob contents", err).
			WithRevision(commit).
			WithPath(path)
	}
	return content, nil
}

// FilesChangedInCommit returns the paths touched by a commit.
func (r *Repo) FilesChangedInCommit(commit string) ([]string, error) {
	c, err := r.commitObject(commit)
	if err != nil {
		return nil, err
	}

	stats, err := c.Stats()
	if err != nil {
		return nil, apperrors.NewGitError("failed to compute commit stats", err).WithRevision(commit)
	}

	paths := make([]string, 0, len(stats))
	for _, st := range stats {
		paths = append(paths, st.Name)
	}
	return paths, nil
}

// CommitInfo returns the commit message, author, and a diff summary.
func (r *Repo) CommitInfo(commit string) (CommitInfo, error) {
	c, err := r.commitObject(commit)
	if err != nil {
		return CommitInfo{}, err
	}

	info := CommitInfo{
		Message: strings.TrimSpace(c.Message),
		Author:  c.Author.Name,
	}

	// Diff summary is best-effort; stats can fail on exotic objects.
	if stats, err := c.Stats(); err == nil {
		info.DiffSummary = strings.TrimSpace(stats.String())
	}
	return info, nil
}

// ChangedFilesInWorktree returns paths with uncommitted modifications
// (staged, unstaged, or untracked) in the live worktree rooted at root.
// Root may be empty to use the repository's own worktree.
func (r *Repo) ChangedFilesInWorktree(root string) ([]string, error) {
	repo := r.repo
	if root != "" && root != r.root {
		opened, err := git.PlainOpenWithOptions(root, &git.PlainOpenOptions{DetectDotGit: true})
		if err != nil {
			return nil, apperrors.NewGitError("failed to open worktree", err).WithRepository(root)
		}
		repo = opened
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, apperrors.NewGitError("failed to access worktree", err).WithRepository(root)
	}
	status, err := wt.Status()
	if err != nil {
		return nil, apperrors.NewGitError("failed to read worktree status", err).WithRepository(root)
	}

	var paths []string
	for path, st := range status {
		if st.Worktree == git.Unmodified && st.Staging == git.Unmodified {
			continue
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// WorktreeFileContent reads a file from the live worktree with UTF-8
// decoding. Invalid bytes are replaced rather than failing the read.
func (r *Repo) WorktreeFileContent(path string) (string, error) {
	full := path
	if !filepath.IsAbs(full) {
		full = filepath.Join(r.root, path)
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return "", apperrors.NewGitError("failed to read worktree file", err).WithPath(path)
	}

	if utf8.Valid(data) {
		return string(data), nil
	}
	return strings.ToValidUTF8(string(data), "�"), nil
}

// BranchPoint returns the merge-base between the task's branch and the
// target branch, the commit the task diverged from main at. Task branches
// are named by task ID.
func (r *Repo) BranchPoint(taskID string) (string, error) {
	taskCommit, err := r.commitObject(taskID)
	if err != nil {
		return "", err
	}

	mainCommitID, err := r.CurrentMainCommit()
	if err != nil {
		return "", err
	}
	mainCommit, err := r.commitObject(mainCommitID)
	if err != nil {
		return "", err
	}

	bases, err := taskCommit.MergeBase(mainCommit)
	if err != nil || len(bases) == 0 {
		return "", apperrors.NewGitError("failed to find branch point", apperrors.ErrCommitNotFound).
			WithRevision(taskID)
	}
	return bases[0].Hash.String(), nil
}

// CountCommitsBetween counts commits reachable from b back to (and
// excluding) a. Returns 0 when a and b are the same commit.
func (r *Repo) CountCommitsBetween(a, b string) (int, error) {
	aCommit, err := r.commitObject(a)
	if err != nil {
		return 0, err
	}
	bCommit, err := r.commitObject(b)
	if err != nil {
		return 0, err
	}
	if aCommit.Hash == bCommit.Hash {
		return 0, nil
	}

	iter, err := r.repo.Log(&git.LogOptions{From: bCommit.Hash})
	if err != nil {
		return 0, apperrors.NewGitError("failed to walk history", err).WithRevision(b)
	}
	defer iter.Close()

	count := 0
	found := false
	err = iter.ForEach(func(c *object.Commit) error {
		if c.Hash == aCommit.Hash {
			found = true
			return storer.ErrStop
		}
		count++
		return nil
	})
	if err != nil {
		return 0, apperrors.NewGitError("failed to walk history", err).WithRevision(b)
	}
	if !found {
		return 0, apperrors.NewGitError("commits are not on one line", apperrors.ErrCommitNotFound).
			WithRevision(a)
	}
	return count, nil
}
