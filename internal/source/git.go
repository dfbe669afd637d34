// Package source reads the two versions of a file from disk or from git.
package source

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/utils/merkletrie"
)

// Repository wraps a go-git repository.
type Repository struct {
	repo *git.Repository
}

// Open opens the Git repository containing repoPath.
func Open(repoPath string) (*Repository, error) {
	repo, err := git.PlainOpenWithOptions(repoPath, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("opening repository %s: %w", repoPath, err)
	}
	return &Repository{repo: repo}, nil
}

// ResolveRef resolves a branch name, tag, commit hash or revision
// expression such as HEAD~1 to a commit.
func (r *Repository) ResolveRef(refName string) (*object.Commit, error) {
	// Try as a branch first
	if ref, err := r.repo.Reference(plumbing.NewBranchReferenceName(refName), true); err == nil {
		return r.commitAt(ref.Hash())
	}

	// Tags may be lightweight or annotated
	if ref, err := r.repo.Reference(plumbing.NewTagReferenceName(refName), true); err == nil {
		return r.commitAt(ref.Hash())
	}

	hash, err := r.repo.ResolveRevision(plumbing.Revision(refName))
	if err != nil {
		return nil, fmt.Errorf("resolving ref %q: not a branch, tag, or commit: %w", refName, err)
	}
	return r.commitAt(*hash)
}

func (r *Repository) commitAt(hash plumbing.Hash) (*object.Commit, error) {
	if commit, err := r.repo.CommitObject(hash); err == nil {
		return commit, nil
	}
	tag, err := r.repo.TagObject(hash)
	if err != nil {
		return nil, fmt.Errorf("getting commit %s: %w", hash, err)
	}
	commit, err := tag.Commit()
	if err != nil {
		return nil, fmt.Errorf("getting commit for tag %s: %w", tag.Name, err)
	}
	return commit, nil
}

// ReadFile returns the content of path at the given revision.
func (r *Repository) ReadFile(rev, path string) ([]byte, error) {
	commit, err := r.ResolveRef(rev)
	if err != nil {
		return nil, err
	}
	return readFromCommit(commit, path)
}

func readFromCommit(commit *object.Commit, path string) ([]byte, error) {
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("getting tree: %w", err)
	}

	f, err := tree.File(filepath.ToSlash(path))
	if err != nil {
		return nil, fmt.Errorf("getting file %s at %s: %w", path, commit.Hash, err)
	}

	reader, err := f.Reader()
	if err != nil {
		return nil, fmt.Errorf("opening file %s: %w", path, err)
	}
	defer reader.Close()

	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", path, err)
	}
	return content, nil
}

// ModifiedPython returns the sorted paths of Python files present in both
// revisions whose content differs. Added and deleted files are left out:
// only functions that exist on both sides can be compared.
func (r *Repository) ModifiedPython(from, to string) ([]string, error) {
	base, err := r.ResolveRef(from)
	if err != nil {
		return nil, err
	}
	head, err := r.ResolveRef(to)
	if err != nil {
		return nil, err
	}

	baseTree, err := base.Tree()
	if err != nil {
		return nil, fmt.Errorf("getting base tree: %w", err)
	}
	headTree, err := head.Tree()
	if err != nil {
		return nil, fmt.Errorf("getting head tree: %w", err)
	}

	changes, err := baseTree.Diff(headTree)
	if err != nil {
		return nil, fmt.Errorf("computing diff: %w", err)
	}

	return modifiedPython(changes)
}

// modifiedPython filters tree changes down to modified Python files.
func modifiedPython(changes object.Changes) ([]string, error) {
	var paths []string
	for _, change := range changes {
		action, err := change.Action()
		if err != nil {
			return nil, fmt.Errorf("classifying change %s: %w", change, err)
		}
		if action != merkletrie.Modify {
			continue
		}
		if IsPython(change.To.Name) {
			paths = append(paths, change.To.Name)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// IsPython reports whether path names a Python source file.
func IsPython(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".py", ".pyi":
		return true
	}
	return false
}
