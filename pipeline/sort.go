package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/garbanzo-i18n/garbanzo/ghrepo"
	"github.com/garbanzo-i18n/garbanzo/tree"
)

// SortOptions configures SortFile.
type SortOptions struct {
	Options
	// Path is the local translation file to sort.
	Path string
	// Branch receives the sorted file at Config.FilePath when a
	// repository is given. Without a repository, Path is rewritten.
	Branch string
}

// SortFile sorts the keys of a translation file at every depth. The sorted
// file is written back to Path, or committed to Branch when repo is not
// nil. It reports whether anything was, or in a dry run would be, written.
func SortFile(ctx context.Context, repo Repository, opts SortOptions) (bool, error) {
	cfg := opts.config()
	store, err := tree.ParseFile(opts.Path)
	if err != nil {
		return false, err
	}
	sorted := tree.Sort(store)
	data, err := tree.MarshalIndent(sorted)
	if err != nil {
		return false, err
	}

	if repo == nil {
		if tree.IsSorted(store) {
			opts.log("%s is already sorted", opts.Path)
			return false, nil
		}
		if opts.DryRun {
			opts.log("Would sort %s", opts.Path)
			return true, nil
		}
		if err := tree.WriteFile(opts.Path, sorted); err != nil {
			return false, err
		}
		opts.log("Sorted %s", opts.Path)
		return true, nil
	}

	if opts.Branch == "" {
		return false, errors.New("a branch is required to commit the sorted file")
	}
	remote, sha, err := repo.GetFile(ctx, opts.Branch, cfg.FilePath)
	if err != nil && !errors.Is(err, ghrepo.ErrNotFound) {
		return false, err
	}
	if bytes.Equal(remote, data) {
		opts.log("%s@%s is already sorted", cfg.FilePath, opts.Branch)
		return false, nil
	}
	if opts.DryRun {
		opts.log("Would commit sorted %s to %s", cfg.FilePath, opts.Branch)
		return true, nil
	}
	if err := repo.UpdateFile(ctx, opts.Branch, cfg.FilePath, data, sha, cfg.SortCommitMessage); err != nil {
		return false, err
	}
	opts.log("Committed sorted %s to %s", cfg.FilePath, opts.Branch)
	return true, nil
}

// Download returns the translation file of branch, indented.
func Download(ctx context.Context, repo Repository, branch string, opts Options) ([]byte, error) {
	cfg := opts.config()
	content, _, err := repo.GetFile(ctx, branch, cfg.FilePath)
	if err != nil {
		return nil, err
	}
	store, err := tree.Parse(content)
	if err != nil {
		return nil, fmt.Errorf("parsing %s@%s: %w", cfg.FilePath, branch, err)
	}
	return tree.MarshalIndent(store)
}
