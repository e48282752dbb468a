package pipeline

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/garbanzo-i18n/garbanzo/config"
	"github.com/garbanzo-i18n/garbanzo/ghrepo"
	"github.com/garbanzo-i18n/garbanzo/tree"
)

// Status is the outcome of updating one branch.
type Status string

const (
	StatusUpdated   Status = "updated"
	StatusUnchanged Status = "unchanged"
	StatusDryRun    Status = "would update"
	StatusFailed    Status = "failed"
)

// BranchResult reports what happened to one branch.
type BranchResult struct {
	Branch string
	// WorkBranch is the branch the update was committed to.
	WorkBranch  string
	Status      Status
	PullRequest string
	// Added is the number of leaves added to the branch's file.
	Added int
	Err   error
}

// UpdateBranches merges the keys of source that each branch's translation
// file lacks, commits the result to the branch's work branch and opens a
// pull request back to the branch.
//
// Branches are processed concurrently, at most Config.MaxConcurrent at a
// time. A failing branch never affects the others: every branch gets a
// result and the returned error joins all failures.
func UpdateBranches(ctx context.Context, repo Repository, source tree.Value, branches []config.Branch, opts Options) ([]BranchResult, error) {
	cfg := opts.config()
	results := make([]BranchResult, len(branches))

	// Branches sharing a prefix would share a work branch and overwrite
	// each other's commits.
	owner := make(map[string]string, len(branches))
	skip := make([]bool, len(branches))
	for i, b := range branches {
		work := cfg.WorkBranch(b.Name)
		if prev, ok := owner[work]; ok {
			skip[i] = true
			results[i] = BranchResult{
				Branch:     b.Name,
				WorkBranch: work,
				Status:     StatusFailed,
				Err:        fmt.Errorf("%s: work branch %s is already used by %s", b.Name, work, prev),
			}
			continue
		}
		owner[work] = b.Name
	}

	limit := cfg.MaxConcurrent
	if limit <= 0 {
		limit = len(branches)
	}
	var g errgroup.Group
	g.SetLimit(max(limit, 1))

	for i, b := range branches {
		if skip[i] {
			continue
		}
		g.Go(func() error {
			results[i] = updateBranch(ctx, repo, source, b, &opts)
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, r := range results {
		if r.Err != nil {
			opts.logError("%v", r.Err)
			errs = append(errs, r.Err)
		}
	}
	return results, errors.Join(errs...)
}

func updateBranch(ctx context.Context, repo Repository, source tree.Value, b config.Branch, opts *Options) BranchResult {
	cfg := opts.config()
	res := BranchResult{Branch: b.Name, WorkBranch: cfg.WorkBranch(b.Name)}
	fail := func(err error) BranchResult {
		res.Status = StatusFailed
		res.Err = fmt.Errorf("%s: %w", b.Name, err)
		return res
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	content, _, err := repo.GetFile(ctx, b.Name, cfg.FilePath)
	var target tree.Value
	switch {
	case errors.Is(err, ghrepo.ErrNotFound):
		opts.log("%s: %s does not exist yet", b.Name, cfg.FilePath)
		target = tree.NewMapping(0)
	case err != nil:
		return fail(err)
	default:
		if target, err = tree.Parse(content); err != nil {
			return fail(fmt.Errorf("parsing %s: %w", cfg.FilePath, err))
		}
	}

	var languages []string
	if b.FiltersLanguages() {
		languages = b.Languages
	}
	merged, mismatches := Reconcile(source, target, languages, cfg.Scope, cfg.Sort)
	for _, m := range mismatches {
		opts.log("%s: %v", b.Name, m)
	}

	res.Added = countLeaves(target, merged)
	if tree.Equal(merged, target) && (!cfg.Sort || tree.IsSorted(target)) {
		res.Status = StatusUnchanged
		return res
	}
	if opts.DryRun {
		res.Status = StatusDryRun
		return res
	}

	data, err := tree.MarshalIndent(merged)
	if err != nil {
		return fail(err)
	}

	sha, err := repo.BranchSHA(ctx, b.Name)
	if err != nil {
		return fail(err)
	}
	err = repo.CreateBranch(ctx, res.WorkBranch, sha)
	switch {
	case errors.Is(err, ghrepo.ErrBranchExists):
		opts.log("%s: reusing %s", b.Name, res.WorkBranch)
	case err != nil:
		return fail(err)
	}

	// The work branch may already carry an earlier update.
	_, fileSHA, err := repo.GetFile(ctx, res.WorkBranch, cfg.FilePath)
	if err != nil && !errors.Is(err, ghrepo.ErrNotFound) {
		return fail(err)
	}
	if err := repo.UpdateFile(ctx, res.WorkBranch, cfg.FilePath, data, fileSHA, cfg.CommitMessage); err != nil {
		return fail(err)
	}

	url, err := repo.CreatePullRequest(ctx, res.WorkBranch, b.Name, cfg.PullRequestTitle(res.WorkBranch, b.Name))
	switch {
	case errors.Is(err, ghrepo.ErrPullRequestExists):
		opts.log("%s: pull request already open", b.Name)
	case err != nil:
		return fail(err)
	}
	res.PullRequest = url
	res.Status = StatusUpdated
	return res
}

// countLeaves counts the leaves of after whose path is missing from before.
func countLeaves(before, after tree.Value) int {
	n := 0
	tree.Walk(after, func(path []string, _ tree.Value) bool {
		if len(path) > 0 {
			if _, ok := tree.Lookup(before, path); !ok {
				n++
			}
		}
		return true
	})
	return n
}
