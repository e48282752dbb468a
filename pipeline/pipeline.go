// Package pipeline runs the reconciliation workflows: updating repository
// branches with missing keys, pushing missing keys to the translation
// server, sorting and downloading translation files.
//
// The pure tree operations live in the merge, partition and transcode
// packages; this package only fetches inputs, applies them and stores the
// results through the Repository and Server collaborators.
package pipeline

import (
	"context"

	"github.com/garbanzo-i18n/garbanzo/config"
	"github.com/garbanzo-i18n/garbanzo/merge"
	"github.com/garbanzo-i18n/garbanzo/partition"
	"github.com/garbanzo-i18n/garbanzo/tree"
)

// Repository reads and writes files of a git hosting service.
// ghrepo.Client implements it.
type Repository interface {
	GetFile(ctx context.Context, branch, path string) (content []byte, sha string, err error)
	BranchSHA(ctx context.Context, branch string) (string, error)
	CreateBranch(ctx context.Context, name, sha string) error
	UpdateFile(ctx context.Context, branch, path string, content []byte, sha, message string) error
	CreatePullRequest(ctx context.Context, head, base, title string) (url string, err error)
}

// Server reads and writes the key/value store of the translation server.
// server.Client implements it.
type Server interface {
	Fetch(ctx context.Context) (tree.Value, error)
	Push(ctx context.Context, store tree.Value, query string) error
}

// Options configures the workflows.
type Options struct {
	// Config supplies file path, naming, commit messages, scope, sorting
	// and concurrency. Nil means config.Defaults().
	Config *config.File
	// DryRun computes results without writing anything.
	DryRun bool
	// OnLog emits progress messages.
	OnLog func(format string, args ...any)
	// OnError emits error messages.
	OnError func(format string, args ...any)
}

func (o *Options) log(format string, args ...any) {
	if o.OnLog != nil {
		o.OnLog(format, args...)
	}
}

func (o *Options) logError(format string, args ...any) {
	if o.OnError != nil {
		o.OnError(format, args...)
	} else if o.OnLog != nil {
		o.OnLog(format, args...)
	}
}

func (o *Options) config() *config.File {
	if o.Config == nil {
		o.Config = config.Defaults()
	}
	return o.Config
}

// Reconcile merges the keys of source that target lacks into a copy of
// target. When languages is non-nil, the language partitions of source are
// first reduced to those languages. With scope "base" only the base
// partition is merged. With sorted set the result is sorted at every depth.
//
// Partitions that could not be filtered are returned; they are merged
// unfiltered.
func Reconcile(source, target tree.Value, languages []string, scope string, sorted bool) (tree.Value, []*partition.TypeMismatchError) {
	var mismatches []*partition.TypeMismatchError
	if languages != nil {
		source, mismatches = partition.FilterLanguages(source, languages)
	}

	var out tree.Value
	if scope == config.ScopeBase {
		out = mergeBase(source, target)
	} else {
		out = merge.Merge(source, target)
	}
	if sorted {
		out = tree.Sort(out)
	}
	return out, mismatches
}

func mergeBase(source, target tree.Value) tree.Value {
	dst, ok := target.(*tree.Mapping)
	if !ok || dst == nil {
		return merge.Merge(source, target)
	}
	out := tree.Clone(dst).(*tree.Mapping)
	srcBase, ok := tree.AsMapping(source).Get(partition.Base)
	if !ok {
		return out
	}
	dstBase, _ := dst.Get(partition.Base)
	out.Set(partition.Base, merge.Merge(srcBase, dstBase))
	return out
}
