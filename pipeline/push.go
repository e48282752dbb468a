package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/garbanzo-i18n/garbanzo/config"
	"github.com/garbanzo-i18n/garbanzo/lockfile"
	"github.com/garbanzo-i18n/garbanzo/merge"
	"github.com/garbanzo-i18n/garbanzo/partition"
	"github.com/garbanzo-i18n/garbanzo/transcode"
	"github.com/garbanzo-i18n/garbanzo/tree"
)

// PushOptions configures PushToServer.
type PushOptions struct {
	Options
	// Branch selects the languages to push. Nil Languages pushes all.
	Branch config.Branch
	// Query is appended to the endpoint of the push request.
	Query string
	// BackupPath receives the server store, in named-key shape, as
	// compact JSON. Empty disables the backup.
	BackupPath string
	// Lock enables value-change tracking: leaves whose source value
	// changed since the last push, and that differ from the server, are
	// sent as well. Nil disables tracking.
	Lock *lockfile.LockFile
	// LockTarget names this branch and file in Lock.
	LockTarget string
}

// PushResult reports what PushToServer computed and sent.
type PushResult struct {
	// Missing holds the keys of the source the server lacks, plus
	// tracked value changes, in named-key shape.
	Missing *tree.Mapping
	// Updated lists the JSON pointers of tracked value changes.
	Updated []string
	// Payload is Missing in key/value list shape.
	Payload    *tree.Mapping
	Pushed     bool
	Mismatches []*partition.TypeMismatchError
}

// PushToServer sends the keys of source that the translation server lacks.
//
// The server store is converted to named-key shape and compared with the
// language-filtered source. Only missing keys are sent; values the server
// already has are never overwritten unless value-change tracking is on.
// Nothing is pushed when there is nothing to send.
func PushToServer(ctx context.Context, srv Server, source tree.Value, opts PushOptions) (*PushResult, error) {
	raw, err := srv.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching server translations: %w", err)
	}
	target, err := transcode.ToNamedKey(raw)
	if err != nil {
		return nil, err
	}

	if opts.BackupPath != "" && !opts.DryRun {
		if err := writeBackup(opts.BackupPath, target); err != nil {
			opts.logError("Failed to write backup: %v", err)
		}
	}

	res := &PushResult{}
	if opts.Branch.FiltersLanguages() {
		source, res.Mismatches = partition.FilterLanguages(source, opts.Branch.Languages)
		for _, m := range res.Mismatches {
			opts.log("%v", m)
		}
	}

	missing := merge.Diff(source, target)
	missing.Delete(transcode.Timestamp)

	var snapshot map[string]string
	if opts.Lock != nil {
		snapshot = lockfile.Snapshot(source)
		res.Updated = addChangedValues(missing, source, target, opts.Lock.Modified(opts.LockTarget, snapshot))
	}
	res.Missing = missing
	res.Payload = transcode.ToKeyValue(missing)

	switch {
	case merge.IsEmpty(missing):
		opts.log("Server is up to date")
	case opts.DryRun:
		opts.log("Would push %d values (%d updated)", countLeaves(nil, missing), len(res.Updated))
	default:
		if err := srv.Push(ctx, res.Payload, opts.Query); err != nil {
			return res, fmt.Errorf("pushing translations: %w", err)
		}
		res.Pushed = true
		opts.log("Pushed %d values (%d updated)", countLeaves(nil, missing), len(res.Updated))
	}

	if opts.Lock != nil && !opts.DryRun {
		opts.Lock.Record(opts.LockTarget, snapshot)
	}
	return res, nil
}

// addChangedValues copies into missing every modified source leaf whose
// value differs from the server's. It returns their pointers, sorted.
func addChangedValues(missing *tree.Mapping, source, target tree.Value, modified map[string]string) []string {
	if len(modified) == 0 {
		return nil
	}
	var updated []string
	tree.Walk(source, func(path []string, v tree.Value) bool {
		ptr := tree.Pointer(path)
		if _, ok := modified[ptr]; !ok {
			return true
		}
		tv, ok := tree.Lookup(target, path)
		if !ok || tree.Equal(v, tv) {
			return true
		}
		tree.SetPath(missing, path, tree.Clone(v))
		updated = append(updated, ptr)
		return true
	})
	sort.Strings(updated)
	return updated
}

func writeBackup(path string, store tree.Value) error {
	data, err := tree.Marshal(store)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
