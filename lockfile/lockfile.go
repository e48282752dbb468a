// Package lockfile implements garbanzo.lock, which records MD5 checksums of
// the translation values last pushed to the server, per branch and key path.
// It lets a server push include values that were edited in the repository
// since the previous push, in addition to keys the server lacks.
//
// The lock file is stored alongside .garbanzo.yaml as garbanzo.lock.
package lockfile

import (
	"crypto/md5"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/garbanzo-i18n/garbanzo/tree"
)

// LockFileName is the default lock file name.
const LockFileName = "garbanzo.lock"

// Version is the lock file format version.
const Version = 1

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

// LockFile represents the garbanzo.lock file structure.
type LockFile struct {
	Version   int                          `yaml:"version"`
	Checksums map[string]map[string]string `yaml:"checksums"` // target -> JSON pointer -> md5

	mu   sync.Mutex `yaml:"-"`
	path string     `yaml:"-"`
}

// ---------------------------------------------------------------------------
// Loading and saving
// ---------------------------------------------------------------------------

// Load reads a lock file from the given directory.
// Returns an empty lock file if the file doesn't exist.
func Load(dir string) (*LockFile, error) {
	path := filepath.Join(dir, LockFileName)
	lf := &LockFile{
		Version:   Version,
		Checksums: make(map[string]map[string]string),
		path:      path,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return lf, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, lf); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	lf.path = path

	if lf.Version > Version {
		return nil, fmt.Errorf("%s: unsupported version %d", path, lf.Version)
	}
	if lf.Checksums == nil {
		lf.Checksums = make(map[string]map[string]string)
	}

	return lf, nil
}

// Save writes the lock file to disk.
func (lf *LockFile) Save() error {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	if lf.path == "" {
		return fmt.Errorf("lock file path not set")
	}

	data, err := yaml.Marshal(lf)
	if err != nil {
		return fmt.Errorf("marshaling lock file: %w", err)
	}

	if err := os.WriteFile(lf.path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", lf.path, err)
	}

	return nil
}

// ---------------------------------------------------------------------------
// Checksum operations
// ---------------------------------------------------------------------------

// Hash computes the MD5 hex digest of a string.
func Hash(s string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(s)))
}

// TargetKey builds the lock file target for a branch and translation file,
// e.g. "main:locales/translations.json".
func TargetKey(branch, filePath string) string {
	return branch + ":" + filepath.ToSlash(filePath)
}

// Snapshot flattens the leaves of store into JSON pointer -> content, where
// content is the compact JSON of the value. Lists count as leaves.
func Snapshot(store tree.Value) map[string]string {
	out := make(map[string]string)
	tree.Walk(store, func(path []string, v tree.Value) bool {
		if len(path) == 0 {
			return true
		}
		data, err := tree.Marshal(v)
		if err != nil {
			return true
		}
		out[tree.Pointer(path)] = string(data)
		return true
	})
	return out
}

// Modified returns the entries whose checksum is recorded and differs from
// their current content. Keys that were never recorded are not included.
func (lf *LockFile) Modified(target string, entries map[string]string) map[string]string {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	existing := lf.Checksums[target]
	modified := make(map[string]string)

	for key, content := range entries {
		old, ok := existing[key]
		if ok && old != Hash(content) {
			modified[key] = content
		}
	}

	return modified
}

// Record replaces everything known about target with the checksums of
// entries. Pointers absent from entries are forgotten.
func (lf *LockFile) Record(target string, entries map[string]string) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	sums := make(map[string]string, len(entries))
	for key, content := range entries {
		sums[key] = Hash(content)
	}
	lf.Checksums[target] = sums
}

// Targets returns the recorded targets, sorted.
func (lf *LockFile) Targets() []string {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	targets := make([]string, 0, len(lf.Checksums))
	for t := range lf.Checksums {
		targets = append(targets, t)
	}
	sort.Strings(targets)
	return targets
}

// Summary describes the lock file for `garbanzo status`, e.g.
// "2 targets, 5 keys (dev:settings/translations.json: 2 keys, ...)".
func (lf *LockFile) Summary() string {
	targets := lf.Targets()
	if len(targets) == 0 {
		return "empty"
	}

	lf.mu.Lock()
	defer lf.mu.Unlock()

	keys := 0
	parts := make([]string, 0, len(targets))
	for _, t := range targets {
		n := len(lf.Checksums[t])
		keys += n
		parts = append(parts, fmt.Sprintf("%s: %d keys", t, n))
	}
	return fmt.Sprintf("%d targets, %d keys (%s)", len(targets), keys, strings.Join(parts, ", "))
}
