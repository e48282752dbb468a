// Package config loads the .garbanzo.yaml configuration file.
//
// When a .garbanzo.yaml file exists in the project root, garbanzo reads the
// repository, translation file, server and branch settings from it. Command
// line flags and action inputs override individual values.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// YAML schema
// ---------------------------------------------------------------------------

// File is the top-level .garbanzo.yaml structure.
type File struct {
	// Owner and Repo name the GitHub repository holding the translation file.
	Owner string `yaml:"owner,omitempty"`
	Repo  string `yaml:"repo,omitempty"`
	// APIURL is the GitHub Enterprise API URL (empty for github.com).
	APIURL string `yaml:"api_url,omitempty"`

	// FilePath is the translation file path inside the repository.
	FilePath string `yaml:"file_path,omitempty"`
	// SourcePath is the local source translation file (default FilePath).
	SourcePath string `yaml:"source_path,omitempty"`
	// BackupPath receives the server translations on every server push.
	BackupPath string `yaml:"backup_path,omitempty"`

	// SecretSuffix selects the entries of a secrets context that describe branches.
	SecretSuffix string `yaml:"secret_suffix,omitempty"`
	// BranchSuffix is appended to a branch prefix to name the work branch.
	BranchSuffix string `yaml:"branch_suffix,omitempty"`

	CommitMessage     string `yaml:"commit_message,omitempty"`
	SortCommitMessage string `yaml:"sort_commit_message,omitempty"`
	// PRTitle may reference {head} and {base}.
	PRTitle string `yaml:"pr_title,omitempty"`

	// Scope is "all" (every partition) or "base" (only the base partition).
	Scope string `yaml:"scope,omitempty"`
	// Sort sorts the merged file before it is committed.
	Sort bool `yaml:"sort,omitempty"`
	// MaxConcurrent bounds how many branches are processed at once.
	MaxConcurrent int `yaml:"max_concurrent,omitempty"`
	// TrackUpdates pushes values edited since the last push, see garbanzo.lock.
	TrackUpdates bool `yaml:"track_updates,omitempty"`

	Server Server `yaml:"server,omitempty"`

	// Branches is a static branch list used when no secrets context or
	// app info is given.
	Branches []Branch `yaml:"branches,omitempty"`
}

// Server describes the translation server.
type Server struct {
	Endpoint    string `yaml:"endpoint,omitempty"`
	QueryParams string `yaml:"query_params,omitempty"`
	RetryMax    int    `yaml:"retry_max,omitempty"`
	Timeout     string `yaml:"timeout,omitempty"`
}

// Scope values.
const (
	ScopeAll  = "all"
	ScopeBase = "base"
)

// Defaults.
const (
	DefaultFilePath          = "settings/translations.json"
	DefaultSecretSuffix      = "_GARBANZO"
	DefaultBranchSuffix      = "-garbanzo"
	DefaultCommitMessage     = "feat: [Garbanzo] Updated target json"
	DefaultSortCommitMessage = "[Garbanzo] Sorted target json [skip ci]"
	DefaultPRTitle           = "[Garbanzo] Merging {head} to {base}"
	DefaultMaxConcurrent     = 4
	DefaultRetryMax          = 3
	DefaultTimeout           = 30 * time.Second
)

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// FileName is the default config file name.
const FileName = ".garbanzo.yaml"

// Defaults returns a File holding only default values.
func Defaults() *File {
	f := &File{}
	f.applyDefaults()
	return f
}

// LoadFile loads and validates .garbanzo.yaml from the given directory.
// Returns nil if no .garbanzo.yaml exists.
func LoadFile(rootDir string) (*File, error) {
	path := filepath.Join(rootDir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	f.applyDefaults()
	if err := f.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &f, nil
}

// Load is LoadFile falling back to Defaults when the file is missing.
func Load(rootDir string) (*File, error) {
	f, err := LoadFile(rootDir)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return Defaults(), nil
	}
	return f, nil
}

func (f *File) applyDefaults() {
	if f.FilePath == "" {
		f.FilePath = DefaultFilePath
	}
	if f.SourcePath == "" {
		f.SourcePath = f.FilePath
	}
	if f.SecretSuffix == "" {
		f.SecretSuffix = DefaultSecretSuffix
	}
	if f.BranchSuffix == "" {
		f.BranchSuffix = DefaultBranchSuffix
	}
	if f.CommitMessage == "" {
		f.CommitMessage = DefaultCommitMessage
	}
	if f.SortCommitMessage == "" {
		f.SortCommitMessage = DefaultSortCommitMessage
	}
	if f.PRTitle == "" {
		f.PRTitle = DefaultPRTitle
	}
	if f.Scope == "" {
		f.Scope = ScopeAll
	}
	if f.MaxConcurrent == 0 {
		f.MaxConcurrent = DefaultMaxConcurrent
	}
	if f.Server.RetryMax == 0 {
		f.Server.RetryMax = DefaultRetryMax
	}
}

// Validate checks the settings after flags and inputs were applied.
func (f *File) Validate() error {
	return f.validate()
}

func (f *File) validate() error {
	switch f.Scope {
	case ScopeAll, ScopeBase:
	default:
		return fmt.Errorf("unknown scope %q (valid: all, base)", f.Scope)
	}
	if f.MaxConcurrent < 0 {
		return fmt.Errorf("max_concurrent must not be negative, got %d", f.MaxConcurrent)
	}
	if f.Server.RetryMax < 0 {
		return fmt.Errorf("server.retry_max must not be negative, got %d", f.Server.RetryMax)
	}
	if _, err := f.ServerTimeout(); err != nil {
		return err
	}
	if f.Server.Endpoint != "" {
		u, err := url.Parse(f.Server.Endpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("server.endpoint %q is not an http(s) URL", f.Server.Endpoint)
		}
	}

	seen := make(map[string]bool, len(f.Branches))
	for i, b := range f.Branches {
		if strings.TrimSpace(b.Name) == "" {
			return fmt.Errorf("branch #%d has no name", i+1)
		}
		if seen[b.Name] {
			return fmt.Errorf("branch %q is listed twice", b.Name)
		}
		seen[b.Name] = true
	}
	return nil
}

// ServerTimeout returns the parsed server timeout, or DefaultTimeout.
func (f *File) ServerTimeout() (time.Duration, error) {
	if f.Server.Timeout == "" {
		return DefaultTimeout, nil
	}
	d, err := time.ParseDuration(f.Server.Timeout)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("server.timeout %q is not a positive duration", f.Server.Timeout)
	}
	return d, nil
}

// AbsSourcePath resolves SourcePath against the project root.
func (f *File) AbsSourcePath(projectRoot string) string {
	return resolvePath(projectRoot, f.SourcePath)
}

// AbsBackupPath resolves BackupPath against the project root, or returns
// "" when no backup is configured.
func (f *File) AbsBackupPath(projectRoot string) string {
	if f.BackupPath == "" {
		return ""
	}
	return resolvePath(projectRoot, f.BackupPath)
}

func resolvePath(root, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

// PullRequestTitle renders PRTitle for a head and base branch.
func (f *File) PullRequestTitle(head, base string) string {
	return strings.NewReplacer("{head}", head, "{base}", base).Replace(f.PRTitle)
}

// WorkBranch returns the branch that carries the update for branch: the
// part of branch before the first "/" followed by BranchSuffix.
func (f *File) WorkBranch(branch string) string {
	prefix, _, _ := strings.Cut(branch, "/")
	return prefix + f.BranchSuffix
}
