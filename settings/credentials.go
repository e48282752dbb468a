// Package settings provides storage for garbanzo user credentials.
//
// Credentials are stored in the XDG data directory:
//
//	$XDG_DATA_HOME/garbanzo/auth.json  (default: ~/.local/share/garbanzo/auth.json)
//
// The file is a JSON object keyed by credential ID, where each value is a
// discriminated union on the "type" field:
//
//   - "token"   - a GitHub token, keyed "github" or "github:<host>"
//   - "service" - translation server tokens, keyed "server:<branch>"
//
// File permissions are 0600 (owner read/write only).
//
// Lookup order for the GitHub token:
//  1. --token flag (highest priority)
//  2. GARBANZO_TOKEN, then GITHUB_TOKEN environment variables
//  3. This credential store
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	dataDirName = "garbanzo"
	fileName    = "auth.json"

	// TypeToken marks a GitHub token entry.
	TypeToken = "token"
	// TypeService marks a translation server entry.
	TypeService = "service"
)

// ---------------------------------------------------------------------------
// Entry types
// ---------------------------------------------------------------------------

// Info is the discriminated union stored per credential ID in auth.json.
type Info struct {
	Type string `json:"type"`

	// type == "token"
	Token   string `json:"token,omitempty"`
	BaseURL string `json:"baseUrl,omitempty"` // GitHub Enterprise API URL

	// type == "service"
	ServiceToken string `json:"serviceToken,omitempty"`
	BearerToken  string `json:"bearerToken,omitempty"`
}

// IsToken reports whether this is a GitHub token entry.
func (i *Info) IsToken() bool {
	return i.Type == TypeToken
}

// IsService reports whether this is a translation server entry.
func (i *Info) IsService() bool {
	return i.Type == TypeService
}

// Store holds all credentials, keyed by credential ID.
type Store map[string]*Info

// IDs returns the credential IDs in sorted order.
func (s Store) IDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// GitHubID returns the credential ID for a GitHub host. The public host
// and an empty host map to "github".
func GitHubID(host string) string {
	host = strings.TrimSpace(strings.ToLower(host))
	if host == "" || host == "github.com" || host == "api.github.com" {
		return "github"
	}
	return "github:" + host
}

// ServerID returns the credential ID for a branch's server tokens.
func ServerID(branch string) string {
	return "server:" + branch
}

// ---------------------------------------------------------------------------
// File path
// ---------------------------------------------------------------------------

// dataDir returns the XDG data directory for garbanzo.
func dataDir() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, dataDirName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", dataDirName), nil
}

func filePath() (string, error) {
	dir, err := dataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fileName), nil
}

// FilePath returns the auth.json file path for display purposes.
func FilePath() string {
	p, err := filePath()
	if err != nil {
		return ""
	}
	return p
}

// DataDir returns the garbanzo data directory path.
func DataDir() (string, error) {
	return dataDir()
}

// ---------------------------------------------------------------------------
// Load / Save
// ---------------------------------------------------------------------------

// Load reads the credential store from disk.
// Returns an empty store if the file doesn't exist or is invalid.
func Load() Store {
	path, err := filePath()
	if err != nil {
		return make(Store)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return make(Store)
	}

	var store Store
	if err := json.Unmarshal(data, &store); err != nil {
		return make(Store)
	}

	if store == nil {
		return make(Store)
	}

	return store
}

// Save writes the credential store to disk with 0600 permissions.
func Save(store Store) error {
	path, err := filePath()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(store, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling credentials: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing auth file: %w", err)
	}

	return nil
}

// ---------------------------------------------------------------------------
// Get / Set / Remove
// ---------------------------------------------------------------------------

// Get returns the entry for a credential ID, or nil if not found.
func Get(id string) *Info {
	return Load()[id]
}

// Set stores an entry (upsert).
func Set(id string, info *Info) error {
	store := Load()
	store[id] = info
	return Save(store)
}

// Remove deletes a credential.
func Remove(id string) error {
	store := Load()
	if _, ok := store[id]; !ok {
		return nil
	}
	delete(store, id)
	return Save(store)
}

// RemoveAll removes all stored credentials.
func RemoveAll() error {
	path, err := filePath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing auth file: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// GitHub tokens
// ---------------------------------------------------------------------------

// SetToken stores a GitHub token for a host.
func SetToken(host, token, baseURL string) error {
	return Set(GitHubID(host), &Info{
		Type:    TypeToken,
		Token:   token,
		BaseURL: baseURL,
	})
}

// GetToken returns the stored GitHub token for a host, or "".
func GetToken(host string) string {
	info := Get(GitHubID(host))
	if info == nil || !info.IsToken() {
		return ""
	}
	return info.Token
}

// TokenEnvVars lists the environment variables consulted for a GitHub token,
// in priority order.
var TokenEnvVars = []string{"GARBANZO_TOKEN", "GITHUB_TOKEN"}

// ResolveToken returns the GitHub token to use: the flag value if set, then
// the first non-empty environment variable from TokenEnvVars, then the
// credential store.
func ResolveToken(host, flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	for _, env := range TokenEnvVars {
		if v := os.Getenv(env); v != "" {
			return v
		}
	}
	return GetToken(host)
}

// ---------------------------------------------------------------------------
// Server tokens
// ---------------------------------------------------------------------------

// SetServiceTokens stores the translation server tokens for a branch.
func SetServiceTokens(branch, serviceToken, bearerToken string) error {
	return Set(ServerID(branch), &Info{
		Type:         TypeService,
		ServiceToken: serviceToken,
		BearerToken:  bearerToken,
	})
}

// GetServiceTokens returns the stored server tokens for a branch. ok is
// false when none are stored.
func GetServiceTokens(branch string) (serviceToken, bearerToken string, ok bool) {
	info := Get(ServerID(branch))
	if info == nil || !info.IsService() {
		return "", "", false
	}
	return info.ServiceToken, info.BearerToken, true
}

// ---------------------------------------------------------------------------
// Display helpers
// ---------------------------------------------------------------------------

// MaskKey returns a masked version of a key/token for display.
func MaskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
