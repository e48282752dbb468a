package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/garbanzo-i18n/garbanzo/tree"
)

// Branch describes one repository branch kept in sync with the source
// translations.
type Branch struct {
	Name string `yaml:"name"`
	// Languages restricts the languages written to this branch. A nil list
	// means no filtering; an empty list filters out every language.
	Languages    []string `yaml:"languages,omitempty"`
	ServiceToken string   `yaml:"service_token,omitempty"`
	BearerToken  string   `yaml:"bearer_token,omitempty"`
}

// FiltersLanguages reports whether the branch restricts its languages.
func (b Branch) FiltersLanguages() bool {
	return b.Languages != nil
}

// HasServerTokens reports whether both server tokens are set.
func (b Branch) HasServerTokens() bool {
	return b.ServiceToken != "" && b.BearerToken != ""
}

// Errors reported for branch descriptors that are skipped.
var (
	ErrNotAnObject            = errors.New("branch descriptor is not an object")
	ErrIncompatibleProperties = errors.New("branch descriptor has incompatible properties")
)

// ParseSecretsContext reads branch descriptors from a GitHub Actions
// secrets context: a JSON object whose entries ending with suffix hold a
// JSON-encoded {branchName, selectedLanguages, serviceToken, bearerToken}
// object. selectedLanguages is required.
//
// Entries that cannot be used are skipped and reported in the returned
// slice. The error is non-nil only when the context itself is unusable.
func ParseSecretsContext(data []byte, suffix string) ([]Branch, []error, error) {
	v, err := tree.Parse(data)
	if err != nil {
		return nil, nil, fmt.Errorf("secrets context: %w", err)
	}
	secrets, ok := v.(*tree.Mapping)
	if !ok {
		return nil, nil, fmt.Errorf("secrets context: expected a JSON object, got a %s", tree.KindOf(v))
	}

	var branches []Branch
	var skipped []error
	secrets.Range(func(key string, raw tree.Value) bool {
		if !strings.HasSuffix(key, suffix) {
			return true
		}
		desc, err := secretObject(raw)
		if err != nil {
			skipped = append(skipped, fmt.Errorf("secret %s: %w", key, err))
			return true
		}
		b, err := branchFrom(desc, true)
		if err != nil {
			skipped = append(skipped, fmt.Errorf("secret %s: %w", key, err))
			return true
		}
		branches = append(branches, b)
		return true
	})
	return branches, skipped, nil
}

// secretObject decodes a secret value. Secrets are strings, so the
// descriptor is normally JSON text inside a string.
func secretObject(raw tree.Value) (*tree.Mapping, error) {
	if m, ok := raw.(*tree.Mapping); ok {
		return m, nil
	}
	leaf, ok := raw.(tree.Leaf)
	if !ok {
		return nil, ErrNotAnObject
	}
	s, ok := leaf.Str()
	if !ok {
		return nil, ErrNotAnObject
	}
	v, err := tree.Parse([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotAnObject, err)
	}
	m, ok := v.(*tree.Mapping)
	if !ok {
		return nil, ErrNotAnObject
	}
	return m, nil
}

// ParseAppInfo reads branch descriptors from an app-info JSON array of
// {branchName, serviceToken, bearerToken, selectedLanguages} objects, where
// selectedLanguages is optional. Unusable elements are skipped and reported.
func ParseAppInfo(data []byte) ([]Branch, []error, error) {
	v, err := tree.Parse(data)
	if err != nil {
		return nil, nil, fmt.Errorf("app info: %w", err)
	}
	list, ok := v.(tree.List)
	if !ok {
		return nil, nil, fmt.Errorf("app info: expected a JSON array, got a %s", tree.KindOf(v))
	}

	var branches []Branch
	var skipped []error
	for i, e := range list {
		m, ok := e.(*tree.Mapping)
		if !ok {
			skipped = append(skipped, fmt.Errorf("app info [%d]: %w", i, ErrNotAnObject))
			continue
		}
		b, err := branchFrom(m, false)
		if err != nil {
			skipped = append(skipped, fmt.Errorf("app info [%d]: %w", i, err))
			continue
		}
		branches = append(branches, b)
	}
	return branches, skipped, nil
}

func branchFrom(m *tree.Mapping, requireLanguages bool) (Branch, error) {
	var b Branch
	var ok bool

	if b.Name, ok = stringField(m, "branchName"); !ok || b.Name == "" {
		return Branch{}, fmt.Errorf("%w: branchName must be a non-empty string", ErrIncompatibleProperties)
	}
	if b.ServiceToken, ok = stringField(m, "serviceToken"); !ok {
		return Branch{}, fmt.Errorf("%w: serviceToken must be a string", ErrIncompatibleProperties)
	}
	if b.BearerToken, ok = stringField(m, "bearerToken"); !ok {
		return Branch{}, fmt.Errorf("%w: bearerToken must be a string", ErrIncompatibleProperties)
	}

	langs, present := m.Get("selectedLanguages")
	if !present {
		if requireLanguages {
			return Branch{}, fmt.Errorf("%w: selectedLanguages is missing", ErrIncompatibleProperties)
		}
		return b, nil
	}
	list, ok := langs.(tree.List)
	if !ok {
		return Branch{}, fmt.Errorf("%w: selectedLanguages must be an array", ErrIncompatibleProperties)
	}
	b.Languages = make([]string, 0, len(list))
	for _, l := range list {
		leaf, _ := l.(tree.Leaf)
		s, ok := leaf.Str()
		if !ok {
			return Branch{}, fmt.Errorf("%w: selectedLanguages must hold strings", ErrIncompatibleProperties)
		}
		b.Languages = append(b.Languages, s)
	}
	return b, nil
}

// stringField returns a string field. A missing field is "" and ok.
func stringField(m *tree.Mapping, key string) (string, bool) {
	v, present := m.Get(key)
	if !present {
		return "", true
	}
	leaf, ok := v.(tree.Leaf)
	if !ok {
		return "", false
	}
	return leaf.Str()
}

// FindBranch returns the descriptor named name.
func FindBranch(branches []Branch, name string) (Branch, bool) {
	for _, b := range branches {
		if b.Name == name {
			return b, true
		}
	}
	return Branch{}, false
}
