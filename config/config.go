// Package config implements auto-detection of the translation file in a
// project, and the .garbanzo.yaml settings.
package config

import (
	"os"
	"path/filepath"

	"github.com/garbanzo-i18n/garbanzo/partition"
	"github.com/garbanzo-i18n/garbanzo/tree"
)

// Project holds auto-detected project settings.
type Project struct {
	// Root is the absolute project root.
	Root string
	// FilePath is the translation file relative to Root, or "" if none
	// was found.
	FilePath string
	// Languages found in the language partitions of the file.
	Languages []string
	// Variants are the numeric partitions of the file.
	Variants []string
	// HasBase reports whether the file has a base partition.
	HasBase bool
}

// candidatePaths are the translation file locations probed by Detect.
var candidatePaths = []string{
	DefaultFilePath,
	"translations.json",
	"locales/translations.json",
	"i18n/translations.json",
	"public/translations.json",
}

// Detect auto-detects the translation file from the working directory.
func Detect(rootDir string) *Project {
	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		absRoot = rootDir
	}

	p := &Project{Root: absRoot}
	for _, candidate := range candidatePaths {
		path := filepath.Join(absRoot, filepath.FromSlash(candidate))
		if info, err := os.Stat(path); err != nil || info.IsDir() {
			continue
		}
		store, err := tree.ParseFile(path)
		if err != nil || !tree.IsMapping(store) {
			continue
		}
		p.FilePath = candidate
		p.describe(store)
		break
	}
	return p
}

// describe fills the partition details from a parsed store.
func (p *Project) describe(store tree.Value) {
	p.Languages = partition.Languages(store)
	for _, key := range tree.AsMapping(store).Keys() {
		switch partition.Classify(key) {
		case partition.Shared:
			p.HasBase = true
		case partition.Variant:
			p.Variants = append(p.Variants, key)
		}
	}
}

// Found reports whether a translation file was detected.
func (p *Project) Found() bool {
	return p.FilePath != ""
}
