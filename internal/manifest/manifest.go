// Package manifest records what a successful build produced.
//
// The manifest is a markdown file in the output directory: YAML frontmatter
// holds the link directives and one entry per artifact, and a table below it
// repeats the artifacts for people reading the build tree.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"stubgen/internal/model"
)

// FileName is the manifest's name inside the output directory.
const FileName = "manifest.md"

// Version is the current manifest format.
const Version = 1

// Manifest lists the archives of one build and how to link them.
type Manifest struct {
	Version    int                  `yaml:"version"`
	LinkSearch string               `yaml:"link_search"`
	LinkLibs   []string             `yaml:"link_libs"`
	Artifacts  []model.StubArtifact `yaml:"artifacts"`
}

// New builds the manifest for artifacts produced in outputDir, keeping
// their order for the link list.
func New(outputDir string, artifacts []model.StubArtifact) *Manifest {
	m := &Manifest{
		Version:    Version,
		LinkSearch: outputDir,
		Artifacts:  append([]model.StubArtifact(nil), artifacts...),
	}
	for _, a := range artifacts {
		m.LinkLibs = append(m.LinkLibs, a.Group)
	}
	return m
}

// Path returns the manifest location inside dir.
func Path(dir string) string { return filepath.Join(dir, FileName) }

// Write stores the manifest in dir.
func (m *Manifest) Write(dir string) error {
	data, err := join(m, m.table())
	if err != nil {
		return err
	}
	if err := os.WriteFile(Path(dir), data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// Read loads the manifest from dir.
func Read(dir string) (*Manifest, error) {
	data, err := os.ReadFile(Path(dir))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	fm, err := split(data)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(fm, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if m.Version != Version {
		return nil, fmt.Errorf("manifest version %d, want %d", m.Version, Version)
	}
	return &m, nil
}

// Remove deletes the manifest from dir. A missing manifest is not an error.
func Remove(dir string) error {
	if err := os.Remove(Path(dir)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove manifest: %w", err)
	}
	return nil
}

// LinkFlags returns the linker arguments for every recorded archive.
func (m *Manifest) LinkFlags() []string {
	if len(m.LinkLibs) == 0 {
		return nil
	}
	flags := []string{"-L" + m.LinkSearch}
	for _, lib := range m.LinkLibs {
		flags = append(flags, "-l"+lib)
	}
	return flags
}

// Archives returns the full path of every recorded archive.
func (m *Manifest) Archives() []string {
	paths := make([]string, len(m.Artifacts))
	for i, a := range m.Artifacts {
		paths[i] = filepath.Join(m.LinkSearch, a.Archive)
	}
	return paths
}

func (m *Manifest) table() string {
	var sb strings.Builder
	sb.WriteString("# Stub libraries\n\n")
	sb.WriteString("| group | archive | functions | validated |\n")
	sb.WriteString("|---|---|---|---|\n")
	for _, a := range m.Artifacts {
		validated := "no"
		if a.Validated {
			validated = "yes"
		}
		fmt.Fprintf(&sb, "| %s | %s | %d | %s |\n", a.Group, a.Archive, a.Functions, validated)
	}
	return sb.String()
}
