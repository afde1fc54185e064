// Package store implements the typed filesystem layout shared by projects,
// simulations and reports. All JSON state files are rewritten atomically:
// write to a temporary sibling, fsync, rename.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Subtree names under the upload root.
const (
	projectsDir    = "projects"
	simulationsDir = "simulations"
	reportsDir     = "reports"
)

// Store derives and manages paths under a single upload root directory.
type Store struct {
	root string
}

// New creates a Store rooted at dir, creating the subtrees if needed.
func New(dir string) (*Store, error) {
	s := &Store{root: dir}
	for _, sub := range []string{projectsDir, simulationsDir, reportsDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("creating %s subtree: %w", sub, err)
		}
	}
	return s, nil
}

// Root returns the upload root directory.
func (s *Store) Root() string { return s.root }

// ProjectDir returns uploads/projects/{id}.
func (s *Store) ProjectDir(id string) string {
	return filepath.Join(s.root, projectsDir, id)
}

// SimulationDir returns uploads/simulations/{id}.
func (s *Store) SimulationDir(id string) string {
	return filepath.Join(s.root, simulationsDir, id)
}

// ReportDir returns uploads/reports/{id}.
func (s *Store) ReportDir(id string) string {
	return filepath.Join(s.root, reportsDir, id)
}

// ListProjectIDs returns all project directory names.
func (s *Store) ListProjectIDs() ([]string, error) { return s.listDir(projectsDir) }

// ListSimulationIDs returns all simulation directory names.
func (s *Store) ListSimulationIDs() ([]string, error) { return s.listDir(simulationsDir) }

// ListReportIDs returns all report directory names.
func (s *Store) ListReportIDs() ([]string, error) { return s.listDir(reportsDir) }

func (s *Store) listDir(sub string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, sub))
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", sub, err)
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}

// WriteJSON atomically writes v as indented JSON to path. The parent
// directory is created if missing.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", filepath.Base(path), err)
	}
	return WriteFileAtomic(path, data)
}

// ReadJSON reads path into v. os.ErrNotExist passes through unwrapped-checkable.
func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return nil
}

// WriteFileAtomic writes data durably: temp sibling, fsync, rename. A reader
// never observes a partially written file.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("renaming into place: %w", err)
	}
	return nil
}
