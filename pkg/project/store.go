// Package project manages project entities and their on-disk artifacts:
// project.json, uploaded files, and the concatenated extracted text.
package project

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agora-sim/agora/pkg/models"
	"github.com/agora-sim/agora/pkg/store"
)

// ErrNotFound is returned when a project id is unknown.
var ErrNotFound = errors.New("project not found")

// ErrUnsupportedFileType is returned for uploads outside the allowlist.
var ErrUnsupportedFileType = errors.New("unsupported file type")

// allowedExtensions are the accepted upload extensions (lowercase, no dot).
var allowedExtensions = map[string]bool{
	"pdf":      true,
	"md":       true,
	"markdown": true,
	"txt":      true,
}

const (
	projectFile       = "project.json"
	filesDir          = "files"
	extractedTextFile = "extracted_text.txt"
)

// Store persists projects under uploads/projects/{id}/.
type Store struct {
	fs *store.Store
}

// NewStore creates a project store over the shared filesystem layout.
func NewStore(fs *store.Store) *Store {
	return &Store{fs: fs}
}

// Create allocates a new project directory and writes the initial project.json.
func (s *Store) Create(name string) (*models.Project, error) {
	now := time.Now()
	p := &models.Project{
		ID:        uuid.NewString(),
		Name:      name,
		Status:    models.ProjectStatusCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := os.MkdirAll(filepath.Join(s.fs.ProjectDir(p.ID), filesDir), 0o755); err != nil {
		return nil, fmt.Errorf("creating project directory: %w", err)
	}
	if err := s.Save(p); err != nil {
		return nil, err
	}
	return p, nil
}

// Save rewrites project.json after bumping updated_at.
func (s *Store) Save(p *models.Project) error {
	p.UpdatedAt = time.Now()
	return store.WriteJSON(filepath.Join(s.fs.ProjectDir(p.ID), projectFile), p)
}

// Get loads a project by id.
func (s *Store) Get(id string) (*models.Project, error) {
	var p models.Project
	err := store.ReadJSON(filepath.Join(s.fs.ProjectDir(id), projectFile), &p)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns up to limit projects sorted by created-at descending.
// limit <= 0 means no limit.
func (s *Store) List(limit int) ([]*models.Project, error) {
	ids, err := s.fs.ListProjectIDs()
	if err != nil {
		return nil, err
	}
	projects := make([]*models.Project, 0, len(ids))
	for _, id := range ids {
		p, err := s.Get(id)
		if err != nil {
			// Skip directories with unreadable or missing project.json.
			continue
		}
		projects = append(projects, p)
	}
	sort.Slice(projects, func(i, j int) bool {
		return projects[i].CreatedAt.After(projects[j].CreatedAt)
	})
	if limit > 0 && len(projects) > limit {
		projects = projects[:limit]
	}
	return projects, nil
}

// Delete removes the project directory and everything under it.
func (s *Store) Delete(id string) error {
	dir := s.fs.ProjectDir(id)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return ErrNotFound
	}
	return os.RemoveAll(dir)
}

// SaveFile stores an uploaded file under files/ with a random short filename,
// preserving the original extension. Extensions outside the allowlist are
// rejected before anything touches disk.
func (s *Store) SaveFile(projectID, originalFilename string, r io.Reader) (*models.FileDescriptor, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(originalFilename), "."))
	if !allowedExtensions[ext] {
		return nil, fmt.Errorf("%w: .%s", ErrUnsupportedFileType, ext)
	}
	if _, err := s.Get(projectID); err != nil {
		return nil, err
	}

	saved := randomName() + "." + ext
	path := filepath.Join(s.fs.ProjectDir(projectID), filesDir, saved)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating files directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}
	size, err := io.Copy(f, r)
	closeErr := f.Close()
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("writing file: %w", err)
	}
	if closeErr != nil {
		os.Remove(path)
		return nil, fmt.Errorf("closing file: %w", closeErr)
	}

	return &models.FileDescriptor{
		OriginalFilename: originalFilename,
		SavedFilename:    saved,
		Path:             path,
		Size:             size,
	}, nil
}

// SaveExtractedText writes the concatenated extracted text for the project.
func (s *Store) SaveExtractedText(projectID, text string) error {
	if _, err := s.Get(projectID); err != nil {
		return err
	}
	path := filepath.Join(s.fs.ProjectDir(projectID), extractedTextFile)
	return store.WriteFileAtomic(path, []byte(text))
}

// GetExtractedText reads the extracted text; missing file yields "".
func (s *Store) GetExtractedText(projectID string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.fs.ProjectDir(projectID), extractedTextFile))
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// randomName returns an 8-hex-character filename stem.
func randomName() string {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand failure is effectively unreachable; fall back to uuid.
		return uuid.NewString()[:8]
	}
	return hex.EncodeToString(b[:])
}
