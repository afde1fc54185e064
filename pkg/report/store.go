package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/agora-sim/agora/pkg/models"
	"github.com/agora-sim/agora/pkg/store"
)

// Files under reports/{report_id}/.
const (
	MetaFile       = "meta.json"
	OutlineFile    = "outline.json"
	ProgressFile   = "progress.json"
	FullReportFile = "full_report.md"
	AgentLogFile   = "agent_log.jsonl"
	ConsoleLogFile = "console_log.txt"
)

// ErrNotFound is returned for unknown report ids.
var ErrNotFound = errors.New("report not found")

// Store persists report metadata and artifacts under the upload root.
type Store struct {
	fs *store.Store
}

func NewStore(fs *store.Store) *Store {
	return &Store{fs: fs}
}

// Dir returns the report's directory.
func (s *Store) Dir(id string) string {
	return s.fs.ReportDir(id)
}

// SectionFile returns the markdown file for top-level section n (1-based).
func SectionFile(n int) string {
	return fmt.Sprintf("section_%02d.md", n)
}

// Create registers a new pending report for a simulation.
func (s *Store) Create(simulationID, graphID, requirement string) (*models.Report, error) {
	now := time.Now().UTC()
	r := &models.Report{
		ID:           uuid.NewString(),
		SimulationID: simulationID,
		GraphID:      graphID,
		Requirement:  requirement,
		Status:       models.ReportStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := os.MkdirAll(s.Dir(r.ID), 0o755); err != nil {
		return nil, fmt.Errorf("creating report directory: %w", err)
	}
	if err := s.Save(r); err != nil {
		return nil, err
	}
	return r, nil
}

// Save rewrites meta.json, bumping updated_at.
func (s *Store) Save(r *models.Report) error {
	r.UpdatedAt = time.Now().UTC()
	return store.WriteJSON(filepath.Join(s.Dir(r.ID), MetaFile), r)
}

// Get loads one report by id.
func (s *Store) Get(id string) (*models.Report, error) {
	var r models.Report
	if err := store.ReadJSON(filepath.Join(s.Dir(id), MetaFile), &r); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}
	return &r, nil
}

// List returns every report, optionally filtered to one simulation.
func (s *Store) List(simulationID string) ([]*models.Report, error) {
	ids, err := s.fs.ListReportIDs()
	if err != nil {
		return nil, err
	}
	var reports []*models.Report
	for _, id := range ids {
		r, err := s.Get(id)
		if err != nil {
			continue
		}
		if simulationID != "" && r.SimulationID != simulationID {
			continue
		}
		reports = append(reports, r)
	}
	return reports, nil
}

// Delete removes the report directory.
func (s *Store) Delete(id string) error {
	if _, err := s.Get(id); err != nil {
		return err
	}
	return os.RemoveAll(s.Dir(id))
}

// WriteOutline persists outline.json.
func (s *Store) WriteOutline(id string, outline *models.ReportOutline) error {
	return store.WriteJSON(filepath.Join(s.Dir(id), OutlineFile), outline)
}

// WriteProgress rewrites progress.json with a fresh timestamp.
func (s *Store) WriteProgress(id string, p *models.ReportProgress) error {
	p.UpdatedAt = time.Now().UTC()
	return store.WriteJSON(filepath.Join(s.Dir(id), ProgressFile), p)
}

// ReadProgress loads progress.json.
func (s *Store) ReadProgress(id string) (*models.ReportProgress, error) {
	var p models.ReportProgress
	if err := store.ReadJSON(filepath.Join(s.Dir(id), ProgressFile), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// WriteSection persists one assembled section_NN.md.
func (s *Store) WriteSection(id string, n int, content string) error {
	return store.WriteFileAtomic(filepath.Join(s.Dir(id), SectionFile(n)), []byte(content))
}

// WriteFullReport persists the assembled full_report.md.
func (s *Store) WriteFullReport(id, content string) error {
	return store.WriteFileAtomic(filepath.Join(s.Dir(id), FullReportFile), []byte(content))
}
