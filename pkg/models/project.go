// Package models contains the shared entities persisted by the orchestrator:
// projects, tasks, ontologies, simulations, profiles, run state, and reports.
package models

import "time"

// ProjectStatus represents the lifecycle state of a project.
type ProjectStatus string

// Project lifecycle states.
const (
	ProjectStatusCreated           ProjectStatus = "created"
	ProjectStatusOntologyGenerated ProjectStatus = "ontology_generated"
	ProjectStatusGraphBuilding     ProjectStatus = "graph_building"
	ProjectStatusGraphCompleted    ProjectStatus = "graph_completed"
	ProjectStatusFailed            ProjectStatus = "failed"
)

// FileDescriptor describes one uploaded source document.
type FileDescriptor struct {
	OriginalFilename string `json:"original_filename"`
	SavedFilename    string `json:"saved_filename"`
	Path             string `json:"path"`
	Size             int64  `json:"size"`
}

// Project is the root entity of a graph-building pipeline. It owns an on-disk
// folder containing project.json, files/ and extracted_text.txt.
type Project struct {
	ID                  string           `json:"project_id"`
	Name                string           `json:"name"`
	Status              ProjectStatus    `json:"status"`
	Requirement         string           `json:"simulation_requirement,omitempty"`
	Files               []FileDescriptor `json:"files,omitempty"`
	ExtractedTextLength int              `json:"extracted_text_length,omitempty"`
	Ontology            *Ontology        `json:"ontology,omitempty"`
	AnalysisSummary     string           `json:"analysis_summary,omitempty"`
	GraphID             string           `json:"graph_id,omitempty"`
	ChunkSize           int              `json:"chunk_size,omitempty"`
	ChunkOverlap        int              `json:"chunk_overlap,omitempty"`
	LastError           string           `json:"last_error,omitempty"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
}
