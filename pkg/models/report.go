package models

import "time"

// ReportStatus represents the lifecycle state of a report.
type ReportStatus string

// Report states.
const (
	ReportStatusPending    ReportStatus = "pending"
	ReportStatusPlanning   ReportStatus = "planning"
	ReportStatusGenerating ReportStatus = "generating"
	ReportStatusCompleted  ReportStatus = "completed"
	ReportStatusFailed     ReportStatus = "failed"
)

// OutlineSubsection is a planned second-level heading.
type OutlineSubsection struct {
	Title string `json:"title"`
}

// OutlineSection is a planned top-level report section.
type OutlineSection struct {
	Title       string              `json:"title"`
	Subsections []OutlineSubsection `json:"subsections,omitempty"`
}

// ReportOutline is the planned structure of a report: 2-5 top-level sections,
// each with 0-2 subsections.
type ReportOutline struct {
	Title    string           `json:"title"`
	Summary  string           `json:"summary"`
	Sections []OutlineSection `json:"sections"`
}

// Report is the persisted metadata of one report (meta.json).
type Report struct {
	ID           string       `json:"report_id"`
	SimulationID string       `json:"simulation_id"`
	GraphID      string       `json:"graph_id"`
	Requirement  string       `json:"requirement"`
	Status       ReportStatus `json:"status"`
	Outline      *ReportOutline `json:"outline,omitempty"`
	Markdown     string       `json:"markdown,omitempty"`
	Error        string       `json:"error,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// ReportProgress is the progress.json snapshot updated on section boundaries.
type ReportProgress struct {
	Status            ReportStatus `json:"status"`
	Progress          int          `json:"progress"`
	Message           string       `json:"message,omitempty"`
	CurrentSection    string       `json:"current_section,omitempty"`
	CompletedSections []string     `json:"completed_sections"`
	UpdatedAt         time.Time    `json:"updated_at"`
}
