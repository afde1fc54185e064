// Package orchestrator ties the stores, managers and agents into task-backed
// jobs: graph building for a project, simulation preparation, and report
// generation. Each job runs on its own goroutine and publishes progress
// through the shared task registry.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/agora-sim/agora/pkg/graph"
	"github.com/agora-sim/agora/pkg/ipc"
	"github.com/agora-sim/agora/pkg/llm"
	"github.com/agora-sim/agora/pkg/models"
	"github.com/agora-sim/agora/pkg/ontology"
	"github.com/agora-sim/agora/pkg/project"
	"github.com/agora-sim/agora/pkg/report"
	"github.com/agora-sim/agora/pkg/retry"
	"github.com/agora-sim/agora/pkg/simulation"
	"github.com/agora-sim/agora/pkg/tasks"
)

// Task type tags in the registry.
const (
	TaskBuildGraph     = "build_graph"
	TaskPrepare        = "prepare_simulation"
	TaskGenerateReport = "generate_report"
)

// Orchestrator owns the job entry points the API layer calls.
type Orchestrator struct {
	Projects   *project.Store
	Reports    *report.Store
	SimManager *simulation.Manager
	Registry   *tasks.Registry
	Ontology   ontology.Service
	LLM        llm.Client
	Graph      graph.Client

	// BuildOpts tune graph builds; zero values use the builder defaults.
	BuildOpts graph.BuildOptions

	// RetryOpts apply to the report generator's LLM calls.
	RetryOpts retry.Options
}

// BuildGraphRequest carries the inputs of a graph-build job.
type BuildGraphRequest struct {
	Requirement string
	Context     string
}

// BuildGraph starts the asynchronous build job for a project: ontology
// inference over the extracted text, then chunked ingestion into a fresh
// graph. Returns the task id to poll.
func (o *Orchestrator) BuildGraph(projectID string, req BuildGraphRequest) (string, error) {
	p, err := o.Projects.Get(projectID)
	if err != nil {
		return "", err
	}
	text, err := o.Projects.GetExtractedText(projectID)
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", fmt.Errorf("project %s has no extracted text", projectID)
	}

	taskID := o.Registry.Create(TaskBuildGraph, map[string]any{"project_id": projectID})
	go o.runBuildGraph(taskID, p, text, req)
	return taskID, nil
}

func (o *Orchestrator) runBuildGraph(taskID string, p *models.Project, text string, req BuildGraphRequest) {
	ctx := context.Background()
	fail := func(err error) {
		p.Status = models.ProjectStatusFailed
		p.LastError = err.Error()
		o.Projects.Save(p)
		o.Registry.Fail(taskID, err.Error())
	}

	o.Registry.Progress(taskID, 5, "Inferring ontology")
	ont, err := o.Ontology.Generate(ctx, []string{text}, req.Requirement, req.Context)
	if err != nil {
		fail(fmt.Errorf("inferring ontology: %w", err))
		return
	}
	p.Ontology = ont
	p.Requirement = req.Requirement
	p.Status = models.ProjectStatusOntologyGenerated
	if err := o.Projects.Save(p); err != nil {
		fail(err)
		return
	}

	p.Status = models.ProjectStatusGraphBuilding
	o.Projects.Save(p)
	builder := graph.NewBuilder(o.Graph)
	result, err := builder.Build(ctx, ont, text, "project-"+p.ID, o.BuildOpts,
		func(pct int, msg string) {
			// The build owns the 10..95 band of the task.
			o.Registry.Progress(taskID, 10+pct*85/100, msg)
		})
	if err != nil {
		fail(fmt.Errorf("building graph: %w", err))
		return
	}

	p.GraphID = result.GraphID
	p.Status = models.ProjectStatusGraphCompleted
	if err := o.Projects.Save(p); err != nil {
		fail(err)
		return
	}
	o.Registry.Complete(taskID, map[string]any{
		"graph_id":      result.GraphID,
		"node_count":    result.NodeCount,
		"edge_count":    result.EdgeCount,
		"entity_types":  result.EntityTypes,
		"failed_chunks": result.FailedChunks,
	})
}

// PrepareSimulation starts the asynchronous preparation pipeline for an
// existing simulation and returns the task id.
func (o *Orchestrator) PrepareSimulation(simID string, req simulation.PrepareRequest) (string, error) {
	if _, err := o.SimManager.Store().Get(simID); err != nil {
		return "", err
	}
	taskID := o.Registry.Create(TaskPrepare, map[string]any{"simulation_id": simID})

	userProgress := req.Progress
	req.Progress = func(pct int, msg string) {
		o.Registry.Progress(taskID, pct, msg)
		if userProgress != nil {
			userProgress(pct, msg)
		}
	}
	go func() {
		if err := o.SimManager.Prepare(context.Background(), simID, req); err != nil {
			o.Registry.Fail(taskID, err.Error())
			return
		}
		o.Registry.Complete(taskID, map[string]any{"simulation_id": simID})
	}()
	return taskID, nil
}

// GenerateReport creates a report for a simulation and starts its generation
// job. Returns the report plus the task id.
func (o *Orchestrator) GenerateReport(simID, requirement string) (*models.Report, string, error) {
	sim, err := o.SimManager.Store().Get(simID)
	if err != nil {
		return nil, "", err
	}
	r, err := o.Reports.Create(simID, sim.GraphID, requirement)
	if err != nil {
		return nil, "", err
	}

	gen := report.NewGenerator(o.LLM, o.Reports, o.reportTools(sim))
	gen.RetryOpts = o.RetryOpts
	taskID := o.Registry.Create(TaskGenerateReport, map[string]any{
		"report_id":     r.ID,
		"simulation_id": simID,
	})
	go func() {
		summary := simulationSummary(sim)
		if err := gen.Generate(context.Background(), r, summary); err != nil {
			o.Registry.Fail(taskID, err.Error())
			return
		}
		o.Registry.Complete(taskID, map[string]any{"report_id": r.ID})
	}()
	return r, taskID, nil
}

// reportTools wires the research tools against the simulation's graph and,
// when the environment is up, its IPC channel.
func (o *Orchestrator) reportTools(sim *models.Simulation) []report.Tool {
	simDir := o.SimManager.Store().Dir(sim.ID)
	return []report.Tool{
		&report.InsightForge{LLM: o.LLM, Graph: o.Graph, GraphID: sim.GraphID},
		&report.PanoramaSearch{Graph: o.Graph, GraphID: sim.GraphID},
		&report.QuickSearch{Graph: o.Graph, GraphID: sim.GraphID},
		&report.InterviewAgents{
			LLM:      o.LLM,
			IPC:      ipc.NewClient(simDir),
			Profiles: readProfiles(filepath.Join(simDir, simulation.RedditProfilesFile)),
			Timeout:  60 * time.Second,
		},
	}
}

func readProfiles(path string) []models.AgentProfile {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var profiles []models.AgentProfile
	if err := json.Unmarshal(data, &profiles); err != nil {
		return nil
	}
	return profiles
}

func simulationSummary(sim *models.Simulation) string {
	return fmt.Sprintf("Simulation %s: %d agents across platforms %v, status %s.",
		sim.ID, sim.ProfileCount, sim.Platforms(), sim.Status)
}
