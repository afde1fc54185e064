package runner

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/agora-sim/agora/pkg/models"
	"github.com/agora-sim/agora/pkg/store"
)

// ActionFilter restricts which actions the read APIs return.
type ActionFilter struct {
	Platform models.Platform
	AgentID  *int
	Round    *int
}

func (f ActionFilter) matches(a *models.AgentAction) bool {
	if f.Platform != "" && a.Platform != f.Platform {
		return false
	}
	if f.AgentID != nil && (a.AgentID == nil || *a.AgentID != *f.AgentID) {
		return false
	}
	if f.Round != nil && a.Round != *f.Round {
		return false
	}
	return true
}

// GetRunState returns the live state of a tracked simulation, or the
// persisted run_state.json of one that is not running.
func (r *Runner) GetRunState(simID string) (*models.RunState, error) {
	r.mu.Lock()
	rs, ok := r.procs[simID]
	r.mu.Unlock()
	if ok {
		state := rs.snapshot()
		return &state, nil
	}

	var state models.RunState
	path := filepath.Join(r.manager.Store().Dir(simID), RunStateFile)
	if err := store.ReadJSON(path, &state); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("simulation %s has no run state", simID)
		}
		return nil, err
	}
	return &state, nil
}

// GetAllActions parses the full action logs on every call. The logs are
// append-only and newline-framed, so reading concurrently with the external
// writer is safe.
func (r *Runner) GetAllActions(simID string, filter ActionFilter) ([]models.AgentAction, error) {
	dir := r.manager.Store().Dir(simID)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, fmt.Errorf("simulation %s not found", simID)
	}

	platforms := models.AllPlatforms()
	if filter.Platform != "" {
		platforms = []models.Platform{filter.Platform}
	}

	var actions []models.AgentAction
	for _, platform := range platforms {
		path := filepath.Join(dir, string(platform), ActionsFile)
		lines, _ := readCompleteLines(path, 0)
		for _, line := range lines {
			var a models.AgentAction
			if err := json.Unmarshal(line, &a); err != nil {
				continue
			}
			if a.Platform == "" {
				a.Platform = platform
			}
			if !a.IsAgentAction() || !filter.matches(&a) {
				continue
			}
			actions = append(actions, a)
		}
	}
	return actions, nil
}

// GetActions pages GetAllActions. limit <= 0 means everything after offset.
func (r *Runner) GetActions(simID string, filter ActionFilter, limit, offset int) ([]models.AgentAction, int, error) {
	all, err := r.GetAllActions(simID, filter)
	if err != nil {
		return nil, 0, err
	}
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	page := all[offset:]
	if limit > 0 && len(page) > limit {
		page = page[:limit]
	}
	return page, total, nil
}

// TimelineEntry aggregates one round of the simulation.
type TimelineEntry struct {
	Round      int                     `json:"round"`
	Actions    int                     `json:"actions"`
	ByPlatform map[models.Platform]int `json:"by_platform"`
	ByType     map[string]int          `json:"by_action_type"`
}

// GetTimeline aggregates actions per round over [fromRound, toRound].
// toRound <= 0 means no upper bound.
func (r *Runner) GetTimeline(simID string, fromRound, toRound int) ([]TimelineEntry, error) {
	actions, err := r.GetAllActions(simID, ActionFilter{})
	if err != nil {
		return nil, err
	}

	byRound := map[int]*TimelineEntry{}
	for _, a := range actions {
		if a.Round < fromRound || (toRound > 0 && a.Round > toRound) {
			continue
		}
		entry, ok := byRound[a.Round]
		if !ok {
			entry = &TimelineEntry{
				Round:      a.Round,
				ByPlatform: map[models.Platform]int{},
				ByType:     map[string]int{},
			}
			byRound[a.Round] = entry
		}
		entry.Actions++
		entry.ByPlatform[a.Platform]++
		entry.ByType[a.ActionType]++
	}

	timeline := make([]TimelineEntry, 0, len(byRound))
	for _, entry := range byRound {
		timeline = append(timeline, *entry)
	}
	sort.Slice(timeline, func(i, j int) bool { return timeline[i].Round < timeline[j].Round })
	return timeline, nil
}

// AgentStats aggregates one agent's activity across the whole run.
type AgentStats struct {
	AgentID    int                     `json:"agent_id"`
	AgentName  string                  `json:"agent_name,omitempty"`
	Actions    int                     `json:"actions"`
	ByType     map[string]int          `json:"by_action_type"`
	ByPlatform map[models.Platform]int `json:"by_platform"`
	LastRound  int                     `json:"last_round"`
}

// GetAgentStats aggregates actions per agent, sorted by agent id.
func (r *Runner) GetAgentStats(simID string) ([]AgentStats, error) {
	actions, err := r.GetAllActions(simID, ActionFilter{})
	if err != nil {
		return nil, err
	}

	byAgent := map[int]*AgentStats{}
	for _, a := range actions {
		id := *a.AgentID
		stats, ok := byAgent[id]
		if !ok {
			stats = &AgentStats{
				AgentID:    id,
				ByType:     map[string]int{},
				ByPlatform: map[models.Platform]int{},
			}
			byAgent[id] = stats
		}
		stats.Actions++
		stats.ByType[a.ActionType]++
		stats.ByPlatform[a.Platform]++
		if a.AgentName != "" {
			stats.AgentName = a.AgentName
		}
		if a.Round > stats.LastRound {
			stats.LastRound = a.Round
		}
	}

	out := make([]AgentStats, 0, len(byAgent))
	for _, stats := range byAgent {
		out = append(out, *stats)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AgentID < out[j].AgentID })
	return out, nil
}
