// Package simconfig generates the complete simulation configuration in
// small, independently validated steps so that one oversized LLM call can
// never sink the whole preparation.
package simconfig

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/agora-sim/agora/pkg/llm"
	"github.com/agora-sim/agora/pkg/models"
	"github.com/agora-sim/agora/pkg/retry"
)

const (
	// maxContextChars bounds the document context passed to the time-config
	// prompt.
	maxContextChars = 10000
	// agentBatchSize is how many agents each agent-config LLM call covers.
	agentBatchSize = 15
)

// Synthesizer generates SimulationParameters from agent profiles and the
// simulation requirement.
type Synthesizer struct {
	llm   llm.Client
	retry retry.Options
}

// NewSynthesizer creates a config synthesizer.
func NewSynthesizer(llmClient llm.Client) *Synthesizer {
	return &Synthesizer{llm: llmClient}
}

// Request carries everything one Generate run needs.
type Request struct {
	Requirement  string
	DocumentText string
	Profiles     []models.AgentProfile
	Platforms    []models.Platform
}

// Generate runs the stepwise pipeline: time config, event config, per-agent
// configs in batches, initial-post assignment, platform configs. Every LLM
// step coerces to rule-based defaults on failure, so Generate only errors
// when there are no profiles at all.
func (s *Synthesizer) Generate(ctx context.Context, req Request) (*models.SimulationParameters, error) {
	if len(req.Profiles) == 0 {
		return nil, fmt.Errorf("no agent profiles to configure")
	}
	if len(req.Platforms) == 0 {
		req.Platforms = models.AllPlatforms()
	}

	params := &models.SimulationParameters{
		TimeConfig:   s.generateTimeConfig(ctx, req),
		EventConfig:  s.generateEventConfig(ctx, req),
		AgentConfigs: s.generateAgentConfigs(ctx, req),
		Platforms:    platformDefaults(req.Platforms),
	}
	assignInitialPosts(&params.EventConfig, req.Profiles, params.AgentConfigs)
	return params, nil
}

// callJSON runs one LLM call through the retry helper and decodes the JSON
// payload into out.
func (s *Synthesizer) callJSON(ctx context.Context, name, system, user string, out any) error {
	return retry.Do(ctx, name, s.retry, func(ctx context.Context) error {
		resp, err := s.llm.Generate(ctx, llm.GenerateInput{
			Messages: []llm.Message{
				{Role: llm.RoleSystem, Content: system},
				{Role: llm.RoleUser, Content: user},
			},
			Temperature: 0.3,
			JSONMode:    true,
		})
		if err != nil {
			return err
		}
		return llm.UnmarshalResponse(resp.Content, out)
	})
}

type timeLLM struct {
	TotalHours       int                 `json:"total_hours"`
	MinutesPerRound  int                 `json:"minutes_per_round"`
	AgentsPerHourMin int                 `json:"agents_per_hour_min"`
	AgentsPerHourMax int                 `json:"agents_per_hour_max"`
	HourBuckets      []models.HourBucket `json:"hour_buckets"`
}

func (s *Synthesizer) generateTimeConfig(ctx context.Context, req Request) models.TimeConfig {
	n := len(req.Profiles)
	if s.llm == nil {
		return defaultTimeConfig(n)
	}

	user := fmt.Sprintf("Simulation requirement:\n%s\n\nDocument context:\n%s\n\nAgent count: %d",
		req.Requirement, truncateChars(req.DocumentText, maxContextChars), n)

	var out timeLLM
	if err := s.callJSON(ctx, "simconfig.time", timePrompt, user, &out); err != nil {
		slog.Warn("Time config generation failed, using defaults", "error", err)
		return defaultTimeConfig(n)
	}

	tc := models.TimeConfig{
		TotalHours:       out.TotalHours,
		MinutesPerRound:  out.MinutesPerRound,
		AgentsPerHourMin: out.AgentsPerHourMin,
		AgentsPerHourMax: out.AgentsPerHourMax,
		HourBuckets:      out.HourBuckets,
	}
	return validateTimeConfig(tc, n)
}

// validateTimeConfig clamps activation bounds to [1, 0.9N] and coerces any
// remaining nonsense to defaults.
func validateTimeConfig(tc models.TimeConfig, agentCount int) models.TimeConfig {
	def := defaultTimeConfig(agentCount)
	if tc.TotalHours <= 0 {
		tc.TotalHours = def.TotalHours
	}
	if tc.MinutesPerRound <= 0 {
		tc.MinutesPerRound = def.MinutesPerRound
	}

	upper := int(0.9 * float64(agentCount))
	if upper < 1 {
		upper = 1
	}
	tc.AgentsPerHourMin = clamp(tc.AgentsPerHourMin, 1, upper)
	tc.AgentsPerHourMax = clamp(tc.AgentsPerHourMax, 1, upper)
	if tc.AgentsPerHourMin > tc.AgentsPerHourMax {
		tc.AgentsPerHourMin, tc.AgentsPerHourMax = def.AgentsPerHourMin, def.AgentsPerHourMax
	}
	if len(tc.HourBuckets) == 0 {
		tc.HourBuckets = def.HourBuckets
	}
	return tc
}

type eventLLM struct {
	HotTopics          []string `json:"hot_topics"`
	NarrativeDirection string   `json:"narrative_direction"`
	InitialPosts       []struct {
		Content    string `json:"content"`
		PosterType string `json:"poster_type"`
	} `json:"initial_posts"`
}

func (s *Synthesizer) generateEventConfig(ctx context.Context, req Request) models.EventConfig {
	types := entityTypesOf(req.Profiles)
	if s.llm == nil {
		return defaultEventConfig(req, types)
	}

	user := fmt.Sprintf("Simulation requirement:\n%s\n\nAvailable poster types: %s",
		req.Requirement, strings.Join(types, ", "))

	var out eventLLM
	if err := s.callJSON(ctx, "simconfig.event", eventPrompt, user, &out); err != nil {
		slog.Warn("Event config generation failed, using defaults", "error", err)
		return defaultEventConfig(req, types)
	}

	ec := models.EventConfig{
		HotTopics:          out.HotTopics,
		NarrativeDirection: out.NarrativeDirection,
	}
	for _, p := range out.InitialPosts {
		if strings.TrimSpace(p.Content) == "" {
			continue
		}
		ec.InitialPosts = append(ec.InitialPosts, models.InitialPost{
			Content:    p.Content,
			PosterType: p.PosterType,
		})
	}
	if len(ec.InitialPosts) == 0 {
		ec.InitialPosts = defaultEventConfig(req, types).InitialPosts
	}
	return ec
}

type agentLLM struct {
	Agents []models.AgentConfig `json:"agents"`
}

func (s *Synthesizer) generateAgentConfigs(ctx context.Context, req Request) []models.AgentConfig {
	configs := make([]models.AgentConfig, len(req.Profiles))
	byID := map[int]*models.AgentConfig{}
	for i := range configs {
		configs[i].AgentID = -1 // marks "not yet filled"
		byID[req.Profiles[i].UserID] = &configs[i]
	}

	if s.llm != nil {
		for start := 0; start < len(req.Profiles); start += agentBatchSize {
			end := min(start+agentBatchSize, len(req.Profiles))
			batch := req.Profiles[start:end]

			var out agentLLM
			if err := s.callJSON(ctx, "simconfig.agents", agentPrompt, agentBatchContext(req, batch), &out); err != nil {
				slog.Warn("Agent config batch failed, batch falls back to defaults",
					"from", start, "to", end, "error", err)
				continue
			}
			for _, a := range out.Agents {
				if slot, ok := byID[a.AgentID]; ok {
					*slot = sanitizeAgentConfig(a)
				}
			}
		}
	}

	// Any agent the model skipped gets rule-based defaults by entity type.
	for i, p := range req.Profiles {
		if configs[i].AgentID == -1 {
			configs[i] = defaultAgentConfig(p)
		}
	}
	return configs
}

func agentBatchContext(req Request, batch []models.AgentProfile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Simulation requirement:\n%s\n\nAgents:\n", req.Requirement)
	for _, p := range batch {
		fmt.Fprintf(&b, "- agent_id=%d name=%q type=%s profession=%s bio=%q\n",
			p.UserID, p.Name, p.EntityType, p.Profession, truncateChars(p.Bio, 120))
	}
	return b.String()
}

func sanitizeAgentConfig(a models.AgentConfig) models.AgentConfig {
	a.ActivityLevel = clampFloat(a.ActivityLevel, 0, 1)
	a.PostRate = clampFloat(a.PostRate, 0, 1)
	a.CommentRate = clampFloat(a.CommentRate, 0, 1)
	a.SentimentBias = clampFloat(a.SentimentBias, -1, 1)
	a.InfluenceWeight = clampFloat(a.InfluenceWeight, 0, 1)
	if a.ResponseDelayMin < 0 {
		a.ResponseDelayMin = 0
	}
	if a.ResponseDelayMax < a.ResponseDelayMin {
		a.ResponseDelayMax = a.ResponseDelayMin
	}
	switch a.Stance {
	case models.StanceSupportive, models.StanceOpposing, models.StanceNeutral, models.StanceObserver:
	default:
		a.Stance = models.StanceNeutral
	}
	var hours []int
	for _, h := range a.ActiveHours {
		if h >= 0 && h <= 23 {
			hours = append(hours, h)
		}
	}
	if len(hours) == 0 {
		hours = hourRange(8, 23)
	}
	a.ActiveHours = hours
	return a
}

func entityTypesOf(profiles []models.AgentProfile) []string {
	seen := map[string]bool{}
	var types []string
	for _, p := range profiles {
		if p.EntityType != "" && !seen[p.EntityType] {
			seen[p.EntityType] = true
			types = append(types, p.EntityType)
		}
	}
	return types
}

func truncateChars(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func hourRange(from, to int) []int {
	var hours []int
	for h := from; h <= to; h++ {
		hours = append(hours, h)
	}
	return hours
}

const timePrompt = `You design the simulated clock for a social-media opinion simulation.
Typical activity multipliers for Chinese social platforms are hints, not rules:
night 0-6 around 0.3, morning commute 7-9 around 1.2, lunch 12-14 around 1.5,
evening 19-23 around 2.0. Adjust them to the scenario.
Respond with a single JSON object:
{"total_hours": int, "minutes_per_round": int, "agents_per_hour_min": int,
 "agents_per_hour_max": int,
 "hour_buckets": [{"name": str, "start_hour": int, "end_hour": int, "multiplier": float}]}`

const eventPrompt = `You seed the narrative of a social-media opinion simulation.
poster_type must be chosen from the provided list of available poster types.
Respond with a single JSON object:
{"hot_topics": [str], "narrative_direction": str,
 "initial_posts": [{"content": str, "poster_type": str}]}`

const agentPrompt = `You assign behavioral parameters to social-media simulation agents.
Respond with a single JSON object:
{"agents": [{"agent_id": int, "activity_level": 0..1, "post_rate": 0..1, "comment_rate": 0..1,
 "active_hours": [0..23], "response_delay_min_minutes": int, "response_delay_max_minutes": int,
 "sentiment_bias": -1..1, "stance": "supportive"|"opposing"|"neutral"|"observer",
 "influence_weight": 0..1}]}
Include every agent_id you were given.`
