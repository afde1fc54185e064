package models

// Stance is an agent's position toward the simulated topic.
type Stance string

// Agent stances.
const (
	StanceSupportive Stance = "supportive"
	StanceOpposing   Stance = "opposing"
	StanceNeutral    Stance = "neutral"
	StanceObserver   Stance = "observer"
)

// HourBucket names a band of simulated hours with an activity multiplier.
type HourBucket struct {
	Name       string  `json:"name"`
	StartHour  int     `json:"start_hour"`
	EndHour    int     `json:"end_hour"`
	Multiplier float64 `json:"multiplier"`
}

// TimeConfig controls the simulated clock and global activation bounds.
type TimeConfig struct {
	TotalHours       int          `json:"total_hours"`
	MinutesPerRound  int          `json:"minutes_per_round"`
	AgentsPerHourMin int          `json:"agents_per_hour_min"`
	AgentsPerHourMax int          `json:"agents_per_hour_max"`
	HourBuckets      []HourBucket `json:"hour_buckets,omitempty"`
}

// AgentConfig holds per-agent behavioral parameters.
type AgentConfig struct {
	AgentID          int     `json:"agent_id"`
	ActivityLevel    float64 `json:"activity_level"`
	PostRate         float64 `json:"post_rate"`
	CommentRate      float64 `json:"comment_rate"`
	ActiveHours      []int   `json:"active_hours"`
	ResponseDelayMin int     `json:"response_delay_min_minutes"`
	ResponseDelayMax int     `json:"response_delay_max_minutes"`
	SentimentBias    float64 `json:"sentiment_bias"`
	Stance           Stance  `json:"stance"`
	InfluenceWeight  float64 `json:"influence_weight"`
}

// InitialPost seeds the simulation with content attributed to an agent whose
// entity type matches PosterType (with alias and influence-weight fallback).
type InitialPost struct {
	Content       string `json:"content"`
	PosterType    string `json:"poster_type"`
	PosterAgentID int    `json:"poster_agent_id"`
}

// EventConfig describes the seeded narrative of the simulation.
type EventConfig struct {
	InitialPosts       []InitialPost `json:"initial_posts"`
	HotTopics          []string      `json:"hot_topics,omitempty"`
	NarrativeDirection string        `json:"narrative_direction,omitempty"`
}

// PlatformConfig holds per-platform recommendation weights and dynamics.
type PlatformConfig struct {
	RecencyWeight       float64 `json:"recency_weight"`
	PopularityWeight    float64 `json:"popularity_weight"`
	RelevanceWeight     float64 `json:"relevance_weight"`
	ViralThreshold      int     `json:"viral_threshold"`
	EchoChamberStrength float64 `json:"echo_chamber_strength"`
}

// SimulationParameters is the complete generated configuration, persisted as
// simulation_config.json.
type SimulationParameters struct {
	TimeConfig   TimeConfig                  `json:"time_config"`
	AgentConfigs []AgentConfig               `json:"agent_configs"`
	EventConfig  EventConfig                 `json:"event_config"`
	Platforms    map[Platform]PlatformConfig `json:"platform_configs"`
}
