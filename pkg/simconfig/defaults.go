package simconfig

import (
	"strings"

	"github.com/agora-sim/agora/pkg/models"
)

func defaultTimeConfig(agentCount int) models.TimeConfig {
	upper := int(0.9 * float64(agentCount))
	if upper < 1 {
		upper = 1
	}
	maxAgents := agentCount / 3
	if maxAgents < 1 {
		maxAgents = 1
	}
	if maxAgents > upper {
		maxAgents = upper
	}
	return models.TimeConfig{
		TotalHours:       24,
		MinutesPerRound:  30,
		AgentsPerHourMin: 1,
		AgentsPerHourMax: maxAgents,
		HourBuckets: []models.HourBucket{
			{Name: "night", StartHour: 0, EndHour: 6, Multiplier: 0.3},
			{Name: "morning", StartHour: 7, EndHour: 9, Multiplier: 1.2},
			{Name: "midday", StartHour: 12, EndHour: 14, Multiplier: 1.5},
			{Name: "evening", StartHour: 19, EndHour: 23, Multiplier: 2.0},
		},
	}
}

func defaultEventConfig(req Request, types []string) models.EventConfig {
	posterType := ""
	if len(types) > 0 {
		posterType = types[0]
	}
	content := strings.TrimSpace(req.Requirement)
	if content == "" {
		content = "A discussion is starting about recent events."
	}
	return models.EventConfig{
		InitialPosts: []models.InitialPost{{Content: content, PosterType: posterType}},
	}
}

// agentClass buckets entity types for rule-based behavioral defaults.
type agentClass int

const (
	classIndividual agentClass = iota
	classInstitution
	classMedia
	classStudent
)

func classify(entityType string) agentClass {
	switch strings.ToLower(entityType) {
	case "organization", "company", "government", "governmentagency",
		"institution", "official", "university", "school":
		return classInstitution
	case "media", "mediaoutlet", "journalist", "newsagency":
		return classMedia
	case "student":
		return classStudent
	default:
		return classIndividual
	}
}

// defaultAgentConfig fills behavioral parameters by entity class:
// institutions post rarely during work hours but carry high influence,
// media covers broad hours and reacts fast, individuals peak in the
// evening, students add a midday window and respond the fastest.
func defaultAgentConfig(p models.AgentProfile) models.AgentConfig {
	c := models.AgentConfig{
		AgentID:       p.UserID,
		Stance:        models.StanceNeutral,
		SentimentBias: 0,
	}
	switch classify(p.EntityType) {
	case classInstitution:
		c.ActivityLevel = 0.3
		c.PostRate = 0.2
		c.CommentRate = 0.1
		c.ActiveHours = hourRange(9, 17)
		c.ResponseDelayMin = 60
		c.ResponseDelayMax = 240
		c.InfluenceWeight = 0.9
	case classMedia:
		c.ActivityLevel = 0.7
		c.PostRate = 0.6
		c.CommentRate = 0.3
		c.ActiveHours = hourRange(7, 23)
		c.ResponseDelayMin = 5
		c.ResponseDelayMax = 30
		c.InfluenceWeight = 0.8
	case classStudent:
		c.ActivityLevel = 0.8
		c.PostRate = 0.4
		c.CommentRate = 0.9
		c.ActiveHours = append(hourRange(12, 14), hourRange(18, 23)...)
		c.ResponseDelayMin = 1
		c.ResponseDelayMax = 15
		c.InfluenceWeight = 0.3
	default:
		c.ActivityLevel = 0.5
		c.PostRate = 0.3
		c.CommentRate = 0.6
		c.ActiveHours = hourRange(18, 23)
		c.ResponseDelayMin = 5
		c.ResponseDelayMax = 60
		c.InfluenceWeight = 0.2
	}
	return c
}

// platformDefaults fills per-platform recommendation weights. Twitter favors
// recency and virality, Reddit favors popularity with a weaker echo chamber.
func platformDefaults(platforms []models.Platform) map[models.Platform]models.PlatformConfig {
	out := map[models.Platform]models.PlatformConfig{}
	for _, p := range platforms {
		switch p {
		case models.PlatformTwitter:
			out[p] = models.PlatformConfig{
				RecencyWeight:       0.5,
				PopularityWeight:    0.3,
				RelevanceWeight:     0.2,
				ViralThreshold:      100,
				EchoChamberStrength: 0.7,
			}
		case models.PlatformReddit:
			out[p] = models.PlatformConfig{
				RecencyWeight:       0.3,
				PopularityWeight:    0.4,
				RelevanceWeight:     0.3,
				ViralThreshold:      50,
				EchoChamberStrength: 0.5,
			}
		}
	}
	return out
}
