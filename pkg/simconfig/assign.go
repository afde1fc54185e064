package simconfig

import (
	"strings"

	"github.com/agora-sim/agora/pkg/models"
)

// aliasGroups cluster entity types that may stand in for each other when an
// initial post's poster_type has no exact match among the agents.
var aliasGroups = [][]string{
	{"official", "university", "governmentagency", "government", "school", "institution"},
	{"media", "mediaoutlet", "journalist", "newsagency"},
	{"person", "individual", "citizen", "user", "student"},
	{"organization", "company"},
}

func aliasesOf(posterType string) []string {
	lower := strings.ToLower(posterType)
	for _, group := range aliasGroups {
		for _, t := range group {
			if t == lower {
				return group
			}
		}
	}
	return nil
}

// assignInitialPosts resolves poster_agent_id for every initial post:
// exact type match first, then the alias map, then the agent with the
// highest influence weight. A per-type round-robin cursor spreads posts of
// the same type over different agents.
func assignInitialPosts(ec *models.EventConfig, profiles []models.AgentProfile, configs []models.AgentConfig) {
	influence := map[int]float64{}
	for _, c := range configs {
		influence[c.AgentID] = c.InfluenceWeight
	}

	byType := map[string][]int{}
	for _, p := range profiles {
		t := strings.ToLower(p.EntityType)
		byType[t] = append(byType[t], p.UserID)
	}

	mostInfluential := 0
	best := -1.0
	for _, p := range profiles {
		if w := influence[p.UserID]; w > best {
			best = w
			mostInfluential = p.UserID
		}
	}

	cursors := map[string]int{}
	pick := func(key string, candidates []int) int {
		i := cursors[key] % len(candidates)
		cursors[key]++
		return candidates[i]
	}

	for i := range ec.InitialPosts {
		post := &ec.InitialPosts[i]
		key := strings.ToLower(post.PosterType)

		if candidates, ok := byType[key]; ok && len(candidates) > 0 {
			post.PosterAgentID = pick(key, candidates)
			continue
		}

		assigned := false
		for _, alias := range aliasesOf(post.PosterType) {
			if candidates, ok := byType[alias]; ok && len(candidates) > 0 {
				post.PosterAgentID = pick(alias, candidates)
				assigned = true
				break
			}
		}
		if !assigned {
			post.PosterAgentID = mostInfluential
		}
	}
}
