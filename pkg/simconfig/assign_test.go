package simconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agora-sim/agora/pkg/models"
)

func assignFixture() ([]models.AgentProfile, []models.AgentConfig) {
	profiles := []models.AgentProfile{
		{UserID: 0, EntityType: "Person"},
		{UserID: 1, EntityType: "Person"},
		{UserID: 2, EntityType: "University"},
		{UserID: 3, EntityType: "Media"},
	}
	configs := []models.AgentConfig{
		{AgentID: 0, InfluenceWeight: 0.2},
		{AgentID: 1, InfluenceWeight: 0.3},
		{AgentID: 2, InfluenceWeight: 0.9},
		{AgentID: 3, InfluenceWeight: 0.8},
	}
	return profiles, configs
}

func TestAssignInitialPosts_ExactMatch(t *testing.T) {
	profiles, configs := assignFixture()
	ec := models.EventConfig{InitialPosts: []models.InitialPost{
		{Content: "a", PosterType: "Media"},
	}}
	assignInitialPosts(&ec, profiles, configs)
	assert.Equal(t, 3, ec.InitialPosts[0].PosterAgentID)
}

func TestAssignInitialPosts_AliasMatch(t *testing.T) {
	profiles, configs := assignFixture()
	// No "Official" agent exists; the alias map routes to the university.
	ec := models.EventConfig{InitialPosts: []models.InitialPost{
		{Content: "a", PosterType: "official"},
	}}
	assignInitialPosts(&ec, profiles, configs)
	assert.Equal(t, 2, ec.InitialPosts[0].PosterAgentID)
}

func TestAssignInitialPosts_InfluenceFallback(t *testing.T) {
	profiles, configs := assignFixture()
	ec := models.EventConfig{InitialPosts: []models.InitialPost{
		{Content: "a", PosterType: "Celebrity"},
	}}
	assignInitialPosts(&ec, profiles, configs)
	// Highest influence weight wins.
	assert.Equal(t, 2, ec.InitialPosts[0].PosterAgentID)
}

func TestAssignInitialPosts_RoundRobinPerType(t *testing.T) {
	profiles, configs := assignFixture()
	ec := models.EventConfig{InitialPosts: []models.InitialPost{
		{Content: "a", PosterType: "Person"},
		{Content: "b", PosterType: "Person"},
		{Content: "c", PosterType: "Person"},
	}}
	assignInitialPosts(&ec, profiles, configs)

	assert.Equal(t, 0, ec.InitialPosts[0].PosterAgentID)
	assert.Equal(t, 1, ec.InitialPosts[1].PosterAgentID)
	assert.Equal(t, 0, ec.InitialPosts[2].PosterAgentID)
}
