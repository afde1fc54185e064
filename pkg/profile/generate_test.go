package profile

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agora-sim/agora/pkg/graph"
	"github.com/agora-sim/agora/pkg/models"
)

func testEntities(n int) []graph.Entity {
	entities := make([]graph.Entity, n)
	for i := range entities {
		entities[i] = graph.Entity{
			Node:       graph.Node{UUID: string(rune('a' + i)), Name: "Agent " + string(rune('A'+i))},
			EntityType: "Person",
		}
	}
	return entities
}

func TestGenerateAll_UserIDEqualsIndex(t *testing.T) {
	s := NewSynthesizer(nil, nil, "")
	profiles, err := s.GenerateAll(context.Background(), testEntities(4), GenerateOptions{
		Parallel: 3,
	})
	require.NoError(t, err)
	require.Len(t, profiles, 4)
	for i, p := range profiles {
		assert.Equal(t, i, p.UserID)
		assert.Equal(t, "Agent "+string(rune('A'+i)), p.Name)
	}
}

func TestGenerateAll_Empty(t *testing.T) {
	s := NewSynthesizer(nil, nil, "")
	_, err := s.GenerateAll(context.Background(), nil, GenerateOptions{})
	assert.Error(t, err)
}

func TestGenerateAll_ProgressCallback(t *testing.T) {
	s := NewSynthesizer(nil, nil, "")
	var currents []int
	_, err := s.GenerateAll(context.Background(), testEntities(3), GenerateOptions{
		Progress: func(current, total int, msg string) {
			currents = append(currents, current)
			assert.Equal(t, 3, total)
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, currents)
}

func TestGenerateAll_RealtimeSaveReddit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reddit_profiles.json")
	s := NewSynthesizer(nil, nil, "")
	_, err := s.GenerateAll(context.Background(), testEntities(2), GenerateOptions{
		RealtimePath:     path,
		RealtimePlatform: models.PlatformReddit,
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var saved []models.AgentProfile
	require.NoError(t, json.Unmarshal(data, &saved))
	require.Len(t, saved, 2)
	assert.Equal(t, 0, saved[0].UserID)
	assert.Equal(t, 1, saved[1].UserID)
}

func TestWriteTwitterProfiles_Schema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twitter_profiles.csv")
	profiles := []models.AgentProfile{
		{UserID: 0, Name: "Li, Wei", UserName: "liwei", Persona: "long persona\nwith newline", Bio: "bio"},
	}
	require.NoError(t, WriteTwitterProfiles(path, profiles))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, []string{"user_id", "name", "username", "user_char", "description"}, records[0])
	assert.Equal(t, []string{"0", "Li, Wei", "liwei", "long persona\nwith newline", "bio"}, records[1])
}

func TestWriteRedditProfiles_EmptyIsArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reddit_profiles.json")
	require.NoError(t, WriteRedditProfiles(path, nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(data))
}
