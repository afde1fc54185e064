package ontology

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agora-sim/agora/pkg/models"
)

func customTypes(n int) []models.EntityTypeSpec {
	types := make([]models.EntityTypeSpec, n)
	for i := range types {
		types[i] = models.EntityTypeSpec{Name: "Custom" + string(rune('A'+i))}
	}
	return types
}

func TestNormalize_AppendsFallbacks(t *testing.T) {
	o := Normalize(&models.Ontology{EntityTypes: customTypes(3)})

	require.Len(t, o.EntityTypes, 5)
	assert.Equal(t, FallbackPerson, o.EntityTypes[3].Name)
	assert.Equal(t, FallbackOrganization, o.EntityTypes[4].Name)
}

func TestNormalize_EvictsFromEndToRespectCap(t *testing.T) {
	o := Normalize(&models.Ontology{EntityTypes: customTypes(12)})

	require.Len(t, o.EntityTypes, MaxEntityTypes)
	names := o.EntityTypeNames()
	assert.Equal(t, FallbackPerson, names[8])
	assert.Equal(t, FallbackOrganization, names[9])
	assert.NotContains(t, names, "CustomI")
}

func TestNormalize_DeduplicatesModelSuppliedFallbacks(t *testing.T) {
	o := Normalize(&models.Ontology{EntityTypes: []models.EntityTypeSpec{
		{Name: "Person", Description: "model version"},
		{Name: "Journalist"},
		{Name: "Organization"},
	}})

	require.Len(t, o.EntityTypes, 3)
	assert.Equal(t, []string{"Journalist", FallbackPerson, FallbackOrganization}, o.EntityTypeNames())
}

func TestNormalize_CapsEdgeTypes(t *testing.T) {
	edges := make([]models.EdgeTypeSpec, 13)
	for i := range edges {
		edges[i] = models.EdgeTypeSpec{Name: "Edge" + string(rune('A'+i))}
	}
	o := Normalize(&models.Ontology{EdgeTypes: edges})
	assert.Len(t, o.EdgeTypes, MaxEdgeTypes)
}

func TestNormalize_TruncatesDescriptions(t *testing.T) {
	long := strings.Repeat("x", 250)
	o := Normalize(&models.Ontology{
		EntityTypes: []models.EntityTypeSpec{{Name: "Topic", Description: long}},
		EdgeTypes:   []models.EdgeTypeSpec{{Name: "Mentions", Description: long}},
	})

	assert.Len(t, o.EntityTypes[0].Description, MaxDescriptionLen)
	assert.Len(t, o.EdgeTypes[0].Description, MaxDescriptionLen)
}

func TestNormalize_TruncationKeepsValidUTF8(t *testing.T) {
	long := strings.Repeat("观", 60) // 3 bytes per rune
	o := Normalize(&models.Ontology{
		EntityTypes: []models.EntityTypeSpec{{Name: "Topic", Description: long}},
	})

	desc := o.EntityTypes[0].Description
	assert.LessOrEqual(t, len(desc), MaxDescriptionLen)
	assert.True(t, strings.HasPrefix(long, desc))
}

func TestNormalize_RemapsReservedAttributeNames(t *testing.T) {
	o := Normalize(&models.Ontology{
		EntityTypes: []models.EntityTypeSpec{{
			Name: "Topic",
			Attributes: []models.AttributeSpec{
				{Name: "summary"},
				{Name: "heat"},
			},
		}},
		EdgeTypes: []models.EdgeTypeSpec{{
			Name:       "Mentions",
			Attributes: []models.AttributeSpec{{Name: "created_at"}},
		}},
	})

	assert.Equal(t, "entity_summary", o.EntityTypes[0].Attributes[0].Name)
	assert.Equal(t, "heat", o.EntityTypes[0].Attributes[1].Name)
	assert.Equal(t, "entity_created_at", o.EdgeTypes[0].Attributes[0].Name)
	assert.Equal(t, map[string]string{
		"summary":    "entity_summary",
		"created_at": "entity_created_at",
	}, o.AttributeRenames)
}

func TestNormalize_NilOntology(t *testing.T) {
	o := Normalize(nil)
	require.NotNil(t, o)
	assert.Len(t, o.EntityTypes, 2)
}
