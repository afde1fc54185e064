// Package ontology defines the contract with the external ontology-inference
// service and the normalization rules applied to everything it returns.
package ontology

import (
	"context"
	"strings"

	"github.com/agora-sim/agora/pkg/models"
)

// Service generates an ontology from document texts and a simulation
// requirement. Implemented by the external LLM-backed inference service;
// the orchestrator only consumes it.
type Service interface {
	Generate(ctx context.Context, documentTexts []string, requirement string, context_ string) (*models.Ontology, error)
}

// Hard caps imposed by the graph backend.
const (
	MaxEntityTypes    = 10
	MaxEdgeTypes      = 10
	MaxDescriptionLen = 100
)

// Fallback entity types always present at the end of the normalized list.
const (
	FallbackPerson       = "Person"
	FallbackOrganization = "Organization"
)

// reservedAttributeNames are attribute identifiers owned by the graph store.
// Colliding attribute names are rewritten with the "entity_" prefix.
var reservedAttributeNames = map[string]bool{
	"uuid":       true,
	"name":       true,
	"group_id":   true,
	"labels":     true,
	"created_at": true,
	"updated_at": true,
	"summary":    true,
	"attributes": true,
	"fact":       true,
}

// Normalize validates and rewrites an ontology in place so it satisfies the
// graph backend's constraints:
//
//   - descriptions capped at MaxDescriptionLen characters
//   - the Person and Organization fallbacks present as the final two entity
//     types, evicting custom types from the end when the cap would overflow
//   - at most MaxEdgeTypes edge types
//   - reserved attribute names remapped to "entity_<name>", with the applied
//     mapping recorded in AttributeRenames for graph consumers
func Normalize(o *models.Ontology) *models.Ontology {
	if o == nil {
		o = &models.Ontology{}
	}
	renames := map[string]string{}

	// Drop any model-supplied copies of the fallbacks; they are re-appended
	// in canonical form below.
	custom := make([]models.EntityTypeSpec, 0, len(o.EntityTypes))
	for _, et := range o.EntityTypes {
		if et.Name == FallbackPerson || et.Name == FallbackOrganization {
			continue
		}
		custom = append(custom, et)
	}
	if len(custom) > MaxEntityTypes-2 {
		custom = custom[:MaxEntityTypes-2]
	}
	custom = append(custom,
		models.EntityTypeSpec{Name: FallbackPerson, Description: "A human individual"},
		models.EntityTypeSpec{Name: FallbackOrganization, Description: "A company, institution or group"},
	)
	o.EntityTypes = custom

	if len(o.EdgeTypes) > MaxEdgeTypes {
		o.EdgeTypes = o.EdgeTypes[:MaxEdgeTypes]
	}

	for i := range o.EntityTypes {
		et := &o.EntityTypes[i]
		et.Description = capDescription(et.Description)
		et.Attributes = normalizeAttributes(et.Attributes, renames)
	}
	for i := range o.EdgeTypes {
		ed := &o.EdgeTypes[i]
		ed.Description = capDescription(ed.Description)
		ed.Attributes = normalizeAttributes(ed.Attributes, renames)
	}

	if len(renames) > 0 {
		o.AttributeRenames = renames
	}
	return o
}

func normalizeAttributes(attrs []models.AttributeSpec, renames map[string]string) []models.AttributeSpec {
	for i := range attrs {
		a := &attrs[i]
		a.Description = capDescription(a.Description)
		lower := strings.ToLower(a.Name)
		if reservedAttributeNames[lower] {
			safe := "entity_" + lower
			renames[a.Name] = safe
			a.Name = safe
		}
	}
	return attrs
}

func capDescription(s string) string {
	if len(s) <= MaxDescriptionLen {
		return s
	}
	// Cut on a rune boundary so multi-byte descriptions stay valid UTF-8.
	runes := []rune(s)
	out := string(runes)
	for len(out) > MaxDescriptionLen {
		runes = runes[:len(runes)-1]
		out = string(runes)
	}
	return out
}
