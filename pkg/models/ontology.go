package models

// AttributeSpec describes one typed attribute of an entity or edge type.
type AttributeSpec struct {
	Name        string `json:"name"`
	Type        string `json:"type,omitempty"` // text, int, float, bool
	Description string `json:"description,omitempty"`
}

// EntityTypeSpec declares one entity type of the ontology.
type EntityTypeSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Attributes  []AttributeSpec `json:"attributes,omitempty"`
}

// SourceTargetPair constrains which entity types an edge type may connect.
type SourceTargetPair struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// EdgeTypeSpec declares one relationship type of the ontology.
type EdgeTypeSpec struct {
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Attributes  []AttributeSpec    `json:"attributes,omitempty"`
	SourceTargets []SourceTargetPair `json:"source_targets,omitempty"`
}

// Ontology is the declarative type system of a knowledge graph. After
// normalization it holds exactly 10 entity types, the last two being the
// Person and Organization fallbacks, and at most 10 edge types.
//
// AttributeRenames records reserved attribute names that were rewritten on
// ingest (original → safe name) so graph consumers can invert the mapping.
type Ontology struct {
	EntityTypes      []EntityTypeSpec  `json:"entity_types"`
	EdgeTypes        []EdgeTypeSpec    `json:"edge_types"`
	AttributeRenames map[string]string `json:"attribute_renames,omitempty"`
}

// EntityTypeNames returns the names of all entity types in declaration order.
func (o *Ontology) EntityTypeNames() []string {
	names := make([]string, len(o.EntityTypes))
	for i, et := range o.EntityTypes {
		names[i] = et.Name
	}
	return names
}
