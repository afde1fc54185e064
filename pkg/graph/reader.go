package graph

import (
	"context"

	"github.com/agora-sim/agora/pkg/retry"
)

// genericLabels are backend-internal labels that carry no domain meaning.
var genericLabels = map[string]bool{
	"Entity":    true,
	"Node":      true,
	"GraphNode": true,
}

// NeighborRef is the minimal descriptor of the opposite endpoint of an edge.
type NeighborRef struct {
	UUID   string   `json:"uuid"`
	Name   string   `json:"name"`
	Labels []string `json:"labels,omitempty"`
}

// EdgeContext is one edge attached to an entity during enrichment.
type EdgeContext struct {
	Type     string      `json:"type"`
	Fact     string      `json:"fact,omitempty"`
	Neighbor NeighborRef `json:"neighbor"`
}

// Entity is a typed node kept by FilterDefined, optionally enriched with its
// 1-hop neighborhood.
type Entity struct {
	Node
	EntityType string        `json:"entity_type"`
	Outgoing   []EdgeContext `json:"outgoing,omitempty"`
	Incoming   []EdgeContext `json:"incoming,omitempty"`
}

// FilteredEntities is the result of one FilterDefined call.
type FilteredEntities struct {
	Entities        []Entity `json:"entities"`
	EntityTypesSeen []string `json:"entity_types_seen"`
	TotalCount      int      `json:"total_count"`
	FilteredCount   int      `json:"filtered_count"`
}

// EntityReader filters a graph down to user-defined typed entities.
type EntityReader struct {
	client Client
	retry  retry.Options
}

// NewEntityReader creates a reader over the given backend client.
func NewEntityReader(client Client) *EntityReader {
	return &EntityReader{client: client}
}

// FilterDefined retrieves all nodes of graphID and keeps those carrying at
// least one non-generic label. When definedTypes is non-empty, a node is
// kept only if its labels intersect definedTypes; its entity type is the
// first matching label, otherwise the first custom label. When enrich is
// true, each kept entity gets its 1-hop edges with fact text and minimal
// descriptors of the opposite endpoints.
func (r *EntityReader) FilterDefined(ctx context.Context, graphID string, definedTypes []string, enrich bool) (*FilteredEntities, error) {
	nodes, err := retry.Call(ctx, "graph.get_nodes", r.retry, func(ctx context.Context) ([]Node, error) {
		return r.client.GetNodes(ctx, graphID)
	})
	if err != nil {
		return nil, err
	}

	defined := map[string]bool{}
	for _, t := range definedTypes {
		defined[t] = true
	}

	result := &FilteredEntities{TotalCount: len(nodes)}
	seen := map[string]bool{}
	byUUID := map[string]Node{}
	for _, n := range nodes {
		byUUID[n.UUID] = n

		custom := customLabels(n.Labels)
		if len(custom) == 0 {
			continue
		}
		entityType := ""
		if len(defined) > 0 {
			for _, l := range custom {
				if defined[l] {
					entityType = l
					break
				}
			}
			if entityType == "" {
				continue
			}
		} else {
			entityType = custom[0]
		}

		result.Entities = append(result.Entities, Entity{Node: n, EntityType: entityType})
		if !seen[entityType] {
			seen[entityType] = true
			result.EntityTypesSeen = append(result.EntityTypesSeen, entityType)
		}
	}
	result.FilteredCount = len(result.Entities)

	if enrich && len(result.Entities) > 0 {
		edges, err := retry.Call(ctx, "graph.get_edges", r.retry, func(ctx context.Context) ([]Edge, error) {
			return r.client.GetEdges(ctx, graphID)
		})
		if err != nil {
			return nil, err
		}
		attachContext(result.Entities, edges, byUUID)
	}
	return result, nil
}

func attachContext(entities []Entity, edges []Edge, byUUID map[string]Node) {
	index := map[string]*Entity{}
	for i := range entities {
		index[entities[i].UUID] = &entities[i]
	}
	for _, e := range edges {
		if ent, ok := index[e.SourceUUID]; ok {
			ent.Outgoing = append(ent.Outgoing, EdgeContext{
				Type:     e.Name,
				Fact:     e.Fact,
				Neighbor: neighborRef(byUUID, e.TargetUUID),
			})
		}
		if ent, ok := index[e.TargetUUID]; ok {
			ent.Incoming = append(ent.Incoming, EdgeContext{
				Type:     e.Name,
				Fact:     e.Fact,
				Neighbor: neighborRef(byUUID, e.SourceUUID),
			})
		}
	}
}

func neighborRef(byUUID map[string]Node, uuid string) NeighborRef {
	n, ok := byUUID[uuid]
	if !ok {
		return NeighborRef{UUID: uuid}
	}
	return NeighborRef{UUID: n.UUID, Name: n.Name, Labels: n.Labels}
}

func customLabels(labels []string) []string {
	var custom []string
	for _, l := range labels {
		if !genericLabels[l] {
			custom = append(custom, l)
		}
	}
	return custom
}
