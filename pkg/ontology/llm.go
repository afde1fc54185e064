package ontology

import (
	"context"
	"fmt"
	"strings"

	"github.com/agora-sim/agora/pkg/llm"
	"github.com/agora-sim/agora/pkg/models"
	"github.com/agora-sim/agora/pkg/retry"
)

// maxDocumentChars bounds how much document text goes into the prompt.
const maxDocumentChars = 10000

const ontologySystemPrompt = `You design knowledge-graph ontologies for social-opinion simulations.
Given source documents and a simulation requirement, respond with JSON:
{"entity_types": [{"name": str, "description": str, "attributes": [{"name": str, "type": "text|int|float|bool", "description": str}]}],
 "edge_types": [{"name": str, "description": str, "source_targets": [{"source": str, "target": str}]}]}
Entity type names are singular CamelCase. Keep descriptions under 100 characters.
Include the entity types the simulation needs to model actors (people, media, institutions) and the relationships between them.`

// LLMService infers an ontology with one LLM call and normalizes the result.
type LLMService struct {
	client llm.Client

	RetryOpts retry.Options
}

func NewLLMService(client llm.Client) *LLMService {
	return &LLMService{client: client}
}

// Generate implements Service.
func (s *LLMService) Generate(ctx context.Context, documentTexts []string, requirement string, context_ string) (*models.Ontology, error) {
	var docs strings.Builder
	for _, text := range documentTexts {
		if docs.Len() >= maxDocumentChars {
			break
		}
		docs.WriteString(text)
		docs.WriteString("\n\n")
	}
	doc := docs.String()
	if len(doc) > maxDocumentChars {
		doc = doc[:maxDocumentChars]
	}

	var user strings.Builder
	fmt.Fprintf(&user, "Simulation requirement: %s\n", requirement)
	if context_ != "" {
		fmt.Fprintf(&user, "Additional context: %s\n", context_)
	}
	fmt.Fprintf(&user, "\nSource documents:\n%s", doc)

	resp, err := retry.Call(ctx, "ontology generation", s.RetryOpts,
		func(ctx context.Context) (*llm.Response, error) {
			return s.client.Generate(ctx, llm.GenerateInput{
				Messages: []llm.Message{
					{Role: llm.RoleSystem, Content: ontologySystemPrompt},
					{Role: llm.RoleUser, Content: user.String()},
				},
				Temperature: 0.3,
				JSONMode:    true,
			})
		})
	if err != nil {
		return nil, err
	}

	var o models.Ontology
	if err := llm.UnmarshalResponse(resp.Content, &o); err != nil {
		return nil, fmt.Errorf("parsing ontology response: %w", err)
	}
	return Normalize(&o), nil
}
