// Package profile synthesizes agent personas from graph entities and writes
// them in the per-platform formats the external simulation consumes.
package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/agora-sim/agora/pkg/graph"
	"github.com/agora-sim/agora/pkg/llm"
	"github.com/agora-sim/agora/pkg/models"
)

// searchTimeout bounds each graph search during context enrichment.
const searchTimeout = 30 * time.Second

// synthesisTemperatures are tried in order; each retry lowers the
// temperature to coax the model toward stricter JSON.
var synthesisTemperatures = []float64{0.7, 0.5, 0.3}

// institutionLabels mark entity types treated as group/institution personas.
var institutionLabels = map[string]bool{
	"Organization":     true,
	"Company":          true,
	"Government":       true,
	"GovernmentAgency": true,
	"Institution":      true,
	"School":           true,
	"University":       true,
	"Media":            true,
	"MediaOutlet":      true,
}

// Synthesizer turns one graph entity into an AgentProfile.
type Synthesizer struct {
	llm     llm.Client
	graph   graph.Client
	graphID string
}

// NewSynthesizer creates a synthesizer that enriches entities from graphID.
func NewSynthesizer(llmClient llm.Client, graphClient graph.Client, graphID string) *Synthesizer {
	return &Synthesizer{llm: llmClient, graph: graphClient, graphID: graphID}
}

// IsInstitution reports whether the entity should get a group persona.
func IsInstitution(entityType string) bool {
	return institutionLabels[entityType]
}

// Synthesize produces a profile for one entity. LLM failures after all
// temperature retries fall back to rule-based defaults, so the returned
// profile is always usable.
func (s *Synthesizer) Synthesize(ctx context.Context, entity graph.Entity) models.AgentProfile {
	facts := s.enrichContext(ctx, entity)

	p, err := s.synthesizeLLM(ctx, entity, facts)
	if err != nil {
		slog.Warn("Profile synthesis fell back to rule-based defaults",
			"entity", entity.Name, "error", err)
		p = FallbackProfile(entity)
	}
	normalize(&p, entity)
	return p
}

// enrichContext searches the graph for facts and related-node summaries by
// entity name. Edges and nodes are searched concurrently; facts already in
// the entity's enriched context are deduplicated away.
func (s *Synthesizer) enrichContext(ctx context.Context, entity graph.Entity) []string {
	if s.graph == nil || s.graphID == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	var edges []graph.Edge
	var nodes []graph.Node
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		edges, err = s.graph.SearchEdges(gctx, s.graphID, entity.Name, 10)
		return err
	})
	g.Go(func() error {
		var err error
		nodes, err = s.graph.SearchNodes(gctx, s.graphID, entity.Name, 5)
		return err
	})
	if err := g.Wait(); err != nil {
		slog.Warn("Context enrichment search failed, continuing without it",
			"entity", entity.Name, "error", err)
		return nil
	}

	known := map[string]bool{}
	for _, ec := range entity.Outgoing {
		known[ec.Fact] = true
	}
	for _, ec := range entity.Incoming {
		known[ec.Fact] = true
	}

	var facts []string
	for _, e := range edges {
		if e.Fact != "" && !known[e.Fact] {
			known[e.Fact] = true
			facts = append(facts, e.Fact)
		}
	}
	for _, n := range nodes {
		if n.Summary != "" && n.UUID != entity.UUID {
			facts = append(facts, fmt.Sprintf("%s: %s", n.Name, n.Summary))
		}
	}
	return facts
}

// llmProfile is the JSON shape requested from the model. Age is accepted as
// either a number or a numeric string.
type llmProfile struct {
	Name       string          `json:"name"`
	UserName   string          `json:"username"`
	Bio        string          `json:"bio"`
	Persona    string          `json:"persona"`
	Age        json.RawMessage `json:"age"`
	Gender     string          `json:"gender"`
	MBTI       string          `json:"mbti"`
	Country    string          `json:"country"`
	Profession string          `json:"profession"`
	Topics     []string        `json:"interested_topics"`
}

func (s *Synthesizer) synthesizeLLM(ctx context.Context, entity graph.Entity, facts []string) (models.AgentProfile, error) {
	if s.llm == nil {
		return models.AgentProfile{}, fmt.Errorf("no LLM client configured")
	}

	system := individualPrompt
	if IsInstitution(entity.EntityType) {
		system = institutionPrompt
	}
	user := buildEntityContext(entity, facts)

	var lastErr error
	for _, temp := range synthesisTemperatures {
		resp, err := s.llm.Generate(ctx, llm.GenerateInput{
			Messages: []llm.Message{
				{Role: llm.RoleSystem, Content: system},
				{Role: llm.RoleUser, Content: user},
			},
			Temperature: temp,
			JSONMode:    true,
		})
		if err != nil {
			lastErr = err
			continue
		}

		var lp llmProfile
		if err := llm.UnmarshalResponse(resp.Content, &lp); err != nil {
			lastErr = err
			continue
		}
		return models.AgentProfile{
			Name:       lp.Name,
			UserName:   lp.UserName,
			Bio:        lp.Bio,
			Persona:    lp.Persona,
			Age:        parseAge(lp.Age),
			Gender:     lp.Gender,
			MBTI:       lp.MBTI,
			Country:    lp.Country,
			Profession: lp.Profession,
			Topics:     lp.Topics,
			EntityUUID: entity.UUID,
			EntityType: entity.EntityType,
		}, nil
	}
	return models.AgentProfile{}, lastErr
}

// FallbackProfile builds a rule-based profile keyed on the entity class.
func FallbackProfile(entity graph.Entity) models.AgentProfile {
	name := entity.Name
	p := models.AgentProfile{
		Name:       name,
		UserName:   usernameFrom(name),
		Bio:        truncate(entity.Summary, 200),
		Persona:    entity.Summary,
		EntityUUID: entity.UUID,
		EntityType: entity.EntityType,
	}
	if IsInstitution(entity.EntityType) {
		p.Age = 30
		p.Gender = "other"
		p.MBTI = "ENTJ"
		p.Profession = "organization"
		if p.Persona == "" {
			p.Persona = fmt.Sprintf("%s is an organization active in public discourse.", name)
		}
	} else {
		p.Age = 28
		p.Gender = "other"
		p.MBTI = "INFP"
		p.Profession = "citizen"
		if p.Persona == "" {
			p.Persona = fmt.Sprintf("%s is an ordinary member of the public following current events.", name)
		}
	}
	p.Country = "China"
	return p
}

// genderSynonyms maps model output variants, including Chinese forms, onto
// the canonical set {male, female, other}.
var genderSynonyms = map[string]string{
	"male": "male", "m": "male", "man": "male", "男": "male", "男性": "male",
	"female": "female", "f": "female", "woman": "female", "女": "female", "女性": "female",
	"other": "other", "nonbinary": "other", "non-binary": "other",
	"其他": "other", "未知": "other", "unknown": "other", "none": "other",
}

// normalize enforces the required-field invariants on a synthesized profile.
func normalize(p *models.AgentProfile, entity graph.Entity) {
	if p.Name == "" {
		p.Name = entity.Name
	}
	if p.UserName == "" {
		p.UserName = usernameFrom(p.Name)
	}

	g, ok := genderSynonyms[strings.ToLower(strings.TrimSpace(p.Gender))]
	if !ok {
		g = "other"
	}
	p.Gender = g

	if p.Age <= 0 || p.Age > 120 {
		if IsInstitution(entity.EntityType) {
			p.Age = 30
		} else {
			p.Age = 28
		}
	}
	if p.MBTI == "" {
		p.MBTI = "INFP"
	}
	p.MBTI = strings.ToUpper(p.MBTI)
	if p.Country == "" {
		p.Country = "China"
	}
	if IsInstitution(entity.EntityType) {
		p.Age = 30
		p.Gender = "other"
	}
	p.Bio = truncate(p.Bio, 200)
	p.EntityUUID = entity.UUID
	p.EntityType = entity.EntityType
}

func parseAge(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f)
	}
	return 0
}

func usernameFrom(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-':
			b.WriteByte('_')
		default:
			// Non-ASCII names keep the rune so CJK handles stay readable.
			if r > 127 {
				b.WriteRune(r)
			}
		}
	}
	if b.Len() == 0 {
		return "agent"
	}
	return b.String()
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func buildEntityContext(entity graph.Entity, facts []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Entity name: %s\nEntity type: %s\n", entity.Name, entity.EntityType)
	if entity.Summary != "" {
		fmt.Fprintf(&b, "Summary: %s\n", entity.Summary)
	}
	if len(entity.Outgoing)+len(entity.Incoming) > 0 {
		b.WriteString("Known relationships:\n")
		for _, ec := range entity.Outgoing {
			fmt.Fprintf(&b, "- %s -> %s: %s\n", ec.Type, ec.Neighbor.Name, ec.Fact)
		}
		for _, ec := range entity.Incoming {
			fmt.Fprintf(&b, "- %s <- %s: %s\n", ec.Type, ec.Neighbor.Name, ec.Fact)
		}
	}
	if len(facts) > 0 {
		b.WriteString("Additional context:\n")
		for _, f := range facts {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}
	return b.String()
}

const individualPrompt = `You create a realistic social-media persona for a person extracted from a knowledge graph.
Respond with a single JSON object containing exactly these keys:
name, username, bio (max 200 characters), persona (a detailed first-person character description),
age (integer), gender (male/female/other), mbti, country, profession, interested_topics (array of strings).
Ground the persona in the provided context; invent plausible details only where the context is silent.`

const institutionPrompt = `You create a social-media account persona for an organization or institution extracted from a knowledge graph.
Respond with a single JSON object containing exactly these keys:
name, username, bio (max 200 characters), persona (a description of the account's voice and posting behavior),
age (integer), gender (always "other"), mbti, country, profession, interested_topics (array of strings).
The account speaks with an official, collective voice. Ground it in the provided context.`
