// Package memory streams agent actions from running simulations into the
// knowledge graph: actions are batched per platform, rendered to episode
// text, run through LLM entity extraction, and upserted as nodes and edges.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/agora-sim/agora/pkg/graph"
	"github.com/agora-sim/agora/pkg/llm"
	"github.com/agora-sim/agora/pkg/models"
)

const (
	// batchSize is how many activities of one platform trigger a send.
	batchSize = 5
	// sendInterval spaces out batch sends to avoid backend bursts.
	defaultSendInterval = 500 * time.Millisecond
	// stopJoinTimeout bounds the worker join during shutdown.
	stopJoinTimeout = 10 * time.Second
	// maxSendAttempts with linear backoff per failed batch.
	maxSendAttempts = 3

	// actionDoNothing marks idle ticks; they are dropped at enqueue time.
	actionDoNothing = "do_nothing"
)

// AgentActivity is one queued action on its way into the graph.
type AgentActivity struct {
	Platform   models.Platform
	AgentID    int
	AgentName  string
	ActionType string
	Args       map[string]any
	Round      int
	Timestamp  string
}

// Stats are the pipeline counters of one updater.
type Stats struct {
	ItemsSent    int `json:"items_sent"`
	ItemsFailed  int `json:"items_failed"`
	ItemsSkipped int `json:"items_skipped"`
}

// Updater is the per-simulation pipeline: single producer (the monitor
// loop), single consumer (the background worker started by newUpdater).
type Updater struct {
	simID   string
	graphID string
	llm     llm.Client
	graph   graph.Client

	sendInterval time.Duration
	backoffBase  time.Duration

	mu     sync.Mutex
	queue  []AgentActivity
	stats  Stats
	wake   chan struct{}
	stop   chan struct{}
	done   chan struct{}
	closed bool
}

func newUpdater(simID, graphID string, llmClient llm.Client, graphClient graph.Client) *Updater {
	u := &Updater{
		simID:        simID,
		graphID:      graphID,
		llm:          llmClient,
		graph:        graphClient,
		sendInterval: defaultSendInterval,
		backoffBase:  time.Second,
		wake:         make(chan struct{}, 1),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
	go u.run()
	return u
}

// Enqueue adds one activity to the pipeline. do_nothing actions are dropped
// here and counted as skipped.
func (u *Updater) Enqueue(a AgentActivity) {
	u.mu.Lock()
	if u.closed {
		u.mu.Unlock()
		return
	}
	if strings.EqualFold(a.ActionType, actionDoNothing) {
		u.stats.ItemsSkipped++
		u.mu.Unlock()
		return
	}
	u.queue = append(u.queue, a)
	u.mu.Unlock()

	select {
	case u.wake <- struct{}{}:
	default:
	}
}

// Stats returns a snapshot of the pipeline counters.
func (u *Updater) Stats() Stats {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.stats
}

// Stop drains the queue, flushes every platform's remaining buffer, and
// joins the worker with a bounded wait. Safe to call more than once.
func (u *Updater) Stop() {
	u.mu.Lock()
	if u.closed {
		u.mu.Unlock()
		<-u.done
		return
	}
	u.closed = true
	u.mu.Unlock()

	close(u.stop)
	select {
	case <-u.done:
	case <-time.After(stopJoinTimeout):
		slog.Warn("Graph memory worker did not stop in time", "simulation_id", u.simID)
	}
}

func (u *Updater) run() {
	defer close(u.done)
	buffers := map[models.Platform][]AgentActivity{}

	for {
		select {
		case <-u.stop:
			u.drain(buffers)
			u.flushAll(buffers)
			return
		case <-u.wake:
		}

		for {
			u.mu.Lock()
			pending := u.queue
			u.queue = nil
			u.mu.Unlock()
			if len(pending) == 0 {
				break
			}
			for _, a := range pending {
				buffers[a.Platform] = append(buffers[a.Platform], a)
				if len(buffers[a.Platform]) >= batchSize {
					u.sendBatch(buffers[a.Platform])
					buffers[a.Platform] = nil

					select {
					case <-u.stop:
						u.drain(buffers)
						u.flushAll(buffers)
						return
					case <-time.After(u.sendInterval):
					}
				}
			}
		}
	}
}

// drain moves any still-queued activities into the platform buffers.
func (u *Updater) drain(buffers map[models.Platform][]AgentActivity) {
	u.mu.Lock()
	pending := u.queue
	u.queue = nil
	u.mu.Unlock()
	for _, a := range pending {
		buffers[a.Platform] = append(buffers[a.Platform], a)
	}
}

// flushAll sends every non-empty buffer regardless of size.
func (u *Updater) flushAll(buffers map[models.Platform][]AgentActivity) {
	for platform, buf := range buffers {
		if len(buf) > 0 {
			u.sendBatch(buf)
			buffers[platform] = nil
		}
	}
}

// sendBatch pushes one batch into the graph with linear backoff. A batch
// that still fails after all attempts is counted and dropped; the pipeline
// never halts on a bad batch.
func (u *Updater) sendBatch(batch []AgentActivity) {
	var lastErr error
	for attempt := 1; attempt <= maxSendAttempts; attempt++ {
		if err := u.send(batch); err != nil {
			lastErr = err
			time.Sleep(time.Duration(attempt) * u.backoffBase)
			continue
		}
		u.mu.Lock()
		u.stats.ItemsSent += len(batch)
		u.mu.Unlock()
		return
	}
	u.mu.Lock()
	u.stats.ItemsFailed += len(batch)
	u.mu.Unlock()
	slog.Warn("Dropping graph memory batch after repeated failures",
		"simulation_id", u.simID, "batch_size", len(batch), "error", lastErr)
}

// extraction is the JSON shape requested from the entity extractor.
type extraction struct {
	Entities []struct {
		Name    string   `json:"name"`
		Labels  []string `json:"labels"`
		Summary string   `json:"summary"`
	} `json:"entities"`
	Relationships []struct {
		Source string `json:"source"`
		Target string `json:"target"`
		Type   string `json:"type"`
		Fact   string `json:"fact"`
	} `json:"relationships"`
}

func (u *Updater) send(batch []AgentActivity) error {
	lines := make([]string, len(batch))
	for i, a := range batch {
		lines[i] = RenderActivity(a)
	}
	episode := strings.Join(lines, "\n")

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	resp, err := u.llm.Generate(ctx, llm.GenerateInput{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: extractionPrompt},
			{Role: llm.RoleUser, Content: episode},
		},
		Temperature: 0.1,
		JSONMode:    true,
	})
	if err != nil {
		return fmt.Errorf("extracting entities: %w", err)
	}
	var ex extraction
	if err := llm.UnmarshalResponse(resp.Content, &ex); err != nil {
		return fmt.Errorf("decoding extraction: %w", err)
	}

	// Existing entities are matched by (graph, name); new ones get the
	// GraphNode marker label plus whatever the extractor assigned.
	uuids := map[string]string{}
	for _, e := range ex.Entities {
		uuid, err := u.graph.UpsertNode(ctx, u.graphID, graph.NodeUpsert{
			Name:    e.Name,
			Labels:  append([]string{"GraphNode"}, e.Labels...),
			Summary: e.Summary,
		})
		if err != nil {
			return fmt.Errorf("upserting entity %q: %w", e.Name, err)
		}
		uuids[e.Name] = uuid
	}
	for _, r := range ex.Relationships {
		src, okS := uuids[r.Source]
		dst, okT := uuids[r.Target]
		if !okS || !okT {
			continue
		}
		if err := u.graph.CreateEdge(ctx, u.graphID, graph.EdgeUpsert{
			SourceUUID: src,
			TargetUUID: dst,
			Name:       r.Type,
			Fact:       r.Fact,
		}); err != nil {
			return fmt.Errorf("creating relationship %s-%s: %w", r.Source, r.Target, err)
		}
	}
	return nil
}

const extractionPrompt = `You extract entities and relationships from a log of social-media agent actions.
Respond with a single JSON object:
{"entities": [{"name": str, "labels": [str], "summary": str}],
 "relationships": [{"source": str, "target": str, "type": str, "fact": str}]}
source and target must be names from the entities list.`
