package profile

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/agora-sim/agora/pkg/graph"
	"github.com/agora-sim/agora/pkg/models"
)

// ProgressFunc receives (current, total, message) as profiles complete.
type ProgressFunc func(current, total int, message string)

// GenerateOptions tune one GenerateAll run.
type GenerateOptions struct {
	// UseLLM disables the model and goes straight to rule-based profiles
	// when false.
	UseLLM bool
	// Parallel is the worker pool size; values < 1 mean sequential.
	Parallel int
	// RealtimePath, when set, receives the full profile list so far after
	// every completion, in RealtimePlatform's format. Partial runs leave a
	// readable artifact behind.
	RealtimePath     string
	RealtimePlatform models.Platform
	Progress         ProgressFunc
}

// GenerateAll synthesizes one profile per entity using a bounded worker
// pool. UserID is the entity's index in the input slice; the output is
// ordered accordingly.
func (s *Synthesizer) GenerateAll(ctx context.Context, entities []graph.Entity, opts GenerateOptions) ([]models.AgentProfile, error) {
	if len(entities) == 0 {
		return nil, fmt.Errorf("no entities to synthesize profiles for")
	}
	parallel := opts.Parallel
	if parallel < 1 {
		parallel = 1
	}

	profiles := make([]models.AgentProfile, len(entities))
	done := make([]bool, len(entities))
	completed := 0
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i, entity := range entities {
		i, entity := i, entity
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			var p models.AgentProfile
			if opts.UseLLM {
				p = s.Synthesize(gctx, entity)
			} else {
				p = FallbackProfile(entity)
				normalize(&p, entity)
			}
			p.UserID = i

			slog.Info("Profile generated",
				"user_id", i,
				"name", p.Name,
				"entity_type", p.EntityType,
				"persona", p.Persona)

			mu.Lock()
			defer mu.Unlock()
			profiles[i] = p
			done[i] = true
			completed++
			if opts.Progress != nil {
				opts.Progress(completed, len(entities), fmt.Sprintf("Generated profile for %s", p.Name))
			}
			if opts.RealtimePath != "" {
				if err := writeRealtime(opts.RealtimePath, opts.RealtimePlatform, profiles, done); err != nil {
					slog.Warn("Realtime profile save failed", "path", opts.RealtimePath, "error", err)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return profiles, nil
}

// writeRealtime rewrites the artifact with every profile finished so far,
// preserving user_id order. Caller holds the mutex.
func writeRealtime(path string, platform models.Platform, profiles []models.AgentProfile, done []bool) error {
	snapshot := make([]models.AgentProfile, 0, len(profiles))
	for i := range profiles {
		if done[i] {
			snapshot = append(snapshot, profiles[i])
		}
	}
	if platform == models.PlatformTwitter {
		return WriteTwitterProfiles(path, snapshot)
	}
	return WriteRedditProfiles(path, snapshot)
}
