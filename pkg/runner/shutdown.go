package runner

import (
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/agora-sim/agora/pkg/memory"
)

// ShutdownCoordinator runs the global teardown exactly once: every tracked
// child gets a bounded graceful-then-forceful termination, updaters are
// drained, and persisted states end up stopped.
type ShutdownCoordinator struct {
	runner *Runner
	memory *memory.Manager

	registerOnce sync.Once
	shutdownOnce sync.Once
	done         chan struct{}
}

// NewShutdownCoordinator wires the coordinator. memoryManager may be nil.
func NewShutdownCoordinator(r *Runner, memoryManager *memory.Manager) *ShutdownCoordinator {
	return &ShutdownCoordinator{runner: r, memory: memoryManager, done: make(chan struct{})}
}

// Register installs the SIGINT/SIGTERM handler. Under a development
// reloader only the child that owns the processes must call this; pass
// skip=true in the parent.
func (c *ShutdownCoordinator) Register(skip bool) {
	if skip {
		slog.Info("Shutdown hook registration skipped in reloader parent")
		return
	}
	c.registerOnce.Do(func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			sig := <-ch
			slog.Info("Shutdown signal received", "signal", sig.String())
			c.Shutdown()
		}()
	})
}

// Wait blocks until Shutdown has completed.
func (c *ShutdownCoordinator) Wait() {
	<-c.done
}

// Shutdown is the idempotent teardown path. It never deadlocks when there
// is nothing to clean.
func (c *ShutdownCoordinator) Shutdown() {
	c.shutdownOnce.Do(func() {
		defer close(c.done)
		if c.runner != nil {
			c.runner.StopAll()
		}
		if c.memory != nil {
			c.memory.StopAll()
		}
		slog.Info("Shutdown complete")
	})
	<-c.done
}
