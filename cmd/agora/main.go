// Agora orchestrator: prepares social-opinion simulations, supervises the
// external simulation process, and generates analysis reports.
package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/agora-sim/agora/pkg/config"
	"github.com/agora-sim/agora/pkg/graph"
	"github.com/agora-sim/agora/pkg/llm"
	"github.com/agora-sim/agora/pkg/logging"
	"github.com/agora-sim/agora/pkg/memory"
	"github.com/agora-sim/agora/pkg/ontology"
	"github.com/agora-sim/agora/pkg/orchestrator"
	"github.com/agora-sim/agora/pkg/project"
	"github.com/agora-sim/agora/pkg/report"
	"github.com/agora-sim/agora/pkg/runner"
	"github.com/agora-sim/agora/pkg/simulation"
	"github.com/agora-sim/agora/pkg/store"
	"github.com/agora-sim/agora/pkg/tasks"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./config"),
		"Path to configuration directory")
	flag.Parse()

	// 1. Configuration
	cfg, err := config.Initialize(*configDir)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}

	// 2. Logging: text on stderr, JSON in the daily log file
	logCloser, err := logging.Setup(cfg.LogDir)
	if err != nil {
		slog.Error("Failed to set up logging", "error", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	slog.Info("Starting agora orchestrator",
		"config_dir", *configDir,
		"upload_root", cfg.UploadRoot,
		"llm_model", cfg.LLM.Model)

	// 3. Upload root and stores
	fs, err := store.New(cfg.UploadRoot)
	if err != nil {
		slog.Error("Failed to initialize upload root", "error", err)
		os.Exit(1)
	}
	simStore := simulation.NewStore(fs)

	// 4. External service clients
	llmClient := llm.NewOpenAIClient(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model)
	graphClient := graph.NewHTTPClient(cfg.Graph.BaseURL, cfg.Graph.APIKey)

	// 5. Managers and the simulation runner
	simManager := simulation.NewManager(simStore, llmClient, graphClient)
	memoryManager := memory.NewManager(llmClient, graphClient)
	simRunner := runner.New(runner.Options{
		ScriptPath:      cfg.Runner.ScriptPath,
		MonitorInterval: cfg.Runner.MonitorInterval,
		StopGracePeriod: cfg.Runner.StopGracePeriod,
	}, simManager, memoryManager)

	// 6. Job orchestration consumed by the API layer
	jobs := &orchestrator.Orchestrator{
		Projects:   project.NewStore(fs),
		Reports:    report.NewStore(fs),
		SimManager: simManager,
		Registry:   tasks.NewRegistry(),
		Ontology:   ontology.NewLLMService(llmClient),
		LLM:        llmClient,
		Graph:      graphClient,
		BuildOpts: graph.BuildOptions{
			ChunkSize:      cfg.Build.ChunkSize,
			ChunkOverlap:   cfg.Build.ChunkOverlap,
			BatchSize:      cfg.Build.BatchSize,
			ProcessTimeout: cfg.Build.ProcessTimeout,
		},
	}
	_ = jobs // handed to the HTTP layer once it is wired in

	// 7. Shutdown hook, then recover runs orphaned by a previous process
	coordinator := runner.NewShutdownCoordinator(simRunner, memoryManager)
	coordinator.Register(cfg.ReloaderChild)
	simRunner.RecoverOrphans()

	slog.Info("Orchestrator ready")
	coordinator.Wait()
}
