// warp-coder supervisor: polls the issue board, advances each issue
// through the lifecycle graph, and records every transition durably.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/warp-run/warp-coder/pkg/acts"
	"github.com/warp-run/warp-coder/pkg/adapters"
	"github.com/warp-run/warp-coder/pkg/api"
	"github.com/warp-run/warp-coder/pkg/codegen"
	"github.com/warp-run/warp-coder/pkg/config"
	"github.com/warp-run/warp-coder/pkg/hooks"
	"github.com/warp-run/warp-coder/pkg/lifecycle"
	"github.com/warp-run/warp-coder/pkg/memory"
	"github.com/warp-run/warp-coder/pkg/notify"
	"github.com/warp-run/warp-coder/pkg/runner"
	"github.com/warp-run/warp-coder/pkg/warpmetrics"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "."),
		"Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", envPath, "error", err)
	}

	ctx := context.Background()

	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}

	graph, err := loadGraph(cfg)
	if err != nil {
		slog.Error("Failed to compile lifecycle graph", "error", err)
		os.Exit(1)
	}

	caps, reflector, err := buildCapabilities(cfg)
	if err != nil {
		slog.Error("Failed to wire capabilities", "error", err)
		os.Exit(1)
	}
	defer reflector.Stop()

	reconciler := runner.NewReconciler(caps, graph)
	dispatcher, err := runner.NewDispatcher(caps, graph, acts.Registry())
	if err != nil {
		slog.Error("Failed to build dispatcher", "error", err)
		os.Exit(1)
	}
	supervisor := runner.NewSupervisor(cfg, reconciler, dispatcher)

	var apiServer *api.Server
	if cfg.HTTPPort != "" {
		apiServer = api.NewServer(supervisor, cfg.HTTPPort)
		go func() {
			if err := apiServer.Start(); err != nil {
				slog.Error("API server failed", "error", err)
			}
		}()
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		supervisor.Run(runCtx)
		close(done)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("Shutdown signal received", "signal", sig)

	// Stop dispatching, let in-flight acts record their outcomes, then
	// cancel so the next suspension point unwinds.
	supervisor.Stop()
	<-done
	cancel()

	if apiServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 10*time.Second)
		defer shutdownCancel()
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("API server shutdown failed", "error", err)
		}
	}

	slog.Info("Shutdown complete")
}

// loadGraph compiles the user's lifecycle document, or the built-in one.
func loadGraph(cfg *config.Config) (*lifecycle.Graph, error) {
	if cfg.GraphFile == "" {
		return lifecycle.DefaultGraph(), nil
	}
	doc, err := os.ReadFile(cfg.GraphFile)
	if err != nil {
		return nil, err
	}
	return lifecycle.Compile(doc, lifecycle.DefaultRootAct)
}

// buildCapabilities wires the injected collaborators from configuration.
func buildCapabilities(cfg *config.Config) (*runner.Capabilities, *memory.Reflector, error) {
	board, err := adapters.NewBoard(cfg)
	if err != nil {
		return nil, nil, err
	}
	issues, err := adapters.NewIssueClient(cfg)
	if err != nil {
		return nil, nil, err
	}
	prs, err := adapters.NewPRClient(cfg)
	if err != nil {
		return nil, nil, err
	}

	var durable warpmetrics.Client
	if cfg.WarpmetricsAPIKey != "" {
		durable = warpmetrics.NewHTTPClient(warpmetrics.HTTPClientConfig{
			BaseURL: cfg.WarpmetricsBaseURL,
			APIKey:  cfg.WarpmetricsAPIKey,
		})
	} else {
		slog.Warn("No warpmetrics API key configured, run state is in-memory only")
		durable = warpmetrics.NewMemClient()
	}

	var reflector *memory.Reflector
	if cfg.Memory.Enabled {
		store := memory.NewFileStore(filepath.Join(os.TempDir(), "warp-coder", "MEMORY.md"))
		reflector = memory.NewReflector(store, cfg.Memory.MaxLines)
	}

	codegenRunner := codegen.Runner(codegen.NewStreamRunner(&adapters.CLIStarter{
		Command: os.Getenv("WARP_CODER_CODEGEN_CMD"),
	}))
	if os.Getenv("WARP_CODER_CODEGEN_CMD") == "" {
		slog.Warn("No code-generation command configured, using stub runner")
		codegenRunner = &codegen.StubRunner{}
	}

	caps := &runner.Capabilities{
		Board:    board,
		Issues:   issues,
		PRs:      prs,
		Codegen:  codegenRunner,
		Notifier: notify.NewService(adapters.NewIssueSender(issues)),
		Durable:  durable,
		Memory:   reflector,
		Hooks:    hooks.NewRunner(cfg.Hooks, adapters.NewShellRunner()),
		Deploy:   adapters.NewDeployRunner(),
		Config:   cfg,
	}
	return caps, reflector, nil
}
