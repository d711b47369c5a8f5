package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/crucidev/crucible/internal/checkpoint"
	"github.com/crucidev/crucible/internal/config"
	"github.com/crucidev/crucible/internal/constants"
	"github.com/crucidev/crucible/internal/delivery"
	"github.com/crucidev/crucible/internal/gen"
	"github.com/crucidev/crucible/internal/humanio"
	"github.com/crucidev/crucible/internal/pipeline"
	"github.com/crucidev/crucible/internal/snapshot"
	"github.com/crucidev/crucible/internal/stage"
	"github.com/crucidev/crucible/internal/tool"
)

// runtime bundles the wired production collaborators for the run commands.
type runtime struct {
	engine *pipeline.Engine
	store  checkpoint.Store
	config *config.Config

	// snapshotRoot is where working-tree snapshots live, for prune requests.
	snapshotRoot string
}

// newRuntime loads configuration and wires the engine with its production
// collaborators: file store, snapshot manager, generation gateway, tool
// executor, interactive prompts, and the delivery dispatcher.
func newRuntime(ctx context.Context, logger zerolog.Logger) (*runtime, error) {
	cfg, err := config.Load(logger.WithContext(ctx))
	if err != nil {
		return nil, err
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to determine home directory: %w", err)
	}
	crucibleHome := filepath.Join(home, constants.CrucibleHome)

	workDir := cfg.Pipeline.WorkDir
	if workDir == "" {
		workDir, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to determine working directory: %w", err)
		}
	}
	cfg.Pipeline.WorkDir = workDir

	store, err := checkpoint.NewFileStore(crucibleHome)
	if err != nil {
		return nil, err
	}

	snapshotRoot := filepath.Join(crucibleHome, constants.SnapshotsDir)
	snapshots := snapshot.NewManager(workDir, snapshotRoot, logger)

	gateway := gen.NewGateway(gen.NewExecClient(&cfg.Generation), &cfg.Generation, logger)
	executor := tool.NewExecutor(cfg.Tools.Timeout)

	registry := stage.NewRegistry()
	registry.Register(stage.NewArchitectureRunner(gateway))
	registry.Register(stage.NewImplementationRunner(gateway))
	registry.Register(stage.NewStandardsRunner(executor, cfg.Tools))
	registry.Register(stage.NewTestingRunner(executor, cfg.Tools))
	registry.Register(stage.NewDocumentationRunner(gateway))
	registry.Register(stage.NewSecurityRunner(gateway))
	registry.Register(stage.NewValidationRunner())

	deliveryCfg := cfg.Delivery
	if deliveryCfg.OutputDir == "" {
		deliveryCfg.OutputDir = filepath.Join(crucibleHome, constants.DeliveriesDir)
	}
	dispatcher := delivery.NewDispatcher(deliveryCfg, logger)

	prompter := humanio.NewPrompter(stdinIsTerminal)

	engine := pipeline.NewEngine(
		store,
		registry,
		snapshots,
		pipeline.NewExecPreparer(cfg.Generation.Command, workDir),
		pipeline.NewInteractiveCollector(prompter),
		&dispatcherAdapter{dispatcher: dispatcher},
		pipeline.EngineConfigFromConfig(cfg),
		logger,
	)

	return &runtime{
		engine:       engine,
		store:        store,
		config:       cfg,
		snapshotRoot: snapshotRoot,
	}, nil
}

// newSnapshotManager creates the snapshot manager for the runtime's tree.
func (r *runtime) newSnapshotManager(logger zerolog.Logger) *snapshot.Manager {
	return snapshot.NewManager(r.config.Pipeline.WorkDir, r.snapshotRoot, logger)
}

// stdinIsTerminal reports whether stdin is an interactive terminal.
func stdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// dispatcherAdapter exposes the delivery dispatcher through the engine's
// Deliverer interface.
type dispatcherAdapter struct {
	dispatcher *delivery.Dispatcher
}

func (a *dispatcherAdapter) Deliver(ctx context.Context, method constants.DeliveryMethod, workDir string) (string, error) {
	result, err := a.dispatcher.Deliver(ctx, method, workDir)
	if err != nil {
		return "", err
	}
	return result.Location, nil
}
