// -----------------------------------------------------------------------
// App - constructs and wires all application components
// -----------------------------------------------------------------------

package app

import (
	"context"
	"fmt"
	"os"

	"github.com/ternarybob/arbor"

	"github.com/audiforge/audiforge/internal/common"
	"github.com/audiforge/audiforge/internal/handlers"
	"github.com/audiforge/audiforge/internal/interfaces"
	"github.com/audiforge/audiforge/internal/models"
	"github.com/audiforge/audiforge/internal/pipeline"
	"github.com/audiforge/audiforge/internal/services/maintenance"
	badgerstorage "github.com/audiforge/audiforge/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	ctx            context.Context
	cancelCtx      context.CancelFunc
	StorageManager interfaces.StorageManager

	// Pipeline core
	Orchestrator *pipeline.Orchestrator
	Sweeper      *maintenance.Sweeper

	// HTTP handlers
	APIHandler    *handlers.APIHandler
	BookHandler   *handlers.BookHandler
	StatusHandler *handlers.StatusHandler
	StreamHandler *handlers.StreamHandler
	WSHandler     *handlers.WebSocketHandler
}

// New creates and wires the application
func New(config *common.Config, logger arbor.ILogger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		Config:    config,
		Logger:    logger,
		ctx:       ctx,
		cancelCtx: cancel,
	}

	if err := a.initStorage(); err != nil {
		cancel()
		return nil, err
	}
	a.initPipeline()
	a.initHandlers()

	if err := a.Sweeper.Start(); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to start upload sweeper: %w", err)
	}

	logger.Info().Msg("Application initialized")
	return a, nil
}

func (a *App) initStorage() error {
	manager, err := badgerstorage.NewManager(a.Logger, &a.Config.Storage.Badger)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	a.StorageManager = manager
	return nil
}

func (a *App) initPipeline() {
	if err := os.MkdirAll(a.Config.Pipeline.OutputRoot, 0755); err != nil {
		a.Logger.Warn().Err(err).Str("dir", a.Config.Pipeline.OutputRoot).Msg("Failed to create output root")
	}
	if err := os.MkdirAll(a.Config.Pipeline.UploadDir, 0755); err != nil {
		a.Logger.Warn().Err(err).Str("dir", a.Config.Pipeline.UploadDir).Msg("Failed to create upload directory")
	}

	a.Orchestrator = pipeline.NewOrchestrator(
		a.Config,
		pipeline.NewStageExecutor(a.Logger),
		pipeline.NewReconciler(a.Config.Pipeline.OutputRoot, a.Config.Pipeline.MarkerArtifact, a.Logger),
		pipeline.NewStatusStore(),
		pipeline.NewBroadcaster(a.Config.Pipeline.GraceDelayDuration(), a.Logger),
		a.StorageManager,
		a.Logger,
	)

	a.Sweeper = maintenance.NewSweeper(&a.Config.Maintenance, a.Config.Pipeline.UploadDir, a.Logger)
}

func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler()
	a.BookHandler = handlers.NewBookHandler(a.StorageManager, a.Orchestrator, a.Config, a.Logger)
	a.StatusHandler = handlers.NewStatusHandler(a.Orchestrator.Status(), a.Logger)
	a.StreamHandler = handlers.NewStreamHandler(a.Orchestrator.Status(), a.Orchestrator.Broadcaster(), a.Logger)
	a.WSHandler = handlers.NewWebSocketHandler(&a.Config.WebSocket, a.Logger)

	// The hub observes every job's transitions and throttled stage output
	a.Orchestrator.Broadcaster().SetTap(func(record models.StatusRecord) {
		a.WSHandler.BroadcastStatusRecord(record)
	})
	a.Orchestrator.SetProgressFunc(func(bookID, line string) {
		a.WSHandler.BroadcastStageOutput(bookID, line)
	})
}

// Close releases application resources
func (a *App) Close() error {
	a.cancelCtx()

	if a.Sweeper != nil {
		a.Sweeper.Stop()
	}
	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close storage")
			return err
		}
	}

	a.Logger.Info().Msg("Application closed")
	return nil
}
