package cmd

import (
	"context"
	"fmt"

	"interestbatch/calcengine"
	"interestbatch/config"
	"interestbatch/database"
	"interestbatch/events"
	"interestbatch/metrics"
	"interestbatch/repository"
	"interestbatch/service"

	log "github.com/sirupsen/logrus"
)

// app bundles the wired components shared by the commands
type app struct {
	cfg      *config.Config
	db       *database.DB
	eventBus *events.Bus
	metrics  *metrics.Recorder
	engine   *service.Engine
}

func newApp(ctx context.Context) (*app, error) {
	cfg := config.Get()

	log.Info("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info("Database connection established successfully")

	eventBus := events.NewBus()
	recorder := metrics.NewRecorder()
	recorder.Subscribe(eventBus)
	events.NewAuditLogger(nil).Subscribe(eventBus)

	uowFactory := repository.NewUnitOfWorkFactory(db, eventBus)
	calculator := calcengine.NewClient(cfg.CalcEngineURL, cfg.CalcEngineTimeout)
	engine := service.NewEngine(uowFactory, calculator, recorder)

	return &app{
		cfg:      cfg,
		db:       db,
		eventBus: eventBus,
		metrics:  recorder,
		engine:   engine,
	}, nil
}

// close stops the engine and releases the database pool
func (a *app) close() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.engine.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("Engine shutdown did not complete cleanly")
	}

	log.Info("Closing database connection...")
	a.db.Close()
}
