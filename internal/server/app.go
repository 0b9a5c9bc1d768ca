// Package server wires the store, registry, auth gate and broker together
// and runs the HTTP/WebSocket listener plus the optional gRPC health
// endpoint until the process is told to stop.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/chinbo/chinbo-server/internal/common"
	"github.com/chinbo/chinbo-server/internal/logging"
	"github.com/chinbo/chinbo-server/internal/server/auth"
	"github.com/chinbo/chinbo-server/internal/server/broker"
	"github.com/chinbo/chinbo-server/internal/server/config"
	"github.com/chinbo/chinbo-server/internal/server/httpapi"
	"github.com/chinbo/chinbo-server/internal/server/models"
	"github.com/chinbo/chinbo-server/internal/server/registry"
	"github.com/chinbo/chinbo-server/internal/server/store"

	gs "github.com/chinbo/chinbo-server/internal/server/grpc"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	store    *store.Store
	registry *registry.Registry
	hub      *broker.Hub
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	driver, err := store.OpenDriver(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("store init error: %w", err)
	}

	st := store.New(driver, models.TokenPair{MasterToken: c.MasterToken, OpToken: c.OpToken}, logger)
	doc, err := st.Load(ctx)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("store load error: %w", err)
	}

	secret := c.SecretKey
	if secret == "" {
		secret, err = common.MakeRandHexString(32)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("secret init error: %w", err)
		}
		logger.Warn(ctx, "no secret key configured, master sessions will not survive a restart")
	}

	reg := registry.New(doc, st, logger)
	gate := auth.NewGate(reg, secret, c.SessionTokenValidityDuration)
	hub := broker.NewHub(reg, gate, broker.Options{
		PingInterval: c.PingInterval,
		PongWait:     c.PongWait,
	}, logger)

	return &App{config: c, logger: logger, store: st, registry: reg, hub: hub}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	router := httpapi.NewRouter(app.hub, app.registry, app.config.StaticDir)
	s := httpapi.NewServer(app.config.ListenAddr, router, app.logger)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewHealthServer(app.config.HealthAddrGRPC, app.logger, app.hub)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run blocks until ctx is cancelled, a signal arrives or a listener fails.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "store", app.config.StoreDriver)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.hub.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	if app.config.HealthAddrGRPC != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startGRPCServer(ctx, cancelFunc)
		}()
	}

	wg.Wait()

	if err := app.store.Close(); err != nil {
		app.logger.Error(ctx, "store close failed", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
