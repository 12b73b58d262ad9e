// Package app wires the mudra stream server together.
package app

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	evbus "github.com/asaskevich/EventBus"
	"golang.org/x/sync/errgroup"

	"github.com/ayusman/mudra/internal/apperr"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/feature"
	"github.com/ayusman/mudra/internal/frame"
	"github.com/ayusman/mudra/internal/inference"
	"github.com/ayusman/mudra/internal/logging"
	"github.com/ayusman/mudra/internal/server"
	"github.com/ayusman/mudra/internal/session"
	"github.com/ayusman/mudra/internal/store"
)

// ShutdownTimeout bounds graceful HTTP shutdown.
const ShutdownTimeout = 10 * time.Second

// App is the assembled server.
type App struct {
	config   *config.Config
	models   *Models
	bus      evbus.Bus
	manager  *session.Manager
	store    *store.Store
	recorder *store.Recorder
	server   *server.Server
	logger   *slog.Logger
}

// New assembles the application around already loaded models. The store
// is opened when cfg.Store.Path is set.
func New(cfg *config.Config, models *Models, logger *slog.Logger) (*App, error) {
	logger = logging.OrDiscard(logger)

	a := &App{
		config: cfg,
		models: models,
		bus:    evbus.New(),
		logger: logger,
	}

	if cfg.Store.Path != "" {
		st, err := store.New(cfg.Store.Path)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindStorage, "app.New", "open session store", err)
		}
		a.store = st
		a.recorder = store.NewRecorder(st.Sessions(), a.bus, logger)
		if err := a.recorder.Start(); err != nil {
			st.Close()
			return nil, err
		}
	}

	a.manager = session.NewManager(session.Deps{
		Decoder: frame.NewDecoder(frame.Options{
			MaxPayloadBytes: cfg.Pipeline.MaxPayloadBytes,
			MaxPixels:       cfg.Pipeline.MaxPixels,
		}),
		Extractor:  feature.NewExtractor(models.Detector, logger),
		Gateway:    inference.NewGateway(models.Oracle, models.Labels, cfg.Pipeline.InferenceTimeout),
		WindowSize: cfg.Pipeline.SmoothingWindow,
	}, a.bus, logger)

	a.server = server.New(server.Config{
		StaticDir:      cfg.Server.StaticDir,
		WSPath:         cfg.Server.WSPath,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxMessageSize: cfg.Server.MaxMessageSize,
		Manager:        a.manager,
		Store:          a.store,
		Logger:         logger,
	})

	return a, nil
}

// Manager returns the session manager.
func (a *App) Manager() *session.Manager {
	return a.manager
}

// Handler returns the HTTP handler.
func (a *App) Handler() http.Handler {
	return a.server
}

// Run listens on the configured address and serves until ctx is done.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.config.Server.Addr)
	if err != nil {
		return apperr.Wrap(apperr.KindStartup, "app.Run", "listen on "+a.config.Server.Addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then closes every session and
// shuts the HTTP server down. The App is closed when Serve returns.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	defer a.Close()

	srv := a.server.HTTPServer(ln.Addr().String())
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("server listening", "addr", ln.Addr().String(), "ws_path", a.config.Server.WSPath)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return apperr.Wrap(apperr.KindTransport, "app.Serve", "http server", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down", "sessions", a.manager.Count())

		// Hijacked websocket connections are not tracked by Shutdown.
		a.manager.CloseAll()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Close releases the store and the models.
func (a *App) Close() error {
	a.manager.CloseAll()

	var errs []error
	if a.recorder != nil {
		a.recorder.Stop()
		a.recorder = nil
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
		a.store = nil
	}
	if a.models != nil {
		errs = append(errs, a.models.Close())
		a.models = nil
	}
	return errors.Join(errs...)
}
