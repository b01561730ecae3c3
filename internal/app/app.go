// Package app wires the config loader, forwarder, pipeline, HTTP
// handlers, and server into one process, and owns its startup and
// graceful shutdown.
package app

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/janwychowaniak/flowbridge/internal/config"
	"github.com/janwychowaniak/flowbridge/internal/forwarding"
	"github.com/janwychowaniak/flowbridge/internal/handlers"
	"github.com/janwychowaniak/flowbridge/internal/logging"
	"github.com/janwychowaniak/flowbridge/internal/middleware"
	"github.com/janwychowaniak/flowbridge/internal/pipeline"
	"github.com/janwychowaniak/flowbridge/internal/server"
	"github.com/joho/godotenv"
)

const shutdownTimeout = 30 * time.Second

// App holds the wired dependencies of one running instance.
type App struct {
	Config   *config.Config
	Pipeline *pipeline.Pipeline
	Logger   *logging.Logger
	srv      *server.Server
}

// New builds an App from an already-loaded, already-validated Config.
func New(cfg *config.Config, logger *logging.Logger) *App {
	forwarder := forwarding.NewForwarder()
	p := pipeline.New(cfg, forwarder, logger)

	h := handlers.New(p, cfg, logger)

	router := mux.NewRouter()
	router.Use(middleware.LoggingMiddleware(logger))
	router.HandleFunc("/webhook", h.HandleWebhook).Methods("POST")
	router.HandleFunc("/health", h.HandleHealth).Methods("GET")
	router.HandleFunc("/config", h.HandleConfig).Methods("GET")

	srv := server.New(router, cfg.Server.Host, cfg.Server.Port)

	return &App{Config: cfg, Pipeline: p, Logger: logger, srv: srv}
}

// Shutdown gracefully stops the HTTP listener.
func (a *App) Shutdown(ctx context.Context) error {
	return a.srv.Shutdown(ctx)
}

// Run is the process entry point: parses flags, loads the environment and
// configuration, and either validates-and-exits or starts serving until an
// interrupt or termination signal arrives.
func Run() error {
	_ = godotenv.Load()
	runtime.GOMAXPROCS(runtime.NumCPU())

	var configPath string
	var validateOnly bool
	flag.StringVar(&configPath, "config", "config.yaml", "path to the configuration file")
	flag.BoolVar(&validateOnly, "validate-only", false, "load and validate the configuration, then exit")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}

	if validateOnly {
		fmt.Fprintf(os.Stdout, "configuration %s is valid\n", configPath)
		return nil
	}

	logFile := os.Stdout
	if path := os.Getenv("LOG_FILE"); path != "" {
		f, openErr := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if openErr != nil {
			fmt.Fprintln(os.Stderr, openErr)
			return openErr
		}
		defer f.Close()
		logFile = f
	}

	logger, err := logging.New(logging.ParseLevel(os.Getenv("LOG_LEVEL")), logFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	defer logger.Sync()

	a := New(cfg, logger)

	if err := a.srv.Start(); err != nil {
		logger.Error(logging.CategoryConfigError, "server failed to start", err, nil)
		return err
	}
	logger.Info(logging.CategoryResponse, "server started", map[string]interface{}{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info(logging.CategoryResponse, "shutting down", nil)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.Shutdown(ctx); err != nil {
		logger.Error(logging.CategoryResponse, "server forced to shutdown", err, nil)
		return err
	}

	logger.Info(logging.CategoryResponse, "server exited", nil)
	return nil
}
