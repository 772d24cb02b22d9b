package serverapp

import (
	"database/sql"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/jipp1987/PruebaRestService/internal/config"
	"github.com/jipp1987/PruebaRestService/internal/dbexec"
	"github.com/jipp1987/PruebaRestService/internal/httpapi"
	"github.com/jipp1987/PruebaRestService/internal/logging"
	"github.com/jipp1987/PruebaRestService/internal/observability"
	"github.com/jipp1987/PruebaRestService/internal/planner"
)

// App owns runtime resources for the REST server lifecycle.
type App struct {
	cfg    *config.Config
	logger *logging.Logger

	loggerProvider *observability.LoggerProvider

	databaseName string
	dsnPresent   bool

	meterProvider  *observability.MeterProvider
	daoMetrics     *observability.DAOMetrics
	tracerProvider *observability.TracerProvider

	db         *sql.DB
	dbStatsReg interface{ Unregister() error }

	limits planner.PlanLimits
	txm    *dbexec.TxManager
	api    *httpapi.Handler

	mux     *http.ServeMux
	handler http.Handler

	serverAddr string
	srv        *http.Server

	cleanup cleanupStack

	stateMu      sync.Mutex
	initialized  bool
	started      bool
	serverErrors chan error

	shutdownOnce sync.Once
	shutdownErr  error
}

// New creates an App lifecycle wrapper.
func New(cfg *config.Config, logger *logging.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if _, err := cfg.Database.DriverConfig(); err != nil {
		return nil, fmt.Errorf("failed to resolve database configuration: %w", err)
	}

	return &App{
		cfg:          cfg,
		logger:       logger,
		databaseName: cfg.Database.DatabaseName(),
		dsnPresent:   strings.TrimSpace(cfg.Database.ConnectionString) != "",
	}, nil
}

// AttachLoggerProvider registers an optional logger provider for shutdown cleanup.
func (a *App) AttachLoggerProvider(provider *observability.LoggerProvider) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	a.loggerProvider = provider
}

// Handler returns the root HTTP handler. It is nil until Init succeeds.
func (a *App) Handler() http.Handler {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.handler
}
