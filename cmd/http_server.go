package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/trading-iam/internal"
	"github.com/frahmantamala/trading-iam/internal/auth"
	authPostgres "github.com/frahmantamala/trading-iam/internal/auth/postgres"
	"github.com/frahmantamala/trading-iam/internal/core/events"
	"github.com/frahmantamala/trading-iam/internal/role"
	rolePostgres "github.com/frahmantamala/trading-iam/internal/role/postgres"
	"github.com/frahmantamala/trading-iam/internal/transport/rest"
	"github.com/frahmantamala/trading-iam/internal/user"
	userPostgres "github.com/frahmantamala/trading-iam/internal/user/postgres"
	"github.com/frahmantamala/trading-iam/pkg/logger"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config   *internal.Config
	DB       *sqlx.DB
	GormDB   *gorm.DB
	Router   *chi.Mux
	Logger   *slog.Logger
	EventBus *events.EventBus

	AuthHandler *auth.Handler
	AuthService *auth.Service
	UserHandler *user.Handler
	RoleHandler *role.Handler
	Sessions    *auth.SessionService
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	rest.RegisterAllRoutes(deps.Router, deps.DB, deps.AuthHandler, deps.AuthService, deps.UserHandler, deps.RoleHandler, deps.Logger)

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:         addr,
		Handler:      deps.Router,
		ReadTimeout:  deps.Config.Server.ReadTimeout,
		WriteTimeout: deps.Config.Server.WriteTimeout,
		IdleTimeout:  deps.Config.Server.IdleTimeout,
	}

	// Background sweep of expired sessions
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go runSessionSweep(sweepCtx, deps.Sessions, deps.Config.Session.SweepInterval, deps.Logger)

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("Received signal, shutting down...", "signal", sig)
		stopSweep()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("Server shutdown error", "error", err)
		}
		if err := deps.DB.Close(); err != nil {
			deps.Logger.Error("Database close error", "error", err)
		}
	case err := <-serverErrChan:
		stopSweep()
		if err != nil && err != http.ErrServerClosed {
			deps.Logger.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	deps.Logger.Info("Server stopped")
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(os.Getenv("APP_ENV"), config.Observability.Logging.Level)
	lg := logger.L()

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := initGorm(db)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	eventBus := events.NewEventBus(lg)

	roleRepo := rolePostgres.NewRepository(gormDB)
	roleService := role.NewService(roleRepo, lg)
	roleResolver := role.NewResolver(roleRepo, eventBus, lg)

	sessionRepo := authPostgres.NewSessionRepository(gormDB)
	sessionService := auth.NewSessionService(sessionRepo, eventBus, lg)

	authRepo := authPostgres.NewRepository(gormDB)
	tokenGenerator := auth.NewJWTTokenGenerator(&config.Security)
	authService := auth.NewService(authRepo, roleResolver, tokenGenerator, sessionService, eventBus, lg,
		config.Security.BCryptCost, role.CodeTrader)

	userRepo := userPostgres.NewRepository(gormDB)
	userService := user.NewService(userRepo, eventBus, lg)

	return &Dependencies{
		Config:   config,
		DB:       db,
		GormDB:   gormDB,
		Router:   chi.NewRouter(),
		Logger:   lg,
		EventBus: eventBus,

		AuthHandler: auth.NewHandler(authService),
		AuthService: authService,
		UserHandler: user.NewHandler(userService),
		RoleHandler: role.NewHandler(roleService, roleResolver),
		Sessions:    sessionService,
	}, nil
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// verify connection; close underlying *sql.DB on failure
	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}

// initGorm layers gorm over the already-open sqlx connection so both share
// one pool.
func initGorm(db *sqlx.DB) (*gorm.DB, error) {
	return gorm.Open(gormPostgres.New(gormPostgres.Config{Conn: db.DB}), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Warn),
	})
}

func runSessionSweep(ctx context.Context, sessions *auth.SessionService, interval time.Duration, lg *slog.Logger) {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lg.Info("session sweep started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			lg.Info("session sweep stopped")
			return
		case <-ticker.C:
			if _, err := sessions.DeleteExpired(ctx); err != nil {
				lg.Error("session sweep iteration failed", "error", err)
			}
		}
	}
}
