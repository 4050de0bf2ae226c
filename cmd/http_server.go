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

	"github.com/frahmantamala/church-cms/internal"
	"github.com/frahmantamala/church-cms/internal/audit"
	auditPostgres "github.com/frahmantamala/church-cms/internal/audit/postgres"
	"github.com/frahmantamala/church-cms/internal/auth"
	authPostgres "github.com/frahmantamala/church-cms/internal/auth/postgres"
	"github.com/frahmantamala/church-cms/internal/board"
	boardPostgres "github.com/frahmantamala/church-cms/internal/board/postgres"
	"github.com/frahmantamala/church-cms/internal/cache"
	"github.com/frahmantamala/church-cms/internal/category"
	categoryPostgres "github.com/frahmantamala/church-cms/internal/category/postgres"
	"github.com/frahmantamala/church-cms/internal/core/events"
	"github.com/frahmantamala/church-cms/internal/core/retry"
	"github.com/frahmantamala/church-cms/internal/menu"
	menuPostgres "github.com/frahmantamala/church-cms/internal/menu/postgres"
	"github.com/frahmantamala/church-cms/internal/role"
	rolePostgres "github.com/frahmantamala/church-cms/internal/role/postgres"
	"github.com/frahmantamala/church-cms/internal/storage"
	"github.com/frahmantamala/church-cms/internal/transport"
	"github.com/frahmantamala/church-cms/internal/transport/openapi"
	"github.com/frahmantamala/church-cms/internal/transport/rest"
	"github.com/frahmantamala/church-cms/internal/user"
	userPostgres "github.com/frahmantamala/church-cms/internal/user/postgres"
	"github.com/frahmantamala/church-cms/internal/widget"
	widgetPostgres "github.com/frahmantamala/church-cms/internal/widget/postgres"
	"github.com/frahmantamala/church-cms/pkg/logger"

	"github.com/go-chi/chi"
	"github.com/go-redis/redis/v8"
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
	Config        *internal.Config
	DB            *sqlx.DB
	Gorm          *gorm.DB
	Redis         *redis.Client
	Bus           *events.EventBus
	Router        *chi.Mux
	HealthChecker *rest.HealthHandler
	Handlers      rest.Handlers
	Logger        *slog.Logger
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	rest.RegisterAllRoutes(deps.Router, deps.HealthChecker, deps.Handlers, deps.Config.Server.AllowedOrigins)

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("Server shutdown error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			deps.Logger.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	// activity log writes still in flight
	deps.Bus.Wait()
	deps.close()

	deps.Logger.Info("Server stopped")
}

func (d *Dependencies) close() {
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.Error("Redis close error", "error", err)
		}
	}
	if err := d.DB.Close(); err != nil {
		d.Logger.Error("Database close error", "error", err)
	}
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Configure(config.Observability.Logging.Level, config.Observability.Logging.Format)
	lg := logger.LoggerWrapper()

	db, gdb, err := openDatabase(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	policy := retry.NewPolicy(config.Persistence, lg)

	checks := map[string]rest.Checker{
		"postgres": db.PingContext,
	}

	var (
		redisClient *redis.Client
		kv          cache.KV
	)
	if config.Redis.Addr != "" {
		redisClient = cache.NewRedisClient(config.Redis)
		kv = cache.NewRedisKV(redisClient)
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	} else {
		lg.Warn("redis not configured, role permissions will not be cached")
	}
	permCache := cache.NewPermissionCache(kv, config.Redis.TTL, lg)

	bus := events.NewEventBus(lg)

	auditService := audit.NewService(auditPostgres.NewAuditRepository(db, policy), config.Audit, lg)
	auditService.Subscribe(bus)

	roleService := role.NewService(rolePostgres.NewRoleRepository(gdb, policy), role.NewCatalog(config.RBAC), permCache, bus, lg)
	userService := user.NewService(userPostgres.NewUserRepository(gdb, policy), roleService, bus, lg)
	authService := auth.NewService(
		authPostgres.NewRepository(gdb, policy),
		userService,
		roleService,
		auth.NewJWTTokenGenerator(config.Security),
		bus,
		config.Security.BCryptCost,
		lg,
	)

	menuService := menu.NewService(menuPostgres.NewMenuRepository(gdb, policy), lg)
	categoryService := category.NewService(categoryPostgres.NewCategoryRepository(gdb, policy), lg)
	boardService := board.NewService(
		boardPostgres.NewBoardRepository(gdb, policy),
		userService,
		menuService,
		storage.NewPromoter(config.Storage, lg),
		bus,
		lg,
	).WithCategories(categoryService)
	widgetService := widget.NewService(widgetPostgres.NewWidgetRepository(gdb, policy), boardService, bus, lg)

	schemas, err := openapi.NewValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to load api schema: %w", err)
	}
	base := transport.NewBaseHandler(lg, schemas)

	return &Dependencies{
		Config:        config,
		Logger:        lg,
		DB:            db,
		Gorm:          gdb,
		Redis:         redisClient,
		Bus:           bus,
		Router:        chi.NewRouter(),
		HealthChecker: rest.NewHealthHandler(checks),
		Handlers: rest.Handlers{
			Auth:     auth.NewHandler(base, authService),
			RBAC:     auth.NewRBACAuthorization(auth.NewPermissionChecker(), lg),
			Role:     role.NewHandler(base, roleService),
			User:     user.NewHandler(base, userService),
			Audit:    audit.NewHandler(base, auditService),
			Widget:   widget.NewHandler(base, widgetService),
			Board:    board.NewHandler(base, boardService),
			Category: category.NewHandler(base, categoryService),
		},
	}, nil
}

// openDatabase connects once through pgx and shares the pool between the
// sqlx activity log store and the gorm repositories.
func openDatabase(cfg internal.DatabaseConfig) (*sqlx.DB, *gorm.DB, error) {
	db, err := initDB(cfg)
	if err != nil {
		return nil, nil, err
	}

	gdb, err := gorm.Open(gormPostgres.New(gormPostgres.Config{Conn: db.DB}), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Warn),
	})
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to open gorm session: %w", err)
	}
	return db, gdb, nil
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

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}
