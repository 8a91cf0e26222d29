package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"llnd-portal/internal/admin"
	"llnd-portal/internal/app"
	"llnd-portal/internal/catalog"
	"llnd-portal/internal/config"
	"llnd-portal/internal/infra/memory"
	pgloader "llnd-portal/internal/infra/postgres"
	redisinfra "llnd-portal/internal/infra/redis"
	"llnd-portal/internal/portalapi"
	transport "llnd-portal/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the portal server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	var loader memory.CatalogLoader = memory.NewStaticCatalogLoader(catalog.Default())
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		loader = pgloader.NewCatalogLoader(pool)
	}

	catalogTTL := config.TTLDuration(cfg.Catalog.TTL, 10*time.Minute)
	sessionTTL := config.TTLDuration(cfg.Session.TTL, 2*time.Hour)

	var catalogs app.CatalogRepository
	var store app.SessionRepository
	if redisClient != nil {
		catalogs = redisinfra.NewCatalogRepository(redisClient, loader, cfg.Catalog.Version, catalogTTL)
		store = redisinfra.NewSessionStore(redisClient, sessionTTL)
	} else {
		catalogs = memory.NewCatalogRepository(loader, cfg.Catalog.Version, catalogTTL)
		store = memory.NewSessionStore()
	}

	// Fail fast on missing content rather than on the first learner.
	current, err := catalogs.Catalog(ctx, "")
	if err != nil {
		return err
	}
	glog.Infof("serving catalog %s (%d questions)", current.Version, current.QuestionCount())

	api := portalapi.New(portalapi.Config{
		BaseURL: cfg.API.BaseURL,
		Timeout: config.TTLDuration(cfg.API.Timeout, 15*time.Second),
		Token:   cfg.API.Token,
	})
	service := app.NewFlowService(store, catalogs, api)

	router := transport.NewRouter(transport.Handlers{
		Flows:   transport.NewFlowHandler(service),
		Admin:   transport.NewAdminHandler(admin.NewStatusBoard(api, cfg.Admin.PageSize), admin.NewReviewer(api), api, admin.NewStudents(api), admin.NewForms(api)),
		Courses: transport.NewCourseHandler(api),
		WS:      transport.NewWSHandler(service, nil),
	}, cfg.Server.CORSOrigins)

	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		glog.Infof("starting portal on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			glog.Errorf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		glog.Info("shutting down server...")
	case <-ctx.Done():
		glog.Info("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
