package entrypoint

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bijbelquiz/bijbellezer/internal/config"
	"github.com/bijbelquiz/bijbellezer/internal/connectivity"
	"github.com/bijbelquiz/bijbellezer/internal/content"
	"github.com/bijbelquiz/bijbellezer/internal/database"
	"github.com/bijbelquiz/bijbellezer/internal/database/bookmarks"
	"github.com/bijbelquiz/bijbellezer/internal/database/downloads"
	"github.com/bijbelquiz/bijbellezer/internal/database/verses"
	"github.com/bijbelquiz/bijbellezer/internal/downloader"
	http_controllers "github.com/bijbelquiz/bijbellezer/internal/http"
	"github.com/bijbelquiz/bijbellezer/internal/remote"
	"github.com/bijbelquiz/bijbellezer/internal/scheduler"
	"github.com/bijbelquiz/bijbellezer/internal/tasks"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: router,
	}

	go func() {
		fmt.Printf("Starting server at %s:%d\n", cfg.HTTP.Host, cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("Shutdown Server, waiting %v before killing\n", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Call shutdown callback first (e.g., to stop the task queue)
	if onShutdown != nil {
		onShutdown(ctx)
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}

	log.Println("Server exiting")
}

func Run(cfg *config.Config, version string) {
	log.Printf("Starting Bijbellezer v%s", version)

	if cfg.HTTP.APIKey == "" {
		log.Printf("WARNING: API key is not set. All local clients can reach the API. Set 'API_KEY' to require the X-API-Key header.")
	}

	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()

	verseStore := verses.NewRepository(db.DB)
	downloadRepo := downloads.NewRepository(db.DB)
	bookmarkRepo := bookmarks.NewRepository(db.DB)

	fetcher := remote.NewClient(cfg.Remote.BaseURL, cfg.Remote.Timeout)

	// Connectivity monitoring: probe once up front so the first request
	// already sees an accurate state, then keep probing in background.
	prober := connectivity.NewHTTPProber(cfg.Connectivity.ProbeURL, cfg.Connectivity.ProbeTimeout)
	monitor := connectivity.NewMonitor(prober, cfg.Connectivity.ProbeInterval)
	monitorCtx, monitorCancel := context.WithCancel(context.Background())
	defer monitorCancel()
	monitor.Initialize(monitorCtx)
	go monitor.Start(monitorCtx)

	downloadScheduler := downloader.NewScheduler(verseStore, downloadRepo, fetcher, downloader.Config{
		BatchSize:     cfg.Downloads.BatchSize,
		MaxRetries:    cfg.Downloads.MaxRetries,
		MaxConcurrent: int64(cfg.Downloads.MaxConcurrent),
	})

	coordinator := content.NewCoordinator(verseStore, bookmarkRepo, fetcher, monitor, cfg.Downloads.CacheOnlineReads)

	// Background task queue for detached downloads.
	var taskClient *tasks.Client
	var taskCtxCancel context.CancelFunc
	if cfg.Tasks.Enabled {
		taskCfg := tasks.Config{
			Workers:           cfg.Tasks.Workers,
			ReleaseAfter:      cfg.Tasks.ReleaseAfter,
			CleanupInterval:   cfg.Tasks.CleanupInterval,
			RetentionDuration: cfg.Tasks.RetentionDuration,
		}

		taskClient, err = tasks.NewClient(cfg.Database.Path, taskCfg)
		if err != nil {
			log.Fatalf("Failed to initialize task queue: %v", err)
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				log.Printf("Error closing task client: %v", err)
			}
		}()

		taskClient.Register(
			tasks.NewDownloadQueue(downloadScheduler),
		)

		var taskCtx context.Context
		taskCtx, taskCtxCancel = context.WithCancel(context.Background())
		go taskClient.Start(taskCtx)
	}

	// Periodic pruning of finished download records.
	pruner := scheduler.NewPruneScheduler(downloadRepo, cfg.Tasks.PruneSchedule, cfg.Tasks.RetentionDuration)
	if err := pruner.Start(); err != nil {
		log.Fatalf("Failed to start prune scheduler: %v", err)
	}

	routerCfg := http_controllers.RouterConfig{
		Database:    db,
		VerseStore:  verseStore,
		Downloads:   downloadRepo,
		Bookmarks:   bookmarkRepo,
		Coordinator: coordinator,
		Scheduler:   downloadScheduler,
		TaskClient:  taskClient,
		APIKey:      cfg.HTTP.APIKey,
		Version:     version,
	}

	router := http_controllers.NewRouter(routerCfg)

	onShutdown := func(ctx context.Context) {
		pruner.Stop()
		monitorCancel()
		if taskClient != nil && taskCtxCancel != nil {
			taskClient.Stop(ctx)
			taskCtxCancel()
		}
	}

	Serve(router, cfg, onShutdown)
}
