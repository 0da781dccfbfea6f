package entrypoint

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"

	"github.com/mrlokans/repairhub/internal/audit"
	"github.com/mrlokans/repairhub/internal/auth"
	"github.com/mrlokans/repairhub/internal/config"
	"github.com/mrlokans/repairhub/internal/database"
	auditstore "github.com/mrlokans/repairhub/internal/database/audit"
	"github.com/mrlokans/repairhub/internal/database/repairs"
	telegramstore "github.com/mrlokans/repairhub/internal/database/telegram"
	"github.com/mrlokans/repairhub/internal/database/users"
	http_controllers "github.com/mrlokans/repairhub/internal/http"
	"github.com/mrlokans/repairhub/internal/logger"
	"github.com/mrlokans/repairhub/internal/tasks"
	"github.com/mrlokans/repairhub/internal/telegram"
	"github.com/mrlokans/repairhub/internal/uploads"
)

// auditRetention is how long audit trail entries are kept.
const auditRetention = 90 * 24 * time.Hour

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

// Serve runs the HTTP server until SIGINT/SIGTERM, then drains with the
// configured timeout.
func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) {
	log := logger.Get()
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: router,
	}

	go func() {
		log.Info().Str("host", cfg.HTTP.Host).Int32("port", cfg.HTTP.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("listen failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Dur("timeout", timeout).Msg("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Stop background work before the listener so in-flight requests can
	// still enqueue while workers drain.
	if onShutdown != nil {
		onShutdown(ctx)
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server shutdown failed")
	}

	log.Info().Msg("Server exiting")
}

// Run wires the whole application together and serves it.
func Run(cfg *config.Config, version string) {
	logger.Init(logger.Options{Level: cfg.Logging.Level, Pretty: cfg.Logging.Pretty})
	log := logger.Get()
	log.Info().Str("version", version).Msg("Starting repairhub")

	// Refuse to serve without a signing secret: tokens minted with a
	// guessable key would let anyone forge a session.
	if cfg.Auth.SigningSecret == "" {
		log.Fatal().Msg("AUTH_SIGNING_SECRET is not set; refusing to start")
	}

	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database")
		}
	}()

	userRepo := users.NewRepository(db.DB)
	repairRepo := repairs.NewRepository(db.DB)
	linkRepo := telegramstore.NewRepository(db.DB)
	auditRepo := auditstore.NewRepository(db.DB)
	auditor := audit.NewService(auditRepo)

	// Photo storage
	uploadStore, err := uploads.NewStore(cfg.Uploads.Dir, cfg.Uploads.PublicPath, int(cfg.Uploads.MaxSizeMB))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize upload storage")
	}

	// Authentication
	authService := auth.NewService(userRepo, cfg.Auth)
	tokenService, err := auth.NewTokenService(cfg.Auth.SigningSecret, cfg.Auth.SigningAlgorithm, cfg.Auth.TokenTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize token service")
	}
	authMiddleware := auth.NewMiddleware(authService, tokenService)
	authController := auth.NewController(authService, tokenService, cfg.Auth)
	authController.SetAuditor(auditor)
	defer authController.Stop()

	csrfSecret := cfg.Auth.CSRFSecret
	if csrfSecret == "" {
		csrfSecret = randomSecret()
		log.Info().Msg("Generated CSRF secret (set AUTH_CSRF_SECRET to persist sessions across restarts)")
	}

	// Telegram bot (optional)
	var botClient *telegram.Client
	if cfg.Bot.Token != "" {
		botClient = telegram.NewClient(cfg.Bot.Token)
	} else {
		log.Info().Msg("BOT_TOKEN is not set; Telegram notifications are disabled")
	}

	// Task queue
	var taskClient *tasks.Client
	var taskCtxCancel context.CancelFunc
	var notifier http_controllers.StatusNotifier
	if cfg.Tasks.Enabled && botClient != nil {
		taskClient, err = tasks.NewClient(cfg.Database.Path, cfg.Tasks)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize task queue")
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				log.Error().Err(err).Msg("Error closing task client")
			}
		}()

		taskClient.Register(tasks.NewStatusNotificationQueue(linkRepo, botClient))

		var taskCtx context.Context
		taskCtx, taskCtxCancel = context.WithCancel(context.Background())
		go taskClient.Start(taskCtx)
		notifier = taskClient
	}

	// Bot poller
	var pollerCancel context.CancelFunc
	if botClient != nil {
		var pollerCtx context.Context
		pollerCtx, pollerCancel = context.WithCancel(context.Background())
		poller := telegram.NewPoller(botClient, linkRepo, cfg.Bot.PollTimeout)
		go poller.Run(pollerCtx)
	}

	// Purge stale unbound pairing codes on a schedule
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Bot.CleanupSpec, func() {
		removed, err := linkRepo.DeleteStaleCodes(cfg.Bot.CodeRetention)
		if err != nil {
			log.Error().Err(err).Msg("Stale pairing code purge failed")
			return
		}
		if removed > 0 {
			log.Info().Int64("removed", removed).Msg("Purged stale pairing codes")
		}
	}); err != nil {
		log.Fatal().Err(err).Str("spec", cfg.Bot.CleanupSpec).Msg("Invalid pairing code cleanup schedule")
	}
	if _, err := scheduler.AddFunc("@daily", func() {
		removed, err := auditRepo.DeleteOldEvents(time.Now().Add(-auditRetention))
		if err != nil {
			log.Error().Err(err).Msg("Audit event purge failed")
			return
		}
		if removed > 0 {
			log.Info().Int64("removed", removed).Msg("Purged old audit events")
		}
	}); err != nil {
		log.Fatal().Err(err).Msg("Invalid audit purge schedule")
	}
	scheduler.Start()

	router := http_controllers.NewRouter(http_controllers.RouterConfig{
		Database:       db,
		Users:          userRepo,
		Repairs:        repairRepo,
		Links:          linkRepo,
		AuthService:    authService,
		Tokens:         tokenService,
		AuthMiddleware: authMiddleware,
		AuthController: authController,
		CSRFSecret:     csrfSecret,
		SecureCookies:  cfg.Auth.SecureCookies,
		Uploads:        uploadStore,
		Notifier:       notifier,
		Auditor:        auditor,
		TemplatesPath:  cfg.UI.TemplatesPath,
		StaticPath:     cfg.UI.StaticPath,
		Version:        version,
	})

	onShutdown := func(ctx context.Context) {
		scheduler.Stop()
		if pollerCancel != nil {
			pollerCancel()
		}
		if taskClient != nil && taskCtxCancel != nil {
			taskClient.Stop(ctx)
			taskCtxCancel()
		}
	}

	Serve(router, cfg, onShutdown)
}

// randomSecret returns a fresh hex-encoded 32-byte secret.
func randomSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		logger.Get().Fatal().Err(err).Msg("Failed to generate secret")
	}
	return hex.EncodeToString(buf)
}
