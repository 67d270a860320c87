package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	log "github.com/sirupsen/logrus"

	"mailbridge/cache"
	"mailbridge/config"
	"mailbridge/graph"
	"mailbridge/handlers/api"
	"mailbridge/middleware"
	"mailbridge/retry"
	"mailbridge/services"
	"mailbridge/storage"
	"mailbridge/utils"
)

func main() {
	log.SetFormatter(&log.JSONFormatter{})
	log.SetOutput(os.Stdout)

	configPath := "config.toml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.WithError(err).Fatal("loading configuration failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := storage.Migrate(cfg.Database.MigrateURL()); err != nil {
		log.WithError(err).Fatal("database migration failed")
	}
	pool, err := storage.Connect(ctx, cfg.Database.DSN())
	if err != nil {
		log.WithError(err).Fatal("database connection failed")
	}
	defer pool.Close()

	graphClient := graph.NewClient(ctx, graph.Config{
		TenantID:     cfg.Graph.TenantID,
		ClientID:     cfg.Graph.ClientID,
		ClientSecret: cfg.Graph.ClientSecret,
		UserID:       cfg.Graph.UserID,
		BaseURL:      cfg.Graph.BaseURL,
	}, log.WithField("component", "graph"))

	fastRetry := retry.NewService(retry.Fast, log.WithField("component", "retry"))
	stdRetry := retry.NewService(retry.Standard, log.WithField("component", "retry"))
	batchRetry := retry.NewService(retry.Batch, log.WithField("component", "retry"))

	emailCache := cache.NewEmailCache(cfg.Cache.CacheTTL())
	emailStore := storage.NewEmailStore(pool, batchRetry, log.WithField("component", "email_store"))
	recipientStore := storage.NewRecipientStore(pool, stdRetry, log.WithField("component", "recipient_store"))

	folderService := services.NewFolderService(graphClient, stdRetry, log.WithField("component", "folders"))
	translator := services.NewTranslatorService(graphClient, stdRetry, log.WithField("component", "translator"))
	collector := services.NewCollectionService(graphClient, translator, stdRetry, cfg.Collection, log.WithField("component", "collection"))
	recursiveService := services.NewRecursiveEmailService(folderService, collector, emailCache, emailStore, recipientStore, log.WithField("component", "recursive"))
	paginatedService := services.NewPaginatedEmailService(graphClient, translator, emailCache, stdRetry, cfg.Collection, log.WithField("component", "paginated"))
	selectionService := services.NewSelectEmailService(graphClient, translator, emailCache, emailStore, recipientStore, fastRetry, log.WithField("component", "selection"))
	attachmentService := services.NewAttachmentService(graphClient, fastRetry, cfg.Attachments.Dir, log.WithField("component", "attachments"))

	notifications := api.NewNotificationHandler(log.WithField("component", "notifications"))
	folderHandler := api.NewFolderHandler(folderService, log.WithField("component", "folder_handler"))
	emailHandler := api.NewEmailHandler(paginatedService, recursiveService, selectionService, notifications, log.WithField("component", "email_handler"))
	attachmentHandler := api.NewAttachmentHandler(attachmentService, log.WithField("component", "attachment_handler"))

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var appErr *utils.AppError
			var fiberErr *fiber.Error
			switch {
			case errors.As(err, &appErr):
				code = appErr.Code
				log.WithField("kind", appErr.Kind.String()).WithError(appErr).Error("request failed")
			case errors.As(err, &fiberErr):
				code = fiberErr.Code
			default:
				log.WithError(err).Error("request failed")
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(recover.New())
	app.Use(helmet.New())
	app.Use(compress.New())
	if cfg.Server.RateLimit > 0 {
		app.Use(middleware.RateLimiter(cfg.Server.RateLimit, time.Minute))
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	protected := app.Group("/api", middleware.Auth(cfg.Auth.Secret))
	{
		protected.Get("/folders", folderHandler.ListRootFolders)
		protected.Get("/folders/:id", folderHandler.GetFolder)
		protected.Get("/folders/:id/children", folderHandler.ListChildFolders)

		protected.Get("/folders/:id/emails", emailHandler.GetEmailsPage)
		protected.Post("/folders/:id/emails/recursive", emailHandler.IngestRecursive)
		protected.Post("/folders/:id/emails/select", emailHandler.PersistSelection)

		protected.Get("/messages/:id/attachments", attachmentHandler.ListAttachments)
		protected.Get("/messages/:id/attachments/:attachmentId/download", attachmentHandler.DownloadAttachment)

		protected.Get("/notifications/sse", notifications.HandleSSE)
		protected.Get("/notifications/ws", websocket.New(notifications.HandleWebSocket))
	}

	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.WithError(err).Warn("shutdown did not finish cleanly")
		}
	}()

	log.WithField("port", cfg.Server.Port).Info("starting server")
	if err := app.Listen(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}
