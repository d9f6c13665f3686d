package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"gorm.io/gorm/logger"

	"github.com/ytakahashi/taskboard/internal/auth"
	"github.com/ytakahashi/taskboard/internal/config"
	"github.com/ytakahashi/taskboard/internal/handlers"
	"github.com/ytakahashi/taskboard/internal/services"
)

func openRepository(ctx context.Context, cfg config.Config) (services.TaskRepository, error) {
	if cfg.Store == config.StoreFirestore {
		return services.NewFirestoreService(ctx, cfg.ProjectID)
	}
	return services.OpenSQLite(cfg.SQLitePath, logger.Warn)
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

// drainThenClose stops srv and closes store afterwards, even when the drain times out.
func drainThenClose(srv shutdowner, store io.Closer) gfshutdown.Operation {
	return func(ctx context.Context) error {
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("HTTP server shutdown: %v", err)
		}
		return store.Close()
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx := context.Background()
	repo, err := openRepository(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open %s task store: %v", cfg.Store, err)
	}

	tokens := auth.NewManager(auth.Config{
		SecretKey: cfg.JWTSecret,
		Issuer:    cfg.JWTIssuer,
		TokenTTL:  cfg.TokenTTL,
	})
	taskService := services.NewTaskService(repo)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	api := e.Group("", auth.Middleware(tokens))
	handlers.NewTaskHandler(taskService).Register(api)

	if cfg.DevSignIn {
		log.Println("Development sign-in enabled at POST /auth/token")
		e.POST("/auth/token", handlers.NewSignInHandler(tokens).SignIn)
	}

	if cfg.LineEnabled() {
		bot, err := messaging_api.NewMessagingApiAPI(cfg.LineToken)
		if err != nil {
			log.Fatalf("Failed to create LINE bot client: %v", err)
		}
		webhookHandler := handlers.NewWebhookHandler(bot, taskService, cfg.LineSecret)
		e.POST("/webhook", webhookHandler.HandleWebhook)
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	go func() {
		log.Printf("Server starting on port %s (store: %s)", cfg.Port, cfg.Store)
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	wait := gfshutdown.GracefulShutdown(ctx, cfg.ShutdownTimeout, map[string]gfshutdown.Operation{
		// operations run concurrently, so the store closes only after echo drains
		"http-server": drainThenClose(e, repo),
	})

	exitCode := <-wait
	log.Printf("Server exited with code: %d", exitCode)
	os.Exit(exitCode)
}
