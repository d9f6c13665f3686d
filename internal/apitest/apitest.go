// Package apitest runs the task API in-process for tests.
package apitest

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm/logger"

	"github.com/ytakahashi/taskboard/internal/auth"
	"github.com/ytakahashi/taskboard/internal/handlers"
	"github.com/ytakahashi/taskboard/internal/services"
)

// NewServer serves the task API and the sign-in endpoint over an in-memory
// database. Both are closed when the test ends.
func NewServer(t *testing.T) (*httptest.Server, *auth.Manager) {
	t.Helper()

	repo, err := services.OpenSQLite(":memory:", logger.Silent)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	tokens := auth.NewManager(auth.Config{SecretKey: "test-secret", Issuer: "test", TokenTTL: time.Hour})
	e := echo.New()
	g := e.Group("", auth.Middleware(tokens))
	handlers.NewTaskHandler(services.NewTaskService(repo)).Register(g)
	e.POST("/auth/token", handlers.NewSignInHandler(tokens).SignIn)

	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv, tokens
}
