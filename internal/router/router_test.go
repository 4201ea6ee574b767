package router

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/vintalabs/notification-store/internal/handler"
	notificationHandler "github.com/vintalabs/notification-store/internal/handler/notification"
	"github.com/vintalabs/notification-store/internal/middleware"
	"github.com/vintalabs/notification-store/internal/repository/sqlstore"
	notificationService "github.com/vintalabs/notification-store/internal/service/notification"
	"github.com/vintalabs/notification-store/pkg/auth"
	"github.com/vintalabs/notification-store/pkg/logger"
)

// newRouter builds the full router once for the whole package; the metrics
// registry is global, so constructing it per test would double-register.
func newRouter(t *testing.T) (*Router, *auth.TokenService) {
	t.Helper()

	db, err := sqlx.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE users (id TEXT PRIMARY KEY, email TEXT NOT NULL)`)
	require.NoError(t, err)

	store, err := sqlstore.New(db, sqlstore.DefaultModelConfig())
	require.NoError(t, err)
	require.NoError(t, store.EnsureSchema(context.Background()))

	log := logger.NewLogger(&logger.Config{Output: io.Discard})
	svc := notificationService.NewService(store, log)

	tokens := auth.NewTokenService("test-secret", time.Hour)

	r := NewRouter(
		middleware.NewAuthMiddleware(tokens),
		notificationHandler.NewHandler(svc),
		handler.NewHandler(db),
		RouterConfig{
			RateLimitRPS:   1000,
			RateLimitBurst: 1000,
			MetricsPrefix:  "notification_store_test",
		},
	)
	r.Setup()

	return r, tokens
}

func TestRouter(t *testing.T) {
	r, tokens := newRouter(t)

	t.Run("liveness", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/live", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("readiness", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("metrics exposed", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("api requires token", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/notifications/pending", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("api rejects malformed token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications/pending", nil)
		req.Header.Set("Authorization", "Bearer not-a-token")
		w := httptest.NewRecorder()
		r.Engine().ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("api accepts valid token", func(t *testing.T) {
		token, err := tokens.GenerateToken("dispatcher")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications/pending", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.Engine().ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "1.0", w.Header().Get("X-API-Version"))
	})
}
