package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/vintalabs/notification-store/internal/middleware"
	"github.com/vintalabs/notification-store/internal/model"
	"github.com/vintalabs/notification-store/internal/repository/sqlstore"
	notificationService "github.com/vintalabs/notification-store/internal/service/notification"
	"github.com/vintalabs/notification-store/pkg/logger"
)

type apiResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func newTestRouter(t *testing.T) (*gin.Engine, string) {
	t.Helper()

	gin.SetMode(gin.TestMode)
	require.NoError(t, RegisterValidations())

	db, err := sqlx.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE users (id TEXT PRIMARY KEY, email TEXT NOT NULL)`)
	require.NoError(t, err)

	store, err := sqlstore.New(db, sqlstore.DefaultModelConfig())
	require.NoError(t, err)
	require.NoError(t, store.EnsureSchema(context.Background()))

	userID := uuid.New()
	_, err = db.Exec(db.Rebind(`INSERT INTO users (id, email) VALUES (?, ?)`), userID, "user@example.com")
	require.NoError(t, err)

	log := logger.NewLogger(&logger.Config{Output: io.Discard})
	svc := notificationService.NewService(store, log)

	engine := gin.New()
	engine.Use(middleware.ErrorHandler())
	NewHandler(svc).RegisterRoutes(engine.Group("/api/v1"))

	return engine, userID.String()
}

func doRequest(t *testing.T, engine *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	var resp apiResponse
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func createNotification(t *testing.T, engine *gin.Engine, userID string) *model.Notification {
	t.Helper()

	w, resp := doRequest(t, engine, http.MethodPost, "/api/v1/notifications", gin.H{
		"user_id":           userID,
		"notification_type": "EMAIL",
		"title":             "t",
		"body_template":     "b",
		"context_name":      "c",
		"context_kwargs":    gin.H{},
	})
	require.Equal(t, http.StatusCreated, w.Code, "body: %s", w.Body.String())

	var n model.Notification
	require.NoError(t, json.Unmarshal(resp.Data, &n))
	return &n
}

func TestCreateNotification(t *testing.T) {
	engine, userID := newTestRouter(t)

	n := createNotification(t, engine, userID)
	assert.NotEqual(t, uuid.Nil, n.ID)
	assert.Equal(t, model.NotificationStatusPendingSend, n.Status)
}

func TestCreateNotificationRejectsUnknownType(t *testing.T) {
	engine, userID := newTestRouter(t)

	w, _ := doRequest(t, engine, http.MethodPost, "/api/v1/notifications", gin.H{
		"user_id":           userID,
		"notification_type": "CARRIER_PIGEON",
		"title":             "t",
		"body_template":     "b",
		"context_name":      "c",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTransitionEndpoints(t *testing.T) {
	engine, userID := newTestRouter(t)
	n := createNotification(t, engine, userID)

	w, resp := doRequest(t, engine, http.MethodPost, fmt.Sprintf("/api/v1/notifications/%s/sent", n.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var sent model.Notification
	require.NoError(t, json.Unmarshal(resp.Data, &sent))
	assert.Equal(t, model.NotificationStatusSent, sent.Status)

	// A lost conditional update surfaces as a conflict.
	w, _ = doRequest(t, engine, http.MethodPost, fmt.Sprintf("/api/v1/notifications/%s/failed", n.ID), nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, resp = doRequest(t, engine, http.MethodPost, fmt.Sprintf("/api/v1/notifications/%s/read", n.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var read model.Notification
	require.NoError(t, json.Unmarshal(resp.Data, &read))
	assert.Equal(t, model.NotificationStatusRead, read.Status)
}

func TestCancelEndpoint(t *testing.T) {
	engine, userID := newTestRouter(t)
	n := createNotification(t, engine, userID)

	w, _ := doRequest(t, engine, http.MethodPost, fmt.Sprintf("/api/v1/notifications/%s/cancel", n.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Cancelled notifications are invisible to lookups.
	w, _ = doRequest(t, engine, http.MethodGet, fmt.Sprintf("/api/v1/notifications/%s", n.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// A second cancel is a conflict.
	w, _ = doRequest(t, engine, http.MethodPost, fmt.Sprintf("/api/v1/notifications/%s/cancel", n.ID), nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestUpdateEndpoint(t *testing.T) {
	engine, userID := newTestRouter(t)
	n := createNotification(t, engine, userID)

	w, resp := doRequest(t, engine, http.MethodPatch, fmt.Sprintf("/api/v1/notifications/%s", n.ID), gin.H{
		"title": "updated title",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var updated model.Notification
	require.NoError(t, json.Unmarshal(resp.Data, &updated))
	assert.Equal(t, "updated title", updated.Title)

	// Updates are rejected once the notification left PENDING_SEND.
	w, _ = doRequest(t, engine, http.MethodPost, fmt.Sprintf("/api/v1/notifications/%s/sent", n.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = doRequest(t, engine, http.MethodPatch, fmt.Sprintf("/api/v1/notifications/%s", n.ID), gin.H{
		"title": "too late",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestListEndpoints(t *testing.T) {
	engine, userID := newTestRouter(t)
	first := createNotification(t, engine, userID)
	second := createNotification(t, engine, userID)

	w, resp := doRequest(t, engine, http.MethodGet, "/api/v1/notifications/pending?page=1&page_size=1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var page struct {
		Items    []model.Notification `json:"items"`
		Page     int                  `json:"page"`
		PageSize int                  `json:"page_size"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &page))
	require.Len(t, page.Items, 1)
	assert.Equal(t, first.ID, page.Items[0].ID)
	assert.Equal(t, 1, page.Page)

	w, resp = doRequest(t, engine, http.MethodGet, "/api/v1/notifications/pending?page=2&page_size=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(resp.Data, &page))
	require.Len(t, page.Items, 1)
	assert.Equal(t, second.ID, page.Items[0].ID)

	// Without pagination the endpoint returns the ready-now listing.
	w, resp = doRequest(t, engine, http.MethodGet, "/api/v1/notifications/pending", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(resp.Data, &page))
	assert.Len(t, page.Items, 2)
}

func TestUnreadForUserEndpoint(t *testing.T) {
	engine, userID := newTestRouter(t)

	w, resp := doRequest(t, engine, http.MethodPost, "/api/v1/notifications", gin.H{
		"user_id":           userID,
		"notification_type": "IN_APP",
		"title":             "t",
		"body_template":     "b",
		"context_name":      "c",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var n model.Notification
	require.NoError(t, json.Unmarshal(resp.Data, &n))

	w, _ = doRequest(t, engine, http.MethodPost, fmt.Sprintf("/api/v1/notifications/%s/sent", n.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, resp = doRequest(t, engine, http.MethodGet, fmt.Sprintf("/api/v1/users/%s/notifications/unread", userID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var page struct {
		Items []model.Notification `json:"items"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &page))
	require.Len(t, page.Items, 1)
	assert.Equal(t, n.ID, page.Items[0].ID)
}

func TestStoreContextUsedEndpoint(t *testing.T) {
	engine, userID := newTestRouter(t)
	n := createNotification(t, engine, userID)

	w, _ := doRequest(t, engine, http.MethodPost, fmt.Sprintf("/api/v1/notifications/%s/context-used", n.ID), gin.H{
		"context_used": gin.H{"rendered": true},
		"adapter_used": "adapters.email.smtp",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = doRequest(t, engine, http.MethodPost, fmt.Sprintf("/api/v1/notifications/%s/context-used", n.ID), gin.H{
		"context_used": gin.H{"rendered": true},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUserEmailEndpoint(t *testing.T) {
	engine, userID := newTestRouter(t)
	n := createNotification(t, engine, userID)

	w, resp := doRequest(t, engine, http.MethodGet, fmt.Sprintf("/api/v1/notifications/%s/user-email", n.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var data struct {
		Email string `json:"email"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.Equal(t, "user@example.com", data.Email)
}

func TestInvalidNotificationID(t *testing.T) {
	engine, _ := newTestRouter(t)

	w, _ := doRequest(t, engine, http.MethodGet, "/api/v1/notifications/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
