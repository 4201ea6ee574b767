package sqlstore

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/vintalabs/notification-store/pkg/errors"
)

func TestModelConfigValidate(t *testing.T) {
	cfg := DefaultModelConfig()
	require.NoError(t, cfg.Validate())

	bad := cfg
	bad.UserKey = "float"
	assert.True(t, apperrors.IsConfiguration(bad.Validate()))

	bad = cfg
	bad.NotificationsTable = "notifications; DROP TABLE users"
	assert.True(t, apperrors.IsConfiguration(bad.Validate()))

	bad = cfg
	bad.UsersTable = ""
	assert.True(t, apperrors.IsConfiguration(bad.Validate()))
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	db, err := sqlx.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := DefaultModelConfig()
	cfg.UserKey = "float"

	_, err = New(db, cfg)
	assert.True(t, apperrors.IsConfiguration(err))
}

func TestParseUserID(t *testing.T) {
	cfg := DefaultModelConfig()

	cfg.UserKey = UserKeyInt
	v, err := cfg.ParseUserID("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)

	_, err = cfg.ParseUserID("forty-two")
	assert.True(t, apperrors.IsBadRequest(err))

	cfg.UserKey = UserKeyString
	v, err = cfg.ParseUserID("user-key")
	require.NoError(t, err)
	assert.Equal(t, "user-key", v)

	_, err = cfg.ParseUserID("")
	assert.True(t, apperrors.IsBadRequest(err))

	cfg.UserKey = UserKeyUUID
	id := uuid.New()
	v, err = cfg.ParseUserID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, v)

	_, err = cfg.ParseUserID("not-a-uuid")
	assert.True(t, apperrors.IsBadRequest(err))
}

func TestSchemaDDLDialects(t *testing.T) {
	cfg := DefaultModelConfig()

	pg := strings.Join(cfg.schemaDDL(dialectPostgres), "\n")
	assert.Contains(t, pg, "user_id UUID NOT NULL REFERENCES users(id)")
	assert.Contains(t, pg, "JSONB")
	assert.Contains(t, pg, "TIMESTAMPTZ")

	lite := strings.Join(cfg.schemaDDL(dialectSQLite), "\n")
	assert.Contains(t, lite, "user_id TEXT NOT NULL REFERENCES users(id)")
	assert.NotContains(t, lite, "JSONB")
	assert.Contains(t, lite, "TIMESTAMP")

	cfg.UserKey = UserKeyInt
	pg = strings.Join(cfg.schemaDDL(dialectPostgres), "\n")
	assert.Contains(t, pg, "user_id BIGINT NOT NULL")

	cfg.UserKey = UserKeyString
	pg = strings.Join(cfg.schemaDDL(dialectPostgres), "\n")
	assert.Contains(t, pg, "user_id VARCHAR(255) NOT NULL")

	cfg.NotificationsTable = "app_notifications"
	cfg.UsersTable = "accounts"
	cfg.UsersPKColumn = "account_id"
	ddl := strings.Join(cfg.schemaDDL(dialectPostgres), "\n")
	assert.Contains(t, ddl, "CREATE TABLE IF NOT EXISTS app_notifications")
	assert.Contains(t, ddl, "REFERENCES accounts(account_id)")
	assert.Contains(t, ddl, "app_notifications_status_send_after_idx")
}
