package sqlstore

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/vintalabs/notification-store/pkg/errors"
)

// UserKeyKind is the primary-key type of the externally owned users table.
// It is bound once per deployment, not per row.
type UserKeyKind string

const (
	UserKeyInt    UserKeyKind = "int"
	UserKeyString UserKeyKind = "string"
	UserKeyUUID   UserKeyKind = "uuid"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ModelConfig parameterizes the notification table over the user model it
// references. It drives schema bootstrap and user-id parsing and is fixed
// at store construction.
type ModelConfig struct {
	UserKey            UserKeyKind
	UsersTable         string
	UsersPKColumn      string
	UsersEmailColumn   string
	NotificationsTable string
}

// DefaultModelConfig matches the conventional schema: UUID user keys and
// a "users" table with an "id" primary key.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		UserKey:            UserKeyUUID,
		UsersTable:         "users",
		UsersPKColumn:      "id",
		UsersEmailColumn:   "email",
		NotificationsTable: "notifications",
	}
}

// Validate checks the configuration at startup. Table and column names are
// interpolated into DDL and queries, so they must be plain identifiers.
func (c *ModelConfig) Validate() error {
	switch c.UserKey {
	case UserKeyInt, UserKeyString, UserKeyUUID:
	default:
		return apperrors.Configuration(fmt.Sprintf("unknown user key kind %q", c.UserKey), nil)
	}

	for name, value := range map[string]string{
		"users table":         c.UsersTable,
		"users pk column":     c.UsersPKColumn,
		"users email column":  c.UsersEmailColumn,
		"notifications table": c.NotificationsTable,
	} {
		if !identifierPattern.MatchString(value) {
			return apperrors.Configuration(fmt.Sprintf("invalid %s %q", name, value), nil)
		}
	}
	return nil
}

// ParseUserID normalizes a user reference into the bind value matching the
// configured key kind.
func (c *ModelConfig) ParseUserID(raw string) (interface{}, error) {
	switch c.UserKey {
	case UserKeyInt:
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, apperrors.BadRequest(fmt.Sprintf("invalid user id %q", raw), err)
		}
		return id, nil
	case UserKeyString:
		if raw == "" {
			return nil, apperrors.BadRequest("user id must not be empty", nil)
		}
		return raw, nil
	case UserKeyUUID:
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, apperrors.BadRequest(fmt.Sprintf("invalid user id %q", raw), err)
		}
		return id, nil
	default:
		return nil, apperrors.Configuration(fmt.Sprintf("unknown user key kind %q", c.UserKey), nil)
	}
}

func (c *ModelConfig) userKeyColumnType(d dialect) string {
	switch c.UserKey {
	case UserKeyInt:
		if d == dialectSQLite {
			return "INTEGER"
		}
		return "BIGINT"
	case UserKeyString:
		if d == dialectSQLite {
			return "TEXT"
		}
		return "VARCHAR(255)"
	default:
		if d == dialectSQLite {
			return "TEXT"
		}
		return "UUID"
	}
}

// schemaDDL renders the notifications table and its indexes for the given
// dialect. The users table is externally owned and never created here.
func (c *ModelConfig) schemaDDL(d dialect) []string {
	jsonType := "JSONB"
	timestampType := "TIMESTAMPTZ"
	idType := "UUID"
	if d == dialectSQLite {
		jsonType = "TEXT"
		timestampType = "TIMESTAMP"
		idType = "TEXT"
	}

	table := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			id %[2]s PRIMARY KEY,
			notification_type VARCHAR(50) NOT NULL,
			title VARCHAR(255) NOT NULL,
			status VARCHAR(50) NOT NULL DEFAULT 'PENDING_SEND',
			body_template TEXT NOT NULL,
			created %[3]s NOT NULL,
			updated %[3]s NOT NULL,
			subject_template VARCHAR(255) NOT NULL DEFAULT '',
			preheader_template VARCHAR(255) NOT NULL DEFAULT '',
			context_name VARCHAR(255) NOT NULL DEFAULT '',
			context_kwargs %[4]s NOT NULL,
			context_used %[4]s,
			adapter_used VARCHAR(255),
			adapter_extra_parameters %[4]s,
			send_after %[3]s,
			user_id %[5]s NOT NULL REFERENCES %[6]s(%[7]s)
		)`,
		c.NotificationsTable,
		idType,
		timestampType,
		jsonType,
		c.userKeyColumnType(d),
		c.UsersTable,
		c.UsersPKColumn,
	)

	indexes := []string{
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %[1]s_status_send_after_idx ON %[1]s (status, send_after)", c.NotificationsTable),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %[1]s_user_id_idx ON %[1]s (user_id)", c.NotificationsTable),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %[1]s_created_idx ON %[1]s (created)", c.NotificationsTable),
	}

	return append([]string{strings.TrimSpace(table)}, indexes...)
}

// EnsureSchema bootstraps the notifications table and indexes, applied once
// at startup. Idempotent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range s.cfg.schemaDDL(s.dialect) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
