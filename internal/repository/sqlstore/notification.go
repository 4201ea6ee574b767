package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/vintalabs/notification-store/internal/model"
	"github.com/vintalabs/notification-store/internal/repository"
	apperrors "github.com/vintalabs/notification-store/pkg/errors"
)

type dialect int

const (
	dialectPostgres dialect = iota
	dialectSQLite
)

// Store is the SQL implementation of repository.NotificationRepository.
// Queries are written with ? bindvars and rebound per driver, so the same
// SQL runs against Postgres and SQLite. Correctness under concurrent
// callers rests entirely on single-statement conditional updates; the
// store takes no in-process locks.
type Store struct {
	db      *sqlx.DB
	cfg     ModelConfig
	dialect dialect
}

// New builds a notification store over db. The ModelConfig is validated
// here: an invalid configuration is a startup error, not a per-request one.
func New(db *sqlx.DB, cfg ModelConfig) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	d := dialectSQLite
	if db.DriverName() == "postgres" {
		d = dialectPostgres
	}

	return &Store{db: db, cfg: cfg, dialect: d}, nil
}

// DB returns the underlying database handle.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// withTx executes fn within a transaction.
func (s *Store) withTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

const notificationColumns = `id, user_id, notification_type, title, status, body_template,
	subject_template, preheader_template, context_name, context_kwargs,
	context_used, adapter_used, adapter_extra_parameters, send_after, created, updated`

type notificationRow struct {
	ID                     uuid.UUID      `db:"id"`
	UserID                 string         `db:"user_id"`
	NotificationType       string         `db:"notification_type"`
	Title                  string         `db:"title"`
	Status                 string         `db:"status"`
	BodyTemplate           string         `db:"body_template"`
	SubjectTemplate        string         `db:"subject_template"`
	PreheaderTemplate      string         `db:"preheader_template"`
	ContextName            string         `db:"context_name"`
	ContextKwargs          model.JSONMap  `db:"context_kwargs"`
	ContextUsed            model.JSONMap  `db:"context_used"`
	AdapterUsed            sql.NullString `db:"adapter_used"`
	AdapterExtraParameters model.JSONMap  `db:"adapter_extra_parameters"`
	SendAfter              *time.Time     `db:"send_after"`
	Created                time.Time      `db:"created"`
	Updated                time.Time      `db:"updated"`
}

// toRecord maps a storage row to the uniform record shape. Adapter
// bookkeeping columns and row timestamps are deliberately not exposed.
func (r *notificationRow) toRecord() *model.Notification {
	return &model.Notification{
		ID:                r.ID,
		UserID:            r.UserID,
		NotificationType:  model.NotificationType(r.NotificationType),
		Title:             r.Title,
		BodyTemplate:      r.BodyTemplate,
		ContextName:       r.ContextName,
		ContextKwargs:     r.ContextKwargs,
		SendAfter:         r.SendAfter,
		SubjectTemplate:   r.SubjectTemplate,
		PreheaderTemplate: r.PreheaderTemplate,
		Status:            model.NotificationStatus(r.Status),
	}
}

func (s *Store) Create(ctx context.Context, params *model.CreateNotificationParams) (*model.Notification, error) {
	userID, err := s.cfg.ParseUserID(params.UserID)
	if err != nil {
		return nil, err
	}

	contextKwargs := params.ContextKwargs
	if contextKwargs == nil {
		contextKwargs = model.JSONMap{}
	}

	id := uuid.New()
	now := time.Now().UTC()

	query := s.db.Rebind(fmt.Sprintf(`
		INSERT INTO %s (
			id, user_id, notification_type, title, status, body_template,
			subject_template, preheader_template, context_name, context_kwargs,
			adapter_extra_parameters, send_after, created, updated
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.cfg.NotificationsTable,
	))

	err = s.withTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, query,
			id,
			userID,
			string(params.NotificationType),
			params.Title,
			string(model.NotificationStatusPendingSend),
			params.BodyTemplate,
			params.SubjectTemplate,
			params.PreheaderTemplate,
			params.ContextName,
			contextKwargs,
			params.AdapterExtraParameters,
			params.SendAfter,
			now,
			now,
		)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}

	return &model.Notification{
		ID:                id,
		UserID:            params.UserID,
		NotificationType:  params.NotificationType,
		Title:             params.Title,
		BodyTemplate:      params.BodyTemplate,
		ContextName:       params.ContextName,
		ContextKwargs:     contextKwargs,
		SendAfter:         params.SendAfter,
		SubjectTemplate:   params.SubjectTemplate,
		PreheaderTemplate: params.PreheaderTemplate,
		Status:            model.NotificationStatusPendingSend,
	}, nil
}

func (s *Store) Update(ctx context.Context, id uuid.UUID, params *model.UpdateNotificationParams) (*model.Notification, error) {
	if params == nil || params.Empty() {
		return nil, apperrors.BadRequest("no fields to update", nil)
	}

	set := []string{"updated = ?"}
	args := []interface{}{time.Now().UTC()}

	if params.Title != nil {
		set = append(set, "title = ?")
		args = append(args, *params.Title)
	}
	if params.BodyTemplate != nil {
		set = append(set, "body_template = ?")
		args = append(args, *params.BodyTemplate)
	}
	if params.ContextName != nil {
		set = append(set, "context_name = ?")
		args = append(args, *params.ContextName)
	}
	if params.ContextKwargs != nil {
		set = append(set, "context_kwargs = ?")
		args = append(args, params.ContextKwargs)
	}
	if params.SubjectTemplate != nil {
		set = append(set, "subject_template = ?")
		args = append(args, *params.SubjectTemplate)
	}
	if params.PreheaderTemplate != nil {
		set = append(set, "preheader_template = ?")
		args = append(args, *params.PreheaderTemplate)
	}
	if params.AdapterExtraParameters != nil {
		set = append(set, "adapter_extra_parameters = ?")
		args = append(args, params.AdapterExtraParameters)
	}
	if params.ClearSendAfter {
		set = append(set, "send_after = NULL")
	} else if params.SendAfter != nil {
		set = append(set, "send_after = ?")
		args = append(args, *params.SendAfter)
	}

	query := s.db.Rebind(fmt.Sprintf(
		"UPDATE %s SET %s WHERE id = ? AND status = ?",
		s.cfg.NotificationsTable,
		strings.Join(set, ", "),
	))
	args = append(args, id, string(model.NotificationStatusPendingSend))

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update notification: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return nil, apperrors.UpdateConflict("failed to update notification, it may have already been sent", nil)
	}

	return s.refetch(ctx, id)
}

func (s *Store) MarkPendingAsSent(ctx context.Context, id uuid.UUID) (*model.Notification, error) {
	return s.updateStatus(ctx, id,
		[]model.NotificationStatus{model.NotificationStatusPendingSend},
		model.NotificationStatusSent,
	)
}

func (s *Store) MarkPendingAsFailed(ctx context.Context, id uuid.UUID) (*model.Notification, error) {
	return s.updateStatus(ctx, id,
		[]model.NotificationStatus{model.NotificationStatusPendingSend},
		model.NotificationStatusFailed,
	)
}

func (s *Store) MarkSentAsRead(ctx context.Context, id uuid.UUID) (*model.Notification, error) {
	return s.updateStatus(ctx, id,
		[]model.NotificationStatus{model.NotificationStatusSent},
		model.NotificationStatusRead,
	)
}

// updateStatus performs a single conditional UPDATE guarded by the expected
// source statuses. When two callers race on the same row exactly one sees a
// non-zero row count; the loser gets an update conflict and the row is left
// untouched. The successful update also refreshes the updated timestamp.
func (s *Store) updateStatus(ctx context.Context, id uuid.UUID, from []model.NotificationStatus, to model.NotificationStatus) (*model.Notification, error) {
	placeholders := make([]string, len(from))
	args := []interface{}{string(to), time.Now().UTC(), id}
	for i, status := range from {
		placeholders[i] = "?"
		args = append(args, string(status))
	}

	query := s.db.Rebind(fmt.Sprintf(
		"UPDATE %s SET status = ?, updated = ? WHERE id = ? AND status IN (%s)",
		s.cfg.NotificationsTable,
		strings.Join(placeholders, ", "),
	))

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update notification status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return nil, apperrors.UpdateConflict("failed to update notification status", nil)
	}

	return s.refetch(ctx, id)
}

// refetch reloads a row by primary key after a successful conditional
// update. It runs in its own implicit transaction: a crash between the
// update and the refetch leaves the update applied, and repeating the
// refetch alone is safe.
func (s *Store) refetch(ctx context.Context, id uuid.UUID) (*model.Notification, error) {
	query := s.db.Rebind(fmt.Sprintf(
		"SELECT %s FROM %s WHERE id = ?",
		notificationColumns,
		s.cfg.NotificationsTable,
	))

	var row notificationRow
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("notification", err)
		}
		return nil, fmt.Errorf("failed to fetch notification: %w", err)
	}

	return row.toRecord(), nil
}

func (s *Store) Cancel(ctx context.Context, id uuid.UUID) error {
	query := s.db.Rebind(fmt.Sprintf(
		"UPDATE %s SET status = ?, updated = ? WHERE id = ? AND status = ?",
		s.cfg.NotificationsTable,
	))

	result, err := s.db.ExecContext(ctx, query,
		string(model.NotificationStatusCancelled),
		time.Now().UTC(),
		id,
		string(model.NotificationStatusPendingSend),
	)
	if err != nil {
		return fmt.Errorf("failed to cancel notification: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.CancelConflict("failed to cancel notification", nil)
	}

	return nil
}

func (s *Store) Get(ctx context.Context, id uuid.UUID, forUpdate bool) (*model.Notification, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE id = ? AND status != ?",
		notificationColumns,
		s.cfg.NotificationsTable,
	)
	// SQLite has no row locks; callers there rely on the conditional
	// update for transition safety.
	if forUpdate && s.dialect == dialectPostgres {
		query += " FOR UPDATE"
	}

	var row notificationRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(query), id, string(model.NotificationStatusCancelled))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("notification", err)
		}
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}

	return row.toRecord(), nil
}

func (s *Store) ListAllPending(ctx context.Context, now time.Time) ([]*model.Notification, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE status = ? AND (send_after IS NULL OR send_after <= ?) ORDER BY created ASC",
		notificationColumns,
		s.cfg.NotificationsTable,
	)
	return s.list(ctx, query, string(model.NotificationStatusPendingSend), now)
}

func (s *Store) ListPending(ctx context.Context, page model.Page) ([]*model.Notification, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE status = ? ORDER BY created ASC LIMIT ? OFFSET ?",
		notificationColumns,
		s.cfg.NotificationsTable,
	)
	return s.list(ctx, query, string(model.NotificationStatusPendingSend), page.Size, page.Offset())
}

// Deprecated: kept for backend compatibility, use ListInAppUnread.
func (s *Store) ListAllInAppUnread(ctx context.Context, userID string) ([]*model.Notification, error) {
	uid, err := s.cfg.ParseUserID(userID)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE user_id = ? AND status = ? AND notification_type = ? ORDER BY created ASC",
		notificationColumns,
		s.cfg.NotificationsTable,
	)
	return s.list(ctx, query, uid, string(model.NotificationStatusSent), string(model.NotificationTypeInApp))
}

func (s *Store) ListInAppUnread(ctx context.Context, userID string, page model.Page) ([]*model.Notification, error) {
	uid, err := s.cfg.ParseUserID(userID)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE user_id = ? AND status = ? AND notification_type = ? ORDER BY created ASC LIMIT ? OFFSET ?",
		notificationColumns,
		s.cfg.NotificationsTable,
	)
	return s.list(ctx, query, uid, string(model.NotificationStatusSent), string(model.NotificationTypeInApp), page.Size, page.Offset())
}

func (s *Store) ListAllFuture(ctx context.Context, now time.Time) ([]*model.Notification, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE status = ? AND send_after > ? ORDER BY created ASC",
		notificationColumns,
		s.cfg.NotificationsTable,
	)
	return s.list(ctx, query, string(model.NotificationStatusPendingSend), now)
}

func (s *Store) ListFuture(ctx context.Context, now time.Time, page model.Page) ([]*model.Notification, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE status = ? AND send_after > ? ORDER BY created ASC LIMIT ? OFFSET ?",
		notificationColumns,
		s.cfg.NotificationsTable,
	)
	return s.list(ctx, query, string(model.NotificationStatusPendingSend), now, page.Size, page.Offset())
}

func (s *Store) ListAllFutureForUser(ctx context.Context, userID string, now time.Time) ([]*model.Notification, error) {
	uid, err := s.cfg.ParseUserID(userID)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE status = ? AND send_after > ? AND user_id = ? ORDER BY created ASC",
		notificationColumns,
		s.cfg.NotificationsTable,
	)
	return s.list(ctx, query, string(model.NotificationStatusPendingSend), now, uid)
}

func (s *Store) ListFutureForUser(ctx context.Context, userID string, now time.Time, page model.Page) ([]*model.Notification, error) {
	uid, err := s.cfg.ParseUserID(userID)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE status = ? AND send_after > ? AND user_id = ? ORDER BY created ASC LIMIT ? OFFSET ?",
		notificationColumns,
		s.cfg.NotificationsTable,
	)
	return s.list(ctx, query, string(model.NotificationStatusPendingSend), now, uid, page.Size, page.Offset())
}

func (s *Store) list(ctx context.Context, query string, args ...interface{}) ([]*model.Notification, error) {
	var rows []notificationRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}

	notifications := make([]*model.Notification, 0, len(rows))
	for i := range rows {
		notifications = append(notifications, rows[i].toRecord())
	}
	return notifications, nil
}

// StoreContextUsed records delivery metadata after a send attempt. The row
// is matched strictly by primary key and there is no status precondition.
func (s *Store) StoreContextUsed(ctx context.Context, id uuid.UUID, contextUsed model.JSONMap, adapterUsed string) error {
	query := s.db.Rebind(fmt.Sprintf(
		"UPDATE %s SET context_used = ?, adapter_used = ?, updated = ? WHERE id = ?",
		s.cfg.NotificationsTable,
	))

	result, err := s.db.ExecContext(ctx, query, contextUsed, adapterUsed, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to store context used: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("notification", nil)
	}

	return nil
}

func (s *Store) UserEmail(ctx context.Context, id uuid.UUID) (string, error) {
	query := s.db.Rebind(fmt.Sprintf(
		"SELECT u.%s FROM %s n JOIN %s u ON u.%s = n.user_id WHERE n.id = ?",
		s.cfg.UsersEmailColumn,
		s.cfg.NotificationsTable,
		s.cfg.UsersTable,
		s.cfg.UsersPKColumn,
	))

	var email string
	if err := s.db.GetContext(ctx, &email, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", apperrors.NotFound("notification", err)
		}
		return "", fmt.Errorf("failed to get user email: %w", err)
	}

	return email, nil
}

var _ repository.NotificationRepository = (*Store)(nil)
