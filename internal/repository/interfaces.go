package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vintalabs/notification-store/internal/model"
)

// NotificationRepository is the persistence boundary for notification
// records. Every mutating operation is a single conditional UPDATE: the
// WHERE clause carries the expected source status, zero affected rows
// means the caller lost the race (or the transition was never legal) and
// surfaces as a conflict error. No in-process locking is involved.
type NotificationRepository interface {
	// Create persists a new notification in PENDING_SEND and returns it.
	Create(ctx context.Context, params *model.CreateNotificationParams) (*model.Notification, error)

	// Update applies a partial field update while the notification is
	// still PENDING_SEND, then re-fetches and returns the full record.
	Update(ctx context.Context, id uuid.UUID, params *model.UpdateNotificationParams) (*model.Notification, error)

	// Status transitions. Each returns the re-fetched record on success.
	MarkPendingAsSent(ctx context.Context, id uuid.UUID) (*model.Notification, error)
	MarkPendingAsFailed(ctx context.Context, id uuid.UUID) (*model.Notification, error)
	MarkSentAsRead(ctx context.Context, id uuid.UUID) (*model.Notification, error)

	// Cancel moves a PENDING_SEND notification to CANCELLED. The row is
	// kept; it just becomes invisible to plain lookups.
	Cancel(ctx context.Context, id uuid.UUID) error

	// Get returns a single non-cancelled notification. With forUpdate the
	// row is locked (FOR UPDATE) on engines that support it; others fall
	// back to the conditional-update safety net.
	Get(ctx context.Context, id uuid.UUID, forUpdate bool) (*model.Notification, error)

	// ListAllPending returns every PENDING_SEND notification ready to be
	// dispatched at now (send_after null or elapsed), created ASC.
	ListAllPending(ctx context.Context, now time.Time) ([]*model.Notification, error)

	// ListPending pages over all PENDING_SEND notifications, created ASC.
	ListPending(ctx context.Context, page model.Page) ([]*model.Notification, error)

	// Unread, sent, in-app notifications for a user, created ASC.
	//
	// Deprecated: ListAllInAppUnread is kept for backend compatibility;
	// new callers should use the paginated ListInAppUnread.
	ListAllInAppUnread(ctx context.Context, userID string) ([]*model.Notification, error)
	ListInAppUnread(ctx context.Context, userID string, page model.Page) ([]*model.Notification, error)

	// Future-scheduled PENDING_SEND notifications (send_after > now).
	ListAllFuture(ctx context.Context, now time.Time) ([]*model.Notification, error)
	ListFuture(ctx context.Context, now time.Time, page model.Page) ([]*model.Notification, error)
	ListAllFutureForUser(ctx context.Context, userID string, now time.Time) ([]*model.Notification, error)
	ListFutureForUser(ctx context.Context, userID string, now time.Time, page model.Page) ([]*model.Notification, error)

	// StoreContextUsed records which payload and delivery adapter were
	// actually used for a send attempt. Best-effort metadata, no status
	// precondition.
	StoreContextUsed(ctx context.Context, id uuid.UUID, contextUsed model.JSONMap, adapterUsed string) error

	// UserEmail resolves the owning user's email address.
	UserEmail(ctx context.Context, id uuid.UUID) (string, error)
}
