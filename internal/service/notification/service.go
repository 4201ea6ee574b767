package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vintalabs/notification-store/internal/model"
	"github.com/vintalabs/notification-store/internal/repository"
	apperrors "github.com/vintalabs/notification-store/pkg/errors"
	"github.com/vintalabs/notification-store/pkg/logger"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// Service is the framework-facing API over the notification store. It
// validates input and delegates; all lifecycle correctness lives in the
// repository's conditional updates.
type Service interface {
	Persist(ctx context.Context, params *model.CreateNotificationParams) (*model.Notification, error)
	Update(ctx context.Context, id uuid.UUID, params *model.UpdateNotificationParams) (*model.Notification, error)
	MarkPendingAsSent(ctx context.Context, id uuid.UUID) (*model.Notification, error)
	MarkPendingAsFailed(ctx context.Context, id uuid.UUID) (*model.Notification, error)
	MarkSentAsRead(ctx context.Context, id uuid.UUID) (*model.Notification, error)
	Cancel(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID, forUpdate bool) (*model.Notification, error)
	ListAllPending(ctx context.Context) ([]*model.Notification, error)
	ListPending(ctx context.Context, page model.Page) ([]*model.Notification, error)
	ListInAppUnread(ctx context.Context, userID string, page model.Page) ([]*model.Notification, error)
	ListFuture(ctx context.Context, page model.Page) ([]*model.Notification, error)
	ListAllFuture(ctx context.Context) ([]*model.Notification, error)
	ListFutureForUser(ctx context.Context, userID string, page model.Page) ([]*model.Notification, error)
	StoreContextUsed(ctx context.Context, id uuid.UUID, contextUsed model.JSONMap, adapterUsed string) error
	UserEmail(ctx context.Context, id uuid.UUID) (string, error)
}

type service struct {
	repo repository.NotificationRepository
	log  *logger.Logger
}

func NewService(repo repository.NotificationRepository, log *logger.Logger) Service {
	return &service{
		repo: repo,
		log:  log,
	}
}

func (s *service) Persist(ctx context.Context, params *model.CreateNotificationParams) (*model.Notification, error) {
	if err := s.validateCreate(params); err != nil {
		return nil, err
	}

	notification, err := s.repo.Create(ctx, params)
	if err != nil {
		return nil, err
	}

	s.log.Info("notification persisted", map[string]interface{}{
		"notification_id": notification.ID.String(),
		"type":            string(notification.NotificationType),
	})
	return notification, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, params *model.UpdateNotificationParams) (*model.Notification, error) {
	notification, err := s.repo.Update(ctx, id, params)
	if err != nil {
		return nil, err
	}

	s.log.Info("notification updated", map[string]interface{}{
		"notification_id": id.String(),
	})
	return notification, nil
}

func (s *service) MarkPendingAsSent(ctx context.Context, id uuid.UUID) (*model.Notification, error) {
	notification, err := s.repo.MarkPendingAsSent(ctx, id)
	if err != nil {
		return nil, err
	}

	s.log.Info("notification marked sent", map[string]interface{}{
		"notification_id": id.String(),
	})
	return notification, nil
}

func (s *service) MarkPendingAsFailed(ctx context.Context, id uuid.UUID) (*model.Notification, error) {
	notification, err := s.repo.MarkPendingAsFailed(ctx, id)
	if err != nil {
		return nil, err
	}

	s.log.Warn("notification marked failed", map[string]interface{}{
		"notification_id": id.String(),
	})
	return notification, nil
}

func (s *service) MarkSentAsRead(ctx context.Context, id uuid.UUID) (*model.Notification, error) {
	return s.repo.MarkSentAsRead(ctx, id)
}

func (s *service) Cancel(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Cancel(ctx, id); err != nil {
		return err
	}

	s.log.Info("notification cancelled", map[string]interface{}{
		"notification_id": id.String(),
	})
	return nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID, forUpdate bool) (*model.Notification, error) {
	return s.repo.Get(ctx, id, forUpdate)
}

func (s *service) ListAllPending(ctx context.Context) ([]*model.Notification, error) {
	return s.repo.ListAllPending(ctx, time.Now().UTC())
}

func (s *service) ListPending(ctx context.Context, page model.Page) ([]*model.Notification, error) {
	page, err := normalizePage(page)
	if err != nil {
		return nil, err
	}
	return s.repo.ListPending(ctx, page)
}

func (s *service) ListInAppUnread(ctx context.Context, userID string, page model.Page) ([]*model.Notification, error) {
	page, err := normalizePage(page)
	if err != nil {
		return nil, err
	}
	return s.repo.ListInAppUnread(ctx, userID, page)
}

func (s *service) ListAllFuture(ctx context.Context) ([]*model.Notification, error) {
	return s.repo.ListAllFuture(ctx, time.Now().UTC())
}

func (s *service) ListFuture(ctx context.Context, page model.Page) ([]*model.Notification, error) {
	page, err := normalizePage(page)
	if err != nil {
		return nil, err
	}
	return s.repo.ListFuture(ctx, time.Now().UTC(), page)
}

func (s *service) ListFutureForUser(ctx context.Context, userID string, page model.Page) ([]*model.Notification, error) {
	page, err := normalizePage(page)
	if err != nil {
		return nil, err
	}
	return s.repo.ListFutureForUser(ctx, userID, time.Now().UTC(), page)
}

func (s *service) StoreContextUsed(ctx context.Context, id uuid.UUID, contextUsed model.JSONMap, adapterUsed string) error {
	if adapterUsed == "" {
		return apperrors.BadRequest("adapter identifier is required", nil)
	}
	return s.repo.StoreContextUsed(ctx, id, contextUsed, adapterUsed)
}

func (s *service) UserEmail(ctx context.Context, id uuid.UUID) (string, error) {
	return s.repo.UserEmail(ctx, id)
}

func (s *service) validateCreate(params *model.CreateNotificationParams) error {
	if params.UserID == "" {
		return apperrors.BadRequest("user id is required", nil)
	}
	if !model.KnownNotificationType(params.NotificationType) {
		return apperrors.BadRequest(fmt.Sprintf("unknown notification type %q", params.NotificationType), nil)
	}
	if params.Title == "" {
		return apperrors.BadRequest("title is required", nil)
	}
	if params.BodyTemplate == "" {
		return apperrors.BadRequest("body template is required", nil)
	}
	if params.ContextName == "" {
		return apperrors.BadRequest("context name is required", nil)
	}
	return nil
}

func normalizePage(page model.Page) (model.Page, error) {
	if page.Number == 0 {
		page.Number = 1
	}
	if page.Size == 0 {
		page.Size = defaultPageSize
	}
	if !page.Valid() {
		return page, apperrors.BadRequest("page and page_size must be positive", nil)
	}
	if page.Size > maxPageSize {
		page.Size = maxPageSize
	}
	return page, nil
}
