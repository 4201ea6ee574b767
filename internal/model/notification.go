package model

import (
	"time"

	"github.com/google/uuid"
)

// NotificationStatus is the lifecycle state of a notification. Transitions
// are one-directional: PENDING_SEND may advance to SENT, FAILED or
// CANCELLED, and SENT may advance to READ. Nothing else is legal.
type NotificationStatus string

const (
	NotificationStatusPendingSend NotificationStatus = "PENDING_SEND"
	NotificationStatusSent        NotificationStatus = "SENT"
	NotificationStatusFailed      NotificationStatus = "FAILED"
	NotificationStatusRead        NotificationStatus = "READ"
	NotificationStatusCancelled   NotificationStatus = "CANCELLED"
)

// NotificationType identifies the delivery channel a notification targets.
type NotificationType string

const (
	NotificationTypeEmail NotificationType = "EMAIL"
	NotificationTypeSMS   NotificationType = "SMS"
	NotificationTypePush  NotificationType = "PUSH"
	NotificationTypeInApp NotificationType = "IN_APP"
)

// KnownNotificationType reports whether t is part of the channel vocabulary.
func KnownNotificationType(t NotificationType) bool {
	switch t {
	case NotificationTypeEmail, NotificationTypeSMS, NotificationTypePush, NotificationTypeInApp:
		return true
	}
	return false
}

// Notification is the uniform record shape returned by every read and
// write operation, decoupled from the storage row. Adapter bookkeeping
// columns (context_used, adapter_used, adapter_extra_parameters) and row
// timestamps stay private to the store.
type Notification struct {
	ID                uuid.UUID          `json:"id"`
	UserID            string             `json:"user_id"`
	NotificationType  NotificationType   `json:"notification_type"`
	Title             string             `json:"title"`
	BodyTemplate      string             `json:"body_template"`
	ContextName       string             `json:"context_name"`
	ContextKwargs     JSONMap            `json:"context_kwargs"`
	SendAfter         *time.Time         `json:"send_after"`
	SubjectTemplate   string             `json:"subject_template"`
	PreheaderTemplate string             `json:"preheader_template"`
	Status            NotificationStatus `json:"status"`
}

// CreateNotificationParams carries everything needed to persist a new
// notification in PENDING_SEND.
type CreateNotificationParams struct {
	UserID                 string           `json:"user_id" binding:"required"`
	NotificationType       NotificationType `json:"notification_type" binding:"required,notificationtype"`
	Title                  string           `json:"title" binding:"required"`
	BodyTemplate           string           `json:"body_template" binding:"required"`
	ContextName            string           `json:"context_name" binding:"required"`
	ContextKwargs          JSONMap          `json:"context_kwargs"`
	SendAfter              *time.Time       `json:"send_after"`
	SubjectTemplate        string           `json:"subject_template"`
	PreheaderTemplate      string           `json:"preheader_template"`
	AdapterExtraParameters JSONMap          `json:"adapter_extra_parameters"`
}

// UpdateNotificationParams is a partial update of the mutable columns,
// applied only while the notification is still PENDING_SEND. Nil pointer
// fields are left untouched. ClearSendAfter sets send_after to NULL and
// wins over SendAfter.
type UpdateNotificationParams struct {
	Title                  *string    `json:"title"`
	BodyTemplate           *string    `json:"body_template"`
	ContextName            *string    `json:"context_name"`
	ContextKwargs          JSONMap    `json:"context_kwargs"`
	SendAfter              *time.Time `json:"send_after"`
	ClearSendAfter         bool       `json:"clear_send_after"`
	SubjectTemplate        *string    `json:"subject_template"`
	PreheaderTemplate      *string    `json:"preheader_template"`
	AdapterExtraParameters JSONMap    `json:"adapter_extra_parameters"`
}

// Empty reports whether the update touches no column.
func (p *UpdateNotificationParams) Empty() bool {
	return p.Title == nil &&
		p.BodyTemplate == nil &&
		p.ContextName == nil &&
		p.ContextKwargs == nil &&
		p.SendAfter == nil &&
		!p.ClearSendAfter &&
		p.SubjectTemplate == nil &&
		p.PreheaderTemplate == nil &&
		p.AdapterExtraParameters == nil
}

// Page is 1-indexed pagination for list queries.
type Page struct {
	Number int `json:"page"`
	Size   int `json:"page_size"`
}

func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

func (p Page) Valid() bool {
	return p.Number >= 1 && p.Size >= 1
}
