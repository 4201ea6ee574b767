package notification

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/vintalabs/notification-store/internal/handler"
	"github.com/vintalabs/notification-store/internal/model"
	"github.com/vintalabs/notification-store/internal/service/notification"
)

type Handler struct {
	service notification.Service
}

func NewHandler(service notification.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	notifications := r.Group("/notifications")
	{
		notifications.POST("", h.Create)
		notifications.GET("/pending", h.ListPending)
		notifications.GET("/future", h.ListFuture)
		notifications.GET("/:id", h.Get)
		notifications.PATCH("/:id", h.Update)
		notifications.POST("/:id/cancel", h.Cancel)
		notifications.POST("/:id/sent", h.MarkSent)
		notifications.POST("/:id/failed", h.MarkFailed)
		notifications.POST("/:id/read", h.MarkRead)
		notifications.POST("/:id/context-used", h.StoreContextUsed)
		notifications.GET("/:id/user-email", h.UserEmail)
	}

	users := r.Group("/users/:user_id/notifications")
	{
		users.GET("/unread", h.ListUnreadForUser)
		users.GET("/future", h.ListFutureForUser)
	}
}

func (h *Handler) Create(c *gin.Context) {
	var params model.CreateNotificationParams
	if err := c.ShouldBindJSON(&params); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	created, err := h.service.Persist(c.Request.Context(), &params)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(created))
}

func (h *Handler) Get(c *gin.Context) {
	id, ok := h.notificationID(c)
	if !ok {
		return
	}

	record, err := h.service.Get(c.Request.Context(), id, false)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(record))
}

func (h *Handler) Update(c *gin.Context) {
	id, ok := h.notificationID(c)
	if !ok {
		return
	}

	var params model.UpdateNotificationParams
	if err := c.ShouldBindJSON(&params); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	record, err := h.service.Update(c.Request.Context(), id, &params)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(record))
}

func (h *Handler) Cancel(c *gin.Context) {
	id, ok := h.notificationID(c)
	if !ok {
		return
	}

	if err := h.service.Cancel(c.Request.Context(), id); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(nil))
}

func (h *Handler) MarkSent(c *gin.Context) {
	h.transition(c, h.service.MarkPendingAsSent)
}

func (h *Handler) MarkFailed(c *gin.Context) {
	h.transition(c, h.service.MarkPendingAsFailed)
}

func (h *Handler) MarkRead(c *gin.Context) {
	h.transition(c, h.service.MarkSentAsRead)
}

type storeContextUsedRequest struct {
	ContextUsed model.JSONMap `json:"context_used"`
	AdapterUsed string        `json:"adapter_used" binding:"required"`
}

func (h *Handler) StoreContextUsed(c *gin.Context) {
	id, ok := h.notificationID(c)
	if !ok {
		return
	}

	var req storeContextUsedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	if err := h.service.StoreContextUsed(c.Request.Context(), id, req.ContextUsed, req.AdapterUsed); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(nil))
}

func (h *Handler) UserEmail(c *gin.Context) {
	id, ok := h.notificationID(c)
	if !ok {
		return
	}

	email, err := h.service.UserEmail(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"email": email}))
}

// ListPending pages over pending notifications. Without a page parameter
// it returns the ready-to-dispatch listing (send_after null or elapsed).
func (h *Handler) ListPending(c *gin.Context) {
	if c.Query("page") == "" && c.Query("page_size") == "" {
		records, err := h.service.ListAllPending(c.Request.Context())
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, handler.NewSuccessResponse(handler.ListResponse{Items: records}))
		return
	}

	page, ok := h.page(c)
	if !ok {
		return
	}

	records, err := h.service.ListPending(c.Request.Context(), page)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(handler.ListResponse{
		Items:    records,
		Page:     page.Number,
		PageSize: page.Size,
	}))
}

func (h *Handler) ListFuture(c *gin.Context) {
	if c.Query("page") == "" && c.Query("page_size") == "" {
		records, err := h.service.ListAllFuture(c.Request.Context())
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, handler.NewSuccessResponse(handler.ListResponse{Items: records}))
		return
	}

	page, ok := h.page(c)
	if !ok {
		return
	}

	records, err := h.service.ListFuture(c.Request.Context(), page)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(handler.ListResponse{
		Items:    records,
		Page:     page.Number,
		PageSize: page.Size,
	}))
}

func (h *Handler) ListUnreadForUser(c *gin.Context) {
	page, ok := h.page(c)
	if !ok {
		return
	}

	records, err := h.service.ListInAppUnread(c.Request.Context(), c.Param("user_id"), page)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(handler.ListResponse{
		Items:    records,
		Page:     page.Number,
		PageSize: page.Size,
	}))
}

func (h *Handler) ListFutureForUser(c *gin.Context) {
	page, ok := h.page(c)
	if !ok {
		return
	}

	records, err := h.service.ListFutureForUser(c.Request.Context(), c.Param("user_id"), page)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(handler.ListResponse{
		Items:    records,
		Page:     page.Number,
		PageSize: page.Size,
	}))
}

func (h *Handler) transition(c *gin.Context, op func(ctx context.Context, id uuid.UUID) (*model.Notification, error)) {
	id, ok := h.notificationID(c)
	if !ok {
		return
	}

	record, err := op(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(record))
}

func (h *Handler) notificationID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid notification ID"))
		return uuid.Nil, false
	}
	return id, true
}

type pageQuery struct {
	Page     int `form:"page"`
	PageSize int `form:"page_size"`
}

func (h *Handler) page(c *gin.Context) (model.Page, bool) {
	var q pageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid pagination parameters"))
		return model.Page{}, false
	}
	return model.Page{Number: q.Page, Size: q.PageSize}, true
}
