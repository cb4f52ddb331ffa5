package handler

import (
	"net/http"

	"labbook/internal/notifications/service"
	"labbook/pkg/auth"
	apperrors "labbook/pkg/errors"
	httputil "labbook/pkg/http"
	"labbook/pkg/logger"
	"labbook/pkg/middleware"
	"labbook/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type NotificationHandler struct {
	service service.NotificationService
	log     *logger.Logger
}

func NewNotificationHandler(service service.NotificationService, log *logger.Logger) *NotificationHandler {
	return &NotificationHandler{
		service: service,
		log:     log,
	}
}

type unreadMeta struct {
	UnreadCount int64 `json:"unread_count"`
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	principal, ok := h.principal(w, r, "List")
	if !ok {
		return
	}

	page, limit, err := httputil.ExtractPagination(r)
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	filter := model.NotificationFilter{
		UserID:     principal.ID,
		UnreadOnly: httputil.QueryBool(r, "unreadOnly"),
		Type:       model.NotificationType(r.URL.Query().Get("type")),
		Page:       page,
		Limit:      limit,
	}

	notifications, total, unread, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	if err := httputil.WritePaginated(w, notifications, page, limit, total, unreadMeta{UnreadCount: unread}); err != nil {
		h.log.Error("failed to write paginated response", "handler", "List", "operation", "WritePaginated", "error", err)
	}
}

func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	principal, ok := h.principal(w, r, "UnreadCount")
	if !ok {
		return
	}

	count, err := h.service.UnreadCount(r.Context(), principal.ID)
	if err != nil {
		h.writeError(w, "UnreadCount", err)
		return
	}

	if err := httputil.WriteSuccess(w, unreadMeta{UnreadCount: count}); err != nil {
		h.log.Error("failed to write success response", "handler", "UnreadCount", "operation", "WriteSuccess", "error", err)
	}
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, ok := h.principal(w, r, "MarkRead")
	if !ok {
		return
	}

	notification, err := h.service.MarkRead(r.Context(), ps.ByName("id"), principal.ID)
	if err != nil {
		h.writeError(w, "MarkRead", err)
		return
	}

	if err := httputil.WriteMessage(w, "Notification marked as read", notification); err != nil {
		h.log.Error("failed to write success response", "handler", "MarkRead", "operation", "WriteMessage", "error", err)
	}
}

func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	principal, ok := h.principal(w, r, "MarkAllRead")
	if !ok {
		return
	}

	updated, err := h.service.MarkAllRead(r.Context(), principal.ID)
	if err != nil {
		h.writeError(w, "MarkAllRead", err)
		return
	}

	if err := httputil.WriteMessage(w, "All notifications marked as read", map[string]int64{"updated": updated}); err != nil {
		h.log.Error("failed to write success response", "handler", "MarkAllRead", "operation", "WriteMessage", "error", err)
	}
}

func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, ok := h.principal(w, r, "Delete")
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), ps.ByName("id"), principal.ID); err != nil {
		h.writeError(w, "Delete", err)
		return
	}

	if err := httputil.WriteMessage(w, "Notification deleted successfully", nil); err != nil {
		h.log.Error("failed to write success response", "handler", "Delete", "operation", "WriteMessage", "error", err)
	}
}

func (h *NotificationHandler) Announce(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	principal, ok := h.principal(w, r, "Announce")
	if !ok {
		return
	}

	var announcement model.Announcement
	if err := httputil.DecodeJSON(r, &announcement); err != nil {
		h.writeError(w, "Announce", err)
		return
	}

	if err := h.service.Announce(r.Context(), &announcement, principal); err != nil {
		h.writeError(w, "Announce", err)
		return
	}

	if err := httputil.WriteJSON(w, http.StatusAccepted, httputil.Envelope{Success: true, Message: "Announcement queued for delivery"}); err != nil {
		h.log.Error("failed to write accepted response", "handler", "Announce", "operation", "WriteJSON", "error", err)
	}
}

func (h *NotificationHandler) Stats(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.writeError(w, "Stats", err)
		return
	}

	if err := httputil.WriteSuccess(w, stats); err != nil {
		h.log.Error("failed to write success response", "handler", "Stats", "operation", "WriteSuccess", "error", err)
	}
}

func (h *NotificationHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/notifications", h.List)
	router.GET("/api/v1/notifications/unread-count", h.UnreadCount)
	router.PUT("/api/v1/notifications/read-all", h.MarkAllRead)
	router.GET("/api/v1/notifications/stats", middleware.AdminOnly(h.Stats))
	router.POST("/api/v1/notifications/announcements", middleware.AdminOnly(h.Announce))
	router.PUT("/api/v1/notifications/id/:id/read", h.MarkRead)
	router.DELETE("/api/v1/notifications/id/:id", h.Delete)
}

func (h *NotificationHandler) principal(w http.ResponseWriter, r *http.Request, handler string) (auth.Principal, bool) {
	p, ok := auth.FromContext(r.Context())
	if !ok {
		h.writeError(w, handler, apperrors.Unauthorized("Authentication required"))
		return auth.Principal{}, false
	}
	return p, true
}

func (h *NotificationHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}
