package handler

import (
	"context"
	"net/http"
	"time"

	"labbook/internal/bookings/service"
	"labbook/pkg/auth"
	apperrors "labbook/pkg/errors"
	httputil "labbook/pkg/http"
	"labbook/pkg/logger"
	"labbook/pkg/middleware"
	"labbook/pkg/model"

	"github.com/julienschmidt/httprouter"
)

// StatsProvider answers the admin statistics endpoint.
type StatsProvider interface {
	BookingStats(ctx context.Context, from, to *time.Time) (*model.BookingStats, error)
}

type BookingHandler struct {
	service service.BookingService
	stats   StatsProvider
	log     *logger.Logger
}

func NewBookingHandler(service service.BookingService, stats StatsProvider, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		stats:   stats,
		log:     log,
	}
}

type adminNotesRequest struct {
	AdminNotes string `json:"admin_notes"`
}

type cancelRequest struct {
	CancellationReason string `json:"cancellation_reason"`
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	principal, ok := h.principal(w, r, "Create")
	if !ok {
		return
	}

	var input model.BookingInput
	if err := httputil.DecodeJSON(r, &input); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	booking, err := h.service.Create(r.Context(), &input, principal)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, "Booking created successfully and pending approval", booking); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	principal, ok := h.principal(w, r, "List")
	if !ok {
		return
	}

	filter, err := parseFilter(r)
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	bookings, total, err := h.service.List(r.Context(), filter, principal)
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	if err := httputil.WritePaginated(w, bookings, filter.Page, filter.Limit, total, nil); err != nil {
		h.log.Error("failed to write paginated response", "handler", "List", "operation", "WritePaginated", "error", err)
	}
}

func (h *BookingHandler) ListMine(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	principal, ok := h.principal(w, r, "ListMine")
	if !ok {
		return
	}

	bookings, err := h.service.ListMine(r.Context(), principal)
	if err != nil {
		h.writeError(w, "ListMine", err)
		return
	}

	if err := httputil.WriteList(w, bookings); err != nil {
		h.log.Error("failed to write list response", "handler", "ListMine", "operation", "WriteList", "error", err)
	}
}

func (h *BookingHandler) ListForLab(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	from, err := httputil.QueryDate(r, "startDate")
	if err != nil {
		h.writeError(w, "ListForLab", err)
		return
	}
	to, err := httputil.QueryDate(r, "endDate")
	if err != nil {
		h.writeError(w, "ListForLab", err)
		return
	}

	bookings, err := h.service.ListForLab(r.Context(), ps.ByName("labId"), from, to)
	if err != nil {
		h.writeError(w, "ListForLab", err)
		return
	}

	if err := httputil.WriteList(w, bookings); err != nil {
		h.log.Error("failed to write list response", "handler", "ListForLab", "operation", "WriteList", "error", err)
	}
}

func (h *BookingHandler) Availability(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	query := r.URL.Query()

	availability, err := h.service.CheckAvailability(r.Context(),
		query.Get("lab"),
		query.Get("date"),
		query.Get("startTime"),
		query.Get("endTime"),
	)
	if err != nil {
		h.writeError(w, "Availability", err)
		return
	}

	if err := httputil.WriteSuccess(w, availability); err != nil {
		h.log.Error("failed to write success response", "handler", "Availability", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) Stats(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	from, err := httputil.QueryDate(r, "startDate")
	if err != nil {
		h.writeError(w, "Stats", err)
		return
	}
	to, err := httputil.QueryDate(r, "endDate")
	if err != nil {
		h.writeError(w, "Stats", err)
		return
	}

	stats, err := h.stats.BookingStats(r.Context(), from, to)
	if err != nil {
		h.writeError(w, "Stats", err)
		return
	}

	if err := httputil.WriteSuccess(w, stats); err != nil {
		h.log.Error("failed to write success response", "handler", "Stats", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, ok := h.principal(w, r, "GetByID")
	if !ok {
		return
	}

	booking, err := h.service.Get(r.Context(), ps.ByName("id"), principal)
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, ok := h.principal(w, r, "Update")
	if !ok {
		return
	}

	var patch model.BookingPatch
	if err := httputil.DecodeJSON(r, &patch); err != nil {
		h.writeError(w, "Update", err)
		return
	}

	booking, err := h.service.Update(r.Context(), ps.ByName("id"), &patch, principal)
	if err != nil {
		h.writeError(w, "Update", err)
		return
	}

	if err := httputil.WriteMessage(w, "Booking updated successfully", booking); err != nil {
		h.log.Error("failed to write success response", "handler", "Update", "operation", "WriteMessage", "error", err)
	}
}

func (h *BookingHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, ok := h.principal(w, r, "Delete")
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), ps.ByName("id"), principal); err != nil {
		h.writeError(w, "Delete", err)
		return
	}

	if err := httputil.WriteMessage(w, "Booking deleted successfully", nil); err != nil {
		h.log.Error("failed to write success response", "handler", "Delete", "operation", "WriteMessage", "error", err)
	}
}

func (h *BookingHandler) Approve(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, ok := h.principal(w, r, "Approve")
	if !ok {
		return
	}

	var req adminNotesRequest
	if err := httputil.DecodeOptionalJSON(r, &req); err != nil {
		h.writeError(w, "Approve", err)
		return
	}

	booking, err := h.service.Approve(r.Context(), ps.ByName("id"), req.AdminNotes, principal)
	if err != nil {
		h.writeError(w, "Approve", err)
		return
	}

	if err := httputil.WriteMessage(w, "Booking approved successfully", booking); err != nil {
		h.log.Error("failed to write success response", "handler", "Approve", "operation", "WriteMessage", "error", err)
	}
}

func (h *BookingHandler) Reject(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, ok := h.principal(w, r, "Reject")
	if !ok {
		return
	}

	var req adminNotesRequest
	if err := httputil.DecodeOptionalJSON(r, &req); err != nil {
		h.writeError(w, "Reject", err)
		return
	}

	booking, err := h.service.Reject(r.Context(), ps.ByName("id"), req.AdminNotes, principal)
	if err != nil {
		h.writeError(w, "Reject", err)
		return
	}

	if err := httputil.WriteMessage(w, "Booking rejected successfully", booking); err != nil {
		h.log.Error("failed to write success response", "handler", "Reject", "operation", "WriteMessage", "error", err)
	}
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, ok := h.principal(w, r, "Cancel")
	if !ok {
		return
	}

	var req cancelRequest
	if err := httputil.DecodeOptionalJSON(r, &req); err != nil {
		h.writeError(w, "Cancel", err)
		return
	}

	booking, err := h.service.Cancel(r.Context(), ps.ByName("id"), req.CancellationReason, principal)
	if err != nil {
		h.writeError(w, "Cancel", err)
		return
	}

	if err := httputil.WriteMessage(w, "Booking cancelled successfully", booking); err != nil {
		h.log.Error("failed to write success response", "handler", "Cancel", "operation", "WriteMessage", "error", err)
	}
}

func (h *BookingHandler) Complete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, ok := h.principal(w, r, "Complete")
	if !ok {
		return
	}

	booking, err := h.service.Complete(r.Context(), ps.ByName("id"), principal)
	if err != nil {
		h.writeError(w, "Complete", err)
		return
	}

	if err := httputil.WriteMessage(w, "Booking completed successfully", booking); err != nil {
		h.log.Error("failed to write success response", "handler", "Complete", "operation", "WriteMessage", "error", err)
	}
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/bookings", middleware.AdminOnly(h.List))
	router.POST("/api/v1/bookings", h.Create)
	router.GET("/api/v1/bookings/mine", h.ListMine)
	router.GET("/api/v1/bookings/availability", h.Availability)
	router.GET("/api/v1/bookings/stats", middleware.AdminOnly(h.Stats))
	router.GET("/api/v1/bookings/lab/:labId", h.ListForLab)
	router.GET("/api/v1/bookings/id/:id", h.GetByID)
	router.PUT("/api/v1/bookings/id/:id", h.Update)
	router.DELETE("/api/v1/bookings/id/:id", h.Delete)
	router.PUT("/api/v1/bookings/id/:id/approve", middleware.AdminOnly(h.Approve))
	router.PUT("/api/v1/bookings/id/:id/reject", middleware.AdminOnly(h.Reject))
	router.PUT("/api/v1/bookings/id/:id/cancel", h.Cancel)
	router.PUT("/api/v1/bookings/id/:id/complete", middleware.AdminOnly(h.Complete))
}

func (h *BookingHandler) principal(w http.ResponseWriter, r *http.Request, handler string) (auth.Principal, bool) {
	p, ok := auth.FromContext(r.Context())
	if !ok {
		h.writeError(w, handler, apperrors.Unauthorized("Authentication required"))
		return auth.Principal{}, false
	}
	return p, true
}

func (h *BookingHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func parseFilter(r *http.Request) (model.BookingFilter, error) {
	page, limit, err := httputil.ExtractPagination(r)
	if err != nil {
		return model.BookingFilter{}, err
	}
	from, err := httputil.QueryDate(r, "startDate")
	if err != nil {
		return model.BookingFilter{}, err
	}
	to, err := httputil.QueryDate(r, "endDate")
	if err != nil {
		return model.BookingFilter{}, err
	}

	query := r.URL.Query()
	filter := model.BookingFilter{
		LabID:    query.Get("lab"),
		UserID:   query.Get("user"),
		DateFrom: from,
		DateTo:   to,
		Search:   query.Get("search"),
		Sort:     query.Get("sort"),
		Page:     page,
		Limit:    limit,
	}
	for _, status := range httputil.QueryList(r, "status") {
		filter.Statuses = append(filter.Statuses, model.BookingStatus(status))
	}
	return filter, nil
}
