package handler

import (
	"context"
	"net/http"

	"labbook/internal/reports/service"
	"labbook/pkg/auth"
	apperrors "labbook/pkg/errors"
	httputil "labbook/pkg/http"
	"labbook/pkg/logger"
	"labbook/pkg/middleware"
	"labbook/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type ReportHandler struct {
	service service.ReportService
	log     *logger.Logger
}

func NewReportHandler(service service.ReportService, log *logger.Logger) *ReportHandler {
	return &ReportHandler{
		service: service,
		log:     log,
	}
}

func (h *ReportHandler) GenerateBookingSummary(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	h.generate(w, r, "GenerateBookingSummary", h.service.GenerateBookingSummary)
}

func (h *ReportHandler) GenerateLabUtilization(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	h.generate(w, r, "GenerateLabUtilization", h.service.GenerateLabUtilization)
}

func (h *ReportHandler) GenerateUserActivity(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	h.generate(w, r, "GenerateUserActivity", h.service.GenerateUserActivity)
}

func (h *ReportHandler) generate(
	w http.ResponseWriter,
	r *http.Request,
	handler string,
	run func(ctx context.Context, req *model.ReportRequest, principal auth.Principal) (*model.Report, error),
) {
	principal, ok := h.principal(w, r, handler)
	if !ok {
		return
	}

	var req model.ReportRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, handler, err)
		return
	}

	report, err := run(r.Context(), &req, principal)
	if err != nil {
		h.writeError(w, handler, err)
		return
	}

	if err := httputil.WriteCreated(w, "Report generated successfully", report); err != nil {
		h.log.Error("failed to write created response", "handler", handler, "operation", "WriteCreated", "error", err)
	}
}

func (h *ReportHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	page, limit, err := httputil.ExtractPagination(r)
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	reports, total, err := h.service.ListReports(r.Context(), page, limit)
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	if err := httputil.WritePaginated(w, reports, page, limit, total, nil); err != nil {
		h.log.Error("failed to write paginated response", "handler", "List", "operation", "WritePaginated", "error", err)
	}
}

func (h *ReportHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	report, err := h.service.GetReport(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, report); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

// Utilization computes the utilization aggregate on the fly without storing a report.
func (h *ReportHandler) Utilization(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	query := r.URL.Query()

	report, err := h.service.LabUtilization(r.Context(), query.Get("startDate"), query.Get("endDate"))
	if err != nil {
		h.writeError(w, "Utilization", err)
		return
	}

	if err := httputil.WriteSuccess(w, report); err != nil {
		h.log.Error("failed to write success response", "handler", "Utilization", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReportHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, ok := h.principal(w, r, "Delete")
	if !ok {
		return
	}

	if err := h.service.DeleteReport(r.Context(), ps.ByName("id"), principal); err != nil {
		h.writeError(w, "Delete", err)
		return
	}

	if err := httputil.WriteMessage(w, "Report deleted successfully", nil); err != nil {
		h.log.Error("failed to write success response", "handler", "Delete", "operation", "WriteMessage", "error", err)
	}
}

func (h *ReportHandler) Stats(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
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

	stats, err := h.service.ReportStats(r.Context(), from, to)
	if err != nil {
		h.writeError(w, "Stats", err)
		return
	}

	if err := httputil.WriteSuccess(w, stats); err != nil {
		h.log.Error("failed to write success response", "handler", "Stats", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReportHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/reports", middleware.AdminOnly(h.List))
	router.GET("/api/v1/reports/stats", middleware.AdminOnly(h.Stats))
	router.POST("/api/v1/reports/booking-summary", middleware.AdminOnly(h.GenerateBookingSummary))
	router.POST("/api/v1/reports/lab-utilization", middleware.AdminOnly(h.GenerateLabUtilization))
	router.POST("/api/v1/reports/user-activity", middleware.AdminOnly(h.GenerateUserActivity))
	router.GET("/api/v1/reports/utilization", middleware.AdminOnly(h.Utilization))
	router.GET("/api/v1/reports/id/:id", middleware.AdminOnly(h.GetByID))
	router.DELETE("/api/v1/reports/id/:id", middleware.AdminOnly(h.Delete))
}

func (h *ReportHandler) principal(w http.ResponseWriter, r *http.Request, handler string) (auth.Principal, bool) {
	p, ok := auth.FromContext(r.Context())
	if !ok {
		h.writeError(w, handler, apperrors.Unauthorized("Authentication required"))
		return auth.Principal{}, false
	}
	return p, true
}

func (h *ReportHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}
