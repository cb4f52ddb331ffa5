package handler

import (
	"net/http"
	"strconv"

	"labbook/internal/labs/service"
	apperrors "labbook/pkg/errors"
	httputil "labbook/pkg/http"
	"labbook/pkg/logger"
	"labbook/pkg/middleware"
	"labbook/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type LabHandler struct {
	service service.LabService
	log     *logger.Logger
}

func NewLabHandler(service service.LabService, log *logger.Logger) *LabHandler {
	return &LabHandler{
		service: service,
		log:     log,
	}
}

type statusRequest struct {
	IsActive *bool `json:"is_active"`
}

func (h *LabHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var lab model.Lab
	if err := httputil.DecodeJSON(r, &lab); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := h.service.Create(r.Context(), &lab); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, "Lab created successfully", &lab); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *LabHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	filter, err := parseFilter(r)
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	labs, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	if err := httputil.WritePaginated(w, labs, filter.Page, filter.Limit, total, nil); err != nil {
		h.log.Error("failed to write paginated response", "handler", "List", "operation", "WritePaginated", "error", err)
	}
}

func (h *LabHandler) Available(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	query := r.URL.Query()

	labs, err := h.service.FindAvailable(r.Context(),
		query.Get("date"),
		query.Get("startTime"),
		query.Get("endTime"),
	)
	if err != nil {
		h.writeError(w, "Available", err)
		return
	}

	if err := httputil.WriteList(w, labs); err != nil {
		h.log.Error("failed to write list response", "handler", "Available", "operation", "WriteList", "error", err)
	}
}

func (h *LabHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	details, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, details); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *LabHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var updates model.LabUpdate
	if err := httputil.DecodeJSON(r, &updates); err != nil {
		h.writeError(w, "Update", err)
		return
	}

	lab, err := h.service.Update(r.Context(), ps.ByName("id"), &updates)
	if err != nil {
		h.writeError(w, "Update", err)
		return
	}

	if err := httputil.WriteMessage(w, "Lab updated successfully", lab); err != nil {
		h.log.Error("failed to write success response", "handler", "Update", "operation", "WriteMessage", "error", err)
	}
}

func (h *LabHandler) SetStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req statusRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "SetStatus", err)
		return
	}
	if req.IsActive == nil {
		h.writeError(w, "SetStatus", apperrors.InvalidInput("is_active is required"))
		return
	}

	lab, err := h.service.SetStatus(r.Context(), ps.ByName("id"), *req.IsActive)
	if err != nil {
		h.writeError(w, "SetStatus", err)
		return
	}

	message := "Lab activated successfully"
	if !lab.IsActive {
		message = "Lab deactivated successfully"
	}
	if err := httputil.WriteMessage(w, message, lab); err != nil {
		h.log.Error("failed to write success response", "handler", "SetStatus", "operation", "WriteMessage", "error", err)
	}
}

func (h *LabHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.service.Delete(r.Context(), ps.ByName("id")); err != nil {
		h.writeError(w, "Delete", err)
		return
	}

	if err := httputil.WriteMessage(w, "Lab deleted successfully", nil); err != nil {
		h.log.Error("failed to write success response", "handler", "Delete", "operation", "WriteMessage", "error", err)
	}
}

func (h *LabHandler) Stats(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.writeError(w, "Stats", err)
		return
	}

	if err := httputil.WriteSuccess(w, stats); err != nil {
		h.log.Error("failed to write success response", "handler", "Stats", "operation", "WriteSuccess", "error", err)
	}
}

func (h *LabHandler) AddEquipment(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var item model.Equipment
	if err := httputil.DecodeJSON(r, &item); err != nil {
		h.writeError(w, "AddEquipment", err)
		return
	}

	lab, err := h.service.AddEquipment(r.Context(), ps.ByName("id"), &item)
	if err != nil {
		h.writeError(w, "AddEquipment", err)
		return
	}

	if err := httputil.WriteMessage(w, "Equipment added successfully", lab); err != nil {
		h.log.Error("failed to write success response", "handler", "AddEquipment", "operation", "WriteMessage", "error", err)
	}
}

func (h *LabHandler) UpdateEquipment(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var update model.EquipmentUpdate
	if err := httputil.DecodeJSON(r, &update); err != nil {
		h.writeError(w, "UpdateEquipment", err)
		return
	}

	lab, err := h.service.UpdateEquipment(r.Context(), ps.ByName("id"), ps.ByName("name"), &update)
	if err != nil {
		h.writeError(w, "UpdateEquipment", err)
		return
	}

	if err := httputil.WriteMessage(w, "Equipment updated successfully", lab); err != nil {
		h.log.Error("failed to write success response", "handler", "UpdateEquipment", "operation", "WriteMessage", "error", err)
	}
}

func (h *LabHandler) RemoveEquipment(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	lab, err := h.service.RemoveEquipment(r.Context(), ps.ByName("id"), ps.ByName("name"))
	if err != nil {
		h.writeError(w, "RemoveEquipment", err)
		return
	}

	if err := httputil.WriteMessage(w, "Equipment removed successfully", lab); err != nil {
		h.log.Error("failed to write success response", "handler", "RemoveEquipment", "operation", "WriteMessage", "error", err)
	}
}

func (h *LabHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/labs", h.List)
	router.POST("/api/v1/labs", middleware.AdminOnly(h.Create))
	router.GET("/api/v1/labs/available", h.Available)
	router.GET("/api/v1/labs/stats", h.Stats)
	router.GET("/api/v1/labs/id/:id", h.GetByID)
	router.PUT("/api/v1/labs/id/:id", middleware.AdminOnly(h.Update))
	router.DELETE("/api/v1/labs/id/:id", middleware.AdminOnly(h.Delete))
	router.PUT("/api/v1/labs/id/:id/status", middleware.AdminOnly(h.SetStatus))
	router.POST("/api/v1/labs/id/:id/equipment", middleware.AdminOnly(h.AddEquipment))
	router.PUT("/api/v1/labs/id/:id/equipment/:name", middleware.AdminOnly(h.UpdateEquipment))
	router.DELETE("/api/v1/labs/id/:id/equipment/:name", middleware.AdminOnly(h.RemoveEquipment))
}

func (h *LabHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func parseFilter(r *http.Request) (model.LabFilter, error) {
	page, limit, err := httputil.ExtractPagination(r)
	if err != nil {
		return model.LabFilter{}, err
	}

	query := r.URL.Query()
	filter := model.LabFilter{
		Search:   query.Get("search"),
		Building: query.Get("building"),
		Facility: query.Get("facility"),
		Sort:     query.Get("sort"),
		Page:     page,
		Limit:    limit,
	}

	if raw := query.Get("isActive"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			return model.LabFilter{}, apperrors.InvalidInput("invalid isActive parameter: " + raw)
		}
		filter.IsActive = &active
	}
	if raw := query.Get("minCapacity"); raw != "" {
		capacity, err := strconv.Atoi(raw)
		if err != nil {
			return model.LabFilter{}, apperrors.InvalidInput("invalid minCapacity parameter: " + raw)
		}
		filter.MinCapacity = capacity
	}

	return filter, nil
}
