package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"labbook/pkg/auth"
	apperrors "labbook/pkg/errors"
	"labbook/pkg/logger"
	"labbook/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type mockReportService struct {
	generateFunc    func(ctx context.Context, req *model.ReportRequest, p auth.Principal) (*model.Report, error)
	utilizationFunc func(ctx context.Context, startDate, endDate string) (*model.UtilizationReport, error)
	getFunc         func(ctx context.Context, id string) (*model.Report, error)
	deleteFunc      func(ctx context.Context, id string, p auth.Principal) error
	statsFunc       func(ctx context.Context, from, to *time.Time) (*model.ReportStats, error)
}

func (m *mockReportService) BookingStats(ctx context.Context, from, to *time.Time) (*model.BookingStats, error) {
	return &model.BookingStats{}, nil
}

func (m *mockReportService) LabUtilization(ctx context.Context, startDate, endDate string) (*model.UtilizationReport, error) {
	if m.utilizationFunc != nil {
		return m.utilizationFunc(ctx, startDate, endDate)
	}
	return &model.UtilizationReport{}, nil
}

func (m *mockReportService) GenerateBookingSummary(ctx context.Context, req *model.ReportRequest, p auth.Principal) (*model.Report, error) {
	if m.generateFunc != nil {
		return m.generateFunc(ctx, req, p)
	}
	return &model.Report{ID: "r1", Type: model.ReportBookingSummary}, nil
}

func (m *mockReportService) GenerateLabUtilization(ctx context.Context, req *model.ReportRequest, p auth.Principal) (*model.Report, error) {
	return &model.Report{ID: "r2", Type: model.ReportLabUtilization}, nil
}

func (m *mockReportService) GenerateUserActivity(ctx context.Context, req *model.ReportRequest, p auth.Principal) (*model.Report, error) {
	if m.generateFunc != nil {
		return m.generateFunc(ctx, req, p)
	}
	return &model.Report{ID: "r3", Type: model.ReportUserActivity}, nil
}

func (m *mockReportService) DeleteReport(ctx context.Context, id string, p auth.Principal) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id, p)
	}
	return nil
}

func (m *mockReportService) ReportStats(ctx context.Context, from, to *time.Time) (*model.ReportStats, error) {
	if m.statsFunc != nil {
		return m.statsFunc(ctx, from, to)
	}
	return &model.ReportStats{}, nil
}

func (m *mockReportService) GetReport(ctx context.Context, id string) (*model.Report, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, id)
	}
	return &model.Report{ID: id}, nil
}

func (m *mockReportService) ListReports(ctx context.Context, page, limit int) ([]*model.Report, int64, error) {
	return []*model.Report{{ID: "r1"}, {ID: "r2"}}, 12, nil
}

var (
	admin   = &auth.Principal{ID: "a1", Role: model.RoleAdmin}
	teacher = &auth.Principal{ID: "t1", Role: model.RoleTeacher}
)

func serve(svc *mockReportService, method, target, body string, principal *auth.Principal) *httptest.ResponseRecorder {
	router := httprouter.New()
	NewReportHandler(svc, logger.Discard()).RegisterRoutes(router)

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if principal != nil {
		req = req.WithContext(auth.WithPrincipal(req.Context(), *principal))
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestGenerateBookingSummary(t *testing.T) {
	var got *model.ReportRequest
	var by auth.Principal
	svc := &mockReportService{
		generateFunc: func(ctx context.Context, req *model.ReportRequest, p auth.Principal) (*model.Report, error) {
			got, by = req, p
			return &model.Report{ID: "r1", Status: model.ReportCompleted}, nil
		},
	}

	body := `{"title":"Q1","start_date":"2025-01-01","end_date":"2025-03-31"}`
	rec := serve(svc, http.MethodPost, "/api/v1/reports/booking-summary", body, admin)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if got == nil || got.StartDate != "2025-01-01" || got.EndDate != "2025-03-31" || by.ID != "a1" {
		t.Errorf("unexpected request %+v by %+v", got, by)
	}
}

func TestGenerate_ValidationError(t *testing.T) {
	svc := &mockReportService{
		generateFunc: func(ctx context.Context, req *model.ReportRequest, p auth.Principal) (*model.Report, error) {
			return nil, apperrors.InvalidInput("End date must be on or after start date")
		},
	}

	rec := serve(svc, http.MethodPost, "/api/v1/reports/booking-summary", `{"start_date":"2025-03-01","end_date":"2025-01-01"}`, admin)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestAdminOnly(t *testing.T) {
	routes := []struct{ method, target string }{
		{http.MethodGet, "/api/v1/reports"},
		{http.MethodPost, "/api/v1/reports/booking-summary"},
		{http.MethodPost, "/api/v1/reports/lab-utilization"},
		{http.MethodGet, "/api/v1/reports/utilization?startDate=2025-03-01&endDate=2025-03-31"},
		{http.MethodGet, "/api/v1/reports/id/r1"},
		{http.MethodDelete, "/api/v1/reports/id/r1"},
		{http.MethodGet, "/api/v1/reports/stats"},
		{http.MethodPost, "/api/v1/reports/user-activity"},
	}
	for _, rt := range routes {
		if rec := serve(&mockReportService{}, rt.method, rt.target, "{}", nil); rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: expected 401 without principal, got %d", rt.method, rt.target, rec.Code)
		}
		if rec := serve(&mockReportService{}, rt.method, rt.target, "{}", teacher); rec.Code != http.StatusForbidden {
			t.Errorf("%s %s: expected 403 for teacher, got %d", rt.method, rt.target, rec.Code)
		}
	}
}

func TestList(t *testing.T) {
	rec := serve(&mockReportService{}, http.MethodGet, "/api/v1/reports?page=2&limit=5", "", admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		Data       []model.Report `json:"data"`
		Pagination struct {
			Page  int   `json:"page"`
			Total int64 `json:"total"`
			Pages int64 `json:"pages"`
		} `json:"pagination"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Data) != 2 || body.Pagination.Page != 2 || body.Pagination.Total != 12 || body.Pagination.Pages != 3 {
		t.Errorf("unexpected body %+v", body)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	svc := &mockReportService{
		getFunc: func(ctx context.Context, id string) (*model.Report, error) {
			return nil, apperrors.NotFoundWithID("Report", id)
		},
	}

	rec := serve(svc, http.MethodGet, "/api/v1/reports/id/missing", "", admin)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestUtilization_PassesRange(t *testing.T) {
	var start, end string
	svc := &mockReportService{
		utilizationFunc: func(ctx context.Context, startDate, endDate string) (*model.UtilizationReport, error) {
			start, end = startDate, endDate
			return &model.UtilizationReport{Days: 31}, nil
		},
	}

	rec := serve(svc, http.MethodGet, "/api/v1/reports/utilization?startDate=2025-03-01&endDate=2025-03-31", "", admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if start != "2025-03-01" || end != "2025-03-31" {
		t.Errorf("unexpected range %s..%s", start, end)
	}
}

func TestGenerateUserActivity_PassesFilters(t *testing.T) {
	var got *model.ReportRequest
	svc := &mockReportService{
		generateFunc: func(ctx context.Context, req *model.ReportRequest, p auth.Principal) (*model.Report, error) {
			got = req
			return &model.Report{ID: "r3", Type: model.ReportUserActivity}, nil
		},
	}

	body := `{"start_date":"2025-03-01","end_date":"2025-03-31","department":"Physics","role":"teacher"}`
	rec := serve(svc, http.MethodPost, "/api/v1/reports/user-activity", body, admin)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if got == nil || got.Department != "Physics" || got.Role != model.RoleTeacher {
		t.Errorf("unexpected request %+v", got)
	}
}

func TestDelete(t *testing.T) {
	var deleted string
	svc := &mockReportService{
		deleteFunc: func(ctx context.Context, id string, p auth.Principal) error {
			if id == "missing" {
				return apperrors.NotFoundWithID("Report", id)
			}
			deleted = id
			return nil
		},
	}

	if rec := serve(svc, http.MethodDelete, "/api/v1/reports/id/r1", "", admin); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if deleted != "r1" {
		t.Errorf("expected r1 deleted, got %q", deleted)
	}
	if rec := serve(svc, http.MethodDelete, "/api/v1/reports/id/missing", "", admin); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestStats(t *testing.T) {
	var from, to *time.Time
	svc := &mockReportService{
		statsFunc: func(ctx context.Context, f, tt *time.Time) (*model.ReportStats, error) {
			from, to = f, tt
			return &model.ReportStats{TotalReports: 4}, nil
		},
	}

	rec := serve(svc, http.MethodGet, "/api/v1/reports/stats?startDate=2025-01-01", "", admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if from == nil || from.Format("2006-01-02") != "2025-01-01" || to != nil {
		t.Errorf("unexpected range %v..%v", from, to)
	}

	if rec := serve(svc, http.MethodGet, "/api/v1/reports/stats?endDate=soon", "", admin); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad date, got %d", rec.Code)
	}
}
