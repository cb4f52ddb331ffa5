package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apperrors "labbook/pkg/errors"
)

func TestWriteError_AppError(t *testing.T) {
	rec := httptest.NewRecorder()

	if err := WriteError(rec, apperrors.SlotConflict("Time slot conflicts with an existing booking", nil)); err != nil {
		t.Fatalf("WriteError: %v", err)
	}

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["success"] != false {
		t.Errorf("expected success=false, got %v", body["success"])
	}
	if body["code"] != apperrors.CodeSlotConflict {
		t.Errorf("expected code %s, got %v", apperrors.CodeSlotConflict, body["code"])
	}
}

func TestWriteError_PlainErrorIsInternal(t *testing.T) {
	rec := httptest.NewRecorder()

	_ = WriteError(rec, errors.New("mongo exploded"))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "mongo exploded") {
		t.Error("internal error text must not be exposed")
	}
}

func TestWritePaginated(t *testing.T) {
	rec := httptest.NewRecorder()

	_ = WritePaginated(rec, []string{"a", "b"}, 2, 2, 5, nil)

	var body struct {
		Success    bool       `json:"success"`
		Count      int        `json:"count"`
		Pagination Pagination `json:"pagination"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Success || body.Count != 2 {
		t.Errorf("unexpected envelope %+v", body)
	}
	if body.Pagination.Pages != 3 || body.Pagination.Total != 5 || body.Pagination.Page != 2 {
		t.Errorf("unexpected pagination %+v", body.Pagination)
	}
}

func TestWriteList_NilBecomesEmptyArray(t *testing.T) {
	rec := httptest.NewRecorder()

	var items []int
	_ = WriteList(rec, items)

	if !strings.Contains(rec.Body.String(), `"data":[]`) {
		t.Errorf("expected empty array, got %s", rec.Body.String())
	}
}

func TestExtractPagination(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantPage  int
		wantLimit int
		wantErr   bool
	}{
		{"defaults", "", 1, 10, false},
		{"explicit", "?page=3&limit=25", 3, 25, false},
		{"limit capped", "?limit=1000", 1, 100, false},
		{"negative page", "?page=-2", 1, 10, false},
		{"bad limit", "?limit=abc", 0, 0, true},
		{"bad page", "?page=x", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/"+tt.query, nil)
			page, limit, err := ExtractPagination(r)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if page != tt.wantPage || limit != tt.wantLimit {
				t.Errorf("got page=%d limit=%d, want %d/%d", page, limit, tt.wantPage, tt.wantLimit)
			}
		})
	}
}

func TestSkip(t *testing.T) {
	if got := Skip(3, 10); got != 20 {
		t.Errorf("expected 20, got %d", got)
	}
	if got := Skip(0, 10); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Name string `json:"name"`
	}

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x"}`))
	if err := DecodeJSON(r, &dst); err != nil || dst.Name != "x" {
		t.Errorf("unexpected result %v %+v", err, dst)
	}

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"other":1}`))
	if err := DecodeJSON(r, &dst); !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
		t.Errorf("expected invalid input for unknown field, got %v", err)
	}

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(``))
	if err := DecodeJSON(r, &dst); !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
		t.Errorf("expected invalid input for empty body, got %v", err)
	}
}
