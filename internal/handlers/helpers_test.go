package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Adjaraux/academy-backend/internal/models"
	"github.com/Adjaraux/academy-backend/internal/services"
)

func TestHandleServiceError(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedCode   string
	}{
		{"validation", &services.ValidationError{Fields: map[string]string{"x": "bad"}}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"conflict", &services.ConflictError{Message: "nope"}, http.StatusConflict, "CONFLICT"},
		{"not found", &services.NotFoundError{Message: "missing"}, http.StatusNotFound, "NOT_FOUND"},
		{"unauthorized", &services.UnauthorizedError{Message: "who"}, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"forbidden", &services.ForbiddenError{Message: "no"}, http.StatusForbidden, "FORBIDDEN"},
		{"locked lesson", &services.LockedError{Message: "finish the previous lesson first"}, http.StatusForbidden, "LESSON_LOCKED"},
		{"media unavailable", &services.MediaUnavailableError{Message: "no media"}, http.StatusNotFound, "MEDIA_UNAVAILABLE"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("X-Request-ID", "req-123")
			rec := httptest.NewRecorder()

			handleServiceError(rec, req, tc.err)

			if rec.Code != tc.expectedStatus {
				t.Errorf("Expected status %d, got %d", tc.expectedStatus, rec.Code)
			}

			var resp models.ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("Failed to decode error body: %v", err)
			}
			if resp.Error.Code != tc.expectedCode {
				t.Errorf("Expected code %s, got %s", tc.expectedCode, resp.Error.Code)
			}
			if resp.Error.RequestID != "req-123" {
				t.Errorf("Error envelope must echo the request id, got %q", resp.Error.RequestID)
			}
		})
	}
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusCreated, map[string]string{"ok": "yes"})

	if rec.Code != http.StatusCreated {
		t.Errorf("Expected 201, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected application/json, got %s", ct)
	}
}
