package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Adjaraux/academy-backend/internal/middleware"
	"github.com/Adjaraux/academy-backend/internal/repository"
	"github.com/Adjaraux/academy-backend/internal/services"
)

type CourseHandler struct {
	courseRepo   *repository.CourseRepo
	progressRepo *repository.ProgressRepo
	lockState    *services.LockStateService
}

func NewCourseHandler(courseRepo *repository.CourseRepo, progressRepo *repository.ProgressRepo, lockState *services.LockStateService) *CourseHandler {
	return &CourseHandler{
		courseRepo:   courseRepo,
		progressRepo: progressRepo,
		lockState:    lockState,
	}
}

func (h *CourseHandler) List(w http.ResponseWriter, r *http.Request) {
	courses, err := h.courseRepo.List(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to fetch courses", r))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"courses": courses})
}

// Get returns a course with its chapter/lesson tree annotated per learner:
// is_locked from the lockstate service, is_completed from lesson progress.
func (h *CourseHandler) Get(w http.ResponseWriter, r *http.Request) {
	courseID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid course ID", r))
		return
	}
	userID := middleware.GetUserID(r.Context())

	course, err := h.courseRepo.GetByID(r.Context(), courseID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Course not found", r))
		return
	}

	locks, err := h.lockState.LockState(r.Context(), userID, courseID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to compute lock state", r))
		return
	}
	completed, err := h.progressRepo.CompletedLessons(r.Context(), userID, courseID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load progress", r))
		return
	}

	for _, ch := range course.Chapters {
		for _, l := range ch.Lessons {
			l.IsLocked = locks[l.ID]
			l.IsCompleted = completed[l.ID]
		}
	}

	writeJSON(w, http.StatusOK, course)
}

func (h *CourseHandler) Progress(w http.ResponseWriter, r *http.Request) {
	courseID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid course ID", r))
		return
	}
	userID := middleware.GetUserID(r.Context())

	cp, err := h.progressRepo.CourseProgress(r.Context(), userID, courseID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load course progress", r))
		return
	}
	writeJSON(w, http.StatusOK, cp)
}

// LockState exposes the authoritative lesson lock map for a course.
func (h *CourseHandler) LockState(w http.ResponseWriter, r *http.Request) {
	courseID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid course ID", r))
		return
	}
	userID := middleware.GetUserID(r.Context())

	locks, err := h.lockState.LockState(r.Context(), userID, courseID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to compute lock state", r))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"locks": locks})
}
