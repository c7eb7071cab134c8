package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Adjaraux/academy-backend/internal/middleware"
	"github.com/Adjaraux/academy-backend/internal/models"
	"github.com/Adjaraux/academy-backend/internal/navigation"
	"github.com/Adjaraux/academy-backend/internal/services"
)

type PlayerHandler struct {
	controller *navigation.Controller
	completion *services.CompletionService
}

func NewPlayerHandler(controller *navigation.Controller, completion *services.CompletionService) *PlayerHandler {
	return &PlayerHandler{controller: controller, completion: completion}
}

// Open mounts a lesson for the learner; the previous active lesson is torn
// down.
func (h *PlayerHandler) Open(w http.ResponseWriter, r *http.Request) {
	courseID, err := uuid.Parse(chi.URLParam(r, "courseID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid course ID", r))
		return
	}
	lessonID, err := uuid.Parse(chi.URLParam(r, "lessonID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid lesson ID", r))
		return
	}
	userID := middleware.GetUserID(r.Context())

	view, err := h.controller.SelectLesson(r.Context(), userID, courseID, lessonID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Navigate moves to the adjacent lesson in flattened order.
func (h *PlayerHandler) Navigate(w http.ResponseWriter, r *http.Request) {
	courseID, err := uuid.Parse(chi.URLParam(r, "courseID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid course ID", r))
		return
	}
	lessonID, err := uuid.Parse(chi.URLParam(r, "lessonID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid lesson ID", r))
		return
	}

	var req struct {
		Direction string `json:"direction"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	direction := 0
	switch req.Direction {
	case "prev":
		direction = -1
	case "next":
		direction = 1
	default:
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "direction must be prev or next", r))
		return
	}

	userID := middleware.GetUserID(r.Context())
	view, err := h.controller.SelectAdjacent(r.Context(), userID, courseID, lessonID, direction)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// TimeUpdate feeds a playhead report through the seek guard and the
// in-video quiz scheduler. The response tells the player whether to jump
// back and whether an overlay just opened.
func (h *PlayerHandler) TimeUpdate(w http.ResponseWriter, r *http.Request) {
	lessonID, err := uuid.Parse(chi.URLParam(r, "lessonID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid lesson ID", r))
		return
	}

	var req struct {
		CurrentTime float64 `json:"current_time"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	userID := middleware.GetUserID(r.Context())
	res, err := h.controller.TimeUpdate(userID, lessonID, req.CurrentTime)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// AnswerQuestion submits the active in-video question. On a pass, playback
// resumes and the barrier lifts.
func (h *PlayerHandler) AnswerQuestion(w http.ResponseWriter, r *http.Request) {
	lessonID, err := uuid.Parse(chi.URLParam(r, "lessonID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid lesson ID", r))
		return
	}
	questionID, err := uuid.Parse(chi.URLParam(r, "questionID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid question ID", r))
		return
	}

	var req struct {
		AnswerIDs []string `json:"answer_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	answerIDs := make([]uuid.UUID, 0, len(req.AnswerIDs))
	for _, s := range req.AnswerIDs {
		id, err := uuid.Parse(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid answer ID", r))
			return
		}
		answerIDs = append(answerIDs, id)
	}

	userID := middleware.GetUserID(r.Context())
	result, resumed, err := h.controller.AnswerActiveQuestion(r.Context(), userID, lessonID, questionID, answerIDs)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"result":  result,
		"resumed": resumed,
	})
}

// Heartbeat persists the playback resume point (~15s cadence client-side).
func (h *PlayerHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	lessonID, err := uuid.Parse(chi.URLParam(r, "lessonID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid lesson ID", r))
		return
	}

	var req models.HeartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	userID := middleware.GetUserID(r.Context())
	if err := h.controller.Heartbeat(r.Context(), userID, lessonID, req.CurrentSeconds); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Heartbeat recorded"})
}

// GateStatus reports whether "mark complete" is enabled for the lesson.
func (h *PlayerHandler) GateStatus(w http.ResponseWriter, r *http.Request) {
	lessonID, err := uuid.Parse(chi.URLParam(r, "lessonID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid lesson ID", r))
		return
	}

	userID := middleware.GetUserID(r.Context())
	verdict, err := h.controller.GateStatus(r.Context(), userID, lessonID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, verdict)
}

// Complete toggles the completion flag. The gate is re-validated
// server-side; a rejection rolls the client's optimistic flip back.
func (h *PlayerHandler) Complete(w http.ResponseWriter, r *http.Request) {
	lessonID, err := uuid.Parse(chi.URLParam(r, "lessonID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid lesson ID", r))
		return
	}

	var req models.CompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	userID := middleware.GetUserID(r.Context())
	resp, err := h.completion.SetCompletion(r.Context(), userID, lessonID, req.Completed)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Close tears down the learner's active lesson.
func (h *PlayerHandler) Close(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	h.controller.CloseActive(userID)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Lesson closed"})
}
