package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Adjaraux/academy-backend/internal/middleware"
	"github.com/Adjaraux/academy-backend/internal/navigation"
	"github.com/Adjaraux/academy-backend/internal/quiz"
	"github.com/Adjaraux/academy-backend/internal/services"
)

// QuizHandler drives the standalone quiz lesson protocol over the attempt
// engine hosted by the navigation controller. The lesson must be opened
// (active) before any of these endpoints work.
type QuizHandler struct {
	controller *navigation.Controller
	attempts   *services.AttemptService
}

func NewQuizHandler(controller *navigation.Controller, attempts *services.AttemptService) *QuizHandler {
	return &QuizHandler{controller: controller, attempts: attempts}
}

func (h *QuizHandler) engine(w http.ResponseWriter, r *http.Request) (*quiz.Engine, bool) {
	lessonID, err := uuid.Parse(chi.URLParam(r, "lessonID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid lesson ID", r))
		return nil, false
	}
	userID := middleware.GetUserID(r.Context())
	engine, err := h.controller.QuizEngine(userID, lessonID)
	if err != nil {
		handleServiceError(w, r, err)
		return nil, false
	}
	return engine, true
}

// Start opens (or resumes) the attempt and arms the expiry timer.
func (h *QuizHandler) Start(w http.ResponseWriter, r *http.Request) {
	engine, ok := h.engine(w, r)
	if !ok {
		return
	}

	if err := engine.Start(r.Context()); err != nil {
		switch {
		case errors.Is(err, quiz.ErrAlreadyStarted):
			writeJSON(w, http.StatusConflict, errorResp("CONFLICT", "Attempt already in progress", r))
		case errors.Is(err, quiz.ErrAlreadyPassed):
			writeJSON(w, http.StatusConflict, errorResp("CONFLICT", "Quiz already passed", r))
		default:
			handleServiceError(w, r, unwrapService(err))
		}
		return
	}
	// The expiry timer outlives this request.
	engine.ArmExpiry(context.Background())

	writeJSON(w, http.StatusCreated, statusPayload(engine))
}

// Select records one answer choice.
func (h *QuizHandler) Select(w http.ResponseWriter, r *http.Request) {
	engine, ok := h.engine(w, r)
	if !ok {
		return
	}

	var req struct {
		QuestionID string `json:"question_id"`
		AnswerID   string `json:"answer_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	questionID, err := uuid.Parse(req.QuestionID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid question ID", r))
		return
	}
	answerID, err := uuid.Parse(req.AnswerID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid answer ID", r))
		return
	}

	if err := engine.Select(questionID, answerID); err != nil {
		switch {
		case errors.Is(err, quiz.ErrUnknownQuestion):
			writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Question is not part of this attempt", r))
		case errors.Is(err, quiz.ErrNotInProgress):
			writeJSON(w, http.StatusConflict, errorResp("CONFLICT", "Attempt is not in progress", r))
		default:
			handleServiceError(w, r, err)
		}
		return
	}

	// Persist partial progress so a reload resumes with selections intact.
	// Review-mode practice selections have no open attempt to save into.
	if engine.State() == quiz.StateInProgress {
		userID := middleware.GetUserID(r.Context())
		if err := h.attempts.SaveProgress(r.Context(), userID, engine.AttemptID(), engine.Selections()); err != nil {
			handleServiceError(w, r, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Selection saved"})
}

// Submit sends the attempt for authoritative scoring.
func (h *QuizHandler) Submit(w http.ResponseWriter, r *http.Request) {
	engine, ok := h.engine(w, r)
	if !ok {
		return
	}

	result, err := engine.Submit(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, quiz.ErrIncomplete):
			writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Every question needs an answer before submitting", r))
		case errors.Is(err, quiz.ErrSubmitInFlight):
			writeJSON(w, http.StatusConflict, errorResp("CONFLICT", "Submission already in flight", r))
		case errors.Is(err, quiz.ErrNotInProgress):
			writeJSON(w, http.StatusConflict, errorResp("CONFLICT", "Attempt is not in progress", r))
		default:
			handleServiceError(w, r, unwrapService(err))
		}
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Retry discards the failed attempt and starts a fresh one with a newly
// sampled question set.
func (h *QuizHandler) Retry(w http.ResponseWriter, r *http.Request) {
	engine, ok := h.engine(w, r)
	if !ok {
		return
	}

	if err := engine.Retry(r.Context()); err != nil {
		if errors.Is(err, quiz.ErrRetryNotAllowed) {
			writeJSON(w, http.StatusConflict, errorResp("CONFLICT", "Retry is only available after a failed attempt", r))
			return
		}
		handleServiceError(w, r, unwrapService(err))
		return
	}
	engine.ArmExpiry(context.Background())

	writeJSON(w, http.StatusCreated, statusPayload(engine))
}

// Status reports the attempt state, remaining time, and result if scored.
func (h *QuizHandler) Status(w http.ResponseWriter, r *http.Request) {
	engine, ok := h.engine(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, statusPayload(engine))
}

func statusPayload(engine *quiz.Engine) map[string]interface{} {
	payload := map[string]interface{}{
		"attempt_id": engine.AttemptID(),
		"state":      engine.State().String(),
		"questions":  engine.Questions(),
	}
	if remaining, ok := engine.Remaining(); ok {
		payload["remaining_seconds"] = int(remaining / time.Second)
	}
	if result := engine.Result(); result != nil {
		payload["result"] = result
	}
	return payload
}

// unwrapService digs a typed service error out of the engine's wrapping so
// it maps onto the right status code.
func unwrapService(err error) error {
	var (
		ve *services.ValidationError
		ce *services.ConflictError
		ne *services.NotFoundError
		fe *services.ForbiddenError
		ue *services.UnauthorizedError
	)
	switch {
	case errors.As(err, &ve):
		return ve
	case errors.As(err, &ce):
		return ce
	case errors.As(err, &ne):
		return ne
	case errors.As(err, &fe):
		return fe
	case errors.As(err, &ue):
		return ue
	}
	return err
}
