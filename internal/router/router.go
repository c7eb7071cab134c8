package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/Adjaraux/academy-backend/internal/handlers"
	"github.com/Adjaraux/academy-backend/internal/middleware"
	"github.com/Adjaraux/academy-backend/internal/websocket"
)

func New(
	jwtAuth *middleware.JWTAuth,
	courseHandler *handlers.CourseHandler,
	playerHandler *handlers.PlayerHandler,
	quizHandler *handlers.QuizHandler,
	mediaHandler *handlers.MediaHandler,
	wsHub *websocket.Hub,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// The player event stream is chatty by design; cap it per IP anyway so
	// a runaway client cannot flood the session engine.
	playerLimiter := middleware.NewRateLimiter(600, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Course Catalog ────
		r.Route("/courses", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/", courseHandler.List)
			r.Get("/{id}", courseHandler.Get)
			r.Get("/{id}/progress", courseHandler.Progress)
			r.Get("/{id}/locks", courseHandler.LockState)

			// Lesson selection happens in course context so prev/next can
			// run over the flattened lesson order.
			r.Post("/{courseID}/lessons/{lessonID}/open", playerHandler.Open)
			r.Post("/{courseID}/lessons/{lessonID}/navigate", playerHandler.Navigate)
		})

		// ──── Player Session ────
		r.Route("/player", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Use(playerLimiter.Middleware)
			r.Post("/{lessonID}/time-update", playerHandler.TimeUpdate)
			r.Post("/{lessonID}/heartbeat", playerHandler.Heartbeat)
			r.Post("/{lessonID}/questions/{questionID}/answer", playerHandler.AnswerQuestion)
			r.Get("/{lessonID}/gate", playerHandler.GateStatus)
			r.Put("/{lessonID}/completion", playerHandler.Complete)
			r.Delete("/active", playerHandler.Close)
		})

		// ──── Quiz Attempts ────
		r.Route("/quizzes/{lessonID}", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Post("/start", quizHandler.Start)
			r.Post("/select", quizHandler.Select)
			r.Post("/submit", quizHandler.Submit)
			r.Post("/retry", quizHandler.Retry)
			r.Get("/status", quizHandler.Status)
		})

		// ──── Media ────
		// Token-authenticated; the JWT middleware does not apply because
		// the <video> element cannot send headers.
		r.Get("/media/stream", mediaHandler.Stream)

		// ──── WebSocket ────
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r
}
