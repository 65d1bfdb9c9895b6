package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sunshinevendetta/frame/internal/config"
	"github.com/sunshinevendetta/frame/internal/domain"
	"github.com/sunshinevendetta/frame/internal/leaderboard"
	"github.com/sunshinevendetta/frame/internal/messaging"
	"github.com/sunshinevendetta/frame/internal/session"
	"github.com/sunshinevendetta/frame/internal/websocket"
)

// awardLister reads past window awards and archived standings
type awardLister interface {
	ListAwards(ctx context.Context, limit int) ([]domain.AwardRecord, error)
	ArchivedStandings(ctx context.Context, windowEnd time.Time) ([]domain.StandingsEntry, error)
}

// Handler provides the HTTP surface for the frame game
type Handler struct {
	sessions  *session.Manager
	cycle     *leaderboard.CycleManager
	awards    awardLister
	messenger *messaging.Client
	hub       *websocket.Hub
	limits    *config.LeaderboardConfig
	logger    *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	sessions *session.Manager,
	cycle *leaderboard.CycleManager,
	awards awardLister,
	messenger *messaging.Client,
	hub *websocket.Hub,
	limits *config.LeaderboardConfig,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		sessions:  sessions,
		cycle:     cycle,
		awards:    awards,
		messenger: messenger,
		hub:       hub,
		limits:    limits,
		logger:    logger,
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)

	// Health check
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)

	// WebSocket endpoint
	r.Get("/ws", h.HandleWebSocket)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Session lifecycle
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", h.StartSession)
			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", h.GetSession)
				r.Delete("/", h.EndSession)
				r.Post("/collision", h.Collision)
				r.Post("/tick", h.Tick)
				r.Post("/purchase", h.PurchaseCredits)
				r.Post("/extra-life", h.EarnExtraLife)
			})
		})

		// Leaderboard window
		r.Route("/leaderboard", func(r chi.Router) {
			r.Get("/", h.GetStandings)
			r.Post("/scores", h.SubmitScore)
			r.Get("/window", h.GetWindow)
			r.Get("/player/{playerName}", h.GetPlayerEntry)
			r.Get("/archive", h.GetArchivedStandings)
			r.Post("/reset", h.ForceReset)
		})

		// Award history
		r.Get("/awards", h.ListAwards)

		// Feedback
		r.Post("/feedback", h.SendFeedback)

		// WebSocket info endpoint
		r.Get("/ws/stats", h.GetWebSocketStats)
	})

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeSuccess writes a successful JSON response
func (h *Handler) writeSuccess(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError writes an error JSON response
func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}

// HandleWebSocket handles WebSocket upgrade requests
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, h.logger, w, r)
}

// GetWebSocketStats returns WebSocket connection statistics
func (h *Handler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]interface{}{
		"total_connections": h.hub.GetTotalConnections(),
	})
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "healthy"})
}

// ReadyCheck returns service readiness status
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "ready"})
}

// StartSession begins a new game session
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req domain.StartSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	snap, err := h.sessions.Start(r.Context(), req)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRequest) {
			h.writeError(w, http.StatusBadRequest, err)
			return
		}
		h.logger.Error("failed to start session", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeJSON(w, http.StatusCreated, APIResponse{Success: true, Data: snap})
}

// GetSession returns a session snapshot
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	snap, err := h.sessions.Get(id)
	if err != nil {
		h.writeError(w, http.StatusNotFound, err)
		return
	}
	h.writeSuccess(w, snap)
}

// EndSession discards a session
func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if err := h.sessions.End(id); err != nil {
		h.writeError(w, http.StatusNotFound, err)
		return
	}
	h.writeSuccess(w, map[string]string{"status": "ended"})
}

// Collision applies an obstacle hit to a session
func (h *Handler) Collision(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	snap, err := h.sessions.Collision(r.Context(), id)
	if err != nil {
		h.respondSessionError(w, err)
		return
	}
	h.writeSuccess(w, snap)
}

// Tick applies an explicit score tick to a session
func (h *Handler) Tick(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	snap, err := h.sessions.Tick(id)
	if err != nil {
		h.respondSessionError(w, err)
		return
	}
	h.writeSuccess(w, snap)
}

// PurchaseCredits buys a credit pack for a session
func (h *Handler) PurchaseCredits(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	snap, err := h.sessions.PurchaseCredits(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			h.writeError(w, http.StatusNotFound, err)
			return
		}
		if errors.Is(err, domain.ErrPurchaseFailed) {
			h.writeError(w, http.StatusPaymentRequired, domain.ErrPurchaseFailed)
			return
		}
		h.logger.Error("failed to purchase credits", "session_id", id, "error", err)
		h.writeError(w, http.StatusBadGateway, domain.ErrPurchaseFailed)
		return
	}
	h.writeSuccess(w, snap)
}

// EarnExtraLife grants the one-time recast bonus
func (h *Handler) EarnExtraLife(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	granted, snap, err := h.sessions.EarnExtraLife(r.Context(), id)
	if err != nil {
		h.respondSessionError(w, err)
		return
	}
	h.writeSuccess(w, map[string]interface{}{
		"granted": granted,
		"session": snap,
	})
}

func (h *Handler) respondSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		h.writeError(w, http.StatusNotFound, err)
	case errors.Is(err, domain.ErrSessionOver):
		h.writeError(w, http.StatusConflict, err)
	case domain.IsCollaboratorError(err):
		h.writeError(w, http.StatusBadGateway, err)
	default:
		h.logger.Error("session operation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
	}
}

// SubmitScore records a finished run's score directly
func (h *Handler) SubmitScore(w http.ResponseWriter, r *http.Request) {
	var submission domain.ScoreSubmission
	if err := json.NewDecoder(r.Body).Decode(&submission); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	if err := h.cycle.RecordScore(r.Context(), submission.PlayerName, submission.Score); err != nil {
		if errors.Is(err, domain.ErrInvalidRequest) {
			h.writeError(w, http.StatusBadRequest, err)
			return
		}
		h.logger.Error("failed to record score", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, map[string]string{"status": "accepted"})
}

// GetStandings returns the current window's top entries
func (h *Handler) GetStandings(w http.ResponseWriter, r *http.Request) {
	limit := h.limits.DefaultLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}
	if limit > h.limits.MaxLimit {
		limit = h.limits.MaxLimit
	}

	entries, err := h.cycle.TopN(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to get standings", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, entries)
}

// GetWindow returns the active window's deadline and population
func (h *Handler) GetWindow(w http.ResponseWriter, r *http.Request) {
	status, err := h.cycle.Window(r.Context())
	if err != nil {
		h.logger.Error("failed to get window status", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}
	h.writeSuccess(w, status)
}

// GetPlayerEntry returns one player's entry in the current window
func (h *Handler) GetPlayerEntry(w http.ResponseWriter, r *http.Request) {
	playerName := chi.URLParam(r, "playerName")
	if playerName == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	entry, err := h.cycle.PlayerEntry(r.Context(), playerName)
	if err != nil {
		if errors.Is(err, domain.ErrPlayerNotFound) {
			h.writeError(w, http.StatusNotFound, err)
			return
		}
		h.logger.Error("failed to get player entry", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, entry)
}

// GetArchivedStandings returns a past window's final standings
func (h *Handler) GetArchivedStandings(w http.ResponseWriter, r *http.Request) {
	windowEnd, err := time.Parse(time.RFC3339, r.URL.Query().Get("window_end"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	entries, err := h.awards.ArchivedStandings(r.Context(), windowEnd)
	if err != nil {
		h.logger.Error("failed to get archived standings", "window_end", windowEnd, "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, entries)
}

// ForceReset runs the cycle boundary immediately (admin surface)
func (h *Handler) ForceReset(w http.ResponseWriter, r *http.Request) {
	h.cycle.ResetNow(r.Context())
	h.writeSuccess(w, map[string]string{"status": "reset"})
}

// ListAwards returns recent window awards
func (h *Handler) ListAwards(w http.ResponseWriter, r *http.Request) {
	limit := 30
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	awards, err := h.awards.ListAwards(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list awards", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, awards)
}

// feedbackRequest is the body for POST /feedback
type feedbackRequest struct {
	Feedback string `json:"feedback"`
}

// SendFeedback forwards player feedback over the messaging network
func (h *Handler) SendFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Feedback == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	if err := h.messenger.SendFeedback(r.Context(), req.Feedback); err != nil {
		if errors.Is(err, domain.ErrConfigMissing) {
			h.writeError(w, http.StatusServiceUnavailable, domain.ErrConfigMissing)
			return
		}
		h.logger.Error("failed to send feedback", "error", err)
		h.writeError(w, http.StatusBadGateway, domain.ErrMessagingFailed)
		return
	}

	h.writeSuccess(w, map[string]string{"status": "sent"})
}
