package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Souradip121/sentiment-service/internal/service"
	apperrors "github.com/Souradip121/sentiment-service/pkg/errors"
	"github.com/Souradip121/sentiment-service/pkg/httputil"
	"github.com/Souradip121/sentiment-service/pkg/middleware"
	"github.com/Souradip121/sentiment-service/pkg/pagination"
	"github.com/Souradip121/sentiment-service/pkg/validator"
)

// SentimentHandler handles HTTP requests for sentiment endpoints.
type SentimentHandler struct {
	service *service.SentimentService
	logger  *slog.Logger
}

// NewSentimentHandler creates a new sentiment HTTP handler.
func NewSentimentHandler(svc *service.SentimentService, logger *slog.Logger) *SentimentHandler {
	return &SentimentHandler{service: svc, logger: logger}
}

// AnalyzeRequest is the JSON request body for sentiment analysis.
type AnalyzeRequest struct {
	Text string `json:"text" validate:"required"`
}

// AnalyzeResponse is the JSON response body for a completed analysis.
type AnalyzeResponse struct {
	Label     string  `json:"label"`
	Score     float64 `json:"score"`
	Source    string  `json:"source"`
	LatencyMS int64   `json:"latency_ms"`
}

// Analyze handles POST /sentiment/analyze
func (h *SentimentHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, r, apperrors.InvalidInput("invalid request body"), h.logger)
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	userID := middleware.UserIDFromContext(r.Context())
	result, err := h.service.Analyze(r.Context(), userID, req.Text)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: AnalyzeResponse{
			Label:     string(result.Label),
			Score:     result.Score,
			Source:    string(result.Source),
			LatencyMS: result.Latency.Milliseconds(),
		},
	})
}

// History handles GET /sentiment/history
func (h *SentimentHandler) History(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	params := pagination.FromRequest(r)

	result, err := h.service.History(r.Context(), userID, params)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}
