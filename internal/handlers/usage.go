package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/elasticdoctor/webapp/internal/services"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// UsageHandler proxies usage statistics from the gateway.
type UsageHandler struct {
	usageService *services.UsageService
	logger       *zap.Logger
}

func NewUsageHandler(usageService *services.UsageService, logger *zap.Logger) *UsageHandler {
	return &UsageHandler{usageService: usageService, logger: logger}
}

// UsageRouter registers usage routes on the given router.
func UsageRouter(r chi.Router, handler *UsageHandler) {
	r.Get("/stats", handler.Stats)
}

// Stats relays the gateway status code, content type and body unchanged.
func (h *UsageHandler) Stats(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.URL.Query().Get("user_email"))
	if email == "" {
		writeError(w, http.StatusBadRequest, "user_email parameter is required")
		return
	}

	days := services.DefaultUsageDays
	if raw := strings.TrimSpace(r.URL.Query().Get("days")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		days = parsed
	}

	resp, err := h.usageService.Stats(r.Context(), email, days)
	if err != nil {
		h.logger.Error("usage stats request failed", zap.String("user_email", email), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to fetch usage statistics")
		return
	}

	contentType := resp.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(resp.Body)
}
