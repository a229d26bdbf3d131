package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/dompet-app/dompet/internal/api/middleware"
	"github.com/dompet-app/dompet/internal/assistant"
	"github.com/dompet-app/dompet/internal/domain"
	"github.com/rs/zerolog"
)

// Asker answers questions about an owner's transactions.
type Asker interface {
	Ask(ctx context.Context, owner, question string) (*assistant.Answer, error)
}

// AssistantHandler handles the assistant and taxonomy endpoints.
type AssistantHandler struct {
	asker    Asker
	taxonomy domain.Taxonomy
	log      zerolog.Logger
}

// NewAssistantHandler creates a new assistant handler.
func NewAssistantHandler(asker Asker, taxonomy domain.Taxonomy, log zerolog.Logger) *AssistantHandler {
	return &AssistantHandler{asker: asker, taxonomy: taxonomy, log: log}
}

// Ask handles POST /api/assistant
func (h *AssistantHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	answer, err := h.asker.Ask(r.Context(), owner(r), req.Message)
	switch {
	case err == nil:
		middleware.WriteJSON(w, http.StatusOK, answer)
	case errors.Is(err, assistant.ErrEmptyQuestion):
		middleware.WriteError(w, http.StatusBadRequest, "Message is required")
	case errors.Is(err, assistant.ErrTimeout):
		middleware.WriteError(w, http.StatusGatewayTimeout, "The assistant took too long to answer. Please try again.")
	case errors.Is(err, assistant.ErrUnavailable):
		middleware.WriteError(w, http.StatusBadGateway, "The assistant is unavailable right now. Please try again later.")
	default:
		writeServiceError(w, requestLog(r, h.log), err, "answer question")
	}
}

// ListCategories handles GET /api/categories
func (h *AssistantHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	names := h.taxonomy.Names()
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"categories": names,
		"fallback":   h.taxonomy.Fallback(),
		"count":      len(names),
	})
}
