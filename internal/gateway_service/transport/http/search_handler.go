package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"

	"github.com/fslexpress/golang_services/internal/asset_search_service/domain"
)

// Searcher is implemented by the asset search service.
type Searcher interface {
	Search(ctx context.Context, query string) (*domain.Match, error)
}

type SearchHandler struct {
	searcher Searcher
	logger   *slog.Logger
}

func NewSearchHandler(searcher Searcher, logger *slog.Logger) *SearchHandler {
	return &SearchHandler{searcher: searcher, logger: logger.With("handler", "search")}
}

func (h *SearchHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/search", h.handleSearch)
}

func (h *SearchHandler) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	match, err := h.searcher.Search(ctx, r.URL.Query().Get("q"))
	if err != nil {
		logger.ErrorContext(ctx, "Asset search failed", "error", err)
		jsonError(w, logger, "Error fetching Cloudinary data", http.StatusInternalServerError)
		return
	}
	writeJSON(w, logger, http.StatusOK, toSearchResponse(match))
}
