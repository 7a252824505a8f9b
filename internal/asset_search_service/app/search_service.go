package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/fslexpress/golang_services/internal/asset_search_service/domain"
)

// MaxSearchResults is the number of resources fetched per search.
const MaxSearchResults = 500

// SearchService resolves a free-text query to a stored asset.
type SearchService struct {
	index  domain.AssetIndex
	folder string
	logger *slog.Logger
}

func NewSearchService(index domain.AssetIndex, folder string, logger *slog.Logger) *SearchService {
	return &SearchService{
		index:  index,
		folder: folder,
		logger: logger.With("service", "asset_search"),
	}
}

// Search lists the configured folder and returns the first asset whose key
// equals the normalized query, together with every listed asset.
func (s *SearchService) Search(ctx context.Context, query string) (*domain.Match, error) {
	start := time.Now()
	assets, err := s.index.ListFolder(ctx, s.folder, MaxSearchResults)
	searchUpstreamDurationHist.Observe(time.Since(start).Seconds())
	if err != nil {
		searchRequestsCounter.WithLabelValues("error").Inc()
		s.logger.ErrorContext(ctx, "Asset index listing failed", "folder", s.folder, "error", err)
		return nil, err
	}

	m := &domain.Match{Assets: assets}
	if hit, ok := domain.FindMatch(query, assets); ok {
		m.PublicID = hit.PublicID
		searchRequestsCounter.WithLabelValues("match").Inc()
	} else {
		searchRequestsCounter.WithLabelValues("no_match").Inc()
	}
	s.logger.DebugContext(ctx, "Asset search completed",
		"normalized_query", domain.NormalizeQuery(query), "candidates", len(assets), "match", m.PublicID)
	return m, nil
}
