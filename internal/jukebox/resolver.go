// Package jukebox implements the search, download and reporting workflow
// behind the exposed tools.
package jukebox

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"llm-jukebox/internal/config"
	"llm-jukebox/internal/media"
)

// Resolver turns a free-text query into the metadata of the best match.
type Resolver struct {
	searcher media.Searcher
	guard    collaboratorGuard
	logger   *zap.Logger
}

func NewResolver(cfg *config.Config, searcher media.Searcher, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		searcher: searcher,
		guard:    collaboratorGuard{timeout: cfg.Timeout()},
		logger:   logger.Named("resolver"),
	}
}

// Resolve returns the first search match, or false when there is none. Search
// failures are indistinguishable from an empty result for the caller; they
// are only logged.
func (r *Resolver) Resolve(ctx context.Context, query string) (*media.Item, bool) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, false
	}

	start := time.Now()
	var item media.Item
	err := r.guard.call(ctx, func(ctx context.Context) error {
		var err error
		item, err = r.searcher.SearchFirst(ctx, query)
		return err
	})
	switch {
	case errors.Is(err, media.ErrNoResults):
		r.logger.Info("no results", zap.String("query", query))
		return nil, false
	case err != nil:
		r.logger.Warn("search failed", zap.String("query", query), zap.Error(err))
		return nil, false
	}

	r.logger.Info("search completed",
		zap.String("query", query),
		zap.String("id", item.ID),
		zap.String("title", item.Title),
		zap.Duration("elapsed", time.Since(start)),
	)
	return &item, true
}
