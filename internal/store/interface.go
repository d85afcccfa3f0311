package store

import (
	"context"
	"time"

	"github.com/stockpulse/social-ingest/internal/models"
)

// TickerStore serves the set of currently active ticker symbols used to
// populate the valid-symbol cache.
type TickerStore interface {
	ActiveSymbols(ctx context.Context) ([]string, error)
}

// PostStore persists normalized posts and comments. SaveBatch is
// all-or-nothing: a failure anywhere rolls the whole batch back.
type PostStore interface {
	SaveBatch(ctx context.Context, posts []models.Post, comments []models.Comment) error
	CountPostsSince(ctx context.Context, since time.Time) (int, error)
}
