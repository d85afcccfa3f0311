package tickers

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/stockpulse/social-ingest/internal/store"
)

// symbolMirror is the subset of the SQLite store the mirrored source
// writes through to.
type symbolMirror interface {
	store.TickerStore
	ReplaceSymbols(ctx context.Context, symbols []string) error
}

// MirroredSource reads the ticker universe from a remote source and
// mirrors it into the local store, so later refreshes survive remote
// outages. Falls back to the local copy when the remote fails.
type MirroredSource struct {
	remote store.TickerStore
	local  symbolMirror
}

var _ store.TickerStore = (*MirroredSource)(nil)

// NewMirroredSource wraps remote with a local write-through mirror.
func NewMirroredSource(remote store.TickerStore, local symbolMirror) *MirroredSource {
	return &MirroredSource{remote: remote, local: local}
}

// ActiveSymbols prefers the remote directory and keeps the local mirror
// current; a remote failure degrades to the last mirrored set.
func (s *MirroredSource) ActiveSymbols(ctx context.Context) ([]string, error) {
	symbols, err := s.remote.ActiveSymbols(ctx)
	if err != nil {
		logrus.WithError(err).Warn("Remote ticker source failed, falling back to local mirror")
		return s.local.ActiveSymbols(ctx)
	}

	if err := s.local.ReplaceSymbols(ctx, symbols); err != nil {
		// mirror write failure must not block the refresh itself
		logrus.WithError(err).Error("Failed to mirror ticker universe locally")
	}

	return symbols, nil
}
