package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stockpulse/social-ingest/internal/archive"
	"github.com/stockpulse/social-ingest/internal/models"
	"github.com/stockpulse/social-ingest/internal/store"
)

const historyLimit = 10

// Ingestor is the slice of the ingestion service the manager drives.
type Ingestor interface {
	GetFinanceDiscussions(ctx context.Context, communities []string, limitPerCommunity, minScore int, minQuality float64) (*models.CollectionResult, error)
	GetStockDiscussions(ctx context.Context, symbol string, communities []string, limit int, timeFilter string, minScore int) (*models.CollectionResult, error)
	GetTrendingStocks(ctx context.Context, communities []string, limit int, timeFilter string, minMentions int) ([]models.TrendingSymbol, error)
	SaveToStore(ctx context.Context, posts []models.Post, comments []models.Comment) error
}

// Options tunes sync behavior and health thresholds.
type Options struct {
	PostsPerSync        int
	MinScore            int
	MinQuality          float64
	RunTimeout          time.Duration
	Freshness           time.Duration
	ErrorRateLimit      float64
	TrendingMinMentions int
}

func (o *Options) applyDefaults() {
	if o.PostsPerSync <= 0 {
		o.PostsPerSync = 25
	}
	if o.RunTimeout <= 0 {
		o.RunTimeout = 10 * time.Minute
	}
	if o.Freshness <= 0 {
		o.Freshness = 6 * time.Hour
	}
	if o.ErrorRateLimit <= 0 {
		o.ErrorRateLimit = 0.2
	}
	if o.TrendingMinMentions <= 0 {
		o.TrendingMinMentions = 2
	}
}

// Manager wraps ingestion operations as idempotent scheduled jobs and
// aggregates run statistics. Failures are recorded and re-raised so the
// external scheduler keeps control of retry policy.
type Manager struct {
	ingestor Ingestor
	posts    store.PostStore // optional, for windowed counts
	snaps    archive.Archive // optional, best-effort snapshots
	opts     Options

	mu    sync.RWMutex
	stats models.SyncStats
}

// NewManager creates a sync task manager. posts and snaps may be nil.
func NewManager(ingestor Ingestor, posts store.PostStore, snaps archive.Archive, opts Options) *Manager {
	opts.applyDefaults()
	return &Manager{
		ingestor: ingestor,
		posts:    posts,
		snaps:    snaps,
		opts:     opts,
	}
}

// RunFinanceSync collects finance discussions and persists them.
func (m *Manager) RunFinanceSync(ctx context.Context) error {
	start := time.Now()
	runCtx, cancel := context.WithTimeout(ctx, m.opts.RunTimeout)
	defer cancel()

	logrus.Info("Starting finance discussion sync")

	result, err := m.ingestor.GetFinanceDiscussions(runCtx, nil, m.opts.PostsPerSync, m.opts.MinScore, m.opts.MinQuality)
	if err != nil {
		return m.record(models.SyncRunResult{Job: "finance_sync"}, start, err)
	}

	if err := m.ingestor.SaveToStore(runCtx, result.Posts, result.Comments); err != nil {
		run := models.SyncRunResult{
			Job:            "finance_sync",
			PostsCollected: result.PostCount(),
		}
		return m.record(run, start, fmt.Errorf("failed to persist batch: %w", err))
	}

	m.snapshot("finance", result)

	run := models.SyncRunResult{
		Job:            "finance_sync",
		PostsCollected: result.PostCount(),
		PostsSaved:     result.PostCount(),
		CommentsSaved:  result.CommentCount(),
		UniqueSymbols:  uniqueSymbolCount(result.Posts),
		SourcesSkipped: len(result.Report.Skipped),
	}
	return m.record(run, start, nil)
}

// RunTrendingSync recomputes the trending-symbol snapshot served by the
// reporting surface.
func (m *Manager) RunTrendingSync(ctx context.Context) error {
	start := time.Now()
	runCtx, cancel := context.WithTimeout(ctx, m.opts.RunTimeout)
	defer cancel()

	logrus.Info("Starting trending stock sync")

	trending, err := m.ingestor.GetTrendingStocks(runCtx, nil, m.opts.PostsPerSync, "day", m.opts.TrendingMinMentions)
	if err != nil {
		return m.record(models.SyncRunResult{Job: "trending_sync"}, start, err)
	}

	now := time.Now()
	m.mu.Lock()
	m.stats.Trending = trending
	m.stats.TrendingUpdatedAt = &now
	m.mu.Unlock()

	run := models.SyncRunResult{
		Job:           "trending_sync",
		UniqueSymbols: len(trending),
	}
	return m.record(run, start, nil)
}

// RunSymbolSync collects and persists discussions for one symbol.
func (m *Manager) RunSymbolSync(ctx context.Context, symbol string) error {
	start := time.Now()
	runCtx, cancel := context.WithTimeout(ctx, m.opts.RunTimeout)
	defer cancel()

	logrus.WithField("symbol", symbol).Info("Starting per-symbol sync")

	result, err := m.ingestor.GetStockDiscussions(runCtx, symbol, nil, m.opts.PostsPerSync, "week", m.opts.MinScore)
	if err != nil {
		return m.record(models.SyncRunResult{Job: "symbol_sync"}, start, err)
	}

	if err := m.ingestor.SaveToStore(runCtx, result.Posts, result.Comments); err != nil {
		run := models.SyncRunResult{
			Job:            "symbol_sync",
			PostsCollected: result.PostCount(),
		}
		return m.record(run, start, fmt.Errorf("failed to persist batch: %w", err))
	}

	m.snapshot("symbol-"+symbol, result)

	run := models.SyncRunResult{
		Job:            "symbol_sync",
		PostsCollected: result.PostCount(),
		PostsSaved:     result.PostCount(),
		CommentsSaved:  result.CommentCount(),
		UniqueSymbols:  uniqueSymbolCount(result.Posts),
		SourcesSkipped: len(result.Report.Skipped),
	}
	return m.record(run, start, nil)
}

// record finalizes one run into the stats: totals and last-sync on
// success, error counters on failure, bounded history either way. The
// original error is returned unchanged so the scheduler sees it.
func (m *Manager) record(run models.SyncRunResult, start time.Time, err error) error {
	run.Timestamp = time.Now()
	run.Duration = time.Since(start)
	run.Success = err == nil
	if err != nil {
		run.Error = err.Error()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats.TotalRuns++
	if err == nil {
		ts := run.Timestamp
		m.stats.LastSyncTime = &ts
		m.stats.TotalPostsCollected += run.PostsCollected
		m.stats.TotalPostsSaved += run.PostsSaved
		m.stats.TotalCommentsSaved += run.CommentsSaved
	} else {
		m.stats.ErrorCount++
		m.stats.LastError = err.Error()
		logrus.WithError(err).WithField("job", run.Job).Error("Sync run failed")
	}

	m.stats.History = append(m.stats.History, run)
	if len(m.stats.History) > historyLimit {
		m.stats.History = m.stats.History[len(m.stats.History)-historyLimit:]
	}

	return err
}

// snapshot archives the collection result as JSON, best-effort.
func (m *Manager) snapshot(tag string, result *models.CollectionResult) {
	if m.snaps == nil {
		return
	}

	data, err := json.Marshal(result)
	if err != nil {
		logrus.WithError(err).Error("Failed to marshal collection snapshot")
		return
	}

	name := fmt.Sprintf("collections/%s-%s.json", tag, time.Now().UTC().Format("2006-01-02-15-04-05"))
	if err := m.snaps.Store(name, data); err != nil {
		logrus.WithError(err).WithField("snapshot", name).Error("Failed to archive collection snapshot")
	}
}

// Trending returns the current trending snapshot, newest computation
// wins.
func (m *Manager) Trending() []models.TrendingSymbol {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats.Trending
}

// Stats returns the aggregate sync state plus windowed counts from the
// persistence store. Window count failures degrade to zero rather than
// failing the whole snapshot.
func (m *Manager) Stats(ctx context.Context) *models.StatsSnapshot {
	m.mu.RLock()
	snapshot := &models.StatsSnapshot{SyncStats: m.stats}
	m.mu.RUnlock()

	if m.posts != nil {
		now := time.Now()
		if n, err := m.posts.CountPostsSince(ctx, now.Add(-24*time.Hour)); err == nil {
			snapshot.PostsSaved24h = n
		} else {
			logrus.WithError(err).Error("Failed to count posts for 24h window")
		}
		if n, err := m.posts.CountPostsSince(ctx, now.Add(-7*24*time.Hour)); err == nil {
			snapshot.PostsSaved7d = n
		} else {
			logrus.WithError(err).Error("Failed to count posts for 7d window")
		}
	}

	return snapshot
}

// HealthCheck derives pipeline health from the sync stats. It reports
// issues with recommendations instead of failing.
func (m *Manager) HealthCheck() *models.HealthStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	health := &models.HealthStatus{
		Status:    "healthy",
		CheckedAt: time.Now(),
	}

	if m.stats.LastSyncTime == nil {
		health.Status = "unhealthy"
		health.Issues = append(health.Issues, models.HealthIssue{
			Issue:          "no successful sync recorded",
			Recommendation: "trigger an initial sync or verify the scheduler is running",
		})
	} else if age := time.Since(*m.stats.LastSyncTime); age > m.opts.Freshness {
		health.Status = "unhealthy"
		health.Issues = append(health.Issues, models.HealthIssue{
			Issue:          fmt.Sprintf("last successful sync was %s ago", age.Round(time.Minute)),
			Recommendation: "check platform credentials and recent run errors in the stats history",
		})
	}

	if rate := m.recentErrorRate(); rate > m.opts.ErrorRateLimit {
		if health.Status == "healthy" {
			health.Status = "degraded"
		}
		health.Issues = append(health.Issues, models.HealthIssue{
			Issue:          fmt.Sprintf("error rate %.0f%% over recent runs", rate*100),
			Recommendation: "inspect the stats history for recurring failures",
		})
	}

	if len(m.stats.Trending) == 0 {
		if health.Status == "healthy" {
			health.Status = "degraded"
		}
		health.Issues = append(health.Issues, models.HealthIssue{
			Issue:          "no trending snapshot cached",
			Recommendation: "run the trending sync to populate the snapshot",
		})
	}

	return health
}

// recentErrorRate is the failure fraction of the bounded history.
// Callers must hold at least a read lock.
func (m *Manager) recentErrorRate() float64 {
	if len(m.stats.History) == 0 {
		return 0
	}
	failures := 0
	for _, run := range m.stats.History {
		if !run.Success {
			failures++
		}
	}
	return float64(failures) / float64(len(m.stats.History))
}

func uniqueSymbolCount(posts []models.Post) int {
	unique := make(map[string]bool)
	for _, post := range posts {
		for _, symbol := range post.ExtractedSymbols {
			unique[symbol] = true
		}
	}
	return len(unique)
}
