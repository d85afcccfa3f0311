package ingest

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stockpulse/social-ingest/internal/models"
	"github.com/stockpulse/social-ingest/internal/store"
)

// ErrNoStore is returned by SaveToStore when no persistence store was
// wired at construction.
var ErrNoStore = errors.New("no persistence store configured")

// PlatformClient is the slice of the platform client the ingestion
// service consumes.
type PlatformClient interface {
	Authenticate(ctx context.Context) error
	GetCommunityInfo(ctx context.Context, name string) (*models.CommunityInfo, error)
	GetPosts(ctx context.Context, community, sort string, limit, minScore int, timeFilter string) (*models.CollectionResult, error)
	SearchPosts(ctx context.Context, query, community, sort, timeFilter string, limit, minScore int) (*models.CollectionResult, error)
	GetPostComments(ctx context.Context, postID string, limit int, sort string, minScore int) ([]models.Comment, error)
	GetFinancePosts(ctx context.Context, communities []string, limitPerCommunity, minScore int, sort string) (*models.CollectionResult, error)
}

// Service orchestrates collection, symbol validation, aggregation and
// persistence. The valid-symbol cache is refreshed lazily before any
// operation that filters against it, never by a background timer.
type Service struct {
	client      PlatformClient
	tickers     store.TickerStore
	posts       store.PostStore // nil when persistence is not wired
	communities []string
	cacheTTL    time.Duration

	mu             sync.Mutex
	validSymbols   map[string]bool
	cacheRefreshed time.Time
}

// NewService creates an ingestion service. posts may be nil when the
// deployment only serves in-memory views.
func NewService(client PlatformClient, tickers store.TickerStore, posts store.PostStore, defaultCommunities []string, cacheTTL time.Duration) *Service {
	if cacheTTL <= 0 {
		cacheTTL = 24 * time.Hour
	}
	return &Service{
		client:       client,
		tickers:      tickers,
		posts:        posts,
		communities:  defaultCommunities,
		cacheTTL:     cacheTTL,
		validSymbols: make(map[string]bool),
	}
}

// refreshSymbolCache refreshes the valid-symbol set when it is stale or
// was never populated. A refresh failure never fails the calling
// operation: with a previous set we keep serving it stale, with none the
// filter degrades to pass-through.
func (s *Service) refreshSymbolCache(ctx context.Context) {
	s.mu.Lock()
	fresh := !s.cacheRefreshed.IsZero() && time.Since(s.cacheRefreshed) < s.cacheTTL
	s.mu.Unlock()
	if fresh {
		return
	}

	symbols, err := s.tickers.ActiveSymbols(ctx)
	if err != nil {
		logrus.WithError(err).Error("Failed to refresh symbol cache, keeping previous set")
		return
	}

	set := make(map[string]bool, len(symbols))
	for _, symbol := range symbols {
		set[symbol] = true
	}

	s.mu.Lock()
	s.validSymbols = set
	s.cacheRefreshed = time.Now()
	s.mu.Unlock()

	logrus.WithField("symbols", len(set)).Info("Refreshed valid-symbol cache")
}

func (s *Service) symbolSet() map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.validSymbols
}

// SymbolCacheSize reports how many symbols the cache currently holds.
func (s *Service) SymbolCacheSize() int {
	return len(s.symbolSet())
}

func (s *Service) resolveCommunities(communities []string) []string {
	if len(communities) == 0 {
		return s.communities
	}
	return communities
}

// GetFinanceDiscussions collects finance posts, keeps those at or above
// minQuality, and re-validates extracted symbols against the ticker
// cache. With a populated cache, posts left with no valid symbol are
// dropped; with an empty cache nothing is dropped, so the first run
// before any ticker sync still produces output.
func (s *Service) GetFinanceDiscussions(ctx context.Context, communities []string, limitPerCommunity, minScore int, minQuality float64) (*models.CollectionResult, error) {
	s.refreshSymbolCache(ctx)

	result, err := s.client.GetFinancePosts(ctx, s.resolveCommunities(communities), limitPerCommunity, minScore, "hot")
	if err != nil {
		return nil, err
	}

	valid := s.symbolSet()
	kept := result.Posts[:0]

	for i := range result.Posts {
		post := result.Posts[i]
		if post.QualityScore < minQuality {
			continue
		}

		if len(valid) > 0 {
			var validated []string
			for _, symbol := range post.ExtractedSymbols {
				if valid[symbol] {
					validated = append(validated, symbol)
				}
			}
			post.ExtractedSymbols = validated
			post.MentionsStocks = len(validated) > 0
			if !post.MentionsStocks {
				continue
			}
		}

		kept = append(kept, post)
	}
	result.Posts = kept

	return result, nil
}

// stock discussion search issues several query spellings per community
// and merges the results.
func symbolQueries(symbol string) []string {
	return []string{symbol, "$" + symbol, "ticker:" + symbol}
}

const (
	topPostsPerQuery   = 3
	commentsPerTopPost = 5
)

// GetStockDiscussions searches communities for one symbol under several
// query spellings, merges and deduplicates posts, and pulls the top
// comments for the best-ranked posts. Per-community and per-query
// failures are recorded in the report and skipped.
func (s *Service) GetStockDiscussions(ctx context.Context, symbol string, communities []string, limit int, timeFilter string, minScore int) (*models.CollectionResult, error) {
	result := &models.CollectionResult{
		Method: "stock_discussions",
		QueryParams: map[string]string{
			"symbol":      symbol,
			"time_filter": timeFilter,
		},
		CollectedAt: time.Now().UTC(),
	}

	seenPosts := make(map[string]bool)
	seenComments := make(map[string]bool)

	for _, community := range s.resolveCommunities(communities) {
		communityOK := false

		for _, query := range symbolQueries(symbol) {
			found, err := s.client.SearchPosts(ctx, query, community, "relevance", timeFilter, limit, minScore)
			if err != nil {
				logrus.WithError(err).WithFields(logrus.Fields{
					"community": community,
					"query":     query,
				}).Error("Skipping failed symbol search")
				result.Report.Skipped = append(result.Report.Skipped, models.SkippedSource{
					Name:   community + ":" + query,
					Reason: err.Error(),
				})
				continue
			}
			communityOK = true

			for i, post := range found.Posts {
				if !seenPosts[post.ID] {
					seenPosts[post.ID] = true
					result.Posts = append(result.Posts, post)
				}

				if i >= topPostsPerQuery {
					continue
				}
				comments, err := s.client.GetPostComments(ctx, post.ID, commentsPerTopPost, "top", 0)
				if err != nil {
					logrus.WithError(err).WithField("post", post.ID).Debug("Skipping comments for post")
					continue
				}
				for _, comment := range comments {
					if !seenComments[comment.ID] {
						seenComments[comment.ID] = true
						result.Comments = append(result.Comments, comment)
					}
				}
			}
		}

		if communityOK {
			result.Report.Succeeded = append(result.Report.Succeeded, community)
		}
	}

	sort.Slice(result.Posts, func(i, j int) bool {
		return result.Posts[i].Score > result.Posts[j].Score
	})
	sort.Slice(result.Comments, func(i, j int) bool {
		return result.Comments[i].Score > result.Comments[j].Score
	})

	return result, nil
}

// trend score term caps; each term is normalized into [0,1] before
// weighting.
const (
	trendMentionCap   = 25.0
	trendAvgScoreCap  = 1000.0
	trendDiversityCap = 5.0
)

func trendScore(rec *models.TrendingSymbol) float64 {
	mentions := math.Min(float64(rec.MentionCount)/trendMentionCap, 1.0)
	avgScore := math.Min(math.Max(rec.AvgScore, 0)/trendAvgScoreCap, 1.0)
	quality := math.Max(0, math.Min(rec.AvgQuality, 1.0))
	diversity := math.Min(float64(len(rec.Communities))/trendDiversityCap, 1.0)

	return 0.4*mentions + 0.3*avgScore + 0.2*quality + 0.1*diversity
}

// GetTrendingStocks folds the current finance discussions into
// per-symbol records and ranks them by trend score descending. Symbols
// below minMentions are discarded.
func (s *Service) GetTrendingStocks(ctx context.Context, communities []string, limit int, timeFilter string, minMentions int) ([]models.TrendingSymbol, error) {
	discussions, err := s.GetFinanceDiscussions(ctx, communities, limit, 0, 0)
	if err != nil {
		return nil, err
	}

	records := make(map[string]*models.TrendingSymbol)
	qualitySums := make(map[string]float64)
	communitySets := make(map[string]map[string]bool)

	for _, post := range discussions.Posts {
		for _, symbol := range post.ExtractedSymbols {
			rec, ok := records[symbol]
			if !ok {
				rec = &models.TrendingSymbol{
					Symbol:    symbol,
					FirstSeen: post.CreatedAt,
					LastSeen:  post.CreatedAt,
				}
				records[symbol] = rec
				communitySets[symbol] = make(map[string]bool)
			}

			rec.MentionCount++
			rec.TotalScore += post.Score
			qualitySums[symbol] += post.QualityScore
			communitySets[symbol][post.Community] = true

			if post.CreatedAt.Before(rec.FirstSeen) {
				rec.FirstSeen = post.CreatedAt
			}
			if post.CreatedAt.After(rec.LastSeen) {
				rec.LastSeen = post.CreatedAt
			}
		}
	}

	if minMentions < 1 {
		minMentions = 1
	}

	trending := make([]models.TrendingSymbol, 0, len(records))
	for symbol, rec := range records {
		if rec.MentionCount < minMentions {
			continue
		}

		rec.AvgScore = float64(rec.TotalScore) / float64(rec.MentionCount)
		rec.AvgQuality = qualitySums[symbol] / float64(rec.MentionCount)
		for community := range communitySets[symbol] {
			rec.Communities = append(rec.Communities, community)
		}
		sort.Strings(rec.Communities)
		rec.TrendScore = trendScore(rec)

		trending = append(trending, *rec)
	}

	sort.Slice(trending, func(i, j int) bool {
		return trending[i].TrendScore > trending[j].TrendScore
	})

	logrus.WithFields(logrus.Fields{
		"symbols":      len(trending),
		"posts_folded": len(discussions.Posts),
	}).Info("Computed trending stocks")

	return trending, nil
}

// sentiment classification thresholds; confidence grows with the
// distance of average quality from the boundary.
const (
	sentimentScorePositive = 50.0
	sentimentScoreNegative = 10.0
	sentimentQualityBound  = 0.35
)

// GetCommunitySentiment summarizes recent posts of one community into a
// sentiment bucket. No posts is a neutral zero-confidence result, not an
// error.
func (s *Service) GetCommunitySentiment(ctx context.Context, community string, limit int, timeFilter string) (*models.CommunitySentiment, error) {
	result, err := s.client.GetPosts(ctx, community, "top", limit, 0, timeFilter)
	if err != nil {
		return nil, err
	}

	sentiment := &models.CommunitySentiment{
		Community:  community,
		AnalyzedAt: time.Now().UTC(),
	}

	if len(result.Posts) == 0 {
		sentiment.Overall = "neutral"
		sentiment.NoPostsFound = true
		return sentiment, nil
	}

	var scoreSum, qualitySum float64
	finance := 0
	uniqueSymbols := make(map[string]bool)
	totalMentions := 0

	for _, post := range result.Posts {
		scoreSum += float64(post.Score)
		qualitySum += post.QualityScore
		if post.IsFinanceRelated {
			finance++
		}
		for _, symbol := range post.ExtractedSymbols {
			uniqueSymbols[symbol] = true
			totalMentions++
		}
	}

	n := float64(len(result.Posts))
	sentiment.PostCount = len(result.Posts)
	sentiment.FinanceRatio = float64(finance) / n
	sentiment.AvgScore = scoreSum / n
	sentiment.AvgQuality = qualitySum / n
	sentiment.UniqueSymbols = len(uniqueSymbols)
	sentiment.TotalSymbolMentions = totalMentions

	switch {
	case sentiment.AvgScore >= sentimentScorePositive && sentiment.AvgQuality >= sentimentQualityBound:
		sentiment.Overall = "positive"
	case sentiment.AvgScore <= sentimentScoreNegative && sentiment.AvgQuality < sentimentQualityBound:
		sentiment.Overall = "negative"
	default:
		sentiment.Overall = "neutral"
	}

	sentiment.Confidence = math.Min(math.Abs(sentiment.AvgQuality-sentimentQualityBound)/sentimentQualityBound, 1.0)

	return sentiment, nil
}

// SaveToStore persists posts and comments in one all-or-nothing batch.
// Unlike the best-effort collection operations, any store failure is
// returned to the caller after rollback.
func (s *Service) SaveToStore(ctx context.Context, posts []models.Post, comments []models.Comment) error {
	if s.posts == nil {
		return ErrNoStore
	}
	return s.posts.SaveBatch(ctx, posts, comments)
}
