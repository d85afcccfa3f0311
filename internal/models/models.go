package models

import "time"

// Post is the normalized representation of a platform post. It is
// constructed once at the client's conversion boundary and not mutated
// afterwards, except for symbol re-validation during ingestion.
type Post struct {
	ID           string    `json:"id"`
	Title        string    `json:"title,omitempty"`
	Body         string    `json:"body"`
	Author       string    `json:"author,omitempty"`
	Community    string    `json:"community"`
	Score        int       `json:"score"`
	UpvoteRatio  float64   `json:"upvote_ratio"`
	CommentCount int       `json:"comment_count"`
	CreatedAt    time.Time `json:"created_at"`
	URL          string    `json:"url"`
	LinkFlair    string    `json:"link_flair,omitempty"`

	IsSelf            bool `json:"is_self"`
	IsVideo           bool `json:"is_video"`
	IsPinned          bool `json:"is_pinned"`
	IsLocked          bool `json:"is_locked"`
	IsArchived        bool `json:"is_archived"`
	IsOriginalContent bool `json:"is_original_content"`

	ExtractedSymbols []string `json:"extracted_symbols"`
	MentionsStocks   bool     `json:"mentions_stocks"`

	// Populated by a downstream analyzer, carried but never computed here.
	SentimentScore      float64 `json:"sentiment_score,omitempty"`
	SentimentConfidence float64 `json:"sentiment_confidence,omitempty"`

	QualityScore     float64 `json:"quality_score"`
	IsFinanceRelated bool    `json:"is_finance_related"`
}

// Comment is the normalized representation of a platform comment.
type Comment struct {
	ID            string    `json:"id"`
	Body          string    `json:"body"`
	Author        string    `json:"author,omitempty"`
	Score         int       `json:"score"`
	CreatedAt     time.Time `json:"created_at"`
	Permalink     string    `json:"permalink"`
	ParentID      string    `json:"parent_id"`
	PostID        string    `json:"post_id"`
	Depth         int       `json:"depth"`
	Distinguished bool      `json:"distinguished"`
	Edited        bool      `json:"edited"`

	ExtractedSymbols []string `json:"extracted_symbols"`
	QualityScore     float64  `json:"quality_score"`
}

// CommunityInfo describes a discussion community on the platform.
type CommunityInfo struct {
	Name        string    `json:"name"`
	Subscribers int       `json:"subscribers"`
	ActiveUsers int       `json:"active_users"`
	CreatedAt   time.Time `json:"created_at"`
	IsPrivate   bool      `json:"is_private"`
	Quarantined bool      `json:"quarantined"`
	Over18      bool      `json:"over_18"`

	FinanceRelevance float64 `json:"finance_relevance"`
	ReputationScore  float64 `json:"reputation_score"`
}

// UserInfo describes a platform account.
type UserInfo struct {
	Username       string  `json:"username"`
	LinkKarma      int     `json:"link_karma"`
	CommentKarma   int     `json:"comment_karma"`
	AccountAgeDays float64 `json:"account_age_days"`
	Verified       bool    `json:"verified"`
	Premium        bool    `json:"premium"`

	ReputationScore float64 `json:"reputation_score"`
}

// SkippedSource records a community or query that failed during a
// best-effort collection and was skipped rather than aborting the batch.
type SkippedSource struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// FetchReport is the per-unit outcome of a best-effort collection, so
// partial-failure behavior is observable instead of log-only.
type FetchReport struct {
	Succeeded []string        `json:"succeeded"`
	Skipped   []SkippedSource `json:"skipped"`
}

// CollectionResult is the ephemeral output of one collection call.
type CollectionResult struct {
	Posts       []Post            `json:"posts"`
	Comments    []Comment         `json:"comments"`
	Community   *CommunityInfo    `json:"community,omitempty"`
	Method      string            `json:"method"`
	QueryParams map[string]string `json:"query_params,omitempty"`
	CollectedAt time.Time         `json:"collected_at"`
	Report      FetchReport       `json:"report"`
}

// PostCount returns the number of collected posts.
func (r *CollectionResult) PostCount() int { return len(r.Posts) }

// CommentCount returns the number of collected comments.
func (r *CollectionResult) CommentCount() int { return len(r.Comments) }

// FinanceRelatedCount returns how many posts passed the finance predicate.
func (r *CollectionResult) FinanceRelatedCount() int {
	n := 0
	for _, p := range r.Posts {
		if p.IsFinanceRelated {
			n++
		}
	}
	return n
}

// OverallQuality returns the average post quality score, 0 when empty.
func (r *CollectionResult) OverallQuality() float64 {
	if len(r.Posts) == 0 {
		return 0
	}
	var sum float64
	for _, p := range r.Posts {
		sum += p.QualityScore
	}
	return sum / float64(len(r.Posts))
}

// TrendingSymbol aggregates one symbol's mentions across a trending run.
type TrendingSymbol struct {
	Symbol       string    `json:"symbol"`
	MentionCount int       `json:"mention_count"`
	TotalScore   int       `json:"total_score"`
	AvgScore     float64   `json:"avg_score"`
	AvgQuality   float64   `json:"avg_quality"`
	Communities  []string  `json:"communities"`
	FirstSeen    time.Time `json:"first_seen"`
	LastSeen     time.Time `json:"last_seen"`
	TrendScore   float64   `json:"trend_score"`
}

// CommunitySentiment summarizes recent activity in one community.
type CommunitySentiment struct {
	Community           string    `json:"community"`
	PostCount           int       `json:"post_count"`
	FinanceRatio        float64   `json:"finance_ratio"`
	AvgScore            float64   `json:"avg_score"`
	AvgQuality          float64   `json:"avg_quality"`
	UniqueSymbols       int       `json:"unique_symbols"`
	TotalSymbolMentions int       `json:"total_symbol_mentions"`
	Overall             string    `json:"overall"` // "positive", "negative", "neutral"
	Confidence          float64   `json:"confidence"`
	NoPostsFound        bool      `json:"no_posts_found"`
	AnalyzedAt          time.Time `json:"analyzed_at"`
}

// SyncRunResult records the outcome of one scheduled sync run.
type SyncRunResult struct {
	Job            string        `json:"job"`
	Success        bool          `json:"success"`
	Timestamp      time.Time     `json:"timestamp"`
	Duration       time.Duration `json:"duration"`
	PostsCollected int           `json:"posts_collected"`
	PostsSaved     int           `json:"posts_saved"`
	CommentsSaved  int           `json:"comments_saved"`
	UniqueSymbols  int           `json:"unique_symbols"`
	SourcesSkipped int           `json:"sources_skipped,omitempty"`
	Error          string        `json:"error,omitempty"`
}

// SyncStats is the process-wide aggregate sync state. It is reset only
// by process restart. Callers must not mutate a returned snapshot.
type SyncStats struct {
	LastSyncTime        *time.Time       `json:"last_sync_time,omitempty"`
	TotalPostsCollected int              `json:"total_posts_collected"`
	TotalPostsSaved     int              `json:"total_posts_saved"`
	TotalCommentsSaved  int              `json:"total_comments_saved"`
	TotalRuns           int              `json:"total_runs"`
	ErrorCount          int              `json:"error_count"`
	LastError           string           `json:"last_error,omitempty"`
	History             []SyncRunResult  `json:"history"`
	Trending            []TrendingSymbol `json:"trending,omitempty"`
	TrendingUpdatedAt   *time.Time       `json:"trending_updated_at,omitempty"`
}

// StatsSnapshot is the externally served stats view: the aggregate state
// plus windowed counts fetched from the persistence store.
type StatsSnapshot struct {
	SyncStats
	PostsSaved24h int `json:"posts_saved_24h"`
	PostsSaved7d  int `json:"posts_saved_7d"`
}

// HealthIssue pairs a detected problem with a remediation hint.
type HealthIssue struct {
	Issue          string `json:"issue"`
	Recommendation string `json:"recommendation"`
}

// HealthStatus is the derived health of the sync pipeline.
type HealthStatus struct {
	Status    string        `json:"status"` // "healthy", "degraded", "unhealthy"
	Issues    []HealthIssue `json:"issues,omitempty"`
	CheckedAt time.Time     `json:"checked_at"`
}
