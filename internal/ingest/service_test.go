package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/stockpulse/social-ingest/internal/models"
)

// MockClient is a mock implementation of the platform client
type MockClient struct {
	mock.Mock
}

func (m *MockClient) Authenticate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockClient) GetCommunityInfo(ctx context.Context, name string) (*models.CommunityInfo, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CommunityInfo), args.Error(1)
}

func (m *MockClient) GetPosts(ctx context.Context, community, sort string, limit, minScore int, timeFilter string) (*models.CollectionResult, error) {
	args := m.Called(ctx, community, sort, limit, minScore, timeFilter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CollectionResult), args.Error(1)
}

func (m *MockClient) SearchPosts(ctx context.Context, query, community, sort, timeFilter string, limit, minScore int) (*models.CollectionResult, error) {
	args := m.Called(ctx, query, community, sort, timeFilter, limit, minScore)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CollectionResult), args.Error(1)
}

func (m *MockClient) GetPostComments(ctx context.Context, postID string, limit int, sort string, minScore int) ([]models.Comment, error) {
	args := m.Called(ctx, postID, limit, sort, minScore)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Comment), args.Error(1)
}

func (m *MockClient) GetFinancePosts(ctx context.Context, communities []string, limitPerCommunity, minScore int, sort string) (*models.CollectionResult, error) {
	args := m.Called(ctx, communities, limitPerCommunity, minScore, sort)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CollectionResult), args.Error(1)
}

// MockTickerStore is a mock implementation of the ticker store
type MockTickerStore struct {
	mock.Mock
}

func (m *MockTickerStore) ActiveSymbols(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// MockPostStore is a mock implementation of the persistence store
type MockPostStore struct {
	mock.Mock
}

func (m *MockPostStore) SaveBatch(ctx context.Context, posts []models.Post, comments []models.Comment) error {
	args := m.Called(ctx, posts, comments)
	return args.Error(0)
}

func (m *MockPostStore) CountPostsSince(ctx context.Context, since time.Time) (int, error) {
	args := m.Called(ctx, since)
	return args.Int(0), args.Error(1)
}

func financeResult(posts ...models.Post) *models.CollectionResult {
	return &models.CollectionResult{
		Posts:       posts,
		Method:      "finance_posts",
		CollectedAt: time.Now().UTC(),
		Report:      models.FetchReport{Succeeded: []string{"stocks"}},
	}
}

func TestService_GetFinanceDiscussions_ValidatesSymbols(t *testing.T) {
	client := &MockClient{}
	tickers := &MockTickerStore{}
	tickers.On("ActiveSymbols", mock.Anything).Return([]string{"TSLA", "AAPL"}, nil)

	client.On("GetFinancePosts", mock.Anything, []string{"stocks"}, 25, 10, "hot").Return(financeResult(
		models.Post{ID: "p1", ExtractedSymbols: []string{"TSLA", "ZZZQ"}, MentionsStocks: true, QualityScore: 0.8},
		models.Post{ID: "p2", ExtractedSymbols: []string{"ZZZQ"}, MentionsStocks: true, QualityScore: 0.8},
	), nil)

	service := NewService(client, tickers, nil, []string{"stocks"}, time.Hour)

	result, err := service.GetFinanceDiscussions(context.Background(), nil, 25, 10, 0.3)
	require.NoError(t, err)

	// p1 keeps only its cache-validated symbol, p2 is left with none and dropped
	require.Len(t, result.Posts, 1)
	assert.Equal(t, "p1", result.Posts[0].ID)
	assert.Equal(t, []string{"TSLA"}, result.Posts[0].ExtractedSymbols)
	assert.True(t, result.Posts[0].MentionsStocks)
	assert.Equal(t, 2, service.SymbolCacheSize())
}

func TestService_GetFinanceDiscussions_EmptyCachePassesThrough(t *testing.T) {
	client := &MockClient{}
	tickers := &MockTickerStore{}
	tickers.On("ActiveSymbols", mock.Anything).Return([]string{}, nil)

	client.On("GetFinancePosts", mock.Anything, []string{"stocks"}, 25, 0, "hot").Return(financeResult(
		models.Post{ID: "p1", ExtractedSymbols: []string{"ZZZQ"}, MentionsStocks: true, QualityScore: 0.9},
	), nil)

	service := NewService(client, tickers, nil, []string{"stocks"}, time.Hour)

	result, err := service.GetFinanceDiscussions(context.Background(), nil, 25, 0, 0)
	require.NoError(t, err)

	// with no symbol universe loaded the filter must not drop anything
	require.Len(t, result.Posts, 1)
	assert.Equal(t, []string{"ZZZQ"}, result.Posts[0].ExtractedSymbols)
}

func TestService_GetFinanceDiscussions_CacheRefreshFailureNonFatal(t *testing.T) {
	client := &MockClient{}
	tickers := &MockTickerStore{}
	tickers.On("ActiveSymbols", mock.Anything).Return(nil, errors.New("ticker source down"))

	client.On("GetFinancePosts", mock.Anything, []string{"stocks"}, 25, 0, "hot").Return(financeResult(
		models.Post{ID: "p1", ExtractedSymbols: []string{"TSLA"}, MentionsStocks: true, QualityScore: 0.9},
	), nil)

	service := NewService(client, tickers, nil, []string{"stocks"}, time.Hour)

	result, err := service.GetFinanceDiscussions(context.Background(), nil, 25, 0, 0)
	require.NoError(t, err)
	assert.Len(t, result.Posts, 1)
}

func TestService_GetFinanceDiscussions_QualityFilter(t *testing.T) {
	client := &MockClient{}
	tickers := &MockTickerStore{}
	tickers.On("ActiveSymbols", mock.Anything).Return([]string{"TSLA"}, nil)

	client.On("GetFinancePosts", mock.Anything, []string{"stocks"}, 25, 0, "hot").Return(financeResult(
		models.Post{ID: "good", ExtractedSymbols: []string{"TSLA"}, MentionsStocks: true, QualityScore: 0.7},
		models.Post{ID: "thin", ExtractedSymbols: []string{"TSLA"}, MentionsStocks: true, QualityScore: 0.1},
	), nil)

	service := NewService(client, tickers, nil, []string{"stocks"}, time.Hour)

	result, err := service.GetFinanceDiscussions(context.Background(), nil, 25, 0, 0.3)
	require.NoError(t, err)
	require.Len(t, result.Posts, 1)
	assert.Equal(t, "good", result.Posts[0].ID)
}

func TestService_GetStockDiscussions_MergesAndDeduplicates(t *testing.T) {
	client := &MockClient{}
	tickers := &MockTickerStore{}

	shared := models.Post{ID: "p1", Score: 80}
	searchResult := func(posts ...models.Post) *models.CollectionResult {
		return &models.CollectionResult{Posts: posts}
	}

	client.On("SearchPosts", mock.Anything, "TSLA", "stocks", "relevance", "week", 10, 0).
		Return(searchResult(shared, models.Post{ID: "p2", Score: 200}), nil)
	client.On("SearchPosts", mock.Anything, "$TSLA", "stocks", "relevance", "week", 10, 0).
		Return(searchResult(shared), nil)
	client.On("SearchPosts", mock.Anything, "ticker:TSLA", "stocks", "relevance", "week", 10, 0).
		Return(searchResult(), nil)
	client.On("GetPostComments", mock.Anything, "p1", 5, "top", 0).
		Return([]models.Comment{{ID: "c1", Score: 5}}, nil)
	client.On("GetPostComments", mock.Anything, "p2", 5, "top", 0).
		Return([]models.Comment{{ID: "c2", Score: 50}}, nil)

	service := NewService(client, tickers, nil, []string{"stocks"}, time.Hour)

	result, err := service.GetStockDiscussions(context.Background(), "TSLA", nil, 10, "week", 0)
	require.NoError(t, err)

	// p1 appears in two query results but is collected once; posts and
	// comments come back sorted by score descending
	require.Len(t, result.Posts, 2)
	assert.Equal(t, "p2", result.Posts[0].ID)
	assert.Equal(t, "p1", result.Posts[1].ID)
	require.Len(t, result.Comments, 2)
	assert.Equal(t, "c2", result.Comments[0].ID)
	assert.Equal(t, []string{"stocks"}, result.Report.Succeeded)
}

func TestService_GetStockDiscussions_QueryFailureSkipped(t *testing.T) {
	client := &MockClient{}
	tickers := &MockTickerStore{}

	client.On("SearchPosts", mock.Anything, "TSLA", "stocks", "relevance", "week", 10, 0).
		Return(nil, errors.New("search unavailable"))
	client.On("SearchPosts", mock.Anything, "$TSLA", "stocks", "relevance", "week", 10, 0).
		Return(&models.CollectionResult{Posts: []models.Post{{ID: "p1", Score: 10}}}, nil)
	client.On("SearchPosts", mock.Anything, "ticker:TSLA", "stocks", "relevance", "week", 10, 0).
		Return(&models.CollectionResult{}, nil)
	client.On("GetPostComments", mock.Anything, "p1", 5, "top", 0).
		Return([]models.Comment{}, nil)

	service := NewService(client, tickers, nil, []string{"stocks"}, time.Hour)

	result, err := service.GetStockDiscussions(context.Background(), "TSLA", nil, 10, "week", 0)
	require.NoError(t, err)

	assert.Len(t, result.Posts, 1)
	require.Len(t, result.Report.Skipped, 1)
	assert.Equal(t, "stocks:TSLA", result.Report.Skipped[0].Name)
	assert.Equal(t, []string{"stocks"}, result.Report.Succeeded)
}

func TestService_GetTrendingStocks(t *testing.T) {
	client := &MockClient{}
	tickers := &MockTickerStore{}
	tickers.On("ActiveSymbols", mock.Anything).Return([]string{"TSLA", "AAPL", "GME"}, nil)

	now := time.Now().UTC()
	client.On("GetFinancePosts", mock.Anything, []string{"stocks"}, 25, 0, "hot").Return(financeResult(
		models.Post{ID: "p1", Community: "stocks", Score: 500, QualityScore: 0.8, CreatedAt: now.Add(-2 * time.Hour),
			ExtractedSymbols: []string{"TSLA"}, MentionsStocks: true},
		models.Post{ID: "p2", Community: "wallstreetbets", Score: 10, QualityScore: 0.4, CreatedAt: now,
			ExtractedSymbols: []string{"TSLA", "AAPL"}, MentionsStocks: true},
		models.Post{ID: "p3", Community: "stocks", Score: 5, QualityScore: 0.2, CreatedAt: now,
			ExtractedSymbols: []string{"GME"}, MentionsStocks: true},
	), nil)

	service := NewService(client, tickers, nil, []string{"stocks"}, time.Hour)

	trending, err := service.GetTrendingStocks(context.Background(), nil, 25, "day", 2)
	require.NoError(t, err)

	// only TSLA clears the two-mention floor
	require.Len(t, trending, 1)
	tsla := trending[0]
	assert.Equal(t, "TSLA", tsla.Symbol)
	assert.Equal(t, 2, tsla.MentionCount)
	assert.Equal(t, 510, tsla.TotalScore)
	assert.InDelta(t, 255.0, tsla.AvgScore, 0.001)
	assert.InDelta(t, 0.6, tsla.AvgQuality, 0.001)
	assert.Equal(t, []string{"stocks", "wallstreetbets"}, tsla.Communities)
	assert.Equal(t, now.Add(-2*time.Hour), tsla.FirstSeen)
	assert.Equal(t, now, tsla.LastSeen)
	assert.Greater(t, tsla.TrendScore, 0.0)
	assert.LessOrEqual(t, tsla.TrendScore, 1.0)
}

func TestService_GetTrendingStocks_SortedByTrendScore(t *testing.T) {
	client := &MockClient{}
	tickers := &MockTickerStore{}
	tickers.On("ActiveSymbols", mock.Anything).Return([]string{}, nil)

	now := time.Now().UTC()
	posts := []models.Post{
		{ID: "p1", Community: "stocks", Score: 900, QualityScore: 0.9, CreatedAt: now, ExtractedSymbols: []string{"NVDA"}, MentionsStocks: true},
		{ID: "p2", Community: "stocks", Score: 5, QualityScore: 0.1, CreatedAt: now, ExtractedSymbols: []string{"XYZ"}, MentionsStocks: true},
	}
	client.On("GetFinancePosts", mock.Anything, []string{"stocks"}, 25, 0, "hot").Return(financeResult(posts...), nil)

	service := NewService(client, tickers, nil, []string{"stocks"}, time.Hour)

	trending, err := service.GetTrendingStocks(context.Background(), nil, 25, "day", 1)
	require.NoError(t, err)
	require.Len(t, trending, 2)
	assert.Equal(t, "NVDA", trending[0].Symbol)
	assert.Greater(t, trending[0].TrendScore, trending[1].TrendScore)
}

func TestService_GetCommunitySentiment(t *testing.T) {
	tests := []struct {
		name       string
		posts      []models.Post
		overall    string
		confidence float64
	}{
		{
			name: "Positive community",
			posts: []models.Post{
				{Score: 80, QualityScore: 0.7, IsFinanceRelated: true, ExtractedSymbols: []string{"TSLA"}},
				{Score: 40, QualityScore: 0.7, IsFinanceRelated: true, ExtractedSymbols: []string{"TSLA", "AAPL"}},
			},
			overall:    "positive",
			confidence: 1.0,
		},
		{
			name: "Negative community",
			posts: []models.Post{
				{Score: 2, QualityScore: 0.1},
				{Score: 4, QualityScore: 0.2},
			},
			overall:    "negative",
			confidence: (0.35 - 0.15) / 0.35,
		},
		{
			name: "Mixed community stays neutral",
			posts: []models.Post{
				{Score: 200, QualityScore: 0.1},
			},
			overall:    "neutral",
			confidence: (0.35 - 0.1) / 0.35,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &MockClient{}
			client.On("GetPosts", mock.Anything, "stocks", "top", 25, 0, "day").
				Return(&models.CollectionResult{Posts: tt.posts}, nil)

			service := NewService(client, &MockTickerStore{}, nil, nil, time.Hour)

			sentiment, err := service.GetCommunitySentiment(context.Background(), "stocks", 25, "day")
			require.NoError(t, err)
			assert.Equal(t, tt.overall, sentiment.Overall)
			assert.InDelta(t, tt.confidence, sentiment.Confidence, 0.001)
			assert.Equal(t, len(tt.posts), sentiment.PostCount)
			assert.False(t, sentiment.NoPostsFound)
		})
	}
}

func TestService_GetCommunitySentiment_NoPosts(t *testing.T) {
	client := &MockClient{}
	client.On("GetPosts", mock.Anything, "ghosttown", "top", 25, 0, "day").
		Return(&models.CollectionResult{}, nil)

	service := NewService(client, &MockTickerStore{}, nil, nil, time.Hour)

	sentiment, err := service.GetCommunitySentiment(context.Background(), "ghosttown", 25, "day")
	require.NoError(t, err)
	assert.Equal(t, "neutral", sentiment.Overall)
	assert.True(t, sentiment.NoPostsFound)
	assert.Zero(t, sentiment.Confidence)
	assert.Zero(t, sentiment.PostCount)
}

func TestService_GetCommunitySentiment_SymbolCounts(t *testing.T) {
	client := &MockClient{}
	client.On("GetPosts", mock.Anything, "stocks", "top", 25, 0, "week").
		Return(&models.CollectionResult{Posts: []models.Post{
			{Score: 10, QualityScore: 0.5, ExtractedSymbols: []string{"TSLA", "AAPL"}},
			{Score: 10, QualityScore: 0.5, ExtractedSymbols: []string{"TSLA"}},
		}}, nil)

	service := NewService(client, &MockTickerStore{}, nil, nil, time.Hour)

	sentiment, err := service.GetCommunitySentiment(context.Background(), "stocks", 25, "week")
	require.NoError(t, err)
	assert.Equal(t, 2, sentiment.UniqueSymbols)
	assert.Equal(t, 3, sentiment.TotalSymbolMentions)
}

func TestService_SaveToStore(t *testing.T) {
	posts := []models.Post{{ID: "p1"}}
	comments := []models.Comment{{ID: "c1"}}

	t.Run("No store configured", func(t *testing.T) {
		service := NewService(&MockClient{}, &MockTickerStore{}, nil, nil, time.Hour)
		assert.ErrorIs(t, service.SaveToStore(context.Background(), posts, comments), ErrNoStore)
	})

	t.Run("Delegates to the store", func(t *testing.T) {
		postStore := &MockPostStore{}
		postStore.On("SaveBatch", mock.Anything, posts, comments).Return(nil)

		service := NewService(&MockClient{}, &MockTickerStore{}, postStore, nil, time.Hour)
		require.NoError(t, service.SaveToStore(context.Background(), posts, comments))
		postStore.AssertExpectations(t)
	})

	t.Run("Store failure surfaces", func(t *testing.T) {
		storeErr := errors.New("disk full")
		postStore := &MockPostStore{}
		postStore.On("SaveBatch", mock.Anything, posts, comments).Return(storeErr)

		service := NewService(&MockClient{}, &MockTickerStore{}, postStore, nil, time.Hour)
		assert.ErrorIs(t, service.SaveToStore(context.Background(), posts, comments), storeErr)
	})
}

func TestService_SymbolCacheTTL(t *testing.T) {
	client := &MockClient{}
	tickers := &MockTickerStore{}
	tickers.On("ActiveSymbols", mock.Anything).Return([]string{"TSLA"}, nil)

	client.On("GetFinancePosts", mock.Anything, []string{"stocks"}, 25, 0, "hot").
		Return(financeResult(), nil)

	service := NewService(client, tickers, nil, []string{"stocks"}, time.Hour)

	_, err := service.GetFinanceDiscussions(context.Background(), nil, 25, 0, 0)
	require.NoError(t, err)
	_, err = service.GetFinanceDiscussions(context.Background(), nil, 25, 0, 0)
	require.NoError(t, err)

	// a fresh cache is not refetched
	tickers.AssertNumberOfCalls(t, "ActiveSymbols", 1)
}
