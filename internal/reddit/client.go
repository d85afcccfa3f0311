package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/stockpulse/social-ingest/internal/models"
	"github.com/stockpulse/social-ingest/internal/ratelimit"
)

const (
	baseURL = "https://oauth.reddit.com"
	authURL = "https://www.reddit.com/api/v1/access_token"

	// ProviderKey is the rate-limiter key shared by every call this
	// client makes; all processes using the same credential must pace
	// against the same key.
	ProviderKey = "reddit"

	maxListingLimit = 100
)

var validPostSorts = map[string]bool{
	"hot": true, "new": true, "top": true, "rising": true, "controversial": true,
}

var validSearchSorts = map[string]bool{
	"relevance": true, "hot": true, "top": true, "new": true, "comments": true,
}

var validCommentSorts = map[string]bool{
	"top": true, "new": true, "best": true, "controversial": true, "old": true, "qa": true,
}

var validTimeFilters = map[string]bool{
	"hour": true, "day": true, "week": true, "month": true, "year": true, "all": true,
}

// Client is a read-only Reddit API client. Every network call acquires a
// rate-limit slot first, so concurrent callers and sibling processes
// sharing the credential stay inside the platform's budget.
type Client struct {
	clientID     string
	clientSecret string
	userAgent    string
	client       *resty.Client
	limiter      ratelimit.Limiter

	// overridable in tests
	baseURL string
	authURL string

	mu          sync.RWMutex
	accessToken string
	tokenExpiry time.Time
}

// NewClient creates a Reddit client paced by the given limiter.
func NewClient(clientID, clientSecret, userAgent string, limiter ratelimit.Limiter) *Client {
	return &Client{
		clientID:     clientID,
		clientSecret: clientSecret,
		userAgent:    userAgent,
		client:       resty.New().SetTimeout(30 * time.Second),
		limiter:      limiter,
		baseURL:      baseURL,
		authURL:      authURL,
	}
}

func (c *Client) token() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken, c.accessToken != "" && time.Now().Before(c.tokenExpiry)
}

// Authenticate establishes a read-only session. Idempotent: calling it
// with a still-valid token is a no-op.
func (c *Client) Authenticate(ctx context.Context) error {
	if _, ok := c.token(); ok {
		return nil
	}

	if err := c.limiter.Acquire(ctx, ProviderKey); err != nil {
		return err
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("User-Agent", c.userAgent).
		SetBasicAuth(c.clientID, c.clientSecret).
		SetFormData(map[string]string{
			"grant_type": "client_credentials",
		}).
		Post(c.authURL)

	if err != nil {
		return &AuthError{Err: err}
	}

	if resp.StatusCode() != 200 {
		return &AuthError{Err: fmt.Errorf("token endpoint returned status %d", resp.StatusCode())}
	}

	var auth authResponse
	if err := json.Unmarshal(resp.Body(), &auth); err != nil {
		return &AuthError{Err: fmt.Errorf("failed to decode token response: %w", err)}
	}

	if auth.Error != "" || auth.AccessToken == "" {
		return &AuthError{Err: fmt.Errorf("token endpoint rejected credentials: %s", auth.Error)}
	}

	c.mu.Lock()
	c.accessToken = auth.AccessToken
	// refresh one minute early so in-flight requests never race expiry
	c.tokenExpiry = time.Now().Add(time.Duration(auth.ExpiresIn)*time.Second - time.Minute)
	c.mu.Unlock()

	logrus.Info("Authenticated with Reddit API")
	return nil
}

// get performs one authenticated GET against the platform, pacing
// through the rate limiter first.
func (c *Client) get(ctx context.Context, op, url string, params map[string]string) ([]byte, error) {
	if err := c.Authenticate(ctx); err != nil {
		return nil, err
	}

	if err := c.limiter.Acquire(ctx, ProviderKey); err != nil {
		return nil, err
	}

	token, _ := c.token()

	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+token).
		SetHeader("User-Agent", c.userAgent).
		SetQueryParams(params).
		Get(url)

	if err != nil {
		return nil, &APIError{Op: op, Err: err}
	}

	switch resp.StatusCode() {
	case 200:
		return resp.Body(), nil
	case 401, 403:
		// token revoked or credentials lost scope mid-run
		c.mu.Lock()
		c.accessToken = ""
		c.mu.Unlock()
		return nil, &AuthError{Err: fmt.Errorf("request rejected with status %d", resp.StatusCode())}
	default:
		return nil, &APIError{
			Op:         op,
			StatusCode: resp.StatusCode(),
			Err:        fmt.Errorf("unexpected response: %s", string(resp.Body())),
		}
	}
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > maxListingLimit {
		return maxListingLimit
	}
	return limit
}

// GetCommunityInfo fetches community metadata.
func (c *Client) GetCommunityInfo(ctx context.Context, name string) (*models.CommunityInfo, error) {
	body, err := c.get(ctx, "community_info", fmt.Sprintf("%s/r/%s/about.json", c.baseURL, name), nil)
	if err != nil {
		return nil, err
	}

	var envelope listingChild
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &APIError{Op: "community_info", Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	var data communityData
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		return nil, &APIError{Op: "community_info", Err: fmt.Errorf("failed to decode community: %w", err)}
	}

	info := convertCommunity(&data)
	return &info, nil
}

// GetUserInfo fetches account metadata for a platform user.
func (c *Client) GetUserInfo(ctx context.Context, username string) (*models.UserInfo, error) {
	body, err := c.get(ctx, "user_info", fmt.Sprintf("%s/user/%s/about.json", c.baseURL, username), nil)
	if err != nil {
		return nil, err
	}

	var envelope listingChild
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &APIError{Op: "user_info", Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	var data userData
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		return nil, &APIError{Op: "user_info", Err: fmt.Errorf("failed to decode user: %w", err)}
	}

	info := convertUser(&data)
	return &info, nil
}

// GetPosts fetches a community's listing under the given sort order,
// dropping posts below minScore.
func (c *Client) GetPosts(ctx context.Context, community, sort string, limit, minScore int, timeFilter string) (*models.CollectionResult, error) {
	if !validPostSorts[sort] {
		return nil, &ValidationError{Param: "sort", Value: sort}
	}
	if timeFilter != "" && !validTimeFilters[timeFilter] {
		return nil, &ValidationError{Param: "time_filter", Value: timeFilter}
	}

	params := map[string]string{
		"limit": fmt.Sprintf("%d", clampLimit(limit)),
	}
	if timeFilter != "" {
		params["t"] = timeFilter
	}

	body, err := c.get(ctx, "get_posts", fmt.Sprintf("%s/r/%s/%s.json", c.baseURL, community, sort), params)
	if err != nil {
		return nil, err
	}

	envelope, err := decodeListing(body, "get_posts")
	if err != nil {
		return nil, err
	}

	result := &models.CollectionResult{
		Method: "get_posts",
		QueryParams: map[string]string{
			"community":   community,
			"sort":        sort,
			"time_filter": timeFilter,
		},
		CollectedAt: time.Now().UTC(),
	}
	result.Posts = c.collectPosts(envelope, minScore)
	result.Report.Succeeded = []string{community}

	return result, nil
}

// SearchPosts searches the platform, optionally restricted to one
// community.
func (c *Client) SearchPosts(ctx context.Context, query, community, sort, timeFilter string, limit, minScore int) (*models.CollectionResult, error) {
	if !validSearchSorts[sort] {
		return nil, &ValidationError{Param: "sort", Value: sort}
	}
	if timeFilter != "" && !validTimeFilters[timeFilter] {
		return nil, &ValidationError{Param: "time_filter", Value: timeFilter}
	}

	params := map[string]string{
		"q":     query,
		"sort":  sort,
		"limit": fmt.Sprintf("%d", clampLimit(limit)),
	}
	if timeFilter != "" {
		params["t"] = timeFilter
	}

	url := c.baseURL + "/search.json"
	if community != "" {
		params["restrict_sr"] = "1"
		url = fmt.Sprintf("%s/r/%s/search.json", c.baseURL, community)
	}

	body, err := c.get(ctx, "search_posts", url, params)
	if err != nil {
		return nil, err
	}

	envelope, err := decodeListing(body, "search_posts")
	if err != nil {
		return nil, err
	}

	result := &models.CollectionResult{
		Method: "search_posts",
		QueryParams: map[string]string{
			"query":       query,
			"community":   community,
			"sort":        sort,
			"time_filter": timeFilter,
		},
		CollectedAt: time.Now().UTC(),
	}
	result.Posts = c.collectPosts(envelope, minScore)

	return result, nil
}

// GetPostComments fetches the comment tree of one post, flattened,
// dropping comments below minScore.
func (c *Client) GetPostComments(ctx context.Context, postID string, limit int, sort string, minScore int) ([]models.Comment, error) {
	if sort != "" && !validCommentSorts[sort] {
		return nil, &ValidationError{Param: "sort", Value: sort}
	}

	params := map[string]string{
		"limit": fmt.Sprintf("%d", clampLimit(limit)),
	}
	if sort != "" {
		params["sort"] = sort
	}

	body, err := c.get(ctx, "get_comments", fmt.Sprintf("%s/comments/%s.json", c.baseURL, postID), params)
	if err != nil {
		return nil, err
	}

	// The comments endpoint returns two listings: the post itself, then
	// the comment tree.
	var envelopes []listingEnvelope
	if err := json.Unmarshal(body, &envelopes); err != nil {
		return nil, &APIError{Op: "get_comments", Err: fmt.Errorf("failed to decode comment listing: %w", err)}
	}
	if len(envelopes) < 2 {
		return nil, nil
	}

	var comments []models.Comment
	for _, child := range envelopes[1].Data.Children {
		if child.Kind != "t1" {
			continue
		}
		var data commentData
		if err := json.Unmarshal(child.Data, &data); err != nil {
			logrus.WithError(err).Debug("Skipping undecodable comment")
			continue
		}
		comment := convertComment(&data, postID)
		if comment.Score < minScore {
			continue
		}
		comments = append(comments, comment)
	}

	return comments, nil
}

// GetFinancePosts collects finance-related posts from several
// communities sequentially, best-effort: one community's failure is
// recorded in the report and the rest still contribute. The merged
// result is sorted by score descending.
func (c *Client) GetFinancePosts(ctx context.Context, communities []string, limitPerCommunity, minScore int, sortOrder string) (*models.CollectionResult, error) {
	if !validPostSorts[sortOrder] {
		return nil, &ValidationError{Param: "sort", Value: sortOrder}
	}

	result := &models.CollectionResult{
		Method: "finance_posts",
		QueryParams: map[string]string{
			"sort": sortOrder,
		},
		CollectedAt: time.Now().UTC(),
	}

	for _, community := range communities {
		collected, err := c.GetPosts(ctx, community, sortOrder, limitPerCommunity, minScore, "")
		if err != nil {
			logrus.WithError(err).WithField("community", community).Error("Skipping community after fetch failure")
			result.Report.Skipped = append(result.Report.Skipped, models.SkippedSource{
				Name:   community,
				Reason: err.Error(),
			})
			continue
		}

		for _, post := range collected.Posts {
			if post.IsFinanceRelated {
				result.Posts = append(result.Posts, post)
			}
		}
		result.Report.Succeeded = append(result.Report.Succeeded, community)
	}

	sort.Slice(result.Posts, func(i, j int) bool {
		return result.Posts[i].Score > result.Posts[j].Score
	})

	logrus.WithFields(logrus.Fields{
		"communities": len(communities),
		"skipped":     len(result.Report.Skipped),
		"posts":       len(result.Posts),
	}).Info("Collected finance posts")

	return result, nil
}

func (c *Client) collectPosts(envelope *listingEnvelope, minScore int) []models.Post {
	var posts []models.Post
	for _, child := range envelope.Data.Children {
		if child.Kind != "t3" {
			continue
		}
		var data postData
		if err := json.Unmarshal(child.Data, &data); err != nil {
			logrus.WithError(err).Debug("Skipping undecodable post")
			continue
		}
		post := convertPost(&data)
		if post.Score < minScore {
			continue
		}
		posts = append(posts, post)
	}
	return posts
}
