package reddit

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/stockpulse/social-ingest/internal/models"
)

// Wire shapes for the platform's JSON envelopes. Everything downstream
// of this file only ever sees the normalized models; if the platform
// changes a field, this is the single place to touch.

type listingEnvelope struct {
	Kind string `json:"kind"`
	Data struct {
		After    string         `json:"after"`
		Children []listingChild `json:"children"`
	} `json:"data"`
}

type listingChild struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

type postData struct {
	ID                string  `json:"id"`
	Title             string  `json:"title"`
	Selftext          string  `json:"selftext"`
	Author            string  `json:"author"`
	Subreddit         string  `json:"subreddit"`
	Score             int     `json:"score"`
	UpvoteRatio       float64 `json:"upvote_ratio"`
	NumComments       int     `json:"num_comments"`
	CreatedUTC        float64 `json:"created_utc"`
	Permalink         string  `json:"permalink"`
	LinkFlairText     string  `json:"link_flair_text"`
	IsSelf            bool    `json:"is_self"`
	IsVideo           bool    `json:"is_video"`
	Stickied          bool    `json:"stickied"`
	Locked            bool    `json:"locked"`
	Archived          bool    `json:"archived"`
	IsOriginalContent bool    `json:"is_original_content"`
}

type commentData struct {
	ID            string          `json:"id"`
	Body          string          `json:"body"`
	Author        string          `json:"author"`
	Score         int             `json:"score"`
	CreatedUTC    float64         `json:"created_utc"`
	Permalink     string          `json:"permalink"`
	ParentID      string          `json:"parent_id"`
	Depth         int             `json:"depth"`
	Distinguished string          `json:"distinguished"`
	Edited        json.RawMessage `json:"edited"` // false or an edit timestamp
}

type communityData struct {
	DisplayName       string  `json:"display_name"`
	Title             string  `json:"title"`
	PublicDescription string  `json:"public_description"`
	Subscribers       int     `json:"subscribers"`
	ActiveUserCount   int     `json:"active_user_count"`
	CreatedUTC        float64 `json:"created_utc"`
	SubredditType     string  `json:"subreddit_type"`
	Quarantine        bool    `json:"quarantine"`
	Over18            bool    `json:"over18"`
}

type userData struct {
	Name         string  `json:"name"`
	LinkKarma    int     `json:"link_karma"`
	CommentKarma int     `json:"comment_karma"`
	CreatedUTC   float64 `json:"created_utc"`
	Verified     bool    `json:"verified"`
	IsGold       bool    `json:"is_gold"`
}

type authResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Error       string `json:"error"`
}

func convertPost(d *postData) models.Post {
	symbols := ExtractSymbols(d.Title, d.Selftext)

	post := models.Post{
		ID:                d.ID,
		Title:             d.Title,
		Body:              d.Selftext,
		Author:            d.Author,
		Community:         d.Subreddit,
		Score:             d.Score,
		UpvoteRatio:       d.UpvoteRatio,
		CommentCount:      d.NumComments,
		CreatedAt:         time.Unix(int64(d.CreatedUTC), 0).UTC(),
		URL:               "https://reddit.com" + d.Permalink,
		LinkFlair:         d.LinkFlairText,
		IsSelf:            d.IsSelf,
		IsVideo:           d.IsVideo,
		IsPinned:          d.Stickied,
		IsLocked:          d.Locked,
		IsArchived:        d.Archived,
		IsOriginalContent: d.IsOriginalContent,
		ExtractedSymbols:  symbols,
		MentionsStocks:    len(symbols) > 0,
	}

	post.QualityScore = postQuality(&post)
	post.IsFinanceRelated = isFinanceRelated(post.Title, post.Body, post.LinkFlair, post.MentionsStocks)

	return post
}

func convertComment(d *commentData, postID string) models.Comment {
	comment := models.Comment{
		ID:               d.ID,
		Body:             d.Body,
		Author:           d.Author,
		Score:            d.Score,
		CreatedAt:        time.Unix(int64(d.CreatedUTC), 0).UTC(),
		Permalink:        "https://reddit.com" + d.Permalink,
		ParentID:         d.ParentID,
		PostID:           postID,
		Depth:            d.Depth,
		Distinguished:    d.Distinguished != "",
		Edited:           len(d.Edited) > 0 && string(d.Edited) != "false",
		ExtractedSymbols: ExtractSymbols(d.Body),
	}

	comment.QualityScore = commentQuality(&comment)

	return comment
}

func convertCommunity(d *communityData) models.CommunityInfo {
	info := models.CommunityInfo{
		Name:        d.DisplayName,
		Subscribers: d.Subscribers,
		ActiveUsers: d.ActiveUserCount,
		CreatedAt:   time.Unix(int64(d.CreatedUTC), 0).UTC(),
		IsPrivate:   d.SubredditType == "private",
		Quarantined: d.Quarantine,
		Over18:      d.Over18,
	}

	info.FinanceRelevance = communityFinanceRelevance(d)
	ageYears := time.Since(info.CreatedAt).Hours() / (24 * 365)
	info.ReputationScore = communityReputation(&info, ageYears)

	return info
}

// communityFinanceRelevance estimates how finance-focused a community is
// from its self-description: the fraction of finance keywords it hits,
// saturating at five.
func communityFinanceRelevance(d *communityData) float64 {
	text := strings.ToLower(d.Title + " " + d.PublicDescription + " " + d.DisplayName)
	hits := 0
	for _, keyword := range financeKeywords {
		if strings.Contains(text, keyword) {
			hits++
		}
	}
	if hits > 5 {
		hits = 5
	}
	return float64(hits) / 5.0
}

func convertUser(d *userData) models.UserInfo {
	info := models.UserInfo{
		Username:     d.Name,
		LinkKarma:    d.LinkKarma,
		CommentKarma: d.CommentKarma,
		Verified:     d.Verified,
		Premium:      d.IsGold,
	}

	if d.CreatedUTC > 0 {
		created := time.Unix(int64(d.CreatedUTC), 0).UTC()
		info.AccountAgeDays = time.Since(created).Hours() / 24
	}

	info.ReputationScore = userReputation(&info)

	return info
}

func decodeListing(body []byte, op string) (*listingEnvelope, error) {
	var envelope listingEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &APIError{Op: op, Err: fmt.Errorf("failed to decode listing: %w", err)}
	}
	return &envelope, nil
}
