package reddit

import (
	"math"

	"github.com/stockpulse/social-ingest/internal/models"
)

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// postQuality scores a post by engagement, vote ratio, length and
// content flags. Always in [0,1].
func postQuality(p *models.Post) float64 {
	score := math.Min(float64(p.Score)/1000.0, 1.0) * 0.4

	engagement := 0.0
	if p.Score > 0 {
		engagement = math.Min(float64(p.CommentCount)/float64(p.Score), 1.0) * 0.3
	}

	// upvote ratio below 0.5 counts against the post
	upvote := (p.UpvoteRatio - 0.5) * 0.2

	length := math.Min(float64(len(p.Body))/2000.0, 1.0) * 0.1

	bonus := 0.0
	if p.IsOriginalContent {
		bonus += 0.05
	}

	penalty := 0.0
	if p.IsLocked {
		penalty += 0.1
	}
	if p.IsArchived {
		penalty += 0.05
	}

	return clamp01(score + engagement + upvote + length + bonus - penalty)
}

// commentQuality scores a comment by score, length and moderator
// distinction. Always in [0,1].
func commentQuality(c *models.Comment) float64 {
	score := math.Min(float64(c.Score)/100.0, 1.0) * 0.5
	length := math.Min(float64(len(c.Body))/500.0, 1.0) * 0.3

	bonus := 0.0
	if c.Distinguished {
		bonus += 0.2
	}

	return clamp01(score + length + bonus)
}

// communityReputation scores a community by size, activity and age,
// penalizing quarantined and adult communities. Always in [0,1].
func communityReputation(ci *models.CommunityInfo, ageYears float64) float64 {
	size := math.Min(float64(ci.Subscribers)/1_000_000.0, 1.0) * 0.4

	activity := 0.0
	if ci.Subscribers > 0 {
		activity = math.Min(float64(ci.ActiveUsers)/float64(ci.Subscribers), 1.0) * 0.3
	}

	age := math.Min(ageYears/10.0, 1.0) * 0.3

	penalty := 0.0
	if ci.Quarantined {
		penalty += 0.3
	}
	if ci.Over18 {
		penalty += 0.2
	}

	return clamp01(size + activity + age - penalty)
}

// userReputation scores an account by karma scaled with account age,
// plus premium/verified bonuses. Returns 0 when account age is unknown.
func userReputation(ui *models.UserInfo) float64 {
	if ui.AccountAgeDays <= 0 {
		return 0
	}

	karma := math.Min(float64(ui.LinkKarma+ui.CommentKarma)/100_000.0, 1.0)
	ageMultiplier := math.Min(ui.AccountAgeDays/(5*365.0), 1.0)

	score := karma * ageMultiplier * 0.9
	if ui.Premium {
		score += 0.05
	}
	if ui.Verified {
		score += 0.05
	}

	return clamp01(score)
}
