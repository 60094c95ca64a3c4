package models

// PrizeTier is the cash-reward bracket attached to a leaderboard rank
type PrizeTier string

const (
	PrizeTierFirst  PrizeTier = "first_prize"
	PrizeTierSecond PrizeTier = "second_prize"
	PrizeTierThird  PrizeTier = "third_prize"
	PrizeTierFourth PrizeTier = "fourth_prize"
)

// PrizeTiers maps ranks 1..4 to their tier; later ranks have none
var PrizeTiers = []PrizeTier{PrizeTierFirst, PrizeTierSecond, PrizeTierThird, PrizeTierFourth}

// PrizeTierForRank returns the tier of a 1-based rank, or nil
func PrizeTierForRank(rank int) *PrizeTier {
	if rank < 1 || rank > len(PrizeTiers) {
		return nil
	}
	tier := PrizeTiers[rank-1]
	return &tier
}

// Engagement score weights
const (
	EngagementWeightPost    = 10
	EngagementWeightLike    = 2
	EngagementWeightComment = 3
)

// LeaderboardEntry is one row of the ledger leaderboard. It is the only
// ranking the payout process may read.
type LeaderboardEntry struct {
	UserID        string     `json:"user_id"`
	Rank          int        `json:"rank"`
	PointsBalance int64      `json:"points_balance"`
	PrizeTier     *PrizeTier `json:"prize_tier"`
}

// ScoreboardEntry is one row of the engagement scoreboard
type ScoreboardEntry struct {
	UserID          string `json:"user_id"`
	Rank            int    `json:"rank"`
	EngagementScore int64  `json:"engagement_score"`
	PostCount       int    `json:"post_count"`
	TotalLikes      int    `json:"total_likes"`
	TotalComments   int    `json:"total_comments"`
}
