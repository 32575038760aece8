// Package ranker turns judgments into a post's status and score and
// answers ranking queries over the resulting score keys.
package ranker

import (
	"post-judge/model"
)

// MinSucceeded is how many judges must succeed for a post to be scored.
const MinSucceeded = 2

// Result is the aggregate state derived from a post's judgments.
type Result struct {
	Status       model.Status
	AverageScore *float64
	JudgesCount  int
	ScoreKey     *string
}

// Aggregate decides status, average and score key for post from its
// judgments. Only succeeded judgments contribute.
func Aggregate(post *model.Post, judgments []*model.Judgment) Result {
	succeeded, sum := 0, 0
	for _, j := range judgments {
		if j == nil || !j.Succeeded || j.Scores == nil {
			continue
		}
		succeeded++
		sum += j.Scores.Total()
	}

	if succeeded < MinSucceeded {
		return Result{Status: model.StatusFailed, JudgesCount: succeeded}
	}

	tenths := averageTenths(sum, succeeded)
	avg := float64(tenths) / 10
	key := ScoreKey(tenths, post.CreatedAt, post.ID)

	return Result{
		Status:       model.StatusScored,
		AverageScore: &avg,
		JudgesCount:  succeeded,
		ScoreKey:     &key,
	}
}

// Apply writes r onto post. A non-scored result always clears the score key.
func (r Result) Apply(post *model.Post) {
	post.Status = r.Status
	post.AverageScore = r.AverageScore
	post.JudgesCount = r.JudgesCount
	post.ScoreKey = r.ScoreKey
	if r.Status != model.StatusScored {
		post.AverageScore = nil
		post.ScoreKey = nil
	}
}

// averageTenths returns sum/n rounded half-up to one decimal, in tenths.
func averageTenths(sum, n int) int {
	return (sum*20 + n) / (2 * n)
}

// Tenths converts a one-decimal average to integer tenths, rounding half-up.
func Tenths(avg float64) int {
	return int(avg*10 + 0.5)
}
