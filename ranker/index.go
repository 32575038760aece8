package ranker

import (
	"context"
	"fmt"
	"log/slog"

	"post-judge/model"
)

// Store reads the sparse score_key index.
type Store interface {
	QueryScored(ctx context.Context, limit int) ([]*model.Post, error)
	CountScoredBefore(ctx context.Context, scoreKey string) (int, error)
	CountScored(ctx context.Context) (int, error)
}

// Index answers leaderboard queries. It never writes.
type Index struct {
	store Store
}

// NewIndex creates an index over store.
func NewIndex(store Store) *Index {
	return &Index{store: store}
}

// TopN returns up to n scored posts, best first. Rows the index returns
// that are no longer scored are skipped.
func (ix *Index) TopN(ctx context.Context, n int) ([]*model.Post, error) {
	if n <= 0 {
		return nil, nil
	}
	posts, err := ix.store.QueryScored(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("query scored posts: %w", err)
	}

	out := make([]*model.Post, 0, len(posts))
	for _, p := range posts {
		if p.Status != model.StatusScored || p.ScoreKey == nil {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// Rank returns the 1-based position of post. ok is false when the rank is
// unknown: the post is not scored or the lookup failed.
func (ix *Index) Rank(ctx context.Context, post *model.Post) (rank int, ok bool) {
	if post == nil || post.Status != model.StatusScored || post.ScoreKey == nil {
		return 0, false
	}
	before, err := ix.store.CountScoredBefore(ctx, *post.ScoreKey)
	if err != nil {
		slog.Warn("rank lookup failed", "post_id", post.ID, "error", err)
		return 0, false
	}
	return before + 1, true
}

// TotalScored returns how many posts are currently scored.
func (ix *Index) TotalScored(ctx context.Context) (int, error) {
	n, err := ix.store.CountScored(ctx)
	if err != nil {
		return 0, fmt.Errorf("count scored posts: %w", err)
	}
	return n, nil
}
