// Package recovery re-drives posts left in the judging state, for example
// after a crash between creating a post and recording its result.
package recovery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"post-judge/model"
)

const (
	defaultStaleAfter = 10 * time.Minute
	defaultBatchSize  = 20
)

// Storage lists posts stuck in judging.
type Storage interface {
	ListStaleJudging(ctx context.Context, cutoff time.Time, limit int) ([]*model.Post, error)
}

// Judge runs the full judging pipeline for one post.
type Judge interface {
	JudgePost(ctx context.Context, postID string) error
}

// Runner sweeps stale judging posts.
type Runner struct {
	storage    Storage
	judge      Judge
	staleAfter time.Duration
	batchSize  int
	now        func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithStaleAfter sets how old a judging post must be before it is retried.
func WithStaleAfter(d time.Duration) Option {
	return func(r *Runner) {
		r.staleAfter = d
	}
}

// WithBatchSize sets the maximum number of posts per sweep.
func WithBatchSize(n int) Option {
	return func(r *Runner) {
		r.batchSize = n
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		r.now = now
	}
}

// NewRunner creates a new recovery runner.
func NewRunner(storage Storage, judge Judge, opts ...Option) *Runner {
	r := &Runner{
		storage:    storage,
		judge:      judge,
		staleAfter: defaultStaleAfter,
		batchSize:  defaultBatchSize,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run judges every stale post once. Individual failures are logged and
// do not stop the sweep.
func (r *Runner) Run(ctx context.Context) error {
	if r.batchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", r.batchSize)
	}

	cutoff := r.now().Add(-r.staleAfter)
	posts, err := r.storage.ListStaleJudging(ctx, cutoff, r.batchSize)
	if err != nil {
		return fmt.Errorf("list stale posts: %w", err)
	}
	if len(posts) == 0 {
		slog.Debug("no stale posts")
		return nil
	}

	slog.Info("starting recovery sweep", "stale", len(posts), "cutoff", cutoff.Unix())

	recovered := 0
	for _, p := range posts {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.judge.JudgePost(ctx, p.ID); err != nil {
			slog.Warn("failed to recover post", "post_id", p.ID, "error", err)
			continue
		}
		recovered++
	}

	slog.Info("recovery sweep complete", "recovered", recovered, "failed", len(posts)-recovered)
	return nil
}
