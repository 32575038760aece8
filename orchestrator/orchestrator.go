// Package orchestrator runs the three AI judges for a post in parallel and
// records the outcome.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"post-judge/judge"
	"post-judge/model"
	"post-judge/ranker"
	"post-judge/storage"
)

const (
	DefaultPerTaskTimeout = 70 * time.Second
	DefaultOverallTimeout = 90 * time.Second
	DefaultShutdownGrace  = 5 * time.Second

	maxFinalizeAttempts = 3
	rollbackTimeout     = 10 * time.Second
)

var (
	// ErrInvalidPersonas rejects an empty, unknown or duplicated persona list.
	ErrInvalidPersonas = errors.New("invalid personas")
	// ErrNotRejudgeable means the post is not in the failed state.
	ErrNotRejudgeable = errors.New("post is not rejudgeable")
)

// Store persists posts and judgments.
type Store interface {
	GetPost(ctx context.Context, id string) (*model.Post, error)
	PutPost(ctx context.Context, p *model.Post) error
	UpdatePostResult(ctx context.Context, p *model.Post) error
	GetJudgment(ctx context.Context, postID string, persona model.Persona) (*model.Judgment, error)
	PutJudgment(ctx context.Context, j *model.Judgment) error
	DeleteJudgment(ctx context.Context, postID string, persona model.Persona) error
	ListJudgments(ctx context.Context, postID string) ([]*model.Judgment, error)
}

// Notifier is told about posts that just became scored.
type Notifier interface {
	NotifyScored(ctx context.Context, post *model.Post) error
}

// Service creates posts and drives judging.
type Service struct {
	store          Store
	factory        judge.Factory
	index          *ranker.Index
	notifier       Notifier
	perTaskTimeout time.Duration
	overallTimeout time.Duration
	shutdownGrace  time.Duration
	now            func() time.Time
	newID          func() string
}

// Option configures a Service.
type Option func(*Service)

// WithTimeouts sets the per-worker wait and the overall join bound.
func WithTimeouts(perTask, overall time.Duration) Option {
	return func(s *Service) {
		s.perTaskTimeout = perTask
		s.overallTimeout = overall
	}
}

// WithShutdownGrace sets how long to wait for abandoned workers to exit.
func WithShutdownGrace(d time.Duration) Option {
	return func(s *Service) {
		s.shutdownGrace = d
	}
}

// WithIndex enables rank lookups in PostDetail.
func WithIndex(ix *ranker.Index) Option {
	return func(s *Service) {
		s.index = ix
	}
}

// WithNotifier sets the scored-post notifier.
func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// WithClock overrides time.Now (for testing).
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithIDGenerator overrides post id generation (for testing).
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		s.newID = fn
	}
}

// NewService creates a judging service.
func NewService(store Store, factory judge.Factory, opts ...Option) *Service {
	s := &Service{
		store:          store,
		factory:        factory,
		perTaskTimeout: DefaultPerTaskTimeout,
		overallTimeout: DefaultOverallTimeout,
		shutdownGrace:  DefaultShutdownGrace,
		now:            time.Now,
		newID:          uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreatePost validates and stores a new post in the judging state.
func (s *Service) CreatePost(ctx context.Context, nickname, body string) (*model.Post, error) {
	if err := model.ValidateNickname(nickname); err != nil {
		return nil, err
	}
	if err := model.ValidateBody(body); err != nil {
		return nil, err
	}

	post := &model.Post{
		ID:        s.newID(),
		Nickname:  nickname,
		Body:      body,
		Status:    model.StatusJudging,
		CreatedAt: s.now().Unix(),
		Version:   1,
	}
	if err := s.store.PutPost(ctx, post); err != nil {
		return nil, fmt.Errorf("save post: %w", err)
	}
	slog.Info("post created", "post_id", post.ID)
	return post, nil
}

// JudgePost runs every persona against the post and stores the result.
// A missing post is logged and ignored.
func (s *Service) JudgePost(ctx context.Context, postID string) error {
	post, err := s.store.GetPost(ctx, postID)
	if errors.Is(err, storage.ErrNotFound) {
		slog.Warn("post not found, skipping judging", "post_id", postID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load post: %w", err)
	}

	slog.Info("judging post", "post_id", postID)
	outcomes := s.runJudges(ctx, post.Body, model.Personas)

	if err := s.saveJudgments(ctx, post.ID, model.Personas, outcomes); err != nil {
		return err
	}

	final, err := s.finalize(ctx, post)
	if err != nil {
		return err
	}
	s.notify(ctx, final)
	return nil
}

// RejudgePost re-runs the given personas for a failed post. If storing the
// result fails, every touched row is restored to its prior state.
func (s *Service) RejudgePost(ctx context.Context, postID string, personas []model.Persona) error {
	if err := validatePersonas(personas); err != nil {
		return err
	}

	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return fmt.Errorf("load post: %w", err)
	}
	if post.Status != model.StatusFailed {
		return fmt.Errorf("%w: status is %s", ErrNotRejudgeable, post.Status)
	}

	snap, err := s.takeSnapshot(ctx, post, personas)
	if err != nil {
		return err
	}

	slog.Info("rejudging post", "post_id", postID, "personas", personas)
	outcomes := s.runJudges(ctx, post.Body, personas)

	if err := s.saveJudgments(ctx, post.ID, personas, outcomes); err != nil {
		return s.rollback(ctx, snap, err)
	}
	final, err := s.finalize(ctx, post)
	if err != nil {
		return s.rollback(ctx, snap, err)
	}
	s.notify(ctx, final)
	return nil
}

// Detail is a post with its judgments and leaderboard position.
type Detail struct {
	Post      *model.Post
	Judgments []*model.Judgment
	Rank      int
	RankKnown bool
}

// PostDetail loads a post, its judgments and, when scored, its rank.
func (s *Service) PostDetail(ctx context.Context, postID string) (*Detail, error) {
	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("load post: %w", err)
	}
	judgments, err := s.store.ListJudgments(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("load judgments: %w", err)
	}

	d := &Detail{Post: post, Judgments: judgments}
	if s.index != nil {
		d.Rank, d.RankKnown = s.index.Rank(ctx, post)
	}
	return d, nil
}

func validatePersonas(personas []model.Persona) error {
	if len(personas) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidPersonas)
	}
	seen := make(map[model.Persona]bool, len(personas))
	for _, p := range personas {
		if !p.Valid() {
			return fmt.Errorf("%w: unknown persona %q", ErrInvalidPersonas, p)
		}
		if seen[p] {
			return fmt.Errorf("%w: duplicate persona %q", ErrInvalidPersonas, p)
		}
		seen[p] = true
	}
	return nil
}

func (s *Service) saveJudgments(ctx context.Context, postID string, personas []model.Persona, outcomes map[model.Persona]judge.Outcome) error {
	judgedAt := s.now()
	for _, p := range personas {
		j := toJudgment(postID, p, outcomes[p], judgedAt)
		if err := s.store.PutJudgment(ctx, j); err != nil {
			return fmt.Errorf("save judgment %s: %w", p, err)
		}
		slog.Info("judgment saved", "post_id", postID, "persona", p, "succeeded", j.Succeeded)
	}
	return nil
}

// finalize recomputes the post from all stored judgments and writes it
// with a version check, reloading on conflict.
func (s *Service) finalize(ctx context.Context, post *model.Post) (*model.Post, error) {
	current := post
	for attempt := 1; ; attempt++ {
		judgments, err := s.store.ListJudgments(ctx, current.ID)
		if err != nil {
			return nil, fmt.Errorf("load judgments: %w", err)
		}

		next := current.Clone()
		ranker.Aggregate(next, judgments).Apply(next)

		err = s.store.UpdatePostResult(ctx, next)
		if err == nil {
			slog.Info("post judged", "post_id", next.ID, "status", next.Status, "judges_count", next.JudgesCount)
			return next, nil
		}
		if !errors.Is(err, storage.ErrVersionConflict) || attempt >= maxFinalizeAttempts {
			return nil, fmt.Errorf("update post: %w", err)
		}

		slog.Warn("post changed concurrently, reloading", "post_id", current.ID, "attempt", attempt)
		current, err = s.store.GetPost(ctx, current.ID)
		if err != nil {
			return nil, fmt.Errorf("reload post: %w", err)
		}
	}
}

func (s *Service) notify(ctx context.Context, post *model.Post) {
	if s.notifier == nil || post.Status != model.StatusScored {
		return
	}
	if err := s.notifier.NotifyScored(ctx, post); err != nil {
		slog.Warn("notify failed", "post_id", post.ID, "error", err)
	}
}

func toJudgment(postID string, persona model.Persona, outcome judge.Outcome, at time.Time) *model.Judgment {
	switch o := outcome.(type) {
	case judge.Success:
		if !o.Scores.InRange() {
			return model.NewFailedJudgment(postID, persona, model.ErrorInvalidResponse, at)
		}
		return model.NewSucceededJudgment(postID, persona, o.Scores, o.Comment, at)
	case judge.Failure:
		return model.NewFailedJudgment(postID, persona, o.Code, at)
	default:
		return model.NewFailedJudgment(postID, persona, model.ErrorUnknown, at)
	}
}
