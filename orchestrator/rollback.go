package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"post-judge/model"
	"post-judge/storage"
)

// snapshot is the before-image of everything a rejudge may overwrite.
// A nil judgment means the row did not exist.
type snapshot struct {
	post      *model.Post
	judgments map[model.Persona]*model.Judgment
}

func (s *Service) takeSnapshot(ctx context.Context, post *model.Post, personas []model.Persona) (*snapshot, error) {
	snap := &snapshot{
		post:      post.Clone(),
		judgments: make(map[model.Persona]*model.Judgment, len(personas)),
	}
	for _, p := range personas {
		j, err := s.store.GetJudgment(ctx, post.ID, p)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			snap.judgments[p] = nil
		case err != nil:
			return nil, fmt.Errorf("snapshot judgment %s: %w", p, err)
		default:
			snap.judgments[p] = j
		}
	}
	return snap, nil
}

// rollback restores the snapshot and returns cause. Restore failures are
// logged and joined onto cause.
func (s *Service) rollback(ctx context.Context, snap *snapshot, cause error) error {
	slog.Warn("rejudge failed, restoring previous state", "post_id", snap.post.ID, "error", cause)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()

	var errs []error
	for _, p := range model.Personas {
		prev, touched := snap.judgments[p]
		if !touched {
			continue
		}
		var err error
		if prev == nil {
			err = s.store.DeleteJudgment(ctx, snap.post.ID, p)
		} else {
			err = s.store.PutJudgment(ctx, prev)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("restore judgment %s: %w", p, err))
		}
	}
	if err := s.store.PutPost(ctx, snap.post); err != nil {
		errs = append(errs, fmt.Errorf("restore post: %w", err))
	}

	if len(errs) == 0 {
		return cause
	}
	rbErr := errors.Join(errs...)
	slog.Error("rollback failed", "post_id", snap.post.ID, "error", rbErr)
	return errors.Join(cause, fmt.Errorf("rollback: %w", rbErr))
}
