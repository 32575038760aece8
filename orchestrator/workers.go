package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"post-judge/judge"
	"post-judge/model"
)

// poolSize bounds concurrent judge workers. Work that does not fit runs on
// the calling goroutine.
var poolSize = len(model.Personas)

// runJudges runs one worker per persona and collects their outcomes in
// persona order. Each wait is bounded by the per-task timeout and by what
// is left of the overall timeout. A worker that misses its deadline is
// recorded as a timeout and cancelled.
func (s *Service) runJudges(ctx context.Context, body string, personas []model.Persona) map[model.Persona]judge.Outcome {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var g errgroup.Group
	g.SetLimit(poolSize)

	results := make([]chan judge.Outcome, len(personas))
	for i, p := range personas {
		p := p // per-iteration copy; module targets go 1.21 loop semantics
		ch := make(chan judge.Outcome, 1)
		results[i] = ch
		task := func() error {
			ch <- s.runWorker(runCtx, body, p)
			return nil
		}
		if !g.TryGo(task) {
			slog.Debug("judge pool saturated, running inline", "persona", p)
			_ = task()
		}
	}

	outcomes := make(map[model.Persona]judge.Outcome, len(personas))
	deadline := time.Now().Add(s.overallTimeout)
	for i, p := range personas {
		wait := min(s.perTaskTimeout, time.Until(deadline))
		outcomes[p] = awaitOutcome(ctx, results[i], wait)
		if f, ok := outcomes[p].(judge.Failure); ok && f.Code == model.ErrorTimeout && f.Err == errWorkerTimeout {
			slog.Warn("judge worker timed out", "persona", p, "wait", wait)
		}
	}

	cancel()
	s.drain(&g)
	return outcomes
}

var errWorkerTimeout = errors.New("worker did not finish in time")

func awaitOutcome(ctx context.Context, ch <-chan judge.Outcome, wait time.Duration) judge.Outcome {
	timedOut := judge.Failure{Code: model.ErrorTimeout, Err: errWorkerTimeout}
	if wait <= 0 {
		select {
		case o := <-ch:
			return o
		default:
			return timedOut
		}
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case o := <-ch:
		return o
	case <-timer.C:
		return timedOut
	case <-ctx.Done():
		return timedOut
	}
}

// drain waits up to the shutdown grace for cancelled workers to return.
// Workers still running after that are abandoned.
func (s *Service) drain(g *errgroup.Group) {
	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	timer := time.NewTimer(s.shutdownGrace)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		slog.Warn("abandoning judge workers after grace period", "grace", s.shutdownGrace)
	}
}

// runWorker judges with a fresh adapter. Panics and rejected input are
// reported as thread_exception.
func (s *Service) runWorker(ctx context.Context, body string, persona model.Persona) (out judge.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("judge worker panicked", "persona", persona, "panic", r)
			out = judge.Failure{Code: model.ErrorThreadException, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	adapter, err := s.factory(persona)
	if err != nil {
		slog.Error("failed to build judge", "persona", persona, "error", err)
		return judge.Failure{Code: model.ErrorThreadException, Err: err}
	}
	o, err := adapter.Judge(ctx, body, persona)
	if err != nil {
		slog.Error("judge rejected input", "persona", persona, "error", err)
		return judge.Failure{Code: model.ErrorThreadException, Err: err}
	}
	if o == nil {
		return judge.Failure{Code: model.ErrorUnknown, Err: fmt.Errorf("judge returned no outcome")}
	}
	return o
}
