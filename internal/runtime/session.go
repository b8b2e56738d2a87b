package runtime

import (
	"context"
	"time"

	"github.com/aretw0/yolotrain/pkg/domain"
)

// session drives the stage machine of a single run.
// Hooks observe each step: enter fires when work toward a stage begins and
// leave when it ends, carrying the error if the step failed.
type session struct {
	stage   domain.Stage
	hooks   domain.LifecycleHooks
	now     func() time.Time
	visited []domain.Stage
}

func newSession(hooks domain.LifecycleHooks, now func() time.Time) *session {
	return &session{
		stage:   domain.StageUnconfigured,
		hooks:   hooks,
		now:     now,
		visited: []domain.Stage{domain.StageUnconfigured},
	}
}

// step runs fn and moves to target when it succeeds. A failure moves the
// session to StageFailed and is returned as a *domain.StageError.
func (s *session) step(ctx context.Context, target domain.Stage, kind error, fn func(context.Context) error) error {
	if err := domain.ValidateTransition(s.stage, target); err != nil {
		return err
	}

	start := s.now()
	if s.hooks.OnStageEnter != nil {
		s.hooks.OnStageEnter(ctx, &domain.StageEvent{Timestamp: start, Stage: target})
	}

	var err error
	if fn != nil {
		err = domain.Fail(target, kind, fn(ctx))
	}

	end := s.now()
	if s.hooks.OnStageLeave != nil {
		s.hooks.OnStageLeave(ctx, &domain.StageEvent{
			Timestamp: end,
			Stage:     target,
			Duration:  end.Sub(start),
			Err:       err,
		})
	}

	if err != nil {
		s.moveTo(domain.StageFailed)
		return err
	}
	s.moveTo(target)
	return nil
}

// fail marks the session failed outside of a step.
func (s *session) fail(kind error, err error) error {
	err = domain.Fail(s.stage, kind, err)
	if domain.CanTransition(s.stage, domain.StageFailed) {
		s.moveTo(domain.StageFailed)
	}
	return err
}

func (s *session) moveTo(stage domain.Stage) {
	s.stage = stage
	s.visited = append(s.visited, stage)
}
