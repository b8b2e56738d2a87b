package domain

import (
	"context"
	"time"
)

// CallbackEvent names a point in the trainer's lifecycle a callback can
// attach to.
type CallbackEvent string

// EventTrainEnd fires once, after the last epoch and before the trainer
// returns from Train.
const EventTrainEnd CallbackEvent = "on_train_end"

// TrainEndEvent is what the trainer reports when training completes.
type TrainEndEvent struct {
	// Best is the path of the best checkpoint written by training, if any.
	Best string `json:"best"`
	// SaveDir is the directory the training run wrote its outputs to.
	SaveDir string `json:"save_dir"`
	// Parameters is the trained model's parameter set.
	Parameters []Parameter `json:"parameters"`
}

// BestCheckpoint satisfies CheckpointSource.
func (e *TrainEndEvent) BestCheckpoint() string {
	return e.Best
}

// CheckpointSource yields the best checkpoint path once training completed.
// An empty path means training produced no checkpoint.
type CheckpointSource interface {
	BestCheckpoint() string
}

// TrainCallback is invoked synchronously on the trainer's completion path.
// A returned error aborts the run.
type TrainCallback func(ctx context.Context, event *TrainEndEvent) error

// StageEvent describes entry into or exit from a session stage.
type StageEvent struct {
	Timestamp time.Time     `json:"timestamp"`
	Stage     Stage         `json:"stage"`
	Duration  time.Duration `json:"duration,omitempty"` // set on leave
	Err       error         `json:"-"`                  // set on leave when the stage failed
}

// LifecycleHooks defines callbacks for session observability.
type LifecycleHooks struct {
	OnStageEnter func(context.Context, *StageEvent)
	OnStageLeave func(context.Context, *StageEvent)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnStageEnter: chain(h.OnStageEnter, other.OnStageEnter),
		OnStageLeave: chain(h.OnStageLeave, other.OnStageLeave),
	}
}

func chain(a, b func(context.Context, *StageEvent)) func(context.Context, *StageEvent) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e *StageEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}
