package domain

import "fmt"

// Stage is a step of the training session lifecycle.
type Stage string

const (
	StageUnconfigured    Stage = "unconfigured"
	StageConfigLoaded    Stage = "config_loaded"
	StageDeviceSelected  Stage = "device_selected"
	StageDatasetAcquired Stage = "dataset_acquired"
	StageModelLoaded     Stage = "model_loaded"
	StageTraining        Stage = "training"
	StageEvaluated       Stage = "evaluated"
	StageDone            Stage = "done"
	StageFailed          Stage = "failed"
)

// stageOrder is the only path a successful session takes.
var stageOrder = []Stage{
	StageUnconfigured,
	StageConfigLoaded,
	StageDeviceSelected,
	StageDatasetAcquired,
	StageModelLoaded,
	StageTraining,
	StageEvaluated,
	StageDone,
}

// Stages returns the successful lifecycle in order.
func Stages() []Stage {
	out := make([]Stage, len(stageOrder))
	copy(out, stageOrder)
	return out
}

// Next returns the stage that follows s on the successful path.
// Terminal stages have no successor.
func (s Stage) Next() (Stage, bool) {
	for i, st := range stageOrder {
		if st == s && i+1 < len(stageOrder) {
			return stageOrder[i+1], true
		}
	}
	return "", false
}

// IsTerminal reports whether no further transition is possible.
func (s Stage) IsTerminal() bool {
	return s == StageDone || s == StageFailed
}

// CanTransition reports whether from -> to is a legal move.
// Any non-terminal stage may fail; otherwise only the next stage is allowed.
func CanTransition(from, to Stage) bool {
	if from.IsTerminal() {
		return false
	}
	if to == StageFailed {
		return true
	}
	next, ok := from.Next()
	return ok && next == to
}

// ValidateTransition returns an error describing an illegal move.
func ValidateTransition(from, to Stage) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}
	return nil
}

// Ordinal is the position of s on the successful path, or -1 for Failed.
func (s Stage) Ordinal() int {
	for i, st := range stageOrder {
		if st == s {
			return i
		}
	}
	return -1
}
