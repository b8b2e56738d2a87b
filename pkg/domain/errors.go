package domain

import (
	"errors"
	"fmt"
)

// Error kinds a session can fail with. Every failure surfaced by the
// orchestrator matches exactly one of these through errors.Is.
var (
	ErrConfigNotFound     = errors.New("configuration not found")
	ErrConfigFieldMissing = errors.New("configuration field missing")
	ErrDatasetAcquisition = errors.New("dataset acquisition failed")
	ErrModelLoad          = errors.New("model load failed")
	ErrTraining           = errors.New("training failed")
	ErrEvaluation         = errors.New("evaluation failed")
)

// ErrIllegalTransition is returned when the stage machine is driven out of order.
var ErrIllegalTransition = errors.New("illegal stage transition")

// ConfigNotFoundError names the configuration path that does not exist.
type ConfigNotFoundError struct {
	Path string
}

func (e *ConfigNotFoundError) Error() string {
	return fmt.Sprintf("%s: %s", ErrConfigNotFound, e.Path)
}

func (e *ConfigNotFoundError) Is(target error) bool {
	return target == ErrConfigNotFound
}

// FieldError names a configuration key (dotted path) that is absent or has
// the wrong type.
type FieldError struct {
	Key string
	Err error // optional decode error
}

func (e *FieldError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrConfigFieldMissing, e.Key, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrConfigFieldMissing, e.Key)
}

func (e *FieldError) Is(target error) bool {
	return target == ErrConfigFieldMissing
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// StageError attaches the failing stage and its error kind to a
// collaborator error.
type StageError struct {
	Stage Stage
	Kind  error
	Err   error
}

func (e *StageError) Error() string {
	if errors.Is(e.Err, e.Kind) {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v: %v", e.Kind, e.Err)
}

func (e *StageError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// Fail wraps err as a StageError of the given kind. A nil err stays nil, a
// StageError is returned untouched and an err that already matches a kind
// keeps it.
func Fail(stage Stage, kind error, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	if k := KindOf(err); k != nil {
		kind = k
	}
	return &StageError{Stage: stage, Kind: kind, Err: err}
}

// KindOf returns the error kind err matches, or nil when it matches none.
func KindOf(err error) error {
	for _, kind := range []error{
		ErrConfigNotFound,
		ErrConfigFieldMissing,
		ErrDatasetAcquisition,
		ErrModelLoad,
		ErrTraining,
		ErrEvaluation,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// ErrRunClosed is returned by tracker runs used after Finish.
var ErrRunClosed = errors.New("tracker run already finished")
