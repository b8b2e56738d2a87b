package memory

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/aretw0/yolotrain/pkg/domain"
	"github.com/aretw0/yolotrain/pkg/ports"
)

// Tracker implements ports.Tracker in memory.
// Safe for concurrent use.
type Tracker struct {
	mu   sync.RWMutex
	runs []*RecordedRun
}

// RecordedRun is everything logged to one run.
type RecordedRun struct {
	Spec      domain.RunSpec
	Logs      []map[string]any
	Artifacts []domain.Artifact
	Status    domain.RunStatus
}

// NewTracker creates a new in-memory tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Start opens a run.
func (t *Tracker) Start(ctx context.Context, spec domain.RunSpec) (ports.Run, error) {
	rec := &RecordedRun{Spec: spec, Status: domain.RunRunning}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.runs = append(t.runs, rec)
	return &run{tracker: t, rec: rec}, nil
}

// Runs returns copies of all runs started so far, in start order.
func (t *Tracker) Runs() []RecordedRun {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]RecordedRun, len(t.runs))
	for i, r := range t.runs {
		out[i] = *r
		out[i].Logs = append([]map[string]any(nil), r.Logs...)
		out[i].Artifacts = append([]domain.Artifact(nil), r.Artifacts...)
	}
	return out
}

type run struct {
	tracker *Tracker
	rec     *RecordedRun
}

func (r *run) Log(ctx context.Context, values map[string]any) error {
	copied := make(map[string]any, len(values))
	for k, v := range values {
		copied[k] = v
	}

	r.tracker.mu.Lock()
	defer r.tracker.mu.Unlock()
	if r.rec.Status != domain.RunRunning {
		return domain.ErrRunClosed
	}
	r.rec.Logs = append(r.rec.Logs, copied)
	return nil
}

func (r *run) LogArtifact(ctx context.Context, artifact *domain.Artifact) error {
	for _, f := range artifact.Files {
		if _, err := os.Stat(f); err != nil {
			return fmt.Errorf("artifact %s: %w", artifact.Name, err)
		}
	}

	r.tracker.mu.Lock()
	defer r.tracker.mu.Unlock()
	if r.rec.Status != domain.RunRunning {
		return domain.ErrRunClosed
	}
	a := *artifact
	a.Files = append([]string(nil), artifact.Files...)
	r.rec.Artifacts = append(r.rec.Artifacts, a)
	return nil
}

func (r *run) Finish(ctx context.Context, status domain.RunStatus) error {
	r.tracker.mu.Lock()
	defer r.tracker.mu.Unlock()
	if r.rec.Status != domain.RunRunning {
		return domain.ErrRunClosed
	}
	r.rec.Status = status
	return nil
}
