package runtime_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/yolotrain/internal/runtime"
	"github.com/aretw0/yolotrain/internal/testutils"
	"github.com/aretw0/yolotrain/pkg/adapters/memory"
	"github.com/aretw0/yolotrain/pkg/config"
	"github.com/aretw0/yolotrain/pkg/domain"
	"github.com/aretw0/yolotrain/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scenarioConfig() map[string]any {
	return map[string]any{
		"data":  map[string]any{"path": "data/data.yaml"},
		"model": map[string]any{"epochs": 1, "batch_size": 2, "imgsz": 640, "freeze": 0},
		"wandb": map[string]any{"project": "p", "run_name": "r"},
		"roboflow": map[string]any{
			"api_key":      "secret-key",
			"workspace":    "w",
			"project":      "proj",
			"version":      1,
			"model_format": "yolov8",
		},
	}
}

type fixture struct {
	rec      *testutils.Recorder
	datasets *testutils.Datasets
	trainer  *testutils.Trainer
	tracker  *memory.Tracker
	probe    *testutils.Probe
	stdout   *bytes.Buffer
	stages   []string
	orch     *runtime.Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	best := filepath.Join(dir, "weights", "best.pt")
	require.NoError(t, os.MkdirAll(filepath.Dir(best), 0755))
	require.NoError(t, os.WriteFile(best, []byte("weights"), 0644))

	f := &fixture{rec: &testutils.Recorder{}, tracker: memory.NewTracker(), probe: &testutils.Probe{}, stdout: &bytes.Buffer{}}
	f.datasets = &testutils.Datasets{Rec: f.rec}
	f.trainer = &testutils.Trainer{
		Rec:  f.rec,
		Info: domain.ModelInfo{Layers: 225, Parameters: 3_011_043, Gradients: 3_011_027},
		Event: &domain.TrainEndEvent{
			Best:    best,
			SaveDir: dir,
			Parameters: []domain.Parameter{
				{Name: "model.0.conv.weight", Numel: 300, Trainable: false},
				{Name: "model.22.cv3.weight", Numel: 200, Trainable: true},
			},
		},
		Metrics: domain.Metrics{"metrics/mAP50(B)": 0.5, "metrics/precision(B)": 0.75},
	}

	hooks := domain.LifecycleHooks{
		OnStageLeave: func(_ context.Context, e *domain.StageEvent) {
			name := string(e.Stage)
			if e.Err != nil {
				name += "!"
			}
			f.stages = append(f.stages, name)
		},
	}

	f.orch = runtime.NewOrchestrator(f.resolve,
		runtime.WithLifecycleHooks(hooks),
		runtime.WithStdout(f.stdout),
		runtime.WithEnvFiles(),
	)
	return f
}

func (f *fixture) resolve(ctx context.Context, _ *config.Settings) (*runtime.Collaborators, error) {
	return &runtime.Collaborators{
		Datasets: f.datasets,
		Trainer:  f.trainer,
		Tracker:  f.tracker,
		Probe:    f.probe,
	}, nil
}

func TestOrchestrator_EndToEnd(t *testing.T) {
	f := newFixture(t)

	res, err := f.orch.RunConfig(context.Background(), config.FromMap(scenarioConfig()))
	require.NoError(t, err)

	assert.Equal(t, domain.StageDone, res.Stage)
	assert.Equal(t, domain.Stages(), res.Stages)
	assert.Equal(t, []string{
		"download w/proj/1/yolov8",
		"load imgsz=640 device=cpu tracking=true",
		"add_callback on_train_end",
		"train epochs=1 batch=2 imgsz=640 freeze=0 project=p name=r",
		"on_train_end",
		"validate",
	}, f.rec.Calls())

	req := f.trainer.Models[0].Trains[0]
	assert.Equal(t, "data/data.yaml", req.Data)
	assert.Equal(t, -1, req.SavePeriod)
	assert.True(t, req.ExistOK)

	assert.Equal(t, domain.ParamCount{Total: 500, Trainable: 200}, res.Params)
	assert.Equal(t, "metrics/mAP50(B): 0.5\nmetrics/precision(B): 0.75\n", f.stdout.String())

	runs := f.tracker.Runs()
	require.Len(t, runs, 1)
	run := runs[0]
	assert.Equal(t, "p", run.Spec.Project)
	assert.Equal(t, "r", run.Spec.Name)
	assert.Equal(t, domain.RunFinished, run.Status)
	require.Len(t, run.Logs, 2)
	assert.Contains(t, run.Logs[0], "trainable_parameters_plot")
	assert.Equal(t, 0.5, run.Logs[1]["val/metrics/mAP50(B)"])
	require.Len(t, run.Artifacts, 1)
	assert.Equal(t, "best_model", run.Artifacts[0].Name)

	// The run config never carries the credential.
	rf := run.Spec.Config["roboflow"].(map[string]any)
	assert.Equal(t, "***", rf["api_key"])
	assert.Equal(t, "secret-key", f.datasets.Refs[0].APIKey)
}

func TestOrchestrator_HookFiresOnceBeforeEvaluation(t *testing.T) {
	f := newFixture(t)

	_, err := f.orch.RunConfig(context.Background(), config.FromMap(scenarioConfig()))
	require.NoError(t, err)

	calls := f.rec.Calls()
	hookAt, validateAt, hooks := -1, -1, 0
	for i, c := range calls {
		switch c {
		case "on_train_end":
			hookAt = i
			hooks++
		case "validate":
			validateAt = i
		}
	}
	assert.Equal(t, 1, hooks)
	assert.Less(t, hookAt, validateAt)
}

func TestOrchestrator_ConfigNotFound(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(t.TempDir(), "configs", "config.yaml")

	res, err := f.orch.Run(context.Background(), path)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfigNotFound)
	assert.Equal(t, domain.ErrConfigNotFound, domain.KindOf(err))
	assert.Contains(t, err.Error(), path)

	assert.Equal(t, domain.StageFailed, res.Stage)
	assert.Empty(t, f.rec.Calls())
	assert.Equal(t, 0, f.probe.Calls)
}

func TestOrchestrator_MissingField(t *testing.T) {
	f := newFixture(t)
	raw := scenarioConfig()
	delete(raw["model"].(map[string]any), "freeze")

	_, err := f.orch.RunConfig(context.Background(), config.FromMap(raw))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfigFieldMissing)

	var fe *domain.FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "model.freeze", fe.Key)
	assert.Empty(t, f.rec.Calls())
	assert.Empty(t, f.tracker.Runs())
}

func TestOrchestrator_NilConfig(t *testing.T) {
	f := newFixture(t)

	res, err := f.orch.RunConfig(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, runtime.ErrNilConfig)
	assert.Equal(t, domain.ErrConfigFieldMissing, domain.KindOf(err))
	assert.Equal(t, domain.StageFailed, res.Stage)
	assert.Empty(t, f.rec.Calls())
}

func TestOrchestrator_DeviceSelection(t *testing.T) {
	tests := []struct {
		name      string
		override  string
		available bool
		want      domain.DeviceKind
		probed    bool
	}{
		{"auto with accelerator", "", true, domain.DeviceCUDA, true},
		{"auto without accelerator", "auto", false, domain.DeviceCPU, true},
		{"forced cpu", "cpu", true, domain.DeviceCPU, false},
		{"forced cuda", "cuda", false, domain.DeviceCUDA, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.probe.Available = tt.available
			f.probe.Name = "Tesla T4"
			raw := scenarioConfig()
			if tt.override != "" {
				raw["device"] = tt.override
			}

			res, err := f.orch.RunConfig(context.Background(), config.FromMap(raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Device.Kind)
			assert.Equal(t, tt.want, f.trainer.Loads[0].Device.Kind)
			assert.Equal(t, tt.probed, f.probe.Calls > 0)
		})
	}
}

func TestOrchestrator_TrackingFlag(t *testing.T) {
	f := newFixture(t)
	raw := scenarioConfig()
	raw["wandb"].(map[string]any)["enabled"] = false

	_, err := f.orch.RunConfig(context.Background(), config.FromMap(raw))
	require.NoError(t, err)
	assert.False(t, f.trainer.Loads[0].Tracking)
}

func TestOrchestrator_Failures(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name      string
		setup     func(f *fixture)
		kind      error
		stage     domain.Stage
		runStatus domain.RunStatus // empty when no run is expected
	}{
		{
			name:  "dataset",
			setup: func(f *fixture) { f.datasets.Err = boom },
			kind:  domain.ErrDatasetAcquisition,
			stage: domain.StageDatasetAcquired,
		},
		{
			name:  "model load",
			setup: func(f *fixture) { f.trainer.LoadErr = boom },
			kind:  domain.ErrModelLoad,
			stage: domain.StageModelLoaded,
		},
		{
			name:      "training",
			setup:     func(f *fixture) { f.trainer.TrainErr = boom },
			kind:      domain.ErrTraining,
			stage:     domain.StageTraining,
			runStatus: domain.RunFailed,
		},
		{
			name:      "hook",
			setup:     func(f *fixture) { f.trainer.Event.Best = filepath.Join(f.trainer.Event.SaveDir, "missing.pt") },
			kind:      domain.ErrTraining,
			stage:     domain.StageTraining,
			runStatus: domain.RunFailed,
		},
		{
			name:      "evaluation",
			setup:     func(f *fixture) { f.trainer.ValidateErr = boom },
			kind:      domain.ErrEvaluation,
			stage:     domain.StageEvaluated,
			runStatus: domain.RunFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.setup(f)

			res, err := f.orch.RunConfig(context.Background(), config.FromMap(scenarioConfig()))
			require.Error(t, err)
			assert.Equal(t, tt.kind, domain.KindOf(err))

			var se *domain.StageError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.stage, se.Stage)
			assert.Equal(t, domain.StageFailed, res.Stage)
			assert.Contains(t, f.stages, string(tt.stage)+"!")
			assert.Empty(t, f.stdout.String())

			runs := f.tracker.Runs()
			if tt.runStatus == "" {
				assert.Empty(t, runs)
				return
			}
			require.Len(t, runs, 1)
			assert.Equal(t, tt.runStatus, runs[0].Status)
		})
	}
}

type failingTracker struct{}

func (failingTracker) Start(context.Context, domain.RunSpec) (ports.Run, error) {
	return nil, errors.New("tracker offline")
}

func TestOrchestrator_TrackerStartFailure(t *testing.T) {
	f := newFixture(t)
	orch := runtime.NewOrchestrator(func(ctx context.Context, _ *config.Settings) (*runtime.Collaborators, error) {
		return &runtime.Collaborators{Datasets: f.datasets, Trainer: f.trainer, Tracker: failingTracker{}, Probe: f.probe}, nil
	}, runtime.WithEnvFiles())

	_, err := orch.RunConfig(context.Background(), config.FromMap(scenarioConfig()))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTraining)
	assert.Contains(t, err.Error(), "tracker offline")
	assert.Empty(t, f.trainer.Models[0].Trains)
}

func TestOrchestrator_ResolverFailure(t *testing.T) {
	orch := runtime.NewOrchestrator(func(context.Context, *config.Settings) (*runtime.Collaborators, error) {
		return nil, &domain.FieldError{Key: "tracker.redis_url", Err: errors.New("invalid")}
	}, runtime.WithEnvFiles())

	res, err := orch.RunConfig(context.Background(), config.FromMap(scenarioConfig()))
	assert.ErrorIs(t, err, domain.ErrConfigFieldMissing)
	assert.Equal(t, domain.StageFailed, res.Stage)
}

func TestOrchestrator_ClosesCollaborators(t *testing.T) {
	f := newFixture(t)
	closed := false
	orch := runtime.NewOrchestrator(func(ctx context.Context, s *config.Settings) (*runtime.Collaborators, error) {
		c, _ := f.resolve(ctx, s)
		c.Close = func() error {
			closed = true
			return nil
		}
		return c, nil
	}, runtime.WithEnvFiles(), runtime.WithStdout(f.stdout))

	_, err := orch.RunConfig(context.Background(), config.FromMap(scenarioConfig()))
	require.NoError(t, err)
	assert.True(t, closed)
}
