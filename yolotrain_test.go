package yolotrain_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/yolotrain"
	"github.com/aretw0/yolotrain/internal/testutils"
	"github.com/aretw0/yolotrain/pkg/adapters/device"
	"github.com/aretw0/yolotrain/pkg/adapters/local"
	"github.com/aretw0/yolotrain/pkg/adapters/memory"
	"github.com/aretw0/yolotrain/pkg/config"
	"github.com/aretw0/yolotrain/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const configYAML = `
data:
  path: data/data.yaml
model:
  epochs: 1
  batch_size: 2
  imgsz: 640
  freeze: 0
wandb:
  project: p
  run_name: r
roboflow:
  api_key: key
  workspace: w
  project: proj
  version: 1
  model_format: yolov8
tracker:
  backend: memory
`

func TestPipeline_Run(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0644))

	rec := &testutils.Recorder{}
	tracker := memory.NewTracker()
	trainer := &testutils.Trainer{Rec: rec, Metrics: domain.Metrics{"fitness": 0.25}}
	var out bytes.Buffer
	var entered []domain.Stage

	p := yolotrain.New(
		yolotrain.WithDatasetService(&testutils.Datasets{Rec: rec}),
		yolotrain.WithTrainer(trainer),
		yolotrain.WithTracker(tracker),
		yolotrain.WithDeviceProbe(device.Static{Available: true, Name: "Tesla T4"}),
		yolotrain.WithStdout(&out),
		yolotrain.WithEnvFiles(),
		yolotrain.WithLifecycleHooks(domain.LifecycleHooks{
			OnStageEnter: func(_ context.Context, e *domain.StageEvent) { entered = append(entered, e.Stage) },
		}),
	)

	res, err := p.Run(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, domain.StageDone, res.Stage)
	assert.Equal(t, domain.DeviceCUDA, res.Device.Kind)
	assert.Equal(t, "fitness: 0.25\n", out.String())
	assert.Equal(t, domain.Stages()[1:], entered)
	require.Len(t, tracker.Runs(), 1)
	assert.Equal(t, domain.RunFinished, tracker.Runs()[0].Status)
}

func TestPipeline_MetricsReporter(t *testing.T) {
	var got domain.Metrics
	p := yolotrain.New(
		yolotrain.WithDatasetService(&testutils.Datasets{}),
		yolotrain.WithTrainer(&testutils.Trainer{Metrics: domain.Metrics{"fitness": 1}}),
		yolotrain.WithTracker(memory.NewTracker()),
		yolotrain.WithDeviceProbe(device.Static{}),
		yolotrain.WithEnvFiles(),
		yolotrain.WithMetricsReporter(func(_ io.Writer, m domain.Metrics) error {
			got = m
			return nil
		}),
	)

	raw, err := config.Parse([]byte(configYAML))
	require.NoError(t, err)
	_, err = p.RunConfig(context.Background(), config.FromMap(raw))
	require.NoError(t, err)
	assert.Equal(t, domain.Metrics{"fitness": 1}, got)
}

func TestPipeline_ConfigNotFound(t *testing.T) {
	p := yolotrain.New(yolotrain.WithEnvFiles())
	_, err := p.Run(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, domain.ErrConfigNotFound)
}

func TestNewTracker(t *testing.T) {
	tr, closer, err := yolotrain.NewTracker(config.TrackerSettings{Backend: config.TrackerLocal, Dir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &local.Tracker{}, tr)
	assert.Nil(t, closer)

	tr, _, err = yolotrain.NewTracker(config.TrackerSettings{Backend: config.TrackerMemory})
	require.NoError(t, err)
	assert.IsType(t, &memory.Tracker{}, tr)

	mr := miniredis.RunT(t)
	tr, closer, err = yolotrain.NewTracker(config.TrackerSettings{Backend: config.TrackerRedis, RedisURL: "redis://" + mr.Addr()})
	require.NoError(t, err)
	require.NotNil(t, closer)
	_, err = tr.Start(context.Background(), domain.RunSpec{Project: "p", Name: "r"})
	assert.NoError(t, err)
	assert.NoError(t, closer())

	_, _, err = yolotrain.NewTracker(config.TrackerSettings{Backend: config.TrackerRedis, RedisURL: "::"})
	assert.ErrorIs(t, err, domain.ErrConfigFieldMissing)

	_, _, err = yolotrain.NewTracker(config.TrackerSettings{Backend: "wandb"})
	assert.ErrorIs(t, err, domain.ErrConfigFieldMissing)
}

func TestNewTracker_RedisOptions(t *testing.T) {
	mr := miniredis.RunT(t)
	tr, closer, err := yolotrain.NewTracker(config.TrackerSettings{
		Backend:     config.TrackerRedis,
		RedisURL:    "redis://" + mr.Addr(),
		RedisPrefix: "exp:",
		RedisTTL:    24 * time.Hour,
	})
	require.NoError(t, err)
	defer closer()

	ctx := context.Background()
	run, err := tr.Start(ctx, domain.RunSpec{Project: "p", Name: "r"})
	require.NoError(t, err)
	require.NoError(t, run.Finish(ctx, domain.RunFinished))

	assert.True(t, mr.Exists("exp:run:p:r"))
	assert.Equal(t, 24*time.Hour, mr.TTL("exp:run:p:r"))
}

func TestVersion(t *testing.T) {
	assert.NotEmpty(t, yolotrain.Version)
}
