package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/yolotrain/pkg/config"
	"github.com/aretw0/yolotrain/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
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
  api_key: secret-key
  workspace: w
  project: proj
  version: 1
  model_format: yolov8
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_KeyPaths(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	cases := map[string]any{
		"data.path":             "data/data.yaml",
		"model.epochs":          1,
		"model.batch_size":      2,
		"model.imgsz":           640,
		"model.freeze":          0,
		"wandb.project":         "p",
		"wandb.run_name":        "r",
		"roboflow.workspace":    "w",
		"roboflow.project":      "proj",
		"roboflow.version":      1,
		"roboflow.model_format": "yolov8",
	}
	for key, want := range cases {
		got, ok := cfg.Lookup(key)
		assert.True(t, ok, "key %s should resolve", key)
		assert.Equal(t, want, got, "key %s", key)
	}

	_, ok := cfg.Lookup("model.epochs.extra")
	assert.False(t, ok)
	_, ok = cfg.Lookup("nope")
	assert.False(t, ok)
}

func TestLoad_NotFound(t *testing.T) {
	path := filepath.Join(t.TempDir(), "configs", "config.yaml")

	_, err := config.Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfigNotFound)

	var nf *domain.ConfigNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, path, nf.Path)
	assert.Contains(t, err.Error(), path)
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := config.Load(writeConfig(t, "data: [unclosed"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrConfigNotFound)
}

func TestLoad_EmptyDocument(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Empty(t, cfg.Raw())
}

func TestSettings_Valid(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	s, err := cfg.Settings()
	require.NoError(t, err)

	assert.Equal(t, "data/data.yaml", s.Data.Path)
	assert.Equal(t, 1, s.Model.Epochs)
	assert.Equal(t, 2, s.Model.BatchSize)
	assert.Equal(t, 640, s.Model.ImgSize)
	assert.Equal(t, 0, s.Model.Freeze)
	assert.Equal(t, "p", s.Wandb.Project)
	assert.Equal(t, "r", s.Wandb.RunName)
	assert.Equal(t, "secret-key", s.Roboflow.APIKey)
	assert.Equal(t, 1, s.Roboflow.Version)

	// Defaults for optional keys.
	assert.Equal(t, "yolov8n.pt", s.Model.Weights)
	assert.Equal(t, -1, s.Model.SavePeriod)
	assert.True(t, s.Wandb.Enabled)
	assert.Equal(t, config.TrackerLocal, s.Tracker.Backend)
	assert.Equal(t, config.DeviceAuto, s.Device)
	assert.Equal(t, []string{"-m", "yolotrain_bridge"}, s.Trainer.Args)
}

func TestSettings_OverridesReplaceSlices(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, validYAML+`
trainer:
  command: /opt/venv/bin/python
  args: [bridge.py]
wandb_extra: ignored
device: cpu
`))
	require.NoError(t, err)

	s, err := cfg.Settings()
	require.NoError(t, err)
	assert.Equal(t, "/opt/venv/bin/python", s.Trainer.Command)
	assert.Equal(t, []string{"bridge.py"}, s.Trainer.Args)
	assert.Equal(t, config.DeviceCPU, s.Device)
}

func TestSettings_MissingField(t *testing.T) {
	raw, err := config.Parse([]byte(validYAML))
	require.NoError(t, err)
	delete(raw["model"].(map[string]any), "epochs")

	_, err = config.FromMap(raw).Settings()
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfigFieldMissing)

	var fe *domain.FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "model.epochs", fe.Key)
}

func TestSettings_MissingSection(t *testing.T) {
	raw, err := config.Parse([]byte(validYAML))
	require.NoError(t, err)
	delete(raw, "wandb")

	_, err = config.FromMap(raw).Settings()
	var fe *domain.FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "wandb.project", fe.Key)
}

func TestSettings_WrongType(t *testing.T) {
	raw, err := config.Parse([]byte(validYAML))
	require.NoError(t, err)
	raw["model"].(map[string]any)["epochs"] = "ten"

	_, err = config.FromMap(raw).Settings()
	var fe *domain.FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "model.epochs", fe.Key)
	assert.Contains(t, err.Error(), "expected integer")
}

func TestSettings_UnknownTrackerBackend(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, validYAML+"tracker:\n  backend: s3\n"))
	require.NoError(t, err)

	_, err = cfg.Settings()
	var fe *domain.FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "tracker.backend", fe.Key)
}

func TestSettings_RedisTracker(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, validYAML+"tracker:\n  backend: redis\n  redis_prefix: \"exp:\"\n  redis_ttl: 36h\n"))
	require.NoError(t, err)

	s, err := cfg.Settings()
	require.NoError(t, err)
	assert.Equal(t, "exp:", s.Tracker.RedisPrefix)
	assert.Equal(t, 36*time.Hour, s.Tracker.RedisTTL)
	assert.Equal(t, "redis://localhost:6379/0", s.Tracker.RedisURL)

	cfg, err = config.Load(writeConfig(t, validYAML+"tracker:\n  redis_ttl: -1h\n"))
	require.NoError(t, err)
	_, err = cfg.Settings()
	var fe *domain.FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "tracker.redis_ttl", fe.Key)
}

func TestRequiredKeys(t *testing.T) {
	keys := config.RequiredKeys()
	assert.Equal(t, "data.path", keys[0])
	assert.Contains(t, keys, "roboflow.api_key")
}
