package ports

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/yolotrain/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunTrackerContract runs a suite of tests to verify that a Tracker
// implementation adheres to the defined interface contract.
func RunTrackerContract(t *testing.T, tracker Tracker) {
	ctx := context.Background()
	spec := domain.RunSpec{
		Project: "contract",
		Name:    "run-" + time.Now().Format("20060102150405"),
		Config:  map[string]any{"model": map[string]any{"epochs": 1}},
	}

	dir := t.TempDir()
	imagePath := filepath.Join(dir, "plot.svg")
	require.NoError(t, os.WriteFile(imagePath, []byte("<svg/>"), 0o644))
	weightsPath := filepath.Join(dir, "best.pt")
	require.NoError(t, os.WriteFile(weightsPath, []byte("weights"), 0o644))

	t.Run("Log and Finish", func(t *testing.T) {
		run, err := tracker.Start(ctx, spec)
		require.NoError(t, err, "Start should not return error")

		err = run.Log(ctx, map[string]any{
			"val/mAP50": 0.5,
			"plot":      domain.Image{Path: imagePath},
		})
		require.NoError(t, err, "Log should not return error")

		artifact := domain.NewArtifact("best_model", "model")
		artifact.AddFile(weightsPath)
		require.NoError(t, run.LogArtifact(ctx, artifact), "LogArtifact should not return error")

		require.NoError(t, run.Finish(ctx, domain.RunFinished))
	})

	t.Run("Closed Run Rejects Calls", func(t *testing.T) {
		closed := spec
		closed.Name = spec.Name + "-closed"
		run, err := tracker.Start(ctx, closed)
		require.NoError(t, err)
		require.NoError(t, run.Finish(ctx, domain.RunFailed))

		assert.ErrorIs(t, run.Log(ctx, map[string]any{"x": 1}), domain.ErrRunClosed)
		assert.ErrorIs(t, run.Finish(ctx, domain.RunFinished), domain.ErrRunClosed)
	})

	t.Run("Artifact With Missing File", func(t *testing.T) {
		missing := spec
		missing.Name = spec.Name + "-missing"
		run, err := tracker.Start(ctx, missing)
		require.NoError(t, err)
		defer func() { _ = run.Finish(ctx, domain.RunFailed) }()

		artifact := domain.NewArtifact("best_model", "model")
		artifact.AddFile(filepath.Join(dir, "does-not-exist.pt"))
		assert.Error(t, run.LogArtifact(ctx, artifact))
	})
}
