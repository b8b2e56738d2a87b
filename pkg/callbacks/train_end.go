// Package callbacks holds the trainer callbacks registered by the pipeline.
package callbacks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aretw0/yolotrain/internal/logging"
	"github.com/aretw0/yolotrain/pkg/domain"
	"github.com/aretw0/yolotrain/pkg/plot"
	"github.com/aretw0/yolotrain/pkg/ports"
)

const (
	// PlotKey is the key the parameter chart is logged under.
	PlotKey = "trainable_parameters_plot"
	// PlotFile is the chart's file name inside the training save directory.
	PlotFile = "trainable_parameters.svg"
	// ArtifactName and ArtifactType label the logged best checkpoint.
	ArtifactName = "best_model"
	ArtifactType = "model"
)

// ErrNoRun is returned when the hook fires before a tracker run was attached.
var ErrNoRun = errors.New("no tracker run attached")

// TrainEnd logs a parameter chart and the best checkpoint to the active
// tracker run when training completes.
type TrainEnd struct {
	run     ports.Run
	logger  *slog.Logger
	plotDir string

	// Count is the parameter count of the last invocation.
	Count domain.ParamCount
}

// Option configures TrainEnd.
type Option func(*TrainEnd)

// WithLogger sets the hook's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *TrainEnd) {
		h.logger = logger
	}
}

// WithPlotDir writes the chart into dir instead of the training save directory.
func WithPlotDir(dir string) Option {
	return func(h *TrainEnd) {
		h.plotDir = dir
	}
}

// NewTrainEnd creates an unattached hook.
func NewTrainEnd(opts ...Option) *TrainEnd {
	h := &TrainEnd{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Attach sets the run the hook logs to.
func (h *TrainEnd) Attach(run ports.Run) {
	h.run = run
}

// Callback adapts the hook to the trainer's callback signature.
func (h *TrainEnd) Callback() domain.TrainCallback {
	return h.Handle
}

// Handle runs the hook: one image log, then at most one artifact log.
func (h *TrainEnd) Handle(ctx context.Context, event *domain.TrainEndEvent) error {
	if h.run == nil {
		return ErrNoRun
	}

	h.Count = domain.CountParameters(event.Parameters)
	h.logger.Info("parameter count",
		"total", h.Count.Total,
		"trainable", h.Count.Trainable,
		"frozen", h.Count.Frozen(),
	)

	path, err := h.plotPath(event)
	if err != nil {
		return err
	}
	if err := plot.WriteParameters(path, h.Count); err != nil {
		return err
	}
	if err := h.run.Log(ctx, map[string]any{PlotKey: domain.Image{Path: path, Caption: "trainable parameters"}}); err != nil {
		return fmt.Errorf("failed to log parameter plot: %w", err)
	}

	return h.logCheckpoint(ctx, event)
}

func (h *TrainEnd) logCheckpoint(ctx context.Context, src domain.CheckpointSource) error {
	best := src.BestCheckpoint()
	if best == "" {
		h.logger.Warn("training produced no best checkpoint")
		return nil
	}
	if _, err := os.Stat(best); err != nil {
		return fmt.Errorf("best checkpoint: %w", err)
	}

	artifact := domain.NewArtifact(ArtifactName, ArtifactType)
	artifact.AddFile(best)
	if err := h.run.LogArtifact(ctx, artifact); err != nil {
		return fmt.Errorf("failed to log best checkpoint: %w", err)
	}
	h.logger.Info("logged best checkpoint", "path", best)
	return nil
}

func (h *TrainEnd) plotPath(event *domain.TrainEndEvent) (string, error) {
	dir := h.plotDir
	if dir == "" {
		dir = event.SaveDir
	}
	if dir == "" {
		tmp, err := os.MkdirTemp("", "yolotrain-plot-")
		if err != nil {
			return "", fmt.Errorf("failed to create plot directory: %w", err)
		}
		dir = tmp
	}
	return filepath.Join(dir, PlotFile), nil
}
