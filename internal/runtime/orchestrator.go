package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/aretw0/yolotrain/internal/logging"
	"github.com/aretw0/yolotrain/pkg/adapters/device"
	"github.com/aretw0/yolotrain/pkg/callbacks"
	"github.com/aretw0/yolotrain/pkg/config"
	"github.com/aretw0/yolotrain/pkg/domain"
	"github.com/aretw0/yolotrain/pkg/ports"
)

// ErrNilConfig is returned by RunConfig when no configuration is given.
var ErrNilConfig = errors.New("configuration is nil")

// Collaborators are the external services a run drives.
type Collaborators struct {
	Datasets ports.DatasetService
	Trainer  ports.Trainer
	Tracker  ports.Tracker
	Probe    ports.DeviceProbe
	// Close releases resources held by the collaborators. Optional.
	Close func() error
}

// Resolver builds the collaborators once the settings are known.
type Resolver func(ctx context.Context, settings *config.Settings) (*Collaborators, error)

// MetricsReporter prints the evaluation result.
type MetricsReporter func(w io.Writer, metrics domain.Metrics) error

// Result describes how far a run got and what it produced.
type Result struct {
	Stage     domain.Stage
	Stages    []domain.Stage
	Settings  *config.Settings
	Device    domain.Device
	Dataset   *domain.Dataset
	ModelInfo domain.ModelInfo
	Params    domain.ParamCount
	Metrics   domain.Metrics
	Run       domain.RunSpec
}

// Orchestrator runs the training pipeline stage by stage.
type Orchestrator struct {
	resolve  Resolver
	hooks    domain.LifecycleHooks
	logger   *slog.Logger
	stdout   io.Writer
	report   MetricsReporter
	envFiles []string
	plotDir  string
	cpuName  func() string
	now      func() time.Time
}

// Option configures the Orchestrator.
type Option func(*Orchestrator)

// WithLifecycleHooks registers stage observers.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(o *Orchestrator) {
		o.hooks = hooks
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithStdout sets where the evaluation result is printed.
func WithStdout(w io.Writer) Option {
	return func(o *Orchestrator) {
		o.stdout = w
	}
}

// WithMetricsReporter replaces the plain "name: value" report.
func WithMetricsReporter(report MetricsReporter) Option {
	return func(o *Orchestrator) {
		o.report = report
	}
}

// WithEnvFiles sets the .env files read before credentials are resolved.
// No paths disables env files.
func WithEnvFiles(paths ...string) Option {
	return func(o *Orchestrator) {
		o.envFiles = paths
	}
}

// WithPlotDir sets where the parameter chart is written.
func WithPlotDir(dir string) Option {
	return func(o *Orchestrator) {
		o.plotDir = dir
	}
}

// NewOrchestrator creates an orchestrator using resolve to obtain its
// collaborators.
func NewOrchestrator(resolve Resolver, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		resolve:  resolve,
		logger:   logging.NewNop(),
		stdout:   os.Stdout,
		report:   PlainReport,
		envFiles: []string{".env"},
		cpuName:  device.CPUName,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// PlainReport prints one "name: value" line per metric.
func PlainReport(w io.Writer, metrics domain.Metrics) error {
	_, err := fmt.Fprintln(w, metrics.String())
	return err
}

// Run loads the configuration at path and executes the pipeline.
func (o *Orchestrator) Run(ctx context.Context, path string) (*Result, error) {
	return o.run(ctx, func() (*config.Config, error) {
		if path == "" {
			p, err := config.DefaultPath()
			if err != nil {
				return nil, err
			}
			path = p
		}
		return config.Load(path)
	})
}

// RunConfig executes the pipeline with an already loaded configuration.
func (o *Orchestrator) RunConfig(ctx context.Context, cfg *config.Config) (*Result, error) {
	return o.run(ctx, func() (*config.Config, error) {
		if cfg == nil {
			return nil, ErrNilConfig
		}
		return cfg, nil
	})
}

func (o *Orchestrator) run(ctx context.Context, load func() (*config.Config, error)) (*Result, error) {
	s := newSession(o.hooks, o.now)
	res := &Result{}
	defer func() {
		res.Stage = s.stage
		res.Stages = s.visited
	}()

	// Configuration
	var (
		cfg    *config.Config
		collab *Collaborators
	)
	err := s.step(ctx, domain.StageConfigLoaded, domain.ErrConfigFieldMissing, func(ctx context.Context) error {
		var err error
		if cfg, err = load(); err != nil {
			return err
		}
		if len(o.envFiles) > 0 {
			if err := config.LoadEnv(o.logger, o.envFiles...); err != nil {
				o.logger.Warn("failed to read env file", "err", err)
			}
		}
		if res.Settings, err = cfg.Settings(); err != nil {
			return err
		}
		o.logger.Info("loaded config", "path", cfg.Path(), "config", cfg.Redacted(), "api_key_source", cfg.APIKeySource())

		if collab, err = o.resolve(ctx, res.Settings); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return res, err
	}
	if collab.Close != nil {
		defer func() {
			if err := collab.Close(); err != nil {
				o.logger.Warn("failed to release collaborators", "err", err)
			}
		}()
	}
	settings := res.Settings

	// Device
	err = s.step(ctx, domain.StageDeviceSelected, nil, func(ctx context.Context) error {
		res.Device = o.selectDevice(ctx, settings.Device, collab.Probe)
		o.logger.Info("using device", "device", res.Device.String())
		return nil
	})
	if err != nil {
		return res, err
	}

	// Dataset
	err = s.step(ctx, domain.StageDatasetAcquired, domain.ErrDatasetAcquisition, func(ctx context.Context) error {
		ref := domain.DatasetRef{
			APIKey:    settings.Roboflow.APIKey,
			Workspace: settings.Roboflow.Workspace,
			Project:   settings.Roboflow.Project,
			Version:   settings.Roboflow.Version,
			Format:    settings.Roboflow.ModelFormat,
			Location:  settings.Roboflow.Location,
		}
		ds, err := collab.Datasets.Download(ctx, ref)
		if err != nil {
			return fmt.Errorf("%s: %w", ref, err)
		}
		res.Dataset = ds
		o.logger.Info("dataset ready", "dataset", ref.String(), "location", ds.Location)
		return nil
	})
	if err != nil {
		return res, err
	}

	// Model
	hook := callbacks.NewTrainEnd(callbacks.WithLogger(o.logger), callbacks.WithPlotDir(o.plotDir))
	var model ports.Model
	err = s.step(ctx, domain.StageModelLoaded, domain.ErrModelLoad, func(ctx context.Context) error {
		var err error
		model, err = collab.Trainer.Load(ctx, ports.LoadRequest{
			Weights:  settings.Model.Weights,
			Device:   res.Device,
			ImgSize:  settings.Model.ImgSize,
			Tracking: settings.Wandb.Enabled,
		})
		if err != nil {
			return err
		}
		res.ModelInfo = model.Info()
		o.logger.Info("model loaded",
			"weights", settings.Model.Weights,
			"layers", res.ModelInfo.Layers,
			"parameters", res.ModelInfo.Parameters,
			"gradients", res.ModelInfo.Gradients,
		)
		model.AddCallback(domain.EventTrainEnd, hook.Callback())
		return nil
	})
	if err != nil {
		return res, err
	}

	// Training and evaluation share one tracker run.
	res.Run = domain.RunSpec{
		Project: settings.Wandb.Project,
		Name:    settings.Wandb.RunName,
		Config:  cfg.Redacted(),
	}
	err = o.withTrackerRun(ctx, s, collab.Tracker, res.Run, func(run ports.Run) error {
		hook.Attach(run)

		err := s.step(ctx, domain.StageTraining, domain.ErrTraining, func(ctx context.Context) error {
			return model.Train(ctx, ports.TrainRequest{
				Data:       settings.Data.Path,
				Epochs:     settings.Model.Epochs,
				ImgSize:    settings.Model.ImgSize,
				Batch:      settings.Model.BatchSize,
				Freeze:     settings.Model.Freeze,
				SavePeriod: settings.Model.SavePeriod,
				ExistOK:    true,
				Project:    settings.Wandb.Project,
				Name:       settings.Wandb.RunName,
			})
		})
		res.Params = hook.Count
		if err != nil {
			return err
		}

		return s.step(ctx, domain.StageEvaluated, domain.ErrEvaluation, func(ctx context.Context) error {
			metrics, err := model.Validate(ctx)
			if err != nil {
				return err
			}
			res.Metrics = metrics
			if err := run.Log(ctx, prefixed("val/", metrics)); err != nil {
				return fmt.Errorf("failed to log metrics: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		return res, err
	}

	if err := o.report(o.stdout, res.Metrics); err != nil {
		o.logger.Warn("failed to print metrics", "err", err)
	}
	return res, s.step(ctx, domain.StageDone, nil, nil)
}

// withTrackerRun opens the tracker run before fn and always finishes it,
// with RunFailed when fn fails.
func (o *Orchestrator) withTrackerRun(ctx context.Context, s *session, tracker ports.Tracker, spec domain.RunSpec, fn func(ports.Run) error) error {
	run, err := tracker.Start(ctx, spec)
	if err != nil {
		return s.step(ctx, domain.StageTraining, domain.ErrTraining, func(context.Context) error {
			return fmt.Errorf("failed to start tracker run: %w", err)
		})
	}
	o.logger.Debug("tracker run started", "project", spec.Project, "run", spec.Name)

	runErr := fn(run)
	status := domain.RunFinished
	if runErr != nil {
		status = domain.RunFailed
	}

	// The run must be closed even when ctx was cancelled.
	if err := run.Finish(context.WithoutCancel(ctx), status); err != nil {
		if runErr != nil {
			o.logger.Warn("failed to finish tracker run", "status", status, "err", err)
			return runErr
		}
		return s.fail(domain.ErrEvaluation, fmt.Errorf("failed to finish tracker run: %w", err))
	}
	o.logger.Debug("tracker run finished", "status", status)
	return runErr
}

func (o *Orchestrator) selectDevice(ctx context.Context, override string, probe ports.DeviceProbe) domain.Device {
	var d domain.Device
	switch override {
	case config.DeviceCPU:
		d = domain.SelectDevice(false)
	case config.DeviceCUDA:
		d = domain.SelectDevice(true)
	default:
		if probe == nil {
			probe = device.NewNvidiaSMI(o.logger)
		}
		available, name := probe.AcceleratorAvailable(ctx)
		d = domain.SelectDevice(available)
		d.Name = name
	}
	if d.Kind == domain.DeviceCPU {
		d.Name = o.cpuName()
	}
	return d
}

func prefixed(prefix string, m domain.Metrics) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[prefix+k] = v
	}
	return out
}
