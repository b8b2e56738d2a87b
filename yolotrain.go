package yolotrain

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/yolotrain/internal/logging"
	"github.com/aretw0/yolotrain/internal/runtime"
	"github.com/aretw0/yolotrain/pkg/adapters/device"
	"github.com/aretw0/yolotrain/pkg/adapters/local"
	"github.com/aretw0/yolotrain/pkg/adapters/memory"
	"github.com/aretw0/yolotrain/pkg/adapters/process"
	"github.com/aretw0/yolotrain/pkg/adapters/redis"
	"github.com/aretw0/yolotrain/pkg/adapters/roboflow"
	"github.com/aretw0/yolotrain/pkg/config"
	"github.com/aretw0/yolotrain/pkg/domain"
	"github.com/aretw0/yolotrain/pkg/ports"
)

// Result describes how far a run got and what it produced.
type Result = runtime.Result

// MetricsReporter prints the evaluation result.
type MetricsReporter = runtime.MetricsReporter

// Pipeline is the high-level entry point of the library.
type Pipeline struct {
	datasets ports.DatasetService
	trainer  ports.Trainer
	tracker  ports.Tracker
	probe    ports.DeviceProbe

	hooks    domain.LifecycleHooks
	logger   *slog.Logger
	stdout   io.Writer
	report   MetricsReporter
	envFiles []string
	envSet   bool
	timeout  time.Duration
}

// Option defines a functional option for configuring the Pipeline.
type Option func(*Pipeline)

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(p *Pipeline) {
		p.hooks = p.hooks.Merge(hooks)
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithDatasetService replaces the Roboflow client.
func WithDatasetService(s ports.DatasetService) Option {
	return func(p *Pipeline) {
		p.datasets = s
	}
}

// WithTrainer replaces the bridge process trainer.
func WithTrainer(t ports.Trainer) Option {
	return func(p *Pipeline) {
		p.trainer = t
	}
}

// WithTracker replaces the tracker selected by tracker.backend.
func WithTracker(t ports.Tracker) Option {
	return func(p *Pipeline) {
		p.tracker = t
	}
}

// WithDeviceProbe replaces the nvidia-smi probe.
func WithDeviceProbe(probe ports.DeviceProbe) Option {
	return func(p *Pipeline) {
		p.probe = probe
	}
}

// WithStdout sets where the evaluation result is printed.
func WithStdout(w io.Writer) Option {
	return func(p *Pipeline) {
		p.stdout = w
	}
}

// WithMetricsReporter replaces the plain metrics report.
func WithMetricsReporter(r MetricsReporter) Option {
	return func(p *Pipeline) {
		p.report = r
	}
}

// WithEnvFiles sets the .env files loaded before the credential is
// resolved (default ".env"). No paths disables env files.
func WithEnvFiles(paths ...string) Option {
	return func(p *Pipeline) {
		p.envFiles = paths
		p.envSet = true
	}
}

// WithDownloadTimeout bounds each dataset API request.
func WithDownloadTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		p.timeout = d
	}
}

// New creates a pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logging.NewNop()
	}
	return p
}

// Run loads the configuration at path (DefaultConfigPath when empty) and
// trains, evaluates and reports one model.
func (p *Pipeline) Run(ctx context.Context, path string) (*Result, error) {
	return p.orchestrator().Run(ctx, path)
}

// RunConfig runs the pipeline with an already loaded configuration.
func (p *Pipeline) RunConfig(ctx context.Context, cfg *config.Config) (*Result, error) {
	return p.orchestrator().RunConfig(ctx, cfg)
}

func (p *Pipeline) orchestrator() *runtime.Orchestrator {
	opts := []runtime.Option{
		runtime.WithLogger(p.logger),
		runtime.WithLifecycleHooks(p.hooks),
	}
	if p.stdout != nil {
		opts = append(opts, runtime.WithStdout(p.stdout))
	}
	if p.report != nil {
		opts = append(opts, runtime.WithMetricsReporter(p.report))
	}
	if p.envSet {
		opts = append(opts, runtime.WithEnvFiles(p.envFiles...))
	}
	return runtime.NewOrchestrator(p.resolve, opts...)
}

// resolve fills every collaborator that was not injected from settings.
func (p *Pipeline) resolve(ctx context.Context, s *config.Settings) (*runtime.Collaborators, error) {
	c := &runtime.Collaborators{
		Datasets: p.datasets,
		Trainer:  p.trainer,
		Tracker:  p.tracker,
		Probe:    p.probe,
	}

	if c.Datasets == nil {
		opts := []roboflow.Option{roboflow.WithLogger(p.logger)}
		if p.timeout > 0 {
			opts = append(opts, roboflow.WithTimeout(p.timeout))
		}
		c.Datasets = roboflow.New(s.Roboflow.APIURL, opts...)
	}

	if c.Trainer == nil {
		runner := process.NewRunner(process.BridgeConfig{
			Command: s.Trainer.Command,
			Args:    s.Trainer.Args,
			Dir:     s.Trainer.Dir,
		}, process.WithLogger(p.logger))
		c.Trainer = process.NewTrainer(runner, p.logger)
	}

	if c.Probe == nil {
		c.Probe = device.NewNvidiaSMI(p.logger)
	}

	if c.Tracker == nil {
		tracker, closer, err := NewTracker(s.Tracker)
		if err != nil {
			return nil, err
		}
		c.Tracker = tracker
		c.Close = closer
	}
	return c, nil
}

// NewTracker builds the tracker named by settings.Backend. The returned
// close function may be nil.
func NewTracker(s config.TrackerSettings) (ports.Tracker, func() error, error) {
	switch s.Backend {
	case config.TrackerLocal, "":
		return local.NewTracker(s.Dir), nil, nil
	case config.TrackerMemory:
		return memory.NewTracker(), nil, nil
	case config.TrackerRedis:
		var opts []redis.Option
		if s.RedisPrefix != "" {
			opts = append(opts, redis.WithPrefix(s.RedisPrefix))
		}
		if s.RedisTTL > 0 {
			opts = append(opts, redis.WithTTL(s.RedisTTL))
		}
		t, err := redis.New(s.RedisURL, opts...)
		if err != nil {
			return nil, nil, &domain.FieldError{Key: "tracker.redis_url", Err: err}
		}
		return t, t.Close, nil
	}
	return nil, nil, &domain.FieldError{Key: "tracker.backend", Err: fmt.Errorf("unknown backend %q", s.Backend)}
}

// DefaultConfigPath is where Run looks when given an empty path.
func DefaultConfigPath() (string, error) {
	return config.DefaultPath()
}
