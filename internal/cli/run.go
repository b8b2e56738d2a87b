package cli

import (
	"context"
	"io"
	"os"

	"github.com/aretw0/yolotrain"
	"github.com/aretw0/yolotrain/internal/presentation/tui"
	"github.com/aretw0/yolotrain/pkg/domain"
	"github.com/aretw0/yolotrain/pkg/observability"
)

// RunOptions contains all the configuration for the train command.
type RunOptions struct {
	ConfigPath      string
	Debug           bool
	LogFormat       string
	MetricsTextfile string
	Quiet           bool
	EnvFiles        []string

	// Overridable for tests.
	Stdout io.Writer
	Stderr io.Writer
	Extra  []yolotrain.Option
}

// Execute runs the training pipeline until it completes or a signal arrives.
func Execute(opts RunOptions) error {
	sc := NewSignalContext(context.Background())
	defer sc.Cancel()

	_, err := execute(sc, opts)
	return interruptedError(sc.Signal(), err)
}

func execute(ctx context.Context, opts RunOptions) (*yolotrain.Result, error) {
	stdout, stderr := opts.Stdout, opts.Stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}

	logger, err := createLogger(stderr, opts.Debug, opts.LogFormat)
	if err != nil {
		return nil, err
	}

	metrics := observability.NewMetrics()
	hooks := metrics.Hooks().Merge(observability.LogHooks(logger))
	if !opts.Quiet {
		tui.PrintBanner(stderr, yolotrain.Version)
		hooks = hooks.Merge(tui.StageHooks(stderr))
	}

	pipelineOpts := []yolotrain.Option{
		yolotrain.WithLogger(logger),
		yolotrain.WithLifecycleHooks(hooks),
		yolotrain.WithStdout(stdout),
		yolotrain.WithMetricsReporter(func(w io.Writer, m domain.Metrics) error {
			return tui.ReportMetrics(w, m)
		}),
	}
	if opts.EnvFiles != nil {
		pipelineOpts = append(pipelineOpts, yolotrain.WithEnvFiles(opts.EnvFiles...))
	}
	pipelineOpts = append(pipelineOpts, opts.Extra...)

	res, runErr := yolotrain.New(pipelineOpts...).Run(ctx, opts.ConfigPath)

	if opts.MetricsTextfile != "" {
		if err := metrics.WriteTextfile(opts.MetricsTextfile); err != nil {
			logger.Warn("failed to write metrics textfile", "path", opts.MetricsTextfile, "err", err)
		}
	}
	return res, runErr
}
