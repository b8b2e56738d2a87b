package process

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/yolotrain/internal/logging"
	"github.com/aretw0/yolotrain/pkg/domain"
	"github.com/aretw0/yolotrain/pkg/ports"
)

var (
	// ErrNoModelInfo is returned when load finishes without a model_info event.
	ErrNoModelInfo = errors.New("bridge did not report model info")
	// ErrNoTrainEnd is returned when train finishes without a train_end event.
	ErrNoTrainEnd = errors.New("bridge exited without a train_end event")
	// ErrNoMetrics is returned when val finishes without a metrics event.
	ErrNoMetrics = errors.New("bridge did not report metrics")
)

// Trainer implements ports.Trainer on top of a bridge program.
type Trainer struct {
	runner *Runner
	logger *slog.Logger
}

// NewTrainer creates a Trainer. A nil logger discards output.
func NewTrainer(runner *Runner, logger *slog.Logger) *Trainer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Trainer{runner: runner, logger: logger}
}

// Load constructs the model inside the bridge and returns a handle to it.
func (t *Trainer) Load(ctx context.Context, req ports.LoadRequest) (ports.Model, error) {
	var info *domain.ModelInfo
	err := t.runner.Run(ctx, OpLoad, loadArgs(req), func(ev Event) error {
		if ev.Type != EventModelInfo {
			return nil
		}
		var mi domain.ModelInfo
		if err := ev.Decode(&mi); err != nil {
			return fmt.Errorf("invalid %s event: %w", ev.Type, err)
		}
		info = &mi
		return nil
	})
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, ErrNoModelInfo
	}

	return &Model{
		runner:    t.runner,
		logger:    t.logger,
		load:      req,
		info:      *info,
		callbacks: make(map[domain.CallbackEvent][]domain.TrainCallback),
	}, nil
}

// Model is a model constructed by the bridge. Each operation runs in a fresh
// bridge process; the handle carries what later operations need.
type Model struct {
	runner    *Runner
	logger    *slog.Logger
	load      ports.LoadRequest
	info      domain.ModelInfo
	callbacks map[domain.CallbackEvent][]domain.TrainCallback

	trainedOn *ports.TrainRequest
	best      string
}

func (m *Model) Info() domain.ModelInfo {
	return m.info
}

func (m *Model) AddCallback(event domain.CallbackEvent, fn domain.TrainCallback) {
	m.callbacks[event] = append(m.callbacks[event], fn)
}

// BestCheckpoint returns the best checkpoint of the last completed training.
func (m *Model) BestCheckpoint() string {
	return m.best
}

// Train runs training in the bridge. EventTrainEnd callbacks run when the
// bridge reports train_end, while the bridge waits on its own completion
// path; a callback error kills the bridge and fails the call.
func (m *Model) Train(ctx context.Context, req ports.TrainRequest) error {
	fired := false
	err := m.runner.Run(ctx, OpTrain, m.trainArgs(req), func(ev Event) error {
		switch ev.Type {
		case EventEpochEnd:
			var p epochPayload
			if err := ev.Decode(&p); err == nil {
				m.logger.Info("epoch complete", "epoch", p.Epoch, "metrics", p.Metrics)
			}
		case EventTrainEnd:
			if fired {
				m.logger.Warn("ignoring duplicate train_end event")
				return nil
			}
			fired = true
			var te domain.TrainEndEvent
			if err := ev.Decode(&te); err != nil {
				return fmt.Errorf("invalid %s event: %w", ev.Type, err)
			}
			m.best = te.Best
			for _, cb := range m.callbacks[domain.EventTrainEnd] {
				if err := cb(ctx, &te); err != nil {
					return fmt.Errorf("%s callback: %w", domain.EventTrainEnd, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if !fired {
		return ErrNoTrainEnd
	}
	trained := req
	m.trainedOn = &trained
	return nil
}

// Validate evaluates the best checkpoint of the last training, or the loaded
// weights when there is none.
func (m *Model) Validate(ctx context.Context) (domain.Metrics, error) {
	args := map[string]any{
		"weights": m.load.Weights,
		"device":  m.load.Device.Arg(),
		"imgsz":   m.load.ImgSize,
	}
	if m.best != "" {
		args["weights"] = m.best
	}
	if m.trainedOn != nil {
		args["data"] = m.trainedOn.Data
		args["batch"] = m.trainedOn.Batch
		args["imgsz"] = m.trainedOn.ImgSize
	}

	var metrics domain.Metrics
	err := m.runner.Run(ctx, OpVal, args, func(ev Event) error {
		if ev.Type != EventMetrics {
			return nil
		}
		var p metricsPayload
		if err := ev.Decode(&p); err != nil {
			return fmt.Errorf("invalid %s event: %w", ev.Type, err)
		}
		metrics = domain.Metrics(p.Metrics)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if metrics == nil {
		return nil, ErrNoMetrics
	}
	return metrics, nil
}

func loadArgs(req ports.LoadRequest) map[string]any {
	return map[string]any{
		"weights": req.Weights,
		"device":  req.Device.Arg(),
		"imgsz":   req.ImgSize,
		"wandb":   req.Tracking,
	}
}

func (m *Model) trainArgs(req ports.TrainRequest) map[string]any {
	return map[string]any{
		"weights":     m.load.Weights,
		"device":      m.load.Device.Arg(),
		"wandb":       m.load.Tracking,
		"data":        req.Data,
		"epochs":      req.Epochs,
		"imgsz":       req.ImgSize,
		"batch":       req.Batch,
		"freeze":      req.Freeze,
		"save_period": req.SavePeriod,
		"exist_ok":    req.ExistOK,
		"project":     req.Project,
		"name":        req.Name,
	}
}
