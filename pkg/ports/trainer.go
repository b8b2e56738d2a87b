package ports

import (
	"context"

	"github.com/aretw0/yolotrain/pkg/domain"
)

// LoadRequest describes the model to construct.
type LoadRequest struct {
	Weights string
	Device  domain.Device
	ImgSize int
	// Tracking enables the trainer's own experiment-tracker integration.
	Tracking bool
}

// TrainRequest carries the training parameters forwarded to the trainer.
type TrainRequest struct {
	Data       string
	Epochs     int
	ImgSize    int
	Batch      int
	Freeze     int
	SavePeriod int
	ExistOK    bool
	Project    string
	Name       string
}

// Trainer constructs models.
type Trainer interface {
	Load(ctx context.Context, req LoadRequest) (Model, error)
}

// Model is a constructed detection model.
type Model interface {
	// Info returns the summary reported at construction time.
	Info() domain.ModelInfo

	// AddCallback registers fn for event. Callbacks run synchronously on the
	// trainer's own path, in registration order.
	AddCallback(event domain.CallbackEvent, fn domain.TrainCallback)

	// Train blocks until training completes. EventTrainEnd callbacks fire
	// exactly once before it returns successfully.
	Train(ctx context.Context, req TrainRequest) error

	// Validate evaluates the trained model (or the loaded weights when no
	// training happened).
	Validate(ctx context.Context) (domain.Metrics, error)
}
