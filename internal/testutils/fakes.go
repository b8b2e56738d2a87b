// Package testutils provides fakes of the pipeline collaborators that record
// the order in which they are called.
package testutils

import (
	"context"
	"fmt"
	"sync"

	"github.com/aretw0/yolotrain/pkg/domain"
	"github.com/aretw0/yolotrain/pkg/ports"
)

// Recorder collects calls made across fakes.
type Recorder struct {
	mu    sync.Mutex
	calls []string
}

// Record appends a call.
func (r *Recorder) Record(format string, args ...any) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
}

// Calls returns the recorded calls in order.
func (r *Recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// Datasets is a fake ports.DatasetService.
type Datasets struct {
	Rec  *Recorder
	Err  error
	Refs []domain.DatasetRef
}

func (d *Datasets) Download(ctx context.Context, ref domain.DatasetRef) (*domain.Dataset, error) {
	d.Rec.Record("download %s/%s/%d/%s", ref.Workspace, ref.Project, ref.Version, ref.Format)
	d.Refs = append(d.Refs, ref)
	if d.Err != nil {
		return nil, d.Err
	}
	return &domain.Dataset{
		Name:     ref.Project,
		Version:  ref.Version,
		Format:   ref.Format,
		Location: ref.Location + "/" + ref.Project,
	}, nil
}

// Trainer is a fake ports.Trainer producing *Model.
type Trainer struct {
	Rec     *Recorder
	LoadErr error
	Info    domain.ModelInfo

	// Model settings copied into every loaded model.
	TrainErr    error
	ValidateErr error
	// Event is reported to train-end callbacks. Nil skips the callbacks.
	Event   *domain.TrainEndEvent
	Metrics domain.Metrics

	Loads  []ports.LoadRequest
	Models []*Model
}

func (t *Trainer) Load(ctx context.Context, req ports.LoadRequest) (ports.Model, error) {
	t.Rec.Record("load imgsz=%d device=%s tracking=%t", req.ImgSize, req.Device.Arg(), req.Tracking)
	t.Loads = append(t.Loads, req)
	if t.LoadErr != nil {
		return nil, t.LoadErr
	}
	m := &Model{
		rec:         t.Rec,
		info:        t.Info,
		trainErr:    t.TrainErr,
		validateErr: t.ValidateErr,
		event:       t.Event,
		metrics:     t.Metrics,
		callbacks:   map[domain.CallbackEvent][]domain.TrainCallback{},
	}
	t.Models = append(t.Models, m)
	return m, nil
}

// Model is a fake ports.Model.
type Model struct {
	rec         *Recorder
	info        domain.ModelInfo
	trainErr    error
	validateErr error
	event       *domain.TrainEndEvent
	metrics     domain.Metrics
	callbacks   map[domain.CallbackEvent][]domain.TrainCallback

	Trains      []ports.TrainRequest
	Validations int
}

func (m *Model) Info() domain.ModelInfo {
	return m.info
}

func (m *Model) AddCallback(event domain.CallbackEvent, fn domain.TrainCallback) {
	m.rec.Record("add_callback %s", event)
	m.callbacks[event] = append(m.callbacks[event], fn)
}

func (m *Model) Train(ctx context.Context, req ports.TrainRequest) error {
	m.rec.Record("train epochs=%d batch=%d imgsz=%d freeze=%d project=%s name=%s",
		req.Epochs, req.Batch, req.ImgSize, req.Freeze, req.Project, req.Name)
	m.Trains = append(m.Trains, req)
	if m.trainErr != nil {
		return m.trainErr
	}
	if m.event == nil {
		return nil
	}
	for _, fn := range m.callbacks[domain.EventTrainEnd] {
		m.rec.Record("on_train_end")
		if err := fn(ctx, m.event); err != nil {
			return fmt.Errorf("on_train_end callback: %w", err)
		}
	}
	return nil
}

func (m *Model) Validate(ctx context.Context) (domain.Metrics, error) {
	m.rec.Record("validate")
	m.Validations++
	if m.validateErr != nil {
		return nil, m.validateErr
	}
	return m.metrics, nil
}

// Probe is a fake ports.DeviceProbe.
type Probe struct {
	Available bool
	Name      string
	Calls     int
}

func (p *Probe) AcceleratorAvailable(context.Context) (bool, string) {
	p.Calls++
	return p.Available, p.Name
}
