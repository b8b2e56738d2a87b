package domain_test

import (
	"context"
	"testing"

	"github.com/aretw0/yolotrain/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestCountParameters(t *testing.T) {
	params := []domain.Parameter{
		{Name: "a", Numel: 10, Trainable: true},
		{Name: "b", Numel: 20, Trainable: false},
		{Name: "c", Numel: 5, Trainable: true},
	}
	c := domain.CountParameters(params)
	assert.Equal(t, domain.ParamCount{Total: 35, Trainable: 15}, c)
	assert.Equal(t, int64(20), c.Frozen())

	assert.Equal(t, domain.ParamCount{}, domain.CountParameters(nil))
}

func TestSelectDevice(t *testing.T) {
	assert.Equal(t, "cuda:0", domain.SelectDevice(true).Arg())
	assert.Equal(t, "cpu", domain.SelectDevice(false).Arg())

	d := domain.Device{Kind: domain.DeviceCPU, Name: "AMD EPYC"}
	assert.Equal(t, "cpu (AMD EPYC)", d.String())
}

func TestMetrics_String(t *testing.T) {
	m := domain.Metrics{"metrics/mAP50(B)": 0.5, "fitness": 0.123456789}
	assert.Equal(t, []string{"fitness", "metrics/mAP50(B)"}, m.Keys())
	assert.Equal(t, "fitness: 0.12346\nmetrics/mAP50(B): 0.5", m.String())
}

func TestDatasetRef_StringHidesKey(t *testing.T) {
	ref := domain.DatasetRef{APIKey: "secret", Workspace: "ws", Project: "cards", Version: 3, Format: "yolov8"}
	assert.Equal(t, "ws/cards/3 (yolov8)", ref.String())
	assert.NotContains(t, ref.String(), "secret")
}

func TestLifecycleHooks_Merge(t *testing.T) {
	var calls []string
	a := domain.LifecycleHooks{OnStageEnter: func(_ context.Context, e *domain.StageEvent) { calls = append(calls, "a") }}
	b := domain.LifecycleHooks{
		OnStageEnter: func(_ context.Context, e *domain.StageEvent) { calls = append(calls, "b") },
		OnStageLeave: func(_ context.Context, e *domain.StageEvent) { calls = append(calls, "leave") },
	}
	merged := a.Merge(b)
	merged.OnStageEnter(context.Background(), &domain.StageEvent{})
	merged.OnStageLeave(context.Background(), &domain.StageEvent{})
	assert.Equal(t, []string{"a", "b", "leave"}, calls)
}
