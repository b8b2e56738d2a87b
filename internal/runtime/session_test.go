package runtime

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/yolotrain/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_StepRejectsIllegalTransition(t *testing.T) {
	entered := 0
	hooks := domain.LifecycleHooks{
		OnStageEnter: func(context.Context, *domain.StageEvent) { entered++ },
	}
	s := newSession(hooks, time.Now)

	ran := false
	err := s.step(context.Background(), domain.StageDeviceSelected, nil, func(context.Context) error {
		ran = true
		return nil
	})
	require.ErrorIs(t, err, domain.ErrIllegalTransition)
	assert.False(t, ran)
	assert.Zero(t, entered)
	assert.Equal(t, domain.StageUnconfigured, s.stage)
}

func TestSession_StepRecordsVisitedStages(t *testing.T) {
	s := newSession(domain.LifecycleHooks{}, time.Now)
	ctx := context.Background()

	require.NoError(t, s.step(ctx, domain.StageConfigLoaded, nil, nil))
	require.NoError(t, s.step(ctx, domain.StageDeviceSelected, nil, nil))
	assert.Equal(t, []domain.Stage{
		domain.StageUnconfigured,
		domain.StageConfigLoaded,
		domain.StageDeviceSelected,
	}, s.visited)
}
