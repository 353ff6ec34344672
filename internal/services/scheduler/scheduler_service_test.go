package scheduler

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/hunt/internal/pipeline"
)

// fakeDriver records full-pipeline launches.
type fakeDriver struct {
	mu       sync.Mutex
	launches int
	inFlight bool
}

func (f *fakeDriver) StartFullPipeline(skips pipeline.Skips) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.launches++
	return "run_test", nil
}

func (f *fakeDriver) IsFullPipelineRunning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inFlight
}

func TestStartStopIdempotent(t *testing.T) {
	svc := NewService(&fakeDriver{}, nil, arbor.NewLogger())

	require.NoError(t, svc.Start(6))
	assert.True(t, svc.IsRunning())

	// Starting while running is a no-op
	require.NoError(t, svc.Start(12))
	status := svc.Status()
	assert.Equal(t, 6, status.IntervalHours)
	assert.NotNil(t, status.NextRun)

	require.NoError(t, svc.Stop())
	assert.False(t, svc.IsRunning())

	// Stopping while stopped is a no-op
	require.NoError(t, svc.Stop())
}

func TestStartDefaultsNonPositiveInterval(t *testing.T) {
	svc := NewService(&fakeDriver{}, nil, arbor.NewLogger())
	err := svc.Start(-3)
	// Negative collapses to the default rather than erroring
	require.NoError(t, err)
	assert.Equal(t, 6, svc.Status().IntervalHours)
	require.NoError(t, svc.Stop())
}

func TestTickSkipsWhenPipelineInFlight(t *testing.T) {
	driver := &fakeDriver{inFlight: true}
	svc := NewService(driver, nil, arbor.NewLogger())

	svc.tick()
	assert.Equal(t, 0, driver.launches)
	assert.NotNil(t, svc.Status().LastRun)

	driver.inFlight = false
	svc.tick()
	assert.Equal(t, 1, driver.launches)
}

func TestStatusWhenStopped(t *testing.T) {
	svc := NewService(&fakeDriver{}, nil, arbor.NewLogger())
	status := svc.Status()
	assert.False(t, status.Running)
	assert.Nil(t, status.NextRun)
	assert.Nil(t, status.LastRun)
}
