package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/hunt/internal/models"
)

func TestRegistry_IndependentStagesRunConcurrently(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Begin(OpCrawl(models.ATSGreenhouse), "run_1", nil))
	require.NoError(t, r.Begin(OpEmbeddings, "run_2", nil))

	running := r.Running()
	require.Len(t, running, 2)
	assert.Equal(t, "crawl_greenhouse", running[0].Type)
	assert.Equal(t, OpEmbeddings, running[1].Type)
}

func TestRegistry_SameTypeConflicts(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Begin(OpDiscovery, "run_1", nil))
	err := r.Begin(OpDiscovery, "run_2", nil)
	require.Error(t, err)
	assert.Equal(t, models.KindConflict, models.KindOf(err))
}

func TestRegistry_FullPipelineConflictsWithAnything(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Begin(OpCrawl(models.ATSGreenhouse), "run_1", nil))

	err := r.Begin(OpFullPipeline, "run_2", nil)
	require.Error(t, err)
	assert.Equal(t, models.KindConflict, models.KindOf(err))

	r.End(OpCrawl(models.ATSGreenhouse))
	require.NoError(t, r.Begin(OpFullPipeline, "run_2", nil))

	// And everything conflicts with a running full_pipeline
	err = r.Begin(OpEmbeddings, "run_3", nil)
	require.Error(t, err)
	assert.Equal(t, models.KindConflict, models.KindOf(err))
}

func TestRegistry_ChildrenBypassFullPipelineGuard(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Begin(OpFullPipeline, "run_parent", nil))
	require.NoError(t, r.BeginChild(OpCrawl(models.ATSLever), "run_child", OpFullPipeline, nil))

	running := r.Running()
	require.Len(t, running, 2)

	r.End(OpCrawl(models.ATSLever))
	r.End(OpFullPipeline)
	assert.Empty(t, r.Running())
}

func TestRegistry_CancelSignalsContext(t *testing.T) {
	r := NewRegistry()

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, r.Begin(OpEnrich, "run_1", cancel))

	require.NoError(t, r.Cancel(OpEnrich))
	assert.ErrorIs(t, ctx.Err(), context.Canceled)

	// Cancelling something not running is not_found
	err := r.Cancel(OpMaintenance)
	require.Error(t, err)
	assert.Equal(t, models.KindNotFound, models.KindOf(err))
}
