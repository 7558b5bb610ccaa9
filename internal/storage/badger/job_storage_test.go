package badger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/autoforgehq/autoforge/internal/common"
	"github.com/autoforgehq/autoforge/internal/interfaces"
	"github.com/autoforgehq/autoforge/internal/models"
)

func newTestJobStorage(t *testing.T) interfaces.JobStorage {
	t.Helper()
	logger := arbor.NewLogger()
	db, err := NewBadgerDB(logger, &common.BadgerConfig{Path: t.TempDir() + "/db"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewJobStorage(db, logger)
}

func makeJob(queueName string, priority int) *models.Job {
	job := models.NewJob(queueName, "test-type", nil)
	job.Priority = priority
	job.MaxAttempts = 3
	job.Backoff = models.DefaultBackoff()
	return job
}

func TestClaimNext_PriorityThenCreationOrder(t *testing.T) {
	storage := newTestJobStorage(t)
	ctx := context.Background()

	for _, priority := range []int{3, 1, 2} {
		job := makeJob(models.QueueGeneration, priority)
		require.NoError(t, storage.SaveJob(ctx, job))
		time.Sleep(2 * time.Millisecond) // distinct CreatedAt
	}

	var claimed []int
	for i := 0; i < 3; i++ {
		job, err := storage.ClaimNext(ctx, models.QueueGeneration)
		require.NoError(t, err)
		claimed = append(claimed, job.Priority)
		assert.Equal(t, models.JobStateActive, job.State)
		assert.NotNil(t, job.ProcessedAt)
	}

	assert.Equal(t, []int{1, 2, 3}, claimed)

	_, err := storage.ClaimNext(ctx, models.QueueGeneration)
	assert.ErrorIs(t, err, models.ErrNoJob)
}

func TestClaimNext_EqualPriorityFIFO(t *testing.T) {
	storage := newTestJobStorage(t)
	ctx := context.Background()

	first := makeJob(models.QueueGeneration, 10)
	require.NoError(t, storage.SaveJob(ctx, first))
	time.Sleep(2 * time.Millisecond)
	second := makeJob(models.QueueGeneration, 10)
	require.NoError(t, storage.SaveJob(ctx, second))

	claimed, err := storage.ClaimNext(ctx, models.QueueGeneration)
	require.NoError(t, err)
	assert.Equal(t, first.ID, claimed.ID)
}

func TestClaimNext_DelayedInvisibleUntilDue(t *testing.T) {
	storage := newTestJobStorage(t)
	ctx := context.Background()

	job := makeJob(models.QueueGeneration, 1)
	job.State = models.JobStateDelayed
	job.DelayUntil = time.Now().Add(50 * time.Millisecond)
	require.NoError(t, storage.SaveJob(ctx, job))

	_, err := storage.ClaimNext(ctx, models.QueueGeneration)
	assert.ErrorIs(t, err, models.ErrNoJob)

	time.Sleep(80 * time.Millisecond)

	claimed, err := storage.ClaimNext(ctx, models.QueueGeneration)
	require.NoError(t, err)
	assert.Equal(t, job.ID, claimed.ID)
}

func TestClaimNext_QueuesAreIsolated(t *testing.T) {
	storage := newTestJobStorage(t)
	ctx := context.Background()

	require.NoError(t, storage.SaveJob(ctx, makeJob(models.QueueTesting, 1)))

	_, err := storage.ClaimNext(ctx, models.QueueGeneration)
	assert.ErrorIs(t, err, models.ErrNoJob)
}

func TestClaimNext_ConcurrentClaimersGetDistinctJobs(t *testing.T) {
	storage := newTestJobStorage(t)
	ctx := context.Background()

	const jobCount = 20
	for i := 0; i < jobCount; i++ {
		require.NoError(t, storage.SaveJob(ctx, makeJob(models.QueueAnalytics, 10)))
	}

	var mu sync.Mutex
	seen := make(map[string]int)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				job, err := storage.ClaimNext(ctx, models.QueueAnalytics)
				if err != nil {
					return
				}
				mu.Lock()
				seen[job.ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, jobCount)
	for id, count := range seen {
		assert.Equal(t, 1, count, "job %s claimed more than once", id)
	}
}

func TestStats_CountsPerState(t *testing.T) {
	storage := newTestJobStorage(t)
	ctx := context.Background()

	require.NoError(t, storage.SaveJob(ctx, makeJob(models.QueueGeneration, 10)))
	require.NoError(t, storage.SaveJob(ctx, makeJob(models.QueueGeneration, 10)))

	done := makeJob(models.QueueGeneration, 10)
	done.MarkCompleted(nil)
	require.NoError(t, storage.SaveJob(ctx, done))

	stats, err := storage.Stats(ctx, models.QueueGeneration)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Waiting)
	assert.Equal(t, 1, stats.Completed)
	assert.Equal(t, 0, stats.Active)
}

func TestGetStaleActive_FindsLapsedHeartbeats(t *testing.T) {
	storage := newTestJobStorage(t)
	ctx := context.Background()

	stale := makeJob(models.QueueGeneration, 10)
	stale.MarkActive()
	old := time.Now().Add(-time.Hour)
	stale.LastHeartbeat = &old
	require.NoError(t, storage.SaveJob(ctx, stale))

	fresh := makeJob(models.QueueGeneration, 10)
	fresh.MarkActive()
	require.NoError(t, storage.SaveJob(ctx, fresh))

	found, err := storage.GetStaleActive(ctx, time.Now().Add(-10*time.Minute))
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, stale.ID, found[0].ID)
}

func TestPruneTerminal_KeepsNewest(t *testing.T) {
	storage := newTestJobStorage(t)
	ctx := context.Background()

	var newestID string
	for i := 0; i < 5; i++ {
		job := makeJob(models.QueueGeneration, 10)
		job.MarkCompleted(nil)
		require.NoError(t, storage.SaveJob(ctx, job))
		newestID = job.ID
		time.Sleep(2 * time.Millisecond)
	}

	pruned, err := storage.PruneTerminal(ctx, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, pruned)

	_, err = storage.GetJob(ctx, newestID)
	assert.NoError(t, err)

	stats, err := storage.Stats(ctx, models.QueueGeneration)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Completed)
}

func TestGetJob_NotFound(t *testing.T) {
	storage := newTestJobStorage(t)

	_, err := storage.GetJob(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrJobNotFound)
}
