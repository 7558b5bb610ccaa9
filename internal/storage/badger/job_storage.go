package badger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/autoforgehq/autoforge/internal/interfaces"
	"github.com/autoforgehq/autoforge/internal/models"
)

// JobStorage implements the JobStorage interface over Badger.
//
// Claim atomicity: BadgerHold read-modify-write is not safe against
// concurrent claimers, so claims are serialized behind claimMu. The
// pipeline targets a single coordinator process (no cross-node
// coordination), which makes a process-local mutex sufficient for the
// at-most-one-claimer contract.
type JobStorage struct {
	db      *BadgerDB
	logger  arbor.ILogger
	claimMu sync.Mutex
}

// NewJobStorage creates a new JobStorage instance.
func NewJobStorage(db *BadgerDB, logger arbor.ILogger) interfaces.JobStorage {
	return &JobStorage{
		db:     db,
		logger: logger,
	}
}

func (s *JobStorage) SaveJob(ctx context.Context, job *models.Job) error {
	if err := job.Validate(); err != nil {
		return err
	}
	if err := s.db.Store().Upsert(job.ID, job); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

func (s *JobStorage) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	var job models.Job
	if err := s.db.Store().Get(jobID, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("%w: %s", models.ErrJobNotFound, jobID)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

func (s *JobStorage) UpdateJob(ctx context.Context, job *models.Job) error {
	return s.SaveJob(ctx, job)
}

// ClaimNext claims the highest-priority eligible job in the queue.
// Ordering is priority ascending, then CreatedAt ascending; delayed jobs
// are invisible until their DelayUntil has passed.
func (s *JobStorage) ClaimNext(ctx context.Context, queueName string) (*models.Job, error) {
	if !models.ValidQueue(queueName) {
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownQueue, queueName)
	}

	s.claimMu.Lock()
	defer s.claimMu.Unlock()

	now := time.Now()

	var candidates []models.Job
	query := badgerhold.Where("QueueName").Eq(queueName).
		And("State").In(models.JobStateWaiting, models.JobStateDelayed)
	if err := s.db.Store().Find(&candidates, query); err != nil {
		return nil, fmt.Errorf("failed to query waiting jobs: %w", err)
	}

	eligible := candidates[:0]
	for _, j := range candidates {
		if j.Eligible(now) {
			eligible = append(eligible, j)
		}
	}
	if len(eligible) == 0 {
		return nil, models.ErrNoJob
	}

	sort.SliceStable(eligible, func(i, k int) bool {
		if eligible[i].Priority != eligible[k].Priority {
			return eligible[i].Priority < eligible[k].Priority
		}
		return eligible[i].CreatedAt.Before(eligible[k].CreatedAt)
	})

	job := eligible[0]
	job.MarkActive()
	if err := s.db.Store().Upsert(job.ID, &job); err != nil {
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}

	return &job, nil
}

func (s *JobStorage) GetJobsByState(ctx context.Context, queueName string, state models.JobState) ([]*models.Job, error) {
	var jobs []models.Job
	query := badgerhold.Where("QueueName").Eq(queueName).And("State").Eq(state)
	if err := s.db.Store().Find(&jobs, query); err != nil {
		return nil, fmt.Errorf("failed to get jobs by state: %w", err)
	}
	result := make([]*models.Job, len(jobs))
	for i := range jobs {
		result[i] = &jobs[i]
	}
	return result, nil
}

func (s *JobStorage) Stats(ctx context.Context, queueName string) (*models.QueueStats, error) {
	if !models.ValidQueue(queueName) {
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownQueue, queueName)
	}

	stats := &models.QueueStats{}
	for state, target := range map[models.JobState]*int{
		models.JobStateWaiting:   &stats.Waiting,
		models.JobStateDelayed:   &stats.Delayed,
		models.JobStateActive:    &stats.Active,
		models.JobStateCompleted: &stats.Completed,
		models.JobStateFailed:    &stats.Failed,
	} {
		count, err := s.db.Store().Count(&models.Job{}, badgerhold.Where("QueueName").Eq(queueName).And("State").Eq(state))
		if err != nil {
			return nil, fmt.Errorf("failed to count %s jobs: %w", state, err)
		}
		*target = int(count)
	}
	return stats, nil
}

func (s *JobStorage) GetStaleActive(ctx context.Context, threshold time.Time) ([]*models.Job, error) {
	var jobs []models.Job
	if err := s.db.Store().Find(&jobs, badgerhold.Where("State").Eq(models.JobStateActive)); err != nil {
		return nil, fmt.Errorf("failed to get stale jobs: %w", err)
	}
	var result []*models.Job
	for i := range jobs {
		hb := jobs[i].LastHeartbeat
		if hb == nil || hb.Before(threshold) {
			result = append(result, &jobs[i])
		}
	}
	return result, nil
}

// PruneTerminal removes terminal jobs beyond the retention counts,
// oldest FinishedAt first, across all queues.
func (s *JobStorage) PruneTerminal(ctx context.Context, keepCompleted, keepFailed int) (int, error) {
	pruned := 0
	for state, keep := range map[models.JobState]int{
		models.JobStateCompleted: keepCompleted,
		models.JobStateFailed:    keepFailed,
	} {
		n, err := s.pruneState(state, keep)
		if err != nil {
			return pruned, err
		}
		pruned += n
	}
	if pruned > 0 {
		s.logger.Debug().Int("count", pruned).Msg("Pruned terminal jobs")
	}
	return pruned, nil
}

func (s *JobStorage) pruneState(state models.JobState, keep int) (int, error) {
	if keep < 0 {
		return 0, nil
	}
	var jobs []models.Job
	if err := s.db.Store().Find(&jobs, badgerhold.Where("State").Eq(state)); err != nil {
		return 0, fmt.Errorf("failed to list %s jobs for pruning: %w", state, err)
	}
	if len(jobs) <= keep {
		return 0, nil
	}

	// Newest first; everything past the retention count is deleted.
	sort.Slice(jobs, func(i, k int) bool {
		ti, tk := jobs[i].CreatedAt, jobs[k].CreatedAt
		if jobs[i].FinishedAt != nil {
			ti = *jobs[i].FinishedAt
		}
		if jobs[k].FinishedAt != nil {
			tk = *jobs[k].FinishedAt
		}
		return ti.After(tk)
	})

	pruned := 0
	for _, j := range jobs[keep:] {
		if err := s.db.Store().Delete(j.ID, &models.Job{}); err != nil {
			s.logger.Warn().Err(err).Str("job_id", j.ID).Msg("Failed to prune job")
			continue
		}
		pruned++
	}
	return pruned, nil
}
