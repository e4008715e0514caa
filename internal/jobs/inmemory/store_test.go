package inmemory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/budgetbook/budgetbook/internal/jobs"
)

func TestStore_SaveAndGet(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	err := store.SaveJob(ctx, &jobs.CommitImportJob{})
	assert.Error(t, err, "job without an ID must be rejected")

	job := &jobs.CommitImportJob{JobID: "job-1", SessionID: "sess-1", Status: jobs.JobStatusPending}
	require.NoError(t, store.SaveJob(ctx, job))

	got, err := store.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", got.SessionID)

	// The stored copy is isolated from caller mutation.
	got.Status = jobs.JobStatusFailed
	again, err := store.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusPending, again.Status)

	_, err = store.GetJob(ctx, "missing")
	assert.Error(t, err)
}

func TestStore_ListJobs(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, job := range []*jobs.CommitImportJob{
		{JobID: "job-1", SessionID: "sess-1", Status: jobs.JobStatusCompleted},
		{JobID: "job-2", SessionID: "sess-1", Status: jobs.JobStatusFailed},
		{JobID: "job-3", SessionID: "sess-2", Status: jobs.JobStatusCompleted},
	} {
		job.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.SaveJob(ctx, job))
	}

	all, err := store.ListJobs(ctx, jobs.JobFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "job-3", all[0].JobID, "newest first")

	bySession, err := store.ListJobs(ctx, jobs.JobFilter{SessionID: "sess-1"})
	require.NoError(t, err)
	assert.Len(t, bySession, 2)

	byStatus, err := store.ListJobs(ctx, jobs.JobFilter{Status: jobs.JobStatusFailed})
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, "job-2", byStatus[0].JobID)

	paged, err := store.ListJobs(ctx, jobs.JobFilter{Offset: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, "job-2", paged[0].JobID)

	empty, err := store.ListJobs(ctx, jobs.JobFilter{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestStore_UpdateJobProgress(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.SaveJob(ctx, &jobs.CommitImportJob{JobID: "job-1"}))
	require.NoError(t, store.UpdateJobProgress(ctx, "job-1", 42))

	got, err := store.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, 42, got.Progress)

	assert.Error(t, store.UpdateJobProgress(ctx, "missing", 10))
}

func TestQueue_ProcessesJob(t *testing.T) {
	store := NewStore()
	queue := NewQueue(10, 2, store)
	defer queue.Close()

	done := make(chan string, 1)
	err := queue.Start(context.Background(), func(_ context.Context, job jobs.Job) error {
		done <- job.GetID()
		return nil
	})
	require.NoError(t, err)

	job := &jobs.CommitImportJob{SessionID: "sess-1"}
	require.NoError(t, queue.PublishCommitImport(context.Background(), job))
	assert.NotEmpty(t, job.JobID)

	select {
	case id := <-done:
		assert.Equal(t, job.JobID, id)
	case <-time.After(2 * time.Second):
		t.Fatal("job was not processed")
	}

	// Terminal state lands in the store once the handler returns.
	require.Eventually(t, func() bool {
		got, err := store.GetJob(context.Background(), job.JobID)
		return err == nil && got.Status == jobs.JobStatusCompleted
	}, 2*time.Second, 10*time.Millisecond)
}

func TestQueue_ProgressSurvivesCompletion(t *testing.T) {
	store := NewStore()
	queue := NewQueue(10, 1, store)
	defer queue.Close()

	// Handlers report progress through the store, not on their job argument.
	err := queue.Start(context.Background(), func(ctx context.Context, job jobs.Job) error {
		return store.UpdateJobProgress(ctx, job.GetID(), 100)
	})
	require.NoError(t, err)

	job := &jobs.CommitImportJob{SessionID: "sess-1"}
	require.NoError(t, queue.PublishCommitImport(context.Background(), job))

	require.Eventually(t, func() bool {
		got, err := store.GetJob(context.Background(), job.JobID)
		return err == nil && got.Status == jobs.JobStatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	got, err := store.GetJob(context.Background(), job.JobID)
	require.NoError(t, err)
	assert.Equal(t, 100, got.Progress, "terminal save must keep the recorded progress")
}

func TestQueue_FailedJobIsNotRequeued(t *testing.T) {
	store := NewStore()
	queue := NewQueue(10, 1, store)
	defer queue.Close()

	var mu sync.Mutex
	calls := 0
	err := queue.Start(context.Background(), func(_ context.Context, _ jobs.Job) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return assert.AnError
	})
	require.NoError(t, err)

	job := &jobs.CommitImportJob{SessionID: "sess-1"}
	require.NoError(t, queue.PublishCommitImport(context.Background(), job))

	require.Eventually(t, func() bool {
		got, err := store.GetJob(context.Background(), job.JobID)
		return err == nil && got.Status == jobs.JobStatusFailed
	}, 2*time.Second, 10*time.Millisecond)

	// Give a would-be retry time to fire, then confirm it never did.
	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls)

	got, err := store.GetJob(context.Background(), job.JobID)
	require.NoError(t, err)
	assert.Equal(t, assert.AnError.Error(), got.Error)
}

func TestQueue_PublishAfterClose(t *testing.T) {
	queue := NewQueue(1, 1, NewStore())
	require.NoError(t, queue.Close())

	err := queue.PublishCommitImport(context.Background(), &jobs.CommitImportJob{})
	assert.Error(t, err)
}
