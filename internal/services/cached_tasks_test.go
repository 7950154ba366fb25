package services_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"task-tracker/internal/cache"
	"task-tracker/internal/models"
	"task-tracker/internal/services"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingTaskService struct {
	services.TaskService
	lists int32
	gets  int32
}

func (c *countingTaskService) ListTasks(ctx context.Context, userID string) ([]models.Task, error) {
	atomic.AddInt32(&c.lists, 1)
	return c.TaskService.ListTasks(ctx, userID)
}

func (c *countingTaskService) GetTask(ctx context.Context, userID string, id uint) (models.Task, error) {
	atomic.AddInt32(&c.gets, 1)
	return c.TaskService.GetTask(ctx, userID, id)
}

// gatedTaskService parks the next armed read after it has loaded from the
// database, so a test can interleave a mutation before the read fills the
// cache.
type gatedTaskService struct {
	services.TaskService
	armed   atomic.Bool
	loaded  chan struct{}
	release chan struct{}
}

func newGatedTaskService(inner services.TaskService) *gatedTaskService {
	return &gatedTaskService{
		TaskService: inner,
		loaded:      make(chan struct{}),
		release:     make(chan struct{}),
	}
}

func (g *gatedTaskService) hold() {
	g.armed.Store(true)
}

func (g *gatedTaskService) park() {
	if g.armed.CompareAndSwap(true, false) {
		close(g.loaded)
		<-g.release
	}
}

func (g *gatedTaskService) ListTasks(ctx context.Context, userID string) ([]models.Task, error) {
	tasks, err := g.TaskService.ListTasks(ctx, userID)
	g.park()
	return tasks, err
}

func (g *gatedTaskService) GetTask(ctx context.Context, userID string, id uint) (models.Task, error) {
	task, err := g.TaskService.GetTask(ctx, userID, id)
	g.park()
	return task, err
}

func newRedisBackedCache(t *testing.T) (*cache.MultiLevelCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	redisCache := cache.NewRedisCache(&cache.CacheConfig{Addr: mr.Addr(), MaxRetries: -1, KeyPrefix: "test:"})
	multi := cache.NewMultiLevelCache(redisCache, nil)
	t.Cleanup(func() { _ = multi.Close() })
	return multi, mr
}

func newCachedService(t *testing.T) (*services.CachedTaskService, *countingTaskService, *miniredis.Miniredis) {
	t.Helper()

	multi, mr := newRedisBackedCache(t)
	inner := &countingTaskService{TaskService: services.NewTaskService(openTestDB(t))}
	return services.NewCachedTaskService(inner, multi, 30*time.Minute, 5*time.Minute), inner, mr
}

// cacheBackends runs fn against the Redis-backed cache used in production and
// the process-local fallback.
func cacheBackends(t *testing.T, fn func(t *testing.T, c cache.Cache)) {
	t.Run("redis", func(t *testing.T) {
		multi, _ := newRedisBackedCache(t)
		fn(t, multi)
	})
	t.Run("local", func(t *testing.T) {
		fn(t, cache.NewMultiLevelCache(nil, nil))
	})
}

func TestCachedTaskService_GetIsReadThrough(t *testing.T) {
	svc, inner, mr := newCachedService(t)
	ctx := context.Background()

	created, err := svc.CreateTask(ctx, "alice", "cached", "")
	require.NoError(t, err)
	assert.False(t, mr.Exists("test:task:1"), "mutations invalidate, they do not populate")

	for i := 0; i < 3; i++ {
		got, err := svc.GetTask(ctx, "alice", created.ID)
		require.NoError(t, err)
		assert.Equal(t, "cached", got.Title)
	}

	assert.True(t, mr.Exists("test:task:1"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&inner.gets), "only the first read should reach the database")
}

func TestCachedTaskService_CachedReadEnforcesOwnership(t *testing.T) {
	svc, inner, _ := newCachedService(t)
	ctx := context.Background()

	created, err := svc.CreateTask(ctx, "alice", "private", "")
	require.NoError(t, err)
	_, err = svc.GetTask(ctx, "alice", created.ID)
	require.NoError(t, err)

	_, err = svc.GetTask(ctx, "bob", created.ID)
	assert.ErrorIs(t, err, services.ErrForbidden)
	assert.Equal(t, int32(1), atomic.LoadInt32(&inner.gets))
}

func TestCachedTaskService_SlowReadDoesNotResurrectDeletedTask(t *testing.T) {
	cacheBackends(t, func(t *testing.T, c cache.Cache) {
		ctx := context.Background()
		gate := newGatedTaskService(services.NewTaskService(openTestDB(t)))
		svc := services.NewCachedTaskService(gate, c, 30*time.Minute, 5*time.Minute)

		created, err := svc.CreateTask(ctx, "alice", "doomed", "")
		require.NoError(t, err)

		gate.hold()
		done := make(chan error, 1)
		go func() {
			_, err := svc.GetTask(ctx, "alice", created.ID)
			done <- err
		}()

		<-gate.loaded
		require.NoError(t, svc.DeleteTask(ctx, "alice", created.ID))
		close(gate.release)
		require.NoError(t, <-done)

		_, err = svc.GetTask(ctx, "alice", created.ID)
		assert.ErrorIs(t, err, services.ErrTaskNotFound)
	})
}

func TestCachedTaskService_SlowReadDoesNotOverwriteUpdate(t *testing.T) {
	cacheBackends(t, func(t *testing.T, c cache.Cache) {
		ctx := context.Background()
		gate := newGatedTaskService(services.NewTaskService(openTestDB(t)))
		svc := services.NewCachedTaskService(gate, c, 30*time.Minute, 5*time.Minute)

		created, err := svc.CreateTask(ctx, "alice", "before", "")
		require.NoError(t, err)

		gate.hold()
		done := make(chan error, 1)
		go func() {
			_, err := svc.GetTask(ctx, "alice", created.ID)
			done <- err
		}()

		<-gate.loaded
		title := "after"
		_, err = svc.UpdateTask(ctx, "alice", created.ID, services.TaskPatch{Title: &title})
		require.NoError(t, err)
		close(gate.release)
		require.NoError(t, <-done)

		got, err := svc.GetTask(ctx, "alice", created.ID)
		require.NoError(t, err)
		assert.Equal(t, "after", got.Title)
	})
}

func TestCachedTaskService_SlowListDoesNotHideCreatedTask(t *testing.T) {
	cacheBackends(t, func(t *testing.T, c cache.Cache) {
		ctx := context.Background()
		gate := newGatedTaskService(services.NewTaskService(openTestDB(t)))
		svc := services.NewCachedTaskService(gate, c, 30*time.Minute, 5*time.Minute)

		gate.hold()
		done := make(chan error, 1)
		go func() {
			_, err := svc.ListTasks(ctx, "alice")
			done <- err
		}()

		<-gate.loaded
		_, err := svc.CreateTask(ctx, "alice", "new", "")
		require.NoError(t, err)
		close(gate.release)
		require.NoError(t, <-done)

		tasks, err := svc.ListTasks(ctx, "alice")
		require.NoError(t, err)
		assert.Len(t, tasks, 1)
	})
}

func TestCachedTaskService_ListIsInvalidatedByMutations(t *testing.T) {
	svc, inner, _ := newCachedService(t)
	ctx := context.Background()

	first, err := svc.CreateTask(ctx, "alice", "one", "")
	require.NoError(t, err)

	tasks, err := svc.ListTasks(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	_, err = svc.ListTasks(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&inner.lists))

	_, err = svc.CreateTask(ctx, "alice", "two", "")
	require.NoError(t, err)
	tasks, err = svc.ListTasks(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, tasks, 2)

	toggled, err := svc.ToggleComplete(ctx, "alice", first.ID)
	require.NoError(t, err)
	tasks, err = svc.ListTasks(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, toggled.Completed, tasks[0].Completed)

	title := "renamed"
	_, err = svc.UpdateTask(ctx, "alice", first.ID, services.TaskPatch{Title: &title})
	require.NoError(t, err)
	got, err := svc.GetTask(ctx, "alice", first.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Title)

	require.NoError(t, svc.DeleteTask(ctx, "alice", first.ID))
	tasks, err = svc.ListTasks(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, tasks, 1)

	_, err = svc.GetTask(ctx, "alice", first.ID)
	assert.ErrorIs(t, err, services.ErrTaskNotFound)
}

func TestCachedTaskService_ListsAreKeyedPerOwner(t *testing.T) {
	svc, _, _ := newCachedService(t)
	ctx := context.Background()

	_, err := svc.CreateTask(ctx, "alice", "a", "")
	require.NoError(t, err)

	_, err = svc.ListTasks(ctx, "alice")
	require.NoError(t, err)

	bobTasks, err := svc.ListTasks(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, bobTasks)
}

func TestCachedTaskService_FallsBackWhenRedisIsDown(t *testing.T) {
	svc, _, mr := newCachedService(t)
	ctx := context.Background()

	mr.Close()

	created, err := svc.CreateTask(ctx, "alice", "still works", "")
	require.NoError(t, err)

	got, err := svc.GetTask(ctx, "alice", created.ID)
	require.NoError(t, err)
	assert.Equal(t, "still works", got.Title)
}

func TestCachedTaskService_WarmTasks(t *testing.T) {
	svc, inner, mr := newCachedService(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	assert.False(t, svc.WarmTasks("alice"), "warming is disabled without a warmer")

	warmCache := cache.NewMultiLevelCache(
		cache.NewRedisCache(&cache.CacheConfig{Addr: mr.Addr(), MaxRetries: -1, KeyPrefix: "test:"}), nil)
	defer warmCache.Close()
	warmer := cache.NewCacheWarmer(warmCache, nil)
	svc.WithWarmer(warmer)
	warmer.Start(ctx)
	defer warmer.Stop()

	_, err := svc.CreateTask(ctx, "alice", "warm me", "")
	require.NoError(t, err)

	require.True(t, svc.WarmTasks("alice"))
	assert.Eventually(t, func() bool {
		return mr.Exists("test:user_tasks:alice")
	}, time.Second, 10*time.Millisecond)

	assert.Contains(t, svc.GetCacheStats(), "warmer")
	assert.Equal(t, int32(1), atomic.LoadInt32(&inner.lists))
}

func TestCachedTaskService_WarmerLosesToConcurrentCreate(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	multi, _ := newRedisBackedCache(t)
	gate := newGatedTaskService(services.NewTaskService(openTestDB(t)))
	warmer := cache.NewCacheWarmer(multi, nil)
	svc := services.NewCachedTaskService(gate, multi, 30*time.Minute, 5*time.Minute).WithWarmer(warmer)
	warmer.Start(ctx)
	defer warmer.Stop()

	gate.hold()
	require.True(t, svc.WarmTasks("alice"))

	<-gate.loaded
	_, err := svc.CreateTask(ctx, "alice", "created while warming", "")
	require.NoError(t, err)
	close(gate.release)

	assert.Eventually(t, func() bool {
		return warmer.GetStats()["skipped"] == int64(1)
	}, time.Second, 10*time.Millisecond)

	tasks, err := svc.ListTasks(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "created while warming", tasks[0].Title)
}
