package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"task-tracker/internal/cache"
	"task-tracker/internal/logger"
	"task-tracker/internal/models"
)

// CachedTaskService is a read-through cache in front of a TaskService.
// Cached entries are still passed through the ownership gate before they are
// returned. Mutations only invalidate; the next read refills the cache with a
// conditional write that loses to any invalidation made during its load.
type CachedTaskService struct {
	taskService TaskService
	cache       cache.Cache
	warmer      *cache.CacheWarmer
	taskTTL     time.Duration
	listTTL     time.Duration
}

func NewCachedTaskService(taskService TaskService, cacheInstance cache.Cache, taskTTL, listTTL time.Duration) *CachedTaskService {
	return &CachedTaskService{
		taskService: taskService,
		cache:       cacheInstance,
		taskTTL:     taskTTL,
		listTTL:     listTTL,
	}
}

// WithWarmer enables WarmTasks.
func (s *CachedTaskService) WithWarmer(warmer *cache.CacheWarmer) *CachedTaskService {
	s.warmer = warmer
	return s
}

func taskKey(id uint) string {
	return fmt.Sprintf("task:%d", id)
}

func userTasksKey(userID string) string {
	return fmt.Sprintf("user_tasks:%s", userID)
}

func (s *CachedTaskService) ListTasks(ctx context.Context, userID string) ([]models.Task, error) {
	if err := requireIdentity(userID); err != nil {
		return nil, err
	}

	key := userTasksKey(userID)

	var cached []models.Task
	err := s.cache.Get(ctx, key, &cached)
	if err == nil && ownsAll(cached, userID) {
		return cached, nil
	}
	s.logCacheError("read", key, err)

	version, verr := s.cache.Version(ctx, key)
	tasks, err := s.taskService.ListTasks(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.fill(ctx, key, tasks, s.listTTL, version, verr)
	return tasks, nil
}

func (s *CachedTaskService) GetTask(ctx context.Context, userID string, id uint) (models.Task, error) {
	if err := requireIdentity(userID); err != nil {
		return models.Task{}, err
	}

	key := taskKey(id)

	var cached models.Task
	err := s.cache.Get(ctx, key, &cached)
	if err == nil {
		if err := authorize(cached, userID); err != nil {
			return models.Task{}, err
		}
		return cached, nil
	}
	s.logCacheError("read", key, err)

	version, verr := s.cache.Version(ctx, key)
	task, err := s.taskService.GetTask(ctx, userID, id)
	if err != nil {
		return models.Task{}, err
	}

	s.fill(ctx, key, task, s.taskTTL, version, verr)
	return task, nil
}

func (s *CachedTaskService) CreateTask(ctx context.Context, userID, title, description string) (models.Task, error) {
	task, err := s.taskService.CreateTask(ctx, userID, title, description)
	if err != nil {
		return models.Task{}, err
	}

	s.invalidate(ctx, taskKey(task.ID), userTasksKey(userID))
	return task, nil
}

func (s *CachedTaskService) UpdateTask(ctx context.Context, userID string, id uint, patch TaskPatch) (models.Task, error) {
	task, err := s.taskService.UpdateTask(ctx, userID, id, patch)
	if err != nil {
		return models.Task{}, err
	}

	s.invalidate(ctx, taskKey(task.ID), userTasksKey(userID))
	return task, nil
}

func (s *CachedTaskService) ToggleComplete(ctx context.Context, userID string, id uint) (models.Task, error) {
	task, err := s.taskService.ToggleComplete(ctx, userID, id)
	if err != nil {
		return models.Task{}, err
	}

	s.invalidate(ctx, taskKey(task.ID), userTasksKey(userID))
	return task, nil
}

func (s *CachedTaskService) DeleteTask(ctx context.Context, userID string, id uint) error {
	if err := s.taskService.DeleteTask(ctx, userID, id); err != nil {
		return err
	}

	s.invalidate(ctx, taskKey(id), userTasksKey(userID))
	return nil
}

// WarmTasks queues a background load of the user's task list. It reports
// whether a job was queued.
func (s *CachedTaskService) WarmTasks(userID string) bool {
	if s.warmer == nil || userID == "" {
		return false
	}

	return s.warmer.AddWarmupJob(cache.WarmupJob{
		Key:      userTasksKey(userID),
		TTL:      s.listTTL,
		Priority: 1,
		Load: func(ctx context.Context) (interface{}, error) {
			return s.taskService.ListTasks(ctx, userID)
		},
	})
}

func (s *CachedTaskService) GetCacheStats() map[string]interface{} {
	stats := s.cache.Stats()
	if s.warmer != nil {
		stats["warmer"] = s.warmer.GetStats()
	}
	return stats
}

// fill stores a freshly loaded value unless the key was invalidated after
// version was read. verr is the error from reading version; a fill without a
// known version is skipped.
func (s *CachedTaskService) fill(ctx context.Context, key string, value interface{}, ttl time.Duration, version int64, verr error) {
	if verr != nil {
		s.logCacheError("version", key, verr)
		return
	}
	stored, err := s.cache.SetIfVersion(ctx, key, value, ttl, version)
	if err != nil {
		s.logCacheError("write", key, err)
		return
	}
	if !stored {
		logger.Debug("dropped stale cache fill", "key", key)
	}
}

func (s *CachedTaskService) invalidate(ctx context.Context, keys ...string) {
	if err := s.cache.Delete(ctx, keys...); err != nil {
		logger.Warn("cache invalidation failed", "keys", keys, "error", err)
	}
}

func (s *CachedTaskService) logCacheError(op, key string, err error) {
	if err == nil || errors.Is(err, cache.ErrCacheMiss) {
		return
	}
	logger.Debug("cache "+op+" failed", "key", key, "error", err)
}

func ownsAll(tasks []models.Task, userID string) bool {
	for i := range tasks {
		if !tasks[i].OwnedBy(userID) {
			return false
		}
	}
	return true
}
