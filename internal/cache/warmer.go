package cache

import (
	"context"
	"sync"
	"time"

	"task-tracker/internal/logger"
)

// WarmupJob fills one cache key. Load runs on a warmer goroutine, never on
// the request path.
type WarmupJob struct {
	Key      string
	Load     func(ctx context.Context) (interface{}, error)
	TTL      time.Duration
	Priority int
}

type WarmupStrategy struct {
	ConcurrentJobs int
	QueueLimit     int
	JobTimeout     time.Duration
}

func DefaultWarmupStrategy() *WarmupStrategy {
	return &WarmupStrategy{
		ConcurrentJobs: 2,
		QueueLimit:     1000,
		JobTimeout:     5 * time.Second,
	}
}

// CacheWarmer drains a priority queue of warmup jobs with a fixed number of
// goroutines. Jobs for a key that is already queued are dropped.
type CacheWarmer struct {
	cache    Cache
	strategy *WarmupStrategy
	queue    *PriorityQueue

	mu      sync.Mutex
	pending map[string]struct{}
	running bool
	wake    chan struct{}
	stopCh  chan struct{}
	wg      sync.WaitGroup

	warmed  int64
	failed  int64
	skipped int64
}

func NewCacheWarmer(cache Cache, strategy *WarmupStrategy) *CacheWarmer {
	if strategy == nil {
		strategy = DefaultWarmupStrategy()
	}
	if strategy.ConcurrentJobs <= 0 {
		strategy.ConcurrentJobs = 1
	}

	return &CacheWarmer{
		cache:    cache,
		strategy: strategy,
		queue:    NewPriorityQueue(),
		pending:  make(map[string]struct{}),
		wake:     make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
	}
}

// AddWarmupJob queues a job and reports whether it was accepted.
func (cw *CacheWarmer) AddWarmupJob(job WarmupJob) bool {
	if job.Key == "" || job.Load == nil {
		return false
	}

	cw.mu.Lock()
	if _, dup := cw.pending[job.Key]; dup {
		cw.mu.Unlock()
		return false
	}
	if cw.strategy.QueueLimit > 0 && cw.queue.Len() >= cw.strategy.QueueLimit {
		cw.mu.Unlock()
		logger.Warn("cache warmup queue full, dropping job", "key", job.Key)
		return false
	}
	cw.pending[job.Key] = struct{}{}
	cw.queue.Push(job)
	cw.mu.Unlock()

	select {
	case cw.wake <- struct{}{}:
	default:
	}

	return true
}

func (cw *CacheWarmer) Start(ctx context.Context) {
	cw.mu.Lock()
	if cw.running {
		cw.mu.Unlock()
		return
	}
	cw.running = true
	cw.mu.Unlock()

	logger.Info("starting cache warmer", "workers", cw.strategy.ConcurrentJobs)

	for i := 0; i < cw.strategy.ConcurrentJobs; i++ {
		cw.wg.Add(1)
		go cw.loop(ctx)
	}
}

func (cw *CacheWarmer) Stop() {
	cw.mu.Lock()
	if !cw.running {
		cw.mu.Unlock()
		return
	}
	cw.running = false
	close(cw.stopCh)
	cw.mu.Unlock()

	cw.wg.Wait()
	logger.Info("cache warmer stopped")
}

func (cw *CacheWarmer) loop(ctx context.Context) {
	defer cw.wg.Done()

	for {
		for {
			job, ok := cw.queue.Pop()
			if !ok {
				break
			}
			cw.processJob(ctx, job)

			select {
			case <-ctx.Done():
				return
			case <-cw.stopCh:
				return
			default:
			}
		}

		select {
		case <-cw.wake:
		case <-ctx.Done():
			return
		case <-cw.stopCh:
			return
		}
	}
}

func (cw *CacheWarmer) processJob(ctx context.Context, job WarmupJob) {
	defer func() {
		cw.mu.Lock()
		delete(cw.pending, job.Key)
		cw.mu.Unlock()
	}()

	if cw.strategy.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cw.strategy.JobTimeout)
		defer cancel()
	}

	// The version is read before loading so an invalidation that lands while
	// Load runs wins over the value it produced.
	version, err := cw.cache.Version(ctx, job.Key)
	stored := false
	if err == nil {
		var data interface{}
		data, err = job.Load(ctx)
		if err == nil {
			stored, err = cw.cache.SetIfVersion(ctx, job.Key, data, job.TTL, version)
		}
	}

	cw.mu.Lock()
	switch {
	case err != nil:
		cw.failed++
	case stored:
		cw.warmed++
	default:
		cw.skipped++
	}
	cw.mu.Unlock()

	if err != nil {
		logger.Debug("failed to warm cache key", "key", job.Key, "error", err)
	}
}

func (cw *CacheWarmer) GetStats() map[string]interface{} {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	return map[string]interface{}{
		"running":         cw.running,
		"queued":          cw.queue.Len(),
		"warmed":          cw.warmed,
		"failed":          cw.failed,
		"skipped":         cw.skipped,
		"concurrent_jobs": cw.strategy.ConcurrentJobs,
	}
}
