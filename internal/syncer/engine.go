// Package syncer drains the offline job queue against the remote backend
// when connectivity returns.
package syncer

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"cellarsync/internal/model"
	"cellarsync/internal/queue"
)

// Applier is the slice of the remote boundary the engine needs to apply
// queued jobs. *remote.Client satisfies it.
type Applier interface {
	IncrementQuantity(ctx context.Context, itemID string, by int) error
	UploadPhoto(ctx context.Context, kind model.Kind, localPath string) (string, error)
	SetPhotoURL(ctx context.Context, kind model.Kind, refID, photoURL string) error
}

// Network is the connectivity surface the engine consumes. *netmon.Monitor
// satisfies it.
type Network interface {
	IsAvailable(ctx context.Context) bool
	Subscribe(onOnline, onOffline func()) func()
}

// Config tunes the engine's retry and drain behavior.
type Config struct {
	// MaxRetries bounds per-job retry attempts after the initial failure.
	MaxRetries int
	// BaseDelay is the first retry delay; it doubles per attempt.
	BaseDelay time.Duration
	// DrainInterval triggers a periodic queue drain as a safety net for
	// missed online transitions. Zero disables it.
	DrainInterval time.Duration
}

// Engine applies queued offline jobs to the remote backend. A drain runs when
// the network monitor reports an online transition, on the periodic safety
// ticker, or on demand; overlapping drains collapse into one. Failed jobs are
// retried out-of-band on their own timers with exponential backoff and are
// dropped after MaxRetries.
type Engine struct {
	queue   queue.Store
	applier Applier
	network Network

	maxRetries    int
	baseDelay     time.Duration
	drainInterval time.Duration

	mu          sync.Mutex
	processing  bool
	retryTimers map[string]*time.Timer
	unsubscribe func()
	started     bool

	stopCh   chan struct{}
	stopOnce sync.Once

	// OnJobDropped, when set, fires after a job exhausts its retries.
	OnJobDropped func(job model.OfflineJob, err error)
}

// NewEngine creates a sync engine over the given queue, remote boundary and
// network monitor.
func NewEngine(store queue.Store, applier Applier, network Network, cfg Config) *Engine {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	baseDelay := cfg.BaseDelay
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	return &Engine{
		queue:         store,
		applier:       applier,
		network:       network,
		maxRetries:    maxRetries,
		baseDelay:     baseDelay,
		drainInterval: cfg.DrainInterval,
		retryTimers:   make(map[string]*time.Timer),
		stopCh:        make(chan struct{}),
	}
}

// Start subscribes to network transitions and begins the periodic drain
// ticker when configured. Calling Start twice is a no-op.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return
	}
	e.started = true
	e.mu.Unlock()

	unsub := e.network.Subscribe(func() {
		go e.drain()
	}, nil)
	e.mu.Lock()
	e.unsubscribe = unsub
	e.mu.Unlock()

	// The monitor may already be online with no transition left to fire;
	// drain once up front so startup never waits for an edge.
	go e.drain()

	if e.drainInterval > 0 {
		go e.runDrainTicker()
		log.Printf("[SyncEngine] Started - drain interval: %v, max retries: %d", e.drainInterval, e.maxRetries)
	} else {
		log.Printf("[SyncEngine] Started - max retries: %d", e.maxRetries)
	}
}

func (e *Engine) runDrainTicker() {
	ticker := time.NewTicker(e.drainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.drain()
		case <-e.stopCh:
			return
		}
	}
}

func (e *Engine) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := e.ProcessQueue(ctx); err != nil {
		log.Printf("[SyncEngine] Drain failed: %v", err)
	}
	if _, _, err := e.RetryPendingUploads(ctx); err != nil {
		log.Printf("[SyncEngine] Pending upload retry failed: %v", err)
	}
}

// Stop unsubscribes from the network monitor and cancels all retry timers.
// Queued jobs stay in the persistent queue for the next run.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		close(e.stopCh)
	})

	e.mu.Lock()
	unsub := e.unsubscribe
	e.unsubscribe = nil
	for key, t := range e.retryTimers {
		t.Stop()
		delete(e.retryTimers, key)
	}
	e.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	log.Printf("[SyncEngine] Stopped")
}

// Processing reports whether a drain is currently in flight.
func (e *Engine) Processing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.processing
}

// ProcessQueue drains the job queue in FIFO order. Re-entrant calls while a
// drain is in flight return immediately; so does a drain while offline. Jobs
// that fail are handed to the retry timers and do not block the rest of the
// queue.
func (e *Engine) ProcessQueue(ctx context.Context) error {
	e.mu.Lock()
	if e.processing {
		e.mu.Unlock()
		return nil
	}
	e.processing = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.processing = false
		e.mu.Unlock()
	}()

	if !e.network.IsAvailable(ctx) {
		return nil
	}

	size, err := e.queue.Size(ctx)
	if err != nil {
		return err
	}
	if size == 0 {
		return nil
	}
	log.Printf("[SyncEngine] Processing %d queued job(s)", size)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		job, err := e.queue.Dequeue(ctx)
		if err != nil {
			return err
		}
		if job == nil {
			return nil
		}

		if err := e.apply(ctx, *job); err != nil {
			log.Printf("[SyncEngine] Job %s failed: %v", job.Key(), err)
			e.scheduleRetry(*job, 1, err)
		}
	}
}

// apply performs one job against the remote backend.
func (e *Engine) apply(ctx context.Context, job model.OfflineJob) error {
	switch job.Type {
	case model.JobIncrement:
		return e.applier.IncrementQuantity(ctx, job.ItemID, job.By)
	case model.JobUploadPhoto:
		url, err := e.applier.UploadPhoto(ctx, job.Kind, job.LocalPath)
		if err != nil {
			return err
		}
		return e.applier.SetPhotoURL(ctx, job.Kind, job.TargetID, url)
	default:
		return fmt.Errorf("unknown job type %q", job.Type)
	}
}

// scheduleRetry arms a timer for the next attempt. Delays double per attempt
// starting from the base delay. Retried jobs live on their timers, not in the
// queue, so a fresh drain never double-applies them.
func (e *Engine) scheduleRetry(job model.OfflineJob, attempt int, lastErr error) {
	if attempt > e.maxRetries {
		log.Printf("[SyncEngine] Dropping job %s after %d attempts: %v", job.Key(), e.maxRetries, lastErr)
		e.mu.Lock()
		dropped := e.OnJobDropped
		e.mu.Unlock()
		if dropped != nil {
			dropped(job, lastErr)
		}
		return
	}

	delay := e.baseDelay << (attempt - 1)
	key := job.Key()

	e.mu.Lock()
	if _, exists := e.retryTimers[key]; exists {
		e.mu.Unlock()
		return
	}
	e.retryTimers[key] = time.AfterFunc(delay, func() {
		e.mu.Lock()
		delete(e.retryTimers, key)
		e.mu.Unlock()
		e.retry(job, attempt)
	})
	e.mu.Unlock()

	log.Printf("[SyncEngine] Retry %d/%d for job %s in %v", attempt, e.maxRetries, key, delay)
}

func (e *Engine) retry(job model.OfflineJob, attempt int) {
	select {
	case <-e.stopCh:
		return
	default:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := e.apply(ctx, job); err != nil {
		e.scheduleRetry(job, attempt+1, err)
		return
	}
	log.Printf("[SyncEngine] Job %s succeeded on retry %d", job.Key(), attempt)
}

// RetryPendingUploads re-attempts every pending photo upload, clearing the
// ones that succeed. It returns how many succeeded and how many remain.
func (e *Engine) RetryPendingUploads(ctx context.Context) (successful, failed int, err error) {
	uploads, err := e.queue.PendingUploads(ctx)
	if err != nil {
		return 0, 0, err
	}
	if len(uploads) == 0 {
		return 0, 0, nil
	}
	log.Printf("[SyncEngine] Retrying %d pending photo upload(s)", len(uploads))

	for _, up := range uploads {
		url, uploadErr := e.applier.UploadPhoto(ctx, up.Kind, up.PhotoURI)
		if uploadErr == nil {
			uploadErr = e.applier.SetPhotoURL(ctx, up.Kind, up.ItemID, url)
		}
		if uploadErr != nil {
			log.Printf("[SyncEngine] Pending upload %s failed: %v", up.ID, uploadErr)
			failed++
			continue
		}
		if clearErr := e.queue.ClearUpload(ctx, up.ID); clearErr != nil {
			log.Printf("[SyncEngine] Failed to clear upload %s: %v", up.ID, clearErr)
		}
		successful++
	}
	return successful, failed, nil
}
