package commandqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/harun/beacon/internal/observability"
	"github.com/harun/beacon/internal/tracing"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ErrClosed is returned when submitting to a closed queue
var ErrClosed = errors.New("commandqueue: queue is closed")

// Task represents an asynchronous operation to be executed
type Task func(ctx context.Context) (interface{}, error)

// taskRecord tracks a task's execution state
type taskRecord struct {
	id         string
	task       Task
	ctx        context.Context
	enqueuedAt time.Time
	result     chan taskResult
}

type taskResult struct {
	value interface{}
	err   error
}

// laneState manages execution state for a single lane
type laneState struct {
	concurrency int
	queue       []*taskRecord
	running     int
	mu          sync.Mutex
}

// CommandQueue provides lane-based task serialization with concurrency control
type CommandQueue struct {
	lanes     map[string]*laneState
	taskIDSeq int
	closed    bool
	mu        sync.RWMutex
	pending   sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
}

// New creates a CommandQueue. Lanes are created on first use with
// concurrency 1 unless configured with SetConcurrency.
func New() *CommandQueue {
	observability.EnsureRegistered()

	ctx, cancel := context.WithCancel(context.Background())

	return &CommandQueue{
		lanes:  make(map[string]*laneState),
		ctx:    ctx,
		cancel: cancel,
	}
}

// laneFor returns the lane, creating it if needed
func (cq *CommandQueue) laneFor(lane string) *laneState {
	cq.mu.RLock()
	ls, exists := cq.lanes[lane]
	cq.mu.RUnlock()
	if exists {
		return ls
	}

	cq.mu.Lock()
	defer cq.mu.Unlock()

	if ls, exists = cq.lanes[lane]; !exists {
		ls = &laneState{concurrency: 1}
		cq.lanes[lane] = ls
		log.Debug().Str("lane", lane).Msg("Lane initialized")
	}
	return ls
}

// SetConcurrency updates the concurrency limit for a lane
func (cq *CommandQueue) SetConcurrency(lane string, concurrency int) {
	if concurrency < 1 {
		concurrency = 1
	}

	ls := cq.laneFor(lane)
	ls.mu.Lock()
	oldMax := ls.concurrency
	ls.concurrency = concurrency
	ls.mu.Unlock()

	if concurrency > oldMax {
		go cq.processLane(lane)
	}
}

// Enqueue adds a task to the lane and waits for its result
func (cq *CommandQueue) Enqueue(ctx context.Context, lane string, task Task) (interface{}, error) {
	record, err := cq.submit(ctx, lane, task)
	if err != nil {
		return nil, err
	}

	result := <-record.result
	return result.value, result.err
}

// Submit adds a task to the lane without waiting for it. Tasks submitted to
// the same lane start in submission order.
func (cq *CommandQueue) Submit(ctx context.Context, lane string, task Task) error {
	_, err := cq.submit(ctx, lane, task)
	return err
}

func (cq *CommandQueue) submit(ctx context.Context, lane string, task Task) (*taskRecord, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	cq.mu.Lock()
	if cq.closed {
		cq.mu.Unlock()
		return nil, ErrClosed
	}
	cq.taskIDSeq++
	taskID := fmt.Sprintf("%s-%d", lane, cq.taskIDSeq)
	cq.pending.Add(1)
	cq.mu.Unlock()

	record := &taskRecord{
		id:         taskID,
		task:       task,
		ctx:        ctx,
		enqueuedAt: time.Now(),
		result:     make(chan taskResult, 1),
	}

	ls := cq.laneFor(lane)
	ls.mu.Lock()
	ls.queue = append(ls.queue, record)
	queueSize := len(ls.queue)
	ls.mu.Unlock()

	logger := tracing.LoggerFromContext(ctx, log.Logger)
	logger.Debug().
		Str("lane", lane).
		Str("taskId", taskID).
		Int("queueSize", queueSize).
		Msg("Task enqueued")

	observability.RecordLaneEnqueue(lane, queueSize)

	go cq.processLane(lane)

	return record, nil
}

// processLane starts queued tasks while the lane has capacity
func (cq *CommandQueue) processLane(lane string) {
	ls := cq.laneFor(lane)
	ls.mu.Lock()
	defer ls.mu.Unlock()

	for ls.running < ls.concurrency && len(ls.queue) > 0 {
		record := ls.queue[0]
		ls.queue = ls.queue[1:]
		ls.running++

		go cq.executeTask(lane, ls, record)
	}
}

// executeTask executes a single task
func (cq *CommandQueue) executeTask(lane string, ls *laneState, record *taskRecord) {
	defer cq.pending.Done()

	taskCtx, span := tracing.StartSpan(
		record.ctx,
		"beacon.commandqueue",
		"commandqueue.execute_task",
		attribute.String("lane", lane),
		attribute.String("task_id", record.id),
	)
	defer span.End()

	logger := tracing.LoggerFromContext(taskCtx, log.Logger)

	runCtx, cancel := context.WithCancel(taskCtx)
	stopCancel := context.AfterFunc(cq.ctx, cancel)
	defer func() {
		stopCancel()
		cancel()
	}()

	startTime := time.Now()
	value, err := record.task(runCtx)
	duration := time.Since(startTime)

	ls.mu.Lock()
	ls.running--
	queueSize := len(ls.queue)
	ls.mu.Unlock()

	record.result <- taskResult{value: value, err: err}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error().
			Str("lane", lane).
			Str("taskId", record.id).
			Dur("duration", duration).
			Err(err).
			Msg("Task failed")
	} else {
		logger.Debug().
			Str("lane", lane).
			Str("taskId", record.id).
			Dur("duration", duration).
			Msg("Task completed")
	}

	observability.RecordLaneCompletion(lane, duration, err == nil, queueSize)

	cq.processLane(lane)
}

// GetQueueSize returns the number of queued and running tasks for a lane
func (cq *CommandQueue) GetQueueSize(lane string) int {
	cq.mu.RLock()
	ls, exists := cq.lanes[lane]
	cq.mu.RUnlock()

	if !exists {
		return 0
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()
	return len(ls.queue) + ls.running
}

// GetStats returns statistics for all lanes
func (cq *CommandQueue) GetStats() map[string]map[string]int {
	cq.mu.RLock()
	defer cq.mu.RUnlock()

	stats := make(map[string]map[string]int)
	for lane, ls := range cq.lanes {
		ls.mu.Lock()
		stats[lane] = map[string]int{
			"queued":      len(ls.queue),
			"running":     ls.running,
			"concurrency": ls.concurrency,
		}
		ls.mu.Unlock()
	}

	return stats
}

// WaitIdle blocks until no lane has queued or running tasks, or ctx is done.
// It reports whether the queue became idle.
func (cq *CommandQueue) WaitIdle(ctx context.Context) bool {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if cq.idle() {
			return true
		}

		select {
		case <-ctx.Done():
			log.Warn().Err(ctx.Err()).Msg("Gave up waiting for queued tasks")
			return false
		case <-ticker.C:
		}
	}
}

func (cq *CommandQueue) idle() bool {
	cq.mu.RLock()
	defer cq.mu.RUnlock()

	for _, ls := range cq.lanes {
		ls.mu.Lock()
		busy := len(ls.queue) > 0 || ls.running > 0
		ls.mu.Unlock()
		if busy {
			return false
		}
	}
	return true
}

// Close stops accepting tasks, lets already submitted tasks finish, then
// cancels the queue context.
func (cq *CommandQueue) Close() error {
	cq.mu.Lock()
	if cq.closed {
		cq.mu.Unlock()
		return nil
	}
	cq.closed = true
	cq.mu.Unlock()

	cq.pending.Wait()
	cq.cancel()
	return nil
}
