// Concurrency primitives for running many transactions' page requests
// against one BufferPool: bounded worker pools with per-request timeouts
// and context cancellation. ConcurrencyManager is the executor-facing
// front end that queues Shared (read) and Exclusive (write) GetPage
// requests onto bounded reader/writer pools instead of calling the pool
// directly from every goroutine.

package storage

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// ConcurrencyConfig configures the concurrency system.
type ConcurrencyConfig struct {
	// Worker pool sizes
	ReadWorkers  int
	WriteWorkers int

	// Channel buffer sizes
	ReadQueueSize  int
	WriteQueueSize int

	// Timeouts
	WorkerTimeout time.Duration
	QueueTimeout  time.Duration
}

// DefaultConcurrencyConfig returns sensible defaults based on CPU count.
func DefaultConcurrencyConfig() ConcurrencyConfig {
	cpus := runtime.NumCPU()
	return ConcurrencyConfig{
		ReadWorkers:    cpus * 2,   // More readers than CPUs
		WriteWorkers:   cpus,       // One writer per CPU
		ReadQueueSize:  cpus * 100, // Large buffer for reads
		WriteQueueSize: cpus * 50,  // Moderate buffer for writes
		WorkerTimeout:  5 * time.Second,
		QueueTimeout:   1 * time.Second,
	}
}

// WorkRequest represents a unit of work to be processed.
type WorkRequest struct {
	ID      uint64
	Context context.Context
	Type    WorkType
	Data    interface{}
	Result  chan WorkResult
}

// WorkType defines the type of operation.
type WorkType uint8

const (
	WorkTypeRead WorkType = iota
	WorkTypeWrite
)

// WorkResult contains the result of a work request.
type WorkResult struct {
	ID    uint64
	Data  interface{}
	Error error
}

// ConcurrencyManager orchestrates concurrent operations.
type ConcurrencyManager struct {
	config ConcurrencyConfig

	// Worker pools
	readPool  *WorkerPool
	writePool *WorkerPool

	// Request queues (buffered channels)
	readQueue  chan WorkRequest
	writeQueue chan WorkRequest

	// Lifecycle management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Stats
	stats ConcurrencyStats

	pool *BufferPool
}

// PageRequest is the payload a ConcurrencyManager work item carries: the
// page a transaction wants. The queue it is submitted on determines the
// lock mode: SubmitRead acquires Shared, SubmitWrite acquires Exclusive.
type PageRequest struct {
	TID TransactionID
	Pid PageID
}

// ConcurrencyStats tracks concurrency metrics.
type ConcurrencyStats struct {
	TotalRequests   atomic.Uint64
	CompletedReads  atomic.Uint64
	CompletedWrites atomic.Uint64
	FailedRequests  atomic.Uint64
	QueuedReads     atomic.Int64
	QueuedWrites    atomic.Int64
}

// WorkerPool manages a pool of worker goroutines.
type WorkerPool struct {
	name      string
	size      int
	workQueue chan WorkRequest
	handler   WorkHandler
	timeout   time.Duration
	ctx       context.Context
	wg        *sync.WaitGroup
}

// WorkHandler processes work requests.
type WorkHandler func(ctx context.Context, req WorkRequest) WorkResult

// NewConcurrencyManager creates a new concurrency manager.
func NewConcurrencyManager(config ConcurrencyConfig, pool *BufferPool) *ConcurrencyManager {
	ctx, cancel := context.WithCancel(context.Background())

	cm := &ConcurrencyManager{
		config:     config,
		readQueue:  make(chan WorkRequest, config.ReadQueueSize),
		writeQueue: make(chan WorkRequest, config.WriteQueueSize),
		ctx:        ctx,
		cancel:     cancel,
		pool:       pool,
	}

	// Create worker pools
	cm.readPool = NewWorkerPool("reader", config.ReadWorkers, cm.readQueue, cm.handleRead, config.WorkerTimeout, ctx, &cm.wg)
	cm.writePool = NewWorkerPool("writer", config.WriteWorkers, cm.writeQueue, cm.handleWrite, config.WorkerTimeout, ctx, &cm.wg)

	// Start worker pools
	cm.readPool.Start()
	cm.writePool.Start()

	return cm
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(name string, size int, workQueue chan WorkRequest, handler WorkHandler, timeout time.Duration, ctx context.Context, wg *sync.WaitGroup) *WorkerPool {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WorkerPool{
		name:      name,
		size:      size,
		workQueue: workQueue,
		handler:   handler,
		timeout:   timeout,
		ctx:       ctx,
		wg:        wg,
	}
}

// Start launches all worker goroutines.
func (wp *WorkerPool) Start() {
	for i := 0; i < wp.size; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// worker is the main worker loop.
func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for {
		select {
		case <-wp.ctx.Done():
			return

		case req := <-wp.workQueue:
			result := wp.processWithTimeout(req)

			select {
			case req.Result <- result:
			case <-req.Context.Done():
			case <-wp.ctx.Done():
			}
		}
	}
}

// processWithTimeout processes a request with timeout.
func (wp *WorkerPool) processWithTimeout(req WorkRequest) WorkResult {
	// Create timeout context
	ctx, cancel := context.WithTimeout(req.Context, wp.timeout)
	defer cancel()

	// Process in goroutine
	resultChan := make(chan WorkResult, 1)

	go func() {
		resultChan <- wp.handler(ctx, req)
	}()

	// Wait for result or timeout
	select {
	case result := <-resultChan:
		return result
	case <-ctx.Done():
		return WorkResult{
			ID:    req.ID,
			Error: fmt.Errorf("worker timeout: %w", ctx.Err()),
		}
	}
}

// SubmitRead submits a read request (non-blocking).
func (cm *ConcurrencyManager) SubmitRead(ctx context.Context, data interface{}) <-chan WorkResult {
	return cm.submitRequest(ctx, WorkTypeRead, data, cm.readQueue, &cm.stats.QueuedReads)
}

// SubmitWrite submits a write request (non-blocking).
func (cm *ConcurrencyManager) SubmitWrite(ctx context.Context, data interface{}) <-chan WorkResult {
	return cm.submitRequest(ctx, WorkTypeWrite, data, cm.writeQueue, &cm.stats.QueuedWrites)
}

// submitRequest submits a work request to a queue.
func (cm *ConcurrencyManager) submitRequest(ctx context.Context, workType WorkType, data interface{}, queue chan WorkRequest, queueCounter *atomic.Int64) <-chan WorkResult {
	reqID := cm.stats.TotalRequests.Add(1)
	resultChan := make(chan WorkResult, 1)

	req := WorkRequest{
		ID:      reqID,
		Context: ctx,
		Type:    workType,
		Data:    data,
		Result:  resultChan,
	}

	queueCounter.Add(1)

	// Try to submit with timeout
	go func() {
		defer queueCounter.Add(-1)

		select {
		case queue <- req:
			// Submitted successfully
		case <-ctx.Done():
			// Context cancelled
			resultChan <- WorkResult{ID: reqID, Error: ctx.Err()}
		case <-time.After(cm.config.QueueTimeout):
			// Queue full timeout
			resultChan <- WorkResult{ID: reqID, Error: errors.New("queue full timeout")}
			cm.stats.FailedRequests.Add(1)
		}
	}()

	return resultChan
}

// handleRead runs a Shared GetPage against the pool.
func (cm *ConcurrencyManager) handleRead(ctx context.Context, req WorkRequest) WorkResult {
	defer cm.stats.CompletedReads.Add(1)

	select {
	case <-ctx.Done():
		return WorkResult{ID: req.ID, Error: ctx.Err()}
	default:
	}

	pr, ok := req.Data.(PageRequest)
	if !ok {
		return WorkResult{ID: req.ID, Error: fmt.Errorf("handleRead: unexpected payload %T", req.Data)}
	}
	page, err := cm.pool.GetPage(pr.TID, pr.Pid, ReadOnly)
	return WorkResult{ID: req.ID, Data: page, Error: err}
}

// handleWrite runs an Exclusive GetPage against the pool — the first step
// of any mutation, before the caller applies InsertTuple/DeleteTuple.
func (cm *ConcurrencyManager) handleWrite(ctx context.Context, req WorkRequest) WorkResult {
	defer cm.stats.CompletedWrites.Add(1)

	select {
	case <-ctx.Done():
		return WorkResult{ID: req.ID, Error: ctx.Err()}
	default:
	}

	pr, ok := req.Data.(PageRequest)
	if !ok {
		return WorkResult{ID: req.ID, Error: fmt.Errorf("handleWrite: unexpected payload %T", req.Data)}
	}
	page, err := cm.pool.GetPage(pr.TID, pr.Pid, ReadWrite)
	return WorkResult{ID: req.ID, Data: page, Error: err}
}

// Stats returns current concurrency statistics.
func (cm *ConcurrencyManager) Stats() *ConcurrencyStats {
	return &cm.stats
}

// Shutdown gracefully shuts down the concurrency manager.
func (cm *ConcurrencyManager) Shutdown(timeout time.Duration) error {
	// Cancel context
	cm.cancel()

	// Wait for workers with timeout
	done := make(chan struct{})
	go func() {
		cm.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return errors.New("shutdown timeout")
	}
}
