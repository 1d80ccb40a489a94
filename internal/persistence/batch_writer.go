package persistence

import (
	"context"
	"database/sql"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"strategy-core/pkg/db"
)

// BatchWriter queues writes and commits them in transactions from a
// background goroutine, so callers never wait on the database.
type BatchWriter struct {
	db         *sql.DB
	maxBatch   int
	maxPending int
	interval   time.Duration

	mu     sync.Mutex
	buffer []db.Statement

	kick chan struct{}
	done chan struct{}
	wg   sync.WaitGroup

	writes  atomic.Uint64
	batches atomic.Uint64
	errors  atomic.Uint64
	dropped atomic.Uint64

	lastMu    sync.Mutex
	lastSize  int
	lastFlush time.Time
}

// BatchWriterStats is a snapshot of writer counters.
type BatchWriterStats struct {
	TotalWrites   uint64    `json:"total_writes"`
	TotalBatches  uint64    `json:"total_batches"`
	TotalErrors   uint64    `json:"total_errors"`
	Dropped       uint64    `json:"dropped"`
	Pending       int       `json:"pending"`
	LastBatchSize int       `json:"last_batch_size"`
	LastFlushTime time.Time `json:"last_flush_time"`
}

// NewBatchWriter starts a writer. maxBatch statements trigger an early
// flush; interval is the periodic flush. At most 20x maxBatch statements are
// held while the database is failing; older ones are dropped beyond that.
func NewBatchWriter(sqlDB *sql.DB, maxBatch int, interval time.Duration) *BatchWriter {
	if maxBatch <= 0 {
		maxBatch = 50
	}
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}

	bw := &BatchWriter{
		db:         sqlDB,
		maxBatch:   maxBatch,
		maxPending: maxBatch * 20,
		interval:   interval,
		buffer:     make([]db.Statement, 0, maxBatch),
		kick:       make(chan struct{}, 1),
		done:       make(chan struct{}),
	}

	bw.wg.Add(1)
	go bw.loop()
	return bw
}

// Enqueue adds a statement without blocking on I/O.
func (bw *BatchWriter) Enqueue(st db.Statement) {
	bw.mu.Lock()
	bw.buffer = append(bw.buffer, st)
	if over := len(bw.buffer) - bw.maxPending; over > 0 {
		bw.buffer = append(bw.buffer[:0:0], bw.buffer[over:]...)
		bw.dropped.Add(uint64(over))
		log.Printf("persistence: write queue full, dropped %d statements", over)
	}
	full := len(bw.buffer) >= bw.maxBatch
	bw.mu.Unlock()

	if full {
		select {
		case bw.kick <- struct{}{}:
		default:
		}
	}
}

// Flush commits everything queued so far. A failed batch is put back at the
// head of the queue.
func (bw *BatchWriter) Flush() error {
	bw.mu.Lock()
	if len(bw.buffer) == 0 {
		bw.mu.Unlock()
		return nil
	}
	ops := bw.buffer
	bw.buffer = make([]db.Statement, 0, bw.maxBatch)
	bw.mu.Unlock()

	if err := bw.execute(ops); err != nil {
		bw.mu.Lock()
		bw.buffer = append(ops, bw.buffer...)
		bw.mu.Unlock()
		return err
	}
	return nil
}

func (bw *BatchWriter) execute(ops []db.Statement) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tx, err := bw.db.BeginTx(ctx, nil)
	if err != nil {
		bw.errors.Add(1)
		log.Printf("persistence: begin transaction failed: %v", err)
		return err
	}
	for _, op := range ops {
		if _, err := tx.ExecContext(ctx, op.Query, op.Args...); err != nil {
			tx.Rollback()
			bw.errors.Add(1)
			log.Printf("persistence: statement failed, rolling back %d writes: %v", len(ops), err)
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		bw.errors.Add(1)
		log.Printf("persistence: commit failed: %v", err)
		return err
	}

	bw.writes.Add(uint64(len(ops)))
	bw.batches.Add(1)
	bw.lastMu.Lock()
	bw.lastSize = len(ops)
	bw.lastFlush = time.Now()
	bw.lastMu.Unlock()
	return nil
}

func (bw *BatchWriter) loop() {
	defer bw.wg.Done()
	ticker := time.NewTicker(bw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
		case <-bw.kick:
		case <-bw.done:
			if err := bw.Flush(); err != nil {
				log.Printf("persistence: final flush error: %v", err)
			}
			return
		}
		// Errors are logged in execute; the batch is retried next tick.
		_ = bw.Flush()
	}
}

// Pending returns the number of queued statements.
func (bw *BatchWriter) Pending() int {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	return len(bw.buffer)
}

// Stats returns the writer counters.
func (bw *BatchWriter) Stats() BatchWriterStats {
	bw.lastMu.Lock()
	size, at := bw.lastSize, bw.lastFlush
	bw.lastMu.Unlock()
	return BatchWriterStats{
		TotalWrites:   bw.writes.Load(),
		TotalBatches:  bw.batches.Load(),
		TotalErrors:   bw.errors.Load(),
		Dropped:       bw.dropped.Load(),
		Pending:       bw.Pending(),
		LastBatchSize: size,
		LastFlushTime: at,
	}
}

// Close stops the background loop after a final flush.
func (bw *BatchWriter) Close() error {
	close(bw.done)
	bw.wg.Wait()
	return nil
}
