package persist

import (
	"context"
	"log"

	"bustrack-backend/internal/model"
)

// Appender writes one location record durably.
type Appender interface {
	AppendLocation(ctx context.Context, rec model.BusLocation) error
}

// WorkerPool executes durable location writes asynchronously so the
// broadcast hot path never waits on the store of record.
type WorkerPool struct {
	size  int
	jobs  chan model.BusLocation
	store Appender
}

// NewWorkerPool creates a pool of the given size.
func NewWorkerPool(size int, store Appender) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	return &WorkerPool{
		size:  size,
		jobs:  make(chan model.BusLocation, size*8),
		store: store,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("persist worker %d started", id)
	for {
		select {
		case rec := <-wp.jobs:
			if err := wp.store.AppendLocation(ctx, rec); err != nil {
				// No retry queue: the cache still holds the freshest fix and
				// the next throttled sample restores the trail.
				log.Printf("persist worker %d: durable write failed for bus %s: %v", id, rec.BusID, err)
			}
		case <-ctx.Done():
			log.Printf("persist worker %d shutting down", id)
			return
		}
	}
}

// Dispatch queues a record without blocking. When the queue is saturated the
// record is dropped and logged; location history is sampled anyway.
func (wp *WorkerPool) Dispatch(rec model.BusLocation) {
	select {
	case wp.jobs <- rec:
	default:
		log.Printf("persist queue full, dropping sample for bus %s", rec.BusID)
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan model.BusLocation {
	return wp.jobs
}
