// Package processor serializes reservation mutations submitted from many
// callers through a queue drained by a fixed pool of workers.
package processor

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bookstack-dev/library-reservations/internal/entity"
)

const (
	defaultWorkers   = 2
	defaultQueueSize = 1024
	shutdownTimeout  = 10 * time.Second
)

// Coordinator executes the business side of a request. Implemented by the
// reservation service.
type Coordinator interface {
	CreateReservation(ctx context.Context, resourceID, userID string) (*entity.Placement, error)
	CancelReservation(ctx context.Context, reservationID string) error
	CompleteReservation(ctx context.Context, reservationID string) error
	ExtendReservation(ctx context.Context, reservationID string, days int) error
}

// Processor owns the request queue and its worker pool. Requests are
// handed to workers in submission order; a business failure is recovered
// at the worker boundary and never stalls the queue.
type Processor struct {
	coordinator Coordinator
	queue       chan Request
	stop        chan struct{}
	wg          sync.WaitGroup

	mu      sync.RWMutex
	running bool
}

func NewProcessor(coordinator Coordinator, workers, queueSize int) *Processor {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	p := &Processor{
		coordinator: coordinator,
		queue:       make(chan Request, queueSize),
		stop:        make(chan struct{}),
		running:     true,
	}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker(i)
	}

	return p
}

// Submit appends the request to the queue. It reports false when the
// processor has been shut down: the request is rejected, not queued.
func (p *Processor) Submit(req Request) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.running {
		return false
	}

	select {
	case p.queue <- req:
		return true
	case <-p.stop:
		return false
	}
}

// QueueDepth returns the number of requests waiting for a worker.
func (p *Processor) QueueDepth() int {
	return len(p.queue)
}

// Running reports whether the processor still accepts submissions.
func (p *Processor) Running() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

// Shutdown stops accepting submissions, lets workers drain queued requests
// and waits up to a bounded timeout for them to finish.
func (p *Processor) Shutdown() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.mu.Unlock()

	close(p.stop)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logrus.Info("request processor stopped")
	case <-time.After(shutdownTimeout):
		logrus.Warn("request processor shutdown timed out, abandoning workers")
	}
}

func (p *Processor) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case req := <-p.queue:
			p.process(req)
		case <-p.stop:
			// Drain what is already queued, then exit.
			for {
				select {
				case req := <-p.queue:
					p.process(req)
				default:
					logrus.Debugf("request worker %d finished", id)
					return
				}
			}
		}
	}
}

// process executes one request. Panics and business errors are contained
// here so a single bad request cannot kill the worker.
func (p *Processor) process(req Request) {
	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("panic processing %s request: %v", req.Kind, r)
		}
	}()

	ctx := context.Background()

	var res Result
	switch req.Kind {
	case KindCreate:
		res.Placement, res.Err = p.coordinator.CreateReservation(ctx, req.ResourceID, req.UserID)
	case KindCancel:
		res.Err = p.coordinator.CancelReservation(ctx, req.ReservationID)
	case KindComplete:
		res.Err = p.coordinator.CompleteReservation(ctx, req.ReservationID)
	case KindExtend:
		res.Err = p.coordinator.ExtendReservation(ctx, req.ReservationID, req.ExtensionDays)
	default:
		logrus.Errorf("unrecognized request kind: %s", req.Kind)
		return
	}

	if res.Err != nil {
		logrus.Warnf("%s request failed: %v", req.Kind, res.Err)
	}

	if req.Result != nil {
		select {
		case req.Result <- res:
		default:
			// Caller went away or reused an unbuffered channel; never block.
		}
	}
}
