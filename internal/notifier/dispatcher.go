// Package notifier implements the outbound notification pipeline: a
// priority queue drained by a fixed pool of delivery workers, with
// pluggable delivery channels registered by name.
package notifier

import (
	"container/heap"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bookstack-dev/library-reservations/internal/entity"
)

const (
	// DefaultPriority is used when callers do not care about ordering.
	// Lower values are delivered first.
	DefaultPriority = 5

	defaultWorkers  = 2
	pollInterval    = 1 * time.Second
	shutdownTimeout = 10 * time.Second
)

// Channel delivers a message to a user over one medium (email, sms, ...).
type Channel interface {
	Deliver(user entity.User, message string) error
}

// Notification is a queued outbound message. It exists only inside the
// dispatcher until it is delivered or dropped.
type Notification struct {
	Recipient entity.User
	Message   string
	Channel   string
	Priority  int
	sequence  uint64
}

// Dispatcher orders notifications by (priority asc, submission order asc)
// and delivers them through registered channels. Delivery failures are
// logged and terminal: a failed notification is never requeued.
type Dispatcher struct {
	mu        sync.Mutex
	queue     notificationHeap
	seq       uint64
	accepting bool

	chmu     sync.RWMutex
	channels map[string]Channel

	workers int
	wake    chan struct{}
	stop    chan struct{}
	wg      sync.WaitGroup
}

// NewDispatcher starts workers delivery goroutines immediately.
func NewDispatcher(workers int) *Dispatcher {
	if workers <= 0 {
		workers = defaultWorkers
	}

	d := &Dispatcher{
		accepting: true,
		channels:  make(map[string]Channel),
		workers:   workers,
		wake:      make(chan struct{}, 1),
		stop:      make(chan struct{}),
	}
	heap.Init(&d.queue)

	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.worker(i)
	}

	return d
}

// RegisterChannel associates a channel name with a delivery collaborator.
// Registering an existing name overwrites the previous channel.
func (d *Dispatcher) RegisterChannel(name string, ch Channel) {
	d.chmu.Lock()
	defer d.chmu.Unlock()
	d.channels[name] = ch
}

// Enqueue inserts a notification into the queue. It reports false when the
// dispatcher has been shut down; the notification is dropped in that case.
func (d *Dispatcher) Enqueue(recipient entity.User, message, channel string, priority int) bool {
	d.mu.Lock()
	if !d.accepting {
		d.mu.Unlock()
		logrus.Warnf("notification for user %s dropped: dispatcher stopped", recipient.ID)
		return false
	}

	d.seq++
	heap.Push(&d.queue, Notification{
		Recipient: recipient,
		Message:   message,
		Channel:   channel,
		Priority:  priority,
		sequence:  d.seq,
	})
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
	return true
}

// PendingCount returns the current queue depth.
func (d *Dispatcher) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.queue.Len()
}

// Shutdown stops accepting new notifications, lets workers drain the queue
// and waits up to a bounded timeout before giving up on them.
func (d *Dispatcher) Shutdown() {
	d.mu.Lock()
	if !d.accepting {
		d.mu.Unlock()
		return
	}
	d.accepting = false
	d.mu.Unlock()

	close(d.stop)

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logrus.Info("notification dispatcher stopped")
	case <-time.After(shutdownTimeout):
		logrus.Warn("notification dispatcher shutdown timed out, abandoning workers")
	}
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()

	for {
		if n, ok := d.pop(); ok {
			d.deliver(n)
			continue
		}

		select {
		case <-d.stop:
			// Drain whatever is still queued before exiting.
			for {
				n, ok := d.pop()
				if !ok {
					logrus.Debugf("notification worker %d finished", id)
					return
				}
				d.deliver(n)
			}
		case <-d.wake:
		case <-time.After(pollInterval):
		}
	}
}

func (d *Dispatcher) pop() (Notification, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.queue.Len() == 0 {
		return Notification{}, false
	}
	return heap.Pop(&d.queue).(Notification), true
}

// deliver sends one notification through its channel. Any failure is
// logged and final; a failing channel never crashes the worker.
func (d *Dispatcher) deliver(n Notification) {
	d.chmu.RLock()
	ch, ok := d.channels[n.Channel]
	d.chmu.RUnlock()

	if !ok {
		logrus.Errorf("no channel registered for %q, notification for user %s dropped", n.Channel, n.Recipient.ID)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("channel %q panicked delivering to user %s: %v", n.Channel, n.Recipient.ID, r)
		}
	}()

	if err := ch.Deliver(n.Recipient, n.Message); err != nil {
		logrus.Errorf("failed to deliver %q notification to user %s: %v", n.Channel, n.Recipient.ID, err)
		return
	}

	logrus.Debugf("delivered %q notification to user %s (priority %d)", n.Channel, n.Recipient.ID, n.Priority)
}

// notificationHeap orders by priority ascending, then submission sequence
// ascending so equal priorities keep FIFO order.
type notificationHeap []Notification

func (h notificationHeap) Len() int { return len(h) }

func (h notificationHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority < h[j].Priority
	}
	return h[i].sequence < h[j].sequence
}

func (h notificationHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *notificationHeap) Push(x interface{}) {
	*h = append(*h, x.(Notification))
}

func (h *notificationHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
