package session

import (
	"log"
	"sync"
)

// DefaultObserverQueueSize is the number of pending notifications held per
// observer before new ones are dropped.
const DefaultObserverQueueSize = 1024

// dispatcher delivers notifications to one observer on its own goroutine,
// in the order they were posted.
type dispatcher struct {
	observer Observer
	queue    chan func(Observer)
	done     chan struct{}

	mu     sync.Mutex
	closed bool
}

func newDispatcher(o Observer, size int) *dispatcher {
	d := &dispatcher{
		observer: o,
		queue:    make(chan func(Observer), size),
		done:     make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *dispatcher) run() {
	defer close(d.done)
	for fn := range d.queue {
		d.call(fn)
	}
}

func (d *dispatcher) call(fn func(Observer)) {
	defer func() {
		if p := recover(); p != nil {
			log.Printf("Recovered from panic in session observer %T: %v", d.observer, p)
		}
	}()
	fn(d.observer)
}

// post never blocks. It reports false when the queue is full and the
// notification was dropped.
func (d *dispatcher) post(fn func(Observer)) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return true
	}
	select {
	case d.queue <- fn:
		return true
	default:
		return false
	}
}

// flush waits until every notification posted before it has been delivered.
func (d *dispatcher) flush() {
	reached := make(chan struct{})

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.done
		return
	}
	d.queue <- func(Observer) { close(reached) }
	d.mu.Unlock()

	<-reached
}

// close delivers what is queued, then stops the goroutine.
func (d *dispatcher) close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	<-d.done
}
