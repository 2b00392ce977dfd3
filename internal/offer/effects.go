package offer

import "sync"

// effectQueue runs alerts and listener events on one goroutine in the order
// they were queued. Controller queues while holding its mutex, so effects
// follow the order of state changes even when callers race.
type effectQueue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   []func()
	running bool
	closed  bool
}

func newEffectQueue() *effectQueue {
	q := &effectQueue{}
	q.cond = sync.NewCond(&q.mu)
	go q.run()
	return q
}

func (q *effectQueue) push(fs []func()) {
	if len(fs) == 0 {
		return
	}
	q.mu.Lock()
	if !q.closed {
		q.items = append(q.items, fs...)
	}
	q.mu.Unlock()
	q.cond.Broadcast()
}

func (q *effectQueue) run() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		for len(q.items) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.items) == 0 {
			return
		}
		batch := q.items
		q.items = nil
		q.running = true
		q.mu.Unlock()
		for _, f := range batch {
			f()
		}
		q.mu.Lock()
		q.running = false
		q.cond.Broadcast()
	}
}

// wait blocks until everything queued so far has run.
func (q *effectQueue) wait() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) > 0 || q.running {
		q.cond.Wait()
	}
}

// close drains what is queued and stops the worker. Later pushes are dropped.
func (q *effectQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
	q.wait()
}
