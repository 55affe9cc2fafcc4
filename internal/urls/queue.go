package urls

import "sync"

// inflight counts queued and running tasks. Unlike a WaitGroup, add may
// race with wait.
type inflight struct {
	mu   sync.Mutex
	n    int
	idle chan struct{} // closed while n == 0
}

func newInflight() *inflight {
	idle := make(chan struct{})
	close(idle)
	return &inflight{idle: idle}
}

func (f *inflight) add() {
	f.mu.Lock()
	if f.n == 0 {
		f.idle = make(chan struct{})
	}
	f.n++
	f.mu.Unlock()
}

func (f *inflight) done() {
	f.mu.Lock()
	f.n--
	if f.n == 0 {
		close(f.idle)
	}
	f.mu.Unlock()
}

// wait returns a channel closed the next time no task is pending.
func (f *inflight) wait() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.idle
}

// serialQueue runs tasks one at a time in push order on a goroutine that
// exists only while work is pending.
type serialQueue struct {
	mu      sync.Mutex
	pending []func()
	running bool
	tasks   *inflight
}

func newSerialQueue(tasks *inflight) *serialQueue {
	return &serialQueue{tasks: tasks}
}

func (q *serialQueue) push(task func()) {
	q.tasks.add()

	q.mu.Lock()
	q.pending = append(q.pending, task)
	if q.running {
		q.mu.Unlock()
		return
	}
	q.running = true
	q.mu.Unlock()

	go q.drain()
}

func (q *serialQueue) drain() {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.running = false
			q.mu.Unlock()
			return
		}
		task := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		q.mu.Unlock()

		task()
		q.tasks.done()
	}
}
