package app

import (
	"context"
	"sync"
)

// journal runs one match's storage writes in submission order on a single
// goroutine, away from the player connections.
type journal struct {
	mu      sync.Mutex
	jobs    []func(context.Context)
	closed  bool
	started bool // guarded by the owning MatchService mu
	wake    chan struct{}
}

func newJournal() *journal {
	return &journal{wake: make(chan struct{}, 1)}
}

// push queues job. It fails once the journal is closed.
func (j *journal) push(job func(context.Context)) bool {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return false
	}
	j.jobs = append(j.jobs, job)
	j.mu.Unlock()
	j.signal()
	return true
}

// close stops accepting jobs; run returns after the queued ones finish.
func (j *journal) close() {
	j.mu.Lock()
	j.closed = true
	j.mu.Unlock()
	j.signal()
}

func (j *journal) signal() {
	select {
	case j.wake <- struct{}{}:
	default:
	}
}

func (j *journal) run(ctx context.Context) {
	for {
		j.mu.Lock()
		jobs, closed := j.jobs, j.closed
		j.jobs = nil
		j.mu.Unlock()

		for _, job := range jobs {
			job(ctx)
		}
		if len(jobs) > 0 {
			continue
		}
		if closed {
			return
		}
		<-j.wake
	}
}
