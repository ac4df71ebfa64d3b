package delivery

import (
	"sync"
	"time"
)

// Queue is an in-memory delivery queue. Jobs become visible to workers once
// their NextAttemptAt has passed, which is how retry backoff is enforced.
type Queue struct {
	mu   sync.Mutex
	jobs []*Job
}

// NewQueue creates an empty delivery queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Enqueue adds a job to the queue.
func (q *Queue) Enqueue(job *Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
}

// fetchDue removes and returns up to limit jobs whose NextAttemptAt has
// passed, in enqueue order.
func (q *Queue) fetchDue(now time.Time, limit int) []*Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	var due []*Job
	var rest []*Job
	for _, job := range q.jobs {
		if len(due) < limit && !job.NextAttemptAt.After(now) {
			due = append(due, job)
		} else {
			rest = append(rest, job)
		}
	}
	q.jobs = rest
	return due
}

// requeue puts a job back for a later attempt.
func (q *Queue) requeue(job *Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
}

// Len returns the number of queued jobs.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}
