package core

import (
	"container/heap"
	"context"
	"math"
)

// Behavior is anything the scheduler can drive
type Behavior interface {
	// NextDue returns the next time Perform should run. +Inf retires the
	// behavior.
	NextDue(now float64) float64
	// Perform runs to completion at now
	Perform(now float64)
}

type scheduled struct {
	due      float64
	seq      uint64
	behavior Behavior
	index    int
}

type eventQueue []*scheduled

func (q eventQueue) Len() int { return len(q) }
func (q eventQueue) Less(i, j int) bool {
	if q[i].due != q[j].due {
		return q[i].due < q[j].due
	}
	return q[i].seq < q[j].seq
}
func (q eventQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}
func (q *eventQueue) Push(x any) {
	s := x.(*scheduled)
	s.index = len(*q)
	*q = append(*q, s)
}
func (q *eventQueue) Pop() any {
	old := *q
	n := len(old)
	s := old[n-1]
	old[n-1] = nil
	s.index = -1
	*q = old[:n-1]
	return s
}

// Scheduler is a single-timeline discrete-event scheduler. Behaviors run one
// at a time in due order; ties run in the order they were queued.
type Scheduler struct {
	now     float64
	seq     uint64
	queue   eventQueue
	entries map[Behavior]*scheduled
	events  uint64
}

// NewScheduler creates a scheduler at time start
func NewScheduler(start float64) *Scheduler {
	return &Scheduler{
		now:     start,
		entries: make(map[Behavior]*scheduled),
	}
}

// Now is the current simulation time
func (s *Scheduler) Now() float64 { return s.now }

// Events is the number of Perform calls so far
func (s *Scheduler) Events() uint64 { return s.events }

// Pending is the number of queued behaviors
func (s *Scheduler) Pending() int { return len(s.queue) }

// Add queues b at its NextDue from the current time
func (s *Scheduler) Add(b Behavior) {
	s.AddAt(b, b.NextDue(s.now))
}

// AddAt queues b at an explicit due time
func (s *Scheduler) AddAt(b Behavior, due float64) {
	if math.IsInf(due, 1) || math.IsNaN(due) {
		return
	}
	if due < s.now {
		due = s.now
	}
	if e, ok := s.entries[b]; ok {
		e.due = due
		heap.Fix(&s.queue, e.index)
		return
	}
	s.seq++
	e := &scheduled{due: due, seq: s.seq, behavior: b}
	heap.Push(&s.queue, e)
	s.entries[b] = e
}

// Remove drops b from the queue
func (s *Scheduler) Remove(b Behavior) {
	if e, ok := s.entries[b]; ok {
		heap.Remove(&s.queue, e.index)
		delete(s.entries, b)
	}
}

// Step performs the next due behavior if it is due no later than until.
// It returns false when nothing ran.
func (s *Scheduler) Step(until float64) bool {
	if len(s.queue) == 0 || s.queue[0].due > until {
		return false
	}
	e := heap.Pop(&s.queue).(*scheduled)
	delete(s.entries, e.behavior)
	s.now = e.due
	e.behavior.Perform(s.now)
	s.events++

	if _, requeued := s.entries[e.behavior]; !requeued {
		s.AddAt(e.behavior, e.behavior.NextDue(s.now))
	}
	return true
}

// Run advances the timeline until until, the queue empties, done returns
// true, or ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, until float64, done func() bool) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if done != nil && done() {
			return nil
		}
		if !s.Step(until) {
			if until > s.now && !math.IsInf(until, 1) {
				s.now = until
			}
			return nil
		}
	}
}
