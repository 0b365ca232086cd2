// Copyright (c) 2019 Uber Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package scheduler

import (
	"container/heap"
	"sync"
	"time"

	"code.cloudfoundry.org/clock"
)

// deadlineQueue holds items ordered by deadline. Items with a deadline
// can be enqueued, and when the deadline expires, dequeue returns the
// item. Time is read from an injected clock.
type deadlineQueue struct {
	sync.RWMutex

	clock        clock.Clock
	pq           *priorityQueue
	queueChanged chan struct{}
	mtx          *queueMetrics
}

func newDeadlineQueue(clk clock.Clock, mtx *queueMetrics) *deadlineQueue {
	q := &deadlineQueue{
		clock:        clk,
		pq:           &priorityQueue{},
		queueChanged: make(chan struct{}, 1),
		mtx:          mtx,
	}
	heap.Init(q.pq)
	return q
}

func (q *deadlineQueue) nextDeadline() time.Time {
	if q.pq.Len() == 0 {
		return time.Time{}
	}
	return q.pq.NextDeadline()
}

// popIfReady pops the head if its deadline has passed.
func (q *deadlineQueue) popIfReady() queueItem {
	if q.pq.Len() == 0 {
		return nil
	}
	now := q.clock.Now()
	if q.pq.NextDeadline().After(now) {
		return nil
	}

	qi := heap.Pop(q.pq).(queueItem)
	q.mtx.popDelay.Record(now.Sub(qi.Deadline()))
	qi.SetDeadline(time.Time{})
	q.mtx.length.Update(float64(q.pq.Len()))
	return qi
}

func (q *deadlineQueue) update(item queueItem) {
	// Check if it's not in the queue.
	if item.Index() == -1 {
		if item.Deadline().IsZero() {
			// Should not be scheduled.
			return
		}

		heap.Push(q.pq, item)
		q.mtx.length.Update(float64(q.pq.Len()))
		return
	}

	// It's in the queue. Remove if it should not be scheduled.
	if item.Deadline().IsZero() {
		heap.Remove(q.pq, item.Index())
		q.mtx.length.Update(float64(q.pq.Len()))
		return
	}

	heap.Fix(q.pq, item.Index())
}

func (q *deadlineQueue) signal() {
	select {
	case q.queueChanged <- struct{}{}:
	default:
	}
}

// enqueue schedules qi at deadline. An already queued item is only moved
// to an earlier deadline.
func (q *deadlineQueue) enqueue(qi queueItem, deadline time.Time) {
	q.Lock()
	defer q.Unlock()

	if !qi.Deadline().IsZero() && !deadline.Before(qi.Deadline()) {
		return
	}

	qi.SetDeadline(deadline)
	q.update(qi)
	q.signal()
}

// remove takes qi out of the queue. Returns false if it was not queued.
func (q *deadlineQueue) remove(qi queueItem) bool {
	q.Lock()
	defer q.Unlock()

	if qi.Index() == -1 {
		return false
	}
	qi.SetDeadline(time.Time{})
	q.update(qi)
	q.signal()
	return true
}

// dequeue blocks until the next item's deadline expires or stopChan is
// closed, in which case it returns nil. Only one goroutine may dequeue.
func (q *deadlineQueue) dequeue(stopChan <-chan struct{}) queueItem {
	for {
		q.Lock()
		if r := q.popIfReady(); r != nil {
			q.Unlock()
			return r
		}
		deadline := q.nextDeadline()
		q.Unlock()

		var timer clock.Timer
		var timerChan <-chan time.Time
		if !deadline.IsZero() {
			timer = q.clock.NewTimer(deadline.Sub(q.clock.Now()))
			timerChan = timer.C()
		}

		select {
		case <-timerChan:
		case <-q.queueChanged:
			// Wake up to process the next item in the queue
		case <-stopChan:
			if timer != nil {
				timer.Stop()
			}
			return nil
		}

		if timer != nil {
			timer.Stop()
		}
	}
}
