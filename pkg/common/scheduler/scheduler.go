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
	"time"

	"code.cloudfoundry.org/clock"
	log "github.com/sirupsen/logrus"
	"github.com/tillrohrmann/flink/pkg/common/lifecycle"
	"github.com/uber-go/tally"
	"go.uber.org/atomic"
)

// Cancellable is a handle on a scheduled callback.
type Cancellable interface {
	// Cancel prevents the callback from running. Returns false if it
	// already ran or was cancelled before.
	Cancel() bool
}

// Scheduler runs callbacks after a delay. Callbacks run on the
// scheduler's own goroutine and must not block; actors hand the work
// over to their mailbox.
type Scheduler interface {
	Schedule(delay time.Duration, fn func()) Cancellable
}

// task is one scheduled callback.
type task struct {
	// index and deadline are guarded by the deadline queue lock.
	index    int
	deadline time.Time

	fn    func()
	state atomic.Int32
}

const (
	taskPending int32 = iota
	taskFired
	taskCancelled
)

func (t *task) Index() int                     { return t.index }
func (t *task) SetIndex(i int)                 { t.index = i }
func (t *task) Deadline() time.Time            { return t.deadline }
func (t *task) SetDeadline(deadline time.Time) { t.deadline = deadline }

type cancelHandle struct {
	t *task
	s *DeadlineScheduler
}

func (h cancelHandle) Cancel() bool {
	if !h.t.state.CAS(taskPending, taskCancelled) {
		return false
	}
	h.s.queue.remove(h.t)
	h.s.metrics.cancelled.Inc(1)
	return true
}

// DeadlineScheduler is a Scheduler backed by a deadline queue and a
// single dispatch goroutine.
type DeadlineScheduler struct {
	clock   clock.Clock
	queue   *deadlineQueue
	loop    lifecycle.Loop
	metrics *schedulerMetrics
}

// NewDeadlineScheduler creates a scheduler reading time from clk.
func NewDeadlineScheduler(clk clock.Clock, parent tally.Scope) *DeadlineScheduler {
	scope := parent.SubScope("scheduler")
	return &DeadlineScheduler{
		clock:   clk,
		queue:   newDeadlineQueue(clk, newQueueMetrics(scope)),
		metrics: newSchedulerMetrics(scope),
	}
}

// Schedule registers fn to run once delay has elapsed.
func (s *DeadlineScheduler) Schedule(delay time.Duration, fn func()) Cancellable {
	t := &task{index: -1, fn: fn}
	s.queue.enqueue(t, s.clock.Now().Add(delay))
	s.metrics.scheduled.Inc(1)
	return cancelHandle{t: t, s: s}
}

// Start launches the dispatch goroutine.
func (s *DeadlineScheduler) Start() {
	if s.loop.Start(s.run) {
		log.Info("Deadline scheduler started")
	}
}

// Stop halts dispatching. Pending callbacks stay queued.
func (s *DeadlineScheduler) Stop() {
	if s.loop.Stop() {
		log.Info("Deadline scheduler stopped")
	}
}

func (s *DeadlineScheduler) run(stopCh <-chan struct{}) {
	for {
		item := s.queue.dequeue(stopCh)
		if item == nil {
			return
		}
		t := item.(*task)
		if !t.state.CAS(taskPending, taskFired) {
			continue
		}
		s.metrics.fired.Inc(1)
		t.fn()
	}
}
