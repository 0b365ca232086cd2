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
	"sort"
	"sync"
	"time"
)

// ManualScheduler is a Scheduler driven explicitly by Advance. Callbacks
// run on the goroutine calling Advance.
type ManualScheduler struct {
	sync.Mutex
	now   time.Duration
	seq   int
	tasks []*manualTask
}

type manualTask struct {
	at        time.Duration
	seq       int
	fn        func()
	cancelled bool
	fired     bool
}

type manualHandle struct {
	s *ManualScheduler
	t *manualTask
}

func (h manualHandle) Cancel() bool {
	h.s.Lock()
	defer h.s.Unlock()
	if h.t.cancelled || h.t.fired {
		return false
	}
	h.t.cancelled = true
	return true
}

// NewManualScheduler returns a scheduler at virtual time zero.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

// Schedule registers fn at now+delay.
func (s *ManualScheduler) Schedule(delay time.Duration, fn func()) Cancellable {
	s.Lock()
	defer s.Unlock()
	s.seq++
	t := &manualTask{at: s.now + delay, seq: s.seq, fn: fn}
	s.tasks = append(s.tasks, t)
	return manualHandle{s: s, t: t}
}

// Pending returns the number of callbacks neither fired nor cancelled.
func (s *ManualScheduler) Pending() int {
	s.Lock()
	defer s.Unlock()
	n := 0
	for _, t := range s.tasks {
		if !t.fired && !t.cancelled {
			n++
		}
	}
	return n
}

// Advance moves virtual time forward by d and runs every callback that
// became due, in deadline order. Callbacks scheduled by callbacks run in
// the same call if they fall due within d.
func (s *ManualScheduler) Advance(d time.Duration) {
	s.Lock()
	target := s.now + d
	s.Unlock()

	for {
		s.Lock()
		next := s.nextDue(target)
		if next == nil {
			s.now = target
			s.Unlock()
			return
		}
		s.now = next.at
		next.fired = true
		s.Unlock()

		next.fn()
	}
}

func (s *ManualScheduler) nextDue(target time.Duration) *manualTask {
	live := s.tasks[:0]
	for _, t := range s.tasks {
		if !t.fired && !t.cancelled {
			live = append(live, t)
		}
	}
	s.tasks = live
	sort.Slice(live, func(i, j int) bool {
		if live[i].at == live[j].at {
			return live[i].seq < live[j].seq
		}
		return live[i].at < live[j].at
	})
	if len(live) == 0 || live[0].at > target {
		return nil
	}
	return live[0]
}
