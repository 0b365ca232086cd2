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

package async

import (
	"container/list"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/tillrohrmann/flink/pkg/common/lifecycle"
	"github.com/uber-go/tally"
	"go.uber.org/atomic"
)

// Mailbox is an unbounded FIFO of functions drained by a single goroutine.
// Every function submitted to a Mailbox runs strictly after the previous
// one returned, so state touched only from inside the mailbox needs no
// locking.
type Mailbox struct {
	sync.Mutex
	name string
	list *list.List

	// enqueueSignal is added to after a successful enqueue. By having a
	// buffer size of 1, it's guaranteed that the function is processed.
	enqueueSignal chan struct{}

	loop      lifecycle.Loop
	processed atomic.Int64

	length    tally.Gauge
	processes tally.Counter
}

// NewMailbox creates a mailbox. It does not process anything until Start
// is called.
func NewMailbox(name string, scope tally.Scope) *Mailbox {
	s := scope.Tagged(map[string]string{"mailbox": name})
	return &Mailbox{
		name:          name,
		list:          list.New(),
		enqueueSignal: make(chan struct{}, 1),
		length:        s.Gauge("mailbox_length"),
		processes:     s.Counter("mailbox_processed"),
	}
}

// Execute enqueues fn. This method will return immediately.
func (m *Mailbox) Execute(fn func()) {
	m.Lock()
	m.list.PushBack(fn)
	n := m.list.Len()
	m.Unlock()
	m.length.Update(float64(n))

	// Try signal a new item is available.
	select {
	case m.enqueueSignal <- struct{}{}:
	default:
	}
}

// Start launches the draining goroutine.
func (m *Mailbox) Start() {
	if !m.loop.Start(m.run) {
		return
	}
	log.WithField("mailbox", m.name).Debug("Mailbox started")
}

// Stop halts the draining goroutine after the function in flight returns.
// Functions still queued remain queued and run if the mailbox is
// started again.
func (m *Mailbox) Stop() {
	if !m.loop.Stop() {
		return
	}
	m.Lock()
	pending := m.list.Len()
	m.Unlock()
	log.WithFields(log.Fields{
		"mailbox": m.name,
		"pending": pending,
	}).Debug("Mailbox stopped")
}

// Processed returns the number of functions run so far.
func (m *Mailbox) Processed() int64 {
	return m.processed.Load()
}

func (m *Mailbox) run(stopCh <-chan struct{}) {
	for {
		select {
		case <-stopCh:
			return
		default:
		}

		m.Lock()
		f := m.list.Front()
		if f == nil {
			m.Unlock()

			// Wait for functions to be enqueued before continuing.
			select {
			case <-m.enqueueSignal:
				continue
			case <-stopCh:
				return
			}
		}
		m.list.Remove(f)
		m.Unlock()

		f.Value.(func())()
		m.processed.Inc()
		m.processes.Inc(1)
	}
}
