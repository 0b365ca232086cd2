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

package lifecycle

import (
	"sync"
)

// Loop owns one background goroutine and its stop protocol.
// example:
//	var loop Loop
//	loop.Start(func(stopCh <-chan struct{}) {
//		for {
//			select {
//			case <-stopCh:
//				return
//			case item := <-work:
//				handle(item)
//			}
//		}
//	})
//	loop.Stop() // blocks until the goroutine returns
//
// The zero value is ready to use. A Loop may be restarted after Stop.
type Loop struct {
	mu sync.Mutex
	// stopCh is non-nil while the loop is running.
	stopCh chan struct{}
	doneCh chan struct{}
}

// Start launches run on a new goroutine. It is idempotent and returns
// false if the loop is already running.
func (l *Loop) Start(run func(stopCh <-chan struct{})) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stopCh != nil {
		return false
	}

	stopCh := make(chan struct{})
	doneCh := make(chan struct{})
	l.stopCh = stopCh
	l.doneCh = doneCh
	go func() {
		defer close(doneCh)
		run(stopCh)
	}()
	return true
}

// Stop signals the goroutine and blocks until it has returned. It is
// idempotent and returns false if the loop was not running.
func (l *Loop) Stop() bool {
	l.mu.Lock()
	if l.stopCh == nil {
		l.mu.Unlock()
		return false
	}
	close(l.stopCh)
	doneCh := l.doneCh
	l.stopCh = nil
	l.doneCh = nil
	l.mu.Unlock()

	<-doneCh
	return true
}

// Running reports whether the loop has been started and not stopped.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stopCh != nil
}
