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
	"context"
	"sync"

	"github.com/pkg/errors"
)

// ErrNotDone is returned by Poll while the future is still pending.
var ErrNotDone = errors.New("future is not completed yet")

// Future is a write-once result container. It is completed exactly once,
// either with a value or with an error. Callbacks registered through
// OnComplete are dispatched onto their executor after completion.
type Future[T any] struct {
	mu sync.Mutex

	done      chan struct{}
	value     T
	err       error
	callbacks []func()
}

// NewFuture returns a pending future.
func NewFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Completed returns a future already completed with v.
func Completed[T any](v T) *Future[T] {
	f := NewFuture[T]()
	f.Complete(v)
	return f
}

// Failed returns a future already failed with err.
func Failed[T any](err error) *Future[T] {
	f := NewFuture[T]()
	f.Fail(err)
	return f
}

// Complete sets the value. Returns false if the future was already done.
func (f *Future[T]) Complete(v T) bool {
	return f.finish(v, nil)
}

// Fail sets the error. Returns false if the future was already done.
func (f *Future[T]) Fail(err error) bool {
	var zero T
	if err == nil {
		err = errors.New("future failed with nil error")
	}
	return f.finish(zero, err)
}

func (f *Future[T]) finish(v T, err error) bool {
	f.mu.Lock()
	select {
	case <-f.done:
		f.mu.Unlock()
		return false
	default:
	}
	f.value = v
	f.err = err
	close(f.done)
	callbacks := f.callbacks
	f.callbacks = nil
	f.mu.Unlock()

	for _, cb := range callbacks {
		cb()
	}
	return true
}

// Done is closed when the future completes.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// IsDone reports whether the future has completed.
func (f *Future[T]) IsDone() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Get blocks until the future completes or ctx is done.
func (f *Future[T]) Get(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Poll returns the result without blocking, or ErrNotDone.
func (f *Future[T]) Poll() (T, error) {
	if !f.IsDone() {
		var zero T
		return zero, ErrNotDone
	}
	return f.value, f.err
}

// OnComplete registers fn to run on exec once the future completes. If
// the future is already done fn is submitted right away.
func (f *Future[T]) OnComplete(exec Executor, fn func(T, error)) {
	cb := func() {
		exec.Execute(func() { fn(f.value, f.err) })
	}

	f.mu.Lock()
	if !f.IsDone() {
		f.callbacks = append(f.callbacks, cb)
		f.mu.Unlock()
		return
	}
	f.mu.Unlock()
	cb()
}
