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

// Executor runs submitted functions. Implementations decide on which
// goroutine and in which order.
type Executor interface {
	// Execute submits fn for execution. It never blocks on fn.
	Execute(fn func())
}

// ExecutorFunc adapts a plain function to the Executor interface.
type ExecutorFunc func(fn func())

// Execute calls f(fn).
func (f ExecutorFunc) Execute(fn func()) {
	f(fn)
}

// DirectExecutor runs every function inline on the calling goroutine.
// It is meant for tests which need deterministic, synchronous actors.
var DirectExecutor Executor = ExecutorFunc(func(fn func()) { fn() })

// Call runs fn on the executor and returns a future completed with its
// result.
func Call[T any](exec Executor, fn func() (T, error)) *Future[T] {
	f := NewFuture[T]()
	exec.Execute(func() {
		v, err := fn()
		if err != nil {
			f.Fail(err)
			return
		}
		f.Complete(v)
	})
	return f
}

// Run runs fn on the executor and returns a future completed once fn
// returns.
func Run(exec Executor, fn func() error) *Future[struct{}] {
	return Call(exec, func() (struct{}, error) {
		return struct{}{}, fn()
	})
}
