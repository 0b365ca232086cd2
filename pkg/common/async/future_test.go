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
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type FutureTestSuite struct {
	suite.Suite
}

func TestFuture(t *testing.T) {
	suite.Run(t, new(FutureTestSuite))
}

func (s *FutureTestSuite) TestCompleteOnce() {
	f := NewFuture[int]()
	s.False(f.IsDone())
	_, err := f.Poll()
	s.Equal(ErrNotDone, err)

	s.True(f.Complete(1))
	s.False(f.Complete(2))
	s.False(f.Fail(errors.New("late")))

	v, err := f.Poll()
	s.NoError(err)
	s.Equal(1, v)
}

func (s *FutureTestSuite) TestFailWithNilError() {
	f := NewFuture[int]()
	s.True(f.Fail(nil))
	_, err := f.Poll()
	s.Error(err)
}

func (s *FutureTestSuite) TestOnCompleteBeforeAndAfter() {
	f := NewFuture[string]()
	var got []string
	f.OnComplete(DirectExecutor, func(v string, err error) {
		s.NoError(err)
		got = append(got, "before:"+v)
	})
	s.Empty(got)

	f.Complete("x")
	f.OnComplete(DirectExecutor, func(v string, err error) {
		got = append(got, "after:"+v)
	})
	s.Equal([]string{"before:x", "after:x"}, got)
}

func (s *FutureTestSuite) TestOnCompleteUsesExecutor() {
	var queued []func()
	exec := ExecutorFunc(func(fn func()) { queued = append(queued, fn) })

	f := Failed[int](errors.New("boom"))
	var gotErr error
	f.OnComplete(exec, func(_ int, err error) { gotErr = err })

	s.Nil(gotErr)
	s.Len(queued, 1)
	queued[0]()
	s.EqualError(gotErr, "boom")
}

func (s *FutureTestSuite) TestGetHonoursContext() {
	f := NewFuture[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	_, err := f.Get(ctx)
	s.Equal(context.DeadlineExceeded, err)

	v, err := Completed(7).Get(context.Background())
	s.NoError(err)
	s.Equal(7, v)
}
