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
	"testing"
	"time"

	"code.cloudfoundry.org/clock/fakeclock"
	"github.com/stretchr/testify/suite"
	"github.com/uber-go/tally"
	"go.uber.org/goleak"
)

type DeadlineSchedulerTestSuite struct {
	suite.Suite

	clock     *fakeclock.FakeClock
	scheduler *DeadlineScheduler
}

func TestDeadlineScheduler(t *testing.T) {
	suite.Run(t, new(DeadlineSchedulerTestSuite))
}

func (s *DeadlineSchedulerTestSuite) SetupTest() {
	s.clock = fakeclock.NewFakeClock(epoch)
	s.scheduler = NewDeadlineScheduler(s.clock, tally.NoopScope)
	s.scheduler.Start()
}

func (s *DeadlineSchedulerTestSuite) TearDownTest() {
	s.scheduler.Stop()
	goleak.VerifyNone(s.T())
}

func (s *DeadlineSchedulerTestSuite) waitFor(ch <-chan struct{}) {
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		s.FailNow("callback did not fire")
	}
}

func (s *DeadlineSchedulerTestSuite) TestFiresAfterDelay() {
	fired := make(chan struct{})
	s.scheduler.Schedule(time.Second, func() { close(fired) })

	s.clock.WaitForWatcherAndIncrement(time.Second)
	s.waitFor(fired)
}

func (s *DeadlineSchedulerTestSuite) TestCancelledCallbackNeverFires() {
	first := make(chan struct{})
	second := make(chan struct{})
	h := s.scheduler.Schedule(time.Second, func() { close(first) })
	s.scheduler.Schedule(2*time.Second, func() { close(second) })

	s.True(h.Cancel())
	s.False(h.Cancel())

	s.clock.WaitForWatcherAndIncrement(2 * time.Second)
	s.waitFor(second)

	select {
	case <-first:
		s.Fail("cancelled callback fired")
	default:
	}
}

func (s *DeadlineSchedulerTestSuite) TestCancelAfterFire() {
	fired := make(chan struct{})
	h := s.scheduler.Schedule(0, func() { close(fired) })
	s.waitFor(fired)
	s.False(h.Cancel())
}
