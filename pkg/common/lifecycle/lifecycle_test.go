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
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/goleak"
)

type LoopTestSuite struct {
	suite.Suite
	loop *Loop
}

func TestLoop(t *testing.T) {
	suite.Run(t, new(LoopTestSuite))
}

func (s *LoopTestSuite) SetupTest() {
	s.loop = &Loop{}
}

func (s *LoopTestSuite) TearDownTest() {
	s.loop.Stop()
	goleak.VerifyNone(s.T())
}

func (s *LoopTestSuite) TestStopWaitsForGoroutine() {
	started := make(chan struct{})
	returned := false

	s.True(s.loop.Start(func(stopCh <-chan struct{}) {
		close(started)
		<-stopCh
		returned = true
	}))
	<-started
	s.True(s.loop.Running())

	s.True(s.loop.Stop())
	s.True(returned)
	s.False(s.loop.Running())
}

func (s *LoopTestSuite) TestStartIsIdempotent() {
	block := func(stopCh <-chan struct{}) { <-stopCh }
	s.True(s.loop.Start(block))
	s.False(s.loop.Start(block))
}

func (s *LoopTestSuite) TestStopIsIdempotent() {
	s.False(s.loop.Stop())
	s.loop.Start(func(stopCh <-chan struct{}) { <-stopCh })
	s.True(s.loop.Stop())
	s.False(s.loop.Stop())
}

func (s *LoopTestSuite) TestRestart() {
	runs := 0
	for i := 0; i < 3; i++ {
		s.True(s.loop.Start(func(stopCh <-chan struct{}) {
			runs++
			<-stopCh
		}))
		s.True(s.loop.Stop())
	}
	s.Equal(3, runs)
}
