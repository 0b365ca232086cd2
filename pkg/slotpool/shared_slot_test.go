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

package slotpool

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/suite"
	"github.com/tillrohrmann/flink/pkg/resource"
)

type SharedSlotTestSuite struct {
	suite.Suite

	physical *AllocatedSlot
	shared   *SharedSlot
	released int
}

func TestSharedSlot(t *testing.T) {
	suite.Run(t, new(SharedSlotTestSuite))
}

func (s *SharedSlotTestSuite) SetupTest() {
	s.released = 0
	s.physical = newTestSlot("w1", 0)
	shared, err := NewSharedSlot(resource.NewSlotRequestID(), s.physical, false, func() {
		s.released++
	})
	s.Require().NoError(err)
	s.shared = shared
}

func (s *SharedSlotTestSuite) TestAssignsItselfAsPayload() {
	s.Equal(s.shared, s.physical.Payload())

	_, err := NewSharedSlot(resource.NewSlotRequestID(), s.physical, false, nil)
	s.True(errors.Is(err, ErrPayloadAssigned))
}

func (s *SharedSlotTestSuite) TestReleaseOnLastReturn() {
	ls1, err := s.shared.AllocateLogicalSlot()
	s.Require().NoError(err)
	ls2, err := s.shared.AllocateLogicalSlot()
	s.Require().NoError(err)
	s.NotEqual(ls1.SlotRequestID(), ls2.SlotRequestID())
	s.Equal(s.physical.AllocationID(), ls1.AllocationID())
	s.Equal(resource.LocalityUnknown, ls1.Locality())

	s.NoError(ls1.ReleaseSlot(nil))
	s.Equal(0, s.released)
	s.False(s.shared.IsReleased())

	s.NoError(ls2.ReleaseSlot(nil))
	s.Equal(1, s.released)
	s.True(s.shared.IsReleased())
}

func (s *SharedSlotTestSuite) TestExplicitReleaseWithoutLeases() {
	s.shared.Release(errors.New("cancel"))
	s.Equal(1, s.released)

	s.shared.Release(errors.New("again"))
	s.Equal(1, s.released)
}

func (s *SharedSlotTestSuite) TestExplicitReleaseFailsLeases() {
	cause := errors.New("job failed")
	var leases []*LogicalSlot
	for i := 0; i < 3; i++ {
		ls, err := s.shared.AllocateLogicalSlot()
		s.Require().NoError(err)
		leases = append(leases, ls)
	}

	s.shared.Release(cause)

	s.Equal(1, s.released)
	s.Equal(0, s.shared.NumLeases())
	for _, ls := range leases {
		s.False(ls.IsAlive())
		s.Equal(cause, ls.ReleaseCause())
		// Releasing a released lease is a no-op.
		s.NoError(ls.ReleaseSlot(nil))
	}
	s.Equal(1, s.released)
}

// reentrantOwner releases a sibling lease while its own lease is being
// returned.
type reentrantOwner struct {
	shared  *SharedSlot
	sibling *LogicalSlot
}

func (o *reentrantOwner) ReturnLogicalSlot(ls *LogicalSlot) error {
	if o.sibling != nil {
		sibling := o.sibling
		o.sibling = nil
		sibling.ReleaseSlot(errors.New("sibling"))
	}
	return o.shared.ReturnLogicalSlot(ls)
}

func (s *SharedSlotTestSuite) TestReleaseWithReentrantReturns() {
	ls1, err := s.shared.AllocateLogicalSlot()
	s.Require().NoError(err)
	ls2, err := s.shared.AllocateLogicalSlot()
	s.Require().NoError(err)
	ls3, err := s.shared.AllocateLogicalSlot()
	s.Require().NoError(err)

	// Every lease drags its siblings along when released.
	ls1.owner = &reentrantOwner{shared: s.shared, sibling: ls2}
	ls2.owner = &reentrantOwner{shared: s.shared, sibling: ls3}
	ls3.owner = &reentrantOwner{shared: s.shared, sibling: ls1}

	s.NotPanics(func() { s.shared.Release(errors.New("release")) })
	s.Equal(1, s.released)
	s.False(ls1.IsAlive())
	s.False(ls2.IsAlive())
	s.False(ls3.IsAlive())
}

func (s *SharedSlotTestSuite) TestReturnUnknownLease() {
	ls, err := s.shared.AllocateLogicalSlot()
	s.Require().NoError(err)
	s.NoError(s.shared.ReturnLogicalSlot(ls))
	s.Equal(1, s.released)

	err = s.shared.ReturnLogicalSlot(ls)
	s.True(errors.Is(err, ErrUnknownLogicalSlot))
	s.Equal(1, s.released)
}

func (s *SharedSlotTestSuite) TestAllocateAfterRelease() {
	s.shared.Release(nil)
	ls, err := s.shared.AllocateLogicalSlot()
	s.Nil(ls)
	s.True(errors.Is(err, ErrSharedSlotReleased))
	s.Equal(1, s.released)
}

func (s *SharedSlotTestSuite) TestIndefiniteFlagIsInherited() {
	physical := newTestSlot("w2", 0)
	shared, err := NewSharedSlot(resource.NewSlotRequestID(), physical, true, nil)
	s.Require().NoError(err)
	ls, err := shared.AllocateLogicalSlot()
	s.Require().NoError(err)
	s.True(shared.WillOccupySlotIndefinitely())
	s.True(ls.WillOccupySlotIndefinitely())
}
