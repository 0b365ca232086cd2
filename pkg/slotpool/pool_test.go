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
	"time"

	"github.com/golang/mock/gomock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/suite"
	"github.com/tillrohrmann/flink/pkg/common/async"
	"github.com/tillrohrmann/flink/pkg/common/scheduler"
	"github.com/tillrohrmann/flink/pkg/resource"
	"github.com/tillrohrmann/flink/pkg/slotpool/mocks"
	"github.com/uber-go/tally"
)

const (
	_testRequestTimeout = 10 * time.Second
	_testIdleTimeout    = 5 * time.Second
)

var _testProfile = resource.NewResourceProfile(1, 1024, 0, 0)

type PoolTestSuite struct {
	suite.Suite

	ctrl      *gomock.Controller
	gateway   *mocks.MockResourceManagerGateway
	scheduler *scheduler.ManualScheduler
	jobID     resource.JobID
	pool      *Pool

	declared []resource.ResourceRequirements
	freed    []resource.AllocationID
}

func TestPool(t *testing.T) {
	suite.Run(t, new(PoolTestSuite))
}

func (s *PoolTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.gateway = mocks.NewMockResourceManagerGateway(s.ctrl)
	s.scheduler = scheduler.NewManualScheduler()
	s.jobID = resource.NewJobID()
	s.declared = nil
	s.freed = nil

	s.gateway.EXPECT().ProcessResourceRequirements(gomock.Any()).
		DoAndReturn(func(reqs resource.ResourceRequirements) *async.Future[struct{}] {
			s.declared = append(s.declared, reqs)
			return async.Completed(struct{}{})
		}).AnyTimes()
	s.gateway.EXPECT().FreeSlot(gomock.Any(), gomock.Any()).
		DoAndReturn(func(id resource.AllocationID, _ error) *async.Future[struct{}] {
			s.freed = append(s.freed, id)
			return async.Completed(struct{}{})
		}).AnyTimes()

	s.pool = NewPool(
		s.jobID,
		Config{
			SlotRequestTimeout: _testRequestTimeout,
			IdleSlotTimeout:    _testIdleTimeout,
		},
		s.gateway,
		async.DirectExecutor,
		s.scheduler,
		tally.NoopScope,
	)
}

func (s *PoolTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *PoolTestSuite) offer(workerID resource.WorkerID, profile resource.ResourceProfile) resource.SlotOffer {
	return resource.SlotOffer{
		AllocationID: resource.NewAllocationID(),
		SlotID:       resource.SlotID{WorkerID: workerID},
		WorkerID:     workerID,
		Profile:      profile,
		JobID:        s.jobID,
	}
}

func (s *PoolTestSuite) lastDeclared() map[resource.ResourceProfile]int {
	s.Require().NotEmpty(s.declared)
	last := s.declared[len(s.declared)-1]
	s.Equal(s.jobID, last.JobID)
	return resource.Counts(last.Requirements)
}

func (s *PoolTestSuite) accept(offer resource.SlotOffer) {
	ok, err := s.pool.OfferSlot(offer).Poll()
	s.Require().NoError(err)
	s.Require().True(ok)
}

func (s *PoolTestSuite) requestAndFulfil(workerID resource.WorkerID) (*SharedSlot, resource.SlotOffer) {
	f := s.pool.RequestSlot(_testProfile, false)
	offer := s.offer(workerID, _testProfile)
	s.accept(offer)
	shared, err := f.Poll()
	s.Require().NoError(err)
	return shared, offer
}

func (s *PoolTestSuite) TestRequestSlotDeclaresRequirement() {
	f := s.pool.RequestSlot(_testProfile, false)
	s.False(f.IsDone())
	s.Equal(map[resource.ResourceProfile]int{_testProfile: 1}, s.lastDeclared())

	s.pool.RequestSlot(_testProfile, false)
	s.Equal(map[resource.ResourceProfile]int{_testProfile: 2}, s.lastDeclared())
}

func (s *PoolTestSuite) TestOfferFulfilsPendingRequest() {
	f := s.pool.RequestSlot(_testProfile, true)
	offer := s.offer("w1", resource.NewResourceProfile(2, 2048, 0, 0))
	s.accept(offer)

	shared, err := f.Poll()
	s.NoError(err)
	s.Equal(offer.AllocationID, shared.AllocationID())
	s.True(shared.WillOccupySlotIndefinitely())
	// Fulfilment moves demand from pending to held: nothing new declared.
	s.Len(s.declared, 1)
	s.Equal(0, s.scheduler.Pending())

	snapshot, err := s.pool.Snapshot().Poll()
	s.NoError(err)
	s.Equal(1, snapshot.AllocatedSlots)
	s.Equal(1, snapshot.SharedSlots)
	s.Equal(0, snapshot.PendingRequests)

	// A repeated offer of a held slot is acknowledged.
	s.accept(offer)
}

func (s *PoolTestSuite) TestRejectsUnwantedOffers() {
	ok, _ := s.pool.OfferSlot(s.offer("w1", _testProfile)).Poll()
	s.False(ok)

	s.pool.RequestSlot(resource.NewResourceProfile(4, 0, 0, 0), false)
	ok, _ = s.pool.OfferSlot(s.offer("w1", _testProfile)).Poll()
	s.False(ok, "too small")

	foreign := s.offer("w1", resource.AnyProfile)
	foreign.JobID = resource.NewJobID()
	ok, _ = s.pool.OfferSlot(foreign).Poll()
	s.False(ok, "other job")
}

func (s *PoolTestSuite) TestRequestTimesOut() {
	f := s.pool.RequestSlot(_testProfile, false)
	s.scheduler.Advance(_testRequestTimeout - time.Second)
	s.False(f.IsDone())

	s.scheduler.Advance(time.Second)
	_, err := f.Poll()
	s.True(errors.Is(err, ErrSlotRequestTimeout))
	s.Empty(s.lastDeclared())

	// The timed out request no longer takes offers.
	ok, _ := s.pool.OfferSlot(s.offer("w1", _testProfile)).Poll()
	s.False(ok)
}

func (s *PoolTestSuite) TestNotEnoughResourcesIsReported() {
	var reported []error
	s.pool.SetFailureListener(func(err error) { reported = append(reported, err) })
	f := s.pool.RequestSlot(_testProfile, false)

	shortage := errors.New("no workers")
	s.pool.NotifyNotEnoughResources(resource.NewJobID(), shortage)
	s.Empty(reported)
	s.pool.NotifyNotEnoughResources(s.jobID, shortage)
	s.Equal([]error{shortage}, reported)
	s.False(f.IsDone(), "requests wait for their own timeout")

	s.scheduler.Advance(_testRequestTimeout)
	_, err := f.Poll()
	s.True(errors.Is(err, ErrSlotRequestTimeout))
	s.Contains(err.Error(), "no workers")
}

func (s *PoolTestSuite) TestEmptySharedSlotIsFreed() {
	shared, offer := s.requestAndFulfil("w1")

	ls1, err := s.pool.AllocateLogicalSlot(shared).Poll()
	s.Require().NoError(err)
	ls2, err := s.pool.AllocateLogicalSlot(shared).Poll()
	s.Require().NoError(err)

	_, err = s.pool.ReleaseLogicalSlot(ls1, nil).Poll()
	s.NoError(err)
	s.Empty(s.freed)

	_, err = s.pool.ReleaseLogicalSlot(ls2, nil).Poll()
	s.NoError(err)
	s.Equal([]resource.AllocationID{offer.AllocationID}, s.freed)
	s.Empty(s.lastDeclared())

	_, err = s.pool.AllocateLogicalSlot(shared).Poll()
	s.True(errors.Is(err, ErrSharedSlotReleased))
}

func (s *PoolTestSuite) TestReleasedSlotIsReusedForPendingRequest() {
	shared, offer := s.requestAndFulfil("w1")
	next := s.pool.RequestSlot(_testProfile, false)
	s.Equal(map[resource.ResourceProfile]int{_testProfile: 2}, s.lastDeclared())

	_, err := s.pool.ReleaseSharedSlot(shared, nil).Poll()
	s.NoError(err)

	reused, err := next.Poll()
	s.Require().NoError(err)
	s.Equal(offer.AllocationID, reused.AllocationID())
	s.NotEqual(shared, reused)
	s.Empty(s.freed)
	s.Equal(map[resource.ResourceProfile]int{_testProfile: 1}, s.lastDeclared())
}

func (s *PoolTestSuite) TestWorkerLostFailsLeasesAndDeclaresReplacement() {
	shared, _ := s.requestAndFulfil("w1")
	ls, err := s.pool.AllocateLogicalSlot(shared).Poll()
	s.Require().NoError(err)

	s.pool.NotifyWorkerLost("w1", errors.New("heartbeat timeout"))

	s.False(ls.IsAlive())
	s.True(errors.Is(ls.ReleaseCause(), ErrWorkerLost))
	s.True(shared.IsReleased())
	s.Empty(s.freed, "a lost slot is not handed back")
	s.Equal(map[resource.ResourceProfile]int{_testProfile: 1}, s.lastDeclared())

	// The replacement is parked until requested.
	replacement := s.offer("w2", _testProfile)
	s.accept(replacement)
	snapshot, _ := s.pool.Snapshot().Poll()
	s.Equal(1, snapshot.IdleSlots)

	f := s.pool.RequestSlot(_testProfile, false)
	got, err := f.Poll()
	s.Require().NoError(err)
	s.Equal(replacement.AllocationID, got.AllocationID())
	s.Equal(map[resource.ResourceProfile]int{_testProfile: 1}, s.lastDeclared())

	s.scheduler.Advance(_testIdleTimeout)
	s.Empty(s.freed)
}

func (s *PoolTestSuite) TestRequestTakesOverOutstandingReplacement() {
	s.requestAndFulfil("w1")
	s.pool.NotifyWorkerLost("w1", nil)

	s.pool.RequestSlot(_testProfile, false)
	s.Equal(map[resource.ResourceProfile]int{_testProfile: 1}, s.lastDeclared())
}

func (s *PoolTestSuite) TestIdleReplacementIsFreedAfterTimeout() {
	s.requestAndFulfil("w1")
	s.pool.NotifyWorkerLost("w1", nil)
	replacement := s.offer("w2", _testProfile)
	s.accept(replacement)

	s.scheduler.Advance(_testIdleTimeout)
	s.Equal([]resource.AllocationID{replacement.AllocationID}, s.freed)
	s.Empty(s.lastDeclared())
}

func (s *PoolTestSuite) TestRevokedSlotIsDroppedWithoutFree() {
	shared, offer := s.requestAndFulfil("w1")
	ls, err := s.pool.AllocateLogicalSlot(shared).Poll()
	s.Require().NoError(err)

	s.pool.NotifySlotRevoked(offer.AllocationID, errors.New("offered elsewhere"))

	s.False(ls.IsAlive())
	s.True(errors.Is(ls.ReleaseCause(), ErrSlotRevoked))
	s.True(shared.IsReleased())
	s.Empty(s.freed, "the manager already took the slot back")
	snapshot, _ := s.pool.Snapshot().Poll()
	s.Equal(0, snapshot.AllocatedSlots)
	s.Equal(0, snapshot.SharedSlots)
	// The slot was in use, so the job asks for another one.
	s.Equal(map[resource.ResourceProfile]int{_testProfile: 1}, s.lastDeclared())
}

func (s *PoolTestSuite) TestRevokedReplacementIsRequestedAgain() {
	s.requestAndFulfil("w1")
	s.pool.NotifyWorkerLost("w1", nil)
	replacement := s.offer("w2", _testProfile)
	s.accept(replacement)

	s.pool.NotifySlotRevoked(replacement.AllocationID, nil)

	snapshot, _ := s.pool.Snapshot().Poll()
	s.Equal(0, snapshot.IdleSlots)
	s.Equal(0, snapshot.AllocatedSlots)
	s.Equal(map[resource.ResourceProfile]int{_testProfile: 1}, s.lastDeclared())
	s.scheduler.Advance(_testIdleTimeout)
	s.Empty(s.freed)

	// The next offer is parked as the replacement again.
	s.accept(s.offer("w3", _testProfile))
}

func (s *PoolTestSuite) TestRevokeUnknownAllocation() {
	s.requestAndFulfil("w1")
	before := len(s.declared)
	s.pool.NotifySlotRevoked(resource.NewAllocationID(), nil)
	s.Len(s.declared, before)
}

func (s *PoolTestSuite) TestWorkerLostForUnknownWorker() {
	s.requestAndFulfil("w1")
	before := len(s.declared)
	s.pool.NotifyWorkerLost("w9", nil)
	s.Len(s.declared, before)
}

func (s *PoolTestSuite) TestReleaseJob() {
	shared, offer := s.requestAndFulfil("w1")
	ls, err := s.pool.AllocateLogicalSlot(shared).Poll()
	s.Require().NoError(err)
	pending := s.pool.RequestSlot(_testProfile, false)

	_, err = s.pool.ReleaseJob(errors.New("cancelled")).Poll()
	s.NoError(err)

	_, err = pending.Poll()
	s.True(errors.Is(err, ErrPoolClosed))
	s.False(ls.IsAlive())
	s.Equal([]resource.AllocationID{offer.AllocationID}, s.freed)
	s.Empty(s.lastDeclared())
	s.Equal(0, s.scheduler.Pending())

	_, err = s.pool.RequestSlot(_testProfile, false).Poll()
	s.True(errors.Is(err, ErrPoolClosed))
	ok, _ := s.pool.OfferSlot(s.offer("w1", _testProfile)).Poll()
	s.False(ok)

	// Releasing twice is harmless.
	_, err = s.pool.ReleaseJob(nil).Poll()
	s.NoError(err)
	s.Len(s.freed, 1)
}
