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
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/tillrohrmann/flink/pkg/resource"
)

type sharedSlotState int

const (
	sharedSlotAllocated sharedSlotState = iota
	sharedSlotReleased
)

func (s sharedSlotState) String() string {
	switch s {
	case sharedSlotAllocated:
		return "ALLOCATED"
	case sharedSlotReleased:
		return "RELEASED"
	}
	return "UNKNOWN"
}

// SharedSlot multiplexes logical slots onto one physical slot. Once the
// last logical slot is returned, or on Release, it moves to RELEASED
// and calls its release callback. RELEASED is terminal; the callback
// runs at most once.
//
// A SharedSlot is not safe for concurrent use. Pools only touch it from
// their mailbox.
type SharedSlot struct {
	requestID       resource.SlotRequestID
	physical        PhysicalSlot
	externalRelease func()
	indefinite      bool

	leases map[resource.SlotRequestID]*LogicalSlot
	state  sharedSlotState
}

// NewSharedSlot creates a shared slot and assigns it as the payload of
// physical. externalRelease is invoked once the shared slot is released.
func NewSharedSlot(
	requestID resource.SlotRequestID,
	physical PhysicalSlot,
	indefinite bool,
	externalRelease func()) (*SharedSlot, error) {
	s := &SharedSlot{
		requestID:       requestID,
		physical:        physical,
		externalRelease: externalRelease,
		indefinite:      indefinite,
		leases:          make(map[resource.SlotRequestID]*LogicalSlot),
		state:           sharedSlotAllocated,
	}
	if !physical.TryAssignPayload(s) {
		return nil, errors.Wrapf(ErrPayloadAssigned,
			"allocation %s", physical.AllocationID())
	}
	return s, nil
}

// SlotRequestID is the id of the request the physical slot fulfilled.
func (s *SharedSlot) SlotRequestID() resource.SlotRequestID { return s.requestID }

// PhysicalSlot returns the underlying slot.
func (s *SharedSlot) PhysicalSlot() PhysicalSlot { return s.physical }

// AllocationID of the underlying physical slot.
func (s *SharedSlot) AllocationID() resource.AllocationID { return s.physical.AllocationID() }

// WillOccupySlotIndefinitely implements Payload.
func (s *SharedSlot) WillOccupySlotIndefinitely() bool { return s.indefinite }

// IsReleased reports whether the shared slot reached RELEASED.
func (s *SharedSlot) IsReleased() bool { return s.state == sharedSlotReleased }

// NumLeases returns the number of outstanding logical slots.
func (s *SharedSlot) NumLeases() int { return len(s.leases) }

// AllocateLogicalSlot leases a new logical slot. Leasing from a released
// shared slot fails with ErrSharedSlotReleased.
func (s *SharedSlot) AllocateLogicalSlot() (*LogicalSlot, error) {
	if s.state == sharedSlotReleased {
		return nil, errors.Wrapf(ErrSharedSlotReleased,
			"allocation %s", s.physical.AllocationID())
	}

	ls := newLogicalSlot(
		resource.NewSlotRequestID(),
		s.physical,
		resource.LocalityUnknown,
		s,
		s.indefinite,
	)
	s.leases[ls.SlotRequestID()] = ls
	log.WithFields(log.Fields{
		"allocation_id":   s.physical.AllocationID(),
		"slot_request_id": ls.SlotRequestID(),
		"leases":          len(s.leases),
	}).Debug("Allocated logical slot")
	return ls, nil
}

// ReturnLogicalSlot implements SlotOwner. Returning a lease this shared
// slot does not hold is an invariant violation.
func (s *SharedSlot) ReturnLogicalSlot(ls *LogicalSlot) error {
	if _, ok := s.leases[ls.SlotRequestID()]; !ok {
		return errors.Wrapf(ErrUnknownLogicalSlot,
			"lease %s on allocation %s",
			ls.SlotRequestID(), s.physical.AllocationID())
	}
	delete(s.leases, ls.SlotRequestID())
	s.tryReleaseExternally()
	return nil
}

// Release implements Payload. It releases every outstanding lease and
// then the shared slot itself.
func (s *SharedSlot) Release(cause error) {
	log.WithError(cause).WithFields(log.Fields{
		"allocation_id": s.physical.AllocationID(),
		"leases":        len(s.leases),
	}).Debug("Releasing shared slot")

	// Releasing a lease returns it to this shared slot, so iterate a copy.
	snapshot := make([]*LogicalSlot, 0, len(s.leases))
	for _, ls := range s.leases {
		snapshot = append(snapshot, ls)
	}
	for _, ls := range snapshot {
		ls.ReleaseSlot(cause)
	}
	s.leases = make(map[resource.SlotRequestID]*LogicalSlot)
	s.tryReleaseExternally()
}

func (s *SharedSlot) tryReleaseExternally() {
	if s.state == sharedSlotReleased || len(s.leases) > 0 {
		return
	}
	s.state = sharedSlotReleased
	if s.externalRelease != nil {
		s.externalRelease()
	}
}
