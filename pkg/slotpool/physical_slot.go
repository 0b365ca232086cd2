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
	"github.com/tillrohrmann/flink/pkg/resource"
)

// Payload is the single occupant of a physical slot.
type Payload interface {
	// Release is called when the physical slot is taken away from the
	// payload.
	Release(cause error)
	// WillOccupySlotIndefinitely reports whether the payload keeps the
	// slot for the lifetime of the job.
	WillOccupySlotIndefinitely() bool
}

// PhysicalSlot is the pool side handle of a worker slot granted to the
// job.
type PhysicalSlot interface {
	AllocationID() resource.AllocationID
	WorkerID() resource.WorkerID
	SlotID() resource.SlotID
	Profile() resource.ResourceProfile

	// TryAssignPayload sets the payload if none is set.
	TryAssignPayload(p Payload) bool
	// Payload returns the current payload or nil.
	Payload() Payload
}

// AllocatedSlot is the PhysicalSlot created from an accepted offer.
type AllocatedSlot struct {
	allocationID resource.AllocationID
	slotID       resource.SlotID
	profile      resource.ResourceProfile
	payload      Payload
}

// NewAllocatedSlot wraps an accepted slot offer.
func NewAllocatedSlot(offer resource.SlotOffer) *AllocatedSlot {
	return &AllocatedSlot{
		allocationID: offer.AllocationID,
		slotID:       offer.SlotID,
		profile:      offer.Profile,
	}
}

// AllocationID returns the allocation id of the slot.
func (s *AllocatedSlot) AllocationID() resource.AllocationID { return s.allocationID }

// WorkerID returns the worker owning the slot.
func (s *AllocatedSlot) WorkerID() resource.WorkerID { return s.slotID.WorkerID }

// SlotID returns the worker-local slot id.
func (s *AllocatedSlot) SlotID() resource.SlotID { return s.slotID }

// Profile returns the slot's resource profile.
func (s *AllocatedSlot) Profile() resource.ResourceProfile { return s.profile }

// TryAssignPayload implements PhysicalSlot.
func (s *AllocatedSlot) TryAssignPayload(p Payload) bool {
	if s.payload != nil {
		return false
	}
	s.payload = p
	return true
}

// Payload implements PhysicalSlot.
func (s *AllocatedSlot) Payload() Payload {
	return s.payload
}

// releasePayload detaches the payload and tells it the slot is gone.
func (s *AllocatedSlot) releasePayload(cause error) {
	p := s.payload
	s.payload = nil
	if p != nil {
		p.Release(cause)
	}
}

// clearPayload detaches the payload without notifying it.
func (s *AllocatedSlot) clearPayload() {
	s.payload = nil
}
