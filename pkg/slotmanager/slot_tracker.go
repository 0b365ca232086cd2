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

package slotmanager

import (
	log "github.com/sirupsen/logrus"
	"github.com/tillrohrmann/flink/pkg/resource"
)

// slotStatusListener is called on every slot state transition. jobID is
// the job the slot belonged to before a transition to FREE, and the new
// job otherwise.
type slotStatusListener func(
	slot *TaskManagerSlot,
	previous SlotState,
	current SlotState,
	jobID resource.JobID)

// slotTracker is the registry of worker slots. It is the only place
// slot states change.
type slotTracker struct {
	slots        map[resource.SlotID]*TaskManagerSlot
	free         map[resource.SlotID]*TaskManagerSlot
	byAllocation map[resource.AllocationID]*TaskManagerSlot
	listener     slotStatusListener
}

func newSlotTracker(listener slotStatusListener) *slotTracker {
	return &slotTracker{
		slots:        make(map[resource.SlotID]*TaskManagerSlot),
		free:         make(map[resource.SlotID]*TaskManagerSlot),
		byAllocation: make(map[resource.AllocationID]*TaskManagerSlot),
		listener:     listener,
	}
}

// addSlot registers a slot. A reported allocation is taken over as
// ALLOCATED.
func (t *slotTracker) addSlot(status resource.SlotStatus) *TaskManagerSlot {
	slot := &TaskManagerSlot{
		slotID:  status.SlotID,
		profile: status.Profile,
		state:   SlotStateFree,
	}
	t.slots[slot.slotID] = slot
	t.free[slot.slotID] = slot
	if status.AllocationID != "" {
		t.transition(slot, SlotStateAllocated, status.JobID, status.AllocationID)
	}
	return slot
}

// removeSlot drops a slot. A held slot is freed first so listeners see
// the loss.
func (t *slotTracker) removeSlot(slotID resource.SlotID) *TaskManagerSlot {
	slot, ok := t.slots[slotID]
	if !ok {
		return nil
	}
	if slot.state != SlotStateFree {
		t.transition(slot, SlotStateFree, "", "")
	}
	delete(t.slots, slotID)
	delete(t.free, slotID)
	return slot
}

func (t *slotTracker) get(slotID resource.SlotID) (*TaskManagerSlot, bool) {
	slot, ok := t.slots[slotID]
	return slot, ok
}

func (t *slotTracker) getByAllocation(id resource.AllocationID) (*TaskManagerSlot, bool) {
	slot, ok := t.byAllocation[id]
	return slot, ok
}

// freeSlots returns the FREE slots in unspecified order.
func (t *slotTracker) freeSlots() []*TaskManagerSlot {
	result := make([]*TaskManagerSlot, 0, len(t.free))
	for _, slot := range t.free {
		result = append(result, slot)
	}
	return result
}

func (t *slotTracker) numFree() int {
	return len(t.free)
}

func (t *slotTracker) size() int {
	return len(t.slots)
}

func (t *slotTracker) all() []*TaskManagerSlot {
	result := make([]*TaskManagerSlot, 0, len(t.slots))
	for _, slot := range t.slots {
		result = append(result, slot)
	}
	return result
}

// transition moves slot to state and notifies the listener. Moving a
// held slot to another job has to pass through FREE.
func (t *slotTracker) transition(
	slot *TaskManagerSlot,
	state SlotState,
	jobID resource.JobID,
	allocationID resource.AllocationID) {
	previous := slot.state
	previousJob := slot.jobID
	if slot.allocationID != "" {
		delete(t.byAllocation, slot.allocationID)
	}

	if state != SlotStatePending {
		slot.cancelOfferTimeout()
	}
	slot.state = state
	switch state {
	case SlotStateFree:
		slot.jobID = ""
		slot.allocationID = ""
		t.free[slot.slotID] = slot
	default:
		slot.jobID = jobID
		slot.allocationID = allocationID
		t.byAllocation[allocationID] = slot
		delete(t.free, slot.slotID)
	}

	log.WithFields(log.Fields{
		"slot_id":       slot.slotID,
		"from":          previous,
		"to":            state,
		"job_id":        slot.jobID,
		"allocation_id": slot.allocationID,
	}).Debug("Slot state changed")

	eventJob := jobID
	if state == SlotStateFree {
		eventJob = previousJob
	}
	if t.listener != nil && previous != state {
		t.listener(slot, previous, state, eventJob)
	}
}

func (t *slotTracker) clear() {
	for _, slot := range t.slots {
		slot.cancelOfferTimeout()
	}
	t.slots = make(map[resource.SlotID]*TaskManagerSlot)
	t.free = make(map[resource.SlotID]*TaskManagerSlot)
	t.byAllocation = make(map[resource.AllocationID]*TaskManagerSlot)
}
