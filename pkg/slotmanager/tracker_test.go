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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tillrohrmann/flink/pkg/resource"
)

var (
	_small = resource.NewResourceProfile(1, 512, 0, 0)
	_large = resource.NewResourceProfile(4, 4096, 0, 0)
)

func requirements(jobID resource.JobID, counts map[resource.ResourceProfile]int) resource.ResourceRequirements {
	return resource.ResourceRequirements{
		JobID:        jobID,
		Requirements: resource.FromCounts(counts),
	}
}

func TestTrackerReportsMissingResources(t *testing.T) {
	tracker := NewResourceTracker()
	tracker.ProcessResourceRequirements(requirements("j1", map[resource.ResourceProfile]int{
		_small: 2,
	}))

	assert.Equal(t, map[resource.JobID]map[resource.ResourceProfile]int{
		"j1": {_small: 2},
	}, tracker.GetMissingResources())

	tracker.NotifySlotStatusChange(SlotStateFree, SlotStatePending, "j1", _small)
	assert.Equal(t, map[resource.ResourceProfile]int{_small: 1}, tracker.GetMissingResources()["j1"])

	// PENDING to ALLOCATED keeps the count.
	tracker.NotifySlotStatusChange(SlotStatePending, SlotStateAllocated, "j1", _small)
	tracker.NotifySlotStatusChange(SlotStateFree, SlotStateAllocated, "j1", _small)
	assert.Empty(t, tracker.GetMissingResources())
	assert.Equal(t, []resource.ResourceRequirement{
		resource.NewResourceRequirement(_small, 2),
	}, tracker.GetAcquiredResources("j1"))
}

func TestTrackerReplacesRequirements(t *testing.T) {
	tracker := NewResourceTracker()
	tracker.ProcessResourceRequirements(requirements("j1", map[resource.ResourceProfile]int{
		_small: 2,
		_large: 1,
	}))
	tracker.ProcessResourceRequirements(requirements("j1", map[resource.ResourceProfile]int{
		_large: 3,
	}))

	assert.Equal(t, []resource.ResourceRequirement{
		resource.NewResourceRequirement(_large, 3),
	}, tracker.GetRequiredResources("j1"))

	tracker.ProcessResourceRequirements(resource.ResourceRequirements{JobID: "j1"})
	assert.True(t, tracker.IsEmpty())
}

func TestTrackerMatchesLargerSlots(t *testing.T) {
	tracker := NewResourceTracker()
	tracker.ProcessResourceRequirements(requirements("j1", map[resource.ResourceProfile]int{
		_small:                  1,
		resource.UnknownProfile: 1,
	}))

	// A large slot covers the small requirement first, the unknown one
	// stays missing.
	tracker.NotifySlotStatusChange(SlotStateFree, SlotStateAllocated, "j1", _large)
	assert.Equal(t, map[resource.JobID]map[resource.ResourceProfile]int{
		"j1": {resource.UnknownProfile: 1},
	}, tracker.GetMissingResources())

	tracker.NotifySlotStatusChange(SlotStateFree, SlotStateAllocated, "j1", _small)
	assert.Empty(t, tracker.GetMissingResources())
}

func TestTrackerKeepsJobWhileSlotsAreHeld(t *testing.T) {
	tracker := NewResourceTracker()
	tracker.ProcessResourceRequirements(requirements("j1", map[resource.ResourceProfile]int{_small: 1}))
	tracker.NotifySlotStatusChange(SlotStateFree, SlotStateAllocated, "j1", _small)

	tracker.ProcessResourceRequirements(resource.ResourceRequirements{JobID: "j1"})
	require.False(t, tracker.IsEmpty())
	assert.Empty(t, tracker.GetMissingResources())

	tracker.NotifySlotStatusChange(SlotStateAllocated, SlotStateFree, "j1", _small)
	assert.True(t, tracker.IsEmpty())

	// Losing a slot that was never counted leaves the tracker alone.
	tracker.NotifySlotStatusChange(SlotStateAllocated, SlotStateFree, "j1", _small)
	assert.True(t, tracker.IsEmpty())
}

func TestTrackerClear(t *testing.T) {
	tracker := NewResourceTracker()
	tracker.ProcessResourceRequirements(requirements("j1", map[resource.ResourceProfile]int{_small: 1}))
	tracker.ProcessResourceRequirements(requirements("j2", map[resource.ResourceProfile]int{_small: 1}))
	tracker.Clear()
	tracker.Clear()
	assert.True(t, tracker.IsEmpty())
	assert.Empty(t, tracker.GetMissingResources())
}

func TestSlotTrackerNotifiesOnStateChange(t *testing.T) {
	type event struct {
		previous, current SlotState
		jobID             resource.JobID
	}
	var events []event
	st := newSlotTracker(func(_ *TaskManagerSlot, previous, current SlotState, jobID resource.JobID) {
		events = append(events, event{previous, current, jobID})
	})

	slot := st.addSlot(resource.SlotStatus{
		SlotID:  resource.SlotID{WorkerID: "w1"},
		Profile: _small,
	})
	assert.Equal(t, 1, st.numFree())

	st.transition(slot, SlotStatePending, "j1", "a1")
	st.transition(slot, SlotStateAllocated, "j1", "a1")
	got, ok := st.getByAllocation("a1")
	require.True(t, ok)
	assert.Equal(t, slot, got)
	assert.Equal(t, 0, st.numFree())

	st.removeSlot(slot.SlotID())
	assert.Equal(t, 0, st.size())
	_, ok = st.getByAllocation("a1")
	assert.False(t, ok)

	assert.Equal(t, []event{
		{SlotStateFree, SlotStatePending, "j1"},
		{SlotStatePending, SlotStateAllocated, "j1"},
		{SlotStateAllocated, SlotStateFree, "j1"},
	}, events)
}

func TestSlotTrackerTakesOverReportedAllocation(t *testing.T) {
	var acquired []resource.JobID
	st := newSlotTracker(func(_ *TaskManagerSlot, previous, _ SlotState, jobID resource.JobID) {
		if previous == SlotStateFree {
			acquired = append(acquired, jobID)
		}
	})
	slot := st.addSlot(resource.SlotStatus{
		SlotID:       resource.SlotID{WorkerID: "w1"},
		Profile:      _small,
		AllocationID: "a1",
		JobID:        "j1",
	})
	assert.Equal(t, SlotStateAllocated, slot.State())
	assert.Equal(t, []resource.JobID{"j1"}, acquired)
	assert.Empty(t, st.freeSlots())
}
