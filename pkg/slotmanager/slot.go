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
	"github.com/tillrohrmann/flink/pkg/common/scheduler"
	"github.com/tillrohrmann/flink/pkg/resource"
)

// SlotState is the state of a worker slot as seen by the slot manager.
type SlotState int

const (
	// SlotStateFree means the slot can be offered.
	SlotStateFree SlotState = iota + 1
	// SlotStatePending means the slot was offered to a job which has not
	// answered yet.
	SlotStatePending
	// SlotStateAllocated means a job holds the slot.
	SlotStateAllocated
)

func (s SlotState) String() string {
	switch s {
	case SlotStateFree:
		return "FREE"
	case SlotStatePending:
		return "PENDING"
	case SlotStateAllocated:
		return "ALLOCATED"
	}
	return "UNKNOWN"
}

// TaskManagerSlot is a slot advertised by a registered worker. Only the
// slot tracker changes it.
type TaskManagerSlot struct {
	slotID       resource.SlotID
	profile      resource.ResourceProfile
	state        SlotState
	jobID        resource.JobID
	allocationID resource.AllocationID

	offerTimeout scheduler.Cancellable
}

// SlotID returns the slot id.
func (s *TaskManagerSlot) SlotID() resource.SlotID { return s.slotID }

// WorkerID returns the worker owning the slot.
func (s *TaskManagerSlot) WorkerID() resource.WorkerID { return s.slotID.WorkerID }

// Profile returns the slot's resource profile.
func (s *TaskManagerSlot) Profile() resource.ResourceProfile { return s.profile }

// State returns the slot's state.
func (s *TaskManagerSlot) State() SlotState { return s.state }

// JobID returns the job holding or being offered the slot.
func (s *TaskManagerSlot) JobID() resource.JobID { return s.jobID }

// AllocationID returns the current allocation, empty when free.
func (s *TaskManagerSlot) AllocationID() resource.AllocationID { return s.allocationID }

func (s *TaskManagerSlot) cancelOfferTimeout() {
	if s.offerTimeout != nil {
		s.offerTimeout.Cancel()
		s.offerTimeout = nil
	}
}
