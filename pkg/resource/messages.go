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

package resource

// SlotOffer is sent by the slot manager to a job's slot pool.
type SlotOffer struct {
	AllocationID AllocationID
	SlotID       SlotID
	WorkerID     WorkerID
	Profile      ResourceProfile
	JobID        JobID
}

// SlotStatus is a worker's view of one of its slots. An empty
// AllocationID means the slot is free.
type SlotStatus struct {
	SlotID       SlotID
	Profile      ResourceProfile
	AllocationID AllocationID
	JobID        JobID
}

// SlotReport lists every slot of one worker.
type SlotReport []SlotStatus

// Locality describes where a logical slot is placed relative to its
// preferred inputs.
type Locality int

const (
	// LocalityUnknown means no preference was evaluated.
	LocalityUnknown Locality = iota
	// LocalityLocal means the slot is on a preferred worker.
	LocalityLocal
	// LocalityNonLocal means the slot is on another worker.
	LocalityNonLocal
)
