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

// AllocatedSlotIndex keeps the physical slots of one job, by allocation
// id and grouped by worker. A worker has a bucket iff at least one of
// its slots is in the index.
type AllocatedSlotIndex struct {
	slots     map[resource.AllocationID]PhysicalSlot
	requestOf map[resource.AllocationID]resource.SlotRequestID
	byRequest map[resource.SlotRequestID]resource.AllocationID
	byWorker  map[resource.WorkerID]map[resource.AllocationID]PhysicalSlot
}

// NewAllocatedSlotIndex returns an empty index.
func NewAllocatedSlotIndex() *AllocatedSlotIndex {
	return &AllocatedSlotIndex{
		slots:     make(map[resource.AllocationID]PhysicalSlot),
		requestOf: make(map[resource.AllocationID]resource.SlotRequestID),
		byRequest: make(map[resource.SlotRequestID]resource.AllocationID),
		byWorker:  make(map[resource.WorkerID]map[resource.AllocationID]PhysicalSlot),
	}
}

// Add stores slot as the fulfilment of requestID. A slot with the same
// allocation id is replaced.
func (x *AllocatedSlotIndex) Add(requestID resource.SlotRequestID, slot PhysicalSlot) {
	allocationID := slot.AllocationID()
	if _, ok := x.slots[allocationID]; ok {
		x.Remove(allocationID)
	}

	x.slots[allocationID] = slot
	x.requestOf[allocationID] = requestID
	x.byRequest[requestID] = allocationID

	bucket, ok := x.byWorker[slot.WorkerID()]
	if !ok {
		bucket = make(map[resource.AllocationID]PhysicalSlot)
		x.byWorker[slot.WorkerID()] = bucket
	}
	bucket[allocationID] = slot
}

// Remove deletes the slot with the given allocation id. It returns false
// if the index does not hold it.
func (x *AllocatedSlotIndex) Remove(allocationID resource.AllocationID) (PhysicalSlot, bool) {
	slot, ok := x.slots[allocationID]
	if !ok {
		return nil, false
	}
	delete(x.slots, allocationID)
	requestID := x.requestOf[allocationID]
	if x.byRequest[requestID] == allocationID {
		delete(x.byRequest, requestID)
	}
	delete(x.requestOf, allocationID)

	workerID := slot.WorkerID()
	if bucket, ok := x.byWorker[workerID]; ok {
		delete(bucket, allocationID)
		if len(bucket) == 0 {
			delete(x.byWorker, workerID)
		}
	}
	return slot, true
}

// Get returns the slot for the allocation id.
func (x *AllocatedSlotIndex) Get(allocationID resource.AllocationID) (PhysicalSlot, bool) {
	slot, ok := x.slots[allocationID]
	return slot, ok
}

// GetByRequest returns the slot fulfilling the request.
func (x *AllocatedSlotIndex) GetByRequest(requestID resource.SlotRequestID) (PhysicalSlot, bool) {
	allocationID, ok := x.byRequest[requestID]
	if !ok {
		return nil, false
	}
	return x.Get(allocationID)
}

// RequestID returns the request the slot was added for.
func (x *AllocatedSlotIndex) RequestID(allocationID resource.AllocationID) (resource.SlotRequestID, bool) {
	id, ok := x.requestOf[allocationID]
	return id, ok
}

// Contains reports whether the allocation id is in the index.
func (x *AllocatedSlotIndex) Contains(allocationID resource.AllocationID) bool {
	_, ok := x.slots[allocationID]
	return ok
}

// ContainsResource reports whether any slot of the worker is in the
// index.
func (x *AllocatedSlotIndex) ContainsResource(workerID resource.WorkerID) bool {
	_, ok := x.byWorker[workerID]
	return ok
}

// GetSlotsForWorker returns the slots of the worker, an empty slice if
// there are none.
func (x *AllocatedSlotIndex) GetSlotsForWorker(workerID resource.WorkerID) []PhysicalSlot {
	bucket := x.byWorker[workerID]
	result := make([]PhysicalSlot, 0, len(bucket))
	for _, slot := range bucket {
		result = append(result, slot)
	}
	return result
}

// Slots returns every slot in the index.
func (x *AllocatedSlotIndex) Slots() []PhysicalSlot {
	result := make([]PhysicalSlot, 0, len(x.slots))
	for _, slot := range x.slots {
		result = append(result, slot)
	}
	return result
}

// Size returns the number of slots.
func (x *AllocatedSlotIndex) Size() int {
	return len(x.slots)
}

// Clear empties the index.
func (x *AllocatedSlotIndex) Clear() {
	*x = *NewAllocatedSlotIndex()
}
