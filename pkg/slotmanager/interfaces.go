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
	"github.com/tillrohrmann/flink/pkg/common/async"
	"github.com/tillrohrmann/flink/pkg/resource"
)

//go:generate mockgen -destination=mocks/mock_interfaces.go -package=mocks github.com/tillrohrmann/flink/pkg/slotmanager ResourceActions,SlotOfferTarget

// ResourceActions starts and stops workers.
type ResourceActions interface {
	// RequestWorker starts a worker. The future completes with the id
	// the worker will register with.
	RequestWorker(spec resource.WorkerResourceSpec) *async.Future[resource.WorkerID]
	// ReleaseWorker stops a worker.
	ReleaseWorker(workerID resource.WorkerID, cause error)
}

// SlotOfferTarget is the job side of slot offers, usually its slot pool.
type SlotOfferTarget interface {
	OfferSlot(offer resource.SlotOffer) *async.Future[bool]
	NotifyWorkerLost(workerID resource.WorkerID, cause error)
	NotifyNotEnoughResources(jobID resource.JobID, err error)
	// NotifySlotRevoked takes back a slot whose accepted offer the
	// manager could not honor. The target drops the allocation without
	// freeing it.
	NotifySlotRevoked(allocationID resource.AllocationID, cause error)
}
