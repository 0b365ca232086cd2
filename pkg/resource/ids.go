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

import (
	"fmt"

	"github.com/pborman/uuid"
)

// JobID identifies a job.
type JobID string

// AllocationID identifies one grant of a worker slot to a job.
type AllocationID string

// SlotRequestID identifies a slot request or a logical slot lease.
type SlotRequestID string

// WorkerID identifies a registered worker process.
type WorkerID string

// NewJobID returns a random job id.
func NewJobID() JobID { return JobID(uuid.New()) }

// NewAllocationID returns a random allocation id.
func NewAllocationID() AllocationID { return AllocationID(uuid.New()) }

// NewSlotRequestID returns a random request id.
func NewSlotRequestID() SlotRequestID { return SlotRequestID(uuid.New()) }

// NewWorkerID returns a random worker id.
func NewWorkerID() WorkerID { return WorkerID(uuid.New()) }

// SlotID identifies a slot by its worker and its index on that worker.
type SlotID struct {
	WorkerID WorkerID
	Index    int
}

func (id SlotID) String() string {
	return fmt.Sprintf("%s_%d", id.WorkerID, id.Index)
}
