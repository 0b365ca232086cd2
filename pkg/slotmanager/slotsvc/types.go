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

package slotsvc

import (
	"github.com/tillrohrmann/flink/pkg/resource"
	"github.com/tillrohrmann/flink/pkg/slotmanager"
	"github.com/tillrohrmann/flink/pkg/slotpool"
)

// Profile is the wire form of a resource profile. Unknown and Any
// select the special profiles, the quantities are ignored then.
type Profile struct {
	CPU      float64 `json:"cpu,omitempty"`
	MemoryMB float64 `json:"memory_mb,omitempty"`
	DiskMB   float64 `json:"disk_mb,omitempty"`
	GPU      float64 `json:"gpu,omitempty"`
	Unknown  bool    `json:"unknown,omitempty"`
	Any      bool    `json:"any,omitempty"`
}

func (p *Profile) toResource() resource.ResourceProfile {
	switch {
	case p == nil || p.Unknown:
		return resource.UnknownProfile
	case p.Any:
		return resource.AnyProfile
	}
	return resource.NewResourceProfile(p.CPU, p.MemoryMB, p.DiskMB, p.GPU)
}

func fromResource(rp resource.ResourceProfile) *Profile {
	switch {
	case rp.IsUnknown():
		return &Profile{Unknown: true}
	case rp.IsAny():
		return &Profile{Any: true}
	}
	return &Profile{CPU: rp.CPU, MemoryMB: rp.MemoryMB, DiskMB: rp.DiskMB, GPU: rp.GPU}
}

// Requirement is a number of slots of one profile.
type Requirement struct {
	Profile *Profile `json:"profile"`
	Count   int      `json:"count"`
}

// SlotStatus is one entry of a worker's slot report.
type SlotStatus struct {
	Index        int      `json:"index"`
	Profile      *Profile `json:"profile"`
	AllocationID string   `json:"allocation_id,omitempty"`
	JobID        string   `json:"job_id,omitempty"`
}

func toSlotReport(workerID resource.WorkerID, slots []*SlotStatus) resource.SlotReport {
	report := make(resource.SlotReport, 0, len(slots))
	for _, s := range slots {
		if s == nil {
			continue
		}
		report = append(report, resource.SlotStatus{
			SlotID:       resource.SlotID{WorkerID: workerID, Index: s.Index},
			Profile:      s.Profile.toResource(),
			AllocationID: resource.AllocationID(s.AllocationID),
			JobID:        resource.JobID(s.JobID),
		})
	}
	return report
}

// SlotInfo is the state of one worker slot.
type SlotInfo struct {
	WorkerID     string   `json:"worker_id"`
	Index        int      `json:"index"`
	Profile      *Profile `json:"profile"`
	State        string   `json:"state"`
	JobID        string   `json:"job_id,omitempty"`
	AllocationID string   `json:"allocation_id,omitempty"`
}

func fromSlotInfos(infos []slotmanager.SlotInfo) []*SlotInfo {
	result := make([]*SlotInfo, 0, len(infos))
	for _, info := range infos {
		result = append(result, &SlotInfo{
			WorkerID:     string(info.SlotID.WorkerID),
			Index:        info.SlotID.Index,
			Profile:      fromResource(info.Profile),
			State:        info.State.String(),
			JobID:        string(info.JobID),
			AllocationID: string(info.AllocationID),
		})
	}
	return result
}

// Lease is a logical slot handed to a caller of AllocateSlot.
type Lease struct {
	LeaseID      string   `json:"lease_id"`
	AllocationID string   `json:"allocation_id"`
	WorkerID     string   `json:"worker_id"`
	Index        int      `json:"index"`
	Profile      *Profile `json:"profile"`
}

// PoolInfo summarizes a job's slot pool.
type PoolInfo struct {
	AllocatedSlots  int            `json:"allocated_slots"`
	SharedSlots     int            `json:"shared_slots"`
	IdleSlots       int            `json:"idle_slots"`
	PendingRequests int            `json:"pending_requests"`
	Leases          int            `json:"leases"`
	Declared        []*Requirement `json:"declared"`
	LastShortage    string         `json:"last_shortage,omitempty"`
}

func fromSnapshot(s slotpool.Snapshot, leases int, shortage error) *PoolInfo {
	info := &PoolInfo{
		AllocatedSlots:  s.AllocatedSlots,
		SharedSlots:     s.SharedSlots,
		IdleSlots:       s.IdleSlots,
		PendingRequests: s.PendingRequests,
		Leases:          leases,
		Declared:        fromRequirements(s.Declared.Requirements),
	}
	if shortage != nil {
		info.LastShortage = shortage.Error()
	}
	return info
}

func fromRequirements(reqs []resource.ResourceRequirement) []*Requirement {
	result := make([]*Requirement, 0, len(reqs))
	for _, r := range reqs {
		result = append(result, &Requirement{Profile: fromResource(r.Profile), Count: r.NumberOfRequiredSlots})
	}
	return result
}

// SubmitJobRequest creates the slot pool of a job. An empty JobID gets
// a generated id.
type SubmitJobRequest struct {
	JobID string `json:"job_id,omitempty"`
}

// SubmitJobResponse carries the id of the submitted job.
type SubmitJobResponse struct {
	JobID string `json:"job_id"`
}

// CancelJobRequest releases every slot of a job and drops its pool.
type CancelJobRequest struct {
	JobID  string `json:"job_id"`
	Reason string `json:"reason,omitempty"`
}

// CancelJobResponse is empty.
type CancelJobResponse struct{}

// AllocateSlotRequest asks for one logical slot. The call returns once
// the slot is granted or the request context ends.
type AllocateSlotRequest struct {
	JobID              string   `json:"job_id"`
	Profile            *Profile `json:"profile"`
	OccupyIndefinitely bool     `json:"occupy_indefinitely,omitempty"`
}

// AllocateSlotResponse carries the granted lease.
type AllocateSlotResponse struct {
	Lease *Lease `json:"lease"`
}

// ReleaseSlotRequest gives a lease back.
type ReleaseSlotRequest struct {
	JobID   string `json:"job_id"`
	LeaseID string `json:"lease_id"`
	Reason  string `json:"reason,omitempty"`
}

// ReleaseSlotResponse is empty.
type ReleaseSlotResponse struct{}

// RegisterWorkerRequest registers a worker with its slots.
type RegisterWorkerRequest struct {
	WorkerID string        `json:"worker_id"`
	Slots    []*SlotStatus `json:"slots"`
}

// RegisterWorkerResponse is empty.
type RegisterWorkerResponse struct{}

// UnregisterWorkerRequest removes a worker.
type UnregisterWorkerRequest struct {
	WorkerID string `json:"worker_id"`
	Reason   string `json:"reason,omitempty"`
}

// UnregisterWorkerResponse is empty.
type UnregisterWorkerResponse struct{}

// ReportSlotStatusRequest is a worker heartbeat with its slot report.
type ReportSlotStatusRequest struct {
	WorkerID string        `json:"worker_id"`
	Slots    []*SlotStatus `json:"slots"`
}

// ReportSlotStatusResponse tells a worker whether it is registered.
type ReportSlotStatusResponse struct {
	Known bool `json:"known"`
}

// GetResourceOverviewRequest is empty.
type GetResourceOverviewRequest struct{}

// GetResourceOverviewResponse summarizes workers and slots.
type GetResourceOverviewResponse struct {
	RegisteredWorkers int `json:"registered_workers"`
	PendingWorkers    int `json:"pending_workers"`
	TotalSlots        int `json:"total_slots"`
	FreeSlots         int `json:"free_slots"`
	PendingSlots      int `json:"pending_slots"`
	AllocatedSlots    int `json:"allocated_slots"`
	Jobs              int `json:"jobs"`
	MissingSlots      int `json:"missing_slots"`
}

// GetMissingResourcesRequest is empty.
type GetMissingResourcesRequest struct{}

// GetMissingResourcesResponse lists uncovered requirements per job.
type GetMissingResourcesResponse struct {
	Jobs map[string][]*Requirement `json:"jobs"`
}

// GetJobSlotsRequest selects a job.
type GetJobSlotsRequest struct {
	JobID string `json:"job_id"`
}

// GetJobSlotsResponse lists the worker slots held by a job and its pool
// state.
type GetJobSlotsResponse struct {
	Slots []*SlotInfo `json:"slots"`
	Pool  *PoolInfo   `json:"pool"`
}

// GetWorkerSlotsRequest selects a worker.
type GetWorkerSlotsRequest struct {
	WorkerID string `json:"worker_id"`
}

// GetWorkerSlotsResponse lists the slots of a worker.
type GetWorkerSlotsResponse struct {
	Slots []*SlotInfo `json:"slots"`
}
