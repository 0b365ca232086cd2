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
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"github.com/tillrohrmann/flink/pkg/common/async"
	"github.com/tillrohrmann/flink/pkg/common/scheduler"
	"github.com/tillrohrmann/flink/pkg/resource"
	"github.com/uber-go/tally"
)

// SlotInfo is a point in time view of one worker slot.
type SlotInfo struct {
	SlotID       resource.SlotID
	Profile      resource.ResourceProfile
	State        SlotState
	JobID        resource.JobID
	AllocationID resource.AllocationID
}

// ResourceOverview summarizes the cluster as seen by the manager.
type ResourceOverview struct {
	RegisteredWorkers int
	PendingWorkers    int
	TotalSlots        int
	FreeSlots         int
	PendingSlots      int
	AllocatedSlots    int
	Jobs              int
	MissingSlots      int
}

type worker struct {
	id          resource.WorkerID
	slots       []resource.SlotID
	idleTimeout scheduler.Cancellable
	// idleGen identifies the armed idle timer. A callback carrying an
	// older generation already fired when its timer was cancelled.
	idleGen int
}

// pendingWorker is a requested worker which has not registered yet.
type pendingWorker struct {
	seq int
	// workerID is empty until the provisioner answered.
	workerID resource.WorkerID
	// jobs are the jobs whose missing slots this worker is meant to
	// provide.
	jobs    map[resource.JobID]struct{}
	timeout scheduler.Cancellable
}

// Manager matches the resource requirements of all jobs against the
// slots of the registered workers. It offers free slots to jobs and
// starts or releases workers through ResourceActions. All state is
// confined to the manager's executor.
type Manager struct {
	config    Config
	actions   ResourceActions
	exec      async.Executor
	scheduler scheduler.Scheduler
	strategy  SlotMatchingStrategy
	metrics   *Metrics

	started bool
	tracker *ResourceTracker
	slots   *slotTracker
	workers map[resource.WorkerID]*worker
	// pendingWorkers is ordered by request time.
	pendingWorkers []*pendingWorker
	nextWorkerSeq  int
	jobs           map[resource.JobID]SlotOfferTarget
	// unfulfillable holds jobs told about missing resources since their
	// last requirements update.
	unfulfillable  map[resource.JobID]struct{}
	// freedPending holds allocations freed before their offer was
	// answered. A late accept must not revive them.
	freedPending   map[resource.AllocationID]struct{}
	scheduledCheck scheduler.Cancellable
}

// NewManager creates a slot manager. It does not match anything until
// Start is called.
func NewManager(
	config Config,
	actions ResourceActions,
	exec async.Executor,
	sched scheduler.Scheduler,
	parent tally.Scope) (*Manager, error) {
	config = config.withDefaults()
	strategy, err := StrategyByName(config.MatchingStrategy)
	if err != nil {
		return nil, err
	}
	m := &Manager{
		config:        config,
		actions:       actions,
		exec:          exec,
		scheduler:     sched,
		strategy:      strategy,
		metrics:       NewMetrics(parent.SubScope("slot_manager")),
		tracker:       NewResourceTracker(),
		workers:       make(map[resource.WorkerID]*worker),
		jobs:          make(map[resource.JobID]SlotOfferTarget),
		unfulfillable: make(map[resource.JobID]struct{}),
		freedPending:  make(map[resource.AllocationID]struct{}),
	}
	m.slots = newSlotTracker(m.onSlotStatusChange)
	return m, nil
}

// Start enables matching.
func (m *Manager) Start() *async.Future[struct{}] {
	return async.Run(m.exec, func() error {
		if m.started {
			return nil
		}
		m.started = true
		log.Info("Slot manager started")
		m.checkResourceRequirements()
		return nil
	})
}

// Suspend disables matching and drops all state, including job
// registrations.
func (m *Manager) Suspend() *async.Future[struct{}] {
	return async.Run(m.exec, func() error {
		if !m.started {
			return nil
		}
		m.clear()
		m.jobs = make(map[resource.JobID]SlotOfferTarget)
		m.started = false
		log.Info("Slot manager suspended")
		return nil
	})
}

// Clear drops every requirement, worker and slot. Calling it again has
// no effect.
func (m *Manager) Clear() *async.Future[struct{}] {
	return async.Run(m.exec, func() error {
		m.clear()
		return nil
	})
}

// RegisterJob sets where the slots of a job are offered.
func (m *Manager) RegisterJob(jobID resource.JobID, target SlotOfferTarget) *async.Future[struct{}] {
	return async.Run(m.exec, func() error {
		m.jobs[jobID] = target
		log.WithField("job_id", jobID).Info("Job registered")
		m.checkResourceRequirements()
		return nil
	})
}

// UnregisterJob forgets a job and its requirements. Slots the job holds
// stay allocated until they are freed.
func (m *Manager) UnregisterJob(jobID resource.JobID) *async.Future[struct{}] {
	return async.Run(m.exec, func() error {
		delete(m.jobs, jobID)
		delete(m.unfulfillable, jobID)
		m.tracker.ProcessResourceRequirements(resource.ResourceRequirements{JobID: jobID})
		log.WithField("job_id", jobID).Info("Job unregistered")
		return nil
	})
}

// ProcessResourceRequirements replaces the requirements of a job and
// re-matches. The replacement happens in one turn of the executor, so no
// check sees a partial update.
func (m *Manager) ProcessResourceRequirements(reqs resource.ResourceRequirements) *async.Future[struct{}] {
	return async.Run(m.exec, func() error {
		m.metrics.RequirementsUpdated.Inc(1)
		m.tracker.ProcessResourceRequirements(reqs)
		delete(m.unfulfillable, reqs.JobID)
		log.WithFields(log.Fields{
			"job_id":       reqs.JobID,
			"requirements": reqs,
		}).Debug("Resource requirements updated")
		m.checkResourceRequirements()
		return nil
	})
}

// NotifyNewSlots triggers a re-match.
func (m *Manager) NotifyNewSlots() {
	m.exec.Execute(m.checkResourceRequirements)
}

// RegisterWorker adds a worker and the slots it reports. Allocated slots
// in the report are taken over. A worker registering again is
// reconciled against its report.
func (m *Manager) RegisterWorker(
	workerID resource.WorkerID,
	report resource.SlotReport) *async.Future[struct{}] {
	return async.Run(m.exec, func() error {
		if !m.started {
			return ErrNotStarted
		}
		if _, ok := m.workers[workerID]; ok {
			log.WithField("worker_id", workerID).Debug("Worker registered again")
			m.reconcile(workerID, report)
			return nil
		}
		m.registerWorker(workerID, report)
		return nil
	})
}

// UnregisterWorker removes a worker. Jobs holding its slots are told
// the worker is lost.
func (m *Manager) UnregisterWorker(workerID resource.WorkerID, cause error) *async.Future[struct{}] {
	return async.Run(m.exec, func() error {
		w, ok := m.workers[workerID]
		if !ok {
			return errors.Wrapf(ErrUnknownWorker, "worker %s", workerID)
		}
		log.WithError(cause).WithField("worker_id", workerID).Info("Worker unregistered")
		m.metrics.WorkerUnregistered.Inc(1)
		m.removeWorker(w, cause)
		m.checkResourceRequirements()
		return nil
	})
}

// ReportSlotStatus reconciles the slots of a worker with what the worker
// reports. The future is false for an unknown worker.
func (m *Manager) ReportSlotStatus(
	workerID resource.WorkerID,
	report resource.SlotReport) *async.Future[bool] {
	return async.Call(m.exec, func() (bool, error) {
		if _, ok := m.workers[workerID]; !ok {
			return false, nil
		}
		m.reconcile(workerID, report)
		return true, nil
	})
}

// FreeSlot returns an allocated slot to the free slots.
func (m *Manager) FreeSlot(allocationID resource.AllocationID, cause error) *async.Future[struct{}] {
	return async.Run(m.exec, func() error {
		slot, ok := m.slots.getByAllocation(allocationID)
		if !ok {
			return errors.Wrapf(ErrUnknownAllocation, "allocation %s", allocationID)
		}
		if slot.State() == SlotStatePending {
			m.freedPending[allocationID] = struct{}{}
		}
		m.metrics.SlotFreed.Inc(1)
		log.WithError(cause).WithFields(log.Fields{
			"allocation_id": allocationID,
			"job_id":        slot.JobID(),
			"slot_id":       slot.SlotID(),
		}).Debug("Slot freed")
		m.slots.transition(slot, SlotStateFree, "", "")
		m.checkResourceRequirements()
		return nil
	})
}

// GetJobAllocatedSlots returns the pending and allocated slots of a job.
func (m *Manager) GetJobAllocatedSlots(jobID resource.JobID) *async.Future[[]SlotInfo] {
	return async.Call(m.exec, func() ([]SlotInfo, error) {
		slots := lo.Filter(m.slots.all(), func(s *TaskManagerSlot, _ int) bool {
			return s.State() != SlotStateFree && s.JobID() == jobID
		})
		return toSlotInfos(slots), nil
	})
}

// GetWorkerSlots returns the slots of a worker.
func (m *Manager) GetWorkerSlots(workerID resource.WorkerID) *async.Future[[]SlotInfo] {
	return async.Call(m.exec, func() ([]SlotInfo, error) {
		w, ok := m.workers[workerID]
		if !ok {
			return nil, errors.Wrapf(ErrUnknownWorker, "worker %s", workerID)
		}
		slots := make([]*TaskManagerSlot, 0, len(w.slots))
		for _, id := range w.slots {
			if slot, ok := m.slots.get(id); ok {
				slots = append(slots, slot)
			}
		}
		return toSlotInfos(slots), nil
	})
}

// GetMissingResources returns the requirements not covered by slots, per
// job.
func (m *Manager) GetMissingResources() *async.Future[map[resource.JobID][]resource.ResourceRequirement] {
	return async.Call(m.exec, func() (map[resource.JobID][]resource.ResourceRequirement, error) {
		return lo.MapValues(m.tracker.GetMissingResources(),
			func(counts map[resource.ResourceProfile]int, _ resource.JobID) []resource.ResourceRequirement {
				return resource.FromCounts(counts)
			}), nil
	})
}

// GetResourceOverview returns a summary of workers and slots.
func (m *Manager) GetResourceOverview() *async.Future[ResourceOverview] {
	return async.Call(m.exec, func() (ResourceOverview, error) {
		slots := m.slots.all()
		missing := 0
		for _, counts := range m.tracker.GetMissingResources() {
			missing += lo.Sum(lo.Values(counts))
		}
		return ResourceOverview{
			RegisteredWorkers: len(m.workers),
			PendingWorkers:    len(m.pendingWorkers),
			TotalSlots:        len(slots),
			FreeSlots:         m.slots.numFree(),
			PendingSlots: lo.CountBy(slots, func(s *TaskManagerSlot) bool {
				return s.State() == SlotStatePending
			}),
			AllocatedSlots: lo.CountBy(slots, func(s *TaskManagerSlot) bool {
				return s.State() == SlotStateAllocated
			}),
			Jobs:         len(m.jobs),
			MissingSlots: missing,
		}, nil
	})
}

func toSlotInfos(slots []*TaskManagerSlot) []SlotInfo {
	result := lo.Map(slots, func(s *TaskManagerSlot, _ int) SlotInfo {
		return SlotInfo{
			SlotID:       s.SlotID(),
			Profile:      s.Profile(),
			State:        s.State(),
			JobID:        s.JobID(),
			AllocationID: s.AllocationID(),
		}
	})
	sort.Slice(result, func(i, j int) bool {
		return result[i].SlotID.String() < result[j].SlotID.String()
	})
	return result
}

// schedule runs fn on the manager's executor after delay.
func (m *Manager) schedule(delay time.Duration, fn func()) scheduler.Cancellable {
	return m.scheduler.Schedule(delay, func() {
		m.exec.Execute(fn)
	})
}

func (m *Manager) clear() {
	for _, w := range m.workers {
		if w.idleTimeout != nil {
			w.idleTimeout.Cancel()
		}
	}
	for _, pw := range m.pendingWorkers {
		pw.timeout.Cancel()
	}
	if m.scheduledCheck != nil {
		m.scheduledCheck.Cancel()
		m.scheduledCheck = nil
	}
	m.slots.clear()
	m.tracker.Clear()
	m.workers = make(map[resource.WorkerID]*worker)
	m.pendingWorkers = nil
	m.unfulfillable = make(map[resource.JobID]struct{})
	m.freedPending = make(map[resource.AllocationID]struct{})
	m.updateGauges()
	log.Info("Slot manager state cleared")
}

func (m *Manager) updateGauges() {
	m.metrics.RegisteredWorkers.Update(float64(len(m.workers)))
	m.metrics.PendingWorkers.Update(float64(len(m.pendingWorkers)))
	m.metrics.TotalSlots.Update(float64(m.slots.size()))
	m.metrics.FreeSlots.Update(float64(m.slots.numFree()))
}

func sortedJobIDs[V any](m map[resource.JobID]V) []resource.JobID {
	ids := lo.Keys(m)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
