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
	"github.com/pkg/errors"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"github.com/tillrohrmann/flink/pkg/common/async"
	"github.com/tillrohrmann/flink/pkg/common/scheduler"
	"github.com/tillrohrmann/flink/pkg/resource"
	"github.com/uber-go/tally"
)

// ResourceManagerGateway is the slot manager as seen from a pool.
type ResourceManagerGateway interface {
	// ProcessResourceRequirements replaces the job's declared demand.
	ProcessResourceRequirements(reqs resource.ResourceRequirements) *async.Future[struct{}]
	// FreeSlot hands a physical slot back to the cluster.
	FreeSlot(allocationID resource.AllocationID, cause error) *async.Future[struct{}]
}

// FailureListener is told about resource shortages reported for the job.
type FailureListener func(err error)

type pendingRequest struct {
	id         resource.SlotRequestID
	profile    resource.ResourceProfile
	indefinite bool
	future     *async.Future[*SharedSlot]
	timeout    scheduler.Cancellable
}

type idleSlot struct {
	slot    *AllocatedSlot
	timeout scheduler.Cancellable
}

// Snapshot is a point in time view of a pool.
type Snapshot struct {
	JobID           resource.JobID
	AllocatedSlots  int
	SharedSlots     int
	IdleSlots       int
	PendingRequests int
	Declared        resource.ResourceRequirements
}

// Pool owns the physical slots granted to one job. All state is confined
// to the pool's executor; every exported method only enqueues work.
type Pool struct {
	jobID     resource.JobID
	config    Config
	gateway   ResourceManagerGateway
	exec      async.Executor
	scheduler scheduler.Scheduler
	metrics   *Metrics

	slots  *AllocatedSlotIndex
	shared map[resource.AllocationID]*SharedSlot
	idle   map[resource.AllocationID]*idleSlot
	// covers is the requested profile each held slot stands for.
	covers       map[resource.AllocationID]resource.ResourceProfile
	pending      []*pendingRequest
	replacements map[resource.ResourceProfile]int
	declared     map[resource.ResourceProfile]int

	failureListener FailureListener
	lastShortage    error
	closed          bool
}

// NewPool creates the slot pool of a job. exec must run one function at
// a time.
func NewPool(
	jobID resource.JobID,
	config Config,
	gateway ResourceManagerGateway,
	exec async.Executor,
	sched scheduler.Scheduler,
	parent tally.Scope) *Pool {
	return &Pool{
		jobID:        jobID,
		config:       config.withDefaults(),
		gateway:      gateway,
		exec:         exec,
		scheduler:    sched,
		metrics:      NewMetrics(parent.SubScope("slot_pool")),
		slots:        NewAllocatedSlotIndex(),
		shared:       make(map[resource.AllocationID]*SharedSlot),
		idle:         make(map[resource.AllocationID]*idleSlot),
		covers:       make(map[resource.AllocationID]resource.ResourceProfile),
		replacements: make(map[resource.ResourceProfile]int),
		declared:     make(map[resource.ResourceProfile]int),
	}
}

// JobID returns the job this pool serves.
func (p *Pool) JobID() resource.JobID {
	return p.jobID
}

// SetFailureListener installs the listener for resource shortages.
func (p *Pool) SetFailureListener(l FailureListener) {
	p.exec.Execute(func() { p.failureListener = l })
}

// RequestSlot asks for a physical slot matching profile. The future
// completes with a shared slot wrapping it, or fails after the slot
// request timeout.
func (p *Pool) RequestSlot(
	profile resource.ResourceProfile,
	occupyIndefinitely bool) *async.Future[*SharedSlot] {
	f := async.NewFuture[*SharedSlot]()
	p.exec.Execute(func() {
		p.requestSlot(profile, occupyIndefinitely, f)
	})
	return f
}

// OfferSlot proposes a slot to the pool. The future is true if the pool
// took the slot.
func (p *Pool) OfferSlot(offer resource.SlotOffer) *async.Future[bool] {
	return async.Call(p.exec, func() (bool, error) {
		return p.offerSlot(offer), nil
	})
}

// AllocateLogicalSlot leases a logical slot from a shared slot held by
// this pool.
func (p *Pool) AllocateLogicalSlot(s *SharedSlot) *async.Future[*LogicalSlot] {
	return async.Call(p.exec, s.AllocateLogicalSlot)
}

// ReleaseLogicalSlot releases a lease drawn from this pool.
func (p *Pool) ReleaseLogicalSlot(ls *LogicalSlot, cause error) *async.Future[struct{}] {
	return async.Run(p.exec, func() error {
		return ls.ReleaseSlot(cause)
	})
}

// ReleaseSharedSlot force releases a shared slot and all its leases.
func (p *Pool) ReleaseSharedSlot(s *SharedSlot, cause error) *async.Future[struct{}] {
	return async.Run(p.exec, func() error {
		s.Release(cause)
		return nil
	})
}

// ReleaseJob fails every pending request and gives every slot back.
// The pool accepts nothing afterwards.
func (p *Pool) ReleaseJob(cause error) *async.Future[struct{}] {
	return async.Run(p.exec, func() error {
		p.releaseJob(cause)
		return nil
	})
}

// NotifyWorkerLost drops the slots of a worker which went away, failing
// their leases. Slots that were in use are replaced.
func (p *Pool) NotifyWorkerLost(workerID resource.WorkerID, cause error) {
	p.exec.Execute(func() {
		p.workerLost(workerID, cause)
	})
}

// NotifySlotRevoked drops a slot the slot manager no longer grants to
// this job. Its leases fail and, if it was in use or parked, another
// slot is requested. The slot is not freed since the manager already
// has it.
func (p *Pool) NotifySlotRevoked(allocationID resource.AllocationID, cause error) {
	p.exec.Execute(func() {
		p.slotRevoked(allocationID, cause)
	})
}

// NotifyNotEnoughResources reports that the cluster could not provide
// the declared demand in time.
func (p *Pool) NotifyNotEnoughResources(jobID resource.JobID, err error) {
	p.exec.Execute(func() {
		if jobID != p.jobID {
			return
		}
		p.lastShortage = err
		log.WithError(err).WithFields(log.Fields{
			"job_id":           p.jobID,
			"pending_requests": len(p.pending),
		}).Warn("Not enough resources for job")
		if p.failureListener != nil {
			p.failureListener(err)
		}
	})
}

// Snapshot returns a view of the pool's state.
func (p *Pool) Snapshot() *async.Future[Snapshot] {
	return async.Call(p.exec, func() (Snapshot, error) {
		return Snapshot{
			JobID:           p.jobID,
			AllocatedSlots:  p.slots.Size(),
			SharedSlots:     len(p.shared),
			IdleSlots:       len(p.idle),
			PendingRequests: len(p.pending),
			Declared: resource.ResourceRequirements{
				JobID:        p.jobID,
				Requirements: resource.FromCounts(p.declared),
			},
		}, nil
	})
}

func (p *Pool) requestSlot(
	profile resource.ResourceProfile,
	indefinite bool,
	f *async.Future[*SharedSlot]) {
	p.metrics.RequestSlot.Inc(1)
	if p.closed {
		p.metrics.RequestSlotFail.Inc(1)
		f.Fail(errors.Wrapf(ErrPoolClosed, "job %s", p.jobID))
		return
	}

	req := &pendingRequest{
		id:         resource.NewSlotRequestID(),
		profile:    profile,
		indefinite: indefinite,
		future:     f,
	}

	if idle := p.takeIdleFor(profile); idle != nil {
		p.fulfil(req, idle)
		p.updateRequirements()
		return
	}

	// An outstanding replacement already declares this demand.
	if p.replacements[profile] > 0 {
		p.replacements[profile]--
		if p.replacements[profile] == 0 {
			delete(p.replacements, profile)
		}
	}

	id := req.id
	req.timeout = p.scheduler.Schedule(p.config.SlotRequestTimeout, func() {
		p.exec.Execute(func() { p.timeoutRequest(id) })
	})
	p.pending = append(p.pending, req)
	log.WithFields(log.Fields{
		"job_id":          p.jobID,
		"slot_request_id": req.id,
		"profile":         profile,
	}).Debug("Slot request pending")
	p.updateRequirements()
}

func (p *Pool) offerSlot(offer resource.SlotOffer) bool {
	logger := log.WithFields(log.Fields{
		"job_id":        p.jobID,
		"allocation_id": offer.AllocationID,
		"slot_id":       offer.SlotID,
	})
	if p.closed || offer.JobID != p.jobID {
		p.metrics.OfferRejected.Inc(1)
		logger.Debug("Rejecting slot offer for closed or foreign pool")
		return false
	}
	if p.slots.Contains(offer.AllocationID) {
		// Duplicate delivery of an offer we already hold.
		return true
	}

	slot := NewAllocatedSlot(offer)
	if req := p.takePendingFor(offer.Profile); req != nil {
		p.fulfil(req, slot)
		p.metrics.OfferAccepted.Inc(1)
		logger.WithField("slot_request_id", req.id).Debug("Slot offer fulfilled request")
		return true
	}

	if profile, ok := p.takeReplacementFor(offer.Profile); ok {
		p.slots.Add(resource.NewSlotRequestID(), slot)
		p.covers[offer.AllocationID] = profile
		p.park(slot)
		p.metrics.OfferAccepted.Inc(1)
		logger.Debug("Slot offer accepted as replacement")
		return true
	}

	p.metrics.OfferRejected.Inc(1)
	logger.Debug("Rejecting slot offer without matching request")
	return false
}

// fulfil binds slot to req and completes the request.
func (p *Pool) fulfil(req *pendingRequest, slot *AllocatedSlot) {
	if req.timeout != nil {
		req.timeout.Cancel()
	}
	allocationID := slot.AllocationID()
	p.slots.Add(req.id, slot)
	p.covers[allocationID] = req.profile

	shared, err := NewSharedSlot(req.id, slot, req.indefinite, func() {
		p.sharedSlotReleased(allocationID)
	})
	if err != nil {
		log.WithError(err).WithField("allocation_id", allocationID).
			Error("Failed to wrap physical slot")
		p.metrics.RequestSlotFail.Inc(1)
		req.future.Fail(err)
		p.returnToManager(allocationID, err)
		return
	}
	p.shared[allocationID] = shared
	p.metrics.RequestSlotSuccess.Inc(1)
	p.updateGauges()
	req.future.Complete(shared)
}

// sharedSlotReleased runs when a shared slot became empty or was
// released. The physical slot is reused for a pending request if one
// matches, and handed back to the slot manager otherwise.
func (p *Pool) sharedSlotReleased(allocationID resource.AllocationID) {
	delete(p.shared, allocationID)
	physical, ok := p.slots.Get(allocationID)
	if !ok {
		// Already dropped, e.g. the worker was lost.
		p.updateGauges()
		return
	}
	slot := physical.(*AllocatedSlot)
	slot.clearPayload()

	if !p.closed {
		if req := p.takePendingFor(slot.Profile()); req != nil {
			p.metrics.SlotReused.Inc(1)
			log.WithFields(log.Fields{
				"job_id":          p.jobID,
				"allocation_id":   allocationID,
				"slot_request_id": req.id,
			}).Debug("Reusing released slot for pending request")
			p.fulfil(req, slot)
			p.updateRequirements()
			return
		}
	}
	p.returnToManager(allocationID, nil)
}

// park keeps an unclaimed slot until a request takes it or the idle
// timeout hands it back.
func (p *Pool) park(slot *AllocatedSlot) {
	allocationID := slot.AllocationID()
	p.idle[allocationID] = &idleSlot{
		slot: slot,
		timeout: p.scheduler.Schedule(p.config.IdleSlotTimeout, func() {
			p.exec.Execute(func() { p.idleTimeout(allocationID) })
		}),
	}
	p.updateGauges()
}

func (p *Pool) idleTimeout(allocationID resource.AllocationID) {
	if _, ok := p.idle[allocationID]; !ok {
		return
	}
	delete(p.idle, allocationID)
	log.WithFields(log.Fields{
		"job_id":        p.jobID,
		"allocation_id": allocationID,
	}).Debug("Idle slot timed out")
	p.returnToManager(allocationID, nil)
}

// returnToManager drops the slot from the pool, lowers the declared
// demand and then frees the slot.
func (p *Pool) returnToManager(allocationID resource.AllocationID, cause error) {
	p.slots.Remove(allocationID)
	delete(p.covers, allocationID)
	if idle, ok := p.idle[allocationID]; ok {
		idle.timeout.Cancel()
		delete(p.idle, allocationID)
	}
	p.updateRequirements()

	p.metrics.SlotFreed.Inc(1)
	p.gateway.FreeSlot(allocationID, cause).OnComplete(p.exec, func(_ struct{}, err error) {
		if err != nil {
			log.WithError(err).WithFields(log.Fields{
				"job_id":        p.jobID,
				"allocation_id": allocationID,
			}).Warn("Failed to free slot")
		}
	})
}

func (p *Pool) timeoutRequest(id resource.SlotRequestID) {
	idx := -1
	for i, req := range p.pending {
		if req.id == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	req := p.pending[idx]
	p.pending = append(p.pending[:idx], p.pending[idx+1:]...)

	err := errors.Wrapf(ErrSlotRequestTimeout,
		"request %s for %s after %v", id, req.profile, p.config.SlotRequestTimeout)
	if p.lastShortage != nil {
		err = errors.Wrapf(err, "last shortage: %v", p.lastShortage)
	}
	log.WithError(err).WithField("job_id", p.jobID).Warn("Slot request timed out")
	p.metrics.RequestSlotTimeout.Inc(1)
	req.future.Fail(err)
	p.updateRequirements()
}

func (p *Pool) slotRevoked(allocationID resource.AllocationID, cause error) {
	physical, ok := p.slots.Get(allocationID)
	if !ok {
		return
	}
	p.metrics.SlotRevoked.Inc(1)
	log.WithError(cause).WithFields(log.Fields{
		"job_id":        p.jobID,
		"allocation_id": allocationID,
	}).Warn("Slot revoked")
	// A parked slot stands for a replacement which is still owed.
	profile := p.covers[allocationID]
	_, parked := p.idle[allocationID]
	p.dropSlot(physical, errors.Wrapf(ErrSlotRevoked, "%v", cause))
	if parked && !p.closed {
		p.replacements[profile]++
	}
	p.updateRequirements()
}

// dropSlot forgets a slot without freeing it and fails its leases. A
// slot that was in use is replaced.
func (p *Pool) dropSlot(physical PhysicalSlot, cause error) {
	allocationID := physical.AllocationID()
	profile := p.covers[allocationID]
	_, inUse := p.shared[allocationID]

	p.slots.Remove(allocationID)
	delete(p.covers, allocationID)
	if idle, ok := p.idle[allocationID]; ok {
		idle.timeout.Cancel()
		delete(p.idle, allocationID)
	}
	physical.(*AllocatedSlot).releasePayload(cause)

	if inUse && !p.closed {
		p.replacements[profile]++
	}
}

func (p *Pool) workerLost(workerID resource.WorkerID, cause error) {
	slots := p.slots.GetSlotsForWorker(workerID)
	if len(slots) == 0 {
		return
	}
	p.metrics.WorkerLost.Inc(1)
	cause = errors.Wrapf(ErrWorkerLost, "worker %s: %v", workerID, cause)

	for _, physical := range slots {
		p.dropSlot(physical, cause)
	}
	log.WithFields(log.Fields{
		"job_id":       p.jobID,
		"worker_id":    workerID,
		"lost_slots":   len(slots),
		"replacements": lo.Sum(lo.Values(p.replacements)),
	}).Info("Worker lost")
	p.updateRequirements()
}

func (p *Pool) releaseJob(cause error) {
	if p.closed {
		return
	}
	p.closed = true
	log.WithError(cause).WithFields(log.Fields{
		"job_id":           p.jobID,
		"allocated_slots":  p.slots.Size(),
		"pending_requests": len(p.pending),
	}).Info("Releasing job")

	pending := p.pending
	p.pending = nil
	for _, req := range pending {
		req.timeout.Cancel()
		p.metrics.RequestSlotFail.Inc(1)
		req.future.Fail(errors.Wrapf(ErrPoolClosed, "job %s released: %v", p.jobID, cause))
	}
	p.replacements = make(map[resource.ResourceProfile]int)

	// Callbacks of the released shared slots mutate p.shared.
	for _, s := range lo.Values(p.shared) {
		s.Release(cause)
	}
	for _, allocationID := range lo.Keys(p.idle) {
		p.returnToManager(allocationID, cause)
	}
	for _, physical := range p.slots.Slots() {
		p.returnToManager(physical.AllocationID(), cause)
	}
	p.updateRequirements()
}

// takePendingFor removes and returns the oldest pending request a slot
// of the given profile satisfies.
func (p *Pool) takePendingFor(slotProfile resource.ResourceProfile) *pendingRequest {
	for i, req := range p.pending {
		if slotProfile.Matches(req.profile) {
			p.pending = append(p.pending[:i], p.pending[i+1:]...)
			return req
		}
	}
	return nil
}

func (p *Pool) takeReplacementFor(slotProfile resource.ResourceProfile) (resource.ResourceProfile, bool) {
	for profile, n := range p.replacements {
		if n > 0 && slotProfile.Matches(profile) {
			if n == 1 {
				delete(p.replacements, profile)
			} else {
				p.replacements[profile] = n - 1
			}
			return profile, true
		}
	}
	return resource.ResourceProfile{}, false
}

func (p *Pool) takeIdleFor(profile resource.ResourceProfile) *AllocatedSlot {
	for allocationID, idle := range p.idle {
		if idle.slot.Profile().Matches(profile) {
			idle.timeout.Cancel()
			delete(p.idle, allocationID)
			return idle.slot
		}
	}
	return nil
}

// updateRequirements recomputes the declared demand and pushes it to the
// slot manager if it changed.
func (p *Pool) updateRequirements() {
	counts := make(map[resource.ResourceProfile]int)
	for _, req := range p.pending {
		counts[req.profile]++
	}
	for _, profile := range p.covers {
		counts[profile]++
	}
	for profile, n := range p.replacements {
		counts[profile] += n
	}
	p.updateGauges()

	if equalCounts(counts, p.declared) {
		return
	}
	p.declared = counts

	reqs := resource.ResourceRequirements{
		JobID:        p.jobID,
		Requirements: resource.FromCounts(counts),
	}
	log.WithFields(log.Fields{
		"job_id":       p.jobID,
		"requirements": reqs,
	}).Debug("Declaring resource requirements")
	p.gateway.ProcessResourceRequirements(reqs).OnComplete(p.exec, func(_ struct{}, err error) {
		if err != nil {
			log.WithError(err).WithField("job_id", p.jobID).
				Warn("Failed to declare resource requirements")
		}
	})
}

func (p *Pool) updateGauges() {
	p.metrics.PendingRequests.Update(float64(len(p.pending)))
	p.metrics.AllocatedSlots.Update(float64(p.slots.Size()))
	p.metrics.IdleSlots.Update(float64(len(p.idle)))
}

func equalCounts(a, b map[resource.ResourceProfile]int) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}
