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
	"github.com/pkg/errors"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"github.com/tillrohrmann/flink/pkg/resource"
)

// checkResourceRequirements matches the missing resources of every job
// against free slots, then against the capacity of pending workers, and
// requests workers for the rest.
func (m *Manager) checkResourceRequirements() {
	if !m.started {
		return
	}
	m.metrics.RequirementsChecks.Inc(1)

	missing := m.tracker.GetMissingResources()
	slotProfile := m.config.slotProfile()

	// Pending workers are expected to offer slotProfile slots.
	capacity := make(map[*pendingWorker]int, len(m.pendingWorkers))
	for _, pw := range m.pendingWorkers {
		capacity[pw] = m.config.SlotsPerWorker
	}

	deficit := make(map[resource.JobID]int)
	totalMissing, totalDeficit := 0, 0
	for _, jobID := range sortedJobIDs(missing) {
		target, ok := m.jobs[jobID]
		if !ok {
			log.WithField("job_id", jobID).
				Debug("Skipping requirements of a job without offer target")
			continue
		}
		for _, profile := range sortedProfiles(missing[jobID]) {
			for n := missing[jobID][profile]; n > 0; n-- {
				totalMissing++
				if slot := m.strategy(profile, m.slots.freeSlots(), m.utilization); slot != nil {
					m.allocateSlot(slot, jobID, target)
					continue
				}
				if !slotProfile.Matches(profile) {
					m.reportUnfulfillable(jobID, errors.Wrapf(ErrProfileUnfulfillable,
						"required %s, worker slot %s", profile, slotProfile))
					break
				}
				if pw := m.reservePendingCapacity(capacity); pw != nil {
					pw.jobs[jobID] = struct{}{}
					continue
				}
				deficit[jobID]++
				totalDeficit++
			}
		}
	}
	m.metrics.MissingSlots.Update(float64(totalMissing))

	if totalDeficit > 0 {
		spare := m.slots.numFree() + lo.Sum(lo.Values(capacity))
		m.requestWorkers(deficit, totalDeficit, spare)
	}
	m.updateGauges()
}

func (m *Manager) reservePendingCapacity(capacity map[*pendingWorker]int) *pendingWorker {
	for _, pw := range m.pendingWorkers {
		if capacity[pw] > 0 {
			capacity[pw]--
			return pw
		}
	}
	return nil
}

// requestWorkers starts enough workers for the deficit plus the
// redundant margin not already covered by spare slots.
func (m *Manager) requestWorkers(deficit map[resource.JobID]int, total int, spare int) {
	spw := m.config.SlotsPerWorker
	needed := total + max(0, m.config.RedundantWorkers*spw-spare)
	numWorkers := (needed + spw - 1) / spw

	jobs := sortedJobIDs(deficit)
	for i := 0; i < numWorkers; i++ {
		if m.config.MaxSlots > 0 && m.totalSlots()+spw > m.config.MaxSlots {
			log.WithFields(log.Fields{
				"max_slots":   m.config.MaxSlots,
				"total_slots": m.totalSlots(),
			}).Warn("Not requesting workers, maximum number of slots reached")
			for _, jobID := range jobs {
				m.reportUnfulfillable(jobID, errors.Wrapf(ErrMaxSlotsExceeded,
					"max slots %d", m.config.MaxSlots))
			}
			return
		}

		covered := make(map[resource.JobID]struct{})
		for free := spw; free > 0 && len(jobs) > 0; {
			jobID := jobs[0]
			covered[jobID] = struct{}{}
			take := min(free, deficit[jobID])
			deficit[jobID] -= take
			free -= take
			if deficit[jobID] == 0 {
				jobs = jobs[1:]
			}
		}
		m.requestWorker(covered)
	}
}

func (m *Manager) totalSlots() int {
	return m.slots.size() + len(m.pendingWorkers)*m.config.SlotsPerWorker
}

func (m *Manager) requestWorker(jobs map[resource.JobID]struct{}) {
	m.nextWorkerSeq++
	pw := &pendingWorker{
		seq:  m.nextWorkerSeq,
		jobs: jobs,
	}
	pw.timeout = m.schedule(m.config.WorkerRequestTimeout, func() {
		m.workerRequestTimedOut(pw)
	})
	m.pendingWorkers = append(m.pendingWorkers, pw)
	m.metrics.WorkerRequested.Inc(1)
	log.WithFields(log.Fields{
		"request": pw.seq,
		"spec":    m.config.DefaultWorker,
		"jobs":    lo.Keys(jobs),
	}).Info("Requesting worker")

	m.actions.RequestWorker(m.config.DefaultWorker).OnComplete(m.exec,
		func(workerID resource.WorkerID, err error) {
			m.workerRequestCompleted(pw, workerID, err)
		})
}

func (m *Manager) workerRequestCompleted(pw *pendingWorker, workerID resource.WorkerID, err error) {
	if !m.isPending(pw) {
		if err == nil {
			log.WithField("worker_id", workerID).
				Info("Worker started after its request was given up")
		}
		return
	}
	if err != nil {
		m.metrics.WorkerRequestFail.Inc(1)
		log.WithError(err).WithField("request", pw.seq).Warn("Worker request failed")
		m.failWorkerRequest(pw, errors.Wrap(err, "worker request failed"))
		return
	}
	pw.workerID = workerID
	log.WithFields(log.Fields{
		"request":   pw.seq,
		"worker_id": workerID,
	}).Debug("Worker started, waiting for registration")
}

func (m *Manager) workerRequestTimedOut(pw *pendingWorker) {
	if !m.isPending(pw) {
		return
	}
	m.metrics.WorkerRequestTimeout.Inc(1)
	cause := errors.Wrapf(ErrWorkerRequestTimeout,
		"no worker registered within %s", m.config.WorkerRequestTimeout)
	log.WithField("request", pw.seq).Warn("Worker request timed out")
	m.failWorkerRequest(pw, cause)
	if pw.workerID != "" {
		m.actions.ReleaseWorker(pw.workerID, cause)
	}
}

// failWorkerRequest drops a pending worker and tells each job it was
// meant for, and which still misses resources, about the failure. The
// requirements stay in place for the next check.
func (m *Manager) failWorkerRequest(pw *pendingWorker, cause error) {
	m.removePending(pw)
	pw.timeout.Cancel()

	missing := m.tracker.GetMissingResources()
	for _, jobID := range sortedJobIDs(pw.jobs) {
		if _, ok := missing[jobID]; !ok {
			continue
		}
		m.reportUnfulfillable(jobID, cause)
	}
	m.updateGauges()
}

// reportUnfulfillable tells a job once per requirements update that its
// requirements cannot be met.
func (m *Manager) reportUnfulfillable(jobID resource.JobID, cause error) {
	if _, ok := m.unfulfillable[jobID]; ok {
		return
	}
	target, ok := m.jobs[jobID]
	if !ok {
		return
	}
	m.unfulfillable[jobID] = struct{}{}
	m.metrics.NotEnoughResources.Inc(1)
	log.WithError(cause).WithField("job_id", jobID).Warn("Not enough resources")
	target.NotifyNotEnoughResources(jobID, cause)
}

func (m *Manager) isPending(pw *pendingWorker) bool {
	return lo.Contains(m.pendingWorkers, pw)
}

func (m *Manager) removePending(pw *pendingWorker) {
	m.pendingWorkers = lo.Without(m.pendingWorkers, pw)
}

// takePendingWorker returns the pending worker a registering worker
// fulfils: the one started under that id, or else the oldest one whose
// id is not known yet.
func (m *Manager) takePendingWorker(workerID resource.WorkerID) *pendingWorker {
	pw, ok := lo.Find(m.pendingWorkers, func(pw *pendingWorker) bool {
		return pw.workerID == workerID
	})
	if !ok {
		pw, ok = lo.Find(m.pendingWorkers, func(pw *pendingWorker) bool {
			return pw.workerID == ""
		})
	}
	if !ok {
		return nil
	}
	m.removePending(pw)
	pw.timeout.Cancel()
	return pw
}

// allocateSlot offers a free slot to a job. The slot is PENDING until
// the job answers or the offer times out.
func (m *Manager) allocateSlot(slot *TaskManagerSlot, jobID resource.JobID, target SlotOfferTarget) {
	allocationID := resource.NewAllocationID()
	m.slots.transition(slot, SlotStatePending, jobID, allocationID)

	slotID := slot.SlotID()
	slot.offerTimeout = m.schedule(m.config.SlotRequestTimeout, func() {
		m.offerTimedOut(slotID, allocationID)
	})

	offer := resource.SlotOffer{
		AllocationID: allocationID,
		SlotID:       slotID,
		WorkerID:     slot.WorkerID(),
		Profile:      slot.Profile(),
		JobID:        jobID,
	}
	m.metrics.SlotOffered.Inc(1)
	log.WithFields(log.Fields{
		"job_id":        jobID,
		"slot_id":       slotID,
		"allocation_id": allocationID,
	}).Debug("Offering slot")

	target.OfferSlot(offer).OnComplete(m.exec, func(accepted bool, err error) {
		m.offerCompleted(offer, target, accepted, err)
	})
}

func (m *Manager) offerCompleted(
	offer resource.SlotOffer,
	target SlotOfferTarget,
	accepted bool,
	err error) {
	slot, ok := m.slots.get(offer.SlotID)
	if !ok {
		log.WithField("slot_id", offer.SlotID).Debug("Offer answered for a removed slot")
		if err == nil && accepted {
			m.revokeOffer(offer, target)
		}
		return
	}
	current := slot.State() == SlotStatePending && slot.AllocationID() == offer.AllocationID
	_, freed := m.freedPending[offer.AllocationID]
	delete(m.freedPending, offer.AllocationID)

	if err == nil && accepted {
		m.metrics.SlotOfferAccepted.Inc(1)
		switch {
		case current, slot.State() == SlotStateFree && !freed:
			m.slots.transition(slot, SlotStateAllocated, offer.JobID, offer.AllocationID)
		case slot.State() == SlotStateAllocated && slot.AllocationID() == offer.AllocationID:
			// Answer to an offer the manager already counts as taken.
		default:
			m.revokeOffer(offer, target)
		}
		return
	}

	m.metrics.SlotOfferRejected.Inc(1)
	log.WithError(err).WithFields(log.Fields{
		"slot_id":       offer.SlotID,
		"allocation_id": offer.AllocationID,
		"job_id":        offer.JobID,
	}).Debug("Slot offer rejected")
	if current {
		m.slots.transition(slot, SlotStateFree, "", "")
		m.scheduleRequirementsCheck()
	}
}

// revokeOffer takes back a slot the job accepted after the manager gave
// it up. The job must not keep it.
func (m *Manager) revokeOffer(offer resource.SlotOffer, target SlotOfferTarget) {
	m.metrics.SlotOfferRevoked.Inc(1)
	log.WithFields(log.Fields{
		"slot_id":       offer.SlotID,
		"allocation_id": offer.AllocationID,
		"job_id":        offer.JobID,
	}).Warn("Slot offer accepted after the slot moved on, revoking")
	target.NotifySlotRevoked(offer.AllocationID, errors.Wrapf(ErrOfferRevoked,
		"allocation %s on slot %s", offer.AllocationID, offer.SlotID))
}

func (m *Manager) offerTimedOut(slotID resource.SlotID, allocationID resource.AllocationID) {
	slot, ok := m.slots.get(slotID)
	if !ok || slot.State() != SlotStatePending || slot.AllocationID() != allocationID {
		return
	}
	m.metrics.SlotOfferTimeout.Inc(1)
	log.WithFields(log.Fields{
		"slot_id":       slotID,
		"allocation_id": allocationID,
		"job_id":        slot.JobID(),
	}).Warn("Slot offer timed out")
	m.slots.transition(slot, SlotStateFree, "", "")
	m.scheduleRequirementsCheck()
}

// scheduleRequirementsCheck runs a check after the configured delay.
// At most one delayed check is outstanding.
func (m *Manager) scheduleRequirementsCheck() {
	if m.scheduledCheck != nil {
		return
	}
	m.scheduledCheck = m.schedule(m.config.RequirementsCheckDelay, func() {
		m.scheduledCheck = nil
		m.checkResourceRequirements()
	})
}
