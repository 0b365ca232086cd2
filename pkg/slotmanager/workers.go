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
	log "github.com/sirupsen/logrus"
	"github.com/tillrohrmann/flink/pkg/resource"
)

func (m *Manager) registerWorker(workerID resource.WorkerID, report resource.SlotReport) {
	if pw := m.takePendingWorker(workerID); pw != nil {
		log.WithFields(log.Fields{
			"worker_id": workerID,
			"request":   pw.seq,
		}).Debug("Worker fulfils pending request")
	}

	w := &worker{id: workerID}
	for _, status := range report {
		if status.SlotID.WorkerID != workerID {
			log.WithFields(log.Fields{
				"worker_id": workerID,
				"slot_id":   status.SlotID,
			}).Error("Worker reported a slot of another worker")
			continue
		}
		m.slots.addSlot(status)
		w.slots = append(w.slots, status.SlotID)
	}
	// Added last so the listener does not see a half registered worker.
	m.workers[workerID] = w

	m.metrics.WorkerRegistered.Inc(1)
	log.WithFields(log.Fields{
		"worker_id": workerID,
		"slots":     len(w.slots),
	}).Info("Worker registered")

	m.updateWorkerIdleness(workerID)
	m.checkResourceRequirements()
}

// reconcile aligns the slot states of a worker with its report. The
// worker is the source of truth for allocations.
func (m *Manager) reconcile(workerID resource.WorkerID, report resource.SlotReport) {
	w := m.workers[workerID]
	changed := false
	for _, status := range report {
		if status.SlotID.WorkerID != workerID {
			continue
		}
		slot, ok := m.slots.get(status.SlotID)
		if !ok {
			m.slots.addSlot(status)
			w.slots = append(w.slots, status.SlotID)
			changed = true
			continue
		}

		switch {
		case status.AllocationID == "":
			// A PENDING slot is still waiting for the job to answer.
			if slot.State() == SlotStateAllocated {
				m.slots.transition(slot, SlotStateFree, "", "")
				changed = true
			}
		case status.AllocationID == slot.AllocationID():
			if slot.State() == SlotStatePending {
				m.slots.transition(slot, SlotStateAllocated, status.JobID, status.AllocationID)
			}
		default:
			if slot.State() != SlotStateFree {
				m.slots.transition(slot, SlotStateFree, "", "")
			}
			m.slots.transition(slot, SlotStateAllocated, status.JobID, status.AllocationID)
			changed = true
		}
	}
	m.updateWorkerIdleness(workerID)
	if changed {
		log.WithField("worker_id", workerID).Debug("Slot report reconciled")
		m.checkResourceRequirements()
	}
}

// removeWorker drops a worker and its slots and tells the jobs which
// held any of them.
func (m *Manager) removeWorker(w *worker, cause error) {
	if w.idleTimeout != nil {
		w.idleTimeout.Cancel()
		w.idleTimeout = nil
	}
	delete(m.workers, w.id)

	affected := make(map[resource.JobID]struct{})
	for _, id := range w.slots {
		if slot, ok := m.slots.get(id); ok && slot.State() != SlotStateFree {
			affected[slot.JobID()] = struct{}{}
		}
		m.slots.removeSlot(id)
	}
	for _, jobID := range sortedJobIDs(affected) {
		if target, ok := m.jobs[jobID]; ok {
			target.NotifyWorkerLost(w.id, cause)
		}
	}
	m.updateGauges()
}

func (m *Manager) onSlotStatusChange(
	slot *TaskManagerSlot,
	previous SlotState,
	current SlotState,
	jobID resource.JobID) {
	m.tracker.NotifySlotStatusChange(previous, current, jobID, slot.Profile())
	m.updateWorkerIdleness(slot.WorkerID())
}

func (m *Manager) isIdle(w *worker) bool {
	for _, id := range w.slots {
		if slot, ok := m.slots.get(id); ok && slot.State() != SlotStateFree {
			return false
		}
	}
	return true
}

// updateWorkerIdleness starts the idle timer of a worker whose slots are
// all free, and stops it otherwise.
func (m *Manager) updateWorkerIdleness(workerID resource.WorkerID) {
	w, ok := m.workers[workerID]
	if !ok {
		return
	}
	if m.isIdle(w) {
		if w.idleTimeout == nil {
			w.idleGen++
			gen := w.idleGen
			w.idleTimeout = m.schedule(m.config.IdleWorkerTimeout, func() {
				m.idleTimedOut(w, gen)
			})
		}
		return
	}
	if w.idleTimeout != nil {
		w.idleTimeout.Cancel()
		w.idleTimeout = nil
	}
}

// idleTimedOut releases w unless the timer that fired is no longer the
// armed one: the worker re-registered, or went busy and idle again
// while the callback was queued.
func (m *Manager) idleTimedOut(w *worker, gen int) {
	workerID := w.id
	if current, ok := m.workers[workerID]; !ok || current != w ||
		w.idleTimeout == nil || w.idleGen != gen {
		return
	}
	w.idleTimeout = nil
	if !m.isIdle(w) {
		return
	}

	redundant := m.config.RedundantWorkers * m.config.SlotsPerWorker
	if m.slots.numFree()-len(w.slots) < redundant {
		log.WithFields(log.Fields{
			"worker_id":       workerID,
			"free_slots":      m.slots.numFree(),
			"redundant_slots": redundant,
		}).Debug("Keeping idle worker for redundancy")
		m.updateWorkerIdleness(workerID)
		return
	}

	m.metrics.WorkerIdleReleased.Inc(1)
	log.WithField("worker_id", workerID).Info("Releasing idle worker")
	m.removeWorker(w, ErrWorkerIdle)
	m.actions.ReleaseWorker(workerID, ErrWorkerIdle)
}

// utilization is the fraction of a worker's slots which are not free.
func (m *Manager) utilization(workerID resource.WorkerID) float64 {
	w, ok := m.workers[workerID]
	if !ok || len(w.slots) == 0 {
		return 0
	}
	busy := 0
	for _, id := range w.slots {
		if slot, ok := m.slots.get(id); ok && slot.State() != SlotStateFree {
			busy++
		}
	}
	return float64(busy) / float64(len(w.slots))
}
