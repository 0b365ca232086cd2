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
	log "github.com/sirupsen/logrus"
	"github.com/tillrohrmann/flink/pkg/resource"
)

// SlotOwner takes logical slots back.
type SlotOwner interface {
	ReturnLogicalSlot(slot *LogicalSlot) error
}

// LogicalSlot is a lease drawn from a shared slot. It is not safe for
// concurrent use: release it on the goroutine owning the shared slot,
// for pools through Pool.ReleaseLogicalSlot.
type LogicalSlot struct {
	requestID  resource.SlotRequestID
	physical   PhysicalSlot
	locality   resource.Locality
	owner      SlotOwner
	indefinite bool

	released chan struct{}
	cause    error
}

func newLogicalSlot(
	requestID resource.SlotRequestID,
	physical PhysicalSlot,
	locality resource.Locality,
	owner SlotOwner,
	indefinite bool) *LogicalSlot {
	return &LogicalSlot{
		requestID:  requestID,
		physical:   physical,
		locality:   locality,
		owner:      owner,
		indefinite: indefinite,
		released:   make(chan struct{}),
	}
}

// SlotRequestID is the lease id.
func (l *LogicalSlot) SlotRequestID() resource.SlotRequestID { return l.requestID }

// AllocationID of the underlying physical slot.
func (l *LogicalSlot) AllocationID() resource.AllocationID { return l.physical.AllocationID() }

// WorkerID of the underlying physical slot.
func (l *LogicalSlot) WorkerID() resource.WorkerID { return l.physical.WorkerID() }

// Profile of the underlying physical slot.
func (l *LogicalSlot) Profile() resource.ResourceProfile { return l.physical.Profile() }

// Locality returns the placement hint.
func (l *LogicalSlot) Locality() resource.Locality { return l.locality }

// WillOccupySlotIndefinitely is inherited from the shared slot.
func (l *LogicalSlot) WillOccupySlotIndefinitely() bool { return l.indefinite }

// Released is closed once the lease is released.
func (l *LogicalSlot) Released() <-chan struct{} { return l.released }

// IsAlive reports whether the lease has not been released.
func (l *LogicalSlot) IsAlive() bool {
	select {
	case <-l.released:
		return false
	default:
		return true
	}
}

// ReleaseCause returns the cause passed to ReleaseSlot, nil while alive
// or after a regular release.
func (l *LogicalSlot) ReleaseCause() error { return l.cause }

// ReleaseSlot releases the lease and returns it to its owner. Releasing
// twice is a no-op.
func (l *LogicalSlot) ReleaseSlot(cause error) error {
	if !l.IsAlive() {
		return nil
	}
	l.cause = cause
	close(l.released)

	if err := l.owner.ReturnLogicalSlot(l); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"slot_request_id": l.requestID,
			"allocation_id":   l.AllocationID(),
		}).Error("Failed to return logical slot")
		return err
	}
	return nil
}
