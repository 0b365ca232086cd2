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
)

var (
	// ErrSharedSlotReleased is returned when leasing from a released
	// shared slot.
	ErrSharedSlotReleased = errors.New("shared slot is already released")

	// ErrUnknownLogicalSlot is returned when a lease is returned to a
	// shared slot which does not hold it.
	ErrUnknownLogicalSlot = errors.New("logical slot is not held by this shared slot")

	// ErrPayloadAssigned is returned when a physical slot already has a
	// payload.
	ErrPayloadAssigned = errors.New("physical slot already carries a payload")

	// ErrPoolClosed is returned by a pool whose job was released.
	ErrPoolClosed = errors.New("slot pool is closed")

	// ErrSlotRequestTimeout fails a slot request no offer fulfilled in
	// time.
	ErrSlotRequestTimeout = errors.New("slot request timed out")

	// ErrWorkerLost is the release cause of slots whose worker went away.
	ErrWorkerLost = errors.New("worker lost")

	// ErrSlotRevoked is the release cause of slots the slot manager took
	// back.
	ErrSlotRevoked = errors.New("slot revoked")
)
