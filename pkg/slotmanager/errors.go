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

import "github.com/pkg/errors"

var (
	// ErrWorkerRequestTimeout is reported to jobs whose missing slots a
	// requested worker did not provide in time.
	ErrWorkerRequestTimeout = errors.New("worker request timed out")

	// ErrMaxSlotsExceeded is reported to jobs whose missing slots would
	// exceed the maximum number of slots.
	ErrMaxSlotsExceeded = errors.New("maximum number of slots reached")

	// ErrProfileUnfulfillable is reported when no started worker could
	// offer a slot of the required profile.
	ErrProfileUnfulfillable = errors.New("required profile exceeds the worker slot profile")

	// ErrUnknownAllocation is returned when freeing a slot the manager
	// does not know.
	ErrUnknownAllocation = errors.New("unknown allocation")

	// ErrUnknownWorker is returned for a worker that is not registered.
	ErrUnknownWorker = errors.New("unknown worker")

	// ErrWorkerIdle is the cause passed when an idle worker is released.
	ErrWorkerIdle = errors.New("worker was idle")

	// ErrOfferRevoked is the cause passed when an accepted offer came
	// back after its slot went to someone else.
	ErrOfferRevoked = errors.New("slot offer revoked")

	// ErrNotStarted is returned while the manager is not started.
	ErrNotStarted = errors.New("slot manager is not started")
)
