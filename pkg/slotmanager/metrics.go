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

import "github.com/uber-go/tally"

// Metrics of the slot manager.
type Metrics struct {
	RequirementsUpdated tally.Counter
	RequirementsChecks  tally.Counter

	SlotOffered       tally.Counter
	SlotOfferAccepted tally.Counter
	SlotOfferRejected tally.Counter
	SlotOfferTimeout  tally.Counter
	SlotOfferRevoked  tally.Counter
	SlotFreed         tally.Counter

	WorkerRequested      tally.Counter
	WorkerRequestFail    tally.Counter
	WorkerRequestTimeout tally.Counter
	WorkerRegistered     tally.Counter
	WorkerUnregistered   tally.Counter
	WorkerIdleReleased   tally.Counter

	NotEnoughResources tally.Counter

	RegisteredWorkers tally.Gauge
	PendingWorkers    tally.Gauge
	TotalSlots        tally.Gauge
	FreeSlots         tally.Gauge
	MissingSlots      tally.Gauge
}

// NewMetrics returns a new instance of slotmanager.Metrics.
func NewMetrics(scope tally.Scope) *Metrics {
	successScope := scope.Tagged(map[string]string{"result": "success"})
	failScope := scope.Tagged(map[string]string{"result": "fail"})
	timeoutScope := scope.Tagged(map[string]string{"result": "timeout"})
	apiScope := scope.SubScope("api")
	offerScope := scope.SubScope("offer")
	workerScope := scope.SubScope("worker")

	return &Metrics{
		RequirementsUpdated: apiScope.Counter("process_resource_requirements"),
		RequirementsChecks:  scope.Counter("requirements_checks"),

		SlotOffered:       offerScope.Counter("sent"),
		SlotOfferAccepted: successScope.Counter("slot_offer"),
		SlotOfferRejected: failScope.Counter("slot_offer"),
		SlotOfferTimeout:  timeoutScope.Counter("slot_offer"),
		SlotOfferRevoked:  offerScope.Counter("revoked"),
		SlotFreed:         apiScope.Counter("free_slot"),

		WorkerRequested:      workerScope.Counter("requested"),
		WorkerRequestFail:    failScope.Counter("worker_request"),
		WorkerRequestTimeout: timeoutScope.Counter("worker_request"),
		WorkerRegistered:     workerScope.Counter("registered"),
		WorkerUnregistered:   workerScope.Counter("unregistered"),
		WorkerIdleReleased:   workerScope.Counter("idle_released"),

		NotEnoughResources: scope.Counter("not_enough_resources"),

		RegisteredWorkers: workerScope.Gauge("registered_count"),
		PendingWorkers:    workerScope.Gauge("pending_count"),
		TotalSlots:        scope.Gauge("total_slots"),
		FreeSlots:         scope.Gauge("free_slots"),
		MissingSlots:      scope.Gauge("missing_slots"),
	}
}
