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

import "github.com/uber-go/tally"

// Metrics of a slot pool.
type Metrics struct {
	RequestSlot        tally.Counter
	RequestSlotSuccess tally.Counter
	RequestSlotTimeout tally.Counter
	RequestSlotFail    tally.Counter

	OfferAccepted tally.Counter
	OfferRejected tally.Counter

	SlotReused  tally.Counter
	SlotFreed   tally.Counter
	SlotRevoked tally.Counter
	WorkerLost  tally.Counter

	PendingRequests tally.Gauge
	AllocatedSlots  tally.Gauge
	IdleSlots       tally.Gauge
}

// NewMetrics returns a new instance of slotpool.Metrics.
func NewMetrics(scope tally.Scope) *Metrics {
	successScope := scope.Tagged(map[string]string{"result": "success"})
	failScope := scope.Tagged(map[string]string{"result": "fail"})
	timeoutScope := scope.Tagged(map[string]string{"result": "timeout"})
	apiScope := scope.SubScope("api")
	offerScope := scope.SubScope("offer")
	slotScope := scope.SubScope("slot")

	return &Metrics{
		RequestSlot:        apiScope.Counter("request_slot"),
		RequestSlotSuccess: successScope.Counter("request_slot"),
		RequestSlotTimeout: timeoutScope.Counter("request_slot"),
		RequestSlotFail:    failScope.Counter("request_slot"),

		OfferAccepted: offerScope.Counter("accepted"),
		OfferRejected: offerScope.Counter("rejected"),

		SlotReused:  slotScope.Counter("reused"),
		SlotFreed:   slotScope.Counter("freed"),
		SlotRevoked: slotScope.Counter("revoked"),
		WorkerLost:  slotScope.Counter("worker_lost"),

		PendingRequests: scope.Gauge("pending_requests"),
		AllocatedSlots:  scope.Gauge("allocated_slots"),
		IdleSlots:       scope.Gauge("idle_slots"),
	}
}
