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
	"github.com/uber-go/tally"
)

// Metrics is the struct containing all the counters that track internal
// state of the slot service.
type Metrics struct {
	SubmitJobAPI  tally.Counter
	SubmitJob     tally.Counter
	SubmitJobFail tally.Counter

	CancelJobAPI  tally.Counter
	CancelJob     tally.Counter
	CancelJobFail tally.Counter

	AllocateSlotAPI  tally.Counter
	AllocateSlot     tally.Counter
	AllocateSlotFail tally.Counter

	ReleaseSlotAPI  tally.Counter
	ReleaseSlot     tally.Counter
	ReleaseSlotFail tally.Counter

	RegisterWorkerAPI  tally.Counter
	RegisterWorkerFail tally.Counter

	UnregisterWorkerAPI  tally.Counter
	UnregisterWorkerFail tally.Counter

	ReportSlotStatusAPI     tally.Counter
	ReportSlotStatusUnknown tally.Counter

	QueryAPI  tally.Counter
	QueryFail tally.Counter

	ResourceShortage tally.Counter

	Jobs   tally.Gauge
	Leases tally.Gauge
}

// NewMetrics returns a new Metrics struct, with all metrics initialized
// and rooted at the given tally.Scope
func NewMetrics(scope tally.Scope) *Metrics {
	successScope := scope.Tagged(map[string]string{"result": "success"})
	failScope := scope.Tagged(map[string]string{"result": "fail"})
	apiScope := scope.SubScope("api")

	return &Metrics{
		SubmitJobAPI:  apiScope.Counter("submit_job"),
		SubmitJob:     successScope.Counter("submit_job"),
		SubmitJobFail: failScope.Counter("submit_job"),

		CancelJobAPI:  apiScope.Counter("cancel_job"),
		CancelJob:     successScope.Counter("cancel_job"),
		CancelJobFail: failScope.Counter("cancel_job"),

		AllocateSlotAPI:  apiScope.Counter("allocate_slot"),
		AllocateSlot:     successScope.Counter("allocate_slot"),
		AllocateSlotFail: failScope.Counter("allocate_slot"),

		ReleaseSlotAPI:  apiScope.Counter("release_slot"),
		ReleaseSlot:     successScope.Counter("release_slot"),
		ReleaseSlotFail: failScope.Counter("release_slot"),

		RegisterWorkerAPI:  apiScope.Counter("register_worker"),
		RegisterWorkerFail: failScope.Counter("register_worker"),

		UnregisterWorkerAPI:  apiScope.Counter("unregister_worker"),
		UnregisterWorkerFail: failScope.Counter("unregister_worker"),

		ReportSlotStatusAPI:     apiScope.Counter("report_slot_status"),
		ReportSlotStatusUnknown: failScope.Counter("report_slot_status"),

		QueryAPI:  apiScope.Counter("query"),
		QueryFail: failScope.Counter("query"),

		ResourceShortage: scope.Counter("resource_shortage"),

		Jobs:   scope.Gauge("jobs"),
		Leases: scope.Gauge("leases"),
	}
}
