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

package scheduler

import (
	"github.com/uber-go/tally"
)

type queueMetrics struct {
	length   tally.Gauge
	popDelay tally.Timer
}

func newQueueMetrics(scope tally.Scope) *queueMetrics {
	queueScope := scope.SubScope("queue")
	return &queueMetrics{
		length:   queueScope.Gauge("length"),
		popDelay: queueScope.Timer("pop_delay"),
	}
}

type schedulerMetrics struct {
	scheduled tally.Counter
	fired     tally.Counter
	cancelled tally.Counter
}

func newSchedulerMetrics(scope tally.Scope) *schedulerMetrics {
	return &schedulerMetrics{
		scheduled: scope.Counter("scheduled"),
		fired:     scope.Counter("fired"),
		cancelled: scope.Counter("cancelled"),
	}
}
