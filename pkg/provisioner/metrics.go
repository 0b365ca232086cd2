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

package provisioner

import "github.com/uber-go/tally"

// Metrics of the provisioner.
type Metrics struct {
	WorkerRequested  tally.Counter
	WorkerLaunched   tally.Counter
	WorkerLaunchFail tally.Counter
	WorkerRegistered tally.Counter
	WorkerReleased   tally.Counter

	RunningWorkers tally.Gauge
}

// NewMetrics returns a new instance of provisioner.Metrics.
func NewMetrics(scope tally.Scope) *Metrics {
	failScope := scope.Tagged(map[string]string{"result": "fail"})
	workerScope := scope.SubScope("worker")
	return &Metrics{
		WorkerRequested:  workerScope.Counter("requested"),
		WorkerLaunched:   workerScope.Counter("launched"),
		WorkerLaunchFail: failScope.Counter("launch"),
		WorkerRegistered: workerScope.Counter("registered"),
		WorkerReleased:   workerScope.Counter("released"),
		RunningWorkers:   workerScope.Gauge("running"),
	}
}
