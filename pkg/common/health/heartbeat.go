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

package health

import (
	"time"

	"github.com/tillrohrmann/flink/pkg/common/leader"
	"github.com/tillrohrmann/flink/pkg/common/lifecycle"

	"code.cloudfoundry.org/clock"
	log "github.com/sirupsen/logrus"
	"github.com/uber-go/tally"
)

const _defaultHeartbeatInterval = 10 * time.Second

// Heartbeat emits a liveness gauge, and a leader gauge while the
// candidate leads, on every interval.
type Heartbeat struct {
	metrics   *Metrics
	interval  time.Duration
	candidate leader.Candidate
	clock     clock.Clock
	loop      lifecycle.Loop
}

// NewHeartbeat creates a stopped heartbeat. candidate may be nil.
func NewHeartbeat(
	parent tally.Scope,
	config Config,
	candidate leader.Candidate,
	clk clock.Clock) *Heartbeat {
	interval := config.HeartbeatInterval
	if interval <= 0 {
		interval = _defaultHeartbeatInterval
	}
	hb := &Heartbeat{
		metrics:   NewMetrics(parent.SubScope("health")),
		interval:  interval,
		candidate: candidate,
		clock:     clk,
	}
	hb.metrics.Init.Inc(1)
	return hb
}

// Start launches the heartbeat goroutine.
func (hb *Heartbeat) Start() {
	if !hb.loop.Start(hb.run) {
		log.Warn("Heartbeater is already running, no-op.")
		return
	}
	log.Info("Heartbeater started.")
}

// Stop halts the heartbeat goroutine.
func (hb *Heartbeat) Stop() {
	if !hb.loop.Stop() {
		log.Warn("Heartbeat is not running, no-op.")
		return
	}
	log.Info("Heartbeat stopped.")
}

func (hb *Heartbeat) run(stopCh <-chan struct{}) {
	ticker := hb.clock.NewTicker(hb.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stopCh:
			return
		case t := <-ticker.C():
			log.WithField("tick", t).Debug("Emitting heartbeat.")
			hb.metrics.Heartbeat.Update(1)

			// Only send a leader heartbeat metric
			// for the elected leader
			if hb.candidate != nil && hb.candidate.IsLeader() {
				hb.metrics.Leader.Update(1)
			} else {
				hb.metrics.Leader.Update(0)
			}
		}
	}
}
