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

package leader

import (
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/uber-go/tally"
)

// staticCandidate is the leader for as long as it runs. It serves single
// instance deployments.
type staticCandidate struct {
	sync.Mutex
	metrics    electionMetrics
	nomination Nomination
	leader     bool
}

// NewStaticCandidate returns a candidate which gains leadership on Start.
func NewStaticCandidate(parent tally.Scope, nomination Nomination) Candidate {
	return &staticCandidate{
		metrics:    newElectionMetrics(parent.SubScope("election"), nomination.GetID()),
		nomination: nomination,
	}
}

func (c *staticCandidate) Start() error {
	c.Lock()
	defer c.Unlock()
	if c.leader {
		return nil
	}
	c.metrics.Start.Inc(1)
	c.metrics.Running.Update(1)
	return c.gain()
}

func (c *staticCandidate) gain() error {
	if err := c.nomination.GainedLeadershipCallback(); err != nil {
		return err
	}
	c.leader = true
	c.metrics.GainedLeadership.Inc(1)
	c.metrics.IsLeader.Update(1)
	log.WithField("id", c.nomination.GetID()).Info("Leadership gained")
	return nil
}

func (c *staticCandidate) lose() error {
	c.leader = false
	c.metrics.LostLeadership.Inc(1)
	c.metrics.IsLeader.Update(0)
	log.WithField("id", c.nomination.GetID()).Info("Leadership lost")
	return c.nomination.LostLeadershipCallback()
}

func (c *staticCandidate) Stop() error {
	c.Lock()
	defer c.Unlock()
	if c.leader {
		if err := c.lose(); err != nil {
			log.WithError(err).Error("LostLeadershipCallback failed")
		}
		c.metrics.Stop.Inc(1)
		c.metrics.Running.Update(0)
	}
	return c.nomination.ShutDownCallback()
}

func (c *staticCandidate) IsLeader() bool {
	c.Lock()
	defer c.Unlock()
	return c.leader
}

// Resign drops and immediately regains leadership.
func (c *staticCandidate) Resign() {
	c.Lock()
	defer c.Unlock()
	if !c.leader {
		return
	}
	c.metrics.Resigned.Inc(1)
	if err := c.lose(); err != nil {
		log.WithError(err).Error("LostLeadershipCallback failed")
	}
	if err := c.gain(); err != nil {
		log.WithError(err).Error("GainedLeadershipCallback failed")
	}
}
