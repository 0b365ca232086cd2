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
	"errors"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/docker/libkv/store"
	"github.com/docker/libkv/store/zookeeper"
	log "github.com/sirupsen/logrus"
	"github.com/tillrohrmann/flink/pkg/common/backoff"
	"github.com/uber-go/tally"
	"go.uber.org/atomic"
)

const (
	// ttl of the leader lock value.
	ttl = 5 * time.Second

	// Znode Ephemeral Timeout: timeout after which a sequential ephemeral node
	// used for leader election would disappear if heartbeat failing due to
	// network loss between the host and ZK.
	znodeEphemeralTimeout = 5 * time.Second

	// zkConnErrRetryMin and zkConnErrRetryMax bound the wait before
	// campaigning again after a connection error.
	zkConnErrRetryMin = time.Second
	zkConnErrRetryMax = 30 * time.Second

	// _metricsUpdateTick is the period between consecutive emissions of leader
	// election metrics.
	_metricsUpdateTick = 10 * time.Second
)

// ElectionConfig is config related to leader election of this service.
type ElectionConfig struct {
	// A list of ZK servers to use for leader election. Without servers
	// the process is always the leader.
	ZKServers []string `yaml:"zk_servers"`

	// The root path in ZK to use for role leader election.
	Root string `yaml:"root"`
}

// election campaigns for a lock in the key value store. Holding the lock
// is holding the leadership.
type election struct {
	sync.Mutex
	metrics    electionMetrics
	running    bool
	leader     atomic.Bool
	role       string
	key        string
	client     store.Store
	nomination Nomination
	stopChan   chan struct{}
	resignChan chan struct{}
}

// NewCandidate creates a candidate for role. It campaigns in ZooKeeper
// if servers are configured and is the leader right away otherwise.
func NewCandidate(
	cfg ElectionConfig,
	parent tally.Scope,
	role string,
	nomination Nomination) (Candidate, error) {
	if role == "" {
		return nil, errors.New("You need to specify a role to campaign " +
			"for that isnt the empty string")
	}
	if len(cfg.ZKServers) == 0 {
		log.WithField("role", role).Info("No election servers, using a static candidate")
		return NewStaticCandidate(parent, nomination), nil
	}

	client, err := zookeeper.New(
		cfg.ZKServers,
		&store.Config{ConnectionTimeout: znodeEphemeralTimeout},
	)
	if err != nil {
		return nil, err
	}
	return newElection(client, leaderZkPath(cfg.Root, role), parent, role, nomination), nil
}

func newElection(
	client store.Store,
	key string,
	parent tally.Scope,
	role string,
	nomination Nomination) *election {
	log.WithFields(log.Fields{
		"id":          nomination.GetID(),
		"role":        role,
		"leader_path": key,
	}).Debug("Creating new Candidate")

	hostname, err := os.Hostname()
	if err != nil {
		log.WithError(err).Fatal("failed to get hostname")
	}
	return &election{
		metrics:    newElectionMetrics(parent.SubScope("election"), hostname),
		role:       role,
		key:        key,
		client:     client,
		nomination: nomination,
		stopChan:   make(chan struct{}),
		resignChan: make(chan struct{}, 1),
	}
}

// Start begins running election for leadership and calls callbacks when caller
// gain/lose leadership.
// NOTE: this handles connection errors and retries, and runs until you
// call Stop().
func (el *election) Start() error {
	el.Lock()
	defer el.Unlock()

	if el.running {
		return errors.New("Already running election")
	}
	el.running = true
	el.metrics.Start.Inc(1)
	el.metrics.Running.Update(1)

	log.WithFields(log.Fields{"role": el.role}).Info("Joining election")

	go el.campaign()
	go el.updateLeaderElectionMetrics(_metricsUpdateTick)

	return nil
}

// updateLeaderElectionMetrics emits leader election metrics at constant
// interval.
func (el *election) updateLeaderElectionMetrics(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-el.stopChan:
			log.Info("Stopped leader election metrics emission")
			return
		case <-ticker.C:
			if el.IsLeader() {
				el.metrics.IsLeader.Update(1)
			} else {
				el.metrics.IsLeader.Update(0)
			}
		}
	}
}

// campaign will repeatedly call runOnce(), and retry when errors are
// encountered.
func (el *election) campaign() {
	retrier := backoff.NewRetrier(
		backoff.NewRetryPolicy(0, zkConnErrRetryMin, zkConnErrRetryMax))
	for {
		select {
		case <-el.stopChan:
			log.Info("Stopped running election")
			return
		default:
		}

		if err := el.runOnce(); err != nil {
			delay := retrier.NextBackOff()
			el.metrics.Error.Inc(1)
			log.WithError(err).WithFields(log.Fields{"role": el.role}).
				WithField("retry_in", delay).
				Error("Failure running election; retrying")
			select {
			case <-el.stopChan:
				return
			case <-time.After(delay):
			}
			continue
		}
		retrier.Reset()
	}
}

// runOnce blocks until this node holds the lock, then until it loses,
// resigns or stops.
func (el *election) runOnce() error {
	lock, err := el.client.NewLock(el.key, &store.LockOptions{
		Value: []byte(el.nomination.GetID()),
		TTL:   ttl,
	})
	if err != nil {
		return err
	}
	lostCh, err := lock.Lock(el.stopChan)
	if err != nil {
		return err
	}
	select {
	case <-el.stopChan:
		return lock.Unlock()
	default:
	}

	log.WithFields(log.Fields{
		"id":   el.nomination.GetID(),
		"role": el.role,
	}).Info("Leadership gained")
	el.leader.Store(true)
	el.metrics.GainedLeadership.Inc(1)
	el.metrics.IsLeader.Update(1)

	if err := el.nomination.GainedLeadershipCallback(); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"id":   el.nomination.GetID(),
			"role": el.role,
		}).Error("GainedLeadershipCallback failed")
		el.unlock(lock)
	} else {
		select {
		case <-lostCh:
		case <-el.resignChan:
			el.unlock(lock)
		case <-el.stopChan:
			el.unlock(lock)
		}
	}

	el.leader.Store(false)
	if err := el.declareLostLeadership(); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"id":   el.nomination.GetID(),
			"role": el.role,
		}).Error("LostLeadershipCallback failed")
	}
	return nil
}

func (el *election) unlock(lock store.Locker) {
	if err := lock.Unlock(); err != nil {
		log.WithError(err).WithField("role", el.role).Warn("Failed to release leader lock")
	}
}

// declareLostLeadership declares lost leadership.
func (el *election) declareLostLeadership() error {
	log.WithFields(log.Fields{
		"id":   el.nomination.GetID(),
		"role": el.role,
	}).Info("Leadership lost")
	el.metrics.LostLeadership.Inc(1)
	el.metrics.IsLeader.Update(0)
	return el.nomination.LostLeadershipCallback()
}

// Stop stops campaigning for leadership, calls shutdown.
func (el *election) Stop() error {
	el.Lock()
	if el.running {
		el.running = false
		close(el.stopChan)
		el.metrics.Stop.Inc(1)
		el.metrics.Running.Update(0)
	}
	el.Unlock()
	return el.nomination.ShutDownCallback()
}

// IsLeader returns whether this candidate is the current leader.
func (el *election) IsLeader() bool {
	el.Lock()
	defer el.Unlock()
	return el.running && el.leader.Load()
}

// Resign gives up leadership. The candidate campaigns again right away.
func (el *election) Resign() {
	el.metrics.Resigned.Inc(1)
	select {
	case el.resignChan <- struct{}{}:
	default:
	}
}

// leaderZkPath returns the full ZK path to the leader node given a
// election config (the path root) and a component.
func leaderZkPath(rootPath string, role string) string {
	// NOTE: remember, there cannot be a leading / for libkv.
	return strings.TrimPrefix(path.Join(rootPath, role, "leader"), "/")
}
