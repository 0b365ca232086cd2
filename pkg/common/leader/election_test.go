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
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	libkvmock "github.com/docker/libkv/store/mock"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/uber-go/tally"
)

type testComponent struct {
	host   string
	port   string
	events chan string
}

func (x *testComponent) GainedLeadershipCallback() error {
	log.Info("GainedLeadershipCallback called")
	x.events <- "leadership_gained"
	return nil
}
func (x *testComponent) LostLeadershipCallback() error {
	log.Info("LostLeadershipCallback called")
	x.events <- "leadership_lost"
	return nil
}
func (x *testComponent) ShutDownCallback() error {
	log.Info("ShutdownCallback called")
	x.events <- "shutdown"
	return nil
}
func (x *testComponent) GetID() string { return x.host + ":" + x.port }

type testLock struct {
	lock   sync.RWMutex
	lostCh chan struct{}
}

func (l *testLock) Lock(stopChan chan struct{}) (<-chan struct{}, error) {
	l.lock.Lock()
	l.lostCh = make(chan struct{})
	return l.lostCh, nil
}

func (l *testLock) Unlock() error {
	l.lock.Unlock()
	close(l.lostCh)
	return nil
}

func newTestElection(t *testing.T, nomination Nomination) *election {
	zkpath := "/slotmanager/fake"
	key := strings.TrimPrefix(zkpath, "/")

	kv, err := libkvmock.New([]string{}, nil)
	assert.NoError(t, err)
	assert.NotNil(t, kv)
	mockStore := kv.(*libkvmock.Mock)
	// mock store should return the same lock for the same key
	mockStore.On("NewLock", key, mock.Anything).Return(&testLock{}, nil)

	return newElection(mockStore, key, tally.NoopScope, "testrole", nomination)
}

// nextEvents reads n events, in any order.
func nextEvents(events chan string, n int) []string {
	var got []string
	for i := 0; i < n; i++ {
		got = append(got, <-events)
	}
	return got
}

func TestNewCandidateWithoutServersIsStatic(t *testing.T) {
	nomination := &testComponent{
		host:   "testhost",
		port:   "666",
		events: make(chan string, 100),
	}

	el, err := NewCandidate(ElectionConfig{}, tally.NoopScope, "slotmanager", nomination)
	assert.NoError(t, err)
	_, ok := el.(*staticCandidate)
	assert.True(t, ok)

	_, err = NewCandidate(ElectionConfig{}, tally.NoopScope, "", nomination)
	assert.Error(t, err)
}

func TestLeaderElection(t *testing.T) {
	nomination := &testComponent{
		host:   "testhost",
		port:   "666",
		events: make(chan string, 100),
	}
	el := newTestElection(t, nomination)

	err := el.Start()
	assert.NoError(t, err)
	assert.Error(t, el.Start())

	// Since the lock always succeeds, we should get elected.
	assert.Equal(t, "leadership_gained", <-nomination.events)
	assert.Equal(t, true, el.IsLeader())

	// When we resign, unlock will get called, we'll be notified of the
	// de-election and we'll try to get the lock again.
	go el.Resign()
	assert.Equal(t, "leadership_lost", <-nomination.events)
	assert.Equal(t, "leadership_gained", <-nomination.events)
	assert.Equal(t, true, el.IsLeader())

	err = el.Stop()
	assert.NoError(t, err)
	// make sure abdicating triggers shutdown and lost handlers
	assert.ElementsMatch(t,
		[]string{"leadership_lost", "shutdown"},
		nextEvents(nomination.events, 2))
	// and then you are no longer leader
	assert.Equal(t, false, el.IsLeader())
}

// electionFailureTestComponent fails the initial call of
// GainedLeadershipCallback
type electionFailureTestComponent struct {
	sync.RWMutex
	firstCall bool
	*testComponent
}

func (x *electionFailureTestComponent) GainedLeadershipCallback() error {
	x.Lock()
	defer x.Unlock()
	x.testComponent.GainedLeadershipCallback()
	if x.firstCall {
		x.firstCall = false
		return fmt.Errorf("GainedLeadershipCallback test err")
	}
	return nil
}

// if GainedLeadershipCallback fails, the lock is released and the
// candidate campaigns again
func TestLeaderElectionIfGainedLeadershipCallbackFails(t *testing.T) {
	nomination := &electionFailureTestComponent{
		firstCall: true,
		testComponent: &testComponent{
			host:   "testhost",
			port:   "666",
			events: make(chan string, 100),
		},
	}
	el := newTestElection(t, nomination)

	err := el.Start()
	assert.NoError(t, err)

	assert.Equal(t, "leadership_gained", <-nomination.events)
	// GainedLeadershipCallback fails, we should lose the leadership
	assert.Equal(t, "leadership_lost", <-nomination.events)
	// regain the leadership on the second try
	assert.Equal(t, "leadership_gained", <-nomination.events)
	assert.Equal(t, true, el.IsLeader())

	err = el.Stop()
	assert.NoError(t, err)
	assert.ElementsMatch(t,
		[]string{"leadership_lost", "shutdown"},
		nextEvents(nomination.events, 2))
	assert.Equal(t, false, el.IsLeader())
}

// when an election stops, all the background goroutine should exit
func TestElectionStop(t *testing.T) {
	nomination := &testComponent{
		host:   "testhost",
		port:   "666",
		events: make(chan string, 100),
	}
	el := newTestElection(t, nomination)
	el.running = true

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		el.campaign()
		el.updateLeaderElectionMetrics(time.Second)
		wg.Done()
	}()
	// Wait for events from campaign to make sure el.Stop() is called after
	// leader election begins
	assert.Equal(t, "leadership_gained", <-nomination.events)
	el.Stop()
	wg.Wait()
}

func TestStaticCandidate(t *testing.T) {
	nomination := &testComponent{
		host:   "testhost",
		port:   "666",
		events: make(chan string, 100),
	}
	c := NewStaticCandidate(tally.NoopScope, nomination)
	assert.False(t, c.IsLeader())

	assert.NoError(t, c.Start())
	assert.Equal(t, "leadership_gained", <-nomination.events)
	assert.True(t, c.IsLeader())
	assert.NoError(t, c.Start())

	c.Resign()
	assert.Equal(t, "leadership_lost", <-nomination.events)
	assert.Equal(t, "leadership_gained", <-nomination.events)
	assert.True(t, c.IsLeader())

	assert.NoError(t, c.Stop())
	assert.Equal(t, "leadership_lost", <-nomination.events)
	assert.Equal(t, "shutdown", <-nomination.events)
	assert.False(t, c.IsLeader())
}

func TestLeaderZkPath(t *testing.T) {
	assert.Equal(t, "cluster/slotmanager/leader", leaderZkPath("/cluster", "slotmanager"))
}

func TestNewID(t *testing.T) {
	id := NewID(5290, "v1")
	assert.Contains(t, id, `"http":5290`)
	assert.Contains(t, id, `"version":"v1"`)
}
