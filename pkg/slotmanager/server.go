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

import (
	"context"
	"sync"
	"time"

	"github.com/tillrohrmann/flink/pkg/common/leader"

	log "github.com/sirupsen/logrus"
	"github.com/uber-go/tally"
	"go.uber.org/multierr"
)

// Role is the election role of the slot manager.
const Role = "slotmanager"

// ServerProcess is the interface for a process inside a server which starts and
// stops based on the leadership delegation of the server
type ServerProcess interface {
	Start() error
	Stop() error
}

// managerProcess starts the manager on leadership and suspends it, which
// drops all slot state, when leadership is lost.
type managerProcess struct {
	manager *Manager
	timeout time.Duration
}

func (p managerProcess) Start() error {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	_, err := p.manager.Start().Get(ctx)
	return err
}

func (p managerProcess) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	_, err := p.manager.Suspend().Get(ctx)
	return err
}

// Server struct for handling the zk election
type Server struct {
	sync.Mutex

	ID   string // The slot manager address
	role string

	elected tally.Gauge

	// processes start in order with the leader and stop in reverse
	// order.
	processes []ServerProcess

	// isLeader is set once leadership callback completes
	isLeader bool
}

var _ leader.Nomination = (*Server)(nil)

// NewServer creates the nomination of the slot manager. Extra processes
// start after the manager.
func NewServer(
	parent tally.Scope,
	httpPort int,
	manager *Manager,
	callbackTimeout time.Duration,
	processes ...ServerProcess) *Server {
	return &Server{
		ID:      leader.NewID(httpPort, ""),
		role:    Role,
		elected: parent.Gauge("elected"),
		processes: append(
			[]ServerProcess{managerProcess{manager: manager, timeout: callbackTimeout}},
			processes...),
	}
}

// GainedLeadershipCallback is the callback when the current node
// becomes the leader
func (s *Server) GainedLeadershipCallback() error {
	s.Lock()
	defer s.Unlock()

	log.WithField("role", s.role).Info("Gained leadership")
	s.elected.Update(1.0)

	for _, p := range s.processes {
		if err := p.Start(); err != nil {
			log.WithError(err).Error("Failed to start process on leadership")
			return err
		}
	}
	s.isLeader = true
	return nil
}

// LostLeadershipCallback is the callback when the current node lost
// leadership. Every process is stopped even if some fail.
func (s *Server) LostLeadershipCallback() error {
	s.Lock()
	defer s.Unlock()

	log.WithField("role", s.role).Info("Lost leadership")
	s.elected.Update(0.0)

	// we set the node as a non-leader before we stop the services
	s.isLeader = false

	var err error
	for i := len(s.processes) - 1; i >= 0; i-- {
		err = multierr.Append(err, s.processes[i].Stop())
	}
	if err != nil {
		log.WithError(err).Error("Failed to stop processes on lost leadership")
	}
	return err
}

// HasGainedLeadership returns true iff once GainedLeadershipCallback
// completes
func (s *Server) HasGainedLeadership() bool {
	s.Lock()
	defer s.Unlock()

	return s.isLeader
}

// ShutDownCallback is the callback to shut down gracefully if possible
func (s *Server) ShutDownCallback() error {
	s.Lock()
	defer s.Unlock()

	log.Infof("Quiting the election")
	s.isLeader = false

	return nil
}

// GetID function returns the slot manager address
// required to implement leader.Nomination
func (s *Server) GetID() string {
	return s.ID
}
