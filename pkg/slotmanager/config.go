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
	"time"

	"github.com/tillrohrmann/flink/pkg/resource"
)

const (
	_defaultWorkerRequestTimeout   = 5 * time.Minute
	_defaultSlotRequestTimeout     = 5 * time.Minute
	_defaultIdleWorkerTimeout      = 30 * time.Second
	_defaultRequirementsCheckDelay = 50 * time.Millisecond
	_defaultSlotsPerWorker         = 1
)

// Config is the slot manager configuration.
type Config struct {
	// Time a requested worker has to register before the jobs waiting
	// for it are told resources are missing.
	WorkerRequestTimeout time.Duration `yaml:"worker_request_timeout"`

	// Time a job has to answer a slot offer.
	SlotRequestTimeout time.Duration `yaml:"slot_request_timeout"`

	// Time a worker with only free slots is kept before it is released.
	IdleWorkerTimeout time.Duration `yaml:"idle_worker_timeout"`

	// Delay of the re-match after a rejected or expired offer.
	RequirementsCheckDelay time.Duration `yaml:"requirements_check_delay"`

	// Slot matching strategy, one of "any" or "least_utilization".
	MatchingStrategy string `yaml:"matching_strategy" validate:"regexp=^(any|least_utilization)?$"`

	// Resources of a worker started by the provisioner.
	DefaultWorker resource.WorkerResourceSpec `yaml:"default_worker"`

	// Number of slots each started worker offers.
	SlotsPerWorker int `yaml:"slots_per_worker" validate:"min=0"`

	// Upper bound of registered plus requested slots, 0 for no bound.
	MaxSlots int `yaml:"max_slots" validate:"min=0"`

	// Number of workers worth of free slots kept around.
	RedundantWorkers int `yaml:"redundant_workers" validate:"min=0"`
}

func (c Config) withDefaults() Config {
	if c.WorkerRequestTimeout <= 0 {
		c.WorkerRequestTimeout = _defaultWorkerRequestTimeout
	}
	if c.SlotRequestTimeout <= 0 {
		c.SlotRequestTimeout = _defaultSlotRequestTimeout
	}
	if c.IdleWorkerTimeout <= 0 {
		c.IdleWorkerTimeout = _defaultIdleWorkerTimeout
	}
	if c.RequirementsCheckDelay <= 0 {
		c.RequirementsCheckDelay = _defaultRequirementsCheckDelay
	}
	if c.MatchingStrategy == "" {
		c.MatchingStrategy = AnyMatching
	}
	if c.SlotsPerWorker <= 0 {
		c.SlotsPerWorker = _defaultSlotsPerWorker
	}
	return c
}

// slotProfile is the profile of each slot of a started worker.
func (c Config) slotProfile() resource.ResourceProfile {
	return c.DefaultWorker.SlotProfile(c.SlotsPerWorker)
}
