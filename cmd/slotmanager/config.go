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

package main

import (
	"time"

	"github.com/tillrohrmann/flink/pkg/common/health"
	"github.com/tillrohrmann/flink/pkg/common/leader"
	"github.com/tillrohrmann/flink/pkg/common/metrics"
	"github.com/tillrohrmann/flink/pkg/provisioner"
	"github.com/tillrohrmann/flink/pkg/slotmanager"
	"github.com/tillrohrmann/flink/pkg/slotpool"
)

// Config holds all configs to run a slot manager.
type Config struct {
	Metrics     metrics.Config        `yaml:"metrics"`
	Election    leader.ElectionConfig `yaml:"election"`
	Health      health.Config         `yaml:"health"`
	SlotManager SlotManagerConfig     `yaml:"slot_manager"`
}

// SlotManagerConfig is the process level config of the slot manager.
type SlotManagerConfig struct {
	// HTTP port which the slot service is listening on
	HTTPPort int `yaml:"http_port" validate:"nonzero"`

	// GRPC port which the slot service is listening on
	GRPCPort int `yaml:"grpc_port" validate:"nonzero"`

	// Time the leadership callbacks wait for the manager.
	LeadershipCallbackTimeout time.Duration `yaml:"leadership_callback_timeout"`

	Manager     slotmanager.Config `yaml:"manager"`
	Pool        slotpool.Config    `yaml:"pool"`
	Provisioner provisioner.Config `yaml:"provisioner"`
}
