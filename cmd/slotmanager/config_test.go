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
	"testing"
	"time"

	"github.com/tillrohrmann/flink/pkg/common/config"
	"github.com/tillrohrmann/flink/pkg/slotmanager"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBaseConfig(t *testing.T) {
	var cfg Config
	require.NoError(t, config.Parse(&cfg, "../../config/slotmanager/base.yaml"))

	assert.Equal(t, 5390, cfg.SlotManager.HTTPPort)
	assert.Equal(t, 5395, cfg.SlotManager.GRPCPort)
	assert.Equal(t, slotmanager.AnyMatching, cfg.SlotManager.Manager.MatchingStrategy)
	assert.Equal(t, 2, cfg.SlotManager.Manager.SlotsPerWorker)
	assert.Equal(t, 4.0, cfg.SlotManager.Manager.DefaultWorker.CPU)
	assert.Equal(t, 50*time.Millisecond, cfg.SlotManager.Manager.RequirementsCheckDelay)
	assert.Equal(t, 50*time.Second, cfg.SlotManager.Pool.IdleSlotTimeout)
	assert.Empty(t, cfg.Election.ZKServers)
	assert.True(t, cfg.Metrics.Prometheus.Enable)
}

func TestParseMergedConfig(t *testing.T) {
	var cfg Config
	require.NoError(t, config.Parse(&cfg,
		"../../config/slotmanager/base.yaml",
		"../../config/slotmanager/development.yaml"))

	assert.Equal(t, []string{"localhost:2181"}, cfg.Election.ZKServers)
	assert.Equal(t, slotmanager.LeastUtilizationMatching, cfg.SlotManager.Manager.MatchingStrategy)
	assert.Equal(t, 1, cfg.SlotManager.Manager.RedundantWorkers)
	// untouched keys keep the base value
	assert.Equal(t, 5390, cfg.SlotManager.HTTPPort)
}
