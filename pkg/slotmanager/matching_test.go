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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tillrohrmann/flink/pkg/resource"
)

func freeSlot(workerID resource.WorkerID, index int, profile resource.ResourceProfile) *TaskManagerSlot {
	return &TaskManagerSlot{
		slotID:  resource.SlotID{WorkerID: workerID, Index: index},
		profile: profile,
		state:   SlotStateFree,
	}
}

func TestAnyMatchingStrategy(t *testing.T) {
	small := freeSlot("w1", 0, _small)
	large := freeSlot("w2", 0, _large)

	assert.Nil(t, AnyMatchingStrategy(_large, []*TaskManagerSlot{small}, nil))
	assert.Equal(t, large, AnyMatchingStrategy(_large, []*TaskManagerSlot{small, large}, nil))
	// Which of several fitting slots is picked is not defined.
	assert.Contains(t,
		[]*TaskManagerSlot{small, large},
		AnyMatchingStrategy(_small, []*TaskManagerSlot{small, large}, nil))
}

func TestLeastUtilizationStrategy(t *testing.T) {
	utilization := map[resource.WorkerID]float64{"w1": 0.5, "w2": 0, "w3": 0}
	u := func(id resource.WorkerID) float64 { return utilization[id] }
	free := []*TaskManagerSlot{
		freeSlot("w1", 1, _large),
		freeSlot("w3", 0, _large),
		freeSlot("w2", 1, _small),
		freeSlot("w2", 0, _large),
	}

	got := LeastUtilizationStrategy(_small, free, u)
	require.NotNil(t, got)
	assert.Equal(t, "w2_0", got.SlotID().String())

	got = LeastUtilizationStrategy(_large, free[:2], u)
	require.NotNil(t, got)
	assert.Equal(t, "w3_0", got.SlotID().String())

	assert.Nil(t, LeastUtilizationStrategy(_large, free[2:3], u))
}

func TestStrategyByName(t *testing.T) {
	for _, name := range []string{"", AnyMatching, LeastUtilizationMatching} {
		s, err := StrategyByName(name)
		assert.NoError(t, err, name)
		assert.NotNil(t, s, name)
	}
	_, err := StrategyByName("random")
	assert.Error(t, err)
}
