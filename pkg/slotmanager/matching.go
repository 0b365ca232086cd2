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
	"github.com/pkg/errors"
	"github.com/tillrohrmann/flink/pkg/resource"
)

const (
	// AnyMatching picks any free slot that fits.
	AnyMatching = "any"
	// LeastUtilizationMatching picks a fitting slot on the least used
	// worker.
	LeastUtilizationMatching = "least_utilization"
)

// UtilizationFunc returns the fraction of a worker's slots in use.
type UtilizationFunc func(workerID resource.WorkerID) float64

// SlotMatchingStrategy selects a free slot for a required profile, or
// nil if none fits.
type SlotMatchingStrategy func(
	required resource.ResourceProfile,
	free []*TaskManagerSlot,
	utilization UtilizationFunc) *TaskManagerSlot

// AnyMatchingStrategy returns the first fitting slot. The order of free
// is unspecified, so callers must not rely on which slot wins.
func AnyMatchingStrategy(
	required resource.ResourceProfile,
	free []*TaskManagerSlot,
	_ UtilizationFunc) *TaskManagerSlot {
	for _, slot := range free {
		if slot.Profile().Matches(required) {
			return slot
		}
	}
	return nil
}

// LeastUtilizationStrategy returns the fitting slot on the worker with
// the lowest utilization. Ties go to the smallest slot id, so the choice
// is deterministic.
func LeastUtilizationStrategy(
	required resource.ResourceProfile,
	free []*TaskManagerSlot,
	utilization UtilizationFunc) *TaskManagerSlot {
	var best *TaskManagerSlot
	var bestUtilization float64
	for _, slot := range free {
		if !slot.Profile().Matches(required) {
			continue
		}
		u := utilization(slot.WorkerID())
		if best == nil ||
			u < bestUtilization ||
			(u == bestUtilization && slot.SlotID().String() < best.SlotID().String()) {
			best = slot
			bestUtilization = u
		}
	}
	return best
}

// StrategyByName resolves a configured strategy name. The empty name is
// AnyMatching.
func StrategyByName(name string) (SlotMatchingStrategy, error) {
	switch name {
	case "", AnyMatching:
		return AnyMatchingStrategy, nil
	case LeastUtilizationMatching:
		return LeastUtilizationStrategy, nil
	}
	return nil, errors.Errorf("unknown slot matching strategy %q", name)
}
