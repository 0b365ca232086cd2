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

package resource

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
)

func TestNewResourceRequirementsCoalesces(t *testing.T) {
	p1 := NewResourceProfile(1, 1024, 0, 0)
	p2 := NewResourceProfile(2, 2048, 0, 0)
	jobID := NewJobID()

	reqs := NewResourceRequirements(jobID, []ResourceRequirement{
		NewResourceRequirement(p1, 2),
		NewResourceRequirement(p2, 1),
		NewResourceRequirement(p1, 3),
		NewResourceRequirement(UnknownProfile, 0),
	})

	assert.Equal(t, jobID, reqs.JobID)
	assert.Equal(t, map[ResourceProfile]int{p1: 5, p2: 1}, Counts(reqs.Requirements))
	assert.Len(t, reqs.Requirements, 2)
	assert.Equal(t, 6, reqs.Total())
	assert.False(t, reqs.Empty())
}

func TestRequirementsOrderIsStable(t *testing.T) {
	p1 := NewResourceProfile(1, 1024, 0, 0)
	p2 := NewResourceProfile(2, 2048, 0, 0)
	jobID := NewJobID()

	a := NewResourceRequirements(jobID, []ResourceRequirement{
		NewResourceRequirement(p1, 1), NewResourceRequirement(p2, 1),
	})
	b := NewResourceRequirements(jobID, []ResourceRequirement{
		NewResourceRequirement(p2, 1), NewResourceRequirement(p1, 1),
	})
	assert.Equal(t, a, b)
}

func TestEmptyRequirements(t *testing.T) {
	reqs := NewResourceRequirements(NewJobID(), nil)
	assert.True(t, reqs.Empty())
	assert.NotNil(t, reqs.Requirements)
}

func TestIDs(t *testing.T) {
	assert.NotEqual(t, NewAllocationID(), NewAllocationID())
	id := SlotID{WorkerID: "w1", Index: 2}
	assert.Equal(t, "w1_2", id.String())
}

func TestFromCountsDropsZeroCounts(t *testing.T) {
	p1 := NewResourceProfile(1, 1024, 0, 0)
	p2 := NewResourceProfile(2, 2048, 0, 0)

	got := FromCounts(map[ResourceProfile]int{p1: 2, p2: 0, AnyProfile: 1})
	want := []ResourceRequirement{
		NewResourceRequirement(AnyProfile, 1),
		NewResourceRequirement(p1, 2),
	}
	opts := []cmp.Option{
		cmp.AllowUnexported(ResourceProfile{}),
		cmpopts.SortSlices(func(a, b ResourceRequirement) bool {
			return a.NumberOfRequiredSlots < b.NumberOfRequiredSlots
		}),
	}
	if diff := cmp.Diff(want, got, opts...); diff != "" {
		t.Errorf("FromCounts mismatch (-want +got):\n%s", diff)
	}
}
