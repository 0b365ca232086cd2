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
	"fmt"
	"sort"
	"strings"
)

// ResourceRequirement is a demand for a number of slots of one profile.
type ResourceRequirement struct {
	Profile               ResourceProfile
	NumberOfRequiredSlots int
}

// NewResourceRequirement creates a requirement.
func NewResourceRequirement(profile ResourceProfile, n int) ResourceRequirement {
	return ResourceRequirement{Profile: profile, NumberOfRequiredSlots: n}
}

func (r ResourceRequirement) String() string {
	return fmt.Sprintf("%d x %s", r.NumberOfRequiredSlots, r.Profile)
}

// ResourceRequirements is the complete demand of one job. A new value
// replaces the previous one wholesale.
type ResourceRequirements struct {
	JobID        JobID
	Requirements []ResourceRequirement
}

// NewResourceRequirements coalesces duplicate profiles and drops
// non-positive counts. The result is ordered by profile string so that
// equal demands compare equal.
func NewResourceRequirements(jobID JobID, reqs []ResourceRequirement) ResourceRequirements {
	return ResourceRequirements{
		JobID:        jobID,
		Requirements: FromCounts(Counts(reqs)),
	}
}

// Counts folds requirements into a profile to count map.
func Counts(reqs []ResourceRequirement) map[ResourceProfile]int {
	counts := make(map[ResourceProfile]int, len(reqs))
	for _, r := range reqs {
		counts[r.Profile] += r.NumberOfRequiredSlots
	}
	for p, n := range counts {
		if n <= 0 {
			delete(counts, p)
		}
	}
	return counts
}

// FromCounts turns a profile to count map into a sorted requirement list.
func FromCounts(counts map[ResourceProfile]int) []ResourceRequirement {
	reqs := make([]ResourceRequirement, 0, len(counts))
	for p, n := range counts {
		if n > 0 {
			reqs = append(reqs, NewResourceRequirement(p, n))
		}
	}
	sort.Slice(reqs, func(i, j int) bool {
		return reqs[i].Profile.String() < reqs[j].Profile.String()
	})
	return reqs
}

// Total returns the sum of required slots.
func (r ResourceRequirements) Total() int {
	total := 0
	for _, req := range r.Requirements {
		total += req.NumberOfRequiredSlots
	}
	return total
}

// Empty reports whether no slot is required.
func (r ResourceRequirements) Empty() bool {
	return r.Total() == 0
}

func (r ResourceRequirements) String() string {
	parts := make([]string, 0, len(r.Requirements))
	for _, req := range r.Requirements {
		parts = append(parts, req.String())
	}
	return fmt.Sprintf("%s: [%s]", r.JobID, strings.Join(parts, ", "))
}
