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
	"sort"

	log "github.com/sirupsen/logrus"
	"github.com/tillrohrmann/flink/pkg/resource"
)

// jobResources is the demand and the acquired slots of one job.
type jobResources struct {
	required map[resource.ResourceProfile]int
	// acquired is keyed by slot profile. PENDING and ALLOCATED slots
	// both count.
	acquired map[resource.ResourceProfile]int
}

func (j *jobResources) empty() bool {
	return len(j.required) == 0 && len(j.acquired) == 0
}

// missing matches acquired slots against the requirements and returns
// what is left uncovered. Exact profile matches are used first.
func (j *jobResources) missing() map[resource.ResourceProfile]int {
	remaining := make(map[resource.ResourceProfile]int, len(j.acquired))
	for p, n := range j.acquired {
		remaining[p] = n
	}
	acquiredProfiles := sortedProfiles(j.acquired)

	result := make(map[resource.ResourceProfile]int)
	for _, required := range sortedProfiles(j.required) {
		need := j.required[required]

		take := min(need, remaining[required])
		need -= take
		remaining[required] -= take

		for _, acquired := range acquiredProfiles {
			if need == 0 {
				break
			}
			if remaining[acquired] == 0 || !acquired.Matches(required) {
				continue
			}
			take := min(need, remaining[acquired])
			need -= take
			remaining[acquired] -= take
		}

		if need > 0 {
			result[required] = need
		}
	}
	return result
}

// sortedProfiles orders specified profiles before the unknown profile so
// that the most constrained requirements pick slots first.
func sortedProfiles(m map[resource.ResourceProfile]int) []resource.ResourceProfile {
	profiles := make([]resource.ResourceProfile, 0, len(m))
	for p := range m {
		profiles = append(profiles, p)
	}
	sort.Slice(profiles, func(i, j int) bool {
		if profiles[i].IsUnknown() != profiles[j].IsUnknown() {
			return !profiles[i].IsUnknown()
		}
		return profiles[i].String() < profiles[j].String()
	})
	return profiles
}

// ResourceTracker aggregates the requirements of all jobs and keeps
// counts of the slots each job acquired. Counts only change through
// NotifySlotStatusChange, never by rescanning slots.
type ResourceTracker struct {
	jobs map[resource.JobID]*jobResources
}

// NewResourceTracker returns an empty tracker.
func NewResourceTracker() *ResourceTracker {
	return &ResourceTracker{
		jobs: make(map[resource.JobID]*jobResources),
	}
}

func (t *ResourceTracker) job(jobID resource.JobID) *jobResources {
	j, ok := t.jobs[jobID]
	if !ok {
		j = &jobResources{
			required: make(map[resource.ResourceProfile]int),
			acquired: make(map[resource.ResourceProfile]int),
		}
		t.jobs[jobID] = j
	}
	return j
}

func (t *ResourceTracker) cleanup(jobID resource.JobID) {
	if j, ok := t.jobs[jobID]; ok && j.empty() {
		delete(t.jobs, jobID)
	}
}

// ProcessResourceRequirements replaces the requirements of a job.
func (t *ResourceTracker) ProcessResourceRequirements(reqs resource.ResourceRequirements) {
	j := t.job(reqs.JobID)
	j.required = resource.Counts(reqs.Requirements)
	t.cleanup(reqs.JobID)
}

// NotifySlotStatusChange updates the acquired counts of jobID for a slot
// of the given profile moving from previous to current.
func (t *ResourceTracker) NotifySlotStatusChange(
	previous SlotState,
	current SlotState,
	jobID resource.JobID,
	profile resource.ResourceProfile) {
	switch {
	case previous == SlotStateFree && current != SlotStateFree:
		t.job(jobID).acquired[profile]++
	case previous != SlotStateFree && current == SlotStateFree:
		j, ok := t.jobs[jobID]
		if !ok || j.acquired[profile] == 0 {
			log.WithFields(log.Fields{
				"job_id":  jobID,
				"profile": profile,
			}).Error("Lost a resource that was never acquired")
			return
		}
		j.acquired[profile]--
		if j.acquired[profile] == 0 {
			delete(j.acquired, profile)
		}
		t.cleanup(jobID)
	}
}

// GetMissingResources returns, per job, the requirements not yet covered
// by acquired slots.
func (t *ResourceTracker) GetMissingResources() map[resource.JobID]map[resource.ResourceProfile]int {
	result := make(map[resource.JobID]map[resource.ResourceProfile]int)
	for jobID, j := range t.jobs {
		if missing := j.missing(); len(missing) > 0 {
			result[jobID] = missing
		}
	}
	return result
}

// GetRequiredResources returns the requirements of a job.
func (t *ResourceTracker) GetRequiredResources(jobID resource.JobID) []resource.ResourceRequirement {
	j, ok := t.jobs[jobID]
	if !ok {
		return []resource.ResourceRequirement{}
	}
	return resource.FromCounts(j.required)
}

// GetAcquiredResources returns the slots a job holds, by slot profile.
func (t *ResourceTracker) GetAcquiredResources(jobID resource.JobID) []resource.ResourceRequirement {
	j, ok := t.jobs[jobID]
	if !ok {
		return []resource.ResourceRequirement{}
	}
	return resource.FromCounts(j.acquired)
}

// IsEmpty reports whether nothing is tracked.
func (t *ResourceTracker) IsEmpty() bool {
	return len(t.jobs) == 0
}

// Clear drops every requirement and count.
func (t *ResourceTracker) Clear() {
	t.jobs = make(map[resource.JobID]*jobResources)
}
