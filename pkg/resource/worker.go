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

// WorkerResourceSpec is the total resource of a worker requested from
// the provisioning provider.
type WorkerResourceSpec struct {
	CPU      float64 `yaml:"cpu"`
	MemoryMB float64 `yaml:"memory_mb"`
	DiskMB   float64 `yaml:"disk_mb"`
	GPU      float64 `yaml:"gpu"`
}

// TotalProfile returns the worker total as a profile.
func (s WorkerResourceSpec) TotalProfile() ResourceProfile {
	return NewResourceProfile(s.CPU, s.MemoryMB, s.DiskMB, s.GPU)
}

// SlotProfile returns the profile of one of numSlots equal slots carved
// out of the worker. A zero spec yields AnyProfile, so its slots can
// serve any requirement.
func (s WorkerResourceSpec) SlotProfile(numSlots int) ResourceProfile {
	if s == (WorkerResourceSpec{}) {
		return AnyProfile
	}
	if numSlots <= 1 {
		return s.TotalProfile()
	}
	n := float64(numSlots)
	return NewResourceProfile(s.CPU/n, s.MemoryMB/n, s.DiskMB/n, s.GPU/n)
}
