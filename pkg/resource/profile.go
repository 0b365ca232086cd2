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
	"math"
)

// epsilon is the tolerance used when comparing resource quantities.
const epsilon = 0.000001

type profileKind uint8

const (
	kindSpecified profileKind = iota
	kindUnknown
	kindAny
)

// ResourceProfile describes a quantity of compute resource. It is an
// immutable, comparable value and can be used as a map key.
type ResourceProfile struct {
	CPU      float64
	MemoryMB float64
	DiskMB   float64
	GPU      float64

	kind profileKind
}

var (
	// UnknownProfile is a requirement that does not declare its needs.
	// Every slot satisfies it.
	UnknownProfile = ResourceProfile{kind: kindUnknown}

	// AnyProfile is a slot able to satisfy every requirement.
	AnyProfile = ResourceProfile{kind: kindAny}

	// ZeroProfile is a specified profile with no resources.
	ZeroProfile = ResourceProfile{}
)

// NewResourceProfile returns a specified profile.
func NewResourceProfile(cpu, memoryMB, diskMB, gpu float64) ResourceProfile {
	return ResourceProfile{
		CPU:      cpu,
		MemoryMB: memoryMB,
		DiskMB:   diskMB,
		GPU:      gpu,
	}
}

// IsUnknown reports whether p is the unknown profile.
func (p ResourceProfile) IsUnknown() bool {
	return p.kind == kindUnknown
}

// IsAny reports whether p is the any profile.
func (p ResourceProfile) IsAny() bool {
	return p.kind == kindAny
}

func lessThanOrEqual(f1, f2 float64) bool {
	v := f1 - f2
	if math.Abs(v) < epsilon {
		return true
	}
	return v < 0
}

// Matches reports whether a slot with profile p can fully cover the
// required profile.
func (p ResourceProfile) Matches(required ResourceProfile) bool {
	switch {
	case p.kind == kindAny:
		return true
	case p == required:
		return true
	case p.kind == kindUnknown:
		return false
	case required.kind == kindUnknown:
		return true
	case required.kind == kindAny:
		return false
	}
	return lessThanOrEqual(required.CPU, p.CPU) &&
		lessThanOrEqual(required.MemoryMB, p.MemoryMB) &&
		lessThanOrEqual(required.DiskMB, p.DiskMB) &&
		lessThanOrEqual(required.GPU, p.GPU)
}

// Add returns the sum of two specified profiles. Adding to or from a
// special profile yields that special profile.
func (p ResourceProfile) Add(other ResourceProfile) ResourceProfile {
	if p.kind != kindSpecified {
		return p
	}
	if other.kind != kindSpecified {
		return other
	}
	return NewResourceProfile(
		p.CPU+other.CPU,
		p.MemoryMB+other.MemoryMB,
		p.DiskMB+other.DiskMB,
		p.GPU+other.GPU,
	)
}

func subtract(f1, f2 float64) float64 {
	r := f1 - f2
	if r < epsilon {
		return 0
	}
	return r
}

// Subtract returns p minus other, clamped at zero per dimension.
func (p ResourceProfile) Subtract(other ResourceProfile) ResourceProfile {
	if p.kind != kindSpecified || other.kind != kindSpecified {
		return p
	}
	return NewResourceProfile(
		subtract(p.CPU, other.CPU),
		subtract(p.MemoryMB, other.MemoryMB),
		subtract(p.DiskMB, other.DiskMB),
		subtract(p.GPU, other.GPU),
	)
}

// Multiply scales a specified profile by n.
func (p ResourceProfile) Multiply(n int) ResourceProfile {
	if p.kind != kindSpecified {
		return p
	}
	f := float64(n)
	return NewResourceProfile(p.CPU*f, p.MemoryMB*f, p.DiskMB*f, p.GPU*f)
}

func (p ResourceProfile) String() string {
	switch p.kind {
	case kindUnknown:
		return "ResourceProfile{UNKNOWN}"
	case kindAny:
		return "ResourceProfile{ANY}"
	}
	return fmt.Sprintf("ResourceProfile{CPU:%.2f MEM:%.2f DISK:%.2f GPU:%.2f}",
		p.CPU, p.MemoryMB, p.DiskMB, p.GPU)
}
