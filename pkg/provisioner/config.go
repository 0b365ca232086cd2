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

package provisioner

const (
	_defaultLaunchRate  = 10.0
	_defaultLaunchBurst = 1
)

// Config is the in-process worker provisioner configuration.
type Config struct {
	// Number of slots of each started worker.
	SlotsPerWorker int `yaml:"slots_per_worker" validate:"min=0"`

	// Workers started per second.
	LaunchRate float64 `yaml:"launch_rate"`

	// Workers which may start at once.
	LaunchBurst int `yaml:"launch_burst" validate:"min=0"`
}

func (c Config) withDefaults() Config {
	if c.SlotsPerWorker <= 0 {
		c.SlotsPerWorker = 1
	}
	if c.LaunchRate <= 0 {
		c.LaunchRate = _defaultLaunchRate
	}
	if c.LaunchBurst <= 0 {
		c.LaunchBurst = _defaultLaunchBurst
	}
	return c
}
