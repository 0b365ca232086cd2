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

package slotpool

import (
	"time"
)

const (
	_defaultSlotRequestTimeout = 5 * time.Minute
	_defaultIdleSlotTimeout    = 50 * time.Second
)

// Config is the job scoped slot pool configuration.
type Config struct {
	// Time after which an unfulfilled slot request fails.
	SlotRequestTimeout time.Duration `yaml:"slot_request_timeout"`

	// Time a held but unused physical slot is kept before it is handed
	// back to the slot manager.
	IdleSlotTimeout time.Duration `yaml:"idle_slot_timeout"`
}

func (c Config) withDefaults() Config {
	if c.SlotRequestTimeout <= 0 {
		c.SlotRequestTimeout = _defaultSlotRequestTimeout
	}
	if c.IdleSlotTimeout <= 0 {
		c.IdleSlotTimeout = _defaultIdleSlotTimeout
	}
	return c
}
