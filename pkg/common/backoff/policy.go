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

package backoff

import (
	"time"
)

// Done is returned by NextBackOff once the policy has given up.
const Done time.Duration = -1

// Retrier hands out the delays between consecutive attempts.
type Retrier interface {
	NextBackOff() time.Duration
	// Reset starts over from the first attempt.
	Reset()
}

// NewRetrier is used for creating a new instance of Retrier
func NewRetrier(policy RetryPolicy) Retrier {
	return &retrierImpl{
		policy:         policy,
		currentAttempt: 1,
	}
}

type retrierImpl struct {
	policy         RetryPolicy
	currentAttempt int
}

// NextBackOff returns the next delay interval.
func (r *retrierImpl) NextBackOff() time.Duration {
	nextInterval := r.policy.CalculateNextDelay(r.currentAttempt)

	r.currentAttempt++
	return nextInterval
}

func (r *retrierImpl) Reset() {
	r.currentAttempt = 1
}

// RetryPolicy is interface for defining retry policy.
type RetryPolicy interface {
	CalculateNextDelay(attempts int) time.Duration
}

// NewRetryPolicy returns a policy doubling initial on every attempt up
// to max. maxAttempts <= 0 retries forever.
func NewRetryPolicy(maxAttempts int, initial, max time.Duration) RetryPolicy {
	if max < initial {
		max = initial
	}
	return &retryPolicy{
		maxAttempts: maxAttempts,
		initial:     initial,
		max:         max,
	}
}

type retryPolicy struct {
	maxAttempts int
	initial     time.Duration
	max         time.Duration
}

// CalculateNextDelay returns next delay.
func (p *retryPolicy) CalculateNextDelay(attempts int) time.Duration {
	if p.maxAttempts > 0 && attempts >= p.maxAttempts {
		return Done
	}
	delay := p.initial
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= p.max {
			return p.max
		}
	}
	return delay
}
