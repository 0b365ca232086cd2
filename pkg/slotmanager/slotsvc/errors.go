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

package slotsvc

import (
	"context"

	"github.com/tillrohrmann/flink/pkg/slotmanager"
	"github.com/tillrohrmann/flink/pkg/slotpool"

	"github.com/pkg/errors"
	"go.uber.org/yarpc/yarpcerrors"
)

var (
	errJobNotFound      = yarpcerrors.NotFoundErrorf("job not found")
	errJobAlreadyExists = yarpcerrors.AlreadyExistsErrorf("job already submitted")
	errLeaseNotFound    = yarpcerrors.NotFoundErrorf("lease not found")
	errMissingWorkerID  = yarpcerrors.InvalidArgumentErrorf("worker id is required")
	errMissingJobID     = yarpcerrors.InvalidArgumentErrorf("job id is required")
)

// toYARPCError maps errors of the slot manager and the slot pools to
// yarpc status codes. Errors which already carry a status pass through.
func toYARPCError(err error) error {
	if err == nil {
		return nil
	}
	if yarpcerrors.IsStatus(err) {
		return err
	}
	switch errors.Cause(err) {
	case slotmanager.ErrUnknownWorker, slotmanager.ErrUnknownAllocation:
		return yarpcerrors.NotFoundErrorf("%v", err)
	case slotmanager.ErrNotStarted:
		return yarpcerrors.UnavailableErrorf("%v", err)
	case slotmanager.ErrMaxSlotsExceeded, slotmanager.ErrWorkerRequestTimeout:
		return yarpcerrors.ResourceExhaustedErrorf("%v", err)
	case slotmanager.ErrProfileUnfulfillable:
		return yarpcerrors.InvalidArgumentErrorf("%v", err)
	case slotpool.ErrPoolClosed, slotpool.ErrSharedSlotReleased, slotpool.ErrUnknownLogicalSlot:
		return yarpcerrors.FailedPreconditionErrorf("%v", err)
	case slotpool.ErrSlotRequestTimeout, context.DeadlineExceeded:
		return yarpcerrors.DeadlineExceededErrorf("%v", err)
	case context.Canceled:
		return yarpcerrors.CancelledErrorf("%v", err)
	}
	return yarpcerrors.InternalErrorf("%v", err)
}
