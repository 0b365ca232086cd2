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
	"sync"

	"github.com/tillrohrmann/flink/pkg/common/async"
	"github.com/tillrohrmann/flink/pkg/common/scheduler"
	"github.com/tillrohrmann/flink/pkg/resource"
	"github.com/tillrohrmann/flink/pkg/slotmanager"
	"github.com/tillrohrmann/flink/pkg/slotpool"

	"github.com/pborman/uuid"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"github.com/uber-go/tally"
	"go.uber.org/multierr"
	"go.uber.org/yarpc"
	"go.uber.org/yarpc/api/transport"
	"go.uber.org/yarpc/encoding/json"
)

// ServiceName is the yarpc service name of the slot service.
const ServiceName = "SlotService"

var (
	_ slotpool.ResourceManagerGateway = (*slotmanager.Manager)(nil)
	_ slotmanager.SlotOfferTarget     = (*slotpool.Pool)(nil)
)

// ExecutorFactory creates the executor a job's slot pool runs on. The
// returned function stops it.
type ExecutorFactory func(jobID resource.JobID) (async.Executor, func())

// MailboxExecutors runs every slot pool on a mailbox of its own.
func MailboxExecutors(scope tally.Scope) ExecutorFactory {
	return func(jobID resource.JobID) (async.Executor, func()) {
		m := async.NewMailbox("slot_pool", scope)
		m.Start()
		return m, m.Stop
	}
}

type lease struct {
	shared  *slotpool.SharedSlot
	logical *slotpool.LogicalSlot
}

type job struct {
	id       resource.JobID
	pool     *slotpool.Pool
	stop     func()
	leases   map[string]*lease
	shortage error
}

// ServiceHandler exposes the slot manager and the slot pools of the
// submitted jobs over yarpc.
type ServiceHandler struct {
	sync.Mutex

	manager    *slotmanager.Manager
	poolConfig slotpool.Config
	scheduler  scheduler.Scheduler
	executors  ExecutorFactory
	scope      tally.Scope
	metrics    *Metrics

	jobs map[resource.JobID]*job
}

// NewServiceHandler creates the slot service handler.
func NewServiceHandler(
	parent tally.Scope,
	manager *slotmanager.Manager,
	poolConfig slotpool.Config,
	sched scheduler.Scheduler,
	executors ExecutorFactory) *ServiceHandler {
	scope := parent.SubScope("slotsvc")
	return &ServiceHandler{
		manager:    manager,
		poolConfig: poolConfig,
		scheduler:  sched,
		executors:  executors,
		scope:      parent,
		metrics:    NewMetrics(scope),
		jobs:       make(map[resource.JobID]*job),
	}
}

// InitServiceHandler creates the handler and registers its procedures
// with the dispatcher.
func InitServiceHandler(
	d *yarpc.Dispatcher,
	parent tally.Scope,
	manager *slotmanager.Manager,
	poolConfig slotpool.Config,
	sched scheduler.Scheduler,
	executors ExecutorFactory) *ServiceHandler {
	h := NewServiceHandler(parent, manager, poolConfig, sched, executors)
	d.Register(h.Procedures())
	return h
}

// Procedures returns the json procedures of the slot service.
func (h *ServiceHandler) Procedures() []transport.Procedure {
	var procedures []transport.Procedure
	for name, handler := range map[string]interface{}{
		"SubmitJob":           h.SubmitJob,
		"CancelJob":           h.CancelJob,
		"AllocateSlot":        h.AllocateSlot,
		"ReleaseSlot":         h.ReleaseSlot,
		"RegisterWorker":      h.RegisterWorker,
		"UnregisterWorker":    h.UnregisterWorker,
		"ReportSlotStatus":    h.ReportSlotStatus,
		"GetResourceOverview": h.GetResourceOverview,
		"GetMissingResources": h.GetMissingResources,
		"GetJobSlots":         h.GetJobSlots,
		"GetWorkerSlots":      h.GetWorkerSlots,
	} {
		procedures = append(procedures, json.Procedure(ServiceName+"::"+name, handler)...)
	}
	return procedures
}

// Start implements slotmanager.ServerProcess. Jobs are submitted again
// by their clients after a leader change, so there is nothing to
// recover.
func (h *ServiceHandler) Start() error {
	return nil
}

// Stop implements slotmanager.ServerProcess. It releases every job.
func (h *ServiceHandler) Stop() error {
	h.Lock()
	jobs := lo.Values(h.jobs)
	h.jobs = make(map[resource.JobID]*job)
	h.updateGauges()
	h.Unlock()

	var err error
	for _, j := range jobs {
		err = multierr.Append(err, h.releaseJob(context.Background(), j, errors.New("lost leadership")))
	}
	return err
}

// SubmitJob creates the slot pool of a job and registers it with the
// slot manager.
func (h *ServiceHandler) SubmitJob(
	ctx context.Context,
	req *SubmitJobRequest) (*SubmitJobResponse, error) {
	h.metrics.SubmitJobAPI.Inc(1)
	jobID := resource.JobID(req.JobID)
	if jobID == "" {
		jobID = resource.NewJobID()
	}

	h.Lock()
	if _, ok := h.jobs[jobID]; ok {
		h.Unlock()
		h.metrics.SubmitJobFail.Inc(1)
		return nil, errJobAlreadyExists
	}
	exec, stop := h.executors(jobID)
	j := &job{
		id:     jobID,
		pool:   slotpool.NewPool(jobID, h.poolConfig, h.manager, exec, h.scheduler, h.scope),
		stop:   stop,
		leases: make(map[string]*lease),
	}
	h.jobs[jobID] = j
	h.updateGauges()
	h.Unlock()

	j.pool.SetFailureListener(func(err error) {
		h.metrics.ResourceShortage.Inc(1)
		h.Lock()
		defer h.Unlock()
		j.shortage = err
	})

	if _, err := h.manager.RegisterJob(jobID, j.pool).Get(ctx); err != nil {
		h.Lock()
		delete(h.jobs, jobID)
		h.updateGauges()
		h.Unlock()
		stop()
		h.metrics.SubmitJobFail.Inc(1)
		return nil, toYARPCError(err)
	}

	log.WithField("job_id", jobID).Info("Job submitted")
	h.metrics.SubmitJob.Inc(1)
	return &SubmitJobResponse{JobID: string(jobID)}, nil
}

// CancelJob releases every slot of the job, unregisters it from the slot
// manager and drops its pool.
func (h *ServiceHandler) CancelJob(
	ctx context.Context,
	req *CancelJobRequest) (*CancelJobResponse, error) {
	h.metrics.CancelJobAPI.Inc(1)

	h.Lock()
	j, ok := h.jobs[resource.JobID(req.JobID)]
	if ok {
		delete(h.jobs, j.id)
		h.updateGauges()
	}
	h.Unlock()
	if !ok {
		h.metrics.CancelJobFail.Inc(1)
		return nil, errJobNotFound
	}

	cause := errors.Errorf("job cancelled: %s", req.Reason)
	if err := h.releaseJob(ctx, j, cause); err != nil {
		log.WithError(err).WithField("job_id", j.id).Error("Failed to cancel job")
		h.metrics.CancelJobFail.Inc(1)
		return nil, toYARPCError(err)
	}
	log.WithField("job_id", j.id).Info("Job cancelled")
	h.metrics.CancelJob.Inc(1)
	return &CancelJobResponse{}, nil
}

// releaseJob closes the pool before unregistering, so slots returned by
// the pool are freed while the job is still known to the manager.
func (h *ServiceHandler) releaseJob(ctx context.Context, j *job, cause error) error {
	_, releaseErr := j.pool.ReleaseJob(cause).Get(ctx)
	_, unregisterErr := h.manager.UnregisterJob(j.id).Get(ctx)
	j.stop()
	return multierr.Combine(releaseErr, unregisterErr)
}

// AllocateSlot requests a slot from the job's pool and leases a logical
// slot from it. A slot granted after the caller gave up is released.
func (h *ServiceHandler) AllocateSlot(
	ctx context.Context,
	req *AllocateSlotRequest) (*AllocateSlotResponse, error) {
	h.metrics.AllocateSlotAPI.Inc(1)
	j, err := h.getJob(req.JobID)
	if err != nil {
		h.metrics.AllocateSlotFail.Inc(1)
		return nil, err
	}

	f := j.pool.RequestSlot(req.Profile.toResource(), req.OccupyIndefinitely)
	shared, err := f.Get(ctx)
	if err != nil {
		if ctx.Err() != nil {
			cause := ctx.Err()
			f.OnComplete(async.DirectExecutor, func(s *slotpool.SharedSlot, err error) {
				if err == nil {
					j.pool.ReleaseSharedSlot(s, cause)
				}
			})
		}
		log.WithError(err).WithField("job_id", j.id).Warn("Failed to allocate slot")
		h.metrics.AllocateSlotFail.Inc(1)
		return nil, toYARPCError(err)
	}

	logical, err := j.pool.AllocateLogicalSlot(shared).Get(ctx)
	if err != nil {
		j.pool.ReleaseSharedSlot(shared, err)
		h.metrics.AllocateSlotFail.Inc(1)
		return nil, toYARPCError(err)
	}

	id := uuid.New()
	h.Lock()
	j.leases[id] = &lease{shared: shared, logical: logical}
	h.updateGauges()
	h.Unlock()

	h.metrics.AllocateSlot.Inc(1)
	return &AllocateSlotResponse{
		Lease: &Lease{
			LeaseID:      id,
			AllocationID: string(logical.AllocationID()),
			WorkerID:     string(logical.WorkerID()),
			Index:        shared.PhysicalSlot().SlotID().Index,
			Profile:      fromResource(logical.Profile()),
		},
	}, nil
}

// ReleaseSlot returns a lease. The physical slot goes back to the slot
// manager once no request of the job can reuse it.
func (h *ServiceHandler) ReleaseSlot(
	ctx context.Context,
	req *ReleaseSlotRequest) (*ReleaseSlotResponse, error) {
	h.metrics.ReleaseSlotAPI.Inc(1)
	j, err := h.getJob(req.JobID)
	if err != nil {
		h.metrics.ReleaseSlotFail.Inc(1)
		return nil, err
	}

	h.Lock()
	l, ok := j.leases[req.LeaseID]
	delete(j.leases, req.LeaseID)
	h.updateGauges()
	h.Unlock()
	if !ok {
		h.metrics.ReleaseSlotFail.Inc(1)
		return nil, errLeaseNotFound
	}

	var cause error
	if req.Reason != "" {
		cause = errors.New(req.Reason)
	}
	if _, err := j.pool.ReleaseLogicalSlot(l.logical, cause).Get(ctx); err != nil {
		h.metrics.ReleaseSlotFail.Inc(1)
		return nil, toYARPCError(err)
	}
	h.metrics.ReleaseSlot.Inc(1)
	return &ReleaseSlotResponse{}, nil
}

// RegisterWorker registers a worker and its slots with the slot manager.
func (h *ServiceHandler) RegisterWorker(
	ctx context.Context,
	req *RegisterWorkerRequest) (*RegisterWorkerResponse, error) {
	h.metrics.RegisterWorkerAPI.Inc(1)
	if req.WorkerID == "" {
		h.metrics.RegisterWorkerFail.Inc(1)
		return nil, errMissingWorkerID
	}
	workerID := resource.WorkerID(req.WorkerID)
	report := toSlotReport(workerID, req.Slots)
	if _, err := h.manager.RegisterWorker(workerID, report).Get(ctx); err != nil {
		h.metrics.RegisterWorkerFail.Inc(1)
		return nil, toYARPCError(err)
	}
	return &RegisterWorkerResponse{}, nil
}

// UnregisterWorker removes a worker from the slot manager.
func (h *ServiceHandler) UnregisterWorker(
	ctx context.Context,
	req *UnregisterWorkerRequest) (*UnregisterWorkerResponse, error) {
	h.metrics.UnregisterWorkerAPI.Inc(1)
	cause := errors.Errorf("worker unregistered: %s", req.Reason)
	_, err := h.manager.UnregisterWorker(resource.WorkerID(req.WorkerID), cause).Get(ctx)
	if err != nil {
		h.metrics.UnregisterWorkerFail.Inc(1)
		return nil, toYARPCError(err)
	}
	return &UnregisterWorkerResponse{}, nil
}

// ReportSlotStatus reconciles the manager with a worker's slot report.
func (h *ServiceHandler) ReportSlotStatus(
	ctx context.Context,
	req *ReportSlotStatusRequest) (*ReportSlotStatusResponse, error) {
	h.metrics.ReportSlotStatusAPI.Inc(1)
	workerID := resource.WorkerID(req.WorkerID)
	known, err := h.manager.ReportSlotStatus(workerID, toSlotReport(workerID, req.Slots)).Get(ctx)
	if err != nil {
		return nil, toYARPCError(err)
	}
	if !known {
		h.metrics.ReportSlotStatusUnknown.Inc(1)
	}
	return &ReportSlotStatusResponse{Known: known}, nil
}

// GetResourceOverview returns the slot manager's summary.
func (h *ServiceHandler) GetResourceOverview(
	ctx context.Context,
	req *GetResourceOverviewRequest) (*GetResourceOverviewResponse, error) {
	h.metrics.QueryAPI.Inc(1)
	o, err := h.manager.GetResourceOverview().Get(ctx)
	if err != nil {
		h.metrics.QueryFail.Inc(1)
		return nil, toYARPCError(err)
	}
	return &GetResourceOverviewResponse{
		RegisteredWorkers: o.RegisteredWorkers,
		PendingWorkers:    o.PendingWorkers,
		TotalSlots:        o.TotalSlots,
		FreeSlots:         o.FreeSlots,
		PendingSlots:      o.PendingSlots,
		AllocatedSlots:    o.AllocatedSlots,
		Jobs:              o.Jobs,
		MissingSlots:      o.MissingSlots,
	}, nil
}

// GetMissingResources returns the requirements no slot covers, per job.
func (h *ServiceHandler) GetMissingResources(
	ctx context.Context,
	req *GetMissingResourcesRequest) (*GetMissingResourcesResponse, error) {
	h.metrics.QueryAPI.Inc(1)
	missing, err := h.manager.GetMissingResources().Get(ctx)
	if err != nil {
		h.metrics.QueryFail.Inc(1)
		return nil, toYARPCError(err)
	}
	resp := &GetMissingResourcesResponse{Jobs: make(map[string][]*Requirement, len(missing))}
	for jobID, reqs := range missing {
		resp.Jobs[string(jobID)] = fromRequirements(reqs)
	}
	return resp, nil
}

// GetJobSlots returns the worker slots a job holds and its pool state.
func (h *ServiceHandler) GetJobSlots(
	ctx context.Context,
	req *GetJobSlotsRequest) (*GetJobSlotsResponse, error) {
	h.metrics.QueryAPI.Inc(1)
	j, err := h.getJob(req.JobID)
	if err != nil {
		h.metrics.QueryFail.Inc(1)
		return nil, err
	}
	slots, err := h.manager.GetJobAllocatedSlots(j.id).Get(ctx)
	if err != nil {
		h.metrics.QueryFail.Inc(1)
		return nil, toYARPCError(err)
	}
	snapshot, err := j.pool.Snapshot().Get(ctx)
	if err != nil {
		h.metrics.QueryFail.Inc(1)
		return nil, toYARPCError(err)
	}

	h.Lock()
	leases, shortage := len(j.leases), j.shortage
	h.Unlock()
	return &GetJobSlotsResponse{
		Slots: fromSlotInfos(slots),
		Pool:  fromSnapshot(snapshot, leases, shortage),
	}, nil
}

// GetWorkerSlots returns the slots of a worker.
func (h *ServiceHandler) GetWorkerSlots(
	ctx context.Context,
	req *GetWorkerSlotsRequest) (*GetWorkerSlotsResponse, error) {
	h.metrics.QueryAPI.Inc(1)
	slots, err := h.manager.GetWorkerSlots(resource.WorkerID(req.WorkerID)).Get(ctx)
	if err != nil {
		h.metrics.QueryFail.Inc(1)
		return nil, toYARPCError(err)
	}
	return &GetWorkerSlotsResponse{Slots: fromSlotInfos(slots)}, nil
}

func (h *ServiceHandler) getJob(id string) (*job, error) {
	if id == "" {
		return nil, errMissingJobID
	}
	h.Lock()
	defer h.Unlock()
	j, ok := h.jobs[resource.JobID(id)]
	if !ok {
		return nil, errJobNotFound
	}
	return j, nil
}

// updateGauges must be called with the lock held.
func (h *ServiceHandler) updateGauges() {
	h.metrics.Jobs.Update(float64(len(h.jobs)))
	h.metrics.Leases.Update(float64(lo.SumBy(lo.Values(h.jobs), func(j *job) int {
		return len(j.leases)
	})))
}
