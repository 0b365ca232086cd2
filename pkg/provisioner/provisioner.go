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

import (
	"context"
	"sync"

	"github.com/tillrohrmann/flink/pkg/common/async"
	"github.com/tillrohrmann/flink/pkg/resource"
	"github.com/tillrohrmann/flink/pkg/slotmanager"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/uber-go/tally"
	"go.uber.org/atomic"
	"golang.org/x/time/rate"
)

//go:generate mockgen -destination=mocks/mock_registrar.go -package=mocks github.com/tillrohrmann/flink/pkg/provisioner Registrar

// ErrStopped fails worker requests pending while the provisioner stops.
var ErrStopped = errors.New("provisioner is stopped")

// Registrar is where a started worker registers its slots.
type Registrar interface {
	RegisterWorker(workerID resource.WorkerID, report resource.SlotReport) *async.Future[struct{}]
}

// RegistrarFunc adapts a function to Registrar. It lets the provisioner
// be created before the slot manager it registers with.
type RegistrarFunc func(workerID resource.WorkerID, report resource.SlotReport) *async.Future[struct{}]

// RegisterWorker calls f.
func (f RegistrarFunc) RegisterWorker(
	workerID resource.WorkerID,
	report resource.SlotReport) *async.Future[struct{}] {
	return f(workerID, report)
}

// Provisioner starts workers inside the process. A started worker gets
// an id and registers its slots right away; no task ever runs on it.
type Provisioner struct {
	sync.Mutex

	config    Config
	registrar Registrar
	limiter   *rate.Limiter
	metrics   *Metrics

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	workers map[resource.WorkerID]resource.WorkerResourceSpec
	running atomic.Bool
}

var _ slotmanager.ResourceActions = (*Provisioner)(nil)

// New creates a stopped provisioner.
func New(config Config, registrar Registrar, parent tally.Scope) *Provisioner {
	config = config.withDefaults()
	return &Provisioner{
		config:    config,
		registrar: registrar,
		limiter:   rate.NewLimiter(rate.Limit(config.LaunchRate), config.LaunchBurst),
		metrics:   NewMetrics(parent.SubScope("provisioner")),
		workers:   make(map[resource.WorkerID]resource.WorkerResourceSpec),
	}
}

// Start implements slotmanager.ServerProcess.
func (p *Provisioner) Start() error {
	p.Lock()
	defer p.Unlock()
	if p.running.Load() {
		return nil
	}
	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.running.Store(true)
	log.Info("Provisioner started")
	return nil
}

// Stop implements slotmanager.ServerProcess. Pending launches fail and
// started workers are forgotten.
func (p *Provisioner) Stop() error {
	p.Lock()
	if !p.running.Load() {
		p.Unlock()
		return nil
	}
	p.running.Store(false)
	p.cancel()
	p.Unlock()

	p.wg.Wait()

	p.Lock()
	defer p.Unlock()
	p.workers = make(map[resource.WorkerID]resource.WorkerResourceSpec)
	p.metrics.RunningWorkers.Update(0)
	log.Info("Provisioner stopped")
	return nil
}

// RequestWorker implements slotmanager.ResourceActions.
func (p *Provisioner) RequestWorker(spec resource.WorkerResourceSpec) *async.Future[resource.WorkerID] {
	p.metrics.WorkerRequested.Inc(1)
	f := async.NewFuture[resource.WorkerID]()

	p.Lock()
	defer p.Unlock()
	if !p.running.Load() {
		p.metrics.WorkerLaunchFail.Inc(1)
		f.Fail(ErrStopped)
		return f
	}
	p.wg.Add(1)
	go p.launch(p.ctx, spec, f)
	return f
}

// ReleaseWorker implements slotmanager.ResourceActions.
func (p *Provisioner) ReleaseWorker(workerID resource.WorkerID, cause error) {
	p.Lock()
	defer p.Unlock()
	if _, ok := p.workers[workerID]; !ok {
		log.WithField("worker_id", workerID).Debug("Release of unknown worker")
		return
	}
	delete(p.workers, workerID)
	p.metrics.WorkerReleased.Inc(1)
	p.metrics.RunningWorkers.Update(float64(len(p.workers)))
	log.WithError(cause).WithField("worker_id", workerID).Info("Worker released")
}

// Workers returns the number of started workers not yet released.
func (p *Provisioner) Workers() int {
	p.Lock()
	defer p.Unlock()
	return len(p.workers)
}

func (p *Provisioner) launch(
	ctx context.Context,
	spec resource.WorkerResourceSpec,
	f *async.Future[resource.WorkerID]) {
	defer p.wg.Done()

	if err := p.limiter.Wait(ctx); err != nil {
		p.metrics.WorkerLaunchFail.Inc(1)
		f.Fail(errors.Wrap(ErrStopped, err.Error()))
		return
	}

	workerID := resource.NewWorkerID()
	p.Lock()
	p.workers[workerID] = spec
	p.metrics.RunningWorkers.Update(float64(len(p.workers)))
	p.Unlock()
	p.metrics.WorkerLaunched.Inc(1)
	log.WithFields(log.Fields{
		"worker_id": workerID,
		"spec":      spec,
	}).Info("Worker launched")
	f.Complete(workerID)

	if _, err := p.registrar.RegisterWorker(workerID, p.slotReport(workerID, spec)).Get(ctx); err != nil {
		log.WithError(err).WithField("worker_id", workerID).Warn("Worker failed to register")
		p.Lock()
		delete(p.workers, workerID)
		p.metrics.RunningWorkers.Update(float64(len(p.workers)))
		p.Unlock()
		return
	}
	p.metrics.WorkerRegistered.Inc(1)
}

func (p *Provisioner) slotReport(workerID resource.WorkerID, spec resource.WorkerResourceSpec) resource.SlotReport {
	profile := spec.SlotProfile(p.config.SlotsPerWorker)
	report := make(resource.SlotReport, 0, p.config.SlotsPerWorker)
	for i := 0; i < p.config.SlotsPerWorker; i++ {
		report = append(report, resource.SlotStatus{
			SlotID:  resource.SlotID{WorkerID: workerID, Index: i},
			Profile: profile,
		})
	}
	return report
}
