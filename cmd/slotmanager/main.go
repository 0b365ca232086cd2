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

package main

import (
	"os"
	"time"

	"github.com/tillrohrmann/flink/pkg/common/async"
	"github.com/tillrohrmann/flink/pkg/common/config"
	"github.com/tillrohrmann/flink/pkg/common/health"
	"github.com/tillrohrmann/flink/pkg/common/leader"
	"github.com/tillrohrmann/flink/pkg/common/logging"
	"github.com/tillrohrmann/flink/pkg/common/metrics"
	"github.com/tillrohrmann/flink/pkg/common/rpc"
	"github.com/tillrohrmann/flink/pkg/common/scheduler"
	"github.com/tillrohrmann/flink/pkg/provisioner"
	"github.com/tillrohrmann/flink/pkg/resource"
	"github.com/tillrohrmann/flink/pkg/slotmanager"
	"github.com/tillrohrmann/flink/pkg/slotmanager/slotsvc"

	"code.cloudfoundry.org/clock"
	log "github.com/sirupsen/logrus"
	_ "go.uber.org/automaxprocs"
	"go.uber.org/yarpc"
	kingpin "gopkg.in/alecthomas/kingpin.v2"
)

const _defaultLeadershipCallbackTimeout = 30 * time.Second

var (
	version string
	app     = kingpin.New("slotmanager", "Slot Manager")

	debug = app.Flag(
		"debug", "enable debug mode (print full json responses)").
		Short('d').
		Default("false").
		Envar("ENABLE_DEBUG_LOGGING").
		Bool()

	cfgFiles = app.Flag(
		"config",
		"YAML config files (can be provided multiple times to merge configs)").
		Short('c').
		Required().
		ExistingFiles()

	electionZkServers = app.Flag(
		"election-zk-server",
		"Election Zookeeper servers. Specify multiple times for multiple servers "+
			"(election.zk_servers override) (set $ELECTION_ZK_SERVERS to override)").
		Envar("ELECTION_ZK_SERVERS").
		Strings()

	httpPort = app.Flag(
		"http-port", "Slot manager HTTP port (slot_manager.http_port override) "+
			"(set $HTTP_PORT to override)").
		Envar("HTTP_PORT").
		Int()

	grpcPort = app.Flag(
		"grpc-port", "Slot manager GRPC port (slot_manager.grpc_port override) "+
			"(set $GRPC_PORT to override)").
		Envar("GRPC_PORT").
		Int()

	matchingStrategy = app.Flag(
		"matching-strategy", "Slot matching strategy "+
			"(slot_manager.manager.matching_strategy override)").
		Envar("MATCHING_STRATEGY").
		Enum(slotmanager.AnyMatching, slotmanager.LeastUtilizationMatching)

	maxSlots = app.Flag(
		"max-slots", "Upper bound of registered and requested slots "+
			"(slot_manager.manager.max_slots override)").
		Envar("MAX_SLOTS").
		Int()
)

func getConfig(cfgFiles ...string) Config {
	log.WithField("files", cfgFiles).
		Info("Loading Slot Manager config")

	var cfg Config
	if err := config.Parse(&cfg, cfgFiles...); err != nil {
		log.WithError(err).Fatal("Cannot parse yaml config")
	}

	// now, override any CLI flags in the loaded config.Config
	if len(*electionZkServers) > 0 {
		cfg.Election.ZKServers = *electionZkServers
	}
	if *httpPort != 0 {
		cfg.SlotManager.HTTPPort = *httpPort
	}
	if *grpcPort != 0 {
		cfg.SlotManager.GRPCPort = *grpcPort
	}
	if *matchingStrategy != "" {
		cfg.SlotManager.Manager.MatchingStrategy = *matchingStrategy
	}
	if *maxSlots != 0 {
		cfg.SlotManager.Manager.MaxSlots = *maxSlots
	}
	if cfg.SlotManager.LeadershipCallbackTimeout <= 0 {
		cfg.SlotManager.LeadershipCallbackTimeout = _defaultLeadershipCallbackTimeout
	}
	// Started workers offer as many slots as the manager expects.
	if cfg.SlotManager.Provisioner.SlotsPerWorker == 0 {
		cfg.SlotManager.Provisioner.SlotsPerWorker = cfg.SlotManager.Manager.SlotsPerWorker
	}

	log.
		WithField("config", cfg).
		Info("Loaded Slot Manager config")
	return cfg
}

func main() {
	app.Version(version)
	app.HelpFlag.Short('h')
	kingpin.MustParse(app.Parse(os.Args[1:]))

	log.SetFormatter(
		&logging.LogFieldFormatter{
			Formatter: &log.JSONFormatter{},
			Fields: log.Fields{
				logging.AppLogField: app.Name,
			},
		},
	)

	initialLevel := log.InfoLevel
	if *debug {
		initialLevel = log.DebugLevel
	}
	log.SetLevel(initialLevel)

	cfg := getConfig(*cfgFiles...)

	rootScope, scopeCloser, mux := metrics.InitMetricScope(
		&cfg.Metrics,
		slotmanager.Role,
		metrics.TallyFlushInterval,
	)
	defer scopeCloser.Close()
	rootScope.Counter("boot").Inc(1)

	mux.HandleFunc(logging.LevelOverwrite, logging.LevelOverwriteHandler(initialLevel))

	sched := scheduler.NewDeadlineScheduler(clock.NewClock(), rootScope)
	sched.Start()
	defer sched.Stop()

	mailbox := async.NewMailbox(slotmanager.Role, rootScope)
	mailbox.Start()
	defer mailbox.Stop()

	// The provisioner registers the workers it starts with the manager,
	// which does not exist yet.
	var manager *slotmanager.Manager
	workers := provisioner.New(
		cfg.SlotManager.Provisioner,
		provisioner.RegistrarFunc(func(
			workerID resource.WorkerID,
			report resource.SlotReport) *async.Future[struct{}] {
			return manager.RegisterWorker(workerID, report)
		}),
		rootScope,
	)

	manager, err := slotmanager.NewManager(
		cfg.SlotManager.Manager,
		workers,
		mailbox,
		sched,
		rootScope,
	)
	if err != nil {
		log.WithError(err).Fatal("Cannot create slot manager")
	}

	// Create both HTTP and GRPC inbounds
	inbounds, err := rpc.NewInbounds(
		cfg.SlotManager.HTTPPort,
		cfg.SlotManager.GRPCPort,
		mux,
	)
	if err != nil {
		log.WithError(err).Fatal("Cannot create inbounds")
	}

	dispatcher := yarpc.NewDispatcher(yarpc.Config{
		Name:     slotmanager.Role,
		Inbounds: inbounds,
		Metrics: yarpc.MetricsConfig{
			Tally: rootScope,
		},
	})

	handler := slotsvc.InitServiceHandler(
		dispatcher,
		rootScope,
		manager,
		cfg.SlotManager.Pool,
		sched,
		slotsvc.MailboxExecutors(rootScope),
	)

	// The provisioner starts right after the manager so that worker
	// requests of the first check are served; jobs go first on the way
	// down.
	server := slotmanager.NewServer(
		rootScope,
		cfg.SlotManager.HTTPPort,
		manager,
		cfg.SlotManager.LeadershipCallbackTimeout,
		workers,
		handler,
	)

	candidate, err := leader.NewCandidate(
		cfg.Election,
		rootScope,
		slotmanager.Role,
		server,
	)
	if err != nil {
		log.Fatalf("Unable to create leader candidate: %v", err)
	}

	if err = candidate.Start(); err != nil {
		log.Fatalf("Unable to start leader candidate: %v", err)
	}
	defer candidate.Stop()

	// Start dispatch loop
	if err := dispatcher.Start(); err != nil {
		log.Fatalf("Unable to start rpc server: %v", err)
	}
	defer dispatcher.Stop()

	log.WithFields(log.Fields{
		"http_port": cfg.SlotManager.HTTPPort,
		"grpc_port": cfg.SlotManager.GRPCPort,
	}).Info("Started slot manager")

	// we can *honestly* say the server is booted up now
	heartbeat := health.NewHeartbeat(rootScope, cfg.Health, candidate, clock.NewClock())
	heartbeat.Start()
	defer heartbeat.Stop()

	// start collecting runtime metrics
	defer metrics.StartCollectingRuntimeMetrics(
		rootScope,
		cfg.Metrics.RuntimeMetrics.Enabled,
		cfg.Metrics.RuntimeMetrics.CollectInterval)()

	select {}
}
