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

package metrics

import (
	"fmt"
	"io"
	nethttp "net/http"
	"strings"
	"time"

	"github.com/m3db/prometheus_client_golang/prometheus"
	"github.com/m3db/prometheus_client_golang/prometheus/collectors"
	"github.com/m3db/prometheus_client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/uber-go/tally"
	tallyprom "github.com/uber-go/tally/prometheus"
)

const (
	// TallyFlushInterval is the flush interval of the root scope.
	TallyFlushInterval = 1 * time.Second

	// MetricsEndpoint serves the prometheus exposition.
	MetricsEndpoint = "/metrics"

	// HealthEndpoint answers liveness probes.
	HealthEndpoint = "/health"
)

// Config will be contianing the metrics configuration
type Config struct {
	Prometheus     *PrometheusConfig    `yaml:"prometheus"`
	RuntimeMetrics RuntimeMetricsConfig `yaml:"runtime_metrics"`
}

// PrometheusConfig enables the prometheus reporter.
type PrometheusConfig struct {
	Enable bool `yaml:"enable"`
}

// RuntimeMetricsConfig configures the Go runtime collector.
type RuntimeMetricsConfig struct {
	Enabled         bool          `yaml:"enabled"`
	CollectInterval time.Duration `yaml:"collect_interval"`
}

// InitMetricScope initialize a root scope and its closer, with a http server mux
func InitMetricScope(
	cfg *Config,
	rootMetricScope string,
	metricFlushInterval time.Duration) (tally.Scope, io.Closer, *nethttp.ServeMux) {
	// mux is used to mux together other (non-RPC) handlers, like metrics exposition endpoints, etc
	mux := nethttp.NewServeMux()
	var (
		reporter       tally.StatsReporter
		cachedReporter tally.CachedStatsReporter
	)
	metricSeparator := "."
	if cfg.Prometheus != nil && cfg.Prometheus.Enable {
		// tally panics if scope name contains "-", hence force convert to "_"
		rootMetricScope = strings.Replace(rootMetricScope, "-", "_", -1)
		metricSeparator = "_"

		registry := prometheus.NewRegistry()
		registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		cachedReporter = tallyprom.NewReporter(tallyprom.Options{
			Registerer: registry,
			OnRegisterError: func(err error) {
				log.WithError(err).Warn("Failed to register prometheus metric")
			},
		})

		log.Infof("Setting up prometheus metrics handler at %s", MetricsEndpoint)
		mux.Handle(MetricsEndpoint, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	} else {
		log.Warn("No metrics backends configured, using the null reporter")
		reporter = tally.NullStatsReporter
	}

	mux.HandleFunc(HealthEndpoint, func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		w.WriteHeader(nethttp.StatusOK)
		fmt.Fprintln(w, `\(★ω★)/`)
	})

	metricScope, scopeCloser := tally.NewRootScope(tally.ScopeOptions{
		Prefix:         rootMetricScope,
		Tags:           map[string]string{},
		Reporter:       reporter,
		CachedReporter: cachedReporter,
		Separator:      metricSeparator,
	}, metricFlushInterval)
	return metricScope, scopeCloser, mux
}
