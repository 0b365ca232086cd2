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
	"io"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber-go/tally"
	"go.uber.org/goleak"
)

func TestInitMetricScopePrometheus(t *testing.T) {
	scope, closer, mux := InitMetricScope(
		&Config{Prometheus: &PrometheusConfig{Enable: true}},
		"slot-manager",
		10*time.Millisecond,
	)
	defer closer.Close()
	scope.Counter("boot").Inc(1)

	assert.Eventually(t, func() bool {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest("GET", MetricsEndpoint, nil))
		body, _ := io.ReadAll(w.Result().Body)
		return w.Code == http.StatusOK && strings.Contains(string(body), "slot_manager_boot")
	}, time.Second, 10*time.Millisecond)
}

func TestInitMetricScopeWithoutBackend(t *testing.T) {
	scope, closer, mux := InitMetricScope(&Config{}, "slotmanager", time.Second)
	scope.Counter("boot").Inc(1)
	require.NoError(t, closer.Close())

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("GET", HealthEndpoint, nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("GET", MetricsEndpoint, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRuntimeCollector(t *testing.T) {
	defer goleak.VerifyNone(t)

	scope := tally.NewTestScope("", nil)
	r := NewRuntimeCollector(scope, time.Millisecond)
	assert.False(t, r.IsRunning())

	r.Start()
	assert.True(t, r.IsRunning())
	runtime.GC()
	assert.Eventually(t, func() bool {
		_, ok := scope.Snapshot().Gauges()["num_goroutines+"]
		return ok
	}, time.Second, time.Millisecond)

	r.Stop()
	assert.False(t, r.IsRunning())
}

func TestStartCollectingRuntimeMetricsDisabled(t *testing.T) {
	defer goleak.VerifyNone(t)

	closer := StartCollectingRuntimeMetrics(tally.NoopScope, false, time.Millisecond)
	closer()
}
