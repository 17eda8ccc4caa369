// Copyright 2019-2020 Intel Corporation. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package instrumentation

import (
	"strings"
	"sync"
	"time"

	"contrib.go.opencensus.io/exporter/prometheus"
	pclient "github.com/prometheus/client_golang/prometheus"
	model "github.com/prometheus/client_model/go"
	"go.opencensus.io/stats/view"

	"github.com/intel/thp-advisor/pkg/instrumentation/http"
)

const (
	// PrometheusMetricsPath is the URL path for our Prometheus metrics.
	PrometheusMetricsPath = "/metrics"
	// prometheusExporting is used in log messages.
	prometheusExporting = "Prometheus exporting"
)

// Gatherers that are registered after the exporter has been set up.
var dynamicGatherers = &gatherers{gatherers: pclient.Gatherers{}}

// gatherers is a trivial mutable version of prometheus.Gatherers.
type gatherers struct {
	sync.RWMutex
	gatherers pclient.Gatherers
}

// Register registers a new gatherer.
func (g *gatherers) Register(gatherer pclient.Gatherer) {
	g.Lock()
	defer g.Unlock()
	g.gatherers = append(g.gatherers, gatherer)
}

// Gather implements the prometheus.Gatherer interface.
func (g *gatherers) Gather() ([]*model.MetricFamily, error) {
	g.RLock()
	defer g.RUnlock()
	return g.gatherers.Gather()
}

// RegisterGatherer registers a new prometheus Gatherer.
func RegisterGatherer(g pclient.Gatherer) {
	dynamicGatherers.Register(g)
}

// metrics encapsulates the state of our Prometheus exporter.
type metrics struct {
	exporter *prometheus.Exporter // prometheus exporter instance
	mux      *http.ServeMux       // mux the exporter handler is registered on
	period   time.Duration        // metrics reporting period
	export   bool                 // whether exporting is enabled
}

// start sets up and starts the Prometheus exporter.
func (m *metrics) start(mux *http.ServeMux, period time.Duration, export bool) error {
	m.period = period
	view.SetReportingPeriod(period)

	if !export {
		log.Info("%s is disabled", prometheusExporting)
		return nil
	}

	log.Info("starting %s...", prometheusExporting)

	exporter, err := prometheus.NewExporter(prometheus.Options{
		Namespace: prometheusNamespace(ServiceName),
		Gatherer:  pclient.Gatherers{dynamicGatherers},
		OnError: func(err error) {
			log.Error("%s error: %v", prometheusExporting, err)
		},
	})
	if err != nil {
		return instrumentationError("failed to create %s exporter: %v", prometheusExporting, err)
	}

	m.exporter = exporter
	m.mux = mux
	m.export = true
	mux.Handle(PrometheusMetricsPath, m.exporter)
	view.RegisterExporter(m.exporter)

	return nil
}

// stop shuts down the Prometheus exporter.
func (m *metrics) stop() {
	if m.exporter != nil {
		log.Info("stopping %s...", prometheusExporting)
		view.UnregisterExporter(m.exporter)
		m.mux.Unregister(PrometheusMetricsPath)
	}

	*m = metrics{}
}

// reconfigure pushes an updated reporting period and exporting state.
func (m *metrics) reconfigure(mux *http.ServeMux, period time.Duration, export bool) error {
	if m.export == export {
		if m.period != period {
			m.period = period
			view.SetReportingPeriod(period)
		}
		return nil
	}

	m.stop()
	return m.start(mux, period, export)
}

// prometheusNamespace mangles a service name into a Prometheus namespace.
func prometheusNamespace(service string) string {
	return strings.ToLower(strings.ReplaceAll(service, "-", "_"))
}
