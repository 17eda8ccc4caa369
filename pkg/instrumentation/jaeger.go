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
	"contrib.go.opencensus.io/exporter/jaeger"
	"go.opencensus.io/trace"
)

const (
	// jaegerTracing is used in log messages.
	jaegerTracing = "Jaeger tracing"
)

// tracing encapsulates the state of our Jaeger tracing exporter.
type tracing struct {
	exporter  *jaeger.Exporter // jaeger exporter instance
	agent     string           // jaeger agent endpoint
	collector string           // jaeger collector endpoint
	sampling  Sampling         // trace sampling frequency
}

// start sets up and starts the Jaeger exporter.
func (t *tracing) start(service, agent, collector string, sampling Sampling) error {
	if agent == "" && collector == "" {
		log.Info("%s is disabled", jaegerTracing)
		return nil
	}

	log.Info("starting %s exporter...", jaegerTracing)

	exporter, err := jaeger.NewExporter(jaeger.Options{
		AgentEndpoint:     agent,
		CollectorEndpoint: collector,
		Process: jaeger.Process{
			ServiceName: service,
		},
		OnError: func(err error) {
			log.Error("%s error: %v", jaegerTracing, err)
		},
	})
	if err != nil {
		return instrumentationError("failed to create %s exporter: %v", jaegerTracing, err)
	}

	t.exporter = exporter
	t.agent = agent
	t.collector = collector
	trace.RegisterExporter(t.exporter)
	t.applySampling(sampling)

	return nil
}

// applySampling updates the sampling frequency of trace collection.
func (t *tracing) applySampling(sampling Sampling) {
	t.sampling = sampling
	trace.ApplyConfig(trace.Config{DefaultSampler: sampling.Sampler()})
}

// stop shuts down the Jaeger exporter.
func (t *tracing) stop() {
	if t.exporter != nil {
		log.Info("stopping %s exporter...", jaegerTracing)
		trace.UnregisterExporter(t.exporter)
		t.exporter.Flush()
	}

	*t = tracing{}
}

// reconfigure pushes updated endpoints and sampling to the exporter.
func (t *tracing) reconfigure(service, agent, collector string, sampling Sampling) error {
	if t.agent == agent && t.collector == collector {
		t.applySampling(sampling)
		return nil
	}

	t.stop()
	return t.start(service, agent, collector, sampling)
}
