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
	"flag"
	"os"
	"strconv"
	"strings"
	"time"

	"go.opencensus.io/trace"
)

// Sampling is the frequency of tracing samples taken.
type Sampling float64

const (
	// Disabled is the sampling frequency to disable trace collection.
	Disabled Sampling = 0.0
	// Production is a trace sampling frequency suitable for production.
	Production Sampling = 0.1
	// Testing is a trace sampling frequency suitable for testing, sampling everything.
	Testing Sampling = 1.0
	// defaultReportPeriod is the default metrics reporting period.
	defaultReportPeriod = 15 * time.Second
	// optPrefix is the prefix of our command line options.
	optPrefix = "instrumentation"
)

// Names of our command line options.
var (
	optHTTPEndpoint     = optPrefix + "-http-endpoint"
	optPrometheusExport = optPrefix + "-prometheus-export"
	optReportPeriod     = optPrefix + "-report-period"
	optSampling         = optPrefix + "-sampling"
	optJaegerCollector  = optPrefix + "-jaeger-collector"
	optJaegerAgent      = optPrefix + "-jaeger-agent"
)

// options encapsulates our configurable instrumentation parameters.
type options struct {
	// Sampling is the frequency of trace sampling.
	Sampling Sampling
	// ReportPeriod is the interval of metrics reporting.
	ReportPeriod time.Duration
	// JaegerCollector is the Jaeger collector endpoint for trace export.
	JaegerCollector string
	// JaegerAgent is the Jaeger agent endpoint for trace export.
	JaegerAgent string
	// HTTPEndpoint is the address our HTTP server listens on.
	HTTPEndpoint string
	// PrometheusExport enables exporting metrics for Prometheus.
	PrometheusExport bool
}

// Our instrumentation options, with defaults taken from the environment.
var opt = defaultOptions()

// Parse parses the given string into a sampling frequency.
func (s *Sampling) Parse(value string) error {
	switch strings.ToLower(value) {
	case "disabled":
		*s = Disabled
	case "production":
		*s = Production
	case "testing":
		*s = Testing
	default:
		freq, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return instrumentationError("invalid sampling frequency %q: %v", value, err)
		}
		if freq < 0.0 || freq > 1.0 {
			return instrumentationError("invalid sampling frequency %q, expected [0.0, 1.0]",
				value)
		}
		*s = Sampling(freq)
	}

	return nil
}

// Set implements the flag.Value interface for Sampling.
func (s *Sampling) Set(value string) error {
	return s.Parse(value)
}

// String returns the given sampling frequency as a string.
func (s Sampling) String() string {
	switch s {
	case Disabled:
		return "disabled"
	case Production:
		return "production"
	case Testing:
		return "testing"
	}
	return strconv.FormatFloat(float64(s), 'f', -1, 64)
}

// Sampler returns a trace sampler corresponding to the sampling frequency.
func (s Sampling) Sampler() trace.Sampler {
	switch s {
	case Disabled:
		return trace.NeverSample()
	case Testing:
		return trace.AlwaysSample()
	default:
		return trace.ProbabilitySampler(float64(s))
	}
}

// defaultOptions picks up instrumentation defaults from the environment.
func defaultOptions() *options {
	o := &options{
		Sampling:        Disabled,
		ReportPeriod:    defaultReportPeriod,
		JaegerCollector: os.Getenv("JAEGER_COLLECTOR"),
		JaegerAgent:     os.Getenv("JAEGER_AGENT"),
		HTTPEndpoint:    os.Getenv("HTTP_ENDPOINT"),
	}

	if value, ok := os.LookupEnv("SAMPLING_FREQUENCY"); ok {
		if err := o.Sampling.Parse(value); err != nil {
			log.Error("invalid SAMPLING_FREQUENCY %q: %v", value, err)
		}
	}
	if value, ok := os.LookupEnv("REPORT_PERIOD"); ok {
		if period, err := time.ParseDuration(value); err == nil {
			o.ReportPeriod = period
		} else {
			log.Error("invalid REPORT_PERIOD %q: %v", value, err)
		}
	}
	if value, ok := os.LookupEnv("PROMETHEUS_EXPORT"); ok {
		if export, err := strconv.ParseBool(value); err == nil {
			o.PrometheusExport = export
		} else {
			log.Error("invalid PROMETHEUS_EXPORT %q: %v", value, err)
		}
	}

	return o
}

// Register our command line flags.
func init() {
	flag.StringVar(&opt.HTTPEndpoint, optHTTPEndpoint, opt.HTTPEndpoint,
		"address the instrumentation HTTP server listens on, empty to disable")
	flag.BoolVar(&opt.PrometheusExport, optPrometheusExport, opt.PrometheusExport,
		"export metrics for Prometheus on the HTTP endpoint")
	flag.DurationVar(&opt.ReportPeriod, optReportPeriod, opt.ReportPeriod,
		"interval for reporting aggregated metrics views")
	flag.Var(&opt.Sampling, optSampling,
		"tracing sample frequency, one of disabled, production, testing, or a ratio in [0.0, 1.0]")
	flag.StringVar(&opt.JaegerCollector, optJaegerCollector, opt.JaegerCollector,
		"Jaeger collector endpoint to export traces to, empty to disable")
	flag.StringVar(&opt.JaegerAgent, optJaegerAgent, opt.JaegerAgent,
		"Jaeger agent endpoint to export traces to, empty to disable")
}
