// Copyright 2023 Intel Corporation. All Rights Reserved.
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

package thpadvisor

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/intel/thp-advisor/pkg/metrics"
)

const (
	ticksDesc = iota
	trackedDesc
	hintsDesc
	emitErrorsDesc
	anonDesc
	thpDesc
	overheadDesc
	smoothedDesc
	candidateDesc
	numDescriptors
)

var descriptors = [numDescriptors]*prometheus.Desc{
	ticksDesc: prometheus.NewDesc(
		"thpadvisor_ticks_total",
		"Number of completed advisor rounds.",
		nil, nil,
	),
	trackedDesc: prometheus.NewDesc(
		"thpadvisor_tracked_processes",
		"Number of processes in the advisor registry.",
		nil, nil,
	),
	hintsDesc: prometheus.NewDesc(
		"thpadvisor_hints_sent_total",
		"Number of hints delivered to the kernel.",
		nil, nil,
	),
	emitErrorsDesc: prometheus.NewDesc(
		"thpadvisor_hint_errors_total",
		"Number of failed hint deliveries.",
		nil, nil,
	),
	anonDesc: prometheus.NewDesc(
		"thpadvisor_process_anon_bytes",
		"Anonymous memory of a tracked process.",
		[]string{"pid", "comm"}, nil,
	),
	thpDesc: prometheus.NewDesc(
		"thpadvisor_process_anon_thp_bytes",
		"Anonymous memory of a tracked process backed by transparent huge pages.",
		[]string{"pid", "comm"}, nil,
	),
	overheadDesc: prometheus.NewDesc(
		"thpadvisor_process_translation_overhead",
		"Address translation overhead of a tracked process, in percent of cycles.",
		[]string{"pid", "comm"}, nil,
	),
	smoothedDesc: prometheus.NewDesc(
		"thpadvisor_process_translation_overhead_smoothed",
		"Smoothed address translation overhead of a tracked process.",
		[]string{"pid", "comm"}, nil,
	),
	candidateDesc: prometheus.NewDesc(
		"thpadvisor_best_candidate_weight",
		"Weight of the current best huge page candidate.",
		[]string{"pid", "comm"}, nil,
	),
}

// collectorStatus carries the latest advisor status to the metrics
// collector. The advisor pushes a snapshot at the end of every round,
// the collector reads it on scrape.
var collectorStatus = struct {
	sync.Mutex
	status *AdvisorStatus
}{}

func collectorUpdate(status *AdvisorStatus) {
	collectorStatus.Lock()
	defer collectorStatus.Unlock()
	collectorStatus.status = status
}

func collectorGet() *AdvisorStatus {
	collectorStatus.Lock()
	defer collectorStatus.Unlock()
	return collectorStatus.status
}

type collector struct{}

// NewCollector creates a collector exposing the advisor status.
func NewCollector() (prometheus.Collector, error) {
	return &collector{}, nil
}

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range descriptors {
		ch <- d
	}
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
	status := collectorGet()
	if status == nil {
		return
	}
	ch <- prometheus.MustNewConstMetric(
		descriptors[ticksDesc], prometheus.CounterValue, float64(status.Tick))
	ch <- prometheus.MustNewConstMetric(
		descriptors[trackedDesc], prometheus.GaugeValue, float64(len(status.Records)))
	ch <- prometheus.MustNewConstMetric(
		descriptors[hintsDesc], prometheus.CounterValue, float64(status.HintsSent))
	ch <- prometheus.MustNewConstMetric(
		descriptors[emitErrorsDesc], prometheus.CounterValue, float64(status.EmitErrors))
	for _, rec := range status.Records {
		pid := strconv.Itoa(rec.Pid)
		ch <- prometheus.MustNewConstMetric(
			descriptors[anonDesc], prometheus.GaugeValue,
			float64(rec.AnonSizeKb)*1024, pid, rec.Comm)
		ch <- prometheus.MustNewConstMetric(
			descriptors[thpDesc], prometheus.GaugeValue,
			float64(rec.AnonThpKb)*1024, pid, rec.Comm)
		ch <- prometheus.MustNewConstMetric(
			descriptors[overheadDesc], prometheus.GaugeValue,
			rec.Overhead, pid, rec.Comm)
		ch <- prometheus.MustNewConstMetric(
			descriptors[smoothedDesc], prometheus.GaugeValue,
			status.Smoothed[rec.Pid], pid, rec.Comm)
	}
	if status.Best != nil {
		ch <- prometheus.MustNewConstMetric(
			descriptors[candidateDesc], prometheus.GaugeValue,
			status.Best.Weight, strconv.Itoa(status.Best.Pid), status.Best.Comm)
	}
}

func init() {
	err := metrics.RegisterCollector("thpadvisor", NewCollector)
	if err != nil {
		log.Error("failed to register thpadvisor collector: %v", err)
	}
}
