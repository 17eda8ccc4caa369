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
	"sort"

	"github.com/intel/thp-advisor/pkg/metricsring"
)

// OverheadHistory keeps a bounded window of translation overhead
// samples per process and smooths them with an exponentially weighted
// moving average. One noisy sample should not make a process look like
// the top promotion candidate.
type OverheadHistory struct {
	window int
	pids   map[int]metricsring.SampleBuffer
}

func NewOverheadHistory(window int) *OverheadHistory {
	return &OverheadHistory{
		window: window,
		pids:   map[int]metricsring.SampleBuffer{},
	}
}

// Record adds an overhead sample for a pid.
func (h *OverheadHistory) Record(pid int, overhead float64) {
	buf, ok := h.pids[pid]
	if !ok {
		buf = metricsring.NewMetricsRing(h.window)
		h.pids[pid] = buf
	}
	buf.Push(overhead)
}

// Smoothed returns the smoothed overhead of a pid. The average has a
// warm-up period of ten samples during which it returns 0.0.
func (h *OverheadHistory) Smoothed(pid int) float64 {
	if buf, ok := h.pids[pid]; ok {
		return buf.EWMA()
	}
	return 0.0
}

// Last returns up to count latest overhead samples of a pid, oldest
// first.
func (h *OverheadHistory) Last(pid int, count int) []float64 {
	if buf, ok := h.pids[pid]; ok {
		return buf.GetLastNSamples(count)
	}
	return nil
}

// Remove drops the history of a pid.
func (h *OverheadHistory) Remove(pid int) {
	delete(h.pids, pid)
}

// Pids returns the pids with recorded history in ascending order.
func (h *OverheadHistory) Pids() []int {
	pids := make([]int, 0, len(h.pids))
	for pid := range h.pids {
		pids = append(pids, pid)
	}
	sort.Ints(pids)
	return pids
}
