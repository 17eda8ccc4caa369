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
)

// ProcessRecord is the huge page tracking state of one process. A
// record enters the registry only after the process has passed
// eligibility once, so AnonSizeKb and Overhead always hold measured
// values.
type ProcessRecord struct {
	Pid        int
	Comm       string  // process command name at first observation
	LastSeen   uint64  // logical tick of the latest update
	AnonSizeKb int64   // resident anonymous memory in kB
	AnonThpKb  int64   // anonymous memory backed by huge pages in kB
	Overhead   float64 // latest translation overhead percentage
	Skip       bool    // excluded from candidate scoring this tick
}

// Registry is the set of tracked processes, keyed by pid.
type Registry struct {
	records map[int]*ProcessRecord
}

func NewRegistry() *Registry {
	return &Registry{
		records: map[int]*ProcessRecord{},
	}
}

func (r *Registry) Get(pid int) (*ProcessRecord, bool) {
	rec, ok := r.records[pid]
	return rec, ok
}

func (r *Registry) Insert(rec *ProcessRecord) {
	r.records[rec.Pid] = rec
}

func (r *Registry) Remove(pid int) {
	delete(r.records, pid)
}

func (r *Registry) Len() int {
	return len(r.records)
}

// Pids returns the tracked pids in ascending order.
func (r *Registry) Pids() []int {
	pids := make([]int, 0, len(r.records))
	for pid := range r.records {
		pids = append(pids, pid)
	}
	sort.Ints(pids)
	return pids
}

// Records returns the tracked records in ascending pid order.
func (r *Registry) Records() []*ProcessRecord {
	recs := make([]*ProcessRecord, 0, len(r.records))
	for _, pid := range r.Pids() {
		recs = append(recs, r.records[pid])
	}
	return recs
}

// PruneStale removes every record that was not updated on the tick
// that is currently completing, and returns the removed pids. A record
// updated this tick has LastSeen == tick and survives.
func (r *Registry) PruneStale(tick uint64) []int {
	pruned := []int{}
	for pid, rec := range r.records {
		if rec.LastSeen < tick {
			delete(r.records, pid)
			pruned = append(pruned, pid)
		}
	}
	sort.Ints(pruned)
	return pruned
}
