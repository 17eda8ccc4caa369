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
	"testing"
)

func TestRegistryOrdering(t *testing.T) {
	r := NewRegistry()
	for _, pid := range []int{300, 100, 200} {
		r.Insert(&ProcessRecord{Pid: pid})
	}
	pids := r.Pids()
	if len(pids) != 3 || pids[0] != 100 || pids[1] != 200 || pids[2] != 300 {
		t.Errorf("expected pids [100 200 300], observed %v", pids)
	}
	recs := r.Records()
	for i, rec := range recs {
		if rec.Pid != pids[i] {
			t.Errorf("record %d: expected pid %d, observed %d", i, pids[i], rec.Pid)
		}
	}
	r.Remove(200)
	if r.Len() != 2 || sliceContainsInt(r.Pids(), 200) {
		t.Errorf("expected pid 200 removed, observed %v", r.Pids())
	}
}

func TestRegistryPruneStale(t *testing.T) {
	tcases := []struct {
		name           string
		lastSeens      map[int]uint64
		pruneTick      uint64
		expectedPruned []int
		expectedKept   []int
	}{
		{
			name:           "empty registry",
			lastSeens:      map[int]uint64{},
			pruneTick:      5,
			expectedPruned: []int{},
			expectedKept:   []int{},
		}, {
			name:           "all seen on the current tick",
			lastSeens:      map[int]uint64{100: 5, 200: 5},
			pruneTick:      5,
			expectedPruned: []int{},
			expectedKept:   []int{100, 200},
		}, {
			name:           "one record went stale",
			lastSeens:      map[int]uint64{100: 5, 200: 4},
			pruneTick:      5,
			expectedPruned: []int{200},
			expectedKept:   []int{100},
		}, {
			name:           "long stale records go too",
			lastSeens:      map[int]uint64{100: 0, 200: 3, 300: 5},
			pruneTick:      5,
			expectedPruned: []int{100, 200},
			expectedKept:   []int{300},
		},
	}
	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			r := NewRegistry()
			for pid, lastSeen := range tc.lastSeens {
				r.Insert(&ProcessRecord{Pid: pid, LastSeen: lastSeen})
			}
			pruned := r.PruneStale(tc.pruneTick)
			if len(pruned) != len(tc.expectedPruned) {
				t.Fatalf("expected pruned %v, observed %v", tc.expectedPruned, pruned)
			}
			for i := range pruned {
				if pruned[i] != tc.expectedPruned[i] {
					t.Errorf("expected pruned %v, observed %v", tc.expectedPruned, pruned)
				}
			}
			kept := r.Pids()
			if len(kept) != len(tc.expectedKept) {
				t.Fatalf("expected kept %v, observed %v", tc.expectedKept, kept)
			}
			for i := range kept {
				if kept[i] != tc.expectedKept[i] {
					t.Errorf("expected kept %v, observed %v", tc.expectedKept, kept)
				}
			}
		})
	}
}
