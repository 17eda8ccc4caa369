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
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

type testPidListener struct {
	observed [][]int
}

func (l *testPidListener) ObservePids(pids []int) {
	l.observed = append(l.observed, pids)
}

func (l *testPidListener) last() []int {
	if len(l.observed) == 0 {
		return nil
	}
	return l.observed[len(l.observed)-1]
}

func TestPidWatcherPidlist(t *testing.T) {
	w, err := NewPidWatcher("pidlist")
	if err != nil {
		t.Fatalf("NewPidWatcher(pidlist): %v", err)
	}
	if err := w.SetConfigJson(`{"Pids":[300,100,200]}`); err != nil {
		t.Fatalf("SetConfigJson: %v", err)
	}
	// Polling without a listener must not break anything.
	if err := w.Poll(); err != nil {
		t.Fatalf("Poll without a listener: %v", err)
	}
	listener := &testPidListener{}
	w.SetPidListener(listener)
	if err := w.Poll(); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	pids := listener.last()
	if !cmp.Equal(pids, []int{100, 200, 300}) {
		t.Errorf("expected pids [100 200 300], observed %v", pids)
	}
	if !strings.Contains(w.GetConfigJson(), "100") {
		t.Errorf("expected configured pids in %q", w.GetConfigJson())
	}
}

func filterConfig(t *testing.T, pids []int, filters []*PidFilterConfig) string {
	t.Helper()
	configStr, err := json.Marshal(&PidWatcherFilterConfig{
		Source:  PidWatcherConfig{Name: "pidlist", Config: pidlistConfig(pids)},
		Filters: filters,
	})
	if err != nil {
		t.Fatalf("marshaling filter config: %v", err)
	}
	return string(configStr)
}

func TestPidWatcherFilter(t *testing.T) {
	self := os.Getpid()
	bogus := 1 << 22 // beyond the default pid_max
	tcases := []struct {
		name          string
		pids          []int
		filters       []*PidFilterConfig
		expectedPids  []int
		expectedError string
	}{
		{
			name:         "no filters admit everything",
			pids:         []int{self, bogus},
			filters:      nil,
			expectedPids: []int{self, bogus},
		}, {
			name:         "match-all exe filter drops gone processes",
			pids:         []int{self, bogus},
			filters:      []*PidFilterConfig{{ProcExeRegexp: ".*"}},
			expectedPids: []int{self},
		}, {
			name:         "exclude-all exe filter",
			pids:         []int{self},
			filters:      []*PidFilterConfig{{Exclude: true, ProcExeRegexp: ".*"}},
			expectedPids: []int{},
		}, {
			name:         "match-all cmdline filter",
			pids:         []int{self},
			filters:      []*PidFilterConfig{{ProcCmdlineRegexp: ".*"}},
			expectedPids: []int{self},
		}, {
			name:         "all filters must admit",
			pids:         []int{self},
			filters:      []*PidFilterConfig{{ProcExeRegexp: ".*"}, {Exclude: true, ProcCmdlineRegexp: ".*"}},
			expectedPids: []int{},
		}, {
			name:          "invalid exe regexp",
			pids:          []int{self},
			filters:       []*PidFilterConfig{{ProcExeRegexp: "*"}},
			expectedError: "invalid ProcExeRegexp",
		},
	}
	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			w, err := NewPidWatcher("filter")
			if err != nil {
				t.Fatalf("NewPidWatcher(filter): %v", err)
			}
			err = w.SetConfigJson(filterConfig(t, tc.pids, tc.filters))
			if tc.expectedError != "" {
				if err == nil {
					t.Fatalf("expected error containing %q, observed nil", tc.expectedError)
				}
				if !strings.Contains(err.Error(), tc.expectedError) {
					t.Errorf("expected error containing %q, observed %q", tc.expectedError, err.Error())
				}
				return
			}
			if err != nil {
				t.Fatalf("SetConfigJson: %v", err)
			}
			listener := &testPidListener{}
			w.SetPidListener(listener)
			if err := w.Poll(); err != nil {
				t.Fatalf("Poll: %v", err)
			}
			pids := listener.last()
			if !cmp.Equal(pids, tc.expectedPids, cmpopts.EquateEmpty()) {
				t.Errorf("expected pids %v, observed %v", tc.expectedPids, pids)
			}
		})
	}
}

func TestPidWatcherFilterWithoutSource(t *testing.T) {
	w, err := NewPidWatcher("filter")
	if err != nil {
		t.Fatalf("NewPidWatcher(filter): %v", err)
	}
	if err := w.Poll(); err == nil {
		t.Errorf("expected an error from polling an unconfigured filter")
	}
	if err := w.SetConfigJson(`{"Source":{"Name":"nosuch"}}`); err == nil {
		t.Errorf("expected an error from an invalid source pidwatcher")
	}
}

func TestPidWatcherCgroup(t *testing.T) {
	root := t.TempDir()
	writeProcs := func(dir, procs string) {
		t.Helper()
		if err := os.MkdirAll(filepath.Join(root, dir), 0755); err != nil {
			t.Fatalf("creating %s: %v", dir, err)
		}
		if err := os.WriteFile(filepath.Join(root, dir, "cgroup.procs"), []byte(procs), 0644); err != nil {
			t.Fatalf("writing cgroup.procs under %s: %v", dir, err)
		}
	}
	writeProcs("pod1", "100\n200\n")
	writeProcs("pod1/ctr1", "200\n300\n")
	writeProcs("pod2", "")
	writeProcs("pod3", "not-a-pid\n")

	w, err := NewPidWatcher("cgroup")
	if err != nil {
		t.Fatalf("NewPidWatcher(cgroup): %v", err)
	}
	configStr, err := json.Marshal(&PidWatcherCgroupConfig{Paths: []string{root}})
	if err != nil {
		t.Fatalf("marshaling cgroup watcher config: %v", err)
	}
	if err := w.SetConfigJson(string(configStr)); err != nil {
		t.Fatalf("SetConfigJson: %v", err)
	}
	listener := &testPidListener{}
	w.SetPidListener(listener)
	if err := w.Poll(); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	pids := listener.last()
	if !cmp.Equal(pids, []int{100, 200, 300}) {
		t.Errorf("expected pids [100 200 300], observed %v", pids)
	}
}

func TestPidWatcherProc(t *testing.T) {
	w, err := NewPidWatcher("proc")
	if err != nil {
		t.Fatalf("NewPidWatcher(proc): %v", err)
	}
	listener := &testPidListener{}
	w.SetPidListener(listener)
	if err := w.Poll(); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if len(listener.observed) != 1 {
		t.Fatalf("expected one pid report, observed %d", len(listener.observed))
	}
	pids := listener.last()
	if sliceContainsInt(pids, os.Getpid()) {
		t.Errorf("the watcher must not report its own process, observed %v", pids)
	}
	if !sort.IntsAreSorted(pids) {
		t.Errorf("expected sorted pids, observed %v", pids)
	}
}
