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
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

type PidWatcherCgroupConfig struct {
	Paths      []string // cgroupfs directories to watch recursively
	IntervalMs int      // poll interval between cgroup scans
}

// PidWatcherCgroup reports the pids found in cgroup.procs files under
// the configured cgroupfs directories. Without configured Paths it
// reports no pids.
type PidWatcherCgroup struct {
	config      *PidWatcherCgroupConfig
	pidListener PidListener
	stop        bool
}

func init() {
	PidWatcherRegister("cgroup", NewPidWatcherCgroup)
}

func NewPidWatcherCgroup() (PidWatcher, error) {
	w := &PidWatcherCgroup{}
	w.SetConfigJson("")
	return w, nil
}

func (w *PidWatcherCgroup) SetConfigJson(configJson string) error {
	config := &PidWatcherCgroupConfig{}
	if err := unmarshal(configJson, config); err != nil {
		return err
	}
	if config.IntervalMs == 0 {
		config.IntervalMs = 5000
	}
	w.config = config
	return nil
}

func (w *PidWatcherCgroup) GetConfigJson() string {
	if w.config == nil {
		return ""
	}
	if configStr, err := json.Marshal(w.config); err == nil {
		return string(configStr)
	}
	return ""
}

func (w *PidWatcherCgroup) SetPidListener(l PidListener) {
	w.pidListener = l
}

func (w *PidWatcherCgroup) Poll() error {
	w.stop = false
	w.loop(true)
	return nil
}

func (w *PidWatcherCgroup) Start() error {
	w.stop = false
	go w.loop(false)
	return nil
}

func (w *PidWatcherCgroup) Stop() {
	w.stop = true
}

func (w *PidWatcherCgroup) Dump([]string) string {
	return fmt.Sprintf("%+v", w)
}

func (w *PidWatcherCgroup) loop(singleshot bool) {
	log.Debug("PidWatcherCgroup: online")
	defer log.Debug("PidWatcherCgroup: offline")
	ticker := time.NewTicker(time.Duration(w.config.IntervalMs) * time.Millisecond)
	defer ticker.Stop()
	for {
		stats.Store(StatsHeartbeat{"PidWatcherCgroup.loop"})
		// Read all pids in all cgroup.procs files in the hierarchies.
		pidsFound := map[int]struct{}{}
		for _, cgroupPath := range w.config.Paths {
			for _, procsPath := range findFiles(cgroupPath, "cgroup.procs") {
				pids, err := readPids(procsPath)
				if err != nil {
					log.Debug("pidwatcher cgroup: %v", err)
					continue
				}
				for _, pid := range pids {
					pidsFound[pid] = struct{}{}
				}
			}
		}
		pids := make([]int, 0, len(pidsFound))
		for pid := range pidsFound {
			pids = append(pids, pid)
		}
		sort.Ints(pids)

		// If requested to stop, quit without informing listeners.
		if w.stop {
			break
		}

		if w.pidListener != nil {
			w.pidListener.ObservePids(pids)
		} else {
			log.Warn("pidwatcher cgroup: ignoring %d found pids because nobody is listening", len(pids))
		}

		// If only one execution was requested, quit without waiting.
		if singleshot {
			break
		}

		// Wait for next tick.
		select {
		case <-ticker.C:
			continue
		}
	}
}

// readPids parses the pids of a cgroup.procs file.
func readPids(path string) ([]int, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(string(content), "\n")
	pids := make([]int, 0, len(lines))
	for index, line := range lines {
		if line == "" {
			continue
		}
		pid, err := strconv.Atoi(line)
		if err != nil {
			return nil, fmt.Errorf("bad pid at %s:%d (%q): %s",
				path, index+1, line, err)
		}
		pids = append(pids, pid)
	}
	return pids, nil
}

// findFiles returns all files with the given name under root.
func findFiles(root string, filename string) []string {
	matchingFiles := []string{}
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Name() == filename {
			matchingFiles = append(matchingFiles, path)
		}
		return nil
	})
	return matchingFiles
}
