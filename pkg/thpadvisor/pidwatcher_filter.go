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
	"path/filepath"
	"regexp"
)

type PidWatcherFilterConfig struct {
	Source  PidWatcherConfig
	Filters []*PidFilterConfig
}

type PidFilterConfig struct {
	Exclude                   bool   // invert the filter: drop matching pids
	ProcExeRegexp             string // match against the resolved /proc/pid/exe path
	ProcCmdlineRegexp         string // match against the full command line
	compiledProcExeRegexp     *regexp.Regexp
	compiledProcCmdlineRegexp *regexp.Regexp
}

// PidWatcherFilter narrows down the pids of a source pidwatcher to
// those whose executable path or command line matches configured
// regular expressions. A pid passes only if every filter admits it.
type PidWatcherFilter struct {
	config      *PidWatcherFilterConfig
	source      PidWatcher
	pidListener PidListener
}

type FilteringPidListener struct {
	w *PidWatcherFilter
}

func init() {
	PidWatcherRegister("filter", NewPidWatcherFilter)
}

func NewPidWatcherFilter() (PidWatcher, error) {
	return &PidWatcherFilter{}, nil
}

func (w *PidWatcherFilter) SetConfigJson(configJson string) error {
	config := &PidWatcherFilterConfig{}
	if err := unmarshal(configJson, config); err != nil {
		return err
	}
	newSource, err := NewPidWatcher(config.Source.Name)
	if err != nil {
		return fmt.Errorf("pidwatcher filter failed to create source: %w", err)
	}
	if err = newSource.SetConfigJson(config.Source.Config); err != nil {
		return fmt.Errorf("configuring pidwatcher filter's source pidwatcher %q failed: %w", config.Source.Name, err)
	}
	// Validate filters.
	for _, fc := range config.Filters {
		if fc.ProcExeRegexp != "" {
			re, err := regexp.Compile(fc.ProcExeRegexp)
			if err != nil {
				return fmt.Errorf("pidwatcher filter: invalid ProcExeRegexp %q: %w", fc.ProcExeRegexp, err)
			}
			fc.compiledProcExeRegexp = re
		}
		if fc.ProcCmdlineRegexp != "" {
			re, err := regexp.Compile(fc.ProcCmdlineRegexp)
			if err != nil {
				return fmt.Errorf("pidwatcher filter: invalid ProcCmdlineRegexp %q: %w", fc.ProcCmdlineRegexp, err)
			}
			fc.compiledProcCmdlineRegexp = re
		}
	}
	w.source = newSource
	w.config = config
	w.source.SetPidListener(&FilteringPidListener{w: w})
	return nil
}

func (w *PidWatcherFilter) GetConfigJson() string {
	if w.config == nil {
		return ""
	}
	if configStr, err := json.Marshal(w.config); err == nil {
		return string(configStr)
	}
	return ""
}

func (w *PidWatcherFilter) SetPidListener(l PidListener) {
	w.pidListener = l
}

func (w *PidWatcherFilter) Poll() error {
	if w.source == nil {
		return fmt.Errorf("pidwatcher filter: poll: missing pid source")
	}
	return w.source.Poll()
}

func (w *PidWatcherFilter) Start() error {
	if w.source == nil {
		return fmt.Errorf("pidwatcher filter: start: missing pid source")
	}
	return w.source.Start()
}

func (w *PidWatcherFilter) Stop() {
	if w.source == nil {
		return
	}
	w.source.Stop()
}

func (w *PidWatcherFilter) Dump([]string) string {
	return fmt.Sprintf("%+v", w)
}

// admit runs all filters on a pid. A pid that disappears while being
// filtered is dropped.
func (w *PidWatcherFilter) admit(pid int) bool {
	for _, fc := range w.config.Filters {
		if fc.compiledProcExeRegexp != nil {
			exeFilepath, err := filepath.EvalSymlinks(fmt.Sprintf("/proc/%d/exe", pid))
			if err != nil {
				return false
			}
			if fc.compiledProcExeRegexp.MatchString(exeFilepath) == fc.Exclude {
				return false
			}
		}
		if fc.compiledProcCmdlineRegexp != nil {
			cmdline, err := procReadCmdline(pid)
			if err != nil {
				return false
			}
			if fc.compiledProcCmdlineRegexp.MatchString(cmdline) == fc.Exclude {
				return false
			}
		}
	}
	return true
}

func (f *FilteringPidListener) ObservePids(pids []int) {
	passedPids := []int{}
	for _, pid := range pids {
		if f.w.admit(pid) {
			passedPids = append(passedPids, pid)
		}
	}
	if f.w.pidListener != nil {
		f.w.pidListener.ObservePids(passedPids)
	} else {
		log.Warn("pidwatcher filter: ignoring pids %v because nobody is listening", passedPids)
	}
}
