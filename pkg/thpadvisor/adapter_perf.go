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
	"time"
)

type AdapterPerfConfig struct {
	SampleMs  int    // translation overhead sampling window length
	CPUFamily string // "auto", "haswell" or "skylake"
}

// AdapterPerf measures processes with Linux perf events and parses
// their huge page accounting from /proc. The translation overhead of a
// process is the share of its cpu cycles spent page walking during a
// short sampling window: dtlb load, dtlb store and itlb miss walks are
// counted against a cycle counter in one perf event group.
type AdapterPerf struct {
	config    *AdapterPerfConfig
	selectors []uint64 // resolved page walk event selectors
}

// Page walk counting differs between CPU generations. Haswell and
// Broadwell count walk duration cycles directly (*_MISSES.WALK_DURATION),
// Skylake and later count cycles with at least one walk active
// (*_MISSES.WALK_ACTIVE, cmask=1).
var perfWalkSelectors = map[string][]uint64{
	"haswell": {0x1008, 0x1049, 0x1085},
	"skylake": {0x1001008, 0x1001049, 0x1001085},
}

// cpuModelSelectors maps Intel family 6 models to selector tables.
var cpuModelSelectors = map[int]string{
	// Haswell, Broadwell
	60: "haswell", 61: "haswell", 63: "haswell", 69: "haswell",
	70: "haswell", 71: "haswell", 79: "haswell", 86: "haswell",
	// Skylake and later
	78: "skylake", 85: "skylake", 94: "skylake", 106: "skylake",
	108: "skylake", 126: "skylake", 140: "skylake", 141: "skylake",
	143: "skylake", 151: "skylake", 154: "skylake", 165: "skylake",
	166: "skylake",
}

func init() {
	AdapterRegister("perf", NewAdapterPerf)
}

func NewAdapterPerf() (MetricsAdapter, error) {
	a := &AdapterPerf{}
	// This adapter is expected to work out-of-the-box without any
	// configuration. Set the defaults immediately.
	if err := a.SetConfigJson(""); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *AdapterPerf) SetConfigJson(configJson string) error {
	config := &AdapterPerfConfig{}
	if err := unmarshal(configJson, config); err != nil {
		return err
	}
	if config.SampleMs == 0 {
		config.SampleMs = 100
	}
	if config.SampleMs < 0 {
		return fmt.Errorf("invalid SampleMs: %d, > 0 expected", config.SampleMs)
	}
	if config.CPUFamily == "" {
		config.CPUFamily = "auto"
	}
	selectors := []uint64(nil)
	if config.CPUFamily != "auto" {
		// Resolution of "auto" is deferred to the first measurement
		// so that configuring on an unsupported cpu still succeeds.
		var ok bool
		if selectors, ok = perfWalkSelectors[config.CPUFamily]; !ok {
			return fmt.Errorf("invalid CPUFamily %q, expected auto, haswell or skylake",
				config.CPUFamily)
		}
	}
	a.selectors = selectors
	a.config = config
	return nil
}

func (a *AdapterPerf) GetConfigJson() string {
	if a.config == nil {
		return ""
	}
	if configStr, err := json.Marshal(a.config); err == nil {
		return string(configStr)
	}
	return ""
}

// RefreshHugePageStats reads the anonymous memory accounting of a
// process from /proc/PID/status.
func (a *AdapterPerf) RefreshHugePageStats(pid int) (*HugePageStats, error) {
	return procReadStatus(pid)
}

// RefreshTranslationOverhead samples the page walk counters of a
// process for the configured window and returns the page walking share
// of its cpu cycles as a percentage.
func (a *AdapterPerf) RefreshTranslationOverhead(pid int) (float64, error) {
	selectors, err := a.walkSelectors()
	if err != nil {
		return 0, err
	}

	g, err := perfOpenGroup(pid, selectors)
	if err != nil {
		return 0, err
	}
	defer g.Close()

	if err := g.Reset(); err != nil {
		return 0, err
	}
	if err := g.Enable(); err != nil {
		return 0, err
	}
	time.Sleep(time.Duration(a.config.SampleMs) * time.Millisecond)
	if err := g.Disable(); err != nil {
		return 0, err
	}

	counts, err := g.Read()
	if err != nil {
		return 0, err
	}

	cycles := counts[0]
	if cycles == 0 {
		return 0, fmt.Errorf("pid %d ran no cycles during the sampling window", pid)
	}
	walks := uint64(0)
	for _, count := range counts[1:] {
		walks += count
	}

	return 100.0 * float64(walks) / float64(cycles), nil
}

func (a *AdapterPerf) Dump(args []string) string {
	return fmt.Sprintf("%+v", a)
}

// walkSelectors returns the page walk event selectors for this cpu,
// detecting the cpu generation on first use.
func (a *AdapterPerf) walkSelectors() ([]uint64, error) {
	if a.selectors != nil {
		return a.selectors, nil
	}

	vendor, family, model, err := procCPUSignature()
	if err != nil {
		return nil, err
	}
	if vendor != "GenuineIntel" || family != 6 {
		return nil, fmt.Errorf("unsupported cpu vendor %q family %d", vendor, family)
	}
	name, ok := cpuModelSelectors[model]
	if !ok {
		return nil, fmt.Errorf("unknown cpu model %d, set CPUFamily explicitly", model)
	}
	log.Info("detected %s page walk counters for cpu model %d", name, model)

	a.selectors = perfWalkSelectors[name]
	return a.selectors, nil
}
