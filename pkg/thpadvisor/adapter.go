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
	"fmt"
	"sort"
)

type MetricsAdapterConfig struct {
	Name   string
	Config string
}

// HugePageStats is the anonymous memory accounting of one process.
type HugePageStats struct {
	AnonSizeKb int64 // resident anonymous memory
	AnonThpKb  int64 // anonymous memory backed by transparent huge pages
}

// MetricsAdapter measures per-process memory statistics on demand. A
// non-nil error from either refresh means the value is unavailable for
// this round: the process may have exited, or the underlying counter
// read failed. Errors are never fatal to the caller.
type MetricsAdapter interface {
	SetConfigJson(string) error // Set new configuration.
	GetConfigJson() string      // Get current configuration.
	// RefreshHugePageStats reads the current anonymous memory
	// accounting of a process.
	RefreshHugePageStats(pid int) (*HugePageStats, error)
	// RefreshTranslationOverhead measures the address translation
	// overhead of a process as a percentage of its cycles.
	RefreshTranslationOverhead(pid int) (float64, error)
	Dump(args []string) string
}

type MetricsAdapterCreator func() (MetricsAdapter, error)

// adapters is a map of metrics adapter name -> adapter creator
var adapters map[string]MetricsAdapterCreator = make(map[string]MetricsAdapterCreator, 0)

func AdapterRegister(name string, creator MetricsAdapterCreator) {
	adapters[name] = creator
}

func AdapterList() []string {
	keys := make([]string, 0, len(adapters))
	for key := range adapters {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func NewAdapter(name string) (MetricsAdapter, error) {
	if creator, ok := adapters[name]; ok {
		return creator()
	}
	return nil, fmt.Errorf("invalid metrics adapter name %q", name)
}
