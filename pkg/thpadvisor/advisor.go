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

type AdvisorConfig struct {
	Name   string
	Config string
}

type Advisor interface {
	SetConfigJson(string) error // Set new configuration.
	GetConfigJson() string      // Get current configuration.
	Start() error
	Stop()
	// PidWatcher, Adapter and Emitter are mostly for debugging in the
	// interactive prompt.
	PidWatcher() PidWatcher
	Adapter() MetricsAdapter
	Emitter() HintEmitter
	// Status returns a snapshot of the processes the advisor tracks.
	Status() *AdvisorStatus
	Dump(args []string) string
}

type AdvisorCreator func() (Advisor, error)

// advisors is a map of advisor name -> advisor creator
var advisors map[string]AdvisorCreator = make(map[string]AdvisorCreator, 0)

func AdvisorRegister(name string, creator AdvisorCreator) {
	advisors[name] = creator
}

func AdvisorList() []string {
	keys := make([]string, 0, len(advisors))
	for key := range advisors {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func NewAdvisor(name string) (Advisor, error) {
	if creator, ok := advisors[name]; ok {
		return creator()
	}
	return nil, fmt.Errorf("invalid advisor name %q", name)
}
