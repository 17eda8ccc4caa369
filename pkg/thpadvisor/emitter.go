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

type HintEmitterConfig struct {
	Name   string
	Config string
}

// HintEmitter delivers huge page aggressiveness hints to the kernel or
// to another hint consumer. Delivery is fire-and-forget: a failed Emit
// is reported back but never retried by the emitter itself.
type HintEmitter interface {
	SetConfigJson(string) error // Set new configuration.
	GetConfigJson() string      // Get current configuration.
	// Emit sends a hint value for a process. The value is at least 1
	// and grows with the measured translation overhead.
	Emit(pid int, value int) error
	Dump(args []string) string
}

type HintEmitterCreator func() (HintEmitter, error)

// emitters is a map of hint emitter name -> emitter creator
var emitters map[string]HintEmitterCreator = make(map[string]HintEmitterCreator, 0)

func EmitterRegister(name string, creator HintEmitterCreator) {
	emitters[name] = creator
}

func EmitterList() []string {
	keys := make([]string, 0, len(emitters))
	for key := range emitters {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func NewEmitter(name string) (HintEmitter, error) {
	if creator, ok := emitters[name]; ok {
		return creator()
	}
	return nil, fmt.Errorf("invalid hint emitter name %q", name)
}
