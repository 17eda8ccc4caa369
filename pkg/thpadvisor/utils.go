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
	"sort"
	"strings"
)

// unmarshal parses a JSON configuration string into config, rejecting
// unknown fields. The empty string leaves config untouched.
func unmarshal(configJson string, config interface{}) error {
	if configJson == "" {
		return nil
	}
	decoder := json.NewDecoder(strings.NewReader(configJson))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(config); err != nil {
		return fmt.Errorf("invalid configuration %q: %w", configJson, err)
	}
	return nil
}

func sliceContainsInt(haystack []int, needle int) bool {
	for _, straw := range haystack {
		if straw == needle {
			return true
		}
	}
	return false
}

func sortedCopyOfInts(orig []int) []int {
	retval := make([]int, len(orig))
	copy(retval, orig)
	sort.Ints(retval)
	return retval
}

type mapStringPStatsPulse map[string]*StatsPulse

func (m mapStringPStatsPulse) sortedKeys() []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

type mapIntPStatsPidHinted map[int]*StatsPidHinted

func (m mapIntPStatsPidHinted) sortedKeys() []int {
	keys := make([]int, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Ints(keys)
	return keys
}
