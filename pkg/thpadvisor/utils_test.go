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
	"strings"
	"testing"
)

func TestUnmarshal(t *testing.T) {
	type config struct {
		IntervalMs int
	}
	tcases := []struct {
		name          string
		configJson    string
		expectedValue int
		expectedError string
	}{
		{
			name:          "empty string keeps the defaults",
			configJson:    "",
			expectedValue: 42,
		}, {
			name:          "valid configuration",
			configJson:    `{"IntervalMs":1000}`,
			expectedValue: 1000,
		}, {
			name:          "unknown field",
			configJson:    `{"IntervalMs":1000,"Bogus":1}`,
			expectedError: "invalid configuration",
		}, {
			name:          "broken json",
			configJson:    `{"IntervalMs":`,
			expectedError: "invalid configuration",
		},
	}
	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			c := &config{IntervalMs: 42}
			err := unmarshal(tc.configJson, c)
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
				t.Fatalf("unexpected error: %v", err)
			}
			if c.IntervalMs != tc.expectedValue {
				t.Errorf("expected IntervalMs %d, observed %d", tc.expectedValue, c.IntervalMs)
			}
		})
	}
}

func TestSortedCopyOfInts(t *testing.T) {
	orig := []int{3, 1, 2}
	sorted := sortedCopyOfInts(orig)
	if sorted[0] != 1 || sorted[1] != 2 || sorted[2] != 3 {
		t.Errorf("expected [1 2 3], observed %v", sorted)
	}
	if orig[0] != 3 {
		t.Errorf("expected the original slice untouched, observed %v", orig)
	}
}
