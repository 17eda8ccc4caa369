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

func TestAdapterPerfConfiguration(t *testing.T) {
	tcases := []struct {
		name              string
		config            string
		expectedSampleMs  int
		expectedSelectors []uint64
		expectedError     string
	}{
		{
			name:             "defaults",
			config:           "",
			expectedSampleMs: 100,
		}, {
			name:             "explicit haswell",
			config:           `{"CPUFamily":"haswell"}`,
			expectedSampleMs: 100,
			expectedSelectors: []uint64{
				0x1008, 0x1049, 0x1085,
			},
		}, {
			name:             "explicit skylake with sampling window",
			config:           `{"SampleMs":250,"CPUFamily":"skylake"}`,
			expectedSampleMs: 250,
			expectedSelectors: []uint64{
				0x1001008, 0x1001049, 0x1001085,
			},
		}, {
			name:          "invalid cpu family",
			config:        `{"CPUFamily":"pentium"}`,
			expectedError: "invalid CPUFamily",
		}, {
			name:          "negative sampling window",
			config:        `{"SampleMs":-5}`,
			expectedError: "invalid SampleMs",
		},
	}
	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			a := &AdapterPerf{}
			err := a.SetConfigJson(tc.config)
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
			if a.config.SampleMs != tc.expectedSampleMs {
				t.Errorf("expected SampleMs %d, observed %d", tc.expectedSampleMs, a.config.SampleMs)
			}
			if len(a.selectors) != len(tc.expectedSelectors) {
				t.Fatalf("expected selectors %#x, observed %#x", tc.expectedSelectors, a.selectors)
			}
			for i := range a.selectors {
				if a.selectors[i] != tc.expectedSelectors[i] {
					t.Errorf("expected selectors %#x, observed %#x", tc.expectedSelectors, a.selectors)
				}
			}
		})
	}
}

func TestAdapterPerfCPUDetection(t *testing.T) {
	cpuinfo := func(vendor string, family, model string) string {
		return strings.Join([]string{
			"processor\t: 0",
			"vendor_id\t: " + vendor,
			"cpu family\t: " + family,
			"model\t\t: " + model,
			"",
		}, "\n")
	}
	tcases := []struct {
		name              string
		cpuinfo           string
		expectedSelectors []uint64
		expectedError     string
	}{
		{
			name:              "broadwell counts walk duration",
			cpuinfo:           cpuinfo("GenuineIntel", "6", "79"),
			expectedSelectors: []uint64{0x1008, 0x1049, 0x1085},
		}, {
			name:              "cascade lake counts active walks",
			cpuinfo:           cpuinfo("GenuineIntel", "6", "85"),
			expectedSelectors: []uint64{0x1001008, 0x1001049, 0x1001085},
		}, {
			name:          "non-intel cpu",
			cpuinfo:       cpuinfo("AuthenticAMD", "25", "1"),
			expectedError: "unsupported cpu vendor",
		}, {
			name:          "unknown model",
			cpuinfo:       cpuinfo("GenuineIntel", "6", "42"),
			expectedError: "unknown cpu model",
		},
	}
	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			restore := fakeProcReadFile(t, map[string]string{
				"/proc/cpuinfo": tc.cpuinfo,
			})
			defer restore()

			a := &AdapterPerf{}
			if err := a.SetConfigJson(""); err != nil {
				t.Fatalf("SetConfigJson: %v", err)
			}
			selectors, err := a.walkSelectors()
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
			for i := range selectors {
				if selectors[i] != tc.expectedSelectors[i] {
					t.Fatalf("expected selectors %#x, observed %#x", tc.expectedSelectors, selectors)
				}
			}
			// Detection happens once, later calls use the cache.
			cached, err := a.walkSelectors()
			if err != nil || len(cached) != len(selectors) {
				t.Errorf("expected cached selectors %#x, observed %#x (%v)", selectors, cached, err)
			}
		})
	}
}
