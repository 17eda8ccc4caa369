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
	"strings"
	"testing"
)

func fakeProcReadFile(t *testing.T, contents map[string]string) func() {
	t.Helper()
	origProcReadFile := procReadFile
	procReadFile = func(path string) ([]byte, error) {
		if data, ok := contents[path]; ok {
			return []byte(data), nil
		}
		return nil, fmt.Errorf("open %s: no such file or directory", path)
	}
	return func() {
		procReadFile = origProcReadFile
	}
}

func TestProcReadStatus(t *testing.T) {
	tcases := []struct {
		name            string
		status          string
		expectedAnonKb  int64
		expectedThpKb   int64
		expectedError   string
		statusUnreadable bool
	}{
		{
			name: "full status",
			status: strings.Join([]string{
				"Name:\tbigworker",
				"VmRSS:\t  600000 kB",
				"RssAnon:\t  500000 kB",
				"RssFile:\t  100000 kB",
				"AnonHugePages:\t   20480 kB",
				"",
			}, "\n"),
			expectedAnonKb: 500000,
			expectedThpKb:  20480,
		}, {
			name: "kernel thread without anon fields",
			status: strings.Join([]string{
				"Name:\tkswapd0",
				"Threads:\t1",
				"",
			}, "\n"),
			expectedAnonKb: 0,
			expectedThpKb:  0,
		}, {
			name: "malformed value",
			status: strings.Join([]string{
				"RssAnon:\tlots kB",
				"",
			}, "\n"),
			expectedError: "malformed status line",
		}, {
			name: "value without unit",
			status: strings.Join([]string{
				"RssAnon:\t500000",
				"AnonHugePages:\t0 kB",
				"",
			}, "\n"),
			expectedAnonKb: 500000,
			expectedThpKb:  0,
		}, {
			name:            "unreadable status",
			statusUnreadable: true,
			expectedError:   "no such file",
		},
	}
	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			contents := map[string]string{}
			if !tc.statusUnreadable {
				contents["/proc/42/status"] = tc.status
			}
			restore := fakeProcReadFile(t, contents)
			defer restore()

			hps, err := procReadStatus(42)
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
			if hps.AnonSizeKb != tc.expectedAnonKb || hps.AnonThpKb != tc.expectedThpKb {
				t.Errorf("expected anon %d kB, thp %d kB, observed %+v",
					tc.expectedAnonKb, tc.expectedThpKb, hps)
			}
		})
	}
}

func TestProcReadComm(t *testing.T) {
	restore := fakeProcReadFile(t, map[string]string{
		"/proc/42/comm": "bigworker\n",
	})
	defer restore()
	if comm := procReadComm(42); comm != "bigworker" {
		t.Errorf("expected comm \"bigworker\", observed %q", comm)
	}
	if comm := procReadComm(43); comm != "" {
		t.Errorf("expected empty comm for unreadable process, observed %q", comm)
	}
}

func TestProcReadCmdline(t *testing.T) {
	restore := fakeProcReadFile(t, map[string]string{
		"/proc/42/cmdline": "bigworker\x00--threads\x004\x00",
	})
	defer restore()
	cmdline, err := procReadCmdline(42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmdline != "bigworker --threads 4" {
		t.Errorf("expected \"bigworker --threads 4\", observed %q", cmdline)
	}
	if _, err := procReadCmdline(43); err == nil {
		t.Errorf("expected an error for an unreadable process")
	}
}

func TestProcCPUSignature(t *testing.T) {
	tcases := []struct {
		name           string
		cpuinfo        string
		expectedVendor string
		expectedFamily int
		expectedModel  int
		expectedError  string
	}{
		{
			name: "two cpu blocks, first wins",
			cpuinfo: strings.Join([]string{
				"processor\t: 0",
				"vendor_id\t: GenuineIntel",
				"cpu family\t: 6",
				"model\t\t: 85",
				"model name\t: Intel(R) Xeon(R)",
				"",
				"processor\t: 1",
				"vendor_id\t: GenuineIntel",
				"cpu family\t: 6",
				"model\t\t: 17",
				"",
			}, "\n"),
			expectedVendor: "GenuineIntel",
			expectedFamily: 6,
			expectedModel:  85,
		}, {
			name: "missing model",
			cpuinfo: strings.Join([]string{
				"processor\t: 0",
				"vendor_id\t: GenuineIntel",
				"cpu family\t: 6",
				"",
			}, "\n"),
			expectedError: "missing",
		}, {
			name: "malformed family",
			cpuinfo: strings.Join([]string{
				"vendor_id\t: GenuineIntel",
				"cpu family\t: six",
				"model\t\t: 85",
				"",
			}, "\n"),
			expectedError: "malformed cpu family",
		},
	}
	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			restore := fakeProcReadFile(t, map[string]string{
				"/proc/cpuinfo": tc.cpuinfo,
			})
			defer restore()

			vendor, family, model, err := procCPUSignature()
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
			if vendor != tc.expectedVendor || family != tc.expectedFamily || model != tc.expectedModel {
				t.Errorf("expected %s/%d/%d, observed %s/%d/%d",
					tc.expectedVendor, tc.expectedFamily, tc.expectedModel,
					vendor, family, model)
			}
		})
	}
}
