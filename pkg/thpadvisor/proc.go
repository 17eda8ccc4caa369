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
	"os"
	"strconv"
	"strings"
)

// procReadFile reads proc files, replaceable for testing.
var procReadFile = os.ReadFile

// procReadStatus parses the anonymous memory accounting of a process
// from /proc/PID/status. Fields that are absent, as they are for
// kernel threads, read as zero.
func procReadStatus(pid int) (*HugePageStats, error) {
	data, err := procReadFile(fmt.Sprintf("/proc/%d/status", pid))
	if err != nil {
		return nil, err
	}

	hps := &HugePageStats{}
	for _, line := range strings.Split(string(data), "\n") {
		var field *int64
		switch {
		case strings.HasPrefix(line, "RssAnon:"):
			field = &hps.AnonSizeKb
		case strings.HasPrefix(line, "AnonHugePages:"):
			field = &hps.AnonThpKb
		default:
			continue
		}
		kb, err := parseStatusKb(line)
		if err != nil {
			return nil, err
		}
		*field = kb
	}

	return hps, nil
}

// parseStatusKb parses the value of a "Field:   N kB" status line.
func parseStatusKb(line string) (int64, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0, fmt.Errorf("malformed status line %q", line)
	}
	kb, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed status line %q: %w", line, err)
	}
	return kb, nil
}

// procReadComm returns the command name of a process, or the empty
// string if it cannot be read.
func procReadComm(pid int) string {
	data, err := procReadFile(fmt.Sprintf("/proc/%d/comm", pid))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// procReadCmdline returns the command line of a process with the NUL
// separators replaced by spaces.
func procReadCmdline(pid int) (string, error) {
	data, err := procReadFile(fmt.Sprintf("/proc/%d/cmdline", pid))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(strings.ReplaceAll(string(data), "\x00", " ")), nil
}

// procCPUSignature returns the vendor, family and model of the first
// cpu in /proc/cpuinfo.
func procCPUSignature() (string, int, int, error) {
	data, err := procReadFile("/proc/cpuinfo")
	if err != nil {
		return "", 0, 0, err
	}

	vendor, family, model := "", -1, -1
	for _, line := range strings.Split(string(data), "\n") {
		if line == "" && vendor != "" {
			// end of the first cpu block
			break
		}
		split := strings.SplitN(line, ":", 2)
		if len(split) != 2 {
			continue
		}
		key, value := strings.TrimSpace(split[0]), strings.TrimSpace(split[1])
		switch key {
		case "vendor_id":
			vendor = value
		case "cpu family":
			if family, err = strconv.Atoi(value); err != nil {
				return "", 0, 0, fmt.Errorf("malformed cpu family %q: %w", value, err)
			}
		case "model":
			if model, err = strconv.Atoi(value); err != nil {
				return "", 0, 0, fmt.Errorf("malformed cpu model %q: %w", value, err)
			}
		}
	}
	if vendor == "" || family < 0 || model < 0 {
		return "", 0, 0, fmt.Errorf("cpu vendor, family or model missing from /proc/cpuinfo")
	}

	return vendor, family, model, nil
}
