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

func TestStatsSummarize(t *testing.T) {
	stats.Store(StatsHeartbeat{"StatsTest.beat"})
	stats.Store(StatsHeartbeat{"StatsTest.beat"})
	stats.Store(StatsHintSent{pid: 987654, value: 10, initial: true})
	stats.Store(StatsHintSent{pid: 987654, value: 20})

	summary := GetStats().Summarize()
	if !strings.Contains(summary, "table: events") {
		t.Errorf("expected an events table in %q", summary)
	}
	if !strings.Contains(summary, "StatsTest.beat") {
		t.Errorf("expected the stored heartbeat in %q", summary)
	}
	if !strings.Contains(summary, "table: hints") {
		t.Errorf("expected a hints table in %q", summary)
	}
	// pid, hints, initial, last, mean
	if !strings.Contains(summary, "  987654        2        1       20       15") {
		t.Errorf("expected the hint counters of pid 987654 in %q", summary)
	}
}
