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

// Candidate is the process that would benefit the most from huge page
// promotion, together with its score. The score is the translation
// overhead percentage divided by the anonymous memory in MB that huge
// pages do not back yet: high overhead concentrated on little memory
// wins.
type Candidate struct {
	Pid    int
	Comm   string
	Weight float64
}

// bestCandidate scans the records and returns the candidate with the
// strictly greatest weight, or nil if there is none. A record competes
// only if it passed eligibility this tick and its overhead is at least
// minOverhead. Records whose anonymous memory is fully backed by huge
// pages already cannot score.
func bestCandidate(records []*ProcessRecord, minOverhead float64) *Candidate {
	var best *Candidate
	bestWeight := 0.0

	for _, rec := range records {
		if rec.Skip || rec.Overhead < minOverhead {
			continue
		}
		unbackedMb := float64(rec.AnonSizeKb-rec.AnonThpKb) / 1024.0
		if unbackedMb <= 0.0 {
			continue
		}
		weight := rec.Overhead / unbackedMb
		if weight > bestWeight {
			bestWeight = weight
			best = &Candidate{
				Pid:    rec.Pid,
				Comm:   rec.Comm,
				Weight: weight,
			}
		}
	}

	return best
}
