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
	"sync"
	"time"
)

// Stats accumulates runtime counters for the interactive prompt and
// debugging. Entries are stored from the advisor tick goroutine and
// summarized from the prompt, hence the lock.
type Stats struct {
	mutex     sync.Mutex
	namePulse mapStringPStatsPulse
	pidHints  mapIntPStatsPidHinted
}

type StatsPulse struct {
	sumBeats   uint64
	firstBeat  int64
	latestBeat int64
}

type StatsHeartbeat struct {
	name string
}

type StatsHintSent struct {
	pid     int
	value   int
	initial bool
}

type StatsPidHinted struct {
	sumHints    uint64
	sumValue    uint64
	initialSent uint64
	lastValue   int
}

var stats *Stats = newStats()

func newStats() *Stats {
	return &Stats{
		namePulse: make(mapStringPStatsPulse),
		pidHints:  make(mapIntPStatsPidHinted),
	}
}

func newStatsPulse() *StatsPulse {
	return &StatsPulse{}
}

func newStatsPidHinted() *StatsPidHinted {
	return &StatsPidHinted{}
}

func GetStats() *Stats {
	return stats
}

func (s *Stats) Store(entry interface{}) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	switch v := entry.(type) {
	case StatsHeartbeat:
		pulse, ok := s.namePulse[v.name]
		if !ok {
			pulse = newStatsPulse()
			pulse.firstBeat = time.Now().UnixNano()
			s.namePulse[v.name] = pulse
		}
		pulse.sumBeats += 1
		pulse.latestBeat = time.Now().UnixNano()
	case StatsHintSent:
		// keep separate statistics for every pid
		sph, ok := s.pidHints[v.pid]
		if !ok {
			sph = newStatsPidHinted()
			s.pidHints[v.pid] = sph
		}
		sph.sumHints += 1
		sph.sumValue += uint64(v.value)
		sph.lastValue = v.value
		if v.initial {
			sph.initialSent += 1
		}
	}
}

func (s *Stats) Summarize() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	lines := []string{}
	lines = append(lines, "table: events")
	lines = append(lines, "   count timeint[s] latest[s ago] name")
	now := time.Now().UnixNano()
	for _, name := range s.namePulse.sortedKeys() {
		pulse := s.namePulse[name]
		secondsSinceFirst := float32(now-pulse.firstBeat) / float32(time.Second)
		secondsSinceLatest := float32(now-pulse.latestBeat) / float32(time.Second)
		beatsMinusOne := pulse.sumBeats - 1
		if beatsMinusOne == 0 {
			beatsMinusOne = 1
		}
		lines = append(lines,
			fmt.Sprintf("%8d %10.3f %13.3f %s",
				pulse.sumBeats,
				(secondsSinceFirst-secondsSinceLatest)/float32(beatsMinusOne),
				secondsSinceLatest,
				name))
	}
	lines = append(lines, "table: hints")
	lines = append(lines, "     pid    hints  initial     last     mean")
	for _, pid := range s.pidHints.sortedKeys() {
		sph := s.pidHints[pid]
		lines = append(lines, fmt.Sprintf("%8d %8d %8d %8d %8d",
			pid,
			sph.sumHints,
			sph.initialSent,
			sph.lastValue,
			sph.sumValue/sph.sumHints))
	}
	return strings.Join(lines, "\n")
}

func (s *Stats) String() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return fmt.Sprintf("%v", s.pidHints)
}
