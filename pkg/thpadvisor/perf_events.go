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
	"encoding/binary"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// perfEventGroup is a group of perf counters attached to one process.
// The group leader counts cpu cycles, the other members count raw PMU
// events. Grouping makes the kernel schedule all counters together, so
// every count covers the same time slice.
type perfEventGroup struct {
	fds []int // open perf event fds, leader first
}

// perfOpenGroup programs a cycle counter as the group leader and one
// raw counter per selector, all attached to pid on any cpu. Counting
// starts disabled.
func perfOpenGroup(pid int, selectors []uint64) (*perfEventGroup, error) {
	g := &perfEventGroup{}

	leader := unix.PerfEventAttr{
		Type:        unix.PERF_TYPE_HARDWARE,
		Size:        uint32(unsafe.Sizeof(unix.PerfEventAttr{})),
		Config:      unix.PERF_COUNT_HW_CPU_CYCLES,
		Bits:        unix.PerfBitDisabled,
		Read_format: unix.PERF_FORMAT_GROUP,
	}
	fd, err := unix.PerfEventOpen(&leader, pid, -1, -1, unix.PERF_FLAG_FD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("perf_event_open cycles on pid %d: %w", pid, err)
	}
	g.fds = append(g.fds, fd)

	for _, selector := range selectors {
		attr := unix.PerfEventAttr{
			Type:   unix.PERF_TYPE_RAW,
			Size:   uint32(unsafe.Sizeof(unix.PerfEventAttr{})),
			Config: selector,
		}
		fd, err := unix.PerfEventOpen(&attr, pid, -1, g.fds[0], unix.PERF_FLAG_FD_CLOEXEC)
		if err != nil {
			g.Close()
			return nil, fmt.Errorf("perf_event_open %#x on pid %d: %w", selector, pid, err)
		}
		g.fds = append(g.fds, fd)
	}

	return g, nil
}

// Reset zeroes all counters of the group.
func (g *perfEventGroup) Reset() error {
	return g.ioctl(unix.PERF_EVENT_IOC_RESET)
}

// Enable starts all counters of the group.
func (g *perfEventGroup) Enable() error {
	return g.ioctl(unix.PERF_EVENT_IOC_ENABLE)
}

// Disable stops all counters of the group.
func (g *perfEventGroup) Disable() error {
	return g.ioctl(unix.PERF_EVENT_IOC_DISABLE)
}

func (g *perfEventGroup) ioctl(request uint) error {
	if err := unix.IoctlSetInt(g.fds[0], request, unix.PERF_IOC_FLAG_GROUP); err != nil {
		return fmt.Errorf("perf ioctl %#x: %w", request, err)
	}
	return nil
}

// Read returns the current counts of the group in creation order,
// cycles first.
func (g *perfEventGroup) Read() ([]uint64, error) {
	// group read format: u64 member count, then one u64 per member
	buf := make([]byte, 8+8*len(g.fds))
	n, err := unix.Read(g.fds[0], buf)
	if err != nil {
		return nil, fmt.Errorf("perf group read: %w", err)
	}
	if n < len(buf) {
		return nil, fmt.Errorf("perf group read: short read %d of %d bytes", n, len(buf))
	}
	if nr := binary.LittleEndian.Uint64(buf[0:8]); nr != uint64(len(g.fds)) {
		return nil, fmt.Errorf("perf group read: %d counters, expected %d", nr, len(g.fds))
	}

	counts := make([]uint64, len(g.fds))
	for i := range counts {
		counts[i] = binary.LittleEndian.Uint64(buf[8+8*i : 16+8*i])
	}
	return counts, nil
}

// Close closes all counters of the group.
func (g *perfEventGroup) Close() {
	for _, fd := range g.fds {
		unix.Close(fd)
	}
	g.fds = nil
}
