// Copyright 2022 Intel Corporation. All Rights Reserved.
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

// This file implements thpmem, an anonymous memory exerciser. It
// allocates large anonymous arrays and touches them one byte per page
// in sequential or random order. A large array touched in random order
// keeps the TLB overloaded, which makes the process an easy candidate
// for thpadvisord to pick up.

package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

const pageSize = 4096

// sink prevents the compiler from dropping read loops as dead code.
var sink byte

type toucherStats struct {
	reads  uint64
	writes uint64
}

func numBytes(arg, s string) int64 {
	factor := int64(1)
	numpart := s
	switch {
	case strings.HasSuffix(s, "k"):
		factor = 1 << 10
		numpart = s[:len(s)-1]
	case strings.HasSuffix(s, "M"):
		factor = 1 << 20
		numpart = s[:len(s)-1]
	case strings.HasSuffix(s, "G"):
		factor = 1 << 30
		numpart = s[:len(s)-1]
	}
	n, err := strconv.ParseInt(numpart, 10, 64)
	if err != nil || n < 1 {
		fmt.Printf("syntax error in %s %q: expected [1-9][0-9]*[kMG]?\n", arg, s)
		os.Exit(1)
	}
	return n * factor
}

// toucher touches one byte per page of b until the quit channel closes.
// If writeRatio > 0, every writeRatio'th touch is a write, the rest are
// reads. interval adds a pause between touches in microseconds.
func toucher(id int, b []byte, random bool, writeRatio int, interval int64, stats *toucherStats, quit chan struct{}) {
	npages := int64(len(b)) / pageSize
	if npages == 0 {
		npages = 1
	}
	rnd := rand.New(rand.NewSource(int64(id)))
	page := int64(0)
	touches := 0
	for {
		select {
		case <-quit:
			return
		default:
		}
		if random {
			page = rnd.Int63n(npages)
		} else {
			page = (page + 1) % npages
		}
		offset := page * pageSize
		touches++
		if writeRatio > 0 && touches%writeRatio == 0 {
			b[offset] = byte(touches)
			atomic.AddUint64(&stats.writes, 1)
		} else {
			sink += b[offset]
			atomic.AddUint64(&stats.reads, 1)
		}
		if interval > 0 {
			time.Sleep(time.Duration(interval) * time.Microsecond)
		}
	}
}

func main() {
	optTTL := flag.Int("ttl", -1, "time to live in seconds, -1 is forever")
	optArrayCount := flag.Int("ac", 1, "number of anonymous arrays")
	optArraySize := flag.String("as", "1G", "size of each anonymous array [k, M or G]")
	optToucherCount := flag.Int("tc", 1, "number of toucher goroutines per array")
	optRandom := flag.Bool("random", true, "touch pages in random order instead of sequentially")
	optWriteRatio := flag.Int("wr", 16, "make every N'th touch a write, 0 for read-only")
	optInterval := flag.Int64("ti", 0, "pause between page touches in microseconds")
	optReport := flag.Int("report", 10, "report touch counters every N seconds, 0 disables")
	flag.Parse()

	arraySize := numBytes("-as", *optArraySize)
	fmt.Printf("pid: %d\n", os.Getpid())
	fmt.Printf("allocating %d x %s of anonymous memory\n", *optArrayCount, *optArraySize)

	arrays := make([][]byte, *optArrayCount)
	for i := range arrays {
		arrays[i] = make([]byte, arraySize)
		// Fault every page in so the memory shows up as resident
		// anonymous memory right away.
		for offset := int64(0); offset < arraySize; offset += pageSize {
			arrays[i][offset] = byte(i)
		}
	}

	quit := make(chan struct{})
	stats := make([]toucherStats, *optArrayCount**optToucherCount)
	for i := range arrays {
		for t := 0; t < *optToucherCount; t++ {
			go toucher(i**optToucherCount+t, arrays[i], *optRandom, *optWriteRatio, *optInterval, &stats[i**optToucherCount+t], quit)
		}
	}
	fmt.Printf("started %d touchers\n", len(stats))

	started := time.Now()
	reportTicker := time.NewTicker(time.Second)
	defer reportTicker.Stop()
	for secs := 0; *optTTL < 0 || secs < *optTTL; secs++ {
		<-reportTicker.C
		if *optReport > 0 && secs > 0 && secs%*optReport == 0 {
			reads, writes := uint64(0), uint64(0)
			for i := range stats {
				reads += atomic.LoadUint64(&stats[i].reads)
				writes += atomic.LoadUint64(&stats[i].writes)
			}
			fmt.Printf("%s reads: %d writes: %d\n", time.Since(started).Round(time.Second), reads, writes)
		}
	}
	close(quit)
	fmt.Printf("ttl reached, exiting\n")
}
