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
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.opencensus.io/trace"

	logger "github.com/intel/thp-advisor/pkg/log"
)

type AdvisorOverheadConfig struct {
	PidWatcher             PidWatcherConfig
	Adapter                MetricsAdapterConfig
	Emitter                HintEmitterConfig
	IntervalMs             int     // pause between advisor rounds
	EligibilityThresholdKb int64   // minimum anon size worth measuring
	MinOverhead            float64 // minimum overhead for candidate scoring
	HistoryWindow          int     // overhead samples kept per pid
}

const advisorOverheadDefaults string = `{"PidWatcher":{"Name":"proc"},"Adapter":{"Name":"perf"},"Emitter":{"Name":"syscall"},"IntervalMs":10000,"EligibilityThresholdKb":10240,"MinOverhead":5.0,"HistoryWindow":60}`

// initialHintValue is sent once when a process enters the registry, to
// tell the hint consumer that a new process is worth promoting
// aggressively until real overhead measurements accumulate.
const initialHintValue = 1000

// AdvisorStatus is a point-in-time view of the advisor. A published
// status is never modified afterwards, so holding on to one is safe.
type AdvisorStatus struct {
	Tick       uint64          // completed advisor rounds
	Records    []ProcessRecord // tracked processes, ascending pid
	Smoothed   map[int]float64 // smoothed overhead per pid
	Best       *Candidate      // current best candidate, nil if none
	LastPruned []int           // pids pruned on the latest round
	HintsSent  uint64          // hints delivered so far
	EmitErrors uint64          // failed hint deliveries so far
}

// AdvisorOverhead drives the tracking rounds. On every round it asks
// the pidwatcher for the current pids, refreshes the records of the
// observed processes, prunes the processes that were not seen, scores
// the survivors and emits one hint per updated process. The logical
// clock advances once per completed round and is the sole staleness
// oracle: a record not stamped on the round that just ran is stale.
//
// The registry is owned by the round goroutine alone. Other goroutines
// see the advisor only through the published status snapshots.
type AdvisorOverhead struct {
	config     *AdvisorOverheadConfig
	pidwatcher PidWatcher
	adapter    MetricsAdapter
	emitter    HintEmitter
	registry   *Registry
	history    *OverheadHistory
	tick       uint64 // logical clock, advances once per completed round
	observed   []int  // pids delivered by the pidwatcher during a poll
	hintsSent  uint64
	emitErrors uint64
	tickLoop   chan interface{}
	rlog       logger.Logger // rate-limited logging of per-round failures
	mutex      sync.Mutex    // guards status
	status     *AdvisorStatus
}

func init() {
	AdvisorRegister("overhead", NewAdvisorOverhead)
}

func NewAdvisorOverhead() (Advisor, error) {
	a := &AdvisorOverhead{
		registry: NewRegistry(),
		rlog:     logger.RateLimit(log, logger.Interval(time.Minute)),
	}
	if err := a.SetConfigJson(advisorOverheadDefaults); err != nil {
		return nil, fmt.Errorf("default configuration error: %s", err)
	}
	return a, nil
}

func (a *AdvisorOverhead) SetConfigJson(configJson string) error {
	config := &AdvisorOverheadConfig{}
	if err := unmarshal(configJson, config); err != nil {
		return err
	}
	if config.IntervalMs <= 0 {
		return fmt.Errorf("invalid IntervalMs: %d, > 0 expected", config.IntervalMs)
	}
	if config.EligibilityThresholdKb < 0 {
		return fmt.Errorf("invalid EligibilityThresholdKb: %d, >= 0 expected", config.EligibilityThresholdKb)
	}
	if config.MinOverhead < 0 {
		return fmt.Errorf("invalid MinOverhead: %f, >= 0 expected", config.MinOverhead)
	}
	if config.HistoryWindow == 0 {
		config.HistoryWindow = 60
	}
	if config.HistoryWindow < 0 {
		return fmt.Errorf("invalid HistoryWindow: %d, > 0 expected", config.HistoryWindow)
	}
	newWatcher, err := NewPidWatcher(config.PidWatcher.Name)
	if err != nil {
		return err
	}
	if err = newWatcher.SetConfigJson(config.PidWatcher.Config); err != nil {
		return fmt.Errorf("configuring pidwatcher %q failed: %w", config.PidWatcher.Name, err)
	}
	newAdapter, err := NewAdapter(config.Adapter.Name)
	if err != nil {
		return err
	}
	if err = newAdapter.SetConfigJson(config.Adapter.Config); err != nil {
		return fmt.Errorf("configuring metrics adapter %q failed: %w", config.Adapter.Name, err)
	}
	newEmitter, err := NewEmitter(config.Emitter.Name)
	if err != nil {
		return err
	}
	if err = newEmitter.SetConfigJson(config.Emitter.Config); err != nil {
		return fmt.Errorf("configuring hint emitter %q failed: %w", config.Emitter.Name, err)
	}
	a.pidwatcher = newWatcher
	a.adapter = newAdapter
	a.emitter = newEmitter
	a.pidwatcher.SetPidListener(a)
	a.history = NewOverheadHistory(config.HistoryWindow)
	a.config = config
	return nil
}

func (a *AdvisorOverhead) GetConfigJson() string {
	if a.config == nil {
		return ""
	}
	aconfig := *a.config
	if a.pidwatcher != nil {
		aconfig.PidWatcher.Config = a.pidwatcher.GetConfigJson()
	}
	if a.adapter != nil {
		aconfig.Adapter.Config = a.adapter.GetConfigJson()
	}
	if a.emitter != nil {
		aconfig.Emitter.Config = a.emitter.GetConfigJson()
	}
	if configStr, err := json.Marshal(&aconfig); err == nil {
		return string(configStr)
	}
	return ""
}

func (a *AdvisorOverhead) PidWatcher() PidWatcher {
	return a.pidwatcher
}

func (a *AdvisorOverhead) Adapter() MetricsAdapter {
	return a.adapter
}

func (a *AdvisorOverhead) Emitter() HintEmitter {
	return a.emitter
}

func (a *AdvisorOverhead) Start() error {
	if a.tickLoop != nil {
		return fmt.Errorf("already started")
	}
	if a.config == nil {
		return fmt.Errorf("unconfigured advisor")
	}
	if a.pidwatcher == nil || a.adapter == nil || a.emitter == nil {
		return fmt.Errorf("advisor is missing a pidwatcher, adapter or emitter")
	}
	a.tickLoop = make(chan interface{})
	go a.loop()
	return nil
}

func (a *AdvisorOverhead) Stop() {
	if a.tickLoop != nil {
		a.tickLoop <- struct{}{}
	}
}

func (a *AdvisorOverhead) loop() {
	log.Debug("AdvisorOverhead: online")
	defer log.Debug("AdvisorOverhead: offline")
	ticker := time.NewTicker(time.Duration(a.config.IntervalMs) * time.Millisecond)
	defer ticker.Stop()
	quit := false
	for !quit {
		a.runTick(context.Background())
		select {
		case <-a.tickLoop:
			quit = true
		case <-ticker.C:
			continue
		}
	}
	close(a.tickLoop)
	a.tickLoop = nil
}

// ObservePids stores the pids the pidwatcher found. Called back
// synchronously from the round goroutine during Poll.
func (a *AdvisorOverhead) ObservePids(pids []int) {
	a.observed = pids
}

// runTick runs one advisor round.
func (a *AdvisorOverhead) runTick(ctx context.Context) {
	_, span := trace.StartSpan(ctx, "AdvisorOverhead.runTick")
	defer span.End()

	stats.Store(StatsHeartbeat{"AdvisorOverhead.tick"})

	var errs *multierror.Error

	a.observed = nil
	if err := a.pidwatcher.Poll(); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("pid watcher poll: %w", err))
	}

	for _, pid := range a.observed {
		if pid <= 0 {
			continue
		}
		if rec, ok := a.registry.Get(pid); ok {
			// An updated process gets a hint even when the update
			// failed: its last known overhead, with a floor of one.
			a.updateRecord(rec)
			if err := a.emitHint(pid, hintValue(rec.Overhead), false); err != nil {
				errs = multierror.Append(errs, err)
			}
		} else {
			rec := &ProcessRecord{Pid: pid, Comm: procReadComm(pid)}
			if !a.updateRecord(rec) {
				// Never passed eligibility, not worth tracking yet.
				// Retried when the pidwatcher reports it again.
				continue
			}
			a.registry.Insert(rec)
			if err := a.emitHint(pid, initialHintValue, true); err != nil {
				errs = multierror.Append(errs, err)
			}
			if err := a.emitHint(pid, hintValue(rec.Overhead), false); err != nil {
				errs = multierror.Append(errs, err)
			}
		}
	}

	pruned := a.registry.PruneStale(a.tick)
	for _, pid := range pruned {
		a.history.Remove(pid)
	}
	if len(pruned) > 0 {
		log.Debug("tick %d: pruned %d disappeared processes: %v", a.tick, len(pruned), pruned)
	}

	for _, rec := range a.registry.Records() {
		if !rec.Skip {
			a.history.Record(rec.Pid, rec.Overhead)
		}
	}

	best := bestCandidate(a.registry.Records(), a.config.MinOverhead)
	if best != nil {
		log.Debug("tick %d: best candidate pid %d (%s), weight %.2f",
			a.tick, best.Pid, best.Comm, best.Weight)
		stats.Store(StatsHeartbeat{"AdvisorOverhead.candidate"})
	}

	if err := errs.ErrorOrNil(); err != nil {
		a.rlog.Error("tick %d: %v", a.tick, err)
	}

	span.AddAttributes(
		trace.Int64Attribute("tracked", int64(a.registry.Len())),
		trace.Int64Attribute("pruned", int64(len(pruned))))

	a.tick++
	a.updateStatus(best, pruned)
}

// updateRecord runs the eligibility protocol on a record: stamp it as
// seen on this round, refresh its memory accounting, and if it holds
// enough anonymous memory, measure its translation overhead. Returns
// true if every step passed and the record is eligible for scoring.
// On failure the record keeps the values of its last success.
func (a *AdvisorOverhead) updateRecord(rec *ProcessRecord) bool {
	rec.LastSeen = a.tick

	hps, err := a.adapter.RefreshHugePageStats(rec.Pid)
	if err != nil {
		log.Debug("pid %d: huge page stats unavailable: %v", rec.Pid, err)
		rec.Skip = true
		return false
	}
	if hps.AnonSizeKb < 0 || hps.AnonThpKb < 0 || hps.AnonThpKb > hps.AnonSizeKb {
		log.Debug("pid %d: malformed huge page stats %+v", rec.Pid, hps)
		rec.Skip = true
		return false
	}
	rec.AnonSizeKb = hps.AnonSizeKb
	rec.AnonThpKb = hps.AnonThpKb

	if rec.AnonSizeKb <= a.config.EligibilityThresholdKb {
		rec.Skip = true
		return false
	}

	overhead, err := a.adapter.RefreshTranslationOverhead(rec.Pid)
	if err != nil {
		log.Debug("pid %d: translation overhead unavailable: %v", rec.Pid, err)
		rec.Skip = true
		return false
	}
	if overhead < 0 {
		log.Debug("pid %d: malformed translation overhead %f", rec.Pid, overhead)
		rec.Skip = true
		return false
	}
	rec.Overhead = overhead
	rec.Skip = false
	return true
}

// hintValue converts a measured overhead into a hint value, truncating
// toward zero with a floor of one. The floor keeps an updated process
// visible to the hint consumer even when its overhead rounds to zero.
func hintValue(overhead float64) int {
	value := int(overhead)
	if value < 1 {
		value = 1
	}
	return value
}

func (a *AdvisorOverhead) emitHint(pid int, value int, initial bool) error {
	if err := a.emitter.Emit(pid, value); err != nil {
		a.emitErrors++
		return fmt.Errorf("hint for pid %d: %w", pid, err)
	}
	a.hintsSent++
	stats.Store(StatsHintSent{pid: pid, value: value, initial: initial})
	return nil
}

// updateStatus publishes a fresh status snapshot for Status callers
// and the metrics collector.
func (a *AdvisorOverhead) updateStatus(best *Candidate, pruned []int) {
	status := &AdvisorStatus{
		Tick:       a.tick,
		Records:    make([]ProcessRecord, 0, a.registry.Len()),
		Smoothed:   map[int]float64{},
		LastPruned: pruned,
		HintsSent:  a.hintsSent,
		EmitErrors: a.emitErrors,
	}
	debugging := log.DebugEnabled()
	for _, rec := range a.registry.Records() {
		status.Records = append(status.Records, *rec)
		status.Smoothed[rec.Pid] = a.history.Smoothed(rec.Pid)
		if debugging {
			log.Debug("pid %6d (%s): required %6d thp, backed %6d thp, overhead %5.1f%%, skip=%v",
				rec.Pid, rec.Comm, rec.AnonSizeKb/2048, rec.AnonThpKb/2048, rec.Overhead, rec.Skip)
		}
	}
	if best != nil {
		bestCopy := *best
		status.Best = &bestCopy
	}

	a.mutex.Lock()
	a.status = status
	a.mutex.Unlock()

	collectorUpdate(status)
}

func (a *AdvisorOverhead) Status() *AdvisorStatus {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	if a.status == nil {
		return &AdvisorStatus{Smoothed: map[int]float64{}}
	}
	return a.status
}

func (a *AdvisorOverhead) Dump(args []string) string {
	status := a.Status()
	verbs := args
	if len(verbs) == 0 {
		verbs = []string{"registry", "candidate"}
	}
	lines := []string{}
	for _, verb := range verbs {
		switch verb {
		case "registry":
			lines = append(lines, fmt.Sprintf("tick %d: %d tracked processes",
				status.Tick, len(status.Records)))
			lines = append(lines, "     pid             comm   anon[kB]    thp[kB] overhead[%] smoothed[%] skip")
			for _, rec := range status.Records {
				lines = append(lines, fmt.Sprintf("%8d %16s %10d %10d %11.2f %11.2f %v",
					rec.Pid, rec.Comm, rec.AnonSizeKb, rec.AnonThpKb,
					rec.Overhead, status.Smoothed[rec.Pid], rec.Skip))
			}
		case "candidate":
			if status.Best != nil {
				lines = append(lines, fmt.Sprintf("best candidate: pid %d (%s), weight %.2f",
					status.Best.Pid, status.Best.Comm, status.Best.Weight))
			} else {
				lines = append(lines, "no candidate")
			}
		case "pids":
			pids := make([]int, 0, len(status.Records))
			for _, rec := range status.Records {
				pids = append(pids, rec.Pid)
			}
			lines = append(lines, fmt.Sprintf("%v", pids))
		case "hints":
			lines = append(lines, fmt.Sprintf("hints sent %d, emit errors %d",
				status.HintsSent, status.EmitErrors))
		default:
			lines = append(lines, fmt.Sprintf("unknown dump %q, valid verbs: registry, candidate, pids, hints", verb))
		}
	}
	return strings.Join(lines, "\n")
}
