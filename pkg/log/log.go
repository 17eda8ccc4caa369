// Copyright 2019-2020 Intel Corporation. All Rights Reserved.
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

package log

import (
	"fmt"
	"strings"
	"sync"
)

// logging is the runtime state shared by all loggers.
type logging struct {
	sync.RWMutex
	level   Level                // lowest severity level passed through
	forced  bool                 // forced debugging, toggled by signal
	sources map[logger]string    // logger id to source name
	loggers map[string]logger    // source name to logger id
	configs map[logger]config    // per-logger logging/debugging state
	backend map[string]BackendFn // registered backend creators
	active  Backend              // backend messages are emitted with
	align   int                  // length of the longest active source
}

// log is our shared runtime state.
var log = &logging{
	level:   DefaultLevel,
	sources: make(map[logger]string),
	loggers: make(map[string]logger),
	configs: make(map[logger]config),
	backend: make(map[string]BackendFn),
	active:  createFmtBackend(),
}

// Get returns the Logger for the given source, creating one if necessary.
func Get(source string) Logger {
	return log.get(source)
}

// NewLogger creates a Logger for the given source, getting the existing one if possible.
func NewLogger(source string) Logger {
	return log.get(source)
}

// SetLevel sets the lowest severity level to pass through.
func SetLevel(level Level) {
	log.Lock()
	defer log.Unlock()
	log.setLevel(level)
}

// SetBackend activates the named logging backend.
func SetBackend(name string) error {
	log.Lock()
	defer log.Unlock()
	return log.setBackend(name)
}

// Flush flushes any initial message buffering in the active backend.
func Flush() {
	log.activeBackend().Flush()
}

// Sync waits for all emitted messages to get logged by the active backend.
func Sync() {
	log.activeBackend().Sync()
}

// get looks up or registers the logger for a source.
func (l *logging) get(source string) logger {
	source = strings.Trim(source, "[] ")

	l.Lock()
	defer l.Unlock()

	if id, ok := l.loggers[source]; ok {
		return id
	}

	if len(l.sources) >= maxLoggers {
		// out of logger ids, reroute the source to the shared overflow logger
		source = "overflow"
		if id, ok := l.loggers[source]; ok {
			return id
		}
	}

	id := logger(len(l.sources))
	cfg := config{id: uint16(id)}
	cfg.setLogging(opt.sourceEnabled(source))
	cfg.setDebugging(opt.debugEnabled(source))

	l.loggers[source] = id
	l.sources[id] = source
	l.configs[id] = cfg

	if cfg.isEnabled() && len(source) > l.align {
		l.align = len(source)
		l.active.SetSourceAlignment(l.align)
	}

	return id
}

// setLevel sets the lowest severity to pass through. Callers hold the lock.
func (l *logging) setLevel(level Level) {
	l.level = level
}

// setBackend switches the active backend. Callers hold the lock.
func (l *logging) setBackend(name string) error {
	createFn, ok := l.backend[name]
	if !ok {
		return loggerError("can't activate unknown backend '%s'", name)
	}
	if l.active != nil && l.active.Name() == name {
		return nil
	}

	old := l.active
	l.active = createFn()
	l.active.SetSourceAlignment(l.align)
	if old != nil {
		old.Stop()
	}

	return nil
}

// activeBackend returns the currently active backend.
func (l *logging) activeBackend() Backend {
	l.RLock()
	defer l.RUnlock()
	return l.active
}

// update reconfigures registered loggers from the given source maps. Callers hold the lock.
func (l *logging) update(enable, debug srcmap) {
	for source, id := range l.loggers {
		cfg := l.configs[id]
		if enable != nil {
			cfg.setLogging(opt.sourceEnabled(source))
		}
		if debug != nil {
			cfg.setDebugging(opt.debugEnabled(source))
		}
		l.configs[id] = cfg
	}
	l.realign()
}

// realign recalculates source alignment for the active backend. Callers hold the lock.
func (l *logging) realign() {
	align := 0
	for id, source := range l.sources {
		cfg := l.configs[id]
		if (cfg.isEnabled() || l.forced) && len(source) > align {
			align = len(source)
		}
	}
	l.align = align
	l.active.SetSourceAlignment(align)
}

// forceDebug forces debugging on or off for all sources.
func (l *logging) forceDebug(state bool) {
	l.Lock()
	defer l.Unlock()
	l.forced = state
	l.realign()
}

// debugForced checks if forced debugging is in effect.
func (l *logging) debugForced() bool {
	l.RLock()
	defer l.RUnlock()
	return l.forced
}

// loggerError returns a package-specific formatted error.
func loggerError(format string, args ...interface{}) error {
	return fmt.Errorf("log: "+format, args...)
}
