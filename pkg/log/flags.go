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
	"flag"
	"strings"
)

const (
	// DefaultLevel is the default logging severity level.
	DefaultLevel = LevelInfo
	// command-line argument prefix.
	optPrefix = "logger"
	// Flag for enabling/disabling normal non-debug logging for sources.
	optEnable = optPrefix + "-sources"
	// Flag for enabling/disabling debug logging for sources.
	optDebug = optPrefix + "-debug"
	// Flag for selecting logging level.
	optLevel = optPrefix + "-level"
	// Flag for selecting logging backend.
	optLogger = optPrefix
)

// Logger options configurable via the command line.
type options struct {
	// Level is the logging severity/level.
	Level Level
	// Enable is a map for enabling/disabling normal logging for sources.
	Enable srcmap
	// Debug is a map for enabling/disabling debug logging for sources.
	Debug srcmap
	// Logger is the name of the logger backend to use.
	Logger backendName
}

// srcmap tracks logging or debugging settings for sources.
type srcmap map[string]bool

// backendName is a name for a Backend.
type backendName string

// Runtime configuration, set up from the command line.
var opt = &options{
	Logger: FmtBackendName,
	Level:  DefaultLevel,
	Enable: make(srcmap),
	Debug:  make(srcmap),
}

// Set sets the level from the given name.
func (l *Level) Set(value string) error {
	levels := map[string]Level{
		"debug":   LevelDebug,
		"info":    LevelInfo,
		"warning": LevelWarn,
		"error":   LevelError,
		"fatal":   LevelFatal,
		"panic":   LevelPanic,
	}
	level, ok := levels[strings.ToLower(value)]
	if !ok {
		return loggerError("invalid logging level %s", value)
	}

	*l = level
	opt.Level = level
	SetLevel(level)

	return nil
}

// String returns the name of the level.
func (l Level) String() string {
	names := map[Level]string{
		LevelDebug: "debug",
		LevelInfo:  "info",
		LevelWarn:  "warning",
		LevelError: "error",
		LevelFatal: "fatal",
		LevelPanic: "panic",
	}
	if level, ok := names[l]; ok {
		return level
	}

	return names[LevelInfo]
}

// Set sets the name of the active Backend.
func (n *backendName) Set(value string) error {
	if err := SetBackend(value); err != nil {
		return err
	}
	*n = backendName(value)

	return nil
}

// String returns the name of the active backend.
func (n backendName) String() string {
	return string(n)
}

// Set sets entries of srcmap by parsing the given value.
func (m *srcmap) Set(value string) error {
	log.Lock()
	defer log.Unlock()

	sm := *m
	prev, state, src := "", "", ""
	for _, entry := range strings.Split(value, ",") {
		statesrc := strings.Split(entry, ":")
		switch len(statesrc) {
		case 2:
			state, src = statesrc[0], statesrc[1]
		case 1:
			state, src = "", statesrc[0]
		default:
			return loggerError("invalid state spec '%s' in source map", entry)
		}

		if state != "" {
			prev = state
		} else {
			state = prev
			if state == "" {
				state = "on"
			}
		}
		if src == "all" {
			src = "*"
		}

		enabled, err := parseEnabled(state)
		if err != nil {
			return loggerError("invalid state '%s' in source map", state)
		}
		sm[src] = enabled
	}

	// reconfigure running loggers
	if m == &opt.Enable {
		log.update(sm, nil)
	}
	if m == &opt.Debug {
		log.update(nil, sm)
	}

	return nil
}

// String returns a string representation of the srcmap.
func (m *srcmap) String() string {
	log.RLock()
	defer log.RUnlock()

	off := ""
	on := ""
	for src, state := range *m {
		if state {
			if on == "" {
				on = src
			} else {
				on += "," + src
			}
		} else {
			if off == "" {
				off = src
			} else {
				off += "," + src
			}
		}
	}

	if off == "" {
		return "on:" + on
	}
	if on == "" {
		return "off:" + off
	}

	return "on:" + on + "," + "off:" + off
}

// sourceEnabled checks if logging is enabled for the given source.
func (o *options) sourceEnabled(source string) bool {
	if state, ok := o.Enable[source]; ok {
		return state
	}
	if state, ok := o.Enable["*"]; ok {
		return state
	}
	// sources log by default
	return true
}

// debugEnabled checks if debugging is enabled for the given source.
func (o *options) debugEnabled(source string) bool {
	if state, ok := o.Debug[source]; ok {
		return state
	}
	if state, ok := o.Debug["*"]; ok {
		return state
	}
	// sources don't debug by default
	return false
}

// parseEnabled parses a string as an enabled/disabled state.
func parseEnabled(value string) (bool, error) {
	switch strings.ToLower(value) {
	case "on", "enabled", "true", "yes", "1":
		return true, nil
	case "off", "disabled", "false", "no", "0":
		return false, nil
	}
	return false, loggerError("invalid enabled/disabled value '%s'", value)
}

// Register us for command line parsing.
func init() {
	flag.Var(&opt.Logger, optLogger,
		"logger backend to use.")
	flag.Var(&opt.Level, optLevel,
		"lowest severity level to pass through (debug, info, warning, error)")
	flag.Var(&opt.Enable, optEnable,
		"comma-separated list of source names to enable/disable.\n"+
			"Specify '*' or 'all' to enable all sources, which is also the default.\n"+
			"Prefix a source or list with 'off:' to disable.")
	flag.Var(&opt.Debug, optDebug,
		"comma-separated list of source names to enable debug messages for.\n"+
			"Specify '*' or 'all' to enable all sources.\n"+
			"Prefix a source or list with 'off:' to disable, which is also the default state.")
}
