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

// thpadvisord continuously estimates the address translation overhead
// of running processes and hints the kernel about the processes that
// would benefit most from transparent huge pages.

package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"sigs.k8s.io/yaml"

	"github.com/intel/thp-advisor/pkg/instrumentation"
	logger "github.com/intel/thp-advisor/pkg/log"
	"github.com/intel/thp-advisor/pkg/metrics"
	"github.com/intel/thp-advisor/pkg/pidfile"
	"github.com/intel/thp-advisor/pkg/thpadvisor"
	_ "github.com/intel/thp-advisor/pkg/version"
)

var log = logger.NewLogger("thpadvisord")

func exit(format string, a ...interface{}) {
	fmt.Fprintf(os.Stderr, fmt.Sprintf("thpadvisord: "+format+"\n", a...))
	os.Exit(1)
}

// readConfigFile reads an advisor configuration from a YAML or JSON
// file and returns it as JSON.
func readConfigFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	jsonData, err := yaml.YAMLToJSON(data)
	if err != nil {
		return "", fmt.Errorf("invalid configuration file %q: %w", path, err)
	}
	return string(jsonData), nil
}

// shortcutConfig builds an overhead advisor configuration from the
// shortcut command line options.
func shortcutConfig(pattern string, intervalMs int, thresholdKb int64, minOverhead float64, sampleMs int, cpuFamily string, emitterName string, syscallNr int) (string, error) {
	pidWatcher := thpadvisor.PidWatcherConfig{Name: "proc"}
	if pattern != "" {
		filterStr, err := json.Marshal(&thpadvisor.PidWatcherFilterConfig{
			Source:  thpadvisor.PidWatcherConfig{Name: "proc"},
			Filters: []*thpadvisor.PidFilterConfig{{ProcCmdlineRegexp: pattern}},
		})
		if err != nil {
			return "", err
		}
		pidWatcher = thpadvisor.PidWatcherConfig{Name: "filter", Config: string(filterStr)}
	}
	adapterStr, err := json.Marshal(&thpadvisor.AdapterPerfConfig{
		SampleMs:  sampleMs,
		CPUFamily: cpuFamily,
	})
	if err != nil {
		return "", err
	}
	emitter := thpadvisor.HintEmitterConfig{Name: emitterName}
	if emitterName == "syscall" {
		emitterStr, err := json.Marshal(&thpadvisor.EmitterSyscallConfig{SysNr: syscallNr})
		if err != nil {
			return "", err
		}
		emitter.Config = string(emitterStr)
	}
	configStr, err := json.Marshal(&thpadvisor.AdvisorOverheadConfig{
		PidWatcher:             pidWatcher,
		Adapter:                thpadvisor.MetricsAdapterConfig{Name: "perf", Config: string(adapterStr)},
		Emitter:                emitter,
		IntervalMs:             intervalMs,
		EligibilityThresholdKb: thresholdKb,
		MinOverhead:            minOverhead,
	})
	if err != nil {
		return "", err
	}
	return string(configStr), nil
}

func main() {
	optAdvisor := flag.String("advisor", "overhead",
		fmt.Sprintf("-advisor=NAME advisor to run (%s)", strings.Join(thpadvisor.AdvisorList(), ", ")))
	optConfig := flag.String("config", "",
		"-config=FILE advisor configuration in YAML or JSON, overrides shortcut options")
	optPattern := flag.String("pattern", "",
		"-pattern=REGEXP track only processes whose command line matches REGEXP")
	optInterval := flag.Int("interval", 10000,
		"-interval=MS pause between advisor rounds")
	optThreshold := flag.Int64("threshold-kb", 10240,
		"-threshold-kb=KB minimum anonymous memory of a process worth measuring")
	optMinOverhead := flag.Float64("min-overhead", 5.0,
		"-min-overhead=PCT minimum translation overhead for candidate scoring")
	optSampleMs := flag.Int("sample-ms", 100,
		"-sample-ms=MS translation overhead sampling window length")
	optCPUFamily := flag.String("cpu-family", "auto",
		"-cpu-family=<auto|haswell|skylake> page walk counter selection")
	optEmitter := flag.String("emitter", "syscall",
		fmt.Sprintf("-emitter=NAME hint emitter (%s), use \"log\" for a dry run", strings.Join(thpadvisor.EmitterList(), ", ")))
	optSyscallNr := flag.Int("syscall-nr", 325,
		"-syscall-nr=NR hint syscall number")
	optPidFile := flag.String("pidfile", "",
		"-pidfile=FILE write the daemon pid to FILE")
	optPrompt := flag.Bool("prompt", false,
		"-prompt serve an interactive prompt on stdin")

	flag.Parse()

	if len(flag.Args()) != 0 {
		log.Error("unknown command-line arguments: %s", strings.Join(flag.Args(), ","))
		flag.Usage()
		os.Exit(1)
	}

	logger.SetStdLogger("stdlog")
	logger.SetupDebugToggleSignal(syscall.SIGUSR1)
	defer logger.Flush()

	advisor, err := thpadvisor.NewAdvisor(*optAdvisor)
	if err != nil {
		exit("%v", err)
	}
	configJson := ""
	switch {
	case *optConfig != "":
		if configJson, err = readConfigFile(*optConfig); err != nil {
			exit("%v", err)
		}
	case *optAdvisor == "overhead":
		if configJson, err = shortcutConfig(*optPattern, *optInterval, *optThreshold,
			*optMinOverhead, *optSampleMs, *optCPUFamily, *optEmitter, *optSyscallNr); err != nil {
			exit("%v", err)
		}
	}
	if configJson != "" {
		if err := advisor.SetConfigJson(configJson); err != nil {
			exit("configuration error: %v", err)
		}
	}

	if *optPidFile != "" {
		pidfile.SetPath(*optPidFile)
	}
	pid, err := pidfile.OwnerPid()
	if err != nil {
		exit("failed to check pidfile %s: %v", pidfile.GetPath(), err)
	}
	if pid > 0 {
		exit("already running as pid %d, pidfile %s", pid, pidfile.GetPath())
	}
	pidfile.Remove()
	if err := pidfile.Write(); err != nil {
		log.Warn("failed to write pidfile: %v", err)
	}
	defer pidfile.Remove()

	if err := instrumentation.Start(); err != nil {
		log.Fatal("failed to set up instrumentation: %v", err)
	}
	defer instrumentation.Stop()
	if gatherer, err := metrics.NewMetricGatherer(); err != nil {
		log.Error("failed to set up metrics collection: %v", err)
	} else {
		instrumentation.RegisterGatherer(gatherer)
	}

	if err := advisor.Start(); err != nil {
		log.Fatal("failed to start advisor: %v", err)
	}

	if *optPrompt {
		prompt := NewPrompt("thpadvisor> ", advisor,
			bufio.NewReader(os.Stdin), bufio.NewWriter(os.Stdout))
		prompt.interact()
	} else {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigs
		log.Info("received %v, shutting down", sig)
	}

	advisor.Stop()
}
