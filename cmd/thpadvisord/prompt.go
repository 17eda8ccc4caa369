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

// This file implements prompt for thpadvisord testability.

package main

import (
	"bufio"
	"bytes"
	"flag"
	"fmt"
	"strings"

	"github.com/prometheus/common/expfmt"

	"github.com/intel/thp-advisor/pkg/metrics"
	"github.com/intel/thp-advisor/pkg/thpadvisor"
)

type Prompt struct {
	r       *bufio.Reader
	w       *bufio.Writer
	f       *flag.FlagSet
	advisor thpadvisor.Advisor
	ps1     string
}

type promptAction int

const (
	paCommandOk promptAction = iota
	paQuit
)

func NewPrompt(ps1 string, advisor thpadvisor.Advisor, reader *bufio.Reader, writer *bufio.Writer) *Prompt {
	return &Prompt{
		r:       reader,
		w:       writer,
		ps1:     ps1,
		advisor: advisor,
	}
}

func (p *Prompt) output(format string, a ...interface{}) {
	if p.w == nil {
		return
	}
	p.w.WriteString(fmt.Sprintf(format, a...))
	p.w.Flush()
}

func (p *Prompt) interact() {
	pa := paCommandOk
	for pa != paQuit {
		p.output(p.ps1)
		cmd, err := p.r.ReadString(byte('\n'))
		if err != nil {
			p.output("quitting prompt: %s\n", err)
			break
		}
		cmdSlice := strings.Split(strings.TrimSpace(cmd), " ")
		if len(cmdSlice) == 0 {
			continue
		}
		p.f = flag.NewFlagSet(cmdSlice[0], flag.ContinueOnError)
		switch cmdSlice[0] {
		case "q", "quit":
			pa = p.cmdQuit(cmdSlice[1:])
		case "help":
			pa = p.cmdHelp(cmdSlice[1:])
		case "stats":
			pa = p.cmdStats(cmdSlice[1:])
		case "status":
			pa = p.cmdStatus(cmdSlice[1:])
		case "metrics":
			pa = p.cmdMetrics(cmdSlice[1:])
		case "config":
			pa = p.cmdConfig(cmdSlice[1:])
		case "dump":
			pa = p.cmdDump(cmdSlice[1:])
		case "advisor":
			pa = p.cmdAdvisor(cmdSlice[1:])
		case "":
			pa = paCommandOk
		default:
			p.output("unknown command, try \"help\"\n")
			pa = paCommandOk
		}
	}
	p.output("quitting prompt.\n")
}

func (p *Prompt) cmdHelp(args []string) promptAction {
	p.output("commands:\n")
	p.output("  status [registry|candidate|pids|hints]  print advisor status\n")
	p.output("  stats                                   print runtime event counters\n")
	p.output("  metrics                                 print current metrics in text format\n")
	p.output("  config [-set JSON]                      print or change the advisor configuration\n")
	p.output("  dump [-pidwatcher|-adapter|-emitter]    dump advisor components\n")
	p.output("  advisor [-start|-stop]                  control the advisor rounds\n")
	p.output("  q, quit                                 quit the prompt and the daemon\n")
	return paCommandOk
}

func (p *Prompt) cmdStats(args []string) promptAction {
	if err := p.f.Parse(args); err != nil {
		return paCommandOk
	}
	p.output(thpadvisor.GetStats().Summarize() + "\n")
	return paCommandOk
}

func (p *Prompt) cmdStatus(args []string) promptAction {
	if err := p.f.Parse(args); err != nil {
		return paCommandOk
	}
	p.output(p.advisor.Dump(p.f.Args()) + "\n")
	return paCommandOk
}

func (p *Prompt) cmdMetrics(args []string) promptAction {
	if err := p.f.Parse(args); err != nil {
		return paCommandOk
	}
	g, err := metrics.NewMetricGatherer()
	if err != nil {
		p.output("creating metric gatherer failed: %v\n", err)
		return paCommandOk
	}
	mfs, err := g.Gather()
	if err != nil {
		p.output("gathering metrics failed: %v\n", err)
		return paCommandOk
	}
	for _, mf := range mfs {
		buf := &bytes.Buffer{}
		if _, err := expfmt.MetricFamilyToText(buf, mf); err != nil {
			p.output("encoding metric family %q failed: %v\n", mf.GetName(), err)
			continue
		}
		p.output("%s", buf.String())
	}
	return paCommandOk
}

func (p *Prompt) cmdConfig(args []string) promptAction {
	config := p.f.String("set", "", "reconfigure the advisor with JSON string")
	if err := p.f.Parse(args); err != nil {
		return paCommandOk
	}
	if *config != "" {
		if err := p.advisor.SetConfigJson(*config); err != nil {
			p.output("advisor reconfiguration error: %v\n", err)
			return paCommandOk
		}
	}
	p.output(p.advisor.GetConfigJson() + "\n")
	return paCommandOk
}

func (p *Prompt) cmdDump(args []string) promptAction {
	pidwatcher := p.f.Bool("pidwatcher", false, "dump the pidwatcher")
	adapter := p.f.Bool("adapter", false, "dump the metrics adapter")
	emitter := p.f.Bool("emitter", false, "dump the hint emitter")
	if err := p.f.Parse(args); err != nil {
		return paCommandOk
	}
	if !*pidwatcher && !*adapter && !*emitter {
		p.output("nothing to dump, expected -pidwatcher, -adapter or -emitter\n")
		return paCommandOk
	}
	if *pidwatcher {
		p.output("pidwatcher: %s\n", p.advisor.PidWatcher().Dump(p.f.Args()))
	}
	if *adapter {
		p.output("adapter: %s\n", p.advisor.Adapter().Dump(p.f.Args()))
	}
	if *emitter {
		p.output("emitter: %s\n", p.advisor.Emitter().Dump(p.f.Args()))
	}
	return paCommandOk
}

func (p *Prompt) cmdAdvisor(args []string) promptAction {
	start := p.f.Bool("start", false, "start advisor rounds")
	stop := p.f.Bool("stop", false, "stop advisor rounds")
	if err := p.f.Parse(args); err != nil {
		return paCommandOk
	}
	if *start {
		if err := p.advisor.Start(); err != nil {
			p.output("advisor start error: %v\n", err)
		}
	}
	if *stop {
		p.advisor.Stop()
	}
	return paCommandOk
}

func (p *Prompt) cmdQuit(args []string) promptAction {
	help := p.f.Bool("h", false, "print help")
	p.f.Parse(args)
	if *help {
		p.output("quit interactive prompt\n")
		return paCommandOk
	}
	return paQuit
}
