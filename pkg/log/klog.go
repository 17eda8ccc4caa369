// Copyright 2020 Intel Corporation. All Rights Reserved.
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

	"k8s.io/klog/v2"

	"github.com/intel/thp-advisor/pkg/log/klogcontrol"
)

// KlogBackendName is the name of our klog-based logging backend.
const KlogBackendName = "klog"

// klogLogDepth is the stack depth from klog calls to the original logging call site.
const klogLogDepth = 2

// klogBackend routes log messages to klog.
type klogBackend struct {
	align  int  // source alignment
	tagged bool // prepend severity tags, set if klog headers are skipped
}

// createKlogBackend creates a klog Backend.
func createKlogBackend() Backend {
	k := &klogBackend{}
	if v, err := klogcontrol.Get().Get("skip_headers"); err == nil {
		if skip, ok := v.(bool); ok {
			k.tagged = skip
		}
	}
	return k
}

func (*klogBackend) Name() string {
	return KlogBackendName
}

func (k *klogBackend) Log(level Level, source, format string, args ...interface{}) {
	k.Block(level, source, "", format, args...)
}

func (k *klogBackend) Block(level Level, source, prefix, format string, args ...interface{}) {
	tag := ""
	if k.tagged {
		tag = fmtTags[level]
	}
	if prefix != "" {
		prefix = prefix + " "
	}

	length := len(source)
	suflen := (k.align - length) / 2
	prelen := (k.align - (length + suflen))
	source = "[" + fmt.Sprintf("%*s", prelen, "") + source + fmt.Sprintf("%*s", suflen, "") + "] "

	for _, line := range strings.Split(fmt.Sprintf(format, args...), "\n") {
		msg := tag + source + prefix + line
		switch level {
		case LevelDebug, LevelInfo:
			klog.InfoDepth(klogLogDepth, msg)
		case LevelWarn:
			klog.WarningDepth(klogLogDepth, msg)
		default:
			// fatal and panic exits happen in the frontend
			klog.ErrorDepth(klogLogDepth, msg)
		}
	}
}

func (k *klogBackend) Flush() {
	klog.Flush()
}

func (k *klogBackend) Sync() {
	klog.Flush()
}

func (k *klogBackend) Stop() {
	klog.Flush()
}

func (k *klogBackend) SetSourceAlignment(len int) {
	k.align = len
}

func init() {
	RegisterBackend(KlogBackendName, createKlogBackend)
}
