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

package instrumentation

import (
	"fmt"

	"github.com/intel/thp-advisor/pkg/instrumentation/http"
	logger "github.com/intel/thp-advisor/pkg/log"
)

const (
	// ServiceName is our service name in external tracing and metrics services.
	ServiceName = "THP-Advisor"
)

// Our logger instance.
var log = logger.NewLogger("instrumentation")

// Our instrumentation service instance.
var svc = newService()

// GetHTTPMux returns our HTTP request mux for external services.
func GetHTTPMux() *http.ServeMux {
	return svc.http.GetMux()
}

// HTTPEndpoint returns the address our HTTP server is listening on.
func HTTPEndpoint() string {
	return svc.http.GetAddress()
}

// TracingEnabled returns true if tracing is enabled.
func TracingEnabled() bool {
	return opt.Sampling > 0.0
}

// Start starts instrumentation services.
func Start() error {
	log.Info("starting instrumentation services...")
	return svc.Start()
}

// Stop stops instrumentation services.
func Stop() {
	log.Info("stopping instrumentation services...")
	svc.Stop()
}

// Restart restarts instrumentation services.
func Restart() error {
	Stop()
	return Start()
}

// instrumentationError produces a formatted instrumentation-specific error.
func instrumentationError(format string, args ...interface{}) error {
	return fmt.Errorf("instrumentation: "+format, args...)
}
