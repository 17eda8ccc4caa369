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
	"sync"

	"github.com/intel/thp-advisor/pkg/instrumentation/http"
)

// service bundles our instrumentation services.
type service struct {
	sync.RWMutex
	http    *http.Server // HTTP server
	tracing *tracing     // distributed tracing
	metrics *metrics     // metrics collection and exporting
}

// newService creates an instrumentation service instance.
func newService() *service {
	return &service{
		http:    http.NewServer(),
		tracing: &tracing{},
		metrics: &metrics{},
	}
}

// Start starts up instrumentation services.
func (s *service) Start() error {
	s.Lock()
	defer s.Unlock()

	if err := s.http.Start(opt.HTTPEndpoint); err != nil {
		return err
	}

	if err := s.tracing.start(ServiceName, opt.JaegerAgent, opt.JaegerCollector, opt.Sampling); err != nil {
		s.http.Stop()
		return err
	}

	if err := s.metrics.start(s.http.GetMux(), opt.ReportPeriod, opt.PrometheusExport); err != nil {
		s.tracing.stop()
		s.http.Stop()
		return err
	}

	return nil
}

// Stop shuts down instrumentation services.
func (s *service) Stop() {
	s.Lock()
	defer s.Unlock()

	s.metrics.stop()
	s.tracing.stop()
	s.http.Stop()
}

// reconfigure pushes updated options to running instrumentation services.
func (s *service) reconfigure() error {
	s.Lock()
	defer s.Unlock()

	if err := s.http.Reconfigure(opt.HTTPEndpoint); err != nil {
		return err
	}

	if err := s.tracing.reconfigure(ServiceName, opt.JaegerAgent, opt.JaegerCollector, opt.Sampling); err != nil {
		return err
	}

	return s.metrics.reconfigure(s.http.GetMux(), opt.ReportPeriod, opt.PrometheusExport)
}
