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

package http

import (
	"io"
	"net/http"
	"testing"
)

type echoHandler string

func (h echoHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte(h))
}

func get(t *testing.T, srv *Server, path string) string {
	url := "http://" + srv.GetAddress() + path

	res, err := http.Get(url)
	if err != nil {
		t.Fatalf("http.Get(%s) failed: %v", url, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Errorf("http.Get(%s): status %d, expected %d", url, res.StatusCode, http.StatusOK)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("http.Get(%s): failed to read response: %v", url, err)
	}

	return string(body)
}

func TestServerLifecycle(t *testing.T) {
	srv := NewServer()

	if addr := srv.GetAddress(); addr != "" {
		t.Errorf("expected empty address before Start(), observed %q", addr)
	}

	if err := srv.Start(""); err != nil {
		t.Errorf("Start with empty address should be a disabled no-op, observed error %v", err)
	}

	if err := srv.Start(":0"); err != nil {
		t.Fatalf("failed to start server: %v", err)
	}
	if addr := srv.GetAddress(); addr == ":0" || addr == "" {
		t.Errorf("expected autobound address after Start(\":0\"), observed %q", addr)
	}

	if err := srv.Reconfigure(srv.GetAddress()); err != nil {
		t.Errorf("reconfigure with unchanged address failed: %v", err)
	}
	if err := srv.Reconfigure(":0"); err != nil {
		t.Errorf("reconfigure with a new address failed: %v", err)
	}
	if err := srv.Restart(":0"); err != nil {
		t.Errorf("restart failed: %v", err)
	}

	srv.Stop()
	if addr := srv.GetAddress(); addr != "" {
		t.Errorf("expected empty address after Stop(), observed %q", addr)
	}
}

func TestDuplicateHandler(t *testing.T) {
	srv := NewServer()
	mux := srv.GetMux()

	if err := srv.Start(":0"); err != nil {
		t.Fatalf("failed to start server: %v", err)
	}
	defer srv.Stop()

	mux.Handle("/echo", echoHandler("first"))
	mux.Handle("/echo", echoHandler("second"))

	if body := get(t, srv, "/echo"); body != "first" {
		t.Errorf("duplicate Handle should not replace the original, observed %q", body)
	}

	mux.HandleFunc("/echo", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("third"))
	})

	if body := get(t, srv, "/echo"); body != "first" {
		t.Errorf("duplicate HandleFunc should not replace the original, observed %q", body)
	}
}

func TestHandlerRemoval(t *testing.T) {
	srv := NewServer()
	mux := srv.GetMux()

	if err := srv.Start(":0"); err != nil {
		t.Fatalf("failed to start server: %v", err)
	}
	defer srv.Stop()

	mux.Handle("/", echoHandler("root"))
	mux.Handle("/one", echoHandler("one"))
	mux.Handle("/two", echoHandler("two"))

	for path, expected := range map[string]string{
		"/one": "one", "/two": "two", "/other": "root",
	} {
		if body := get(t, srv, path); body != expected {
			t.Errorf("GET %s: expected %q, observed %q", path, expected, body)
		}
	}

	if h, ok := mux.Unregister("/one"); !ok || h == nil {
		t.Errorf("unregistering a registered pattern failed")
	}
	if _, ok := mux.Unregister("/one"); ok {
		t.Errorf("unregistering an unknown pattern should fail")
	}

	if body := get(t, srv, "/one"); body != "root" {
		t.Errorf("expected removed pattern to fall back to root handler, observed %q", body)
	}
	if body := get(t, srv, "/two"); body != "two" {
		t.Errorf("expected remaining pattern to survive removal, observed %q", body)
	}

	mux.Handle("/one", echoHandler("again"))
	if body := get(t, srv, "/one"); body != "again" {
		t.Errorf("expected re-registered pattern to serve, observed %q", body)
	}
}

func TestGracefulShutdown(t *testing.T) {
	srv := NewServer()
	srv.GetMux().Handle("/", echoHandler("root"))

	if err := srv.Start(":0"); err != nil {
		t.Fatalf("failed to start server: %v", err)
	}
	if body := get(t, srv, "/"); body != "root" {
		t.Errorf("GET /: expected %q, observed %q", "root", body)
	}

	srv.Shutdown(true)
	if addr := srv.GetAddress(); addr != "" {
		t.Errorf("expected empty address after Shutdown(), observed %q", addr)
	}

	// A stopped server can be brought back up.
	if err := srv.Start(":0"); err != nil {
		t.Fatalf("failed to restart server after shutdown: %v", err)
	}
	if body := get(t, srv, "/"); body != "root" {
		t.Errorf("GET / after restart: expected %q, observed %q", "root", body)
	}
	srv.Stop()
}
