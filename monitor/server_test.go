// Copyright (c) 2026 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package monitor

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/aristanetworks/glog"
	"github.com/prometheus/client_golang/prometheus"
)

func get(t *testing.T, h http.Handler, path string) (int, string) {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	body, _ := io.ReadAll(w.Result().Body)
	return w.Code, string(body)
}

func TestServerEndpoints(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, _ := newSources(t)
	reg.MustRegister(c)
	h := NewMonitorServer("localhost:0", reg).Handler()

	tests := []struct {
		path     string
		contains string
	}{
		{"/debug", `href="/metrics"`},
		{"/debug/vars", `"memstats"`},
		{"/metrics", `lockfree_map_entries{name="m"} 2`},
		{"/debug/loglevel", "glog="},
	}
	for _, tc := range tests {
		code, body := get(t, h, tc.path)
		if code != http.StatusOK {
			t.Errorf("%s: status %d", tc.path, code)
		}
		if !strings.Contains(body, tc.contains) {
			t.Errorf("%s: body does not contain %q:\n%s", tc.path, tc.contains, body)
		}
	}
}

func TestSetLogVerbosity(t *testing.T) {
	prev := glog.VGlobal()
	defer glog.SetVGlobal(prev)
	h := NewMonitorServer("localhost:0", prometheus.NewRegistry()).Handler()

	post := func(form url.Values) int {
		req := httptest.NewRequest(http.MethodPost, "/debug/loglevel",
			strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w.Code
	}
	if code := post(url.Values{"glog": {"3"}}); code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	if v := glog.VGlobal(); v != 3 {
		t.Errorf("verbosity is %d, expected 3", v)
	}
	for _, form := range []url.Values{{}, {"glog": {"x"}}, {"glog": {"-1"}}} {
		if code := post(form); code != http.StatusBadRequest {
			t.Errorf("%v: status %d, expected %d", form, code, http.StatusBadRequest)
		}
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/debug/loglevel", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("PUT: status %d", w.Code)
	}
}

func TestPublish(t *testing.T) {
	c, _ := newSources(t)
	Publish("lockfree_test", c)
	if s := VarsToString(); !strings.Contains(s, `"lockfree_test"`) {
		t.Errorf("published variable missing:\n%s", s)
	}
}
