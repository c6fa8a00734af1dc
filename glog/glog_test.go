// Copyright (c) 2026 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package glog

import (
	"bytes"
	"strings"
	"testing"

	aglog "github.com/aristanetworks/glog"
)

func TestGlog(t *testing.T) {
	b := &bytes.Buffer{}
	prev := aglog.SetOutput(b)
	defer aglog.SetOutput(prev)

	quiet := &Glog{InfoLevel: 5}
	quiet.Infof("hidden %d", 1)
	g := &Glog{}
	g.Info("reclaimed 3 objects")
	g.Errorf("stage failed: %s", "busy")

	got := b.String()
	if strings.Contains(got, "hidden") {
		t.Errorf("info above the verbosity was logged: %q", got)
	}
	for _, want := range []string{"reclaimed 3 objects", "stage failed: busy"} {
		if !strings.Contains(got, want) {
			t.Errorf("%q not in output %q", want, got)
		}
	}
}
