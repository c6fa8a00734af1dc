// Copyright (c) 2022 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package monitor

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/aristanetworks/glog"
)

func setGlogV(v string) error {
	// SetVGlobal silently errors Atoi, lets return that instead.
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("setGlogV: invalid int: %q", v)
	}
	if n < 0 {
		return fmt.Errorf("setGlogV: negative verbosity %d", n)
	}
	prev := glog.SetVGlobal(glog.Level(n))
	glog.Infof("monitor: set glog verbosity from %v to %v", prev, n)
	return nil
}

func logErr(w http.ResponseWriter, err string, code int) {
	err = fmt.Sprintf("loglevel error: %v (code %v)", err, code)
	glog.Error(err)
	http.Error(w, err, code)
}

// setLogVerbosity reports the glog verbosity on GET and changes it on POST
// with a "glog" form value.
func setLogVerbosity(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		fmt.Fprintf(w, "glog=%d\n", glog.VGlobal())
		return
	case http.MethodPost:
	default:
		logErr(w, "only supports GET and POST methods", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseForm(); err != nil {
		logErr(w, "could not parse form: "+err.Error(), http.StatusBadRequest)
		return
	}
	gv := r.Form.Get("glog")
	if gv == "" {
		logErr(w, "bad request: no change", http.StatusBadRequest)
		return
	}
	if err := setGlogV(gv); err != nil {
		logErr(w, "could not set glog: "+err.Error(), http.StatusBadRequest)
		return
	}
	fmt.Fprint(w, "OK\n")
}
