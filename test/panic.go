// Copyright (c) 2015 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package test

import (
	"fmt"
	"runtime"
	"testing"
)

// ShouldPanic will test is a function is panicking
func ShouldPanic(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		t.Helper()
		if r := recover(); r == nil {
			t.Errorf("%sThe function %p should have panicked",
				getCallerInfo(), fn)
		}
	}()

	fn()
}

// ShouldPanicWithStr a function panics with a specific string.
// If the function panics with an error, the error's message is compared to the string.
func ShouldPanicWithStr(t *testing.T, msg string, fn func()) {
	t.Helper()
	defer func() {
		t.Helper()
		r := recover()
		if r == nil {
			t.Errorf("%sThe function %p should have panicked with %#v",
				getCallerInfo(), fn, msg)
			return
		}
		var got string
		switch r := r.(type) {
		case string:
			got = r
		case error:
			got = r.Error()
		default:
			t.Errorf("%sThe function panicked with not string/error: %#v", getCallerInfo(), r)
			return
		}
		if d := Diff(msg, got); len(d) != 0 {
			t.Errorf("%sThe function %p panicked with the wrong message.\n"+
				"Expected: %#v\nReceived: %#v\nDiff:%s",
				getCallerInfo(), fn, msg, got, d)
		}
	}()
	fn()
}

func getCallerInfo() string {
	_, file, line, ok := runtime.Caller(4)
	if !ok {
		return ""
	}
	return fmt.Sprintf("%s:%d\n", file, line)
}
