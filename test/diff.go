// Copyright (c) 2026 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package test

import "github.com/kylelemons/godebug/pretty"

// Diff returns the difference of two objects in a human readable format.
// Empty string is returned when there is no difference.
func Diff(a, b interface{}) string {
	return pretty.Compare(a, b)
}
