// Copyright (c) 2021 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

// Package glog adapts github.com/aristanetworks/glog to logger.Logger.
package glog

import (
	"github.com/aristanetworks/glog"
	"github.com/aristanetworks/lockfree/logger"
)

// Glog is an empty type that allows to pass glog as a logger, implementing logger.Logger
type Glog struct {
	// default value of glog.Level is 0
	InfoLevel glog.Level
}

var _ logger.Logger = (*Glog)(nil)

// Info logs at the info level
func (g *Glog) Info(args ...interface{}) {
	glog.V(g.InfoLevel).Info(args...)
}

// Infof logs at the info level, with format
func (g *Glog) Infof(format string, args ...interface{}) {
	glog.V(g.InfoLevel).Infof(format, args...)
}

// Error logs at the error level
func (g *Glog) Error(args ...interface{}) {
	glog.Error(args...)
}

// Errorf logs at the error level, with format
func (g *Glog) Errorf(format string, args ...interface{}) {
	glog.Errorf(format, args...)
}
