// Copyright 2020 thinkgos (thinkgo@aliyun.com).  All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package clog

import (
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// LogProvider RFC5424 log message levels only Critical Error Warn and Debug
type LogProvider interface {
	Critical(format string, v ...interface{})
	Error(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Debug(format string, v ...interface{})
}

// Clog Log internal debugging implementation
type Clog struct {
	provider LogProvider
	// is log output enabled,1: enable, 0: disable
	has uint32
}

// NewLogger creates a new log with the given component name attached as a
// logrus field to every record, unless a different provider is injected
// with SetLogProvider.
func NewLogger(component string) Clog {
	return Clog{
		defaultLogger{logrus.WithField("component", component)},
		1,
	}
}

// LogMode set enable or disable log output when you has set provider
func (sf *Clog) LogMode(enable bool) {
	if enable {
		atomic.StoreUint32(&sf.has, 1)
	} else {
		atomic.StoreUint32(&sf.has, 0)
	}
}

// SetLogProvider set provider provider
func (sf *Clog) SetLogProvider(p LogProvider) {
	if p != nil {
		sf.provider = p
	}
}

// Critical Log CRITICAL level message.
func (sf Clog) Critical(format string, v ...interface{}) {
	if atomic.LoadUint32(&sf.has) == 1 {
		sf.provider.Critical(format, v...)
	}
}

// Error Log ERROR level message.
func (sf Clog) Error(format string, v ...interface{}) {
	if atomic.LoadUint32(&sf.has) == 1 {
		sf.provider.Error(format, v...)
	}
}

// Warn Log WARN level message.
func (sf Clog) Warn(format string, v ...interface{}) {
	if atomic.LoadUint32(&sf.has) == 1 {
		sf.provider.Warn(format, v...)
	}
}

// Debug Log DEBUG level message.
func (sf Clog) Debug(format string, v ...interface{}) {
	if atomic.LoadUint32(&sf.has) == 1 {
		sf.provider.Debug(format, v...)
	}
}

// defaultLogger adapts a logrus entry to LogProvider. "Critical" has no
// direct logrus level so it maps to Error with a severity field, matching
// how RFC5424-style critical/error split is usually retrofitted onto
// logrus's fixed level set.
type defaultLogger struct {
	entry *logrus.Entry
}

var _ LogProvider = defaultLogger{}

func (sf defaultLogger) Critical(format string, v ...interface{}) {
	sf.entry.WithField("severity", "critical").Errorf(format, v...)
}

func (sf defaultLogger) Error(format string, v ...interface{}) {
	sf.entry.Errorf(format, v...)
}

func (sf defaultLogger) Warn(format string, v ...interface{}) {
	sf.entry.Warnf(format, v...)
}

func (sf defaultLogger) Debug(format string, v ...interface{}) {
	sf.entry.Debugf(format, v...)
}
