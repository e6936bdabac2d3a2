/*
 *  MIT License
 *
 *  Copyright (c) 2021 Nicolas JUHEL
 *
 *  Permission is hereby granted, free of charge, to any person obtaining a copy
 *  of this software and associated documentation files (the "Software"), to deal
 *  in the Software without restriction, including without limitation the rights
 *  to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 *  copies of the Software, and to permit persons to whom the Software is
 *  furnished to do so, subject to the following conditions:
 *
 *  The above copyright notice and this permission notice shall be included in all
 *  copies or substantial portions of the Software.
 *
 *  THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 *  IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 *  FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 *  AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 *  LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 *  OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 *  SOFTWARE.
 *
 */

// Package logger wraps logrus with the small leveled surface the archive
// filesystem core needs, without requiring every caller to depend on
// logrus directly. The core's only log lines are the Debug-level mtime
// truncation notes emitted by the zip and tar handlers' Serialize.
package logger

import (
	"github.com/sirupsen/logrus"
)

// Logger is the leveled logging surface used throughout the core packages.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	WithField(key string, value interface{}) Logger
}

type entry struct {
	e *logrus.Entry
}

// New wraps a logrus.FieldLogger-compatible entry.
func New(e *logrus.Entry) Logger {
	if e == nil {
		e = logrus.NewEntry(logrus.StandardLogger())
	}
	return &entry{e: e}
}

// Default returns a Logger backed by logrus's standard logger.
func Default() Logger {
	return New(nil)
}

func (l *entry) Debugf(format string, args ...interface{}) { l.e.Debugf(format, args...) }
func (l *entry) Infof(format string, args ...interface{})  { l.e.Infof(format, args...) }
func (l *entry) Warnf(format string, args ...interface{})  { l.e.Warnf(format, args...) }
func (l *entry) Errorf(format string, args ...interface{}) { l.e.Errorf(format, args...) }

func (l *entry) WithField(key string, value interface{}) Logger {
	return &entry{e: l.e.WithField(key, value)}
}

// discard is a Logger that drops every message — the zero-configuration
// default for packages constructed without an explicit WithLogger option.
type discard struct{}

func (discard) Debugf(string, ...interface{}) {}
func (discard) Infof(string, ...interface{})  {}
func (discard) Warnf(string, ...interface{})  {}
func (discard) Errorf(string, ...interface{}) {}
func (d discard) WithField(string, interface{}) Logger { return d }

// Discard is a Logger that drops every message.
func Discard() Logger {
	return discard{}
}
