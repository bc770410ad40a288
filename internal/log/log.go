// Copyright 2020 Kentaro Hibino. All rights reserved.
// Use of this source code is governed by a MIT license
// that can be found in the LICENSE file.

// Package log exports a leveled logger used internally by the resque
// package. Callers of the public API never see this type; they provide a
// resque.Logger and it gets wrapped here.
package log

import (
	"fmt"
	"log"
	"os"
	"sync"
)

// Level denotes the level of logging.
type Level int32

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

// Base interface that the resque package's public Logger must satisfy.
type Base interface {
	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})
	Fatal(args ...interface{})
}

// Logger wraps a Base logger and filters by level.
type Logger struct {
	mu     sync.Mutex
	target Base
	level  Level
}

// NewLogger creates a new Logger. If l is nil, a default logger writing to
// stderr is used.
func NewLogger(l Base) *Logger {
	if l == nil {
		l = newDefaultLogger()
	}
	return &Logger{target: l, level: InfoLevel}
}

// SetLevel sets the minimum level this logger will emit.
func (l *Logger) SetLevel(lvl Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = lvl
}

func (l *Logger) shouldLog(lvl Level) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return lvl >= l.level
}

func (l *Logger) Debug(args ...interface{}) {
	if l.shouldLog(DebugLevel) {
		l.target.Debug(args...)
	}
}

func (l *Logger) Info(args ...interface{}) {
	if l.shouldLog(InfoLevel) {
		l.target.Info(args...)
	}
}

func (l *Logger) Warn(args ...interface{}) {
	if l.shouldLog(WarnLevel) {
		l.target.Warn(args...)
	}
}

func (l *Logger) Error(args ...interface{}) {
	if l.shouldLog(ErrorLevel) {
		l.target.Error(args...)
	}
}

func (l *Logger) Fatal(args ...interface{}) {
	l.target.Fatal(args...)
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	if l.shouldLog(DebugLevel) {
		l.target.Debug(fmt.Sprintf(format, args...))
	}
}

func (l *Logger) Infof(format string, args ...interface{}) {
	if l.shouldLog(InfoLevel) {
		l.target.Info(fmt.Sprintf(format, args...))
	}
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	if l.shouldLog(WarnLevel) {
		l.target.Warn(fmt.Sprintf(format, args...))
	}
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	if l.shouldLog(ErrorLevel) {
		l.target.Error(fmt.Sprintf(format, args...))
	}
}

// defaultLogger writes leveled, prefixed lines to stderr via the standard
// library logger.
type defaultLogger struct {
	base *log.Logger
}

func newDefaultLogger() *defaultLogger {
	return &defaultLogger{base: log.New(os.Stderr, "", log.Ldate|log.Ltime)}
}

func (l *defaultLogger) logf(level, s string) {
	l.base.Printf("%s: %s", level, s)
}

func (l *defaultLogger) Debug(args ...interface{}) { l.logf("DEBUG", fmt.Sprint(args...)) }
func (l *defaultLogger) Info(args ...interface{})  { l.logf("INFO", fmt.Sprint(args...)) }
func (l *defaultLogger) Warn(args ...interface{})  { l.logf("WARN", fmt.Sprint(args...)) }
func (l *defaultLogger) Error(args ...interface{}) { l.logf("ERROR", fmt.Sprint(args...)) }
func (l *defaultLogger) Fatal(args ...interface{}) {
	l.logf("FATAL", fmt.Sprint(args...))
	os.Exit(1)
}
