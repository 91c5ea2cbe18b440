// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package logger

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// newTestLogPath returns a log file path under a t.TempDir() unique to
// this test, so concurrent tests never collide on NewLogger's cache.
func newTestLogPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "trustcore.log")
}

func TestLogLevelString(t *testing.T) {
	tests := []struct {
		name string
		l    LogLevel
		want string
	}{
		{name: "ValidLogLevel", l: LogLevelWarn, want: "WARN: "},
		{name: "InvalidLogLevel", l: 10, want: "10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.l.String(); got != tt.want {
				t.Errorf("LogLevel.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRotate(t *testing.T) {
	newLog, err := NewLogger(newTestLogPath(t))
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	defer newLog.Close()

	newLog.Info(errors.New("test info"), "info message", 123)
	newLog.CreateTime = time.Now().Add(-time.Hour * 24 * 8)

	if err := rotate(newLog); err != nil {
		t.Errorf("rotate() error = %v, want nil", err)
	}

	newLog.CreateTime = time.Now()
	newLog.Info(errors.New("test info"), "info message", 456)
}

func TestNewLoggerCachesByPath(t *testing.T) {
	path := newTestLogPath(t)

	first, err := NewLogger(path)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	second, err := NewLogger(path)
	if err != nil {
		t.Fatalf("NewLogger() second call error = %v", err)
	}

	if first != second {
		t.Fatalf("NewLogger() for the same path returned distinct loggers, want the cached handle")
	}
	if second.RefCount != 2 {
		t.Fatalf("RefCount = %d, want 2 after two opens", second.RefCount)
	}

	if err := second.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if first.LogFile == nil {
		t.Fatal("logger's file should still be open while a reference remains")
	}

	if err := first.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if first.LogFile != nil {
		t.Fatal("logger's file should be closed once the refcount reaches zero")
	}

	reopened, err := NewLogger(path)
	if err != nil {
		t.Fatalf("NewLogger() after full close error = %v", err)
	}
	if reopened == first {
		t.Fatal("NewLogger() after a full close should not hand back a closed cache entry")
	}
	reopened.Close()
}

func TestNewLogger(t *testing.T) {
	validPath := newTestLogPath(t)
	invalidPath := filepath.Join(t.TempDir(), "missing-dir", "trustcore.log")

	tests := []struct {
		name     string
		logName  string
		logLevel LogLevel
		wantErr  bool
	}{
		{name: "ValidLogPath", logName: validPath, logLevel: LogLevelInfo, wantErr: false},
		{name: "EmptyFileName", logName: "", logLevel: LogLevelInfo, wantErr: false},
		{name: "InvalidLogPath", logName: invalidPath, logLevel: LogLevelInfo, wantErr: true},
		{name: "InvalidLogLevel", logName: validPath, logLevel: 10, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewLogger(tt.logName, tt.logLevel)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewLogger() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			defer got.Close()

			if got == nil {
				t.Fatal("NewLogger() returned nil ModLogger unexpectedly")
			}
			if got.FatalLog == nil || got.ErrorLog == nil || got.WarnLog == nil ||
				got.InfoLog == nil || got.DebugLog == nil || got.TraceLog == nil {
				t.Error("NewLogger() left a level logger nil, want all non-nil")
			}
		})
	}
}

func TestModLoggerSetLogLevel(t *testing.T) {
	newLog, err := NewLogger(newTestLogPath(t))
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	defer newLog.Close()

	if err := newLog.SetLogLevel(LogLevelDebug); err != nil {
		t.Errorf("SetLogLevel(LogLevelDebug) error = %v, want nil", err)
	}
	if err := newLog.SetLogLevel(10); err == nil {
		t.Error("SetLogLevel(10) error = nil, want an out-of-range error")
	}
}

// TestModLoggerLevelMethodsDoNotPanic exercises every level method on
// both a file-backed logger and a LogFile == nil logger (the daemon's
// default stderr-only mode).
func TestModLoggerLevelMethodsDoNotPanic(t *testing.T) {
	fileLog, err := NewLogger(newTestLogPath(t))
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	defer fileLog.Close()

	stderrLog := &ModLogger{}

	for _, l := range []*ModLogger{fileLog, stderrLog} {
		l.Fatal(errors.New("test fatal"), "fatal message", 1)
		l.Error(errors.New("test error"), "error message", 2)
		l.Warn(errors.New("test warn"), "warn message", 3)
		l.Info(errors.New("test info"), "info message", 4)
	}
}

func TestModLoggerDebugAndTrace(t *testing.T) {
	newLog, err := NewLogger(newTestLogPath(t), LogLevelTrace)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	defer newLog.Close()

	newLog.Debug(errors.New("test debug"), "debug message", 1)
	newLog.Trace(errors.New("test trace"), "trace message", 2)
}

func TestModLoggerPanicRecoversAsPanic(t *testing.T) {
	stderrLog := &ModLogger{}

	defer func() {
		if recover() == nil {
			t.Error("Panic() on a stderr-only logger did not panic")
		}
	}()
	stderrLog.Panic(errors.New("test panic"))
}

func TestCloseNilLoggerReportsError(t *testing.T) {
	var l *ModLogger
	if err := l.Close(); err == nil {
		t.Error("Close() on a nil logger = nil error, want non-nil")
	}
}

func TestCloseRemovesEmptyLogFile(t *testing.T) {
	path := newTestLogPath(t)
	l, err := NewLogger(path)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected empty log file %q to be removed on Close, stat err = %v", path, err)
	}
}
