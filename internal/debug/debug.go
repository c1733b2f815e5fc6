// Package debug provides leveled diagnostic logging.
//
// Debug output is off by default and enabled with SM_DEBUG=1 (or
// programmatically). Warnings and errors always reach stderr. When a log
// file is configured, every level is additionally appended to a rotating
// file so long-running watchers keep a trail without filling the disk.
package debug

import (
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu      sync.Mutex
	enabled bool
	logFile *lumberjack.Logger
)

func init() {
	v := os.Getenv("SM_DEBUG")
	enabled = v == "1" || v == "true"
}

// Enable turns debug-level output on or off at runtime.
func Enable(on bool) {
	mu.Lock()
	defer mu.Unlock()
	enabled = on
}

// Enabled reports whether debug-level output is active.
func Enabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled
}

// ConfigureFile routes all levels to a rotating log file in addition to
// stderr. Zero limits fall back to lumberjack defaults.
func ConfigureFile(path string, maxSizeMB, maxBackups, maxAgeDays int) {
	mu.Lock()
	defer mu.Unlock()
	logFile = &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
	}
}

// CloseFile flushes and detaches the rotating log file, if any.
func CloseFile() {
	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

func emit(level, format string, args ...interface{}) {
	line := fmt.Sprintf("%s [%s] %s\n",
		time.Now().Format("2006-01-02 15:04:05"), level, fmt.Sprintf(format, args...))

	mu.Lock()
	file := logFile
	mu.Unlock()

	fmt.Fprint(os.Stderr, line)
	if file != nil {
		file.Write([]byte(line))
	}
}

// Logf writes a debug-level line when debug output is enabled.
func Logf(format string, args ...interface{}) {
	if !Enabled() {
		mu.Lock()
		file := logFile
		mu.Unlock()
		if file == nil {
			return
		}
		// Keep the file trail complete even when stderr debug is off.
		line := fmt.Sprintf("%s [DEBUG] %s\n",
			time.Now().Format("2006-01-02 15:04:05"), fmt.Sprintf(format, args...))
		file.Write([]byte(line))
		return
	}
	emit("DEBUG", format, args...)
}

// Warnf writes a warning-level line.
func Warnf(format string, args ...interface{}) {
	emit("WARN", format, args...)
}

// Errorf writes an error-level line. It never returns an error: logging
// failures must not surface to callers.
func Errorf(format string, args ...interface{}) {
	emit("ERROR", format, args...)
}
