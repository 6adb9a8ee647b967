// Package daemon contiene la lógica del servicio: logging, diagnóstico y ciclo de vida.
package daemon

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

const (
	maxLogSize      = 5 * 1024 * 1024 // 5MB
	keepOnRotate    = 1000
	keepOnFlush     = 50
	tailReadMaxSize = 64 * 1024
)

// Per-call chatter, dropped when verbose is off.
var nonCriticalPrefixes = []string{
	"[BRIDGE] 📤 Sent",
	"[BRIDGE] 📥",
	"[WS] 📨",
	"[WS] ➕ Client connected",
	"[WS] ➖ Client disconnected",
}

// FilteredLogger is an io.Writer over a log file that drops non-critical
// lines when verbose output is off.
type FilteredLogger struct {
	mu      sync.Mutex // guards file across write, flush and reopen
	path    string
	file    *os.File
	verbose atomic.Bool
}

// current is the logger installed by InitLogger.
var (
	current   *FilteredLogger
	currentMu sync.RWMutex
)

// Write filters log messages based on verbosity
func (l *FilteredLogger) Write(p []byte) (int, error) {
	if !l.verbose.Load() {
		msg := string(p)
		for _, prefix := range nonCriticalPrefixes {
			if strings.Contains(msg, prefix) {
				return len(p), nil
			}
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return 0, errors.New("log file not initialized")
	}
	return l.file.Write(p)
}

// InitLogger opens (rotating first if needed) the log file and routes the
// standard logger through it.
func InitLogger(path string, verbose bool) error {
	if err := rotateLogIfNeeded(path); err != nil {
		fmt.Printf("[!] Log rotation failed: %v\n", err)
	}

	f, err := openLogFile(path)
	if err != nil {
		return err
	}

	l := &FilteredLogger{path: path, file: f}
	l.verbose.Store(verbose)

	currentMu.Lock()
	prev := current
	current = l
	currentMu.Unlock()

	if prev != nil {
		prev.mu.Lock()
		if prev.file != nil {
			_ = prev.file.Close()
			prev.file = nil
		}
		prev.mu.Unlock()
	}

	log.SetOutput(l)
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
	return nil
}

// SetVerbose changes the verbosity level at runtime
func SetVerbose(v bool) {
	if l := installed(); l != nil {
		l.verbose.Store(v)
	}
	log.Printf("[OK] Log verbosity: %v", v)
}

// GetVerbose returns current verbosity level. Without a log file everything is shown.
func GetVerbose() bool {
	if l := installed(); l != nil {
		return l.verbose.Load()
	}
	return true
}

// GetLogFileSize returns current log file size
func GetLogFileSize() int64 {
	l := installed()
	if l == nil {
		return 0
	}
	info, err := os.Stat(l.path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// FlushLogFile keeps the last lines and clears the rest
func FlushLogFile() error {
	l := installed()
	if l == nil {
		return errors.New("log path not configured")
	}

	l.mu.Lock()
	lines := readLastNLines(l.path, keepOnFlush)
	if l.file != nil {
		if err := l.file.Close(); err != nil {
			l.mu.Unlock()
			return err
		}
		l.file = nil
	}
	if err := writeLines(l.path, lines); err != nil {
		l.mu.Unlock()
		return err
	}
	f, err := openLogFile(l.path)
	if err != nil {
		l.mu.Unlock()
		return err
	}
	l.file = f
	l.mu.Unlock()

	log.Println("[OK] Logs flushed")
	return nil
}

func installed() *FilteredLogger {
	currentMu.RLock()
	defer currentMu.RUnlock()
	return current
}

func openLogFile(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600) //nolint:gosec
}

func writeLines(path string, lines []string) error {
	content := ""
	if len(lines) > 0 {
		content = strings.Join(lines, "\n") + "\n"
	}
	return os.WriteFile(path, []byte(content), 0600)
}

// rotateLogIfNeeded trims the log to its last lines once it exceeds maxLogSize
func rotateLogIfNeeded(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.Size() < maxLogSize {
		return nil
	}

	lines := readLastNLines(path, keepOnRotate)
	if len(lines) == 0 {
		return nil
	}
	return writeLines(path, lines)
}

// readLastNLines reads up to n trailing lines from the last 64KB of a file
func readLastNLines(path string, n int) []string {
	file, err := os.Open(path) //nolint:gosec
	if err != nil {
		return nil
	}
	defer func() { _ = file.Close() }()

	stat, err := file.Stat()
	if err != nil || stat.Size() == 0 {
		return nil
	}

	size := stat.Size()
	bufSize := int64(tailReadMaxSize)
	if size < bufSize {
		bufSize = size
	}

	buf := make([]byte, bufSize)
	if _, err := file.ReadAt(buf, size-bufSize); err != nil && !errors.Is(err, io.EOF) {
		return nil
	}

	lines := strings.Split(string(buf), "\n")
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	// Started mid-line: the first fragment is partial.
	if size > bufSize && len(lines) > 0 {
		lines = lines[1:]
	}

	if len(lines) <= n {
		return lines
	}
	return lines[len(lines)-n:]
}
