// Package logging tees the standard logger to a file during development.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
)

var (
	logFile *os.File
	once    sync.Once
)

// Initialize sets up file logging. Intended for development; production
// logs go to stdout and are captured by the container runtime.
func Initialize(logDir string) error {
	var initErr error
	once.Do(func() {
		if err := os.MkdirAll(logDir, 0755); err != nil {
			initErr = fmt.Errorf("failed to create log directory: %w", err)
			return
		}

		logPath := filepath.Join(logDir, "ec2manager.log")
		file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			initErr = fmt.Errorf("failed to open log file: %w", err)
			return
		}
		logFile = file

		// Replace default logger so every log.Printf in the codebase is teed
		log.SetOutput(io.MultiWriter(os.Stdout, file))
		log.SetFlags(log.LstdFlags | log.Lshortfile)

		log.Printf("Logging initialized: %s", logPath)
	})
	return initErr
}

// Close closes the log file
func Close() error {
	if logFile != nil {
		return logFile.Close()
	}
	return nil
}
