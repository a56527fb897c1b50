// Package model verifies recognizer model prerequisites before a worker is
// launched. It checks presence only; file integrity is the loader's concern.
package model

import (
	"os"
	"path/filepath"

	aerrors "github.com/turtacn/Auris/pkg/errors"
	"github.com/turtacn/Auris/pkg/logger"
)

// Checker validates that the model directory holds every required file.
type Checker struct {
	Dir   string
	Files []string
}

func NewChecker(dir string, files []string) *Checker {
	return &Checker{Dir: dir, Files: files}
}

// Check returns a *errors.ModelValidationError describing the first
// missing or empty prerequisite.
func (c *Checker) Check() error {
	if c.Dir == "" {
		return &aerrors.ModelValidationError{Path: c.Dir, Reason: "model directory is not configured"}
	}
	info, err := os.Stat(c.Dir)
	if err != nil {
		return &aerrors.ModelValidationError{Path: c.Dir, Reason: "model directory not found", Err: err}
	}
	if !info.IsDir() {
		return &aerrors.ModelValidationError{Path: c.Dir, Reason: "model path is not a directory"}
	}

	for _, name := range c.Files {
		path := filepath.Join(c.Dir, name)
		fi, err := os.Stat(path)
		if err != nil {
			return &aerrors.ModelValidationError{Path: path, Reason: "model file missing", Err: err}
		}
		if fi.IsDir() {
			return &aerrors.ModelValidationError{Path: path, Reason: "expected a file, found a directory"}
		}
		if fi.Size() == 0 {
			return &aerrors.ModelValidationError{Path: path, Reason: "model file is empty"}
		}
	}

	logger.Log.Debug("Model check passed", "dir", c.Dir, "files", len(c.Files))
	return nil
}

// Personal.AI order the ending
