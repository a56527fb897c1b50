package recognizer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ModelInfo summarizes a loaded model.
type ModelInfo struct {
	Name  string
	Files int
	Bytes int64
}

// Loader loads the recognition model into the worker.
type Loader interface {
	Load(ctx context.Context) (ModelInfo, error)
}

// FileLoader reads every model file once, so a missing or unreadable file
// fails the worker before it reports readiness. The inference runtime then
// maps the files from the warm page cache.
type FileLoader struct {
	Dir   string
	Files []string
}

func (l *FileLoader) Load(ctx context.Context) (ModelInfo, error) {
	info := ModelInfo{Name: filepath.Base(l.Dir)}
	for _, name := range l.Files {
		if err := ctx.Err(); err != nil {
			return info, err
		}
		n, err := readAll(filepath.Join(l.Dir, name))
		if err != nil {
			return info, err
		}
		info.Files++
		info.Bytes += n
	}
	return info, nil
}

func readAll(path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open model file: %w", err)
	}
	defer f.Close()
	n, err := io.Copy(io.Discard, f)
	if err != nil {
		return n, fmt.Errorf("read model file %s: %w", path, err)
	}
	return n, nil
}

// Personal.AI order the ending
