package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/shpitdev/instrument-master/pkg/pipeline/core"
)

// StdoutPath makes FileSink write to its Stdout writer.
const StdoutPath = "-"

// FileSink writes artifacts to the local filesystem.
type FileSink struct {
	// Path is a file path, an existing directory, "-" for stdout, or empty for
	// the artifact name in the working directory.
	Path string

	Stdout io.Writer
}

// Store writes the artifact and returns the path it was written to.
func (s FileSink) Store(_ context.Context, a core.Artifact) (string, error) {
	path := strings.TrimSpace(s.Path)
	if path == StdoutPath {
		w := s.Stdout
		if w == nil {
			w = os.Stdout
		}
		if _, err := w.Write(a.Data); err != nil {
			return "", fmt.Errorf("write artifact to stdout: %w", err)
		}
		return "stdout", nil
	}

	path, err := resolvePath(path, a.Name)
	if err != nil {
		return "", err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = f.Close()
	}()

	if _, err := f.Write(a.Data); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, f.Close()
}

func resolvePath(path, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("artifact name is required")
	}
	if path == "" {
		return name, nil
	}
	if strings.HasSuffix(path, string(os.PathSeparator)) || strings.HasSuffix(path, "/") {
		return filepath.Join(path, name), nil
	}
	if fi, err := os.Stat(path); err == nil && fi.IsDir() {
		return filepath.Join(path, name), nil
	}
	return path, nil
}
