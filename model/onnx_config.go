package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/RyanBlaney/sonido-emotion/emotion"
)

// ONNXConfig configures an ONNXScorer.
type ONNXConfig struct {
	// ModelPath is the exported network.
	ModelPath string
	// LibraryPath points at libonnxruntime. Empty searches common locations.
	LibraryPath string
	// InputName and OutputName select graph nodes. Empty uses the first of each.
	InputName  string
	OutputName string
	// IntraOpThreads caps the threads of one forward pass. 0 lets the runtime decide.
	IntraOpThreads int
}

// IsValid checks the configuration and that the model file exists.
func (c ONNXConfig) IsValid() error {
	if c.ModelPath == "" {
		return fmt.Errorf("%w: model path should not be empty", emotion.ErrModelUnavailable)
	}
	info, err := os.Stat(c.ModelPath)
	if err != nil {
		return fmt.Errorf("%w: %w", emotion.ErrModelUnavailable, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: model path %s is a directory", emotion.ErrModelUnavailable, c.ModelPath)
	}
	if c.IntraOpThreads < 0 {
		return fmt.Errorf("%w: intra-op threads must not be negative", emotion.ErrModelUnavailable)
	}
	return nil
}

// FindRuntimeLibrary returns the first onnxruntime shared library found in
// ONNXRUNTIME_LIB, common install prefixes or the dynamic loader path.
func FindRuntimeLibrary() string {
	paths := []string{
		os.Getenv("ONNXRUNTIME_LIB"),
		"/usr/lib/libonnxruntime.so",
		"/usr/local/lib/libonnxruntime.so",
		"/opt/onnxruntime/lib/libonnxruntime.so",
		"/opt/homebrew/lib/libonnxruntime.dylib",
		"/usr/local/lib/libonnxruntime.dylib",
	}

	if ldPath := os.Getenv("LD_LIBRARY_PATH"); ldPath != "" {
		for _, dir := range filepath.SplitList(ldPath) {
			paths = append(paths, filepath.Join(dir, "libonnxruntime.so"))
		}
	}
	if dyldPath := os.Getenv("DYLD_LIBRARY_PATH"); dyldPath != "" {
		for _, dir := range filepath.SplitList(dyldPath) {
			paths = append(paths, filepath.Join(dir, "libonnxruntime.dylib"))
		}
	}

	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
