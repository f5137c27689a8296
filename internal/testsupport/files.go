package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"alfalfa/internal/ivf"
)

// WriteIVF writes frames to an IVF file at path with consecutive timestamps.
// An empty fourcc writes VP80.
func WriteIVF(t testing.TB, path string, width, height uint16, fourcc string, frames ...[]byte) string {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	w, err := ivf.NewWriter(f, ivf.Header{FourCC: fourcc, Width: width, Height: height})
	if err != nil {
		t.Fatalf("ivf writer: %v", err)
	}
	for i, chunk := range frames {
		if err := w.WriteFrame(uint64(i), chunk); err != nil {
			t.Fatalf("write frame %d: %v", i, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("finish %s: %v", path, err)
	}
	return path
}
