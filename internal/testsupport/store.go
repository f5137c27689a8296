package testsupport

import (
	"context"
	"testing"

	"alfalfa/internal/catalog"
	"alfalfa/internal/config"
	"alfalfa/internal/decoder"
	"alfalfa/internal/frame"
)

// MustOpenCatalog opens the catalog named by cfg for writing and registers cleanup.
func MustOpenCatalog(t testing.TB, cfg *config.Config) *catalog.Store {
	t.Helper()

	store, err := catalog.Open(cfg.Paths.Catalog)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// PutFrame records a serialized frame for tests.
func PutFrame(t testing.TB, store *catalog.Store, stream string, index int, source, target decoder.Fingerprint, chunk []byte) catalog.Entry {
	t.Helper()

	entry, _, err := store.Put(context.Background(), catalog.Entry{
		Stream:     stream,
		FrameIndex: index,
		Width:      16,
		Height:     16,
		Shown:      true,
		Frame:      frame.New(chunk, source, target),
	})
	if err != nil {
		t.Fatalf("store.Put: %v", err)
	}
	return entry
}
