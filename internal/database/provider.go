package database

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

var (
	backendsMu     sync.RWMutex
	galleryWriters = map[string]func() GalleryWriter{}
	activeBackend  string
)

// RegisterGalleryBackend registers a gallery store constructor under name.
// Backend packages call this once they are initialized, which keeps this
// package free of driver imports.
func RegisterGalleryBackend(name string, writer func() GalleryWriter) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	galleryWriters[name] = writer
}

// UseGalleryBackend selects the backend returned by GetGalleryWriter.
func UseGalleryBackend(name string) error {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	if _, ok := galleryWriters[name]; !ok {
		return fmt.Errorf("%s backend not initialized", name)
	}
	activeBackend = name
	return nil
}

// ActiveBackend returns the selected backend name, empty when none.
func ActiveBackend() string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	return activeBackend
}

// RegisteredBackends lists the registered backend names.
func RegisteredBackends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	names := make([]string, 0, len(galleryWriters))
	for name := range galleryWriters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetGalleryWriter returns a GalleryWriter from the active backend
func GetGalleryWriter(ctx context.Context) (GalleryWriter, error) {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	if activeBackend == "" {
		return nil, fmt.Errorf("gallery backend not initialized: call UseGalleryBackend first")
	}
	writer, ok := galleryWriters[activeBackend]
	if !ok || writer == nil {
		return nil, fmt.Errorf("%s gallery writer not registered", activeBackend)
	}
	return writer(), nil
}

// GetGalleryReader returns a GalleryReader from the active backend
func GetGalleryReader(ctx context.Context) (GalleryReader, error) {
	return GetGalleryWriter(ctx)
}

// resetBackends clears the registry; used by tests.
func resetBackends() {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	galleryWriters = map[string]func() GalleryWriter{}
	activeBackend = ""
}
