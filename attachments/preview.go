package attachments

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"campushub.com/campus-feed/log"
)

// Attachment pairs a source image with a previewable copy. The preview copy
// is a scarce resource: it lives on disk until released, and the registry
// guarantees release on replacement, clear, and owner shutdown.
type Attachment struct {
	SourcePath string

	handle      string
	previewPath string
}

// Handle is the opaque identity of the live preview resource.
func (a *Attachment) Handle() string { return a.handle }

// PreviewPath is the on-disk location of the preview copy. Empty once
// released.
func (a *Attachment) PreviewPath() string { return a.previewPath }

// Registry owns every live preview copy under one scratch directory.
type Registry struct {
	mu   sync.Mutex
	dir  string
	live map[string]string // handle -> preview path
}

func NewRegistry(dir string) (*Registry, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create preview dir: %w", err)
	}
	return &Registry{dir: dir, live: make(map[string]string)}, nil
}

// Create copies the source file into the scratch directory under a fresh
// handle and registers the copy as live.
func (r *Registry) Create(sourcePath string) (*Attachment, error) {
	src, err := os.Open(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open attachment: %w", err)
	}
	defer src.Close()

	handle := uuid.New().String()
	previewPath := filepath.Join(r.dir, handle+filepath.Ext(sourcePath))
	dst, err := os.OpenFile(previewPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create preview copy: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(previewPath)
		return nil, fmt.Errorf("failed to write preview copy: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(previewPath)
		return nil, err
	}

	r.mu.Lock()
	r.live[handle] = previewPath
	r.mu.Unlock()

	return &Attachment{SourcePath: sourcePath, handle: handle, previewPath: previewPath}, nil
}

// Release frees the preview copy. Releasing an already-released attachment
// is a no-op.
func (r *Registry) Release(a *Attachment) {
	if a == nil {
		return
	}
	r.mu.Lock()
	handle := a.handle
	path, ok := r.live[handle]
	delete(r.live, handle)
	a.handle = ""
	a.previewPath = ""
	r.mu.Unlock()
	if handle == "" || !ok {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Warn.Printf("failed to remove preview %s: %v", handle, err)
	}
}

// LiveCount reports how many preview copies are currently held.
func (r *Registry) LiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}

// Close releases every live preview. Safe to call more than once.
func (r *Registry) Close() {
	r.mu.Lock()
	live := r.live
	r.live = make(map[string]string)
	r.mu.Unlock()
	for handle, path := range live {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Warn.Printf("failed to remove preview %s: %v", handle, err)
		}
	}
}
