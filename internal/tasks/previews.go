package tasks

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/desertthunder/filealchemy/internal/shared"
)

// TempPreviews materializes previews as temporary files that terminal viewers and browsers can open.
type TempPreviews struct {
	dir  string
	mu   sync.Mutex
	live map[string]*PreviewHandle
}

// NewTempPreviews writes previews under dir, or the system temp directory when dir is empty.
func NewTempPreviews(dir string) *TempPreviews {
	return &TempPreviews{dir: dir, live: make(map[string]*PreviewHandle)}
}

func (p *TempPreviews) Create(file FileEntry) (*PreviewHandle, error) {
	data, err := file.Bytes()
	if err != nil {
		return nil, err
	}

	if p.dir != "" {
		if err := os.MkdirAll(p.dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create preview directory: %w", err)
		}
	}

	fh, err := os.CreateTemp(p.dir, "preview-*"+filepath.Ext(file.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to create preview: %w", err)
	}
	defer fh.Close()

	if _, err := fh.Write(data); err != nil {
		os.Remove(fh.Name())
		return nil, fmt.Errorf("failed to write preview: %w", err)
	}

	h := &PreviewHandle{ID: shared.GenerateID(), Path: fh.Name()}

	p.mu.Lock()
	p.live[h.ID] = h
	p.mu.Unlock()
	return h, nil
}

func (p *TempPreviews) Release(h *PreviewHandle) error {
	if h == nil {
		return nil
	}

	p.mu.Lock()
	delete(p.live, h.ID)
	p.mu.Unlock()

	if err := os.Remove(h.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to release preview: %w", err)
	}
	return nil
}

// Live reports how many previews have not been released.
func (p *TempPreviews) Live() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.live)
}

type noPreviews struct{}

func (noPreviews) Create(FileEntry) (*PreviewHandle, error) { return nil, nil }
func (noPreviews) Release(*PreviewHandle) error             { return nil }
