package tasks

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/desertthunder/filealchemy/internal/shared"
)

const blobScheme = "blob:"

// Blob is an in-memory placeholder output.
type Blob struct {
	Name      string
	MediaType string
	Data      []byte
}

// BlobStore holds locally produced outputs addressed by blob: URLs.
type BlobStore struct {
	mu    sync.RWMutex
	blobs map[string]Blob
}

// NewBlobStore creates an empty store.
func NewBlobStore() *BlobStore {
	return &BlobStore{blobs: make(map[string]Blob)}
}

// Put stores data and returns its URL.
func (s *BlobStore) Put(name, mediaType string, data []byte) string {
	url := blobScheme + shared.GenerateID()

	s.mu.Lock()
	s.blobs[url] = Blob{Name: name, MediaType: mediaType, Data: data}
	s.mu.Unlock()
	return url
}

// Get returns the blob at url.
func (s *BlobStore) Get(url string) (Blob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blobs[url]
	return b, ok
}

// Open returns a reader over the blob at url.
func (s *BlobStore) Open(url string) (io.ReadCloser, error) {
	b, ok := s.Get(url)
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrNotFound, url)
	}
	return io.NopCloser(bytes.NewReader(b.Data)), nil
}

// Release drops the blob at url. Unknown URLs are ignored.
func (s *BlobStore) Release(url string) {
	s.mu.Lock()
	delete(s.blobs, url)
	s.mu.Unlock()
}

// Len reports how many blobs are held.
func (s *BlobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}

// IsBlobURL reports whether url addresses a [BlobStore] entry.
func IsBlobURL(url string) bool {
	return strings.HasPrefix(url, blobScheme)
}
