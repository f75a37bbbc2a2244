package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/utafrali/RelistGo/internal/storage"
)

// object holds one uploaded object, bytes included so tests can assert
// on what was stored.
type object struct {
	Key         string
	ContentType string
	Size        int64
	Data        []byte
	URL         string
}

// Storage implements storage.Storage using an in-memory map.
type Storage struct {
	mu      sync.RWMutex
	objects map[string]*object
	baseURL string
}

// New creates a new in-memory storage instance.
func New(baseURL string) *Storage {
	return &Storage{
		objects: make(map[string]*object),
		baseURL: baseURL,
	}
}

// Upload stores the object in memory and returns the generated URL.
func (s *Storage) Upload(_ context.Context, input *storage.UploadInput) (*storage.UploadResult, error) {
	data, err := io.ReadAll(input.Data)
	if err != nil {
		return nil, fmt.Errorf("read upload body: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	url := fmt.Sprintf("%s/%s", s.baseURL, input.Key)

	s.objects[input.Key] = &object{
		Key:         input.Key,
		ContentType: input.ContentType,
		Size:        int64(len(data)),
		Data:        data,
		URL:         url,
	}

	return &storage.UploadResult{
		Key: input.Key,
		URL: url,
	}, nil
}

// Download streams the stored bytes back.
func (s *Storage) Download(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, exists := s.objects[key]
	if !exists {
		return nil, fmt.Errorf("object not found: %s", key)
	}
	return io.NopCloser(bytes.NewReader(obj.Data)), nil
}

// Delete removes an object from memory.
func (s *Storage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.objects[key]; !exists {
		return fmt.Errorf("object not found: %s", key)
	}

	delete(s.objects, key)
	return nil
}

// GetURL returns the URL for the given key.
func (s *Storage) GetURL(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, exists := s.objects[key]
	if !exists {
		return "", fmt.Errorf("object not found: %s", key)
	}

	return obj.URL, nil
}

// Get returns the stored bytes for assertions in tests.
func (s *Storage) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, exists := s.objects[key]
	if !exists {
		return nil, false
	}
	return obj.Data, true
}

// Keys returns every stored key.
func (s *Storage) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	return keys
}

// Len returns the number of stored objects.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
