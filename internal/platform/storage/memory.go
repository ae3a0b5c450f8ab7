package storage

import (
	"bytes"
	"context"
	"io"
	"sort"
	"sync"
)

// MemoryStore keeps objects in process memory. It backs STORAGE_DRIVER=memory
// and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

type memoryObject struct {
	data        []byte
	contentType string
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]memoryObject)}
}

func memoryKey(bucket, key string) string {
	return bucket + "/" + key
}

// Upload stores the body under bucket/key, replacing any previous object.
func (m *MemoryStore) Upload(ctx context.Context, bucket, key string, body io.Reader, size int64, contentType string) error {
	if err := ctx.Err(); err != nil {
		return opError("upload", bucket, key, err)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return opError("upload", bucket, key, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[memoryKey(bucket, key)] = memoryObject{data: data, contentType: contentType}
	return nil
}

// Download returns a reader over a copy of the stored bytes.
func (m *MemoryStore) Download(ctx context.Context, bucket, key string) (io.ReadCloser, Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, Object{}, opError("download", bucket, key, err)
	}
	m.mu.RLock()
	obj, ok := m.objects[memoryKey(bucket, key)]
	m.mu.RUnlock()
	if !ok {
		return nil, Object{}, opError("download", bucket, key, ErrNotFound)
	}
	data := append([]byte(nil), obj.data...)
	info := Object{Bucket: bucket, Key: key, ContentType: obj.contentType, Size: int64(len(data))}
	return io.NopCloser(bytes.NewReader(data)), info, nil
}

// Delete removes the given keys. Missing keys are ignored.
func (m *MemoryStore) Delete(ctx context.Context, bucket string, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return opError("delete", bucket, "", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.objects, memoryKey(bucket, key))
	}
	return nil
}

// Keys lists the stored keys of a bucket in lexical order.
func (m *MemoryStore) Keys(bucket string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	prefix := bucket + "/"
	var keys []string
	for k := range m.objects {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			keys = append(keys, k[len(prefix):])
		}
	}
	sort.Strings(keys)
	return keys
}
