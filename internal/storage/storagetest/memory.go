// Package storagetest provides an in-memory storage.Client for tests of
// packages that depend on object storage.
package storagetest

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/franciscosanchezn/gin-recipe-api/internal/storage"
)

type object struct {
	data        []byte
	contentType string
	modified    time.Time
}

// Memory is a storage.Client keeping objects in a map. FailDeletes makes
// every delete fail, to exercise compensation paths.
type Memory struct {
	mu          sync.Mutex
	objects     map[string]object
	FailDeletes bool
	FailPuts    bool
}

func NewMemory() *Memory {
	return &Memory{objects: make(map[string]object)}
}

// NewFactory returns a factory whose only client is mem, named "memory".
func NewFactory(t *testing.T, mem *Memory, profiles map[string]storage.ProfileConfig) *storage.Factory {
	t.Helper()
	settings := storage.Settings{
		DefaultClient: "memory",
		UploadRetries: 1,
		RetryWait:     time.Millisecond,
		Clients:       map[string]storage.ClientConfig{"memory": {Provider: storage.ProviderMinio, Bucket: "memory", Endpoint: "memory"}},
		Profiles:      profiles,
	}
	return storage.NewFactoryWithBuilder(context.Background(), settings, func(storage.ClientConfig, string) (storage.Client, error) {
		return mem, nil
	})
}

// Has reports whether key is stored.
func (m *Memory) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

// Keys lists stored keys in order.
func (m *Memory) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Put stores data directly, as a browser upload would.
func (m *Memory) Put(key, contentType string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = object{data: data, contentType: contentType, modified: time.Now().UTC()}
}

func (m *Memory) Name() string                       { return "memory" }
func (m *Memory) Bucket() string                     { return "memory" }
func (m *Memory) Capabilities() storage.Capabilities { return storage.CapabilitiesFor(storage.ProviderMinio) }
func (m *Memory) EnsureBucket(context.Context) error { return nil }

func etag(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

func (m *Memory) PutObject(_ context.Context, key string, body io.ReadSeeker, size int64, contentType string) (*storage.ObjectInfo, error) {
	if m.FailPuts {
		return nil, errors.New("memory: put refused")
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) != size {
		return nil, fmt.Errorf("memory: body is %d bytes, expected %d", len(data), size)
	}
	m.Put(key, contentType, data)
	return &storage.ObjectInfo{Key: key, Size: size, ETag: etag(data), ContentType: contentType, LastModified: time.Now().UTC()}, nil
}

func (m *Memory) GetObject(_ context.Context, key string) (io.ReadCloser, *storage.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, nil, storage.ErrObjectNotFound
	}
	info := &storage.ObjectInfo{Key: key, Size: int64(len(obj.data)), ETag: etag(obj.data), ContentType: obj.contentType, LastModified: obj.modified}
	return io.NopCloser(bytes.NewReader(obj.data)), info, nil
}

func (m *Memory) DeleteObject(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailDeletes {
		return errors.New("memory: delete refused")
	}
	delete(m.objects, key)
	return nil
}

func (m *Memory) DeleteObjects(ctx context.Context, keys []string) error {
	for _, k := range keys {
		if err := m.DeleteObject(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) ObjectExists(_ context.Context, key string) (bool, error) {
	return m.Has(key), nil
}

func (m *Memory) ListObjects(_ context.Context, prefix string) ([]storage.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []storage.ObjectInfo{}
	for k, obj := range m.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, storage.ObjectInfo{Key: k, Size: int64(len(obj.data)), ETag: etag(obj.data), ContentType: obj.contentType, LastModified: obj.modified})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *Memory) CopyObject(_ context.Context, srcKey, dstKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[srcKey]
	if !ok {
		return storage.ErrObjectNotFound
	}
	m.objects[dstKey] = obj
	return nil
}

func (m *Memory) MoveObject(ctx context.Context, srcKey, dstKey string) error {
	if err := m.CopyObject(ctx, srcKey, dstKey); err != nil {
		return err
	}
	return m.DeleteObject(ctx, srcKey)
}

func (m *Memory) PresignGet(_ context.Context, key string, expires time.Duration) (string, error) {
	return fmt.Sprintf("%s?X-Amz-Expires=%d", m.BuildURL(key), int(expires.Seconds())), nil
}

func (m *Memory) PresignPut(_ context.Context, key, _ string, expires time.Duration) (string, error) {
	return fmt.Sprintf("%s?X-Amz-Expires=%d&put", m.BuildURL(key), int(expires.Seconds())), nil
}

func (m *Memory) PresignPostPolicy(_ context.Context, key, contentType string, _ int64, _ time.Duration) (*storage.PostPolicy, error) {
	return &storage.PostPolicy{URL: "http://memory/memory", Fields: map[string]string{"key": key, "Content-Type": contentType}}, nil
}

func (m *Memory) BuildURL(key string) string {
	return "http://memory/memory/" + strings.TrimLeft(key, "/")
}
