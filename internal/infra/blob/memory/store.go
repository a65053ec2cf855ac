// Package memory implements an in-memory blob store for tests and ephemeral runs.
package memory

import (
	"bytes"
	"context"
	"crypto/md5" //nolint:gosec // etag only
	"encoding/hex"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"labcore/internal/blob/core"
)

type object struct {
	info core.Info
	data []byte
}

// Store implements core.Store backed by process memory.
type Store struct {
	mu    sync.RWMutex
	objs  map[string]object
	nowFn func() time.Time
}

// New returns an empty in-memory blob store.
func New() *Store {
	return &Store{objs: make(map[string]object), nowFn: func() time.Time { return time.Now().UTC() }}
}

func (s *Store) Driver() core.Driver { return core.DriverMemory }

func (s *Store) Put(_ context.Context, key string, r io.Reader, opts core.PutOptions) (core.Info, error) {
	if strings.TrimSpace(key) == "" {
		return core.Info{}, core.ErrInvalidKey
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return core.Info{}, fmt.Errorf("read blob %s: %w", key, err)
	}
	sum := md5.Sum(data) //nolint:gosec // etag only
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.objs[key]; exists {
		return core.Info{}, fmt.Errorf("%w: %s", core.ErrExists, key)
	}
	info := core.Info{
		Key:          key,
		Size:         int64(len(data)),
		ContentType:  opts.ContentType,
		ETag:         hex.EncodeToString(sum[:]),
		Metadata:     core.CloneMetadata(opts.Metadata),
		LastModified: s.nowFn(),
	}
	s.objs[key] = object{info: info, data: data}
	return copyInfo(info), nil
}

func (s *Store) Get(_ context.Context, key string) (core.Info, io.ReadCloser, error) {
	s.mu.RLock()
	obj, ok := s.objs[key]
	s.mu.RUnlock()
	if !ok {
		return core.Info{}, nil, fmt.Errorf("%w: %s", core.ErrNotExist, key)
	}
	return copyInfo(obj.info), io.NopCloser(bytes.NewReader(slices.Clone(obj.data))), nil
}

func (s *Store) Head(_ context.Context, key string) (core.Info, error) {
	s.mu.RLock()
	obj, ok := s.objs[key]
	s.mu.RUnlock()
	if !ok {
		return core.Info{}, fmt.Errorf("%w: %s", core.ErrNotExist, key)
	}
	return copyInfo(obj.info), nil
}

func (s *Store) Delete(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objs[key]
	delete(s.objs, key)
	return ok, nil
}

func (s *Store) List(_ context.Context, prefix string) ([]core.Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Info, 0, len(s.objs))
	for key, obj := range s.objs {
		if strings.HasPrefix(key, prefix) {
			out = append(out, copyInfo(obj.info))
		}
	}
	slices.SortFunc(out, func(a, b core.Info) int { return strings.Compare(a.Key, b.Key) })
	return out, nil
}

// PresignURL is not available for process memory.
func (s *Store) PresignURL(context.Context, string, time.Duration) (string, error) {
	return "", core.ErrUnsupported
}

func copyInfo(in core.Info) core.Info {
	in.Metadata = core.CloneMetadata(in.Metadata)
	return in
}
