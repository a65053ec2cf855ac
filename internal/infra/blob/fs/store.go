// Package fs implements a blob store on the local filesystem. Each blob is a
// file under the root with a JSON sidecar (".meta") carrying its metadata.
package fs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"net/url"
	"os"
	"path"
	"slices"
	"strings"
	"time"

	"labcore/internal/blob/core"
)

const metaSuffix = ".meta"

// DefaultRoot is used when no root directory is configured.
const DefaultRoot = "./blobdata"

// Store implements core.Store rooted at a directory. Access goes through an
// os.Root so keys cannot escape it.
type Store struct {
	root  *os.Root
	dir   string
	nowFn func() time.Time
}

type sidecar struct {
	ContentType string            `json:"content_type,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	ETag        string            `json:"etag"`
	Size        int64             `json:"size"`
	CreatedAt   time.Time         `json:"created_at"`
}

// New opens (creating if needed) a filesystem blob store at dir.
func New(dir string) (*Store, error) {
	if dir == "" {
		dir = DefaultRoot
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("open blob root: %w", err)
	}
	return &Store{root: root, dir: dir, nowFn: func() time.Time { return time.Now().UTC() }}, nil
}

// Close releases the root handle.
func (s *Store) Close() error { return s.root.Close() }

func (s *Store) Driver() core.Driver { return core.DriverFilesystem }

func cleanKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" || strings.HasPrefix(key, "/") || strings.HasSuffix(key, metaSuffix) {
		return "", fmt.Errorf("%w: %q", core.ErrInvalidKey, key)
	}
	clean := path.Clean(key)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: %q", core.ErrInvalidKey, key)
	}
	return clean, nil
}

func (s *Store) Put(_ context.Context, key string, r io.Reader, opts core.PutOptions) (core.Info, error) {
	k, err := cleanKey(key)
	if err != nil {
		return core.Info{}, err
	}
	if dir := path.Dir(k); dir != "." {
		if err := s.root.MkdirAll(dir, 0o750); err != nil {
			return core.Info{}, fmt.Errorf("create blob dir: %w", err)
		}
	}
	f, err := s.root.OpenFile(k, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if errors.Is(err, iofs.ErrExist) {
		return core.Info{}, fmt.Errorf("%w: %s", core.ErrExists, key)
	}
	if err != nil {
		return core.Info{}, fmt.Errorf("create blob %s: %w", key, err)
	}
	h := sha256.New()
	size, err := io.Copy(io.MultiWriter(f, h), r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = s.root.Remove(k)
		return core.Info{}, fmt.Errorf("write blob %s: %w", key, err)
	}
	meta := sidecar{
		ContentType: opts.ContentType,
		Metadata:    core.CloneMetadata(opts.Metadata),
		ETag:        hex.EncodeToString(h.Sum(nil)),
		Size:        size,
		CreatedAt:   s.nowFn(),
	}
	raw, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return core.Info{}, err
	}
	if err := s.root.WriteFile(k+metaSuffix, raw, 0o640); err != nil {
		_ = s.root.Remove(k)
		return core.Info{}, fmt.Errorf("write blob metadata %s: %w", key, err)
	}
	return s.info(k, meta), nil
}

func (s *Store) Get(ctx context.Context, key string) (core.Info, io.ReadCloser, error) {
	info, err := s.Head(ctx, key)
	if err != nil {
		return core.Info{}, nil, err
	}
	f, err := s.root.Open(info.Key)
	if errors.Is(err, iofs.ErrNotExist) {
		return core.Info{}, nil, fmt.Errorf("%w: %s", core.ErrNotExist, key)
	}
	if err != nil {
		return core.Info{}, nil, err
	}
	return info, f, nil
}

func (s *Store) Head(_ context.Context, key string) (core.Info, error) {
	k, err := cleanKey(key)
	if err != nil {
		return core.Info{}, err
	}
	meta, err := s.readSidecar(k)
	if err != nil {
		return core.Info{}, err
	}
	return s.info(k, meta), nil
}

func (s *Store) readSidecar(k string) (sidecar, error) {
	raw, err := s.root.ReadFile(k + metaSuffix)
	if errors.Is(err, iofs.ErrNotExist) {
		return sidecar{}, fmt.Errorf("%w: %s", core.ErrNotExist, k)
	}
	if err != nil {
		return sidecar{}, err
	}
	var meta sidecar
	if err := json.Unmarshal(raw, &meta); err != nil {
		return sidecar{}, fmt.Errorf("decode blob metadata %s: %w", k, err)
	}
	return meta, nil
}

func (s *Store) Delete(_ context.Context, key string) (bool, error) {
	k, err := cleanKey(key)
	if err != nil {
		return false, err
	}
	if err := s.root.Remove(k); err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	_ = s.root.Remove(k + metaSuffix)
	return true, nil
}

func (s *Store) List(_ context.Context, prefix string) ([]core.Info, error) {
	var out []core.Info
	err := iofs.WalkDir(s.root.FS(), ".", func(p string, d iofs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(p, metaSuffix) {
			return nil
		}
		key := strings.TrimSuffix(p, metaSuffix)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		meta, err := s.readSidecar(key)
		if err != nil {
			return err
		}
		out = append(out, s.info(key, meta))
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(out, func(a, b core.Info) int { return strings.Compare(a.Key, b.Key) })
	return out, nil
}

// PresignURL returns a file URL; local blobs need no signature.
func (s *Store) PresignURL(_ context.Context, key string, _ time.Duration) (string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return s.fileURL(k), nil
}

func (s *Store) fileURL(k string) string {
	return (&url.URL{Scheme: "file", Path: path.Join(s.dir, k)}).String()
}

func (s *Store) info(k string, meta sidecar) core.Info {
	return core.Info{
		Key:          k,
		Size:         meta.Size,
		ContentType:  meta.ContentType,
		ETag:         meta.ETag,
		Metadata:     core.CloneMetadata(meta.Metadata),
		LastModified: meta.CreatedAt,
		URL:          s.fileURL(k),
	}
}
