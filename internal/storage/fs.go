package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/starford/metacheck/internal/apperr"
	"github.com/starford/metacheck/internal/checksum"
	"github.com/starford/metacheck/internal/models"
)

// FS implements Provider over an archive mirrored on the local file system.
// Archive path /seq/1/x.bam lives at <root>/seq/1/x.bam and its catalog
// metadata at <root>/seq/1/x.bam.meta.yaml.
type FS struct {
	root string // absolute path to archive directory
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute archive root.
func (f *FS) Root() string { return f.root }

// safePath resolves an archive path against the root and rejects any result
// that escapes it (directory traversal).
func (f *FS) safePath(p string) (string, error) {
	rel := strings.TrimLeft(filepath.FromSlash(p), string(os.PathSeparator))
	if rel == "" {
		return f.root, nil
	}
	joined := filepath.Join(f.root, filepath.Clean(rel))
	abs, err := filepath.Abs(joined)
	if err != nil {
		return "", fmt.Errorf("storage: resolve path: %w", err)
	}
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) && abs != f.root {
		return "", fmt.Errorf("storage: path escapes archive root: %s", p)
	}
	return abs, nil
}

// ArchivePath converts a local file below the root back to its archive path.
func (f *FS) ArchivePath(local string) (string, error) {
	rel, err := filepath.Rel(f.root, local)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("storage: %s is outside the archive", local)
	}
	return "/" + filepath.ToSlash(rel), nil
}

// List walks collection and returns every data object below it.
func (f *FS) List(ctx context.Context, collection string) ([]string, error) {
	base, err := f.safePath(collection)
	if err != nil {
		return nil, err
	}
	var out []string
	err = filepath.WalkDir(base, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if p != base && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if IsSidecar(name) || strings.HasPrefix(name, ".") {
			return nil
		}
		ap, err := f.ArchivePath(p)
		if err != nil {
			return err
		}
		out = append(out, ap)
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("storage: list %s: %w", collection, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	slices.Sort(out)
	return out, nil
}

// Find lists the collection and keeps the objects whose sidecar matches q.
func (f *FS) Find(ctx context.Context, q Query) ([]string, error) {
	paths, err := f.List(ctx, q.Collection)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, p := range paths {
		sc, err := f.sidecar(p)
		if err != nil {
			return nil, err
		}
		if sc.Matches(q) {
			out = append(out, p)
		}
	}
	return out, nil
}

// sidecar reads the catalog metadata of a data object. An object without a
// sidecar has no metadata; a missing object is ErrNotFound.
func (f *FS) sidecar(p string) (*Sidecar, error) {
	abs, err := f.safePath(p)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(abs); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("storage: %s: %w", p, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("storage: stat %s: %w", p, err)
	}
	data, err := os.ReadFile(abs + SidecarSuffix)
	if errors.Is(err, fs.ErrNotExist) {
		return &Sidecar{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: read sidecar %s: %w", p, err)
	}
	return ParseSidecar(data)
}

// Annotations returns the annotations recorded in the sidecar of path.
func (f *FS) Annotations(_ context.Context, path string) ([]models.RawAnnotation, error) {
	sc, err := f.sidecar(path)
	if err != nil {
		return nil, err
	}
	return sc.Annotations, nil
}

// Checksum returns the MD5 of the content of path.
func (f *FS) Checksum(ctx context.Context, path string) (string, error) {
	rc, err := f.Open(ctx, path)
	if err != nil {
		return "", err
	}
	defer rc.Close()
	return checksum.Reader(rc)
}

// Replicas returns the replicas recorded in the sidecar of path.
func (f *FS) Replicas(_ context.Context, path string) ([]models.Replica, error) {
	sc, err := f.sidecar(path)
	if err != nil {
		return nil, err
	}
	return sc.Replicas, nil
}

// ACL returns the access control list recorded in the sidecar of path.
func (f *FS) ACL(_ context.Context, path string) ([]models.AccessControl, error) {
	sc, err := f.sidecar(path)
	if err != nil {
		return nil, err
	}
	return sc.ACL, nil
}

// Open opens the content of path.
func (f *FS) Open(_ context.Context, path string) (io.ReadCloser, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return nil, err
	}
	fh, err := os.Open(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("storage: open %s: %w", path, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}
	return fh, nil
}

// Fingerprint summarizes the state of a data object and its sidecar. It
// changes whenever either file is rewritten.
func (f *FS) Fingerprint(path string) (string, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("storage: %s: %w", path, apperr.ErrNotFound)
		}
		return "", fmt.Errorf("storage: stat %s: %w", path, err)
	}
	sidecar, err := os.ReadFile(abs + SidecarSuffix)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("storage: read sidecar %s: %w", path, err)
	}
	return fmt.Sprintf("%d:%d:%s", info.Size(), info.ModTime().UnixNano(), checksum.Sum(sidecar)), nil
}

// Put atomically writes a data object and, when sc is non-nil, its sidecar.
func (f *FS) Put(path string, content []byte, sc *Sidecar) error {
	abs, err := f.safePath(path)
	if err != nil {
		return err
	}
	if err := atomicWrite(abs, content); err != nil {
		return err
	}
	if sc == nil {
		return nil
	}
	return f.PutSidecar(path, sc)
}

// PutSidecar atomically replaces the sidecar of path.
func (f *FS) PutSidecar(path string, sc *Sidecar) error {
	abs, err := f.safePath(path)
	if err != nil {
		return err
	}
	data, err := sc.Marshal()
	if err != nil {
		return fmt.Errorf("storage: encode sidecar: %w", err)
	}
	return atomicWrite(abs+SidecarSuffix, data)
}

// atomicWrite writes content: tmp file → fsync → rename.
func atomicWrite(abs string, content []byte) error {
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".metacheck-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}
