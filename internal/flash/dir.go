package flash

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/qudata/memcheck/internal/domain"
)

const markerName = ".memcheck-volume"

var errNotMounted = errors.New("volume not mounted")

// DirVolume is a volume backed by a scratch directory. When capacity is
// non-zero the volume pretends to be that large; otherwise the underlying
// file system is measured with statfs.
type DirVolume struct {
	root     string
	capacity uint64

	mu      sync.Mutex
	mounted bool
}

// NewDirVolume creates a volume rooted at root.
func NewDirVolume(root string, capacity uint64) *DirVolume {
	return &DirVolume{root: root, capacity: capacity}
}

// Root returns the directory backing the volume.
func (v *DirVolume) Root() string {
	return v.root
}

func (v *DirVolume) Mount() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	info, err := os.Stat(v.root)
	if err != nil {
		return fmt.Errorf("stat %s: %w", v.root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", v.root)
	}
	if _, err := os.Stat(filepath.Join(v.root, markerName)); err != nil {
		return fmt.Errorf("%s is not formatted: %w", v.root, err)
	}

	v.mounted = true
	return nil
}

// Format wipes the volume and writes a fresh marker. A non-empty
// directory without a marker is refused: it is not ours to erase.
func (v *DirVolume) Format() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	entries, err := os.ReadDir(v.root)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return fmt.Errorf("read %s: %w", v.root, err)
	case len(entries) > 0 && !hasMarker(entries):
		return fmt.Errorf("refusing to format %s: directory is not empty and is not a volume", v.root)
	default:
		for _, e := range entries {
			if err := os.RemoveAll(filepath.Join(v.root, e.Name())); err != nil {
				return fmt.Errorf("wipe %s: %w", e.Name(), err)
			}
		}
	}

	if err := os.MkdirAll(v.root, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", v.root, err)
	}
	if err := os.WriteFile(filepath.Join(v.root, markerName), nil, 0o644); err != nil {
		return fmt.Errorf("write marker: %w", err)
	}
	return nil
}

func (v *DirVolume) Quota() (domain.StorageQuota, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.mounted {
		return domain.StorageQuota{}, errNotMounted
	}
	return v.quota()
}

func (v *DirVolume) quota() (domain.StorageQuota, error) {
	if v.capacity == 0 {
		return statfs(v.root)
	}

	used, err := dirUsage(v.root)
	if err != nil {
		return domain.StorageQuota{}, err
	}
	q := domain.StorageQuota{Total: v.capacity, Used: used}

	// The cap cannot promise more than the host file system holds.
	if host, err := statfs(v.root); err == nil {
		if free := host.Available(); q.Available() > free {
			q.Total = q.Used + free
		}
	}
	return q, nil
}

func (v *DirVolume) Create(name string) (io.WriteCloser, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.mounted {
		return nil, errNotMounted
	}

	path := filepath.Join(v.root, filepath.Base(name))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}

	q, err := v.quota()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("quota: %w", err)
	}
	return &boundedFile{f: f, remaining: q.Available()}, nil
}

func (v *DirVolume) Unmount() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.mounted {
		return errNotMounted
	}
	v.mounted = false
	return nil
}

// boundedFile refuses to grow past the space the volume had when the
// file was opened.
type boundedFile struct {
	f         *os.File
	remaining uint64
}

func (b *boundedFile) Write(p []byte) (int, error) {
	want := len(p)
	if uint64(want) > b.remaining {
		want = int(b.remaining)
	}

	n, err := b.f.Write(p[:want])
	b.remaining -= uint64(n)
	if err != nil {
		return n, err
	}
	if n < len(p) {
		return n, fmt.Errorf("%w: %w", io.ErrShortWrite, domain.ErrExhausted)
	}
	return n, nil
}

func (b *boundedFile) Close() error {
	return b.f.Close()
}

func hasMarker(entries []os.DirEntry) bool {
	for _, e := range entries {
		if e.Name() == markerName {
			return true
		}
	}
	return false
}

func dirUsage(root string) (uint64, error) {
	var used uint64
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() || d.Name() == markerName {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		used += uint64(info.Size())
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("measure %s: %w", root, err)
	}
	return used, nil
}
