package flash

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/qudata/memcheck/internal/domain"
	"github.com/qudata/memcheck/internal/memory"
)

func formattedVolume(t *testing.T, capacity uint64) *DirVolume {
	t.Helper()
	vol := NewDirVolume(filepath.Join(t.TempDir(), "flash"), capacity)
	if err := vol.Format(); err != nil {
		t.Fatalf("Format: %v", err)
	}
	if err := vol.Mount(); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	return vol
}

func TestDirVolumeMountRequiresFormat(t *testing.T) {
	vol := NewDirVolume(filepath.Join(t.TempDir(), "flash"), 64*kib)

	if err := vol.Mount(); err == nil {
		t.Fatal("Mount of a missing directory succeeded")
	}
	if err := vol.Format(); err != nil {
		t.Fatalf("Format: %v", err)
	}
	if err := vol.Mount(); err != nil {
		t.Fatalf("Mount after Format: %v", err)
	}
	if err := vol.Unmount(); err != nil {
		t.Fatalf("Unmount: %v", err)
	}
	if err := vol.Unmount(); err == nil {
		t.Error("second Unmount succeeded")
	}
}

func TestDirVolumeFormatRefusesForeignDirectory(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("keep me"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := NewDirVolume(root, 64*kib).Format(); err == nil {
		t.Fatal("Format wiped a directory that is not a volume")
	}
	if _, err := os.Stat(filepath.Join(root, "notes.txt")); err != nil {
		t.Errorf("foreign file was removed: %v", err)
	}
}

func TestDirVolumeFormatWipesVolume(t *testing.T) {
	vol := formattedVolume(t, 64*kib)
	if err := os.WriteFile(filepath.Join(vol.Root(), "old.bin"), make([]byte, 4*kib), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := vol.Format(); err != nil {
		t.Fatalf("Format: %v", err)
	}
	q, err := vol.Quota()
	if err != nil {
		t.Fatalf("Quota: %v", err)
	}
	if q.Used != 0 {
		t.Errorf("Used = %d after format, want 0", q.Used)
	}
}

func TestDirVolumeQuotaCountsFiles(t *testing.T) {
	vol := formattedVolume(t, 64*kib)
	if err := os.WriteFile(filepath.Join(vol.Root(), "a.bin"), make([]byte, 3*kib), 0o644); err != nil {
		t.Fatal(err)
	}

	q, err := vol.Quota()
	if err != nil {
		t.Fatalf("Quota: %v", err)
	}
	if q.Used != 3*kib {
		t.Errorf("Used = %d, want %d", q.Used, 3*kib)
	}
	if q.Total > 64*kib {
		t.Errorf("Total = %d exceeds capacity", q.Total)
	}
}

func TestDirVolumeRequiresMount(t *testing.T) {
	vol := NewDirVolume(t.TempDir(), 64*kib)
	if _, err := vol.Quota(); err == nil {
		t.Error("Quota on an unmounted volume succeeded")
	}
	if _, err := vol.Create("x"); err == nil {
		t.Error("Create on an unmounted volume succeeded")
	}
}

func TestBoundedFileShortWrite(t *testing.T) {
	vol := formattedVolume(t, 10*kib)

	f, err := vol.Create("/test_file.bin")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer f.Close()

	n, err := f.Write(make([]byte, 16*kib))
	if n != 10*kib {
		t.Errorf("wrote %d bytes, want %d", n, 10*kib)
	}
	if !errors.Is(err, io.ErrShortWrite) || !errors.Is(err, domain.ErrExhausted) {
		t.Errorf("err = %v, want ErrShortWrite and ErrExhausted", err)
	}
}

func TestDirVolumeCreateTruncates(t *testing.T) {
	vol := formattedVolume(t, 64*kib)

	f, err := vol.Create("test_file.bin")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.Write(make([]byte, 5*kib)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	f.Close()

	f, err = vol.Create("test_file.bin")
	if err != nil {
		t.Fatalf("second Create: %v", err)
	}
	defer f.Close()

	q, err := vol.Quota()
	if err != nil {
		t.Fatalf("Quota: %v", err)
	}
	if q.Used != 0 {
		t.Errorf("Used = %d after truncation, want 0", q.Used)
	}
}

func TestWriterFillsDirVolume(t *testing.T) {
	root := filepath.Join(t.TempDir(), "flash")
	vol := NewDirVolume(root, 100*kib+500)

	res := NewWriter(vol, memory.NewPool("psram", 64*kib), nil).Probe(nil)

	if res.Outcome != domain.OutcomeComplete {
		t.Fatalf("Outcome = %q, want complete", res.Outcome)
	}
	if res.TotalBytes != res.Quota.Available() {
		t.Errorf("TotalBytes = %d, want the %d available", res.TotalBytes, res.Quota.Available())
	}

	data, err := os.ReadFile(filepath.Join(root, DefaultArtifactName))
	if err != nil {
		t.Fatalf("artifact: %v", err)
	}
	if uint64(len(data)) != res.TotalBytes {
		t.Errorf("artifact holds %d bytes, result says %d", len(data), res.TotalBytes)
	}
	for i, b := range data {
		if b != DefaultFillByte {
			t.Fatalf("artifact byte %d = %#x, want %#x", i, b, DefaultFillByte)
		}
	}

	// The artifact stays behind and counts as used space on the next run.
	again := NewWriter(vol, memory.NewPool("psram", 64*kib), nil).Probe(nil)
	if again.Quota.Used != res.TotalBytes {
		t.Errorf("second run saw %d bytes used, want %d", again.Quota.Used, res.TotalBytes)
	}
}
