// Package flash measures how much a storage volume accepts by filling it
// with a test artifact.
package flash

import (
	"io"

	"github.com/qudata/memcheck/internal/domain"
)

// Volume is a mountable storage area.
type Volume interface {
	// Mount makes the volume usable. It fails when the volume has never
	// been formatted.
	Mount() error

	// Format initialises a fresh, empty volume.
	Format() error

	// Quota reports total and used space of a mounted volume.
	Quota() (domain.StorageQuota, error)

	// Create opens name for writing, truncating prior content.
	Create(name string) (io.WriteCloser, error)

	Unmount() error
}
