//go:build !linux

package flash

import (
	"errors"

	"github.com/qudata/memcheck/internal/domain"
)

// statfs is only wired up on Linux. Elsewhere a capacity must be set.
func statfs(string) (domain.StorageQuota, error) {
	return domain.StorageQuota{}, errors.New("statfs is not supported on this platform")
}
