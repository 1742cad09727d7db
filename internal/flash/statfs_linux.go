//go:build linux

package flash

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/qudata/memcheck/internal/domain"
)

func statfs(path string) (domain.StorageQuota, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return domain.StorageQuota{}, fmt.Errorf("statfs %s: %w", path, err)
	}
	total := st.Blocks * uint64(st.Bsize)
	free := st.Bavail * uint64(st.Bsize)
	if free > total {
		free = total
	}
	return domain.StorageQuota{Total: total, Used: total - free}, nil
}
