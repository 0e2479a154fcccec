package jasm

import (
	"fmt"

	"github.com/hashicorp/go-version"
)

// TargetVersion maps a Java release ("1.8", "8", "17") to a class file
// major and minor version.
func TargetVersion(release string) (uint16, uint16, error) {
	v, err := version.NewVersion(release)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid target %q: %w", release, err)
	}
	seg := v.Segments()
	n := seg[0]
	if n == 1 && len(seg) > 1 {
		n = seg[1]
		if n <= 1 {
			return 45, 3, nil
		}
		if n > 8 {
			return 0, 0, fmt.Errorf("invalid target %q: use %d instead", release, n)
		}
	}
	if n < 2 || n > 0xFFFF-44 {
		return 0, 0, fmt.Errorf("invalid target %q", release)
	}
	return uint16(44 + n), 0, nil
}
