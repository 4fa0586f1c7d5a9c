//go:build !windows

package osutil

import "os"

// IsAdmin reports whether the process runs with root privileges.
func IsAdmin() (bool, error) {
	return os.Geteuid() == 0, nil
}
