//go:build windows

package osutil

import "golang.org/x/sys/windows"

// IsAdmin reports whether the calling thread's token is a member of the
// built-in Administrators group. On error the boolean result is true.
func IsAdmin() (bool, error) {
	var admins *windows.SID
	err := windows.AllocateAndInitializeSid(
		&windows.SECURITY_NT_AUTHORITY,
		2,
		windows.SECURITY_BUILTIN_DOMAIN_RID,
		windows.DOMAIN_ALIAS_RID_ADMINS,
		0, 0, 0, 0, 0, 0,
		&admins,
	)
	if err != nil {
		return true, err
	}
	defer windows.FreeSid(admins) //nolint:errcheck

	member, err := windows.Token(0).IsMember(admins)
	if err != nil {
		return true, err
	}
	return member, nil
}
