//go:build windows

// Package osutils provides OS-specific helpers used at startup.
package osutils

import (
	"golang.org/x/sys/windows"
)

// IsAdmin checks if the current process has administrative privileges
func IsAdmin() bool {
	var token windows.Token
	h, _ := windows.GetCurrentProcess()
	err := windows.OpenProcessToken(h, windows.TOKEN_QUERY, &token)
	if err != nil {
		return false
	}
	defer token.Close()

	var sid *windows.SID
	err = windows.AllocateAndInitializeSid(
		&windows.SECURITY_NT_AUTHORITY,
		2,
		windows.SECURITY_BUILTIN_DOMAIN_RID,
		windows.DOMAIN_ALIAS_RID_ADMINS,
		0, 0, 0, 0, 0, 0,
		&sid,
	)
	if err != nil {
		return false
	}
	defer windows.FreeSid(sid)

	member, err := token.IsMember(sid)
	if err != nil {
		return false
	}

	return member
}

// IsElevated reports whether the process token is elevated. Synthetic input
// from a non-elevated process does not reach elevated windows.
func IsElevated() bool {
	return windows.GetCurrentProcessToken().IsElevated()
}

// InjectionWarning describes why keyboard events may be dropped by the OS,
// or returns an empty string when nothing is known to block them.
func InjectionWarning() string {
	if IsElevated() {
		return ""
	}
	if IsAdmin() {
		return "process is not elevated; events will not reach windows running as administrator"
	}
	return "process runs without administrator rights; events will not reach elevated windows"
}
