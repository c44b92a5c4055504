//go:build !windows
// +build !windows

package detach

import "syscall"

// procAttr starts the child in its own session, so it survives the parent
// exiting and its controlling terminal closing.
func procAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}
