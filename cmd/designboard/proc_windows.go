//go:build windows

package main

import (
	"os/exec"
	"syscall"
)

// configureDaemonProc keeps Ctrl+C in the TUI's console from reaching the
// daemon.
func configureDaemonProc(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
}
