//go:build windows

package logger

import (
	"syscall"
	"unsafe"
)

// enableVirtualTerminalProcessing lets the console interpret ANSI colour codes.
const enableVirtualTerminalProcessing = 0x0004

var (
	kernel32           = syscall.NewLazyDLL("kernel32.dll")
	procGetConsoleMode = kernel32.NewProc("GetConsoleMode")
	procSetConsoleMode = kernel32.NewProc("SetConsoleMode")
)

// isTerminal reports whether fd is a console handle. Consoles that cannot
// process ANSI sequences are reported as non-terminals so no colour codes
// are written to them.
func isTerminal(fd uintptr) bool {
	var mode uint32
	if r, _, _ := procGetConsoleMode.Call(fd, uintptr(unsafe.Pointer(&mode))); r == 0 {
		return false
	}
	if mode&enableVirtualTerminalProcessing != 0 {
		return true
	}
	r, _, _ := procSetConsoleMode.Call(fd, uintptr(mode|enableVirtualTerminalProcessing))
	return r != 0
}
