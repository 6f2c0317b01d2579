//go:build linux || darwin || dragonfly || freebsd || netbsd || openbsd

package terminal

import "golang.org/x/sys/unix"

// flushInput rewrites the current termios with the flushing variant of the
// set request, which discards unread input.
func flushInput(fd int) error {
	termios, err := unix.IoctlGetTermios(fd, ioctlGetTermios)
	if err != nil {
		return err
	}
	return unix.IoctlSetTermios(fd, ioctlSetTermiosFlush, termios)
}
