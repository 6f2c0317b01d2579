package terminal

import (
	"os"

	"golang.org/x/term"
)

// Console switches the input device into raw mode for the duration of one read.
type Console interface {
	MakeRaw() (restore func() error, err error)
}

// InputFlusher is implemented by consoles that can drop pending input,
// including an unterminated line still held by the line discipline.
type InputFlusher interface {
	FlushInput() error
}

type termConsole struct {
	fd int
}

// NewConsole returns a raw-mode console for f, or nil when f is not a
// terminal (piped input is already unbuffered keystrokes or lines).
func NewConsole(f *os.File) Console {
	if f == nil {
		return nil
	}
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return nil
	}
	return &termConsole{fd: fd}
}

func (c *termConsole) MakeRaw() (func() error, error) {
	state, err := term.MakeRaw(c.fd)
	if err != nil {
		return nil, err
	}
	return func() error {
		return term.Restore(c.fd, state)
	}, nil
}

func (c *termConsole) FlushInput() error {
	return flushInput(c.fd)
}
