// Package terminal reads player input one keystroke at a time so a line can be
// abandoned when its deadline passes.
package terminal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

const (
	keyBufferSize     = 256
	defaultRetryDelay = 100 * time.Millisecond
	// maxReadFailures is how many consecutive read errors the pump tolerates
	// before it treats the input as gone.
	maxReadFailures = 10
)

var (
	// ErrClosed indicates the input stream ended, or kept failing until the
	// reader gave up. The underlying cause, io.EOF included, is wrapped
	// alongside it.
	ErrClosed = errors.New("terminal input closed")
	// ErrInput indicates one failed read. The reader keeps running and the
	// next ReadLine may succeed.
	ErrInput = errors.New("terminal input failed")
	// ErrInterrupted indicates Ctrl-C was pressed while the console was raw.
	ErrInterrupted = errors.New("terminal interrupted")
)

// Line is the result of one read: either typed text or a timeout.
type Line struct {
	Text     string
	TimedOut bool
}

// Option configures Reader construction.
type Option func(*Reader)

// WithConsole enables raw mode around each read. Raw mode disables output
// post-processing, so line endings switch to CRLF.
func WithConsole(console Console) Option {
	return func(reader *Reader) {
		if console == nil {
			return
		}
		reader.console = console
		reader.newline = "\r\n"
	}
}

// WithScanCodePrefixes overrides the platform scan code prefixes.
func WithScanCodePrefixes(prefixes []byte) Option {
	return func(reader *Reader) {
		reader.prefixes = append([]byte(nil), prefixes...)
	}
}

// WithRetryDelay sets the pause after a failed read before the next attempt.
// The pause grows with each consecutive failure.
func WithRetryDelay(d time.Duration) Option {
	return func(reader *Reader) {
		if d >= 0 {
			reader.retryDelay = d
		}
	}
}

// keyEvent is one byte from the input or one failed read.
type keyEvent struct {
	key byte
	err error
}

// Reader is the timed line reader. A single background goroutine pumps bytes
// from the input; ReadLine consumes them until a terminator or the deadline.
type Reader struct {
	in         io.Reader
	out        io.Writer
	console    Console
	newline    string
	prefixes   []byte
	retryDelay time.Duration

	startOnce sync.Once
	keys      chan keyEvent

	mu      sync.Mutex
	readErr error

	// skipLF drops the LF of a CRLF pair split across two reads.
	skipLF bool
}

// NewReader builds a reader over in that echoes to out.
func NewReader(in io.Reader, out io.Writer, options ...Option) (*Reader, error) {
	if in == nil {
		return nil, errors.New("input is required")
	}
	if out == nil {
		return nil, errors.New("output is required")
	}
	reader := &Reader{
		in:         in,
		out:        out,
		newline:    "\n",
		prefixes:   scanCodePrefixes,
		retryDelay: defaultRetryDelay,
		keys:       make(chan keyEvent, keyBufferSize),
	}
	for _, option := range options {
		if option == nil {
			continue
		}
		option(reader)
	}
	return reader, nil
}

func (r *Reader) start() {
	r.startOnce.Do(func() {
		go r.pump()
	})
}

// pump forwards bytes and read failures in order. End of input closes the
// channel; so does a run of maxReadFailures consecutive failures.
func (r *Reader) pump() {
	buf := make([]byte, 64)
	failures := 0
	for {
		n, err := r.in.Read(buf)
		for _, b := range buf[:n] {
			r.keys <- keyEvent{key: b}
		}
		if n > 0 {
			failures = 0
		}
		if err == nil {
			continue
		}
		if isEndOfInput(err) {
			r.stop(err)
			return
		}
		failures++
		if failures >= maxReadFailures {
			r.stop(err)
			return
		}
		r.keys <- keyEvent{err: err}
		time.Sleep(r.retryDelay * time.Duration(failures))
	}
}

func (r *Reader) stop(err error) {
	r.mu.Lock()
	r.readErr = err
	r.mu.Unlock()
	close(r.keys)
}

func isEndOfInput(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, os.ErrClosed)
}

func (r *Reader) closedErr() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.readErr == nil {
		return ErrClosed
	}
	return fmt.Errorf("%w: %w", ErrClosed, r.readErr)
}

// ReadLine reads one line. A zero deadline blocks until a terminator arrives.
// On timeout the partial line is discarded and a newline is still written so
// the prompt is closed. Raw mode, when configured, is restored on every path.
func (r *Reader) ReadLine(ctx context.Context, deadline time.Duration) (line Line, err error) {
	if r == nil {
		return Line{}, errors.New("reader is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	r.start()

	if r.console != nil {
		restore, rawErr := r.console.MakeRaw()
		if rawErr != nil {
			return Line{}, fmt.Errorf("enter raw mode: %w", rawErr)
		}
		defer func() {
			if restoreErr := restore(); restoreErr != nil && err == nil {
				err = fmt.Errorf("restore terminal mode: %w", restoreErr)
			}
		}()
	}

	var expired <-chan time.Time
	if deadline > 0 {
		timer := time.NewTimer(deadline)
		defer timer.Stop()
		expired = timer.C
	}

	editor := newLineEditor(r.prefixes)
	for {
		select {
		case <-ctx.Done():
			r.write(r.newline)
			return Line{}, ctx.Err()
		case <-expired:
			r.write(r.newline)
			return Line{TimedOut: true}, nil
		case event, ok := <-r.keys:
			if !ok {
				if text := editor.text(); text != "" {
					r.write(r.newline)
					return Line{Text: text}, nil
				}
				return Line{}, r.closedErr()
			}
			if event.err != nil {
				r.write(r.newline)
				return Line{}, fmt.Errorf("%w: %w", ErrInput, event.err)
			}
			key := event.key
			if r.skipLF {
				r.skipLF = false
				if key == '\n' {
					continue
				}
			}
			result := editor.feed(key)
			r.write(result.echo)
			if result.interrupt {
				r.write(r.newline)
				return Line{}, ErrInterrupted
			}
			if result.done {
				r.skipLF = editor.terminator == '\r'
				r.write(r.newline)
				return Line{Text: editor.text()}, nil
			}
		}
	}
}

// Discard drops keystrokes buffered while no read was in progress, such as
// those typed during a lockout. A console that can flush its input queue also
// drops keys still sitting in an unterminated line.
func (r *Reader) Discard() {
	if r == nil {
		return
	}
	r.start()
	if flusher, ok := r.console.(InputFlusher); ok {
		_ = flusher.FlushInput()
	}
	for {
		select {
		case _, ok := <-r.keys:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

func (r *Reader) write(text string) {
	if text == "" || r.out == nil {
		return
	}
	if _, err := io.WriteString(r.out, text); err != nil {
		return
	}
}
