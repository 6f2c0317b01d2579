package terminal

import (
	"unicode/utf8"
)

const (
	keyInterrupt = 0x03
	keyBackspace = 0x08
	keyEscape    = 0x1b
	keyDelete    = 0x7f
)

type decodeState int

const (
	stateText decodeState = iota
	stateEscape
	stateSequence
	stateScanCode
)

// feedResult is what one keystroke byte did to the line.
type feedResult struct {
	echo      string
	done      bool
	interrupt bool
}

// lineEditor accumulates one line from raw keystroke bytes. Escape sequences
// and scan codes are swallowed, backspace removes the last rune.
type lineEditor struct {
	state      decodeState
	runes      []rune
	partial    []byte
	scanPrefix map[byte]struct{}
	terminator byte
}

func newLineEditor(prefixes []byte) *lineEditor {
	scanPrefix := make(map[byte]struct{}, len(prefixes))
	for _, prefix := range prefixes {
		scanPrefix[prefix] = struct{}{}
	}
	return &lineEditor{
		runes:      make([]rune, 0, 32),
		scanPrefix: scanPrefix,
	}
}

func (e *lineEditor) feed(b byte) feedResult {
	switch e.state {
	case stateEscape:
		if b == '[' || b == 'O' {
			e.state = stateSequence
		} else {
			e.state = stateText
		}
		return feedResult{}
	case stateSequence:
		// CSI parameter and intermediate bytes continue until a final byte.
		if b >= 0x40 && b <= 0x7e {
			e.state = stateText
		}
		return feedResult{}
	case stateScanCode:
		e.state = stateText
		return feedResult{}
	}

	if len(e.partial) == 0 {
		if _, ok := e.scanPrefix[b]; ok {
			e.state = stateScanCode
			return feedResult{}
		}
		switch b {
		case '\r', '\n':
			e.terminator = b
			return feedResult{done: true}
		case keyBackspace, keyDelete:
			return feedResult{echo: e.backspace()}
		case keyEscape:
			e.state = stateEscape
			return feedResult{}
		case keyInterrupt:
			return feedResult{interrupt: true}
		}
		if b < 0x20 {
			return feedResult{}
		}
	}

	e.partial = append(e.partial, b)
	if !utf8.FullRune(e.partial) {
		return feedResult{}
	}
	r, size := utf8.DecodeRune(e.partial)
	e.partial = e.partial[:0]
	if r == utf8.RuneError && size <= 1 {
		return feedResult{}
	}
	e.runes = append(e.runes, r)
	return feedResult{echo: string(r)}
}

func (e *lineEditor) backspace() string {
	if len(e.runes) == 0 {
		return ""
	}
	e.runes = e.runes[:len(e.runes)-1]
	return "\b \b"
}

func (e *lineEditor) text() string {
	return string(e.runes)
}
