//go:build windows

package terminal

// Legacy Windows consoles report arrow and function keys as a 0x00 or 0xE0
// prefix followed by a scan code byte.
var scanCodePrefixes = []byte{0x00, 0xe0}
