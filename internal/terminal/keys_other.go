//go:build !windows

package terminal

// 0xE0 is a valid UTF-8 lead byte outside Windows, so no scan code prefixes apply.
var scanCodePrefixes []byte
