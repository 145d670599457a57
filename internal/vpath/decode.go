package vpath

import (
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// decodeWithFallback implements the encoding fallback chain required by
// spec.md §4.1 ("I/O"): UTF-8 -> Latin-1 -> CP-1252. golang.org/x/text is
// a direct teacher dependency (go.mod); charmap.ISO8859_1/Windows1252 give
// single-byte decoders that, unlike UTF-8, never fail to decode, which is
// exactly the "fallback of last resort" behavior the chain needs.
func decodeWithFallback(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}
	if s, err := charmap.ISO8859_1.NewDecoder().String(string(raw)); err == nil {
		return s
	}
	// Windows-1252 decoding over raw bytes never errors for a
	// single-byte charmap, so this is the terminal fallback.
	s, _ := charmap.Windows1252.NewDecoder().String(string(raw))
	return s
}
