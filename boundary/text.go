package boundary

import (
	"bytes"
	"strings"

	"github.com/wippyai/rawbridge/layout"
)

// TextLen is the size of every fixed-width text field, terminator included.
const TextLen = layout.TextLen

// PutFixed writes s into dst as a NUL-terminated string. At most
// len(dst)-1 bytes are copied, so a long value is cut without error and a
// multi-byte rune may be split. A value containing NUL is written as the
// empty string. Unused bytes are zeroed.
func PutFixed(dst []byte, s string) {
	clear(dst)
	if len(dst) == 0 || strings.IndexByte(s, 0) >= 0 {
		return
	}
	copy(dst[:len(dst)-1], s)
}

// EncodeFixed returns s as a fixed-width text field.
func EncodeFixed(s string) [TextLen]byte {
	var out [TextLen]byte
	PutFixed(out[:], s)
	return out
}

// DecodeFixed reads a text field up to its first NUL.
func DecodeFixed(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}
