package rag

import (
	"strings"
	"unicode/utf8"
)

// lineDecoder reassembles complete text lines from arbitrary byte chunks.
// Bytes that end a chunk in the middle of a multi-byte character are carried
// into the next feed so the character decodes intact. The trailing segment
// without a newline is buffered until the next feed; if the stream ends with
// such a segment still pending it is discarded, since the protocol always
// terminates with an explicit sentinel line.
type lineDecoder struct {
	carry   []byte
	pending string
}

// feed consumes one chunk and returns every newline-terminated line in order.
func (d *lineDecoder) feed(chunk []byte) []string {
	buf := chunk
	if len(d.carry) > 0 {
		buf = append(d.carry, chunk...)
		d.carry = nil
	}

	// Hold back an incomplete trailing rune.
	cut := len(buf)
	for i := len(buf) - 1; i >= 0 && len(buf)-i <= utf8.UTFMax; i-- {
		if utf8.RuneStart(buf[i]) {
			if !utf8.FullRune(buf[i:]) {
				cut = i
			}
			break
		}
	}
	if cut < len(buf) {
		d.carry = append([]byte(nil), buf[cut:]...)
		buf = buf[:cut]
	}

	parts := strings.Split(d.pending+string(buf), "\n")
	d.pending = parts[len(parts)-1]
	return parts[:len(parts)-1]
}
