package raw

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// pdfDocHigh maps PDFDocEncoding bytes 0x80-0x9F, which differ from Latin-1.
var pdfDocHigh = [32]rune{
	'•', '†', '‡', '…', '—', '–', 'ƒ', '⁄',
	'‹', '›', '−', '‰', '„', '“', '”', '‘',
	'’', '‚', '™', 'ﬁ', 'ﬂ', 'Ł', 'Œ', 'Š',
	'Ÿ', 'Ž', 'ı', 'ł', 'œ', 'š', 'ž', '�',
}

var (
	bomBE = []byte{0xFE, 0xFF}
	bomLE = []byte{0xFF, 0xFE}
	bomU8 = []byte{0xEF, 0xBB, 0xBF}
)

// DecodeText converts a PDF text string to UTF-8. Strings starting with a
// UTF-16 byte order mark are decoded as UTF-16; others as PDFDocEncoding.
func DecodeText(b []byte) string {
	switch {
	case bytes.HasPrefix(b, bomBE) || bytes.HasPrefix(b, bomLE):
		dec := unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder()
		out, _, err := transform.Bytes(dec, b)
		if err == nil {
			return string(out)
		}
	case bytes.HasPrefix(b, bomU8):
		if utf8.Valid(b[3:]) {
			return string(b[3:])
		}
	}
	var sb strings.Builder
	sb.Grow(len(b))
	for _, c := range b {
		switch {
		case c >= 0x80 && c <= 0x9F:
			sb.WriteRune(pdfDocHigh[c-0x80])
		case c == 0xA0:
			sb.WriteRune('€')
		default:
			sb.WriteRune(rune(c))
		}
	}
	return sb.String()
}
