package inspect

import (
	"io"
	"strings"

	"github.com/midbel/hexdump"

	"github.com/paradisepdf/pagekit/source"
)

// DumpWindow is the number of bytes shown from each end of the file.
const DumpWindow = 1024

// RawDump shows the first and last bytes of a file, as text with
// non-printable bytes replaced and as a hex dump.
type RawDump struct {
	Size    int64  `json:"size"`
	Head    string `json:"head"`
	Tail    string `json:"tail"`
	HeadHex string `json:"head_hex"`
	TailHex string `json:"tail_hex"`
}

// Raw reads the head and tail windows of src. When the file is shorter
// than two windows the windows overlap.
func Raw(src source.ReaderAt) (*RawDump, error) {
	size := src.Size()
	n := min(size, DumpWindow)
	head := make([]byte, n)
	if _, err := src.ReadAt(head, 0); err != nil && err != io.EOF {
		return nil, err
	}
	tail := make([]byte, n)
	if _, err := src.ReadAt(tail, size-n); err != nil && err != io.EOF {
		return nil, err
	}
	return &RawDump{
		Size:    size,
		Head:    printable(head),
		Tail:    printable(tail),
		HeadHex: hexdump.Dump(head),
		TailHex: hexdump.Dump(tail),
	}, nil
}

func printable(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, c := range b {
		switch {
		case c == '\n' || c == '\r' || c == '\t':
			sb.WriteByte(c)
		case c < 0x20 || c >= 0x7f:
			sb.WriteByte('.')
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}
