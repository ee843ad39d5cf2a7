// Package pdftest assembles small PDF files for tests.
package pdftest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

// Doc collects object bodies and serializes them with a classic xref table
// whose offsets are exact.
type Doc struct {
	Version string
	Root    int
	// Trailer holds extra trailer entries, e.g. "/Info 9 0 R".
	Trailer string
	objects map[int]string
}

func NewDoc() *Doc {
	return &Doc{Version: "1.7", Root: 1, objects: make(map[int]string)}
}

// Set stores the body of object num, without the "obj" header.
func (d *Doc) Set(num int, body string) *Doc {
	d.objects[num] = body
	return d
}

// Stream stores a stream object; /Length is appended to dict.
func (d *Doc) Stream(num int, dict string, data []byte) *Doc {
	return d.Set(num, fmt.Sprintf("<< %s /Length %d >>\nstream\n%s\nendstream", dict, len(data), data))
}

// Offsets returns the byte offset of every object in Bytes' output.
func (d *Doc) Offsets() map[int]int {
	_, offs := d.build()
	return offs
}

func (d *Doc) Bytes() []byte {
	out, _ := d.build()
	return out
}

func (d *Doc) build() ([]byte, map[int]int) {
	buf := &bytes.Buffer{}
	fmt.Fprintf(buf, "%%PDF-%s\n%%\xe2\xe3\xcf\xd3\n", d.Version)
	nums := make([]int, 0, len(d.objects))
	max := 0
	for n := range d.objects {
		nums = append(nums, n)
		if n > max {
			max = n
		}
	}
	sort.Ints(nums)
	offs := make(map[int]int, len(nums))
	for _, n := range nums {
		offs[n] = buf.Len()
		fmt.Fprintf(buf, "%d 0 obj\n%s\nendobj\n", n, d.objects[n])
	}
	xrefOff := buf.Len()
	fmt.Fprintf(buf, "xref\n0 %d\n0000000000 65535 f \n", max+1)
	for n := 1; n <= max; n++ {
		if off, ok := offs[n]; ok {
			fmt.Fprintf(buf, "%010d 00000 n \n", off)
		} else {
			buf.WriteString("0000000000 65535 f \n")
		}
	}
	fmt.Fprintf(buf, "trailer\n<< /Size %d /Root %d 0 R %s >>\nstartxref\n%d\n%%%%EOF\n", max+1, d.Root, d.Trailer, xrefOff)
	return buf.Bytes(), offs
}

// Pages returns a document with n US Letter pages. Page i (1-based) is
// object 2+i and draws the text "Page i" from content stream 2+n+i.
func Pages(n int) *Doc {
	d := NewDoc()
	d.Set(1, "<< /Type /Catalog /Pages 2 0 R >>")
	kids := &bytes.Buffer{}
	for i := 1; i <= n; i++ {
		fmt.Fprintf(kids, "%d 0 R ", 2+i)
		d.Set(2+i, fmt.Sprintf("<< /Type /Page /Parent 2 0 R /Contents %d 0 R >>", 2+n+i))
		d.Stream(2+n+i, "", []byte(fmt.Sprintf("BT /F1 12 Tf 72 720 Td (Page %d) Tj ET", i)))
	}
	d.Set(2, fmt.Sprintf("<< /Type /Pages /Kids [ %s] /Count %d /MediaBox [0 0 612 792] /Resources << >> >>", kids.String(), n))
	return d
}

// WriteFile writes data under dir and returns the path.
func WriteFile(t testing.TB, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
