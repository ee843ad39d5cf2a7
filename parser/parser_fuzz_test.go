package parser

import (
	"context"
	"testing"

	"github.com/paradisepdf/pagekit/internal/pdftest"
	"github.com/paradisepdf/pagekit/recovery"
	"github.com/paradisepdf/pagekit/source"
)

func FuzzLoad(f *testing.F) {
	f.Add(pdftest.Pages(1).Bytes())
	f.Add(append(pdftest.Pages(2).Bytes(), "\x00junk"...))
	f.Add([]byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog\nendobj\nstartxref\n9\n%%EOF"))

	f.Fuzz(func(t *testing.T, data []byte) {
		cfg := Config{Recovery: recovery.NewLenientStrategy()}
		doc, err := Load(context.Background(), source.Bytes(data), cfg)
		if err == nil && doc == nil {
			t.Fatal("nil document without error")
		}
	})
}
