package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/paradisepdf/pagekit/internal/pdftest"
	"github.com/paradisepdf/pagekit/pdferr"
)

func TestRunCount(t *testing.T) {
	path := pdftest.WriteFile(t, t.TempDir(), "doc.pdf", pdftest.Pages(3).Bytes())
	var out bytes.Buffer
	if err := run([]string{"count", path}, &out); err != nil {
		t.Fatalf("count: %v", err)
	}
	var got map[string]int
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("output %q: %v", out.String(), err)
	}
	if got["pages"] != 3 {
		t.Fatalf("pages = %d", got["pages"])
	}
}

func TestRunReorganizeAndMeta(t *testing.T) {
	dir := t.TempDir()
	path := pdftest.WriteFile(t, dir, "doc.pdf", pdftest.Pages(3).Bytes())
	target := filepath.Join(dir, "out.pdf")
	if err := run([]string{"reorganize", "-order", "3,blank", "-o", target, path}, &bytes.Buffer{}); err != nil {
		t.Fatalf("reorganize: %v", err)
	}
	var out bytes.Buffer
	if err := run([]string{"meta", target}, &out); err != nil {
		t.Fatalf("meta: %v", err)
	}
	var pages []map[string]any
	if err := json.Unmarshal(out.Bytes(), &pages); err != nil {
		t.Fatalf("output %q: %v", out.String(), err)
	}
	if len(pages) != 2 {
		t.Fatalf("got %d pages", len(pages))
	}
}

func TestRunUsageErrors(t *testing.T) {
	cases := [][]string{
		nil,
		{"explode", "x.pdf"},
		{"count"},
		{"merge", "a.pdf"},
		{"rotate", "-rotate", "1:quarter", "a.pdf"},
		{"reorganize", "-o", "x.pdf", "a.pdf"},
	}
	for _, args := range cases {
		err := run(args, &bytes.Buffer{})
		if !errors.Is(err, errUsage) {
			t.Errorf("%v: expected usage error, got %v", args, err)
		}
	}
}

func TestRunReportsEngineErrors(t *testing.T) {
	err := run([]string{"props", filepath.Join(t.TempDir(), "missing.pdf")}, &bytes.Buffer{})
	if errors.Is(err, errUsage) || !pdferr.Is(err, pdferr.KindPath) {
		t.Fatalf("expected a path error, got %v", err)
	}
}
