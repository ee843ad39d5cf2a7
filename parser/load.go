package parser

import (
	"context"
	"errors"

	"github.com/paradisepdf/pagekit/ir/raw"
	"github.com/paradisepdf/pagekit/observability"
	"github.com/paradisepdf/pagekit/security"
	"github.com/paradisepdf/pagekit/source"
	"github.com/paradisepdf/pagekit/xref"
)

// Load parses src. When parsing fails and the file carries a startxref
// directive shortly before its last %%EOF, a clean tail is appended virtually
// and the parse is retried once. If the retry also fails the original error
// is returned.
func Load(ctx context.Context, src source.ReaderAt, cfg Config) (*raw.Document, error) {
	p := NewDocumentParser(cfg)
	doc, err := p.Parse(ctx, src)
	if err == nil {
		return doc, nil
	}
	if ctx.Err() != nil || errors.Is(err, security.ErrInvalidPassword) || errors.Is(err, security.ErrUnsupportedEncrypt) {
		return nil, err
	}
	patch, ok := xref.TailPatch(src, src.Size())
	if !ok {
		return nil, err
	}
	p.cfg.Logger.Debug("retrying with repaired tail", observability.Error("err", err))
	patched, retryErr := p.Parse(ctx, source.NewConcat(src, source.Bytes(patch)))
	if retryErr != nil {
		return nil, err
	}
	return patched, nil
}
