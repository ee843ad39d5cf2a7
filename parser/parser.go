package parser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/paradisepdf/pagekit/filters"
	"github.com/paradisepdf/pagekit/ir/raw"
	"github.com/paradisepdf/pagekit/observability"
	"github.com/paradisepdf/pagekit/recovery"
	"github.com/paradisepdf/pagekit/security"
	"github.com/paradisepdf/pagekit/xref"
)

// Config controls high-level PDF parsing (xref resolution + object loading).
type Config struct {
	Recovery recovery.Strategy
	XRef     xref.ResolverConfig
	Security security.Handler
	Limits   security.Limits
	Cache    Cache
	Password string
	Logger   observability.Logger
}

// DocumentParser builds a raw.Document using xref tables/streams and the object loader.
type DocumentParser struct {
	cfg Config
}

func NewDocumentParser(cfg Config) *DocumentParser {
	cfg.Limits = cfg.Limits.WithDefaults()
	if cfg.XRef.MaxXRefDepth == 0 {
		cfg.XRef.MaxXRefDepth = cfg.Limits.MaxXRefDepth
	}
	if cfg.XRef.Limits == (filters.Limits{}) {
		cfg.XRef.Limits.MaxDecompressedSize = cfg.Limits.MaxDecompressedSize
	}
	cfg.Logger = observability.OrNop(cfg.Logger)
	return &DocumentParser{cfg: cfg}
}

// SetPassword updates the password for decryption when parsing encrypted PDFs.
func (p *DocumentParser) SetPassword(pwd string) {
	p.cfg.Password = pwd
}

// Parse reads every live object of r into memory. Encrypted documents are
// decrypted and returned without their Encrypt entry.
func (p *DocumentParser) Parse(ctx context.Context, r io.ReaderAt) (*raw.Document, error) {
	if p.cfg.Limits.MaxParseTime > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Limits.MaxParseTime)
		defer cancel()
	}
	resolver := xref.NewResolver(p.cfg.XRef)
	table, err := resolver.Resolve(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("resolve xref: %w", err)
	}
	trailer := resolver.Trailer()

	sec, encRef, err := p.selectSecurity(ctx, r, table, trailer)
	if err != nil {
		return nil, fmt.Errorf("security setup: %w", err)
	}

	loader, err := (&ObjectLoaderBuilder{}).
		WithReader(r).
		WithXRef(table).
		WithSecurity(sec).
		WithLimits(p.cfg.Limits).
		WithCache(p.cfg.Cache).
		WithRecovery(p.cfg.Recovery).
		withPlaintext(encRef).
		Build()
	if err != nil {
		return nil, err
	}

	doc := raw.NewDocument(detectHeaderVersion(r))
	doc.Trailer = trailer
	doc.Encrypted = sec.IsEncrypted()

	for _, objNum := range table.Objects() {
		gen := 0
		if _, g, found := table.Lookup(objNum); found {
			gen = g
		}
		ref := raw.ObjectRef{Num: objNum, Gen: gen}
		if doc.Encrypted && ref == encRef {
			continue
		}
		obj, err := loader.Load(ctx, ref)
		if err != nil {
			if ctx.Err() != nil || !p.tolerate(err, ref) {
				return nil, fmt.Errorf("load object %d: %w", objNum, err)
			}
			continue
		}
		// Containers of the cross-reference machinery are not part of the
		// document graph once their contents are loaded.
		if raw.IsType(obj, "XRef") || raw.IsType(obj, "ObjStm") {
			continue
		}
		doc.Objects[ref] = obj
	}
	doc.RecomputeMaxID()

	if doc.Encrypted {
		doc.Trailer.Delete("Encrypt")
	}
	if cat, err := doc.Catalog(); err == nil {
		if v, ok := cat.Name("Version"); ok && v > doc.Version {
			doc.Version = v
		}
	}
	if doc.Version == "" {
		doc.Version = "1.4"
	}
	p.populateMetadata(doc)

	p.cfg.Logger.Debug("parsed document",
		observability.Int(observability.FieldObjects, len(doc.Objects)),
		observability.String("xref", table.Type()),
		observability.Bool("encrypted", doc.Encrypted),
		observability.Bool("linearized", resolver.Linearized()),
	)
	return doc, nil
}

// tolerate asks the recovery strategy whether an unreadable object may be
// dropped.
func (p *DocumentParser) tolerate(err error, ref raw.ObjectRef) bool {
	if p.cfg.Recovery == nil {
		return false
	}
	action := p.cfg.Recovery.OnError(err, recovery.Location{ObjectNum: ref.Num, ObjectGen: ref.Gen, Component: "parser"})
	switch action {
	case recovery.ActionFix, recovery.ActionSkip:
		p.cfg.Logger.Warn("dropping unreadable object", observability.String("ref", ref.String()), observability.Error("err", err))
		return true
	}
	return false
}

func (p *DocumentParser) selectSecurity(ctx context.Context, r io.ReaderAt, table xref.Table, trailer *raw.DictObj) (security.Handler, raw.ObjectRef, error) {
	var encRef raw.ObjectRef
	encObj, ok := trailer.Get("Encrypt")
	if !ok {
		return security.NoopHandler(), encRef, nil
	}
	if p.cfg.Security != nil {
		if ref, ok := encObj.(raw.RefObj); ok {
			encRef = ref.R
		}
		return p.cfg.Security, encRef, nil
	}
	var encDict *raw.DictObj
	switch v := encObj.(type) {
	case *raw.DictObj:
		encDict = v
	case raw.RefObj:
		encRef = v.R
		loader, err := (&ObjectLoaderBuilder{}).
			WithReader(r).
			WithXRef(table).
			WithLimits(p.cfg.Limits).
			WithRecovery(p.cfg.Recovery).
			Build()
		if err != nil {
			return nil, encRef, err
		}
		obj, err := loader.Load(ctx, v.R)
		if err != nil {
			return nil, encRef, fmt.Errorf("load Encrypt: %w", err)
		}
		encDict, _ = obj.(*raw.DictObj)
	}
	if encDict == nil {
		return nil, encRef, errors.New("Encrypt is not a dictionary")
	}
	handler, err := (&security.HandlerBuilder{}).WithEncryptDict(encDict).WithTrailer(trailer).WithFileID(fileIDFromTrailer(trailer)).Build()
	if err != nil {
		return nil, encRef, err
	}
	if err := handler.Authenticate(p.cfg.Password); err != nil {
		return nil, encRef, err
	}
	return handler, encRef, nil
}

func fileIDFromTrailer(trailer *raw.DictObj) []byte {
	if arr, ok := trailer.Array("ID"); ok && arr.Len() > 0 {
		if s, ok := arr.Items[0].(raw.StringObj); ok {
			return s.Value()
		}
	}
	return nil
}

func (p *DocumentParser) populateMetadata(doc *raw.Document) {
	infoObj, ok := doc.Trailer.Get("Info")
	if !ok {
		return
	}
	dict, ok := doc.ResolveDict(infoObj)
	if !ok {
		return
	}
	md := raw.DocumentMetadata{}
	md.Title, _ = stringValue(dict, "Title")
	md.Author, _ = stringValue(dict, "Author")
	md.Creator, _ = stringValue(dict, "Creator")
	md.Producer, _ = stringValue(dict, "Producer")
	md.Subject, _ = stringValue(dict, "Subject")
	if v, ok := stringValue(dict, "Keywords"); ok {
		for _, k := range strings.Split(v, ",") {
			if k = strings.TrimSpace(k); k != "" {
				md.Keywords = append(md.Keywords, k)
			}
		}
	}
	doc.Metadata = md
}

func stringValue(dict *raw.DictObj, key string) (string, bool) {
	b, ok := dict.Str(key)
	if !ok {
		return "", false
	}
	return raw.DecodeText(b), true
}

func detectHeaderVersion(r io.ReaderAt) string {
	buf := make([]byte, 1024)
	n, err := r.ReadAt(buf, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return ""
	}
	head := string(buf[:n])
	idx := strings.Index(head, "%PDF-")
	if idx < 0 {
		return ""
	}
	line := head[idx+5:]
	if end := strings.IndexAny(line, "\r\n \t%"); end >= 0 {
		line = line[:end]
	}
	return strings.TrimSpace(line)
}
