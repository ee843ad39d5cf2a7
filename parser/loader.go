package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/paradisepdf/pagekit/filters"
	"github.com/paradisepdf/pagekit/ir/raw"
	"github.com/paradisepdf/pagekit/recovery"
	"github.com/paradisepdf/pagekit/scanner"
	"github.com/paradisepdf/pagekit/security"
	"github.com/paradisepdf/pagekit/xref"
)

type Cache interface {
	Get(ref raw.ObjectRef) (raw.Object, bool)
	Put(ref raw.ObjectRef, obj raw.Object)
}

type ObjectLoader interface {
	Load(ctx context.Context, ref raw.ObjectRef) (raw.Object, error)
}

// maxLengthDepth bounds chains of indirect /Length values.
const maxLengthDepth = 8

type ObjectLoaderBuilder struct {
	reader    io.ReaderAt
	xrefTable xref.Table
	security  security.Handler
	limits    security.Limits
	cache     Cache
	recovery  recovery.Strategy
	skip      raw.ObjectRef
}

func (b *ObjectLoaderBuilder) WithXRef(table xref.Table) *ObjectLoaderBuilder {
	b.xrefTable = table
	return b
}
func (b *ObjectLoaderBuilder) WithReader(r io.ReaderAt) *ObjectLoaderBuilder {
	b.reader = r
	return b
}
func (b *ObjectLoaderBuilder) WithSecurity(h security.Handler) *ObjectLoaderBuilder {
	b.security = h
	return b
}
func (b *ObjectLoaderBuilder) WithLimits(l security.Limits) *ObjectLoaderBuilder {
	b.limits = l
	return b
}
func (b *ObjectLoaderBuilder) WithCache(c Cache) *ObjectLoaderBuilder { b.cache = c; return b }
func (b *ObjectLoaderBuilder) WithRecovery(s recovery.Strategy) *ObjectLoaderBuilder {
	b.recovery = s
	return b
}

// withPlaintext marks an object that is never decrypted, the Encrypt
// dictionary itself.
func (b *ObjectLoaderBuilder) withPlaintext(ref raw.ObjectRef) *ObjectLoaderBuilder {
	b.skip = ref
	return b
}

func (b *ObjectLoaderBuilder) Build() (ObjectLoader, error) {
	if b.reader == nil || b.xrefTable == nil {
		return nil, errors.New("reader and xrefTable required")
	}
	sec := b.security
	if sec == nil {
		sec = security.NoopHandler()
	}
	limits := b.limits.WithDefaults()
	return &objectLoader{
		reader:    b.reader,
		xrefTable: b.xrefTable,
		security:  sec,
		limits:    limits,
		cache:     b.cache,
		recovery:  b.recovery,
		plaintext: b.skip,
		pipeline:  filters.NewDefaultPipeline(filters.Limits{MaxDecompressedSize: limits.MaxDecompressedSize}),
		objstm:    make(map[int]map[int]raw.Object),
	}, nil
}

type objectLoader struct {
	reader    io.ReaderAt
	xrefTable xref.Table
	security  security.Handler
	limits    security.Limits
	cache     Cache
	recovery  recovery.Strategy
	plaintext raw.ObjectRef
	pipeline  *filters.Pipeline
	mu        sync.Mutex
	objstm    map[int]map[int]raw.Object
}

func (o *objectLoader) Load(ctx context.Context, ref raw.ObjectRef) (raw.Object, error) {
	if o.cache != nil {
		if obj, ok := o.cache.Get(ref); ok {
			return obj, nil
		}
	}
	o.mu.Lock()
	obj, err := o.load(ctx, ref, 0)
	o.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if o.cache != nil {
		o.cache.Put(ref, obj)
	}
	return obj, nil
}

// load assumes the caller holds the loader mutex.
func (o *objectLoader) load(ctx context.Context, ref raw.ObjectRef, depth int) (raw.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if offset, gen, found := o.xrefTable.Lookup(ref.Num); found {
		return o.loadAtOffset(ctx, raw.ObjectRef{Num: ref.Num, Gen: gen}, offset, depth)
	}
	if osNum, idx, ok := o.xrefTable.ObjStream(ref.Num); ok {
		return o.loadFromObjectStream(ctx, ref, osNum, idx)
	}
	return nil, fmt.Errorf("%s: %w", ref, raw.ErrMissingObject)
}

func (o *objectLoader) scannerConfig() scanner.Config {
	return scanner.Config{
		Recovery:        o.recovery,
		MaxStringLength: o.limits.MaxStringLength,
		MaxStreamLength: o.limits.MaxStreamLength,
		WindowSize:      16 * 1024,
	}
}

// loadAtOffset reads "<num> <gen> obj ..." at offset with its own scanner, so
// that resolving an indirect /Length does not disturb the outer read.
func (o *objectLoader) loadAtOffset(ctx context.Context, ref raw.ObjectRef, offset int64, depth int) (raw.Object, error) {
	s := scanner.New(o.reader, o.scannerConfig())
	or := scanner.NewObjectReader(s)
	or.Recovery = o.recovery
	or.Location = recovery.Location{ObjectNum: ref.Num, ObjectGen: ref.Gen, Component: "loader"}
	or.Length = func(v raw.Object) (int64, bool) {
		r, ok := v.(raw.RefObj)
		if !ok || depth >= maxLengthDepth {
			return 0, false
		}
		obj, err := o.load(ctx, r.R, depth+1)
		if err != nil {
			return 0, false
		}
		n, ok := obj.(raw.NumberObj)
		return n.Int(), ok
	}
	if err := or.Seek(offset); err != nil {
		return nil, err
	}
	hdr, err := or.ReadHeader()
	if err != nil {
		return nil, err
	}
	if hdr.Num != ref.Num {
		return nil, fmt.Errorf("object header at %d is %s, want %s", offset, hdr, ref)
	}
	obj, err := or.ReadObject()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ref, err)
	}
	if ref == o.plaintext || raw.IsType(obj, "XRef") {
		return obj, nil
	}
	return o.decryptObject(ref, obj)
}

func (o *objectLoader) loadFromObjectStream(ctx context.Context, ref raw.ObjectRef, objStreamNum int, idx int) (raw.Object, error) {
	objs, ok := o.objstm[objStreamNum]
	if !ok {
		var err error
		objs, err = o.readObjectStream(ctx, objStreamNum)
		if err != nil {
			return nil, fmt.Errorf("object stream %d: %w", objStreamNum, err)
		}
		o.objstm[objStreamNum] = objs
	}
	if obj, ok := objs[ref.Num]; ok {
		return obj, nil
	}
	return nil, fmt.Errorf("%s not in object stream %d: %w", ref, objStreamNum, raw.ErrMissingObject)
}

func (o *objectLoader) readObjectStream(ctx context.Context, objStreamNum int) (map[int]raw.Object, error) {
	offset, gen, ok := o.xrefTable.Lookup(objStreamNum)
	if !ok {
		return nil, errors.New("object stream entry missing")
	}
	streamObj, err := o.loadAtOffset(ctx, raw.ObjectRef{Num: objStreamNum, Gen: gen}, offset, 0)
	if err != nil {
		return nil, err
	}
	st, ok := streamObj.(*raw.StreamObj)
	if !ok {
		return nil, errors.New("object stream is not a stream")
	}
	n, _ := st.Dict.Int("N")
	first, _ := st.Dict.Int("First")
	data, err := filters.DecodeStream(ctx, o.pipeline, st)
	if err != nil {
		return nil, err
	}
	if first < 0 || int(first) > len(data) {
		return nil, errors.New("object stream First exceeds length")
	}
	header := scanner.New(bytes.NewReader(data[:first]), o.scannerConfig())
	var pairs []int64
	for int64(len(pairs)/2) < n {
		tok, err := header.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		if tok.Type != scanner.TokenNumber || !tok.IsInt {
			continue
		}
		pairs = append(pairs, tok.Int)
	}
	body := bytes.NewReader(data[first:])
	objs := make(map[int]raw.Object, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		num, off := int(pairs[i]), pairs[i+1]
		or := scanner.NewObjectReader(scanner.New(body, o.scannerConfig()))
		if err := or.Seek(off); err != nil {
			return nil, err
		}
		obj, err := or.ReadObject()
		if err != nil {
			return nil, fmt.Errorf("object %d: %w", num, err)
		}
		objs[num] = obj
	}
	return objs, nil
}

func cryptFilterForStream(d *raw.DictObj) (string, bool) {
	if d == nil {
		return "", false
	}
	names, params := filters.ExtractFilters(d)
	for idx, name := range names {
		if name != "Crypt" {
			continue
		}
		var dp *raw.DictObj
		if idx < len(params) {
			dp = params[idx]
		} else if len(params) == 1 {
			dp = params[0]
		}
		if n, ok := dp.Name("Name"); ok {
			return n, true
		}
		return "", true // default Crypt filter
	}
	return "", false
}

func (o *objectLoader) decryptObject(ref raw.ObjectRef, obj raw.Object) (raw.Object, error) {
	if o.security == nil || !o.security.IsEncrypted() {
		return obj, nil
	}
	switch v := obj.(type) {
	case raw.StringObj:
		dec, err := o.security.Decrypt(ref.Num, ref.Gen, v.Value(), security.DataClassString)
		if err != nil {
			return nil, err
		}
		return raw.StringObj{Bytes: dec, Hex: v.Hex}, nil
	case *raw.ArrayObj:
		for i, item := range v.Items {
			dec, err := o.decryptObject(ref, item)
			if err != nil {
				return nil, err
			}
			v.Items[i] = dec
		}
		return v, nil
	case *raw.DictObj:
		for key, item := range v.KV {
			dec, err := o.decryptObject(ref, item)
			if err != nil {
				return nil, err
			}
			v.KV[key] = dec
		}
		return v, nil
	case *raw.StreamObj:
		if _, err := o.decryptObject(ref, v.Dict); err != nil {
			return nil, err
		}
		class := security.DataClassStream
		if raw.IsType(v, "Metadata") {
			class = security.DataClassMetadataStream
		}
		cryptFilter, hasCrypt := cryptFilterForStream(v.Dict)
		if hasCrypt && cryptFilter == "Identity" {
			return v, nil
		}
		dec, err := o.security.DecryptWithFilter(ref.Num, ref.Gen, v.Data, class, cryptFilter)
		if err != nil {
			return nil, fmt.Errorf("decrypt %s: %w", ref, err)
		}
		v.Data = dec
		v.Dict.Set("Length", raw.NumberInt(int64(len(dec))))
		return v, nil
	default:
		return obj, nil
	}
}
