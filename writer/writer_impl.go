package writer

import (
	"bufio"
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/paradisepdf/pagekit/filters"
	"github.com/paradisepdf/pagekit/ir/raw"
	"github.com/paradisepdf/pagekit/security"
)

type impl struct{ interceptors []Interceptor }

// SerializeObject renders one indirect object. A nil obj is written as null.
func (w *impl) SerializeObject(ref raw.ObjectRef, obj raw.Object) []byte {
	out := strconv.AppendInt(nil, int64(ref.Num), 10)
	out = append(out, ' ')
	out = strconv.AppendInt(out, int64(ref.Gen), 10)
	out = append(out, " obj\n"...)
	out = AppendObject(out, obj)
	return append(out, "\nendobj\n"...)
}

type countingWriter struct {
	w *bufio.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// Write serializes doc with a classic cross-reference table. Objects are
// written in ascending identifier order; only Root, Info, ID and Encrypt
// survive into the trailer.
func (w *impl) Write(ctx context.Context, doc *raw.Document, out io.Writer, cfg Config) error {
	if doc.Trailer == nil {
		return errors.New("document has no trailer")
	}
	root, ok := doc.Trailer.Ref("Root")
	if !ok {
		return errors.New("trailer has no Root reference")
	}
	version := cfg.Version
	if version == "" {
		version = doc.Version
	}
	if version == "" {
		version = "1.7"
	}
	ids := EnsureID(doc)

	cw := &countingWriter{w: bufio.NewWriter(out)}
	fmt.Fprintf(cw, "%%PDF-%s\n%%\xE2\xE3\xCF\xD3\n", version)

	refs := doc.Refs()
	offsets := make(map[int]int64, len(refs)+1)
	gens := make(map[int]int, len(refs)+1)
	maxNum := 0
	var handler security.Handler
	if cfg.Encryption != nil {
		handler = cfg.Encryption.Handler
	}
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return err
		}
		obj := doc.Objects[ref]
		for _, ic := range w.interceptors {
			if err := ic.BeforeWrite(ctx, ref, obj); err != nil {
				return err
			}
		}
		prepared, err := prepare(ref, obj, cfg.Compress, handler)
		if err != nil {
			return fmt.Errorf("object %s: %w", ref, err)
		}
		data := w.SerializeObject(ref, prepared)
		offsets[ref.Num] = cw.n
		gens[ref.Num] = ref.Gen
		if _, err := cw.Write(data); err != nil {
			return err
		}
		for _, ic := range w.interceptors {
			if err := ic.AfterWrite(ctx, ref, obj, int64(len(data))); err != nil {
				return err
			}
		}
		if ref.Num > maxNum {
			maxNum = ref.Num
		}
	}

	trailer := raw.Dict()
	trailer.Set("Root", raw.RefObj{R: root})
	if info, ok := doc.Trailer.Ref("Info"); ok {
		if _, exists := doc.Objects[info]; exists {
			trailer.Set("Info", raw.RefObj{R: info})
		}
	}
	trailer.Set("ID", ids)
	if cfg.Encryption != nil {
		maxNum++
		encRef := raw.ObjectRef{Num: maxNum}
		data := w.SerializeObject(encRef, cfg.Encryption.Dict)
		offsets[encRef.Num] = cw.n
		if _, err := cw.Write(data); err != nil {
			return err
		}
		trailer.Set("Encrypt", raw.RefObj{R: encRef})
	}
	trailer.Set("Size", raw.NumberInt(int64(maxNum+1)))

	xrefOffset := cw.n
	fmt.Fprintf(cw, "xref\n0 %d\n0000000000 65535 f \n", maxNum+1)
	for i := 1; i <= maxNum; i++ {
		if off, ok := offsets[i]; ok {
			fmt.Fprintf(cw, "%010d %05d n \n", off, gens[i])
		} else {
			cw.Write([]byte("0000000000 65535 f \n"))
		}
	}
	cw.Write([]byte("trailer\n"))
	cw.Write(AppendObject(nil, trailer))
	fmt.Fprintf(cw, "\nstartxref\n%d\n%%%%EOF\n", xrefOffset)
	return cw.w.Flush()
}

// prepare returns the object as it should appear on disk: compressed and
// encrypted as configured, with /Length matching the payload. obj itself is
// not modified.
func prepare(ref raw.ObjectRef, obj raw.Object, compress bool, h security.Handler) (raw.Object, error) {
	st, isStream := obj.(*raw.StreamObj)
	if !isStream && h == nil {
		return obj, nil
	}
	if isStream {
		dict := raw.Clone(st.Dict).(*raw.DictObj)
		data := st.Data
		if _, filtered := dict.Get("Filter"); compress && !filtered && len(data) > 0 {
			enc, err := filters.Flate(data)
			if err != nil {
				return nil, err
			}
			if len(enc) < len(data) {
				data = enc
				dict.Set("Filter", raw.NameLiteral("FlateDecode"))
				dict.Delete("DecodeParms")
			}
		}
		dict.Set("Length", raw.NumberInt(int64(len(data))))
		obj = raw.NewStream(dict, data)
	}
	if h == nil {
		return obj, nil
	}
	return encryptObject(obj, ref, h)
}

func encryptObject(obj raw.Object, ref raw.ObjectRef, handler security.Handler) (raw.Object, error) {
	switch v := obj.(type) {
	case raw.StringObj:
		encrypted, err := handler.Encrypt(ref.Num, ref.Gen, v.Value(), security.DataClassString)
		if err != nil {
			return nil, err
		}
		return raw.HexStr(encrypted), nil
	case *raw.ArrayObj:
		arr := raw.NewArray()
		for _, item := range v.Items {
			enc, err := encryptObject(item, ref, handler)
			if err != nil {
				return nil, err
			}
			arr.Append(enc)
		}
		return arr, nil
	case *raw.DictObj:
		d := raw.Dict()
		for k, val := range v.KV {
			enc, err := encryptObject(val, ref, handler)
			if err != nil {
				return nil, err
			}
			d.Set(k, enc)
		}
		return d, nil
	case *raw.StreamObj:
		class := security.DataClassStream
		if raw.IsType(v, "Metadata") {
			class = security.DataClassMetadataStream
		}
		data, err := handler.Encrypt(ref.Num, ref.Gen, v.Data, class)
		if err != nil {
			return nil, err
		}
		dictEncrypted, err := encryptObject(v.Dict, ref, handler)
		if err != nil {
			return nil, err
		}
		dd := dictEncrypted.(*raw.DictObj)
		dd.Set("Length", raw.NumberInt(int64(len(data))))
		return raw.NewStream(dd, data), nil
	default:
		return obj, nil
	}
}

// EnsureID returns the trailer ID array, synthesizing one from the current
// time when the document has none. A synthesized ID is stored in the trailer.
func EnsureID(doc *raw.Document) *raw.ArrayObj {
	if arr, ok := doc.Trailer.Array("ID"); ok && arr.Len() == 2 {
		_, ok0 := arr.Items[0].(raw.StringObj)
		_, ok1 := arr.Items[1].(raw.StringObj)
		if ok0 && ok1 {
			return arr
		}
	}
	sum := md5.Sum([]byte(strconv.FormatInt(time.Now().UnixNano(), 10)))
	arr := raw.NewArray(raw.HexStr(sum[:]), raw.HexStr(append([]byte(nil), sum[:]...)))
	doc.Trailer.Set("ID", arr)
	return arr
}

// FirstID returns the first element of the document ID, the value
// encryption keys are derived from.
func FirstID(doc *raw.Document) []byte {
	arr := EnsureID(doc)
	return arr.Items[0].(raw.StringObj).Value()
}
