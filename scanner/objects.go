package scanner

import (
	"errors"
	"fmt"
	"io"

	"github.com/paradisepdf/pagekit/ir/raw"
	"github.com/paradisepdf/pagekit/recovery"
)

// LengthFunc resolves a stream /Length value that may be an indirect
// reference. It reports false when the length is unknown.
type LengthFunc func(obj raw.Object) (int64, bool)

// ObjectReader builds raw objects from a token stream. It keeps a single
// token of pushback.
type ObjectReader struct {
	s        Scanner
	buf      []Token
	Length   LengthFunc
	MaxDepth int
	// Recovery, when set, may close a container left open at endobj.
	Recovery recovery.Strategy
	Location recovery.Location
}

func NewObjectReader(s Scanner) *ObjectReader {
	return &ObjectReader{s: s, MaxDepth: 256}
}

func (r *ObjectReader) Scanner() Scanner { return r.s }

func (r *ObjectReader) Next() (Token, error) {
	if n := len(r.buf); n > 0 {
		tok := r.buf[n-1]
		r.buf = r.buf[:n-1]
		return tok, nil
	}
	return r.s.Next()
}

func (r *ObjectReader) Unread(tok Token) { r.buf = append(r.buf, tok) }

// Seek repositions the underlying scanner and drops pushback.
func (r *ObjectReader) Seek(off int64) error {
	r.buf = r.buf[:0]
	return r.s.Seek(off)
}

// ReadHeader consumes "<num> <gen> obj" and returns the identifier.
func (r *ObjectReader) ReadHeader() (raw.ObjectRef, error) {
	numTok, err := r.Next()
	if err != nil {
		return raw.ObjectRef{}, err
	}
	genTok, err := r.Next()
	if err != nil {
		return raw.ObjectRef{}, err
	}
	objTok, err := r.Next()
	if err != nil {
		return raw.ObjectRef{}, err
	}
	if numTok.Type != TokenNumber || !numTok.IsInt || genTok.Type != TokenNumber || !genTok.IsInt || !objTok.IsKeyword("obj") {
		return raw.ObjectRef{}, fmt.Errorf("expected object header at offset %d", numTok.Pos)
	}
	return raw.ObjectRef{Num: int(numTok.Int), Gen: int(genTok.Int)}, nil
}

// ReadObject parses one object. A dictionary immediately followed by a
// stream keyword becomes a stream object.
func (r *ObjectReader) ReadObject() (raw.Object, error) {
	return r.readObject(0)
}

func (r *ObjectReader) readObject(depth int) (raw.Object, error) {
	if r.MaxDepth > 0 && depth > r.MaxDepth {
		return nil, errors.New("object nesting too deep")
	}
	tok, err := r.Next()
	if err != nil {
		return nil, err
	}
	switch tok.Type {
	case TokenName:
		return raw.NameObj{Val: tok.Str}, nil
	case TokenNumber:
		if tok.IsInt {
			return raw.NumberInt(tok.Int), nil
		}
		return raw.NumberFloat(tok.Float), nil
	case TokenBoolean:
		return raw.Bool(tok.Bool), nil
	case TokenNull:
		return raw.NullObj{}, nil
	case TokenString:
		return raw.StringObj{Bytes: tok.Bytes, Hex: tok.Hex}, nil
	case TokenRef:
		return raw.Ref(int(tok.Int), tok.Gen), nil
	case TokenArray:
		return r.readArray(depth + 1)
	case TokenDict:
		dict, err := r.readDict(depth + 1)
		if err != nil {
			return nil, err
		}
		return r.maybeStream(dict)
	case TokenStream:
		return nil, fmt.Errorf("unexpected stream at offset %d", tok.Pos)
	default:
		return nil, fmt.Errorf("unexpected %q at offset %d", tok.Str, tok.Pos)
	}
}

func (r *ObjectReader) readArray(depth int) (*raw.ArrayObj, error) {
	arr := raw.NewArray()
	for {
		tok, err := r.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, errors.New("unterminated array")
			}
			return nil, err
		}
		if tok.IsKeyword("]") {
			return arr, nil
		}
		if tok.IsKeyword("endobj") || tok.IsKeyword("R") {
			err := fmt.Errorf("unexpected %q in array at offset %d", tok.Str, tok.Pos)
			if tok.IsKeyword("endobj") && r.tolerate(err, tok.Pos) {
				r.Unread(tok)
				return arr, nil
			}
			return nil, err
		}
		r.Unread(tok)
		item, err := r.readObject(depth)
		if err != nil {
			return nil, err
		}
		arr.Append(item)
	}
}

func (r *ObjectReader) readDict(depth int) (*raw.DictObj, error) {
	dict := raw.Dict()
	for {
		tok, err := r.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, errors.New("unterminated dictionary")
			}
			return nil, err
		}
		if tok.IsKeyword(">>") {
			return dict, nil
		}
		if tok.Type != TokenName {
			err := fmt.Errorf("expected dictionary key at offset %d, got %s", tok.Pos, tok.Type)
			if tok.IsKeyword("endobj") && r.tolerate(err, tok.Pos) {
				r.Unread(tok)
				return dict, nil
			}
			return nil, err
		}
		val, err := r.readObject(depth)
		if err != nil {
			return nil, fmt.Errorf("/%s: %w", tok.Str, err)
		}
		if _, isNull := val.(raw.NullObj); isNull {
			continue
		}
		dict.Set(tok.Str, val)
	}
}

func (r *ObjectReader) tolerate(err error, pos int64) bool {
	if r.Recovery == nil {
		return false
	}
	loc := r.Location
	loc.ByteOffset = pos
	if loc.Component == "" {
		loc.Component = "objects"
	}
	switch r.Recovery.OnError(err, loc) {
	case recovery.ActionFix, recovery.ActionSkip:
		return true
	}
	return false
}

func (r *ObjectReader) maybeStream(dict *raw.DictObj) (raw.Object, error) {
	if len(r.buf) > 0 {
		return dict, nil
	}
	length := int64(-1)
	if l, ok := dict.Get("Length"); ok {
		switch v := l.(type) {
		case raw.NumberObj:
			length = v.Int()
		default:
			if r.Length != nil {
				if n, ok := r.Length(l); ok {
					length = n
				}
			}
		}
	}
	r.s.SetNextStreamLength(length)
	tok, err := r.s.Next()
	r.s.SetNextStreamLength(-1)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return dict, nil
		}
		return nil, err
	}
	if tok.Type != TokenStream {
		r.Unread(tok)
		return dict, nil
	}
	return raw.NewStream(dict, tok.Bytes), nil
}
