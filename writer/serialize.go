package writer

import (
	"strconv"

	"github.com/paradisepdf/pagekit/ir/raw"
)

const hexDigits = "0123456789ABCDEF"

// delimiters lists the bytes a name must escape besides whitespace.
var delimiters = [256]bool{'(': true, ')': true, '<': true, '>': true, '[': true, ']': true, '{': true, '}': true, '/': true, '%': true, '#': true}

// AppendObject appends the PDF syntax of o to dst. Stream dictionaries get
// a /Length matching their payload. Equal objects always produce equal
// bytes, so the output doubles as a content key.
func AppendObject(dst []byte, o raw.Object) []byte {
	switch v := o.(type) {
	case raw.NameObj:
		return appendName(dst, v.Value())
	case raw.NumberObj:
		if v.IsInteger() {
			return strconv.AppendInt(dst, v.Int(), 10)
		}
		return appendReal(dst, v.Float())
	case raw.BoolObj:
		return strconv.AppendBool(dst, v.Value())
	case raw.StringObj:
		if v.IsHex() {
			return appendHex(dst, v.Value())
		}
		return appendLiteral(dst, v.Value())
	case raw.RefObj:
		dst = strconv.AppendInt(dst, int64(v.Ref().Num), 10)
		dst = append(dst, ' ')
		dst = strconv.AppendInt(dst, int64(v.Ref().Gen), 10)
		return append(dst, " R"...)
	case *raw.ArrayObj:
		dst = append(dst, '[')
		for i, item := range v.Items {
			if i > 0 {
				dst = append(dst, ' ')
			}
			dst = AppendObject(dst, item)
		}
		return append(dst, ']')
	case *raw.DictObj:
		dst = append(dst, "<<"...)
		for _, k := range v.Keys() {
			dst = appendName(dst, k)
			dst = append(dst, ' ')
			dst = AppendObject(dst, v.KV[k])
		}
		return append(dst, ">>"...)
	case *raw.StreamObj:
		dict := v.Dict
		if n, _ := dict.Int("Length"); n != int64(len(v.Data)) {
			dict = raw.Clone(v.Dict).(*raw.DictObj)
			dict.Set("Length", raw.NumberInt(int64(len(v.Data))))
		}
		dst = AppendObject(dst, dict)
		dst = append(dst, "\nstream\n"...)
		dst = append(dst, v.Data...)
		return append(dst, "\nendstream"...)
	}
	return append(dst, "null"...)
}

// appendReal writes f with at most six decimals and no exponent.
func appendReal(dst []byte, f float64) []byte {
	start := len(dst)
	dst = strconv.AppendFloat(dst, f, 'f', 6, 64)
	end := len(dst)
	for end > start && dst[end-1] == '0' {
		end--
	}
	if end > start && dst[end-1] == '.' {
		end--
	}
	dst = dst[:end]
	if s := string(dst[start:]); s == "-0" || s == "" {
		dst = append(dst[:start], '0')
	}
	return dst
}

func appendName(dst []byte, name string) []byte {
	dst = append(dst, '/')
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c <= ' ' || c >= 0x7f || delimiters[c] {
			dst = append(dst, '#', hexDigits[c>>4], hexDigits[c&0x0f])
			continue
		}
		dst = append(dst, c)
	}
	return dst
}

func appendHex(dst, b []byte) []byte {
	dst = append(dst, '<')
	for _, c := range b {
		dst = append(dst, hexDigits[c>>4], hexDigits[c&0x0f])
	}
	return append(dst, '>')
}

var literalEscapes = map[byte]string{
	'\\': `\\`, '(': `\(`, ')': `\)`,
	'\n': `\n`, '\r': `\r`, '\t': `\t`, '\b': `\b`, '\f': `\f`,
}

// appendLiteral writes b as a parenthesised string. Bytes outside
// printable ASCII become three digit octal escapes.
func appendLiteral(dst, b []byte) []byte {
	dst = append(dst, '(')
	for _, c := range b {
		if esc, ok := literalEscapes[c]; ok {
			dst = append(dst, esc...)
			continue
		}
		if c < 0x20 || c >= 0x80 {
			dst = append(dst, '\\', '0'+c>>6, '0'+(c>>3)&7, '0'+c&7)
			continue
		}
		dst = append(dst, c)
	}
	return append(dst, ')')
}
