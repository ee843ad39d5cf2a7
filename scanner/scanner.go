package scanner

import (
	"bytes"
	"errors"
	"io"
	"strconv"

	"github.com/paradisepdf/pagekit/recovery"
)

type TokenType int

const (
	TokenDict    TokenType = iota // '<<'
	TokenArray                    // '['
	TokenName                     // '/Name'
	TokenString                   // literal or hex string
	TokenNumber                   // numeric value
	TokenBoolean                  // true/false
	TokenNull                     // null
	TokenRef                      // indirect ref '5 0 R'
	TokenStream                   // 'stream' keyword followed by payload
	TokenKeyword                  // other keywords (obj, endobj, >>, ], etc.)
)

func (t TokenType) String() string {
	switch t {
	case TokenDict:
		return "dict"
	case TokenArray:
		return "array"
	case TokenName:
		return "name"
	case TokenString:
		return "string"
	case TokenNumber:
		return "number"
	case TokenBoolean:
		return "boolean"
	case TokenNull:
		return "null"
	case TokenRef:
		return "ref"
	case TokenStream:
		return "stream"
	default:
		return "keyword"
	}
}

// Token is a single lexical element. Which fields are meaningful depends on
// Type: names and keywords use Str, strings and streams use Bytes, numbers
// use Int/Float/IsInt, references use Int (object number) and Gen.
type Token struct {
	Type  TokenType
	Str   string
	Bytes []byte
	Int   int64
	Float float64
	IsInt bool
	Bool  bool
	Gen   int
	Hex   bool
	Pos   int64
}

// IsKeyword reports whether the token is the keyword kw.
func (t Token) IsKeyword(kw string) bool { return t.Type == TokenKeyword && t.Str == kw }

type Scanner interface {
	Next() (Token, error)
	Position() int64
	Seek(offset int64) error
	SetNextStreamLength(n int64)
}

type Config struct {
	MaxNameLength   int
	MaxStringLength int64
	MaxArrayDepth   int
	MaxDictDepth    int
	MaxStreamLength int64
	MaxStreamScan   int64
	WindowSize      int64
	Recovery        recovery.Strategy
}

// pdfScanner reads from a ReaderAt through a growing window. Positions are
// absolute file offsets; seeking outside the window restarts it.
type pdfScanner struct {
	reader        io.ReaderAt
	base          int64
	data          []byte
	pos           int64
	cfg           Config
	nextStreamLen int64
	chunkSize     int64
	eof           bool
	arrayDepth    int
	dictDepth     int
	recLoc        recovery.Location
	lastAction    recovery.Action
}

// New returns a scanner positioned at offset 0.
func New(r io.ReaderAt, cfg Config) Scanner {
	chunk := cfg.WindowSize
	if chunk <= 0 {
		chunk = 64 * 1024
	}
	return &pdfScanner{reader: r, cfg: cfg, nextStreamLen: -1, chunkSize: chunk}
}

func (s *pdfScanner) Position() int64 { return s.pos }

func (s *pdfScanner) Seek(offset int64) error {
	if offset < 0 {
		return errors.New("seek out of range")
	}
	if offset < s.base || offset > s.end() {
		s.base = offset
		s.data = s.data[:0]
		s.eof = false
	}
	s.pos = offset
	s.arrayDepth, s.dictDepth = 0, 0
	if err := s.ensure(offset); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("seek out of range")
		}
		return err
	}
	return nil
}

func (s *pdfScanner) SetNextStreamLength(n int64)               { s.nextStreamLen = n }
func (s *pdfScanner) SetRecoveryLocation(loc recovery.Location) { s.recLoc = loc }

func (s *pdfScanner) end() int64 { return s.base + int64(len(s.data)) }

// at returns the byte at absolute offset i.
func (s *pdfScanner) at(i int64) (byte, bool) {
	if i < s.base {
		return 0, false
	}
	if err := s.ensure(i); err != nil {
		return 0, false
	}
	return s.data[i-s.base], true
}

func (s *pdfScanner) slice(from, to int64) []byte {
	return s.data[from-s.base : to-s.base]
}

func (s *pdfScanner) ensure(n int64) error {
	for s.end() <= n {
		if s.eof {
			return io.EOF
		}
		if err := s.loadMore(); err != nil {
			return err
		}
	}
	return nil
}

func (s *pdfScanner) loadMore() error {
	buf := make([]byte, s.chunkSize)
	n, err := s.reader.ReadAt(buf, s.end())
	if n > 0 {
		s.data = append(s.data, buf[:n]...)
	}
	if err == io.EOF || n == 0 {
		s.eof = true
		return nil
	}
	return err
}

func (s *pdfScanner) Next() (Token, error) {
	if err := s.skipWSAndComments(); err != nil {
		if errors.Is(err, io.EOF) {
			return s.closeAtEOF()
		}
		return Token{}, err
	}
	start := s.pos
	c, ok := s.at(s.pos)
	if !ok {
		return Token{}, io.EOF
	}
	switch c {
	case '<':
		if n, _ := s.at(s.pos + 1); n == '<' {
			s.pos += 2
			return s.emit(Token{Type: TokenDict, Str: "<<", Pos: start})
		}
		return s.scanHexString()
	case '>':
		if n, _ := s.at(s.pos + 1); n == '>' {
			s.pos += 2
			return s.emit(Token{Type: TokenKeyword, Str: ">>", Pos: start})
		}
		s.pos++
		return s.emit(Token{Type: TokenKeyword, Str: ">", Pos: start})
	case '[':
		s.pos++
		return s.emit(Token{Type: TokenArray, Str: "[", Pos: start})
	case ']':
		s.pos++
		if s.arrayDepth == 0 && s.cfg.Recovery != nil {
			if err := s.recover(errors.New("array depth underflow"), "array"); err != nil {
				return Token{}, err
			}
			return s.Next()
		}
		return s.emit(Token{Type: TokenKeyword, Str: "]", Pos: start})
	case '(':
		return s.scanLiteralString()
	case '/':
		return s.scanName()
	}
	if isDigitStart(c) {
		return s.scanNumberOrRef()
	}
	if isRegular(c) {
		return s.scanKeyword()
	}
	s.pos++
	return s.emit(Token{Type: TokenKeyword, Str: string(c), Pos: start})
}

// closeAtEOF synthesizes the closing delimiters of containers left open at
// end of input when a recovery strategy allows it.
func (s *pdfScanner) closeAtEOF() (Token, error) {
	if s.cfg.Recovery == nil || (s.arrayDepth == 0 && s.dictDepth == 0) {
		return Token{}, io.EOF
	}
	if s.arrayDepth > 0 {
		if err := s.recover(errors.New("unclosed array at end of input"), "array"); err != nil {
			return Token{}, err
		}
		s.arrayDepth--
		return Token{Type: TokenKeyword, Str: "]", Pos: s.pos}, nil
	}
	if err := s.recover(errors.New("unclosed dictionary at end of input"), "dict"); err != nil {
		return Token{}, err
	}
	s.dictDepth--
	return Token{Type: TokenKeyword, Str: ">>", Pos: s.pos}, nil
}

func (s *pdfScanner) skipWSAndComments() error {
	for {
		c, ok := s.at(s.pos)
		if !ok {
			return io.EOF
		}
		if isWhitespace(c) {
			s.pos++
			continue
		}
		if c == '%' {
			for {
				s.pos++
				c, ok := s.at(s.pos)
				if !ok {
					return io.EOF
				}
				if isEOL(c) {
					break
				}
			}
			continue
		}
		return nil
	}
}

func isDigitStart(c byte) bool { return c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9') }
func isRegular(c byte) bool    { return c > 0x20 && c < 0x7f && !isDelimiter(c) }

func (s *pdfScanner) scanName() (Token, error) {
	start := s.pos
	s.pos++ // skip '/'
	var out bytes.Buffer
	for {
		c, ok := s.at(s.pos)
		if !ok || isDelimiter(c) {
			break
		}
		if c == '#' {
			a, okA := s.at(s.pos + 1)
			b, okB := s.at(s.pos + 2)
			if okA && okB && isHex(a) && isHex(b) {
				out.WriteByte(fromHex(a)<<4 | fromHex(b))
				s.pos += 3
				continue
			}
		}
		out.WriteByte(c)
		s.pos++
		if s.cfg.MaxNameLength > 0 && out.Len() > s.cfg.MaxNameLength {
			return Token{}, errors.New("name too long")
		}
	}
	return s.emit(Token{Type: TokenName, Str: out.String(), Pos: start})
}

func (s *pdfScanner) scanLiteralString() (Token, error) {
	start := s.pos
	s.pos++ // skip '('
	var buf bytes.Buffer
	depth := 1
	for depth > 0 {
		c, ok := s.at(s.pos)
		if !ok {
			break
		}
		s.pos++
		switch c {
		case '\\':
			esc, ok := s.at(s.pos)
			if !ok {
				break
			}
			s.pos++
			switch {
			case esc == '\r':
				if n, _ := s.at(s.pos); n == '\n' {
					s.pos++
				}
			case esc == '\n':
			case esc >= '0' && esc <= '7':
				val := int(esc - '0')
				for k := 0; k < 2; k++ {
					d, ok := s.at(s.pos)
					if !ok || d < '0' || d > '7' {
						break
					}
					val = val<<3 + int(d-'0')
					s.pos++
				}
				buf.WriteByte(byte(val))
			default:
				buf.WriteByte(translateEscape(esc))
			}
		case '(':
			depth++
			buf.WriteByte(c)
		case ')':
			depth--
			if depth > 0 {
				buf.WriteByte(c)
			}
		default:
			buf.WriteByte(c)
		}
		if s.cfg.MaxStringLength > 0 && int64(buf.Len()) > s.cfg.MaxStringLength {
			return Token{}, errors.New("literal string too long")
		}
	}
	if depth != 0 {
		if err := s.recover(errors.New("unterminated literal string"), "literal"); err != nil {
			return Token{}, err
		}
	}
	return s.emit(Token{Type: TokenString, Bytes: buf.Bytes(), Pos: start})
}

func (s *pdfScanner) scanHexString() (Token, error) {
	start := s.pos
	s.pos++ // skip '<'
	var hexbuf []byte
	closed := false
	for {
		c, ok := s.at(s.pos)
		if !ok {
			break
		}
		s.pos++
		if c == '>' {
			closed = true
			break
		}
		if isWhitespace(c) {
			continue
		}
		if !isHex(c) {
			if err := s.recover(errors.New("invalid hex digit"), "hex"); err != nil {
				return Token{}, err
			}
			continue
		}
		hexbuf = append(hexbuf, c)
	}
	if !closed {
		if err := s.recover(errors.New("unterminated hex string"), "hex"); err != nil {
			return Token{}, err
		}
	}
	if len(hexbuf)%2 == 1 {
		hexbuf = append(hexbuf, '0')
	}
	if s.cfg.MaxStringLength > 0 && int64(len(hexbuf)/2) > s.cfg.MaxStringLength {
		return Token{}, errors.New("hex string too long")
	}
	out := make([]byte, 0, len(hexbuf)/2)
	for i := 0; i < len(hexbuf); i += 2 {
		out = append(out, fromHex(hexbuf[i])<<4|fromHex(hexbuf[i+1]))
	}
	return s.emit(Token{Type: TokenString, Bytes: out, Hex: true, Pos: start})
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'A' && c <= 'F') || (c >= 'a' && c <= 'f')
}

func fromHex(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return 0
	}
}

var endstream = []byte("endstream")

// scanStream reads the payload after the 'stream' keyword. A declared length
// is trusted only when 'endstream' follows it; otherwise the payload runs to
// the next 'endstream' marker.
func (s *pdfScanner) scanStream(start int64) (Token, error) {
	hint := s.nextStreamLen
	s.nextStreamLen = -1
	c, _ := s.at(s.pos)
	switch c {
	case '\r':
		s.pos++
		if n, _ := s.at(s.pos); n == '\n' {
			s.pos++
		}
	case '\n':
		s.pos++
	default:
		if err := s.recover(errors.New("stream missing EOL before data"), "stream"); err != nil {
			return Token{}, err
		}
	}
	dataStart := s.pos
	if hint >= 0 {
		if s.cfg.MaxStreamLength > 0 && hint > s.cfg.MaxStreamLength {
			return Token{}, errors.New("stream too long")
		}
		if payload, ok := s.streamWithLength(dataStart, hint); ok {
			return s.emit(Token{Type: TokenStream, Bytes: payload, Pos: start})
		}
	}
	return s.scanToEndstream(start, dataStart)
}

func (s *pdfScanner) streamWithLength(dataStart, l int64) ([]byte, bool) {
	end := dataStart + l
	if l > 0 {
		if _, ok := s.at(end - 1); !ok {
			return nil, false
		}
	}
	p := end
	for {
		c, ok := s.at(p)
		if !ok || !isWhitespace(c) {
			break
		}
		p++
	}
	if _, ok := s.at(p + int64(len(endstream)) - 1); !ok {
		return nil, false
	}
	if !bytes.Equal(s.slice(p, p+int64(len(endstream))), endstream) {
		return nil, false
	}
	payload := append([]byte(nil), s.slice(dataStart, end)...)
	s.pos = p + int64(len(endstream))
	return payload, true
}

func (s *pdfScanner) scanToEndstream(start, dataStart int64) (Token, error) {
	idx := int64(-1)
	for i := dataStart; ; i++ {
		if _, ok := s.at(i + int64(len(endstream)) - 1); !ok {
			break
		}
		if s.cfg.MaxStreamScan > 0 && i-dataStart > s.cfg.MaxStreamScan {
			if err := s.recover(errors.New("endstream not found within scan limit"), "stream"); err != nil {
				return Token{}, err
			}
			break
		}
		if s.data[i-s.base] != 'e' {
			continue
		}
		if !bytes.Equal(s.slice(i, i+int64(len(endstream))), endstream) {
			continue
		}
		after, ok := s.at(i + int64(len(endstream)))
		if ok && !isDelimiter(after) {
			continue
		}
		idx = i
		break
	}
	if idx == -1 {
		if err := s.recover(errors.New("endstream not found"), "stream"); err != nil {
			return Token{}, err
		}
		payload := append([]byte(nil), s.slice(dataStart, s.end())...)
		s.pos = s.end()
		return s.emit(Token{Type: TokenStream, Bytes: payload, Pos: start})
	}
	end := idx
	if end > dataStart && s.data[end-1-s.base] == '\n' {
		end--
	}
	if end > dataStart && s.data[end-1-s.base] == '\r' {
		end--
	}
	payload := append([]byte(nil), s.slice(dataStart, end)...)
	if s.cfg.MaxStreamLength > 0 && int64(len(payload)) > s.cfg.MaxStreamLength {
		return Token{}, errors.New("stream too long")
	}
	s.pos = idx + int64(len(endstream))
	return s.emit(Token{Type: TokenStream, Bytes: payload, Pos: start})
}

func isWhitespace(c byte) bool {
	return c == 0x00 || c == 0x09 || c == 0x0A || c == 0x0C || c == 0x0D || c == 0x20
}
func isEOL(c byte) bool { return c == '\r' || c == '\n' }
func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	default:
		return isWhitespace(c)
	}
}

func translateEscape(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 'r':
		return '\r'
	case 't':
		return '\t'
	case 'b':
		return '\b'
	case 'f':
		return '\f'
	default:
		return c
	}
}

func (s *pdfScanner) scanKeyword() (Token, error) {
	start := s.pos
	for {
		c, ok := s.at(s.pos)
		if !ok || isDelimiter(c) {
			break
		}
		s.pos++
	}
	kw := string(s.slice(start, s.pos))
	switch kw {
	case "true", "false":
		return Token{Type: TokenBoolean, Bool: kw == "true", Str: kw, Pos: start}, nil
	case "null":
		return Token{Type: TokenNull, Str: kw, Pos: start}, nil
	case "stream":
		return s.scanStream(start)
	default:
		return Token{Type: TokenKeyword, Str: kw, Pos: start}, nil
	}
}

// scanNumberOrRef reads a number and looks ahead for the "<num> <gen> R"
// form of an indirect reference.
func (s *pdfScanner) scanNumberOrRef() (Token, error) {
	start := s.pos
	num1 := s.scanNumberString()
	if num1 == "" {
		s.pos++
		return s.emit(Token{Type: TokenKeyword, Str: string(s.slice(start, s.pos)), Pos: start})
	}
	if isUnsigned(num1) {
		afterFirst := s.pos
		if s.skipWSAndComments() == nil {
			num2 := s.scanNumberString()
			if num2 != "" && isUnsigned(num2) {
				if s.skipWSAndComments() == nil {
					if c, _ := s.at(s.pos); c == 'R' {
						next, ok := s.at(s.pos + 1)
						if !ok || isDelimiter(next) {
							s.pos++
							n1, _ := strconv.ParseInt(num1, 10, 64)
							n2, _ := strconv.Atoi(num2)
							return Token{Type: TokenRef, Int: n1, IsInt: true, Gen: n2, Pos: start}, nil
						}
					}
				}
			}
		}
		s.pos = afterFirst
	}
	if i, err := strconv.ParseInt(num1, 10, 64); err == nil {
		return s.emit(Token{Type: TokenNumber, Int: i, IsInt: true, Pos: start})
	}
	f, err := strconv.ParseFloat(normalizeReal(num1), 64)
	if err != nil {
		if rerr := s.recover(errors.New("invalid number "+num1), "number"); rerr != nil {
			return Token{}, rerr
		}
	}
	return s.emit(Token{Type: TokenNumber, Float: f, Pos: start})
}

func isUnsigned(v string) bool {
	for i := 0; i < len(v); i++ {
		if v[i] < '0' || v[i] > '9' {
			return false
		}
	}
	return true
}

// normalizeReal tolerates doubled signs such as "--5" seen in some writers.
func normalizeReal(v string) string {
	for len(v) > 1 && (v[0] == '-' || v[0] == '+') && (v[1] == '-' || v[1] == '+') {
		v = v[1:]
	}
	return v
}

func (s *pdfScanner) scanNumberString() string {
	start := s.pos
	seenDigit := false
	for {
		c, ok := s.at(s.pos)
		if !ok {
			break
		}
		if c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9') {
			if c >= '0' && c <= '9' {
				seenDigit = true
			}
			s.pos++
			continue
		}
		break
	}
	if !seenDigit {
		s.pos = start
		return ""
	}
	return string(s.slice(start, s.pos))
}

func (s *pdfScanner) recover(err error, loc string) error {
	if s.cfg.Recovery == nil {
		return err
	}
	location := s.recLoc
	location.ByteOffset = s.pos
	if location.Component != "" {
		location.Component += "->"
	}
	location.Component += "scanner:" + loc
	s.lastAction = s.cfg.Recovery.OnError(err, location)
	switch s.lastAction {
	case recovery.ActionSkip, recovery.ActionFix:
		return nil
	default:
		return err
	}
}

func (s *pdfScanner) emit(tok Token) (Token, error) {
	switch tok.Type {
	case TokenArray:
		s.arrayDepth++
		if s.cfg.MaxArrayDepth > 0 && s.arrayDepth > s.cfg.MaxArrayDepth {
			return Token{}, errors.New("array depth exceeded")
		}
	case TokenDict:
		s.dictDepth++
		if s.cfg.MaxDictDepth > 0 && s.dictDepth > s.cfg.MaxDictDepth {
			return Token{}, errors.New("dict depth exceeded")
		}
	case TokenKeyword:
		if tok.Str == "]" && s.arrayDepth > 0 {
			s.arrayDepth--
		}
		if tok.Str == ">>" && s.dictDepth > 0 {
			s.dictDepth--
		}
	}
	return tok, nil
}
