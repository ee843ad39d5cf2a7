package scanner

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/paradisepdf/pagekit/recovery"
)

// describe renders a token compactly so whole token sequences can be
// compared as strings.
func describe(tok Token) string {
	switch tok.Type {
	case TokenNumber:
		if tok.IsInt {
			return fmt.Sprintf("int:%d", tok.Int)
		}
		return fmt.Sprintf("real:%g", tok.Float)
	case TokenName:
		return "/" + tok.Str
	case TokenString:
		if tok.Hex {
			return fmt.Sprintf("hex:%q", tok.Bytes)
		}
		return fmt.Sprintf("str:%q", tok.Bytes)
	case TokenStream:
		return fmt.Sprintf("stream:%q", tok.Bytes)
	case TokenRef:
		return fmt.Sprintf("ref:%d %d", tok.Int, tok.Gen)
	case TokenBoolean:
		return fmt.Sprint(tok.Bool)
	case TokenKeyword:
		return tok.Str
	}
	return tok.Type.String()
}

// scanAll reads tokens until the first error, which it returns.
func scanAll(s Scanner) ([]string, error) {
	var out []string
	for {
		tok, err := s.Next()
		if err != nil {
			return out, err
		}
		out = append(out, describe(tok))
	}
}

type fixer struct{}

func (fixer) OnError(error, recovery.Location) recovery.Action { return recovery.ActionFix }

func TestScannerTokens(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		length int64
		want   []string
	}{
		{
			name: "object header and dictionary",
			in:   "%PDF-1.7\n1 0 obj\n<< /Name /Value /Nums [1 2 3] /Flag true /Null null >>\nendobj",
			want: []string{"int:1", "int:0", "obj", "dict", "/Name", "/Value", "/Nums", "array", "int:1", "int:2", "int:3", "]", "/Flag", "true", "/Null", "null", ">>", "endobj"},
		},
		{name: "name escapes", in: "/Name#20With#23Hash", want: []string{"/Name With#Hash"}},
		{name: "literal escapes", in: `(Hi\n\050\051\t)`, want: []string{`str:"Hi\n()\t"`}},
		{name: "line continuation", in: "(Line\\\r\ncontinued)", want: []string{`str:"Linecontinued"`}},
		{name: "odd hex", in: "<48656c6c6f3>", want: []string{`hex:"Hello0"`}},
		{name: "hex and literal", in: "<4142> (AB)", want: []string{`hex:"AB"`, `str:"AB"`}},
		{name: "reference", in: "12 5 R %comment\n", want: []string{"ref:12 5"}},
		{name: "numbers", in: "1 0 obj 3.5 -2", want: []string{"int:1", "int:0", "obj", "real:3.5", "int:-2"}},
		{name: "stream by length", in: "stream\r\nabcde\r\nendstream", length: 5, want: []string{`stream:"abcde"`}},
		{name: "stream by endstream", in: "stream\nabc\r\nendstream\n", want: []string{`stream:"abc"`}},
		{name: "stream with CR", in: "stream\rdata\rendstream\r", want: []string{`stream:"data"`}},
		{name: "stream length too short", in: "stream\nabcdef\nendstream", length: 3, want: []string{`stream:"abcdef"`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(strings.NewReader(tt.in), Config{})
			if tt.length > 0 {
				s.SetNextStreamLength(tt.length)
			}
			got, _ := scanAll(s)
			if strings.Join(got, " | ") != strings.Join(tt.want, " | ") {
				t.Fatalf("got  %v\nwant %v", got, tt.want)
			}
		})
	}
}

func TestScannerErrors(t *testing.T) {
	tests := []struct {
		in     string
		cfg    Config
		length int64
		want   string
	}{
		{"/abcdefgh", Config{MaxNameLength: 5}, 0, "name too long"},
		{"<000102>", Config{MaxStringLength: 2}, 0, "hex string too long"},
		{"(abcdef)", Config{MaxStringLength: 3}, 0, "literal string too long"},
		{"stream\nabcdef\nendstream", Config{MaxStreamLength: 3}, 6, "stream too long"},
		{"stream\nabc", Config{MaxStreamScan: 2}, 0, "endstream not found"},
		{"stream abc\nendstream", Config{}, 0, "missing EOL"},
		{"(abc", Config{}, 0, "unterminated literal string"},
		{"<abc", Config{}, 0, "unterminated hex string"},
		{"<< /A << /B << >> >> >>", Config{MaxDictDepth: 2}, 0, "dict depth exceeded"},
	}
	for _, tt := range tests {
		s := New(strings.NewReader(tt.in), tt.cfg)
		if tt.length > 0 {
			s.SetNextStreamLength(tt.length)
		}
		_, err := scanAll(s)
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Errorf("%q: expected %q, got %v", tt.in, tt.want, err)
		}
	}
}

func TestScannerRecoveryFixes(t *testing.T) {
	tests := []struct {
		in     string
		cfg    Config
		length int64
		want   []string
	}{
		{"(abc", Config{}, 0, []string{`str:"abc"`}},
		{"<4142", Config{}, 0, []string{`hex:"AB"`}},
		{"stream\nabc", Config{}, 5, []string{`stream:"abc"`}},
		{"stream\nabc", Config{MaxStreamScan: 1}, 0, []string{`stream:"abc"`}},
		{"] 1", Config{}, 0, []string{"int:1"}},
		{"[1 2 ", Config{}, 0, []string{"array", "int:1", "int:2", "]"}},
	}
	for _, tt := range tests {
		cfg := tt.cfg
		cfg.Recovery = fixer{}
		s := New(strings.NewReader(tt.in), cfg)
		if tt.length > 0 {
			s.SetNextStreamLength(tt.length)
		}
		got, _ := scanAll(s)
		if strings.Join(got, " | ") != strings.Join(tt.want, " | ") {
			t.Errorf("%q: got %v want %v", tt.in, got, tt.want)
		}
	}
}

type locationRecorder struct{ loc recovery.Location }

func (r *locationRecorder) OnError(err error, loc recovery.Location) recovery.Action {
	r.loc = loc
	return recovery.ActionFail
}

func TestScannerRecoveryLocation(t *testing.T) {
	rec := &locationRecorder{}
	s := New(bytes.NewReader([]byte("<abc")), Config{Recovery: rec})
	s.(interface{ SetRecoveryLocation(recovery.Location) }).SetRecoveryLocation(recovery.Location{ObjectNum: 5, ObjectGen: 2, Component: "loader"})
	if _, err := s.Next(); err == nil {
		t.Fatalf("failing strategy must surface the error")
	}
	if rec.loc.ObjectNum != 5 || rec.loc.ObjectGen != 2 || !strings.HasPrefix(rec.loc.Component, "loader->scanner:hex") {
		t.Fatalf("location %+v", rec.loc)
	}
}

func TestScannerSeek(t *testing.T) {
	data := strings.Repeat(" ", 100) + "/Far 7 0 R"
	s := New(strings.NewReader(data), Config{WindowSize: 16})
	if err := s.Seek(100); err != nil {
		t.Fatalf("seek: %v", err)
	}
	got, _ := scanAll(s)
	if strings.Join(got, " ") != "/Far ref:7 0" {
		t.Fatalf("got %v", got)
	}
	if err := s.Seek(2); err != nil || s.Position() != 2 {
		t.Fatalf("seek back: %v at %d", err, s.Position())
	}
	if err := s.Seek(int64(len(data)) + 10); err == nil {
		t.Fatalf("seek past end must fail")
	}
}

func FuzzScanner(f *testing.F) {
	for _, seed := range []string{"<< /Type /Page /Kids [3 0 R] >>", "(unterminated", "stream\r\nxy\nendstream", "<4142"} {
		f.Add([]byte(seed))
	}
	f.Fuzz(func(t *testing.T, data []byte) {
		s := New(bytes.NewReader(data), Config{MaxStringLength: 1024, MaxArrayDepth: 10, MaxDictDepth: 10, MaxStreamLength: 1024, WindowSize: 1024, Recovery: fixer{}})
		for i := 0; i < len(data)+2; i++ {
			if _, err := s.Next(); err != nil {
				return
			}
		}
	})
}
