package writer

import (
	"context"
	"io"

	"github.com/paradisepdf/pagekit/ir/raw"
	"github.com/paradisepdf/pagekit/security"
)

type Config struct {
	// Version overrides the document version in the header when set.
	Version string
	// Compress Flate-encodes streams that carry no filter.
	Compress bool
	// Encryption, when set, encrypts every string and stream and adds the
	// Encrypt dictionary to the trailer. Its key must have been derived from
	// the document's first ID element (see EnsureID).
	Encryption *security.Encryption
}

type Writer interface {
	Write(ctx context.Context, doc *raw.Document, w io.Writer, cfg Config) error
	SerializeObject(ref raw.ObjectRef, obj raw.Object) []byte
}

// Interceptor observes or vetoes each indirect object as it is written.
type Interceptor interface {
	BeforeWrite(ctx context.Context, ref raw.ObjectRef, obj raw.Object) error
	AfterWrite(ctx context.Context, ref raw.ObjectRef, obj raw.Object, bytesWritten int64) error
}

type WriterBuilder struct{ interceptors []Interceptor }

func (b *WriterBuilder) WithInterceptor(i Interceptor) *WriterBuilder {
	b.interceptors = append(b.interceptors, i)
	return b
}
func (b *WriterBuilder) Build() Writer { return &impl{interceptors: b.interceptors} }

// New returns a writer without interceptors.
func New() Writer { return &impl{} }
