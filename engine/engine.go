// Package engine exposes the path based document operations. Every
// operation loads its inputs, transforms the object graph, prunes and
// renumbers the result and writes it atomically.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/paradisepdf/pagekit/graph"
	"github.com/paradisepdf/pagekit/ir/raw"
	"github.com/paradisepdf/pagekit/observability"
	"github.com/paradisepdf/pagekit/pagetree"
	"github.com/paradisepdf/pagekit/parser"
	"github.com/paradisepdf/pagekit/pdferr"
	"github.com/paradisepdf/pagekit/recovery"
	"github.com/paradisepdf/pagekit/security"
	"github.com/paradisepdf/pagekit/source"
	"github.com/paradisepdf/pagekit/writer"
)

type Options struct {
	Logger observability.Logger
	Tracer observability.Tracer
	// Lenient drops unreadable objects instead of failing the load.
	Lenient bool
	// Password opens encrypted inputs.
	Password string
	// Compress Flate-encodes unfiltered streams on write.
	Compress bool
	Limits   security.Limits
}

type Engine struct {
	opts   Options
	log    observability.Logger
	tracer observability.Tracer
}

func New(opts Options) *Engine {
	tracer := opts.Tracer
	if tracer == nil {
		tracer = observability.NopTracer()
	}
	return &Engine{opts: opts, log: observability.OrNop(opts.Logger), tracer: tracer}
}

// loaded is a parsed input together with its byte source. The source stays
// mapped until close.
type loaded struct {
	path string
	src  *source.File
	doc  *raw.Document
}

func (l *loaded) close() {
	if l.src != nil {
		l.src.Close()
	}
}

func closeAll(ls []*loaded) {
	for _, l := range ls {
		l.close()
	}
}

// checkInput makes sure path names a regular file.
func checkInput(op, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return pdferr.New(pdferr.KindPath, op, path, fs.ErrNotExist)
		}
		return pdferr.New(pdferr.KindIO, op, path, err)
	}
	if !info.Mode().IsRegular() {
		return pdferr.New(pdferr.KindPath, op, path, errors.New("not a regular file"))
	}
	return nil
}

// parserConfig returns the loader configuration and, for lenient loads, the
// strategy that collects what was repaired.
func (e *Engine) parserConfig() (parser.Config, *recovery.Lenient) {
	cfg := parser.Config{
		Password: e.opts.Password,
		Limits:   e.opts.Limits,
		Logger:   e.log,
		Recovery: recovery.NewStrictStrategy(),
	}
	if !e.opts.Lenient {
		return cfg, nil
	}
	lenient := recovery.NewLenientStrategy()
	lenient.Logger = e.log
	cfg.Recovery = lenient
	return cfg, lenient
}

// open maps and loads path. The caller closes the result.
func (e *Engine) open(ctx context.Context, op, path string) (*loaded, error) {
	if err := checkInput(op, path); err != nil {
		return nil, err
	}
	src, err := source.Open(path)
	if err != nil {
		if errors.Is(err, source.ErrEmpty) {
			return nil, pdferr.New(pdferr.KindFormat, op, path, err)
		}
		return nil, pdferr.New(pdferr.KindIO, op, path, err)
	}
	cfg, lenient := e.parserConfig()
	doc, err := parser.Load(ctx, src, cfg)
	if err != nil {
		src.Close()
		return nil, pdferr.New(pdferr.KindFormat, op, path, err)
	}
	if lenient != nil {
		for _, issue := range lenient.Issues() {
			e.log.Warn("repaired input",
				observability.String(observability.FieldPath, path),
				observability.String("at", issue.Location.String()),
				observability.Error("err", issue.Err),
			)
		}
	}
	e.log.Debug("loaded",
		observability.String(observability.FieldOperation, op),
		observability.String(observability.FieldPath, path),
		observability.Int(observability.FieldObjects, len(doc.Objects)),
		observability.String("version", doc.Version),
	)
	return &loaded{path: path, src: src, doc: doc}, nil
}

// openAll loads every input before anything is written; the first failure
// aborts.
func (e *Engine) openAll(ctx context.Context, op string, paths []string) ([]*loaded, error) {
	if len(paths) == 0 {
		return nil, pdferr.Validation(op, "no input files")
	}
	for _, p := range paths {
		if err := checkInput(op, p); err != nil {
			return nil, err
		}
	}
	out := make([]*loaded, 0, len(paths))
	for _, p := range paths {
		l, err := e.open(ctx, op, p)
		if err != nil {
			closeAll(out)
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

func pages(op, path string, doc *raw.Document) (*pagetree.PageMap, error) {
	m, err := pagetree.Pages(doc)
	if err != nil {
		return nil, pdferr.New(pdferr.KindFormat, op, path, err)
	}
	return m, nil
}

// classify gives err the operation and path of the boundary, keeping the
// kind of an error that already has one.
func classify(kind pdferr.Kind, op, path string, err error) error {
	if err == nil {
		return nil
	}
	var pe *pdferr.Error
	if errors.As(err, &pe) {
		return &pdferr.Error{Kind: pe.Kind, Op: op, Path: path, Err: pe.Err}
	}
	return pdferr.New(kind, op, path, err)
}

// finalize drops what the transformation orphaned and renumbers densely.
func (e *Engine) finalize(op string, doc *raw.Document) {
	removed := graph.Prune(doc)
	graph.Compact(doc)
	e.log.Debug("finalized",
		observability.String(observability.FieldOperation, op),
		observability.Int("removed", removed),
		observability.Int(observability.FieldObjects, len(doc.Objects)),
	)
}

func (e *Engine) save(ctx context.Context, op string, doc *raw.Document, path string, cfg writer.Config) error {
	cfg.Compress = cfg.Compress || e.opts.Compress
	li := &logInterceptor{log: e.log.With(observability.String(observability.FieldOperation, op))}
	w := (&writer.WriterBuilder{}).WithInterceptor(li).Build()
	if err := writer.WriteFile(ctx, w, doc, path, cfg); err != nil {
		return pdferr.New(pdferr.KindIO, op, path, err)
	}
	li.done(path)
	return nil
}

func (e *Engine) span(ctx context.Context, op string) (context.Context, observability.Span) {
	ctx, span := e.tracer.StartSpan(ctx, op)
	span.SetTag(observability.FieldOperation, op)
	return ctx, span
}

func finish(span observability.Span, err error) {
	if err != nil {
		span.SetError(err)
	}
	span.Finish()
}

// logInterceptor counts written objects and logs the total once the file is
// in place.
type logInterceptor struct {
	log     observability.Logger
	objects int
	bytes   int64
}

func (l *logInterceptor) BeforeWrite(ctx context.Context, ref raw.ObjectRef, obj raw.Object) error {
	return nil
}

func (l *logInterceptor) AfterWrite(ctx context.Context, ref raw.ObjectRef, obj raw.Object, n int64) error {
	l.objects++
	l.bytes += n
	return nil
}

func (l *logInterceptor) done(path string) {
	l.log.Info("wrote document",
		observability.String(observability.FieldPath, path),
		observability.Int(observability.FieldObjects, l.objects),
		observability.Int64("object_bytes", l.bytes),
	)
}

// Progress reports that chunk Chunk of Total has been written.
type Progress struct {
	Chunk int `json:"chunk"`
	Total int `json:"total"`
}

func (p Progress) String() string { return fmt.Sprintf("%d/%d", p.Chunk, p.Total) }
