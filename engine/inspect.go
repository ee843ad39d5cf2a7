package engine

import (
	"context"

	"github.com/paradisepdf/pagekit/inspect"
	"github.com/paradisepdf/pagekit/observability"
	"github.com/paradisepdf/pagekit/optimize"
	"github.com/paradisepdf/pagekit/pdferr"
	"github.com/paradisepdf/pagekit/writer"
)

func (e *Engine) PageBoxes(path string) (boxes []inspect.PageBoxes, err error) {
	const op = "page_boxes"
	ctx, span := e.span(context.Background(), op)
	defer func() { finish(span, err) }()

	in, err := e.open(ctx, op, path)
	if err != nil {
		return nil, err
	}
	defer in.close()
	boxes, err = inspect.Boxes(in.doc)
	return boxes, classify(pdferr.KindFormat, op, path, err)
}

// OrganiserMetadata returns the size, rotation and orientation of every
// page.
func (e *Engine) OrganiserMetadata(path string) (infos []inspect.PageInfo, err error) {
	const op = "organiser_metadata"
	ctx, span := e.span(context.Background(), op)
	defer func() { finish(span, err) }()

	in, err := e.open(ctx, op, path)
	if err != nil {
		return nil, err
	}
	defer in.close()
	infos, err = inspect.Pages(in.doc)
	return infos, classify(pdferr.KindFormat, op, path, err)
}

func (e *Engine) Properties(path string) (props *inspect.Properties, err error) {
	const op = "properties"
	ctx, span := e.span(context.Background(), op)
	defer func() { finish(span, err) }()

	in, err := e.open(ctx, op, path)
	if err != nil {
		return nil, err
	}
	defer in.close()
	props, err = inspect.Describe(ctx, in.doc, in.src.Size())
	return props, classify(pdferr.KindFormat, op, path, err)
}

// RawDiagnostics dumps the first and last bytes of path. The file must
// still parse so that the dump describes a document.
func (e *Engine) RawDiagnostics(path string) (dump *inspect.RawDump, err error) {
	const op = "raw_diagnostics"
	ctx, span := e.span(context.Background(), op)
	defer func() { finish(span, err) }()

	in, err := e.open(ctx, op, path)
	if err != nil {
		return nil, err
	}
	defer in.close()
	dump, err = inspect.Raw(in.src)
	return dump, classify(pdferr.KindIO, op, path, err)
}

// MaxImageDimension bounds the width and height of recompressed images.
const MaxImageDimension = 2000

// Compress rewrites input to output with duplicate streams combined,
// unfiltered streams Flate encoded and eligible images re-encoded as JPEG
// at quality. It returns the number of recompressed images.
func (e *Engine) Compress(input, output string, quality int) (n int, err error) {
	const op = "compress"
	ctx, span := e.span(context.Background(), op)
	defer func() { finish(span, err) }()

	if quality < 1 || quality > 100 {
		return 0, classify(pdferr.KindValidation, op, input, pdferr.Validation(op, "quality %d outside 1..100", quality))
	}
	in, err := e.open(ctx, op, input)
	if err != nil {
		return 0, err
	}
	defer in.close()
	if _, err := pages(op, input, in.doc); err != nil {
		return 0, err
	}

	opt := optimize.New(optimize.Config{
		CombineDuplicateStreams: true,
		CompressStreams:         true,
		CleanUnusedResources:    true,
		MaxDimension:            MaxImageDimension,
		Codec:                   optimize.JPEGCodec{Quality: quality, MaxDimension: MaxImageDimension},
		Logger:                  e.log,
	})
	stats, err := opt.Optimize(ctx, in.doc)
	if err != nil {
		return 0, classify(pdferr.KindFormat, op, input, err)
	}
	e.log.Info("compressed",
		observability.String(observability.FieldPath, input),
		observability.Int("combined", stats.Combined),
		observability.Int("images", stats.Recompressed),
		observability.Int("streams", stats.Compressed),
	)
	e.finalize(op, in.doc)
	if err := e.save(ctx, op, in.doc, output, writer.Config{Compress: true}); err != nil {
		return 0, err
	}
	return stats.Recompressed, nil
}
