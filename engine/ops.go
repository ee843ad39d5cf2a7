package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/paradisepdf/pagekit/combine"
	"github.com/paradisepdf/pagekit/ir/raw"
	"github.com/paradisepdf/pagekit/observability"
	"github.com/paradisepdf/pagekit/pageops"
	"github.com/paradisepdf/pagekit/pdferr"
	"github.com/paradisepdf/pagekit/security"
	"github.com/paradisepdf/pagekit/writer"
)

// PageCount returns the number of pages reachable from the catalog.
func (e *Engine) PageCount(path string) (n int, err error) {
	const op = "page_count"
	ctx, span := e.span(context.Background(), op)
	defer func() { finish(span, err) }()

	in, err := e.open(ctx, op, path)
	if err != nil {
		return 0, err
	}
	defer in.close()
	m, err := pages(op, path, in.doc)
	if err != nil {
		return 0, err
	}
	return m.Len(), nil
}

// SplitPart is one output file a split would produce.
type SplitPart struct {
	Name  string        `json:"name"`
	Label string        `json:"label"`
	Range pageops.Range `json:"-"`
}

type SplitPreview struct {
	Source    string      `json:"source"`
	PageCount int         `json:"page_count"`
	Parts     []SplitPart `json:"parts"`
}

func partName(path string, i int) string {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return fmt.Sprintf("%s_part%d.pdf", stem, i)
}

func preview(path string, pageCount int, mode pageops.SplitMode) *SplitPreview {
	ranges := pageops.ChunkRanges(pageCount, mode)
	p := &SplitPreview{Source: filepath.Base(path), PageCount: pageCount, Parts: make([]SplitPart, len(ranges))}
	for i, r := range ranges {
		p.Parts[i] = SplitPart{Name: partName(path, i+1), Label: r.Label(), Range: r}
	}
	return p
}

// SplitPreview reports the files Split would write without writing them.
func (e *Engine) SplitPreview(path string, mode pageops.SplitMode) (p *SplitPreview, err error) {
	const op = "split_preview"
	ctx, span := e.span(context.Background(), op)
	defer func() { finish(span, err) }()

	in, err := e.open(ctx, op, path)
	if err != nil {
		return nil, err
	}
	defer in.close()
	m, err := pages(op, path, in.doc)
	if err != nil {
		return nil, err
	}
	if m.Len() == 0 {
		return nil, classify(pdferr.KindValidation, op, path, pdferr.Validation(op, "document has no pages"))
	}
	return preview(path, m.Len(), mode), nil
}

// Split writes one file per chunk of mode into outDir, or next to the
// source when outDir is empty. progress, when not nil, is called after each
// file is written. It returns the written paths in page order.
func (e *Engine) Split(path, outDir string, mode pageops.SplitMode, progress func(Progress)) (written []string, err error) {
	const op = "split"
	ctx, span := e.span(context.Background(), op)
	defer func() { finish(span, err) }()

	if outDir == "" {
		outDir = filepath.Dir(path)
	}
	if info, statErr := os.Stat(outDir); statErr != nil || !info.IsDir() {
		if statErr == nil {
			statErr = fmt.Errorf("not a directory")
		}
		return nil, pdferr.New(pdferr.KindPath, op, outDir, statErr)
	}

	in, err := e.open(ctx, op, path)
	if err != nil {
		return nil, err
	}
	defer in.close()
	m, err := pages(op, path, in.doc)
	if err != nil {
		return nil, err
	}
	if m.Len() == 0 {
		return nil, classify(pdferr.KindValidation, op, path, pdferr.Validation(op, "document has no pages"))
	}

	plan := preview(path, m.Len(), mode)
	span.SetTag("parts", len(plan.Parts))
	for i, part := range plan.Parts {
		doc, err := pageops.Extract(in.doc, part.Range)
		if err != nil {
			return written, classify(pdferr.KindFormat, op, path, err)
		}
		e.finalize(op, doc)
		target := filepath.Join(outDir, part.Name)
		if err := e.save(ctx, op, doc, target, writer.Config{}); err != nil {
			return written, err
		}
		written = append(written, target)
		e.log.Debug("split part",
			observability.String(observability.FieldPath, target),
			observability.String("range", part.Label),
			observability.Int(observability.FieldPages, part.Range.Len()),
		)
		if progress != nil {
			progress(Progress{Chunk: i + 1, Total: len(plan.Parts)})
		}
	}
	return written, nil
}

// Merge appends the pages of every input, in order, to the first input's
// page tree and writes the result to output. Nothing is written unless all
// inputs load.
func (e *Engine) Merge(paths []string, output string) (err error) {
	const op = "merge"
	ctx, span := e.span(context.Background(), op)
	defer func() { finish(span, err) }()

	ins, err := e.openAll(ctx, op, paths)
	if err != nil {
		return err
	}
	defer closeAll(ins)

	dst := ins[0].doc
	if _, err := pages(op, ins[0].path, dst); err != nil {
		return err
	}
	for _, in := range ins[1:] {
		if err := combine.Append(dst, in.doc); err != nil {
			return classify(pdferr.KindFormat, op, in.path, err)
		}
	}
	e.finalize(op, dst)
	return e.save(ctx, op, dst, output, writer.Config{})
}

// Mix interleaves the pages of the inputs one at a time into a fresh
// document and writes it to output.
func (e *Engine) Mix(paths []string, output string) (err error) {
	const op = "mix"
	ctx, span := e.span(context.Background(), op)
	defer func() { finish(span, err) }()

	ins, err := e.openAll(ctx, op, paths)
	if err != nil {
		return err
	}
	defer closeAll(ins)

	docs := make([]*raw.Document, 0, len(ins))
	for _, in := range ins {
		if _, err := pages(op, in.path, in.doc); err != nil {
			return err
		}
		docs = append(docs, in.doc)
	}
	out, err := combine.Mix(docs...)
	if err != nil {
		return classify(pdferr.KindFormat, op, "", err)
	}
	e.finalize(op, out)
	return e.save(ctx, op, out, output, writer.Config{})
}

// Reorganize rebuilds the page order of input from actions and writes the
// result to output. Actions naming pages the document lacks are skipped.
func (e *Engine) Reorganize(input string, actions []pageops.Action, output string) (err error) {
	const op = "reorganize"
	ctx, span := e.span(context.Background(), op)
	defer func() { finish(span, err) }()

	in, err := e.open(ctx, op, input)
	if err != nil {
		return err
	}
	defer in.close()
	if _, err := pages(op, input, in.doc); err != nil {
		return err
	}
	skipped, err := pageops.Reorganize(in.doc, actions)
	if err != nil {
		return classify(pdferr.KindFormat, op, input, err)
	}
	for _, n := range skipped {
		e.log.Warn("skipped missing page", observability.String(observability.FieldOperation, op), observability.Int("page", n))
	}
	e.finalize(op, in.doc)
	return e.save(ctx, op, in.doc, output, writer.Config{})
}

// Rotate adds deltas, in degrees, to the rotation of the numbered pages
// and saves the document in place.
func (e *Engine) Rotate(path string, deltas map[int]int) (err error) {
	const op = "rotate"
	ctx, span := e.span(context.Background(), op)
	defer func() { finish(span, err) }()

	in, err := e.open(ctx, op, path)
	if err != nil {
		return err
	}
	defer in.close()
	if _, err := pages(op, path, in.doc); err != nil {
		return err
	}
	applied, err := pageops.Rotate(in.doc, deltas)
	if err != nil {
		return classify(pdferr.KindFormat, op, path, err)
	}
	done := make(map[int]bool, len(applied))
	for _, n := range applied {
		done[n] = true
	}
	for n := range deltas {
		if !done[n] {
			e.log.Warn("skipped missing page", observability.String(observability.FieldOperation, op), observability.Int("page", n))
		}
	}
	e.finalize(op, in.doc)
	return e.save(ctx, op, in.doc, path, writer.Config{})
}

// Protect writes an AES-128 encrypted copy of path to output. owner
// defaults to user.
func (e *Engine) Protect(path, user, owner, output string) (err error) {
	const op = "protect"
	ctx, span := e.span(context.Background(), op)
	defer func() { finish(span, err) }()

	if user == "" {
		return classify(pdferr.KindValidation, op, path, pdferr.Validation(op, "user password is required"))
	}
	if owner == "" {
		owner = user
	}
	in, err := e.open(ctx, op, path)
	if err != nil {
		return err
	}
	defer in.close()

	doc := in.doc.Clone()
	e.finalize(op, doc)
	writer.EnsureID(doc)
	enc, err := security.BuildAES128Encryption(user, owner, security.ProtectedPermissions, writer.FirstID(doc))
	if err != nil {
		return classify(pdferr.KindValidation, op, path, err)
	}
	return e.save(ctx, op, doc, output, writer.Config{Encryption: enc})
}
