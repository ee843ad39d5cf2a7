package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/paradisepdf/pagekit/engine"
	"github.com/paradisepdf/pagekit/observability"
	"github.com/paradisepdf/pagekit/pageops"
)

const usage = `Usage: pagekit [flags] <command> [command flags] <args>

Commands:
  count <pdf>                              print the page count
  preview [-every n] <pdf>                 list the files split would write
  split [-every n] [-out dir] <pdf>        split into chunks
  merge -o out.pdf <pdf>...                append documents in order
  mix -o out.pdf <pdf>...                  interleave pages of documents
  reorganize -order 3,blank,1 -o out <pdf> reorder, drop and insert pages
  rotate -rotate 1:90,3:-90 <pdf>          rotate pages in place
  protect -user pw [-owner pw] -o out <pdf> encrypt with AES-128
  boxes <pdf>                              page boundary boxes
  meta <pdf>                               page sizes and rotation
  props <pdf>                              document properties
  dump <pdf>                               header and trailer bytes
  compress [-quality q] -o out <pdf>       recompress images and streams

Flags:
`

// errUsage marks errors that exit with status 2.
var errUsage = errors.New("usage")

type command struct {
	name string
	args []string
	eng  *engine.Engine
	out  io.Writer
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "pagekit: %v\n", err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	global := flag.NewFlagSet("pagekit", flag.ContinueOnError)
	global.Usage = func() {
		fmt.Fprint(global.Output(), usage)
		global.PrintDefaults()
	}
	verbose := global.Bool("v", false, "Log debug output to stderr")
	password := global.String("password", "", "Password to open encrypted inputs")
	lenient := global.Bool("lenient", false, "Drop unreadable objects instead of failing")
	if err := global.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if global.NArg() == 0 {
		global.Usage()
		return fmt.Errorf("%w: missing command", errUsage)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := observability.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	eng := engine.New(engine.Options{
		Logger:   logger,
		Tracer:   observability.LogTracer(logger),
		Password: *password,
		Lenient:  *lenient,
	})
	cmd := &command{name: global.Arg(0), args: global.Args()[1:], eng: eng, out: stdout}
	return cmd.dispatch()
}

func (c *command) dispatch() error {
	switch c.name {
	case "count":
		return c.single(func(path string) (any, error) {
			n, err := c.eng.PageCount(path)
			return map[string]int{"pages": n}, err
		})
	case "preview":
		return c.preview()
	case "split":
		return c.split()
	case "merge":
		return c.combine(c.eng.Merge)
	case "mix":
		return c.combine(c.eng.Mix)
	case "reorganize":
		return c.reorganize()
	case "rotate":
		return c.rotate()
	case "protect":
		return c.protect()
	case "boxes":
		return c.single(func(path string) (any, error) { return c.eng.PageBoxes(path) })
	case "meta":
		return c.single(func(path string) (any, error) { return c.eng.OrganiserMetadata(path) })
	case "props":
		return c.single(func(path string) (any, error) { return c.eng.Properties(path) })
	case "dump":
		return c.single(func(path string) (any, error) { return c.eng.RawDiagnostics(path) })
	case "compress":
		return c.compress()
	}
	return fmt.Errorf("%w: unknown command %q", errUsage, c.name)
}

func (c *command) flags() *flag.FlagSet {
	fs := flag.NewFlagSet(c.name, flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: pagekit %s [flags] <args>\n", c.name)
		fs.PrintDefaults()
	}
	return fs
}

// parse parses the command flags and checks the positional argument count.
// max < 0 means no upper bound.
func (c *command) parse(fs *flag.FlagSet, min, max int) ([]string, error) {
	if err := fs.Parse(c.args); err != nil {
		return nil, fmt.Errorf("%w: %v", errUsage, err)
	}
	n := fs.NArg()
	if n < min || (max >= 0 && n > max) {
		fs.Usage()
		return nil, fmt.Errorf("%w: %s takes %s", errUsage, c.name, arity(min, max))
	}
	return fs.Args(), nil
}

func arity(min, max int) string {
	switch {
	case min == max && min == 1:
		return "one file"
	case max < 0:
		return fmt.Sprintf("at least %d files", min)
	}
	return fmt.Sprintf("%d to %d files", min, max)
}

func (c *command) emit(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

func (c *command) single(fn func(path string) (any, error)) error {
	args, err := c.parse(c.flags(), 1, 1)
	if err != nil {
		return err
	}
	v, err := fn(args[0])
	if err != nil {
		return err
	}
	return c.emit(v)
}

func splitMode(every int) pageops.SplitMode {
	if every <= 1 {
		return pageops.OnePerPage{}
	}
	return pageops.EveryN{N: every}
}

func (c *command) preview() error {
	fs := c.flags()
	every := fs.Int("every", 1, "Pages per output file")
	args, err := c.parse(fs, 1, 1)
	if err != nil {
		return err
	}
	p, err := c.eng.SplitPreview(args[0], splitMode(*every))
	if err != nil {
		return err
	}
	return c.emit(p)
}

func (c *command) split() error {
	fs := c.flags()
	every := fs.Int("every", 1, "Pages per output file")
	outDir := fs.String("out", "", "Output directory (default: next to the input)")
	quiet := fs.Bool("q", false, "Do not report progress")
	args, err := c.parse(fs, 1, 1)
	if err != nil {
		return err
	}
	var progress func(engine.Progress)
	if !*quiet {
		progress = func(p engine.Progress) { fmt.Fprintf(os.Stderr, "split: %s\n", p) }
	}
	written, err := c.eng.Split(args[0], *outDir, splitMode(*every), progress)
	if err != nil {
		return err
	}
	return c.emit(map[string][]string{"written": written})
}

func (c *command) combine(fn func([]string, string) error) error {
	fs := c.flags()
	output := fs.String("o", "", "Output file")
	args, err := c.parse(fs, 1, -1)
	if err != nil {
		return err
	}
	if *output == "" {
		return fmt.Errorf("%w: -o is required", errUsage)
	}
	return fn(args, *output)
}

func (c *command) reorganize() error {
	fs := c.flags()
	order := fs.String("order", "", "Comma separated page numbers and \"blank\"")
	output := fs.String("o", "", "Output file")
	args, err := c.parse(fs, 1, 1)
	if err != nil {
		return err
	}
	if *output == "" || strings.TrimSpace(*order) == "" {
		return fmt.Errorf("%w: -order and -o are required", errUsage)
	}
	actions, err := pageops.ParseActions(*order)
	if err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	return c.eng.Reorganize(args[0], actions, *output)
}

func (c *command) rotate() error {
	fs := c.flags()
	pairs := fs.String("rotate", "", "Comma separated page:degrees pairs")
	args, err := c.parse(fs, 1, 1)
	if err != nil {
		return err
	}
	deltas, err := pageops.ParseRotations(*pairs)
	if err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	return c.eng.Rotate(args[0], deltas)
}

func (c *command) protect() error {
	fs := c.flags()
	user := fs.String("user", "", "User password")
	owner := fs.String("owner", "", "Owner password (default: the user password)")
	output := fs.String("o", "", "Output file")
	args, err := c.parse(fs, 1, 1)
	if err != nil {
		return err
	}
	if *output == "" {
		return fmt.Errorf("%w: -o is required", errUsage)
	}
	return c.eng.Protect(args[0], *user, *owner, *output)
}

func (c *command) compress() error {
	fs := c.flags()
	quality := fs.Int("quality", 75, "JPEG quality, 1 to 100")
	output := fs.String("o", "", "Output file")
	args, err := c.parse(fs, 1, 1)
	if err != nil {
		return err
	}
	if *output == "" {
		return fmt.Errorf("%w: -o is required", errUsage)
	}
	n, err := c.eng.Compress(args[0], *output, *quality)
	if err != nil {
		return err
	}
	return c.emit(map[string]int{"recompressed_images": n})
}
