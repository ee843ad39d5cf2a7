// Package optimize shrinks documents: duplicate streams are combined, images
// are recompressed through a pluggable codec and unused objects are dropped.
package optimize

import (
	"context"
	"fmt"

	"github.com/paradisepdf/pagekit/graph"
	"github.com/paradisepdf/pagekit/ir/raw"
	"github.com/paradisepdf/pagekit/observability"
)

type Config struct {
	CombineDuplicateStreams         bool
	CombineIdenticalIndirectObjects bool
	CompressStreams                 bool
	// MaxDimension marks JPEG images wider or taller than this many pixels
	// as candidates. Zero leaves JPEG images alone.
	MaxDimension         int
	Codec                ImageCodec
	CleanUnusedResources bool
	Logger               observability.Logger
}

// Stats counts what a run changed.
type Stats struct {
	Combined     int
	Recompressed int
	Compressed   int
	Removed      int
}

type Optimizer struct {
	config Config
	log    observability.Logger
}

func New(config Config) *Optimizer {
	return &Optimizer{config: config, log: observability.OrNop(config.Logger)}
}

// Optimize runs the enabled passes in order: combination, image
// recompression, stream compression and cleanup.
func (o *Optimizer) Optimize(ctx context.Context, doc *raw.Document) (Stats, error) {
	var stats Stats
	if o.config.CombineIdenticalIndirectObjects || o.config.CombineDuplicateStreams {
		stats.Combined = o.combineObjects(doc, true, o.config.CombineIdenticalIndirectObjects)
	}

	if o.config.Codec != nil {
		n, err := o.recompressImages(ctx, doc)
		if err != nil {
			return stats, fmt.Errorf("failed to optimize images: %w", err)
		}
		stats.Recompressed = n
	}

	if o.config.CompressStreams {
		n, err := o.compressStreams(ctx, doc)
		if err != nil {
			return stats, fmt.Errorf("failed to compress streams: %w", err)
		}
		stats.Compressed = n
	}

	if o.config.CleanUnusedResources {
		stats.Removed = graph.Prune(doc)
	}

	o.log.Debug("optimized",
		observability.Int("combined", stats.Combined),
		observability.Int("recompressed", stats.Recompressed),
		observability.Int("compressed", stats.Compressed),
		observability.Int("removed", stats.Removed),
	)
	return stats, nil
}

// structural objects are never combined: two identical page dictionaries
// are still two pages.
func structural(obj raw.Object) bool {
	return raw.IsType(obj, "Page") || raw.IsType(obj, "Pages") || raw.IsType(obj, "Catalog")
}
