package optimize

import (
	"crypto/sha256"

	"github.com/paradisepdf/pagekit/ir/raw"
	"github.com/paradisepdf/pagekit/writer"
)

type digest [sha256.Size]byte

// contentKey digests the serialized form of obj. Streams serialize with a
// recomputed /Length, so a stale length never splits two equal streams.
func contentKey(buf []byte, obj raw.Object) (digest, []byte) {
	buf = writer.AppendObject(buf[:0], obj)
	return sha256.Sum256(buf), buf
}
