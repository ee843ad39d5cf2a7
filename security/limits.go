package security

import "time"

// Limits caps what a single load may consume. Zero fields take the
// default; a negative MaxParseTime disables the deadline.
type Limits struct {
	MaxDecompressedSize int64 // bytes produced by one filter chain
	MaxXRefDepth        int   // /Prev hops
	MaxStringLength     int64
	MaxStreamLength     int64 // raw bytes between stream and endstream
	MaxParseTime        time.Duration
}

func DefaultLimits() Limits {
	return Limits{
		MaxDecompressedSize: 100 << 20,
		MaxXRefDepth:        64,
		MaxStringLength:     10 << 20,
		MaxStreamLength:     256 << 20,
		MaxParseTime:        5 * time.Minute,
	}
}

// WithDefaults fills every zero field of l from DefaultLimits.
func (l Limits) WithDefaults() Limits {
	d := DefaultLimits()
	if l.MaxDecompressedSize == 0 {
		l.MaxDecompressedSize = d.MaxDecompressedSize
	}
	if l.MaxXRefDepth == 0 {
		l.MaxXRefDepth = d.MaxXRefDepth
	}
	if l.MaxStringLength == 0 {
		l.MaxStringLength = d.MaxStringLength
	}
	if l.MaxStreamLength == 0 {
		l.MaxStreamLength = d.MaxStreamLength
	}
	if l.MaxParseTime == 0 {
		l.MaxParseTime = d.MaxParseTime
	}
	return l
}
