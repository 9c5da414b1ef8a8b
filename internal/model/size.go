package model

// SizeBucket is one of the fixed file size ranges used by the size histogram.
type SizeBucket string

// Size histogram buckets. Lower bounds are inclusive, upper bounds exclusive.
const (
	SizeUnder1KB     SizeBucket = "< 1KB"
	Size1KBTo10KB    SizeBucket = "1KB ~ <10KB"
	Size10KBTo100KB  SizeBucket = "10KB ~ <100KB"
	Size100KBTo1MB   SizeBucket = "100KB ~ <1MB"
	Size1MBAndLarger SizeBucket = ">= 1MB"
)

const (
	kib = 1024
	mib = 1024 * kib
)

// SizeBuckets lists every bucket in ascending order.
// Reports iterate this slice so buckets always appear in the same order.
var SizeBuckets = []SizeBucket{
	SizeUnder1KB,
	Size1KBTo10KB,
	Size10KBTo100KB,
	Size100KBTo1MB,
	Size1MBAndLarger,
}

// BucketForSize returns the bucket a body of the given size falls into.
// Exactly 1024 bytes is "1KB ~ <10KB"; exactly 1048576 bytes is ">= 1MB".
func BucketForSize(size int64) SizeBucket {
	switch {
	case size < kib:
		return SizeUnder1KB
	case size < 10*kib:
		return Size1KBTo10KB
	case size < 100*kib:
		return Size10KBTo100KB
	case size < mib:
		return Size100KBTo1MB
	default:
		return Size1MBAndLarger
	}
}
