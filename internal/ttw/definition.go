// Package ttw implements the tilted time window: a fixed-size,
// multi-resolution time series that keeps recent history at fine
// granularity and aging history at progressively coarser granularity.
package ttw

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidDefinition is returned when a serialized TTW definition string
// is malformed.
var ErrInvalidDefinition = errors.New("ttw: invalid definition")

// Definition is the declarative description of a tilted time window's
// granularities and their bucket capacities. Granularities are ordered from
// finest (index 0) to coarsest (index NumGranularities-1).
type Definition struct {
	SecPerWindow    uint64
	GranularityChar []byte
	BucketCount     []int
	BucketOffset    []int
	NumBuckets      int
}

// NewDefinition builds a Definition from parallel finest-to-coarsest slices
// of granularity tag characters and their bucket capacities.
func NewDefinition(secPerWindow uint64, granularityChar []byte, bucketCount []int) (*Definition, error) {
	if len(granularityChar) == 0 || len(granularityChar) != len(bucketCount) {
		return nil, fmt.Errorf("%w: at least one granularity required", ErrInvalidDefinition)
	}
	offsets := make([]int, len(bucketCount))
	total := 0
	for i, c := range bucketCount {
		if c < 1 {
			return nil, fmt.Errorf("%w: granularity %q has bucket count < 1", ErrInvalidDefinition, granularityChar[i])
		}
		offsets[i] = total
		total += c
	}
	return &Definition{
		SecPerWindow:    secPerWindow,
		GranularityChar: append([]byte(nil), granularityChar...),
		BucketCount:     append([]int(nil), bucketCount...),
		BucketOffset:    offsets,
		NumBuckets:      total,
	}, nil
}

// ParseDefinition parses the "<secPerWindow>:<granularityChars>" format
// described by the TTW definition serialization contract: granularityChars
// is the concatenation of each granularity's tag character repeated
// bucketCount times, finest first.
func ParseDefinition(s string) (*Definition, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 || parts[1] == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDefinition, s)
	}
	secPerWindow, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad secPerWindow: %v", ErrInvalidDefinition, err)
	}

	var chars []byte
	var counts []int
	runes := parts[1]
	i := 0
	for i < len(runes) {
		c := runes[i]
		j := i
		for j < len(runes) && runes[j] == c {
			j++
		}
		chars = append(chars, c)
		counts = append(counts, j-i)
		i = j
	}
	return NewDefinition(secPerWindow, chars, counts)
}

// Serialize renders d back into the "<secPerWindow>:<granularityChars>" form.
func (d *Definition) Serialize() string {
	var b strings.Builder
	b.WriteString(strconv.FormatUint(d.SecPerWindow, 10))
	b.WriteByte(':')
	for i, c := range d.GranularityChar {
		for n := 0; n < d.BucketCount[i]; n++ {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// NumGranularities returns the number of granularities in d.
func (d *Definition) NumGranularities() int {
	return len(d.BucketCount)
}

// Exists reports whether b is a valid bucket index for d.
func (d *Definition) Exists(b int) bool {
	return b >= 0 && b < d.NumBuckets
}

// BucketIsBeforeGranularity reports whether bucket b lies entirely before
// granularity g's range, i.e. belongs to a finer granularity than g.
func (d *Definition) BucketIsBeforeGranularity(b, g int) bool {
	if g < 0 || g >= len(d.BucketOffset) {
		return b < d.NumBuckets
	}
	return b < d.BucketOffset[g]
}

// GranularityOf returns the index of the granularity that owns bucket b.
// It returns the last granularity index if b is out of range.
func (d *Definition) GranularityOf(b int) int {
	for g, offset := range d.BucketOffset {
		if b < offset+d.BucketCount[g] {
			return g
		}
	}
	return len(d.BucketCount) - 1
}

// FindLowestGranularityAfterBucket returns the smallest granularity index
// whose range starts strictly after bucket b, or NumGranularities() if no
// such granularity exists (b lies in, or after, the coarsest granularity).
func (d *Definition) FindLowestGranularityAfterBucket(b int) int {
	for g, offset := range d.BucketOffset {
		if offset > b {
			return g
		}
	}
	return len(d.BucketCount)
}

// spanOf returns the number of real-time seconds a single bucket of
// granularity g represents: one batch window for g=0, and the product of
// every finer granularity's capacity for g>0.
func (d *Definition) spanOf(g int) uint64 {
	span := d.SecPerWindow
	for i := 0; i < g; i++ {
		span *= uint64(d.BucketCount[i])
	}
	return span
}

// SecondsToBucket returns the real-time offset represented by the left edge
// of bucket b (or its right edge, if includeBucketItself is true).
func (d *Definition) SecondsToBucket(b int, includeBucketItself bool) uint64 {
	var total uint64
	for i := 0; i < b; i++ {
		total += d.spanOf(d.GranularityOf(i))
	}
	if includeBucketItself && b >= 0 && b < d.NumBuckets {
		total += d.spanOf(d.GranularityOf(b))
	}
	return total
}

// TimeOfNextBucket returns the smallest batch-boundary time strictly
// greater than t, i.e. the next multiple of SecPerWindow after t.
func (d *Definition) TimeOfNextBucket(t uint64) uint64 {
	if d.SecPerWindow == 0 {
		return t
	}
	return (t/d.SecPerWindow + 1) * d.SecPerWindow
}

// Equal reports whether d and other describe the same layout.
func (d *Definition) Equal(other *Definition) bool {
	if other == nil {
		return false
	}
	return d.Serialize() == other.Serialize()
}

// LegacyV1Definition is the fixed definition used when deserializing a
// version-1 persisted pattern tree, which predates the definition field.
func LegacyV1Definition() *Definition {
	def, err := ParseDefinition("900:QQQQHHHHHHHHHHHHHHHHHHHHHHHHDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDMMMMMMMMMMMMY")
	if err != nil {
		panic("ttw: legacy v1 definition failed to parse: " + err.Error())
	}
	return def
}
