package ttw

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefinition_RoundTripsSerialize(t *testing.T) {
	d, err := ParseDefinition("900:QQQQHHHHDDDDDDMMY")
	require.NoError(t, err)

	assert.Equal(t, uint64(900), d.SecPerWindow)
	assert.Equal(t, []byte{'Q', 'H', 'D', 'M', 'Y'}, d.GranularityChar)
	assert.Equal(t, []int{4, 4, 6, 2, 1}, d.BucketCount)
	assert.Equal(t, 17, d.NumBuckets)
	assert.Equal(t, "900:QQQQHHHHDDDDDDMMY", d.Serialize())
}

func TestParseDefinition_RejectsMissingColon(t *testing.T) {
	_, err := ParseDefinition("900QQQQ")
	assert.ErrorIs(t, err, ErrInvalidDefinition)
}

func TestParseDefinition_RejectsEmptyGranularities(t *testing.T) {
	_, err := ParseDefinition("900:")
	assert.ErrorIs(t, err, ErrInvalidDefinition)
}

func TestParseDefinition_RejectsBadSecPerWindow(t *testing.T) {
	_, err := ParseDefinition("abc:QQQQ")
	assert.ErrorIs(t, err, ErrInvalidDefinition)
}

func TestNewDefinition_RejectsZeroBucketCount(t *testing.T) {
	_, err := NewDefinition(900, []byte{'Q', 'H'}, []int{4, 0})
	assert.ErrorIs(t, err, ErrInvalidDefinition)
}

func TestNewDefinition_RejectsMismatchedLengths(t *testing.T) {
	_, err := NewDefinition(900, []byte{'Q', 'H'}, []int{4})
	assert.ErrorIs(t, err, ErrInvalidDefinition)
}

func TestDefinition_GranularityOfAndBucketIsBeforeGranularity(t *testing.T) {
	d := defaultTestDefinition(t)

	assert.Equal(t, 0, d.GranularityOf(0))
	assert.Equal(t, 0, d.GranularityOf(3))
	assert.Equal(t, 1, d.GranularityOf(4))
	assert.Equal(t, 4, d.GranularityOf(d.NumBuckets-1))

	assert.True(t, d.BucketIsBeforeGranularity(3, 1))
	assert.False(t, d.BucketIsBeforeGranularity(4, 1))
}

func TestDefinition_FindLowestGranularityAfterBucket(t *testing.T) {
	d := defaultTestDefinition(t)

	assert.Equal(t, 1, d.FindLowestGranularityAfterBucket(0))
	assert.Equal(t, d.NumGranularities(), d.FindLowestGranularityAfterBucket(d.NumBuckets-1))
}

func TestDefinition_TimeOfNextBucket(t *testing.T) {
	d := defaultTestDefinition(t)

	assert.Equal(t, uint64(900), d.TimeOfNextBucket(0))
	assert.Equal(t, uint64(900), d.TimeOfNextBucket(899))
	assert.Equal(t, uint64(1800), d.TimeOfNextBucket(900))
}

func TestDefinition_Equal(t *testing.T) {
	a := defaultTestDefinition(t)
	b := defaultTestDefinition(t)
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(nil))

	other, err := ParseDefinition("60:QQ")
	require.NoError(t, err)
	assert.False(t, a.Equal(other))
}

func TestLegacyV1Definition_ParsesWithoutPanicking(t *testing.T) {
	d := LegacyV1Definition()
	assert.Equal(t, uint64(900), d.SecPerWindow)
	assert.Equal(t, 72, d.NumBuckets)
}
