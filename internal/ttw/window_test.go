package ttw

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// defaultTestDefinition mirrors the canonical 900-second, 4Q/24H/31D/12M/1Y
// layout used throughout the component's test suite and spec scenario 1.
func defaultTestDefinition(t *testing.T) *Definition {
	def, err := NewDefinition(900,
		[]byte{'Q', 'H', 'D', 'M', 'Y'},
		[]int{4, 24, 31, 12, 1})
	require.NoError(t, err)
	return def
}

func TestWindow_Cascade(t *testing.T) {
	def := defaultTestDefinition(t)
	w := NewWindow(def)

	supportCounts := []int64{45, 67, 88, 93, 34, 49, 36, 97, 50, 50, 50, 50}
	for i := 3; i <= 23; i++ {
		supportCounts = append(supportCounts, 25, 25, 25, 25)
	}
	supportCounts = append(supportCounts, 10)
	supportCounts = append(supportCounts, 10, 10, 10, 20)
	supportCounts = append(supportCounts, 20, 20, 20, 30)

	// First hour.
	for i := 0; i < 4; i++ {
		w.Append(supportCounts[i], uint64(i+1))
	}
	require.Equal(t, []int64{93, 88, 67, 45}, w.GetBuckets(4))
	require.Equal(t, 3, w.GetOldestBucketFilled())
	require.Equal(t, uint64(4), w.LastUpdate())

	// Second hour.
	for i := 4; i < 8; i++ {
		w.Append(supportCounts[i], uint64(i+1))
	}
	require.Equal(t, []int64{97, 36, 49, 34, 293}, w.GetBuckets(5))
	require.Equal(t, 4, w.GetOldestBucketFilled())
	require.Equal(t, uint64(8), w.LastUpdate())

	// Third hour.
	for i := 8; i < 12; i++ {
		w.Append(supportCounts[i], uint64(i+1))
	}
	require.Equal(t, []int64{50, 50, 50, 50, 216, 293}, w.GetBuckets(6))
	require.Equal(t, 5, w.GetOldestBucketFilled())
	require.Equal(t, uint64(12), w.LastUpdate())

	// Hours 4-24.
	for i := 12; i < 96; i++ {
		w.Append(supportCounts[i], uint64(i+1))
	}
	want := []int64{25, 25, 25, 25}
	for i := 0; i < 20; i++ {
		want = append(want, 100)
	}
	want = append(want, 200, 216, 293, Unused)
	require.Equal(t, want, w.GetBuckets(28))
	require.Equal(t, 26, w.GetOldestBucketFilled())
	require.Equal(t, uint64(96), w.LastUpdate())

	// First quarter of the second day: the 24 hour buckets become full.
	w.Append(supportCounts[96], 97)
	want = []int64{10, Unused, Unused, Unused}
	for i := 0; i < 21; i++ {
		want = append(want, 100)
	}
	want = append(want, 200, 216, 293)
	require.Equal(t, want, w.GetBuckets(28))
	require.Equal(t, 27, w.GetOldestBucketFilled())
	require.Equal(t, uint64(97), w.LastUpdate())

	// Four more quarters: first hour of day two completes, tipping the day
	// bucket into existence.
	for i := 97; i < 101; i++ {
		w.Append(supportCounts[i], uint64(i+1))
	}
	want = []int64{20, Unused, Unused, Unused, 40}
	for i := 0; i < 23; i++ {
		want = append(want, Unused)
	}
	want = append(want, 2809)
	require.Equal(t, want, w.GetBuckets(29))
	require.Equal(t, 28, w.GetOldestBucketFilled())
	require.Equal(t, uint64(101), w.LastUpdate())

	// Four more quarters: second hour of day two completes. The high-water
	// mark must stay at 28, not rewind down to the hour granularity's
	// second slot.
	for i := 101; i < 105; i++ {
		w.Append(supportCounts[i], uint64(i+1))
	}
	require.Equal(t, 28, w.GetOldestBucketFilled())
	require.Equal(t, uint64(105), w.LastUpdate())

	// Drop tail starting at granularity 1 (H): only granularity 0 (Q)
	// survives untouched.
	w.DropTail(1)
	buckets := w.GetBuckets(def.NumBuckets)
	require.Equal(t, int64(30), buckets[0])
	for g := 1; g < def.NumBuckets; g++ {
		require.Equal(t, Unused, buckets[g], "bucket %d", g)
	}
	require.Equal(t, 3, w.GetOldestBucketFilled())
	require.Equal(t, uint64(105), w.LastUpdate())

	// Appending at the same updateID folds into slot 0 without advancing
	// lastUpdate.
	w.Append(100, 105)
	buckets = w.GetBuckets(def.NumBuckets)
	require.Equal(t, int64(130), buckets[0])
	require.Equal(t, uint64(105), w.LastUpdate())
}

func TestWindow_SlidingWindowSingleGranularity(t *testing.T) {
	def, err := NewDefinition(3600, []byte{'H'}, []int{4})
	require.NoError(t, err)
	w := NewWindow(def)

	supportCounts := []int64{1, 2, 3, 4, 5}
	for i := 0; i < 4; i++ {
		w.Append(supportCounts[i], uint64(i+1))
	}
	require.Equal(t, []int64{4, 3, 2, 1}, w.GetBuckets(4))
	require.Equal(t, 3, w.GetOldestBucketFilled())
	require.Equal(t, uint64(4), w.LastUpdate())

	w.Append(supportCounts[4], 5)
	require.Equal(t, []int64{5, 4, 3, 2}, w.GetBuckets(4))
	require.Equal(t, 3, w.GetOldestBucketFilled())
	require.Equal(t, uint64(5), w.LastUpdate())
}

func TestWindow_SlidingWindowDoubleGranularity(t *testing.T) {
	def, err := NewDefinition(3600, []byte{'Q', 'H'}, []int{4, 2})
	require.NoError(t, err)
	w := NewWindow(def)

	supportCounts := []int64{10, 10, 10, 10, 20, 20, 20, 20, 30, 30, 30, 30, 40}

	for i := 0; i < 12; i++ {
		w.Append(supportCounts[i], uint64(i+1))
	}
	require.Equal(t, []int64{30, 30, 30, 30, 80, 40}, w.GetBuckets(6))
	require.Equal(t, 5, w.GetOldestBucketFilled())
	require.Equal(t, uint64(12), w.LastUpdate())

	w.Append(supportCounts[12], 13)
	require.Equal(t, []int64{40, Unused, Unused, Unused, 120, 80}, w.GetBuckets(6))
	require.Equal(t, 5, w.GetOldestBucketFilled())
	require.Equal(t, uint64(13), w.LastUpdate())
}

func TestWindow_VariantMapRoundTrip(t *testing.T) {
	def := defaultTestDefinition(t)
	w := NewWindow(def)
	for i := int64(1); i <= 10; i++ {
		w.Append(i*5, uint64(i))
	}

	vm := w.ToVariantMap()
	restored := FromVariantMap(def, vm)

	require.Equal(t, w.GetBuckets(def.NumBuckets), restored.GetBuckets(def.NumBuckets))
	require.Equal(t, w.LastUpdate(), restored.LastUpdate())
	require.Equal(t, w.GetOldestBucketFilled(), restored.GetOldestBucketFilled())
}

func TestWindow_GetSupportForRangeTreatsUnusedAsZero(t *testing.T) {
	def := defaultTestDefinition(t)
	w := NewWindow(def)
	w.Append(10, 1)
	w.Append(20, 2)

	require.Equal(t, int64(30), w.GetSupportForRange(0, 3))
	require.Equal(t, int64(0), w.GetSupportForRange(2, 3))
}
