package ttw

// Unused marks an empty slot in a Window's bucket array.
const Unused int64 = -1

// Window is a fixed-length array of SupportCount slots laid out per a
// Definition, plus per-granularity usage counters and the updateID of the
// most recent append. It is the per-pattern compressed time series a
// Pattern Tree node carries.
type Window struct {
	def           *Definition
	buckets       []int64
	usage         []int
	lastUpdate    uint64
	hasLastUpdate bool
	oldestFilled  int // high-water mark bucket index, -1 if never filled
}

// NewWindow allocates an empty Window for the given definition.
func NewWindow(def *Definition) *Window {
	buckets := make([]int64, def.NumBuckets)
	for i := range buckets {
		buckets[i] = Unused
	}
	return &Window{
		def:          def,
		buckets:      buckets,
		usage:        make([]int, def.NumGranularities()),
		oldestFilled: -1,
	}
}

// Definition returns the layout this window was built from.
func (w *Window) Definition() *Definition { return w.def }

// LastUpdate returns the updateID of the most recent Append call.
func (w *Window) LastUpdate() uint64 { return w.lastUpdate }

// HasData reports whether Append has ever been called on w. A Window
// created as path scaffolding (a Pattern Tree node that was never itself
// the target of addPattern) never satisfies this. A Window rebuilt by
// FromVariantMap always does.
func (w *Window) HasData() bool { return w.hasLastUpdate }

// UsageOf returns the number of slots of granularity g that currently hold
// real data.
func (w *Window) UsageOf(g int) int {
	if g < 0 || g >= len(w.usage) {
		return 0
	}
	return w.usage[g]
}

// Append records support at updateID. If updateID equals the window's
// current lastUpdate, support is folded into slot 0 of granularity 0
// without advancing lastUpdate. Otherwise a shift-cascade runs: granularity
// 0 takes the new value at its front slot; once granularity 0 is full, the
// sum of all its slots is appended to granularity 1 and granularity 0 is
// cleared before taking the new value, and so on; the coarsest granularity
// is a plain sliding window whose oldest slot is lost.
func (w *Window) Append(support int64, updateID uint64) {
	if w.hasLastUpdate && updateID == w.lastUpdate {
		if w.buckets[0] == Unused {
			w.buckets[0] = support
		} else {
			w.buckets[0] += support
		}
		if w.usage[0] == 0 {
			w.usage[0] = 1
		}
		w.bumpOldest(0)
		return
	}
	w.cascadeAppend(support, 0)
	w.lastUpdate = updateID
	w.hasLastUpdate = true
}

func (w *Window) cascadeAppend(value int64, g int) {
	if g >= len(w.def.BucketCount) {
		return // falls off the coarsest granularity: lost, by design.
	}
	offset := w.def.BucketOffset[g]
	capacity := w.def.BucketCount[g]

	if w.usage[g] < capacity {
		for i := w.usage[g]; i > 0; i-- {
			w.buckets[offset+i] = w.buckets[offset+i-1]
		}
		w.buckets[offset] = value
		w.usage[g]++
		w.bumpOldest(offset + w.usage[g] - 1)
		return
	}

	isCoarsest := g == len(w.def.BucketCount)-1
	if isCoarsest {
		// The coarsest granularity has nowhere to cascade into: it is a
		// plain sliding window. The oldest slot's value is discarded, not
		// summed, once the window is full.
		for i := capacity - 1; i > 0; i-- {
			w.buckets[offset+i] = w.buckets[offset+i-1]
		}
		w.buckets[offset] = value
		w.bumpOldest(offset + capacity - 1)
		return
	}

	var sum int64
	for i := 0; i < capacity; i++ {
		if v := w.buckets[offset+i]; v != Unused {
			sum += v
		}
	}
	w.cascadeAppend(sum, g+1)

	for i := 1; i < capacity; i++ {
		w.buckets[offset+i] = Unused
	}
	w.buckets[offset] = value
	w.usage[g] = 1
	w.bumpOldest(offset)
}

func (w *Window) bumpOldest(idx int) {
	if idx > w.oldestFilled {
		w.oldestFilled = idx
	}
}

// DropTail resets every granularity at index >= g to Unused, leaving
// granularities 0..g-1 untouched. lastUpdate is unchanged. Dropping the
// tail is a real reduction of what is filled: the oldest-filled high-water
// mark becomes the last index of the final surviving granularity
// (bucketOffset[g]-1), independent of how warmed-up that granularity's
// usage actually is, since a kept granularity is treated as settled. This
// differs from a cascade reset, which never lowers the mark.
func (w *Window) DropTail(g int) {
	if g < 0 {
		g = 0
	}
	for gi := g; gi < len(w.def.BucketCount); gi++ {
		offset := w.def.BucketOffset[gi]
		capacity := w.def.BucketCount[gi]
		for i := 0; i < capacity; i++ {
			w.buckets[offset+i] = Unused
		}
		w.usage[gi] = 0
	}

	newOldest := -1
	if g > 0 && g <= len(w.def.BucketOffset) {
		newOldest = w.def.BucketOffset[g-1] + w.def.BucketCount[g-1] - 1
	}
	w.oldestFilled = newOldest
}

// GetSupportForRange sums the stored values in slots [from, to] inclusive,
// treating Unused as 0.
func (w *Window) GetSupportForRange(from, to int) int64 {
	if from < 0 {
		from = 0
	}
	if to >= len(w.buckets) {
		to = len(w.buckets) - 1
	}
	var total int64
	for i := from; i <= to; i++ {
		if v := w.buckets[i]; v != Unused {
			total += v
		}
	}
	return total
}

// GetSupportForGranularity sums the slots belonging to granularity g.
func (w *Window) GetSupportForGranularity(g int) int64 {
	if g < 0 || g >= len(w.def.BucketCount) {
		return 0
	}
	offset := w.def.BucketOffset[g]
	return w.GetSupportForRange(offset, offset+w.def.BucketCount[g]-1)
}

// GetBuckets returns the first n slot values, preserving Unused sentinels.
// n is clamped to the window's total bucket count.
func (w *Window) GetBuckets(n int) []int64 {
	if n > len(w.buckets) {
		n = len(w.buckets)
	}
	if n < 0 {
		n = 0
	}
	out := make([]int64, n)
	copy(out, w.buckets[:n])
	return out
}

// GetOldestBucketFilled returns the highest bucket index filled so far, or 0
// if the window has never been written. Appends never lower this mark, even
// when a cascade clears the buckets below it; DropTail resets it as
// described there.
func (w *Window) GetOldestBucketFilled() int {
	if w.oldestFilled < 0 {
		return 0
	}
	return w.oldestFilled
}

// VariantMap is the serializable representation of a Window, matching the
// persisted-state contract: lastUpdate, per-granularity usage counts (named
// oldestBucketFilled for continuity with the historical wire format), and
// the raw slot array.
type VariantMap struct {
	LastUpdate         uint64  `json:"lastUpdate"`
	OldestBucketFilled []int   `json:"oldestBucketFilled"`
	Buckets            []int64 `json:"buckets"`
}

// ToVariantMap produces the serializable snapshot of w.
func (w *Window) ToVariantMap() VariantMap {
	return VariantMap{
		LastUpdate:         w.lastUpdate,
		OldestBucketFilled: append([]int(nil), w.usage...),
		Buckets:            append([]int64(nil), w.buckets...),
	}
}

// FromVariantMap reconstructs a Window of the given definition from a
// previously serialized snapshot.
func FromVariantMap(def *Definition, vm VariantMap) *Window {
	w := NewWindow(def)
	n := len(vm.Buckets)
	if n > len(w.buckets) {
		n = len(w.buckets)
	}
	copy(w.buckets, vm.Buckets[:n])
	for g := 0; g < len(w.usage) && g < len(vm.OldestBucketFilled); g++ {
		w.usage[g] = vm.OldestBucketFilled[g]
	}
	w.lastUpdate = vm.LastUpdate
	w.hasLastUpdate = true

	w.oldestFilled = -1
	for g, offset := range w.def.BucketOffset {
		if w.usage[g] > 0 {
			idx := offset + w.usage[g] - 1
			if idx > w.oldestFilled {
				w.oldestFilled = idx
			}
		}
	}
	return w
}
