package engine

import "github.com/streamminer/streamminer/internal/ttw"

// calculateDroppableTail scans w's granularities from coarsest to finest and
// returns the finest granularity index of the droppable tail; everything at
// index >= the result should be dropped via w.DropTail, and everything below
// it kept. It returns numGranularities if nothing is droppable.
//
// A granularity g is droppable iff S_g < maxSupportError*E_g (using <=
// instead when strict is false, per the engine's StrictTailDrop setting)
// AND every coarser granularity was also droppable — the scan stops at the
// first granularity (from the coarsest end) that fails the test.
func calculateDroppableTail(w *ttw.Window, eventsPerBatch *ttw.Window, maxSupportError float64, strict bool) int {
	def := w.Definition()
	n := def.NumGranularities()

	keep := n
	for g := n - 1; g >= 0; g-- {
		supportG := w.GetSupportForGranularity(g)
		eventsG := eventsPerBatch.GetSupportForGranularity(g)
		threshold := maxSupportError * float64(eventsG)

		droppable := float64(supportG) < threshold
		if !strict {
			droppable = float64(supportG) <= threshold
		}
		if !droppable {
			return keep
		}
		keep = g
	}
	return keep
}
