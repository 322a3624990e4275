package warp

// EditOp identifies a structural edit performed on the marker set.
type EditOp int

const (
	EditMarkerAdded EditOp = iota
	EditMarkerRemoved
	EditMarkerMoved
	EditQuantized
	EditTransientsDetected
	EditWarpReset
)

// String returns a human-readable edit operation name.
func (op EditOp) String() string {
	switch op {
	case EditMarkerAdded:
		return "MarkerAdded"
	case EditMarkerRemoved:
		return "MarkerRemoved"
	case EditMarkerMoved:
		return "MarkerMoved"
	case EditQuantized:
		return "Quantized"
	case EditTransientsDetected:
		return "TransientsDetected"
	case EditWarpReset:
		return "WarpReset"
	default:
		return "Unknown"
	}
}

// EditEvent describes one successful structural edit. Marker carries a value
// snapshot of the affected marker for single-marker operations and is the
// zero value for bulk operations (quantize, reset, transient detection).
type EditEvent struct {
	Op     EditOp
	Marker Marker
}

// EditObserver receives edit events after each successful structural edit.
// Observers exist for external consumers such as timeline views; rendering
// never depends on them. Callbacks run outside the processor lock, on the
// goroutine that performed the edit.
type EditObserver func(EditEvent)
