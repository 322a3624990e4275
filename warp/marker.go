package warp

import (
	"fmt"

	"github.com/google/uuid"
)

// MarkerType identifies the role of a warp marker on the timeline.
type MarkerType int

const (
	// MarkerStart anchors the beginning of the warpable span. Always locked.
	MarkerStart MarkerType = iota
	// MarkerEnd anchors the end of the warpable span. Movable to rescale
	// the overall warped length.
	MarkerEnd
	// MarkerUser is a manually placed marker.
	MarkerUser
	// MarkerBeat is a marker placed on a musical grid position.
	MarkerBeat
	// MarkerTransient is a marker placed by transient detection.
	MarkerTransient
)

// String returns a human-readable marker type name.
func (t MarkerType) String() string {
	switch t {
	case MarkerStart:
		return "Start"
	case MarkerEnd:
		return "End"
	case MarkerUser:
		return "User"
	case MarkerBeat:
		return "Beat"
	case MarkerTransient:
		return "Transient"
	default:
		return fmt.Sprintf("MarkerType(%d)", int(t))
	}
}

// IsAnchor reports whether markers of this type bound the warpable span.
func (t MarkerType) IsAnchor() bool {
	return t == MarkerStart || t == MarkerEnd
}

func (t MarkerType) lockedByDefault() bool {
	return t == MarkerStart
}

// Marker pins one sample position in the original recording to one position
// on the warped timeline. The original position is fixed once the audio
// length is known; the warped position moves as the user stretches time.
type Marker struct {
	id          uuid.UUID
	markerType  MarkerType
	originalPos int
	warpedPos   float64
	locked      bool
	strength    float64
}

// NewMarker creates a marker pinning originalPos to warpedPos.
// Both positions must be non-negative; violating that is a programming
// error and fails construction.
func NewMarker(originalPos int, warpedPos float64, t MarkerType) (*Marker, error) {
	if originalPos < 0 {
		return nil, fmt.Errorf("marker original position must be >= 0: %d", originalPos)
	}
	if warpedPos < 0 {
		return nil, fmt.Errorf("marker warped position must be >= 0: %f", warpedPos)
	}

	return &Marker{
		id:          uuid.New(),
		markerType:  t,
		originalPos: originalPos,
		warpedPos:   warpedPos,
		locked:      t.lockedByDefault(),
	}, nil
}

// ID returns the marker's stable unique identity. IDs are never reused.
func (m *Marker) ID() uuid.UUID { return m.id }

// Type returns the marker type.
func (m *Marker) Type() MarkerType { return m.markerType }

// OriginalPos returns the pinned position in the original recording, in samples.
func (m *Marker) OriginalPos() int { return m.originalPos }

// WarpedPos returns the position on the warped timeline, in samples.
func (m *Marker) WarpedPos() float64 { return m.warpedPos }

// Locked reports whether the marker's warped position may not be moved.
func (m *Marker) Locked() bool { return m.locked }

// SetLocked updates the lock flag. The Start anchor stays locked regardless.
func (m *Marker) SetLocked(locked bool) {
	if m.markerType == MarkerStart {
		m.locked = true
		return
	}
	m.locked = locked
}

// TransientStrength returns the detection strength in [0, 1].
// Only meaningful for Transient markers.
func (m *Marker) TransientStrength() float64 { return m.strength }

// SetTransientStrength stores a detection strength, clamped to [0, 1].
func (m *Marker) SetTransientStrength(strength float64) {
	if strength < 0 {
		strength = 0
	}
	if strength > 1 {
		strength = 1
	}
	m.strength = strength
}

// SetWarpedPos moves the marker to an absolute warped position.
// Moving a locked marker or moving to a negative position is a no-op that
// reports failure.
func (m *Marker) SetWarpedPos(pos float64) bool {
	if m.locked || pos < 0 {
		return false
	}

	m.warpedPos = pos

	return true
}

// MoveWarped moves the marker's warped position by delta samples.
// Moving a locked marker is a no-op that reports failure.
func (m *Marker) MoveWarped(delta float64) bool {
	return m.SetWarpedPos(m.warpedPos + delta)
}

// StretchRatioFrom returns the local stretch ratio of the span between prev
// and this marker: original duration divided by warped duration. A zero or
// negative warped duration yields 1.0.
func (m *Marker) StretchRatioFrom(prev *Marker) float64 {
	if prev == nil {
		return 1.0
	}

	warpedDur := m.warpedPos - prev.warpedPos
	if warpedDur <= 0 {
		return 1.0
	}

	return float64(m.originalPos-prev.originalPos) / warpedDur
}

// Clone returns a copy of the marker carrying a fresh identity.
func (m *Marker) Clone() *Marker {
	c := *m
	c.id = uuid.New()

	return &c
}

// copyKeepID returns a value copy preserving identity, for snapshots.
func (m *Marker) copyKeepID() Marker {
	return *m
}
