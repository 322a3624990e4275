package warp

import (
	"fmt"

	"github.com/google/uuid"
)

// Region is an immutable, derived view over two adjacent markers. Within a
// region the stretch ratio is constant; positions map between the original
// and warped domains by linear interpolation of the progress fraction.
//
// Regions are recomputed from scratch whenever the marker set changes and
// capture marker positions at construction time, so a Region handed out to
// a caller stays internally consistent even while edits continue.
type Region struct {
	startID, endID MarkerIdentity

	startOriginal int
	endOriginal   int
	startWarped   float64
	endWarped     float64
}

// MarkerIdentity pairs a marker's ID with its type for region inspection.
type MarkerIdentity struct {
	ID   uuid.UUID
	Type MarkerType
}

// NewRegion derives a region from two markers. The end marker must lie
// strictly after the start marker in the original domain; a degenerate
// span is a hard construction error.
func NewRegion(start, end *Marker) (*Region, error) {
	if start == nil || end == nil {
		return nil, fmt.Errorf("region markers must not be nil")
	}
	if end.originalPos <= start.originalPos {
		return nil, fmt.Errorf("region end marker must lie after start marker: start=%d end=%d",
			start.originalPos, end.originalPos)
	}

	return &Region{
		startID:       MarkerIdentity{ID: start.id, Type: start.markerType},
		endID:         MarkerIdentity{ID: end.id, Type: end.markerType},
		startOriginal: start.originalPos,
		endOriginal:   end.originalPos,
		startWarped:   start.warpedPos,
		endWarped:     end.warpedPos,
	}, nil
}

// StartMarker returns the identity of the region's start marker.
func (r *Region) StartMarker() MarkerIdentity { return r.startID }

// EndMarker returns the identity of the region's end marker.
func (r *Region) EndMarker() MarkerIdentity { return r.endID }

// StartOriginal returns the region start in the original domain, in samples.
func (r *Region) StartOriginal() int { return r.startOriginal }

// EndOriginal returns the region end in the original domain, in samples.
func (r *Region) EndOriginal() int { return r.endOriginal }

// StartWarped returns the region start on the warped timeline, in samples.
func (r *Region) StartWarped() float64 { return r.startWarped }

// EndWarped returns the region end on the warped timeline, in samples.
func (r *Region) EndWarped() float64 { return r.endWarped }

// OriginalDuration returns the region length in original samples.
func (r *Region) OriginalDuration() int {
	return r.endOriginal - r.startOriginal
}

// WarpedDuration returns the region length in warped samples.
func (r *Region) WarpedDuration() float64 {
	return r.endWarped - r.startWarped
}

// StretchRatio returns original duration divided by warped duration.
// A ratio above 1 plays the material faster; below 1 plays it slower.
// A zero warped duration yields 1.0.
func (r *Region) StretchRatio() float64 {
	warpedDur := r.WarpedDuration()
	if warpedDur == 0 {
		return 1.0
	}

	return float64(r.OriginalDuration()) / warpedDur
}

// ContainsOriginal reports whether pos lies in the half-open original span
// [start, end).
func (r *Region) ContainsOriginal(pos float64) bool {
	return pos >= float64(r.startOriginal) && pos < float64(r.endOriginal)
}

// ContainsWarped reports whether pos lies in the half-open warped span
// [start, end).
func (r *Region) ContainsWarped(pos float64) bool {
	return pos >= r.startWarped && pos < r.endWarped
}

// WarpedToOriginal maps a warped position into the original domain by
// linear interpolation of the progress fraction within the region.
func (r *Region) WarpedToOriginal(pos float64) float64 {
	warpedDur := r.WarpedDuration()
	if warpedDur == 0 {
		return float64(r.startOriginal)
	}

	progress := (pos - r.startWarped) / warpedDur

	return float64(r.startOriginal) + progress*float64(r.OriginalDuration())
}

// OriginalToWarped maps an original position onto the warped timeline by
// linear interpolation of the progress fraction within the region.
func (r *Region) OriginalToWarped(pos float64) float64 {
	origDur := r.OriginalDuration()
	if origDur == 0 {
		return r.startWarped
	}

	progress := (pos - float64(r.startOriginal)) / float64(origDur)

	return r.startWarped + progress*r.WarpedDuration()
}
