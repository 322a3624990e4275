package warp

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/cwbudde/algo-warp/tempo"
	"github.com/cwbudde/algo-warp/warp/transient"
	"github.com/google/uuid"
)

const (
	defaultProcessorSampleRate = 44100.0
	defaultProcessorBPM        = 120.0

	// Transient detection skips events landing within this window of an
	// existing marker, so repeated detection runs stay idempotent.
	defaultTransientToleranceMs = 10.0
)

// Processor owns a marker timeline over a fixed-length recording and the
// region list derived from it. All structural edits re-sort the markers and
// rebuild the regions as a fresh snapshot; mapping queries and edits share
// one coarse lock.
type Processor struct {
	mu sync.Mutex

	sampleRate    float64
	bpm           float64
	totalOriginal int

	markers   []*Marker
	regions   []*Region
	observers []EditObserver
}

// Option configures a Processor.
type Option func(*processorConfig)

type processorConfig struct {
	sampleRate float64
	bpm        float64
}

// WithSampleRate sets the sample rate used for time and beat conversions.
func WithSampleRate(sampleRate float64) Option {
	return func(cfg *processorConfig) {
		if sampleRate > 0 {
			cfg.sampleRate = sampleRate
		}
	}
}

// WithBPM sets the project tempo used for beat-domain operations.
func WithBPM(bpm float64) Option {
	return func(cfg *processorConfig) {
		if bpm > 0 {
			cfg.bpm = bpm
		}
	}
}

// NewProcessor creates a processor over a recording of the given length.
// It starts with the identity warp: a locked Start marker at position 0 and
// an End marker pinning totalOriginalSamples to itself.
func NewProcessor(totalOriginalSamples int, opts ...Option) (*Processor, error) {
	if totalOriginalSamples <= 0 {
		return nil, fmt.Errorf("warp processor total original samples must be > 0: %d", totalOriginalSamples)
	}

	cfg := processorConfig{
		sampleRate: defaultProcessorSampleRate,
		bpm:        defaultProcessorBPM,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	start, err := NewMarker(0, 0, MarkerStart)
	if err != nil {
		return nil, err
	}

	end, err := NewMarker(totalOriginalSamples, float64(totalOriginalSamples), MarkerEnd)
	if err != nil {
		return nil, err
	}

	p := &Processor{
		sampleRate:    cfg.sampleRate,
		bpm:           cfg.bpm,
		totalOriginal: totalOriginalSamples,
		markers:       []*Marker{start, end},
	}

	if err := p.rebuildRegionsLocked(); err != nil {
		return nil, err
	}

	return p, nil
}

// SampleRate returns the sample rate in Hz.
func (p *Processor) SampleRate() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.sampleRate
}

// BPM returns the project tempo in beats per minute.
func (p *Processor) BPM() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.bpm
}

// SetBPM updates the project tempo used for beat-domain operations.
func (p *Processor) SetBPM(bpm float64) error {
	if err := tempo.Validate(bpm, p.SampleRate()); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.bpm = bpm

	return nil
}

// TotalOriginalSamples returns the length of the original recording.
func (p *Processor) TotalOriginalSamples() int {
	return p.totalOriginal
}

// TotalWarpedSamples returns the warped position of the End marker, which
// is the total length of the warped timeline.
func (p *Processor) TotalWarpedSamples() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.totalWarpedLocked()
}

// OverallStretchRatio returns totalOriginalSamples / totalWarpedSamples.
// A zero warped length yields 1.0.
func (p *Processor) OverallStretchRatio() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	totalWarped := p.totalWarpedLocked()
	if totalWarped == 0 {
		return 1.0
	}

	return float64(p.totalOriginal) / totalWarped
}

// MarkerCount returns the number of markers including the Start/End anchors.
func (p *Processor) MarkerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.markers)
}

// Markers returns a value snapshot of all markers ordered by original position.
func (p *Processor) Markers() []Marker {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Marker, len(p.markers))
	for i, m := range p.markers {
		out[i] = m.copyKeepID()
	}

	return out
}

// MarkerByID returns a value snapshot of the marker with the given identity.
func (p *Processor) MarkerByID(id uuid.UUID) (Marker, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx := p.indexOfLocked(id)
	if idx < 0 {
		return Marker{}, false
	}

	return p.markers[idx].copyKeepID(), true
}

// Regions returns the current derived region snapshot, ordered by position.
func (p *Processor) Regions() []*Region {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]*Region, len(p.regions))
	copy(out, p.regions)

	return out
}

// OnEdit registers an observer called after each successful structural edit.
func (p *Processor) OnEdit(obs EditObserver) {
	if obs == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, obs)
}

// AddMarker inserts a marker pinning originalPos to warpedPos and rebuilds
// the regions. It reports failure without changing state when the insertion
// would duplicate the Start/End anchors, fall outside the warpable span,
// collide with an existing marker's original position, or break the
// monotonic ordering of warped positions.
func (p *Processor) AddMarker(originalPos int, warpedPos float64, t MarkerType) (Marker, bool) {
	if t.IsAnchor() || warpedPos < 0 {
		return Marker{}, false
	}
	if originalPos <= 0 || originalPos >= p.totalOriginal {
		return Marker{}, false
	}

	p.mu.Lock()

	idx := sort.Search(len(p.markers), func(i int) bool {
		return p.markers[i].originalPos >= originalPos
	})
	if idx < len(p.markers) && p.markers[idx].originalPos == originalPos {
		p.mu.Unlock()
		return Marker{}, false
	}

	prev := p.markers[idx-1]
	next := p.markers[idx]
	if warpedPos < prev.warpedPos || warpedPos > next.warpedPos {
		p.mu.Unlock()
		return Marker{}, false
	}

	m, err := NewMarker(originalPos, warpedPos, t)
	if err != nil {
		p.mu.Unlock()
		return Marker{}, false
	}

	p.markers = append(p.markers, nil)
	copy(p.markers[idx+1:], p.markers[idx:])
	p.markers[idx] = m

	if err := p.rebuildRegionsLocked(); err != nil {
		// Roll back the insertion; the previous state was valid.
		p.markers = append(p.markers[:idx], p.markers[idx+1:]...)
		_ = p.rebuildRegionsLocked()
		p.mu.Unlock()

		return Marker{}, false
	}

	snapshot := m.copyKeepID()
	observers := p.observersLocked()
	p.mu.Unlock()

	notify(observers, EditEvent{Op: EditMarkerAdded, Marker: snapshot})

	return snapshot, true
}

// RemoveMarker deletes the marker with the given identity and rebuilds the
// regions. Locked markers and the Start/End anchors cannot be removed.
func (p *Processor) RemoveMarker(id uuid.UUID) bool {
	p.mu.Lock()

	idx := p.indexOfLocked(id)
	if idx < 0 {
		p.mu.Unlock()
		return false
	}

	m := p.markers[idx]
	if m.locked || m.markerType.IsAnchor() {
		p.mu.Unlock()
		return false
	}

	snapshot := m.copyKeepID()
	p.markers = append(p.markers[:idx], p.markers[idx+1:]...)
	_ = p.rebuildRegionsLocked()

	observers := p.observersLocked()
	p.mu.Unlock()

	notify(observers, EditEvent{Op: EditMarkerRemoved, Marker: snapshot})

	return true
}

// MoveMarker moves a marker to a new warped position and rebuilds the
// regions. Locked markers cannot move; the End anchor may move to rescale
// the overall warped length. A move that would cross the warped position of
// an adjacent marker fails and leaves all positions unchanged.
func (p *Processor) MoveMarker(id uuid.UUID, newWarpedPos float64) bool {
	p.mu.Lock()

	idx := p.indexOfLocked(id)
	if idx < 0 || newWarpedPos < 0 {
		p.mu.Unlock()
		return false
	}

	m := p.markers[idx]
	if m.locked {
		p.mu.Unlock()
		return false
	}

	if idx > 0 && newWarpedPos <= p.markers[idx-1].warpedPos {
		p.mu.Unlock()
		return false
	}
	if idx < len(p.markers)-1 && newWarpedPos >= p.markers[idx+1].warpedPos {
		p.mu.Unlock()
		return false
	}

	m.warpedPos = newWarpedPos
	_ = p.rebuildRegionsLocked()

	snapshot := m.copyKeepID()
	observers := p.observersLocked()
	p.mu.Unlock()

	notify(observers, EditEvent{Op: EditMarkerMoved, Marker: snapshot})

	return true
}

// SetEndWarped moves the End anchor to rescale the warped length of the
// final region. Same rules as MoveMarker: the position must stay strictly
// after the preceding marker.
func (p *Processor) SetEndWarped(pos float64) bool {
	p.mu.Lock()
	id := p.markers[len(p.markers)-1].id
	p.mu.Unlock()

	return p.MoveMarker(id, pos)
}

// WarpedPosBeats returns a marker's warped position in beats at the
// processor tempo. The second return is false when the marker is unknown.
func (p *Processor) WarpedPosBeats(id uuid.UUID) (float64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx := p.indexOfLocked(id)
	if idx < 0 {
		return 0, false
	}

	return tempo.SamplesToBeats(p.markers[idx].warpedPos, p.bpm, p.sampleRate), true
}

// QuantizeToGrid snaps every movable marker's warped position to the
// nearest multiple of resolutionBeats on the musical grid, then rebuilds
// the regions. Positions are kept non-decreasing: a marker that would snap
// behind its predecessor is clamped onto it, leaving a zero-length warped
// span whose ratio resolves to 1.0.
func (p *Processor) QuantizeToGrid(resolutionBeats float64) bool {
	if resolutionBeats <= 0 {
		return false
	}

	p.mu.Lock()

	changed := false
	for i, m := range p.markers {
		if m.locked || m.markerType == MarkerStart {
			continue
		}

		beats := tempo.SamplesToBeats(m.warpedPos, p.bpm, p.sampleRate)
		snapped := math.Round(beats/resolutionBeats) * resolutionBeats
		pos := tempo.BeatsToSamples(snapped, p.bpm, p.sampleRate)

		if i > 0 && pos < p.markers[i-1].warpedPos {
			pos = p.markers[i-1].warpedPos
		}

		if pos != m.warpedPos {
			m.warpedPos = pos
			changed = true
		}
	}

	if !changed {
		p.mu.Unlock()
		return true
	}

	_ = p.rebuildRegionsLocked()

	observers := p.observersLocked()
	p.mu.Unlock()

	notify(observers, EditEvent{Op: EditQuantized})

	return true
}

// DetectTransients runs the detector over a mono rendition of the original
// audio and inserts a Transient marker for each event that is not already
// covered by an existing marker within a ~10 ms tolerance window. Inserted
// markers keep the current position mapping, so detection alone introduces
// no stretch. It returns the number of markers added.
//
// Detection itself runs outside the lock and may be arbitrarily slow; only
// the marker merge is serialized against other edits.
func (p *Processor) DetectTransients(mono []float64, det transient.Detector) int {
	if det == nil || len(mono) == 0 {
		return 0
	}

	events := det.Detect(mono, p.SampleRate())
	if len(events) == 0 {
		return 0
	}

	p.mu.Lock()

	tolerance := defaultTransientToleranceMs / 1000.0 * p.sampleRate
	added := 0

	for _, ev := range events {
		originalPos := int(math.Round(ev.TimeSeconds * p.sampleRate))
		if originalPos <= 0 || originalPos >= p.totalOriginal {
			continue
		}

		if p.hasMarkerNearLocked(originalPos, tolerance) {
			continue
		}

		warpedPos := p.originalToWarpedLocked(float64(originalPos))

		idx := sort.Search(len(p.markers), func(i int) bool {
			return p.markers[i].originalPos >= originalPos
		})

		m, err := NewMarker(originalPos, warpedPos, MarkerTransient)
		if err != nil {
			continue
		}
		m.SetTransientStrength(ev.Strength)

		p.markers = append(p.markers, nil)
		copy(p.markers[idx+1:], p.markers[idx:])
		p.markers[idx] = m
		added++
	}

	if added == 0 {
		p.mu.Unlock()
		return 0
	}

	_ = p.rebuildRegionsLocked()

	observers := p.observersLocked()
	p.mu.Unlock()

	notify(observers, EditEvent{Op: EditTransientsDetected})

	return added
}

// ResetWarp sets every movable marker's warped position equal to its
// original position, restoring the identity mapping while preserving
// marker placement.
func (p *Processor) ResetWarp() {
	p.mu.Lock()

	for _, m := range p.markers {
		if m.locked {
			continue
		}
		m.warpedPos = float64(m.originalPos)
	}

	_ = p.rebuildRegionsLocked()

	observers := p.observersLocked()
	p.mu.Unlock()

	notify(observers, EditEvent{Op: EditWarpReset})
}

// WarpedToOriginal maps a warped-timeline position to the corresponding
// fractional position in the original recording. Positions outside all
// regions fall back to the global linear mapping.
func (p *Processor) WarpedToOriginal(pos float64) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.warpedToOriginalLocked(pos)
}

// OriginalToWarped maps an original-recording position onto the warped
// timeline. Positions outside all regions fall back to the global linear
// mapping.
func (p *Processor) OriginalToWarped(pos float64) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.originalToWarpedLocked(pos)
}

// StretchRatioAt returns the stretch ratio of the region containing the
// warped position, or 1.0 when no region contains it.
func (p *Processor) StretchRatioAt(warpedPos float64) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	if r := p.regionAtWarpedLocked(warpedPos); r != nil {
		return r.StretchRatio()
	}

	return 1.0
}

func (p *Processor) totalWarpedLocked() float64 {
	return p.markers[len(p.markers)-1].warpedPos
}

func (p *Processor) indexOfLocked(id uuid.UUID) int {
	for i, m := range p.markers {
		if m.id == id {
			return i
		}
	}

	return -1
}

func (p *Processor) observersLocked() []EditObserver {
	if len(p.observers) == 0 {
		return nil
	}

	out := make([]EditObserver, len(p.observers))
	copy(out, p.observers)

	return out
}

func (p *Processor) hasMarkerNearLocked(originalPos int, tolerance float64) bool {
	for _, m := range p.markers {
		if math.Abs(float64(m.originalPos-originalPos)) <= tolerance {
			return true
		}
	}

	return false
}

// rebuildRegionsLocked recomputes the region snapshot from the sorted
// marker list. Markers sharing an original position cannot occur by
// construction, so every adjacent pair yields a valid region.
func (p *Processor) rebuildRegionsLocked() error {
	regions := make([]*Region, 0, len(p.markers)-1)

	for i := 1; i < len(p.markers); i++ {
		r, err := NewRegion(p.markers[i-1], p.markers[i])
		if err != nil {
			return err
		}
		regions = append(regions, r)
	}

	p.regions = regions

	return nil
}

func (p *Processor) regionAtWarpedLocked(pos float64) *Region {
	idx := sort.Search(len(p.regions), func(i int) bool {
		return p.regions[i].endWarped > pos
	})
	if idx < len(p.regions) && p.regions[idx].ContainsWarped(pos) {
		return p.regions[idx]
	}

	return nil
}

func (p *Processor) regionAtOriginalLocked(pos float64) *Region {
	idx := sort.Search(len(p.regions), func(i int) bool {
		return float64(p.regions[i].endOriginal) > pos
	})
	if idx < len(p.regions) && p.regions[idx].ContainsOriginal(pos) {
		return p.regions[idx]
	}

	return nil
}

func (p *Processor) warpedToOriginalLocked(pos float64) float64 {
	if r := p.regionAtWarpedLocked(pos); r != nil {
		return r.WarpedToOriginal(pos)
	}

	totalWarped := p.totalWarpedLocked()
	if totalWarped == 0 {
		return pos
	}

	return pos * float64(p.totalOriginal) / totalWarped
}

func (p *Processor) originalToWarpedLocked(pos float64) float64 {
	if r := p.regionAtOriginalLocked(pos); r != nil {
		return r.OriginalToWarped(pos)
	}

	if p.totalOriginal == 0 {
		return pos
	}

	return pos * p.totalWarpedLocked() / float64(p.totalOriginal)
}

func notify(observers []EditObserver, ev EditEvent) {
	for _, obs := range observers {
		obs(ev)
	}
}
