package elastic

import (
	"fmt"
	"math"

	algofft "github.com/MeKo-Christian/algo-fft"
	"github.com/cwbudde/algo-warp/dsp/buffer"
	"github.com/cwbudde/algo-warp/dsp/interp"
	"github.com/cwbudde/algo-warp/dsp/window"
	"github.com/cwbudde/algo-warp/tempo"
	"github.com/cwbudde/algo-warp/warp"
)

const (
	defaultPlaybackSpeed = 1.0
	minPlaybackSpeed     = 0.1
	maxPlaybackSpeed     = 4.0

	// Ratio clamp for the DSP stage. The resample ring is sized for an
	// 8x stretch; faster-than-8x regions are rendered at the clamp and
	// the position mapping still lands every marker exactly.
	minRenderRatio = 0.125
	maxRenderRatio = 8.0

	inputRingFactor    = 2
	resampleRingFactor = 8
	preloadBlockFrames = 4096

	defaultTransientThreshold = 2.0
	transientEnergyFloor      = 1e-4
	transientHistoryAlpha     = 0.2
)

var _ Source = (*Engine)(nil)

// channelState holds the per-channel DSP buffers. All of it is reset on seek.
type channelState struct {
	input     *buffer.Buffer
	resample  *buffer.Buffer
	prevPhase []float64
	sumPhase  []float64
	energyAvg float64
}

// Engine renders a source recording at the piecewise-variable rate defined
// by a warp.Processor, preserving pitch via a short-time Fourier phase
// vocoder. It implements the same pull contract as Source, so the warped
// stream composes into any downstream consumer.
//
// The engine is single-owner: Read and Seek must be called from the same
// execution context (typically the audio render thread). Marker edits on
// the shared Processor may happen concurrently; the engine only queries it
// through its locked mapping API.
type Engine struct {
	src  Source
	proc *warp.Processor

	channels   int
	sampleRate float64

	quality     Quality
	windowType  window.Type
	fftSize     int
	analysisHop int
	overlap     int
	outputScale float64

	plan         *algofft.Plan[complex128]
	windowCoeffs []float64
	omega        []float64
	spectrum     []complex128
	timeFrame    []complex128

	// Deinterleaved source samples, pulled once at construction so the
	// render path never waits on the provider.
	source [][]float64

	chans []*channelState

	inputPos      int
	synthWritePos int
	readCursor    float64
	toNextFrame   int
	frameCount    int

	currentWarped  float64
	warpEnabled    bool
	transientReset bool
	transientRatio float64
	speed          float64
}

// Option configures an Engine.
type Option func(*engineConfig)

type engineConfig struct {
	quality        Quality
	windowType     window.Type
	transientReset bool
	transientRatio float64
	speed          float64
	warpEnabled    bool
}

// WithQuality selects the FFT quality preset.
func WithQuality(q Quality) Option {
	return func(cfg *engineConfig) {
		cfg.quality = q
	}
}

// WithWindowType selects the STFT window shape. The default is Hann.
func WithWindowType(t window.Type) Option {
	return func(cfg *engineConfig) {
		cfg.windowType = t
	}
}

// WithTransientPhaseReset enables or disables phase re-locking on detected
// attacks. Enabled by default.
func WithTransientPhaseReset(enabled bool) Option {
	return func(cfg *engineConfig) {
		cfg.transientReset = enabled
	}
}

// WithTransientThreshold sets the multiple of the rolling energy average an
// analysis frame must exceed to count as an attack.
func WithTransientThreshold(ratio float64) Option {
	return func(cfg *engineConfig) {
		if ratio > 1 {
			cfg.transientRatio = ratio
		}
	}
}

// WithPlaybackSpeed sets the global playback-speed multiplier.
func WithPlaybackSpeed(speed float64) Option {
	return func(cfg *engineConfig) {
		if speed >= minPlaybackSpeed && speed <= maxPlaybackSpeed {
			cfg.speed = speed
		}
	}
}

// WithWarpDisabled starts the engine in bypass mode: direct interpolated
// reads at the mapped original position, no spectral processing.
func WithWarpDisabled() Option {
	return func(cfg *engineConfig) {
		cfg.warpEnabled = false
	}
}

// NewEngine creates a renderer pulling audio from src and position mapping
// from proc. The source is drained into memory here; DSP buffers are
// allocated once at the preset-dependent size and reused for the life of
// the engine.
func NewEngine(src Source, proc *warp.Processor, opts ...Option) (*Engine, error) {
	if src == nil {
		return nil, fmt.Errorf("elastic engine source must not be nil")
	}
	if proc == nil {
		return nil, fmt.Errorf("elastic engine warp processor must not be nil")
	}
	if src.Channels() <= 0 {
		return nil, fmt.Errorf("elastic engine source channels must be > 0: %d", src.Channels())
	}
	if src.SampleRate() <= 0 {
		return nil, fmt.Errorf("elastic engine source sample rate must be > 0: %f", src.SampleRate())
	}

	cfg := engineConfig{
		quality:        QualityBalanced,
		windowType:     window.TypeHann,
		transientReset: true,
		transientRatio: defaultTransientThreshold,
		speed:          defaultPlaybackSpeed,
		warpEnabled:    true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	profile := QualityProfile(cfg.quality)

	plan, err := algofft.NewPlan64(profile.FFTSize)
	if err != nil {
		return nil, fmt.Errorf("elastic engine: failed to create FFT plan: %w", err)
	}

	e := &Engine{
		src:            src,
		proc:           proc,
		channels:       src.Channels(),
		sampleRate:     src.SampleRate(),
		quality:        cfg.quality,
		windowType:     cfg.windowType,
		fftSize:        profile.FFTSize,
		analysisHop:    profile.AnalysisHop,
		overlap:        profile.OverlapFactor,
		outputScale:    1.0 / (float64(profile.OverlapFactor) * 0.5),
		plan:           plan,
		windowCoeffs:   window.Generate(cfg.windowType, profile.FFTSize, window.WithPeriodic()),
		spectrum:       make([]complex128, profile.FFTSize),
		timeFrame:      make([]complex128, profile.FFTSize),
		warpEnabled:    cfg.warpEnabled,
		transientReset: cfg.transientReset,
		transientRatio: cfg.transientRatio,
		speed:          cfg.speed,
	}

	bins := profile.FFTSize/2 + 1
	e.omega = make([]float64, bins)
	for k := range bins {
		e.omega[k] = 2 * math.Pi * float64(k) / float64(profile.FFTSize)
	}

	e.source = preload(src)

	e.chans = make([]*channelState, e.channels)
	for ch := range e.chans {
		e.chans[ch] = &channelState{
			input:     buffer.New(inputRingFactor * profile.FFTSize),
			resample:  buffer.New(resampleRingFactor * profile.FFTSize),
			prevPhase: make([]float64, bins),
			sumPhase:  make([]float64, bins),
		}
	}

	e.resetDSPState()

	return e, nil
}

// Channels returns the output channel count.
func (e *Engine) Channels() int { return e.channels }

// SampleRate returns the output sample rate in Hz.
func (e *Engine) SampleRate() float64 { return e.sampleRate }

// Quality returns the configured quality preset.
func (e *Engine) Quality() Quality { return e.quality }

// WarpEnabled reports whether spectral processing is active.
func (e *Engine) WarpEnabled() bool { return e.warpEnabled }

// SetWarpEnabled toggles between the phase-vocoder path and the cheap
// pass-through path. Both follow the processor's position mapping, so the
// toggle causes no position jump.
func (e *Engine) SetWarpEnabled(enabled bool) {
	if e.warpEnabled == enabled {
		return
	}

	e.warpEnabled = enabled
	// Stale partial frames from the other path would be audible.
	e.resetDSPState()
}

// PlaybackSpeed returns the global playback-speed multiplier.
func (e *Engine) PlaybackSpeed() float64 { return e.speed }

// SetPlaybackSpeed updates the global playback-speed multiplier.
func (e *Engine) SetPlaybackSpeed(speed float64) error {
	if speed < minPlaybackSpeed || speed > maxPlaybackSpeed || math.IsNaN(speed) {
		return fmt.Errorf("elastic engine playback speed must be in [%f, %f]: %f",
			minPlaybackSpeed, maxPlaybackSpeed, speed)
	}

	e.speed = speed

	return nil
}

// CurrentWarpedSample returns the playback cursor on the warped timeline.
func (e *Engine) CurrentWarpedSample() float64 { return e.currentWarped }

// CurrentWarpedBeat returns the playback cursor in beats at the processor's
// tempo.
func (e *Engine) CurrentWarpedBeat() float64 {
	return tempo.SamplesToBeats(e.currentWarped, e.proc.BPM(), e.sampleRate)
}

// Seek positions the playback cursor at a warped sample position, clamped
// to [0, totalWarpedSamples], and clears all per-channel DSP state. Partial
// frames are never carried across a seek.
func (e *Engine) Seek(warpedPos float64) {
	total := e.proc.TotalWarpedSamples()
	if warpedPos < 0 || math.IsNaN(warpedPos) {
		warpedPos = 0
	}
	if warpedPos > total {
		warpedPos = total
	}

	e.currentWarped = warpedPos
	e.resetDSPState()
}

// SeekBeats positions the playback cursor at a beat position.
func (e *Engine) SeekBeats(beats float64) {
	e.Seek(tempo.BeatsToSamples(beats, e.proc.BPM(), e.sampleRate))
}

// Read renders up to count samples (interleaved elements) into buf starting
// at index offset and returns the number of samples written. It returns 0
// once the warped timeline is exhausted. Reads that map past the end of the
// source material produce silence rather than errors.
func (e *Engine) Read(buf []float64, offset, count int) int {
	if offset < 0 || count <= 0 || offset >= len(buf) {
		return 0
	}
	if offset+count > len(buf) {
		count = len(buf) - offset
	}

	frames := count / e.channels
	if frames == 0 {
		return 0
	}

	totalWarped := e.proc.TotalWarpedSamples()
	written := 0

	for f := range frames {
		if e.currentWarped >= totalWarped {
			break
		}

		ratio := e.proc.StretchRatioAt(e.currentWarped)
		origPos := e.proc.WarpedToOriginal(e.currentWarped)
		out := buf[offset+f*e.channels:]

		if e.warpEnabled {
			e.renderWarped(out, origPos, ratio)
		} else {
			for ch := range e.channels {
				out[ch] = interp.At(e.source[ch], origPos)
			}
		}

		e.currentWarped += e.speed
		written += e.channels
	}

	return written
}

// renderWarped produces one output frame through the phase-vocoder path.
func (e *Engine) renderWarped(out []float64, origPos, ratio float64) {
	inputSize := e.chans[0].input.Len()

	// Feed the analysis ring at the warped playback rate.
	for ch, state := range e.chans {
		state.input.Samples()[e.inputPos] = interp.At(e.source[ch], origPos)
	}
	e.inputPos = (e.inputPos + 1) % inputSize

	e.toNextFrame--
	if e.toNextFrame <= 0 {
		e.renderFrame(clampRatio(ratio))
		e.toNextFrame = e.analysisHop
	}

	// Variable-rate read out of the overlap-add ring.
	ringSize := e.chans[0].resample.Len()
	idx := int(e.readCursor)
	frac := e.readCursor - float64(idx)
	idx %= ringSize

	for ch, state := range e.chans {
		ring := state.resample.Samples()
		s := interp.Linear(ring[idx], ring[(idx+1)%ringSize], frac)
		out[ch] = s * e.outputScale
	}

	e.readCursor += 1.0 / clampRatio(ratio)
	if e.readCursor >= float64(ringSize) {
		e.readCursor -= float64(ringSize)
	}
}

// renderFrame runs one analysis/synthesis frame for every channel and
// advances the shared synthesis write cursor.
func (e *Engine) renderFrame(ratio float64) {
	synthesisHop := int(math.Round(float64(e.analysisHop) / ratio))
	if synthesisHop < 1 {
		synthesisHop = 1
	}

	half := e.fftSize / 2
	hopF := float64(e.analysisHop)
	synthHopF := float64(synthesisHop)
	inputSize := e.chans[0].input.Len()
	start := e.inputPos - e.fftSize
	e.frameCount++

	for _, state := range e.chans {
		in := state.input.Samples()

		// Window the most recent fftSize input samples.
		energy := 0.0
		for i := range e.fftSize {
			x := in[(start+i+inputSize)%inputSize]
			energy += x * x
			e.spectrum[i] = complex(x*e.windowCoeffs[i], 0)
		}

		if err := e.plan.Forward(e.spectrum, e.spectrum); err != nil {
			continue
		}

		rms := math.Sqrt(energy / float64(e.fftSize))
		transientHit := e.isTransientFrame(state, rms)

		for k := 0; k <= half; k++ {
			re := real(e.spectrum[k])
			im := imag(e.spectrum[k])
			mag := math.Hypot(re, im)
			phase := math.Atan2(im, re)

			// True-frequency estimate from the phase residual.
			delta := phase - state.prevPhase[k] - e.omega[k]*hopF
			trueFreq := e.omega[k] + wrapPhase(delta)/hopF
			state.prevPhase[k] = phase

			if transientHit {
				// Re-lock phase at the attack so it is not smeared by
				// prior stretching.
				state.sumPhase[k] = phase
			} else {
				state.sumPhase[k] = wrapPhase(state.sumPhase[k] + trueFreq*synthHopF)
			}

			e.spectrum[k] = complex(mag*math.Cos(state.sumPhase[k]), mag*math.Sin(state.sumPhase[k]))
		}

		// Rebuild the conjugate-symmetric spectrum for a real output frame.
		e.spectrum[0] = complex(real(e.spectrum[0]), 0)
		e.spectrum[half] = complex(real(e.spectrum[half]), 0)
		for k := 1; k < half; k++ {
			v := e.spectrum[k]
			e.spectrum[e.fftSize-k] = complex(real(v), -imag(v))
		}

		if err := e.plan.Inverse(e.timeFrame, e.spectrum); err != nil {
			continue
		}

		// Overlap-add the windowed synthesis frame into the resample ring.
		ring := state.resample.Samples()
		ringSize := len(ring)
		for i := range e.fftSize {
			ring[(e.synthWritePos+i)%ringSize] += real(e.timeFrame[i]) * e.windowCoeffs[i]
		}

		// Zero the span the overlap window just vacated so future frames
		// never add onto stale energy.
		state.resample.ZeroRangeWrapped(e.synthWritePos+e.fftSize, synthesisHop)

		state.energyAvg += transientHistoryAlpha * (rms - state.energyAvg)
	}

	ringSize := e.chans[0].resample.Len()
	e.synthWritePos = (e.synthWritePos + synthesisHop) % ringSize
}

// isTransientFrame compares the frame RMS against the channel's rolling
// energy history. The first few frames after a reset never qualify; there
// is no history to smear yet.
func (e *Engine) isTransientFrame(state *channelState, rms float64) bool {
	if !e.transientReset || e.frameCount <= e.overlap {
		return false
	}
	if rms < transientEnergyFloor {
		return false
	}

	return rms > e.transientRatio*math.Max(state.energyAvg, transientEnergyFloor)
}

func (e *Engine) resetDSPState() {
	for _, state := range e.chans {
		state.input.Zero()
		state.resample.Zero()
		for k := range state.prevPhase {
			state.prevPhase[k] = 0
			state.sumPhase[k] = 0
		}
		state.energyAvg = 0
	}

	e.inputPos = 0
	e.synthWritePos = 0
	e.readCursor = 0
	e.toNextFrame = 1
	e.frameCount = 0
}

func clampRatio(ratio float64) float64 {
	if math.IsNaN(ratio) || ratio == 0 {
		return 1.0
	}
	if ratio < minRenderRatio {
		return minRenderRatio
	}
	if ratio > maxRenderRatio {
		return maxRenderRatio
	}

	return ratio
}

func wrapPhase(x float64) float64 {
	x = math.Mod(x+math.Pi, 2*math.Pi)
	if x < 0 {
		x += 2 * math.Pi
	}

	return x - math.Pi
}

// preload drains src into per-channel sample slices.
func preload(src Source) [][]float64 {
	channels := src.Channels()
	block := make([]float64, preloadBlockFrames*channels)

	var interleaved []float64
	for {
		n := src.Read(block, 0, len(block))
		if n <= 0 {
			break
		}
		interleaved = append(interleaved, block[:n]...)
	}

	frames := len(interleaved) / channels
	out := make([][]float64, channels)
	for ch := range out {
		out[ch] = make([]float64, frames)
		for f := range frames {
			out[ch][f] = interleaved[f*channels+ch]
		}
	}

	return out
}
