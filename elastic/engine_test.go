package elastic

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-warp/internal/testutil"
	"github.com/cwbudde/algo-warp/warp"
)

func newSineSetup(t *testing.T, freqHz float64, frames int) (*BufferSource, *warp.Processor) {
	t.Helper()

	src, err := NewBufferSource(testutil.DeterministicSine(freqHz, 44100, 1.0, frames), 1, 44100)
	if err != nil {
		t.Fatalf("NewBufferSource() error = %v", err)
	}

	proc, err := warp.NewProcessor(frames, warp.WithSampleRate(44100), warp.WithBPM(120))
	if err != nil {
		t.Fatalf("NewProcessor() error = %v", err)
	}

	return src, proc
}

func moveEnd(t *testing.T, proc *warp.Processor, warpedPos float64) {
	t.Helper()

	markers := proc.Markers()
	if !proc.MoveMarker(markers[len(markers)-1].ID(), warpedPos) {
		t.Fatalf("MoveMarker() of End anchor to %f failed", warpedPos)
	}
}

func renderAll(t *testing.T, e *Engine, maxFrames int) []float64 {
	t.Helper()

	block := make([]float64, 1024*e.Channels())
	var out []float64

	for len(out)/e.Channels() < maxFrames {
		n := e.Read(block, 0, len(block))
		if n == 0 {
			break
		}
		out = append(out, block[:n]...)
	}

	return out
}

func TestNewEngineValidation(t *testing.T) {
	src, proc := newSineSetup(t, 440, 4096)

	if _, err := NewEngine(nil, proc); err == nil {
		t.Fatal("NewEngine() must reject a nil source")
	}

	if _, err := NewEngine(src, nil); err == nil {
		t.Fatal("NewEngine() must reject a nil warp processor")
	}

	src.Reset()
	e, err := NewEngine(src, proc, WithQuality(QualityPreview))
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	if e.Channels() != 1 || e.SampleRate() != 44100 {
		t.Fatal("engine must mirror the source format")
	}

	if e.Quality() != QualityPreview {
		t.Fatalf("Quality() = %v, want Preview", e.Quality())
	}
}

func TestEngineIdentityWarpOutputLength(t *testing.T) {
	src, proc := newSineSetup(t, 440, 88200)

	e, err := NewEngine(src, proc)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	out := renderAll(t, e, 100000)
	if len(out) != 88200 {
		t.Fatalf("rendered %d frames, want 88200 for the identity warp", len(out))
	}

	testutil.RequireFinite(t, out)

	// A drained engine keeps returning 0.
	buf := make([]float64, 64)
	if n := e.Read(buf, 0, len(buf)); n != 0 {
		t.Fatalf("Read() past the warped timeline = %d, want 0", n)
	}
}

func TestEngineDoubleSpeedConsumesFullBuffer(t *testing.T) {
	// 2 s of source squeezed onto a 1 s warped timeline: reading 44100
	// output frames consumes the full original buffer.
	src, proc := newSineSetup(t, 440, 88200)
	moveEnd(t, proc, 44100)

	e, err := NewEngine(src, proc)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	out := renderAll(t, e, 100000)
	if len(out) != 44100 {
		t.Fatalf("rendered %d frames, want 44100 at stretch ratio 2", len(out))
	}

	testutil.RequireFinite(t, out)

	if rms := testutil.RMS(out[8192:40960]); rms < 0.05 {
		t.Fatalf("steady-state RMS = %f, output is close to silence", rms)
	}
}

func TestEnginePreservesPitchWhenCompressing(t *testing.T) {
	src, proc := newSineSetup(t, 440, 88200)
	moveEnd(t, proc, 44100)

	e, err := NewEngine(src, proc)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	out := renderAll(t, e, 100000)
	if len(out) < 8192+16384 {
		t.Fatalf("rendered %d frames, need at least %d", len(out), 8192+16384)
	}

	got := testutil.DominantFrequency(out[8192:8192+16384], 44100)
	if math.Abs(got-440)/440 > 0.015 {
		t.Fatalf("dominant frequency = %f Hz, want 440 within 1.5%%", got)
	}
}

func TestEnginePreservesPitchWhenStretching(t *testing.T) {
	src, proc := newSineSetup(t, 440, 88200)
	moveEnd(t, proc, 176400)

	e, err := NewEngine(src, proc)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	out := renderAll(t, e, 200000)
	if len(out) != 176400 {
		t.Fatalf("rendered %d frames, want 176400 at stretch ratio 0.5", len(out))
	}

	got := testutil.DominantFrequency(out[32768:32768+32768], 44100)
	if math.Abs(got-440)/440 > 0.015 {
		t.Fatalf("dominant frequency = %f Hz, want 440 within 1.5%%", got)
	}
}

func TestEngineBypassFollowsMapping(t *testing.T) {
	src, proc := newSineSetup(t, 440, 88200)

	e, err := NewEngine(src, proc, WithWarpDisabled())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	if e.WarpEnabled() {
		t.Fatal("WithWarpDisabled() must start the engine in bypass")
	}

	out := renderAll(t, e, 88200)
	if len(out) != 88200 {
		t.Fatalf("rendered %d frames, want 88200", len(out))
	}

	want := testutil.DeterministicSine(440, 44100, 1.0, 88200)
	for i := range 1000 {
		if math.Abs(out[i]-want[i]) > 1e-9 {
			t.Fatalf("bypass output diverges at frame %d: got %f, want %f", i, out[i], want[i])
		}
	}
}

func TestEngineBypassDoubleSpeed(t *testing.T) {
	src, proc := newSineSetup(t, 440, 88200)
	moveEnd(t, proc, 44100)

	e, err := NewEngine(src, proc, WithWarpDisabled())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	out := renderAll(t, e, 88200)
	if len(out) != 44100 {
		t.Fatalf("rendered %d frames, want 44100", len(out))
	}

	// Bypass resamples without pitch preservation: the sine arrives an
	// octave up.
	got := testutil.DominantFrequency(out[4096:4096+16384], 44100)
	if math.Abs(got-880)/880 > 0.01 {
		t.Fatalf("bypass dominant frequency = %f Hz, want 880", got)
	}
}

func TestEngineSeekClearsState(t *testing.T) {
	src, proc := newSineSetup(t, 440, 88200)

	e, err := NewEngine(src, proc)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	// Render into the steady state, then jump.
	_ = renderAll(t, e, 32768)

	e.Seek(44100)

	if e.CurrentWarpedSample() != 44100 {
		t.Fatalf("CurrentWarpedSample() = %f, want 44100", e.CurrentWarpedSample())
	}

	buf := make([]float64, 2048)
	n := e.Read(buf, 0, len(buf))
	if n != 2048 {
		t.Fatalf("post-seek Read() = %d, want 2048", n)
	}

	testutil.RequireFinite(t, buf)

	// Phase history was cleared: the first post-seek frames ramp up from
	// silence instead of carrying stale overlap energy.
	if m := testutil.MaxAbs(buf[:512]); m > 1.0 {
		t.Fatalf("first post-seek block peak = %f, stale DSP state leaked through", m)
	}

	// Seeks clamp to the warped timeline.
	e.Seek(-100)
	if e.CurrentWarpedSample() != 0 {
		t.Fatalf("Seek(-100) cursor = %f, want 0", e.CurrentWarpedSample())
	}

	e.Seek(1e12)
	if e.CurrentWarpedSample() != 88200 {
		t.Fatalf("Seek(1e12) cursor = %f, want clamp at 88200", e.CurrentWarpedSample())
	}
}

func TestEngineSeekBeats(t *testing.T) {
	src, proc := newSineSetup(t, 440, 88200)

	e, err := NewEngine(src, proc)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	// At 120 BPM one beat is 22050 samples.
	e.SeekBeats(2)

	if e.CurrentWarpedSample() != 44100 {
		t.Fatalf("CurrentWarpedSample() = %f, want 44100", e.CurrentWarpedSample())
	}

	if math.Abs(e.CurrentWarpedBeat()-2) > 1e-9 {
		t.Fatalf("CurrentWarpedBeat() = %f, want 2", e.CurrentWarpedBeat())
	}
}

func TestEnginePlaybackSpeed(t *testing.T) {
	src, proc := newSineSetup(t, 440, 88200)

	e, err := NewEngine(src, proc, WithPlaybackSpeed(2))
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	if e.PlaybackSpeed() != 2 {
		t.Fatalf("PlaybackSpeed() = %f, want 2", e.PlaybackSpeed())
	}

	out := renderAll(t, e, 88200)
	if len(out) != 44100 {
		t.Fatalf("rendered %d frames at speed 2, want 44100", len(out))
	}

	if err := e.SetPlaybackSpeed(0.05); err == nil {
		t.Fatal("SetPlaybackSpeed() must reject values below the clamp range")
	}

	if err := e.SetPlaybackSpeed(5); err == nil {
		t.Fatal("SetPlaybackSpeed() must reject values above the clamp range")
	}

	if err := e.SetPlaybackSpeed(0.5); err != nil {
		t.Fatalf("SetPlaybackSpeed(0.5) error = %v", err)
	}
}

func TestEngineStereo(t *testing.T) {
	const frames = 32768

	left := testutil.DeterministicSine(440, 44100, 1.0, frames)
	interleaved := make([]float64, frames*2)
	for f := range frames {
		interleaved[f*2] = left[f]
		// Right channel stays silent.
	}

	src, err := NewBufferSource(interleaved, 2, 44100)
	if err != nil {
		t.Fatalf("NewBufferSource() error = %v", err)
	}

	proc, err := warp.NewProcessor(frames, warp.WithSampleRate(44100))
	if err != nil {
		t.Fatalf("NewProcessor() error = %v", err)
	}

	e, err := NewEngine(src, proc, WithQuality(QualityPreview))
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	out := renderAll(t, e, frames)
	if len(out) != frames*2 {
		t.Fatalf("rendered %d samples, want %d", len(out), frames*2)
	}

	var leftOut, rightOut []float64
	for f := range frames {
		leftOut = append(leftOut, out[f*2])
		rightOut = append(rightOut, out[f*2+1])
	}

	if rms := testutil.RMS(leftOut[8192:]); rms < 0.05 {
		t.Fatalf("left channel RMS = %f, want audible signal", rms)
	}

	if m := testutil.MaxAbs(rightOut); m > 1e-9 {
		t.Fatalf("right channel peak = %f, silence must stay silent", m)
	}
}

func TestEngineReadArguments(t *testing.T) {
	src, proc := newSineSetup(t, 440, 8192)

	e, err := NewEngine(src, proc, WithQuality(QualityPreview))
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	buf := make([]float64, 16)

	if n := e.Read(buf, -1, 8); n != 0 {
		t.Fatal("Read() must reject negative offsets")
	}

	if n := e.Read(buf, 0, 0); n != 0 {
		t.Fatal("Read() with zero count must return 0")
	}

	if n := e.Read(buf, 20, 8); n != 0 {
		t.Fatal("Read() with an offset past the buffer must return 0")
	}

	// Counts are clamped to the buffer and truncated to whole frames.
	if n := e.Read(buf, 10, 100); n != 6 {
		t.Fatalf("Read() = %d, want clamped 6", n)
	}
}

func TestEngineWarpToggleKeepsPosition(t *testing.T) {
	src, proc := newSineSetup(t, 440, 88200)

	e, err := NewEngine(src, proc)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	_ = renderAll(t, e, 16384)
	before := e.CurrentWarpedSample()

	e.SetWarpEnabled(false)

	if e.CurrentWarpedSample() != before {
		t.Fatal("toggling warp must not move the playback cursor")
	}

	buf := make([]float64, 1024)
	if n := e.Read(buf, 0, len(buf)); n != 1024 {
		t.Fatalf("post-toggle Read() = %d, want 1024", n)
	}

	testutil.RequireFinite(t, buf)
}
