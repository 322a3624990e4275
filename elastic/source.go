package elastic

import "fmt"

// Source is a pull-based provider of interleaved audio samples.
//
// Read copies up to count samples (interleaved elements, not frames) into
// buf starting at index offset, advances the provider's internal position,
// and returns the number of samples actually copied. A return of 0 means
// the source is drained. The engine produced by this package exposes the
// same contract, so warped streams compose transparently into downstream
// consumers.
type Source interface {
	Channels() int
	SampleRate() float64
	Read(buf []float64, offset, count int) int
}

// BufferSource serves interleaved samples from a fixed in-memory buffer.
type BufferSource struct {
	samples    []float64
	channels   int
	sampleRate float64
	pos        int
}

// NewBufferSource wraps an interleaved sample buffer. The buffer length
// must be a whole number of frames.
func NewBufferSource(samples []float64, channels int, sampleRate float64) (*BufferSource, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("buffer source channels must be > 0: %d", channels)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("buffer source sample rate must be > 0: %f", sampleRate)
	}
	if len(samples)%channels != 0 {
		return nil, fmt.Errorf("buffer source length %d is not a whole number of %d-channel frames",
			len(samples), channels)
	}

	return &BufferSource{
		samples:    samples,
		channels:   channels,
		sampleRate: sampleRate,
	}, nil
}

// Channels returns the channel count.
func (s *BufferSource) Channels() int { return s.channels }

// SampleRate returns the sample rate in Hz.
func (s *BufferSource) SampleRate() float64 { return s.sampleRate }

// Frames returns the total number of frames in the buffer.
func (s *BufferSource) Frames() int { return len(s.samples) / s.channels }

// Read copies up to count samples into buf[offset:] and advances the
// read position. It returns the number of samples copied.
func (s *BufferSource) Read(buf []float64, offset, count int) int {
	if offset < 0 || count <= 0 || offset >= len(buf) {
		return 0
	}
	if offset+count > len(buf) {
		count = len(buf) - offset
	}

	remaining := len(s.samples) - s.pos
	if remaining <= 0 {
		return 0
	}
	if count > remaining {
		count = remaining
	}

	copy(buf[offset:offset+count], s.samples[s.pos:s.pos+count])
	s.pos += count

	return count
}

// Reset rewinds the read position to the start of the buffer.
func (s *BufferSource) Reset() {
	s.pos = 0
}
