package elastic

import "fmt"

// Quality selects the FFT configuration of the render pipeline.
type Quality int

const (
	// QualityPreview uses a small analysis window: cheapest, for scrubbing
	// and edit preview.
	QualityPreview Quality = iota
	// QualityBalanced is the default quality/performance trade-off.
	QualityBalanced
	// QualityRender uses a large analysis window for offline rendering.
	QualityRender
)

// String returns the preset name.
func (q Quality) String() string {
	switch q {
	case QualityPreview:
		return "Preview"
	case QualityBalanced:
		return "Balanced"
	case QualityRender:
		return "Render"
	default:
		return fmt.Sprintf("Quality(%d)", int(q))
	}
}

// Profile holds the STFT framing parameters of a quality preset.
type Profile struct {
	FFTSize       int
	OverlapFactor int
	AnalysisHop   int
}

// QualityProfile returns the framing parameters for preset q.
// The overlap factor is fixed at 4 across presets; the analysis hop is
// FFTSize / OverlapFactor. FFT sizes are powers of two.
func QualityProfile(q Quality) Profile {
	size := 2048
	switch q {
	case QualityPreview:
		size = 1024
	case QualityRender:
		size = 4096
	}

	return Profile{
		FFTSize:       size,
		OverlapFactor: 4,
		AnalysisHop:   size / 4,
	}
}
