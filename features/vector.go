package features

import "github.com/RyanBlaney/sonido-emotion/algorithms/spectral"

// VectorLength is the number of values the emotion model consumes.
const VectorLength = 162

// Features holds the time-averaged value of every coefficient, grouped by feature.
type Features struct {
	ZeroCrossingRate []float64 `json:"zero_crossing_rate"` // 1 value
	Chroma           []float64 `json:"chroma"`             // one per pitch class, C first
	MFCC             []float64 `json:"mfcc"`               // one per coefficient
	RMS              []float64 `json:"rms"`                // 1 value
	MelSpectrogram   []float64 `json:"mel_spectrogram"`    // one per mel band

	Frames     int     `json:"frames"`      // Frames averaged per feature
	SampleRate int     `json:"sample_rate"` // Sample rate of the analysed buffer
	Tuning     float64 `json:"tuning"`      // Tuning offset used for chroma

	// Descriptors are reported for inspection only and never enter the vector.
	Descriptors Descriptors `json:"descriptors"`
}

// Descriptors summarise the spectral shape of a clip, averaged over frames.
type Descriptors struct {
	Centroid     float64 `json:"centroid_hz"`
	Bandwidth    float64 `json:"bandwidth_hz"`
	Rolloff      float64 `json:"rolloff_hz"` // 85% of magnitude lies below
	Flatness     float64 `json:"flatness"`
	SilenceRatio float64 `json:"silence_ratio"` // Share of frames 60 dB below the loudest

	// ZeroCrossing spreads the per-frame rates the vector only averages.
	ZeroCrossing spectral.ZCRStats `json:"zero_crossing"`
}

// Concat joins the groups in model order without resizing.
func (f *Features) Concat() []float64 {
	out := make([]float64, 0, len(f.ZeroCrossingRate)+len(f.Chroma)+len(f.MFCC)+len(f.RMS)+len(f.MelSpectrogram))
	out = append(out, f.ZeroCrossingRate...)
	out = append(out, f.Chroma...)
	out = append(out, f.MFCC...)
	out = append(out, f.RMS...)
	out = append(out, f.MelSpectrogram...)
	return out
}

// Vector returns the concatenated features resized to VectorLength.
func (f *Features) Vector() []float64 {
	return Resize(f.Concat(), VectorLength)
}

// Resize returns a copy of v with exactly n values: extra values are dropped
// from the tail and missing values are appended as zeros.
func Resize(v []float64, n int) []float64 {
	if n < 0 {
		n = 0
	}
	out := make([]float64, n)
	copy(out, v)
	return out
}

// ToFloat32 converts a feature vector to the model's input precision.
func ToFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

// Segment names one feature group within the vector.
type Segment struct {
	Name   string `json:"name"`
	Offset int    `json:"offset"`
	Length int    `json:"length"`
}

// Layout describes where each group sits in the concatenated vector.
func (p Params) Layout() []Segment {
	groups := []struct {
		name string
		n    int
	}{
		{"zero_crossing_rate", 1},
		{"chroma", p.NumChroma},
		{"mfcc", p.NumMFCC},
		{"rms", 1},
		{"mel_spectrogram", p.NumMels},
	}

	segments := make([]Segment, 0, len(groups))
	offset := 0
	for _, g := range groups {
		segments = append(segments, Segment{Name: g.name, Offset: offset, Length: g.n})
		offset += g.n
	}
	return segments
}
