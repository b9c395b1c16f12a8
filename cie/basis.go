// Package cie builds the discretized spectral basis the fitter integrates
// against: the visible-range wavelength axis, the CIE 1931 2 degree
// color-matching functions and the D65 illuminant, normalized so that the
// luminance integral of the illuminant is exactly one. A Basis is immutable
// after construction and is shared by reference across the whole run.
package cie

// Wavelength axis bounds and step, in nanometers. These are compile-time
// constants of the table format, not configuration.
const (
	LambdaMin  = 360.0
	LambdaMax  = 830.0
	LambdaStep = 1.0

	// SampleCount is the number of 1nm samples over [LambdaMin, LambdaMax].
	SampleCount = int((LambdaMax-LambdaMin)/LambdaStep) + 1
)

// Basis holds the wavelength axis and every per-wavelength sequence the
// spectral model and the tristimulus integration need. All slices have
// length SampleCount and are aligned index-for-index.
type Basis struct {
	// Wavelengths is the axis itself, monotonically increasing at LambdaStep.
	Wavelengths []float64

	// XBar, YBar, ZBar are the color-matching functions.
	XBar, YBar, ZBar []float64

	// Illuminant is the D65 power distribution scaled by k so that
	// sum(Illuminant*YBar)*LambdaStep == 1.
	Illuminant []float64

	// LambdaNorm is (lambda-LambdaMin)/(LambdaMax-LambdaMin) and
	// LambdaNorm2 its square, the positions the sigmoid polynomial is
	// evaluated at.
	LambdaNorm, LambdaNorm2 []float64

	// WeightX, WeightY, WeightZ fold the matching function, normalized
	// illuminant and step into a single integration weight per sample, so
	// X = sum_i R_i*WeightX_i and likewise for Y and Z.
	WeightX, WeightY, WeightZ []float64
}

// resample5nm linearly interpolates one of the embedded 5nm tables at the
// given wavelength, clamping to the table ends.
func resample5nm(table *[cieSampleCount]float64, lambda float64) float64 {
	x := (lambda - LambdaMin) / cieDataStep
	if x <= 0 {
		return table[0]
	}
	idx := int(x)
	if idx >= cieSampleCount-1 {
		return table[cieSampleCount-1]
	}
	w := x - float64(idx)
	return (1-w)*table[idx] + w*table[idx+1]
}

// NewBasis constructs the shared spectral basis. There are no error paths:
// every input is a compile-time constant.
func NewBasis() *Basis {
	b := &Basis{
		Wavelengths: make([]float64, SampleCount),
		XBar:        make([]float64, SampleCount),
		YBar:        make([]float64, SampleCount),
		ZBar:        make([]float64, SampleCount),
		Illuminant:  make([]float64, SampleCount),
		LambdaNorm:  make([]float64, SampleCount),
		LambdaNorm2: make([]float64, SampleCount),
		WeightX:     make([]float64, SampleCount),
		WeightY:     make([]float64, SampleCount),
		WeightZ:     make([]float64, SampleCount),
	}
	for i := range SampleCount {
		lambda := LambdaMin + float64(i)*LambdaStep
		b.Wavelengths[i] = lambda
		b.XBar[i] = resample5nm(&cieX5nm, lambda)
		b.YBar[i] = resample5nm(&cieY5nm, lambda)
		b.ZBar[i] = resample5nm(&cieZ5nm, lambda)
		b.Illuminant[i] = resample5nm(&illumD655nm, lambda)
		t := (lambda - LambdaMin) / (LambdaMax - LambdaMin)
		b.LambdaNorm[i] = t
		b.LambdaNorm2[i] = t * t
	}

	// Normalize the illuminant so the reference white has unit luminance.
	var yIntegral float64
	for i := range SampleCount {
		yIntegral += b.Illuminant[i] * b.YBar[i] * LambdaStep
	}
	k := 1.0 / yIntegral
	for i := range SampleCount {
		b.Illuminant[i] *= k
		b.WeightX[i] = b.XBar[i] * b.Illuminant[i] * LambdaStep
		b.WeightY[i] = b.YBar[i] * b.Illuminant[i] * LambdaStep
		b.WeightZ[i] = b.ZBar[i] * b.Illuminant[i] * LambdaStep
	}
	return b
}
