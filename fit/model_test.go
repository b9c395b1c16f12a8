package fit

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MatchaChoco010/rgb2spec/cie"
	"github.com/MatchaChoco010/rgb2spec/gamut"
)

func testPipeline(t *testing.T, name string) *pipeline {
	t.Helper()
	g, err := gamut.Lookup(name)
	require.NoError(t, err)
	return &pipeline{basis: cie.NewBasis(), g: g}
}

// A coefficient triple with a huge constant term saturates the sigmoid to 1
// at every wavelength: a perfect white reflector. Under a D65-whitepoint
// gamut that must integrate to (approximately) RGB (1,1,1).
func TestConstantSpectrumIsWhite(t *testing.T) {
	for _, name := range []string{"sRGB", "P3-D65", "Adobe RGB (1998)", "BT.2020"} {
		t.Run(name, func(t *testing.T) {
			p := testPipeline(t, name)
			rgb := p.rgbFromCoeff([3]float64{0, 0, 1000})
			for k := range 3 {
				require.InDelta(t, 1.0, rgb[k], 0.02)
			}
		})
	}
}

func TestVeryNegativeConstantIsBlack(t *testing.T) {
	p := testPipeline(t, "sRGB")
	rgb := p.rgbFromCoeff([3]float64{0, 0, -1000})
	for k := range 3 {
		require.InDelta(t, 0.0, rgb[k], 1e-9)
	}
}

func TestSpectrumBounded(t *testing.T) {
	p := testPipeline(t, "sRGB")
	// XYZ of any sigmoid spectrum lies between black and the perfect
	// reflector, channelwise, since the weights are non-negative.
	white := p.xyzFromCoeff([3]float64{0, 0, 1000})
	for _, coeff := range [][3]float64{{-120, 30, -8}, {80, -35, 4}, {0.5, 0.1, -0.1}} {
		xyz := p.xyzFromCoeff(coeff)
		for k := range 3 {
			require.GreaterOrEqual(t, xyz[k], 0.0)
			require.LessOrEqual(t, xyz[k], white[k]+1e-12)
		}
	}
}

func TestCoeffGradMatchesFiniteDifference(t *testing.T) {
	p := testPipeline(t, "sRGB")
	dRGB := gamut.Vec3{0.3, -1.2, 0.7}
	dot := func(coeff [3]float64) float64 {
		rgb := p.rgbFromCoeff(coeff)
		return rgb[0]*dRGB[0] + rgb[1]*dRGB[1] + rgb[2]*dRGB[2]
	}
	const eps = 1e-5
	for _, coeff := range [][3]float64{{0, 0, 0}, {-40, 20, -3}, {10, -5, 1}} {
		grad := p.coeffGrad(coeff, dRGB)
		for k := range 3 {
			hi, lo := coeff, coeff
			hi[k] += eps
			lo[k] -= eps
			numeric := (dot(hi) - dot(lo)) / (2 * eps)
			require.InDelta(t, numeric, grad[k], 1e-5, "coeff %v component %d", coeff, k)
		}
	}
}

func TestDecodeBackwardMatchesFiniteDifference(t *testing.T) {
	raw := [3]float64{0.4, -0.8, 1.3}
	scales := [3]float64{160, 35, 15}
	dCoeff := [3]float64{0.7, -0.2, 1.1}
	dot := func(raw, scales [3]float64) float64 {
		c := decodeCoeff(raw, scales)
		return c[0]*dCoeff[0] + c[1]*dCoeff[1] + c[2]*dCoeff[2]
	}
	dRaw, dScales := decodeBackward(raw, scales, dCoeff)
	const eps = 1e-6
	for k := range 3 {
		hi, lo := raw, raw
		hi[k] += eps
		lo[k] -= eps
		require.InDelta(t, (dot(hi, scales)-dot(lo, scales))/(2*eps), dRaw[k], 1e-6)

		shi, slo := scales, scales
		shi[k] += eps
		slo[k] -= eps
		require.InDelta(t, (dot(raw, shi)-dot(raw, slo))/(2*eps), dScales[k], 1e-6)
	}
}

func TestDecodeBoundsLeadingCoefficient(t *testing.T) {
	scales := referenceScales
	c := decodeCoeff([3]float64{1e9, 0, 0}, scales)
	require.InDelta(t, scales[0], c[0], 1e-9)
	c = decodeCoeff([3]float64{-1e9, 0, 0}, scales)
	require.InDelta(t, -scales[0], c[0], 1e-9)
}

func TestClampNonNegative(t *testing.T) {
	rgb := clampNonNegative(gamut.Vec3{-0.1, 0.5, -1e-9})
	require.Equal(t, gamut.Vec3{0, 0.5, 0}, rgb)
}
