package fit

import (
	"math"

	"github.com/MatchaChoco010/rgb2spec/cie"
	"github.com/MatchaChoco010/rgb2spec/gamut"
)

// The spectral model: reflectance R(t) = logistic(a*t^2 + b*t + c) over the
// normalized wavelength axis, integrated against the basis weights to XYZ and
// mapped into the gamut's RGB. Raw, unconstrained parameters are decoded into
// (a, b, c) through the learned scale triple; the tanh on the leading
// coefficient keeps the parabola's curvature in the range where the sigmoid
// stays well conditioned across the visible band.

// referenceScales are the decode scale initial values.
var referenceScales = [3]float64{160, 35, 15}

func logistic(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// decodeCoeff maps raw parameters to spectral coefficients.
func decodeCoeff(raw, scales [3]float64) [3]float64 {
	return [3]float64{
		scales[0] * math.Tanh(raw[0]),
		scales[1] * raw[1],
		scales[2] * raw[2],
	}
}

// decodeBackward chains a gradient with respect to the decoded coefficients
// back onto the raw parameters and the scales.
func decodeBackward(raw, scales, dCoeff [3]float64) (dRaw, dScales [3]float64) {
	th := math.Tanh(raw[0])
	dRaw[0] = dCoeff[0] * scales[0] * (1 - th*th)
	dRaw[1] = dCoeff[1] * scales[1]
	dRaw[2] = dCoeff[2] * scales[2]
	dScales[0] = dCoeff[0] * th
	dScales[1] = dCoeff[1] * raw[1]
	dScales[2] = dCoeff[2] * raw[2]
	return dRaw, dScales
}

// pipeline binds the spectral basis to one gamut's matrices.
type pipeline struct {
	basis *cie.Basis
	g     *gamut.Gamut
}

// xyzFromCoeff integrates the sigmoid spectrum for one coefficient triple.
func (p *pipeline) xyzFromCoeff(coeff [3]float64) gamut.Vec3 {
	a, b, c := coeff[0], coeff[1], coeff[2]
	t := p.basis.LambdaNorm
	t2 := p.basis.LambdaNorm2
	wx, wy, wz := p.basis.WeightX, p.basis.WeightY, p.basis.WeightZ
	var xyz gamut.Vec3
	for i := range t {
		r := logistic(a*t2[i] + b*t[i] + c)
		xyz[0] += r * wx[i]
		xyz[1] += r * wy[i]
		xyz[2] += r * wz[i]
	}
	return xyz
}

// rgbFromCoeff is the full forward transform for one coefficient triple.
func (p *pipeline) rgbFromCoeff(coeff [3]float64) gamut.Vec3 {
	return p.g.XYZToRGB.MulVec3(p.xyzFromCoeff(coeff))
}

// coeffGrad chains a gradient with respect to the predicted RGB back onto
// the decoded coefficients, re-evaluating the spectrum.
func (p *pipeline) coeffGrad(coeff [3]float64, dRGB gamut.Vec3) (dCoeff [3]float64) {
	dXYZ := p.g.XYZToRGB.MulVec3T(dRGB)
	a, b, c := coeff[0], coeff[1], coeff[2]
	t := p.basis.LambdaNorm
	t2 := p.basis.LambdaNorm2
	wx, wy, wz := p.basis.WeightX, p.basis.WeightY, p.basis.WeightZ
	for i := range t {
		r := logistic(a*t2[i] + b*t[i] + c)
		// dL/dR_i through the integration weights, then the logistic.
		g := (dXYZ[0]*wx[i] + dXYZ[1]*wy[i] + dXYZ[2]*wz[i]) * r * (1 - r)
		dCoeff[0] += g * t2[i]
		dCoeff[1] += g * t[i]
		dCoeff[2] += g
	}
	return dCoeff
}

func clampNonNegative(rgb gamut.Vec3) gamut.Vec3 {
	for i := range rgb {
		if rgb[i] < 0 {
			rgb[i] = 0
		}
	}
	return rgb
}
