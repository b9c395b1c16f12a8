package gamut

// This package derives, for each supported RGB color space, the linear
// RGB<->XYZ matrix pair and the whitepoint XYZ (unit luminance) from the
// published primary and whitepoint chromaticities. The construction is the
// usual one: the primaries' chromaticities become matrix columns which are
// scaled so that RGB (1,1,1) maps exactly onto the whitepoint.
//
// It also carries the CIE 1976 L*a*b* transform and the Euclidean delta E
// metric used as the fitter's perceptual error. Lab values are always
// computed relative to the owning gamut's whitepoint.

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

type Vec3 [3]float64
type Mat3 [3][3]float64

// MulVec3 applies the matrix to a column vector.
func (m *Mat3) MulVec3(v Vec3) Vec3 {
	return Vec3{
		m[0][0]*v[0] + m[0][1]*v[1] + m[0][2]*v[2],
		m[1][0]*v[0] + m[1][1]*v[1] + m[1][2]*v[2],
		m[2][0]*v[0] + m[2][1]*v[1] + m[2][2]*v[2],
	}
}

// MulVec3T applies the transposed matrix to a column vector. The gradient of
// y = M*x with respect to x is M^T*dy, so the fitter's backward passes use
// this form.
func (m *Mat3) MulVec3T(v Vec3) Vec3 {
	return Vec3{
		m[0][0]*v[0] + m[1][0]*v[1] + m[2][0]*v[2],
		m[0][1]*v[0] + m[1][1]*v[1] + m[2][1]*v[2],
		m[0][2]*v[0] + m[1][2]*v[1] + m[2][2]*v[2],
	}
}

// Chromaticity is a CIE xy coordinate.
type Chromaticity struct {
	X, Y float64
}

// XYZ lifts the chromaticity to tristimulus values with the given luminance.
func (c Chromaticity) XYZ(luminance float64) Vec3 {
	if c.Y == 0 {
		return Vec3{}
	}
	return Vec3{
		c.X * luminance / c.Y,
		luminance,
		(1 - c.X - c.Y) * luminance / c.Y,
	}
}

// Gamut is one derived color space entry.
type Gamut struct {
	Name     string
	XYZToRGB Mat3
	RGBToXYZ Mat3
	// WhiteXYZ is the whitepoint at unit luminance, the reference for Lab.
	WhiteXYZ Vec3
	// TableFile is the canonical serialized table name for this gamut.
	TableFile string
}

type primaries struct {
	r, g, b, w Chromaticity
}

// deriveMatrices builds RGBToXYZ from the primaries and inverts it. An
// inversion failure means the primaries are degenerate, which is a
// programming error in the registry, so it panics at package init.
func deriveMatrices(p primaries) (xyzToRGB, rgbToXYZ Mat3) {
	r := p.r.XYZ(1)
	g := p.g.XYZ(1)
	b := p.b.XYZ(1)
	w := p.w.XYZ(1)

	cols := mat.NewDense(3, 3, []float64{
		r[0], g[0], b[0],
		r[1], g[1], b[1],
		r[2], g[2], b[2],
	})
	var inv mat.Dense
	if err := inv.Inverse(cols); err != nil {
		panic(fmt.Sprintf("gamut: degenerate primaries for %+v: %v", p, err))
	}
	// Scale each primary column so that (1,1,1) maps to the whitepoint.
	var s mat.VecDense
	s.MulVec(&inv, mat.NewVecDense(3, []float64{w[0], w[1], w[2]}))
	var toXYZ mat.Dense
	toXYZ.Mul(cols, mat.NewDiagDense(3, []float64{s.AtVec(0), s.AtVec(1), s.AtVec(2)}))
	var toRGB mat.Dense
	if err := toRGB.Inverse(&toXYZ); err != nil {
		panic(fmt.Sprintf("gamut: non-invertible RGB to XYZ matrix for %+v: %v", p, err))
	}
	for row := range 3 {
		for col := range 3 {
			rgbToXYZ[row][col] = toXYZ.At(row, col)
			xyzToRGB[row][col] = toRGB.At(row, col)
		}
	}
	return xyzToRGB, rgbToXYZ
}

func newGamut(name, tableFile string, p primaries) *Gamut {
	xyzToRGB, rgbToXYZ := deriveMatrices(p)
	return &Gamut{
		Name:      name,
		XYZToRGB:  xyzToRGB,
		RGBToXYZ:  rgbToXYZ,
		WhiteXYZ:  p.w.XYZ(1),
		TableFile: tableFile,
	}
}

var (
	d65White  = Chromaticity{0.3127, 0.3290}
	acesWhite = Chromaticity{0.32168, 0.33767}
)

// registry holds the six supported gamuts in canonical order.
var registry = []*Gamut{
	newGamut("sRGB", "srgb_table.bin", primaries{
		r: Chromaticity{0.6400, 0.3300},
		g: Chromaticity{0.3000, 0.6000},
		b: Chromaticity{0.1500, 0.0600},
		w: d65White,
	}),
	newGamut("P3-D65", "dcip3d65_table.bin", primaries{
		r: Chromaticity{0.6800, 0.3200},
		g: Chromaticity{0.2650, 0.6900},
		b: Chromaticity{0.1500, 0.0600},
		w: d65White,
	}),
	newGamut("Adobe RGB (1998)", "adobergb_table.bin", primaries{
		r: Chromaticity{0.6400, 0.3300},
		g: Chromaticity{0.2100, 0.7100},
		b: Chromaticity{0.1500, 0.0600},
		w: d65White,
	}),
	newGamut("BT.2020", "rec2020_table.bin", primaries{
		r: Chromaticity{0.7080, 0.2920},
		g: Chromaticity{0.1700, 0.7970},
		b: Chromaticity{0.1310, 0.0460},
		w: d65White,
	}),
	newGamut("ACEScg", "acescg_table.bin", primaries{
		r: Chromaticity{0.7130, 0.2930},
		g: Chromaticity{0.1650, 0.8300},
		b: Chromaticity{0.1280, 0.0440},
		w: acesWhite,
	}),
	newGamut("ACES2065-1", "aces2065_1_table.bin", primaries{
		r: Chromaticity{0.73470, 0.26530},
		g: Chromaticity{0.00000, 1.00000},
		b: Chromaticity{0.00010, -0.07700},
		w: acesWhite,
	}),
}

// All returns the supported gamuts in canonical order. Callers must not
// mutate the returned entries.
func All() []*Gamut {
	return registry
}

// Lookup returns the named gamut. An unknown name is a configuration error.
func Lookup(name string) (*Gamut, error) {
	for _, g := range registry {
		if g.Name == name {
			return g, nil
		}
	}
	return nil, fmt.Errorf("gamut: unknown color space %q", name)
}

// CIE 1976 constants: delta = 6/29.
const (
	labDelta     = 6.0 / 29.0
	labDeltaSq   = labDelta * labDelta
	labDeltaCube = labDelta * labDelta * labDelta
)

func labF(t float64) float64 {
	if t > labDeltaCube {
		return math.Cbrt(t)
	}
	return t/(3*labDeltaSq) + 4.0/29.0
}

// labFDeriv is d labF/dt, using the linear branch's constant slope at and
// below the knee.
func labFDeriv(t float64) float64 {
	if t > labDeltaCube {
		c := math.Cbrt(t)
		return 1.0 / (3.0 * c * c)
	}
	return 1.0 / (3.0 * labDeltaSq)
}

// XYZToLab converts whitepoint-relative tristimulus values to CIE 1976
// L*a*b* coordinates relative to the gamut's own whitepoint.
func (g *Gamut) XYZToLab(xyz Vec3) Vec3 {
	fx := labF(xyz[0] / g.WhiteXYZ[0])
	fy := labF(xyz[1] / g.WhiteXYZ[1])
	fz := labF(xyz[2] / g.WhiteXYZ[2])
	return Vec3{
		116*fy - 16,
		500 * (fx - fy),
		200 * (fy - fz),
	}
}

// RGBToLab converts a linear RGB triple in this gamut to Lab.
func (g *Gamut) RGBToLab(rgb Vec3) Vec3 {
	return g.XYZToLab(g.RGBToXYZ.MulVec3(rgb))
}

// DeltaE is the Euclidean Lab-space distance between two linear RGB triples
// in this gamut. Identical inputs give exactly zero.
func (g *Gamut) DeltaE(rgb1, rgb2 Vec3) float64 {
	l1 := g.RGBToLab(rgb1)
	l2 := g.RGBToLab(rgb2)
	d0 := l1[0] - l2[0]
	d1 := l1[1] - l2[1]
	d2 := l1[2] - l2[2]
	return math.Sqrt(d0*d0 + d1*d1 + d2*d2)
}

// DeltaEGrad returns DeltaE(rgb, target) and its gradient with respect to
// rgb. At zero distance the gradient is defined as zero.
func (g *Gamut) DeltaEGrad(rgb, target Vec3) (de float64, grad Vec3) {
	xyz := g.RGBToXYZ.MulVec3(rgb)
	lab := g.XYZToLab(xyz)
	labT := g.RGBToLab(target)
	d0 := lab[0] - labT[0]
	d1 := lab[1] - labT[1]
	d2 := lab[2] - labT[2]
	de = math.Sqrt(d0*d0 + d1*d1 + d2*d2)
	if de == 0 {
		return 0, Vec3{}
	}
	// dE/dLab, then Lab -> f(x),f(y),f(z), then f' and the whitepoint
	// scaling, then back through the RGB to XYZ matrix.
	dL := d0 / de
	dA := d1 / de
	dB := d2 / de
	dfx := 500 * dA
	dfy := 116*dL - 500*dA + 200*dB
	dfz := -200 * dB
	var dXYZ Vec3
	dXYZ[0] = dfx * labFDeriv(xyz[0]/g.WhiteXYZ[0]) / g.WhiteXYZ[0]
	dXYZ[1] = dfy * labFDeriv(xyz[1]/g.WhiteXYZ[1]) / g.WhiteXYZ[1]
	dXYZ[2] = dfz * labFDeriv(xyz[2]/g.WhiteXYZ[2]) / g.WhiteXYZ[2]
	grad = g.RGBToXYZ.MulVec3T(dXYZ)
	return de, grad
}
