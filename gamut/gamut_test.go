package gamut

import (
	"fmt"
	"math"
	"testing"

	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ = fmt.Print

func TestRegistryNames(t *testing.T) {
	want := []string{"sRGB", "P3-D65", "Adobe RGB (1998)", "BT.2020", "ACEScg", "ACES2065-1"}
	all := All()
	require.Len(t, all, len(want))
	for i, g := range all {
		assert.Equal(t, want[i], g.Name)
		assert.NotEmpty(t, g.TableFile)
	}
}

func TestLookupUnknown(t *testing.T) {
	_, err := Lookup("NTSC")
	require.Error(t, err)
	g, err := Lookup("sRGB")
	require.NoError(t, err)
	require.Equal(t, "sRGB", g.Name)
}

func TestMatrixRoundTrip(t *testing.T) {
	probes := []Vec3{
		{0, 0, 0}, {1, 1, 1}, {1, 0, 0}, {0, 1, 0}, {0, 0, 1},
		{0.25, 0.5, 0.75}, {0.9, 0.01, 0.3},
	}
	for _, g := range All() {
		t.Run(g.Name, func(t *testing.T) {
			for _, rgb := range probes {
				xyz := g.RGBToXYZ.MulVec3(rgb)
				back := g.XYZToRGB.MulVec3(xyz)
				for i := range 3 {
					require.InDelta(t, rgb[i], back[i], 1e-5)
				}
			}
		})
	}
}

func TestWhitepointMapsToUnitRGB(t *testing.T) {
	for _, g := range All() {
		t.Run(g.Name, func(t *testing.T) {
			rgb := g.XYZToRGB.MulVec3(g.WhiteXYZ)
			for i := range 3 {
				require.InDelta(t, 1.0, rgb[i], 1e-6)
			}
			require.InDelta(t, 1.0, g.WhiteXYZ[1], 1e-12)
		})
	}
}

// go-colorful derives its sRGB matrices from the same published
// chromaticities, so it serves as an independent reference for ours.
func TestSRGBAgainstColorful(t *testing.T) {
	g, err := Lookup("sRGB")
	require.NoError(t, err)
	probes := []Vec3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}, {0.2, 0.5, 0.8}}
	for _, rgb := range probes {
		c := colorful.LinearRgb(rgb[0], rgb[1], rgb[2])
		x, y, z := c.Xyz()
		xyz := g.RGBToXYZ.MulVec3(rgb)
		assert.InDelta(t, x, xyz[0], 1e-3)
		assert.InDelta(t, y, xyz[1], 1e-3)
		assert.InDelta(t, z, xyz[2], 1e-3)
	}
}

func TestDeltaEIdentityIsZero(t *testing.T) {
	for _, g := range All() {
		for _, rgb := range []Vec3{{0, 0, 0}, {1, 1, 1}, {0.3, 0.6, 0.1}} {
			require.Equal(t, 0.0, g.DeltaE(rgb, rgb))
		}
	}
}

func TestDeltaESymmetricAndPositive(t *testing.T) {
	g, err := Lookup("sRGB")
	require.NoError(t, err)
	a := Vec3{0.2, 0.4, 0.6}
	b := Vec3{0.25, 0.35, 0.6}
	require.Greater(t, g.DeltaE(a, b), 0.0)
	require.InDelta(t, g.DeltaE(a, b), g.DeltaE(b, a), 1e-12)
}

func TestLabWhiteIsOrigin(t *testing.T) {
	for _, g := range All() {
		lab := g.XYZToLab(g.WhiteXYZ)
		require.InDelta(t, 100.0, lab[0], 1e-9)
		require.InDelta(t, 0.0, lab[1], 1e-9)
		require.InDelta(t, 0.0, lab[2], 1e-9)
	}
}

func TestDeltaEGradMatchesFiniteDifference(t *testing.T) {
	g, err := Lookup("sRGB")
	require.NoError(t, err)
	target := Vec3{0.3, 0.7, 0.2}
	probes := []Vec3{{0.5, 0.5, 0.5}, {0.01, 0.9, 0.4}, {0.8, 0.1, 0.05}}
	const eps = 1e-6
	for _, rgb := range probes {
		de, grad := g.DeltaEGrad(rgb, target)
		require.InDelta(t, g.DeltaE(rgb, target), de, 1e-12)
		for i := range 3 {
			hi, lo := rgb, rgb
			hi[i] += eps
			lo[i] -= eps
			numeric := (g.DeltaE(hi, target) - g.DeltaE(lo, target)) / (2 * eps)
			require.InDelta(t, numeric, grad[i], 1e-4,
				"component %d at probe %v", i, rgb)
		}
	}
}

func TestDeltaEGradZeroAtTarget(t *testing.T) {
	g, err := Lookup("sRGB")
	require.NoError(t, err)
	de, grad := g.DeltaEGrad(Vec3{0.3, 0.3, 0.3}, Vec3{0.3, 0.3, 0.3})
	require.Equal(t, 0.0, de)
	require.Equal(t, Vec3{}, grad)
}

func TestLabFDerivContinuity(t *testing.T) {
	// The derivative is continuous across the 1976 knee.
	knee := labDeltaCube
	require.InDelta(t, labFDeriv(knee*0.999999), labFDeriv(knee*1.000001), 1e-3)
	require.False(t, math.IsNaN(labFDeriv(0)))
}
