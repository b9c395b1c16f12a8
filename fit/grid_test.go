package fit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZNodes(t *testing.T) {
	for _, n := range []int{4, 16, 64} {
		nodes := ZNodes(n)
		require.Len(t, nodes, n)
		require.Equal(t, 0.0, nodes[0])
		require.Equal(t, 1.0, nodes[n-1])
		for i := 1; i < n; i++ {
			require.GreaterOrEqual(t, nodes[i], nodes[i-1])
		}
	}
}

func TestZNodesClusterAtEnds(t *testing.T) {
	// The double smoothstep warp pushes samples toward 0 and 1: the first
	// gap must be tighter than a uniform ramp's, the middle gap wider.
	n := 64
	nodes := ZNodes(n)
	uniform := 1.0 / float64(n-1)
	assert.Less(t, nodes[1]-nodes[0], uniform)
	assert.Greater(t, nodes[n/2]-nodes[n/2-1], uniform)
}

func cellAt(targets []float64, n, axis, zi, yi, xi int) [3]float64 {
	base := ((((axis*n+zi)*n+yi)*n + xi) * 3)
	return [3]float64{targets[base], targets[base+1], targets[base+2]}
}

func TestTargetsShapeAndPrimaries(t *testing.T) {
	n := 8
	targets := Targets(n)
	require.Len(t, targets, 3*n*n*n*3)

	// Each major axis hits its pure primary at full z with zero fractions.
	require.Equal(t, [3]float64{1, 0, 0}, cellAt(targets, n, 0, n-1, 0, 0))
	require.Equal(t, [3]float64{0, 1, 0}, cellAt(targets, n, 1, n-1, 0, 0))
	require.Equal(t, [3]float64{0, 0, 1}, cellAt(targets, n, 2, n-1, 0, 0))

	// Full fractions give the achromatic ramp on every axis.
	zNodes := ZNodes(n)
	for axis := range 3 {
		for zi := range n {
			z := zNodes[zi]
			require.Equal(t, [3]float64{z, z, z}, cellAt(targets, n, axis, zi, n-1, n-1))
		}
	}

	// Black everywhere at zi=0.
	for axis := range 3 {
		require.Equal(t, [3]float64{0, 0, 0}, cellAt(targets, n, axis, 0, 3, 5))
	}
}

func TestTargetsDominantChannel(t *testing.T) {
	n := 8
	targets := Targets(n)
	zNodes := ZNodes(n)
	// For axis 1 the dominant value sits in the G slot and the others are
	// fractions of it.
	zi, yi, xi := 5, 2, 6
	z := zNodes[zi]
	want := [3]float64{
		float64(yi) / float64(n-1) * z,
		z,
		float64(xi) / float64(n-1) * z,
	}
	require.Equal(t, want, cellAt(targets, n, 1, zi, yi, xi))
}
