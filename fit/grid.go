package fit

// Grid construction: the warped achromatic axis and the three-way
// permuted RGB target grid the refinement stage fits against.

func smoothstep(t float64) float64 {
	return t * t * (3 - 2*t)
}

// ZNodes returns the n axis nodes in [0,1], warped by a double smoothstep so
// density concentrates near the shadow and highlight ends. The endpoints are
// exactly 0 and 1.
func ZNodes(n int) []float64 {
	nodes := make([]float64, n)
	for i := range nodes {
		nodes[i] = smoothstep(smoothstep(float64(i) / float64(n-1)))
	}
	return nodes
}

// majorAxisRGB places the dominant value z and the two fractions x, y into
// channel slots for the given major axis: 0 is R-dominant (z,x,y), 1 is
// G-dominant (y,z,x), 2 is B-dominant (x,y,z).
func majorAxisRGB(axis int, z, x, y float64) [3]float64 {
	switch axis {
	case 0:
		return [3]float64{z, x, y}
	case 1:
		return [3]float64{y, z, x}
	default:
		return [3]float64{x, y, z}
	}
}

// Targets builds the full target grid as a flat slice shaped
// [3][n][n][n][3], major axis slowest-varying and channel fastest. Cell
// (axis, zi, yi, xi) holds the RGB triple with dominant channel zNodes[zi]
// and the other two channels at linear fractions of it.
func Targets(n int) []float64 {
	zNodes := ZNodes(n)
	out := make([]float64, 3*n*n*n*3)
	pos := 0
	for axis := range 3 {
		for zi := range n {
			z := zNodes[zi]
			for yi := range n {
				y := float64(yi) / float64(n-1) * z
				for xi := range n {
					x := float64(xi) / float64(n-1) * z
					rgb := majorAxisRGB(axis, z, x, y)
					out[pos] = rgb[0]
					out[pos+1] = rgb[1]
					out[pos+2] = rgb[2]
					pos += 3
				}
			}
		}
	}
	return out
}
