package fit

import (
	"math"
	"math/rand/v2"
)

// A small fully connected ReLU network with hand-written backpropagation.
// Parameters live in one flat slice so a single optimizer instance can step
// the whole network; per-layer weight and bias views index into it.
//
// Layer l maps sizes[l] inputs to sizes[l+1] outputs with a row-major
// [out][in] weight block followed by a bias block. Every layer but the last
// is followed by ReLU.
type mlp struct {
	sizes  []int
	params []float64
	wOff   []int
	bOff   []int
}

func newMLP(sizes []int, rng *rand.Rand) *mlp {
	n := &mlp{
		sizes: sizes,
		wOff:  make([]int, len(sizes)-1),
		bOff:  make([]int, len(sizes)-1),
	}
	total := 0
	for l := 0; l < len(sizes)-1; l++ {
		n.wOff[l] = total
		total += sizes[l] * sizes[l+1]
		n.bOff[l] = total
		total += sizes[l+1]
	}
	n.params = make([]float64, total)
	for l := 0; l < len(sizes)-1; l++ {
		// Scaled uniform init, bound 1/sqrt(fan-in).
		bound := 1 / math.Sqrt(float64(sizes[l]))
		w := n.params[n.wOff[l] : n.wOff[l]+sizes[l]*sizes[l+1]]
		for i := range w {
			w[i] = (2*rng.Float64() - 1) * bound
		}
		b := n.params[n.bOff[l] : n.bOff[l]+sizes[l+1]]
		for i := range b {
			b[i] = (2*rng.Float64() - 1) * bound
		}
	}
	return n
}

func (n *mlp) paramCount() int { return len(n.params) }

// newCache allocates per-layer activation buffers for a batch. cache[0] is
// the input, cache[l+1] the post-activation output of layer l.
func (n *mlp) newCache(batch int) [][]float64 {
	cache := make([][]float64, len(n.sizes))
	for i, s := range n.sizes {
		cache[i] = make([]float64, batch*s)
	}
	return cache
}

// forward evaluates samples [start, limit) of the batch. The caller must
// have filled cache[0] with the input rows for that range.
func (n *mlp) forward(cache [][]float64, start, limit int) {
	for l := 0; l < len(n.sizes)-1; l++ {
		in, out := n.sizes[l], n.sizes[l+1]
		w := n.params[n.wOff[l] : n.wOff[l]+in*out]
		b := n.params[n.bOff[l] : n.bOff[l]+out]
		last := l == len(n.sizes)-2
		for s := start; s < limit; s++ {
			x := cache[l][s*in : (s+1)*in]
			y := cache[l+1][s*out : (s+1)*out]
			for o := range out {
				sum := b[o]
				row := w[o*in : (o+1)*in]
				for i, xi := range x {
					sum += row[i] * xi
				}
				if !last && sum < 0 {
					sum = 0
				}
				y[o] = sum
			}
		}
	}
}

// backward propagates dOut (gradient at the network output, batch*sizes[L])
// for samples [start, limit), accumulating parameter gradients into grads.
// grads must have paramCount length; it is not zeroed here so that multiple
// batches or worker shards can accumulate into it.
func (n *mlp) backward(cache [][]float64, dOut []float64, grads []float64, start, limit int) {
	nl := len(n.sizes) - 1
	// Per-call scratch for the running activation gradient.
	maxWidth := 0
	for _, s := range n.sizes {
		maxWidth = max(maxWidth, s)
	}
	cur := make([]float64, maxWidth)
	next := make([]float64, maxWidth)

	for s := start; s < limit; s++ {
		outWidth := n.sizes[nl]
		d := cur[:outWidth]
		copy(d, dOut[s*outWidth:(s+1)*outWidth])
		for l := nl - 1; l >= 0; l-- {
			in, out := n.sizes[l], n.sizes[l+1]
			w := n.params[n.wOff[l] : n.wOff[l]+in*out]
			gw := grads[n.wOff[l] : n.wOff[l]+in*out]
			gb := grads[n.bOff[l] : n.bOff[l]+out]
			x := cache[l][s*in : (s+1)*in]
			y := cache[l+1][s*out : (s+1)*out]
			dIn := next[:in]
			for i := range dIn {
				dIn[i] = 0
			}
			last := l == nl-1
			for o := range out {
				g := d[o]
				if !last && y[o] <= 0 {
					continue
				}
				gb[o] += g
				row := w[o*in : (o+1)*in]
				grow := gw[o*in : (o+1)*in]
				for i, xi := range x {
					grow[i] += g * xi
					dIn[i] += g * row[i]
				}
			}
			cur, next = next, cur
			d = cur[:in]
		}
	}
}
