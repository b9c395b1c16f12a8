package fit

import "math"

// Adam with the usual defaults and bias-corrected moments. Learning rate is
// supplied per step so the caller can drive the cosine schedule.
type adam struct {
	beta1, beta2, eps float64
	t                 int
	m, v              []float64
}

func newAdam(paramCount int) *adam {
	return &adam{
		beta1: 0.9,
		beta2: 0.999,
		eps:   1e-8,
		m:     make([]float64, paramCount),
		v:     make([]float64, paramCount),
	}
}

func (o *adam) step(params, grads []float64, lr float64) {
	o.t++
	c1 := 1 - math.Pow(o.beta1, float64(o.t))
	c2 := 1 - math.Pow(o.beta2, float64(o.t))
	for i, g := range grads {
		o.m[i] = o.beta1*o.m[i] + (1-o.beta1)*g
		o.v[i] = o.beta2*o.v[i] + (1-o.beta2)*g*g
		mHat := o.m[i] / c1
		vHat := o.v[i] / c2
		params[i] -= lr * mHat / (math.Sqrt(vHat) + o.eps)
	}
}

// cosineLR anneals from lr0 at iteration 0 towards zero at the end of the
// budget.
func cosineLR(lr0 float64, iter, total int) float64 {
	return 0.5 * lr0 * (1 + math.Cos(math.Pi*float64(iter)/float64(total)))
}
