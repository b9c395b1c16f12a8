package fit

import (
	"fmt"

	"github.com/MatchaChoco010/rgb2spec/gamut"
)

// Stage A: train a predictor network mapping RGB to raw spectral
// coefficients so that decoding and re-integrating the spectrum reproduces
// the input color. Besides uniformly random colors the trainer hammers on
// the two empirically hard regions with dedicated batches each iteration:
// pure greens and dark colors with exactly-zero channels. The three batches
// are applied as three sequential parameter updates per iteration, all at
// that iteration's cosine-annealed learning rate.

// predictor is the trained stage-A state handed to stage B.
type predictor struct {
	net    *mlp
	scales [3]float64
}

// predictRaw evaluates the network on one RGB triple.
func (p *predictor) predictRaw(rgb [3]float64, cache [][]float64) [3]float64 {
	copy(cache[0][:3], rgb[:])
	p.net.forward(cache, 0, 1)
	out := cache[len(cache)-1]
	return [3]float64{out[0], out[1], out[2]}
}

// batchStats reports one optimization step for monitoring.
type batchStats struct {
	loss   float64
	meanDE float64
	maxDE  float64
}

// trainer bundles the mutable stage-A state and scratch buffers.
type trainer struct {
	f      *Fitter
	net    *mlp
	scales [3]float64

	optNet    *adam
	optScales *adam

	cache [][]float64
	dOut  []float64

	netGrads        []float64
	shardNetGrads   [][]float64
	shardScaleGrads [][3]float64
	shardLoss       []float64
	shardSumDE      []float64
	shardMaxDE      []float64
	shardCount      []int
}

func (f *Fitter) newTrainer() *trainer {
	sizes := make([]int, 0, f.cfg.HiddenLayers+2)
	sizes = append(sizes, 3)
	for range f.cfg.HiddenLayers {
		sizes = append(sizes, f.cfg.HiddenWidth)
	}
	sizes = append(sizes, 3)
	net := newMLP(sizes, f.rng)

	t := &trainer{
		f:               f,
		net:             net,
		scales:          referenceScales,
		optNet:          newAdam(net.paramCount()),
		optScales:       newAdam(3),
		cache:           net.newCache(f.cfg.BatchSize),
		dOut:            make([]float64, f.cfg.BatchSize*3),
		netGrads:        make([]float64, net.paramCount()),
		shardNetGrads:   make([][]float64, f.shard),
		shardScaleGrads: make([][3]float64, f.shard),
		shardLoss:       make([]float64, f.shard),
		shardSumDE:      make([]float64, f.shard),
		shardMaxDE:      make([]float64, f.shard),
		shardCount:      make([]int, f.shard),
	}
	for i := range t.shardNetGrads {
		t.shardNetGrads[i] = make([]float64, net.paramCount())
	}
	return t
}

// step runs one forward/backward pass on the batch currently loaded into
// cache[0] and applies one optimizer update. weight scales the MSE loss;
// scalePenalty adds the squared-magnitude regularizer on the learned decode
// scales (used on the general batch only).
func (t *trainer) step(targets []float64, weight, scalePenalty, lr float64) (batchStats, error) {
	batch := len(targets) / 3
	pipe := &t.f.pipe
	copy(t.cache[0][:batch*3], targets)
	for s := range t.shardNetGrads {
		clear(t.shardNetGrads[s])
		t.shardScaleGrads[s] = [3]float64{}
		t.shardLoss[s] = 0
		t.shardSumDE[s] = 0
		t.shardMaxDE[s] = 0
		t.shardCount[s] = 0
	}

	rawOut := t.cache[len(t.cache)-1]
	err := t.f.forEachShard(batch, func(shard, start, limit int) {
		t.net.forward(t.cache, start, limit)
		for s := start; s < limit; s++ {
			raw := [3]float64{rawOut[s*3], rawOut[s*3+1], rawOut[s*3+2]}
			coeff := decodeCoeff(raw, t.scales)
			pred := pipe.rgbFromCoeff(coeff)
			target := gamut.Vec3{targets[s*3], targets[s*3+1], targets[s*3+2]}

			var dRGB gamut.Vec3
			for k := range 3 {
				diff := pred[k] - target[k]
				t.shardLoss[shard] += weight * diff * diff
				dRGB[k] = weight * 2 * diff / float64(3*batch)
			}
			de := pipe.g.DeltaE(pred, target)
			t.shardSumDE[shard] += de
			t.shardMaxDE[shard] = max(t.shardMaxDE[shard], de)
			t.shardCount[shard]++

			dCoeff := pipe.coeffGrad(coeff, dRGB)
			dRaw, dScales := decodeBackward(raw, t.scales, dCoeff)
			t.dOut[s*3] = dRaw[0]
			t.dOut[s*3+1] = dRaw[1]
			t.dOut[s*3+2] = dRaw[2]
			for k := range 3 {
				t.shardScaleGrads[shard][k] += dScales[k]
			}
		}
		t.net.backward(t.cache, t.dOut, t.shardNetGrads[shard], start, limit)
	})
	if err != nil {
		return batchStats{}, err
	}

	// Reduce shard partials.
	clear(t.netGrads)
	var scaleGrads [3]float64
	var stats batchStats
	count := 0
	for s := range t.shardNetGrads {
		for i, g := range t.shardNetGrads[s] {
			t.netGrads[i] += g
		}
		for k := range 3 {
			scaleGrads[k] += t.shardScaleGrads[s][k]
		}
		stats.loss += t.shardLoss[s]
		stats.meanDE += t.shardSumDE[s]
		stats.maxDE = max(stats.maxDE, t.shardMaxDE[s])
		count += t.shardCount[s]
	}
	stats.loss /= float64(3 * batch)
	stats.meanDE /= float64(count)

	if scalePenalty > 0 {
		for k := range 3 {
			stats.loss += scalePenalty * t.scales[k] * t.scales[k]
			scaleGrads[k] += 2 * scalePenalty * t.scales[k]
		}
	}

	t.optNet.step(t.net.params, t.netGrads, lr)
	t.optScales.step(t.scales[:], scaleGrads[:], lr)
	return stats, nil
}

// trainPredictor runs the full stage-A budget and returns the trained
// predictor. There is no early stopping; a non-finite loss aborts the run.
func (f *Fitter) trainPredictor() (*predictor, error) {
	t := f.newTrainer()
	batch := f.cfg.BatchSize

	// Pre-generate the uniform sample pool.
	pool := make([]float64, f.cfg.PoolSize*3)
	for i := range pool {
		pool[i] = f.rng.Float64()
	}

	general := make([]float64, batch*3)
	green := make([]float64, batch*3)
	dark := make([]float64, batch*3)

	for iter := 0; iter < f.cfg.StageAIterations; iter++ {
		lr := cosineLR(f.cfg.StageALearningRate, iter, f.cfg.StageAIterations)

		for s := range batch {
			idx := f.rng.IntN(f.cfg.PoolSize)
			copy(general[s*3:s*3+3], pool[idx*3:idx*3+3])
		}
		f.sampleGreen(green)
		f.sampleDark(dark)

		gen, err := t.step(general, 1, f.cfg.ScalePenalty, lr)
		if err != nil {
			return nil, err
		}
		grn, err := t.step(green, f.cfg.GreenLossWeight, 0, lr)
		if err != nil {
			return nil, err
		}
		drk, err := t.step(dark, f.cfg.DarkLossWeight, 0, lr)
		if err != nil {
			return nil, err
		}
		if !finite(gen.loss, grn.loss, drk.loss, gen.meanDE) {
			return nil, fmt.Errorf("fit: non-finite loss in warm-start training at iteration %d", iter)
		}

		if f.cfg.LogInterval > 0 && (iter%f.cfg.LogInterval == 0 || iter == f.cfg.StageAIterations-1) {
			f.log.Info("warm-start",
				"iter", iter,
				"loss", gen.loss,
				"deMean", gen.meanDE,
				"deMax", gen.maxDE,
				"deGreenMean", grn.meanDE,
				"deGreenMax", grn.maxDE,
				"deDarkMean", drk.meanDE,
				"deDarkMax", drk.maxDE,
				"lr", lr)
		}
	}
	return &predictor{net: t.net, scales: t.scales}, nil
}

// sampleGreen fills the batch with pure-green triples: R=B=0, G uniform.
func (f *Fitter) sampleGreen(batch []float64) {
	for s := 0; s < len(batch); s += 3 {
		batch[s] = 0
		batch[s+1] = f.rng.Float64()
		batch[s+2] = 0
	}
}

// sampleDark fills the batch with low-intensity triples and forces a random
// non-empty subset of channels to exactly zero.
func (f *Fitter) sampleDark(batch []float64) {
	for s := 0; s < len(batch); s += 3 {
		mask := 1 + f.rng.IntN(7)
		for k := range 3 {
			if mask&(1<<k) != 0 {
				batch[s+k] = 0
			} else {
				batch[s+k] = f.rng.Float64() * f.cfg.DarkMax
			}
		}
	}
}
