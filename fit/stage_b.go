package fit

import (
	"fmt"

	"github.com/MatchaChoco010/rgb2spec"
	"github.com/MatchaChoco010/rgb2spec/gamut"
)

// Stage B: the trained predictor seeds one raw coefficient triple per grid
// cell, and those become free parameters optimized directly against the
// exact target grid. The loss here is the perceptual delta E itself (not
// RGB-space MSE), with predictions clamped to non-negative RGB first. Cells
// share no parameters, so each cell's delta E is minimized independently,
// which is the same optimum as the grid mean.

// evalGrid runs the predictor over the whole target grid, in batch-sized
// chunks, producing the initial raw parameter tensor.
func (f *Fitter) evalGrid(pred *predictor, targets []float64) ([]float64, error) {
	cells := len(targets) / 3
	raw := make([]float64, cells*3)
	chunk := f.cfg.BatchSize
	cache := pred.net.newCache(chunk)
	out := cache[len(cache)-1]
	for base := 0; base < cells; base += chunk {
		limit := min(chunk, cells-base)
		copy(cache[0][:limit*3], targets[base*3:(base+limit)*3])
		err := f.forEachShard(limit, func(_, start, end int) {
			pred.net.forward(cache, start, end)
		})
		if err != nil {
			return nil, err
		}
		copy(raw[base*3:(base+limit)*3], out[:limit*3])
	}
	return raw, nil
}

// buildTable decodes the raw parameter tensor into the serializable table.
func (f *Fitter) buildTable(raw []float64, scales [3]float64) *rgb2spec.Table {
	n := f.cfg.Resolution
	t := &rgb2spec.Table{
		Resolution:   n,
		ZNodes:       make([]float32, n),
		Coefficients: make([]float32, len(raw)),
	}
	for i, z := range ZNodes(n) {
		t.ZNodes[i] = float32(z)
	}
	for cell := 0; cell < len(raw); cell += 3 {
		coeff := decodeCoeff([3]float64{raw[cell], raw[cell+1], raw[cell+2]}, scales)
		t.Coefficients[cell] = float32(coeff[0])
		t.Coefficients[cell+1] = float32(coeff[1])
		t.Coefficients[cell+2] = float32(coeff[2])
	}
	return t
}

// refineStats aggregates one epoch of per-cell error.
type refineStats struct {
	meanDE float64
	maxDE  float64
}

// refineEpoch computes per-cell delta E gradients into grads and returns the
// epoch's error statistics. Every cell is written, so grads needs no
// clearing between epochs.
func (f *Fitter) refineEpoch(raw, grads, targets []float64, scales [3]float64, sumDE, maxDE []float64) (refineStats, error) {
	cells := len(targets) / 3
	pipe := &f.pipe
	for s := range sumDE {
		sumDE[s] = 0
		maxDE[s] = 0
	}
	err := f.forEachShard(cells, func(shard, start, limit int) {
		for cell := start; cell < limit; cell++ {
			r := [3]float64{raw[cell*3], raw[cell*3+1], raw[cell*3+2]}
			coeff := decodeCoeff(r, scales)
			pre := pipe.rgbFromCoeff(coeff)
			post := clampNonNegative(pre)
			target := gamut.Vec3{targets[cell*3], targets[cell*3+1], targets[cell*3+2]}
			de, dPost := pipe.g.DeltaEGrad(post, target)

			// Clamped channels pass no gradient.
			var dPre gamut.Vec3
			for k := range 3 {
				if pre[k] > 0 {
					dPre[k] = dPost[k]
				}
			}
			dCoeff := pipe.coeffGrad(coeff, dPre)
			dRaw, _ := decodeBackward(r, scales, dCoeff)
			grads[cell*3] = dRaw[0]
			grads[cell*3+1] = dRaw[1]
			grads[cell*3+2] = dRaw[2]

			sumDE[shard] += de
			maxDE[shard] = max(maxDE[shard], de)
		}
	})
	if err != nil {
		return refineStats{}, err
	}
	var stats refineStats
	for s := range sumDE {
		stats.meanDE += sumDE[s]
		stats.maxDE = max(stats.maxDE, maxDE[s])
	}
	stats.meanDE /= float64(cells)
	return stats, nil
}

// refine runs the stage-B budget. Checkpoints go through the atomic table
// writer; a write failure aborts the gamut, matching the all-or-nothing
// failure semantics of a run.
func (f *Fitter) refine(pred *predictor, outPath string) (*rgb2spec.Table, error) {
	targets := Targets(f.cfg.Resolution)
	raw, err := f.evalGrid(pred, targets)
	if err != nil {
		return nil, err
	}
	scales := pred.scales

	grads := make([]float64, len(raw))
	opt := newAdam(len(raw))
	sumDE := make([]float64, f.shard)
	maxDE := make([]float64, f.shard)

	for epoch := 1; epoch <= f.cfg.StageBIterations; epoch++ {
		lr := cosineLR(f.cfg.StageBLearningRate, epoch-1, f.cfg.StageBIterations)
		stats, err := f.refineEpoch(raw, grads, targets, scales, sumDE, maxDE)
		if err != nil {
			return nil, err
		}
		if !finite(stats.meanDE, stats.maxDE) {
			return nil, fmt.Errorf("fit: non-finite delta E in refinement at epoch %d", epoch)
		}
		opt.step(raw, grads, lr)

		if f.cfg.LogInterval > 0 && (epoch == 1 || epoch%f.cfg.LogInterval == 0 || epoch == f.cfg.StageBIterations) {
			f.log.Info("refine", "epoch", epoch, "deMean", stats.meanDE, "deMax", stats.maxDE, "lr", lr)
		}
		if outPath != "" && f.cfg.CheckpointInterval > 0 && epoch%f.cfg.CheckpointInterval == 0 {
			if err := f.buildTable(raw, scales).WriteFile(outPath); err != nil {
				return nil, fmt.Errorf("fit: checkpoint failed: %w", err)
			}
			f.log.Info("checkpoint saved", "path", outPath, "epoch", epoch)
		}
	}

	table := f.buildTable(raw, scales)
	if outPath != "" {
		if err := table.WriteFile(outPath); err != nil {
			return nil, fmt.Errorf("fit: final table write failed: %w", err)
		}
	}
	return table, nil
}
