// Package fit implements the two-stage optimization that produces a spectral
// coefficient table for one gamut: a warm-start predictor network trained to
// invert the spectrum-to-RGB transform for arbitrary colors, followed by
// direct per-grid-cell refinement against the exact target grid.
package fit

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"runtime"

	"github.com/kovidgoyal/go-parallel"

	"github.com/MatchaChoco010/rgb2spec"
	"github.com/MatchaChoco010/rgb2spec/cie"
	"github.com/MatchaChoco010/rgb2spec/gamut"
)

var _ = fmt.Print

// Fitter runs the fit for a single gamut. It owns all mutable optimization
// state; gamuts are processed one Fitter at a time with no shared state.
type Fitter struct {
	cfg   Config
	pipe  pipeline
	log   *slog.Logger
	rng   *rand.Rand
	shard int
}

// New validates the configuration and prepares a fitter for one gamut.
func New(cfg Config, basis *cie.Basis, g *gamut.Gamut, logger *slog.Logger) (*Fitter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	shards := cfg.Workers
	if shards <= 0 {
		shards = runtime.GOMAXPROCS(0)
	}
	return &Fitter{
		cfg:   cfg,
		pipe:  pipeline{basis: basis, g: g},
		log:   logger.With("gamut", g.Name),
		rng:   rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		shard: shards,
	}, nil
}

// Run executes stage A then stage B. If outPath is non-empty the final table
// (and periodic stage-B checkpoints) are written there; the returned table is
// the in-memory result either way.
func (f *Fitter) Run(outPath string) (*rgb2spec.Table, error) {
	pred, err := f.trainPredictor()
	if err != nil {
		return nil, err
	}
	return f.refine(pred, outPath)
}

// forEachShard partitions [0, n) into the fitter's shard count and runs fn
// for each shard in parallel. shard indexes per-shard scratch buffers; the
// sample ranges of distinct shards never overlap.
func (f *Fitter) forEachShard(n int, fn func(shard, start, limit int)) error {
	per := (n + f.shard - 1) / f.shard
	return parallel.Run_in_parallel_over_range(0, func(lo, hi int) {
		for s := lo; s < hi; s++ {
			start := s * per
			limit := min(start+per, n)
			if start < limit {
				fn(s, start, limit)
			}
		}
	}, 0, f.shard)
}

func finite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
