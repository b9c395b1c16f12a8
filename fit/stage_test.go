package fit

import (
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/MatchaChoco010/rgb2spec"
	"github.com/MatchaChoco010/rgb2spec/cie"
	"github.com/MatchaChoco010/rgb2spec/gamut"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func tinyConfig() Config {
	cfg := DefaultConfig()
	cfg.Resolution = 4
	cfg.StageAIterations = 200
	cfg.StageBIterations = 50
	cfg.BatchSize = 32
	cfg.PoolSize = 256
	cfg.HiddenWidth = 16
	cfg.HiddenLayers = 2
	cfg.CheckpointInterval = 20
	cfg.LogInterval = 0
	return cfg
}

func newTestFitter(t *testing.T, cfg Config) *Fitter {
	t.Helper()
	g, err := gamut.Lookup("sRGB")
	require.NoError(t, err)
	f, err := New(cfg, cie.NewBasis(), g, quietLogger())
	require.NoError(t, err)
	return f
}

// A tiny warm-start budget must already wire the whole pipeline correctly:
// finite coefficients and a mean delta E on held-out colors far below
// pathological.
func TestStageASmoke(t *testing.T) {
	f := newTestFitter(t, tinyConfig())
	pred, err := f.trainPredictor()
	require.NoError(t, err)

	cache := pred.net.newCache(1)
	var sum float64
	const held = 512
	for i := range held {
		rgb := [3]float64{
			float64(i%8) / 7,
			float64((i/8)%8) / 7,
			float64(i/64) / 7,
		}
		raw := pred.predictRaw(rgb, cache)
		coeff := decodeCoeff(raw, pred.scales)
		for k := range 3 {
			require.False(t, math.IsNaN(coeff[k]) || math.IsInf(coeff[k], 0))
		}
		got := f.pipe.rgbFromCoeff(coeff)
		sum += f.pipe.g.DeltaE(got, gamut.Vec3(rgb))
	}
	require.Less(t, sum/held, 50.0)
}

func TestStageADeterministicForSeed(t *testing.T) {
	cfg := tinyConfig()
	cfg.StageAIterations = 20
	a, err := newTestFitter(t, cfg).trainPredictor()
	require.NoError(t, err)
	b, err := newTestFitter(t, cfg).trainPredictor()
	require.NoError(t, err)
	require.Equal(t, a.scales, b.scales)
	require.Equal(t, a.net.params, b.net.params)
}

// Per-cell refinement on the two adversarial extremes: pure green and pure
// black must fit to a small perceptual error, since these cells exist
// exactly (z-node 1 and 0) in every table.
func TestRefineGreenAndBlackCells(t *testing.T) {
	f := newTestFitter(t, tinyConfig())
	targets := []float64{
		0, 1, 0,
		0, 0, 0,
	}
	raw := make([]float64, len(targets))
	scales := referenceScales
	grads := make([]float64, len(raw))
	opt := newAdam(len(raw))
	sumDE := make([]float64, f.shard)
	maxDE := make([]float64, f.shard)

	const epochs = 5000
	var stats refineStats
	var err error
	for epoch := range epochs {
		stats, err = f.refineEpoch(raw, grads, targets, scales, sumDE, maxDE)
		require.NoError(t, err)
		opt.step(raw, grads, cosineLR(0.02, epoch, epochs))
	}

	for cell := range 2 {
		r := [3]float64{raw[cell*3], raw[cell*3+1], raw[cell*3+2]}
		coeff := decodeCoeff(r, scales)
		pred := clampNonNegative(f.pipe.rgbFromCoeff(coeff))
		target := gamut.Vec3{targets[cell*3], targets[cell*3+1], targets[cell*3+2]}
		de := f.pipe.g.DeltaE(pred, target)
		require.Less(t, de, 5.0, "cell %d pred %v target %v", cell, pred, target)
	}
	require.Less(t, stats.maxDE, 5.0)
}

func TestRunEndToEnd(t *testing.T) {
	cfg := tinyConfig()
	cfg.StageAIterations = 20
	cfg.StageBIterations = 30
	f := newTestFitter(t, cfg)

	out := filepath.Join(t.TempDir(), "srgb_table.bin")
	table, err := f.Run(out)
	require.NoError(t, err)
	require.Equal(t, cfg.Resolution, table.Resolution)
	for _, c := range table.Coefficients {
		require.False(t, math.IsNaN(float64(c)) || math.IsInf(float64(c), 0))
	}

	info, err := os.Stat(out)
	require.NoError(t, err)
	require.Equal(t, rgb2spec.FileSize(cfg.Resolution), info.Size())

	back, err := rgb2spec.ReadFile(out, cfg.Resolution)
	require.NoError(t, err)
	require.Empty(t, cmp.Diff(table, back))

	// No stray checkpoint temp files.
	entries, err := os.ReadDir(filepath.Dir(out))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestConfigValidate(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"resolution", func(c *Config) { c.Resolution = 1 }},
		{"iterations", func(c *Config) { c.StageAIterations = 0 }},
		{"learning rate", func(c *Config) { c.StageBLearningRate = -1 }},
		{"batch", func(c *Config) { c.BatchSize = 0 }},
		{"pool", func(c *Config) { c.PoolSize = 16; c.BatchSize = 32 }},
		{"hidden", func(c *Config) { c.HiddenLayers = 0 }},
		{"weights", func(c *Config) { c.GreenLossWeight = -0.5 }},
		{"dark bound", func(c *Config) { c.DarkMax = 0 }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
	require.NoError(t, DefaultConfig().Validate())
}
