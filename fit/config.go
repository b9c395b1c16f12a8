package fit

import "fmt"

// Config carries every tunable of the two-stage fit. The defaults mirror the
// values the shipped tables were produced with.
type Config struct {
	// Resolution is the node count per grid axis.
	Resolution int

	// StageAIterations and StageBIterations are fixed budgets; neither
	// stage stops early.
	StageAIterations int
	StageBIterations int

	StageALearningRate float64
	StageBLearningRate float64

	// GreenLossWeight and DarkLossWeight scale the adversarial batch
	// losses relative to the general batch.
	GreenLossWeight float64
	DarkLossWeight  float64

	// DarkMax bounds the channel intensity of dark adversarial samples.
	DarkMax float64

	// ScalePenalty weights the squared-magnitude regularizer on the
	// learned coefficient scales.
	ScalePenalty float64

	BatchSize int
	PoolSize  int

	HiddenWidth  int
	HiddenLayers int

	// CheckpointInterval is in stage-B epochs; 0 disables checkpoints.
	CheckpointInterval int
	LogInterval        int

	Seed uint64

	// Workers limits batch parallelism; 0 uses all CPUs.
	Workers int
}

// DefaultConfig returns the reference configuration.
func DefaultConfig() Config {
	return Config{
		Resolution:         64,
		StageAIterations:   15000,
		StageBIterations:   15000,
		StageALearningRate: 1e-3,
		StageBLearningRate: 1e-3,
		GreenLossWeight:    5,
		DarkLossWeight:     5,
		DarkMax:            0.2,
		ScalePenalty:       1e-6,
		BatchSize:          4096,
		PoolSize:           1 << 18,
		HiddenWidth:        512,
		HiddenLayers:       5,
		CheckpointInterval: 2500,
		LogInterval:        1000,
		Seed:               1,
	}
}

// Validate rejects configurations the fitter cannot run with.
func (c Config) Validate() error {
	switch {
	case c.Resolution < 2:
		return fmt.Errorf("fit: resolution must be at least 2, got %d", c.Resolution)
	case c.StageAIterations < 1 || c.StageBIterations < 1:
		return fmt.Errorf("fit: iteration budgets must be positive")
	case c.StageALearningRate <= 0 || c.StageBLearningRate <= 0:
		return fmt.Errorf("fit: learning rates must be positive")
	case c.BatchSize < 1:
		return fmt.Errorf("fit: batch size must be positive, got %d", c.BatchSize)
	case c.PoolSize < c.BatchSize:
		return fmt.Errorf("fit: pool size %d smaller than batch size %d", c.PoolSize, c.BatchSize)
	case c.HiddenWidth < 1 || c.HiddenLayers < 1:
		return fmt.Errorf("fit: predictor needs at least one hidden layer")
	case c.GreenLossWeight < 0 || c.DarkLossWeight < 0 || c.ScalePenalty < 0:
		return fmt.Errorf("fit: loss weights must be non-negative")
	case c.DarkMax <= 0 || c.DarkMax > 1:
		return fmt.Errorf("fit: dark intensity bound must be in (0, 1], got %g", c.DarkMax)
	}
	return nil
}
