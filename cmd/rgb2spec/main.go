// Command rgb2spec fits and serializes a spectral coefficient table for each
// requested gamut, sequentially, writing one binary table file per gamut.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alecthomas/kong"

	"github.com/MatchaChoco010/rgb2spec/cie"
	"github.com/MatchaChoco010/rgb2spec/fit"
	"github.com/MatchaChoco010/rgb2spec/gamut"
)

type CLI struct {
	Out                string   `help:"Output directory for table files." default:"tables" type:"path"`
	Gamuts             []string `help:"Gamuts to fit (default: all six)." placeholder:"NAME"`
	Resolution         int      `help:"Grid nodes per axis." default:"64"`
	StageAIterations   int      `help:"Warm-start training iterations." default:"15000"`
	StageBIterations   int      `help:"Refinement epochs." default:"15000"`
	StageALr           float64  `help:"Warm-start learning rate." default:"0.001" name:"stage-a-lr"`
	StageBLr           float64  `help:"Refinement learning rate." default:"0.001" name:"stage-b-lr"`
	GreenWeight        float64  `help:"Pure-green adversarial loss weight." default:"5"`
	DarkWeight         float64  `help:"Dark adversarial loss weight." default:"5"`
	DarkMax            float64  `help:"Intensity bound of dark adversarial samples." default:"0.2"`
	ScalePenalty       float64  `help:"L2 penalty on learned coefficient scales." default:"1e-6"`
	BatchSize          int      `help:"Mini-batch size." default:"4096"`
	PoolSize           int      `help:"Pre-generated RGB sample pool size." default:"262144"`
	HiddenWidth        int      `help:"Predictor hidden layer width." default:"512"`
	HiddenLayers       int      `help:"Predictor hidden layer count." default:"5"`
	CheckpointInterval int      `help:"Epochs between refinement checkpoints (0 disables)." default:"2500"`
	LogInterval        int      `help:"Iterations between progress reports." default:"1000"`
	Seed               uint64   `help:"Random seed." default:"1"`
	Workers            int      `help:"Worker count for batch parallelism (0 = all CPUs)." default:"0"`
}

func (c *CLI) Validate(kctx *kong.Context) error {
	for _, name := range c.Gamuts {
		if _, err := gamut.Lookup(name); err != nil {
			return err
		}
	}
	return c.config().Validate()
}

func (c *CLI) config() fit.Config {
	return fit.Config{
		Resolution:         c.Resolution,
		StageAIterations:   c.StageAIterations,
		StageBIterations:   c.StageBIterations,
		StageALearningRate: c.StageALr,
		StageBLearningRate: c.StageBLr,
		GreenLossWeight:    c.GreenWeight,
		DarkLossWeight:     c.DarkWeight,
		DarkMax:            c.DarkMax,
		ScalePenalty:       c.ScalePenalty,
		BatchSize:          c.BatchSize,
		PoolSize:           c.PoolSize,
		HiddenWidth:        c.HiddenWidth,
		HiddenLayers:       c.HiddenLayers,
		CheckpointInterval: c.CheckpointInterval,
		LogInterval:        c.LogInterval,
		Seed:               c.Seed,
		Workers:            c.Workers,
	}
}

func (c *CLI) selected() ([]*gamut.Gamut, error) {
	if len(c.Gamuts) == 0 {
		return gamut.All(), nil
	}
	gamuts := make([]*gamut.Gamut, 0, len(c.Gamuts))
	for _, name := range c.Gamuts {
		g, err := gamut.Lookup(name)
		if err != nil {
			return nil, err
		}
		gamuts = append(gamuts, g)
	}
	return gamuts, nil
}

func main() {
	var cli CLI
	names := make([]string, 0, 6)
	for _, g := range gamut.All() {
		names = append(names, g.Name)
	}
	kctx := kong.Parse(&cli,
		kong.Description("Fit sigmoid-polynomial spectral coefficient tables for RGB gamuts ("+
			strings.Join(names, ", ")+")."))
	kctx.FatalIfErrorf(run(&cli))
}

func run(cli *CLI) error {
	gamuts, err := cli.selected()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cli.Out, 0o755); err != nil {
		return fmt.Errorf("could not create output directory: %w", err)
	}

	basis := cie.NewBasis()
	cfg := cli.config()

	start := time.Now()
	for _, g := range gamuts {
		gStart := time.Now()
		out := filepath.Join(cli.Out, g.TableFile)
		slog.Info("fitting", "gamut", g.Name, "out", out)

		fitter, err := fit.New(cfg, basis, g, slog.Default())
		if err != nil {
			return err
		}
		if _, err := fitter.Run(out); err != nil {
			return fmt.Errorf("%s: %w", g.Name, err)
		}
		slog.Info("gamut done", "gamut", g.Name, "elapsed", time.Since(gStart).Round(time.Second))
	}
	slog.Info("all gamuts done", "count", len(gamuts), "elapsed", time.Since(start).Round(time.Second))
	return nil
}
