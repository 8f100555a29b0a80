// Command kart-power-curve exposes the logger-path analyzer and the
// calibration engine as a CLI, for offline use and for testing the
// calibration state machine outside of the mobile acquisition runtime.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/banshee-data/kart-power-curve/internal/calibration"
	"github.com/banshee-data/kart-power-curve/internal/config"
	"github.com/banshee-data/kart-power-curve/internal/kerrors"
	"github.com/banshee-data/kart-power-curve/internal/pipeline"
)

const (
	exitOK                 = 0
	exitMalformedInput     = 2
	exitIOError            = 3
	exitConfigurationError = 4
)

func main() {
	app := &cli.App{
		Name:  "kart-power-curve",
		Usage: "reconstruct wheel power/torque curves from kart telemetry",
		Commands: []*cli.Command{
			analyzeCommand(),
			calibrateCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Println(err)
		os.Exit(exitCodeFor(err))
	}
}

func exitCodeFor(err error) int {
	kind, ok := kerrors.KindOf(err)
	if !ok {
		return exitIOError
	}
	switch kind {
	case kerrors.KindMalformedInput:
		return exitMalformedInput
	case kerrors.KindConfigurationInvalid:
		return exitConfigurationError
	case kerrors.KindInsufficientSamples:
		return exitMalformedInput
	default:
		return exitIOError
	}
}

func analyzeCommand() *cli.Command {
	return &cli.Command{
		Name:  "analyze",
		Usage: "run the logger-path pipeline over a telemetry CSV",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "csv", Required: true, Usage: "path to the logger CSV"},
			&cli.StringFlag{Name: "config", Usage: "path to a vehicle configuration JSON file"},
			&cli.StringFlag{Name: "laps", Usage: "comma-separated selected lap indices, e.g. 2,3,4"},
			&cli.Float64Flag{Name: "min-rpm", Usage: "minimum accepted engine speed"},
			&cli.Float64Flag{Name: "max-rpm", Usage: "maximum accepted engine speed"},
			&cli.Float64Flag{Name: "filter", Usage: "smoothing filter level in [0,100]"},
			&cli.StringFlag{Name: "out", Usage: "output path for the analysis JSON (stdout if omitted)"},
		},
		Action: runAnalyze,
	}
}

func runAnalyze(c *cli.Context) error {
	csvBytes, err := os.ReadFile(c.String("csv"))
	if err != nil {
		return fmt.Errorf("read csv: %w", err)
	}

	vehicle := config.Defaults()
	if path := c.String("config"); path != "" {
		vehicle, err = config.Load(path)
		if err != nil {
			return err
		}
	}
	if v := c.Float64("min-rpm"); v != 0 {
		vehicle.MinRPM = v
	}
	if v := c.Float64("max-rpm"); v != 0 {
		vehicle.MaxRPM = v
	}
	if v := c.Float64("filter"); v != 0 {
		vehicle.FilterLevel = v
	}
	if err := vehicle.Validate(); err != nil {
		return err
	}

	selectedLaps, err := parseLapList(c.String("laps"))
	if err != nil {
		return err
	}

	analysis, err := pipeline.AnalyzeLogger(csvBytes, vehicle, selectedLaps, time.Now())
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(analysis, "", "  ")
	if err != nil {
		return fmt.Errorf("encode analysis: %w", err)
	}

	if path := c.String("out"); path != "" {
		if err := os.WriteFile(path, out, 0o644); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		return nil
	}
	fmt.Println(string(out))
	return nil
}

func parseLapList(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, kerrors.Wrap(kerrors.KindConfigurationInvalid, "cli.analyze", "invalid --laps value", err)
		}
		out = append(out, n)
	}
	return out, nil
}

func calibrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "calibrate",
		Usage: "run the calibration engine over a recorded sample file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "samples", Required: true, Usage: "path to a JSON file with gravity/forward sample buffers"},
		},
		Action: runCalibrate,
	}
}

type calibrationSamplesFile struct {
	Gravity [][3]float64 `json:"gravity"`
	Forward [][3]float64 `json:"forward"`
}

func runCalibrate(c *cli.Context) error {
	data, err := os.ReadFile(c.String("samples"))
	if err != nil {
		return fmt.Errorf("read samples: %w", err)
	}

	var file calibrationSamplesFile
	if err := json.Unmarshal(data, &file); err != nil {
		return kerrors.Wrap(kerrors.KindMalformedInput, "cli.calibrate", "failed to parse samples file", err)
	}

	engine := calibration.New()
	for _, s := range file.Gravity {
		engine.PushGravitySample(calibration.Vec3(s))
	}
	for _, s := range file.Forward {
		engine.PushForwardSample(calibration.Vec3(s))
	}

	result, err := engine.Result()
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
