// Package main calibrates the discrete species hop coefficients with CMA-ES
// so that molecule profiles follow a reference continuous species.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gonum.org/v1/gonum/optimize"

	"github.com/pthm-cable/tsdpd/config"
)

// formatDuration formats a duration as HhMMmSSs or MmSSs for shorter durations.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}

func main() {
	configPath := flag.String("config", "", "Base config YAML file (empty = use defaults)")
	steps := flag.Int("steps", 200, "Steps per evaluation run")
	seeds := flag.Int("seeds", 2, "Number of seeds per evaluation")
	maxEvals := flag.Int("max-evals", 60, "Maximum number of evaluations")
	population := flag.Int("population", 0, "CMA-ES population size (0 = auto)")
	bins := flag.Int("bins", 0, "Profile bins along x (0 = lattice columns)")
	reference := flag.Int("reference", 0, "Continuous species index the profiles are matched to")
	outputDir := flag.String("output", "", "Output directory for results")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	if *outputDir == "" {
		log.Fatal("--output is required")
	}
	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatalf("failed to create output directory: %v", err)
	}

	if err := config.Init(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	baseCfg := config.Cfg()
	if *reference < 0 || *reference >= baseCfg.Derived.NumContinuous {
		log.Fatalf("reference species %d outside 0..%d", *reference, baseCfg.Derived.NumContinuous-1)
	}
	if *bins <= 0 {
		*bins = baseCfg.Lattice.Counts[0]
	}

	params, err := NewParamVector(baseCfg)
	if err != nil {
		log.Fatal(err)
	}

	evalSeeds := make([]uint64, *seeds)
	for i := range evalSeeds {
		evalSeeds[i] = baseCfg.Simulation.Seed + uint64(i)*1000
	}
	evaluator := NewFitnessEvaluator(params, baseCfg, *steps, evalSeeds, *bins, *reference)

	dim := params.Dim()
	initX := params.Normalize(params.DefaultVector())

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			return evaluator.Evaluate(params.Denormalize(x))
		},
	}
	settings := &optimize.Settings{
		FuncEvaluations: *maxEvals,
		Concurrent:      0,
	}

	popSize := *population
	if popSize == 0 {
		popSize = 4 + int(3*math.Log(float64(dim)+1))
	}
	method := &optimize.CmaEsChol{
		InitStepSize: 0.2,
		Population:   popSize,
	}

	logPath := filepath.Join(*outputDir, "calibrate_log.csv")
	logFile, err := os.Create(logPath)
	if err != nil {
		log.Fatalf("failed to create log file: %v", err)
	}
	defer logFile.Close()

	logWriter := csv.NewWriter(logFile)
	defer logWriter.Flush()

	header := []string{"eval", "fitness"}
	for _, spec := range params.Specs {
		header = append(header, spec.Name)
	}
	logWriter.Write(header)

	evalCount := 0
	bestFitness := math.Inf(1)
	var bestParams []float64
	startTime := time.Now()

	originalFunc := problem.Func
	problem.Func = func(x []float64) float64 {
		fitness := originalFunc(x)
		evalCount++

		clamped := params.Clamp(params.Denormalize(x))
		if fitness < bestFitness {
			bestFitness = fitness
			bestParams = clamped
		}

		row := []string{strconv.Itoa(evalCount), fmt.Sprintf("%.6g", fitness)}
		for _, v := range clamped {
			row = append(row, fmt.Sprintf("%.6g", math.Pow(10, v)))
		}
		logWriter.Write(row)
		logWriter.Flush()

		elapsed := time.Since(startTime)
		remaining := time.Duration(*maxEvals-evalCount) * (elapsed / time.Duration(evalCount))
		fmt.Printf("Eval %d/%d: mismatch=%.4g (best=%.4g) | elapsed: %s, ETA: %s\n",
			evalCount, *maxEvals, fitness, bestFitness,
			formatDuration(elapsed), formatDuration(remaining))
		return fitness
	}

	fmt.Printf("Starting CMA-ES calibration of %d coefficients, population=%d, max_evals=%d\n",
		dim, popSize, *maxEvals)
	fmt.Printf("Seeds per evaluation: %d, steps per run: %d, bins: %d\n", *seeds, *steps, *bins)

	result, err := optimize.Minimize(problem, initX, settings, method)
	if err != nil {
		log.Printf("calibration ended: %v", err)
	}
	if bestParams == nil && result != nil {
		bestParams = params.Clamp(params.Denormalize(result.X))
	}
	if bestParams == nil {
		log.Fatal("no evaluation completed")
	}

	fmt.Printf("\nCalibration complete after %d evaluations in %s\n", evalCount, formatDuration(time.Since(startTime)))
	fmt.Printf("Best mismatch: %.4g\n", evaluator.BestFitness())
	fmt.Println("\nBest coefficients:")
	for i, spec := range params.Specs {
		fmt.Printf("  %s: %.6g\n", spec.Name, math.Pow(10, bestParams[i]))
	}

	bestCfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to reload config: %v", err)
	}
	params.ApplyToConfig(bestCfg, bestParams)
	configOutPath := filepath.Join(*outputDir, "best_config.yaml")
	if err := bestCfg.WriteYAML(configOutPath); err != nil {
		log.Printf("failed to write best config: %v", err)
	} else {
		fmt.Printf("\nBest config saved to: %s\n", configOutPath)
	}
}
