package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/faasbench/faasbench/benchmark"
	"github.com/faasbench/faasbench/cache"
	"github.com/faasbench/faasbench/cloud"
	"github.com/faasbench/faasbench/experiment"
	"github.com/faasbench/faasbench/storage"
	"github.com/spf13/cobra"
)

var (
	flagRepetitions     int
	flagVerbose         bool
	flagBenchmarksDir   string
	flagCacheDir        string
	flagPort            int
	flagEmulatedStorage bool
	flagProviderConfig  []string
)

func main() {
	root := &cobra.Command{
		Use:           "faasbench",
		Short:         "Benchmark serverless functions against cloud and emulated deployments",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	run := &cobra.Command{
		Use:   "run <cloud> <benchmark> <output-dir> <language> <size>",
		Short: "Run one benchmark end to end and write experiment.json",
		Args:  cobra.ExactArgs(5),
		RunE:  runExperiment,
	}
	run.Flags().IntVar(&flagRepetitions, "repetitions", 5, "How many times to invoke the deployed function.")
	run.Flags().BoolVar(&flagVerbose, "verbose", false, "Enable debug logging.")
	run.Flags().StringVar(&flagBenchmarksDir, "benchmarks-dir", "benchmarks", "Root directory scanned for benchmark definitions.")
	run.Flags().StringVar(&flagCacheDir, "cache-dir", ".faasbench-cache", "Directory holding cached storage resource state.")
	run.Flags().IntVar(&flagPort, "port", 9000, "Host port for the emulated storage container.")
	run.Flags().BoolVar(&flagEmulatedStorage, "emulated-storage", false, "Provision a local minio container instead of provider storage.")
	run.Flags().StringArrayVar(&flagProviderConfig, "config", nil, "Provider setting as key=value. Can be used multiple times.")
	root.AddCommand(run)

	if err := root.Execute(); err != nil {
		slog.Error("run failed", slog.String("err", err.Error()))
		os.Exit(1)
	}
}

func runExperiment(cmd *cobra.Command, args []string) error {
	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	provider := args[0]
	benchmarkName := args[1]
	outputDir := args[2]

	language, err := benchmark.ParseLanguage(args[3])
	if err != nil {
		return err
	}
	size, err := benchmark.ParseSize(args[4])
	if err != nil {
		return err
	}

	settings, err := parseSettings(flagProviderConfig)
	if err != nil {
		return err
	}

	client, err := cloud.NewClient(cmd.Context(), provider, settings)
	if err != nil {
		return err
	}

	var containers storage.ContainerRuntime
	if flagEmulatedStorage {
		containers, err = storage.NewDockerRuntime()
		if err != nil {
			return err
		}
	}

	resourceCache, err := cache.New(flagCacheDir)
	if err != nil {
		return err
	}

	pipeline := experiment.NewPipeline(&experiment.PipelineInput{
		Client:          client,
		Cache:           resourceCache,
		Containers:      containers,
		Retry:           storage.DefaultRetryPolicy(),
		BenchmarksDir:   flagBenchmarksDir,
		EmulatedStorage: flagEmulatedStorage,
		StoragePort:     flagPort,
	})

	summary, err := pipeline.Execute(cmd.Context(), &experiment.Run{
		Benchmark:   benchmarkName,
		Language:    language,
		Size:        size,
		OutputDir:   outputDir,
		Repetitions: flagRepetitions,
		Verbose:     flagVerbose,
	})
	if err != nil {
		return err
	}

	slog.Info("experiment finished",
		slog.String("benchmark", summary.Benchmark),
		slog.Int("repetitions", len(summary.Results)),
		slog.String("output", outputDir),
	)
	return nil
}

func parseSettings(pairs []string) (map[string]any, error) {
	settings := map[string]any{}
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found {
			return nil, fmt.Errorf("invalid --config value %q, expected key=value", pair)
		}
		settings[key] = value
	}
	return settings, nil
}
