package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/opsvigil/vigil/internal/executor/dbcheck"
	"github.com/opsvigil/vigil/internal/executor/httpcheck"
	"github.com/opsvigil/vigil/internal/metrics"
	"github.com/opsvigil/vigil/internal/monitor"
	"github.com/opsvigil/vigil/internal/notify"
	"github.com/opsvigil/vigil/internal/orchestrator"
)

func main() {
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	validateDir := validateCmd.String("dir", "", "directory containing monitoring YAML documents")

	runCmd := flag.NewFlagSet("run", flag.ExitOnError)
	runDir := runCmd.String("dir", "", "directory containing monitoring YAML documents")
	runTimeout := runCmd.Duration("timeout", 2*time.Minute, "overall sweep timeout")

	testCmd := flag.NewFlagSet("test-channels", flag.ExitOnError)
	testDir := testCmd.String("dir", "", "directory containing monitoring YAML documents")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "validate":
		validateCmd.Parse(os.Args[2:])
		if *validateDir == "" {
			fmt.Fprintln(os.Stderr, "Error: --dir flag is required")
			validateCmd.Usage()
			os.Exit(1)
		}
		os.Exit(runValidate(*validateDir))
	case "run":
		runCmd.Parse(os.Args[2:])
		if *runDir == "" {
			fmt.Fprintln(os.Stderr, "Error: --dir flag is required")
			runCmd.Usage()
			os.Exit(1)
		}
		os.Exit(runSweep(*runDir, *runTimeout))
	case "test-channels":
		testCmd.Parse(os.Args[2:])
		if *testDir == "" {
			fmt.Fprintln(os.Stderr, "Error: --dir flag is required")
			testCmd.Usage()
			os.Exit(1)
		}
		os.Exit(runTestChannels(*testDir))
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: vigil <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  validate --dir <path>        Validate monitoring YAML documents in a directory")
	fmt.Println("  run --dir <path>             Run every enabled check once and print the results")
	fmt.Println("  test-channels --dir <path>   Send a test message through every configured channel")
	fmt.Println()
}

func runValidate(dirPath string) int {
	validator, err := monitor.NewValidator()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize validator: %v\n", err)
		return 1
	}

	errors := validator.ValidateDirectory(dirPath)

	if len(errors) == 0 {
		fmt.Println("✓ All monitoring documents are valid")
		return 0
	}

	printValidationErrors(errors)
	return 1
}

func runSweep(dirPath string, timeout time.Duration) int {
	cfg, errors := monitor.LoadConfig(dirPath)
	if len(errors) > 0 {
		printValidationErrors(errors)
		return 1
	}

	logger := cliLogger()
	aggregator := metrics.NewAggregator()
	executors := map[monitor.CheckType]orchestrator.Executor{
		monitor.CheckTypeHTTP:     httpcheck.NewExecutor(nil, logger),
		monitor.CheckTypeDatabase: dbcheck.NewExecutor(logger),
	}

	// One-shot sweep: results go to stdout, not to notification channels
	engine := orchestrator.NewEngine(cfg.Checks, executors, aggregator, nil, logger)
	engine.SetMaxConcurrency(cfg.Engine.MaxConcurrency)
	if cfg.Engine.DefaultCheckTimeout != "" {
		d, err := monitor.ParseDuration(cfg.Engine.DefaultCheckTimeout)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid default check timeout: %v\n", err)
			return 1
		}
		engine.SetDefaultTimeout(d)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := engine.Execute(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: sweep failed: %v\n", err)
		return 1
	}

	results := engine.Cache().GetAll()
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	exit := 0
	healthy := 0
	for _, name := range names {
		r := results[name]
		marker := "✓"
		if r.Status == monitor.StatusHealthy {
			healthy++
		} else {
			marker = "✗"
			exit = 1
		}
		fmt.Printf("%s %-30s %-10s %6dms  %s\n", marker, r.CheckName, r.Status, r.DurationMs, r.Message)
	}

	fmt.Printf("\n%d checks, %d healthy\n", len(names), healthy)
	return exit
}

func runTestChannels(dirPath string) int {
	cfg, errors := monitor.LoadConfig(dirPath)
	if len(errors) > 0 {
		printValidationErrors(errors)
		return 1
	}

	if len(cfg.Channels) == 0 {
		fmt.Println("no channels configured")
		return 0
	}

	router := notify.NewRouter(cfg.Channels, cliLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	failed := 0
	for _, ch := range cfg.Channels {
		if err := router.TestChannel(ctx, ch.Name); err != nil {
			fmt.Printf("✗ %s (%s): %v\n", ch.Name, ch.Type, err)
			failed++
			continue
		}
		fmt.Printf("✓ %s (%s)\n", ch.Name, ch.Type)
	}

	if failed > 0 {
		fmt.Printf("\n%d of %d channels failed\n", failed, len(cfg.Channels))
		return 1
	}
	fmt.Printf("\nall %d channels ok\n", len(cfg.Channels))
	return 0
}

func printValidationErrors(errors []monitor.ValidationError) {
	// Group errors by file
	errorsByFile := make(map[string][]monitor.ValidationError)
	for _, err := range errors {
		errorsByFile[err.File] = append(errorsByFile[err.File], err)
	}

	var files []string
	for file := range errorsByFile {
		files = append(files, file)
	}
	sort.Strings(files)

	fmt.Fprintf(os.Stderr, "✗ Validation failed with %d error(s):\n\n", len(errors))
	for _, file := range files {
		for _, err := range errorsByFile[file] {
			if err.Path != "" {
				fmt.Fprintf(os.Stderr, "%s: %s: %s\n", filepath.Base(err.File), err.Path, err.Message)
			} else {
				fmt.Fprintf(os.Stderr, "%s: %s\n", filepath.Base(err.File), err.Message)
			}
		}
	}
}

func cliLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(zerolog.WarnLevel).
		With().Timestamp().Logger()
}
