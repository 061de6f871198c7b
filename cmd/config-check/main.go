package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/chrissnell/spmanalyzer/pkg/config"
)

func main() {
	yamlFile := flag.String("yaml", "", "Path to YAML configuration file")
	flag.Parse()

	if *yamlFile == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -yaml <config.yaml>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("Configuration Check")
	fmt.Println("===================")

	fmt.Printf("Loading YAML configuration: %s\n", *yamlFile)
	provider := config.NewYAMLProvider(*yamlFile)
	defer provider.Close()

	cfg, err := provider.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ %v\n", err)
		os.Exit(1)
	}
	fmt.Println("✓ Configuration is valid")

	fmt.Println("\nEffective Settings:")
	fmt.Println("==================")
	fmt.Printf("Server:    %s (TLS: %t)\n", cfg.Server.Addr(), cfg.Server.TLS())
	if cfg.Server.DataRoot != "" {
		fmt.Printf("Data root: %s\n", cfg.Server.DataRoot)
	} else {
		fmt.Println("Data root: unrestricted")
	}
	fmt.Printf("Sampling:  %s (%d to %d interpolated points)\n", cfg.Analysis.DefaultSampling, cfg.Analysis.MinInterpolatePoints, cfg.Analysis.MaxInterpolatePoints)
	fmt.Printf("Curves:    %d\n", cfg.Analysis.DefaultMaxCurves)
	fmt.Printf("Cache:     %d files per kind\n", cfg.Analysis.CacheSize)

	switch cfg.History.Backend {
	case config.HistorySQLite:
		fmt.Printf("History:   sqlite at %s\n", cfg.History.SQLitePath)
	case config.HistoryPostgres:
		fmt.Println("History:   postgres")
	default:
		fmt.Println("History:   disabled")
	}

	switch {
	case !cfg.Tracing.Enabled:
		fmt.Println("Tracing:   disabled")
	case cfg.Tracing.File != "":
		fmt.Printf("Tracing:   spans to %s\n", cfg.Tracing.File)
	default:
		fmt.Println("Tracing:   spans to stdout")
	}

	if cfg.Logging.File != "" {
		fmt.Printf("Log file:  %s (%d MB x %d backups)\n", cfg.Logging.File, cfg.Logging.MaxSizeMB, cfg.Logging.MaxBackups)
	}
}
