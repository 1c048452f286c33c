package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/harshithgowdakt/widepart/internal/config"
	"github.com/harshithgowdakt/widepart/internal/logging"
	"github.com/harshithgowdakt/widepart/internal/storage"
)

func main() {
	configPath := flag.String("config", "widepart.yaml", "Path to the YAML config file")
	dataDir := flag.String("data-dir", "", "Data directory path (overrides config)")
	tableName := flag.String("table", "", "Table name")
	partName := flag.String("part", "", "Part directory name (e.g. all_1_1_0)")
	verify := flag.Bool("verify", false, "Recompute file hashes against checksums.txt")
	strict := flag.Bool("strict", false, "Fail on missing marks of columns listed in columns.txt")
	flag.Parse()

	if *tableName == "" {
		fatalf("missing required -table")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatalf("%v", err)
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	// Keep stdout clean for the JSON dump.
	if err := logging.Init("warn", false); err != nil {
		fatalf("%v", err)
	}

	ctx := context.Background()
	d, err := cfg.OpenDisk(ctx)
	if err != nil {
		fatalf("open disk: %v", err)
	}
	db, err := storage.NewDatabase(ctx, d, cfg.MergeTree, cfg.AttachConcurrency)
	if err != nil {
		fatalf("open database: %v", err)
	}
	table, ok := db.GetTable(*tableName)
	if !ok {
		fatalf("table %q not found", *tableName)
	}

	var out any
	if *partName == "" {
		names := []string{}
		for _, p := range table.GetActiveParts() {
			names = append(names, p.Name)
		}
		out = map[string]any{"table": *tableName, "active_parts": names}
	} else {
		part, ok := table.GetPart(*partName)
		if !ok {
			fatalf("part %q not found among active parts", *partName)
		}
		out, err = dumpPart(ctx, part, options{verify: *verify, strict: *strict})
		if err != nil {
			fatalf("dump part: %v", err)
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fatalf("encode json: %v", err)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
