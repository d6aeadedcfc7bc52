// Package main provides the ovopt CLI entry point.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/yding10/openvino/pkg/config"
	"github.com/yding10/openvino/pkg/rewrite"
	"github.com/yding10/openvino/pkg/simplify"
	"github.com/yding10/openvino/pkg/storage"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "ovopt",
		Short: "ovopt - dataflow graph optimizer",
		Long: `ovopt rewrites dataflow computation graphs with pattern-based
optimization rules while preserving an auditable provenance trail:
every optimized node can be traced back to the original user-authored
nodes it descends from.`,
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("ovopt v%s (%s)\n", version, commit)
		},
	})

	optimizeCmd := &cobra.Command{
		Use:   "optimize [graph.json]",
		Short: "Optimize a graph document",
		Long: `Optimize loads a graph document, runs the stock rewrite rules to a
bounded fixpoint, writes the optimized document, and journals every
replacement to the audit store.`,
		Args: cobra.ExactArgs(1),
		RunE: runOptimize,
	}
	optimizeCmd.Flags().String("output", "", "Output file (default: stdout)")
	optimizeCmd.Flags().String("config", "", "YAML config file")
	optimizeCmd.Flags().String("run", "", "Run name for snapshots and audit (default: input file name)")
	optimizeCmd.Flags().Int("max-passes", 0, "Fixpoint pass cap (overrides config)")
	optimizeCmd.Flags().Bool("no-provenance", false, "Disable provenance tracking")
	optimizeCmd.Flags().Bool("no-store", false, "Skip snapshot and audit persistence")
	rootCmd.AddCommand(optimizeCmd)

	auditCmd := &cobra.Command{
		Use:   "audit [run]",
		Short: "Print the audit journal of an optimization run",
		Args:  cobra.ExactArgs(1),
		RunE:  runAudit,
	}
	auditCmd.Flags().String("config", "", "YAML config file")
	rootCmd.AddCommand(auditCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	var cfg *config.Config
	if path != "" {
		var err error
		cfg, err = config.LoadFile(path)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.LoadFromEnv()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func runOptimize(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if n, _ := cmd.Flags().GetInt("max-passes"); n > 0 {
		cfg.Passes.MaxPasses = n
	}
	if off, _ := cmd.Flags().GetBool("no-provenance"); off {
		cfg.Provenance.Enabled = false
	}

	input := args[0]
	data, err := os.ReadFile(input)
	if err != nil {
		return fmt.Errorf("read graph: %w", err)
	}
	var doc storage.GraphDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse graph %s: %w", input, err)
	}
	g, prov, err := storage.Decode(&doc)
	if err != nil {
		return err
	}
	if !cfg.Provenance.Enabled {
		prov = nil
	}

	engine, err := rewrite.NewEngine(simplify.RulesNamed(cfg.Passes.Rules...)...)
	if err != nil {
		return err
	}

	run, _ := cmd.Flags().GetString("run")
	if run == "" {
		run = input
	}

	noStore, _ := cmd.Flags().GetBool("no-store")
	var store *storage.Store
	pass := 0
	if !noStore {
		store, err = storage.OpenWithOptions(storage.Options{
			DataDir:    cfg.Storage.DataDir,
			InMemory:   cfg.Storage.InMemory,
			SyncWrites: cfg.Storage.SyncWrites,
		})
		if err != nil {
			return err
		}
		defer store.Close()

		engine.SetObserver(func(rule string, rep *rewrite.Report) {
			entry := storage.AuditEntry{
				Rule:       rule,
				Pass:       pass,
				MergedTags: rep.MergedTags,
				At:         time.Now().UTC(),
			}
			for _, id := range rep.Removed {
				entry.Removed = append(entry.Removed, string(id))
			}
			for _, id := range rep.Inserted {
				entry.Inserted = append(entry.Inserted, string(id))
			}
			if err := store.AppendAudit(run, entry); err != nil {
				log.Printf("audit append failed: %v", err)
			}
		})
	}

	passes := 0
	for passes < cfg.Passes.MaxPasses {
		pass = passes
		dirty, err := engine.RunPass(g, prov)
		passes++
		if err != nil {
			return err
		}
		if !dirty {
			break
		}
	}
	if cfg.Logging.Verbose {
		log.Printf("optimize %s: %d passes, %d live nodes", input, passes, len(g.LiveSet()))
	}

	out, err := storage.Encode(g, prov)
	if err != nil {
		return err
	}
	if store != nil {
		if err := store.SaveSnapshot(run, out); err != nil {
			return err
		}
	}

	encoded, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	if path, _ := cmd.Flags().GetString("output"); path != "" {
		return os.WriteFile(path, append(encoded, '\n'), 0o644)
	}
	fmt.Println(string(encoded))
	return nil
}

func runAudit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, err := storage.OpenWithOptions(storage.Options{
		DataDir:  cfg.Storage.DataDir,
		InMemory: cfg.Storage.InMemory,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.Audit(args[0])
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("no audit entries")
		return nil
	}
	for i, e := range entries {
		fmt.Printf("%3d  %-16s removed=%v inserted=%v tags=%v\n",
			i, e.Rule, e.Removed, e.Inserted, e.MergedTags)
	}
	return nil
}
