// rwtrace inspects read/write trace files: one JSON record per line, each a
// row or a copy row, as written by a builder session.
package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"github.com/xlab/treeprint"

	log "github.com/colorfulnotion/rwtrace/log"
	"github.com/colorfulnotion/rwtrace/rwbuilder"
	"github.com/colorfulnotion/rwtrace/rwerrors"
	"github.com/colorfulnotion/rwtrace/rwtable"
	"github.com/colorfulnotion/rwtrace/telemetry"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:          "rwtrace",
		Short:        "Read/write trace inspection",
		SilenceUsage: true,
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	var (
		logLevel          string
		debug             string
		configPath        string
		telemetryEndpoint string
	)
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&debug, "debug", "", "Comma-separated modules to log at debug level, or \"all\"")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Builder config JSON file")
	rootCmd.PersistentFlags().StringVar(&telemetryEndpoint, "telemetry", "", "OTLP/HTTP endpoint (host:port) for spans")

	tc := telemetry.NewNoOpTelemetryClient()
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := log.InitLogger(logLevel); err != nil {
			return err
		}
		log.EnableModules(debug)
		tc = telemetry.NewTelemetryClient(telemetryEndpoint, true)
		return tc.Connect(cmd.Context(), telemetry.DefaultServiceName)
	}
	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return tc.Close(ctx)
	}

	// load reads a trace file inside a span named after the command.
	load := func(cmd *cobra.Command, path string) ([]rwtable.Row, []rwtable.CopyRow, error) {
		_, span := tc.Tracer("rwtrace").Start(cmd.Context(), cmd.Name())
		defer span.End()
		rows, copies, err := rwtable.ReadJSONLFile(path)
		if err != nil {
			span.RecordError(err)
			return nil, nil, err
		}
		log.Debug(log.Witness, "loaded trace", "path", path, "rows", len(rows), "copies", len(copies))
		return rows, copies, nil
	}

	var verifyCmd = &cobra.Command{
		Use:   "verify <rows.jsonl>",
		Short: "Check that row counters are contiguous and copy rows cover real rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, copies, err := load(cmd, args[0])
			if err != nil {
				return err
			}
			if err := verifyTrace(rows, copies); err != nil {
				return fmt.Errorf("%s: %s: %w", args[0], rwerrors.GetErrorCodeWithName(err), err)
			}
			fmt.Printf("OK: %d rows, %d copy rows\n", len(rows), len(copies))
			return nil
		},
	}

	var summaryCmd = &cobra.Command{
		Use:   "summary <rows.jsonl>",
		Short: "Print row counts per call frame as a tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, copies, err := load(cmd, args[0])
			if err != nil {
				return err
			}
			fmt.Print(frameTree(rows, copies).String())
			return nil
		},
	}

	var witnessCmd = &cobra.Command{
		Use:   "witness <rows.jsonl>",
		Short: "Print the witness column digests and commitment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, _, err := load(cmd, args[0])
			if err != nil {
				return err
			}
			w := rwtable.NewWitness(rows)
			digests := w.Digests()
			for col := range digests {
				fmt.Printf("%-12s %s\n", rwtable.ColumnName(col), digests[col].String())
			}
			fmt.Printf("commitment   %s\n", w.Commitment())
			return nil
		},
	}

	var configCmd = &cobra.Command{
		Use:   "config",
		Short: "Print the effective builder config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := rwbuilder.DefaultConfig()
			if configPath != "" {
				var err error
				if cfg, err = rwbuilder.LoadConfig(configPath); err != nil {
					return err
				}
			}
			fmt.Println(cfg.String())
			return nil
		},
	}

	var versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("rwtrace %s (commit %s, built %s)\n", Version, Commit, BuildTime)
		},
	}

	rootCmd.AddCommand(verifyCmd, summaryCmd, witnessCmd, configCmd, versionCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// verifyTrace checks counter contiguity from the first counter and that
// every copy row spans rows of the trace.
func verifyTrace(rows []rwtable.Row, copies []rwtable.CopyRow) error {
	if len(rows) == 0 {
		return nil
	}
	if err := rwtable.Verify(rows); err != nil {
		return err
	}
	first, last := rows[0].RwCounter, rows[len(rows)-1].RwCounter
	for i, c := range copies {
		if c.Length == 0 {
			continue
		}
		if c.RwCounter < first || c.RwCounter+c.Length-1 > last {
			return fmt.Errorf("%w: copy row %d spans [%d, %d) outside [%d, %d]", rwerrors.ErrCounterGap, i, c.RwCounter, c.RwCounter+c.Length, first, last)
		}
	}
	return nil
}

// frameTree renders frames nested as they were entered, with per-kind counts.
func frameTree(rows []rwtable.Row, copies []rwtable.CopyRow) treeprint.Tree {
	sum := rwtable.Summarize(rows, copies)
	parents := rwtable.FrameParents(rows)
	children := make(map[uint32][]uint32)
	var roots []uint32
	for id, p := range parents {
		if id == p {
			roots = append(roots, id)
			continue
		}
		children[p] = append(children[p], id)
	}
	for _, ids := range children {
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i] < roots[j] })

	tree := treeprint.New()
	tree.SetValue(fmt.Sprintf("%d rows, %d writes, %d copy rows", sum.Rows, sum.Writes, sum.Copies))
	var add func(t treeprint.Tree, id uint32)
	add = func(t treeprint.Tree, id uint32) {
		branch := t.AddBranch(fmt.Sprintf("call %d", id))
		for _, k := range rwtable.Kinds() {
			if n := sum.ByFrame[id][k]; n > 0 {
				branch.AddNode(fmt.Sprintf("%s: %d", k, n))
			}
		}
		for _, child := range children[id] {
			add(branch, child)
		}
	}
	for _, id := range roots {
		add(tree, id)
	}
	return tree
}
