package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/therealspring/carbonscen/expr"
	"github.com/therealspring/carbonscen/format"
	"github.com/therealspring/carbonscen/internal/ctxlog"
	"github.com/therealspring/carbonscen/plan"
	"github.com/therealspring/carbonscen/runner"
	"github.com/therealspring/carbonscen/store"
	"github.com/therealspring/carbonscen/table"
)

// gridExtension is the file suffix for grid containers in the data directory.
const gridExtension = ".cgrid"

func main() {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:   "carbonscen",
		Short: "Evaluate carbon regression scenario models over tiled grids",
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(newEvaluateCmd(&verbose))
	rootCmd.AddCommand(newInfoCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newEvaluateCmd(verbose *bool) *cobra.Command {
	var (
		tablePath        string
		dataDir          string
		outputPath       string
		baseName         string
		targetName       string
		zeroNodata       []string
		targetNodata     float64
		conversionFactor float64
		workers          int
		compression      string
	)

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Compile a regression table and evaluate it over predictor grids",
		RunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			if *verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
			ctx := ctxlog.WithLogger(context.Background(), logger)

			terms, err := table.LoadFile(tablePath)
			if err != nil {
				return err
			}

			var compileOpts []expr.CompileOption
			if baseName != "" {
				compileOpts = append(compileOpts, expr.WithSubstitution(baseName, targetName))
			}
			stream, err := expr.Compile(terms, compileOpts...)
			if err != nil {
				return fmt.Errorf("compile table: %w", err)
			}
			logger.Debug("compiled expression", "stream", stream.String())

			names := stream.Symbols()
			if len(names) == 0 {
				return fmt.Errorf("table references no predictor grids")
			}

			readers := make(map[string]*store.Reader, len(names))
			defer func() {
				for _, r := range readers {
					r.Close()
				}
			}()
			for _, name := range names {
				r, err := store.Open(filepath.Join(dataDir, name+gridExtension))
				if err != nil {
					logger.Debug("grid not available", "name", name, "error", err)
					continue
				}
				readers[name] = r
			}

			resolver := func(name string) (*float64, bool) {
				r, ok := readers[name]
				if !ok {
					return nil, false
				}
				return r.Header().Nodata, true
			}

			planOpts := []plan.BuildOption{
				plan.WithZeroNodataSymbols(zeroNodata...),
				plan.WithTargetNodata(targetNodata),
			}
			if cmd.Flags().Changed("conversion-factor") {
				planOpts = append(planOpts, plan.WithConversionFactor(conversionFactor))
			}
			p, err := plan.Build(stream, resolver, planOpts...)
			if err != nil {
				return err
			}

			ordered := make([]*store.Reader, p.SlotCount())
			for _, sym := range p.Symbols() {
				ordered[sym.Slot] = readers[sym.Name]
			}
			if !store.Aligned(ordered...) {
				return fmt.Errorf("predictor grids in %s are not aligned", dataDir)
			}

			compressionType, ok := format.ParseCompression(compression)
			if !ok {
				return fmt.Errorf("unknown compression: %s", compression)
			}

			ref := ordered[0].Header()
			out, err := os.Create(outputPath)
			if err != nil {
				return fmt.Errorf("create output %s: %w", outputPath, err)
			}
			defer out.Close()

			w, err := store.NewWriter(out, "result", ref.Width, ref.Height,
				store.WithTileRows(ref.TileRows),
				store.WithNodata(p.TargetNodata()),
				store.WithCompression(compressionType),
			)
			if err != nil {
				return err
			}

			if err := runner.Run(ctx, p, ordered, w, workers); err != nil {
				return err
			}

			return out.Close()
		},
	}

	cmd.Flags().StringVarP(&tablePath, "table", "t", "", "regression table CSV (required)")
	cmd.Flags().StringVarP(&dataDir, "data-dir", "d", ".", "directory containing predictor grids")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "result"+gridExtension, "output grid path")
	cmd.Flags().StringVar(&baseName, "base-name", "", "convolution base name to substitute")
	cmd.Flags().StringVar(&targetName, "target-name", "", "replacement for the base name prefix")
	cmd.Flags().StringSliceVar(&zeroNodata, "zero-nodata", nil, "symbols whose nodata pixels count as zero")
	cmd.Flags().Float64Var(&targetNodata, "target-nodata", plan.DefaultTargetNodata, "output nodata value")
	cmd.Flags().Float64Var(&conversionFactor, "conversion-factor", 1.0, "scalar applied once to the final result")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "worker count (0 = all CPUs)")
	cmd.Flags().StringVar(&compression, "compression", "s2", "output compression (none, zstd, s2, lz4)")
	_ = cmd.MarkFlagRequired("table")

	return cmd
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <grid>",
		Short: "Print a grid container's header",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := store.Open(args[0])
			if err != nil {
				return err
			}
			defer r.Close()

			hdr := r.Header()
			fmt.Printf("name:        %s\n", hdr.Name)
			fmt.Printf("grid id:     0x%016x\n", hdr.GridID)
			fmt.Printf("size:        %dx%d\n", hdr.Width, hdr.Height)
			fmt.Printf("tile rows:   %d (%d tiles)\n", hdr.TileRows, hdr.TileCount())
			fmt.Printf("compression: %s\n", hdr.Compression)
			if hdr.Nodata != nil {
				fmt.Printf("nodata:      %g\n", *hdr.Nodata)
			} else {
				fmt.Printf("nodata:      none\n")
			}

			return nil
		},
	}
}
