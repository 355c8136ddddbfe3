package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"neuralsim/internal/config"
	"neuralsim/internal/stats"
	neuralsim "neuralsim/pkg/neuralsim"
)

func newInitCmd(g *globals) *cobra.Command {
	var out, format string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the store and write a sample blueprint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if format == "" {
				format = strings.TrimPrefix(strings.ToLower(filepath.Ext(out)), ".")
			}
			write := config.WriteINI
			switch format {
			case "", "ini":
			case "yaml", "yml":
				write = config.WriteYAML
			default:
				return fmt.Errorf("%w: %s", config.ErrUnknownFormat, format)
			}

			c, err := g.client(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			if out == "" {
				return write(cmd.OutOrStdout(), config.Sample())
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := write(f, config.Sample()); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "initialized store=%s blueprint=%s\n", g.store, out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the blueprint here instead of stdout")
	cmd.Flags().StringVar(&format, "format", "", "ini|yaml (default from --out extension, else ini)")
	return cmd
}

func newRunCmd(g *globals) *cobra.Command {
	var (
		configPath string
		ticks      int
		seed       int64
		exportDir  string
		asJSON     bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Build a blueprint and run it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if configPath == "" {
				return errors.New("run requires --config")
			}
			sim, err := config.Load(configPath)
			if err != nil {
				return err
			}
			// The blueprint's own storage settings apply unless flags override them.
			if !cmd.Flags().Changed("store") && sim.Run.Store != "" && sim.Run.Store != "memory" {
				g.store = sim.Run.Store
				if !cmd.Flags().Changed("db-path") && sim.Run.DBPath != "" {
					g.dbPath = sim.Run.DBPath
				}
			}
			if !cmd.Flags().Changed("artifacts-dir") && sim.Run.ArtifactsDir != "" {
				g.artifactsDir = sim.Run.ArtifactsDir
			}

			c, err := g.client(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			summary, err := c.Run(cmd.Context(), neuralsim.RunRequest{
				Blueprint: sim,
				Ticks:     ticks,
				Seed:      seed,
				ExportDir: exportDir,
			})
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), summary)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run_id=%s network_id=%s ticks=%d time=%g\n", summary.RunID, summary.NetworkID, summary.Ticks, summary.FinalTime)
			fmt.Fprintf(out, "artifacts=%s\n", summary.ArtifactsDir)
			if len(summary.FinalActivity) > 0 {
				fmt.Fprintf(out, "final_activity=%s settled_at=%d\n", formatValues(summary.FinalActivity), summary.Trace.SettledAt)
			}
			for _, path := range summary.Exports {
				fmt.Fprintf(out, "exported=%s\n", path)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "blueprint file (.ini or .yaml)")
	cmd.Flags().IntVar(&ticks, "ticks", 0, "override the blueprint's tick count")
	cmd.Flags().Int64Var(&seed, "seed", 0, "override the blueprint's seed")
	cmd.Flags().StringVar(&exportDir, "export-dir", "", "export synapse group weights here after the run")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the summary as JSON")
	return cmd
}

func newRunsCmd(g *globals) *cobra.Command {
	var (
		limit   int
		show    string
		plotStp int
	)
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if show != "" {
				return showRun(out, g.artifactsDir, show, plotStp)
			}

			c, err := g.client(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			items, err := c.Runs(cmd.Context(), neuralsim.RunsRequest{Limit: limit})
			if err != nil {
				return err
			}
			if len(items) == 0 {
				fmt.Fprintln(out, "no runs")
				return nil
			}
			for _, item := range items {
				fmt.Fprintf(out, "%s created=%s network=%s ticks=%d seed=%d neurons=%d synapses=%d\n",
					item.RunID, item.CreatedAtUTC, item.NetworkID, item.Ticks, item.Seed, item.Neurons, item.Synapses)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to list")
	cmd.Flags().StringVar(&show, "show", "", "print the trace summary of this run id")
	cmd.Flags().IntVar(&plotStp, "plot-step", 10, "tick step of the mean activation plot printed by --show")
	return cmd
}

func showRun(out io.Writer, artifactsDir, runID string, step int) error {
	cfg, ok, err := stats.ReadRunConfig(artifactsDir, runID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", neuralsim.ErrRunNotFound, runID)
	}
	summary, _, err := stats.ReadTraceSummary(artifactsDir, runID)
	if err != nil {
		return err
	}
	history, _, err := stats.ReadRatioHistory(artifactsDir, runID)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "run=%s network=%s seed=%d ticks=%d method=%s record_group=%s\n",
		cfg.RunID, cfg.NetworkID, cfg.Seed, cfg.Ticks, cfg.UpdateMethod, cfg.RecordGroup)
	if summary.Width > 0 {
		fmt.Fprintf(out, "final_mean=%g settled_at=%d\n", summary.FinalMean, summary.SettledAt)
		fmt.Fprintf(out, "neuron_mean=%s\n", formatValues(summary.NeuronMean))
		fmt.Fprintf(out, "neuron_std=%s\n", formatValues(summary.NeuronStd))
		for _, p := range stats.Downsample(summary.MeanByTick, step) {
			fmt.Fprintf(out, "tick %d mean=%g\n", p.Tick, p.Value)
		}
	}
	for name, ratios := range history {
		if len(ratios) > 0 {
			fmt.Fprintf(out, "ratio %s=%g\n", name, ratios[len(ratios)-1])
		}
	}
	return nil
}

func newInspectCmd(g *globals) *cobra.Command {
	var (
		req    neuralsim.InspectRequest
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Describe a stored network snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.client(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			info, err := c.Inspect(cmd.Context(), req)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), info)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "network=%s time=%g iterations=%d method=%s neurons=%d synapses=%d\n",
				info.ID, info.Time, info.Iterations, info.UpdateMethod, info.Neurons, info.Synapses)
			for _, ng := range info.Groups {
				fmt.Fprintf(out, "group %s (%s) size=%d polarity=%s\n", ng.Label, ng.ID, ng.Size, ng.Polarity)
			}
			for _, sg := range info.SynapseGroups {
				fmt.Fprintf(out, "synapses %s (%s) %s -> %s size=%d ex=%d in=%d ratio=%.4f\n",
					sg.Label, sg.ID, sg.Source, sg.Target, sg.Size, sg.Excitatory, sg.Inhibitory, sg.ExcitatoryRatio)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&req.NetworkID, "network", "", "stored network id")
	cmd.Flags().StringVar(&req.RunID, "run-id", "", "inspect the network a run produced")
	cmd.Flags().BoolVar(&req.Latest, "latest", false, "inspect the most recent run's network")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the network description as JSON")
	return cmd
}

func newExportCmd(g *globals) *cobra.Command {
	var (
		runID     string
		latest    bool
		networkID string
		outDir    string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Copy run artifacts, or with --network write a snapshot's weights",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.client(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()
			out := cmd.OutOrStdout()

			if networkID != "" {
				if runID != "" || latest {
					return errors.New("use either --network or a run selector")
				}
				paths, err := c.ExportWeights(cmd.Context(), neuralsim.WeightsRequest{NetworkID: networkID, OutDir: outDir})
				if err != nil {
					return err
				}
				for _, path := range paths {
					fmt.Fprintf(out, "exported=%s\n", path)
				}
				return nil
			}

			summary, err := c.Export(cmd.Context(), neuralsim.ExportRequest{RunID: runID, Latest: latest, OutDir: outDir})
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "exported run=%s dir=%s\n", summary.RunID, summary.Directory)
			return nil
		},
	}
	cmd.Flags().StringVar(&runID, "run-id", "", "run to export")
	cmd.Flags().BoolVar(&latest, "latest", false, "export the most recent run")
	cmd.Flags().StringVar(&networkID, "network", "", "write weight exports of this stored network")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "output directory (default exports)")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatValues(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%.4f", v)
	}
	return strings.Join(parts, ",")
}
