package cmd

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/gopacket/layers"
	"github.com/spf13/cobra"

	"firestige.xyz/wirechart/internal/analysis"
	"firestige.xyz/wirechart/internal/capture"
	"firestige.xyz/wirechart/internal/config"
	"firestige.xyz/wirechart/internal/log"
	"firestige.xyz/wirechart/internal/metrics"
	"firestige.xyz/wirechart/internal/report"
	"firestige.xyz/wirechart/internal/source/pcapfile"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <pcap>",
	Short: "Analyze an RTPS capture",
	Long: `Decode an RTPS capture with tshark, classify repairs and print per topic
statistics. A snapshot of the topology and statistics is written to the output
directory, and node exporter textfile metrics when a metrics file is set.

Examples:
  wirechart analyze shapes.pcapng
  wirechart analyze shapes.pcapng -o out --format yaml
  wirechart analyze shapes.pcapng --start 100 --finish 5000 --metrics-file out/wirechart.prom
  wirechart analyze shapes.pcapng --serve 127.0.0.1:9464`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		opts := analyzeFlags.resolve(cmd, cfg)
		return runAnalyze(ctx, newDecoder(cfg.Decoder), cfg, args[0], opts, cmd.OutOrStdout())
	},
}

type analyzeFlagSet struct {
	rangeFlags
	output      string
	format      string
	metricsFile string
	serve       string
}

var analyzeFlags analyzeFlagSet

func init() {
	analyzeFlags.register(analyzeCmd)
	analyzeCmd.Flags().StringVarP(&analyzeFlags.output, "output", "o", "", "snapshot directory (overrides config)")
	analyzeCmd.Flags().StringVar(&analyzeFlags.format, "format", "", "snapshot format json/yaml/none (overrides config)")
	analyzeCmd.Flags().StringVar(&analyzeFlags.metricsFile, "metrics-file", "", "metrics textfile path (overrides config)")
	analyzeCmd.Flags().StringVar(&analyzeFlags.serve, "serve", "", "keep serving metrics on this address until interrupted")
}

// analyzeOptions is one analyze run with flags resolved against the config.
type analyzeOptions struct {
	read        capture.ReadOptions
	output      string
	format      string
	metricsFile string
	serve       string
}

func (f *analyzeFlagSet) resolve(cmd *cobra.Command, c *config.GlobalConfig) analyzeOptions {
	opts := analyzeOptions{
		read:        f.apply(cmd, c.Decoder),
		output:      c.Output.Directory,
		format:      c.Output.SnapshotFormat,
		metricsFile: c.Output.MetricsFile,
		serve:       f.serve,
	}
	if f.output != "" {
		opts.output = f.output
	}
	if f.format != "" {
		opts.format = strings.ToLower(f.format)
	}
	if f.metricsFile != "" {
		opts.metricsFile = f.metricsFile
	}
	return opts
}

func runAnalyze(ctx context.Context, dec decoder, c *config.GlobalConfig, source string, opts analyzeOptions, w io.Writer) error {
	logger := log.GetLogger()
	printer := report.NewPrinter(w)
	rec := metrics.NewRecorder()

	stage := func(name string, start time.Time) {
		rec.ObserveStage(name, time.Since(start).Seconds())
	}

	start := time.Now()
	info, err := pcapfile.Probe(source)
	if err != nil {
		return err
	}
	stage("probe", start)
	printer.Probe(info)
	if info.RTPSPackets == 0 && info.LinkType == layers.LinkTypeEthernet.String() {
		logger.Warnf("No RTPS over UDP/IPv4 packets found in %s", source)
	}

	start = time.Now()
	capt, ingest, err := loadCapture(ctx, dec, c, source, opts.read)
	if err != nil {
		return err
	}
	stage("ingest", start)
	rec.ObserveIngest(ingest)

	start = time.Now()
	res, err := analysis.Analyze(capt)
	if err != nil {
		return fmt.Errorf("analyze %s: %w", source, err)
	}
	stage("analyze", start)
	rec.ObserveResult(res)

	fmt.Fprintln(w)
	printer.Ingest(ingest)
	fmt.Fprintln(w)
	printer.CaptureSummary(capt.Summary(c.Analysis.IncludeBuiltin))
	fmt.Fprintln(w)
	printer.Statistics(res.Statistics)
	fmt.Fprintln(w)
	printer.StatisticsBytes(res.Statistics)
	fmt.Fprintln(w)
	printer.Repairs(res)
	printer.TopTopics(res.Graph, c.Analysis.TopTopics)

	if opts.format != "" && opts.format != "none" {
		snap := analysis.NewSnapshot(res, capt, ingest, c.Analysis.IncludeBuiltin)
		base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
		path, err := snap.WriteFile(opts.output, base, opts.format)
		if err != nil {
			return err
		}
		logger.Infof("Snapshot written to %s", path)
		fmt.Fprintf(w, "\nSnapshot: %s\n", path)
	}

	if opts.metricsFile != "" {
		if err := rec.WriteTextfile(opts.metricsFile); err != nil {
			return err
		}
		logger.Infof("Metrics written to %s", opts.metricsFile)
	}

	if opts.serve != "" {
		return serveMetrics(ctx, rec, opts.serve, w)
	}
	return nil
}

// serveMetrics exposes the run's registry until ctx is done.
func serveMetrics(ctx context.Context, rec *metrics.Recorder, addr string, w io.Writer) error {
	srv := metrics.NewServer(addr, "", rec.Registry())
	if err := srv.Start(); err != nil {
		return err
	}
	fmt.Fprintf(w, "Serving metrics on http://%s/metrics, press Ctrl+C to stop\n", srv.Addr())
	<-ctx.Done()
	return srv.Stop(context.Background())
}
