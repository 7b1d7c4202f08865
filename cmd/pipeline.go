package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"firestige.xyz/wirechart/internal/capture"
	"firestige.xyz/wirechart/internal/config"
	"firestige.xyz/wirechart/internal/log"
	"firestige.xyz/wirechart/internal/rtps"
)

// rangeFlags overrides the decoder frame selection from the command line.
type rangeFlags struct {
	filter    string
	start     int
	finish    int
	maxFrames int
}

func (f *rangeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.filter, "display-filter", "Y", "", "decoder display filter (overrides config)")
	cmd.Flags().IntVar(&f.start, "start", 0, "first frame number to read")
	cmd.Flags().IntVar(&f.finish, "finish", 0, "last frame number to read")
	cmd.Flags().IntVarP(&f.maxFrames, "max-frames", "n", 0, "stop after this many frames")
}

// apply returns the read options of c with the flags that were set on top.
func (f *rangeFlags) apply(cmd *cobra.Command, c config.DecoderConfig) capture.ReadOptions {
	opts := capture.ReadOptions{
		DisplayFilter: c.DisplayFilter,
		StartFrame:    c.StartFrame,
		FinishFrame:   c.FinishFrame,
		MaxFrames:     c.MaxFrames,
	}
	if cmd.Flags().Changed("display-filter") {
		opts.DisplayFilter = f.filter
	}
	if cmd.Flags().Changed("start") {
		opts.StartFrame = f.start
	}
	if cmd.Flags().Changed("finish") {
		opts.FinishFrame = f.finish
	}
	if cmd.Flags().Changed("max-frames") {
		opts.MaxFrames = f.maxFrames
	}
	return opts
}

// loadCapture decodes source and ingests its records.
func loadCapture(ctx context.Context, dec decoder, c *config.GlobalConfig, source string, opts capture.ReadOptions) (*capture.Capture, *capture.Report, error) {
	logger := log.GetLogger()
	if v, err := dec.Version(ctx); err != nil {
		logger.Warnf("Unable to query decoder version: %v", err)
	} else {
		logger.Debugf("Decoder: %s", v)
	}

	builder, err := rtps.NewFrameBuilder(c.Analysis.GUIDCacheSize)
	if err != nil {
		return nil, nil, fmt.Errorf("create frame builder: %w", err)
	}
	return capture.Load(ctx, dec, source, opts, builder)
}
