package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"firestige.xyz/wirechart/internal/analysis"
	"firestige.xyz/wirechart/internal/capture"
	"firestige.xyz/wirechart/internal/config"
	"firestige.xyz/wirechart/internal/core"
	"firestige.xyz/wirechart/internal/log"
	"firestige.xyz/wirechart/internal/report"
)

var framesCmd = &cobra.Command{
	Use:   "frames <pcap>",
	Short: "Print every reconstructed RTPS frame",
	Long: `Print every RTPS frame reconstructed from the capture with its submessages.
Repair classification is applied first unless --raw is given.

Examples:
  wirechart frames shapes.pcapng -n 50
  wirechart frames shapes.pcapng --topic Square --raw`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		read := framesFlags.apply(cmd, cfg.Decoder)
		return runFrames(cmd.Context(), newDecoder(cfg.Decoder), cfg, args[0], read, framesFlags.topic, framesFlags.raw, cmd.OutOrStdout())
	},
}

var framesFlags struct {
	rangeFlags
	topic string
	raw   bool
}

func init() {
	framesFlags.register(framesCmd)
	framesCmd.Flags().StringVarP(&framesFlags.topic, "topic", "t", "", "only frames carrying this topic")
	framesCmd.Flags().BoolVar(&framesFlags.raw, "raw", false, "skip repair classification")
}

func runFrames(ctx context.Context, dec decoder, c *config.GlobalConfig, source string, read capture.ReadOptions, topic string, raw bool, w io.Writer) error {
	capt, _, err := loadCapture(ctx, dec, c, source, read)
	if err != nil {
		return err
	}

	if !raw {
		if _, err := analysis.Analyze(capt); err != nil {
			if !errors.Is(err, core.ErrNoUserData) {
				return fmt.Errorf("analyze %s: %w", source, err)
			}
			log.GetLogger().Warnf("Frames are unclassified: %v", err)
		}
	}

	frames := capt.Frames()
	if topic != "" {
		frames = capt.FramesForTopic(topic)
	}
	report.NewPrinter(w).Frames(frames)
	return nil
}
