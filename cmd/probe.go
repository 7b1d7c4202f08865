package cmd

import (
	"io"

	"github.com/spf13/cobra"

	"firestige.xyz/wirechart/internal/report"
	"firestige.xyz/wirechart/internal/source/pcapfile"
)

var probeCmd = &cobra.Command{
	Use:   "probe <pcap>",
	Short: "Print capture file metadata",
	Long: `Check that a file is a pcap or pcapng capture and print its format, link
type, packet count and time span. No decoder is required.

Examples:
  wirechart probe shapes.pcapng`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProbe(args[0], cmd.OutOrStdout())
	},
}

func runProbe(path string, w io.Writer) error {
	info, err := pcapfile.Probe(path)
	if err != nil {
		return err
	}
	report.NewPrinter(w).Probe(info)
	return nil
}
