package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"firestige.xyz/wirechart/internal/analysis"
	"firestige.xyz/wirechart/internal/capture"
	"firestige.xyz/wirechart/internal/config"
	"firestige.xyz/wirechart/internal/topology"
)

var filterCmd = &cobra.Command{
	Use:   "filter <pcap>",
	Short: "Print the endpoints and a Wireshark display filter for a topic",
	Long: `List the DataWriters and DataReaders exchanging user data on a topic and
print a Wireshark display filter matching their traffic.

Examples:
  wirechart filter shapes.pcapng --topic Square
  wirechart filter shapes.pcapng --topic Square --domain 0`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		read := filterFlags.apply(cmd, cfg.Decoder)
		domain := -1
		if cmd.Flags().Changed("domain") {
			domain = filterFlags.domain
		}
		return runFilter(cmd.Context(), newDecoder(cfg.Decoder), cfg, args[0], read, filterFlags.topic, domain, cmd.OutOrStdout())
	},
}

var filterFlags struct {
	rangeFlags
	topic  string
	domain int
}

func init() {
	filterFlags.register(filterCmd)
	filterCmd.Flags().StringVarP(&filterFlags.topic, "topic", "t", "", "topic name (required)")
	filterCmd.Flags().IntVarP(&filterFlags.domain, "domain", "d", 0, "domain id (all domains when unset)")
	filterCmd.MarkFlagRequired("topic")
}

// runFilter prints the endpoint report and display filter. A negative domain
// matches every domain.
func runFilter(ctx context.Context, dec decoder, c *config.GlobalConfig, source string, read capture.ReadOptions, topic string, domain int, w io.Writer) error {
	capt, _, err := loadCapture(ctx, dec, c, source, read)
	if err != nil {
		return err
	}
	res, err := analysis.Analyze(capt)
	if err != nil {
		return fmt.Errorf("analyze %s: %w", source, err)
	}

	filters := []topology.Filter{topology.WithTopic(topic)}
	if domain >= 0 {
		filters = append(filters, topology.WithDomain(domain))
	}
	if !res.Graph.KeyPresent(filters...) {
		if domain >= 0 {
			return fmt.Errorf("no user data edges for topic %q in domain %d", topic, domain)
		}
		return fmt.Errorf("no user data edges for topic %q", topic)
	}

	fmt.Fprintln(w, topology.EndpointReport(res.Graph, filters...))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Display filter:")
	fmt.Fprintln(w, topology.DisplayFilter(res.Graph, filters...))
	return nil
}
