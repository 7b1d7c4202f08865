// Package report renders human readable summaries of a capture and its
// analysis.
package report

import (
	"cmp"
	"io"
	"slices"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"firestige.xyz/wirechart/internal/analysis"
	"firestige.xyz/wirechart/internal/capture"
	"firestige.xyz/wirechart/internal/rtps"
	"firestige.xyz/wirechart/internal/source/pcapfile"
	"firestige.xyz/wirechart/internal/topology"
)

// Printer writes reports to w with thousands separated numbers.
type Printer struct {
	w io.Writer
	p *message.Printer
}

// NewPrinter creates a printer writing to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w, p: message.NewPrinter(language.English)}
}

func (r *Printer) printf(format string, args ...any) {
	r.p.Fprintf(r.w, format, args...)
}

// Probe prints capture file metadata.
func (r *Printer) Probe(info pcapfile.Info) {
	r.printf("File:      %s\n", info.Path)
	r.printf("Format:    %s\n", info.Format)
	r.printf("Link type: %s\n", info.LinkType)
	r.printf("Packets:   %d\n", info.Packets)
	r.printf("RTPS:      %d\n", info.RTPSPackets)
	r.printf("Bytes:     %d\n", info.Bytes)
	r.printf("First:     %s\n", info.First.Format(time.RFC3339Nano))
	r.printf("Last:      %s\n", info.Last.Format(time.RFC3339Nano))
	r.printf("Duration:  %s\n", info.Duration)
}

// Ingest prints the per-category ingestion counts.
func (r *Printer) Ingest(rep *capture.Report) {
	r.printf("Records: %d, accepted: %d, rejected: %d\n", rep.Total, rep.Accepted, rep.Rejected())
	r.counts("Structural rejects", rep.StructuralRejects)
	r.counts("Benign skips", rep.BenignSkips)
	if rep.ClassificationFailures > 0 {
		r.printf("Classification failures: %d\n", rep.ClassificationFailures)
	}
	if rep.LeftoverSeqNums > 0 {
		r.printf("Frames with unused sequence numbers: %d\n", rep.LeftoverSeqNums)
	}
}

func (r *Printer) counts(title string, m map[string]int) {
	if len(m) == 0 {
		return
	}
	causes := make([]string, 0, len(m))
	for c := range m {
		causes = append(causes, c)
	}
	slices.Sort(causes)
	r.printf("%s:\n", title)
	for _, c := range causes {
		r.printf("  %s: %d\n", c, m[c])
	}
}

// CaptureSummary prints the frame count and the announced topics.
func (r *Printer) CaptureSummary(s capture.Summary) {
	r.printf("Total Frames: %d\n", s.Frames)
	r.printf("Participants: %d, DataWriters: %d, DataReaders: %d\n", s.Participants, s.Writers, s.Readers)
	r.printf("Unique Topics: %d\n", len(s.Topics))
	r.printf("Topics:\n")
	for _, t := range s.Topics {
		r.printf("  - %s\n", t)
	}
}

// Frames prints every frame in order.
func (r *Printer) Frames(frames []*rtps.Frame) {
	for _, f := range frames {
		r.printf("%s", f)
	}
}

type metric func(analysis.Row) int

func byCount(row analysis.Row) int  { return row.Count }
func byLength(row analysis.Row) int { return row.Length }

// Statistics prints message counts in total, per topic and per type.
func (r *Printer) Statistics(rows []analysis.Row) {
	r.printf("Total number of messages: %d\n", total(rows, byCount))
	r.printf("\nTotal messages by topic:\n")
	for _, t := range perTopic(rows, byCount) {
		r.printf("  %s: %d\n", t.name, t.value)
	}
	r.printf("\nSubmessage counts:\n")
	for _, t := range perType(rows, byCount) {
		r.printf("  %s: %d\n", t.name, t.value)
	}
}

// StatisticsBytes prints message lengths in total, per topic and per type.
func (r *Printer) StatisticsBytes(rows []analysis.Row) {
	r.printf("Total message length: %d bytes\n", total(rows, byLength))
	r.printf("\nTotal message length by topic:\n")
	topics := perTopic(rows, byLength)
	for _, t := range topics {
		r.printf("  %s: %d bytes\n", t.name, t.value)
	}
	r.printf("\nSubmessage lengths:\n")
	for _, t := range perType(rows, byLength) {
		r.printf("  %s: %d bytes\n", t.name, t.value)
	}
	r.printf("\nTotal number of topics found: %d\n", len(topics))
}

// Repairs prints the repair counts of an analysis.
func (r *Printer) Repairs(res *analysis.Result) {
	repairs, durable := res.Repairs()
	r.printf("Repairs: %d (durable: %d)\n", repairs, durable)
	if len(res.RSGUIDPrefixes) > 0 {
		r.printf("Routing service participants:\n")
		for _, p := range res.RSGUIDPrefixes {
			r.printf("  - %s\n", p)
		}
	}
}

// TopTopics prints the topN (topic, domain) keys with the most edges.
func (r *Printer) TopTopics(idx *topology.Index, topN int) {
	r.printf("Top %d topics by edges:\n", topN)
	for _, k := range idx.MostNodes(topN) {
		edges, _ := idx.Get(k.Topic, k.Domain)
		r.printf("  %s (domain %d): %d\n", k.Topic, k.Domain, len(edges))
	}
}

type entry struct {
	name  string
	value int
}

func total(rows []analysis.Row, m metric) int {
	n := 0
	for _, row := range rows {
		n += m(row)
	}
	return n
}

// perTopic sums m per topic, largest first with ties by name.
func perTopic(rows []analysis.Row, m metric) []entry {
	sums := make(map[string]int)
	for _, row := range rows {
		sums[row.Topic] += m(row)
	}
	out := make([]entry, 0, len(sums))
	for name, v := range sums {
		out = append(out, entry{name, v})
	}
	slices.SortFunc(out, func(a, b entry) int {
		if c := cmp.Compare(b.value, a.value); c != 0 {
			return c
		}
		return cmp.Compare(a.name, b.name)
	})
	return out
}

// perType sums m per submessage type in canonical order. Types outside the
// canonical list follow in name order.
func perType(rows []analysis.Row, m metric) []entry {
	sums := make(map[string]int)
	for _, row := range rows {
		sums[row.Type] += m(row)
	}
	out := make([]entry, 0, len(sums))
	for _, t := range rtps.Combinations {
		name := t.String()
		if v, ok := sums[name]; ok {
			out = append(out, entry{name, v})
			delete(sums, name)
		}
	}
	rest := make([]string, 0, len(sums))
	for name := range sums {
		rest = append(rest, name)
	}
	slices.Sort(rest)
	for _, name := range rest {
		out = append(out, entry{name, sums[name]})
	}
	return out
}
