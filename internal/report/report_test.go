package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/wirechart/internal/analysis"
	"firestige.xyz/wirechart/internal/capture"
	"firestige.xyz/wirechart/internal/core"
	"firestige.xyz/wirechart/internal/rtps"
	"firestige.xyz/wirechart/internal/source/pcapfile"
	"firestige.xyz/wirechart/internal/topology"
)

var rows = []analysis.Row{
	{Topic: "DISCOVERY", Type: "DISCOVERY_DATA_P", Count: 4, Length: 2400},
	{Topic: "Circle", Type: "DATA", Count: 10, Length: 1000},
	{Topic: "Square", Type: "DATA", Count: 1000, Length: 1200000},
	{Topic: "Square", Type: "HEARTBEAT", Count: 30, Length: 840},
	{Topic: "Square", Type: "DATA_REPAIR", Count: 2, Length: 2400},
	{Topic: "Square", Type: "CUSTOM", Count: 1, Length: 1},
}

func TestStatistics(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).Statistics(rows)
	out := buf.String()

	assert.Contains(t, out, "Total number of messages: 1,047\n")
	// topics largest first
	assert.Less(t, strings.Index(out, "  Square: 1,033"), strings.Index(out, "  Circle: 10"))
	assert.Less(t, strings.Index(out, "  Circle: 10"), strings.Index(out, "  DISCOVERY: 4"))
	// types in canonical order, unknown types last
	counts := out[strings.Index(out, "Submessage counts:"):]
	order := []string{"DISCOVERY_DATA_P: 4", "DATA: 1,010", "DATA_REPAIR: 2", "HEARTBEAT: 30", "CUSTOM: 1"}
	last := -1
	for _, line := range order {
		i := strings.Index(counts, line)
		require.GreaterOrEqual(t, i, 0, line)
		assert.Greater(t, i, last, line)
		last = i
	}
}

func TestStatisticsBytes(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).StatisticsBytes(rows)
	out := buf.String()

	assert.Contains(t, out, "Total message length: 1,206,641 bytes\n")
	assert.Contains(t, out, "  Square: 1,203,241 bytes\n")
	assert.Contains(t, out, "  HEARTBEAT: 840 bytes\n")
	assert.Contains(t, out, "Total number of topics found: 3\n")
}

func TestCaptureSummary(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).CaptureSummary(capture.Summary{
		Frames:       12345,
		Participants: 2,
		Writers:      3,
		Readers:      4,
		Topics:       []string{"Circle", "Square"},
	})
	assert.Equal(t, "Total Frames: 12,345\n"+
		"Participants: 2, DataWriters: 3, DataReaders: 4\n"+
		"Unique Topics: 2\n"+
		"Topics:\n  - Circle\n  - Square\n", buf.String())
}

func TestIngest(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).Ingest(&capture.Report{
		Total:                  2000,
		Accepted:               1990,
		StructuralRejects:      map[string]int{"service_request": 6, "malformed_packet": 2},
		BenignSkips:            map[string]int{"routing_noise": 1},
		ClassificationFailures: 1,
	})
	out := buf.String()
	assert.Contains(t, out, "Records: 2,000, accepted: 1,990, rejected: 10\n")
	assert.Less(t, strings.Index(out, "malformed_packet: 2"), strings.Index(out, "service_request: 6"))
	assert.Contains(t, out, "Benign skips:\n  routing_noise: 1\n")
	assert.Contains(t, out, "Classification failures: 1\n")
	assert.NotContains(t, out, "unused sequence numbers")
}

func TestRepairsAndTopTopics(t *testing.T) {
	w := core.NewGUID(core.GUIDPrefix{1}, 0x102)
	r1 := core.NewGUID(core.GUIDPrefix{2}, 0x107)
	r2 := core.NewGUID(core.GUIDPrefix{3}, 0x107)

	idx := topology.NewIndex()
	idx.AddEdge("Square", 0, topology.Edge{Src: w, Dst: r1})
	idx.AddEdge("Square", 0, topology.Edge{Src: w, Dst: r2})
	idx.AddEdge("Circle", 1, topology.Edge{Src: w, Dst: r1})

	var buf bytes.Buffer
	p := NewPrinter(&buf)
	p.Repairs(&analysis.Result{Graph: idx, RSGUIDPrefixes: []core.GUIDPrefix{{9}}})
	p.TopTopics(idx, 1)
	out := buf.String()

	assert.Contains(t, out, "Repairs: 0 (durable: 0)\n")
	assert.Contains(t, out, "Routing service participants:\n  - "+core.GUIDPrefix{9}.String()+"\n")
	assert.Contains(t, out, "Top 1 topics by edges:\n  Square (domain 0): 2\n")
	assert.NotContains(t, out, "Circle")
}

func TestFramesAndProbe(t *testing.T) {
	f := &rtps.Frame{
		Number:  7,
		GUIDSrc: core.NewGUID(core.GUIDPrefix{1}, 0x102),
		Type:    core.FrameUserData,
		Submessages: []*rtps.Submessage{
			{Topic: "Square", Length: 100, Type: rtps.Data, SeqNumTuple: []int64{1}},
		},
	}
	var buf bytes.Buffer
	p := NewPrinter(&buf)
	p.Frames([]*rtps.Frame{f})
	assert.Equal(t, f.String(), buf.String())

	buf.Reset()
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	p.Probe(pcapfile.Info{
		Path: "in.pcapng", Format: pcapfile.FormatPcapNG, LinkType: "Ethernet",
		Packets: 1500, Bytes: 1234567, First: start, Last: start.Add(time.Minute), Duration: time.Minute,
	})
	assert.Contains(t, buf.String(), "Packets:   1,500\n")
	assert.Contains(t, buf.String(), "Bytes:     1,234,567\n")
	assert.Contains(t, buf.String(), "Duration:  1m0s\n")
}
