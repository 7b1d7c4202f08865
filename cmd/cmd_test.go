package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"firestige.xyz/wirechart/internal/capture"
	"firestige.xyz/wirechart/internal/config"
	"firestige.xyz/wirechart/internal/core"
	"firestige.xyz/wirechart/internal/query"
	"firestige.xyz/wirechart/internal/rtps"
)

type MockDecoder struct {
	mock.Mock
}

func (m *MockDecoder) ReadRecords(ctx context.Context, source string, fields []string, opts capture.ReadOptions) ([]map[string]string, error) {
	args := m.Called(ctx, source, fields, opts)
	records, _ := args.Get(0).([]map[string]string)
	return records, args.Error(1)
}

func (m *MockDecoder) Version(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func record(number, writer, prefixSrc, prefixDst, info, seqNums, octets string) map[string]string {
	fields := make(map[string]string, len(rtps.Fields))
	for _, f := range rtps.Fields {
		fields[f] = ""
	}
	fields[rtps.FieldFrameNumber] = number
	fields[rtps.FieldFrameLength] = "120"
	fields[rtps.FieldPrefixSrc] = prefixSrc
	fields[rtps.FieldWriterEntity] = writer
	fields[rtps.FieldPrefixDst] = prefixDst
	fields[rtps.FieldReaderEntity] = "0x00000107"
	fields[rtps.FieldDomainID] = "0"
	fields[rtps.FieldSeqNumbers] = seqNums
	fields[rtps.FieldOctets] = octets
	fields[rtps.FieldInfo] = info
	return fields
}

const (
	pA = "0101aaaa0000000000000001"
	pB = "0101bbbb0000000000000002"
)

func sampleRecords() []map[string]string {
	return []map[string]string{
		record("1", "0x000003c2", pA, "", "DATA(w) -> Square", "1", "100"),
		record("2", "0x000004c2", pB, "", "DATA(r) -> Square, DATA(r) -> Circle", "1,2", "100,60"),
		record("3", "0x00000102", pA, pB, "DATA -> Square", "1", "80"),
		record("4", "0x00000102", pA, pB, "DATA -> Square, HEARTBEAT -> Square", "2,1,2", "80,28"),
		record("5", "0x00000202", pB, pA, "DATA -> Circle", "1", "80"),
		record("6", "0x00020082", pA, "", "DATA -> Square", "1", "80"),
	}
}

func writePcap(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shapes.pcap")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := pcapgo.NewWriter(f)
	require.NoError(t, w.WriteFileHeader(65536, layers.LinkTypeEthernet))
	data := make([]byte, 120)
	ci := gopacket.CaptureInfo{
		Timestamp:     time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		CaptureLength: len(data),
		Length:        len(data),
	}
	require.NoError(t, w.WritePacket(ci, data))
	return path
}

func newMockDecoder(records []map[string]string, err error) *MockDecoder {
	m := new(MockDecoder)
	m.On("Version", mock.Anything).Return("TShark (Wireshark) 4.2.2.", nil)
	m.On("ReadRecords", mock.Anything, mock.Anything, rtps.Fields, mock.Anything).Return(records, err)
	return m
}

func TestRunAnalyze(t *testing.T) {
	source := writePcap(t)
	out := t.TempDir()
	dec := newMockDecoder(sampleRecords(), nil)

	opts := analyzeOptions{
		read:        capture.ReadOptions{DisplayFilter: "rtps", StartFrame: 1},
		output:      out,
		format:      "json",
		metricsFile: filepath.Join(out, "wirechart.prom"),
	}
	var buf bytes.Buffer
	require.NoError(t, runAnalyze(context.Background(), dec, config.Default(), source, opts, &buf))

	text := buf.String()
	assert.Contains(t, text, "Packets:   1\n")
	assert.Contains(t, text, "Records: 6, accepted: 5, rejected: 1\n")
	assert.Contains(t, text, "Total Frames: 5\n")
	assert.Contains(t, text, "Total messages by topic:")
	assert.Contains(t, text, "Repairs: 0 (durable: 0)\n")
	assert.Contains(t, text, "Snapshot: "+filepath.Join(out, "shapes.json"))
	dec.AssertCalled(t, "ReadRecords", mock.Anything, source, rtps.Fields, opts.read)

	res, err := query.NewEngine().QueryFile(context.Background(), filepath.Join(out, "shapes.json"),
		`.capture.topics`, query.Options{})
	require.NoError(t, err)
	assert.Equal(t, []any{[]any{"Circle", "Square"}}, res.Values)

	prom, err := os.ReadFile(opts.metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `wirechart_records_total{outcome="accepted"} 5`)
}

func TestRunAnalyzeErrors(t *testing.T) {
	ctx := context.Background()
	c := config.Default()
	opts := analyzeOptions{output: t.TempDir(), format: "none"}

	err := runAnalyze(ctx, newMockDecoder(nil, nil), c, filepath.Join(t.TempDir(), "missing.pcap"), opts, &bytes.Buffer{})
	assert.ErrorIs(t, err, core.ErrCaptureFile)

	source := writePcap(t)
	err = runAnalyze(ctx, newMockDecoder(nil, core.ErrDecoderNotFound), c, source, opts, &bytes.Buffer{})
	assert.ErrorIs(t, err, core.ErrDecoderNotFound)

	discoveryOnly := sampleRecords()[:2]
	err = runAnalyze(ctx, newMockDecoder(discoveryOnly, nil), c, source, opts, &bytes.Buffer{})
	assert.ErrorIs(t, err, core.ErrNoUserData)
}

func TestRunAnalyzeToleratesVersionFailure(t *testing.T) {
	dec := new(MockDecoder)
	dec.On("Version", mock.Anything).Return("", errors.New("exit status 1"))
	dec.On("ReadRecords", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(sampleRecords(), nil)

	opts := analyzeOptions{format: "none"}
	require.NoError(t, runAnalyze(context.Background(), dec, config.Default(), writePcap(t), opts, &bytes.Buffer{}))
	dec.AssertExpectations(t)
}

func TestRunFrames(t *testing.T) {
	var buf bytes.Buffer
	dec := newMockDecoder(sampleRecords(), nil)
	require.NoError(t, runFrames(context.Background(), dec, config.Default(), "shapes.pcap", capture.ReadOptions{}, "Circle", false, &buf))

	text := buf.String()
	assert.Contains(t, text, "Frame: 000000002")
	assert.Contains(t, text, "Frame: 000000005")
	assert.NotContains(t, text, "Frame: 000000003")
}

func TestRunFramesRawDiscoveryOnly(t *testing.T) {
	var buf bytes.Buffer
	dec := newMockDecoder(sampleRecords()[:2], nil)
	require.NoError(t, runFrames(context.Background(), dec, config.Default(), "shapes.pcap", capture.ReadOptions{}, "", false, &buf))
	assert.Contains(t, buf.String(), "Frame: 000000001")
}

func TestRunFilter(t *testing.T) {
	var buf bytes.Buffer
	dec := newMockDecoder(sampleRecords(), nil)
	require.NoError(t, runFilter(context.Background(), dec, config.Default(), "shapes.pcap", capture.ReadOptions{}, "Square", 0, &buf))

	text := buf.String()
	assert.Contains(t, text, "DataWriters\n01:01:aa:aa:00:00:00:00:00:00:00:01 0x102\n")
	assert.Contains(t, text, "DataReaders\n01:01:bb:bb:00:00:00:00:00:00:00:02 0x107\n")
	assert.Contains(t, text, "Display filter:\n((rtps.guidPrefix.src == 01:01:aa:aa:00:00:00:00:00:00:00:01 && rtps.sm.wrEntityId == 0x102)")

	err := runFilter(context.Background(), dec, config.Default(), "shapes.pcap", capture.ReadOptions{}, "Square", 7, &buf)
	assert.ErrorContains(t, err, "domain 7")
	err = runFilter(context.Background(), dec, config.Default(), "shapes.pcap", capture.ReadOptions{}, "Triangle", -1, &buf)
	assert.ErrorContains(t, err, `"Triangle"`)
}

func TestRunQuery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"statistics":[{"topic":"Square","count":3},{"topic":"Square","count":0}]}`), 0o644))

	var out, errOut bytes.Buffer
	require.NoError(t, runQuery(context.Background(), path, ".statistics[].topic", query.Options{Deduplicate: true}, &out, &errOut))
	assert.Equal(t, "\"Square\"\n", out.String())
	assert.Empty(t, errOut.String())

	out.Reset()
	require.NoError(t, runQuery(context.Background(), path, ".nodes_edges[]", query.Options{}, &out, &errOut))
	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), "warning: ")

	assert.Error(t, runQuery(context.Background(), path, ".[", query.Options{}, &out, &errOut))
}

func TestRunProbe(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, runProbe(writePcap(t), &buf))
	assert.Contains(t, buf.String(), "Format:    pcap\n")
	assert.Error(t, runProbe(filepath.Join(t.TempDir(), "none.pcap"), &buf))
}

func TestLoadConfigLogLevelOverride(t *testing.T) {
	c, err := loadConfig("", "debug")
	require.NoError(t, err)
	assert.Equal(t, "debug", c.Log.Level)

	_, err = loadConfig("", "verbose")
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
}

func TestRangeFlagsOverrideConfig(t *testing.T) {
	var f rangeFlags
	c := &cobra.Command{Use: "test"}
	f.register(c)
	require.NoError(t, c.ParseFlags([]string{"--start", "10", "-n", "5"}))

	opts := f.apply(c, config.DecoderConfig{DisplayFilter: "rtps", StartFrame: 1, FinishFrame: 99})
	assert.Equal(t, capture.ReadOptions{DisplayFilter: "rtps", StartFrame: 10, FinishFrame: 99, MaxFrames: 5}, opts)
}
