package capture

import (
	"context"
	"errors"
	"fmt"

	"firestige.xyz/wirechart/internal/core"
	"firestige.xyz/wirechart/internal/log"
	"firestige.xyz/wirechart/internal/rtps"
)

// ReadOptions narrows which frames the decoder returns.
type ReadOptions struct {
	DisplayFilter string
	StartFrame    int // 0 = from the first frame
	FinishFrame   int // 0 = to the last frame
	MaxFrames     int // 0 = unlimited
}

// RecordReader produces the decoded field maps of a capture file, one per
// frame, in arrival order.
type RecordReader interface {
	ReadRecords(ctx context.Context, source string, fields []string, opts ReadOptions) ([]map[string]string, error)
}

// Report counts what happened to every record during ingestion.
type Report struct {
	Total                  int            `json:"total" yaml:"total"`
	Accepted               int            `json:"accepted" yaml:"accepted"`
	StructuralRejects      map[string]int `json:"structural_rejects" yaml:"structural_rejects"`
	BenignSkips            map[string]int `json:"benign_skips" yaml:"benign_skips"`
	ClassificationFailures int            `json:"classification_failures" yaml:"classification_failures"`
	LeftoverSeqNums        int            `json:"leftover_seq_nums" yaml:"leftover_seq_nums"`
}

func newReport(total int) *Report {
	return &Report{
		Total:             total,
		StructuralRejects: make(map[string]int),
		BenignSkips:       make(map[string]int),
	}
}

// Rejected returns the number of records that did not become frames.
func (r *Report) Rejected() int {
	return r.Total - r.Accepted
}

// StructuralRejectCount sums the structural rejects over all causes.
func (r *Report) StructuralRejectCount() int {
	return sum(r.StructuralRejects)
}

// BenignSkipCount sums the benign skips over all causes.
func (r *Report) BenignSkipCount() int {
	return sum(r.BenignSkips)
}

func sum(m map[string]int) int {
	n := 0
	for _, v := range m {
		n += v
	}
	return n
}

var causes = []struct {
	err  error
	name string
}{
	{core.ErrMissingGUIDPrefix, "missing_guid_prefix"},
	{core.ErrInvalidGUIDPrefix, "invalid_guid_prefix"},
	{core.ErrMalformedPacket, "malformed_packet"},
	{core.ErrServiceRequestFrame, "service_request"},
	{core.ErrInvalidEntityID, "invalid_entity_id"},
	{core.ErrSeqNumExhausted, "seq_num_exhausted"},
	{core.ErrNoSubmessages, "no_submessages"},
	{core.ErrInvalidRecord, "invalid_record"},
	{core.ErrNoAttributableTopic, "no_attributable_topic"},
	{core.ErrRoutingNoise, "routing_noise"},
}

// Cause names the sentinel behind err, "other" when none matches.
func Cause(err error) string {
	for _, c := range causes {
		if errors.Is(err, c.err) {
			return c.name
		}
	}
	return "other"
}

// Load reads source through reader and ingests the records.
func Load(ctx context.Context, reader RecordReader, source string, opts ReadOptions, builder *rtps.FrameBuilder) (*Capture, *Report, error) {
	records, err := reader.ReadRecords(ctx, source, rtps.Fields, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", source, err)
	}
	return Ingest(records, builder)
}

// Ingest builds a frame from every record. A bad record is counted and
// logged, never fatal to the batch.
func Ingest(records []map[string]string, builder *rtps.FrameBuilder) (*Capture, *Report, error) {
	if len(records) == 0 {
		return nil, nil, core.ErrNoRecords
	}
	logger := log.GetLogger()

	c := New()
	report := newReport(len(records))
	leftoverBefore := builder.Stats().LeftoverSeqNums

	interval := max(len(records)/10, 1)
	for i, fields := range records {
		frame, err := buildOne(builder, fields)
		if err != nil {
			report.record(fields[rtps.FieldFrameNumber], err)
		} else {
			c.Add(frame)
			report.Accepted++
		}

		if (i+1)%interval == 0 || i+1 == len(records) {
			logger.Infof("Processing %d%% complete", (i+1)*100/len(records))
		}
	}
	report.LeftoverSeqNums = builder.Stats().LeftoverSeqNums - leftoverBefore

	logger.WithFields(map[string]interface{}{
		"accepted":                report.Accepted,
		"structural_rejects":      report.StructuralRejectCount(),
		"benign_skips":            report.BenignSkipCount(),
		"classification_failures": report.ClassificationFailures,
		"leftover_seq_nums":       report.LeftoverSeqNums,
	}).Infof("Ingested %d of %d records", report.Accepted, report.Total)

	return c, report, nil
}

func buildOne(builder *rtps.FrameBuilder, fields map[string]string) (*rtps.Frame, error) {
	rec, err := rtps.DecodeRecord(fields)
	if err != nil {
		return nil, err
	}
	return builder.Build(rec)
}

func (r *Report) record(number string, err error) {
	logger := log.GetLogger().WithField("frame", number)
	cause := Cause(err)

	switch core.Classify(err) {
	case core.ClassClassificationFailure:
		r.ClassificationFailures++
		logger.Errorf("Frame ignored: %v", err)
	case core.ClassBenignSkip:
		r.BenignSkips[cause]++
		logger.Infof("Frame ignored: %v", err)
	default:
		r.StructuralRejects[cause]++
		switch cause {
		case "missing_guid_prefix", "service_request":
			logger.Debugf("Frame ignored: %v", err)
		default:
			logger.Infof("Frame ignored: %v", err)
		}
	}
}
