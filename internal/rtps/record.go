package rtps

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"

	"firestige.xyz/wirechart/internal/core"
)

// Decoder field names requested for every frame.
const (
	FieldFrameNumber  = "frame.number"
	FieldFrameLength  = "frame.len"
	FieldIPSrc        = "ip.src"
	FieldIPDst        = "ip.dst"
	FieldPrefixSrc    = "rtps.guidPrefix.src"
	FieldWriterEntity = "rtps.sm.wrEntityId"
	FieldPrefixDst    = "rtps.guidPrefix.dst"
	FieldReaderEntity = "rtps.sm.rdEntityId"
	FieldDomainID     = "rtps.domain_id"
	FieldSeqNumbers   = "rtps.sm.seqNumber"
	FieldOctets       = "rtps.sm.octetsToNextHeader"
	FieldSubmessageID = "rtps.sm.id"
	FieldServiceKind  = "rtps.param.service_kind"
	FieldInfo         = "_ws.col.Info"
)

// Fields is the fixed schema requested from the decoder, in column order.
var Fields = []string{
	FieldFrameNumber, FieldFrameLength,
	FieldIPSrc, FieldIPDst,
	FieldPrefixSrc, FieldWriterEntity,
	FieldPrefixDst, FieldReaderEntity,
	FieldDomainID,
	FieldSeqNumbers, FieldOctets,
	FieldSubmessageID, FieldServiceKind, FieldInfo,
}

// Record is one decoded frame as delivered by the decoder. Every field is
// the raw decoder text; comma-joined lists stay joined.
type Record struct {
	FrameNumber  string `mapstructure:"frame.number"`
	FrameLength  string `mapstructure:"frame.len"`
	IPSrc        string `mapstructure:"ip.src"`
	IPDst        string `mapstructure:"ip.dst"`
	PrefixSrc    string `mapstructure:"rtps.guidPrefix.src"`
	WriterEntity string `mapstructure:"rtps.sm.wrEntityId"`
	PrefixDst    string `mapstructure:"rtps.guidPrefix.dst"`
	ReaderEntity string `mapstructure:"rtps.sm.rdEntityId"`
	DomainID     string `mapstructure:"rtps.domain_id"`
	SeqNumbers   string `mapstructure:"rtps.sm.seqNumber"`
	Octets       string `mapstructure:"rtps.sm.octetsToNextHeader"`
	SubmessageID string `mapstructure:"rtps.sm.id"`
	ServiceKind  string `mapstructure:"rtps.param.service_kind"`
	Info         string `mapstructure:"_ws.col.Info"`
}

// DecodeRecord maps a decoder field map onto the fixed Record schema. A
// missing field is an error here rather than deep in frame reconstruction.
func DecodeRecord(fields map[string]string) (Record, error) {
	var r Record
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnset: true,
		Result:     &r,
	})
	if err != nil {
		return r, err
	}
	if err := dec.Decode(fields); err != nil {
		return r, fmt.Errorf("%w: %v", core.ErrInvalidRecord, err)
	}
	return r, nil
}

// Number returns the frame number, or 0 when it cannot be parsed.
func (r Record) Number() int {
	n, _ := strconv.Atoi(strings.TrimSpace(r.FrameNumber))
	return n
}

// firstInt parses the first comma-separated value of s, def when s is empty.
func firstInt(s string, def int) (int, error) {
	first, _, _ := strings.Cut(s, ",")
	first = strings.TrimSpace(first)
	if first == "" {
		return def, nil
	}
	return strconv.Atoi(first)
}

// intList parses a comma-joined list of integers. An empty string yields an
// empty list.
func intList(s string) ([]int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
