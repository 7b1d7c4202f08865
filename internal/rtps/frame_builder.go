package rtps

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"firestige.xyz/wirechart/internal/core"
	"firestige.xyz/wirechart/internal/log"
)

// markerTokens carry neither a topic nor a sequence number.
var markerTokens = map[string]struct{}{
	"INFO_DST":       {},
	"INFO_SRC":       {},
	"INFO_TS":        {},
	"INFO_REPLY":     {},
	"INFO_REPLY_IP4": {},
	"PAD":            {},
}

const defaultPrefixCacheSize = 1024

// BuilderStats counts non-fatal oddities seen while building frames.
type BuilderStats struct {
	// LeftoverSeqNums counts frames whose sequence-number list was not fully consumed.
	LeftoverSeqNums int
}

// FrameBuilder turns decoded records into frames. GUID prefixes repeat across
// nearly every record of a capture, so parsed prefixes are cached.
type FrameBuilder struct {
	prefixes *lru.Cache[string, core.GUIDPrefix]
	stats    BuilderStats
}

// NewFrameBuilder creates a builder whose prefix cache holds cacheSize entries.
func NewFrameBuilder(cacheSize int) (*FrameBuilder, error) {
	if cacheSize <= 0 {
		cacheSize = defaultPrefixCacheSize
	}
	c, err := lru.New[string, core.GUIDPrefix](cacheSize)
	if err != nil {
		return nil, err
	}
	return &FrameBuilder{prefixes: c}, nil
}

// Stats returns the counters accumulated so far.
func (b *FrameBuilder) Stats() BuilderStats {
	return b.stats
}

// Build reconstructs one frame from a decoded record.
func (b *FrameBuilder) Build(rec Record) (*Frame, error) {
	if err := validateRecord(rec); err != nil {
		return nil, err
	}

	number, err := strconv.Atoi(strings.TrimSpace(rec.FrameNumber))
	if err != nil || number <= 0 {
		return nil, fmt.Errorf("%w: frame number %q", core.ErrInvalidRecord, rec.FrameNumber)
	}
	domain, err := firstInt(rec.DomainID, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: domain id %q", core.ErrInvalidRecord, rec.DomainID)
	}

	writer, ok := core.ParseEntityID(rec.WriterEntity)
	if ok && core.IsServiceRequest(writer) {
		return nil, fmt.Errorf("%w: writer %#08x", core.ErrServiceRequestFrame, uint32(writer))
	}
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidEntityID, rec.WriterEntity)
	}
	serviceKind, hasServiceKind := core.ParseHexField(rec.ServiceKind)
	frameType := core.ClassifyFrame(writer, uint32(serviceKind), hasServiceKind)

	submessages, err := b.buildSubmessages(rec, number, frameType)
	if err != nil {
		return nil, err
	}

	src, dst, err := b.guids(rec, writer, submessages[len(submessages)-1].Type)
	if err != nil {
		return nil, err
	}

	frame := &Frame{
		Number:      number,
		DomainID:    domain,
		IPSrc:       parseAddr(rec.IPSrc),
		IPDst:       parseAddr(rec.IPDst),
		GUIDSrc:     src,
		GUIDDst:     dst,
		Type:        frameType,
		Submessages: submessages,
	}
	if logger := log.GetLogger(); logger.IsTraceEnabled() {
		logger.Trace(frame.String())
	}
	return frame, nil
}

func validateRecord(rec Record) error {
	if strings.TrimSpace(rec.PrefixSrc) == "" {
		return core.ErrMissingGUIDPrefix
	}
	if strings.Contains(rec.Info, "Malformed Packet") {
		return fmt.Errorf("%w: %s", core.ErrMalformedPacket, rec.Info)
	}
	return nil
}

// buildSubmessages walks the info-column tokens alongside the per-submessage
// octet lengths. The decoder reports the first submessage's length as the
// whole frame, so each later submessage's length is backed out of it.
func (b *FrameBuilder) buildSubmessages(rec Record, number int, frameType core.FrameType) ([]*Submessage, error) {
	frameLength, err := firstInt(rec.FrameLength, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: frame length %q", core.ErrInvalidRecord, rec.FrameLength)
	}
	seqNums, err := intList(rec.SeqNumbers)
	if err != nil {
		return nil, fmt.Errorf("%w: sequence numbers %q", core.ErrInvalidRecord, rec.SeqNumbers)
	}
	lengths, err := intList(rec.Octets)
	if err != nil {
		return nil, fmt.Errorf("%w: octets %q", core.ErrInvalidRecord, rec.Octets)
	}

	tokens := strings.Split(rec.Info, ",")
	n := min(len(tokens), len(lengths))

	submessages := make([]*Submessage, 0, n)
	pos := 0
	for i := 0; i < n; i++ {
		token := strings.TrimSpace(tokens[i])
		if _, marker := markerTokens[token]; marker || token == "" {
			continue
		}

		in := SubmessageInput{Token: token, FrameType: frameType}
		if len(submessages) == 0 {
			in.Length = frameLength
		} else {
			submessages[0].Length -= int(lengths[i])
			in.Length = int(lengths[i])
			in.Multiple = true
		}

		sm, next, err := BuildSubmessage(in, seqNums, pos)
		if err != nil {
			return nil, err
		}
		pos = next
		submessages = append(submessages, &sm)
	}

	if len(submessages) == 0 {
		return nil, fmt.Errorf("%w: %q", core.ErrNoSubmessages, rec.Info)
	}
	if submessages[0].Length < 0 {
		return nil, fmt.Errorf("%w: submessage octets %q exceed frame length %d", core.ErrInvalidRecord, rec.Octets, frameLength)
	}
	if pos < len(seqNums) {
		b.stats.LeftoverSeqNums++
		log.GetLogger().Warnf("Frame %09d: unexpected number of sequence numbers: %v", number, seqNums[pos:])
	}
	return submessages, nil
}

// guids derives the source and destination GUIDs. An ACKNACK travels from a
// reader to a writer, so the prefixes swap while the entity id roles stay.
func (b *FrameBuilder) guids(rec Record, writer core.EntityID, last SubmessageType) (core.GUID, core.GUID, error) {
	prefixSrc, err := b.prefix(rec.PrefixSrc)
	if err != nil {
		return core.GUID{}, core.GUID{}, err
	}
	var prefixDst core.GUIDPrefix
	if strings.TrimSpace(rec.PrefixDst) != "" {
		if prefixDst, err = b.prefix(rec.PrefixDst); err != nil {
			return core.GUID{}, core.GUID{}, err
		}
	}
	reader, _ := core.ParseEntityID(rec.ReaderEntity)

	if last.Has(AckNack) {
		return core.NewGUID(prefixDst, writer), core.NewGUID(prefixSrc, reader), nil
	}
	return core.NewGUID(prefixSrc, writer), core.NewGUID(prefixDst, reader), nil
}

func (b *FrameBuilder) prefix(field string) (core.GUIDPrefix, error) {
	first, _, _ := strings.Cut(field, ",")
	first = strings.TrimSpace(first)
	if p, ok := b.prefixes.Get(first); ok {
		return p, nil
	}
	p, err := core.ParseGUIDPrefix(first)
	if err != nil {
		return p, err
	}
	b.prefixes.Add(first, p)
	return p, nil
}

func parseAddr(s string) netip.Addr {
	first, _, _ := strings.Cut(s, ",")
	addr, err := netip.ParseAddr(strings.TrimSpace(first))
	if err != nil {
		return netip.Addr{}
	}
	return addr
}
