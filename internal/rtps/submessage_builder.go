package rtps

import (
	"fmt"
	"regexp"
	"strings"

	"firestige.xyz/wirechart/internal/core"
)

// stateDataPattern matches discovery unregister/dispose announcements such as DATA(w[UD]).
var stateDataPattern = regexp.MustCompile(`DATA\([pwr]\[[UD]+\]\)`)

// SubmessageInput describes one info-column token and the context of the
// frame it belongs to.
type SubmessageInput struct {
	Token     string
	Length    int
	FrameType core.FrameType
	// Multiple is set for every submessage after the first one of a frame.
	Multiple bool
}

// BuildSubmessage classifies one mnemonic token and consumes exactly the
// number of sequence numbers its type implies from seqNums, starting at pos.
// It returns the submessage and the position of the next unconsumed value.
func BuildSubmessage(in SubmessageInput, seqNums []int64, pos int) (Submessage, int, error) {
	topic, mnemonic := SplitToken(in.Token)

	if err := validateToken(in, mnemonic, topic); err != nil {
		return Submessage{}, pos, err
	}

	smType, err := classify(mnemonic, in.FrameType, in.Multiple)
	if err != nil {
		return Submessage{}, pos, err
	}

	arity := smType.SeqNumArity()
	if pos < 0 || pos+arity > len(seqNums) {
		return Submessage{}, pos, fmt.Errorf("%w: %s needs %d at position %d of %d",
			core.ErrSeqNumExhausted, mnemonic, arity, pos, len(seqNums))
	}
	tuple := make([]int64, arity)
	copy(tuple, seqNums[pos:pos+arity])

	return Submessage{
		Topic:       topic,
		Length:      in.Length,
		Type:        smType,
		SeqNumTuple: tuple,
	}, pos + arity, nil
}

// SplitToken separates "MNEMONIC -> TOPIC" into its topic and mnemonic.
// Tokens without an arrow have no topic.
func SplitToken(token string) (topic, mnemonic string) {
	left, right, found := strings.Cut(token, "->")
	if !found {
		return "", strings.TrimSpace(token)
	}
	return strings.TrimSpace(right), strings.TrimSpace(left)
}

func validateToken(in SubmessageInput, mnemonic, topic string) error {
	lower := strings.ToLower(mnemonic)
	if strings.Contains(lower, "port") || strings.Contains(lower, "ping") {
		return fmt.Errorf("%w: %s", core.ErrRoutingNoise, in.Token)
	}
	if !in.FrameType.Has(core.FrameDiscovery) && !in.FrameType.Has(core.FrameMetaData) && topic == "" {
		return fmt.Errorf("%w: %s", core.ErrNoAttributableTopic, in.Token)
	}
	return nil
}

func classify(mnemonic string, frameType core.FrameType, multiple bool) (SubmessageType, error) {
	flags := Unset
	if frameType.Has(core.FrameDiscovery) {
		flags |= Discovery
	}

	if strings.Contains(mnemonic, "BATCH") {
		flags |= Batch
	}
	if strings.Contains(mnemonic, "FRAG") {
		flags |= Fragment
	}

	switch {
	case strings.Contains(mnemonic, "DATA"):
		flags |= dataFlags(mnemonic)
	case strings.Contains(mnemonic, "HEARTBEAT"):
		flags |= Heartbeat
		if multiple {
			flags |= Piggyback
		}
	case mnemonic == "ACKNACK":
		flags |= AckNack
	case mnemonic == "NACK_FRAG":
		flags |= Nack
	case mnemonic == "GAP":
		flags |= Gap
	}

	if flags == Unset || flags == Discovery {
		return flags, fmt.Errorf("%w: type not detected: %s", core.ErrUnrecognizedSubmessage, mnemonic)
	}
	if _, err := flags.Validate(); err != nil {
		return flags, fmt.Errorf("%s: %w", mnemonic, err)
	}
	return flags, nil
}

func dataFlags(mnemonic string) SubmessageType {
	switch {
	case mnemonic == "DATA", mnemonic == "DATA_BATCH", mnemonic == "DATA_FRAG":
		return Data
	case mnemonic == "DATA(p)":
		return DataP
	case mnemonic == "DATA(r)", mnemonic == "DATA(w)":
		return DataRW
	case stateDataPattern.MatchString(mnemonic):
		return State
	case strings.Contains(mnemonic, "(["):
		return Data | State
	case mnemonic == "DATA(m)":
		return Liveliness
	default:
		return Unset
	}
}
