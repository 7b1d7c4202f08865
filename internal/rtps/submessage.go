// Package rtps reconstructs typed RTPS frames and submessages from decoded
// packet records.
package rtps

import (
	"fmt"
	"strings"

	"firestige.xyz/wirechart/internal/core"
)

// SubmessageType is a bitset of submessage classification flags.
type SubmessageType uint16

const (
	Unset      SubmessageType = 0x0000
	Discovery  SubmessageType = 0x0001
	DataP      SubmessageType = 0x0002
	DataRW     SubmessageType = 0x0004
	Data       SubmessageType = 0x0008
	Piggyback  SubmessageType = 0x0010
	Heartbeat  SubmessageType = 0x0020
	Batch      SubmessageType = 0x0040
	AckNack    SubmessageType = 0x0080
	Nack       SubmessageType = 0x0100
	Fragment   SubmessageType = 0x0200
	Durable    SubmessageType = 0x0400
	Repair     SubmessageType = 0x0800
	Gap        SubmessageType = 0x1000
	Liveliness SubmessageType = 0x2000
	State      SubmessageType = 0x4000
)

// flagNames is in bit order, which is also display order.
var flagNames = []struct {
	flag SubmessageType
	name string
}{
	{Discovery, "DISCOVERY"},
	{DataP, "DATA_P"},
	{DataRW, "DATA_RW"},
	{Data, "DATA"},
	{Piggyback, "PIGGYBACK"},
	{Heartbeat, "HEARTBEAT"},
	{Batch, "BATCH"},
	{AckNack, "ACKNACK"},
	{Nack, "NACK"},
	{Fragment, "FRAGMENT"},
	{Durable, "DURABLE"},
	{Repair, "REPAIR"},
	{Gap, "GAP"},
	{Liveliness, "LIVELINESS"},
	{State, "STATE"},
}

// Combinations is the canonical, ordered list of recognized submessage types.
// Its order defines display and statistics order.
var Combinations = []SubmessageType{
	Discovery | DataP,
	Discovery | DataRW,
	Discovery | Repair,
	Discovery | Heartbeat,
	Discovery | Piggyback | Heartbeat,
	Discovery | AckNack,
	Discovery | Gap,
	Discovery | State,
	Data,
	Data | Fragment,
	Data | Batch,
	Data | Repair,
	Data | Durable | Repair,
	Data | Fragment | Repair,
	Data | Fragment | Durable | Repair,
	Data | Batch | Repair,
	Data | Batch | Durable | Repair,
	Heartbeat,
	Heartbeat | Batch,
	Piggyback | Heartbeat,
	Piggyback | Heartbeat | Batch,
	AckNack,
	Nack | Fragment,
	Gap,
	Liveliness,
	Data | State,
}

var canonicalIndex = func() map[SubmessageType]int {
	m := make(map[SubmessageType]int, len(Combinations))
	for i, c := range Combinations {
		m[c] = i
	}
	return m
}()

// Combine ORs flags together.
func Combine(flags ...SubmessageType) SubmessageType {
	var t SubmessageType
	for _, f := range flags {
		t |= f
	}
	return t
}

// Has reports whether any bit of flag is set.
func (t SubmessageType) Has(flag SubmessageType) bool {
	return t&flag != 0
}

// IsCanonical reports whether t is a member of Combinations.
func (t SubmessageType) IsCanonical() bool {
	_, ok := canonicalIndex[t]
	return ok
}

// Order returns the position of t in Combinations, or -1.
func (t SubmessageType) Order() int {
	if i, ok := canonicalIndex[t]; ok {
		return i
	}
	return -1
}

// Validate returns t if it is canonical and ErrUnrecognizedSubmessage otherwise.
func (t SubmessageType) Validate() (SubmessageType, error) {
	if !t.IsCanonical() {
		return t, fmt.Errorf("%w: %s", core.ErrUnrecognizedSubmessage, t)
	}
	return t, nil
}

// String joins flag names with underscores, "UNSET" for the empty set.
func (t SubmessageType) String() string {
	if t == Unset {
		return "UNSET"
	}
	parts := make([]string, 0, 4)
	for _, f := range flagNames {
		if t&f.flag != 0 {
			parts = append(parts, f.name)
		}
	}
	return strings.Join(parts, "_")
}

// SeqNumArity is the number of sequence numbers a submessage of type t
// carries: 1, doubled for HEARTBEAT or GAP, doubled again for BATCH.
func (t SubmessageType) SeqNumArity() int {
	n := 1
	if t.Has(Heartbeat | Gap) {
		n *= 2
	}
	if t.Has(Batch) {
		n *= 2
	}
	return n
}

// FilterByFlag returns the canonical combinations containing flag, or not
// containing it when negate is set, in canonical order.
func FilterByFlag(flag SubmessageType, negate bool) []SubmessageType {
	out := make([]SubmessageType, 0, len(Combinations))
	for _, c := range Combinations {
		if c.Has(flag) != negate {
			out = append(out, c)
		}
	}
	return out
}

// Submessage is one classified RTPS submessage.
type Submessage struct {
	Topic       string // empty when the decoder attributed no topic
	Length      int
	Type        SubmessageType
	SeqNumTuple []int64
}

// SeqNum returns the sequence number the submessage refers to: the last
// available one for heartbeats and the first value otherwise. GAPs carry a
// range instead and report false.
func (sm *Submessage) SeqNum() (int64, bool) {
	switch {
	case sm.Type.Has(Gap):
		return 0, false
	case sm.Type.Has(Heartbeat):
		if len(sm.SeqNumTuple) < 2 {
			return 0, false
		}
		return sm.SeqNumTuple[1], true
	default:
		if len(sm.SeqNumTuple) == 0 {
			return 0, false
		}
		return sm.SeqNumTuple[0], true
	}
}

// FirstAvailableSeqNum returns the first sequence number announced by a heartbeat.
func (sm *Submessage) FirstAvailableSeqNum() (int64, bool) {
	if !sm.Type.Has(Heartbeat) || len(sm.SeqNumTuple) == 0 {
		return 0, false
	}
	return sm.SeqNumTuple[0], true
}

// GapRange returns the (start, end) range of a GAP submessage.
func (sm *Submessage) GapRange() (int64, int64, bool) {
	if !sm.Type.Has(Gap) || len(sm.SeqNumTuple) < 2 {
		return 0, 0, false
	}
	return sm.SeqNumTuple[0], sm.SeqNumTuple[1], true
}

func (sm *Submessage) String() string {
	return fmt.Sprintf("Type: %s, Topic: %s, Length: %d, Seq Number: %v",
		sm.Type, sm.Topic, sm.Length, sm.SeqNumTuple)
}
