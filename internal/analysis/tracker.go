package analysis

import (
	"fmt"

	"firestige.xyz/wirechart/internal/core"
	"firestige.xyz/wirechart/internal/rtps"
)

// Pair identifies a writer and one of its readers. A zero Reader stands for
// traffic whose destination is unknown, such as multicast heartbeats.
type Pair struct {
	Writer core.GUID
	Reader core.GUID
}

func (p Pair) broadcast() Pair {
	return Pair{Writer: p.Writer}
}

func (p Pair) String() string {
	return fmt.Sprintf("%s -> %s", p.Writer, p.Reader)
}

// mark is a sequence number observed in a frame.
type mark struct {
	frame int
	seq   int64
}

// RepairTracker holds the per pair reliability state of one analysis pass.
// It must see submessages in arrival order.
type RepairTracker struct {
	heartbeats map[Pair]mark
	acknacks   map[Pair]mark
	// durability is the heartbeat baseline in force when a reader first acknowledged.
	durability map[Pair]mark
	// credited is the highest sequence number already counted as a durable repair.
	credited map[Pair]int64
	warned   map[Pair]struct{}
}

// NewRepairTracker creates an empty tracker.
func NewRepairTracker() *RepairTracker {
	return &RepairTracker{
		heartbeats: make(map[Pair]mark),
		acknacks:   make(map[Pair]mark),
		durability: make(map[Pair]mark),
		credited:   make(map[Pair]int64),
		warned:     make(map[Pair]struct{}),
	}
}

// heartbeat returns the baseline announced to p. The sequence number is the
// highest of the exact pair and the destinationless pair. The frame is the
// exact pair's, and exact reports whether the exact pair announced at all.
func (t *RepairTracker) heartbeat(p Pair) (hb mark, exact, ok bool) {
	pair, okExact := t.heartbeats[p]
	wild, okWild := t.heartbeats[p.broadcast()]
	switch {
	case okExact && okWild:
		return mark{frame: pair.frame, seq: max(pair.seq, wild.seq)}, true, true
	case okExact:
		return pair, true, true
	case okWild:
		return mark{seq: wild.seq}, false, true
	}
	return mark{}, false, false
}

// ObserveHeartbeat records the last sequence number a writer announced.
func (t *RepairTracker) ObserveHeartbeat(p Pair, frame int, seq int64) {
	t.heartbeats[p] = mark{frame: frame, seq: seq}
}

// ObserveAckNack records an acknowledgement. The first acknowledgement after
// a non-empty heartbeat fixes the durability baseline of the pair. An
// acknowledgement with no heartbeat to refer to returns ErrNoPriorHeartbeat,
// once per pair.
func (t *RepairTracker) ObserveAckNack(p Pair, frame int, seq int64) error {
	t.acknacks[p] = mark{frame: frame, seq: seq}
	if _, ok := t.durability[p]; ok {
		return nil
	}
	hb, _, ok := t.heartbeat(p)
	if !ok {
		if _, done := t.warned[p]; done {
			return nil
		}
		t.warned[p] = struct{}{}
		return fmt.Errorf("%w: frame %d, %s", core.ErrNoPriorHeartbeat, frame, p)
	}
	if hb.seq > 0 {
		t.durability[p] = mark{frame: frame, seq: hb.seq}
	}
	return nil
}

// ClassifyData returns the repair flags earned by a DATA sample with sequence
// number seq sent on p. A sample is a repair when it was already announced
// and the reader acknowledged after the latest announcement made to it
// directly. A destinationless heartbeat raises the announced sequence number
// but never stands in for that announcement. A repair is
// durable when it predates the durability baseline and was not credited yet.
func (t *RepairTracker) ClassifyData(p Pair, seq int64) rtps.SubmessageType {
	hb, exact, _ := t.heartbeat(p)
	if !exact || seq > hb.seq {
		return rtps.Unset
	}
	ack, ok := t.acknacks[p]
	if !ok || ack.frame <= hb.frame {
		return rtps.Unset
	}

	flags := rtps.Repair
	baseline, ok := t.durability[p]
	if !ok || seq > baseline.seq {
		return flags
	}
	if credited, ok := t.credited[p]; ok && seq <= credited {
		return flags
	}
	t.credited[p] = seq
	return flags | rtps.Durable
}

// DurabilityBaseline returns the durability baseline of p, if established.
func (t *RepairTracker) DurabilityBaseline(p Pair) (int64, bool) {
	m, ok := t.durability[p]
	return m.seq, ok
}
