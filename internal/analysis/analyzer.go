// Package analysis runs the single ordered pass over a capture that
// reclassifies DATA submessages as repairs, builds the topology graph and
// aggregates per topic statistics.
package analysis

import (
	"bytes"
	"fmt"
	"slices"

	"firestige.xyz/wirechart/internal/capture"
	"firestige.xyz/wirechart/internal/core"
	"firestige.xyz/wirechart/internal/log"
	"firestige.xyz/wirechart/internal/rtps"
	"firestige.xyz/wirechart/internal/topology"
)

// Pseudo-topics for traffic that is not attributed to a user topic.
const (
	DiscoveryTopic = "DISCOVERY"
	MetaDataTopic  = "META_DATA"
)

// classificationMask keeps the flags worth reporting for a repaired frame.
const classificationMask = rtps.Discovery | rtps.Data | rtps.Fragment | rtps.Batch | rtps.Repair | rtps.Durable

// Result is everything one analysis pass produces.
type Result struct {
	Graph          *topology.Index
	RSGUIDPrefixes []core.GUIDPrefix
	Statistics     []Row
}

// Analyzer runs the analysis pass. An Analyzer is single use.
type Analyzer struct {
	tracker    *RepairTracker
	graph      *topology.Index
	rsPrefixes map[core.GUIDPrefix]struct{}
	stats      *aggregator
	logger     log.Logger
}

// New creates an analyzer with empty state.
func New() *Analyzer {
	return &Analyzer{
		tracker:    NewRepairTracker(),
		graph:      topology.NewIndex(),
		rsPrefixes: make(map[core.GUIDPrefix]struct{}),
		stats:      newAggregator(),
		logger:     log.GetLogger(),
	}
}

// Analyze runs one pass over c. Frames must be in arrival order. Repair
// flags are written into the submessages of c.
func Analyze(c *capture.Capture) (*Result, error) {
	return New().Run(c)
}

// Run walks every frame of c once, in order.
func (a *Analyzer) Run(c *capture.Capture) (*Result, error) {
	a.logger.Info("Analyzing capture data...")

	for _, f := range c.Frames() {
		if err := a.processFrame(f); err != nil {
			return nil, err
		}
	}

	if !a.stats.hasUserData() {
		return nil, core.ErrNoUserData
	}

	return &Result{
		Graph:          a.graph,
		RSGUIDPrefixes: a.routingServicePrefixes(),
		Statistics:     a.stats.rows(c.Topics()),
	}, nil
}

func (a *Analyzer) processFrame(f *rtps.Frame) error {
	if f.GUIDSrc.IsZero() {
		return fmt.Errorf("%w: frame %d", core.ErrMissingSourceGUID, f.Number)
	}

	if f.Type.Has(core.FrameRoutingService) {
		a.rsPrefixes[f.GUIDSrc.Prefix] = struct{}{}
	}
	if f.Type.IsUserDataOnly() && f.HasDst() {
		a.graph.AddEdge(f.Topic(), f.DomainID, topology.Edge{Src: f.GUIDSrc, Dst: f.GUIDDst})
	}

	pair := Pair{Writer: f.GUIDSrc, Reader: f.GUIDDst}
	classification := rtps.Unset
	for _, sm := range f.Submessages {
		a.processSubmessage(f.Number, sm, pair)
		if !sm.Type.IsCanonical() {
			return fmt.Errorf("%w: frame %d reclassified as %s", core.ErrUnrecognizedSubmessage, f.Number, sm.Type)
		}
		classification |= sm.Type
		a.stats.add(topicOf(f, sm), sm.Type, sm.Length)
	}

	if classification.Has(rtps.Repair | rtps.Durable) {
		a.logger.Infof("Frame %d classified as %s.", f.Number, classification&classificationMask)
	}
	return nil
}

func (a *Analyzer) processSubmessage(frame int, sm *rtps.Submessage, pair Pair) {
	switch {
	case isRepairCandidate(sm.Type):
		base := sm.Type &^ (rtps.Repair | rtps.Durable)
		seq, ok := sm.SeqNum()
		if !ok {
			return
		}
		sm.Type = base | a.tracker.ClassifyData(pair, seq)
	case sm.Type.Has(rtps.Heartbeat):
		if seq, ok := sm.SeqNum(); ok {
			a.tracker.ObserveHeartbeat(pair, frame, seq)
		}
	case sm.Type.Has(rtps.AckNack):
		seq, ok := sm.SeqNum()
		if !ok {
			return
		}
		if err := a.tracker.ObserveAckNack(pair, frame, seq); err != nil {
			a.logger.Warn(err)
		}
	}
}

// isRepairCandidate reports whether t is user DATA that repair tracking
// applies to. Fragments and state changes are never reclassified.
func isRepairCandidate(t rtps.SubmessageType) bool {
	return t.Has(rtps.Data) && !t.Has(rtps.Fragment|rtps.State|rtps.Discovery)
}

// topicOf attributes a submessage to its statistics topic.
func topicOf(f *rtps.Frame, sm *rtps.Submessage) string {
	switch {
	case f.Type.Has(core.FrameDiscovery):
		return DiscoveryTopic
	case f.Type.Has(core.FrameMetaData):
		return MetaDataTopic
	case sm.Topic != "":
		return sm.Topic
	default:
		return f.Topic()
	}
}

func (a *Analyzer) routingServicePrefixes() []core.GUIDPrefix {
	out := make([]core.GUIDPrefix, 0, len(a.rsPrefixes))
	for p := range a.rsPrefixes {
		out = append(out, p)
	}
	slices.SortFunc(out, func(x, y core.GUIDPrefix) int {
		return bytes.Compare(x[:], y[:])
	})
	return out
}

// Repairs sums the repair and durable repair counts of the statistics.
func (r *Result) Repairs() (repairs, durable int) {
	for _, row := range r.Statistics {
		if row.typ.Has(rtps.Repair) {
			repairs += row.Count
		}
		if row.typ.Has(rtps.Durable) {
			durable += row.Count
		}
	}
	return repairs, durable
}
