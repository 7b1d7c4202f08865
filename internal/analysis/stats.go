package analysis

import (
	"cmp"
	"slices"

	"firestige.xyz/wirechart/internal/rtps"
)

// Row is one (topic, submessage type) line of the statistics table.
type Row struct {
	Topic  string `json:"topic" yaml:"topic"`
	Type   string `json:"sm" yaml:"sm"`
	Count  int    `json:"count" yaml:"count"`
	Length int    `json:"length" yaml:"length"`

	typ rtps.SubmessageType
}

// SubmessageType returns the classification the row aggregates.
func (r Row) SubmessageType() rtps.SubmessageType {
	return r.typ
}

type rowKey struct {
	topic string
	typ   rtps.SubmessageType
}

type aggregator struct {
	totals map[rowKey]*Row
}

func newAggregator() *aggregator {
	return &aggregator{totals: make(map[rowKey]*Row)}
}

func (g *aggregator) add(topic string, t rtps.SubmessageType, length int) {
	k := rowKey{topic: topic, typ: t}
	row, ok := g.totals[k]
	if !ok {
		row = &Row{Topic: topic, Type: t.String(), typ: t}
		g.totals[k] = row
	}
	row.Count++
	row.Length += length
}

func (g *aggregator) hasUserData() bool {
	for k := range g.totals {
		if k.topic != DiscoveryTopic {
			return true
		}
	}
	return false
}

// rows back-fills a zero row for every canonical combination applicable to
// each topic, then orders the table by topic and canonical order. The
// DISCOVERY topic is always present; announced topics are present even when
// no user data for them was captured.
func (g *aggregator) rows(announced []string) []Row {
	topics := map[string]struct{}{DiscoveryTopic: {}}
	for _, t := range announced {
		topics[t] = struct{}{}
	}
	for k := range g.totals {
		topics[k.topic] = struct{}{}
	}

	discovery := rtps.FilterByFlag(rtps.Discovery, false)
	user := rtps.FilterByFlag(rtps.Discovery, true)

	out := make([]Row, 0, len(topics)*len(user))
	for topic := range topics {
		combos := user
		if topic == DiscoveryTopic {
			combos = discovery
		}
		for _, t := range combos {
			if row, ok := g.totals[rowKey{topic: topic, typ: t}]; ok {
				out = append(out, *row)
				continue
			}
			out = append(out, Row{Topic: topic, Type: t.String(), typ: t})
		}
	}

	slices.SortFunc(out, func(a, b Row) int {
		if c := cmp.Compare(a.Topic, b.Topic); c != 0 {
			return c
		}
		return cmp.Compare(a.typ.Order(), b.typ.Order())
	})
	return out
}
